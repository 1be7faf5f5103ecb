package client

import (
	"context"
	"time"

	"github.com/samber/lo"

	"github.com/lapomascherj/atmo-core/pkg/types"
)

const (
	activeEnvelopeKey  = "active_session"
	archiveEnvelopeKey = "archived_sessions"

	maxPreviewMessages = 500
)

// HydrationCheckpoint decides whether the cached message list is stale.
// It is never sent to the server as authoritative state.
type HydrationCheckpoint struct {
	SessionID     string `json:"session_id"`
	LastMessageID string `json:"last_message_id,omitempty"`
	MessageCount  int64  `json:"message_count"`
}

// CacheEnvelope wraps the active session mirror for local persistence. It
// may be discarded and rebuilt at any time without correctness loss.
type CacheEnvelope struct {
	Session    *types.ChatSession   `json:"session"`
	Messages   []*types.ChatMessage `json:"messages"`
	Checkpoint HydrationCheckpoint  `json:"checkpoint"`
	Timestamp  int64                `json:"timestamp"`
}

type ArchiveEnvelope struct {
	ArchivedSessions []types.ChatSession `json:"archived_sessions"`
	Timestamp        int64               `json:"timestamp"`
}

// SessionCache is a best-effort local mirror of the owner's active session
// and archived session list. It runs on a single logical thread; the
// in-flight flags only coalesce re-entrant refreshes, they are not locks.
type SessionCache struct {
	api     API
	storage Storage

	active   *CacheEnvelope
	archive  *ArchiveEnvelope
	previews map[string][]*types.ChatMessage

	refreshingActive bool
	loadingArchive   bool

	// idempotency key of the in-flight user message, held across failed
	// attempts so a retry lands on the same server row
	pendingClientMessageID string

	lastErr error
}

func NewSessionCache(api API, storage Storage) *SessionCache {
	return &SessionCache{
		api:      api,
		storage:  storage,
		previews: make(map[string][]*types.ChatMessage),
	}
}

// Hydrate loads whatever envelopes survived the last run so the caller can
// present them before the first server round trip.
func (c *SessionCache) Hydrate() {
	var active CacheEnvelope
	if ok, err := c.storage.Load(activeEnvelopeKey, &active); err == nil && ok {
		c.active = &active
	}

	var archive ArchiveEnvelope
	if ok, err := c.storage.Load(archiveEnvelopeKey, &archive); err == nil && ok {
		c.archive = &archive
	}
}

// ActiveSession returns the mirrored active session, nil when unknown.
func (c *SessionCache) ActiveSession() *types.ChatSession {
	if c.active == nil {
		return nil
	}
	return c.active.Session
}

func (c *SessionCache) ActiveMessages() []*types.ChatMessage {
	if c.active == nil {
		return nil
	}
	return c.active.Messages
}

// LastError returns and clears the most recent server failure.
func (c *SessionCache) LastError() error {
	err := c.lastErr
	c.lastErr = nil
	return err
}

func (c *SessionCache) fail(err error) error {
	c.lastErr = err
	return err
}

// RefreshActiveSession reconciles the mirror with the server. The full
// message list is re-fetched only when forced, when the active session id
// changed, or when the server's message count moved past the checkpoint.
func (c *SessionCache) RefreshActiveSession(ctx context.Context, force bool) (*CacheEnvelope, error) {
	if c.refreshingActive {
		return c.active, nil
	}
	c.refreshingActive = true
	defer func() { c.refreshingActive = false }()

	session, err := c.api.GetActiveSession(ctx)
	if err != nil {
		return c.active, c.fail(err)
	}

	if session == nil {
		c.active = nil
		c.storage.Delete(activeEnvelopeKey)
		return nil, nil
	}

	stale := force ||
		c.active == nil ||
		c.active.Checkpoint.SessionID != session.ID ||
		c.active.Checkpoint.MessageCount != session.MessageCount

	var messages []*types.ChatMessage
	if stale {
		messages, err = c.api.ListSessionMessages(ctx, session.ID)
		if err != nil {
			return c.active, c.fail(err)
		}
	} else {
		messages = c.active.Messages
	}

	checkpoint := HydrationCheckpoint{
		SessionID:    session.ID,
		MessageCount: session.MessageCount,
	}
	if len(messages) > 0 {
		checkpoint.LastMessageID = messages[len(messages)-1].ID
	}

	c.active = &CacheEnvelope{
		Session:    session,
		Messages:   messages,
		Checkpoint: checkpoint,
		Timestamp:  time.Now().Unix(),
	}
	c.storage.Save(activeEnvelopeKey, c.active)

	return c.active, nil
}

// LoadArchivedSessions returns the cached archive list unless it is empty
// or force is set. A forced reload also drops every memoized preview.
func (c *SessionCache) LoadArchivedSessions(ctx context.Context, force bool) ([]types.ChatSession, error) {
	if c.loadingArchive {
		if c.archive == nil {
			return nil, nil
		}
		return c.archive.ArchivedSessions, nil
	}

	if !force && c.archive != nil && len(c.archive.ArchivedSessions) > 0 {
		return c.archive.ArchivedSessions, nil
	}

	c.loadingArchive = true
	defer func() { c.loadingArchive = false }()

	list, err := c.api.ListArchivedSessions(ctx)
	if err != nil {
		if c.archive != nil {
			return c.archive.ArchivedSessions, c.fail(err)
		}
		return nil, c.fail(err)
	}

	if force {
		c.previews = make(map[string][]*types.ChatMessage)
	}

	c.archive = &ArchiveEnvelope{
		ArchivedSessions: list,
		Timestamp:        time.Now().Unix(),
	}
	c.storage.Save(archiveEnvelopeKey, c.archive)

	return list, nil
}

// PreviewArchivedSession returns the session's messages, served from the
// active mirror when the id matches it, else from the memoized previews,
// else fetched once. Previews live until evicted or the archive list is
// force-refreshed.
func (c *SessionCache) PreviewArchivedSession(ctx context.Context, sessionID string) ([]*types.ChatMessage, error) {
	if c.active != nil && c.active.Session != nil && c.active.Session.ID == sessionID {
		return c.active.Messages, nil
	}

	if messages, ok := c.previews[sessionID]; ok {
		return messages, nil
	}

	messages, err := c.api.ListSessionMessages(ctx, sessionID)
	if err != nil {
		return nil, c.fail(err)
	}

	c.previews[sessionID] = messages
	return messages, nil
}

// ActivateArchivedSession swaps the archived session in as active and
// re-syncs both mirrors from the server.
func (c *SessionCache) ActivateArchivedSession(ctx context.Context, sessionID string) (*types.ChatSession, error) {
	session, err := c.api.ActivateSession(ctx, sessionID)
	if err != nil {
		return nil, c.fail(err)
	}

	delete(c.previews, sessionID)

	if _, err = c.RefreshActiveSession(ctx, true); err != nil {
		return session, err
	}
	if _, err = c.LoadArchivedSessions(ctx, true); err != nil {
		return session, err
	}

	return session, nil
}

// StartNewChatSession opens a fresh session. The previous active session
// is moved into the local archive list immediately so the UI updates
// before the authoritative refresh lands.
func (c *SessionCache) StartNewChatSession(ctx context.Context) (*types.ChatSession, error) {
	previous := c.ActiveSession()

	session, err := c.api.CreateSession(ctx)
	if err != nil {
		return nil, c.fail(err)
	}

	if previous != nil {
		provisional := *previous
		provisional.Archived = true
		provisional.UpdatedAt = time.Now().Unix()
		if c.archive == nil {
			c.archive = &ArchiveEnvelope{}
		}
		c.archive.ArchivedSessions = append([]types.ChatSession{provisional}, c.archive.ArchivedSessions...)
		c.archive.Timestamp = time.Now().Unix()
	}

	if _, err = c.RefreshActiveSession(ctx, true); err != nil {
		return session, err
	}
	if _, err = c.LoadArchivedSessions(ctx, true); err != nil {
		return session, err
	}

	return session, nil
}

// DeleteArchivedSession deletes the session on the server, then drops it
// from the archive list and preview cache in one local mutation.
func (c *SessionCache) DeleteArchivedSession(ctx context.Context, sessionID string) error {
	if err := c.api.DeleteSession(ctx, sessionID); err != nil {
		return c.fail(err)
	}

	if c.archive != nil {
		c.archive.ArchivedSessions = lo.Filter(c.archive.ArchivedSessions, func(s types.ChatSession, _ int) bool {
			return s.ID != sessionID
		})
		c.archive.Timestamp = time.Now().Unix()
		c.storage.Save(archiveEnvelopeKey, c.archive)
	}
	delete(c.previews, sessionID)

	return nil
}

// SendMessage submits through the gateway and folds the result into the
// active mirror so the caller sees the new turn without a refresh.
func (c *SessionCache) SendMessage(ctx context.Context, message string, metadata types.MessageMetadata) (*SubmitResult, error) {
	envelope, err := c.RefreshActiveSession(ctx, false)
	if err != nil {
		return nil, err
	}
	if envelope == nil || envelope.Session == nil {
		session, err := c.api.CreateSession(ctx)
		if err != nil {
			return nil, c.fail(err)
		}
		envelope = &CacheEnvelope{
			Session:    session,
			Checkpoint: HydrationCheckpoint{SessionID: session.ID},
			Timestamp:  time.Now().Unix(),
		}
		c.active = envelope
	}

	// a fresh key is minted only once the previous send succeeded, so a
	// failed attempt retried by the user dedups server-side instead of
	// inserting a second user row
	if c.pendingClientMessageID == "" {
		c.pendingClientMessageID = newClientMessageID()
	}

	result, err := c.api.SendMessage(ctx, envelope.Session.ID, types.CreateChatMessageArgs{
		Message:         message,
		ClientMessageID: c.pendingClientMessageID,
		Metadata:        metadata,
	})
	if err != nil {
		return nil, c.fail(err)
	}
	c.pendingClientMessageID = ""

	if result.UserMessage != nil {
		envelope.Messages = append(envelope.Messages, result.UserMessage)
	}
	if result.AssistantMessage != nil {
		envelope.Messages = append(envelope.Messages, result.AssistantMessage)
	}
	envelope.Checkpoint.MessageCount = int64(len(envelope.Messages))
	if len(envelope.Messages) > 0 {
		envelope.Checkpoint.LastMessageID = envelope.Messages[len(envelope.Messages)-1].ID
	}
	envelope.Timestamp = time.Now().Unix()
	c.storage.Save(activeEnvelopeKey, envelope)

	return result, nil
}
