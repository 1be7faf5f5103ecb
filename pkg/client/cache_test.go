package client

import (
	"context"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/lapomascherj/atmo-core/pkg/errors"
	"github.com/lapomascherj/atmo-core/pkg/i18n"
	"github.com/lapomascherj/atmo-core/pkg/types"
)

// fakeAPI is an in-memory server the cache talks to in tests. Counters
// record how many network calls each operation cost.
type fakeAPI struct {
	active   *types.ChatSession
	archived []types.ChatSession
	messages map[string][]*types.ChatMessage

	failWith error

	// sendFailures fails that many SendMessage calls before the server
	// row is written, sendKeys records every attempted idempotency key
	sendFailures int
	sendKeys     []string

	activeCalls   int
	messagesCalls int
	archivedCalls int
}

func newFakeAPI() *fakeAPI {
	return &fakeAPI{messages: make(map[string][]*types.ChatMessage)}
}

func (f *fakeAPI) session(id string, archived bool, count int64) types.ChatSession {
	return types.ChatSession{ID: id, OwnerID: "user-1", Archived: archived, MessageCount: count}
}

func (f *fakeAPI) GetActiveSession(ctx context.Context) (*types.ChatSession, error) {
	f.activeCalls++
	if f.failWith != nil {
		return nil, f.failWith
	}
	if f.active == nil {
		return nil, nil
	}
	copied := *f.active
	return &copied, nil
}

func (f *fakeAPI) CreateSession(ctx context.Context) (*types.ChatSession, error) {
	if f.failWith != nil {
		return nil, f.failWith
	}
	if f.active != nil {
		prev := *f.active
		prev.Archived = true
		f.archived = append([]types.ChatSession{prev}, f.archived...)
	}
	fresh := f.session(fmt.Sprintf("session-%d", len(f.archived)+1), false, 0)
	f.active = &fresh
	f.messages[fresh.ID] = nil
	copied := fresh
	return &copied, nil
}

func (f *fakeAPI) ActivateSession(ctx context.Context, sessionID string) (*types.ChatSession, error) {
	if f.failWith != nil {
		return nil, f.failWith
	}
	for i, s := range f.archived {
		if s.ID == sessionID {
			f.archived = append(f.archived[:i], f.archived[i+1:]...)
			if f.active != nil {
				prev := *f.active
				prev.Archived = true
				f.archived = append([]types.ChatSession{prev}, f.archived...)
			}
			s.Archived = false
			f.active = &s
			copied := s
			return &copied, nil
		}
	}
	return nil, errors.New("fakeAPI.ActivateSession", i18n.ERROR_NOT_FOUND, nil).Code(http.StatusNotFound)
}

func (f *fakeAPI) DeleteSession(ctx context.Context, sessionID string) error {
	if f.failWith != nil {
		return f.failWith
	}
	for i, s := range f.archived {
		if s.ID == sessionID {
			f.archived = append(f.archived[:i], f.archived[i+1:]...)
			delete(f.messages, sessionID)
			return nil
		}
	}
	return errors.New("fakeAPI.DeleteSession", i18n.ERROR_NOT_FOUND, nil).Code(http.StatusNotFound)
}

func (f *fakeAPI) ListArchivedSessions(ctx context.Context) ([]types.ChatSession, error) {
	f.archivedCalls++
	if f.failWith != nil {
		return nil, f.failWith
	}
	return append([]types.ChatSession(nil), f.archived...), nil
}

func (f *fakeAPI) ListSessionMessages(ctx context.Context, sessionID string) ([]*types.ChatMessage, error) {
	f.messagesCalls++
	if f.failWith != nil {
		return nil, f.failWith
	}
	list, ok := f.messages[sessionID]
	if !ok {
		return nil, errors.New("fakeAPI.ListSessionMessages", i18n.ERROR_NOT_FOUND, nil).Code(http.StatusNotFound)
	}
	return list, nil
}

func (f *fakeAPI) SendMessage(ctx context.Context, sessionID string, args types.CreateChatMessageArgs) (*SubmitResult, error) {
	f.sendKeys = append(f.sendKeys, args.ClientMessageID)
	if f.failWith != nil {
		return nil, f.failWith
	}
	if f.sendFailures > 0 {
		f.sendFailures--
		return nil, errors.New("fakeAPI.SendMessage", i18n.ERROR_INTERNAL, nil).Code(http.StatusBadGateway)
	}
	user := &types.ChatMessage{ID: args.ClientMessageID + "-u", SessionID: sessionID, Role: types.MESSAGE_ROLE_USER, Content: args.Message, ClientMessageID: args.ClientMessageID}
	assistant := &types.ChatMessage{ID: args.ClientMessageID + "-a", SessionID: sessionID, Role: types.MESSAGE_ROLE_ASSISTANT, Content: "reply", ClientMessageID: args.ClientMessageID}
	f.messages[sessionID] = append(f.messages[sessionID], user, assistant)
	f.active.MessageCount += 2
	return &SubmitResult{UserMessage: user, AssistantMessage: assistant}, nil
}

func (f *fakeAPI) seedActive(id string, messageIDs ...string) {
	s := f.session(id, false, int64(len(messageIDs)))
	f.active = &s
	var list []*types.ChatMessage
	for _, mid := range messageIDs {
		list = append(list, &types.ChatMessage{ID: mid, SessionID: id, Role: types.MESSAGE_ROLE_USER, Content: mid})
	}
	f.messages[id] = list
}

func TestRefreshActiveSessionFetchesOnFirstRun(t *testing.T) {
	api := newFakeAPI()
	api.seedActive("session-1", "m1", "m2")
	cache := NewSessionCache(api, NewMemoryStorage())

	envelope, err := cache.RefreshActiveSession(context.Background(), false)
	require.NoError(t, err)
	require.Equal(t, "session-1", envelope.Session.ID)
	require.Len(t, envelope.Messages, 2)
	require.Equal(t, "m2", envelope.Checkpoint.LastMessageID)
	require.EqualValues(t, 2, envelope.Checkpoint.MessageCount)
	require.Equal(t, 1, api.messagesCalls)
}

func TestRefreshActiveSessionSkipsFetchWhenCheckpointMatches(t *testing.T) {
	api := newFakeAPI()
	api.seedActive("session-1", "m1", "m2")
	cache := NewSessionCache(api, NewMemoryStorage())

	_, err := cache.RefreshActiveSession(context.Background(), false)
	require.NoError(t, err)
	_, err = cache.RefreshActiveSession(context.Background(), false)
	require.NoError(t, err)
	require.Equal(t, 1, api.messagesCalls, "matching checkpoint must reuse cached messages")

	// server gained a message, count moved, fetch again
	api.active.MessageCount = 3
	api.messages["session-1"] = append(api.messages["session-1"], &types.ChatMessage{ID: "m3", SessionID: "session-1"})
	envelope, err := cache.RefreshActiveSession(context.Background(), false)
	require.NoError(t, err)
	require.Equal(t, 2, api.messagesCalls)
	require.Equal(t, "m3", envelope.Checkpoint.LastMessageID)
}

func TestRefreshActiveSessionForceRefetches(t *testing.T) {
	api := newFakeAPI()
	api.seedActive("session-1", "m1")
	cache := NewSessionCache(api, NewMemoryStorage())

	_, err := cache.RefreshActiveSession(context.Background(), false)
	require.NoError(t, err)
	_, err = cache.RefreshActiveSession(context.Background(), true)
	require.NoError(t, err)
	require.Equal(t, 2, api.messagesCalls)
}

func TestRefreshActiveSessionClearsWhenServerHasNone(t *testing.T) {
	api := newFakeAPI()
	api.seedActive("session-1", "m1")
	storage := NewMemoryStorage()
	cache := NewSessionCache(api, storage)

	_, err := cache.RefreshActiveSession(context.Background(), false)
	require.NoError(t, err)

	api.active = nil
	envelope, err := cache.RefreshActiveSession(context.Background(), false)
	require.NoError(t, err)
	require.Nil(t, envelope)
	require.Nil(t, cache.ActiveSession())

	var persisted CacheEnvelope
	ok, err := storage.Load(activeEnvelopeKey, &persisted)
	require.NoError(t, err)
	require.False(t, ok, "cleared mirror must not survive a reload")
}

func TestHydrateRestoresPersistedEnvelope(t *testing.T) {
	api := newFakeAPI()
	api.seedActive("session-1", "m1", "m2")
	storage := NewMemoryStorage()

	first := NewSessionCache(api, storage)
	_, err := first.RefreshActiveSession(context.Background(), false)
	require.NoError(t, err)

	second := NewSessionCache(api, storage)
	second.Hydrate()
	require.NotNil(t, second.ActiveSession())
	require.Equal(t, "session-1", second.ActiveSession().ID)
	require.Len(t, second.ActiveMessages(), 2)

	// checkpoint survives, so the next refresh still skips the fetch
	_, err = second.RefreshActiveSession(context.Background(), false)
	require.NoError(t, err)
	require.Equal(t, 1, api.messagesCalls)
}

func TestLoadArchivedSessionsCachesList(t *testing.T) {
	api := newFakeAPI()
	api.archived = []types.ChatSession{api.session("old-1", true, 2)}
	cache := NewSessionCache(api, NewMemoryStorage())

	list, err := cache.LoadArchivedSessions(context.Background(), false)
	require.NoError(t, err)
	require.Len(t, list, 1)

	_, err = cache.LoadArchivedSessions(context.Background(), false)
	require.NoError(t, err)
	require.Equal(t, 1, api.archivedCalls)

	_, err = cache.LoadArchivedSessions(context.Background(), true)
	require.NoError(t, err)
	require.Equal(t, 2, api.archivedCalls)
}

func TestPreviewArchivedSessionMemoizes(t *testing.T) {
	api := newFakeAPI()
	api.archived = []types.ChatSession{api.session("old-1", true, 1)}
	api.messages["old-1"] = []*types.ChatMessage{{ID: "m1", SessionID: "old-1"}}
	cache := NewSessionCache(api, NewMemoryStorage())

	first, err := cache.PreviewArchivedSession(context.Background(), "old-1")
	require.NoError(t, err)
	require.Len(t, first, 1)

	_, err = cache.PreviewArchivedSession(context.Background(), "old-1")
	require.NoError(t, err)
	require.Equal(t, 1, api.messagesCalls, "second preview must come from the memo")
}

func TestPreviewActiveSessionUsesMirror(t *testing.T) {
	api := newFakeAPI()
	api.seedActive("session-1", "m1")
	cache := NewSessionCache(api, NewMemoryStorage())

	_, err := cache.RefreshActiveSession(context.Background(), false)
	require.NoError(t, err)

	list, err := cache.PreviewArchivedSession(context.Background(), "session-1")
	require.NoError(t, err)
	require.Len(t, list, 1)
	require.Equal(t, 1, api.messagesCalls, "active session preview costs no extra fetch")
}

func TestStartNewChatSessionOptimisticallyArchives(t *testing.T) {
	api := newFakeAPI()
	api.seedActive("session-1", "m1")
	cache := NewSessionCache(api, NewMemoryStorage())

	_, err := cache.RefreshActiveSession(context.Background(), false)
	require.NoError(t, err)

	fresh, err := cache.StartNewChatSession(context.Background())
	require.NoError(t, err)
	require.NotEqual(t, "session-1", fresh.ID)

	require.Equal(t, fresh.ID, cache.ActiveSession().ID)
	archived, err := cache.LoadArchivedSessions(context.Background(), false)
	require.NoError(t, err)
	require.Len(t, archived, 1)
	require.Equal(t, "session-1", archived[0].ID)
	require.True(t, archived[0].Archived)
}

func TestActivateArchivedSessionEvictsPreview(t *testing.T) {
	api := newFakeAPI()
	api.seedActive("session-2", "m2")
	api.archived = []types.ChatSession{api.session("session-1", true, 1)}
	api.messages["session-1"] = []*types.ChatMessage{{ID: "m1", SessionID: "session-1"}}
	cache := NewSessionCache(api, NewMemoryStorage())

	_, err := cache.PreviewArchivedSession(context.Background(), "session-1")
	require.NoError(t, err)

	restored, err := cache.ActivateArchivedSession(context.Background(), "session-1")
	require.NoError(t, err)
	require.Equal(t, "session-1", restored.ID)

	require.Equal(t, "session-1", cache.ActiveSession().ID)
	require.Empty(t, cache.previews, "forced archive reload drops the memoized previews")
}

func TestDeleteArchivedSessionLocalMutation(t *testing.T) {
	api := newFakeAPI()
	api.archived = []types.ChatSession{api.session("old-1", true, 1), api.session("old-2", true, 1)}
	api.messages["old-1"] = []*types.ChatMessage{{ID: "m1", SessionID: "old-1"}}
	cache := NewSessionCache(api, NewMemoryStorage())

	_, err := cache.LoadArchivedSessions(context.Background(), false)
	require.NoError(t, err)
	_, err = cache.PreviewArchivedSession(context.Background(), "old-1")
	require.NoError(t, err)

	require.NoError(t, cache.DeleteArchivedSession(context.Background(), "old-1"))

	list, err := cache.LoadArchivedSessions(context.Background(), false)
	require.NoError(t, err)
	require.Len(t, list, 1)
	require.Equal(t, "old-2", list[0].ID)

	// preview is gone and a re-fetch hits the server's 404
	_, err = cache.PreviewArchivedSession(context.Background(), "old-1")
	require.Error(t, err)
	require.True(t, errors.IsNotFound(err))
}

func TestLastErrorSurfacesAndClears(t *testing.T) {
	api := newFakeAPI()
	api.failWith = errors.New("fakeAPI.down", i18n.ERROR_INTERNAL, nil).Code(http.StatusServiceUnavailable)
	cache := NewSessionCache(api, NewMemoryStorage())

	_, err := cache.RefreshActiveSession(context.Background(), false)
	require.Error(t, err)

	require.Error(t, cache.LastError())
	require.NoError(t, cache.LastError(), "reading the last error clears it")
}

func TestSendMessageFoldsIntoMirror(t *testing.T) {
	api := newFakeAPI()
	api.seedActive("session-1")
	cache := NewSessionCache(api, NewMemoryStorage())

	result, err := cache.SendMessage(context.Background(), "hello", nil)
	require.NoError(t, err)
	require.Equal(t, "hello", result.UserMessage.Content)

	require.Len(t, cache.ActiveMessages(), 2)
	require.Equal(t, result.AssistantMessage.ID, cache.active.Checkpoint.LastMessageID)

	// the folded checkpoint matches the server count, no refetch needed
	_, err = cache.RefreshActiveSession(context.Background(), false)
	require.NoError(t, err)
	require.Equal(t, 1, api.messagesCalls)
}

func TestSendMessageRetryReusesIdempotencyKey(t *testing.T) {
	api := newFakeAPI()
	api.seedActive("session-1")
	api.sendFailures = 1
	cache := NewSessionCache(api, NewMemoryStorage())

	_, err := cache.SendMessage(context.Background(), "hello", nil)
	require.Error(t, err)
	require.True(t, errors.IsRetryable(err))

	result, err := cache.SendMessage(context.Background(), "hello", nil)
	require.NoError(t, err)

	require.Len(t, api.sendKeys, 2)
	require.Equal(t, api.sendKeys[0], api.sendKeys[1], "retry must resubmit under the original key")
	require.Equal(t, api.sendKeys[1], result.UserMessage.ClientMessageID)
	require.Len(t, api.messages["session-1"], 2, "one logical turn, one user row and one reply")

	// the next logical message gets its own key
	_, err = cache.SendMessage(context.Background(), "something else", nil)
	require.NoError(t, err)
	require.Len(t, api.sendKeys, 3)
	require.NotEqual(t, api.sendKeys[1], api.sendKeys[2])
}
