package v1

import (
	"context"
	"database/sql"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/samber/lo"

	"github.com/lapomascherj/atmo-core/app/core"
	"github.com/lapomascherj/atmo-core/pkg/errors"
	"github.com/lapomascherj/atmo-core/pkg/extractor"
	"github.com/lapomascherj/atmo-core/pkg/i18n"
	"github.com/lapomascherj/atmo-core/pkg/types"
	"github.com/lapomascherj/atmo-core/pkg/utils"
)

const sessionTitleMaxRunes = 30

type ChatLogic struct {
	ctx  context.Context
	core *core.Core
	UserInfo
}

func NewChatLogic(ctx context.Context, core *core.Core) *ChatLogic {
	return &ChatLogic{
		ctx:      ctx,
		core:     core,
		UserInfo: SetupUserInfo(ctx, core),
	}
}

// MessageResult is the gateway's answer for one submitted user message.
// Replayed marks a response rebuilt from an earlier submission with the
// same client message id.
type MessageResult struct {
	UserMessage      *types.ChatMessage `json:"user_message"`
	AssistantMessage *types.ChatMessage `json:"assistant_message"`
	NextSteps        []string           `json:"next_steps,omitempty"`
	EntityCount      int64              `json:"entity_count"`
	Replayed         bool               `json:"replayed"`
}

// SubmitMessage appends one user message to the session and produces the
// assistant reply. Duplicate submissions with the same client message id
// return the stored outcome instead of running the extractor again; a
// duplicate whose extraction failed the first time retries extraction
// without writing a second user row.
func (l *ChatLogic) SubmitMessage(sessionID string, args types.CreateChatMessageArgs) (*MessageResult, error) {
	if !l.core.Cfg().Chat.Enabled {
		return nil, errors.New("ChatLogic.SubmitMessage.disabled", i18n.ERROR_CHAT_DISABLED, nil).Code(http.StatusForbidden)
	}

	owner := l.GetUserInfo().User
	session, err := l.core.Store().ChatSessionStore().Get(l.ctx, owner, sessionID)
	if err != nil && err != sql.ErrNoRows {
		return nil, errors.New("ChatLogic.SubmitMessage.ChatSessionStore.Get", i18n.ERROR_INTERNAL, err)
	}
	if session == nil {
		return nil, errors.New("ChatLogic.SubmitMessage.notfound", i18n.ERROR_NOT_FOUND, nil).Code(http.StatusNotFound)
	}
	if session.Archived {
		return nil, errors.New("ChatLogic.SubmitMessage.archived", i18n.ERROR_CONFLICT, nil).Code(http.StatusConflict)
	}

	userMsg, err := l.core.Store().ChatMessageStore().GetByClientMessageID(l.ctx, sessionID, args.ClientMessageID, types.MESSAGE_ROLE_USER)
	if err != nil && err != sql.ErrNoRows {
		return nil, errors.New("ChatLogic.SubmitMessage.ChatMessageStore.GetByClientMessageID", i18n.ERROR_INTERNAL, err)
	}

	if userMsg != nil {
		// Same key seen before. If the assistant reply landed, replay it.
		reply, err := l.core.Store().ChatMessageStore().GetByClientMessageID(l.ctx, sessionID, args.ClientMessageID, types.MESSAGE_ROLE_ASSISTANT)
		if err != nil && err != sql.ErrNoRows {
			return nil, errors.New("ChatLogic.SubmitMessage.ChatMessageStore.GetReply", i18n.ERROR_INTERNAL, err)
		}
		if reply != nil {
			count, err := l.core.Store().ParsedEntityStore().CountBySourceMessage(l.ctx, userMsg.ID)
			if err != nil {
				return nil, errors.New("ChatLogic.SubmitMessage.ParsedEntityStore.CountBySourceMessage", i18n.ERROR_INTERNAL, err)
			}
			return &MessageResult{
				UserMessage:      userMsg,
				AssistantMessage: reply,
				EntityCount:      count,
				Replayed:         true,
			}, nil
		}
		// Extraction failed last time, the user row survived. Retry from it.
		return l.respond(session, userMsg)
	}

	userMsg = &types.ChatMessage{
		ID:              utils.GenUniqIDStr(),
		SessionID:       sessionID,
		Role:            types.MESSAGE_ROLE_USER,
		Content:         args.Message,
		ClientMessageID: args.ClientMessageID,
		Metadata:        args.Metadata,
		CreatedAt:       time.Now().Unix(),
	}

	err = l.core.Store().Transaction(l.ctx, func(ctx context.Context) error {
		if err := l.core.Store().ChatMessageStore().Create(ctx, userMsg); err != nil {
			return errors.New("ChatLogic.SubmitMessage.ChatMessageStore.Create", i18n.ERROR_INTERNAL, err)
		}
		if err := l.core.Store().ChatSessionStore().IncrMessageCount(ctx, sessionID, 1); err != nil {
			return errors.New("ChatLogic.SubmitMessage.ChatSessionStore.IncrMessageCount", i18n.ERROR_INTERNAL, err)
		}
		if session.MessageCount == 0 {
			title := utils.TruncateTitle(args.Message, sessionTitleMaxRunes)
			if err := l.core.Store().ChatSessionStore().UpdateTitle(ctx, sessionID, title); err != nil {
				return errors.New("ChatLogic.SubmitMessage.ChatSessionStore.UpdateTitle", i18n.ERROR_INTERNAL, err)
			}
			session.Title = title
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return l.respond(session, userMsg)
}

// respond runs the extractor for the stored user message and persists the
// assistant reply plus the mined entities. The reply row carries the user
// message's client id so replays can find it.
func (l *ChatLogic) respond(session *types.ChatSession, userMsg *types.ChatMessage) (*MessageResult, error) {
	locked, err := l.core.TryLock(l.ctx, "chat:session:"+session.ID)
	if err != nil {
		slog.Error("failed to take session lock", slog.String("session_id", session.ID), slog.String("error", err.Error()))
	}
	if !locked {
		return nil, errors.New("ChatLogic.respond.locked", i18n.ERROR_CONFLICT, nil).Code(http.StatusConflict)
	}
	defer l.core.Unlock(l.ctx, "chat:session:"+session.ID)

	owner := session.OwnerID
	history, err := l.core.Store().ChatMessageStore().ListLatestSessionMessages(l.ctx, session.ID, uint64(l.core.Cfg().Chat.HistoryLimitOrDefault()))
	if err != nil {
		return nil, errors.New("ChatLogic.respond.ChatMessageStore.ListLatestSessionMessages", i18n.ERROR_INTERNAL, err)
	}
	// the user message itself is already in history
	history = lo.Filter(history, func(m *types.ChatMessage, _ int) bool {
		return m.ID != userMsg.ID
	})

	activeProjects, err := l.core.Store().ProjectStore().ListActiveNames(l.ctx, owner, 20)
	if err != nil {
		return nil, errors.New("ChatLogic.respond.ProjectStore.ListActiveNames", i18n.ERROR_INTERNAL, err)
	}

	ctx, cancel := context.WithTimeout(l.ctx, time.Duration(l.core.Cfg().Chat.ExtractTimeoutOrDefault())*time.Second)
	defer cancel()

	start := time.Now()
	resp, err := l.core.Extractor().Extract(ctx, extractor.Request{
		OwnerID:        owner,
		Message:        userMsg.Content,
		RecentHistory:  history,
		ActiveProjects: activeProjects,
	})
	l.core.Metrics().ExtractObserve(l.core.Cfg().AI.Model, start)
	if err != nil {
		l.core.Metrics().ExtractError(l.core.Cfg().AI.Model)
		// user message stays, the client resubmits with the same key
		return nil, errors.New("ChatLogic.respond.Extractor.Extract", i18n.ERROR_EXTRACTION, err).Code(http.StatusBadGateway)
	}

	assistantMsg := &types.ChatMessage{
		ID:              utils.GenUniqIDStr(),
		SessionID:       session.ID,
		Role:            types.MESSAGE_ROLE_ASSISTANT,
		Content:         resp.Reply,
		ClientMessageID: userMsg.ClientMessageID,
		CreatedAt:       time.Now().Unix(),
	}
	if len(resp.NextSteps) > 0 {
		assistantMsg.Metadata = types.MessageMetadata{"next_steps": resp.NextSteps}
	}

	entities := l.buildEntities(owner, userMsg.ID, resp.Entities)

	err = l.core.Store().Transaction(l.ctx, func(ctx context.Context) error {
		if err := l.core.Store().ChatMessageStore().Create(ctx, assistantMsg); err != nil {
			return errors.New("ChatLogic.respond.ChatMessageStore.Create", i18n.ERROR_INTERNAL, err)
		}
		if err := l.core.Store().ChatSessionStore().IncrMessageCount(ctx, session.ID, 1); err != nil {
			return errors.New("ChatLogic.respond.ChatSessionStore.IncrMessageCount", i18n.ERROR_INTERNAL, err)
		}
		if len(entities) > 0 {
			if err := l.core.Store().ParsedEntityStore().BatchCreate(ctx, entities); err != nil {
				return errors.New("ChatLogic.respond.ParsedEntityStore.BatchCreate", i18n.ERROR_INTERNAL, err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if len(entities) > 0 {
		ids := lo.Map(entities, func(e types.ParsedEntity, _ int) string { return e.ID })
		if l.core.Cfg().Chat.SyncReconcile {
			if _, err := NewReconcileLogic(l.ctx, l.core).Reconcile(ids...); err != nil {
				// sweep picks the rows up later, submit still succeeds
				slog.Error("inline reconcile failed", slog.String("session_id", session.ID), slog.String("error", err.Error()))
			}
		} else if queued, err := l.core.EnqueueReconcile(l.ctx, ids); err != nil {
			slog.Error("failed to enqueue reconcile task", slog.String("session_id", session.ID), slog.String("error", err.Error()))
		} else if !queued {
			slog.Debug("no reconcile worker attached, rows wait for the sweep", slog.Int("entity_count", len(ids)))
		}
	}

	return &MessageResult{
		UserMessage:      userMsg,
		AssistantMessage: assistantMsg,
		NextSteps:        resp.NextSteps,
		EntityCount:      int64(len(entities)),
	}, nil
}

func (l *ChatLogic) buildEntities(owner, sourceMessageID string, candidates []extractor.Candidate) []types.ParsedEntity {
	now := time.Now().Unix()
	var out []types.ParsedEntity
	for _, candidate := range candidates {
		if !candidate.Type.Valid() || len(candidate.Data) == 0 {
			slog.Warn("dropping malformed entity candidate", slog.String("type", string(candidate.Type)), slog.String("source_message_id", sourceMessageID))
			continue
		}
		out = append(out, types.ParsedEntity{
			ID:              utils.GenUniqIDStr(),
			OwnerID:         owner,
			SourceMessageID: sourceMessageID,
			EntityType:      candidate.Type,
			EntityData:      json.RawMessage(candidate.Data),
			CreatedAt:       now,
		})
	}
	return out
}

// ListSessionMessages pages through a session's history, oldest first.
func (l *ChatLogic) ListSessionMessages(sessionID string, page, pageSize uint64) ([]*types.ChatMessage, int64, error) {
	if _, err := NewChatSessionLogic(l.ctx, l.core).CheckUserChatSession(sessionID); err != nil {
		return nil, 0, err
	}

	list, err := l.core.Store().ChatMessageStore().ListSessionMessages(l.ctx, sessionID, page, pageSize)
	if err != nil {
		return nil, 0, errors.New("ChatLogic.ListSessionMessages.ChatMessageStore.ListSessionMessages", i18n.ERROR_INTERNAL, err)
	}

	total, err := l.core.Store().ChatMessageStore().TotalSessionMessages(l.ctx, sessionID)
	if err != nil {
		return nil, 0, errors.New("ChatLogic.ListSessionMessages.ChatMessageStore.TotalSessionMessages", i18n.ERROR_INTERNAL, err)
	}
	return list, total, nil
}
