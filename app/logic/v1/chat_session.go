package v1

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"time"

	"github.com/lapomascherj/atmo-core/app/core"
	"github.com/lapomascherj/atmo-core/app/store/sqlstore"
	"github.com/lapomascherj/atmo-core/pkg/errors"
	"github.com/lapomascherj/atmo-core/pkg/i18n"
	"github.com/lapomascherj/atmo-core/pkg/types"
	"github.com/lapomascherj/atmo-core/pkg/utils"
)

type ChatSessionLogic struct {
	ctx  context.Context
	core *core.Core
	UserInfo
}

func NewChatSessionLogic(ctx context.Context, core *core.Core) *ChatSessionLogic {
	return &ChatSessionLogic{
		ctx:      ctx,
		core:     core,
		UserInfo: SetupUserInfo(ctx, core),
	}
}

// CheckUserChatSession loads the session and verifies it belongs to the
// request user.
func (l *ChatSessionLogic) CheckUserChatSession(sessionID string) (*types.ChatSession, error) {
	owner := l.GetUserInfo().User
	session, err := l.core.Store().ChatSessionStore().Get(l.ctx, owner, sessionID)
	if err != nil && err != sql.ErrNoRows {
		return nil, errors.New("ChatSessionLogic.CheckUserChatSession.ChatSessionStore.Get", i18n.ERROR_INTERNAL, err)
	}
	if session == nil {
		return nil, errors.New("ChatSessionLogic.CheckUserChatSession.notfound", i18n.ERROR_NOT_FOUND, nil).Code(http.StatusNotFound)
	}

	return session, nil
}

// GetActiveSession returns the single non-archived session of the user,
// or a 404 error when none exists.
func (l *ChatSessionLogic) GetActiveSession() (*types.ChatSession, error) {
	session, err := l.core.Store().ChatSessionStore().GetActive(l.ctx, l.GetUserInfo().User)
	if err != nil && err != sql.ErrNoRows {
		return nil, errors.New("ChatSessionLogic.GetActiveSession.ChatSessionStore.GetActive", i18n.ERROR_INTERNAL, err)
	}
	if session == nil {
		return nil, errors.New("ChatSessionLogic.GetActiveSession.notfound", i18n.ERROR_NOT_FOUND, nil).Code(http.StatusNotFound)
	}
	return session, nil
}

// GetOrCreateActiveSession returns the user's active session, creating one
// when the user has none. A concurrent create that hits the one-active-session
// index is resolved by re-reading the winner's row.
func (l *ChatSessionLogic) GetOrCreateActiveSession() (*types.ChatSession, error) {
	store := l.core.Store().ChatSessionStore()
	owner := l.GetUserInfo().User

	session, err := store.GetActive(l.ctx, owner)
	if err != nil && err != sql.ErrNoRows {
		return nil, errors.New("ChatSessionLogic.GetOrCreateActiveSession.ChatSessionStore.GetActive", i18n.ERROR_INTERNAL, err)
	}
	if session != nil {
		return session, nil
	}

	fresh := l.newSession(owner)
	if err = store.Create(l.ctx, fresh); err != nil {
		if sqlstore.IsUniqueViolation(err) {
			if session, err = store.GetActive(l.ctx, owner); err != nil {
				return nil, errors.New("ChatSessionLogic.GetOrCreateActiveSession.ChatSessionStore.Retry", i18n.ERROR_INTERNAL, err)
			}
			return session, nil
		}
		return nil, errors.New("ChatSessionLogic.GetOrCreateActiveSession.ChatSessionStore.Create", i18n.ERROR_INTERNAL, err)
	}

	return &fresh, nil
}

// CreateNewSession archives the current active session, if any, and opens a
// fresh one in the same transaction. Two racing calls serialize on the
// archived row lock, the loser surfaces a conflict the caller retries once.
func (l *ChatSessionLogic) CreateNewSession() (*types.ChatSession, error) {
	owner := l.GetUserInfo().User
	fresh := l.newSession(owner)

	err := l.core.Store().Transaction(l.ctx, func(ctx context.Context) error {
		current, err := l.core.Store().ChatSessionStore().GetActiveForUpdate(ctx, owner)
		if err != nil && err != sql.ErrNoRows {
			return errors.New("ChatSessionLogic.CreateNewSession.ChatSessionStore.GetActiveForUpdate", i18n.ERROR_INTERNAL, err)
		}

		if current != nil {
			if err = l.core.Store().ChatSessionStore().SetArchived(ctx, current.ID, true); err != nil {
				return errors.New("ChatSessionLogic.CreateNewSession.ChatSessionStore.SetArchived", i18n.ERROR_INTERNAL, err)
			}
		}

		if err = l.core.Store().ChatSessionStore().Create(ctx, fresh); err != nil {
			if sqlstore.IsUniqueViolation(err) {
				return errors.New("ChatSessionLogic.CreateNewSession.ChatSessionStore.Create.conflict", i18n.ERROR_CONFLICT, err).Code(http.StatusConflict)
			}
			return errors.New("ChatSessionLogic.CreateNewSession.ChatSessionStore.Create", i18n.ERROR_INTERNAL, err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return &fresh, nil
}

func (l *ChatSessionLogic) ListArchivedSessions() ([]types.ChatSession, error) {
	list, err := l.core.Store().ChatSessionStore().ListArchived(l.ctx, l.GetUserInfo().User)
	if err != nil {
		return nil, errors.New("ChatSessionLogic.ListArchivedSessions.ChatSessionStore.ListArchived", i18n.ERROR_INTERNAL, err)
	}
	return list, nil
}

// ActivateArchivedSession swaps the given archived session back to active,
// archiving whichever session currently holds the slot.
func (l *ChatSessionLogic) ActivateArchivedSession(sessionID string) (*types.ChatSession, error) {
	owner := l.GetUserInfo().User

	var target *types.ChatSession
	err := l.core.Store().Transaction(l.ctx, func(ctx context.Context) error {
		var err error
		target, err = l.core.Store().ChatSessionStore().GetForUpdate(ctx, owner, sessionID)
		if err != nil && err != sql.ErrNoRows {
			return errors.New("ChatSessionLogic.ActivateArchivedSession.ChatSessionStore.GetForUpdate", i18n.ERROR_INTERNAL, err)
		}
		if target == nil {
			return errors.New("ChatSessionLogic.ActivateArchivedSession.notfound", i18n.ERROR_NOT_FOUND, nil).Code(http.StatusNotFound)
		}
		if !target.Archived {
			// only archived sessions can be activated, the active one is
			// hidden from this operation like a foreign row
			return errors.New("ChatSessionLogic.ActivateArchivedSession.active", i18n.ERROR_NOT_FOUND, nil).Code(http.StatusNotFound)
		}

		current, err := l.core.Store().ChatSessionStore().GetActiveForUpdate(ctx, owner)
		if err != nil && err != sql.ErrNoRows {
			return errors.New("ChatSessionLogic.ActivateArchivedSession.ChatSessionStore.GetActiveForUpdate", i18n.ERROR_INTERNAL, err)
		}
		if current != nil {
			if err = l.core.Store().ChatSessionStore().SetArchived(ctx, current.ID, true); err != nil {
				return errors.New("ChatSessionLogic.ActivateArchivedSession.ChatSessionStore.Archive", i18n.ERROR_INTERNAL, err)
			}
		}

		if err = l.core.Store().ChatSessionStore().SetArchived(ctx, target.ID, false); err != nil {
			if sqlstore.IsUniqueViolation(err) {
				return errors.New("ChatSessionLogic.ActivateArchivedSession.conflict", i18n.ERROR_CONFLICT, err).Code(http.StatusConflict)
			}
			return errors.New("ChatSessionLogic.ActivateArchivedSession.ChatSessionStore.Unarchive", i18n.ERROR_INTERNAL, err)
		}
		target.Archived = false
		return nil
	})
	if err != nil {
		return nil, err
	}

	return target, nil
}

// DeleteSession removes the session and every message in it.
func (l *ChatSessionLogic) DeleteSession(sessionID string) error {
	if _, err := l.CheckUserChatSession(sessionID); err != nil {
		return err
	}

	return l.core.Store().Transaction(l.ctx, func(ctx context.Context) error {
		if err := l.core.Store().ChatMessageStore().DeleteSessionMessages(ctx, sessionID); err != nil {
			return errors.New("ChatSessionLogic.DeleteSession.ChatMessageStore.DeleteSessionMessages", i18n.ERROR_INTERNAL, err)
		}
		if err := l.core.Store().ChatSessionStore().Delete(ctx, sessionID); err != nil {
			return errors.New("ChatSessionLogic.DeleteSession.ChatSessionStore.Delete", i18n.ERROR_INTERNAL, err)
		}
		return nil
	})
}

func (l *ChatSessionLogic) newSession(owner string) types.ChatSession {
	now := time.Now().Unix()
	return types.ChatSession{
		ID:        utils.GenUniqIDStr(),
		OwnerID:   owner,
		Title:     fmt.Sprintf("Session At: %s", time.Now().Format("02/01 15:04:05")),
		CreatedAt: now,
		UpdatedAt: now,
	}
}
