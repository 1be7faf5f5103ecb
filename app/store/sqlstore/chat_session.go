package sqlstore

import (
	"context"
	"time"

	sq "github.com/Masterminds/squirrel"

	"github.com/lapomascherj/atmo-core/pkg/register"
	"github.com/lapomascherj/atmo-core/pkg/types"
)

func init() {
	register.RegisterFunc[*Provider](RegisterKey{}, func(provider *Provider) {
		provider.stores.ChatSessionStore = NewChatSessionStore(provider)
	})
}

type ChatSessionStore struct {
	CommonFields
}

func NewChatSessionStore(provider SqlProviderAchieve) *ChatSessionStore {
	repo := &ChatSessionStore{}
	repo.SetProvider(provider)
	repo.SetTable(types.TABLE_CHAT_SESSION)
	repo.SetAllColumns("id", "owner_id", "title", "archived", "message_count", "created_at", "updated_at")
	return repo
}

// Create inserts a new active session. The partial unique index on
// (owner_id) WHERE NOT archived rejects a second active row per owner,
// callers detect the lost race with IsUniqueViolation.
func (s *ChatSessionStore) Create(ctx context.Context, data types.ChatSession) error {
	if data.CreatedAt == 0 {
		data.CreatedAt = time.Now().Unix()
	}
	if data.UpdatedAt == 0 {
		data.UpdatedAt = data.CreatedAt
	}

	query := sq.Insert(s.GetTable()).
		Columns("id", "owner_id", "title", "archived", "message_count", "created_at", "updated_at").
		Values(data.ID, data.OwnerID, data.Title, data.Archived, data.MessageCount, data.CreatedAt, data.UpdatedAt)

	queryString, args, err := query.ToSql()
	if err != nil {
		return ErrorSqlBuild(err)
	}

	if _, err = s.GetMaster(ctx).Exec(queryString, args...); err != nil {
		return err
	}
	return nil
}

func (s *ChatSessionStore) GetActive(ctx context.Context, ownerID string) (*types.ChatSession, error) {
	query := sq.Select(s.GetAllColumns()...).From(s.GetTable()).
		Where(sq.Eq{"owner_id": ownerID, "archived": false})

	queryString, args, err := query.ToSql()
	if err != nil {
		return nil, ErrorSqlBuild(err)
	}

	var res types.ChatSession
	if err = s.GetReplica(ctx).Get(&res, queryString, args...); err != nil {
		return nil, err
	}
	return &res, nil
}

// GetActiveForUpdate takes a row lock on the owner's active session so the
// archive/activate transitions serialize per owner.
func (s *ChatSessionStore) GetActiveForUpdate(ctx context.Context, ownerID string) (*types.ChatSession, error) {
	query := sq.Select(s.GetAllColumns()...).From(s.GetTable()).
		Where(sq.Eq{"owner_id": ownerID, "archived": false}).
		Suffix("FOR UPDATE")

	queryString, args, err := query.ToSql()
	if err != nil {
		return nil, ErrorSqlBuild(err)
	}

	var res types.ChatSession
	if err = s.GetReplica(ctx).Get(&res, queryString, args...); err != nil {
		return nil, err
	}
	return &res, nil
}

func (s *ChatSessionStore) Get(ctx context.Context, ownerID, sessionID string) (*types.ChatSession, error) {
	query := sq.Select(s.GetAllColumns()...).From(s.GetTable()).
		Where(sq.Eq{"owner_id": ownerID, "id": sessionID})

	queryString, args, err := query.ToSql()
	if err != nil {
		return nil, ErrorSqlBuild(err)
	}

	var res types.ChatSession
	if err = s.GetReplica(ctx).Get(&res, queryString, args...); err != nil {
		return nil, err
	}
	return &res, nil
}

func (s *ChatSessionStore) GetForUpdate(ctx context.Context, ownerID, sessionID string) (*types.ChatSession, error) {
	query := sq.Select(s.GetAllColumns()...).From(s.GetTable()).
		Where(sq.Eq{"owner_id": ownerID, "id": sessionID}).
		Suffix("FOR UPDATE")

	queryString, args, err := query.ToSql()
	if err != nil {
		return nil, ErrorSqlBuild(err)
	}

	var res types.ChatSession
	if err = s.GetReplica(ctx).Get(&res, queryString, args...); err != nil {
		return nil, err
	}
	return &res, nil
}

func (s *ChatSessionStore) SetArchived(ctx context.Context, sessionID string, archived bool) error {
	query := sq.Update(s.GetTable()).Where(sq.Eq{"id": sessionID}).
		Set("archived", archived).
		Set("updated_at", time.Now().Unix())

	queryString, args, err := query.ToSql()
	if err != nil {
		return ErrorSqlBuild(err)
	}

	if _, err = s.GetMaster(ctx).Exec(queryString, args...); err != nil {
		return err
	}
	return nil
}

func (s *ChatSessionStore) UpdateTitle(ctx context.Context, sessionID string, title string) error {
	query := sq.Update(s.GetTable()).Where(sq.Eq{"id": sessionID}).
		Set("title", title).
		Set("updated_at", time.Now().Unix())

	queryString, args, err := query.ToSql()
	if err != nil {
		return ErrorSqlBuild(err)
	}

	if _, err = s.GetMaster(ctx).Exec(queryString, args...); err != nil {
		return err
	}
	return nil
}

func (s *ChatSessionStore) IncrMessageCount(ctx context.Context, sessionID string, delta int64) error {
	query := sq.Update(s.GetTable()).Where(sq.Eq{"id": sessionID}).
		Set("message_count", sq.Expr("message_count + ?", delta)).
		Set("updated_at", time.Now().Unix())

	queryString, args, err := query.ToSql()
	if err != nil {
		return ErrorSqlBuild(err)
	}

	if _, err = s.GetMaster(ctx).Exec(queryString, args...); err != nil {
		return err
	}
	return nil
}

func (s *ChatSessionStore) ListArchived(ctx context.Context, ownerID string) ([]types.ChatSession, error) {
	query := sq.Select(s.GetAllColumns()...).From(s.GetTable()).
		Where(sq.Eq{"owner_id": ownerID, "archived": true}).
		OrderBy("updated_at DESC")

	queryString, args, err := query.ToSql()
	if err != nil {
		return nil, ErrorSqlBuild(err)
	}

	var list []types.ChatSession
	if err = s.GetReplica(ctx).Select(&list, queryString, args...); err != nil {
		return nil, err
	}
	return list, nil
}

func (s *ChatSessionStore) Delete(ctx context.Context, sessionID string) error {
	query := sq.Delete(s.GetTable()).Where(sq.Eq{"id": sessionID})

	queryString, args, err := query.ToSql()
	if err != nil {
		return ErrorSqlBuild(err)
	}

	if _, err = s.GetMaster(ctx).Exec(queryString, args...); err != nil {
		return err
	}
	return nil
}
