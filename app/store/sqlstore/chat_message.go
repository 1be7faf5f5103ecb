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
		provider.stores.ChatMessageStore = NewChatMessageStore(provider)
	})
}

type ChatMessageStore struct {
	CommonFields
}

func NewChatMessageStore(provider SqlProviderAchieve) *ChatMessageStore {
	repo := &ChatMessageStore{}
	repo.SetProvider(provider)
	repo.SetTable(types.TABLE_CHAT_MESSAGE)
	repo.SetAllColumns("id", "session_id", "role", "content", "client_message_id", "metadata", "created_at")
	return repo
}

// Create persists an immutable message. User messages carry the caller's
// client_message_id, the unique index on (session_id, client_message_id)
// makes the insert idempotent under resubmission.
func (s *ChatMessageStore) Create(ctx context.Context, data *types.ChatMessage) error {
	if data.CreatedAt == 0 {
		data.CreatedAt = time.Now().Unix()
	}

	query := sq.Insert(s.GetTable()).
		Columns("id", "session_id", "role", "content", "client_message_id", "metadata", "created_at").
		Values(data.ID, data.SessionID, data.Role, data.Content, data.ClientMessageID, data.Metadata, data.CreatedAt)

	queryString, args, err := query.ToSql()
	if err != nil {
		return ErrorSqlBuild(err)
	}

	if _, err = s.GetMaster(ctx).Exec(queryString, args...); err != nil {
		return err
	}
	return nil
}

func (s *ChatMessageStore) Exist(ctx context.Context, sessionID, clientMessageID string) (bool, error) {
	query := sq.Select("1").From(s.GetTable()).
		Where(sq.Eq{"session_id": sessionID, "client_message_id": clientMessageID, "role": types.MESSAGE_ROLE_USER}).
		Limit(1)

	queryString, args, err := query.ToSql()
	if err != nil {
		return false, ErrorSqlBuild(err)
	}

	var exist int
	if err = s.GetReplica(ctx).Get(&exist, queryString, args...); err != nil {
		return false, err
	}
	return exist == 1, nil
}

// GetByClientMessageID looks up one message of the given role for an
// idempotency key. The assistant reply is stored under the same key as the
// user message it answers.
func (s *ChatMessageStore) GetByClientMessageID(ctx context.Context, sessionID, clientMessageID string, role types.MessageRole) (*types.ChatMessage, error) {
	query := sq.Select(s.GetAllColumns()...).From(s.GetTable()).
		Where(sq.Eq{"session_id": sessionID, "client_message_id": clientMessageID, "role": role}).
		Limit(1)

	queryString, args, err := query.ToSql()
	if err != nil {
		return nil, ErrorSqlBuild(err)
	}

	var msg types.ChatMessage
	if err = s.GetReplica(ctx).Get(&msg, queryString, args...); err != nil {
		return nil, err
	}
	return &msg, nil
}

func (s *ChatMessageStore) ListSessionMessages(ctx context.Context, sessionID string, page, pageSize uint64) ([]*types.ChatMessage, error) {
	query := sq.Select(s.GetAllColumns()...).From(s.GetTable()).
		Where(sq.Eq{"session_id": sessionID}).
		OrderBy("created_at ASC", "id ASC")

	if page != types.NO_PAGING || pageSize != types.NO_PAGING {
		query = query.Limit(pageSize).Offset((page - 1) * pageSize)
	}

	queryString, args, err := query.ToSql()
	if err != nil {
		return nil, ErrorSqlBuild(err)
	}

	var list []*types.ChatMessage
	if err = s.GetReplica(ctx).Select(&list, queryString, args...); err != nil {
		return nil, err
	}
	return list, nil
}

// ListLatestSessionMessages returns the newest limit messages in
// chronological order.
func (s *ChatMessageStore) ListLatestSessionMessages(ctx context.Context, sessionID string, limit uint64) ([]*types.ChatMessage, error) {
	query := sq.Select(s.GetAllColumns()...).From(s.GetTable()).
		Where(sq.Eq{"session_id": sessionID}).
		OrderBy("created_at DESC", "id DESC").
		Limit(limit)

	queryString, args, err := query.ToSql()
	if err != nil {
		return nil, ErrorSqlBuild(err)
	}

	var list []*types.ChatMessage
	if err = s.GetReplica(ctx).Select(&list, queryString, args...); err != nil {
		return nil, err
	}

	for i, j := 0, len(list)-1; i < j; i, j = i+1, j-1 {
		list[i], list[j] = list[j], list[i]
	}
	return list, nil
}

func (s *ChatMessageStore) TotalSessionMessages(ctx context.Context, sessionID string) (int64, error) {
	query := sq.Select("COUNT(*)").From(s.GetTable()).Where(sq.Eq{"session_id": sessionID})

	queryString, args, err := query.ToSql()
	if err != nil {
		return 0, ErrorSqlBuild(err)
	}

	var total int64
	if err = s.GetReplica(ctx).Get(&total, queryString, args...); err != nil {
		return 0, err
	}
	return total, nil
}

func (s *ChatMessageStore) DeleteSessionMessages(ctx context.Context, sessionID string) error {
	query := sq.Delete(s.GetTable()).Where(sq.Eq{"session_id": sessionID})

	queryString, args, err := query.ToSql()
	if err != nil {
		return ErrorSqlBuild(err)
	}

	if _, err = s.GetMaster(ctx).Exec(queryString, args...); err != nil {
		return err
	}
	return nil
}
