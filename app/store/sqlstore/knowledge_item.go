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
		provider.stores.KnowledgeItemStore = NewKnowledgeItemStore(provider)
	})
}

type KnowledgeItemStore struct {
	CommonFields
}

func NewKnowledgeItemStore(provider SqlProviderAchieve) *KnowledgeItemStore {
	repo := &KnowledgeItemStore{}
	repo.SetProvider(provider)
	repo.SetTable(types.TABLE_KNOWLEDGE_ITEM)
	repo.SetAllColumns("id", "owner_id", "title", "content", "tags", "created_at", "updated_at")
	return repo
}

func (s *KnowledgeItemStore) Create(ctx context.Context, data types.KnowledgeItem) error {
	if data.CreatedAt == 0 {
		data.CreatedAt = time.Now().Unix()
	}
	if data.UpdatedAt == 0 {
		data.UpdatedAt = data.CreatedAt
	}

	query := sq.Insert(s.GetTable()).
		Columns("id", "owner_id", "title", "content", "tags", "created_at", "updated_at").
		Values(data.ID, data.OwnerID, data.Title, data.Content, data.Tags, data.CreatedAt, data.UpdatedAt)

	queryString, args, err := query.ToSql()
	if err != nil {
		return ErrorSqlBuild(err)
	}

	if _, err = s.GetMaster(ctx).Exec(queryString, args...); err != nil {
		return err
	}
	return nil
}

// GetByTitle is the knowledge dedup key, case-insensitive per owner.
func (s *KnowledgeItemStore) GetByTitle(ctx context.Context, ownerID, title string) (*types.KnowledgeItem, error) {
	query := sq.Select(s.GetAllColumns()...).From(s.GetTable()).
		Where(sq.Eq{"owner_id": ownerID}).
		Where(sq.Expr("LOWER(title) = LOWER(?)", title)).
		OrderBy("created_at ASC", "id ASC").
		Limit(1)

	queryString, args, err := query.ToSql()
	if err != nil {
		return nil, ErrorSqlBuild(err)
	}

	var res types.KnowledgeItem
	if err = s.GetReplica(ctx).Get(&res, queryString, args...); err != nil {
		return nil, err
	}
	return &res, nil
}

func (s *KnowledgeItemStore) Update(ctx context.Context, data types.KnowledgeItem) error {
	query := sq.Update(s.GetTable()).Where(sq.Eq{"id": data.ID}).
		Set("content", data.Content).
		Set("tags", data.Tags).
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

func (s *KnowledgeItemStore) List(ctx context.Context, ownerID string) ([]types.KnowledgeItem, error) {
	query := sq.Select(s.GetAllColumns()...).From(s.GetTable()).
		Where(sq.Eq{"owner_id": ownerID}).
		OrderBy("created_at DESC")

	queryString, args, err := query.ToSql()
	if err != nil {
		return nil, ErrorSqlBuild(err)
	}

	var list []types.KnowledgeItem
	if err = s.GetReplica(ctx).Select(&list, queryString, args...); err != nil {
		return nil, err
	}
	return list, nil
}
