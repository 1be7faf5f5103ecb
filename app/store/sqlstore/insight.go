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
		provider.stores.InsightStore = NewInsightStore(provider)
	})
}

type InsightStore struct {
	CommonFields
}

func NewInsightStore(provider SqlProviderAchieve) *InsightStore {
	repo := &InsightStore{}
	repo.SetProvider(provider)
	repo.SetTable(types.TABLE_INSIGHT)
	repo.SetAllColumns("id", "owner_id", "content", "category", "created_at")
	return repo
}

func (s *InsightStore) Create(ctx context.Context, data types.Insight) error {
	if data.CreatedAt == 0 {
		data.CreatedAt = time.Now().Unix()
	}

	query := sq.Insert(s.GetTable()).
		Columns("id", "owner_id", "content", "category", "created_at").
		Values(data.ID, data.OwnerID, data.Content, data.Category, data.CreatedAt)

	queryString, args, err := query.ToSql()
	if err != nil {
		return ErrorSqlBuild(err)
	}

	if _, err = s.GetMaster(ctx).Exec(queryString, args...); err != nil {
		return err
	}
	return nil
}

// GetByContent dedups insights, which carry no name, by their full text.
func (s *InsightStore) GetByContent(ctx context.Context, ownerID, content string) (*types.Insight, error) {
	query := sq.Select(s.GetAllColumns()...).From(s.GetTable()).
		Where(sq.Eq{"owner_id": ownerID}).
		Where(sq.Expr("LOWER(content) = LOWER(?)", content)).
		OrderBy("created_at ASC", "id ASC").
		Limit(1)

	queryString, args, err := query.ToSql()
	if err != nil {
		return nil, ErrorSqlBuild(err)
	}

	var res types.Insight
	if err = s.GetReplica(ctx).Get(&res, queryString, args...); err != nil {
		return nil, err
	}
	return &res, nil
}

func (s *InsightStore) List(ctx context.Context, ownerID string) ([]types.Insight, error) {
	query := sq.Select(s.GetAllColumns()...).From(s.GetTable()).
		Where(sq.Eq{"owner_id": ownerID}).
		OrderBy("created_at DESC")

	queryString, args, err := query.ToSql()
	if err != nil {
		return nil, ErrorSqlBuild(err)
	}

	var list []types.Insight
	if err = s.GetReplica(ctx).Select(&list, queryString, args...); err != nil {
		return nil, err
	}
	return list, nil
}
