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
		provider.stores.ProjectStore = NewProjectStore(provider)
	})
}

type ProjectStore struct {
	CommonFields
}

func NewProjectStore(provider SqlProviderAchieve) *ProjectStore {
	repo := &ProjectStore{}
	repo.SetProvider(provider)
	repo.SetTable(types.TABLE_PROJECT)
	repo.SetAllColumns("id", "owner_id", "name", "description", "priority", "status", "start_date", "target_date", "created_at", "updated_at")
	return repo
}

func (s *ProjectStore) Create(ctx context.Context, data types.Project) error {
	if data.CreatedAt == 0 {
		data.CreatedAt = time.Now().Unix()
	}
	if data.UpdatedAt == 0 {
		data.UpdatedAt = data.CreatedAt
	}

	query := sq.Insert(s.GetTable()).
		Columns("id", "owner_id", "name", "description", "priority", "status", "start_date", "target_date", "created_at", "updated_at").
		Values(data.ID, data.OwnerID, data.Name, data.Description, data.Priority, data.Status, data.StartDate, data.TargetDate, data.CreatedAt, data.UpdatedAt)

	queryString, args, err := query.ToSql()
	if err != nil {
		return ErrorSqlBuild(err)
	}

	if _, err = s.GetMaster(ctx).Exec(queryString, args...); err != nil {
		return err
	}
	return nil
}

// GetByName matches case-insensitively within the owner scope. Ties
// between rows whose names only differ in case go to the oldest row.
func (s *ProjectStore) GetByName(ctx context.Context, ownerID, name string) (*types.Project, error) {
	query := sq.Select(s.GetAllColumns()...).From(s.GetTable()).
		Where(sq.Eq{"owner_id": ownerID}).
		Where(sq.Expr("LOWER(name) = LOWER(?)", name)).
		OrderBy("created_at ASC", "id ASC").
		Limit(1)

	queryString, args, err := query.ToSql()
	if err != nil {
		return nil, ErrorSqlBuild(err)
	}

	var res types.Project
	if err = s.GetReplica(ctx).Get(&res, queryString, args...); err != nil {
		return nil, err
	}
	return &res, nil
}

// Update rewrites the mutable fields only, the id and name stay.
func (s *ProjectStore) Update(ctx context.Context, data types.Project) error {
	query := sq.Update(s.GetTable()).Where(sq.Eq{"id": data.ID}).
		Set("description", data.Description).
		Set("priority", data.Priority).
		Set("status", data.Status).
		Set("start_date", data.StartDate).
		Set("target_date", data.TargetDate).
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

func (s *ProjectStore) List(ctx context.Context, ownerID string) ([]types.Project, error) {
	query := sq.Select(s.GetAllColumns()...).From(s.GetTable()).
		Where(sq.Eq{"owner_id": ownerID}).
		OrderBy("created_at DESC")

	queryString, args, err := query.ToSql()
	if err != nil {
		return nil, ErrorSqlBuild(err)
	}

	var list []types.Project
	if err = s.GetReplica(ctx).Select(&list, queryString, args...); err != nil {
		return nil, err
	}
	return list, nil
}

// ListActiveNames feeds the extractor context.
func (s *ProjectStore) ListActiveNames(ctx context.Context, ownerID string, limit uint64) ([]string, error) {
	query := sq.Select("name").From(s.GetTable()).
		Where(sq.Eq{"owner_id": ownerID}).
		Where(sq.NotEq{"status": "completed"}).
		OrderBy("updated_at DESC").
		Limit(limit)

	queryString, args, err := query.ToSql()
	if err != nil {
		return nil, ErrorSqlBuild(err)
	}

	var names []string
	if err = s.GetReplica(ctx).Select(&names, queryString, args...); err != nil {
		return nil, err
	}
	return names, nil
}
