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
		provider.stores.TaskStore = NewTaskStore(provider)
	})
}

type TaskStore struct {
	CommonFields
}

func NewTaskStore(provider SqlProviderAchieve) *TaskStore {
	repo := &TaskStore{}
	repo.SetProvider(provider)
	repo.SetTable(types.TABLE_TASK)
	repo.SetAllColumns("id", "owner_id", "project_id", "name", "description", "priority", "status", "due_date", "created_at", "updated_at")
	return repo
}

func (s *TaskStore) Create(ctx context.Context, data types.Task) error {
	if data.CreatedAt == 0 {
		data.CreatedAt = time.Now().Unix()
	}
	if data.UpdatedAt == 0 {
		data.UpdatedAt = data.CreatedAt
	}

	query := sq.Insert(s.GetTable()).
		Columns("id", "owner_id", "project_id", "name", "description", "priority", "status", "due_date", "created_at", "updated_at").
		Values(data.ID, data.OwnerID, data.ProjectID, data.Name, data.Description, data.Priority, data.Status, data.DueDate, data.CreatedAt, data.UpdatedAt)

	queryString, args, err := query.ToSql()
	if err != nil {
		return ErrorSqlBuild(err)
	}

	if _, err = s.GetMaster(ctx).Exec(queryString, args...); err != nil {
		return err
	}
	return nil
}

// GetByName scopes the case-insensitive match to (owner, project). An
// empty projectID addresses orphan tasks.
func (s *TaskStore) GetByName(ctx context.Context, ownerID, projectID, name string) (*types.Task, error) {
	query := sq.Select(s.GetAllColumns()...).From(s.GetTable()).
		Where(sq.Eq{"owner_id": ownerID, "project_id": projectID}).
		Where(sq.Expr("LOWER(name) = LOWER(?)", name)).
		OrderBy("created_at ASC", "id ASC").
		Limit(1)

	queryString, args, err := query.ToSql()
	if err != nil {
		return nil, ErrorSqlBuild(err)
	}

	var res types.Task
	if err = s.GetReplica(ctx).Get(&res, queryString, args...); err != nil {
		return nil, err
	}
	return &res, nil
}

func (s *TaskStore) Update(ctx context.Context, data types.Task) error {
	query := sq.Update(s.GetTable()).Where(sq.Eq{"id": data.ID}).
		Set("description", data.Description).
		Set("priority", data.Priority).
		Set("status", data.Status).
		Set("due_date", data.DueDate).
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

func (s *TaskStore) List(ctx context.Context, ownerID string) ([]types.Task, error) {
	query := sq.Select(s.GetAllColumns()...).From(s.GetTable()).
		Where(sq.Eq{"owner_id": ownerID}).
		OrderBy("created_at DESC")

	queryString, args, err := query.ToSql()
	if err != nil {
		return nil, ErrorSqlBuild(err)
	}

	var list []types.Task
	if err = s.GetReplica(ctx).Select(&list, queryString, args...); err != nil {
		return nil, err
	}
	return list, nil
}
