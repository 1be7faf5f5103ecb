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
		provider.stores.ParsedEntityStore = NewParsedEntityStore(provider)
	})
}

type ParsedEntityStore struct {
	CommonFields
}

func NewParsedEntityStore(provider SqlProviderAchieve) *ParsedEntityStore {
	repo := &ParsedEntityStore{}
	repo.SetProvider(provider)
	repo.SetTable(types.TABLE_PARSED_ENTITY)
	repo.SetAllColumns("id", "owner_id", "source_message_id", "entity_type", "entity_data", "processed", "created_at")
	return repo
}

func (s *ParsedEntityStore) BatchCreate(ctx context.Context, list []types.ParsedEntity) error {
	if len(list) == 0 {
		return nil
	}

	query := sq.Insert(s.GetTable()).
		Columns("id", "owner_id", "source_message_id", "entity_type", "entity_data", "processed", "created_at")
	for _, data := range list {
		if data.CreatedAt == 0 {
			data.CreatedAt = time.Now().Unix()
		}
		query = query.Values(data.ID, data.OwnerID, data.SourceMessageID, data.EntityType, string(data.EntityData), data.Processed, data.CreatedAt)
	}

	queryString, args, err := query.ToSql()
	if err != nil {
		return ErrorSqlBuild(err)
	}

	if _, err = s.GetMaster(ctx).Exec(queryString, args...); err != nil {
		return err
	}
	return nil
}

// ClaimUnprocessed selects up to batchSize unprocessed rows oldest first
// and locks them so a concurrent reconciler run skips them instead of
// double-processing. Must run inside a transaction.
func (s *ParsedEntityStore) ClaimUnprocessed(ctx context.Context, batchSize uint64, ids []string) ([]types.ParsedEntity, error) {
	query := sq.Select(s.GetAllColumns()...).From(s.GetTable()).
		Where(sq.Eq{"processed": false}).
		OrderBy("created_at ASC", "id ASC").
		Suffix("FOR UPDATE SKIP LOCKED")

	if len(ids) > 0 {
		query = query.Where(sq.Eq{"id": ids})
	}
	if batchSize > 0 {
		query = query.Limit(batchSize)
	}

	queryString, args, err := query.ToSql()
	if err != nil {
		return nil, ErrorSqlBuild(err)
	}

	var list []types.ParsedEntity
	if err = s.GetReplica(ctx).Select(&list, queryString, args...); err != nil {
		return nil, err
	}
	return list, nil
}

func (s *ParsedEntityStore) TotalUnprocessed(ctx context.Context) (int64, error) {
	query := sq.Select("COUNT(*)").From(s.GetTable()).Where(sq.Eq{"processed": false})

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

// MarkProcessed flips the monotonic processed flag. Only called after the
// corresponding upsert committed.
func (s *ParsedEntityStore) MarkProcessed(ctx context.Context, id string) error {
	query := sq.Update(s.GetTable()).Where(sq.Eq{"id": id}).Set("processed", true)

	queryString, args, err := query.ToSql()
	if err != nil {
		return ErrorSqlBuild(err)
	}

	if _, err = s.GetMaster(ctx).Exec(queryString, args...); err != nil {
		return err
	}
	return nil
}

func (s *ParsedEntityStore) CountBySourceMessage(ctx context.Context, sourceMessageID string) (int64, error) {
	query := sq.Select("COUNT(*)").From(s.GetTable()).Where(sq.Eq{"source_message_id": sourceMessageID})

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

func (s *ParsedEntityStore) DeleteByOwner(ctx context.Context, ownerID string) error {
	query := sq.Delete(s.GetTable()).Where(sq.Eq{"owner_id": ownerID})

	queryString, args, err := query.ToSql()
	if err != nil {
		return ErrorSqlBuild(err)
	}

	if _, err = s.GetMaster(ctx).Exec(queryString, args...); err != nil {
		return err
	}
	return nil
}
