package v1

import (
	"context"
	"database/sql"
	"log/slog"
	"time"

	"github.com/lapomascherj/atmo-core/app/core"
	"github.com/lapomascherj/atmo-core/pkg/errors"
	"github.com/lapomascherj/atmo-core/pkg/i18n"
	"github.com/lapomascherj/atmo-core/pkg/types"
	"github.com/lapomascherj/atmo-core/pkg/utils"
)

const (
	RECONCILE_ACTION_CREATED = "created"
	RECONCILE_ACTION_UPDATED = "updated"
	RECONCILE_ACTION_SKIPPED = "skipped"
)

type ReconcileLogic struct {
	ctx  context.Context
	core *core.Core
}

func NewReconcileLogic(ctx context.Context, core *core.Core) *ReconcileLogic {
	return &ReconcileLogic{
		ctx:  ctx,
		core: core,
	}
}

type ReconcileAction struct {
	EntityID   string           `json:"entity_id"`
	EntityType types.EntityType `json:"entity_type"`
	Action     string           `json:"action"`
	Name       string           `json:"name"`
}

// ReconcileError records a row that could not be applied. The row stays
// unprocessed, so its id also tells the caller what the next run will retry.
type ReconcileError struct {
	EntityID   string           `json:"entity_id"`
	EntityType types.EntityType `json:"entity_type"`
	Reason     string           `json:"reason"`
}

type ReconcileReport struct {
	Claimed int64             `json:"claimed"`
	Created int64             `json:"created"`
	Updated int64             `json:"updated"`
	Skipped int64             `json:"skipped"`
	Failed  int64             `json:"failed"`
	Total   int64             `json:"total"`
	DryRun  bool              `json:"dry_run"`
	Actions []ReconcileAction `json:"actions,omitempty"`
	Errors  []ReconcileError  `json:"errors,omitempty"`
}

// Reconcile drains unprocessed parsed entities into the workspace tables.
// With ids it touches only those rows, without it sweeps up to one batch.
// Each row is claimed with a skip-locked select so concurrent sweeps never
// double-apply; a row that fails stays unprocessed for the next run while
// the rest of the batch goes through.
func (l *ReconcileLogic) Reconcile(ids ...string) (*ReconcileReport, error) {
	report := &ReconcileReport{DryRun: l.core.Cfg().Reconcile.DryRun}

	batchSize := l.batchSize()

	if report.DryRun {
		return l.dryRun(batchSize, ids, report)
	}

	err := l.core.Store().Transaction(l.ctx, func(ctx context.Context) error {
		list, err := l.core.Store().ParsedEntityStore().ClaimUnprocessed(ctx, batchSize, ids)
		if err != nil {
			return errors.New("ReconcileLogic.Reconcile.ParsedEntityStore.ClaimUnprocessed", i18n.ERROR_INTERNAL, err)
		}
		report.Claimed = int64(len(list))

		for _, entity := range list {
			action, err := l.apply(ctx, entity)
			if err != nil {
				report.Failed++
				report.Errors = append(report.Errors, ReconcileError{
					EntityID:   entity.ID,
					EntityType: entity.EntityType,
					Reason:     err.Error(),
				})
				l.core.Metrics().ReconcileError(string(entity.EntityType))
				slog.Error("failed to reconcile entity",
					slog.String("entity_id", entity.ID),
					slog.String("entity_type", string(entity.EntityType)),
					slog.String("error", err.Error()))
				continue
			}

			if err = l.core.Store().ParsedEntityStore().MarkProcessed(ctx, entity.ID); err != nil {
				return errors.New("ReconcileLogic.Reconcile.ParsedEntityStore.MarkProcessed", i18n.ERROR_INTERNAL, err)
			}

			l.core.Metrics().Reconciled(string(entity.EntityType), action.Action)
			report.count(action.Action)
			report.Actions = append(report.Actions, action)
		}
		return nil
	})
	if err != nil {
		return nil, errors.Trace("ReconcileLogic.Reconcile", err)
	}

	if report.Total, err = l.core.Store().ParsedEntityStore().TotalUnprocessed(l.ctx); err != nil {
		return nil, errors.New("ReconcileLogic.Reconcile.ParsedEntityStore.TotalUnprocessed", i18n.ERROR_INTERNAL, err)
	}

	return report, nil
}

// DryRun previews a sweep regardless of the configured mode.
func (l *ReconcileLogic) DryRun(ids ...string) (*ReconcileReport, error) {
	return l.dryRun(l.batchSize(), ids, &ReconcileReport{DryRun: true})
}

func (l *ReconcileLogic) batchSize() uint64 {
	if size := l.core.Cfg().Reconcile.BatchSize; size > 0 {
		return size
	}
	return types.DEFAULT_RECONCILE_BATCH_SIZE
}

// dryRun reports what a sweep would do without writing anything.
func (l *ReconcileLogic) dryRun(batchSize uint64, ids []string, report *ReconcileReport) (*ReconcileReport, error) {
	err := l.core.Store().Transaction(l.ctx, func(ctx context.Context) error {
		list, err := l.core.Store().ParsedEntityStore().ClaimUnprocessed(ctx, batchSize, ids)
		if err != nil {
			return errors.New("ReconcileLogic.dryRun.ParsedEntityStore.ClaimUnprocessed", i18n.ERROR_INTERNAL, err)
		}
		report.Claimed = int64(len(list))

		for _, entity := range list {
			action, err := l.plan(ctx, entity)
			if err != nil {
				report.Failed++
				report.Errors = append(report.Errors, ReconcileError{
					EntityID:   entity.ID,
					EntityType: entity.EntityType,
					Reason:     err.Error(),
				})
				continue
			}
			report.count(action.Action)
			report.Actions = append(report.Actions, action)
		}
		// nothing was written, the claim locks release on commit
		return nil
	})
	if err != nil {
		return nil, errors.Trace("ReconcileLogic.dryRun", err)
	}
	if report.Total, err = l.core.Store().ParsedEntityStore().TotalUnprocessed(l.ctx); err != nil {
		return nil, errors.New("ReconcileLogic.dryRun.ParsedEntityStore.TotalUnprocessed", i18n.ERROR_INTERNAL, err)
	}
	return report, nil
}

func (r *ReconcileReport) count(action string) {
	switch action {
	case RECONCILE_ACTION_CREATED:
		r.Created++
	case RECONCILE_ACTION_UPDATED:
		r.Updated++
	default:
		r.Skipped++
	}
}

func (l *ReconcileLogic) apply(ctx context.Context, entity types.ParsedEntity) (ReconcileAction, error) {
	switch entity.EntityType {
	case types.ENTITY_TYPE_PROJECT:
		return l.applyProject(ctx, entity, false)
	case types.ENTITY_TYPE_TASK:
		return l.applyTask(ctx, entity, false)
	case types.ENTITY_TYPE_GOAL:
		return l.applyGoal(ctx, entity, false)
	case types.ENTITY_TYPE_MILESTONE:
		return l.applyMilestone(ctx, entity, false)
	case types.ENTITY_TYPE_KNOWLEDGE:
		return l.applyKnowledge(ctx, entity, false)
	case types.ENTITY_TYPE_INSIGHT:
		return l.applyInsight(ctx, entity, false)
	}
	return ReconcileAction{}, errors.New("ReconcileLogic.apply.unknown", i18n.ERROR_RECONCILIATION, nil)
}

func (l *ReconcileLogic) plan(ctx context.Context, entity types.ParsedEntity) (ReconcileAction, error) {
	switch entity.EntityType {
	case types.ENTITY_TYPE_PROJECT:
		return l.applyProject(ctx, entity, true)
	case types.ENTITY_TYPE_TASK:
		return l.applyTask(ctx, entity, true)
	case types.ENTITY_TYPE_GOAL:
		return l.applyGoal(ctx, entity, true)
	case types.ENTITY_TYPE_MILESTONE:
		return l.applyMilestone(ctx, entity, true)
	case types.ENTITY_TYPE_KNOWLEDGE:
		return l.applyKnowledge(ctx, entity, true)
	case types.ENTITY_TYPE_INSIGHT:
		return l.applyInsight(ctx, entity, true)
	}
	return ReconcileAction{}, errors.New("ReconcileLogic.plan.unknown", i18n.ERROR_RECONCILIATION, nil)
}

// resolveProjectID maps a free-form project name to the oldest matching
// project, case-insensitively. An empty or unknown name resolves to "".
func (l *ReconcileLogic) resolveProjectID(ctx context.Context, ownerID, projectName string) (string, error) {
	if projectName == "" {
		return "", nil
	}
	project, err := l.core.Store().ProjectStore().GetByName(ctx, ownerID, projectName)
	if err != nil && err != sql.ErrNoRows {
		return "", err
	}
	if project == nil {
		return "", nil
	}
	return project.ID, nil
}

func (l *ReconcileLogic) applyProject(ctx context.Context, entity types.ParsedEntity, dry bool) (ReconcileAction, error) {
	var payload types.ProjectPayload
	if err := entity.DecodePayload(&payload); err != nil {
		return ReconcileAction{}, err
	}
	if payload.Name == "" {
		return ReconcileAction{}, errors.New("ReconcileLogic.applyProject.noname", i18n.ERROR_RECONCILIATION, nil)
	}

	action := ReconcileAction{EntityID: entity.ID, EntityType: entity.EntityType, Name: payload.Name}

	existing, err := l.core.Store().ProjectStore().GetByName(ctx, entity.OwnerID, payload.Name)
	if err != nil && err != sql.ErrNoRows {
		return ReconcileAction{}, err
	}

	now := time.Now().Unix()
	if existing == nil {
		action.Action = RECONCILE_ACTION_CREATED
		if dry {
			return action, nil
		}
		return action, l.core.Store().ProjectStore().Create(ctx, types.Project{
			ID:          utils.GenUniqIDStr(),
			OwnerID:     entity.OwnerID,
			Name:        payload.Name,
			Description: payload.Description,
			Priority:    payload.Priority,
			Status:      payload.Status,
			StartDate:   payload.StartDate,
			TargetDate:  payload.TargetDate,
			CreatedAt:   now,
			UpdatedAt:   now,
		})
	}

	changed := mergeField(&existing.Description, payload.Description)
	changed = mergeField(&existing.Priority, payload.Priority) || changed
	changed = mergeField(&existing.Status, payload.Status) || changed
	changed = mergeField(&existing.StartDate, payload.StartDate) || changed
	changed = mergeField(&existing.TargetDate, payload.TargetDate) || changed
	if !changed {
		action.Action = RECONCILE_ACTION_SKIPPED
		return action, nil
	}

	action.Action = RECONCILE_ACTION_UPDATED
	if dry {
		return action, nil
	}
	existing.UpdatedAt = now
	return action, l.core.Store().ProjectStore().Update(ctx, *existing)
}

func (l *ReconcileLogic) applyTask(ctx context.Context, entity types.ParsedEntity, dry bool) (ReconcileAction, error) {
	var payload types.TaskPayload
	if err := entity.DecodePayload(&payload); err != nil {
		return ReconcileAction{}, err
	}
	if payload.Name == "" {
		return ReconcileAction{}, errors.New("ReconcileLogic.applyTask.noname", i18n.ERROR_RECONCILIATION, nil)
	}

	action := ReconcileAction{EntityID: entity.ID, EntityType: entity.EntityType, Name: payload.Name}

	projectID, err := l.resolveProjectID(ctx, entity.OwnerID, payload.ProjectName)
	if err != nil {
		return ReconcileAction{}, err
	}

	existing, err := l.core.Store().TaskStore().GetByName(ctx, entity.OwnerID, projectID, payload.Name)
	if err != nil && err != sql.ErrNoRows {
		return ReconcileAction{}, err
	}

	now := time.Now().Unix()
	if existing == nil {
		action.Action = RECONCILE_ACTION_CREATED
		if dry {
			return action, nil
		}
		return action, l.core.Store().TaskStore().Create(ctx, types.Task{
			ID:          utils.GenUniqIDStr(),
			OwnerID:     entity.OwnerID,
			ProjectID:   projectID,
			Name:        payload.Name,
			Description: payload.Description,
			Priority:    payload.Priority,
			Status:      payload.Status,
			DueDate:     payload.DueDate,
			CreatedAt:   now,
			UpdatedAt:   now,
		})
	}

	changed := mergeField(&existing.Description, payload.Description)
	changed = mergeField(&existing.Priority, payload.Priority) || changed
	changed = mergeField(&existing.Status, payload.Status) || changed
	changed = mergeField(&existing.DueDate, payload.DueDate) || changed
	if !changed {
		action.Action = RECONCILE_ACTION_SKIPPED
		return action, nil
	}

	action.Action = RECONCILE_ACTION_UPDATED
	if dry {
		return action, nil
	}
	existing.UpdatedAt = now
	return action, l.core.Store().TaskStore().Update(ctx, *existing)
}

func (l *ReconcileLogic) applyGoal(ctx context.Context, entity types.ParsedEntity, dry bool) (ReconcileAction, error) {
	var payload types.GoalPayload
	if err := entity.DecodePayload(&payload); err != nil {
		return ReconcileAction{}, err
	}
	if payload.Name == "" {
		return ReconcileAction{}, errors.New("ReconcileLogic.applyGoal.noname", i18n.ERROR_RECONCILIATION, nil)
	}

	action := ReconcileAction{EntityID: entity.ID, EntityType: entity.EntityType, Name: payload.Name}

	projectID, err := l.resolveProjectID(ctx, entity.OwnerID, payload.ProjectName)
	if err != nil {
		return ReconcileAction{}, err
	}

	existing, err := l.core.Store().GoalStore().GetByName(ctx, entity.OwnerID, projectID, payload.Name)
	if err != nil && err != sql.ErrNoRows {
		return ReconcileAction{}, err
	}

	now := time.Now().Unix()
	if existing == nil {
		action.Action = RECONCILE_ACTION_CREATED
		if dry {
			return action, nil
		}
		return action, l.core.Store().GoalStore().Create(ctx, types.Goal{
			ID:          utils.GenUniqIDStr(),
			OwnerID:     entity.OwnerID,
			ProjectID:   projectID,
			Name:        payload.Name,
			Description: payload.Description,
			Status:      payload.Status,
			TargetDate:  payload.TargetDate,
			CreatedAt:   now,
			UpdatedAt:   now,
		})
	}

	changed := mergeField(&existing.Description, payload.Description)
	changed = mergeField(&existing.Status, payload.Status) || changed
	changed = mergeField(&existing.TargetDate, payload.TargetDate) || changed
	if !changed {
		action.Action = RECONCILE_ACTION_SKIPPED
		return action, nil
	}

	action.Action = RECONCILE_ACTION_UPDATED
	if dry {
		return action, nil
	}
	existing.UpdatedAt = now
	return action, l.core.Store().GoalStore().Update(ctx, *existing)
}

func (l *ReconcileLogic) applyMilestone(ctx context.Context, entity types.ParsedEntity, dry bool) (ReconcileAction, error) {
	var payload types.MilestonePayload
	if err := entity.DecodePayload(&payload); err != nil {
		return ReconcileAction{}, err
	}
	if payload.Name == "" {
		return ReconcileAction{}, errors.New("ReconcileLogic.applyMilestone.noname", i18n.ERROR_RECONCILIATION, nil)
	}

	action := ReconcileAction{EntityID: entity.ID, EntityType: entity.EntityType, Name: payload.Name}

	projectID, err := l.resolveProjectID(ctx, entity.OwnerID, payload.ProjectName)
	if err != nil {
		return ReconcileAction{}, err
	}

	existing, err := l.core.Store().MilestoneStore().GetByName(ctx, entity.OwnerID, projectID, payload.Name)
	if err != nil && err != sql.ErrNoRows {
		return ReconcileAction{}, err
	}

	now := time.Now().Unix()
	if existing == nil {
		action.Action = RECONCILE_ACTION_CREATED
		if dry {
			return action, nil
		}
		return action, l.core.Store().MilestoneStore().Create(ctx, types.Milestone{
			ID:          utils.GenUniqIDStr(),
			OwnerID:     entity.OwnerID,
			ProjectID:   projectID,
			Name:        payload.Name,
			Description: payload.Description,
			Status:      payload.Status,
			DueDate:     payload.DueDate,
			CreatedAt:   now,
			UpdatedAt:   now,
		})
	}

	changed := mergeField(&existing.Description, payload.Description)
	changed = mergeField(&existing.Status, payload.Status) || changed
	changed = mergeField(&existing.DueDate, payload.DueDate) || changed
	if !changed {
		action.Action = RECONCILE_ACTION_SKIPPED
		return action, nil
	}

	action.Action = RECONCILE_ACTION_UPDATED
	if dry {
		return action, nil
	}
	existing.UpdatedAt = now
	return action, l.core.Store().MilestoneStore().Update(ctx, *existing)
}

func (l *ReconcileLogic) applyKnowledge(ctx context.Context, entity types.ParsedEntity, dry bool) (ReconcileAction, error) {
	var payload types.KnowledgePayload
	if err := entity.DecodePayload(&payload); err != nil {
		return ReconcileAction{}, err
	}
	if payload.Title == "" {
		return ReconcileAction{}, errors.New("ReconcileLogic.applyKnowledge.notitle", i18n.ERROR_RECONCILIATION, nil)
	}

	action := ReconcileAction{EntityID: entity.ID, EntityType: entity.EntityType, Name: payload.Title}

	existing, err := l.core.Store().KnowledgeItemStore().GetByTitle(ctx, entity.OwnerID, payload.Title)
	if err != nil && err != sql.ErrNoRows {
		return ReconcileAction{}, err
	}

	now := time.Now().Unix()
	if existing == nil {
		action.Action = RECONCILE_ACTION_CREATED
		if dry {
			return action, nil
		}
		return action, l.core.Store().KnowledgeItemStore().Create(ctx, types.KnowledgeItem{
			ID:        utils.GenUniqIDStr(),
			OwnerID:   entity.OwnerID,
			Title:     payload.Title,
			Content:   payload.Content,
			Tags:      payload.Tags,
			CreatedAt: now,
			UpdatedAt: now,
		})
	}

	changed := mergeField(&existing.Content, payload.Content)
	if len(payload.Tags) > 0 {
		existing.Tags = mergeTags(existing.Tags, payload.Tags)
		changed = true
	}
	if !changed {
		action.Action = RECONCILE_ACTION_SKIPPED
		return action, nil
	}

	action.Action = RECONCILE_ACTION_UPDATED
	if dry {
		return action, nil
	}
	existing.UpdatedAt = now
	return action, l.core.Store().KnowledgeItemStore().Update(ctx, *existing)
}

// applyInsight only ever appends, an identical content line is skipped.
func (l *ReconcileLogic) applyInsight(ctx context.Context, entity types.ParsedEntity, dry bool) (ReconcileAction, error) {
	var payload types.InsightPayload
	if err := entity.DecodePayload(&payload); err != nil {
		return ReconcileAction{}, err
	}
	if payload.Content == "" {
		return ReconcileAction{}, errors.New("ReconcileLogic.applyInsight.nocontent", i18n.ERROR_RECONCILIATION, nil)
	}

	action := ReconcileAction{EntityID: entity.ID, EntityType: entity.EntityType, Name: utils.TruncateTitle(payload.Content, sessionTitleMaxRunes)}

	existing, err := l.core.Store().InsightStore().GetByContent(ctx, entity.OwnerID, payload.Content)
	if err != nil && err != sql.ErrNoRows {
		return ReconcileAction{}, err
	}
	if existing != nil {
		action.Action = RECONCILE_ACTION_SKIPPED
		return action, nil
	}

	action.Action = RECONCILE_ACTION_CREATED
	if dry {
		return action, nil
	}
	return action, l.core.Store().InsightStore().Create(ctx, types.Insight{
		ID:        utils.GenUniqIDStr(),
		OwnerID:   entity.OwnerID,
		Content:   payload.Content,
		Category:  payload.Category,
		CreatedAt: time.Now().Unix(),
	})
}

// mergeField overwrites dst only when the incoming value is non-empty and
// actually different.
func mergeField(dst *string, incoming string) bool {
	if incoming == "" || incoming == *dst {
		return false
	}
	*dst = incoming
	return true
}

func mergeTags(existing, incoming []string) types.StringList {
	seen := make(map[string]bool, len(existing))
	out := make(types.StringList, 0, len(existing)+len(incoming))
	for _, t := range existing {
		seen[t] = true
		out = append(out, t)
	}
	for _, t := range incoming {
		if !seen[t] {
			seen[t] = true
			out = append(out, t)
		}
	}
	return out
}
