package v1

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/lapomascherj/atmo-core/app/core"
	"github.com/lapomascherj/atmo-core/pkg/types"
	"github.com/lapomascherj/atmo-core/pkg/utils"
)

func seedEntity(t *testing.T, provider *fakeProvider, owner string, entityType types.EntityType, payload any) types.ParsedEntity {
	t.Helper()
	entity := types.ParsedEntity{
		ID:              utils.GenUniqIDStr(),
		OwnerID:         owner,
		SourceMessageID: "msg-1",
		EntityType:      entityType,
		EntityData:      mustJSON(t, payload),
		CreatedAt:       time.Now().Unix(),
	}
	require.NoError(t, provider.entities.BatchCreate(userContext(owner), []types.ParsedEntity{entity}))
	return entity
}

func TestReconcileCreatesProject(t *testing.T) {
	provider := newFakeProvider()
	c := newTestCore(provider, &fakeExtractor{})
	ctx := userContext("user-1")

	seedEntity(t, provider, "user-1", types.ENTITY_TYPE_PROJECT, types.ProjectPayload{
		Name: "Atmo", Status: "active", StartDate: "2026-08-01",
	})

	report, err := NewReconcileLogic(ctx, c).Reconcile()
	require.NoError(t, err)
	require.EqualValues(t, 1, report.Claimed)
	require.EqualValues(t, 1, report.Created)

	projects, err := provider.projects.List(ctx, "user-1")
	require.NoError(t, err)
	require.Len(t, projects, 1)
	require.Equal(t, "2026-08-01", projects[0].StartDate)

	pending, err := provider.entities.TotalUnprocessed(ctx)
	require.NoError(t, err)
	require.Zero(t, pending)
}

func TestReconcileDedupsByNameCaseInsensitive(t *testing.T) {
	provider := newFakeProvider()
	c := newTestCore(provider, &fakeExtractor{})
	ctx := userContext("user-1")

	seedEntity(t, provider, "user-1", types.ENTITY_TYPE_PROJECT, types.ProjectPayload{Name: "Atmo"})
	_, err := NewReconcileLogic(ctx, c).Reconcile()
	require.NoError(t, err)

	seedEntity(t, provider, "user-1", types.ENTITY_TYPE_PROJECT, types.ProjectPayload{
		Name: "ATMO", Description: "workspace core",
	})
	report, err := NewReconcileLogic(ctx, c).Reconcile()
	require.NoError(t, err)
	require.EqualValues(t, 1, report.Updated)

	projects, err := provider.projects.List(ctx, "user-1")
	require.NoError(t, err)
	require.Len(t, projects, 1, "case-insensitive match must not mint a second project")
	require.Equal(t, "Atmo", projects[0].Name, "original casing wins")
	require.Equal(t, "workspace core", projects[0].Description)
}

func TestReconcileIdenticalPayloadSkips(t *testing.T) {
	provider := newFakeProvider()
	c := newTestCore(provider, &fakeExtractor{})
	ctx := userContext("user-1")

	seedEntity(t, provider, "user-1", types.ENTITY_TYPE_PROJECT, types.ProjectPayload{Name: "Atmo", Status: "active"})
	_, err := NewReconcileLogic(ctx, c).Reconcile()
	require.NoError(t, err)

	seedEntity(t, provider, "user-1", types.ENTITY_TYPE_PROJECT, types.ProjectPayload{Name: "Atmo", Status: "active"})
	report, err := NewReconcileLogic(ctx, c).Reconcile()
	require.NoError(t, err)
	require.EqualValues(t, 1, report.Skipped)
}

func TestReconcileResolvesTaskParent(t *testing.T) {
	provider := newFakeProvider()
	c := newTestCore(provider, &fakeExtractor{})
	ctx := userContext("user-1")

	seedEntity(t, provider, "user-1", types.ENTITY_TYPE_PROJECT, types.ProjectPayload{Name: "Atmo"})
	seedEntity(t, provider, "user-1", types.ENTITY_TYPE_TASK, types.TaskPayload{
		Name: "Write spec", ProjectName: "atmo", DueDate: "2026-09-15",
	})

	report, err := NewReconcileLogic(ctx, c).Reconcile()
	require.NoError(t, err)
	require.EqualValues(t, 2, report.Created)

	projects, err := provider.projects.List(ctx, "user-1")
	require.NoError(t, err)
	tasks, err := provider.tasks.List(ctx, "user-1")
	require.NoError(t, err)
	require.Len(t, tasks, 1)
	require.Equal(t, projects[0].ID, tasks[0].ProjectID)
}

func TestReconcileOrphanTaskKeepsEmptyProjectID(t *testing.T) {
	provider := newFakeProvider()
	c := newTestCore(provider, &fakeExtractor{})
	ctx := userContext("user-1")

	seedEntity(t, provider, "user-1", types.ENTITY_TYPE_TASK, types.TaskPayload{
		Name: "Write spec", ProjectName: "does not exist",
	})

	report, err := NewReconcileLogic(ctx, c).Reconcile()
	require.NoError(t, err)
	require.EqualValues(t, 1, report.Created)

	tasks, err := provider.tasks.List(ctx, "user-1")
	require.NoError(t, err)
	require.Len(t, tasks, 1)
	require.Empty(t, tasks[0].ProjectID, "unresolved parent leaves the task orphaned, not dropped")
}

func TestReconcileInsightDedupByContent(t *testing.T) {
	provider := newFakeProvider()
	c := newTestCore(provider, &fakeExtractor{})
	ctx := userContext("user-1")

	seedEntity(t, provider, "user-1", types.ENTITY_TYPE_INSIGHT, types.InsightPayload{Content: "mornings are best for deep work"})
	seedEntity(t, provider, "user-1", types.ENTITY_TYPE_INSIGHT, types.InsightPayload{Content: "mornings are best for deep work"})

	report, err := NewReconcileLogic(ctx, c).Reconcile()
	require.NoError(t, err)
	require.EqualValues(t, 1, report.Created)
	require.EqualValues(t, 1, report.Skipped)

	insights, err := provider.insights.List(ctx, "user-1")
	require.NoError(t, err)
	require.Len(t, insights, 1)
}

func TestReconcileKnowledgeMergesTags(t *testing.T) {
	provider := newFakeProvider()
	c := newTestCore(provider, &fakeExtractor{})
	ctx := userContext("user-1")

	seedEntity(t, provider, "user-1", types.ENTITY_TYPE_KNOWLEDGE, types.KnowledgePayload{
		Title: "Postgres locking", Tags: []string{"db"},
	})
	_, err := NewReconcileLogic(ctx, c).Reconcile()
	require.NoError(t, err)

	seedEntity(t, provider, "user-1", types.ENTITY_TYPE_KNOWLEDGE, types.KnowledgePayload{
		Title: "Postgres locking", Content: "skip locked claims rows", Tags: []string{"db", "concurrency"},
	})
	_, err = NewReconcileLogic(ctx, c).Reconcile()
	require.NoError(t, err)

	items, err := provider.knowledge.List(ctx, "user-1")
	require.NoError(t, err)
	require.Len(t, items, 1)
	require.ElementsMatch(t, []string{"db", "concurrency"}, []string(items[0].Tags))
}

func TestReconcileIsolatesBadEntity(t *testing.T) {
	provider := newFakeProvider()
	c := newTestCore(provider, &fakeExtractor{})
	ctx := userContext("user-1")

	bad := seedEntity(t, provider, "user-1", types.ENTITY_TYPE_PROJECT, types.ProjectPayload{})
	seedEntity(t, provider, "user-1", types.ENTITY_TYPE_PROJECT, types.ProjectPayload{Name: "Atmo"})

	report, err := NewReconcileLogic(ctx, c).Reconcile()
	require.NoError(t, err)
	require.EqualValues(t, 1, report.Failed)
	require.EqualValues(t, 1, report.Created)

	// the failure is attributed to the row that caused it
	require.Len(t, report.Errors, 1)
	require.Equal(t, bad.ID, report.Errors[0].EntityID)
	require.Equal(t, types.ENTITY_TYPE_PROJECT, report.Errors[0].EntityType)
	require.NotEmpty(t, report.Errors[0].Reason)
	require.EqualValues(t, 1, report.Total, "the failed row is still in the backlog")

	// the failed row stays unprocessed for a later retry
	pending, err := provider.entities.ClaimUnprocessed(ctx, 10, nil)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	require.Equal(t, bad.ID, pending[0].ID)
}

func TestReconcileDryRunWritesNothing(t *testing.T) {
	provider := newFakeProvider()
	cfg := testCoreConfig()
	cfg.Reconcile.DryRun = true
	c := core.New(cfg, provider, &fakeExtractor{})
	ctx := userContext("user-1")

	seedEntity(t, provider, "user-1", types.ENTITY_TYPE_PROJECT, types.ProjectPayload{Name: "Atmo"})

	report, err := NewReconcileLogic(ctx, c).Reconcile()
	require.NoError(t, err)
	require.True(t, report.DryRun)
	require.EqualValues(t, 1, report.Created)

	projects, err := provider.projects.List(ctx, "user-1")
	require.NoError(t, err)
	require.Empty(t, projects)

	pending, err := provider.entities.TotalUnprocessed(ctx)
	require.NoError(t, err)
	require.EqualValues(t, 1, pending, "dry run must not mark rows processed")
}

func TestReconcileTargetsGivenIDs(t *testing.T) {
	provider := newFakeProvider()
	c := newTestCore(provider, &fakeExtractor{})
	ctx := userContext("user-1")

	wanted := seedEntity(t, provider, "user-1", types.ENTITY_TYPE_PROJECT, types.ProjectPayload{Name: "Atmo"})
	seedEntity(t, provider, "user-1", types.ENTITY_TYPE_PROJECT, types.ProjectPayload{Name: "Side quest"})

	report, err := NewReconcileLogic(ctx, c).Reconcile(wanted.ID)
	require.NoError(t, err)
	require.EqualValues(t, 1, report.Claimed)

	pending, err := provider.entities.TotalUnprocessed(ctx)
	require.NoError(t, err)
	require.EqualValues(t, 1, pending)
}
