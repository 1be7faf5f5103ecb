package v1

import (
	"context"

	"github.com/lapomascherj/atmo-core/app/core"
	"github.com/lapomascherj/atmo-core/pkg/errors"
	"github.com/lapomascherj/atmo-core/pkg/i18n"
	"github.com/lapomascherj/atmo-core/pkg/types"
)

type WorkspaceLogic struct {
	ctx  context.Context
	core *core.Core
	UserInfo
}

func NewWorkspaceLogic(ctx context.Context, core *core.Core) *WorkspaceLogic {
	return &WorkspaceLogic{
		ctx:      ctx,
		core:     core,
		UserInfo: SetupUserInfo(ctx, core),
	}
}

func (l *WorkspaceLogic) ListProjects() ([]types.Project, error) {
	list, err := l.core.Store().ProjectStore().List(l.ctx, l.GetUserInfo().User)
	if err != nil {
		return nil, errors.New("WorkspaceLogic.ListProjects.ProjectStore.List", i18n.ERROR_INTERNAL, err)
	}
	return list, nil
}

func (l *WorkspaceLogic) ListTasks() ([]types.Task, error) {
	list, err := l.core.Store().TaskStore().List(l.ctx, l.GetUserInfo().User)
	if err != nil {
		return nil, errors.New("WorkspaceLogic.ListTasks.TaskStore.List", i18n.ERROR_INTERNAL, err)
	}
	return list, nil
}

func (l *WorkspaceLogic) ListGoals() ([]types.Goal, error) {
	list, err := l.core.Store().GoalStore().List(l.ctx, l.GetUserInfo().User)
	if err != nil {
		return nil, errors.New("WorkspaceLogic.ListGoals.GoalStore.List", i18n.ERROR_INTERNAL, err)
	}
	return list, nil
}

func (l *WorkspaceLogic) ListMilestones() ([]types.Milestone, error) {
	list, err := l.core.Store().MilestoneStore().List(l.ctx, l.GetUserInfo().User)
	if err != nil {
		return nil, errors.New("WorkspaceLogic.ListMilestones.MilestoneStore.List", i18n.ERROR_INTERNAL, err)
	}
	return list, nil
}

func (l *WorkspaceLogic) ListKnowledgeItems() ([]types.KnowledgeItem, error) {
	list, err := l.core.Store().KnowledgeItemStore().List(l.ctx, l.GetUserInfo().User)
	if err != nil {
		return nil, errors.New("WorkspaceLogic.ListKnowledgeItems.KnowledgeItemStore.List", i18n.ERROR_INTERNAL, err)
	}
	return list, nil
}

func (l *WorkspaceLogic) ListInsights() ([]types.Insight, error) {
	list, err := l.core.Store().InsightStore().List(l.ctx, l.GetUserInfo().User)
	if err != nil {
		return nil, errors.New("WorkspaceLogic.ListInsights.InsightStore.List", i18n.ERROR_INTERNAL, err)
	}
	return list, nil
}
