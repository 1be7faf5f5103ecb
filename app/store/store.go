package store

import (
	"context"

	"github.com/lapomascherj/atmo-core/pkg/sqlstore"
	"github.com/lapomascherj/atmo-core/pkg/types"
)

// Provider is the store surface the logic layer depends on. The sqlstore
// package provides the postgres implementation, tests provide in-memory
// fakes.
type Provider interface {
	Transaction(ctx context.Context, next func(ctx context.Context) error) error

	ChatSessionStore() ChatSessionStore
	ChatMessageStore() ChatMessageStore
	ParsedEntityStore() ParsedEntityStore
	ProjectStore() ProjectStore
	TaskStore() TaskStore
	GoalStore() GoalStore
	MilestoneStore() MilestoneStore
	KnowledgeItemStore() KnowledgeItemStore
	InsightStore() InsightStore
}

type ChatSessionStore interface {
	sqlstore.SqlCommons
	Create(ctx context.Context, data types.ChatSession) error
	GetActive(ctx context.Context, ownerID string) (*types.ChatSession, error)
	GetActiveForUpdate(ctx context.Context, ownerID string) (*types.ChatSession, error)
	Get(ctx context.Context, ownerID, sessionID string) (*types.ChatSession, error)
	GetForUpdate(ctx context.Context, ownerID, sessionID string) (*types.ChatSession, error)
	SetArchived(ctx context.Context, sessionID string, archived bool) error
	UpdateTitle(ctx context.Context, sessionID string, title string) error
	IncrMessageCount(ctx context.Context, sessionID string, delta int64) error
	ListArchived(ctx context.Context, ownerID string) ([]types.ChatSession, error)
	Delete(ctx context.Context, sessionID string) error
}

type ChatMessageStore interface {
	sqlstore.SqlCommons
	Create(ctx context.Context, data *types.ChatMessage) error
	Exist(ctx context.Context, sessionID, clientMessageID string) (bool, error)
	GetByClientMessageID(ctx context.Context, sessionID, clientMessageID string, role types.MessageRole) (*types.ChatMessage, error)
	ListSessionMessages(ctx context.Context, sessionID string, page, pageSize uint64) ([]*types.ChatMessage, error)
	ListLatestSessionMessages(ctx context.Context, sessionID string, limit uint64) ([]*types.ChatMessage, error)
	TotalSessionMessages(ctx context.Context, sessionID string) (int64, error)
	DeleteSessionMessages(ctx context.Context, sessionID string) error
}

type ParsedEntityStore interface {
	sqlstore.SqlCommons
	BatchCreate(ctx context.Context, list []types.ParsedEntity) error
	ClaimUnprocessed(ctx context.Context, batchSize uint64, ids []string) ([]types.ParsedEntity, error)
	TotalUnprocessed(ctx context.Context) (int64, error)
	MarkProcessed(ctx context.Context, id string) error
	CountBySourceMessage(ctx context.Context, sourceMessageID string) (int64, error)
	DeleteByOwner(ctx context.Context, ownerID string) error
}

type ProjectStore interface {
	sqlstore.SqlCommons
	Create(ctx context.Context, data types.Project) error
	GetByName(ctx context.Context, ownerID, name string) (*types.Project, error)
	Update(ctx context.Context, data types.Project) error
	List(ctx context.Context, ownerID string) ([]types.Project, error)
	ListActiveNames(ctx context.Context, ownerID string, limit uint64) ([]string, error)
}

type TaskStore interface {
	sqlstore.SqlCommons
	Create(ctx context.Context, data types.Task) error
	GetByName(ctx context.Context, ownerID, projectID, name string) (*types.Task, error)
	Update(ctx context.Context, data types.Task) error
	List(ctx context.Context, ownerID string) ([]types.Task, error)
}

type GoalStore interface {
	sqlstore.SqlCommons
	Create(ctx context.Context, data types.Goal) error
	GetByName(ctx context.Context, ownerID, projectID, name string) (*types.Goal, error)
	Update(ctx context.Context, data types.Goal) error
	List(ctx context.Context, ownerID string) ([]types.Goal, error)
}

type MilestoneStore interface {
	sqlstore.SqlCommons
	Create(ctx context.Context, data types.Milestone) error
	GetByName(ctx context.Context, ownerID, projectID, name string) (*types.Milestone, error)
	Update(ctx context.Context, data types.Milestone) error
	List(ctx context.Context, ownerID string) ([]types.Milestone, error)
}

type KnowledgeItemStore interface {
	sqlstore.SqlCommons
	Create(ctx context.Context, data types.KnowledgeItem) error
	GetByTitle(ctx context.Context, ownerID, title string) (*types.KnowledgeItem, error)
	Update(ctx context.Context, data types.KnowledgeItem) error
	List(ctx context.Context, ownerID string) ([]types.KnowledgeItem, error)
}

type InsightStore interface {
	sqlstore.SqlCommons
	Create(ctx context.Context, data types.Insight) error
	GetByContent(ctx context.Context, ownerID, content string) (*types.Insight, error)
	List(ctx context.Context, ownerID string) ([]types.Insight, error)
}
