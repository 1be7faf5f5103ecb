package v1

import (
	"context"
	"database/sql"
	"sort"
	"strings"

	"github.com/lib/pq"

	"github.com/lapomascherj/atmo-core/app/store"
	"github.com/lapomascherj/atmo-core/pkg/types"
)

// fakeProvider is an in-memory store.Provider for logic tests. It keeps
// the same invariants the postgres schema enforces, including the unique
// active session index.
type fakeProvider struct {
	sessions *fakeChatSessionStore
	messages *fakeChatMessageStore
	entities *fakeParsedEntityStore

	projects   *fakeProjectStore
	tasks      *fakeTaskStore
	goals      *fakeGoalStore
	milestones *fakeMilestoneStore
	knowledge  *fakeKnowledgeItemStore
	insights   *fakeInsightStore
}

func newFakeProvider() *fakeProvider {
	return &fakeProvider{
		sessions:   &fakeChatSessionStore{},
		messages:   &fakeChatMessageStore{},
		entities:   &fakeParsedEntityStore{},
		projects:   &fakeProjectStore{},
		tasks:      &fakeTaskStore{},
		goals:      &fakeGoalStore{},
		milestones: &fakeMilestoneStore{},
		knowledge:  &fakeKnowledgeItemStore{},
		insights:   &fakeInsightStore{},
	}
}

func (f *fakeProvider) Transaction(ctx context.Context, next func(ctx context.Context) error) error {
	return next(ctx)
}

func (f *fakeProvider) ChatSessionStore() store.ChatSessionStore     { return f.sessions }
func (f *fakeProvider) ChatMessageStore() store.ChatMessageStore     { return f.messages }
func (f *fakeProvider) ParsedEntityStore() store.ParsedEntityStore   { return f.entities }
func (f *fakeProvider) ProjectStore() store.ProjectStore             { return f.projects }
func (f *fakeProvider) TaskStore() store.TaskStore                   { return f.tasks }
func (f *fakeProvider) GoalStore() store.GoalStore                   { return f.goals }
func (f *fakeProvider) MilestoneStore() store.MilestoneStore         { return f.milestones }
func (f *fakeProvider) KnowledgeItemStore() store.KnowledgeItemStore { return f.knowledge }
func (f *fakeProvider) InsightStore() store.InsightStore             { return f.insights }

type fakeCommons struct{}

func (fakeCommons) GetTable(...interface{}) string { return "fake" }

func uniqueViolation() error {
	return &pq.Error{Code: "23505"}
}

type fakeChatSessionStore struct {
	fakeCommons
	rows []*types.ChatSession
}

func (s *fakeChatSessionStore) Create(ctx context.Context, data types.ChatSession) error {
	if !data.Archived {
		for _, row := range s.rows {
			if row.OwnerID == data.OwnerID && !row.Archived {
				return uniqueViolation()
			}
		}
	}
	row := data
	s.rows = append(s.rows, &row)
	return nil
}

func (s *fakeChatSessionStore) GetActive(ctx context.Context, ownerID string) (*types.ChatSession, error) {
	for _, row := range s.rows {
		if row.OwnerID == ownerID && !row.Archived {
			copied := *row
			return &copied, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (s *fakeChatSessionStore) GetActiveForUpdate(ctx context.Context, ownerID string) (*types.ChatSession, error) {
	return s.GetActive(ctx, ownerID)
}

func (s *fakeChatSessionStore) Get(ctx context.Context, ownerID, sessionID string) (*types.ChatSession, error) {
	for _, row := range s.rows {
		if row.OwnerID == ownerID && row.ID == sessionID {
			copied := *row
			return &copied, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (s *fakeChatSessionStore) GetForUpdate(ctx context.Context, ownerID, sessionID string) (*types.ChatSession, error) {
	return s.Get(ctx, ownerID, sessionID)
}

func (s *fakeChatSessionStore) SetArchived(ctx context.Context, sessionID string, archived bool) error {
	for _, row := range s.rows {
		if row.ID == sessionID {
			if !archived {
				for _, other := range s.rows {
					if other.OwnerID == row.OwnerID && !other.Archived && other.ID != sessionID {
						return uniqueViolation()
					}
				}
			}
			row.Archived = archived
			return nil
		}
	}
	return sql.ErrNoRows
}

func (s *fakeChatSessionStore) UpdateTitle(ctx context.Context, sessionID string, title string) error {
	for _, row := range s.rows {
		if row.ID == sessionID {
			row.Title = title
			return nil
		}
	}
	return sql.ErrNoRows
}

func (s *fakeChatSessionStore) IncrMessageCount(ctx context.Context, sessionID string, delta int64) error {
	for _, row := range s.rows {
		if row.ID == sessionID {
			row.MessageCount += delta
			return nil
		}
	}
	return sql.ErrNoRows
}

func (s *fakeChatSessionStore) ListArchived(ctx context.Context, ownerID string) ([]types.ChatSession, error) {
	var out []types.ChatSession
	for _, row := range s.rows {
		if row.OwnerID == ownerID && row.Archived {
			out = append(out, *row)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UpdatedAt > out[j].UpdatedAt })
	return out, nil
}

func (s *fakeChatSessionStore) Delete(ctx context.Context, sessionID string) error {
	for i, row := range s.rows {
		if row.ID == sessionID {
			s.rows = append(s.rows[:i], s.rows[i+1:]...)
			return nil
		}
	}
	return nil
}

type fakeChatMessageStore struct {
	fakeCommons
	rows []*types.ChatMessage
}

func (s *fakeChatMessageStore) Create(ctx context.Context, data *types.ChatMessage) error {
	if data.ClientMessageID != "" {
		for _, row := range s.rows {
			if row.SessionID == data.SessionID && row.ClientMessageID == data.ClientMessageID && row.Role == data.Role {
				return uniqueViolation()
			}
		}
	}
	copied := *data
	s.rows = append(s.rows, &copied)
	return nil
}

func (s *fakeChatMessageStore) Exist(ctx context.Context, sessionID, clientMessageID string) (bool, error) {
	for _, row := range s.rows {
		if row.SessionID == sessionID && row.ClientMessageID == clientMessageID && row.Role == types.MESSAGE_ROLE_USER {
			return true, nil
		}
	}
	return false, nil
}

func (s *fakeChatMessageStore) GetByClientMessageID(ctx context.Context, sessionID, clientMessageID string, role types.MessageRole) (*types.ChatMessage, error) {
	for _, row := range s.rows {
		if row.SessionID == sessionID && row.ClientMessageID == clientMessageID && row.Role == role {
			copied := *row
			return &copied, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (s *fakeChatMessageStore) sessionMessages(sessionID string) []*types.ChatMessage {
	var out []*types.ChatMessage
	for _, row := range s.rows {
		if row.SessionID == sessionID {
			copied := *row
			out = append(out, &copied)
		}
	}
	return out
}

func (s *fakeChatMessageStore) ListSessionMessages(ctx context.Context, sessionID string, page, pageSize uint64) ([]*types.ChatMessage, error) {
	out := s.sessionMessages(sessionID)
	if pageSize == types.NO_PAGING {
		return out, nil
	}
	start := (page - 1) * pageSize
	if start >= uint64(len(out)) {
		return nil, nil
	}
	end := start + pageSize
	if end > uint64(len(out)) {
		end = uint64(len(out))
	}
	return out[start:end], nil
}

func (s *fakeChatMessageStore) ListLatestSessionMessages(ctx context.Context, sessionID string, limit uint64) ([]*types.ChatMessage, error) {
	out := s.sessionMessages(sessionID)
	if uint64(len(out)) > limit {
		out = out[uint64(len(out))-limit:]
	}
	return out, nil
}

func (s *fakeChatMessageStore) TotalSessionMessages(ctx context.Context, sessionID string) (int64, error) {
	return int64(len(s.sessionMessages(sessionID))), nil
}

func (s *fakeChatMessageStore) DeleteSessionMessages(ctx context.Context, sessionID string) error {
	var kept []*types.ChatMessage
	for _, row := range s.rows {
		if row.SessionID != sessionID {
			kept = append(kept, row)
		}
	}
	s.rows = kept
	return nil
}

type fakeParsedEntityStore struct {
	fakeCommons
	rows []*types.ParsedEntity
}

func (s *fakeParsedEntityStore) BatchCreate(ctx context.Context, list []types.ParsedEntity) error {
	for _, e := range list {
		copied := e
		s.rows = append(s.rows, &copied)
	}
	return nil
}

func (s *fakeParsedEntityStore) ClaimUnprocessed(ctx context.Context, batchSize uint64, ids []string) ([]types.ParsedEntity, error) {
	var out []types.ParsedEntity
	for _, row := range s.rows {
		if row.Processed {
			continue
		}
		if len(ids) > 0 {
			matched := false
			for _, id := range ids {
				if row.ID == id {
					matched = true
					break
				}
			}
			if !matched {
				continue
			}
		}
		out = append(out, *row)
		if uint64(len(out)) >= batchSize {
			break
		}
	}
	return out, nil
}

func (s *fakeParsedEntityStore) TotalUnprocessed(ctx context.Context) (int64, error) {
	var total int64
	for _, row := range s.rows {
		if !row.Processed {
			total++
		}
	}
	return total, nil
}

func (s *fakeParsedEntityStore) MarkProcessed(ctx context.Context, id string) error {
	for _, row := range s.rows {
		if row.ID == id {
			row.Processed = true
			return nil
		}
	}
	return sql.ErrNoRows
}

func (s *fakeParsedEntityStore) CountBySourceMessage(ctx context.Context, sourceMessageID string) (int64, error) {
	var total int64
	for _, row := range s.rows {
		if row.SourceMessageID == sourceMessageID {
			total++
		}
	}
	return total, nil
}

func (s *fakeParsedEntityStore) DeleteByOwner(ctx context.Context, ownerID string) error {
	var kept []*types.ParsedEntity
	for _, row := range s.rows {
		if row.OwnerID != ownerID {
			kept = append(kept, row)
		}
	}
	s.rows = kept
	return nil
}

type fakeProjectStore struct {
	fakeCommons
	rows []*types.Project
}

func (s *fakeProjectStore) Create(ctx context.Context, data types.Project) error {
	row := data
	s.rows = append(s.rows, &row)
	return nil
}

func (s *fakeProjectStore) GetByName(ctx context.Context, ownerID, name string) (*types.Project, error) {
	var match *types.Project
	for _, row := range s.rows {
		if row.OwnerID == ownerID && strings.EqualFold(row.Name, name) {
			if match == nil || row.CreatedAt < match.CreatedAt {
				match = row
			}
		}
	}
	if match == nil {
		return nil, sql.ErrNoRows
	}
	copied := *match
	return &copied, nil
}

func (s *fakeProjectStore) Update(ctx context.Context, data types.Project) error {
	for _, row := range s.rows {
		if row.ID == data.ID {
			*row = data
			return nil
		}
	}
	return sql.ErrNoRows
}

func (s *fakeProjectStore) List(ctx context.Context, ownerID string) ([]types.Project, error) {
	var out []types.Project
	for _, row := range s.rows {
		if row.OwnerID == ownerID {
			out = append(out, *row)
		}
	}
	return out, nil
}

func (s *fakeProjectStore) ListActiveNames(ctx context.Context, ownerID string, limit uint64) ([]string, error) {
	var out []string
	for _, row := range s.rows {
		if row.OwnerID == ownerID && row.Status != "completed" {
			out = append(out, row.Name)
			if uint64(len(out)) >= limit {
				break
			}
		}
	}
	return out, nil
}

type fakeTaskStore struct {
	fakeCommons
	rows []*types.Task
}

func (s *fakeTaskStore) Create(ctx context.Context, data types.Task) error {
	row := data
	s.rows = append(s.rows, &row)
	return nil
}

func (s *fakeTaskStore) GetByName(ctx context.Context, ownerID, projectID, name string) (*types.Task, error) {
	for _, row := range s.rows {
		if row.OwnerID == ownerID && row.ProjectID == projectID && strings.EqualFold(row.Name, name) {
			copied := *row
			return &copied, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (s *fakeTaskStore) Update(ctx context.Context, data types.Task) error {
	for _, row := range s.rows {
		if row.ID == data.ID {
			*row = data
			return nil
		}
	}
	return sql.ErrNoRows
}

func (s *fakeTaskStore) List(ctx context.Context, ownerID string) ([]types.Task, error) {
	var out []types.Task
	for _, row := range s.rows {
		if row.OwnerID == ownerID {
			out = append(out, *row)
		}
	}
	return out, nil
}

type fakeGoalStore struct {
	fakeCommons
	rows []*types.Goal
}

func (s *fakeGoalStore) Create(ctx context.Context, data types.Goal) error {
	row := data
	s.rows = append(s.rows, &row)
	return nil
}

func (s *fakeGoalStore) GetByName(ctx context.Context, ownerID, projectID, name string) (*types.Goal, error) {
	for _, row := range s.rows {
		if row.OwnerID == ownerID && row.ProjectID == projectID && strings.EqualFold(row.Name, name) {
			copied := *row
			return &copied, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (s *fakeGoalStore) Update(ctx context.Context, data types.Goal) error {
	for _, row := range s.rows {
		if row.ID == data.ID {
			*row = data
			return nil
		}
	}
	return sql.ErrNoRows
}

func (s *fakeGoalStore) List(ctx context.Context, ownerID string) ([]types.Goal, error) {
	var out []types.Goal
	for _, row := range s.rows {
		if row.OwnerID == ownerID {
			out = append(out, *row)
		}
	}
	return out, nil
}

type fakeMilestoneStore struct {
	fakeCommons
	rows []*types.Milestone
}

func (s *fakeMilestoneStore) Create(ctx context.Context, data types.Milestone) error {
	row := data
	s.rows = append(s.rows, &row)
	return nil
}

func (s *fakeMilestoneStore) GetByName(ctx context.Context, ownerID, projectID, name string) (*types.Milestone, error) {
	for _, row := range s.rows {
		if row.OwnerID == ownerID && row.ProjectID == projectID && strings.EqualFold(row.Name, name) {
			copied := *row
			return &copied, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (s *fakeMilestoneStore) Update(ctx context.Context, data types.Milestone) error {
	for _, row := range s.rows {
		if row.ID == data.ID {
			*row = data
			return nil
		}
	}
	return sql.ErrNoRows
}

func (s *fakeMilestoneStore) List(ctx context.Context, ownerID string) ([]types.Milestone, error) {
	var out []types.Milestone
	for _, row := range s.rows {
		if row.OwnerID == ownerID {
			out = append(out, *row)
		}
	}
	return out, nil
}

type fakeKnowledgeItemStore struct {
	fakeCommons
	rows []*types.KnowledgeItem
}

func (s *fakeKnowledgeItemStore) Create(ctx context.Context, data types.KnowledgeItem) error {
	row := data
	s.rows = append(s.rows, &row)
	return nil
}

func (s *fakeKnowledgeItemStore) GetByTitle(ctx context.Context, ownerID, title string) (*types.KnowledgeItem, error) {
	for _, row := range s.rows {
		if row.OwnerID == ownerID && strings.EqualFold(row.Title, title) {
			copied := *row
			return &copied, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (s *fakeKnowledgeItemStore) Update(ctx context.Context, data types.KnowledgeItem) error {
	for _, row := range s.rows {
		if row.ID == data.ID {
			*row = data
			return nil
		}
	}
	return sql.ErrNoRows
}

func (s *fakeKnowledgeItemStore) List(ctx context.Context, ownerID string) ([]types.KnowledgeItem, error) {
	var out []types.KnowledgeItem
	for _, row := range s.rows {
		if row.OwnerID == ownerID {
			out = append(out, *row)
		}
	}
	return out, nil
}

type fakeInsightStore struct {
	fakeCommons
	rows []*types.Insight
}

func (s *fakeInsightStore) Create(ctx context.Context, data types.Insight) error {
	row := data
	s.rows = append(s.rows, &row)
	return nil
}

func (s *fakeInsightStore) GetByContent(ctx context.Context, ownerID, content string) (*types.Insight, error) {
	for _, row := range s.rows {
		if row.OwnerID == ownerID && row.Content == content {
			copied := *row
			return &copied, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (s *fakeInsightStore) List(ctx context.Context, ownerID string) ([]types.Insight, error) {
	var out []types.Insight
	for _, row := range s.rows {
		if row.OwnerID == ownerID {
			out = append(out, *row)
		}
	}
	return out, nil
}
