package types

import (
	"encoding/json"
	"fmt"
)

type EntityType string

const (
	ENTITY_TYPE_PROJECT   EntityType = "project"
	ENTITY_TYPE_TASK      EntityType = "task"
	ENTITY_TYPE_GOAL      EntityType = "goal"
	ENTITY_TYPE_MILESTONE EntityType = "milestone"
	ENTITY_TYPE_KNOWLEDGE EntityType = "knowledge"
	ENTITY_TYPE_INSIGHT   EntityType = "insight"
)

func (t EntityType) Valid() bool {
	switch t {
	case ENTITY_TYPE_PROJECT, ENTITY_TYPE_TASK, ENTITY_TYPE_GOAL,
		ENTITY_TYPE_MILESTONE, ENTITY_TYPE_KNOWLEDGE, ENTITY_TYPE_INSIGHT:
		return true
	}
	return false
}

// ParsedEntity is a raw candidate entity mined from an assistant reply.
// Processed is monotonic, false -> true, never reset.
type ParsedEntity struct {
	ID              string          `json:"id" db:"id"`
	OwnerID         string          `json:"owner_id" db:"owner_id"`
	SourceMessageID string          `json:"source_message_id" db:"source_message_id"`
	EntityType      EntityType      `json:"entity_type" db:"entity_type"`
	EntityData      json.RawMessage `json:"entity_data" db:"entity_data"`
	Processed       bool            `json:"processed" db:"processed"`
	CreatedAt       int64           `json:"created_at" db:"created_at"`
}

type ProjectPayload struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Priority    string `json:"priority,omitempty"`
	Status      string `json:"status,omitempty"`
	StartDate   string `json:"start_date,omitempty"`
	TargetDate  string `json:"target_date,omitempty"`
}

type TaskPayload struct {
	Name        string `json:"name"`
	ProjectName string `json:"project_name,omitempty"`
	Description string `json:"description,omitempty"`
	Priority    string `json:"priority,omitempty"`
	Status      string `json:"status,omitempty"`
	DueDate     string `json:"due_date,omitempty"`
}

type GoalPayload struct {
	Name        string `json:"name"`
	ProjectName string `json:"project_name,omitempty"`
	Description string `json:"description,omitempty"`
	Status      string `json:"status,omitempty"`
	TargetDate  string `json:"target_date,omitempty"`
}

type MilestonePayload struct {
	Name        string `json:"name"`
	ProjectName string `json:"project_name,omitempty"`
	Description string `json:"description,omitempty"`
	Status      string `json:"status,omitempty"`
	DueDate     string `json:"due_date,omitempty"`
}

type KnowledgePayload struct {
	Title   string   `json:"title"`
	Content string   `json:"content,omitempty"`
	Tags    []string `json:"tags,omitempty"`
}

type InsightPayload struct {
	Content  string `json:"content"`
	Category string `json:"category,omitempty"`
}

func (e ParsedEntity) DecodePayload(dst any) error {
	if len(e.EntityData) == 0 {
		return fmt.Errorf("entity %s has empty payload", e.ID)
	}
	return json.Unmarshal(e.EntityData, dst)
}
