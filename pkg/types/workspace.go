package types

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
)

type Project struct {
	ID          string `json:"id" db:"id"`
	OwnerID     string `json:"owner_id" db:"owner_id"`
	Name        string `json:"name" db:"name"`
	Description string `json:"description" db:"description"`
	Priority    string `json:"priority" db:"priority"`
	Status      string `json:"status" db:"status"`
	StartDate   string `json:"start_date" db:"start_date"`
	TargetDate  string `json:"target_date" db:"target_date"`
	CreatedAt   int64  `json:"created_at" db:"created_at"`
	UpdatedAt   int64  `json:"updated_at" db:"updated_at"`
}

// Task keeps an empty project_id when the named parent could not be
// resolved, the row stays as an orphan rather than being dropped.
type Task struct {
	ID          string `json:"id" db:"id"`
	OwnerID     string `json:"owner_id" db:"owner_id"`
	ProjectID   string `json:"project_id" db:"project_id"`
	Name        string `json:"name" db:"name"`
	Description string `json:"description" db:"description"`
	Priority    string `json:"priority" db:"priority"`
	Status      string `json:"status" db:"status"`
	DueDate     string `json:"due_date" db:"due_date"`
	CreatedAt   int64  `json:"created_at" db:"created_at"`
	UpdatedAt   int64  `json:"updated_at" db:"updated_at"`
}

type Goal struct {
	ID          string `json:"id" db:"id"`
	OwnerID     string `json:"owner_id" db:"owner_id"`
	ProjectID   string `json:"project_id" db:"project_id"`
	Name        string `json:"name" db:"name"`
	Description string `json:"description" db:"description"`
	Status      string `json:"status" db:"status"`
	TargetDate  string `json:"target_date" db:"target_date"`
	CreatedAt   int64  `json:"created_at" db:"created_at"`
	UpdatedAt   int64  `json:"updated_at" db:"updated_at"`
}

type Milestone struct {
	ID          string `json:"id" db:"id"`
	OwnerID     string `json:"owner_id" db:"owner_id"`
	ProjectID   string `json:"project_id" db:"project_id"`
	Name        string `json:"name" db:"name"`
	Description string `json:"description" db:"description"`
	Status      string `json:"status" db:"status"`
	DueDate     string `json:"due_date" db:"due_date"`
	CreatedAt   int64  `json:"created_at" db:"created_at"`
	UpdatedAt   int64  `json:"updated_at" db:"updated_at"`
}

type KnowledgeItem struct {
	ID        string     `json:"id" db:"id"`
	OwnerID   string     `json:"owner_id" db:"owner_id"`
	Title     string     `json:"title" db:"title"`
	Content   string     `json:"content" db:"content"`
	Tags      StringList `json:"tags" db:"tags"`
	CreatedAt int64      `json:"created_at" db:"created_at"`
	UpdatedAt int64      `json:"updated_at" db:"updated_at"`
}

type Insight struct {
	ID        string `json:"id" db:"id"`
	OwnerID   string `json:"owner_id" db:"owner_id"`
	Content   string `json:"content" db:"content"`
	Category  string `json:"category" db:"category"`
	CreatedAt int64  `json:"created_at" db:"created_at"`
}

// StringList is stored as a jsonb array.
type StringList []string

func (l StringList) Value() (driver.Value, error) {
	if l == nil {
		return "[]", nil
	}
	raw, err := json.Marshal(l)
	if err != nil {
		return nil, err
	}
	return string(raw), nil
}

func (l *StringList) Scan(value any) error {
	if value == nil {
		*l = nil
		return nil
	}
	switch v := value.(type) {
	case []byte:
		return json.Unmarshal(v, l)
	case string:
		return json.Unmarshal([]byte(v), l)
	default:
		return fmt.Errorf("unsupported tags type %T", value)
	}
}
