package extractor

import (
	"context"
	"encoding/json"

	"github.com/lapomascherj/atmo-core/pkg/types"
)

// Request carries one user message plus the minimal context the extractor
// needs to ground its reply: recent history and the owner's active projects.
type Request struct {
	OwnerID        string
	Message        string
	RecentHistory  []*types.ChatMessage
	ActiveProjects []string
}

// Candidate is a typed raw entity mined from the assistant reply. The
// payload shape matches the target domain object's creatable fields.
type Candidate struct {
	Type types.EntityType `json:"type"`
	Data json.RawMessage  `json:"data"`
}

type Response struct {
	Reply     string      `json:"reply"`
	NextSteps []string    `json:"next_steps"`
	Entities  []Candidate `json:"entities"`
}

// Extractor produces an assistant reply and candidate work items for one
// user message. Implementations must respect ctx cancellation.
type Extractor interface {
	Extract(ctx context.Context, req Request) (*Response, error)
}
