package extractor

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/samber/lo"
	openai "github.com/sashabaranov/go-openai"

	"github.com/lapomascherj/atmo-core/pkg/types"
)

const NAME = "openai"

const systemPrompt = `You are Atmo, an assistant that helps users organize their work.
Answer the user's message, then mine your own reply for structured work items.
Respond with a single JSON object:
{"reply": "...", "next_steps": ["..."], "entities": [{"type": "project|task|goal|milestone|knowledge|insight", "data": {...}}]}
Entity payload fields:
project: name, description, priority, status, start_date, target_date
task: name, project_name, description, priority, status, due_date
goal: name, project_name, description, status, target_date
milestone: name, project_name, description, status, due_date
knowledge: title, content, tags
insight: content, category
Only include entities the user actually described. Dates are YYYY-MM-DD.`

type Driver struct {
	client *openai.Client
	model  string
}

func New(token, proxy, model string) *Driver {
	cfg := openai.DefaultConfig(token)
	if proxy != "" {
		cfg.BaseURL = proxy
	}
	if model == "" {
		model = openai.GPT4oMini
	}

	return &Driver{
		client: openai.NewClientWithConfig(cfg),
		model:  model,
	}
}

func (s *Driver) Extract(ctx context.Context, req Request) (*Response, error) {
	slog.Debug("Extract", slog.String("driver", NAME), slog.String("owner", req.OwnerID))

	messages := []openai.ChatCompletionMessage{
		{
			Role:    openai.ChatMessageRoleSystem,
			Content: systemPrompt,
		},
	}

	if len(req.ActiveProjects) > 0 {
		messages = append(messages, openai.ChatCompletionMessage{
			Role:    openai.ChatMessageRoleSystem,
			Content: "Active projects: " + strings.Join(req.ActiveProjects, ", "),
		})
	}

	for _, msg := range req.RecentHistory {
		messages = append(messages, openai.ChatCompletionMessage{
			Role:    lo.If(msg.Role == types.MESSAGE_ROLE_ASSISTANT, openai.ChatMessageRoleAssistant).Else(openai.ChatMessageRoleUser),
			Content: msg.Content,
		})
	}

	messages = append(messages, openai.ChatCompletionMessage{
		Role:    openai.ChatMessageRoleUser,
		Content: req.Message,
	})

	resp, err := s.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:    s.model,
		Messages: messages,
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("extractor chat completion failed, %w", err)
	}

	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("extractor returned no choices")
	}

	return ParseOutput(resp.Choices[0].Message.Content)
}

// ParseOutput decodes the model output. Candidates with an unknown type or
// empty payload are dropped with a log line, the reply is kept either way.
func ParseOutput(raw string) (*Response, error) {
	raw = strings.TrimSpace(raw)
	// tolerate fenced output from models that ignore response_format
	raw = strings.TrimPrefix(raw, "```json")
	raw = strings.TrimPrefix(raw, "```")
	raw = strings.TrimSuffix(raw, "```")

	var out Response
	if err := json.Unmarshal([]byte(raw), &out); err != nil {
		return nil, fmt.Errorf("unparseable extractor output, %w", err)
	}

	valid := out.Entities[:0]
	for _, candidate := range out.Entities {
		if !candidate.Type.Valid() || len(candidate.Data) == 0 || string(candidate.Data) == "null" {
			slog.Warn("dropping malformed candidate entity", slog.String("type", string(candidate.Type)))
			continue
		}
		valid = append(valid, candidate)
	}
	out.Entities = valid

	return &out, nil
}
