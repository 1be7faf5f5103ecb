package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/lapomascherj/atmo-core/pkg/errors"
	"github.com/lapomascherj/atmo-core/pkg/i18n"
	"github.com/lapomascherj/atmo-core/pkg/types"
)

// API is the server surface the session cache depends on. The HTTP
// implementation talks to the service, tests provide fakes.
type API interface {
	GetActiveSession(ctx context.Context) (*types.ChatSession, error)
	CreateSession(ctx context.Context) (*types.ChatSession, error)
	ActivateSession(ctx context.Context, sessionID string) (*types.ChatSession, error)
	DeleteSession(ctx context.Context, sessionID string) error
	ListArchivedSessions(ctx context.Context) ([]types.ChatSession, error)
	ListSessionMessages(ctx context.Context, sessionID string) ([]*types.ChatMessage, error)
	SendMessage(ctx context.Context, sessionID string, args types.CreateChatMessageArgs) (*SubmitResult, error)
}

// SubmitResult mirrors the gateway's answer for one submitted message.
type SubmitResult struct {
	UserMessage      *types.ChatMessage `json:"user_message"`
	AssistantMessage *types.ChatMessage `json:"assistant_message"`
	NextSteps        []string           `json:"next_steps,omitempty"`
	EntityCount      int64              `json:"entity_count"`
	Replayed         bool               `json:"replayed"`
}

type HttpAPI struct {
	baseURL string
	token   string
	client  *http.Client
}

func NewHttpAPI(baseURL, token string) *HttpAPI {
	return &HttpAPI{
		baseURL: baseURL,
		token:   token,
		client:  &http.Client{Timeout: time.Second * 90},
	}
}

type responseEnvelope struct {
	Meta struct {
		Code      int    `json:"code"`
		Message   string `json:"message"`
		RequestID string `json:"request_id"`
	} `json:"meta"`
	Data json.RawMessage `json:"data"`
}

func (a *HttpAPI) do(ctx context.Context, method, path string, body any, out any) error {
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return errors.New("HttpAPI.do.Marshal", i18n.ERROR_INTERNAL, err)
		}
		reader = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, a.baseURL+path, reader)
	if err != nil {
		return errors.New("HttpAPI.do.NewRequest", i18n.ERROR_INTERNAL, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+a.token)

	resp, err := a.client.Do(req)
	if err != nil {
		return errors.New("HttpAPI.do.Do", i18n.ERROR_INTERNAL, err).Code(http.StatusServiceUnavailable)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return errors.New("HttpAPI.do.ReadAll", i18n.ERROR_INTERNAL, err)
	}

	var envelope responseEnvelope
	if err = json.Unmarshal(raw, &envelope); err != nil {
		return errors.New("HttpAPI.do.Unmarshal", i18n.ERROR_INTERNAL, fmt.Errorf("%w: %s", err, string(raw)))
	}

	if resp.StatusCode != http.StatusOK {
		return errors.New("HttpAPI.do."+path, envelope.Meta.Message, nil).Code(resp.StatusCode)
	}

	if out != nil && len(envelope.Data) > 0 {
		if err = json.Unmarshal(envelope.Data, out); err != nil {
			return errors.New("HttpAPI.do.UnmarshalData", i18n.ERROR_INTERNAL, err)
		}
	}
	return nil
}

func (a *HttpAPI) GetActiveSession(ctx context.Context) (*types.ChatSession, error) {
	var session types.ChatSession
	if err := a.do(ctx, http.MethodGet, "/api/v1/chat/session", nil, &session); err != nil {
		if errors.IsNotFound(err) {
			return nil, nil
		}
		return nil, err
	}
	return &session, nil
}

func (a *HttpAPI) CreateSession(ctx context.Context) (*types.ChatSession, error) {
	var session types.ChatSession
	if err := a.do(ctx, http.MethodPost, "/api/v1/chat/session", nil, &session); err != nil {
		return nil, err
	}
	return &session, nil
}

func (a *HttpAPI) ActivateSession(ctx context.Context, sessionID string) (*types.ChatSession, error) {
	var session types.ChatSession
	if err := a.do(ctx, http.MethodPost, "/api/v1/chat/session/"+sessionID+"/activate", nil, &session); err != nil {
		return nil, err
	}
	return &session, nil
}

func (a *HttpAPI) DeleteSession(ctx context.Context, sessionID string) error {
	return a.do(ctx, http.MethodDelete, "/api/v1/chat/session/"+sessionID, nil, nil)
}

func (a *HttpAPI) ListArchivedSessions(ctx context.Context) ([]types.ChatSession, error) {
	var out struct {
		List []types.ChatSession `json:"list"`
	}
	if err := a.do(ctx, http.MethodGet, "/api/v1/chat/sessions/archived", nil, &out); err != nil {
		return nil, err
	}
	return out.List, nil
}

func (a *HttpAPI) ListSessionMessages(ctx context.Context, sessionID string) ([]*types.ChatMessage, error) {
	var out struct {
		List  []*types.ChatMessage `json:"list"`
		Total int64                `json:"total"`
	}
	path := fmt.Sprintf("/api/v1/chat/session/%s/messages?page=1&pagesize=%d", sessionID, maxPreviewMessages)
	if err := a.do(ctx, http.MethodGet, path, nil, &out); err != nil {
		return nil, err
	}
	return out.List, nil
}

func (a *HttpAPI) SendMessage(ctx context.Context, sessionID string, args types.CreateChatMessageArgs) (*SubmitResult, error) {
	body := struct {
		SessionID string `json:"session_id"`
		types.CreateChatMessageArgs
	}{
		SessionID:             sessionID,
		CreateChatMessageArgs: args,
	}

	var result SubmitResult
	if err := a.do(ctx, http.MethodPost, "/api/v1/chat/message", body, &result); err != nil {
		return nil, err
	}
	return &result, nil
}
