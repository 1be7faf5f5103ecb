package v1

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/lapomascherj/atmo-core/app/core"
	"github.com/lapomascherj/atmo-core/pkg/extractor"
	"github.com/lapomascherj/atmo-core/pkg/security"
	"github.com/lapomascherj/atmo-core/pkg/utils"
)

func TestMain(m *testing.M) {
	utils.SetupIDWorker(1)
	m.Run()
}

// fakeExtractor returns a canned response, or fails when failWith is set.
type fakeExtractor struct {
	response *extractor.Response
	failWith error
	calls    int
}

func (f *fakeExtractor) Extract(ctx context.Context, req extractor.Request) (*extractor.Response, error) {
	f.calls++
	if f.failWith != nil {
		return nil, f.failWith
	}
	if f.response != nil {
		return f.response, nil
	}
	return &extractor.Response{Reply: "ok"}, nil
}

func testCoreConfig() core.CoreConfig {
	var cfg core.CoreConfig
	cfg.Chat.Enabled = true
	return cfg
}

func newTestCore(provider *fakeProvider, ext extractor.Extractor) *core.Core {
	return core.New(testCoreConfig(), provider, ext)
}

func userContext(owner string) context.Context {
	claims := security.NewTokenClaims("atmo", owner, 0)
	return context.WithValue(context.Background(), TOKEN_CONTEXT_KEY, claims) //nolint:staticcheck
}

func mustJSON(t *testing.T, v any) json.RawMessage {
	t.Helper()
	raw, err := json.Marshal(v)
	if err != nil {
		t.Fatal(err)
	}
	return raw
}
