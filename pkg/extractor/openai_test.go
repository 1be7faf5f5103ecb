package extractor

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/lapomascherj/atmo-core/pkg/types"
)

func TestParseOutput(t *testing.T) {
	raw := `{"reply":"done","next_steps":["review"],"entities":[{"type":"project","data":{"name":"Atmo"}}]}`

	out, err := ParseOutput(raw)
	require.NoError(t, err)
	require.Equal(t, "done", out.Reply)
	require.Equal(t, []string{"review"}, out.NextSteps)
	require.Len(t, out.Entities, 1)
	require.Equal(t, types.ENTITY_TYPE_PROJECT, out.Entities[0].Type)
}

func TestParseOutputTrimsCodeFence(t *testing.T) {
	raw := "```json\n{\"reply\":\"ok\",\"entities\":[]}\n```"

	out, err := ParseOutput(raw)
	require.NoError(t, err)
	require.Equal(t, "ok", out.Reply)
}

func TestParseOutputDropsMalformedCandidates(t *testing.T) {
	raw := `{"reply":"ok","entities":[
		{"type":"spaceship","data":{"name":"x"}},
		{"type":"task","data":null},
		{"type":"task","data":{"name":"ship it"}}
	]}`

	out, err := ParseOutput(raw)
	require.NoError(t, err)
	require.Len(t, out.Entities, 1)
	require.Equal(t, types.ENTITY_TYPE_TASK, out.Entities[0].Type)
}

func TestParseOutputRejectsGarbage(t *testing.T) {
	_, err := ParseOutput("sorry, I cannot help with that")
	require.Error(t, err)
}
