package llm

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractJSON(t *testing.T) {
	tests := []struct {
		name  string
		reply string
		want  string
	}{
		{"bare object", `{"a": 1}`, `{"a": 1}`},
		{"code fence", "Here you go:\n```json\n{\"a\": 1}\n```\nDone.", `{"a": 1}`},
		{"fence without language", "```\n[1, 2]\n```", `[1, 2]`},
		{"leading prose", `The plan is {"a": {"b": 2}} as requested`, `{"a": {"b": 2}}`},
		{"braces inside strings", `{"cmd": "FIND nodes WHERE name = \"{x}\""}`, `{"cmd": "FIND nodes WHERE name = \"{x}\""}`},
		{"array payload", `result: [{"id": "n1"}]`, `[{"id": "n1"}]`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ExtractJSON(tt.reply))
		})
	}
}

func TestDecodeStructured(t *testing.T) {
	var out struct {
		Why      string   `json:"why"`
		Commands []string `json:"commands"`
	}
	reply := "```json\n{\"why\": \"probe\", \"commands\": [\"COUNT x AS n\"]}\n```"
	require.NoError(t, DecodeStructured(reply, &out))
	assert.Equal(t, "probe", out.Why)
	assert.Len(t, out.Commands, 1)
}

func TestDecodeStructured_Mismatch(t *testing.T) {
	var out struct {
		Commands []string `json:"commands"`
	}
	err := DecodeStructured(`{"commands": "not a list"}`, &out)
	var mismatch *SchemaMismatchError
	require.ErrorAs(t, err, &mismatch)
	assert.Contains(t, mismatch.Raw, "not a list")
}
