package seed

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"ascii-arena/internal/store"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sample = `
models:
  - name: gpt-4o
    config: temperature=0.7
    metadata:
      provider: openai
  - name: claude
prompts:
  - text: a lighthouse
    outputs:
      gpt-4o: |
        |^|
        |_|
      claude: "/#\\"
  - text: a cat
    outputs:
      claude: "=^.^="
`

func TestLoadAndApply(t *testing.T) {
	path := filepath.Join(t.TempDir(), "seed.yaml")
	require.NoError(t, os.WriteFile(path, []byte(sample), 0o644))

	f, err := LoadFile(path)
	require.NoError(t, err)
	require.Len(t, f.Models, 2)
	assert.Equal(t, "|^|\n|_|\n", f.Prompts[0].Outputs["gpt-4o"])

	mem := store.NewMemory()
	ctx := context.Background()
	sum, err := Apply(ctx, mem, f)
	require.NoError(t, err)
	assert.Equal(t, Summary{Models: 2, Prompts: 2, Outputs: 3}, sum)

	list, err := mem.ListModelsByRating(ctx, 0)
	require.NoError(t, err)
	require.Len(t, list, 2)
	for _, m := range list {
		assert.Equal(t, 1500, m.EloRating)
		if m.ModelName == "gpt-4o" {
			assert.Equal(t, "openai", m.Provider())
		}
	}

	prompts, err := mem.ListPrompts(ctx)
	require.NoError(t, err)
	assert.Len(t, prompts, 2)
}

func TestParseRejects(t *testing.T) {
	tests := []struct {
		name string
		yaml string
	}{
		{"empty", ``},
		{"duplicate model", "models:\n  - name: a\n  - name: a\n"},
		{"unnamed model", "models:\n  - config: x\n"},
		{"undeclared model", "models:\n  - name: a\nprompts:\n  - text: t\n    outputs:\n      b: art\n"},
		{"blank prompt", "models:\n  - name: a\nprompts:\n  - text: \"  \"\n"},
		{"bad yaml", "models: [\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.yaml))
			assert.Error(t, err)
		})
	}
}
