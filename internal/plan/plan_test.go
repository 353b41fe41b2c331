package plan

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/leapstack-labs/schemamap/pkg/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const pokemonPlan = `
name: pokemon
source:
  - {name: id, type: string}
  - {name: name, type: string}
  - legacy_flag
target:
  - {name: id, type: integer}
  - {name: name, type: string}
steps:
  - name: cast-id
    carry: true
    edits:
      - from: id
        to: {name: id, type: int}
      - from: legacy_flag
  - carry: true
`

func TestParse(t *testing.T) {
	p, err := Parse([]byte(pokemonPlan))
	require.NoError(t, err)

	assert.Equal(t, "pokemon", p.Name)
	assert.Equal(t, []string{"id", "name", "legacy_flag"}, p.Source.Names())
	assert.True(t, p.HasTarget())

	legacy, ok := p.Source.Lookup("legacy_flag")
	require.True(t, ok)
	assert.Equal(t, core.DataTypeUnknown, legacy.Type, "scalar attribute has no type")

	require.Len(t, p.Steps, 2)
	first := p.Steps[0]
	assert.Equal(t, "cast-id", first.Name)
	assert.True(t, first.Carry)
	require.Len(t, first.Edits, 2)
	assert.Equal(t, "id", first.Edits[0].From)
	require.NotNil(t, first.Edits[0].To)
	assert.Equal(t, core.NewAttribute("id", core.DataTypeInteger), *first.Edits[0].To)
	assert.False(t, first.Edits[0].IsDelete())
	assert.True(t, first.Edits[1].IsDelete())

	assert.Equal(t, "step-2", p.Steps[1].Name, "unnamed steps get a positional name")
	assert.Empty(t, p.Steps[1].Edits)
}

func TestParse_NoTarget(t *testing.T) {
	p, err := Parse([]byte("source: [a, b]\nsteps: []\n"))
	require.NoError(t, err)
	assert.False(t, p.HasTarget())
	assert.Empty(t, p.Steps)
}

func TestParse_Invalid(t *testing.T) {
	tests := []struct {
		name      string
		input     string
		wantStep  int
		wantField string
	}{
		{
			name:      "empty document",
			input:     "",
			wantStep:  -1,
			wantField: "source",
		},
		{
			name:      "no source",
			input:     "name: x\nsteps: []\n",
			wantStep:  -1,
			wantField: "source",
		},
		{
			name:      "duplicate source attribute",
			input:     "source: [a, a]\n",
			wantStep:  -1,
			wantField: "source",
		},
		{
			name:      "bad source type",
			input:     "source: [{name: a, type: blob}]\n",
			wantStep:  -1,
			wantField: "source[0]",
		},
		{
			name:      "missing from",
			input:     "source: [a]\nsteps:\n  - edits:\n      - to: b\n",
			wantStep:  0,
			wantField: "edits[0].from",
		},
		{
			name:      "nameless target",
			input:     "source: [a]\nsteps:\n  - carry: true\n  - edits:\n      - from: a\n        to: {type: string}\n",
			wantStep:  1,
			wantField: "edits[0].to",
		},
		{
			name:      "step without work",
			input:     "source: [a]\nsteps:\n  - name: noop\n",
			wantStep:  0,
			wantField: "edits",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.input))
			require.Error(t, err)

			var vErr *ValidationError
			require.True(t, errors.As(err, &vErr), "expected *ValidationError, got %T: %v", err, err)
			assert.Equal(t, tt.wantStep, vErr.Step)
			assert.Equal(t, tt.wantField, vErr.Field)
		})
	}
}

func TestParse_UnknownField(t *testing.T) {
	_, err := Parse([]byte("source: [a]\nsteps:\n  - carry: true\n    rename: b\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid plan YAML")
	assert.Contains(t, err.Error(), "rename")
}

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "orders.yaml")
	require.NoError(t, os.WriteFile(path, []byte("source: [order_id]\nsteps:\n  - carry: true\n"), 0o600))

	p, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "orders", p.Name, "name defaults to the file name")

	_, err = Load(filepath.Join(dir, "missing.yaml"))
	require.Error(t, err)
	assert.True(t, errors.Is(err, os.ErrNotExist))
}

func TestLoad_ValidationErrorKeepsPath(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("name: bad\n"), 0o600))

	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), path)

	var vErr *ValidationError
	assert.True(t, errors.As(err, &vErr))
}
