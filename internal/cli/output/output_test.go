package output

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMode(t *testing.T) {
	tests := []struct {
		in   string
		want OutputMode
	}{
		{"", ModeAuto},
		{"auto", ModeAuto},
		{"TEXT", ModeText},
		{"markdown", ModeMarkdown},
		{"md", ModeMarkdown},
		{"json", ModeJSON},
		{"html", ModeAuto},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, Mode(tt.in))
		})
	}
}

func TestEffectiveMode(t *testing.T) {
	var out, errOut bytes.Buffer

	assert.Equal(t, ModeText, NewRendererWithTTY(&out, &errOut, true, ModeAuto).EffectiveMode())
	assert.Equal(t, ModeMarkdown, NewRendererWithTTY(&out, &errOut, false, ModeAuto).EffectiveMode())
	assert.Equal(t, ModeJSON, NewRendererWithTTY(&out, &errOut, true, ModeJSON).EffectiveMode())
	// A buffer is never a terminal.
	assert.Equal(t, ModeMarkdown, NewRenderer(&out, &errOut, ModeAuto).EffectiveMode())
}

func TestRenderer_Markdown(t *testing.T) {
	var out, errOut bytes.Buffer
	r := NewRendererWithTTY(&out, &errOut, false, ModeMarkdown)

	r.Header(1, "Replay orders")
	r.KeyValue("Steps", "2")
	r.Table([]string{"Attribute", "Type"}, [][]string{{"id", "integer"}, {"name", "string"}})

	got := out.String()
	assert.Contains(t, got, "# Replay orders\n")
	assert.Contains(t, got, "- **Steps**: 2")
	assert.Contains(t, got, "| Attribute | Type |")
	assert.Contains(t, got, "| id | integer |")
	assert.NotContains(t, got, "\x1b[")
}

func TestRenderer_Text(t *testing.T) {
	var out, errOut bytes.Buffer
	r := NewRendererWithTTY(&out, &errOut, false, ModeText)

	r.Header(2, "Final schema")
	r.Table([]string{"Attribute"}, [][]string{{"id"}})
	r.Success("replayed")
	r.Warning("step skipped")
	r.Error("boom")

	assert.Contains(t, out.String(), "Final schema")
	assert.Contains(t, out.String(), "│ id")
	assert.Contains(t, out.String(), "✓ replayed")
	assert.Contains(t, errOut.String(), "! step skipped")
	assert.Contains(t, errOut.String(), "✗ boom")
}

func TestRenderer_JSON(t *testing.T) {
	var out, errOut bytes.Buffer
	r := NewRendererWithTTY(&out, &errOut, false, ModeJSON)

	require.NoError(t, r.JSON(HistoryOutput{Runs: []RunInfo{{ID: "r1", Plan: "orders"}}}))

	var decoded HistoryOutput
	require.NoError(t, json.Unmarshal(out.Bytes(), &decoded))
	require.Len(t, decoded.Runs, 1)
	assert.Equal(t, "orders", decoded.Runs[0].Plan)
}

func TestFormat(t *testing.T) {
	assert.Equal(t, "## Steps", FormatHeader(2, "Steps"))
	assert.Equal(t, "# Steps", FormatHeader(0, "Steps"))
	assert.Equal(t, "- **Plan**: orders", FormatKeyValue("Plan", "orders"))
	assert.Equal(t, "-", FormatList(nil))
	assert.Equal(t, "a, b", FormatList([]string{"a", "b"}))
}
