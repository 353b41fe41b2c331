// Package testutil provides test utilities for CLI testing.
package testutil

import (
	"bytes"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"testing"

	"github.com/leapstack-labs/schemamap/internal/cli/output"
)

// CustomersPlan casts id to an integer, drops legacy_flag and splits name.
// Replaying it reaches its target schema.
const CustomersPlan = `name: customers
source:
  - {name: id, type: string}
  - {name: name, type: string}
  - {name: legacy_flag, type: boolean}
target:
  - {name: id, type: integer}
  - {name: first_name, type: string}
  - {name: last_name, type: string}
steps:
  - name: cast-id
    carry: true
    edits:
      - from: id
        to: {name: id, type: integer}
      - from: legacy_flag
  - name: split-name
    carry: true
    edits:
      - from: name
        to: {name: first_name, type: string}
      - from: name
        to: {name: last_name, type: string}
`

// BrokenPlan has a second step naming an attribute that never existed.
const BrokenPlan = `name: broken
source: [id, legacy_flag]
steps:
  - name: drop-flag
    carry: true
    edits:
      - from: legacy_flag
  - name: rename-nickname
    carry: true
    edits:
      - from: nickname
        to: alias
  - name: rename-id
    edits:
      - from: id
        to: customer_id
`

// WritePlan writes a plan file named name into dir and returns its path.
func WritePlan(t *testing.T, dir, name, content string) string {
	t.Helper()

	path := filepath.Join(dir, name)
	if err := os.MkdirAll(filepath.Dir(path), 0750); err != nil {
		t.Fatalf("failed to create plan directory: %v", err)
	}
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatalf("failed to write plan %s: %v", name, err)
	}
	return path
}

// TestRenderer wraps a Renderer for testing with captured output buffers.
type TestRenderer struct {
	*output.Renderer
	Out    *bytes.Buffer
	ErrOut *bytes.Buffer
}

// NewTestRenderer creates a new test renderer with the specified mode and TTY state.
// Output is captured in buffers for inspection.
func NewTestRenderer(mode output.OutputMode, isTTY bool) *TestRenderer {
	out := &bytes.Buffer{}
	errOut := &bytes.Buffer{}
	return &TestRenderer{
		Renderer: output.NewRendererWithTTY(out, errOut, isTTY, mode),
		Out:      out,
		ErrOut:   errOut,
	}
}

// Output returns the stdout output as a string.
func (tr *TestRenderer) Output() string {
	return tr.Out.String()
}

// ErrorOutput returns the stderr output as a string.
func (tr *TestRenderer) ErrorOutput() string {
	return tr.ErrOut.String()
}

// ansiPattern matches ANSI escape codes.
var ansiPattern = regexp.MustCompile(`\x1b\[[0-9;]*[a-zA-Z]`)

// AssertNoANSI checks that a string contains no ANSI escape codes.
func AssertNoANSI(t *testing.T, s string) {
	t.Helper()
	if ansiPattern.MatchString(s) {
		t.Errorf("string contains ANSI escape codes: %q", s)
	}
}

// AssertValidMarkdown performs basic markdown validation.
// It checks for unclosed code fences and empty headers.
func AssertValidMarkdown(t *testing.T, md string) {
	t.Helper()

	if fenceCount := strings.Count(md, "```"); fenceCount%2 != 0 {
		t.Errorf("unbalanced code fences in markdown: found %d occurrences", fenceCount)
	}

	for i, line := range strings.Split(md, "\n") {
		trimmed := strings.TrimSpace(line)
		if strings.HasPrefix(trimmed, "#") && strings.TrimLeft(trimmed, "# ") == "" {
			t.Errorf("empty header at line %d: %q", i+1, line)
		}
	}
}
