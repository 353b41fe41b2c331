package core_test

import (
	"go/parser"
	"go/token"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

const modulePath = "github.com/leapstack-labs/schemamap"

// packageImports returns the imports of every non-test Go file in dir,
// keyed by file name.
func packageImports(t *testing.T, dir string) map[string][]string {
	t.Helper()
	fset := token.NewFileSet()

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("Failed to read %s: %v", dir, err)
	}

	out := make(map[string][]string)
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".go") {
			continue
		}
		// Skip test files
		if strings.HasSuffix(entry.Name(), "_test.go") {
			continue
		}

		path := filepath.Join(dir, entry.Name())
		f, err := parser.ParseFile(fset, path, nil, parser.ImportsOnly)
		if err != nil {
			t.Errorf("Failed to parse %s: %v", path, err)
			continue
		}
		for _, imp := range f.Imports {
			out[entry.Name()] = append(out[entry.Name()], strings.Trim(imp.Path.Value, `"`))
		}
	}
	return out
}

// TestCoreImportsOnlyStdlib verifies pkg/core has no non-stdlib imports.
func TestCoreImportsOnlyStdlib(t *testing.T) {
	for file, imports := range packageImports(t, ".") {
		for _, importPath := range imports {
			// Stdlib paths have no dot in their first element
			if strings.Contains(importPath, ".") {
				t.Errorf("%s imports forbidden package: %s", file, importPath)
			}
		}
	}
}

// TestLineageImportsOnlyCore verifies pkg/lineage depends on core and the
// stdlib only, so it stays embeddable without the CLI stack.
func TestLineageImportsOnlyCore(t *testing.T) {
	allowed := map[string]bool{
		modulePath + "/pkg/core": true,
	}

	for file, imports := range packageImports(t, filepath.Join("..", "lineage")) {
		for _, importPath := range imports {
			if !strings.Contains(importPath, ".") {
				continue
			}
			if !allowed[importPath] {
				t.Errorf("lineage/%s imports forbidden package: %s", file, importPath)
			}
		}
	}
}

// TestPkgDoesNotImportInternal verifies no pkg/ package imports internal packages.
func TestPkgDoesNotImportInternal(t *testing.T) {
	for _, dir := range []string{".", filepath.Join("..", "lineage")} {
		for file, imports := range packageImports(t, dir) {
			for _, importPath := range imports {
				if strings.Contains(importPath, "/internal/") {
					t.Errorf("%s/%s imports internal package: %s", dir, file, importPath)
				}
			}
		}
	}
}
