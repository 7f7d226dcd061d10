// Package arch_test checks structural rules of the internal packages:
// dependency layering, package-level state, GoDoc coverage and file size.
package arch_test

import (
	"go/ast"
	"go/parser"
	"go/token"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strings"
	"testing"
)

const (
	modulePath  = "github.com/papapumpkin/ccgtools"
	internalPfx = modulePath + "/internal/"
)

// internalDir returns the absolute path of internal/, located relative to
// this source file.
func internalDir(t *testing.T) string {
	t.Helper()
	_, thisFile, _, ok := runtime.Caller(0)
	if !ok {
		t.Fatal("runtime.Caller failed")
	}
	return filepath.Dir(filepath.Dir(thisFile))
}

// internalPackages lists the package directories under internal/ that hold
// Go source, excluding arch_test itself.
func internalPackages(t *testing.T) []string {
	t.Helper()
	entries, err := os.ReadDir(internalDir(t))
	if err != nil {
		t.Fatalf("reading internal/: %v", err)
	}
	var pkgs []string
	for _, e := range entries {
		if !e.IsDir() || e.Name() == "arch_test" {
			continue
		}
		if len(sourceFiles(t, e.Name(), false)) > 0 {
			pkgs = append(pkgs, e.Name())
		}
	}
	sort.Strings(pkgs)
	return pkgs
}

// sourceFiles returns the .go files of an internal package, sorted, with or
// without its _test.go files.
func sourceFiles(t *testing.T, pkg string, withTests bool) []string {
	t.Helper()
	dir := filepath.Join(internalDir(t), pkg)
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("reading %s: %v", dir, err)
	}
	var files []string
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasSuffix(name, ".go") {
			continue
		}
		if !withTests && strings.HasSuffix(name, "_test.go") {
			continue
		}
		files = append(files, filepath.Join(dir, name))
	}
	sort.Strings(files)
	return files
}

// parseFiles parses the non-test files of pkg with comments.
func parseFiles(t *testing.T, pkg string) (*token.FileSet, []*ast.File) {
	t.Helper()
	fset := token.NewFileSet()
	var files []*ast.File
	for _, path := range sourceFiles(t, pkg, false) {
		f, err := parser.ParseFile(fset, path, nil, parser.ParseComments)
		if err != nil {
			t.Fatalf("parsing %s: %v", path, err)
		}
		files = append(files, f)
	}
	return fset, files
}

// internalImports returns the internal packages imported by pkg's non-test
// files, deduplicated and sorted.
func internalImports(t *testing.T, pkg string) []string {
	t.Helper()
	_, files := parseFiles(t, pkg)
	seen := make(map[string]bool)
	for _, f := range files {
		for _, imp := range f.Imports {
			path := strings.Trim(imp.Path.Value, `"`)
			if rel, ok := strings.CutPrefix(path, internalPfx); ok {
				rel, _, _ = strings.Cut(rel, "/")
				seen[rel] = true
			}
		}
	}
	imports := make([]string, 0, len(seen))
	for pkg := range seen {
		imports = append(imports, pkg)
	}
	sort.Strings(imports)
	return imports
}

// relPath trims everything before internal/ for readable failures.
func relPath(path string) string {
	if i := strings.Index(filepath.ToSlash(path), "internal/"); i >= 0 {
		return filepath.ToSlash(path)[i:]
	}
	return filepath.Base(path)
}

func TestHelpersFindPackages(t *testing.T) {
	t.Parallel()

	pkgs := internalPackages(t)
	for _, want := range []string{"config", "enumdb", "pkgmgr", "reflector", "tracker"} {
		i := sort.SearchStrings(pkgs, want)
		if i == len(pkgs) || pkgs[i] != want {
			t.Errorf("expected %q in internal packages %v", want, pkgs)
		}
	}
	for _, p := range pkgs {
		if p == "arch_test" {
			t.Error("internalPackages must exclude arch_test")
		}
	}

	imports := internalImports(t, "tracker")
	if i := sort.SearchStrings(imports, "enumdb"); i == len(imports) || imports[i] != "enumdb" {
		t.Errorf("expected tracker to import enumdb, got %v", imports)
	}
	for _, f := range sourceFiles(t, "pkgmgr", false) {
		if strings.HasSuffix(f, "_test.go") {
			t.Errorf("sourceFiles without tests returned %s", f)
		}
	}
}

func mustParse(t *testing.T, fset *token.FileSet, src string) *ast.File {
	t.Helper()
	f, err := parser.ParseFile(fset, "canary.go", src, parser.ParseComments)
	if err != nil {
		t.Fatalf("parsing canary: %v", err)
	}
	return f
}
