// Package testutil provides reusable testing helpers for enforcing layering
// rules across the repository.
package testutil

import (
	"go/parser"
	"go/token"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"testing"

	"golang.org/x/tools/go/packages"
)

// Module is the import path prefix of this repository.
const Module = "organcore"

// AssertNoDirectImports scans the non-test .go files in dir and fails if any
// import path satisfies forbidden. It does not follow build tags.
func AssertNoDirectImports(t testing.TB, dir string, forbidden func(importPath string) bool, reason string) {
	t.Helper()
	viols, err := directImportViolations(dir, forbidden)
	if err != nil {
		t.Fatalf("read dir: %v", err)
	}
	failIfViolations(t, "direct imports", reason, viols)
}

// AssertImportedOnlyBy loads every package matching pattern, tests included,
// and fails if a package outside allowed imports a path under forbidden.
func AssertImportedOnlyBy(t testing.TB, pattern, allowed, forbidden string, reason string) {
	t.Helper()
	cfg := &packages.Config{Mode: packages.NeedName | packages.NeedImports, Tests: true}
	pkgs, err := packages.Load(cfg, pattern)
	if err != nil {
		t.Fatalf("load packages: %v", err)
	}
	failIfViolations(t, "imports", reason, importViolations(pkgs, allowed, forbidden))
}

// InternalImport matches import paths inside this module's internal tree.
func InternalImport(path string) bool {
	return HasPathPrefix(path, Module+"/internal")
}

// HasPathPrefix reports whether path equals prefix or lies beneath it.
func HasPathPrefix(path, prefix string) bool {
	return path == prefix || strings.HasPrefix(path, prefix+"/")
}

func importViolations(pkgs []*packages.Package, allowed, forbidden string) []string {
	seen := make(map[string]struct{})
	for _, pkg := range pkgs {
		if HasPathPrefix(pkg.PkgPath, allowed) || HasPathPrefix(pkg.PkgPath, forbidden) {
			continue
		}
		for importPath := range pkg.Imports {
			if HasPathPrefix(importPath, forbidden) {
				seen[pkg.PkgPath+": "+importPath] = struct{}{}
			}
		}
	}
	viols := make([]string, 0, len(seen))
	for v := range seen {
		viols = append(viols, v)
	}
	sort.Strings(viols)
	return viols
}

func directImportViolations(dir string, forbidden func(importPath string) bool) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	fset := token.NewFileSet()
	var viols []string
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasSuffix(name, ".go") || strings.HasSuffix(name, "_test.go") {
			continue
		}
		f, err := parser.ParseFile(fset, filepath.Join(dir, name), nil, parser.ImportsOnly)
		if err != nil {
			return nil, err
		}
		for _, imp := range f.Imports {
			ip, err := strconv.Unquote(imp.Path.Value)
			if err != nil {
				return nil, err
			}
			if forbidden(ip) {
				viols = append(viols, ip+" (in "+name+")")
			}
		}
	}
	return viols, nil
}

type fatalLogger interface {
	Fatalf(format string, args ...any)
}

func failIfViolations(t fatalLogger, what, reason string, viols []string) {
	if len(viols) > 0 {
		t.Fatalf("forbidden %s detected (%s):\n%s", what, reason, strings.Join(viols, "\n"))
	}
}
