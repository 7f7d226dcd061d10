package arch_test

import "testing"

// layers assigns each internal package to a numeric layer. A package may
// import packages of its own layer or below, never above.
var layers = map[string]int{
	"config":    0,
	"dag":       0,
	"fsutil":    0,
	"hashfold":  0,
	"ident":     0,
	"instlock":  0,
	"runlog":    0,
	"telemetry": 0,

	"enumdb": 1,

	"enumparse": 2,
	"tracker":   2,

	"pkgmgr":    3,
	"reflector": 3,

	"ui": 4,

	"tui": 5,
}

func TestDependencyLayering(t *testing.T) {
	t.Parallel()

	for _, pkg := range internalPackages(t) {
		layer, ok := layers[pkg]
		if !ok {
			continue
		}
		for _, imp := range internalImports(t, pkg) {
			if impLayer, ok := layers[imp]; ok && impLayer > layer {
				t.Errorf("layer violation: %s (layer %d) imports %s (layer %d)", pkg, layer, imp, impLayer)
			}
		}
	}
}

// TestNoUnknownPackages forces every new package to be placed in layers.
func TestNoUnknownPackages(t *testing.T) {
	t.Parallel()

	for _, pkg := range internalPackages(t) {
		if _, ok := layers[pkg]; !ok {
			t.Errorf("package %s has no layer assignment; add it to the layers map", pkg)
		}
	}
	for pkg := range layers {
		if len(sourceFiles(t, pkg, false)) == 0 {
			t.Errorf("layers lists %s, which has no source files", pkg)
		}
	}
}
