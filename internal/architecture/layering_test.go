package architecture_test

import (
	"go/parser"
	"go/token"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

const modulePrefix = "timeblock/internal/"

type importRef struct {
	file string
	path string
}

func collectImports(t *testing.T, root string) []importRef {
	t.Helper()
	fset := token.NewFileSet()
	var refs []importRef
	err := filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !strings.HasSuffix(path, ".go") || strings.HasSuffix(path, "_test.go") {
			return nil
		}
		node, parseErr := parser.ParseFile(fset, path, nil, parser.ImportsOnly)
		if parseErr != nil {
			return parseErr
		}
		for _, imp := range node.Imports {
			refs = append(refs, importRef{file: filepath.ToSlash(path), path: strings.Trim(imp.Path.Value, `"`)})
		}
		return nil
	})
	if err != nil {
		t.Fatalf("walk %s: %v", root, err)
	}
	return refs
}

func TestHexagonalLayerImports(t *testing.T) {
	t.Parallel()
	for _, ref := range collectImports(t, filepath.Join("..", "modules")) {
		module := moduleName(ref.file)
		layer := detectLayer(ref.file)
		if module == "" || layer == "" {
			continue
		}
		if !strings.Contains(ref.path, modulePrefix+"modules/") {
			continue
		}
		if violatesLayerRule(module, layer, ref.path) {
			t.Fatalf("forbidden import in %s (%s): %s", ref.file, layer, ref.path)
		}
	}
}

// The domain layer may only lean on the error taxonomy and third-party code
// that has no I/O.
func TestDomainStaysPure(t *testing.T) {
	t.Parallel()
	for _, ref := range collectImports(t, filepath.Join("..", "modules")) {
		if detectLayer(ref.file) != "domain" {
			continue
		}
		if strings.HasPrefix(ref.path, modulePrefix) && ref.path != modulePrefix+"platform/errors" {
			t.Fatalf("domain file %s imports %s", ref.file, ref.path)
		}
		for _, banned := range []string{"database/sql", "net/", "os/exec", "log/slog"} {
			if strings.HasPrefix(ref.path, banned) {
				t.Fatalf("domain file %s imports %s", ref.file, ref.path)
			}
		}
	}
}

func TestPlatformDoesNotImportModules(t *testing.T) {
	t.Parallel()
	for _, ref := range collectImports(t, filepath.Join("..", "platform")) {
		if strings.HasPrefix(ref.path, modulePrefix+"modules/") || strings.HasPrefix(ref.path, modulePrefix+"ui/") {
			t.Fatalf("platform file %s imports %s", ref.file, ref.path)
		}
	}
}

// The board talks to the timer module through its inbound adapter only.
func TestUIUsesDTOsOnly(t *testing.T) {
	t.Parallel()
	for _, ref := range collectImports(t, filepath.Join("..", "ui")) {
		if !strings.HasPrefix(ref.path, modulePrefix+"modules/") {
			continue
		}
		if isDTO(ref.path) || strings.HasSuffix(ref.path, "/domain") {
			continue
		}
		t.Fatalf("ui file %s imports %s", ref.file, ref.path)
	}
}

func moduleName(path string) string {
	parts := strings.Split(path, "/")
	for i := 0; i < len(parts)-1; i++ {
		if parts[i] == "modules" {
			return parts[i+1]
		}
	}
	return ""
}

func detectLayer(path string) string {
	for _, layer := range []string{"adapter/in", "adapter/out", "usecase", "service", "domain", "port/in", "port/out", "dto"} {
		if strings.Contains(path, "/"+layer+"/") {
			return layer
		}
	}
	return ""
}

func isPortIn(path string) bool {
	return strings.Contains(path, "/port/in/") || strings.HasSuffix(path, "/port/in")
}

func isDTO(path string) bool {
	return strings.Contains(path, "/dto/") || strings.HasSuffix(path, "/dto")
}

func violatesLayerRule(module, layer, importPath string) bool {
	sameModule := strings.Contains(importPath, "/internal/modules/"+module+"/")
	if !sameModule {
		if strings.Contains(importPath, "/service") || strings.Contains(importPath, "/adapter/") || strings.Contains(importPath, "/usecase") {
			return true
		}
		if isPortIn(importPath) || isDTO(importPath) {
			return false
		}
	}

	switch layer {
	case "adapter/in":
		return !isPortIn(importPath) && !isDTO(importPath)
	case "usecase":
		return strings.Contains(importPath, "/adapter/")
	case "service":
		return strings.Contains(importPath, "/adapter/") || strings.Contains(importPath, "/usecase")
	case "domain", "dto":
		return strings.Contains(importPath, "/adapter/") || strings.Contains(importPath, "/usecase") || strings.Contains(importPath, "/service") || strings.Contains(importPath, "/port/")
	default:
		return false
	}
}
