// Package testsupport holds helpers shared by the CLI script tests.
package testsupport

import (
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/rogpeppe/go-internal/testscript"

	timerdto "timeblock/internal/modules/timer/dto"
)

var (
	buildOnce sync.Once
	binPath   string
	buildErr  error
)

// BuildTimeblock builds the timeblock binary once and returns its path.
func BuildTimeblock(t testing.TB) string {
	t.Helper()

	buildOnce.Do(func() {
		moduleRoot, err := findModuleRoot()
		if err != nil {
			buildErr = err
			return
		}
		binDir, err := os.MkdirTemp("", "timeblock-bin-")
		if err != nil {
			buildErr = err
			return
		}
		binPath = filepath.Join(binDir, "timeblock")
		cmd := exec.Command("go", "build", "-o", binPath, "./cmd/timeblock")
		cmd.Dir = moduleRoot
		output, err := cmd.CombinedOutput()
		if err != nil {
			buildErr = fmt.Errorf("build timeblock: %w: %s", err, strings.TrimSpace(string(output)))
		}
	})

	if buildErr != nil {
		t.Fatalf("%v", buildErr)
	}
	return binPath
}

// SetupScriptEnv exposes the binary as $TIMEBLOCK and isolates HOME.
func SetupScriptEnv(t testing.TB, env *testscript.Env) error {
	t.Helper()

	env.Setenv("TIMEBLOCK", BuildTimeblock(t))
	homeDir := filepath.Join(env.WorkDir, "home")
	if err := os.MkdirAll(homeDir, 0o755); err != nil {
		return err
	}
	env.Setenv("HOME", homeDir)
	return nil
}

// CmdActivityID finds an activity by title in a `list --json` dump and
// stores its id in an env var.
func CmdActivityID(ts *testscript.TestScript, neg bool, args []string) {
	if neg {
		ts.Fatalf("activityid does not support negation")
	}
	if len(args) != 3 {
		ts.Fatalf("usage: activityid FILE TITLE VAR")
	}

	var items []timerdto.ActivityOutput
	if err := json.Unmarshal([]byte(ts.ReadFile(args[0])), &items); err != nil {
		ts.Fatalf("parse activity list: %v", err)
	}
	for _, item := range items {
		if item.Title == args[1] {
			ts.Setenv(args[2], item.ID)
			return
		}
	}
	ts.Fatalf("activity with title %q not found", args[1])
}

func findModuleRoot() (string, error) {
	dir, err := os.Getwd()
	if err != nil {
		return "", fmt.Errorf("get working directory: %w", err)
	}
	for {
		if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil {
			return dir, nil
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return "", fmt.Errorf("could not find module root (go.mod)")
		}
		dir = parent
	}
}
