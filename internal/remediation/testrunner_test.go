package remediation

import (
	"context"
	"strings"
	"testing"
	"time"
)

func TestExecRunner_StopsAtFirstFailure(t *testing.T) {
	runner := NewExecRunner(30 * time.Second)
	results, err := runner.Run(context.Background(), t.TempDir(), "go")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	// An empty directory is not a module, so the first tool fails and the
	// chain stops there
	if len(results) != 1 {
		t.Fatalf("expected chain to stop after first tool, got %d results", len(results))
	}
	if results[0].Passed {
		t.Error("expected go test to fail in an empty directory")
	}
	if results[0].Tool != "go test ./..." {
		t.Errorf("unexpected tool %q", results[0].Tool)
	}
}

func TestTruncateOutput(t *testing.T) {
	long := strings.Repeat("a", 100)
	got := truncateOutput(long, 10)
	if !strings.HasPrefix(got, "aaaaaaaaaa") || !strings.Contains(got, "truncated") {
		t.Errorf("unexpected truncation %q", got)
	}
	if truncateOutput("short", 10) != "short" {
		t.Error("short output must be untouched")
	}
}
