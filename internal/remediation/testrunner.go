package remediation

import (
	"bytes"
	"context"
	"fmt"
	"log"
	"os/exec"
	"strings"
	"time"
)

// TestResult captures the outcome of one tool invocation
type TestResult struct {
	Tool     string        `json:"tool"`
	Passed   bool          `json:"passed"`
	Output   string        `json:"output"`
	Duration time.Duration `json:"duration"`
}

// TestRunner executes the test and lint suites appropriate for a language
type TestRunner interface {
	Run(ctx context.Context, repoPath, language string) ([]TestResult, error)
}

// toolsByLanguage maps a language to the commands run against a fixed repo.
// The first entry is the test suite; the rest are linters.
var toolsByLanguage = map[string][][]string{
	"python":     {{"pytest", "-x", "-q"}, {"flake8", "."}, {"bandit", "-r", ".", "-q"}},
	"javascript": {{"npx", "jest", "--ci"}, {"npx", "eslint", "."}},
	"typescript": {{"npx", "jest", "--ci"}, {"npx", "eslint", "."}},
	"go":         {{"go", "test", "./..."}, {"go", "vet", "./..."}},
}

// ExecRunner runs tools as subprocesses in the repo working directory
type ExecRunner struct {
	timeout time.Duration
}

// NewExecRunner creates a runner with a per-tool timeout
func NewExecRunner(timeout time.Duration) *ExecRunner {
	if timeout <= 0 {
		timeout = 5 * time.Minute
	}
	return &ExecRunner{timeout: timeout}
}

// Run executes the tool chain for the language. Execution stops at the
// first failing tool; earlier results are still returned.
func (r *ExecRunner) Run(ctx context.Context, repoPath, language string) ([]TestResult, error) {
	tools, ok := toolsByLanguage[strings.ToLower(language)]
	if !ok {
		return nil, fmt.Errorf("no test tooling configured for language %q", language)
	}

	var results []TestResult
	for _, argv := range tools {
		result := r.runTool(ctx, repoPath, argv)
		results = append(results, result)
		if !result.Passed {
			break
		}
	}
	return results, nil
}

func (r *ExecRunner) runTool(ctx context.Context, repoPath string, argv []string) TestResult {
	toolCtx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	start := time.Now()
	cmd := exec.CommandContext(toolCtx, argv[0], argv[1:]...)
	cmd.Dir = repoPath

	var output bytes.Buffer
	cmd.Stdout = &output
	cmd.Stderr = &output

	err := cmd.Run()
	result := TestResult{
		Tool:     strings.Join(argv, " "),
		Passed:   err == nil,
		Output:   truncateOutput(output.String(), 16*1024),
		Duration: time.Since(start),
	}

	if toolCtx.Err() == context.DeadlineExceeded {
		result.Output += "\n(timed out)"
	}

	log.Printf("ExecRunner: %s passed=%v in %v", result.Tool, result.Passed, result.Duration.Round(time.Millisecond))
	return result
}

// AllPassed reports whether every tool in the run succeeded
func AllPassed(results []TestResult) bool {
	if len(results) == 0 {
		return false
	}
	for _, r := range results {
		if !r.Passed {
			return false
		}
	}
	return true
}

// ResultsToMap converts results to the JSON shape stored on the attempt
func ResultsToMap(results []TestResult) map[string]interface{} {
	runs := make([]interface{}, len(results))
	for i, r := range results {
		runs[i] = map[string]interface{}{
			"tool":        r.Tool,
			"passed":      r.Passed,
			"output":      r.Output,
			"duration_ms": r.Duration.Milliseconds(),
		}
	}
	return map[string]interface{}{
		"passed": AllPassed(results),
		"runs":   runs,
	}
}

func truncateOutput(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max] + "\n... (truncated)"
}
