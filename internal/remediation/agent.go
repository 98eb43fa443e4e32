package remediation

import (
	"context"
	"fmt"
	"log"

	"github.com/autoremedy/autoremedy/internal/database"
	"github.com/autoremedy/autoremedy/internal/services"
)

// AgentConfig holds the repository coordinates the agent works against
type AgentConfig struct {
	Owner      string
	Repo       string
	BaseBranch string
	RepoPath   string
}

// Agent drives a remediation attempt through its pipeline: analyze the
// incident, generate a fix, run the test suite, and open a pull request.
// Each stage advances the attempt's status; any stage failure marks the
// attempt failed with the error recorded.
type Agent struct {
	errors   *services.ErrorService
	analyzer Analyzer
	vcs      VCSClient
	runner   TestRunner
	config   AgentConfig
}

// NewAgent creates a remediation agent. A nil analyzer is replaced with the
// canned fallback; a nil VCS client or runner makes the pipeline fail
// cleanly at the first stage that needs the missing collaborator.
func NewAgent(errorSvc *services.ErrorService, analyzer Analyzer, vcs VCSClient, runner TestRunner, config AgentConfig) *Agent {
	if analyzer == nil {
		analyzer = FallbackAnalyzer{}
	}
	return &Agent{
		errors:   errorSvc,
		analyzer: analyzer,
		vcs:      vcs,
		runner:   runner,
		config:   config,
	}
}

// Run executes the full pipeline for an incident and returns the final
// attempt state. The returned error is nil when the pipeline completed
// through PR creation; a stage failure returns the error alongside the
// failed attempt.
func (a *Agent) Run(ctx context.Context, incidentID string) (*database.RemediationAttempt, error) {
	incident, err := a.errors.GetIncident(incidentID)
	if err != nil {
		return nil, err
	}

	attempt, err := a.errors.CreateRemediationAttempt(incidentID, "automated_fix",
		fmt.Sprintf("Automated remediation for %s in %s", incident.ErrorType, incident.ServiceName))
	if err != nil {
		return nil, err
	}

	log.Printf("Agent: Starting remediation %s for incident %s", attempt.ID, incidentID)

	analysis, err := a.analyzeStage(ctx, attempt, incident)
	if err != nil {
		return a.fail(attempt, "analysis", err)
	}

	fix, err := a.fixStage(ctx, attempt, incident, analysis)
	if err != nil {
		return a.fail(attempt, "fix generation", err)
	}

	if err := a.testStage(ctx, attempt, incident); err != nil {
		return a.fail(attempt, "testing", err)
	}

	if err := a.prStage(ctx, attempt, incident, analysis, fix); err != nil {
		return a.fail(attempt, "pull request", err)
	}

	final, err := a.errors.GetRemediationAttempt(attempt.ID)
	if err != nil {
		return attempt, err
	}
	log.Printf("Agent: Remediation %s reached %s", final.ID, final.Status)
	return final, nil
}

func (a *Agent) analyzeStage(ctx context.Context, attempt *database.RemediationAttempt, incident *database.ErrorIncident) (*Analysis, error) {
	analysis, err := a.analyzer.Analyze(ctx, incident)
	if err != nil {
		return nil, err
	}

	status := database.AttemptStatusAnalyzed
	_, err = a.errors.UpdateRemediationAttempt(attempt.ID, services.AttemptUpdate{
		Status: &status,
		AnalysisResult: map[string]interface{}{
			"root_cause":      analysis.RootCause,
			"impact":          analysis.Impact,
			"confidence":      analysis.Confidence,
			"suggested_fixes": analysis.Suggested,
		},
	})
	return analysis, err
}

func (a *Agent) fixStage(ctx context.Context, attempt *database.RemediationAttempt, incident *database.ErrorIncident, analysis *Analysis) (*Fix, error) {
	var fileContent string
	if a.vcs != nil && incident.FilePath != "" {
		content, err := a.vcs.GetFileContent(ctx, a.config.Owner, a.config.Repo, incident.FilePath, a.config.BaseBranch)
		if err != nil {
			log.Printf("Agent: Could not fetch %s, generating fix without file context: %v", incident.FilePath, err)
		} else {
			fileContent = content
		}
	}

	fix, err := a.analyzer.GenerateFix(ctx, incident, analysis, fileContent)
	if err != nil {
		return nil, err
	}
	if fix.Code == "" {
		return nil, fmt.Errorf("generated fix contains no code")
	}

	status := database.AttemptStatusFixed
	_, err = a.errors.UpdateRemediationAttempt(attempt.ID, services.AttemptUpdate{
		Status:  &status,
		FixCode: &fix.Code,
	})
	return fix, err
}

func (a *Agent) testStage(ctx context.Context, attempt *database.RemediationAttempt, incident *database.ErrorIncident) error {
	if a.runner == nil {
		return fmt.Errorf("no test runner configured")
	}

	results, err := a.runner.Run(ctx, a.config.RepoPath, incident.Language)
	if err != nil {
		return err
	}

	status := database.AttemptStatusTested
	update := services.AttemptUpdate{TestResults: ResultsToMap(results)}
	if AllPassed(results) {
		update.Status = &status
	}

	if _, err := a.errors.UpdateRemediationAttempt(attempt.ID, update); err != nil {
		return err
	}
	if !AllPassed(results) {
		return fmt.Errorf("test suite did not pass")
	}
	return nil
}

func (a *Agent) prStage(ctx context.Context, attempt *database.RemediationAttempt, incident *database.ErrorIncident, analysis *Analysis, fix *Fix) error {
	if a.vcs == nil {
		return fmt.Errorf("no VCS client configured")
	}

	spec := PullRequestSpec{
		Title:      fmt.Sprintf("Fix %s in %s", incident.ErrorType, incident.ServiceName),
		Body:       buildPRBody(incident, analysis, fix),
		BranchName: FixBranchName(incident.ID),
		BaseBranch: a.config.BaseBranch,
		FilePath:   fix.FilePath,
		Content:    fix.Code,
		CommitMsg:  fmt.Sprintf("Fix %s: %s", incident.ErrorType, incident.ErrorMessage),
	}

	prURL, err := a.vcs.CreateFixPR(ctx, a.config.Owner, a.config.Repo, spec)
	if err != nil {
		return err
	}

	status := database.AttemptStatusPRCreated
	_, err = a.errors.UpdateRemediationAttempt(attempt.ID, services.AttemptUpdate{
		Status: &status,
		PRURL:  &prURL,
	})
	return err
}

// fail marks the attempt failed, recording which stage broke
func (a *Agent) fail(attempt *database.RemediationAttempt, stage string, cause error) (*database.RemediationAttempt, error) {
	log.Printf("Agent: Remediation %s failed at %s: %v", attempt.ID, stage, cause)

	// Merge the failure into the existing analysis payload rather than
	// clobbering results from completed stages
	details := map[string]interface{}{
		"failed_stage": stage,
		"error":        cause.Error(),
	}
	if current, loadErr := a.errors.GetRemediationAttempt(attempt.ID); loadErr == nil {
		for k, v := range current.AnalysisResult {
			details[k] = v
		}
		details["failed_stage"] = stage
		details["error"] = cause.Error()
	}

	status := database.AttemptStatusFailed
	failed, err := a.errors.UpdateRemediationAttempt(attempt.ID, services.AttemptUpdate{
		Status:         &status,
		AnalysisResult: details,
	})
	if err != nil {
		log.Printf("Agent: Could not record failure on %s: %v", attempt.ID, err)
		return attempt, fmt.Errorf("%s stage failed: %w", stage, cause)
	}
	return failed, fmt.Errorf("%s stage failed: %w", stage, cause)
}

func buildPRBody(incident *database.ErrorIncident, analysis *Analysis, fix *Fix) string {
	body := fmt.Sprintf("Automated fix for incident `%s`.\n\n**Error**: %s: %s\n**Service**: %s (%s)\n",
		incident.ID, incident.ErrorType, incident.ErrorMessage, incident.ServiceName, incident.Environment)
	if analysis != nil {
		body += fmt.Sprintf("\n**Root cause**: %s\n**Confidence**: %.0f%%\n", analysis.RootCause, analysis.Confidence*100)
	}
	if fix != nil && fix.Explanation != "" {
		body += fmt.Sprintf("\n**Fix**: %s\n", fix.Explanation)
	}
	return body
}
