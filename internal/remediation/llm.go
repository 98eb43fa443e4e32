// Package remediation drives the automated fix pipeline: analyze an
// incident with an LLM, generate a fix, run the relevant test suite, and
// open a pull request.
package remediation

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strings"

	openai "github.com/sashabaranov/go-openai"

	"github.com/autoremedy/autoremedy/internal/database"
)

// Analysis is the structured result of LLM root cause analysis
type Analysis struct {
	RootCause  string   `json:"root_cause"`
	Impact     string   `json:"impact"`
	Confidence float64  `json:"confidence"`
	Suggested  []string `json:"suggested_fixes"`
}

// Fix is a generated code change
type Fix struct {
	FilePath    string `json:"file_path"`
	Code        string `json:"code"`
	Explanation string `json:"explanation"`
}

// Analyzer produces root cause analyses and fixes for incidents
type Analyzer interface {
	Analyze(ctx context.Context, incident *database.ErrorIncident) (*Analysis, error)
	GenerateFix(ctx context.Context, incident *database.ErrorIncident, analysis *Analysis, fileContent string) (*Fix, error)
}

// FallbackAnalyzer produces canned low-confidence results when no LLM is
// configured, so the pipeline still records an attempt instead of aborting
// at the analysis stage.
type FallbackAnalyzer struct{}

// Analyze returns a canned analysis flagging the incident for manual review
func (FallbackAnalyzer) Analyze(_ context.Context, incident *database.ErrorIncident) (*Analysis, error) {
	return &Analysis{
		RootCause:  "Analysis service unavailable",
		Impact:     fmt.Sprintf("%s in %s requires manual review", incident.ErrorType, incident.ServiceName),
		Confidence: 0.3,
		Suggested:  []string{"Manual investigation required"},
	}, nil
}

// GenerateFix returns a placeholder fix noting that generation is unavailable
func (FallbackAnalyzer) GenerateFix(_ context.Context, incident *database.ErrorIncident, _ *Analysis, _ string) (*Fix, error) {
	return &Fix{
		FilePath:    incident.FilePath,
		Code:        fmt.Sprintf("// Fix service unavailable for %s", incident.ErrorType),
		Explanation: "Automated fix generation is currently unavailable",
	}, nil
}

// chatCompleter is the subset of the OpenAI client the analyzer needs
type chatCompleter interface {
	CreateChatCompletion(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error)
}

// OpenAIAnalyzer analyzes incidents using the OpenAI chat completion API
type OpenAIAnalyzer struct {
	client chatCompleter
	model  string
}

// NewOpenAIAnalyzer creates an analyzer. Returns nil if no API key is
// configured so callers can fall back to manual remediation.
func NewOpenAIAnalyzer(apiKey, baseURL, model string) *OpenAIAnalyzer {
	if apiKey == "" {
		log.Printf("OpenAIAnalyzer: No API key configured, analysis disabled")
		return nil
	}

	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}

	return &OpenAIAnalyzer{
		client: openai.NewClientWithConfig(cfg),
		model:  model,
	}
}

const analysisSystemPrompt = `You are a senior software engineer doing root cause analysis on production errors.
Respond with a JSON object containing: root_cause (string), impact (string), confidence (number 0-1), suggested_fixes (array of strings).
Respond with JSON only, no prose.`

// Analyze asks the model for a root cause analysis of the incident
func (a *OpenAIAnalyzer) Analyze(ctx context.Context, incident *database.ErrorIncident) (*Analysis, error) {
	prompt := buildAnalysisPrompt(incident)

	resp, err := a.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: a.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: analysisSystemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
		Temperature: 0.2,
	})
	if err != nil {
		return nil, fmt.Errorf("analysis request failed: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("analysis returned no choices")
	}

	var analysis Analysis
	if err := json.Unmarshal([]byte(extractJSON(resp.Choices[0].Message.Content)), &analysis); err != nil {
		return nil, fmt.Errorf("failed to parse analysis response: %w", err)
	}
	return &analysis, nil
}

const fixSystemPrompt = `You are a senior software engineer writing a minimal fix for a production error.
Respond with a JSON object containing: file_path (string), code (string, the full corrected file or patch), explanation (string).
Respond with JSON only, no prose.`

// GenerateFix asks the model for a concrete code change
func (a *OpenAIAnalyzer) GenerateFix(ctx context.Context, incident *database.ErrorIncident, analysis *Analysis, fileContent string) (*Fix, error) {
	prompt := buildFixPrompt(incident, analysis, fileContent)

	resp, err := a.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: a.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: fixSystemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
		Temperature: 0.2,
	})
	if err != nil {
		return nil, fmt.Errorf("fix generation request failed: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("fix generation returned no choices")
	}

	var fix Fix
	if err := json.Unmarshal([]byte(extractJSON(resp.Choices[0].Message.Content)), &fix); err != nil {
		return nil, fmt.Errorf("failed to parse fix response: %w", err)
	}
	if fix.FilePath == "" {
		fix.FilePath = incident.FilePath
	}
	return &fix, nil
}

func buildAnalysisPrompt(incident *database.ErrorIncident) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Error type: %s\n", incident.ErrorType)
	fmt.Fprintf(&b, "Message: %s\n", incident.ErrorMessage)
	fmt.Fprintf(&b, "Service: %s (%s)\n", incident.ServiceName, incident.Environment)
	fmt.Fprintf(&b, "Severity: %s, occurrences: %d\n", incident.Severity, incident.OccurrenceCount)
	if incident.Language != "" {
		fmt.Fprintf(&b, "Language: %s\n", incident.Language)
	}
	if incident.FilePath != "" {
		fmt.Fprintf(&b, "Location: %s:%d\n", incident.FilePath, incident.LineNumber)
	}
	if incident.StackTrace != "" {
		fmt.Fprintf(&b, "Stack trace:\n%s\n", incident.StackTrace)
	}
	return b.String()
}

func buildFixPrompt(incident *database.ErrorIncident, analysis *Analysis, fileContent string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Error: %s: %s\n", incident.ErrorType, incident.ErrorMessage)
	if analysis != nil {
		fmt.Fprintf(&b, "Root cause: %s\n", analysis.RootCause)
	}
	if incident.FilePath != "" {
		fmt.Fprintf(&b, "File: %s (line %d)\n", incident.FilePath, incident.LineNumber)
	}
	if fileContent != "" {
		fmt.Fprintf(&b, "Current file content:\n```\n%s\n```\n", fileContent)
	}
	b.WriteString("Produce a minimal fix.")
	return b.String()
}

// extractJSON strips markdown code fences some models wrap around JSON
func extractJSON(content string) string {
	content = strings.TrimSpace(content)
	if strings.HasPrefix(content, "```") {
		content = strings.TrimPrefix(content, "```json")
		content = strings.TrimPrefix(content, "```")
		if idx := strings.LastIndex(content, "```"); idx >= 0 {
			content = content[:idx]
		}
	}
	return strings.TrimSpace(content)
}
