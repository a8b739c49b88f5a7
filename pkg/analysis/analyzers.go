// Package analysis implements the three finding analyzers. Each takes the
// full file catalog, submits it to the reasoning service with task-specific
// instructions, and parses the structured free-text reply into typed
// finding records.
package analysis

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/mcpvet/mcpvet-core/pkg/llm"
	"github.com/mcpvet/mcpvet-core/pkg/verification"
)

// SecurityAnalyzer finds security vulnerabilities in server code.
type SecurityAnalyzer struct {
	client llm.Client
	logger *slog.Logger
}

// NewSecurityAnalyzer creates a SecurityAnalyzer.
func NewSecurityAnalyzer(client llm.Client, logger *slog.Logger) *SecurityAnalyzer {
	return &SecurityAnalyzer{client: client, logger: orDefault(logger)}
}

// Analyze submits the catalog for security analysis and replaces the
// state's security findings with the parsed result. A reasoning-service
// failure propagates to the caller.
func (a *SecurityAnalyzer) Analyze(ctx context.Context, state *verification.State) error {
	a.logger.Info("starting security analysis")
	state.CurrentStage = verification.StageAnalyzeSecurity

	response, err := a.client.Complete(ctx, fmt.Sprintf(securityPrompt, concatFiles(state.Files)))
	if err != nil {
		return fmt.Errorf("security analysis failed: %w", err)
	}

	state.SecurityIssues = parseSecurityIssues(response, a.logger)
	a.logger.Info("security analysis complete", "issues", len(state.SecurityIssues))
	return nil
}

// GuidelinesAnalyzer checks community-guideline compliance.
type GuidelinesAnalyzer struct {
	client llm.Client
	logger *slog.Logger
}

// NewGuidelinesAnalyzer creates a GuidelinesAnalyzer.
func NewGuidelinesAnalyzer(client llm.Client, logger *slog.Logger) *GuidelinesAnalyzer {
	return &GuidelinesAnalyzer{client: client, logger: orDefault(logger)}
}

// Analyze submits the catalog for guideline analysis and replaces the
// state's guideline findings with the parsed result.
func (a *GuidelinesAnalyzer) Analyze(ctx context.Context, state *verification.State) error {
	a.logger.Info("starting guidelines analysis")
	state.CurrentStage = verification.StageAnalyzeGuidelines

	response, err := a.client.Complete(ctx, fmt.Sprintf(guidelinesPrompt, concatFiles(state.Files)))
	if err != nil {
		return fmt.Errorf("guidelines analysis failed: %w", err)
	}

	state.GuidelineViolations = parseGuidelineViolations(response, a.logger)
	a.logger.Info("guidelines analysis complete", "violations", len(state.GuidelineViolations))
	return nil
}

// DescriptionAnalyzer scores how well the implementation matches the
// author-supplied description.
type DescriptionAnalyzer struct {
	client llm.Client
	logger *slog.Logger
}

// NewDescriptionAnalyzer creates a DescriptionAnalyzer.
func NewDescriptionAnalyzer(client llm.Client, logger *slog.Logger) *DescriptionAnalyzer {
	return &DescriptionAnalyzer{client: client, logger: orDefault(logger)}
}

// Analyze submits the catalog and description for comparison and
// overwrites the state's match score.
func (a *DescriptionAnalyzer) Analyze(ctx context.Context, state *verification.State) error {
	a.logger.Info("starting description analysis")
	state.CurrentStage = verification.StageAnalyzeDescription

	prompt := fmt.Sprintf(descriptionPrompt, state.UserDescription, concatFiles(state.Files))
	response, err := a.client.Complete(ctx, prompt)
	if err != nil {
		return fmt.Errorf("description analysis failed: %w", err)
	}

	state.DescriptionMatch = extractMatchScore(response, a.logger)
	a.logger.Info("description analysis complete", "match", state.DescriptionMatch)
	return nil
}

// concatFiles renders the catalog as one text blob with each file tagged
// by its path. Paths are sorted so prompts are deterministic.
func concatFiles(files map[string]verification.ServerFile) string {
	paths := make([]string, 0, len(files))
	for path := range files {
		paths = append(paths, path)
	}
	sort.Strings(paths)

	var b strings.Builder
	for _, path := range paths {
		b.WriteString(fmt.Sprintf("=== %s ===\n%s\n\n", path, files[path].Content))
	}
	return b.String()
}

func orDefault(logger *slog.Logger) *slog.Logger {
	if logger == nil {
		return slog.Default()
	}
	return logger
}
