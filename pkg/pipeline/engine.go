// Package pipeline implements the verification workflow engine: a stage
// graph over a single mutable verification state with one bounded
// remediation back-edge and a terminal admission decision.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/mcpvet/mcpvet-core/pkg/analysis"
	"github.com/mcpvet/mcpvet-core/pkg/catalog"
	"github.com/mcpvet/mcpvet-core/pkg/intake"
	"github.com/mcpvet/mcpvet-core/pkg/llm"
	"github.com/mcpvet/mcpvet-core/pkg/pkgbuild"
	"github.com/mcpvet/mcpvet-core/pkg/process"
	"github.com/mcpvet/mcpvet-core/pkg/report"
	"github.com/mcpvet/mcpvet-core/pkg/verification"
)

// artifactBuilder turns a source tree into a distributable artifact.
type artifactBuilder interface {
	Build(ctx context.Context, serverPath string, serverType verification.ServerType) (string, []string, error)
}

// depInstaller installs a server's declared dependencies.
type depInstaller interface {
	Install(ctx context.Context, serverPath string, serverType verification.ServerType) bool
}

// launcherFactory yields the process manager variant for a server type.
type launcherFactory func(serverType verification.ServerType, serverPath string, logger *slog.Logger) (process.Manager, error)

// Engine coordinates the MCP server verification process:
//
//	process_upload -> extract_files -> analyze_security
//	      (high-severity findings loop back, bounded)
//	-> analyze_guidelines -> analyze_description
//	-> verify_startup -> make_decision -> cleanup
//
// A single Engine serves concurrent runs; each run owns its own state
// and launcher.
type Engine struct {
	config      *EngineConfig
	logger      *slog.Logger
	intake      *intake.Handler
	catalog     *catalog.Catalog
	security    *analysis.SecurityAnalyzer
	guidelines  *analysis.GuidelinesAnalyzer
	description *analysis.DescriptionAnalyzer
	builder     artifactBuilder
	installer   depInstaller
	launcher    launcherFactory
}

// NewEngine creates a verification Engine. A nil config selects
// DefaultEngineConfig; a nil logger selects slog.Default.
func NewEngine(config *EngineConfig, client llm.Client, logger *slog.Logger) *Engine {
	if config == nil {
		config = DefaultEngineConfig()
	}
	if logger == nil {
		logger = slog.Default()
	}

	intakeConfig := intake.DefaultConfig()
	intakeConfig.MaxSizeMB = config.MaxUploadSizeMB
	if config.TempDir != "" {
		intakeConfig.TempDir = config.TempDir
	}

	runner := pkgbuild.NewRunner(config.MaxSubprocesses, logger)

	return &Engine{
		config:      config,
		logger:      logger,
		intake:      intake.NewHandler(intakeConfig, logger),
		catalog:     catalog.New(logger),
		security:    analysis.NewSecurityAnalyzer(client, logger),
		guidelines:  analysis.NewGuidelinesAnalyzer(client, logger),
		description: analysis.NewDescriptionAnalyzer(client, logger),
		builder:     pkgbuild.NewBuilder(runner, logger),
		installer:   pkgbuild.NewInstaller(runner, logger),
		launcher:    process.ForType,
	}
}

// Verify runs the complete verification process on an uploaded archive.
// It returns a concluded report (approved or rejected), or an error
// wrapping ErrVerificationFailed when verification itself could not run.
// Cleanup of the scratch directory and all build artifacts always
// happens, on both paths.
func (e *Engine) Verify(ctx context.Context, archivePath, description string) (result *report.VerificationReport, err error) {
	e.logger.Info("starting verification", "archive", archivePath)

	ctx, cancel := context.WithTimeout(ctx, e.config.RunTimeout.Std())
	defer cancel()

	state := verification.NewState(archivePath, description)
	extractDir := ""
	defer func() {
		e.cleanup(state, extractDir)
		if err != nil {
			err = fmt.Errorf("%w: %w", ErrVerificationFailed, err)
		}
	}()

	if extractDir, err = e.processUpload(ctx, state); err != nil {
		return nil, err
	}
	if err = e.extractFiles(ctx, state); err != nil {
		return nil, err
	}
	if err = e.analyzeSecurity(ctx, state); err != nil {
		return nil, err
	}
	if err = e.guidelines.Analyze(ctx, state); err != nil {
		return nil, err
	}
	if err = e.description.Analyze(ctx, state); err != nil {
		return nil, err
	}
	if err = e.verifyStartup(ctx, state); err != nil {
		return nil, err
	}
	e.makeDecision(state)

	e.logger.Info("verification completed", "status", state.Status)
	return report.FromState(state), nil
}

// processUpload validates and extracts the archive, setting the server
// path on the state. Returns the scratch directory for cleanup.
func (e *Engine) processUpload(ctx context.Context, state *verification.State) (string, error) {
	state.CurrentStage = verification.StageProcessUpload

	extractDir, err := e.intake.ProcessUpload(ctx, state.ArchivePath)
	if err != nil {
		return "", err
	}
	state.ServerPath = extractDir
	return extractDir, nil
}

// extractFiles populates the file catalog. When the archive wraps the
// package in a single root folder, the server path is rewritten to that
// folder and catalog keys are re-rooted under it.
func (e *Engine) extractFiles(ctx context.Context, state *verification.State) error {
	state.CurrentStage = verification.StageExtractFiles

	files, err := e.catalog.Extract(ctx, state.ServerPath)
	if err != nil {
		return err
	}

	if root := e.catalog.PackageRoot(files); root != "" {
		state.ServerPath = filepath.Join(state.ServerPath, root)
		rerooted := make(map[string]verification.ServerFile, len(files))
		for path, file := range files {
			rel := strings.TrimPrefix(path, root+"/")
			file.Path = rel
			rerooted[rel] = file
		}
		files = rerooted
		e.logger.Debug("package root identified", "root", root)
	}

	state.Files = files
	return nil
}

// analyzeSecurity runs the security analyzer, looping while unresolved
// findings trigger remediation, up to the configured retry bound. After
// the bound the run progresses with whatever findings stand; the
// decision stage deals with them.
func (e *Engine) analyzeSecurity(ctx context.Context, state *verification.State) error {
	for attempt := 0; ; attempt++ {
		if err := e.security.Analyze(ctx, state); err != nil {
			return err
		}
		if !e.needsSecurityFix(state) {
			return nil
		}
		if attempt >= e.config.MaxSecurityRetries {
			e.logger.Warn("security findings persist after retry budget, forcing progression",
				"attempts", attempt+1, "issues", len(state.SecurityIssues))
			return nil
		}
		e.logger.Info("unresolved security findings, re-running security analysis",
			"attempt", attempt+1, "issues", len(state.SecurityIssues))
	}
}

// needsSecurityFix reports whether the remediation loop should fire.
func (e *Engine) needsSecurityFix(state *verification.State) bool {
	if len(state.SecurityIssues) == 0 {
		return false
	}
	if e.config.RemediateHighOnly {
		return state.HasHighSeverity()
	}
	return true
}

// verifyStartup builds a distributable artifact and empirically boots it.
// Build and launch failures reject the run rather than aborting it; a
// classification failure (ambiguous server type) is a run-level error.
// The launcher is always stopped before returning.
func (e *Engine) verifyStartup(ctx context.Context, state *verification.State) error {
	state.CurrentStage = verification.StageVerifyStartup

	serverType, err := e.catalog.ServerType(state.Files)
	if err != nil {
		return err
	}

	mainFile := e.catalog.MainFile(state.Files)
	if mainFile == "" {
		e.logger.Error("could not determine main server file")
		state.Status = verification.StatusRejected
		return nil
	}

	if e.config.InstallDeps {
		if !e.installer.Install(ctx, state.ServerPath, serverType) {
			e.logger.Error("dependency install failed")
			state.Status = verification.StatusRejected
			return nil
		}
	}

	artifact, created, buildErr := e.builder.Build(ctx, state.ServerPath, serverType)
	for _, path := range created {
		state.AddArtifact(path)
	}
	if buildErr != nil {
		e.logger.Error("package build failed", "error", buildErr)
		state.Status = verification.StatusRejected
		return nil
	}

	manager, err := e.launcher(serverType, state.ServerPath, e.logger)
	if err != nil {
		return err
	}
	defer manager.Stop()

	// Python servers boot from their main file, Node servers from the
	// packed artifact through the ephemeral runner.
	target := artifact
	if serverType == verification.ServerTypePython {
		target = filepath.Join(state.ServerPath, mainFile)
	}

	name := filepath.Base(state.ArchivePath)
	if !manager.Start(ctx, target, name) {
		state.Status = verification.StatusRejected
		return nil
	}
	if !manager.IsHealthy() {
		state.Status = verification.StatusRejected
		return nil
	}
	return nil
}

// makeDecision applies the admission policy. It reads only the findings,
// the match score, and any prior rejection.
func (e *Engine) makeDecision(state *verification.State) {
	state.CurrentStage = verification.StageMakeDecision

	tooManyIssues := len(state.SecurityIssues) > e.config.SecurityIssueThreshold
	criticalViolation := false
	for _, violation := range state.GuidelineViolations {
		if impactIsCritical(violation.Impact) {
			criticalViolation = true
			break
		}
	}
	poorMatch := state.DescriptionMatch < e.config.MatchThreshold

	if tooManyIssues || criticalViolation || poorMatch || state.Status == verification.StatusRejected {
		state.Status = verification.StatusRejected
		return
	}
	state.Status = verification.StatusApproved
}

// impactIsCritical reports whether a violation's impact classifies it as
// critical. Only the leading clause counts: text like "minor cosmetic
// issue, critical to none" mentions the word without meaning it.
func impactIsCritical(impact string) bool {
	clause := strings.ToLower(impact)
	for _, sep := range []string{",", ".", ";"} {
		if head, _, found := strings.Cut(clause, sep); found {
			clause = head
		}
	}
	return strings.Contains(clause, "critical")
}

// cleanup removes the scratch directory and every recorded build
// artifact. Failures are logged, never propagated.
func (e *Engine) cleanup(state *verification.State, extractDir string) {
	state.CurrentStage = verification.StageCleanup

	for _, artifact := range state.BuildArtifacts {
		if err := os.RemoveAll(artifact); err != nil {
			e.logger.Error("failed to remove build artifact", "path", artifact, "error", err)
		}
	}
	e.intake.Cleanup(extractDir)
}
