package pipeline

import (
	"archive/zip"
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mcpvet/mcpvet-core/pkg/process"
	"github.com/mcpvet/mcpvet-core/pkg/verification"
)

// scriptedClient answers each analyzer by matching a substring of its
// prompt, counting calls per analyzer.
type scriptedClient struct {
	securityResponse    string
	guidelinesResponse  string
	descriptionResponse string

	securityCalls int
}

func (c *scriptedClient) Complete(_ context.Context, prompt string) (string, error) {
	switch {
	case strings.Contains(prompt, "security issues"):
		c.securityCalls++
		return c.securityResponse, nil
	case strings.Contains(prompt, "community guidelines"):
		return c.guidelinesResponse, nil
	case strings.Contains(prompt, "Match percentage"):
		return c.descriptionResponse, nil
	}
	return "", nil
}

type fakeBuilder struct {
	artifact string
	created  []string
	err      error
}

func (b *fakeBuilder) Build(context.Context, string, verification.ServerType) (string, []string, error) {
	return b.artifact, b.created, b.err
}

type fakeInstaller struct {
	ok bool
}

func (i *fakeInstaller) Install(context.Context, string, verification.ServerType) bool {
	return i.ok
}

type fakeManager struct {
	startOK bool
	healthy bool
	stopped bool
}

func (m *fakeManager) Start(context.Context, string, string) bool { return m.startOK }
func (m *fakeManager) IsHealthy() bool                            { return m.healthy }
func (m *fakeManager) Stop()                                      { m.stopped = true }

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

func cleanResponses() *scriptedClient {
	return &scriptedClient{
		securityResponse:    "No security issues found.",
		guidelinesResponse:  "No violations found.",
		descriptionResponse: "Implementation matches well.\nMatch percentage: 95%",
	}
}

// writeArchive builds a zip archive containing the given files.
func writeArchive(t *testing.T, files map[string]string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "server.zip")
	out, err := os.Create(path)
	require.NoError(t, err)
	w := zip.NewWriter(out)
	for name, content := range files {
		f, err := w.Create(name)
		require.NoError(t, err)
		_, err = f.Write([]byte(content))
		require.NoError(t, err)
	}
	require.NoError(t, w.Close())
	require.NoError(t, out.Close())
	return path
}

func testEngine(t *testing.T, client *scriptedClient) (*Engine, *fakeManager) {
	t.Helper()
	config := DefaultEngineConfig()
	config.TempDir = t.TempDir()

	manager := &fakeManager{startOK: true, healthy: true}
	engine := NewEngine(config, client, testLogger())
	engine.builder = &fakeBuilder{}
	engine.installer = &fakeInstaller{ok: true}
	engine.launcher = func(verification.ServerType, string, *slog.Logger) (process.Manager, error) {
		return manager, nil
	}
	return engine, manager
}

func TestVerifyApproves(t *testing.T) {
	archive := writeArchive(t, map[string]string{
		"server.py": "import mcp\n\nprint('hello')\n",
	})
	engine, manager := testEngine(t, cleanResponses())

	result, err := engine.Verify(context.Background(), archive, "A friendly greeting server")
	require.NoError(t, err)
	assert.True(t, result.Approved)
	assert.Empty(t, result.SecurityIssues)
	assert.Empty(t, result.GuidelineViolations)
	assert.InDelta(t, 0.95, result.DescriptionMatch, 0.001)
	assert.True(t, manager.stopped)
}

func TestVerifyRejectsOnSecurityIssue(t *testing.T) {
	archive := writeArchive(t, map[string]string{
		"server.py": "import os\nos.system(user_input)\n",
	})
	client := cleanResponses()
	client.securityResponse = strings.Join([]string{
		"- Severity: low",
		"- Description: Shell invocation with user input",
		"- Location: server.py:2",
		"- Recommendation: Use subprocess with an argument list",
	}, "\n")
	engine, _ := testEngine(t, client)

	result, err := engine.Verify(context.Background(), archive, "A greeting server")
	require.NoError(t, err)
	assert.False(t, result.Approved)
	require.Len(t, result.SecurityIssues, 1)

	// Low-severity findings do not trigger remediation under the default
	// policy, so the analyzer runs once.
	assert.Equal(t, 1, client.securityCalls)
}

func TestVerifyRejectsOnPoorMatch(t *testing.T) {
	archive := writeArchive(t, map[string]string{
		"server.py": "print('hello')\n",
	})
	client := cleanResponses()
	client.descriptionResponse = "Little overlap with the description.\nMatch percentage: 50%"
	engine, _ := testEngine(t, client)

	result, err := engine.Verify(context.Background(), archive, "A database migration server")
	require.NoError(t, err)
	assert.False(t, result.Approved)
	assert.InDelta(t, 0.5, result.DescriptionMatch, 0.001)
}

func TestVerifyRemediationBound(t *testing.T) {
	archive := writeArchive(t, map[string]string{
		"server.py": "eval(user_input)\n",
	})
	client := cleanResponses()
	client.securityResponse = strings.Join([]string{
		"- Severity: high",
		"- Description: Arbitrary code execution via eval",
		"- Location: server.py:1",
		"- Recommendation: Remove eval",
	}, "\n")
	engine, _ := testEngine(t, client)

	result, err := engine.Verify(context.Background(), archive, "A greeting server")
	require.NoError(t, err)
	assert.False(t, result.Approved)

	// Persistent high-severity findings exhaust the retry budget:
	// initial run plus MaxSecurityRetries re-runs.
	assert.Equal(t, engine.config.MaxSecurityRetries+1, client.securityCalls)
}

func TestVerifyRejectsOnStartupFailure(t *testing.T) {
	archive := writeArchive(t, map[string]string{
		"server.py": "print('hello')\n",
	})
	engine, manager := testEngine(t, cleanResponses())
	manager.startOK = false

	result, err := engine.Verify(context.Background(), archive, "A greeting server")
	require.NoError(t, err)
	assert.False(t, result.Approved)
	assert.True(t, manager.stopped)
}

func TestVerifyRejectsOnBuildFailureAndRemovesArtifacts(t *testing.T) {
	archive := writeArchive(t, map[string]string{
		"server.py": "print('hello')\n",
	})
	engine, _ := testEngine(t, cleanResponses())

	partial := filepath.Join(t.TempDir(), "dist")
	require.NoError(t, os.MkdirAll(partial, 0o750))
	engine.builder = &fakeBuilder{created: []string{partial}, err: os.ErrPermission}

	result, err := engine.Verify(context.Background(), archive, "A greeting server")
	require.NoError(t, err)
	assert.False(t, result.Approved)

	// Partial build output is removed during cleanup.
	_, statErr := os.Stat(partial)
	assert.True(t, os.IsNotExist(statErr))
}

func TestVerifyRejectsOnInstallFailure(t *testing.T) {
	archive := writeArchive(t, map[string]string{
		"server.py":        "print('hello')\n",
		"requirements.txt": "mcp==1.0\n",
	})
	engine, _ := testEngine(t, cleanResponses())
	engine.config.InstallDeps = true
	engine.installer = &fakeInstaller{ok: false}

	result, err := engine.Verify(context.Background(), archive, "A greeting server")
	require.NoError(t, err)
	assert.False(t, result.Approved)
}

func TestVerifyErrorOnMissingArchive(t *testing.T) {
	engine, _ := testEngine(t, cleanResponses())

	_, err := engine.Verify(context.Background(), filepath.Join(t.TempDir(), "missing.zip"), "desc")
	assert.ErrorIs(t, err, ErrVerificationFailed)
}

func TestVerifyReRootsSingleDirectoryArchive(t *testing.T) {
	archive := writeArchive(t, map[string]string{
		"my-server/server.py": "print('hello')\n",
	})
	engine, _ := testEngine(t, cleanResponses())

	result, err := engine.Verify(context.Background(), archive, "A greeting server")
	require.NoError(t, err)
	assert.True(t, result.Approved)
}

func TestMakeDecisionApprovesCleanRun(t *testing.T) {
	engine, _ := testEngine(t, cleanResponses())
	state := verification.NewState("a.zip", "desc")
	state.DescriptionMatch = 0.95

	engine.makeDecision(state)
	assert.Equal(t, verification.StatusApproved, state.Status)
}

func TestMakeDecisionRejectsAnyIssueAtZeroThreshold(t *testing.T) {
	engine, _ := testEngine(t, cleanResponses())
	state := verification.NewState("a.zip", "desc")
	state.DescriptionMatch = 0.95
	state.SecurityIssues = []verification.SecurityIssue{{Severity: verification.SeverityLow}}

	engine.makeDecision(state)
	assert.Equal(t, verification.StatusRejected, state.Status)
}

func TestMakeDecisionToleratesIssuesUnderRaisedThreshold(t *testing.T) {
	engine, _ := testEngine(t, cleanResponses())
	engine.config.SecurityIssueThreshold = 2
	state := verification.NewState("a.zip", "desc")
	state.DescriptionMatch = 0.95
	state.SecurityIssues = []verification.SecurityIssue{
		{Severity: verification.SeverityLow},
		{Severity: verification.SeverityMedium},
	}

	engine.makeDecision(state)
	assert.Equal(t, verification.StatusApproved, state.Status)
}

func TestMakeDecisionRejectsCriticalViolation(t *testing.T) {
	engine, _ := testEngine(t, cleanResponses())
	state := verification.NewState("a.zip", "desc")
	state.DescriptionMatch = 0.95
	state.GuidelineViolations = []verification.GuidelineViolation{
		{Rule: "Error Handling", Impact: "Critical failure of the request path"},
	}

	engine.makeDecision(state)
	assert.Equal(t, verification.StatusRejected, state.Status)
}

func TestMakeDecisionIgnoresTrailingCriticalMention(t *testing.T) {
	engine, _ := testEngine(t, cleanResponses())
	state := verification.NewState("a.zip", "desc")
	state.DescriptionMatch = 0.95
	state.GuidelineViolations = []verification.GuidelineViolation{
		{Rule: "Documentation", Impact: "minor cosmetic issue, critical to none"},
	}

	engine.makeDecision(state)
	assert.Equal(t, verification.StatusApproved, state.Status)
}

func TestMakeDecisionKeepsPriorRejection(t *testing.T) {
	engine, _ := testEngine(t, cleanResponses())
	state := verification.NewState("a.zip", "desc")
	state.DescriptionMatch = 0.95
	state.Status = verification.StatusRejected

	engine.makeDecision(state)
	assert.Equal(t, verification.StatusRejected, state.Status)
}

func TestImpactIsCritical(t *testing.T) {
	assert.True(t, impactIsCritical("Critical data loss"))
	assert.True(t, impactIsCritical("critical outage. recovery is manual"))
	assert.False(t, impactIsCritical("minor cosmetic issue, critical to none"))
	assert.False(t, impactIsCritical("degraded logging"))
	assert.False(t, impactIsCritical(""))
}

func TestNeedsSecurityFix(t *testing.T) {
	engine, _ := testEngine(t, cleanResponses())
	state := verification.NewState("a.zip", "desc")

	assert.False(t, engine.needsSecurityFix(state))

	state.SecurityIssues = []verification.SecurityIssue{{Severity: verification.SeverityLow}}
	assert.False(t, engine.needsSecurityFix(state))

	state.SecurityIssues = append(state.SecurityIssues, verification.SecurityIssue{Severity: verification.SeverityHigh})
	assert.True(t, engine.needsSecurityFix(state))

	engine.config.RemediateHighOnly = false
	state.SecurityIssues = []verification.SecurityIssue{{Severity: verification.SeverityLow}}
	assert.True(t, engine.needsSecurityFix(state))
}
