package analysis

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/mcpvet/mcpvet-core/pkg/verification"
)

type mockClient struct {
	mock.Mock
}

func (m *mockClient) Complete(ctx context.Context, prompt string) (string, error) {
	args := m.Called(ctx, prompt)
	return args.String(0), args.Error(1)
}

func testState() *verification.State {
	state := verification.NewState("server.zip", "A weather MCP server")
	state.Files = map[string]verification.ServerFile{
		"server.py": {Path: "server.py", Content: "print('hi')", FileType: "py"},
	}
	return state
}

func TestSecurityAnalyzer_ParsesFindings(t *testing.T) {
	client := &mockClient{}
	client.On("Complete", mock.Anything, mock.MatchedBy(func(prompt string) bool {
		return len(prompt) > 0
	})).Return(`- Severity: high
- Description: Shell injection
- Location: server.py line 3
- Recommendation: Avoid os.system`, nil)

	state := testState()
	err := NewSecurityAnalyzer(client, nil).Analyze(context.Background(), state)
	require.NoError(t, err)

	require.Len(t, state.SecurityIssues, 1)
	assert.Equal(t, "high", state.SecurityIssues[0].Severity)
	assert.Equal(t, verification.StageAnalyzeSecurity, state.CurrentStage)
	client.AssertExpectations(t)
}

func TestSecurityAnalyzer_ServiceErrorPropagates(t *testing.T) {
	client := &mockClient{}
	client.On("Complete", mock.Anything, mock.Anything).Return("", errors.New("service unavailable"))

	state := testState()
	err := NewSecurityAnalyzer(client, nil).Analyze(context.Background(), state)
	assert.Error(t, err)
	assert.Empty(t, state.SecurityIssues)
}

func TestGuidelinesAnalyzer_ParsesViolations(t *testing.T) {
	client := &mockClient{}
	client.On("Complete", mock.Anything, mock.Anything).Return(`- Rule: Rate Limiting
- Description: No request limits
- Impact: Resource exhaustion under load`, nil)

	state := testState()
	err := NewGuidelinesAnalyzer(client, nil).Analyze(context.Background(), state)
	require.NoError(t, err)

	require.Len(t, state.GuidelineViolations, 1)
	assert.Equal(t, "Rate Limiting", state.GuidelineViolations[0].Rule)
}

func TestDescriptionAnalyzer_IncludesDescriptionInPrompt(t *testing.T) {
	client := &mockClient{}
	var captured string
	client.On("Complete", mock.Anything, mock.MatchedBy(func(prompt string) bool {
		captured = prompt
		return true
	})).Return("Match percentage: 90%", nil)

	state := testState()
	err := NewDescriptionAnalyzer(client, nil).Analyze(context.Background(), state)
	require.NoError(t, err)

	assert.InDelta(t, 0.9, state.DescriptionMatch, 0.001)
	assert.Contains(t, captured, "A weather MCP server")
	assert.Contains(t, captured, "=== server.py ===")
}

func TestConcatFiles_Deterministic(t *testing.T) {
	files := map[string]verification.ServerFile{
		"b.py": {Path: "b.py", Content: "b"},
		"a.py": {Path: "a.py", Content: "a"},
	}

	blob := concatFiles(files)
	assert.Equal(t, "=== a.py ===\na\n\n=== b.py ===\nb\n\n", blob)
}
