package report

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/mcpvet/mcpvet-core/pkg/verification"
)

func TestFromState(t *testing.T) {
	state := verification.NewState("a.zip", "desc")
	state.Status = verification.StatusApproved
	state.DescriptionMatch = 0.9
	state.SecurityIssues = []verification.SecurityIssue{{Severity: verification.SeverityLow}}

	r := FromState(state)
	assert.True(t, r.Approved)
	assert.InDelta(t, 0.9, r.DescriptionMatch, 0.001)
	assert.Len(t, r.SecurityIssues, 1)

	state.Status = verification.StatusRejected
	assert.False(t, FromState(state).Approved)
}

func TestHasIssues(t *testing.T) {
	r := &VerificationReport{DescriptionMatch: 0.9}
	assert.False(t, r.HasIssues())

	r.SecurityIssues = []verification.SecurityIssue{{Severity: verification.SeverityLow}}
	assert.True(t, r.HasIssues())

	r = &VerificationReport{DescriptionMatch: 0.5}
	assert.True(t, r.HasIssues())
}

func TestSummary(t *testing.T) {
	r := &VerificationReport{Approved: true, DescriptionMatch: 0.95}
	summary := r.Summary()
	assert.Contains(t, summary, "Verification PASSED")
	assert.Contains(t, summary, "Security Issues: 0")
	assert.Contains(t, summary, "95.0%")

	r.Approved = false
	assert.Contains(t, r.Summary(), "Verification FAILED")
}
