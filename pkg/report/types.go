// Package report defines the structures for verification reports and the
// signed approval attestations emitted for admitted servers.
package report

import (
	"fmt"

	"github.com/mcpvet/mcpvet-core/pkg/verification"
)

// VerificationReport contains the complete results of one verification run.
type VerificationReport struct {
	Approved            bool                              `json:"approved"`
	SecurityIssues      []verification.SecurityIssue      `json:"securityIssues"`
	GuidelineViolations []verification.GuidelineViolation `json:"guidelineViolations"`

	// DescriptionMatch is the implementation/description similarity in [0,1].
	DescriptionMatch float64 `json:"descriptionMatch"`
}

// FromState builds a report from a finished verification state.
func FromState(state *verification.State) *VerificationReport {
	return &VerificationReport{
		Approved:            state.Status == verification.StatusApproved,
		SecurityIssues:      state.SecurityIssues,
		GuidelineViolations: state.GuidelineViolations,
		DescriptionMatch:    state.DescriptionMatch,
	}
}

// HasIssues reports whether any finding or a sub-threshold match score
// was recorded.
func (r *VerificationReport) HasIssues() bool {
	return len(r.SecurityIssues) > 0 || len(r.GuidelineViolations) > 0 || r.DescriptionMatch < 0.8
}

// Summary returns a short human-readable summary of the run.
func (r *VerificationReport) Summary() string {
	status := "PASSED"
	if !r.Approved {
		status = "FAILED"
	}
	return fmt.Sprintf(
		"Verification %s\n\nSecurity Issues: %d\nGuideline Violations: %d\nDescription Match: %.1f%%",
		status,
		len(r.SecurityIssues),
		len(r.GuidelineViolations),
		r.DescriptionMatch*100,
	)
}
