package analysis

import (
	"log/slog"
	"strconv"
	"strings"

	"github.com/mcpvet/mcpvet-core/pkg/verification"
)

// The reasoning service replies in a loose "- Field: value" convention.
// Records are segmented by their leading marker field ("- Severity:" for
// security issues, "- Rule:" for guideline violations); a record is only
// committed once every required field is present, and incomplete records
// are dropped with a log line.

func parseSecurityIssues(response string, logger *slog.Logger) []verification.SecurityIssue {
	var issues []verification.SecurityIssue
	var current map[string]string

	commit := func() {
		if current == nil {
			return
		}
		if len(current) < 4 {
			logger.Warn("dropping incomplete security finding", "fields", len(current))
			return
		}
		issues = append(issues, verification.SecurityIssue{
			Severity:       strings.ToLower(current["severity"]),
			Description:    current["description"],
			Location:       current["location"],
			Recommendation: current["recommendation"],
		})
	}

	for _, line := range strings.Split(response, "\n") {
		line = strings.TrimSpace(line)
		switch {
		case strings.HasPrefix(line, "- Severity:"):
			commit()
			current = map[string]string{"severity": fieldValue(line)}
		case strings.HasPrefix(line, "- Description:"):
			setField(current, "description", line)
		case strings.HasPrefix(line, "- Location:"):
			setField(current, "location", line)
		case strings.HasPrefix(line, "- Recommendation:"):
			setField(current, "recommendation", line)
		}
	}
	commit()

	return issues
}

func parseGuidelineViolations(response string, logger *slog.Logger) []verification.GuidelineViolation {
	var violations []verification.GuidelineViolation
	var current map[string]string

	commit := func() {
		if current == nil {
			return
		}
		if len(current) < 3 {
			logger.Warn("dropping incomplete guideline violation", "fields", len(current))
			return
		}
		violations = append(violations, verification.GuidelineViolation{
			Rule:        current["rule"],
			Description: current["description"],
			Impact:      current["impact"],
		})
	}

	for _, line := range strings.Split(response, "\n") {
		line = strings.TrimSpace(line)
		switch {
		case strings.HasPrefix(line, "- Rule:"):
			commit()
			current = map[string]string{"rule": fieldValue(line)}
		case strings.HasPrefix(line, "- Description:"):
			setField(current, "description", line)
		case strings.HasPrefix(line, "- Impact:"):
			setField(current, "impact", line)
		}
	}
	commit()

	return violations
}

// extractMatchScore pulls the single percentage token from a line that
// mentions "percentage" and carries a '%' sign, scaled into [0,1].
// Returns 0.5 when no such line exists.
func extractMatchScore(response string, logger *slog.Logger) float64 {
	for _, line := range strings.Split(response, "\n") {
		if !strings.Contains(strings.ToLower(line), "percentage") || !strings.Contains(line, "%") {
			continue
		}

		before, _, _ := strings.Cut(line, "%")
		tokens := strings.Fields(before)
		if len(tokens) == 0 {
			continue
		}
		token := strings.TrimFunc(tokens[len(tokens)-1], func(r rune) bool {
			return (r < '0' || r > '9') && r != '.'
		})

		value, err := strconv.ParseFloat(token, 64)
		if err != nil {
			continue
		}
		return clamp01(value / 100.0)
	}

	logger.Warn("no match percentage found in response, using conservative default")
	return 0.5
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

func fieldValue(line string) string {
	_, value, _ := strings.Cut(line, ":")
	return strings.TrimSpace(value)
}

func setField(current map[string]string, key, line string) {
	if current == nil {
		return
	}
	current[key] = fieldValue(line)
}
