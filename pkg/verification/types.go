// Package verification defines the core data model for MCP server
// verification: the mutable state record threaded through every pipeline
// stage and the typed finding records produced by the analyzers.
package verification

// Severity levels for security issues.
const (
	SeverityHigh   = "high"
	SeverityMedium = "medium"
	SeverityLow    = "low"
)

// ServerType identifies the implementation ecosystem of a candidate server.
type ServerType string

const (
	ServerTypePython ServerType = "python"
	ServerTypeNode   ServerType = "node"
)

// Status is the overall verification status. It transitions only
// pending -> approved or pending -> rejected, never back.
type Status string

const (
	StatusPending  Status = "pending"
	StatusApproved Status = "approved"
	StatusRejected Status = "rejected"
)

// Stage labels the pipeline stage currently executing. It is advisory
// observability data only; no control flow reads it.
type Stage string

const (
	StageInit               Stage = "init"
	StageProcessUpload      Stage = "process_upload"
	StageExtractFiles       Stage = "extract_files"
	StageAnalyzeSecurity    Stage = "analyze_security"
	StageAnalyzeGuidelines  Stage = "analyze_guidelines"
	StageAnalyzeDescription Stage = "analyze_description"
	StageVerifyStartup      Stage = "verify_startup"
	StageMakeDecision       Stage = "make_decision"
	StageCleanup            Stage = "cleanup"
)

// ServerFile is one file in the candidate server's codebase.
type ServerFile struct {
	// Path is relative to the server root.
	Path string `json:"path"`

	// Content is the file text.
	Content string `json:"content"`

	// FileType is the extension without the dot (e.g. "py", "js", "json").
	FileType string `json:"fileType"`
}

// SecurityIssue is a security finding reported by static analysis.
type SecurityIssue struct {
	// Severity is one of "high", "medium", "low".
	Severity string `json:"severity"`

	// Description explains the issue.
	Description string `json:"description"`

	// Location is the file (and line, when known) where the issue was found.
	Location string `json:"location"`

	// Recommendation describes how to fix the issue.
	Recommendation string `json:"recommendation"`
}

// GuidelineViolation is a community-guideline finding.
type GuidelineViolation struct {
	// Rule names the guideline that was violated.
	Rule string `json:"rule"`

	// Description explains the violation.
	Description string `json:"description"`

	// Impact describes the effect on server operation.
	Impact string `json:"impact"`
}

// State is the single mutable record threaded through the pipeline.
// A verification run owns exactly one State; stages mutate it strictly
// in sequence.
type State struct {
	// Files maps relative paths to cataloged files. Populated once by the
	// file catalog stage and read-only afterward.
	Files map[string]ServerFile

	// UserDescription is the author-supplied server description.
	// Immutable after intake.
	UserDescription string

	// ArchivePath is the uploaded archive location.
	ArchivePath string

	// ServerPath is the extracted source root. Rewritten once the package's
	// true root subdirectory is identified.
	ServerPath string

	// SecurityIssues holds the current security findings. May be cleared
	// and re-populated across remediation loop iterations.
	SecurityIssues []SecurityIssue

	// GuidelineViolations holds the guideline findings.
	GuidelineViolations []GuidelineViolation

	// DescriptionMatch is the implementation/description similarity score
	// in [0,1]. Overwritten, never accumulated.
	DescriptionMatch float64

	// BuildArtifacts lists filesystem paths produced by the package
	// builder. Every entry must be removed during cleanup.
	BuildArtifacts []string

	// CurrentStage is the advisory stage label.
	CurrentStage Stage

	// Status is pending until the decision stage makes it terminal.
	Status Status
}

// NewState creates a pending State for one verification run.
func NewState(archivePath, description string) *State {
	return &State{
		Files:           map[string]ServerFile{},
		UserDescription: description,
		ArchivePath:     archivePath,
		CurrentStage:    StageInit,
		Status:          StatusPending,
	}
}

// AddArtifact records a build artifact path for cleanup.
func (s *State) AddArtifact(path string) {
	s.BuildArtifacts = append(s.BuildArtifacts, path)
}

// HasHighSeverity reports whether any security finding is high severity.
func (s *State) HasHighSeverity() bool {
	for _, issue := range s.SecurityIssues {
		if issue.Severity == SeverityHigh {
			return true
		}
	}
	return false
}
