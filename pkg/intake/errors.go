package intake

import "errors"

// Error codes for archive intake. Each rejection class is distinct so
// callers can report oversize, traversal, and corruption separately.
var (
	// ErrTooLarge indicates the archive exceeds the configured size cap.
	ErrTooLarge = errors.New("archive exceeds maximum allowed size")

	// ErrPathTraversal indicates a member path escapes the extraction root.
	ErrPathTraversal = errors.New("archive contains dangerous paths")

	// ErrCorruptArchive indicates the archive is structurally invalid.
	ErrCorruptArchive = errors.New("invalid or corrupted archive")
)
