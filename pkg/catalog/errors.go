package catalog

import "errors"

var (
	// ErrNoValidFiles indicates the server tree contains no cataloged files.
	ErrNoValidFiles = errors.New("no valid server files found")

	// ErrAmbiguousType indicates both ecosystems are present with no
	// disambiguating manifest.
	ErrAmbiguousType = errors.New("cannot determine server type: mixed python and node files")
)
