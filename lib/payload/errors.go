package payload

import (
	"errors"
	"fmt"
)

var (
	// ErrMarkerNotFound means the executable carries no appended payload, or
	// the combined binary is corrupt. Never retried.
	ErrMarkerNotFound = errors.New("payload marker not found in binary")
	// ErrManifestParse means the extracted manifest is malformed or references
	// files that are not present in the archive.
	ErrManifestParse = errors.New("malformed payload manifest")
)

// ChecksumError reports a single manifest entry whose extracted bytes do not
// match the declared checksum. One bad entry aborts the whole load.
type ChecksumError struct {
	Name     string // image reference from the manifest
	Expected string // declared sha256, hex
	Actual   string // recomputed sha256, hex
}

func (e *ChecksumError) Error() string {
	return fmt.Sprintf("checksum mismatch for %s: expected %s, got %s", e.Name, e.Expected, e.Actual)
}
