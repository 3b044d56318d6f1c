// Package payload locates and describes the compressed image archive that the
// build packager appends to the installer executable. The combined file layout
// is [executable bytes][Marker][gzip-compressed tar stream]; nothing here ever
// writes to that file.
package payload

import (
	"errors"
	"fmt"
	"os"
)

// Marker separates the native executable bytes from the appended archive.
// It must match the literal the packager writes (cmd/pack).
const Marker = "__NQRUST_PAYLOAD__"

// gzipMagic is the start of a gzip member header (deflate method). The
// executable itself contains the Marker literal as data, so the locator only
// accepts an occurrence that is immediately followed by these bytes.
var gzipMagic = []byte{0x1f, 0x8b, 0x08}

// minPayloadSize is the threshold below which a binary cannot plausibly carry
// an image payload. A plain installer build is around 10 MB; airgapped builds
// are multiple GB. Checking the size first avoids scanning the whole file on
// every start of a non-airgapped build.
const minPayloadSize = 50 * 1000 * 1000

// HasPayload reports whether the executable at path carries an appended
// payload. It is a cheap probe: a size check followed by a marker scan.
func HasPayload(path string) (bool, error) {
	info, err := os.Stat(path)
	if err != nil {
		return false, fmt.Errorf("stat executable: %w", err)
	}
	if info.Size() < minPayloadSize {
		return false, nil
	}

	_, err = Locate(path)
	if err != nil {
		if errors.Is(err, ErrMarkerNotFound) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}
