package payload

import (
	"bytes"
	"fmt"
	"io"
	"os"
)

// scanWindowSize is how much of the file is read per scan step. The window
// keeps len(signature)-1 bytes of overlap between steps so a marker that
// straddles a read boundary is still found.
const scanWindowSize = 64 * 1024

// Locate scans the file at path for the payload marker and returns the byte
// offset immediately after it, i.e. the start of the gzip stream. The scan
// reads the file in fixed-size windows and never loads it whole into memory.
//
// An occurrence of the marker only counts when it is followed by a gzip
// header, because the executable's own data section contains the marker
// literal. Returns ErrMarkerNotFound when no such occurrence exists.
func Locate(path string) (int64, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, fmt.Errorf("open binary: %w", err)
	}
	defer f.Close()

	return locate(f)
}

func locate(r io.Reader) (int64, error) {
	signature := append([]byte(Marker), gzipMagic...)

	var (
		window  []byte
		basePos int64
		buf     = make([]byte, scanWindowSize)
	)

	for {
		n, err := r.Read(buf)
		if n > 0 {
			window = append(window, buf[:n]...)

			if idx := bytes.Index(window, signature); idx >= 0 {
				return basePos + int64(idx) + int64(len(Marker)), nil
			}

			// Keep only the tail that could still hold a split signature.
			if keep := len(signature) - 1; len(window) > keep {
				trim := len(window) - keep
				basePos += int64(trim)
				window = append(window[:0], window[trim:]...)
			}
		}
		if err == io.EOF {
			return 0, ErrMarkerNotFound
		}
		if err != nil {
			return 0, fmt.Errorf("scan binary: %w", err)
		}
	}
}
