// Package extract unpacks the gzip-compressed tar payload into a session
// directory. Extraction streams through a small fixed buffer, so memory use is
// independent of payload size.
package extract

import (
	"archive/tar"
	"compress/gzip"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	securejoin "github.com/cyphar/filepath-securejoin"
)

// ErrInvalidArchivePath is returned when a tar entry has a malicious path.
var ErrInvalidArchivePath = errors.New("invalid archive path")

// IOError is any I/O failure during extraction (disk full, permission denied,
// truncated stream). It carries the path being written when the failure hit.
// The extractor never deletes partial output; cleanup is the caller's job.
type IOError struct {
	Path string
	Err  error
}

func (e *IOError) Error() string {
	return fmt.Sprintf("extraction failed at %s: %v", e.Path, e.Err)
}

func (e *IOError) Unwrap() error { return e.Err }

// copyBufSize is the transfer buffer used for every file write.
const copyBufSize = 32 * 1024

// ExtractTarGz unpacks a gzip-compressed tar stream from r into destDir,
// creating parent directories for nested entries. Regular files and
// directories are materialized; other entry kinds (symlinks, devices, fifos)
// are skipped, since the packager never emits them. Returns the total
// decompressed bytes written.
//
// Progress, when configured in opts, observes the compressed byte counter at
// a bounded rate so a multi-gigabyte payload does not flood the caller.
func ExtractTarGz(r io.Reader, destDir string, opts Options) (int64, error) {
	if err := os.MkdirAll(destDir, 0755); err != nil {
		return 0, &IOError{Path: destDir, Err: err}
	}

	counted := newCountingReader(r, opts)
	defer counted.finish()

	gzr, err := gzip.NewReader(counted)
	if err != nil {
		return 0, &IOError{Path: destDir, Err: fmt.Errorf("gzip reader: %w", err)}
	}
	defer gzr.Close()

	tr := tar.NewReader(gzr)
	buf := make([]byte, copyBufSize)

	var written int64
	for {
		header, err := tr.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return written, &IOError{Path: destDir, Err: fmt.Errorf("read tar header: %w", err)}
		}

		targetPath, err := entryPath(destDir, header.Name)
		if err != nil {
			return written, err
		}

		switch header.Typeflag {
		case tar.TypeDir:
			if err := os.MkdirAll(targetPath, os.FileMode(header.Mode)); err != nil {
				return written, &IOError{Path: targetPath, Err: err}
			}

		case tar.TypeReg:
			if err := os.MkdirAll(filepath.Dir(targetPath), 0755); err != nil {
				return written, &IOError{Path: targetPath, Err: err}
			}

			f, err := os.OpenFile(targetPath, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, os.FileMode(header.Mode))
			if err != nil {
				return written, &IOError{Path: targetPath, Err: err}
			}

			n, err := io.CopyBuffer(f, tr, buf)
			closeErr := f.Close()
			written += n

			if err != nil {
				return written, &IOError{Path: targetPath, Err: err}
			}
			if closeErr != nil {
				return written, &IOError{Path: targetPath, Err: closeErr}
			}

		default:
			continue
		}
	}

	return written, nil
}

// entryPath validates a tar entry name and resolves it under destDir.
func entryPath(destDir, name string) (string, error) {
	if filepath.IsAbs(name) {
		return "", fmt.Errorf("%w: absolute path %s", ErrInvalidArchivePath, name)
	}
	if strings.Contains(name, "..") {
		return "", fmt.Errorf("%w: path traversal in %s", ErrInvalidArchivePath, name)
	}

	targetPath, err := securejoin.SecureJoin(destDir, name)
	if err != nil {
		return "", fmt.Errorf("%w: %s: %v", ErrInvalidArchivePath, name, err)
	}
	return targetPath, nil
}
