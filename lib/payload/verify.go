package payload

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/opencontainers/go-digest"
)

// VerifyChecksums recomputes the sha256 of every extracted image archive and
// compares it against the manifest. Entries are checked in manifest order and
// the first mismatch aborts with a ChecksumError; a manifest entry whose file
// is missing from the session directory fails with ErrManifestParse.
func VerifyChecksums(dir string, m *Manifest) error {
	for _, e := range m.Images {
		actual, err := fileDigest(filepath.Join(dir, e.File))
		if err != nil {
			if os.IsNotExist(err) {
				return fmt.Errorf("%w: %s references missing file %s", ErrManifestParse, e.Name, e.File)
			}
			return fmt.Errorf("checksum %s: %w", e.File, err)
		}
		if actual != e.SHA256 {
			return &ChecksumError{Name: e.Name, Expected: e.SHA256, Actual: actual}
		}
	}
	return nil
}

// fileDigest returns the hex sha256 of the file, streaming it through the
// hasher in constant memory.
func fileDigest(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	d, err := digest.SHA256.FromReader(f)
	if err != nil {
		return "", err
	}
	return d.Encoded(), nil
}
