package payload

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/distribution/reference"
	"github.com/opencontainers/go-digest"
)

// ManifestFileName is the manifest's path inside the extracted archive.
const ManifestFileName = "manifest.json"

// Manifest indexes the image archives bundled in the payload. The order of
// Images is significant: verification and loading both follow it, so logs and
// error messages are reproducible across runs of the same payload.
type Manifest struct {
	Images  []ImageEntry `json:"images"`
	Version string       `json:"version,omitempty"`
}

// ImageEntry describes one bundled image archive.
type ImageEntry struct {
	Name   string `json:"name"`   // registry/repo:tag
	File   string `json:"file"`   // path relative to the session directory
	Size   uint64 `json:"size"`   // compressed archive size in bytes
	SHA256 string `json:"sha256"` // hex digest of the archive file
}

// ReadManifest parses and validates the manifest in the session directory.
// Any malformed content, including invalid image references, duplicate file
// names, or bad digest strings, fails with ErrManifestParse.
func ReadManifest(dir string) (*Manifest, error) {
	data, err := os.ReadFile(filepath.Join(dir, ManifestFileName))
	if err != nil {
		return nil, fmt.Errorf("%w: read %s: %v", ErrManifestParse, ManifestFileName, err)
	}

	var m Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrManifestParse, err)
	}

	if err := m.validate(); err != nil {
		return nil, err
	}
	return &m, nil
}

func (m *Manifest) validate() error {
	if len(m.Images) == 0 {
		return fmt.Errorf("%w: no images declared", ErrManifestParse)
	}

	seen := make(map[string]struct{}, len(m.Images))
	for _, e := range m.Images {
		if _, err := reference.ParseNormalizedNamed(e.Name); err != nil {
			return fmt.Errorf("%w: invalid image reference %q: %v", ErrManifestParse, e.Name, err)
		}
		if e.File == "" || filepath.IsAbs(e.File) {
			return fmt.Errorf("%w: invalid file path %q for %s", ErrManifestParse, e.File, e.Name)
		}
		if _, dup := seen[e.File]; dup {
			return fmt.Errorf("%w: duplicate file %q", ErrManifestParse, e.File)
		}
		seen[e.File] = struct{}{}

		d := digest.NewDigestFromEncoded(digest.SHA256, e.SHA256)
		if err := d.Validate(); err != nil {
			return fmt.Errorf("%w: invalid sha256 for %s: %v", ErrManifestParse, e.Name, err)
		}
	}
	return nil
}

// WriteManifest writes the manifest into dir atomically (temp file + rename).
// Used by the build-time packager; the runtime core only reads manifests.
func WriteManifest(dir string, m *Manifest) error {
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal manifest: %w", err)
	}

	finalPath := filepath.Join(dir, ManifestFileName)
	tempPath := finalPath + ".tmp"
	if err := os.WriteFile(tempPath, data, 0644); err != nil {
		return fmt.Errorf("write temp manifest: %w", err)
	}
	if err := os.Rename(tempPath, finalPath); err != nil {
		os.Remove(tempPath)
		return fmt.Errorf("rename manifest: %w", err)
	}
	return nil
}
