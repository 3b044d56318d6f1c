package payload

import (
	"crypto/sha256"
	"encoding/hex"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sha256Hex(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

func validManifest() *Manifest {
	return &Manifest{
		Images: []ImageEntry{
			{Name: "postgres:16-alpine", File: "postgres.tar.gz", Size: 4, SHA256: sha256Hex([]byte("aaaa"))},
			{Name: "ghcr.io/nexusquantum/nqrust-identity:latest", File: "nqrust-identity.tar.gz", Size: 4, SHA256: sha256Hex([]byte("bbbb"))},
		},
		Version: "v1.2.3",
	}
}

func TestManifest_WriteReadRoundTrip(t *testing.T) {
	dir := t.TempDir()
	want := validManifest()

	require.NoError(t, WriteManifest(dir, want))

	got, err := ReadManifest(dir)
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestReadManifest_MissingFile(t *testing.T) {
	_, err := ReadManifest(t.TempDir())
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrManifestParse)
}

func TestReadManifest_MalformedJSON(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, ManifestFileName), []byte("{not json"), 0644))

	_, err := ReadManifest(dir)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrManifestParse)
}

func TestReadManifest_Validation(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Manifest)
	}{
		{"no images", func(m *Manifest) { m.Images = nil }},
		{"invalid reference", func(m *Manifest) { m.Images[0].Name = "UPPER CASE BAD" }},
		{"absolute file path", func(m *Manifest) { m.Images[0].File = "/etc/passwd" }},
		{"empty file path", func(m *Manifest) { m.Images[0].File = "" }},
		{"duplicate file", func(m *Manifest) { m.Images[1].File = m.Images[0].File }},
		{"short sha256", func(m *Manifest) { m.Images[0].SHA256 = "abc123" }},
		{"non-hex sha256", func(m *Manifest) { m.Images[0].SHA256 = sha256Hex(nil)[:62] + "zz" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := t.TempDir()
			m := validManifest()
			tt.mutate(m)
			require.NoError(t, WriteManifest(dir, m))

			_, err := ReadManifest(dir)
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrManifestParse)
		})
	}
}

func TestVerifyChecksums_AllGood(t *testing.T) {
	dir := t.TempDir()
	contentA := []byte("image archive A")
	contentB := []byte("image archive B")
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.tar.gz"), contentA, 0644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "b.tar.gz"), contentB, 0644))

	m := &Manifest{Images: []ImageEntry{
		{Name: "acme/a:1", File: "a.tar.gz", Size: uint64(len(contentA)), SHA256: sha256Hex(contentA)},
		{Name: "acme/b:1", File: "b.tar.gz", Size: uint64(len(contentB)), SHA256: sha256Hex(contentB)},
	}}

	require.NoError(t, VerifyChecksums(dir, m))
}

func TestVerifyChecksums_SingleCorruptEntry(t *testing.T) {
	dir := t.TempDir()
	contentA := []byte("image archive A")
	contentB := []byte("image archive B")
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.tar.gz"), contentA, 0644))

	// Flip one byte of B after computing its declared checksum.
	declaredB := sha256Hex(contentB)
	corrupted := append([]byte(nil), contentB...)
	corrupted[0] ^= 0x01
	require.NoError(t, os.WriteFile(filepath.Join(dir, "b.tar.gz"), corrupted, 0644))

	m := &Manifest{Images: []ImageEntry{
		{Name: "acme/a:1", File: "a.tar.gz", Size: uint64(len(contentA)), SHA256: sha256Hex(contentA)},
		{Name: "acme/b:1", File: "b.tar.gz", Size: uint64(len(contentB)), SHA256: declaredB},
	}}

	err := VerifyChecksums(dir, m)
	require.Error(t, err)

	var checksumErr *ChecksumError
	require.ErrorAs(t, err, &checksumErr)
	assert.Equal(t, "acme/b:1", checksumErr.Name)
	assert.Equal(t, declaredB, checksumErr.Expected)
	assert.Equal(t, sha256Hex(corrupted), checksumErr.Actual)
}

func TestVerifyChecksums_MissingReferencedFile(t *testing.T) {
	dir := t.TempDir()
	m := &Manifest{Images: []ImageEntry{
		{Name: "acme/a:1", File: "gone.tar.gz", Size: 1, SHA256: sha256Hex([]byte("x"))},
	}}

	err := VerifyChecksums(dir, m)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrManifestParse)
}
