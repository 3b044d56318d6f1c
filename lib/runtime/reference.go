package runtime

import (
	"github.com/distribution/reference"
)

// NormalizeRef expands an image reference to its fully-qualified tagged form
// so that manifest names and runtime-reported names compare equal.
// Examples:
//   - "postgres:16-alpine" -> "docker.io/library/postgres:16-alpine"
//   - "ghcr.io/acme/app" -> "ghcr.io/acme/app:latest"
func NormalizeRef(s string) (string, error) {
	named, err := reference.ParseNormalizedNamed(s)
	if err != nil {
		return "", err
	}
	return reference.TagNameOnly(named).String(), nil
}
