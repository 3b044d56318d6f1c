// Package runtime is the installer's view of the local container runtime:
// list the images that are present, and load an image archive. Nothing else
// is required by the airgapped core.
package runtime

import (
	"context"
	"errors"
)

// ErrUnavailable means the container runtime cannot be reached (not
// installed, daemon not running, or no permission). Fatal for the whole run:
// neither the skip decision nor loading can proceed without the runtime.
var ErrUnavailable = errors.New("container runtime unavailable")

// Runtime is the explicit handle passed into the orchestrator. ListImages is
// a pure read; LoadImage registers an image archive with the runtime's store.
type Runtime interface {
	// ListImages returns the normalized name:tag references of all images
	// currently present in the runtime's image store.
	ListImages(ctx context.Context) ([]string, error)
	// LoadImage streams the gzip-compressed image archive at path into the
	// runtime's image store.
	LoadImage(ctx context.Context, path string) error
}
