package airgap

import (
	"fmt"
	"os"
)

// Session is one run's extraction working directory, created under the system
// temp root (or an override) and owned exclusively by that run. The
// orchestrator guarantees Close on every exit path, so the directory never
// outlives the run.
type Session struct {
	dir string
}

// NewSession creates a uniquely named working directory under root. An empty
// root means the system default temp directory.
func NewSession(root string) (*Session, error) {
	dir, err := os.MkdirTemp(root, "nqrust-airgap-*")
	if err != nil {
		return nil, fmt.Errorf("create session directory: %w", err)
	}
	return &Session{dir: dir}, nil
}

// Dir returns the session directory path.
func (s *Session) Dir() string { return s.dir }

// Close removes the entire session subtree.
func (s *Session) Close() error {
	return os.RemoveAll(s.dir)
}
