package airgap

import "fmt"

// LoadError reports the first image whose load into the runtime failed.
// Remaining loads are not attempted; already-loaded images are not rolled
// back (loading is durable and idempotent, a re-run skips them).
type LoadError struct {
	Name string
	Err  error
}

func (e *LoadError) Error() string {
	return fmt.Sprintf("load image %s: %v", e.Name, e.Err)
}

func (e *LoadError) Unwrap() error { return e.Err }
