package runtime

import (
	"bytes"
	"compress/gzip"
	"context"
	"fmt"
	"os"
	"os/exec"
	"strings"

	"github.com/samber/lo"
)

// DockerCLI talks to the local Docker daemon through the docker binary. The
// installer targets hosts where the CLI is the only guaranteed interface, so
// no daemon socket client is used.
type DockerCLI struct {
	bin string
}

// NewDockerCLI returns a handle using the given docker binary. An empty bin
// means "docker" resolved from PATH.
func NewDockerCLI(bin string) *DockerCLI {
	if bin == "" {
		bin = "docker"
	}
	return &DockerCLI{bin: bin}
}

// ListImages returns the normalized name:tag of every image the daemon
// reports. Untagged (dangling) images are dropped. Any failure to run the CLI
// or reach the daemon maps to ErrUnavailable.
func (d *DockerCLI) ListImages(ctx context.Context) ([]string, error) {
	cmd := exec.CommandContext(ctx, d.bin, "image", "ls", "--format", "{{.Repository}}:{{.Tag}}")
	output, err := cmd.Output()
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrUnavailable, cliError(err))
	}

	lines := strings.Split(strings.TrimSpace(string(output)), "\n")
	refs := lo.FilterMap(lines, func(line string, _ int) (string, bool) {
		line = strings.TrimSpace(line)
		if line == "" || strings.Contains(line, "<none>") {
			return "", false
		}
		normalized, err := NormalizeRef(line)
		if err != nil {
			return "", false
		}
		return normalized, true
	})

	return refs, nil
}

// LoadImage decompresses the gzip'd image archive at path and streams it into
// `docker load` stdin, so the archive is never staged decompressed on disk.
func (d *DockerCLI) LoadImage(ctx context.Context, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open image archive: %w", err)
	}
	defer f.Close()

	gzr, err := gzip.NewReader(f)
	if err != nil {
		return fmt.Errorf("decompress image archive %s: %w", path, err)
	}
	defer gzr.Close()

	var stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, d.bin, "load")
	cmd.Stdin = gzr
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if msg := strings.TrimSpace(stderr.String()); msg != "" {
			return fmt.Errorf("docker load: %s", msg)
		}
		return fmt.Errorf("docker load: %w", err)
	}
	return nil
}

// cliError extracts stderr from a failed CLI invocation when available.
func cliError(err error) string {
	if exitErr, ok := err.(*exec.ExitError); ok {
		if msg := strings.TrimSpace(string(exitErr.Stderr)); msg != "" {
			return msg
		}
	}
	return err.Error()
}
