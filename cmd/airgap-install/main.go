// airgap-install ensures every container image bundled into this binary's
// appended payload is loaded into the local Docker daemon. It is invoked by
// the setup wizard on airgapped hosts and exits 0 when all images are present,
// whether or not any extraction was needed.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/nexusquantum/nqrust-installer/cmd/airgap-install/config"
	"github.com/nexusquantum/nqrust-installer/lib/airgap"
	"github.com/nexusquantum/nqrust-installer/lib/extract"
	"github.com/nexusquantum/nqrust-installer/lib/payload"
	"github.com/nexusquantum/nqrust-installer/lib/runtime"
)

// Exit codes per failure category, so calling tooling can branch on cause.
const (
	exitMarkerNotFound     = 10
	exitExtractionIO       = 11
	exitManifestParse      = 12
	exitChecksumMismatch   = 13
	exitRuntimeUnavailable = 14
	exitLoadFailed         = 15
)

func main() {
	if err := run(); err != nil {
		slog.Error("airgapped install failed", "error", err)
		os.Exit(exitCode(err))
	}
}

func run() error {
	cfg := config.Load()

	workdir := flag.String("workdir", cfg.WorkdirRoot,
		"root directory for the extraction working directory (default: system temp)")
	flag.Parse()

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: parseLevel(cfg.LogLevel),
	}))
	slog.SetDefault(logger)

	exePath, err := os.Executable()
	if err != nil {
		return fmt.Errorf("resolve executable path: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	orch := airgap.New(runtime.NewDockerCLI(cfg.DockerBin), airgap.Config{
		ExePath:     exePath,
		WorkdirRoot: *workdir,
	}, logger)

	if err := orch.Run(ctx); err != nil {
		return err
	}

	logger.Info("airgapped install complete")
	return nil
}

func exitCode(err error) int {
	var (
		ioErr       *extract.IOError
		checksumErr *payload.ChecksumError
		loadErr     *airgap.LoadError
	)

	switch {
	case errors.Is(err, payload.ErrMarkerNotFound):
		return exitMarkerNotFound
	case errors.As(err, &ioErr):
		return exitExtractionIO
	case errors.Is(err, payload.ErrManifestParse):
		return exitManifestParse
	case errors.As(err, &checksumErr):
		return exitChecksumMismatch
	case errors.Is(err, runtime.ErrUnavailable):
		return exitRuntimeUnavailable
	case errors.As(err, &loadErr):
		return exitLoadFailed
	default:
		return 1
	}
}

func parseLevel(s string) slog.Level {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
