// Package airgap coordinates the airgapped install: decide whether the
// bundled images are already present, and if not, locate, extract, verify and
// load the payload appended to the installer binary. The pipeline is a
// straight line (inventory -> locate -> extract -> verify -> load) with one
// early exit when everything is already present, and session cleanup runs on
// every path out, including cancellation.
package airgap

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/c2h5oh/datasize"
	"github.com/samber/lo"

	"github.com/nexusquantum/nqrust-installer/lib/extract"
	"github.com/nexusquantum/nqrust-installer/lib/payload"
	"github.com/nexusquantum/nqrust-installer/lib/runtime"
)

// Config configures one orchestrator.
type Config struct {
	// ExePath is the combined binary carrying the payload, normally the
	// running executable.
	ExePath string
	// WorkdirRoot overrides the temp root for the extraction session.
	// Empty means the system default.
	WorkdirRoot string
	// Expected is the compiled-in image set used for the skip decision.
	// Nil means DefaultExpectedImages.
	Expected []ExpectedImage
	// ProgressInterval bounds extraction progress logging. Zero picks the
	// extractor default.
	ProgressInterval time.Duration
}

// Orchestrator runs the ensure-images-loaded pipeline against an explicit
// runtime handle.
type Orchestrator struct {
	rt     runtime.Runtime
	cfg    Config
	logger *slog.Logger
}

// New creates an orchestrator. A nil logger falls back to slog.Default.
func New(rt runtime.Runtime, cfg Config, logger *slog.Logger) *Orchestrator {
	if cfg.Expected == nil {
		cfg.Expected = DefaultExpectedImages
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Orchestrator{rt: rt, cfg: cfg, logger: logger}
}

// Run ensures every bundled image is present in the runtime's image store.
// Success means exactly that; any failure is one of the typed errors from
// lib/payload, lib/extract, lib/runtime or this package, and the extraction
// session directory is removed before the error is returned.
func (o *Orchestrator) Run(ctx context.Context) error {
	present, err := o.rt.ListImages(ctx)
	if err != nil {
		return fmt.Errorf("query image inventory: %w", err)
	}
	presentSet := lo.SliceToMap(present, func(ref string) (string, struct{}) {
		return ref, struct{}{}
	})

	missing := missingImages(o.cfg.Expected, presentSet)
	if len(missing) == 0 {
		o.logger.Info("all bundled images already present, nothing to do",
			"images", len(o.cfg.Expected))
		return nil
	}
	o.logger.Info("bundled images missing from runtime",
		"missing", len(missing), "total", len(o.cfg.Expected))

	offset, err := payload.Locate(o.cfg.ExePath)
	if err != nil {
		return err
	}

	session, err := NewSession(o.cfg.WorkdirRoot)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := session.Close(); cerr != nil {
			o.logger.Warn("session cleanup failed", "dir", session.Dir(), "error", cerr)
		}
	}()

	if err := o.extract(ctx, offset, session.Dir()); err != nil {
		return err
	}

	manifest, err := payload.ReadManifest(session.Dir())
	if err != nil {
		return err
	}
	if err := checkExpected(manifest, o.cfg.Expected); err != nil {
		return err
	}
	if err := payload.VerifyChecksums(session.Dir(), manifest); err != nil {
		return err
	}

	return o.load(ctx, session.Dir(), manifest, presentSet)
}

// extract streams the payload from the combined binary into the session
// directory.
func (o *Orchestrator) extract(ctx context.Context, offset int64, destDir string) error {
	f, err := os.Open(o.cfg.ExePath)
	if err != nil {
		return &extract.IOError{Path: o.cfg.ExePath, Err: err}
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return &extract.IOError{Path: o.cfg.ExePath, Err: err}
	}
	total := info.Size() - offset

	if _, err := f.Seek(offset, io.SeekStart); err != nil {
		return &extract.IOError{Path: o.cfg.ExePath, Err: err}
	}

	o.logger.Info("extracting payload",
		"size", datasize.ByteSize(total).HumanReadable(), "dir", destDir)

	_, err = extract.ExtractTarGz(readerCtx(ctx, f), destDir, extract.Options{
		Total:            total,
		ProgressInterval: o.cfg.ProgressInterval,
		Progress: func(p extract.Progress) {
			o.logger.Info("extraction progress",
				"bytes", p.Bytes, "total", p.Total,
				"read", datasize.ByteSize(p.Bytes).HumanReadable())
		},
	})
	return err
}

// load walks manifest entries in manifest order and loads every entry that is
// not already present. The first failure aborts the remaining loads.
func (o *Orchestrator) load(ctx context.Context, dir string, m *payload.Manifest, present map[string]struct{}) error {
	decisions := decideLoads(m.Images, present)
	total := len(decisions)

	for i, d := range decisions {
		if d.AlreadyPresent {
			o.logger.Info("image already present",
				"image", d.Entry.Name, "index", i+1, "total", total)
			continue
		}
		if err := ctx.Err(); err != nil {
			return err
		}

		o.logger.Info("loading image",
			"image", d.Entry.Name, "index", i+1, "total", total,
			"size", datasize.ByteSize(d.Entry.Size).HumanReadable())

		if err := o.rt.LoadImage(ctx, filepath.Join(dir, d.Entry.File)); err != nil {
			return &LoadError{Name: d.Entry.Name, Err: err}
		}
	}
	return nil
}

// ImageLoadDecision is the per-entry verdict computed fresh on every run by
// comparing the entry's normalized name against the runtime inventory.
type ImageLoadDecision struct {
	Entry          payload.ImageEntry
	AlreadyPresent bool
}

func decideLoads(entries []payload.ImageEntry, present map[string]struct{}) []ImageLoadDecision {
	return lo.Map(entries, func(e payload.ImageEntry, _ int) ImageLoadDecision {
		return ImageLoadDecision{Entry: e, AlreadyPresent: isPresent(e.Name, present)}
	})
}

func missingImages(expected []ExpectedImage, present map[string]struct{}) []ExpectedImage {
	return lo.Filter(expected, func(e ExpectedImage, _ int) bool {
		return !isPresent(e.Name, present)
	})
}

// isPresent matches on normalized name:tag only. A present-but-different
// image under the same tag is treated as present; re-running never compares
// digests.
func isPresent(name string, present map[string]struct{}) bool {
	ref, err := runtime.NormalizeRef(name)
	if err != nil {
		return false
	}
	_, ok := present[ref]
	return ok
}

// checkExpected verifies the extracted manifest declares every image the
// binary was built to carry. A payload/binary mismatch is a packaging bug.
func checkExpected(m *payload.Manifest, expected []ExpectedImage) error {
	declared := lo.SliceToMap(m.Images, func(e payload.ImageEntry) (string, struct{}) {
		return e.File, struct{}{}
	})
	for _, exp := range expected {
		if _, ok := declared[exp.File]; !ok {
			return fmt.Errorf("%w: bundled image %s (%s) not declared",
				payload.ErrManifestParse, exp.Name, exp.File)
		}
	}
	return nil
}

// readerCtx makes a blocking read loop cancellable between reads so the
// pipeline reaches session cleanup promptly on interrupt.
func readerCtx(ctx context.Context, r io.Reader) io.Reader {
	return &ctxReader{ctx: ctx, r: r}
}

type ctxReader struct {
	ctx context.Context
	r   io.Reader
}

func (c *ctxReader) Read(p []byte) (int, error) {
	if err := c.ctx.Err(); err != nil {
		return 0, err
	}
	return c.r.Read(p)
}
