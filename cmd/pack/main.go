// pack produces an airgapped installer: it concatenates a stub executable,
// the payload marker, and a gzip-compressed tar archive holding the manifest
// plus the given docker-save image archives. Image files are appended in the
// order given on the command line; that order is preserved in the manifest
// and therefore in verification and loading at install time.
//
// Usage:
//
//	pack -stub installer -out installer-airgapped [-version v1.2.3] postgres.tar.gz app.tar.gz
package main

import (
	"archive/tar"
	"compress/gzip"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/c2h5oh/datasize"
	"github.com/google/go-containerregistry/pkg/v1/tarball"
	"github.com/opencontainers/go-digest"
	"golang.org/x/sync/errgroup"

	"github.com/nexusquantum/nqrust-installer/lib/payload"
)

func main() {
	if err := run(); err != nil {
		slog.Error("pack failed", "error", err)
		os.Exit(1)
	}
}

func run() error {
	stubPath := flag.String("stub", "", "installer executable to prepend")
	outPath := flag.String("out", "", "combined binary to write")
	version := flag.String("version", "", "build version recorded in the manifest")
	flag.Parse()

	if *stubPath == "" || *outPath == "" || flag.NArg() == 0 {
		return fmt.Errorf("usage: pack -stub STUB -out OUT [-version V] IMAGE.tar.gz ...")
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))
	slog.SetDefault(logger)

	manifest, err := buildManifest(context.Background(), flag.Args(), *version)
	if err != nil {
		return err
	}

	for _, e := range manifest.Images {
		logger.Info("bundling image", "image", e.Name, "file", e.File,
			"size", datasize.ByteSize(e.Size).HumanReadable())
	}

	if err := writeCombined(*stubPath, *outPath, flag.Args(), manifest); err != nil {
		return err
	}

	logger.Info("combined binary written", "path", *outPath)
	return nil
}

// buildManifest inspects and hashes every image archive. Hashing runs
// concurrently (this is build-time tooling; install-time verification stays
// sequential), but the manifest keeps the command-line order.
func buildManifest(ctx context.Context, paths []string, version string) (*payload.Manifest, error) {
	entries := make([]payload.ImageEntry, len(paths))

	g, _ := errgroup.WithContext(ctx)
	for i, path := range paths {
		g.Go(func() error {
			entry, err := inspectArchive(path)
			if err != nil {
				return fmt.Errorf("inspect %s: %w", path, err)
			}
			entries[i] = *entry
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	return &payload.Manifest{Images: entries, Version: version}, nil
}

// inspectArchive reads the docker-save manifest inside a gzip'd image archive
// to recover the image reference, and hashes the archive as stored.
func inspectArchive(path string) (*payload.ImageEntry, error) {
	descriptors, err := tarball.LoadManifest(func() (io.ReadCloser, error) {
		return openGzip(path)
	})
	if err != nil {
		return nil, fmt.Errorf("read image manifest: %w", err)
	}
	if len(descriptors) == 0 || len(descriptors[0].RepoTags) == 0 {
		return nil, fmt.Errorf("archive has no tagged image")
	}
	name := descriptors[0].RepoTags[0]

	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, err
	}

	d, err := digest.SHA256.FromReader(f)
	if err != nil {
		return nil, fmt.Errorf("hash archive: %w", err)
	}

	return &payload.ImageEntry{
		Name:   name,
		File:   filepath.Base(path),
		Size:   uint64(info.Size()),
		SHA256: d.Encoded(),
	}, nil
}

// writeCombined writes [stub][marker][gzip(tar(manifest.json, images...))].
func writeCombined(stubPath, outPath string, imagePaths []string, m *payload.Manifest) error {
	out, err := os.OpenFile(outPath, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0755)
	if err != nil {
		return fmt.Errorf("create output: %w", err)
	}
	defer out.Close()

	stub, err := os.Open(stubPath)
	if err != nil {
		return fmt.Errorf("open stub: %w", err)
	}
	defer stub.Close()

	if _, err := io.Copy(out, stub); err != nil {
		return fmt.Errorf("copy stub: %w", err)
	}
	if _, err := io.WriteString(out, payload.Marker); err != nil {
		return fmt.Errorf("write marker: %w", err)
	}

	gw := gzip.NewWriter(out)
	tw := tar.NewWriter(gw)

	manifestData, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal manifest: %w", err)
	}
	if err := writeTarFile(tw, payload.ManifestFileName, manifestData); err != nil {
		return err
	}

	for i, path := range imagePaths {
		if err := appendFile(tw, m.Images[i], path); err != nil {
			return err
		}
	}

	if err := tw.Close(); err != nil {
		return fmt.Errorf("close tar: %w", err)
	}
	if err := gw.Close(); err != nil {
		return fmt.Errorf("close gzip: %w", err)
	}
	return nil
}

func writeTarFile(tw *tar.Writer, name string, data []byte) error {
	hdr := &tar.Header{Name: name, Mode: 0644, Size: int64(len(data))}
	if err := tw.WriteHeader(hdr); err != nil {
		return fmt.Errorf("write %s header: %w", name, err)
	}
	if _, err := tw.Write(data); err != nil {
		return fmt.Errorf("write %s: %w", name, err)
	}
	return nil
}

func appendFile(tw *tar.Writer, entry payload.ImageEntry, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	hdr := &tar.Header{Name: entry.File, Mode: 0644, Size: int64(entry.Size)}
	if err := tw.WriteHeader(hdr); err != nil {
		return fmt.Errorf("write %s header: %w", entry.File, err)
	}
	if _, err := io.Copy(tw, f); err != nil {
		return fmt.Errorf("append %s: %w", entry.File, err)
	}
	return nil
}

// openGzip opens path and returns a ReadCloser over its decompressed stream.
func openGzip(path string) (io.ReadCloser, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	gzr, err := gzip.NewReader(f)
	if err != nil {
		f.Close()
		return nil, err
	}
	return &gzipReadCloser{f: f, gzr: gzr}, nil
}

type gzipReadCloser struct {
	f   *os.File
	gzr *gzip.Reader
}

func (g *gzipReadCloser) Read(p []byte) (int, error) { return g.gzr.Read(p) }

func (g *gzipReadCloser) Close() error {
	gerr := g.gzr.Close()
	ferr := g.f.Close()
	if gerr != nil {
		return gerr
	}
	return ferr
}
