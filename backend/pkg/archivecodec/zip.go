package archivecodec

import (
	"archive/zip"
	"context"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/vgitarchive/vgitarchive/backend/pkg/rate"
	"github.com/vgitarchive/vgitarchive/backend/pkg/ratelimit"
)

const zipIdentifier = "ZIP"

// `ZipCodec` is the default `Codec`, backed by the standard library
// `archive/zip`.  No pack-folder zip library appears anywhere in the
// retrieval pack (see DESIGN.md), so this wraps the standard library
// directly, the same way the original Java `ZipFormat` wrapped
// `java.util.zip`.
//
// `BandwidthLimit`, when non-zero, throttles pack/unpack I/O to that many
// bytes per second, mirroring `tartt tar --limit=<bandwidth>`
// (`nog/backend/cmd/tartt/cmd-tar.go`), grounded on
// `backend/pkg/ratelimit` (`github.com/juju/ratelimit`).
//
// `Regulator`, when set, overrides `BandwidthLimit` with its current
// adaptive limit (`backend/pkg/rate.Limiter`, fed by
// `backend/pkg/ratecounter`) and is told whether the transfer completed
// cleanly or hit an I/O error, the same success/excess feedback a
// long-lived embedder regulates over many archives instead of one.
// Running `Regulator.Regulate(ctx)` in the background is the embedder's
// job; a one-shot CLI invocation only contributes a sample.
type ZipCodec struct {
	BandwidthLimit int64
	Regulator      *rate.Limiter
}

func (c ZipCodec) effectiveLimit() int64 {
	if c.Regulator != nil {
		if l := int64(c.Regulator.L.Limit()); l > 0 {
			return l
		}
	}
	return c.BandwidthLimit
}

func (c ZipCodec) report(err error) {
	if c.Regulator == nil {
		return
	}
	if err == nil {
		c.Regulator.Success()
	} else {
		c.Regulator.Excess()
	}
}

func (c ZipCodec) Identifier() string { return zipIdentifier }

func (c ZipCodec) Pack(
	ctx context.Context, folder, destFile string, excludedEndings ...string,
) (err error) {
	defer func() { c.report(err) }()

	tmp, err := os.CreateTemp(filepath.Dir(destFile), ".vgitarchive-pack-*")
	if err != nil {
		return fmt.Errorf("archivecodec: create temp archive: %w", err)
	}
	tmpPath := tmp.Name()
	succeeded := false
	defer func() {
		tmp.Close()
		if !succeeded {
			os.Remove(tmpPath)
		}
	}()

	var w io.Writer = tmp
	if limit := c.effectiveLimit(); limit > 0 {
		bucket := ratelimit.NewBucketWithRate(float64(limit), limit)
		w = ratelimit.Writer(tmp, bucket)
	}

	zw := zip.NewWriter(w)
	err = filepath.WalkDir(folder, func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if path == folder {
			return nil
		}

		rel, err := filepath.Rel(folder, path)
		if err != nil {
			return err
		}
		rel = filepath.ToSlash(rel)

		if hasExcludedEnding(rel, excludedEndings) {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}

		if d.IsDir() {
			return nil
		}
		if d.Type()&fs.ModeSymlink != 0 {
			// Symlinks are not required to round-trip (spec.md
			// §4.1); skip rather than dereference.
			return nil
		}

		info, err := d.Info()
		if err != nil {
			return err
		}
		hdr, err := zip.FileInfoHeader(info)
		if err != nil {
			return err
		}
		hdr.Name = rel
		hdr.Method = zip.Deflate

		entry, err := zw.CreateHeader(hdr)
		if err != nil {
			return err
		}

		src, err := os.Open(path)
		if err != nil {
			return err
		}
		defer src.Close()

		_, err = io.Copy(entry, src)
		return err
	})
	if err != nil {
		zw.Close()
		return fmt.Errorf("archivecodec: pack %s: %w", folder, err)
	}
	if err := zw.Close(); err != nil {
		return fmt.Errorf("archivecodec: close archive: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("archivecodec: close temp archive: %w", err)
	}

	if err := os.Rename(tmpPath, destFile); err != nil {
		return fmt.Errorf("archivecodec: replace %s: %w", destFile, err)
	}
	succeeded = true
	return nil
}

func (c ZipCodec) Unpack(ctx context.Context, archive, destFolder string) (err error) {
	defer func() { c.report(err) }()

	r, err := zip.OpenReader(archive)
	if err != nil {
		return fmt.Errorf("archivecodec: open %s: %w", archive, err)
	}
	defer r.Close()

	if err := os.MkdirAll(destFolder, 0o755); err != nil {
		return err
	}

	for _, f := range r.File {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		name := filepath.FromSlash(f.Name)
		dest := filepath.Join(destFolder, name)
		if !strings.HasPrefix(dest, filepath.Clean(destFolder)+string(os.PathSeparator)) && dest != filepath.Clean(destFolder) {
			return fmt.Errorf("archivecodec: entry %q escapes destination", f.Name)
		}

		if f.FileInfo().IsDir() {
			if err := os.MkdirAll(dest, 0o755); err != nil {
				return err
			}
			continue
		}

		if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
			return err
		}

		if err := extractOne(f, dest, c.effectiveLimit()); err != nil {
			return fmt.Errorf("archivecodec: extract %q: %w", f.Name, err)
		}
	}
	return nil
}

func extractOne(f *zip.File, dest string, bandwidthLimit int64) error {
	rc, err := f.Open()
	if err != nil {
		return err
	}
	defer rc.Close()

	out, err := os.OpenFile(dest, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, f.Mode())
	if err != nil {
		return err
	}
	defer out.Close()

	var src io.Reader = rc
	if bandwidthLimit > 0 {
		bucket := ratelimit.NewBucketWithRate(float64(bandwidthLimit), bandwidthLimit)
		src = ratelimit.Reader(rc, bucket)
	}

	_, err = io.Copy(out, src)
	return err
}

func hasExcludedEnding(path string, endings []string) bool {
	for _, e := range endings {
		if e == "" {
			continue
		}
		if strings.HasSuffix(path, e) {
			return true
		}
	}
	return false
}
