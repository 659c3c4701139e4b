package backup

import (
	"archive/tar"
	"compress/gzip"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// maxEntrySize bounds each extracted file.
const maxEntrySize = 10 << 30

// Restore extracts a backup archive into targetDir and returns the paths
// written. Existing files are only overwritten when force is set.
func Restore(ctx context.Context, archivePath, targetDir string, force bool) ([]string, error) {
	f, err := os.Open(archivePath)
	if err != nil {
		return nil, fmt.Errorf("opening archive: %w", err)
	}
	defer f.Close()

	gr, err := gzip.NewReader(f)
	if err != nil {
		return nil, fmt.Errorf("decompressing archive: %w", err)
	}
	defer gr.Close()

	if err := os.MkdirAll(targetDir, 0o750); err != nil {
		return nil, fmt.Errorf("creating target directory: %w", err)
	}

	var (
		written []string
		foundDB bool
	)
	tr := tar.NewReader(gr)
	for {
		if err := ctx.Err(); err != nil {
			return written, err
		}
		hdr, err := tr.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return written, fmt.Errorf("reading archive entry: %w", err)
		}

		dest, err := entryPath(hdr.Name, targetDir)
		if err != nil {
			return written, err
		}
		if hdr.Typeflag != tar.TypeReg {
			continue
		}
		if strings.HasSuffix(hdr.Name, ".db") {
			foundDB = true
		}
		if !force {
			if _, err := os.Stat(dest); err == nil {
				return written, fmt.Errorf("file already exists (use -force to overwrite): %s", dest)
			}
		}
		if err := extract(tr, dest, hdr); err != nil {
			return written, fmt.Errorf("extracting %s: %w", hdr.Name, err)
		}
		written = append(written, dest)
	}

	if !foundDB {
		return written, errors.New("invalid backup: archive does not contain a .db file")
	}
	return written, nil
}

// entryPath resolves name inside targetDir, rejecting entries that would
// land outside it.
func entryPath(name, targetDir string) (string, error) {
	if filepath.IsAbs(name) {
		return "", fmt.Errorf("path traversal detected: absolute path %q", name)
	}
	cleaned := filepath.Clean(name)
	if cleaned == ".." || strings.HasPrefix(cleaned, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("path traversal detected: %q", name)
	}

	absTarget, err := filepath.Abs(targetDir)
	if err != nil {
		return "", fmt.Errorf("resolving target directory: %w", err)
	}
	dest := filepath.Join(absTarget, cleaned)
	if dest != absTarget && !strings.HasPrefix(dest, absTarget+string(filepath.Separator)) {
		return "", fmt.Errorf("path traversal detected: %q resolves outside target", name)
	}
	return dest, nil
}

func extract(r io.Reader, dest string, hdr *tar.Header) error {
	if err := os.MkdirAll(filepath.Dir(dest), 0o750); err != nil {
		return err
	}
	out, err := os.OpenFile(dest, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, os.FileMode(hdr.Mode&0o777)) //nolint:gosec // G115: mode bits fit in uint32
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, io.LimitReader(r, maxEntrySize)); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}
