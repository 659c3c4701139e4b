// Package backup archives the decision database and configuration into a
// gzipped tarball, and restores such archives.
package backup

import (
	"archive/tar"
	"compress/gzip"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/HerbHall/streamwatch/internal/store"
	"github.com/HerbHall/streamwatch/internal/version"
)

// ManifestName is the archive entry describing the backup.
const ManifestName = "manifest.json"

// Manifest records what a backup contains.
type Manifest struct {
	Version   string    `json:"version"`
	CreatedAt time.Time `json:"created_at"`
	Database  string    `json:"database"`
	Config    string    `json:"config,omitempty"`
}

// Backup writes a consistent snapshot of the database at dbPath, plus the
// config file at cfgPath when non-empty, to archivePath. The snapshot is
// taken with VACUUM INTO so a running detector can keep writing.
func Backup(ctx context.Context, dbPath, cfgPath, archivePath string) error {
	if _, err := os.Stat(dbPath); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("database file not found: %s", dbPath)
		}
		return fmt.Errorf("stat database: %w", err)
	}

	tmpDir, err := os.MkdirTemp("", "streamwatch-backup-")
	if err != nil {
		return fmt.Errorf("creating temp directory: %w", err)
	}
	defer os.RemoveAll(tmpDir)

	snapshot := filepath.Join(tmpDir, filepath.Base(dbPath))
	if err := vacuumInto(ctx, dbPath, snapshot); err != nil {
		return err
	}

	m := Manifest{
		Version:   version.Short(),
		CreatedAt: time.Now().UTC(),
		Database:  filepath.Base(dbPath),
	}
	if cfgPath != "" {
		m.Config = filepath.Base(cfgPath)
	}

	if err := os.MkdirAll(filepath.Dir(archivePath), 0o750); err != nil {
		return fmt.Errorf("creating archive directory: %w", err)
	}
	out, err := os.Create(archivePath)
	if err != nil {
		return fmt.Errorf("creating archive: %w", err)
	}
	if err := writeArchive(out, m, snapshot, cfgPath); err != nil {
		out.Close()
		os.Remove(archivePath)
		return err
	}
	return out.Close()
}

func vacuumInto(ctx context.Context, dbPath, dest string) error {
	s, err := store.New(dbPath)
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer s.Close()
	if _, err := s.DB().ExecContext(ctx, "VACUUM INTO ?", dest); err != nil {
		return fmt.Errorf("snapshotting database: %w", err)
	}
	return nil
}

func writeArchive(w io.Writer, m Manifest, snapshot, cfgPath string) error {
	gw := gzip.NewWriter(w)
	tw := tar.NewWriter(gw)

	manifest, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return err
	}
	if err := writeEntry(tw, ManifestName, manifest, m.CreatedAt); err != nil {
		return err
	}
	if err := addFile(tw, snapshot, m.Database); err != nil {
		return err
	}
	if cfgPath != "" {
		if err := addFile(tw, cfgPath, m.Config); err != nil {
			return err
		}
	}

	if err := tw.Close(); err != nil {
		return fmt.Errorf("finalizing tar: %w", err)
	}
	if err := gw.Close(); err != nil {
		return fmt.Errorf("finalizing gzip: %w", err)
	}
	return nil
}

func writeEntry(tw *tar.Writer, name string, data []byte, mod time.Time) error {
	hdr := &tar.Header{
		Name:    name,
		Mode:    0o600,
		Size:    int64(len(data)),
		ModTime: mod,
	}
	if err := tw.WriteHeader(hdr); err != nil {
		return fmt.Errorf("writing %s header: %w", name, err)
	}
	_, err := tw.Write(data)
	return err
}

func addFile(tw *tar.Writer, path, name string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("opening %s: %w", path, err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return err
	}
	hdr, err := tar.FileInfoHeader(info, "")
	if err != nil {
		return err
	}
	hdr.Name = name
	if err := tw.WriteHeader(hdr); err != nil {
		return fmt.Errorf("writing %s header: %w", name, err)
	}
	if _, err := io.Copy(tw, f); err != nil {
		return fmt.Errorf("archiving %s: %w", name, err)
	}
	return nil
}
