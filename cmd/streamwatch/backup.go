package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"time"

	"github.com/HerbHall/streamwatch/internal/backup"
	"github.com/HerbHall/streamwatch/internal/config"
)

// runBackup archives the configured decision database and config file.
func runBackup(ctx context.Context, args []string, stdout io.Writer) error {
	fs := flag.NewFlagSet("backup", flag.ContinueOnError)
	fs.SetOutput(stdout)
	configPath := fs.String("config", "", "path to configuration file")
	out := fs.String("out", "", "archive path (default streamwatch-backup-<timestamp>.tar.gz)")
	if err := fs.Parse(args); err != nil {
		return err
	}

	v, err := config.Load(*configPath)
	if err != nil {
		return fmt.Errorf("load configuration: %w", err)
	}
	dbPath := v.GetString("sink.sqlite_path")
	if dbPath == "" {
		return errors.New("sink.sqlite_path is not configured; nothing to back up")
	}
	archive := *out
	if archive == "" {
		archive = fmt.Sprintf("streamwatch-backup-%s.tar.gz", time.Now().UTC().Format("20060102-150405"))
	}

	if err := backup.Backup(ctx, dbPath, v.ConfigFileUsed(), archive); err != nil {
		return err
	}
	fmt.Fprintf(stdout, "backup written to %s\n", archive)
	return nil
}

// runRestore extracts an archive produced by runBackup.
func runRestore(ctx context.Context, args []string, stdout io.Writer) error {
	fs := flag.NewFlagSet("restore", flag.ContinueOnError)
	fs.SetOutput(stdout)
	dir := fs.String("dir", ".", "directory to restore into")
	force := fs.Bool("force", false, "overwrite existing files")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		return errors.New("usage: streamwatch restore [-dir path] [-force] <archive>")
	}

	written, err := backup.Restore(ctx, fs.Arg(0), *dir, *force)
	if err != nil {
		return err
	}
	for _, p := range written {
		fmt.Fprintf(stdout, "restored %s\n", p)
	}
	return nil
}
