// Command streamwatch runs the streaming anomaly detector.
//
// Usage:
//
//	streamwatch [run] [-config path]
//	streamwatch generate [-out path] [-series n] [-length n] [-seed n]
//	streamwatch backup [-config path] [-out archive]
//	streamwatch restore [-dir path] [-force] <archive>
//	streamwatch version
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/HerbHall/streamwatch/internal/config"
	"github.com/HerbHall/streamwatch/internal/version"
	"go.uber.org/zap"
)

func main() {
	args := os.Args[1:]
	if len(args) > 0 {
		switch args[0] {
		case "generate":
			if err := runGenerate(args[1:], os.Stdout); err != nil {
				fmt.Fprintf(os.Stderr, "generate: %v\n", err)
				os.Exit(1)
			}
			return
		case "backup", "restore":
			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			cmd := runBackup
			if args[0] == "restore" {
				cmd = runRestore
			}
			err := cmd(ctx, args[1:], os.Stdout)
			stop()
			if err != nil {
				fmt.Fprintf(os.Stderr, "%s: %v\n", args[0], err)
				os.Exit(1)
			}
			return
		case "version":
			fmt.Println(version.Info())
			return
		case "run":
			args = args[1:]
		}
	}

	fs := flag.NewFlagSet("run", flag.ExitOnError)
	configPath := fs.String("config", "", "path to configuration file")
	showVersion := fs.Bool("version", false, "print version information and exit")
	_ = fs.Parse(args)

	if *showVersion {
		fmt.Println(version.Info())
		return
	}

	// Configuration comes first so the logger can be configured from it.
	v, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	logger, err := config.NewLogger(v)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	logger.Info("streamwatch starting", zap.String("version", version.Short()))
	if f := v.ConfigFileUsed(); f != "" {
		logger.Info("configuration loaded", zap.String("component", "config"), zap.String("source", f))
	} else {
		logger.Warn("no configuration file found, using defaults", zap.String("component", "config"))
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, config.New(v), logger, os.Stdout); err != nil {
		logger.Error("streamwatch stopped with error", zap.Error(err))
		_ = logger.Sync()
		os.Exit(1)
	}
	logger.Info("streamwatch stopped")
}
