package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/HerbHall/streamwatch/internal/detector/forecast"
	"github.com/HerbHall/streamwatch/internal/event"
	"github.com/HerbHall/streamwatch/internal/mqtt"
	"github.com/HerbHall/streamwatch/internal/server"
	"github.com/HerbHall/streamwatch/internal/sink"
	"github.com/HerbHall/streamwatch/internal/source"
	"github.com/HerbHall/streamwatch/internal/store"
	"github.com/HerbHall/streamwatch/internal/stream"
	"github.com/HerbHall/streamwatch/internal/version"
	"github.com/HerbHall/streamwatch/internal/webhook"
	"github.com/HerbHall/streamwatch/internal/ws"
	"github.com/HerbHall/streamwatch/pkg/plugin"
	"go.uber.org/zap"
)

const shutdownTimeout = 10 * time.Second

// run wires the pipeline from configuration and blocks until the source
// is exhausted, ctx is cancelled, or the stream halts on a sink error.
func run(ctx context.Context, cfg plugin.Config, logger *zap.Logger, stdout io.Writer) error {
	var cleanup []func()
	defer func() {
		for i := len(cleanup) - 1; i >= 0; i-- {
			cleanup[i]()
		}
	}()

	detCfg, err := stream.ConfigFrom(cfg.Sub("detector"))
	if err != nil {
		return err
	}
	model, err := forecast.New(detCfg.Model)
	if err != nil {
		return err
	}
	fcLog := logger.Named("forecast")
	predictor := forecast.NewForecaster(model, func(name string, ferr error) {
		fcLog.Debug("model failed, using window mean", zap.String("model", name), zap.Error(ferr))
	})

	bus := event.NewBus(logger.Named("event"))
	cleanup = append(cleanup, bus.Wait)

	out, err := openOutputs(ctx, cfg.Sub("sink"), logger)
	if out.db != nil {
		db := out.db
		cleanup = append(cleanup, func() {
			if cerr := db.Close(); cerr != nil {
				logger.Warn("close database", zap.Error(cerr))
			}
		})
	}
	recorders := out.recorders
	if err != nil {
		for _, r := range recorders {
			_ = r.Close()
		}
		return err
	}

	alertsCfg := cfg.Sub("alerts")
	mqttCfg := mqtt.ConfigFrom(cfg.Sub("mqtt"))
	notifiers := []sink.Notifier{sink.NewBusNotifier(bus)}
	checkers := map[string]plugin.HealthChecker{}
	if alertsCfg.GetBool("console") {
		notifiers = append(notifiers, sink.NewConsoleNotifier(stdout))
	}
	if alertsCfg.GetString("webhook_url") != "" {
		notifiers = append(notifiers, webhook.New(logger.Named("webhook"), alertsCfg))
	}
	if alertsCfg.GetBool("mqtt") {
		pub := mqtt.NewPublisher(mqttCfg, logger.Named("mqtt"))
		if err := pub.Start(); err != nil {
			for _, r := range recorders {
				_ = r.Close()
			}
			return fmt.Errorf("start mqtt alert publisher: %w", err)
		}
		cleanup = append(cleanup, pub.Stop)
		notifiers = append(notifiers, pub)
		checkers["mqtt_alerts"] = pub
	}

	sk := sink.New(logger.Named("sink"), recorders, notifiers)
	ctrl, err := stream.New(detCfg, predictor, sk, logger.Named("stream"))
	if err != nil {
		_ = sk.Close()
		return err
	}

	src, err := openSource(cfg.Sub("source"), mqttCfg, logger)
	if err != nil {
		_ = sk.Close()
		return err
	}
	if c, ok := src.(io.Closer); ok {
		cleanup = append(cleanup, func() { _ = c.Close() })
	}

	if srvCfg, serr := server.ConfigFrom(cfg.Sub("server")); serr != nil {
		_ = sk.Close()
		return fmt.Errorf("decode server config: %w", serr)
	} else if srvCfg.Enabled {
		stopServer := startServer(srvCfg, ctrl, out, bus, checkers, logger)
		cleanup = append(cleanup, stopServer)
	}

	return ctrl.Run(ctx, src)
}

// outputs holds the decision log writers and, when configured, the
// database behind them.
type outputs struct {
	recorders []sink.Recorder
	db        *store.SQLiteStore
	decisions *sink.SQLiteRecorder
}

// openOutputs builds the decision log writers. On error whatever was
// opened so far is returned so the caller can close it.
func openOutputs(ctx context.Context, cfg plugin.Config, logger *zap.Logger) (outputs, error) {
	var out outputs

	if path := cfg.GetString("csv_path"); path != "" {
		if err := ensureDir(path); err != nil {
			return out, err
		}
		rec, err := sink.NewCSVRecorder(path, cfg.GetBool("csv_append"))
		if err != nil {
			return out, err
		}
		out.recorders = append(out.recorders, rec)
		logger.Info("decision log enabled", zap.String("component", "sink"), zap.String("csv", path))
	}

	if path := cfg.GetString("sqlite_path"); path != "" {
		if err := ensureDir(path); err != nil {
			return out, err
		}
		db, err := store.New(path)
		if err != nil {
			return out, err
		}
		out.db = db
		if err := db.CheckVersion(ctx, version.Short()); err != nil {
			return out, err
		}
		rec, err := sink.NewSQLiteRecorder(ctx, db)
		if err != nil {
			return out, err
		}
		out.decisions = rec
		out.recorders = append(out.recorders, rec)
		logger.Info("decision database enabled", zap.String("component", "sink"), zap.String("sqlite", path))
	}

	if len(out.recorders) == 0 {
		logger.Warn("no decision log configured; decisions are not persisted", zap.String("component", "sink"))
	}
	return out, nil
}

func ensureDir(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return fmt.Errorf("create directory for %q: %w", path, err)
	}
	return nil
}

func openSource(cfg plugin.Config, mqttCfg mqtt.Config, logger *zap.Logger) (source.Source, error) {
	switch kind := cfg.GetString("kind"); kind {
	case "", "csv":
		path := cfg.GetString("path")
		src, err := source.OpenCSV(path)
		if err != nil {
			return nil, err
		}
		logger.Info("reading csv source",
			zap.String("component", "source"),
			zap.String("path", path),
			zap.Strings("sensors", src.Sensors()),
		)
		return src, nil
	case "mqtt":
		src := mqtt.NewSource(mqttCfg, logger.Named("mqtt"))
		if err := src.Start(); err != nil {
			return nil, fmt.Errorf("start mqtt source: %w", err)
		}
		return src, nil
	default:
		return nil, fmt.Errorf("unknown source kind %q", kind)
	}
}

// startServer serves the HTTP API in the background and returns its
// shutdown function.
func startServer(cfg server.Config, ctrl *stream.Controller, out outputs, bus *event.Bus, checkers map[string]plugin.HealthChecker, logger *zap.Logger) func() {
	var (
		decisions server.DecisionSource
		ready     server.ReadinessChecker
	)
	if out.decisions != nil {
		decisions = out.decisions
		ready = out.db.Ping
	}

	wsHandler := ws.NewHandler(bus, ctrl, logger.Named("ws"))
	api := server.NewAPI(ctrl, decisions, logger.Named("api"))
	srv := server.New(cfg.Addr(), logger.Named("server"), ready, api, wsHandler)
	srv.AddHealthChecker("websocket", wsHandler)
	for name, hc := range checkers {
		srv.AddHealthChecker(name, hc)
	}

	go func() {
		if err := srv.Start(); err != nil {
			logger.Error("server error", zap.Error(err))
		}
	}()

	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		wsHandler.Close()
		if err := srv.Shutdown(ctx); err != nil && !errors.Is(err, context.DeadlineExceeded) {
			logger.Error("server shutdown error", zap.Error(err))
		}
	}
}
