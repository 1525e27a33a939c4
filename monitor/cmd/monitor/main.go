package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"math/rand"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/vitalscan/vitalscan/monitor/internal/alerts"
	"github.com/vitalscan/vitalscan/monitor/internal/api"
	"github.com/vitalscan/vitalscan/monitor/internal/auth"
	"github.com/vitalscan/vitalscan/monitor/internal/config"
	"github.com/vitalscan/vitalscan/monitor/internal/metrics"
	"github.com/vitalscan/vitalscan/monitor/internal/sensor"
	"github.com/vitalscan/vitalscan/monitor/internal/session"
	sig "github.com/vitalscan/vitalscan/monitor/internal/signal"
	"github.com/vitalscan/vitalscan/monitor/internal/store"
	"github.com/vitalscan/vitalscan/monitor/internal/vitals"
	"github.com/vitalscan/vitalscan/monitor/internal/ws"
)

func main() {
	configPath := flag.String("config", "", "path to config file; built-in defaults when empty")
	flag.Parse()

	level := new(slog.LevelVar)
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	slog.Info("vitalscan-monitor starting", "config", *configPath)

	cfg := config.Defaults()
	if *configPath != "" {
		loaded, err := config.Load(*configPath)
		if err != nil {
			slog.Error("failed to load config", "err", err)
			os.Exit(1)
		}
		cfg = loaded
	}
	level.Set(cfg.Level())

	slog.Info("config loaded",
		"http_port", cfg.HTTP.Port,
		"auth_mode", cfg.HTTP.Auth.Mode,
		"sensor_mode", cfg.Sensor.Mode,
		"history_retention", cfg.History.Retention,
		"alert_rules", len(cfg.Alerts.Rules),
	)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	collector, err := sensor.New(cfg.Sensor)
	if err != nil {
		slog.Error("failed to build sensor collector", "mode", cfg.Sensor.Mode, "err", err)
		os.Exit(1)
	}

	engine := vitals.NewEngine(sig.Toolkit{}, rand.New(rand.NewSource(seed(cfg.Measurement.Seed))),
		vitals.WithFrameRate(cfg.Measurement.FrameRate))

	// Measurement history with background retention eviction.
	hist := store.New(cfg.History.Retention, cfg.History.MaxRecords)
	go hist.Run(ctx)

	alertEngine := alerts.New(cfg.Alerts)

	// The registry and hub read session state through closures, so they are
	// built after the session; hooks reach them through these variables.
	var (
		registry *metrics.Registry
		hub      *ws.Hub
	)
	sess := session.New(collector, engine, hist, cfg.Measurement,
		session.WithHook(func(ev session.Event) {
			slog.Info("measurement finished",
				"kind", ev.Kind, "outcome", ev.Outcome, "elapsed", ev.Elapsed, "err", ev.Err)
			if ev.Record != nil {
				alertEngine.Evaluate(*ev.Record)
			}
			registry.Observe(ev)
			hub.Publish(string(ev.Outcome))
		}),
	)
	registry = metrics.NewRegistry(sess.State, hist.Len)

	// WebSocket hub pushes session state while a measurement runs.
	hub = ws.New(sess.State, cfg.HTTP.BroadcastInterval)
	go hub.Run(ctx)

	guard := auth.NewGuard(cfg.HTTP.Auth)

	if *configPath != "" {
		go func() {
			if err := config.Watch(ctx, *configPath, func(updated *config.Config) {
				level.Set(updated.Level())
				sess.SetConfig(updated.Measurement)
				alertEngine.SetConfig(updated.Alerts)
				guard.Set(updated.HTTP.Auth)
				slog.Info("config hot-reloaded",
					"log_level", updated.LogLevel,
					"alert_rules", len(updated.Alerts.Rules),
					"auth_mode", updated.HTTP.Auth.Mode,
				)
			}); err != nil {
				slog.Error("config watcher stopped", "err", err)
			}
		}()
	}

	mux := http.NewServeMux()
	mux.Handle("/api/", guard.Wrap(api.New(sess, hist, alertEngine, api.WithContext(ctx))))
	mux.Handle("/ws/state", guard.Wrap(hub))
	mux.Handle("/metrics", registry)

	httpSrv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.HTTP.Port),
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		slog.Info("HTTP server listening", "port", cfg.HTTP.Port)
		if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("HTTP server stopped", "err", err)
			cancel()
		}
	}()

	<-ctx.Done()
	slog.Info("vitalscan-monitor shutting down")
	sess.Cancel()

	shutdownCtx, done := context.WithTimeout(context.Background(), 5*time.Second)
	defer done()
	httpSrv.Shutdown(shutdownCtx) //nolint:errcheck
	alertEngine.Wait()
}

// seed returns v, or a clock-derived seed when v is 0.
func seed(v int64) int64 {
	if v != 0 {
		return v
	}
	return time.Now().UnixNano()
}
