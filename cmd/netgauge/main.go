// Package main provides the entry point for netgauge.
// netgauge is a system tray network usage meter: it samples interface
// byte counters, tracks durable usage history, and serves rates to
// presentation clients over a localhost API.
package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"netgauge/internal/api"
	"netgauge/internal/config"
	"netgauge/internal/logging"
	"netgauge/internal/meter"
	"netgauge/internal/netstat"
	"netgauge/internal/ui"
)

func main() {
	// Initialize structured logging
	logging.SetupFromEnv()

	cfgMgr, err := config.NewManager()
	if err != nil {
		slog.Error("Failed to initialize configuration", "error", err)
		os.Exit(1)
	}

	engine := meter.NewEngine(
		cfgMgr.GetConfig(),
		netstat.NewSystemSource(),
		meter.NewStore(cfgMgr.UsagePath()),
	)
	if err := engine.Start(); err != nil {
		slog.Error("Failed to start sampling engine", "error", err)
		os.Exit(1)
	}

	server := api.NewServer(engine, cfgMgr, api.DefaultAddr)
	server.Start()

	tray := ui.NewTrayIcon()
	if err := tray.OnReset(func() {
		if err := engine.Reset(); err != nil {
			slog.Error("Failed to reset statistics", "error", err)
		}
	}); err != nil {
		slog.Error("Failed to register tray callback", "error", err)
		os.Exit(1)
	}
	if err := tray.OnQuit(tray.Quit); err != nil {
		slog.Error("Failed to register tray callback", "error", err)
		os.Exit(1)
	}

	// Every published snapshot refreshes the tray readout and menu.
	subID := engine.Subscribe(func(snapshot meter.RateSnapshot) {
		tray.SetSnapshot(snapshot)

		cfg := engine.Config()
		cycle, _ := engine.CycleTotals(snapshot.Timestamp)
		peakDown, peakUp := engine.PeakRates()
		tray.SetUsage(engine.TrailingTotals(24*time.Hour), cycle,
			engine.AllTimeTotals(), peakDown, peakUp, cfg.UseSI)
	})

	// Signals quit the tray, which unblocks Run below.
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigChan
		slog.Info("Received signal, shutting down", "signal", sig)
		tray.Quit()
	}()

	if err := tray.Run(); err != nil {
		slog.Error("Tray failed", "error", err)
	}

	// Orderly teardown: stop publishing, flush the final persist, then
	// close the API listener.
	engine.Unsubscribe(subID)
	engine.Stop()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		slog.Warn("API server shutdown failed", "error", err)
	}
}
