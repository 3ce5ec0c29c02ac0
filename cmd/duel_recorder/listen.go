package main

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"github.com/duelscope/recorder/internal/analyzer"
	"github.com/duelscope/recorder/internal/api"
	"github.com/duelscope/recorder/internal/cache"
	"github.com/duelscope/recorder/internal/config"
	"github.com/duelscope/recorder/internal/dispatcher"
	"github.com/duelscope/recorder/internal/influx"
	"github.com/duelscope/recorder/internal/ingest"
	"github.com/duelscope/recorder/internal/logging"
	"github.com/duelscope/recorder/internal/monitor"
	"github.com/duelscope/recorder/internal/parser"
	"github.com/duelscope/recorder/internal/report"
	"github.com/duelscope/recorder/internal/worker"

	"github.com/spf13/viper"
)

// runListen records battles from the configured source until it is exhausted
// or ctx is cancelled. Queued events are drained before the sinks close.
func runListen(ctx context.Context) error {
	listenCfg := config.GetListenConfig()

	d, err := dispatcher.New(logging.NewDispatcherLogger(ZLogger))
	if err != nil {
		return fmt.Errorf("failed to create dispatcher: %w", err)
	}

	backend, closeStorage, err := initStorage(config.GetStorageConfig())
	if err != nil {
		return err
	}
	defer func() {
		if err := backend.Close(); err != nil {
			Logger.Error("Failed to close storage backend", "error", err)
		}
		_ = closeStorage()
	}()

	p := parser.NewParser(Logger, CurrentVersion)
	deps := worker.Dependencies{
		Roster:        cache.NewRosterCache(),
		LogManager:    SlogManager,
		ParserService: p,
		BattleContext: BattleContext,
		Analyzer:      analyzer.New(analyzer.WithRotationDirection(config.GetAnalysisConfig().RotationDirection)),
		DefaultTag:    viper.GetString("defaultTag"),
	}

	if reportCfg := config.GetReportConfig(); reportCfg.Enabled {
		sink, err := report.Open(reportCfg.Path)
		if err != nil {
			return err
		}
		defer sink.Close()
		deps.Report = sink
	}

	influxManager := connectInflux()
	if influxManager != nil {
		defer func() {
			if err := influxManager.Close(); err != nil {
				Logger.Warn("Failed to close InfluxDB", "error", err)
			}
		}()
		deps.Points = influxManager
	}

	if client := newAPIClient(ctx); client != nil {
		deps.Uploader = client
	}

	manager, err := worker.NewManager(deps, backend)
	if err != nil {
		return fmt.Errorf("failed to create worker: %w", err)
	}
	manager.RegisterHandlers(d, listenCfg.BufferSize)
	// deferred after the sinks so queued events reach them before they close
	defer d.Close()

	if statusCfg := config.GetStatusConfig(); statusCfg.Enabled {
		monDeps := monitor.Dependencies{
			LogManager:    SlogManager,
			BattleContext: BattleContext,
			Source:        manager,
			QueueSizes:    d.QueueSizes,
			Config:        statusCfg,
		}
		if influxManager != nil {
			monDeps.Points = influxManager
		}
		mon := monitor.NewService(monDeps)
		if err := mon.Start(); err != nil {
			Logger.Warn("Failed to start status monitor", "error", err)
		} else {
			defer mon.Stop()
		}
	}

	reader := ingest.NewReader(p, d, Logger)
	Logger.Info("Listening for battles", "source", listenCfg.Source, "storage", viper.GetString("storage.type"))
	err = reader.Serve(ctx, listenCfg)
	if errors.Is(err, context.Canceled) {
		Logger.Info("Interrupted, draining queued events")
		return nil
	}
	return err
}

// connectInflux returns nil when InfluxDB is disabled or neither the server
// nor the backup file can be used.
func connectInflux() *influx.Manager {
	backupPath := filepath.Join(viper.GetString("logsDir"),
		fmt.Sprintf("%s_influx_%s.lp.gz", ProgramName, SessionStartTime.Format("20060102_150405")))
	m := influx.NewManager(ZLogger, backupPath)
	err := m.Connect()
	switch {
	case errors.Is(err, influx.ErrDisabled):
		return nil
	case err != nil:
		Logger.Error("Failed to set up InfluxDB", "error", err)
		_ = m.Close()
		return nil
	}
	if !m.IsValid {
		Logger.Warn("InfluxDB offline, points go to the backup file", "path", backupPath)
	}
	return m
}

// newAPIClient returns nil when no web frontend is configured.
func newAPIClient(ctx context.Context) *api.Client {
	serverURL := viper.GetString("api.serverUrl")
	apiKey := viper.GetString("api.apiKey")
	if serverURL == "" || apiKey == "" {
		return nil
	}
	client := api.New(serverURL, apiKey)

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Healthcheck(ctx); err != nil {
		Logger.Info("Web frontend is offline", "url", serverURL, "error", err)
	} else {
		Logger.Info("Web frontend is online", "url", serverURL)
	}
	return client
}
