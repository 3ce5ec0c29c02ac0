package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/duelscope/recorder/internal/battle"
	"github.com/duelscope/recorder/internal/config"
	"github.com/duelscope/recorder/internal/logging"
	intOtel "github.com/duelscope/recorder/internal/otel"

	"github.com/rs/zerolog"
	"github.com/spf13/viper"
	sdklog "go.opentelemetry.io/otel/sdk/log"
)

// module defs - BuildDate can be set at build time via ldflags
var (
	CurrentVersion string = "0.0.1"
	BuildDate      string = "unknown"

	ProgramName string = "duel_recorder"
)

// HomeEnv overrides the directory holding the config file.
const HomeEnv = "DUEL_RECORDER_HOME"

var (
	// HomeDir holds duel_recorder.cfg.json. Relative paths in the config resolve against the working directory.
	HomeDir string

	LogFilePath string
	LogFile     *os.File

	SessionStartTime time.Time = time.Now()

	// SlogManager handles all slog-based logging
	SlogManager *logging.SlogManager

	// Logger is the slog logger (convenience reference)
	Logger *slog.Logger

	// ZLogger is handed to the database and influx managers
	ZLogger zerolog.Logger

	// OTelProvider handles OpenTelemetry
	OTelProvider *intOtel.Provider

	// BattleContext is shared by the worker, the monitor and the log context handler
	BattleContext = battle.NewContext()
)

func resolveHomeDir() string {
	if dir := os.Getenv(HomeEnv); dir != "" {
		return dir
	}
	exe, err := os.Executable()
	if err != nil {
		return "."
	}
	return filepath.Dir(exe)
}

// setup loads the config and wires logging. Until the log file exists, records go to stderr.
func setup() {
	HomeDir = resolveHomeDir()

	SlogManager = logging.NewSlogManager()
	SlogManager.Setup(nil, "info", nil)
	Logger = SlogManager.Logger()

	if err := config.Load(HomeDir); err != nil {
		Logger.Warn("Failed to load config, using defaults!", "error", err, "dir", HomeDir)
	}

	LogFilePath = logging.LogFilePath(viper.GetString("logsDir"), ProgramName, SessionStartTime)
	var err error
	LogFile, err = logging.OpenLogFile(LogFilePath)
	if err != nil {
		Logger.Error("Failed to create/open log file!", "error", err, "path", LogFilePath)
		LogFile = nil
	}

	var logWriter io.Writer = os.Stderr
	if LogFile != nil {
		logWriter = LogFile
	}
	level := viper.GetString("logLevel")
	ZLogger = logging.NewZerolog(logWriter, level)

	otelCfg := config.GetOTelConfig()
	if otelCfg.Enabled {
		OTelProvider, err = intOtel.New(intOtel.Config{
			Enabled:        otelCfg.Enabled,
			ServiceName:    otelCfg.ServiceName,
			BatchTimeout:   otelCfg.BatchTimeout,
			MetricInterval: otelCfg.MetricInterval,
			LogWriter:      logWriter,
			Endpoint:       otelCfg.Endpoint,
			Insecure:       otelCfg.Insecure,
		})
		if err != nil {
			Logger.Error("Failed to initialize OTel provider", "error", err)
		}
	}

	var otelLogProvider *sdklog.LoggerProvider
	if OTelProvider != nil {
		otelLogProvider = OTelProvider.LoggerProvider()
	}

	opts := []logging.SetupOption{logging.WithContext(BattleContext.LogAttrs)}
	var fileWriter io.Writer
	if LogFile != nil {
		fileWriter = LogFile
		// warnings also reach the console, the report owns stdout
		opts = append(opts, logging.WithHandler(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn})))
	}
	if viper.GetBool("graylog.enabled") {
		gelf, err := logging.NewGelfHandler(viper.GetString("graylog.address"), ProgramName, level)
		if err != nil {
			Logger.Error("Failed to set up Graylog", "error", err)
		} else {
			opts = append(opts, logging.WithHandler(gelf))
		}
	}

	SlogManager.Setup(fileWriter, level, otelLogProvider, opts...)
	Logger = SlogManager.Logger()
	Logger.Info("Logging to file", "path", LogFilePath, "version", CurrentVersion, "build", BuildDate)
}

func shutdown() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if OTelProvider != nil {
		if err := OTelProvider.Shutdown(ctx); err != nil {
			Logger.Warn("Failed to shut down OTel provider", "error", err)
		}
	}
	_ = SlogManager.Flush(ctx)
	_ = SlogManager.Close()
	if LogFile != nil {
		_ = LogFile.Close()
	}
}

func usage() {
	fmt.Fprintf(os.Stderr, `usage: %s [command] [args]

commands:
  listen                 read simulation envelopes and record battles (default)
  getjson <battleId>...  export stored battles as JSON
  migratebackups         copy SQLite backups into Postgres
  version                print the version
`, ProgramName)
}

func main() {
	args := os.Args[1:]
	command := "listen"
	if len(args) > 0 {
		command = strings.ToLower(args[0])
		args = args[1:]
	}

	if command == "version" {
		fmt.Println(CurrentVersion, BuildDate)
		return
	}

	setup()
	defer shutdown()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var err error
	switch command {
	case "listen":
		err = runListen(ctx)
	case "getjson":
		if len(args) == 0 {
			fmt.Fprintln(os.Stderr, "No battle IDs provided.")
			shutdown()
			os.Exit(2)
		}
		err = getBattleJSON(ctx, args)
	case "migratebackups":
		err = migrateBackupsSqlite(ctx)
	default:
		usage()
		shutdown()
		os.Exit(2)
	}

	if err != nil {
		Logger.Error("Command failed", "command", command, "error", err)
		fmt.Fprintln(os.Stderr, err)
		shutdown()
		os.Exit(1)
	}
}
