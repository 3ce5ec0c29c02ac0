package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// FileName is the configuration file looked up in the config directory.
const FileName = "duel_recorder.cfg.json"

// MemoryConfig holds in-memory/JSON storage backend settings
type MemoryConfig struct {
	OutputDir      string `json:"outputDir" mapstructure:"outputDir"`
	CompressOutput bool   `json:"compressOutput" mapstructure:"compressOutput"`
}

// SQLiteConfig holds the in-memory SQLite backend settings
type SQLiteConfig struct {
	OutputDir    string        `json:"outputDir" mapstructure:"outputDir"`
	DumpInterval time.Duration `json:"dumpInterval" mapstructure:"dumpInterval"`
}

// WebSocketConfig holds the live streaming backend settings
type WebSocketConfig struct {
	URL    string `json:"url" mapstructure:"url"`
	Secret string `json:"secret" mapstructure:"secret"`
}

// RedisConfig holds the queue backend settings
type RedisConfig struct {
	URL       string `json:"url" mapstructure:"url"`
	QueueName string `json:"queueName" mapstructure:"queueName"`
}

// StorageConfig selects and configures the storage backend
type StorageConfig struct {
	Type      string          `json:"type" mapstructure:"type"`
	Memory    MemoryConfig    `json:"memory" mapstructure:"memory"`
	SQLite    SQLiteConfig    `json:"sqlite" mapstructure:"sqlite"`
	WebSocket WebSocketConfig `json:"websocket" mapstructure:"websocket"`
	Redis     RedisConfig     `json:"redis" mapstructure:"redis"`
}

// OTelConfig holds OpenTelemetry settings
type OTelConfig struct {
	Enabled        bool
	ServiceName    string
	BatchTimeout   time.Duration
	MetricInterval time.Duration
	Endpoint       string
	Insecure       bool
}

// ListenConfig selects where envelopes are read from
type ListenConfig struct {
	Source     string // "stdin", "file" or "tcp"
	Path       string
	Address    string
	BufferSize int
}

// AnalysisConfig tunes the firing-solution analyzer
type AnalysisConfig struct {
	RotationDirection int
}

// ReportConfig configures the guess factor line sink
type ReportConfig struct {
	Enabled bool
	Path    string
}

// StatusConfig configures the status monitor
type StatusConfig struct {
	Enabled  bool
	File     string
	Interval time.Duration
}

// EnvPrefix prefixes environment overrides: storage.type is read from
// DUEL_STORAGE_TYPE, storage.memory.outputDir from DUEL_STORAGE_MEMORY_OUTPUTDIR.
const EnvPrefix = "DUEL"

// Load registers defaults and environment overrides, then reads FileName from
// configDir. Defaults and overrides stay in effect when the file is missing.
func Load(configDir string) error {
	SetDefaults()

	viper.SetEnvPrefix(EnvPrefix)
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	viper.SetConfigName(FileName)
	viper.SetConfigType("json")
	viper.AddConfigPath(configDir)
	if err := viper.ReadInConfig(); err != nil {
		return fmt.Errorf("error reading config file: %w", err)
	}
	return nil
}

// SetDefaults registers the default value of every key.
func SetDefaults() {
	viper.SetDefault("logLevel", "info")
	viper.SetDefault("defaultTag", "Duel")
	viper.SetDefault("logsDir", "./duellogs")

	viper.SetDefault("listen.source", "stdin")
	viper.SetDefault("listen.path", "")
	viper.SetDefault("listen.address", "127.0.0.1:7777")
	viper.SetDefault("listen.bufferSize", 10000)

	viper.SetDefault("analysis.rotationDirection", 1)

	viper.SetDefault("report.enabled", true)
	viper.SetDefault("report.path", "-")

	viper.SetDefault("api.serverUrl", "http://localhost:5000")
	viper.SetDefault("api.apiKey", "")

	viper.SetDefault("db.host", "localhost")
	viper.SetDefault("db.port", "5432")
	viper.SetDefault("db.username", "postgres")
	viper.SetDefault("db.password", "postgres")
	viper.SetDefault("db.database", "duels")

	viper.SetDefault("influx.enabled", false)
	viper.SetDefault("influx.host", "localhost")
	viper.SetDefault("influx.port", "8086")
	viper.SetDefault("influx.protocol", "http")
	viper.SetDefault("influx.token", "supersecrettoken")
	viper.SetDefault("influx.org", "duel-metrics")
	viper.SetDefault("influx.bucket", "guess_factors")

	viper.SetDefault("graylog.enabled", false)
	viper.SetDefault("graylog.address", "localhost:12201")

	viper.SetDefault("storage.type", "memory")
	viper.SetDefault("storage.memory.outputDir", "./recordings")
	viper.SetDefault("storage.memory.compressOutput", true)
	viper.SetDefault("storage.sqlite.outputDir", "./recordings")
	viper.SetDefault("storage.sqlite.dumpInterval", "3m")
	viper.SetDefault("storage.websocket.url", "ws://localhost:5000/api/v1/stream")
	viper.SetDefault("storage.websocket.secret", "")
	viper.SetDefault("storage.redis.url", "redis://localhost:6379/0")
	viper.SetDefault("storage.redis.queueName", "duel:guess_factors")

	viper.SetDefault("otel.enabled", false)
	viper.SetDefault("otel.serviceName", "duel-recorder")
	viper.SetDefault("otel.batchTimeout", "5s")
	viper.SetDefault("otel.metricInterval", "30s")
	viper.SetDefault("otel.endpoint", "")
	viper.SetDefault("otel.insecure", true)

	viper.SetDefault("status.enabled", true)
	viper.SetDefault("status.file", "./duellogs/status.json")
	viper.SetDefault("status.interval", "5s")
}

// GetStorageConfig returns the storage backend configuration.
func GetStorageConfig() StorageConfig {
	return StorageConfig{
		Type: viper.GetString("storage.type"),
		Memory: MemoryConfig{
			OutputDir:      viper.GetString("storage.memory.outputDir"),
			CompressOutput: viper.GetBool("storage.memory.compressOutput"),
		},
		SQLite: SQLiteConfig{
			OutputDir:    viper.GetString("storage.sqlite.outputDir"),
			DumpInterval: viper.GetDuration("storage.sqlite.dumpInterval"),
		},
		WebSocket: WebSocketConfig{
			URL:    viper.GetString("storage.websocket.url"),
			Secret: viper.GetString("storage.websocket.secret"),
		},
		Redis: RedisConfig{
			URL:       viper.GetString("storage.redis.url"),
			QueueName: viper.GetString("storage.redis.queueName"),
		},
	}
}

// GetOTelConfig returns the OpenTelemetry configuration.
func GetOTelConfig() OTelConfig {
	return OTelConfig{
		Enabled:        viper.GetBool("otel.enabled"),
		ServiceName:    viper.GetString("otel.serviceName"),
		BatchTimeout:   viper.GetDuration("otel.batchTimeout"),
		MetricInterval: viper.GetDuration("otel.metricInterval"),
		Endpoint:       viper.GetString("otel.endpoint"),
		Insecure:       viper.GetBool("otel.insecure"),
	}
}

// GetListenConfig returns the input source configuration.
func GetListenConfig() ListenConfig {
	return ListenConfig{
		Source:     viper.GetString("listen.source"),
		Path:       viper.GetString("listen.path"),
		Address:    viper.GetString("listen.address"),
		BufferSize: viper.GetInt("listen.bufferSize"),
	}
}

// GetAnalysisConfig returns the analyzer configuration.
func GetAnalysisConfig() AnalysisConfig {
	return AnalysisConfig{
		RotationDirection: viper.GetInt("analysis.rotationDirection"),
	}
}

// GetReportConfig returns the report sink configuration.
func GetReportConfig() ReportConfig {
	return ReportConfig{
		Enabled: viper.GetBool("report.enabled"),
		Path:    viper.GetString("report.path"),
	}
}

// GetStatusConfig returns the status monitor configuration.
func GetStatusConfig() StatusConfig {
	return StatusConfig{
		Enabled:  viper.GetBool("status.enabled"),
		File:     viper.GetString("status.file"),
		Interval: viper.GetDuration("status.interval"),
	}
}
