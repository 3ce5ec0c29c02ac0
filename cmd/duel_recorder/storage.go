package main

import (
	"errors"
	"fmt"
	"path/filepath"

	"github.com/duelscope/recorder/internal/config"
	"github.com/duelscope/recorder/internal/database"
	"github.com/duelscope/recorder/internal/storage"
	"github.com/duelscope/recorder/internal/storage/memory"
	pgstorage "github.com/duelscope/recorder/internal/storage/postgres"
	"github.com/duelscope/recorder/internal/storage/redisqueue"
	sqlitestorage "github.com/duelscope/recorder/internal/storage/sqlite"
	wsstorage "github.com/duelscope/recorder/internal/storage/websocket"
)

// storageCloser releases what createStorageBackend opened besides the backend.
type storageCloser func() error

func initStorage(storageCfg config.StorageConfig) (storage.Backend, storageCloser, error) {
	backend, closer, err := createStorageBackend(storageCfg)
	if err != nil {
		Logger.Error("Failed to create storage backend", "error", err)
		return nil, nil, err
	}
	if err := backend.Init(); err != nil {
		Logger.Error("Failed to initialize storage backend", "error", err)
		_ = closer()
		return nil, nil, err
	}
	return backend, closer, nil
}

func createStorageBackend(storageCfg config.StorageConfig) (storage.Backend, storageCloser, error) {
	noop := func() error { return nil }

	switch storageCfg.Type {
	case "postgres":
		dbm := database.NewManager(ZLogger)
		if err := dbm.Connect(); err != nil {
			return nil, nil, fmt.Errorf("failed to connect to database: %w", err)
		}
		if dbm.ShouldSaveLocal {
			// the in-memory fallback is only useful when something dumps it
			_ = dbm.Close()
			Logger.Warn("Postgres unavailable, recording to local SQLite instead")
			storageCfg.Type = "sqlite"
			return createStorageBackend(storageCfg)
		}
		Logger.Info("Postgres storage backend initialized")
		return pgstorage.New(pgstorage.Dependencies{
			DB:         dbm.DB,
			LogManager: SlogManager,
		}), dbm.Close, nil

	case "sqlite":
		dumpPath := filepath.Join(storageCfg.SQLite.OutputDir, sqliteFileName())
		backend, err := sqlitestorage.New(sqlitestorage.Config{
			DumpInterval: storageCfg.SQLite.DumpInterval,
			DumpPath:     dumpPath,
		}, SlogManager)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to create SQLite backend: %w", err)
		}
		Logger.Info("SQLite storage backend initialized", "dumpPath", dumpPath)
		return backend, noop, nil

	case "websocket":
		Logger.Info("WebSocket storage backend initialized", "url", storageCfg.WebSocket.URL)
		return wsstorage.New(wsstorage.Config{
			URL:    storageCfg.WebSocket.URL,
			Secret: storageCfg.WebSocket.Secret,
			Logger: Logger,
		}), noop, nil

	case "redis":
		backend, err := redisqueue.New(redisqueue.Config{
			URL:       storageCfg.Redis.URL,
			QueueName: storageCfg.Redis.QueueName,
		}, Logger)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to create Redis backend: %w", err)
		}
		Logger.Info("Redis storage backend initialized", "queue", backend.QueueName())
		return backend, noop, nil

	case "memory", "":
		Logger.Info("Memory storage backend initialized", "outputDir", storageCfg.Memory.OutputDir)
		return memory.New(storageCfg.Memory), noop, nil

	default:
		return nil, nil, errors.New("unknown storage type: " + storageCfg.Type)
	}
}

func sqliteFileName() string {
	return fmt.Sprintf("%s_%s.db", ProgramName, SessionStartTime.Format("20060102_150405"))
}
