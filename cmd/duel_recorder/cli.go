package main

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/duelscope/recorder/internal/config"
	"github.com/duelscope/recorder/internal/database"
	"github.com/duelscope/recorder/internal/model"
	"github.com/duelscope/recorder/internal/model/convert"
	"github.com/duelscope/recorder/internal/storage/memory"
	"github.com/duelscope/recorder/pkg/core"

	"gorm.io/gorm"
)

// getBattleJSON re-exports stored battles through the memory backend so the
// files match what a live recording would have produced.
func getBattleJSON(ctx context.Context, battleIDs []string) error {
	dbm := database.NewManager(ZLogger)
	if err := dbm.Connect(); err != nil {
		return err
	}
	defer dbm.Close()
	if dbm.ShouldSaveLocal {
		return errors.New("postgres is unavailable")
	}

	for _, arg := range battleIDs {
		if err := ctx.Err(); err != nil {
			return err
		}
		id, err := strconv.ParseUint(arg, 10, 64)
		if err != nil {
			return fmt.Errorf("invalid battle ID %q: %w", arg, err)
		}
		start := time.Now()
		path, err := exportBattle(ctx, dbm.DB, uint(id))
		if err != nil {
			return fmt.Errorf("battle %d: %w", id, err)
		}
		Logger.Info("Exported battle", "battleId", id, "path", path, "duration", time.Since(start))
		fmt.Println(path)
	}
	return nil
}

func exportBattle(ctx context.Context, db *gorm.DB, id uint) (string, error) {
	db = db.WithContext(ctx)

	var b model.Battle
	err := db.Preload("Participants").
		Preload("Rounds", func(tx *gorm.DB) *gorm.DB { return tx.Order("number ASC") }).
		First(&b, id).Error
	if err != nil {
		return "", fmt.Errorf("error getting battle: %w", err)
	}

	var gfs []model.GuessFactor
	if err := db.Where("battle_id = ?", id).Order("round ASC, bullet_key ASC").Find(&gfs).Error; err != nil {
		return "", fmt.Errorf("error getting guess factors: %w", err)
	}
	var summaries []model.RoundSummary
	if err := db.Where("battle_id = ?", id).Order("round ASC, shooter ASC").Find(&summaries).Error; err != nil {
		return "", fmt.Errorf("error getting round summaries: %w", err)
	}

	gfByRound := make(map[int][]model.GuessFactor)
	for _, g := range gfs {
		gfByRound[g.Round] = append(gfByRound[g.Round], g)
	}
	summariesByRound := make(map[int][]model.RoundSummary)
	for _, s := range summaries {
		summariesByRound[s.Round] = append(summariesByRound[s.Round], s)
	}

	backend := memory.New(config.GetStorageConfig().Memory)
	battle := convert.BattleToCore(b)
	if err := backend.StartBattle(&battle); err != nil {
		return "", err
	}

	for _, r := range b.Rounds {
		round := core.Round{Number: r.Number, StartTime: r.StartTime}
		if err := backend.StartRound(&round); err != nil {
			return "", err
		}
		for _, g := range gfByRound[r.Number] {
			rec := convert.GuessFactorToCore(g)
			if err := backend.RecordGuessFactor(&rec); err != nil {
				return "", err
			}
		}
		for _, s := range summariesByRound[r.Number] {
			sum := convert.RoundSummaryToCore(s)
			if err := backend.RecordRoundSummary(&sum); err != nil {
				return "", err
			}
		}
		if r.EndTime == nil {
			continue
		}
		result := core.RoundResult{Round: r.Number, Turn: r.EndTurn, Winner: r.Winner, Abandoned: r.Abandoned}
		if err := backend.EndRound(&result); err != nil {
			return "", err
		}
	}

	end := time.Now()
	if b.EndTime != nil {
		end = *b.EndTime
	}
	if err := backend.EndBattleAt(end); err != nil {
		return "", err
	}
	return backend.GetExportedFilePath(), nil
}

// migrateBackupsSqlite copies every battle found in the SQLite dumps into
// Postgres. Battles already present, matched by UUID, are skipped.
func migrateBackupsSqlite(ctx context.Context) error {
	dir := config.GetStorageConfig().SQLite.OutputDir
	sqlitePaths, err := database.GetBackupDBPaths(dir)
	if err != nil {
		return fmt.Errorf("error getting backup database paths: %w", err)
	}
	if len(sqlitePaths) == 0 {
		Logger.Info("No SQLite backups found", "dir", dir)
		return nil
	}

	postgresDB, err := database.OpenPostgres()
	if err != nil {
		return fmt.Errorf("error getting postgres database: %w", err)
	}
	if err := database.Migrate(postgresDB); err != nil {
		return err
	}
	postgresDB = postgresDB.WithContext(ctx)

	var migrated, skipped int
	for _, path := range sqlitePaths {
		sqliteDB, err := database.OpenSQLite(path)
		if err != nil {
			return fmt.Errorf("error opening %s: %w", path, err)
		}
		m, s, err := migrateDatabase(sqliteDB.WithContext(ctx), postgresDB)
		if sqlDB, dbErr := sqliteDB.DB(); dbErr == nil {
			_ = sqlDB.Close()
		}
		if err != nil {
			return fmt.Errorf("error migrating %s: %w", path, err)
		}
		migrated += m
		skipped += s
		Logger.Info("Migrated backup", "path", path, "battles", m, "skipped", s)
	}
	Logger.Info("Migration complete", "files", len(sqlitePaths), "battles", migrated, "skipped", skipped)
	return nil
}

func migrateDatabase(src, dst *gorm.DB) (migrated, skipped int, err error) {
	var battles []model.Battle
	if err := src.Preload("Participants").Preload("Rounds").Find(&battles).Error; err != nil {
		return 0, 0, fmt.Errorf("error reading battles: %w", err)
	}

	for _, b := range battles {
		var exists int64
		if err := dst.Model(&model.Battle{}).Where("uuid = ?", b.UUID).Count(&exists).Error; err != nil {
			return migrated, skipped, err
		}
		if exists > 0 {
			skipped++
			continue
		}
		// each battle commits on its own so a bad file keeps what already moved
		err := dst.Transaction(func(tx *gorm.DB) error {
			return migrateBattle(src, tx, b)
		})
		if err != nil {
			return migrated, skipped, fmt.Errorf("battle %s: %w", b.UUID, err)
		}
		migrated++
	}
	return migrated, skipped, nil
}

// migrateBattle inserts b under a new ID and re-points its child rows at it.
func migrateBattle(src, tx *gorm.DB, b model.Battle) error {
	oldID := b.ID
	participants, rounds := b.Participants, b.Rounds
	b.Model = gorm.Model{CreatedAt: b.CreatedAt, UpdatedAt: b.UpdatedAt}
	b.Participants, b.Rounds = nil, nil
	if err := tx.Create(&b).Error; err != nil {
		return fmt.Errorf("error inserting battle: %w", err)
	}

	for i := range participants {
		participants[i].BattleID = b.ID
	}
	for i := range rounds {
		rounds[i].ID = 0
		rounds[i].BattleID = b.ID
	}
	if err := createAll(tx, participants, "participants"); err != nil {
		return err
	}
	if err := createAll(tx, rounds, "rounds"); err != nil {
		return err
	}

	if err := migrateTable(src, tx, oldID, "guess_factors", func(g *model.GuessFactor) {
		g.ID, g.BattleID = 0, b.ID
	}); err != nil {
		return err
	}
	if err := migrateTable(src, tx, oldID, "round_summaries", func(s *model.RoundSummary) {
		s.ID, s.BattleID = 0, b.ID
	}); err != nil {
		return err
	}
	return migrateTable(src, tx, oldID, "recorder_performances", func(p *model.RecorderPerformance) {
		p.BattleID = b.ID
	})
}

// migrateTable copies the rows of one battle, letting rebind reassign keys.
func migrateTable[M any](src, dst *gorm.DB, battleID uint, tableName string, rebind func(*M)) error {
	var rows []M
	if err := src.Where("battle_id = ?", battleID).Find(&rows).Error; err != nil {
		return fmt.Errorf("error reading %s: %w", tableName, err)
	}
	for i := range rows {
		rebind(&rows[i])
	}
	return createAll(dst, rows, tableName)
}

func createAll[M any](db *gorm.DB, rows []M, tableName string) error {
	if len(rows) == 0 {
		return nil
	}
	Logger.Debug("Inserting records", "count", len(rows), "table", tableName)
	if err := db.Omit("Battle").Create(&rows).Error; err != nil {
		Logger.Error("Error migrating table", "error", err, "table", tableName)
		return fmt.Errorf("error inserting %s: %w", tableName, err)
	}
	return nil
}
