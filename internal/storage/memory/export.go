// internal/storage/memory/export.go
package memory

import (
	"compress/gzip"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/duelscope/recorder/pkg/core"
)

// BattleExport is the root JSON structure
type BattleExport struct {
	RecorderVersion  string        `json:"recorderVersion"`
	SimulatorVersion string        `json:"simulatorVersion,omitempty"`
	BattleUUID       string        `json:"battleUuid"`
	BattleName       string        `json:"battleName"`
	Tag              string        `json:"tag,omitempty"`
	ArenaWidth       float64       `json:"arenaWidth"`
	ArenaHeight      float64       `json:"arenaHeight"`
	NumRounds        int           `json:"numRounds"`
	Participants     []string      `json:"participants"`
	StartTime        time.Time     `json:"startTime"`
	Rounds           []RoundJSON   `json:"rounds"`
	Summaries        []SummaryJSON `json:"summaries"`
}

// RoundJSON is one round of the export.
// Bullets use the compact format:
// [bulletKey, bulletId, shooterIdx, turnDetect, turnLast, hit, power, ownerGF, victimGF]
type RoundJSON struct {
	Number    int     `json:"number"`
	EndTurn   int     `json:"endTurn"`
	Winner    string  `json:"winner,omitempty"`
	Abandoned int     `json:"abandoned"`
	Bullets   [][]any `json:"bullets"`
}

// SummaryJSON is a per-shooter round summary
type SummaryJSON struct {
	Round          int     `json:"round"`
	Shooter        string  `json:"shooter"`
	Shots          int     `json:"shots"`
	Hits           int     `json:"hits"`
	MeanOwnerGF    float64 `json:"meanOwnerGF"`
	MeanVictimGF   float64 `json:"meanVictimGF"`
	StdDevVictimGF float64 `json:"stdDevVictimGF"`
	MedianVictimGF float64 `json:"medianVictimGF"`
	Unresolved     int     `json:"unresolved"`
	Failures       int     `json:"failures"`
}

// exportJSON writes the battle data to a (optionally gzipped) JSON file
func (b *Backend) exportJSON() error {
	export := b.buildExport()

	name := strings.NewReplacer(" ", "_", ":", "_", "/", "_").Replace(b.battle.Name)
	timestamp := b.battle.StartTime.Format("20060102_150405")

	ext := ".json"
	if b.cfg.CompressOutput {
		ext = ".json.gz"
	}
	outputPath := filepath.Join(b.cfg.OutputDir, fmt.Sprintf("%s_%s%s", name, timestamp, ext))

	if err := os.MkdirAll(b.cfg.OutputDir, 0755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	write := b.writeJSON
	if b.cfg.CompressOutput {
		write = b.writeGzipJSON
	}
	if err := write(outputPath, export); err != nil {
		return err
	}

	b.lastExportPath = outputPath
	return nil
}

func (b *Backend) buildExport() BattleExport {
	export := BattleExport{
		RecorderVersion:  b.battle.RecorderVersion,
		SimulatorVersion: b.battle.SimulatorVersion,
		BattleUUID:       b.battle.UUID,
		BattleName:       b.battle.Name,
		Tag:              b.battle.Tag,
		ArenaWidth:       b.battle.Arena.Width,
		ArenaHeight:      b.battle.Arena.Height,
		NumRounds:        b.battle.NumRounds,
		Participants:     make([]string, 0, len(b.battle.Participants)),
		StartTime:        b.battle.StartTime,
		Rounds:           make([]RoundJSON, 0, len(b.rounds)),
		Summaries:        make([]SummaryJSON, 0),
	}
	for _, p := range b.battle.Participants {
		export.Participants = append(export.Participants, p.Name)
	}

	for _, rec := range b.sortedRoundsLocked() {
		round := RoundJSON{
			Number:  rec.Round.Number,
			Bullets: make([][]any, 0, len(rec.Bullets)),
		}
		if rec.Result != nil {
			round.EndTurn = rec.Result.Turn
			round.Winner = rec.Result.Winner
			round.Abandoned = boolToInt(rec.Result.Abandoned)
		}
		for _, gf := range rec.Bullets {
			round.Bullets = append(round.Bullets, []any{
				gf.BulletKey,
				gf.BulletID,
				gf.ShooterIdx,
				gf.TurnDetect,
				gf.TurnLast,
				boolToInt(gf.Hit),
				gf.Power,
				gf.OwnerFireGF,
				gf.VictimEscapeGF,
			})
		}
		export.Rounds = append(export.Rounds, round)

		for _, s := range rec.Summaries {
			export.Summaries = append(export.Summaries, SummaryJSON{
				Round:          s.Round,
				Shooter:        s.Shooter,
				Shots:          s.Shots,
				Hits:           s.Hits,
				MeanOwnerGF:    s.MeanOwnerGF,
				MeanVictimGF:   s.MeanVictimGF,
				StdDevVictimGF: s.StdDevVictimGF,
				MedianVictimGF: s.MedianVictimGF,
				Unresolved:     s.Unresolved,
				Failures:       s.AnalysisFailures,
			})
		}
	}

	return export
}

func (b *Backend) sortedRoundsLocked() []*RoundRecord {
	numbers := make([]int, 0, len(b.rounds))
	for n := range b.rounds {
		numbers = append(numbers, n)
	}
	slices.Sort(numbers)

	out := make([]*RoundRecord, 0, len(numbers))
	for _, n := range numbers {
		out = append(out, b.rounds[n])
	}
	return out
}

func (b *Backend) writeJSON(path string, data any) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create file: %w", err)
	}
	defer f.Close()

	if err := json.NewEncoder(f).Encode(data); err != nil {
		return fmt.Errorf("failed to encode JSON: %w", err)
	}
	return nil
}

func (b *Backend) writeGzipJSON(path string, data any) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create file: %w", err)
	}
	defer f.Close()

	gw := gzip.NewWriter(f)
	if err := json.NewEncoder(gw).Encode(data); err != nil {
		_ = gw.Close()
		return fmt.Errorf("failed to encode JSON: %w", err)
	}
	if err := gw.Close(); err != nil {
		return fmt.Errorf("failed to close gzip writer: %w", err)
	}
	return nil
}

// GetExportedFilePath returns the path of the last exported file
func (b *Backend) GetExportedFilePath() string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.lastExportPath
}

// GetExportMetadata returns the metadata of the last exported battle
func (b *Backend) GetExportMetadata() core.UploadMetadata {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.battle == nil {
		return core.UploadMetadata{}
	}
	var duration float64
	if !b.endTime.IsZero() && !b.battle.StartTime.IsZero() {
		duration = b.endTime.Sub(b.battle.StartTime).Seconds()
	}
	return core.UploadMetadata{
		BattleName:  b.battle.Name,
		Arena:       fmt.Sprintf("%gx%g", b.battle.Arena.Width, b.battle.Arena.Height),
		RoundsCount: len(b.rounds),
		Duration:    duration,
		Tag:         b.battle.Tag,
	}
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
