// internal/storage/storage.go
package storage

import "github.com/duelscope/recorder/pkg/core"

// Backend is the interface all storage implementations must satisfy
type Backend interface {
	// Lifecycle
	Init() error
	Close() error

	// Battle management
	StartBattle(battle *core.Battle) error
	EndBattle() error

	// Round management (assigns ID to the passed pointer where supported)
	StartRound(round *core.Round) error
	EndRound(result *core.RoundResult) error

	// Analysis output
	RecordGuessFactor(r *core.GuessFactorRecord) error
	RecordRoundSummary(s *core.RoundSummary) error
}

// Uploadable is an optional interface for storage backends that produce
// files suitable for upload to the web frontend.
type Uploadable interface {
	GetExportedFilePath() string
	GetExportMetadata() core.UploadMetadata
}
