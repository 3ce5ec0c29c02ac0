package influx

import (
	"compress/gzip"
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/duelscope/recorder/pkg/core"
	influxdb2_write "github.com/influxdata/influxdb-client-go/v2/api/write"
	"github.com/rs/zerolog"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newManager(t *testing.T) *Manager {
	t.Helper()
	viper.Reset()
	t.Cleanup(viper.Reset)
	viper.Set("influx.bucket", "guess_factors")
	return NewManager(zerolog.Nop(), filepath.Join(t.TempDir(), "influx_backup.log.gz"))
}

func readBackup(t *testing.T, path string) string {
	t.Helper()
	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()
	gz, err := gzip.NewReader(f)
	require.NoError(t, err)
	data, err := io.ReadAll(gz)
	require.NoError(t, err)
	return string(data)
}

func TestNewManagerBuckets(t *testing.T) {
	m := newManager(t)
	assert.Equal(t, []string{"guess_factors", PerformanceBucket}, m.BucketNames)
	assert.Equal(t, "guess_factors", m.AnalysisBucket())
	assert.False(t, m.IsValid)
}

func TestConnectDisabled(t *testing.T) {
	m := newManager(t)
	viper.Set("influx.enabled", false)
	assert.True(t, errors.Is(m.Connect(), ErrDisabled))
}

func TestWritePointWithoutBackup(t *testing.T) {
	m := newManager(t)
	err := m.WritePoint(context.Background(), "guess_factors", influxdb2_write.NewPointWithMeasurement("x"))
	assert.Error(t, err)
}

func TestBackupWrites(t *testing.T) {
	m := newManager(t)
	require.NoError(t, m.OpenBackup())

	ctx := context.Background()
	gf := &core.GuessFactorRecord{Round: 2, BulletID: 9, Shooter: "alpha", Victim: "beta", Hit: true, Power: 1.5, OwnerFireGF: 0.5, VictimEscapeGF: 0.25}
	require.NoError(t, m.WriteGuessFactor(ctx, "u-1", gf))
	require.NoError(t, m.WriteRoundSummary(ctx, "u-1", &core.RoundSummary{Round: 2, Shooter: "alpha", Shots: 4, Hits: 1}))
	require.NoError(t, m.Close())

	lines := strings.Split(strings.TrimSpace(readBackup(t, m.BackupPath)), "\n")
	require.Len(t, lines, 2)
	assert.True(t, strings.HasPrefix(lines[0], "guess_factor,"))
	assert.Contains(t, lines[0], "outcome=H")
	assert.Contains(t, lines[0], "shooter=alpha")
	assert.Contains(t, lines[0], "victim_escape_gf=0.25")
	assert.True(t, strings.HasPrefix(lines[1], "round_summary,"))
	assert.Contains(t, lines[1], "shots=4i")
}

func TestGuessFactorPoint(t *testing.T) {
	ts := time.Unix(1700000000, 0)
	p := GuessFactorPoint("u-7", &core.GuessFactorRecord{Round: 1, Shooter: "a", Victim: "b", BulletID: 3}, ts)

	assert.Equal(t, MeasurementGuessFactor, p.Name())
	assert.Equal(t, ts, p.Time())

	tags := map[string]string{}
	for _, tag := range p.TagList() {
		tags[tag.Key] = tag.Value
	}
	assert.Equal(t, map[string]string{"battle": "u-7", "round": "1", "shooter": "a", "victim": "b", "outcome": "M"}, tags)
}

func TestTurnRatePoint(t *testing.T) {
	line := influxdb2_write.PointToLineProtocol(TurnRatePoint("u-1", 30.5, 2, time.Unix(0, 5)), time.Nanosecond)
	assert.Equal(t, "turn_rate,battle=u-1 in_flight=2i,turns_per_second=30.5 5", strings.TrimSpace(line))
}
