package influx

import (
	"compress/gzip"
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/duelscope/recorder/pkg/core"
	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	influxdb2_api "github.com/influxdata/influxdb-client-go/v2/api"
	influxdb2_write "github.com/influxdata/influxdb-client-go/v2/api/write"
	"github.com/influxdata/influxdb-client-go/v2/domain"
	"github.com/rs/zerolog"
	"github.com/spf13/viper"
)

// PerformanceBucket receives recorder throughput metrics.
const PerformanceBucket = "recorder_performance"

// Measurement names.
const (
	MeasurementGuessFactor  = "guess_factor"
	MeasurementRoundSummary = "round_summary"
	MeasurementTurnRate     = "turn_rate"
)

// ErrDisabled is returned by Connect when influx.enabled is false.
var ErrDisabled = errors.New("influx.enabled is false")

// Manager handles InfluxDB connections and writes.
type Manager struct {
	Client       influxdb2.Client
	Writers      map[string]influxdb2_api.WriteAPI
	BackupWriter *gzip.Writer
	IsValid      bool
	BucketNames  []string
	Logger       zerolog.Logger
	BackupPath   string

	backupFile *os.File
}

// NewManager creates a new InfluxDB manager. The analysis bucket comes from
// influx.bucket.
func NewManager(log zerolog.Logger, backupPath string) *Manager {
	return &Manager{
		Writers:     make(map[string]influxdb2_api.WriteAPI),
		BucketNames: []string{viper.GetString("influx.bucket"), PerformanceBucket},
		Logger:      log,
		BackupPath:  backupPath,
	}
}

// AnalysisBucket is where guess factors and summaries go.
func (m *Manager) AnalysisBucket() string {
	return m.BucketNames[0]
}

// Connect establishes a connection to InfluxDB. When the server is
// unreachable points are written as gzipped line protocol to BackupPath.
func (m *Manager) Connect() error {
	if !viper.GetBool("influx.enabled") {
		return ErrDisabled
	}

	m.Client = influxdb2.NewClientWithOptions(
		fmt.Sprintf(
			"%s://%s:%s",
			viper.GetString("influx.protocol"),
			viper.GetString("influx.host"),
			viper.GetString("influx.port"),
		),
		viper.GetString("influx.token"),
		influxdb2.DefaultOptions().
			SetBatchSize(500).
			SetFlushInterval(1000),
	)

	running, err := m.Client.Ping(context.Background())
	if err != nil || !running {
		m.Logger.Warn().Err(err).Str("backupPath", m.BackupPath).
			Msg("InfluxDB unreachable, writing to backup file")
		return m.OpenBackup()
	}

	if err := m.setupOrganizationAndBuckets(); err != nil {
		return err
	}
	m.IsValid = true
	m.CreateWriters()
	m.Logger.Info().Strs("buckets", m.BucketNames).Msg("InfluxDB client initialized")
	return nil
}

// OpenBackup switches the manager to the gzipped backup file.
func (m *Manager) OpenBackup() error {
	m.IsValid = false
	if m.BackupWriter != nil {
		return nil
	}
	file, err := os.OpenFile(m.BackupPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return fmt.Errorf("error creating backup file: %w", err)
	}
	m.backupFile = file
	m.BackupWriter = gzip.NewWriter(file)
	return nil
}

func (m *Manager) setupOrganizationAndBuckets() error {
	ctx := context.Background()
	orgName := viper.GetString("influx.org")

	influxOrg, err := m.Client.OrganizationsAPI().FindOrganizationByName(ctx, orgName)
	if err != nil {
		m.Logger.Info().Str("org", orgName).Msg("Organization not found, creating")
		influxOrg, err = m.Client.OrganizationsAPI().CreateOrganizationWithName(ctx, orgName)
		if err != nil {
			m.Logger.Error().Err(err).Str("org", orgName).Msg("Error creating organization")
			return err
		}
	}

	// 90 day retention
	for _, bucket := range m.BucketNames {
		if _, err = m.Client.BucketsAPI().FindBucketByName(ctx, bucket); err == nil {
			continue
		}
		m.Logger.Info().Str("bucket", bucket).Msg("Bucket not found, creating")

		rule := domain.RetentionRuleTypeExpire
		_, err = m.Client.BucketsAPI().CreateBucketWithName(ctx, influxOrg, bucket, domain.RetentionRule{
			Type:         &rule,
			EverySeconds: 60 * 60 * 24 * 90,
		})
		if err != nil {
			m.Logger.Error().Err(err).Str("bucket", bucket).Msg("Error creating bucket")
			return err
		}
	}
	return nil
}

// CreateWriters creates write APIs for all configured buckets.
func (m *Manager) CreateWriters() {
	orgName := viper.GetString("influx.org")
	for _, bucket := range m.BucketNames {
		writer := m.Client.WriteAPI(orgName, bucket)
		m.Writers[bucket] = writer

		go func(bucketName string, errorsCh <-chan error) {
			for writeErr := range errorsCh {
				m.Logger.Error().Err(writeErr).Str("bucket", bucketName).
					Msg("Error sending data to InfluxDB")
			}
		}(bucket, writer.Errors())
	}
	m.Logger.Debug().Msg("InfluxDB writers initialized")
}

// WritePoint writes a point to InfluxDB or the backup file.
func (m *Manager) WritePoint(ctx context.Context, bucket string, point *influxdb2_write.Point) error {
	if m.IsValid {
		writer, ok := m.Writers[bucket]
		if !ok {
			return fmt.Errorf("influxDB bucket '%s' not registered", bucket)
		}
		writer.WritePoint(point)
		return nil
	}

	if m.BackupWriter == nil {
		return fmt.Errorf("influxDB client not initialized and backup writer not available")
	}
	lineProtocol := strings.TrimSuffix(influxdb2_write.PointToLineProtocol(point, time.Nanosecond), "\n")
	if _, err := m.BackupWriter.Write([]byte(lineProtocol + "\n")); err != nil {
		return fmt.Errorf("error writing to InfluxDB backup file: %w", err)
	}
	return nil
}

// WriteGuessFactor records one analyzed bullet.
func (m *Manager) WriteGuessFactor(ctx context.Context, battleUUID string, r *core.GuessFactorRecord) error {
	return m.WritePoint(ctx, m.AnalysisBucket(), GuessFactorPoint(battleUUID, r, time.Now()))
}

// WriteRoundSummary records one shooter's round aggregate.
func (m *Manager) WriteRoundSummary(ctx context.Context, battleUUID string, s *core.RoundSummary) error {
	return m.WritePoint(ctx, m.AnalysisBucket(), RoundSummaryPoint(battleUUID, s, time.Now()))
}

// Close flushes writers and closes the client and backup file.
func (m *Manager) Close() error {
	for _, w := range m.Writers {
		w.Flush()
	}
	if m.Client != nil {
		m.Client.Close()
	}

	var errs []error
	if m.BackupWriter != nil {
		errs = append(errs, m.BackupWriter.Close())
		m.BackupWriter = nil
	}
	if m.backupFile != nil {
		errs = append(errs, m.backupFile.Close())
		m.backupFile = nil
	}
	return errors.Join(errs...)
}

// GuessFactorPoint builds the point for an analyzed bullet.
func GuessFactorPoint(battleUUID string, r *core.GuessFactorRecord, ts time.Time) *influxdb2_write.Point {
	return influxdb2.NewPoint(MeasurementGuessFactor,
		map[string]string{
			"battle":  battleUUID,
			"round":   strconv.Itoa(r.Round),
			"shooter": r.Shooter,
			"victim":  r.Victim,
			"outcome": r.Outcome(),
		},
		map[string]interface{}{
			"bullet_id":        r.BulletID,
			"power":            r.Power,
			"turn_detect":      r.TurnDetect,
			"turn_last":        r.TurnLast,
			"max_escape":       r.MaxEscapeAngle,
			"min_escape":       r.MinEscapeAngle,
			"owner_fire_gf":    r.OwnerFireGF,
			"victim_escape_gf": r.VictimEscapeGF,
		},
		ts,
	)
}

// RoundSummaryPoint builds the point for a round summary.
func RoundSummaryPoint(battleUUID string, s *core.RoundSummary, ts time.Time) *influxdb2_write.Point {
	return influxdb2.NewPoint(MeasurementRoundSummary,
		map[string]string{
			"battle":  battleUUID,
			"round":   strconv.Itoa(s.Round),
			"shooter": s.Shooter,
		},
		map[string]interface{}{
			"shots":             s.Shots,
			"hits":              s.Hits,
			"hit_rate":          s.HitRate,
			"mean_owner_gf":     s.MeanOwnerGF,
			"mean_victim_gf":    s.MeanVictimGF,
			"stddev_victim_gf":  s.StdDevVictimGF,
			"median_victim_gf":  s.MedianVictimGF,
			"unresolved":        s.Unresolved,
			"analysis_failures": s.AnalysisFailures,
		},
		ts,
	)
}

// TurnRatePoint builds the recorder throughput point.
func TurnRatePoint(battleUUID string, turnsPerSecond float64, inFlight int, ts time.Time) *influxdb2_write.Point {
	return influxdb2.NewPoint(MeasurementTurnRate,
		map[string]string{"battle": battleUUID},
		map[string]interface{}{
			"turns_per_second": turnsPerSecond,
			"in_flight":        inFlight,
		},
		ts,
	)
}
