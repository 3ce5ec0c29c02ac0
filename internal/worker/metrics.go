package worker

import (
	"context"
	"fmt"

	"github.com/duelscope/recorder/pkg/core"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const instrumentationName = "github.com/duelscope/recorder/internal/worker"

type metrics struct {
	turns        metric.Int64Counter
	resolved     metric.Int64Counter
	forced       metric.Int64Counter
	failures     metric.Int64Counter
	guessFactors metric.Float64Histogram
}

// newMetrics uses the global meter provider, a no-op until otel is configured.
func newMetrics() (*metrics, error) {
	m := otel.Meter(instrumentationName)
	out := &metrics{}
	var err error

	out.turns, err = m.Int64Counter(
		"worker.turns.processed",
		metric.WithDescription("Turns fed to the bullet correlator"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating turns counter: %w", err)
	}

	out.resolved, err = m.Int64Counter(
		"worker.bullets.resolved",
		metric.WithDescription("Bullets analyzed at round end, by outcome"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating resolved counter: %w", err)
	}

	out.forced, err = m.Int64Counter(
		"worker.bullets.unresolved",
		metric.WithDescription("Bullets still in flight when their round ended"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating unresolved counter: %w", err)
	}

	out.failures, err = m.Int64Counter(
		"worker.analysis.failures",
		metric.WithDescription("Bullets the analyzer could not place in their escape envelope"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating failures counter: %w", err)
	}

	out.guessFactors, err = m.Float64Histogram(
		"worker.guess_factor",
		metric.WithDescription("Guess factors of analyzed bullets"),
		metric.WithExplicitBucketBoundaries(0, 0.1, 0.2, 0.3, 0.4, 0.5, 0.6, 0.7, 0.8, 0.9, 1),
	)
	if err != nil {
		return nil, fmt.Errorf("creating guess factor histogram: %w", err)
	}

	return out, nil
}

func (mt *metrics) recordRound(ctx context.Context, records []core.GuessFactorRecord, forced, failed int) {
	for i := range records {
		r := &records[i]
		shooter := attribute.String("shooter", r.Shooter)
		mt.resolved.Add(ctx, 1, metric.WithAttributes(shooter, attribute.String("outcome", r.Outcome())))
		mt.guessFactors.Record(ctx, r.OwnerFireGF, metric.WithAttributes(shooter, attribute.String("kind", "owner")))
		mt.guessFactors.Record(ctx, r.VictimEscapeGF, metric.WithAttributes(shooter, attribute.String("kind", "victim")))
	}
	if forced > 0 {
		mt.forced.Add(ctx, int64(forced))
	}
	if failed > 0 {
		mt.failures.Add(ctx, int64(failed))
	}
}
