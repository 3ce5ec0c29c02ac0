package dispatcher

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const instrumentationName = "github.com/duelscope/recorder/internal/dispatcher"

// instruments are created from the global meter, a no-op until the otel
// package installs a meter provider.
type instruments struct {
	queueSize metric.Int64ObservableGauge
	processed metric.Int64Counter
	dropped   metric.Int64Counter
	failed    metric.Int64Counter
	duration  metric.Float64Histogram
}

func newInstruments(sizes func() map[string]int) (*instruments, error) {
	m := otel.Meter(instrumentationName)
	ins := &instruments{}

	var err error
	if ins.queueSize, err = m.Int64ObservableGauge("dispatcher.queue.size",
		metric.WithDescription("Events waiting in each queue")); err != nil {
		return nil, fmt.Errorf("creating queue size gauge: %w", err)
	}
	_, err = m.RegisterCallback(func(_ context.Context, o metric.Observer) error {
		for name, size := range sizes() {
			o.ObserveInt64(ins.queueSize, int64(size), metric.WithAttributes(attribute.String("queue", name)))
		}
		return nil
	}, ins.queueSize)
	if err != nil {
		return nil, fmt.Errorf("registering queue callback: %w", err)
	}

	if ins.processed, err = m.Int64Counter("dispatcher.events.processed",
		metric.WithDescription("Queued events handled")); err != nil {
		return nil, fmt.Errorf("creating processed counter: %w", err)
	}
	if ins.dropped, err = m.Int64Counter("dispatcher.events.dropped",
		metric.WithDescription("Events rejected because their queue was full")); err != nil {
		return nil, fmt.Errorf("creating dropped counter: %w", err)
	}
	if ins.failed, err = m.Int64Counter("dispatcher.events.failed",
		metric.WithDescription("Queued events whose handler returned an error")); err != nil {
		return nil, fmt.Errorf("creating failed counter: %w", err)
	}
	if ins.duration, err = m.Float64Histogram("dispatcher.handler.duration",
		metric.WithDescription("Time spent in a queued handler"),
		metric.WithUnit("ms")); err != nil {
		return nil, fmt.Errorf("creating duration histogram: %w", err)
	}
	return ins, nil
}

func eventAttrs(queue, eventType string) metric.MeasurementOption {
	return metric.WithAttributes(attribute.String("queue", queue), attribute.String("type", eventType))
}

func (ins *instruments) handled(queue, eventType string, took time.Duration, err error) {
	ctx := context.Background()
	attrs := eventAttrs(queue, eventType)
	ins.processed.Add(ctx, 1, attrs)
	ins.duration.Record(ctx, float64(took.Microseconds())/1000, attrs)
	if err != nil {
		ins.failed.Add(ctx, 1, attrs)
	}
}

func (ins *instruments) droppedEvent(queue, eventType string) {
	ins.dropped.Add(context.Background(), 1, eventAttrs(queue, eventType))
}
