package dispatcher

import (
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"
)

// ErrClosed is returned by Dispatch after Close.
var ErrClosed = errors.New("dispatcher closed")

// Event represents an incoming message from the simulation.
type Event struct {
	Type      string
	Payload   json.RawMessage
	Timestamp time.Time
}

// HandlerFunc processes an event and returns a result.
type HandlerFunc func(Event) (any, error)

// Logger interface for pluggable logging.
type Logger interface {
	Debug(msg string, keysAndValues ...any)
	Info(msg string, keysAndValues ...any)
	Error(msg string, keysAndValues ...any)
}

// Option configures handler registration.
type Option func(*config)

type config struct {
	bufferSize int
	blocking   bool
	logged     bool
	lane       string
}

// Buffered makes the handler async with a queue of the given size.
func Buffered(size int) Option {
	return func(c *config) {
		c.bufferSize = size
	}
}

// Blocking makes a buffered handler block when the queue is full instead of dropping.
func Blocking() Option {
	return func(c *config) {
		c.blocking = true
	}
}

// Logged adds debug logging to the handler.
func Logged() Option {
	return func(c *config) {
		c.logged = true
	}
}

// Lane makes the handler share one ordered queue with every other handler
// registered on the same lane. Events on a lane are handled one at a time in
// dispatch order. The first registration's Buffered size sizes the lane.
func Lane(name string) Option {
	return func(c *config) {
		c.lane = name
	}
}

type queued struct {
	event   Event
	handler HandlerFunc
}

// Dispatcher routes events to registered handlers.
type Dispatcher struct {
	handlers map[string]HandlerFunc
	logger   Logger
	metrics  *instruments

	// mu guards buffers and closed; senders hold it shared so Close waits for them
	mu      sync.RWMutex
	buffers map[string]chan queued
	closed  bool
	wg      sync.WaitGroup
}

// New creates a Dispatcher. Metrics go to the global OTel meter.
func New(logger Logger) (*Dispatcher, error) {
	d := &Dispatcher{
		handlers: make(map[string]HandlerFunc),
		buffers:  make(map[string]chan queued),
		logger:   logger,
	}

	ins, err := newInstruments(d.QueueSizes)
	if err != nil {
		return nil, err
	}
	d.metrics = ins
	return d, nil
}

// Register adds a handler for the given event type with optional configuration.
func (d *Dispatcher) Register(eventType string, h HandlerFunc, opts ...Option) {
	cfg := &config{}
	for _, opt := range opts {
		opt(cfg)
	}

	handler := h

	if cfg.lane != "" || cfg.bufferSize > 0 {
		queue := cfg.lane
		if queue == "" {
			queue = eventType
		}
		size := cfg.bufferSize
		if size <= 0 {
			size = 1
		}
		handler = d.withBuffer(eventType, queue, size, cfg.blocking, handler)
	}

	if cfg.logged {
		handler = d.withLogging(eventType, handler)
	}

	d.handlers[eventType] = handler
}

// Dispatch routes an event to its registered handler.
func (d *Dispatcher) Dispatch(e Event) (any, error) {
	h, ok := d.handlers[e.Type]
	if !ok {
		return nil, fmt.Errorf("unknown event type: %s", e.Type)
	}
	if e.Timestamp.IsZero() {
		e.Timestamp = time.Now()
	}
	return h(e)
}

// HasHandler returns true if a handler is registered for the event type.
func (d *Dispatcher) HasHandler(eventType string) bool {
	_, ok := d.handlers[eventType]
	return ok
}

// QueueSizes returns the number of pending events per queue.
func (d *Dispatcher) QueueSizes() map[string]int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	out := make(map[string]int, len(d.buffers))
	for name, buf := range d.buffers {
		out[name] = len(buf)
	}
	return out
}

// Close stops accepting events and waits until every queued event has been handled.
func (d *Dispatcher) Close() {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return
	}
	d.closed = true
	for _, buf := range d.buffers {
		close(buf)
	}
	d.mu.Unlock()
	d.wg.Wait()
}

// queueFor returns the buffer of a queue, starting its consumer on first use.
func (d *Dispatcher) queueFor(name string, size int) chan queued {
	d.mu.Lock()
	defer d.mu.Unlock()

	if buf, ok := d.buffers[name]; ok {
		return buf
	}
	buf := make(chan queued, size)
	d.buffers[name] = buf

	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		for q := range buf {
			start := time.Now()
			_, err := q.handler(q.event)
			if err != nil {
				d.logger.Error("queued event failed", "type", q.event.Type, "queue", name, "error", err)
			}
			d.metrics.handled(name, q.event.Type, time.Since(start), err)
		}
	}()
	return buf
}

func (d *Dispatcher) withBuffer(eventType, queue string, size int, blocking bool, h HandlerFunc) HandlerFunc {
	buffer := d.queueFor(queue, size)

	if blocking {
		return func(e Event) (any, error) {
			d.mu.RLock()
			defer d.mu.RUnlock()
			if d.closed {
				return nil, ErrClosed
			}
			buffer <- queued{event: e, handler: h}
			return "queued", nil
		}
	}

	return func(e Event) (any, error) {
		d.mu.RLock()
		defer d.mu.RUnlock()
		if d.closed {
			return nil, ErrClosed
		}
		select {
		case buffer <- queued{event: e, handler: h}:
			return "queued", nil
		default:
			d.metrics.droppedEvent(queue, eventType)
			return nil, fmt.Errorf("queue full: %s", queue)
		}
	}
}

func (d *Dispatcher) withLogging(eventType string, h HandlerFunc) HandlerFunc {
	return func(e Event) (any, error) {
		start := time.Now()
		d.logger.Debug("handling event", "type", eventType, "bytes", len(e.Payload))

		result, err := h(e)

		if err != nil {
			d.logger.Error("event failed", "type", eventType, "duration", time.Since(start), "error", err)
		} else {
			d.logger.Debug("event complete", "type", eventType, "duration", time.Since(start))
		}

		return result, err
	}
}
