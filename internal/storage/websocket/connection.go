package websocket

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"sync"
	"time"

	"github.com/duelscope/recorder/pkg/streaming"
	ws "github.com/gorilla/websocket"
)

const (
	outboxSize       = 10_000
	ackBufferSize    = 16
	redialAttempts   = 10
	maxBackoff       = 30 * time.Second
	writeWait        = 10 * time.Second
	handshakeTimeout = 10 * time.Second
	defaultAckWait   = 10 * time.Second
)

var errClosed = errors.New("websocket connection closed")

// socket is one dialed connection. dead is closed when it is given up on so
// its writer stops pulling from the outbox.
type socket struct {
	conn *ws.Conn
	dead chan struct{}
}

// connection owns the dashboard link. Messages queue in outbox and are written
// by the goroutine of the current socket; a lost socket is redialed and the
// battle handshake replayed before writing resumes.
type connection struct {
	mu     sync.Mutex
	cur    *socket
	closed bool

	outbox chan []byte
	acks   chan streaming.AckMessage
	quit   chan struct{}

	target     string
	ackTimeout time.Duration
	backoff    time.Duration // delay before the first redial

	// start_battle and the latest start_round
	handshake [2][]byte

	dialer ws.Dialer
	logger *slog.Logger
}

func newConnection(logger *slog.Logger) *connection {
	return &connection{
		outbox:     make(chan []byte, outboxSize),
		acks:       make(chan streaming.AckMessage, ackBufferSize),
		quit:       make(chan struct{}),
		ackTimeout: defaultAckWait,
		backoff:    time.Second,
		dialer:     ws.Dialer{HandshakeTimeout: handshakeTimeout},
		logger:     logger,
	}
}

// withSecret appends the shared secret as a query parameter.
func withSecret(rawURL, secret string) (string, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", fmt.Errorf("invalid websocket URL: %w", err)
	}
	if secret != "" {
		q := u.Query()
		q.Set("secret", secret)
		u.RawQuery = q.Encode()
	}
	return u.String(), nil
}

func (c *connection) setHandshake(battle, round []byte) {
	c.mu.Lock()
	c.handshake = [2][]byte{battle, round}
	c.mu.Unlock()
}

func (c *connection) setRound(round []byte) {
	c.mu.Lock()
	c.handshake[1] = round
	c.mu.Unlock()
}

// dial opens the first socket. Later sockets come from redial.
func (c *connection) dial(rawURL, secret string) error {
	target, err := withSecret(rawURL, secret)
	if err != nil {
		return err
	}
	c.target = target

	conn, _, err := c.dialer.Dial(c.target, nil)
	if err != nil {
		return fmt.Errorf("websocket dial failed: %w", err)
	}
	c.install(conn)
	return nil
}

// install makes conn the current socket and starts its reader and writer.
func (c *connection) install(conn *ws.Conn) {
	s := &socket{conn: conn, dead: make(chan struct{})}
	c.mu.Lock()
	c.cur = s
	c.mu.Unlock()

	go c.write(s)
	go c.read(s)
}

// lost retires s. Only the first report for the current socket starts a redial.
func (c *connection) lost(s *socket, err error) {
	c.mu.Lock()
	if c.closed || c.cur != s {
		c.mu.Unlock()
		return
	}
	c.cur = nil
	c.mu.Unlock()

	close(s.dead)
	_ = s.conn.Close()
	c.logger.Warn("WebSocket connection lost", "error", err)
	go c.redial()
}

func (c *connection) write(s *socket) {
	for {
		select {
		case <-c.quit:
			return
		case <-s.dead:
			return
		case data := <-c.outbox:
			if err := writeText(s.conn, data); err != nil {
				c.lost(s, err)
				return
			}
		}
	}
}

func writeText(conn *ws.Conn, data []byte) error {
	if err := conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		return err
	}
	return conn.WriteMessage(ws.TextMessage, data)
}

// read forwards acks to waiters. Anything else from the server is ignored.
func (c *connection) read(s *socket) {
	for {
		_, msg, err := s.conn.ReadMessage()
		if err != nil {
			c.lost(s, err)
			return
		}

		var ack streaming.AckMessage
		if json.Unmarshal(msg, &ack) != nil || ack.Type != streaming.TypeAck {
			c.logger.Debug("Ignoring server message", "raw", string(msg))
			continue
		}
		select {
		case c.acks <- ack:
		default:
			c.logger.Debug("Ack buffer full, dropping", "for", ack.For)
		}
	}
}

// redial retries with doubling delays. The handshake is written to the new
// socket before it becomes current, so queued messages land in the right round.
func (c *connection) redial() {
	delay := c.backoff
	for attempt := 1; attempt <= redialAttempts; attempt++ {
		select {
		case <-c.quit:
			return
		case <-time.After(delay):
		}
		delay = min(delay*2, maxBackoff)

		conn, _, err := c.dialer.Dial(c.target, nil)
		if err != nil {
			c.logger.Warn("WebSocket redial failed", "attempt", attempt, "error", err)
			continue
		}
		if err := c.replay(conn); err != nil {
			c.logger.Warn("WebSocket handshake replay failed", "attempt", attempt, "error", err)
			_ = conn.Close()
			continue
		}

		c.mu.Lock()
		closed := c.closed
		c.mu.Unlock()
		if closed {
			_ = conn.Close()
			return
		}
		c.install(conn)
		c.logger.Info("WebSocket reconnected", "attempt", attempt)
		return
	}
	c.logger.Error("WebSocket gave up reconnecting", "attempts", redialAttempts)
}

func (c *connection) replay(conn *ws.Conn) error {
	c.mu.Lock()
	msgs := c.handshake
	c.mu.Unlock()
	for _, msg := range msgs {
		if msg == nil {
			continue
		}
		if err := writeText(conn, msg); err != nil {
			return err
		}
	}
	return nil
}

// send queues data without blocking. A full outbox drops the message.
func (c *connection) send(data []byte) {
	select {
	case c.outbox <- data:
	default:
		c.logger.Warn("WebSocket outbox full, dropping message")
	}
}

// sendAndWait queues data and waits for an ack naming ackFor.
func (c *connection) sendAndWait(data []byte, ackFor string, timeout time.Duration) error {
	c.send(data)

	deadline := time.NewTimer(timeout)
	defer deadline.Stop()
	for {
		select {
		case ack := <-c.acks:
			if ack.For == ackFor {
				return nil
			}
		case <-deadline.C:
			return fmt.Errorf("timeout waiting for ack of %q", ackFor)
		case <-c.quit:
			return fmt.Errorf("waiting for ack of %q: %w", ackFor, errClosed)
		}
	}
}

// close sends a normal close frame on the current socket and stops every goroutine.
func (c *connection) close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	close(c.quit)
	s := c.cur
	c.cur = nil
	c.mu.Unlock()

	if s == nil {
		return nil
	}
	_ = s.conn.WriteControl(ws.CloseMessage,
		ws.FormatCloseMessage(ws.CloseNormalClosure, ""),
		time.Now().Add(time.Second))
	return s.conn.Close()
}
