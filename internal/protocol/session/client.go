package session

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"net"
	"strings"
	"sync"
	"time"

	"github.com/danmuck/plcbridge/internal/observability"
	"github.com/danmuck/plcbridge/internal/protocol/frame"
	"github.com/danmuck/plcbridge/internal/protocol/schema"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

type ClientConfig struct {
	Address            string
	Session            Config
	MaxConnectAttempts int
	AutoReconnect      bool
}

func DefaultClientConfig() ClientConfig {
	return ClientConfig{
		Address:            "127.0.0.1:502",
		Session:            DefaultConfig(),
		MaxConnectAttempts: 5,
		AutoReconnect:      true,
	}
}

// Stats is a point-in-time snapshot of a client session.
type Stats struct {
	Address        string    `json:"address"`
	State          string    `json:"state"`
	SessionID      string    `json:"session_id,omitempty"`
	Connects       uint64    `json:"connects"`
	Reconnects     uint64    `json:"reconnects"`
	Attempt        int       `json:"reconnect_attempt"`
	FramesSent     uint64    `json:"frames_sent"`
	FramesReceived uint64    `json:"frames_received"`
	LastError      string    `json:"last_error,omitempty"`
	ConnectedAt    time.Time `json:"connected_at,omitzero"`
}

// Client is the active side of a session. It is driven by one caller; Close,
// State and Stats are safe from any goroutine. The mutex is never held across
// blocking I/O.
type Client struct {
	cfg      ClientConfig
	schema   *schema.Schema
	template *frame.DataFrame
	rng      *rand.Rand

	closed    chan struct{}
	closeOnce sync.Once

	mu        sync.Mutex
	state     State
	conn      net.Conn
	sessionID string
	stats     Stats
}

func NewClient(cfg ClientConfig, template *frame.DataFrame) (*Client, error) {
	if strings.TrimSpace(cfg.Address) == "" {
		return nil, ErrAddressRequired
	}
	if template == nil {
		return nil, ErrTemplateRequired
	}
	if cfg.MaxConnectAttempts < 0 {
		cfg.MaxConnectAttempts = 0
	}
	cfg.Session = cfg.Session.WithDefaults()
	return &Client{
		cfg:      cfg,
		schema:   template.Schema(),
		template: template.Clone(),
		rng:      rand.New(rand.NewSource(time.Now().UnixNano())),
		closed:   make(chan struct{}),
		state:    StateDisconnected,
		stats:    Stats{Address: cfg.Address},
	}, nil
}

// Template returns a fresh copy of the template frame.
func (c *Client) Template() *frame.DataFrame { return c.template.Clone() }

func (c *Client) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

func (c *Client) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := c.stats
	out.State = c.state.String()
	out.SessionID = c.sessionID
	return out
}

// Connect makes one dial attempt bounded by ConnectTimeout. It does not retry;
// see ConnectRetry.
func (c *Client) Connect(ctx context.Context) error {
	c.mu.Lock()
	switch c.state {
	case StateClosed:
		c.mu.Unlock()
		return ErrClosed
	case StateConnected:
		c.mu.Unlock()
		return nil
	case StateConnecting:
		c.mu.Unlock()
		return ErrConnecting
	}
	c.setStateLocked(StateConnecting)
	c.mu.Unlock()

	conn, err := c.dial(ctx)
	observability.RecordConnectAttempt(err == nil)

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state == StateClosed {
		if conn != nil {
			_ = conn.Close()
		}
		return ErrClosed
	}
	if err != nil {
		c.setStateLocked(StateDisconnected)
		c.stats.LastError = err.Error()
		return &ConnectError{Addr: c.cfg.Address, Err: err}
	}
	c.conn = conn
	c.sessionID = uuid.NewString()
	c.stats.Connects++
	c.stats.Attempt = 0
	c.stats.ConnectedAt = time.Now()
	c.setStateLocked(StateConnected)
	log.Info().
		Str("addr", c.cfg.Address).
		Str("session_id", c.sessionID).
		Str("local", conn.LocalAddr().String()).
		Msg("session.Client connected")
	return nil
}

// ConnectRetry repeats Connect with backoff until it succeeds or
// MaxConnectAttempts dials have failed.
func (c *Client) ConnectRetry(ctx context.Context) error {
	for attempt := 1; ; attempt++ {
		err := c.Connect(ctx)
		if err == nil {
			return nil
		}
		if errors.Is(err, ErrClosed) || ctx.Err() != nil {
			return err
		}
		log.Warn().Int("attempt", attempt).Str("addr", c.cfg.Address).Err(err).Msg("session.Client dial failed")
		if !c.shouldRetry(attempt) {
			return fmt.Errorf("%w after %d attempts: %w", ErrConnectionExhausted, attempt, err)
		}
		if err := c.sleepBackoff(ctx, attempt); err != nil {
			return err
		}
	}
}

// Send writes one full record. On an I/O failure the connection is dropped; with
// AutoReconnect the client reconnects and retries the send once.
func (c *Client) Send(ctx context.Context, f *frame.DataFrame) error {
	if f == nil || !f.Schema().Compatible(c.schema) {
		return ErrSchemaMismatch
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	conn, err := c.active()
	if err != nil {
		return err
	}
	err = c.write(ctx, conn, f)
	if err == nil {
		return nil
	}
	c.drop(conn, "send", err)
	if err := c.abandon(ctx); err != nil {
		return err
	}
	if !c.cfg.AutoReconnect {
		return &IOError{Op: "send", Err: err}
	}
	if err := c.reconnect(ctx); err != nil {
		return err
	}
	if conn, err = c.active(); err != nil {
		return err
	}
	if err := c.write(ctx, conn, f); err != nil {
		c.drop(conn, "send", err)
		return &IOError{Op: "send", Err: err}
	}
	return nil
}

// Receive reads exactly one record and never returns a partial frame. A failed
// read drops the connection, including one interrupted by ctx; with
// AutoReconnect the client then reconnects and reports ErrNoData for the cycle,
// otherwise it returns an IOError.
func (c *Client) Receive(ctx context.Context) (*frame.DataFrame, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	conn, err := c.active()
	if err != nil {
		return nil, err
	}
	f, err := c.read(ctx, conn)
	if err == nil {
		return f, nil
	}
	c.drop(conn, "receive", err)
	if err := c.abandon(ctx); err != nil {
		return nil, err
	}
	if !c.cfg.AutoReconnect {
		return nil, &IOError{Op: "receive", Err: err}
	}
	if err := c.reconnect(ctx); err != nil {
		return nil, err
	}
	return nil, ErrNoData
}

// Exchange sends f and waits for the peer's reply.
func (c *Client) Exchange(ctx context.Context, f *frame.DataFrame) (*frame.DataFrame, error) {
	start := time.Now()
	if err := c.Send(ctx, f); err != nil {
		return nil, err
	}
	reply, err := c.Receive(ctx)
	if err != nil {
		return nil, err
	}
	observability.ObserveExchange("client", time.Since(start))
	return reply, nil
}

// Close releases the connection from any state and unblocks pending I/O and
// backoff sleeps. It is idempotent.
func (c *Client) Close() error {
	var err error
	c.closeOnce.Do(func() {
		close(c.closed)
		c.mu.Lock()
		conn := c.conn
		c.conn = nil
		c.setStateLocked(StateClosed)
		c.mu.Unlock()
		if conn != nil {
			err = conn.Close()
		}
		log.Info().Str("addr", c.cfg.Address).Msg("session.Client closed")
	})
	return err
}

func (c *Client) dial(ctx context.Context) (net.Conn, error) {
	ctx, cancel := c.closeAware(ctx)
	defer cancel()
	dialer := net.Dialer{Timeout: c.cfg.Session.ConnectTimeout}
	return dialer.DialContext(ctx, "tcp", c.cfg.Address)
}

func (c *Client) write(ctx context.Context, conn net.Conn, f *frame.DataFrame) error {
	ctxDeadline, ok := ctx.Deadline()
	if err := conn.SetWriteDeadline(deadline(c.cfg.Session.WriteTimeout, ctxDeadline, ok)); err != nil {
		return err
	}
	stop := context.AfterFunc(ctx, func() { _ = conn.SetDeadline(time.Now()) })
	defer stop()
	if err := frame.WriteFrame(conn, f); err != nil {
		return err
	}
	c.mu.Lock()
	c.stats.FramesSent++
	c.mu.Unlock()
	observability.RecordFrame("client", "tx", f.Size())
	return nil
}

func (c *Client) read(ctx context.Context, conn net.Conn) (*frame.DataFrame, error) {
	ctxDeadline, ok := ctx.Deadline()
	if err := conn.SetReadDeadline(deadline(c.cfg.Session.ReadTimeout, ctxDeadline, ok)); err != nil {
		return nil, err
	}
	stop := context.AfterFunc(ctx, func() { _ = conn.SetDeadline(time.Now()) })
	defer stop()
	f, err := frame.ReadFrame(conn, c.schema)
	if err != nil {
		return nil, err
	}
	c.mu.Lock()
	c.stats.FramesReceived++
	c.mu.Unlock()
	observability.RecordFrame("client", "rx", f.Size())
	return f, nil
}

// active returns the live connection or the reason there is none.
func (c *Client) active() (net.Conn, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	switch c.state {
	case StateClosed:
		return nil, ErrClosed
	case StateConnected:
		return c.conn, nil
	default:
		return nil, ErrNotConnected
	}
}

// drop tears down conn after an I/O failure. A newer connection installed by a
// concurrent reconnect is left alone.
func (c *Client) drop(conn net.Conn, op string, cause error) {
	_ = conn.Close()
	c.mu.Lock()
	if c.conn == conn {
		c.conn = nil
		if c.state != StateClosed {
			c.setStateLocked(StateDisconnected)
		}
	}
	c.stats.LastError = cause.Error()
	sessionID := c.sessionID
	c.mu.Unlock()
	observability.RecordIOError("client", op)
	log.Warn().
		Str("addr", c.cfg.Address).
		Str("session_id", sessionID).
		Str("op", op).
		Err(cause).
		Msg("session.Client connection lost")
}

// abandon reports why a failed operation must not reconnect: the client was
// closed or the caller gave up.
func (c *Client) abandon(ctx context.Context) error {
	if c.State() == StateClosed {
		return ErrClosed
	}
	if d, ok := ctx.Deadline(); ok && !time.Now().Before(d) {
		return context.DeadlineExceeded
	}
	return ctx.Err()
}

// reconnect sleeps the backoff then dials, repeating until connected or
// MaxConnectAttempts dials have failed.
func (c *Client) reconnect(ctx context.Context) error {
	for attempt := 1; ; attempt++ {
		c.mu.Lock()
		c.stats.Attempt = attempt
		c.mu.Unlock()
		if err := c.sleepBackoff(ctx, attempt); err != nil {
			observability.RecordReconnect("aborted")
			return err
		}
		err := c.Connect(ctx)
		if err == nil {
			c.mu.Lock()
			c.stats.Reconnects++
			c.mu.Unlock()
			observability.RecordReconnect("success")
			log.Info().Int("attempt", attempt).Str("addr", c.cfg.Address).Msg("session.Client reconnected")
			return nil
		}
		if errors.Is(err, ErrClosed) || ctx.Err() != nil {
			observability.RecordReconnect("aborted")
			return err
		}
		log.Warn().Int("attempt", attempt).Str("addr", c.cfg.Address).Err(err).Msg("session.Client reconnect failed")
		if !c.shouldRetry(attempt) {
			observability.RecordReconnect("exhausted")
			log.Error().Int("attempts", attempt).Str("addr", c.cfg.Address).Msg("session.Client reconnect exhausted")
			return fmt.Errorf("%w after %d attempts: %w", ErrConnectionExhausted, attempt, err)
		}
	}
}

func (c *Client) shouldRetry(attempt int) bool {
	if c.cfg.MaxConnectAttempts <= 0 {
		return true
	}
	return attempt < c.cfg.MaxConnectAttempts
}

func (c *Client) sleepBackoff(ctx context.Context, attempt int) error {
	delay := NextBackoffDelay(c.cfg.Session.Backoff, attempt, c.rng)
	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-c.closed:
		return ErrClosed
	case <-timer.C:
		return nil
	}
}

// closeAware derives a context that is also cancelled by Close.
func (c *Client) closeAware(ctx context.Context) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(ctx)
	go func() {
		select {
		case <-c.closed:
			cancel()
		case <-ctx.Done():
		}
	}()
	return ctx, cancel
}

func (c *Client) setStateLocked(s State) {
	if c.state == s {
		return
	}
	log.Debug().Str("addr", c.cfg.Address).Stringer("from", c.state).Stringer("to", s).Msg("session.Client state")
	c.state = s
	observability.SetClientState(c.cfg.Address, int(s))
}
