// Package notify pushes recorded events to the real-time channel the
// dashboards listen on. Delivery is best effort: a publish never fails the
// request that produced the event.
package notify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"github.com/watchsec/commnode/internal/model"
)

// Channels dashboards subscribe to.
const (
	ChannelAlert       = "new-alert"
	ChannelMalfunction = "new-malfunction"
	ChannelLog         = "new-device_log"
)

const (
	defaultDialTimeout    = 5 * time.Second
	defaultPublishTimeout = 5 * time.Second
)

var (
	// ErrClosed is returned by a Conn whose underlying connection has gone away.
	ErrClosed = errors.New("notification connection closed")
	// ErrUnavailable is returned to publishers that waited on a connection
	// attempt which failed.
	ErrUnavailable = errors.New("notification channel unavailable")
)

// Conn is an established connection to the real-time channel. Emit may be
// called concurrently.
type Conn interface {
	Emit(ctx context.Context, channel string, payload []byte) error
	Close() error
}

// Dialer opens connections to the real-time channel.
type Dialer interface {
	Dial(ctx context.Context) (Conn, error)
}

// State is the connection state of a Notifier.
type State int

const (
	StateDisconnected State = iota
	StateConnecting
	StateConnected
)

func (s State) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	default:
		return "disconnected"
	}
}

// Option configures a Notifier.
type Option func(*Notifier)

// WithLogger sets the logger for delivery failures.
func WithLogger(l zerolog.Logger) Option {
	return func(n *Notifier) { n.logger = l }
}

// WithMetrics counts publishes by channel and result.
func WithMetrics(c *prometheus.CounterVec) Option {
	return func(n *Notifier) { n.published = c }
}

// WithTimeouts bounds connection attempts and single publishes.
func WithTimeouts(dial, publish time.Duration) Option {
	return func(n *Notifier) {
		if dial > 0 {
			n.dialTimeout = dial
		}
		if publish > 0 {
			n.publishTimeout = publish
		}
	}
}

// Notifier holds the single shared connection to the real-time channel.
// It is created once per process and handed to the handlers that publish.
type Notifier struct {
	dialer         Dialer
	logger         zerolog.Logger
	published      *prometheus.CounterVec
	dialTimeout    time.Duration
	publishTimeout time.Duration

	// connectMu serialises connection attempts.
	connectMu sync.Mutex
	// dialFailures counts failed attempts; lastDialErr is guarded by connectMu.
	dialFailures atomic.Uint64
	lastDialErr  error

	mu    sync.RWMutex
	state State
	conn  Conn
}

// New creates a Notifier that connects through dialer. A nil dialer yields a
// disabled Notifier that drops every publish.
func New(dialer Dialer, opts ...Option) *Notifier {
	n := &Notifier{
		dialer:         dialer,
		logger:         zerolog.Nop(),
		dialTimeout:    defaultDialTimeout,
		publishTimeout: defaultPublishTimeout,
	}
	for _, o := range opts {
		o(n)
	}
	return n
}

// Start performs the first connection attempt. Failure is logged only; the
// next publish tries again.
func (n *Notifier) Start(ctx context.Context) {
	if n.dialer == nil {
		n.logger.Info().Msg("real-time notifications disabled")
		return
	}
	if _, err := n.connect(ctx); err != nil {
		n.logger.Warn().Err(err).Msg("initial connection to notification channel failed")
		return
	}
	n.logger.Info().Msg("connected to notification channel")
}

// State reports the current connection state.
func (n *Notifier) State() State {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return n.state
}

// Enabled reports whether the Notifier has a transport.
func (n *Notifier) Enabled() bool {
	return n.dialer != nil
}

// NotifyAlert publishes a recorded alert on ChannelAlert.
func (n *Notifier) NotifyAlert(ctx context.Context, e *model.Event) {
	n.Publish(ctx, ChannelAlert, e)
}

// NotifyMalfunction publishes a recorded malfunction on ChannelMalfunction.
func (n *Notifier) NotifyMalfunction(ctx context.Context, e *model.Event) {
	n.Publish(ctx, ChannelMalfunction, e)
}

// NotifyLog publishes a recorded device log on ChannelLog.
func (n *Notifier) NotifyLog(ctx context.Context, e *model.Event) {
	n.Publish(ctx, ChannelLog, e)
}

// NotifyEvent publishes e on the channel for its kind.
func (n *Notifier) NotifyEvent(ctx context.Context, e *model.Event) {
	switch e.Kind {
	case model.EventAlert:
		n.NotifyAlert(ctx, e)
	case model.EventMalfunction:
		n.NotifyMalfunction(ctx, e)
	case model.EventLog:
		n.NotifyLog(ctx, e)
	default:
		n.logger.Warn().Str("kind", string(e.Kind)).Msg("no notification channel for event kind")
	}
}

// Publish sends payload, encoded as JSON, on channel. When disconnected it
// makes one connection attempt first. Failures are logged and counted but
// never returned.
func (n *Notifier) Publish(ctx context.Context, channel string, payload any) {
	if n.dialer == nil {
		n.logger.Debug().Str("channel", channel).Msg("notification dropped: notifier disabled")
		n.count(channel, "disabled")
		return
	}

	data, err := json.Marshal(payload)
	if err != nil {
		n.logger.Error().Err(err).Str("channel", channel).Msg("encode notification")
		n.count(channel, "failed")
		return
	}

	conn, err := n.connect(ctx)
	if err != nil {
		n.logger.Warn().Err(err).Str("channel", channel).Msg("notification channel unavailable, notification dropped")
		n.count(channel, "unavailable")
		return
	}

	pctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), n.publishTimeout)
	defer cancel()
	if err := conn.Emit(pctx, channel, data); err != nil {
		n.drop(conn)
		n.logger.Warn().Err(err).Str("channel", channel).Msg("notification failed, connection reset")
		n.count(channel, "failed")
		return
	}
	n.count(channel, "sent")
}

// Close closes the current connection, if any.
func (n *Notifier) Close() error {
	n.mu.Lock()
	conn := n.conn
	n.conn = nil
	n.state = StateDisconnected
	n.mu.Unlock()

	if conn == nil {
		return nil
	}
	return conn.Close()
}

func (n *Notifier) current() Conn {
	n.mu.RLock()
	defer n.mu.RUnlock()
	if n.state == StateConnected {
		return n.conn
	}
	return nil
}

// connect returns the live connection, dialing once if there is none.
// Callers that waited on connectMu share the outcome of the attempt made
// while they waited: they pick up its connection, or fail with its error
// instead of dialing again.
func (n *Notifier) connect(ctx context.Context) (Conn, error) {
	if c := n.current(); c != nil {
		return c, nil
	}

	failures := n.dialFailures.Load()
	n.connectMu.Lock()
	defer n.connectMu.Unlock()
	if c := n.current(); c != nil {
		return c, nil
	}
	if n.dialFailures.Load() != failures {
		return nil, fmt.Errorf("%w: %w", ErrUnavailable, n.lastDialErr)
	}

	n.setState(StateConnecting, nil)
	dctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), n.dialTimeout)
	defer cancel()
	c, err := n.dialer.Dial(dctx)
	if err != nil {
		n.lastDialErr = err
		n.dialFailures.Add(1)
		n.setState(StateDisconnected, nil)
		return nil, err
	}
	n.setState(StateConnected, c)
	return c, nil
}

// drop forgets conn if it is still the current connection and closes it.
// A connection replaced by another publisher is left alone.
func (n *Notifier) drop(conn Conn) {
	n.mu.Lock()
	if n.conn != conn {
		n.mu.Unlock()
		return
	}
	n.conn = nil
	n.state = StateDisconnected
	n.mu.Unlock()

	if err := conn.Close(); err != nil {
		n.logger.Debug().Err(err).Msg("close notification connection")
	}
}

func (n *Notifier) setState(s State, c Conn) {
	n.mu.Lock()
	n.state = s
	n.conn = c
	n.mu.Unlock()
}

func (n *Notifier) count(channel, result string) {
	if n.published != nil {
		n.published.WithLabelValues(channel, result).Inc()
	}
}
