package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"
)

// State is the channel connection state.
type State string

const (
	StateDisconnected State = "DISCONNECTED"
	StateConnecting   State = "CONNECTING"
	StateConnected    State = "CONNECTED"
	StateReconnecting State = "RECONNECTING"
	StateClosed       State = "CLOSED"
	StateError        State = "ERROR"
)

var (
	// ErrNotConnected is returned by Subscribe and Send when the
	// channel is not currently connected. There is no implicit
	// queueing; callers connect first.
	ErrNotConnected = errors.New("event channel not connected")
	// ErrDisconnected resolves a pending connect that was cancelled
	// by Disconnect or superseded by a newer Connect.
	ErrDisconnected = errors.New("event channel disconnected")
	// ErrRetriesExhausted resolves a pending connect once the
	// reconnect attempt cap is reached.
	ErrRetriesExhausted = errors.New("event channel reconnect attempts exhausted")
)

// Handler receives the JSON body of messages published on a topic.
type Handler func(body json.RawMessage)

// Subscription is a live topic registration.
type Subscription struct {
	ID      string
	Topic   string
	handler Handler
}

// Options configures a Channel.
type Options struct {
	// URL of the event bus endpoint.
	URL string
	// Dialer opens transport connections; defaults to WebsocketDialer.
	Dialer Dialer
	// MaxReconnectAttempts caps retries per connection loss; default 5.
	MaxReconnectAttempts int
	// BaseDelay is the first reconnect delay; default 1s. Delays
	// double per attempt up to MaxDelay (default 60s).
	BaseDelay time.Duration
	MaxDelay  time.Duration
	// Logger receives channel diagnostics; defaults to slog.Default().
	Logger *slog.Logger
	// OnConnected fires after every successful (re)connect.
	// Subscriptions are not replayed automatically, and registrations
	// from the previous connection survive a reconnect, so a bare
	// Subscribe from this hook hits the duplicate check and sends
	// nothing. Callers that need a subscription to survive reconnects
	// must Unsubscribe and then Subscribe again here.
	OnConnected func()
	// OnDisconnected fires when an established connection is lost or
	// closed by the peer.
	OnDisconnected func()
}

// Channel is a reconnecting publish/subscribe session. It holds at
// most one underlying transport connection at a time; a reconnect only
// starts after the prior connection reported closed or errored.
type Channel struct {
	opts   Options
	dialer Dialer
	log    *slog.Logger

	mu      sync.Mutex
	state   State
	conn    Conn
	subs    map[string]*Subscription
	epoch   uint64
	cancel  chan struct{}
	waiter  chan error
	started bool

	// Injectable for tests.
	sleep func(d time.Duration, cancel <-chan struct{}) bool
}

// NewChannel creates a Channel. It does not connect.
func NewChannel(opts Options) *Channel {
	if opts.Dialer == nil {
		opts.Dialer = WebsocketDialer
	}
	if opts.MaxReconnectAttempts <= 0 {
		opts.MaxReconnectAttempts = 5
	}
	if opts.BaseDelay <= 0 {
		opts.BaseDelay = time.Second
	}
	if opts.MaxDelay <= 0 {
		opts.MaxDelay = 60 * time.Second
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Channel{
		opts:   opts,
		dialer: opts.Dialer,
		log:    opts.Logger,
		state:  StateDisconnected,
		subs:   make(map[string]*Subscription),
		cancel: make(chan struct{}),
		sleep:  waitDelay,
	}
}

// State returns the current connection state.
func (c *Channel) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// ActiveSubscriptions returns the number of tracked topics.
func (c *Channel) ActiveSubscriptions() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.subs)
}

// Connect establishes the transport connection, retrying with
// exponential backoff on failure. It blocks until connected, the
// attempt cap is reached, the context is cancelled, or Disconnect is
// called. Calling Connect while a reconnect is pending cancels the
// pending timer and starts a fresh attempt.
func (c *Channel) Connect(ctx context.Context) error {
	c.mu.Lock()
	if c.state == StateConnected {
		c.mu.Unlock()
		return nil
	}
	c.started = true
	c.advanceEpochLocked(ErrDisconnected)
	c.state = StateConnecting
	waiter := make(chan error, 1)
	c.waiter = waiter
	epoch := c.epoch
	cancel := c.cancel
	c.mu.Unlock()

	go c.run(ctx, epoch, cancel)

	select {
	case err := <-waiter:
		return err
	case <-ctx.Done():
		c.Disconnect()
		return ctx.Err()
	}
}

// run dials until connected or the attempt cap is reached. retry 0 is
// the immediate dial; retries 1..max are preceded by backoff delays.
func (c *Channel) run(ctx context.Context, epoch uint64, cancel <-chan struct{}) {
	policy := c.newBackoff()

	for retry := 0; ; retry++ {
		conn, err := c.dialer(ctx, c.opts.URL)
		if c.staleEpoch(epoch) {
			if conn != nil {
				conn.Close()
			}
			return
		}

		if err == nil {
			c.mu.Lock()
			if c.epoch != epoch {
				c.mu.Unlock()
				conn.Close()
				return
			}
			c.conn = conn
			c.state = StateConnected
			waiter := c.waiter
			c.waiter = nil
			c.mu.Unlock()

			if waiter != nil {
				waiter <- nil
			}
			c.log.Info("event channel connected", "url", c.opts.URL)
			if c.opts.OnConnected != nil {
				c.opts.OnConnected()
			}
			go c.readLoop(epoch, conn)
			return
		}

		if retry >= c.opts.MaxReconnectAttempts {
			c.mu.Lock()
			if c.epoch != epoch {
				c.mu.Unlock()
				return
			}
			c.state = StateError
			waiter := c.waiter
			c.waiter = nil
			c.mu.Unlock()

			c.log.Error("event channel giving up", "attempts", retry, "error", err)
			if waiter != nil {
				waiter <- fmt.Errorf("%w (%d attempts): %v", ErrRetriesExhausted, retry, err)
			}
			return
		}

		c.setState(StateReconnecting)
		delay := policy.NextBackOff()
		c.log.Warn("event channel connect failed, retrying",
			"attempt", retry+1, "max", c.opts.MaxReconnectAttempts, "delay", delay, "error", err)
		if !c.sleep(delay, cancel) {
			return
		}
	}
}

func (c *Channel) readLoop(epoch uint64, conn Conn) {
	for {
		payload, err := conn.ReadMessage()
		if err != nil {
			if c.staleEpoch(epoch) {
				return
			}
			if errors.Is(err, ErrNormalClosure) {
				c.mu.Lock()
				if c.epoch != epoch {
					c.mu.Unlock()
					return
				}
				c.state = StateClosed
				c.conn = nil
				c.mu.Unlock()
				c.log.Info("event channel closed by peer")
				if c.opts.OnDisconnected != nil {
					c.opts.OnDisconnected()
				}
				return
			}

			c.mu.Lock()
			if c.epoch != epoch {
				c.mu.Unlock()
				return
			}
			c.state = StateReconnecting
			c.conn = nil
			cancel := c.cancel
			c.mu.Unlock()

			c.log.Warn("event channel connection lost", "error", err)
			if c.opts.OnDisconnected != nil {
				c.opts.OnDisconnected()
			}
			go c.run(context.Background(), epoch, cancel)
			return
		}

		c.dispatch(payload)
	}
}

// dispatch delivers message frames synchronously in receipt order.
// The handler is invoked without holding the channel lock so it may
// call back into Subscribe/Unsubscribe.
func (c *Channel) dispatch(payload []byte) {
	var frame Frame
	if err := json.Unmarshal(payload, &frame); err != nil {
		c.log.Warn("event channel dropping malformed frame", "error", err)
		return
	}
	if frame.Type != frameMessage {
		return
	}

	c.mu.Lock()
	sub := c.subs[frame.Destination]
	c.mu.Unlock()

	if sub == nil {
		c.log.Debug("no subscription for topic", "topic", frame.Destination)
		return
	}
	sub.handler(frame.Body)
}

// Subscribe registers handler for topic. At most one subscription per
// topic exists: subscribing to an already-tracked topic returns the
// existing registration and the new handler is never invoked. The
// channel must be connected; there is no subscribe queueing.
func (c *Channel) Subscribe(topic string, handler Handler) (*Subscription, error) {
	c.mu.Lock()
	if c.state != StateConnected || c.conn == nil {
		c.mu.Unlock()
		return nil, ErrNotConnected
	}
	if existing, ok := c.subs[topic]; ok {
		c.mu.Unlock()
		c.log.Debug("already subscribed", "topic", topic)
		return existing, nil
	}

	sub := &Subscription{ID: uuid.NewString(), Topic: topic, handler: handler}
	if err := c.writeLocked(Frame{Type: frameSubscribe, ID: sub.ID, Destination: topic}); err != nil {
		c.mu.Unlock()
		return nil, err
	}
	c.subs[topic] = sub
	c.mu.Unlock()
	return sub, nil
}

// Unsubscribe drops the topic registration and releases the bus-side
// subscription when connected. Unknown topics are a no-op returning
// false.
func (c *Channel) Unsubscribe(topic string) bool {
	c.mu.Lock()
	sub, ok := c.subs[topic]
	if !ok {
		c.mu.Unlock()
		return false
	}
	delete(c.subs, topic)
	if c.state == StateConnected && c.conn != nil {
		if err := c.writeLocked(Frame{Type: frameUnsubscribe, ID: sub.ID, Destination: topic}); err != nil {
			c.log.Warn("unsubscribe frame not sent", "topic", topic, "error", err)
		}
	}
	c.mu.Unlock()
	return true
}

// Send serializes body and publishes it to destination. There is no
// outbound queue: a call while not connected is dropped with an error.
func (c *Channel) Send(destination string, body any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != StateConnected || c.conn == nil {
		c.log.Error("send dropped: channel not connected", "destination", destination)
		return ErrNotConnected
	}
	return c.writeLocked(Frame{Type: frameSend, ID: uuid.NewString(), Destination: destination, Body: payload})
}

// Disconnect cancels all subscriptions, unblocks any pending connect,
// and tears the transport down unconditionally. It is idempotent; on a
// channel that was never connected it is a no-op.
func (c *Channel) Disconnect() {
	c.mu.Lock()
	if !c.started {
		c.mu.Unlock()
		c.log.Debug("channel not initialized, nothing to disconnect")
		return
	}

	for topic, sub := range c.subs {
		if c.state == StateConnected && c.conn != nil {
			if err := c.writeLocked(Frame{Type: frameUnsubscribe, ID: sub.ID, Destination: topic}); err != nil {
				c.log.Debug("unsubscribe frame not sent during disconnect", "topic", topic)
			}
		}
	}
	c.subs = make(map[string]*Subscription)

	c.advanceEpochLocked(ErrDisconnected)
	conn := c.conn
	c.conn = nil
	c.state = StateDisconnected
	c.mu.Unlock()

	if conn != nil {
		conn.Close()
	}
}

// advanceEpochLocked invalidates the current connection attempt:
// pending retry timers stop, late transport callbacks become no-ops,
// and any pending connect waiter resolves with reason.
func (c *Channel) advanceEpochLocked(reason error) {
	c.epoch++
	close(c.cancel)
	c.cancel = make(chan struct{})
	if c.waiter != nil {
		c.waiter <- reason
		c.waiter = nil
	}
}

func (c *Channel) staleEpoch(epoch uint64) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.epoch != epoch
}

func (c *Channel) setState(state State) {
	c.mu.Lock()
	c.state = state
	c.mu.Unlock()
}

// writeLocked marshals and writes a frame; callers hold c.mu so frame
// writes are serialized.
func (c *Channel) writeLocked(frame Frame) error {
	payload, err := json.Marshal(frame)
	if err != nil {
		return err
	}
	return c.conn.WriteMessage(payload)
}

func (c *Channel) newBackoff() *backoff.ExponentialBackOff {
	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = c.opts.BaseDelay
	policy.RandomizationFactor = 0
	policy.Multiplier = 2
	policy.MaxInterval = c.opts.MaxDelay
	policy.MaxElapsedTime = 0
	policy.Reset()
	return policy
}

func waitDelay(d time.Duration, cancel <-chan struct{}) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return true
	case <-cancel:
		return false
	}
}
