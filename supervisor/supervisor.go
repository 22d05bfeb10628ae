// Package supervisor owns the lifecycle of backend channels.
//
// The supervisor is the only component that transitions a persistent
// connection between states; everything else reads a snapshot through
// Acquire. A connection failure degrades the channel, fails its in-flight
// requests, and starts one bounded reconnect round (exponential backoff,
// capped interval, capped attempts). Nothing is replayed after recovery;
// callers retry explicitly. A periodic health tick restarts reconnect rounds
// for connections that exhausted their bound, so a later call sees either a
// recovered channel or an immediate unavailable error, never an unbounded
// wait.
package supervisor

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v5"

	"github.com/HaD0Yun/godot-mcp/channel"
)

// ErrKindRegistered is returned when registering a duplicate channel kind.
var ErrKindRegistered = errors.New("channel kind already registered")

// ErrUnknownKind is returned when acquiring a kind that was never registered.
var ErrUnknownKind = errors.New("unknown channel kind")

// Default lifecycle tuning. All of it is overridable through Config.
const (
	DefaultHealthInterval   = 15 * time.Second
	DefaultReconnectInitial = 250 * time.Millisecond
	DefaultReconnectMax     = 5 * time.Second
	DefaultReconnectRetries = 8
)

// Config configures a Supervisor.
type Config struct {
	// HealthInterval is the period of the resurrection tick. Default 15s.
	HealthInterval time.Duration

	// ReconnectInitial is the first backoff interval. Default 250ms.
	ReconnectInitial time.Duration

	// ReconnectMax caps the backoff interval. Default 5s.
	ReconnectMax time.Duration

	// ReconnectRetries caps connect attempts per reconnect round. Default 8.
	ReconnectRetries uint

	// Logger is an optional logger for lifecycle events.
	Logger channel.Logger
}

func (c *Config) applyDefaults() {
	if c.HealthInterval <= 0 {
		c.HealthInterval = DefaultHealthInterval
	}
	if c.ReconnectInitial <= 0 {
		c.ReconnectInitial = DefaultReconnectInitial
	}
	if c.ReconnectMax <= 0 {
		c.ReconnectMax = DefaultReconnectMax
	}
	if c.ReconnectRetries == 0 {
		c.ReconnectRetries = DefaultReconnectRetries
	}
	if c.Logger == nil {
		c.Logger = channel.NopLogger{}
	}
}

// Supervisor manages channel lifecycle independent of individual calls.
type Supervisor struct {
	cfg Config
	log channel.Logger

	mu           sync.Mutex
	channels     map[channel.Kind]channel.Channel
	persistent   map[channel.Kind]channel.Persistent
	reconnecting map[channel.Kind]bool

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New creates a supervisor with the given configuration.
func New(cfg Config) *Supervisor {
	cfg.applyDefaults()
	return &Supervisor{
		cfg:          cfg,
		log:          cfg.Logger,
		channels:     make(map[channel.Kind]channel.Channel),
		persistent:   make(map[channel.Kind]channel.Persistent),
		reconnecting: make(map[channel.Kind]bool),
	}
}

// Register adds a channel. Persistent connections are singletons per kind.
func (s *Supervisor) Register(c channel.Channel) error {
	if c == nil {
		return errors.New("channel is nil")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	kind := c.Kind()
	if _, exists := s.channels[kind]; exists {
		return fmt.Errorf("%w: %s", ErrKindRegistered, kind)
	}
	s.channels[kind] = c
	if p, ok := c.(channel.Persistent); ok {
		s.persistent[kind] = p
	}
	return nil
}

// snapshotLocked copies the registered channels. Caller holds s.mu.
func (s *Supervisor) snapshotLocked() []channel.Channel {
	out := make([]channel.Channel, 0, len(s.channels))
	for _, c := range s.channels {
		out = append(out, c)
	}
	return out
}

// Start validates every channel, brings persistent connections up, and
// launches the health tick. A persistent backend that is down at startup
// leaves its channel Disconnected for the health tick; Start does not fail
// the whole bridge over it.
func (s *Supervisor) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.ctx != nil {
		s.mu.Unlock()
		return errors.New("supervisor already started")
	}
	s.ctx, s.cancel = context.WithCancel(context.WithoutCancel(ctx))
	channels := s.snapshotLocked()
	s.mu.Unlock()

	for _, c := range channels {
		if err := c.Start(ctx); err != nil {
			return fmt.Errorf("start %s channel: %w", c.Kind(), err)
		}
	}

	s.mu.Lock()
	persistent := make([]channel.Persistent, 0, len(s.persistent))
	for _, p := range s.persistent {
		persistent = append(persistent, p)
	}
	s.mu.Unlock()

	for _, p := range persistent {
		kind := p.Kind()
		p.OnDisconnect(func(err error) { s.onDisconnect(kind, err) })

		p.Transition(channel.Connecting)
		if err := p.Connect(ctx); err != nil {
			p.Transition(channel.Disconnected)
			s.log.Warn("channel down at startup", "kind", kind, "error", err)
			continue
		}
		p.Transition(channel.Ready)
		s.log.Info("channel connected", "kind", kind)
	}

	s.wg.Add(1)
	go s.healthLoop()
	return nil
}

// Stop tears every channel down. Persistent connections are destroyed only
// here.
func (s *Supervisor) Stop() error {
	s.mu.Lock()
	if s.cancel != nil {
		s.cancel()
	}
	channels := s.snapshotLocked()
	s.mu.Unlock()

	var firstErr error
	for _, c := range channels {
		if p, ok := c.(channel.Persistent); ok {
			p.Transition(channel.Closed)
		}
		if err := c.Stop(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	s.wg.Wait()
	return firstErr
}

// Acquire returns the channel for kind if it is Ready, failing fast
// otherwise. No silent queueing behind a reconnect.
func (s *Supervisor) Acquire(kind channel.Kind) (channel.Channel, error) {
	s.mu.Lock()
	c, ok := s.channels[kind]
	s.mu.Unlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownKind, kind)
	}
	if st := c.State(); st != channel.Ready {
		return nil, fmt.Errorf("%w: %s channel is %s", channel.ErrUnavailable, kind, st)
	}
	return c, nil
}

// States returns a state snapshot per registered kind, sorted for
// deterministic output.
func (s *Supervisor) States() map[channel.Kind]channel.State {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[channel.Kind]channel.State, len(s.channels))
	for kind, c := range s.channels {
		out[kind] = c.State()
	}
	return out
}

// EventSources returns the registered channels that emit events, in lexical
// kind order.
func (s *Supervisor) EventSources() []channel.EventSource {
	s.mu.Lock()
	defer s.mu.Unlock()
	kinds := make([]channel.Kind, 0, len(s.persistent))
	for kind := range s.persistent {
		kinds = append(kinds, kind)
	}
	sort.Slice(kinds, func(i, j int) bool { return kinds[i] < kinds[j] })
	out := make([]channel.EventSource, 0, len(kinds))
	for _, kind := range kinds {
		out = append(out, s.persistent[kind])
	}
	return out
}

// Kinds returns registered kinds in lexical order.
func (s *Supervisor) Kinds() []channel.Kind {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]channel.Kind, 0, len(s.channels))
	for kind := range s.channels {
		out = append(out, kind)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// onDisconnect handles a connection failure reported by a channel's read or
// write path: degrade, fail pending, start one bounded reconnect round.
func (s *Supervisor) onDisconnect(kind channel.Kind, cause error) {
	s.mu.Lock()
	p, ok := s.persistent[kind]
	if !ok || s.reconnecting[kind] || s.ctx == nil || s.ctx.Err() != nil {
		s.mu.Unlock()
		return
	}
	s.reconnecting[kind] = true
	s.mu.Unlock()

	s.log.Warn("channel degraded", "kind", kind, "error", cause)
	p.Transition(channel.Degraded)
	p.FailPending(fmt.Errorf("%w: %s connection lost", channel.ErrUnavailable, kind))
	if cc, ok := p.(interface{ CloseConn() error }); ok {
		_ = cc.CloseConn()
	}

	s.wg.Add(1)
	go s.reconnect(p)
}

// reconnect runs one bounded backoff round for a degraded connection.
func (s *Supervisor) reconnect(p channel.Persistent) {
	defer s.wg.Done()
	kind := p.Kind()
	defer func() {
		s.mu.Lock()
		s.reconnecting[kind] = false
		s.mu.Unlock()
	}()

	p.Transition(channel.Connecting)

	expo := backoff.NewExponentialBackOff()
	expo.InitialInterval = s.cfg.ReconnectInitial
	expo.MaxInterval = s.cfg.ReconnectMax

	_, err := backoff.Retry(s.ctx, func() (struct{}, error) {
		return struct{}{}, p.Connect(s.ctx)
	}, backoff.WithBackOff(expo), backoff.WithMaxTries(s.cfg.ReconnectRetries))

	// Stop can win the race against a connect attempt that was already in
	// flight when the context was cancelled. Re-check under the lock so a
	// late outcome never overwrites the Closed state Stop installed.
	s.mu.Lock()
	stopping := s.ctx.Err() != nil
	if !stopping {
		if err == nil {
			p.Transition(channel.Ready)
		} else {
			p.Transition(channel.Disconnected)
		}
	}
	s.mu.Unlock()

	if stopping {
		if cc, ok := p.(interface{ CloseConn() error }); ok {
			_ = cc.CloseConn()
		}
		return
	}
	if err != nil {
		// Out of attempts for this round; the health tick owns the next one.
		s.log.Error("reconnect round exhausted", "kind", kind, "error", err)
		return
	}
	s.log.Info("channel reconnected", "kind", kind)
}

// healthLoop periodically restarts reconnect rounds for connections that are
// down, so outages longer than one backoff round still recover.
func (s *Supervisor) healthLoop() {
	defer s.wg.Done()
	ticker := time.NewTicker(s.cfg.HealthInterval)
	defer ticker.Stop()

	for {
		select {
		case <-s.ctx.Done():
			return
		case <-ticker.C:
			s.mu.Lock()
			var down []channel.Persistent
			for kind, p := range s.persistent {
				if p.State() == channel.Disconnected && !s.reconnecting[kind] {
					s.reconnecting[kind] = true
					down = append(down, p)
				}
			}
			s.mu.Unlock()

			for _, p := range down {
				s.wg.Add(1)
				go s.reconnect(p)
			}
		}
	}
}
