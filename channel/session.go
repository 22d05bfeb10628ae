package channel

import (
	"io"
	"net"
	"sync"
	"sync/atomic"
)

// Session carries the connection plumbing shared by the persistent channel
// kinds: state snapshot, serialized writes, event subscribers, and the
// disconnect callback the supervisor hooks into.
//
// Writes to a single connection are serialized to preserve frame integrity;
// reads happen on one loop per connection, so only writes need the lock.
type Session struct {
	kind Kind
	log  Logger

	state  atomic.Int32
	closed atomic.Bool
	onDown atomic.Value // func(error)

	writeMu sync.Mutex
	connMu  sync.Mutex
	conn    net.Conn

	subMu  sync.Mutex
	subs   map[int]EventHandler
	subSeq int
}

// NewSession creates session plumbing for the given kind.
func NewSession(kind Kind, log Logger) *Session {
	if log == nil {
		log = NopLogger{}
	}
	s := &Session{kind: kind, log: log, subs: make(map[int]EventHandler)}
	s.state.Store(int32(Disconnected))
	return s
}

// Kind returns the channel kind.
func (s *Session) Kind() Kind { return s.kind }

// Log returns the session logger.
func (s *Session) Log() Logger { return s.log }

// State returns a snapshot of the connection state.
func (s *Session) State() State { return State(s.state.Load()) }

// Transition sets the connection state. Supervisor use only.
func (s *Session) Transition(st State) { s.state.Store(int32(st)) }

// Subscribe registers an event handler and returns its removal function.
func (s *Session) Subscribe(fn EventHandler) func() {
	s.subMu.Lock()
	s.subSeq++
	id := s.subSeq
	s.subs[id] = fn
	s.subMu.Unlock()

	return func() {
		s.subMu.Lock()
		delete(s.subs, id)
		s.subMu.Unlock()
	}
}

// Emit delivers an event to every subscriber.
func (s *Session) Emit(ev Event) {
	ev.Channel = s.kind
	s.subMu.Lock()
	handlers := make([]EventHandler, 0, len(s.subs))
	for _, fn := range s.subs {
		handlers = append(handlers, fn)
	}
	s.subMu.Unlock()

	for _, fn := range handlers {
		fn(ev)
	}
}

// OnDisconnect sets the callback invoked when the connection fails. The
// supervisor wires this before Start.
func (s *Session) OnDisconnect(fn func(error)) { s.onDown.Store(fn) }

// ReportDown invokes the disconnect callback, unless the session was stopped
// deliberately.
func (s *Session) ReportDown(err error) {
	if s.closed.Load() {
		return
	}
	if fn, ok := s.onDown.Load().(func(error)); ok && fn != nil {
		fn(err)
	}
}

// SetConn installs a freshly dialed connection.
func (s *Session) SetConn(c net.Conn) {
	s.connMu.Lock()
	s.conn = c
	s.connMu.Unlock()
}

// Conn returns the current connection, or nil.
func (s *Session) Conn() net.Conn {
	s.connMu.Lock()
	defer s.connMu.Unlock()
	return s.conn
}

// CloseConn closes the current connection if any.
func (s *Session) CloseConn() error {
	s.connMu.Lock()
	c := s.conn
	s.conn = nil
	s.connMu.Unlock()
	if c == nil {
		return nil
	}
	return c.Close()
}

// Write sends one frame on the current connection using the given framing
// function, holding the write lock for the whole frame.
func (s *Session) Write(payload []byte, frame func(io.Writer, []byte) error) error {
	c := s.Conn()
	if c == nil {
		return ErrUnavailable
	}
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	return frame(c, payload)
}

// MarkClosed flags the session as deliberately stopped; subsequent read-loop
// errors are not reported as disconnects.
func (s *Session) MarkClosed() { s.closed.Store(true) }

// IsClosed reports whether the session was stopped.
func (s *Session) IsClosed() bool { return s.closed.Load() }
