package chat

import "sync"

// State tracks a connection's position in its lifecycle. Connecting covers
// the raw pre-auth connection, before any Session object exists. A Session
// is constructed once the nickname is accepted and starts Negotiating: the
// name is claimed but the shell channel has not signaled readiness yet.
// Run moves it to Active.
type State int

const (
	StateConnecting State = iota
	StateNegotiating
	StateActive
	StateClosing
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateNegotiating:
		return "negotiating"
	case StateActive:
		return "active"
	case StateClosing:
		return "closing"
	case StateClosed:
		return "closed"
	}
	return "unknown"
}

// Sink is the write-only capability used to show one rendered line to a
// connected party. The core never owns the rendering surface, only a
// reference to append to.
type Sink interface {
	AppendLine(line string) error
}

// LineReader yields submitted input lines; it fails when the underlying
// channel closes.
type LineReader interface {
	ReadLine() (string, error)
}

// Fallback terminal geometry, used until a PTY request arrives.
const (
	DefaultRows = 24
	DefaultCols = 80
)

// Quit commands recognized by the input loop.
const (
	cmdQuit = "/quit"
	cmdExit = "/exit"
)

// Session is one accepted connection's runtime state: its display name,
// terminal geometry, and output sink.
type Session struct {
	name string
	sink Sink

	mu    sync.Mutex
	rows  int
	cols  int
	state State
}

// NewSession constructs a session for an accepted nickname. It starts in
// Negotiating, the tail of the admission handshake, until Run takes over.
// Geometry starts at the 80x24 fallback until a PTY request supplies real
// values.
func NewSession(name string, sink Sink) *Session {
	return &Session{
		name:  name,
		sink:  sink,
		rows:  DefaultRows,
		cols:  DefaultCols,
		state: StateNegotiating,
	}
}

func (s *Session) Name() string { return s.name }

// Resize updates terminal geometry in place; window-change events do not
// affect the session state. Non-positive dimensions are ignored.
func (s *Session) Resize(rows, cols int) {
	if rows <= 0 || cols <= 0 {
		return
	}
	s.mu.Lock()
	s.rows, s.cols = rows, cols
	s.mu.Unlock()
}

func (s *Session) Size() (rows, cols int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rows, s.cols
}

func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *Session) setState(st State) {
	s.mu.Lock()
	s.state = st
	s.mu.Unlock()
}

// send delivers one rendered line to this member's sink.
func (s *Session) send(line string) error {
	return s.sink.AppendLine(line)
}

// Run drives the session from admission to teardown. It registers the
// session on entry to Active, then for each submitted line sanitizes,
// discards lines that come out empty, recognizes the quit commands, and
// broadcasts everything else with this session as author. It returns when
// the member quits or the channel closes; read errors are treated as a
// disconnect and never propagate. Unregistration runs exactly once on the
// way out, leaving the session Closed.
func (s *Session) Run(in LineReader, room *Router) {
	s.setState(StateActive)
	room.Register(s)
	defer func() {
		s.setState(StateClosing)
		room.Unregister(s)
		s.setState(StateClosed)
	}()

	for {
		line, err := in.ReadLine()
		if err != nil {
			return
		}
		msg := Sanitize(line)
		if msg == "" {
			continue
		}
		if msg == cmdQuit || msg == cmdExit {
			return
		}
		room.Broadcast(s, msg)
	}
}
