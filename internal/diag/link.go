package diag

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"sync"
	"time"

	"github.com/google/uuid"
)

// State is the lifecycle state of a Link.
type State int

const (
	StateListening State = iota
	StateConnected
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateListening:
		return "listening"
	case StateConnected:
		return "connected"
	case StateClosed:
		return "closed"
	}
	return fmt.Sprintf("state(%d)", int(s))
}

// Peer identifies one accepted companion connection.
type Peer struct {
	ID   string // session id, unique per accepted connection
	Addr string
}

// Handler receives decoded messages and state changes from a Link. Methods
// are called from the peer reader goroutine and must not block indefinitely.
type Handler interface {
	HandleMessage(p Peer, msg Message)
	HandleState(s State, p Peer)
}

// sendTimeout bounds a single command write.
const sendTimeout = 5 * time.Second

// Link owns the companion listener and at most one live peer connection.
type Link struct {
	ln net.Listener

	mu     sync.Mutex
	state  State
	cur    *peerConn
	closed bool
}

type peerConn struct {
	Peer
	conn    net.Conn
	writeMu sync.Mutex
	done    chan struct{}
}

// Listen binds the companion listener on addr (e.g. ":6000").
func Listen(addr string) (*Link, error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("listen %s: %w", addr, err)
	}
	slog.Info("link listening", "addr", ln.Addr().String())
	return &Link{ln: ln, state: StateListening}, nil
}

// Addr returns the bound listener address.
func (l *Link) Addr() net.Addr { return l.ln.Addr() }

// State returns the current link state.
func (l *Link) State() State {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.state
}

// Connected reports whether a peer is attached.
func (l *Link) Connected() bool { return l.State() == StateConnected }

// Serve accepts companions until ctx is cancelled or Close is called, in
// which case it returns nil. A peer arriving while another is connected
// replaces it once the old reader has exited. Accept failures are returned.
func (l *Link) Serve(ctx context.Context, h Handler) error {
	stop := context.AfterFunc(ctx, func() { l.Close() })
	defer stop()

	for {
		conn, err := l.ln.Accept()
		if err != nil {
			if l.isClosed() || errors.Is(err, net.ErrClosed) {
				return nil
			}
			return fmt.Errorf("accept: %w", err)
		}
		l.attach(conn, h)
	}
}

// attach tears down the current peer, if any, and starts reading conn.
func (l *Link) attach(conn net.Conn, h Handler) {
	l.mu.Lock()
	prev := l.cur
	l.mu.Unlock()
	if prev != nil {
		slog.Info("replacing companion", "old", prev.Addr, "new", conn.RemoteAddr().String())
		prev.conn.Close()
		<-prev.done
	}

	p := &peerConn{
		Peer: Peer{ID: uuid.NewString(), Addr: conn.RemoteAddr().String()},
		conn: conn,
		done: make(chan struct{}),
	}

	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		conn.Close()
		return
	}
	l.cur = p
	l.state = StateConnected
	l.mu.Unlock()

	slog.Info("companion connected", "peer", p.Addr, "session", p.ID)
	h.HandleState(StateConnected, p.Peer)
	go l.read(p, h)
}

func (l *Link) read(p *peerConn, h Handler) {
	defer close(p.done)
	defer func() {
		p.conn.Close()
		l.mu.Lock()
		if l.cur == p {
			l.cur = nil
			if !l.closed {
				l.state = StateListening
			}
		}
		state := l.state
		l.mu.Unlock()
		slog.Info("companion disconnected", "peer", p.Addr, "session", p.ID)
		h.HandleState(state, p.Peer)
	}()

	buf := make([]byte, ReadBufferSize)
	for {
		n, err := p.conn.Read(buf)
		if n > 0 {
			for _, line := range SplitChunk(buf[:n]) {
				slog.Debug("received", "peer", p.Addr, "msg", line)
				msg, err := Decode(line)
				if err != nil {
					if errors.Is(err, ErrNoStatus) {
						slog.Debug("dropping message", "peer", p.Addr, "err", err)
					} else {
						slog.Warn("dropping message", "peer", p.Addr, "err", err)
					}
					continue
				}
				h.HandleMessage(p.Peer, msg)
			}
		}
		if err != nil {
			if !errors.Is(err, io.EOF) && !errors.Is(err, net.ErrClosed) {
				slog.Debug("companion read error", "peer", p.Addr, "err", err)
			}
			return
		}
	}
}

// Send asks the companion to run the test wireID. It is fire-and-forget:
// with no peer, or on a write error, it only logs.
func (l *Link) Send(wireID string) {
	l.mu.Lock()
	p := l.cur
	l.mu.Unlock()
	if p == nil {
		slog.Warn("command not sent: no companion connected", "test", wireID)
		return
	}

	p.writeMu.Lock()
	defer p.writeMu.Unlock()
	p.conn.SetWriteDeadline(time.Now().Add(sendTimeout))
	if _, err := p.conn.Write(EncodeCommand(wireID)); err != nil {
		slog.Warn("command send failed", "test", wireID, "peer", p.Addr, "err", err)
		return
	}
	slog.Info("command sent", "test", wireID, "peer", p.Addr)
}

// Close releases the listener, disconnects the live peer and waits for its
// reader to exit. Safe to call more than once.
func (l *Link) Close() error {
	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return nil
	}
	l.closed = true
	l.state = StateClosed
	p := l.cur
	l.mu.Unlock()

	err := l.ln.Close()
	if p != nil {
		p.conn.Close()
		<-p.done
	}
	slog.Info("link closed")
	return err
}

func (l *Link) isClosed() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.closed
}
