package conn

import (
	"context"
	"errors"
	"io"
	"net"
	"os"
	"sync"
	"sync/atomic"
	"time"
)

// Dialer opens stream connections. *net.Dialer satisfies it.
type Dialer interface {
	DialContext(ctx context.Context, network, address string) (net.Conn, error)
}

// Option configures a Manager.
type Option func(*Manager)

// WithDialer replaces the default TCP dialer.
func WithDialer(d Dialer) Option {
	return func(m *Manager) {
		if d != nil {
			m.dialer = d
		}
	}
}

// WithNetwork sets the network passed to the dialer ("tcp" by default).
func WithNetwork(network string) Option {
	return func(m *Manager) {
		if network != "" {
			m.network = network
		}
	}
}

// WithProbe sets how long EnsureConnected waits on a read to detect a
// collector that has closed its end of an established connection. Zero
// disables the check. The default is DefaultProbe.
func WithProbe(d time.Duration) Option {
	return func(m *Manager) {
		if d >= 0 {
			m.probe = d
		}
	}
}

// DefaultProbe is the default liveness probe window.
const DefaultProbe = time.Millisecond

// Manager owns a single outbound connection. All methods are safe for
// concurrent use; they serialize on one mutex guarding state transitions and
// the socket. State reads do not take the mutex, so a dial in progress is
// visible as StateConnecting.
type Manager struct {
	address string
	network string
	timeout time.Duration
	probe   time.Duration
	dialer  Dialer

	dials atomic.Uint64

	mu    sync.Mutex
	state atomic.Int32
	conn  net.Conn
}

// New creates a disconnected Manager for address. timeout bounds every dial
// and every Send; zero means no bound beyond the caller's context.
func New(address string, timeout time.Duration, opts ...Option) *Manager {
	m := &Manager{
		address: address,
		network: "tcp",
		timeout: timeout,
		probe:   DefaultProbe,
		dialer:  &net.Dialer{Timeout: timeout},
	}
	m.setState(StateDisconnected)
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Address returns the collector address.
func (m *Manager) Address() string { return m.address }

// State returns the current connection state.
func (m *Manager) State() State {
	return State(m.state.Load())
}

// Dials returns how many connections have been established so far.
func (m *Manager) Dials() uint64 { return m.dials.Load() }

func (m *Manager) setState(s State) {
	m.state.Store(int32(s))
}

// EnsureConnected dials the collector unless a live connection is already
// established. An established connection whose peer has gone away is dropped
// and redialed. A failed dial leaves the Manager disconnected and returns a
// *ConnectError.
func (m *Manager) EnsureConnected(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	switch m.State() {
	case StateClosed:
		return ErrClosed
	case StateConnected:
		if m.aliveLocked() {
			return nil
		}
		m.dropLocked()
	}

	m.setState(StateConnecting)
	dialCtx := ctx
	if m.timeout > 0 {
		var cancel context.CancelFunc
		dialCtx, cancel = context.WithTimeout(ctx, m.timeout)
		defer cancel()
	}

	c, err := m.dialer.DialContext(dialCtx, m.network, m.address)
	if err != nil {
		m.setState(StateDisconnected)
		return &ConnectError{Address: m.address, Err: err}
	}

	m.conn = c
	m.dials.Add(1)
	m.setState(StateConnected)
	return nil
}

// aliveLocked reports whether the peer still has its end open. Collectors
// never write to us, so a read that times out means alive; EOF or a reset
// means the next write would vanish into a dead socket.
func (m *Manager) aliveLocked() bool {
	if m.probe <= 0 {
		return true
	}
	if err := m.conn.SetReadDeadline(time.Now().Add(m.probe)); err != nil {
		return false
	}
	var buf [64]byte
	_, err := m.conn.Read(buf[:])
	if err == nil {
		return true
	}
	return errors.Is(err, os.ErrDeadlineExceeded)
}

// Send writes all of b to the connection, retrying short writes. Any error
// closes the socket, leaves the Manager disconnected and is returned as a
// *WriteError.
func (m *Manager) Send(ctx context.Context, b []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	switch m.State() {
	case StateClosed:
		return ErrClosed
	case StateConnected:
	default:
		return ErrNotConnected
	}

	if err := ctx.Err(); err != nil {
		return err
	}

	if err := m.conn.SetWriteDeadline(m.deadline(ctx)); err != nil {
		m.dropLocked()
		return &WriteError{Address: m.address, Err: err}
	}

	written := 0
	for written < len(b) {
		n, err := m.conn.Write(b[written:])
		written += n
		if err != nil {
			m.dropLocked()
			return &WriteError{Address: m.address, Written: written, Err: err}
		}
		if n == 0 {
			m.dropLocked()
			return &WriteError{Address: m.address, Written: written, Err: io.ErrShortWrite}
		}
	}
	return nil
}

// Disconnect drops the current connection, if any. The Manager may connect
// again afterwards.
func (m *Manager) Disconnect() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.State() == StateClosed {
		return
	}
	m.dropLocked()
}

// Close releases the connection and moves to StateClosed. Calling Close more
// than once is a no-op.
func (m *Manager) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.State() == StateClosed {
		return nil
	}
	var err error
	if m.conn != nil {
		err = m.conn.Close()
		m.conn = nil
	}
	m.setState(StateClosed)
	return err
}

func (m *Manager) dropLocked() {
	if m.conn != nil {
		_ = m.conn.Close()
		m.conn = nil
	}
	m.setState(StateDisconnected)
}

// deadline returns the earlier of now+timeout and the context deadline. The
// zero time clears any deadline.
func (m *Manager) deadline(ctx context.Context) time.Time {
	var d time.Time
	if m.timeout > 0 {
		d = time.Now().Add(m.timeout)
	}
	if cd, ok := ctx.Deadline(); ok && (d.IsZero() || cd.Before(d)) {
		d = cd
	}
	return d
}
