package conn

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net"
	"os"
	"sync"
	"syscall"
	"testing"
	"time"

	"github.com/bft-labs/socketship/pkg/collector"
)

// fakeConn is a net.Conn whose writes are scripted.
type fakeConn struct {
	mu       sync.Mutex
	buf      bytes.Buffer
	maxWrite int   // bytes accepted per Write call; 0 means all
	failAt   int   // fail once this many bytes were written; 0 disables
	writeErr error // error returned when failAt is reached
	readErr  error // error returned by Read; nil means deadline exceeded
	closed   bool
}

func (c *fakeConn) Write(b []byte) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return 0, net.ErrClosed
	}
	n := len(b)
	if c.maxWrite > 0 && n > c.maxWrite {
		n = c.maxWrite
	}
	if c.failAt > 0 && c.buf.Len()+n >= c.failAt {
		n = c.failAt - c.buf.Len()
		c.buf.Write(b[:n])
		return n, c.writeErr
	}
	c.buf.Write(b[:n])
	return n, nil
}

func (c *fakeConn) Read([]byte) (int, error) {
	if c.readErr != nil {
		return 0, c.readErr
	}
	return 0, os.ErrDeadlineExceeded
}

func (c *fakeConn) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	return nil
}

func (c *fakeConn) isClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

func (c *fakeConn) LocalAddr() net.Addr              { return &net.TCPAddr{} }
func (c *fakeConn) RemoteAddr() net.Addr             { return &net.TCPAddr{} }
func (c *fakeConn) SetDeadline(time.Time) error      { return nil }
func (c *fakeConn) SetReadDeadline(time.Time) error  { return nil }
func (c *fakeConn) SetWriteDeadline(time.Time) error { return nil }

// fakeDialer hands out the queued conns, or err when the queue is empty.
type fakeDialer struct {
	mu    sync.Mutex
	conns []*fakeConn
	err   error
	calls int
}

func (d *fakeDialer) DialContext(ctx context.Context, network, address string) (net.Conn, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.calls++
	if len(d.conns) == 0 {
		if d.err != nil {
			return nil, d.err
		}
		return nil, syscall.ECONNREFUSED
	}
	c := d.conns[0]
	d.conns = d.conns[1:]
	return c, nil
}

func TestState_String(t *testing.T) {
	tests := []struct {
		state State
		want  string
	}{
		{StateDisconnected, "Disconnected"},
		{StateConnecting, "Connecting"},
		{StateConnected, "Connected"},
		{StateClosed, "Closed"},
		{State(42), "Unknown"},
	}
	for _, tt := range tests {
		if got := tt.state.String(); got != tt.want {
			t.Errorf("State(%d).String() = %s, want %s", tt.state, got, tt.want)
		}
	}
}

func TestManager_EnsureConnected(t *testing.T) {
	c := &fakeConn{}
	d := &fakeDialer{conns: []*fakeConn{c}}
	m := New("collector:3456", time.Second, WithDialer(d))

	if m.State() != StateDisconnected {
		t.Fatalf("initial state = %v", m.State())
	}
	if err := m.EnsureConnected(context.Background()); err != nil {
		t.Fatalf("EnsureConnected: %v", err)
	}
	if m.State() != StateConnected {
		t.Errorf("state = %v, want Connected", m.State())
	}

	// A live connection is reused.
	if err := m.EnsureConnected(context.Background()); err != nil {
		t.Fatalf("second EnsureConnected: %v", err)
	}
	if d.calls != 1 || m.Dials() != 1 {
		t.Errorf("dial calls = %d, Dials() = %d, want 1", d.calls, m.Dials())
	}
}

func TestManager_EnsureConnected_Failure(t *testing.T) {
	d := &fakeDialer{}
	m := New("collector:3456", time.Second, WithDialer(d))

	err := m.EnsureConnected(context.Background())
	var ce *ConnectError
	if !errors.As(err, &ce) {
		t.Fatalf("err = %v, want *ConnectError", err)
	}
	if !errors.Is(err, syscall.ECONNREFUSED) {
		t.Errorf("err should wrap ECONNREFUSED: %v", err)
	}
	if ce.Address != "collector:3456" {
		t.Errorf("Address = %q", ce.Address)
	}
	if m.State() != StateDisconnected {
		t.Errorf("state = %v, want Disconnected", m.State())
	}
	if d.calls != 1 {
		t.Errorf("dial calls = %d, EnsureConnected must not retry", d.calls)
	}
}

func TestManager_EnsureConnected_RedialsDeadPeer(t *testing.T) {
	dead := &fakeConn{}
	fresh := &fakeConn{}
	d := &fakeDialer{conns: []*fakeConn{dead, fresh}}
	m := New("collector:3456", time.Second, WithDialer(d))

	if err := m.EnsureConnected(context.Background()); err != nil {
		t.Fatalf("EnsureConnected: %v", err)
	}
	dead.readErr = io.EOF

	if err := m.EnsureConnected(context.Background()); err != nil {
		t.Fatalf("EnsureConnected after peer close: %v", err)
	}
	if !dead.isClosed() {
		t.Error("dead connection should be closed")
	}
	if m.Dials() != 2 {
		t.Errorf("Dials() = %d, want 2", m.Dials())
	}
	if err := m.Send(context.Background(), []byte("x\n")); err != nil {
		t.Fatalf("Send: %v", err)
	}
	if fresh.buf.String() != "x\n" {
		t.Errorf("fresh conn got %q", fresh.buf.String())
	}
}

func TestManager_Send_ShortWrites(t *testing.T) {
	c := &fakeConn{maxWrite: 3}
	m := New("collector:3456", time.Second, WithDialer(&fakeDialer{conns: []*fakeConn{c}}))
	if err := m.EnsureConnected(context.Background()); err != nil {
		t.Fatalf("EnsureConnected: %v", err)
	}

	payload := []byte("{\"eventid\": \"cowrie.session.connect\"}\n")
	if err := m.Send(context.Background(), payload); err != nil {
		t.Fatalf("Send: %v", err)
	}
	if !bytes.Equal(c.buf.Bytes(), payload) {
		t.Errorf("wrote %q, want %q", c.buf.Bytes(), payload)
	}
}

func TestManager_Send_Failure(t *testing.T) {
	c := &fakeConn{failAt: 5, writeErr: syscall.EPIPE}
	m := New("collector:3456", time.Second, WithDialer(&fakeDialer{conns: []*fakeConn{c}}))
	if err := m.EnsureConnected(context.Background()); err != nil {
		t.Fatalf("EnsureConnected: %v", err)
	}

	err := m.Send(context.Background(), []byte("0123456789\n"))
	var we *WriteError
	if !errors.As(err, &we) {
		t.Fatalf("err = %v, want *WriteError", err)
	}
	if !errors.Is(err, syscall.EPIPE) {
		t.Errorf("err should wrap EPIPE: %v", err)
	}
	if we.Written != 5 {
		t.Errorf("Written = %d, want 5", we.Written)
	}
	if !c.isClosed() {
		t.Error("socket must be closed after a write failure")
	}
	if m.State() != StateDisconnected {
		t.Errorf("state = %v, want Disconnected", m.State())
	}
	if err := m.Send(context.Background(), []byte("x")); !errors.Is(err, ErrNotConnected) {
		t.Errorf("Send after failure = %v, want ErrNotConnected", err)
	}
}

func TestManager_Send_CanceledContext(t *testing.T) {
	c := &fakeConn{}
	m := New("collector:3456", time.Second, WithDialer(&fakeDialer{conns: []*fakeConn{c}}))
	if err := m.EnsureConnected(context.Background()); err != nil {
		t.Fatalf("EnsureConnected: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := m.Send(ctx, []byte("x\n")); !errors.Is(err, context.Canceled) {
		t.Fatalf("Send = %v, want context.Canceled", err)
	}
	if m.State() != StateConnected || c.isClosed() {
		t.Error("a canceled send must not tear down the connection")
	}
}

func TestManager_Close_Idempotent(t *testing.T) {
	c := &fakeConn{}
	m := New("collector:3456", time.Second, WithDialer(&fakeDialer{conns: []*fakeConn{c}}))
	if err := m.EnsureConnected(context.Background()); err != nil {
		t.Fatalf("EnsureConnected: %v", err)
	}

	if err := m.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if err := m.Close(); err != nil {
		t.Fatalf("second Close: %v", err)
	}
	if !c.isClosed() {
		t.Error("socket should be closed")
	}
	if m.State() != StateClosed {
		t.Errorf("state = %v, want Closed", m.State())
	}
	if err := m.EnsureConnected(context.Background()); !errors.Is(err, ErrClosed) {
		t.Errorf("EnsureConnected after Close = %v, want ErrClosed", err)
	}
	if err := m.Send(context.Background(), []byte("x")); !errors.Is(err, ErrClosed) {
		t.Errorf("Send after Close = %v, want ErrClosed", err)
	}
	m.Disconnect()
	if m.State() != StateClosed {
		t.Errorf("Disconnect must not leave Closed, got %v", m.State())
	}
}

func TestManager_RealCollector(t *testing.T) {
	col, err := collector.Listen("127.0.0.1:0")
	if err != nil {
		t.Fatalf("Listen: %v", err)
	}
	defer col.Close()

	m := New(col.Addr(), 2*time.Second)
	defer m.Close()

	ctx := context.Background()
	if err := m.EnsureConnected(ctx); err != nil {
		t.Fatalf("EnsureConnected: %v", err)
	}
	if err := m.Send(ctx, []byte("{\"n\": 1}\n")); err != nil {
		t.Fatalf("Send: %v", err)
	}

	select {
	case f := <-col.Frames():
		if string(f.Raw) != `{"n": 1}` {
			t.Errorf("frame = %q", f.Raw)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("collector received nothing")
	}

	// The collector hangs up; the next EnsureConnected notices and redials.
	col.DropConnections()
	waitFor(t, func() bool {
		if err := m.EnsureConnected(ctx); err != nil {
			t.Fatalf("EnsureConnected after drop: %v", err)
		}
		return m.Dials() == 2
	})
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatal("condition not met in time")
		}
		time.Sleep(10 * time.Millisecond)
	}
}
