// Package collector implements a minimal receiver for newline-delimited JSON
// streams: it accepts connections, splits each stream on '\n' and hands every
// frame to the caller over a channel.
//
// It is the counterpart of the shipper used by `socketship listen` and by the
// shipper's own tests. Bytes left over without a delimiter when a connection
// ends are never delivered as a frame; they are counted in Partial.
package collector

import (
	"bufio"
	"bytes"
	"encoding/json"
	"net"
	"sync"
	"sync/atomic"
)

// Frame is one line received from a shipper.
type Frame struct {
	// Raw is the frame without its delimiter.
	Raw []byte
	// Event is Raw decoded as a JSON object. Nil when Err is set.
	Event map[string]any
	// Err reports a frame that is not a JSON object.
	Err error
	// Remote is the sender's address.
	Remote string
}

// Option configures a Collector.
type Option func(*Collector)

// WithBuffer sets the capacity of the Frames channel (default 1024).
func WithBuffer(n int) Option {
	return func(c *Collector) {
		if n >= 0 {
			c.bufSize = n
		}
	}
}

// Collector accepts shipper connections on one listener.
type Collector struct {
	ln      net.Listener
	bufSize int

	frames   chan Frame
	accepted chan string
	done     chan struct{}

	mu    sync.Mutex
	conns map[net.Conn]struct{}

	partial   atomic.Int64
	wg        sync.WaitGroup
	closeOnce sync.Once
}

// Listen starts a collector on address ("127.0.0.1:0" picks a free port).
func Listen(address string, opts ...Option) (*Collector, error) {
	ln, err := net.Listen("tcp", address)
	if err != nil {
		return nil, err
	}
	return Serve(ln, opts...), nil
}

// Serve runs a collector on an existing listener. The collector owns ln.
func Serve(ln net.Listener, opts ...Option) *Collector {
	c := &Collector{
		ln:      ln,
		bufSize: 1024,
		conns:   make(map[net.Conn]struct{}),
		done:    make(chan struct{}),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.frames = make(chan Frame, c.bufSize)
	c.accepted = make(chan string, 64)

	c.wg.Add(1)
	go c.acceptLoop()
	return c
}

// Addr returns the listening address.
func (c *Collector) Addr() string { return c.ln.Addr().String() }

// Frames delivers received frames in arrival order per connection. It is
// closed after Close.
func (c *Collector) Frames() <-chan Frame { return c.frames }

// Accepted delivers the remote address of every accepted connection.
// Notifications are dropped if nobody reads them.
func (c *Collector) Accepted() <-chan string { return c.accepted }

// Partial returns the number of bytes discarded because a connection ended
// in the middle of a frame.
func (c *Collector) Partial() int64 { return c.partial.Load() }

// DropConnections closes every open connection while keeping the listener,
// as a collector restart that loses its sockets would.
func (c *Collector) DropConnections() {
	c.mu.Lock()
	defer c.mu.Unlock()
	for conn := range c.conns {
		_ = conn.Close()
	}
}

// Close stops accepting, closes open connections and waits for readers to
// finish before closing Frames.
func (c *Collector) Close() error {
	var err error
	c.closeOnce.Do(func() {
		close(c.done)
		err = c.ln.Close()
		c.DropConnections()
		c.wg.Wait()
		close(c.frames)
	})
	return err
}

func (c *Collector) acceptLoop() {
	defer c.wg.Done()
	for {
		conn, err := c.ln.Accept()
		if err != nil {
			return
		}

		c.mu.Lock()
		select {
		case <-c.done:
			c.mu.Unlock()
			_ = conn.Close()
			return
		default:
		}
		c.conns[conn] = struct{}{}
		c.wg.Add(1)
		c.mu.Unlock()

		select {
		case c.accepted <- conn.RemoteAddr().String():
		default:
		}

		go c.readLoop(conn)
	}
}

func (c *Collector) readLoop(conn net.Conn) {
	defer c.wg.Done()
	defer func() {
		c.mu.Lock()
		delete(c.conns, conn)
		c.mu.Unlock()
		_ = conn.Close()
	}()

	remote := conn.RemoteAddr().String()
	r := bufio.NewReader(conn)
	for {
		line, err := r.ReadBytes('\n')
		if err != nil {
			if len(line) > 0 {
				c.partial.Add(int64(len(line)))
			}
			return
		}

		f := Frame{Raw: bytes.TrimSuffix(line, []byte{'\n'}), Remote: remote}
		if jerr := json.Unmarshal(f.Raw, &f.Event); jerr != nil {
			f.Event = nil
			f.Err = jerr
		}

		select {
		case c.frames <- f:
		case <-c.done:
			return
		}
	}
}
