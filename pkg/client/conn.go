package client

import (
	"bufio"
	"errors"
	"io"
	"log/slog"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/celerix-dev/celerix-store/pkg/protocol"
)

// conn is one established connection. Requests may be in flight
// concurrently; responses are routed by id.
type conn struct {
	nc     net.Conn
	logger *slog.Logger

	wmu sync.Mutex
	bw  *bufio.Writer

	pmu     sync.Mutex
	pending map[string]chan *protocol.Response

	done      chan struct{}
	closeOnce sync.Once
	err       error // valid after done is closed

	// healthy is set once a response has been received.
	healthy atomic.Bool
}

func newConn(nc net.Conn, logger *slog.Logger) *conn {
	return &conn{
		nc:      nc,
		logger:  logger,
		bw:      bufio.NewWriter(nc),
		pending: make(map[string]chan *protocol.Response),
		done:    make(chan struct{}),
	}
}

// register reserves a response slot for id. It returns nil when the
// connection is already closed.
func (c *conn) register(id string) chan *protocol.Response {
	c.pmu.Lock()
	defer c.pmu.Unlock()
	select {
	case <-c.done:
		return nil
	default:
	}
	ch := make(chan *protocol.Response, 1)
	c.pending[id] = ch
	return ch
}

func (c *conn) unregister(id string) {
	c.pmu.Lock()
	delete(c.pending, id)
	c.pmu.Unlock()
}

// deliver hands resp to its waiter. Responses nobody waits for are
// dropped.
func (c *conn) deliver(resp *protocol.Response) {
	c.pmu.Lock()
	ch, ok := c.pending[resp.ID]
	delete(c.pending, resp.ID)
	c.pmu.Unlock()
	if !ok {
		c.logger.Debug("dropping response without waiter", "request_id", resp.ID)
		return
	}
	ch <- resp
}

func (c *conn) send(req *protocol.Request, deadline time.Time) error {
	c.wmu.Lock()
	defer c.wmu.Unlock()
	_ = c.nc.SetWriteDeadline(deadline)
	if err := protocol.WriteRequest(c.bw, req); err != nil {
		return err
	}
	return c.bw.Flush()
}

// readLoop routes responses until the connection fails.
func (c *conn) readLoop(maxFrame int) error {
	fr := protocol.NewReader(bufio.NewReader(c.nc), maxFrame)
	for {
		frame, err := fr.ReadFrame()
		if err != nil {
			return err
		}
		resp, err := protocol.ParseResponse(frame)
		if err != nil {
			return err
		}
		if resp.ID == "" {
			// Connection-level error (capacity, framing). The server
			// closes the connection after sending it.
			if rerr := resp.Err(); rerr != nil {
				return rerr
			}
			return errors.New("response without request id")
		}
		c.deliver(resp)
	}
}

// close tears the connection down once. Waiters observe done.
func (c *conn) close(cause error) {
	c.closeOnce.Do(func() {
		if cause == nil {
			cause = io.EOF
		}
		c.pmu.Lock()
		c.err = cause
		close(c.done)
		c.pending = map[string]chan *protocol.Response{}
		c.pmu.Unlock()
		_ = c.nc.Close()
	})
}

// cause returns the teardown reason. Only valid after done is closed.
func (c *conn) cause() error {
	c.pmu.Lock()
	defer c.pmu.Unlock()
	return c.err
}
