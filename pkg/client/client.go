package client

import (
	"context"
	"crypto/tls"
	"errors"
	"net"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/celerix-dev/celerix-store/pkg/domain"
	"github.com/celerix-dev/celerix-store/pkg/protocol"
)

// State is the connection state of a Client.
type State int32

const (
	Disconnected State = iota
	Connecting
	Connected
)

func (s State) String() string {
	switch s {
	case Disconnected:
		return "disconnected"
	case Connecting:
		return "connecting"
	case Connected:
		return "connected"
	default:
		return "unknown"
	}
}

var errNoResponse = errors.New("client: no response within deadline")

// Client is a resilient connection to one server. Safe for concurrent
// use; concurrent calls share the connection.
type Client struct {
	cfg Config

	ctx    context.Context // canceled by Close
	cancel context.CancelFunc

	mu        sync.Mutex
	state     State
	cur       *conn
	changed   chan struct{} // closed on every state change
	dialing   bool
	attempted bool // at least one dial attempt has finished
	failures  int  // consecutive connections that failed before a response
	closed    bool

	wg sync.WaitGroup
}

// New returns a Client that connects on first use.
func New(cfg Config) (*Client, error) {
	cfg, err := cfg.withDefaults()
	if err != nil {
		return nil, err
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Client{
		cfg:     cfg,
		ctx:     ctx,
		cancel:  cancel,
		changed: make(chan struct{}),
	}, nil
}

// Dial returns a Client that is already connected, or an error when the
// first connection attempt fails.
func Dial(ctx context.Context, cfg Config) (*Client, error) {
	c, err := New(cfg)
	if err != nil {
		return nil, err
	}
	nc, err := c.dial(ctx)
	c.mu.Lock()
	c.attempted = true
	c.mu.Unlock()
	if err != nil {
		c.Close()
		return nil, domain.ErrDisconnected.WithDetailsf("dial %s: %v", c.cfg.Addr, err).WithCause(err)
	}
	c.install(nc)
	return c, nil
}

// State returns the current connection state.
func (c *Client) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Addr returns the server address.
func (c *Client) Addr() string { return c.cfg.Addr }

func (c *Client) dial(ctx context.Context) (net.Conn, error) {
	nd := &net.Dialer{Timeout: c.cfg.DialTimeout, KeepAlive: 30 * time.Second}
	if c.cfg.TLSConfig != nil {
		td := &tls.Dialer{NetDialer: nd, Config: c.cfg.TLSConfig}
		return td.DialContext(ctx, "tcp", c.cfg.Addr)
	}
	return nd.DialContext(ctx, "tcp", c.cfg.Addr)
}

// setState must be called with mu held.
func (c *Client) setState(s State) {
	if c.state == s {
		return
	}
	c.state = s
	close(c.changed)
	c.changed = make(chan struct{})
}

// startReconnect must be called with mu held.
func (c *Client) startReconnect() {
	if c.closed || c.dialing || c.state == Connected {
		return
	}
	c.dialing = true
	c.wg.Add(1)
	go c.reconnectLoop(c.failures)
}

func (c *Client) reconnectLoop(n int) {
	defer c.wg.Done()
	log := c.cfg.Logger.With("addr", c.cfg.Addr)

	for {
		if n > 0 {
			delay := backoff(c.cfg.BaseBackoff, c.cfg.MaxBackoff, n-1)
			log.Debug("reconnect backoff", "attempt", n, "delay", delay)
			t := time.NewTimer(delay)
			select {
			case <-t.C:
			case <-c.ctx.Done():
				t.Stop()
				c.stopDialing()
				return
			}
		}

		c.mu.Lock()
		c.setState(Connecting)
		c.mu.Unlock()

		ctx, cancel := context.WithTimeout(c.ctx, c.cfg.DialTimeout)
		nc, err := c.dial(ctx)
		cancel()
		if err != nil {
			if c.ctx.Err() != nil {
				c.stopDialing()
				return
			}
			if n == 0 {
				log.Warn("store server unreachable, reconnecting", "error", err)
			} else {
				log.Debug("reconnect attempt failed", "attempt", n, "error", err)
			}
			c.mu.Lock()
			c.attempted = true
			c.setState(Disconnected)
			c.mu.Unlock()
			n++
			continue
		}

		if c.install(nc) {
			log.Info("connected to store server", "attempts", n+1)
		}
		return
	}
}

func (c *Client) stopDialing() {
	c.mu.Lock()
	c.dialing = false
	c.mu.Unlock()
}

// install makes nc the current connection and starts its reader. It
// returns false if the client was closed meanwhile.
func (c *Client) install(nc net.Conn) bool {
	cn := newConn(nc, c.cfg.Logger)

	c.mu.Lock()
	defer c.mu.Unlock()
	c.dialing = false
	c.attempted = true
	if c.closed {
		_ = nc.Close()
		return false
	}
	c.cur = cn
	c.setState(Connected)

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		c.fail(cn, cn.readLoop(c.cfg.MaxFrameSize))
	}()
	return true
}

// fail tears cn down and, if it was current, starts reconnecting.
func (c *Client) fail(cn *conn, cause error) {
	cn.close(cause)

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.cur != cn {
		return
	}
	c.cur = nil
	if c.closed {
		return
	}
	if cn.healthy.Load() {
		c.failures = 0
	} else {
		c.failures++
	}
	c.cfg.Logger.Warn("store connection lost", "addr", c.cfg.Addr, "error", cause)
	c.setState(Disconnected)
	c.startReconnect()
}

// acquire returns the current connection, waiting for a reconnect unless
// FailFast is set.
func (c *Client) acquire(ctx context.Context) (*conn, error) {
	for {
		c.mu.Lock()
		if c.closed {
			c.mu.Unlock()
			return nil, domain.ErrClosed
		}
		if c.cur != nil {
			cn := c.cur
			c.mu.Unlock()
			return cn, nil
		}
		c.startReconnect()
		if c.cfg.FailFast && c.attempted {
			c.mu.Unlock()
			return nil, domain.ErrDisconnected.WithDetailsf("not connected to %s", c.cfg.Addr)
		}
		changed := c.changed
		c.mu.Unlock()

		select {
		case <-changed:
		case <-ctx.Done():
			if errors.Is(ctx.Err(), context.DeadlineExceeded) {
				return nil, domain.ErrDisconnected.WithDetailsf("not connected to %s before deadline", c.cfg.Addr).WithCause(ctx.Err())
			}
			return nil, ctx.Err()
		}
	}
}

// call sends one operation, retrying transport failures where allowed.
func (c *Client) call(ctx context.Context, op protocol.Op, payload []byte, args ...string) (*protocol.Response, error) {
	retry := c.cfg.RetryReads
	if !op.Idempotent() {
		retry = c.cfg.RetryWrites
	}

	for attempt := 0; ; attempt++ {
		resp, err := c.once(ctx, op, payload, args)
		if err == nil {
			return resp, nil
		}
		if !retry || attempt >= c.cfg.MaxRetries || !domain.IsTransport(err) || ctx.Err() != nil {
			return nil, err
		}
		c.cfg.Logger.Debug("retrying request", "op", op, "attempt", attempt+1, "error", err)
	}
}

func (c *Client) once(ctx context.Context, op protocol.Op, payload []byte, args []string) (*protocol.Response, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if c.cfg.RequestTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.cfg.RequestTimeout)
		defer cancel()
	}

	cn, err := c.acquire(ctx)
	if err != nil {
		return nil, err
	}

	id := ulid.Make().String()
	req := protocol.NewRequest(op, id, args...)
	if payload != nil {
		req.WithPayload(payload)
	}

	ch := cn.register(id)
	if ch == nil {
		return nil, c.connErr(cn)
	}
	deadline, _ := ctx.Deadline()
	if err := cn.send(req, deadline); err != nil {
		cn.unregister(id)
		var netErr net.Error
		if errors.As(err, &netErr) && netErr.Timeout() {
			c.fail(cn, err)
			return nil, domain.ErrTimeout.WithDetailsf("%s %s: write timed out", op, id).WithCause(err)
		}
		c.fail(cn, err)
		return nil, domain.ErrDisconnected.Wrap(err)
	}

	select {
	case resp := <-ch:
		cn.healthy.Store(true)
		return resp, nil
	case <-cn.done:
		select {
		case resp := <-ch:
			return resp, nil
		default:
		}
		return nil, c.connErr(cn)
	case <-ctx.Done():
		cn.unregister(id)
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			c.fail(cn, errNoResponse)
			return nil, domain.ErrTimeout.WithDetailsf("%s %s: no response within deadline", op, id)
		}
		return nil, ctx.Err()
	}
}

// connErr maps the teardown cause of cn to the error a caller sees.
func (c *Client) connErr(cn *conn) error {
	c.mu.Lock()
	closed := c.closed
	c.mu.Unlock()
	if closed {
		return domain.ErrClosed
	}
	cause := cn.cause()
	if errors.Is(cause, domain.ErrServerBusy) {
		return cause
	}
	return domain.ErrDisconnected.Wrap(cause)
}

// Close closes the connection and stops reconnecting. Later calls fail
// with domain.ErrClosed.
func (c *Client) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	cn := c.cur
	c.cur = nil
	c.setState(Disconnected)
	c.mu.Unlock()

	c.cancel()
	if cn != nil {
		cn.close(domain.ErrClosed)
	}
	c.wg.Wait()
	return nil
}
