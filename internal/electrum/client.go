// Package electrum is a JSON-RPC client for ElectrumX indexers reached over
// a websocket.
package electrum

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	klog "github.com/Klingon-tech/orbital-wallet/internal/log"
)

const (
	// defaultRequestTimeout is the default timeout for ElectrumX requests.
	defaultRequestTimeout = 30 * time.Second

	// notificationBuffer bounds queued subscription updates.
	notificationBuffer = 64

	methodSubscribe = "blockchain.scripthash.subscribe"
)

var (
	// ErrNotConnected is returned when no connection is open.
	ErrNotConnected = errors.New("electrum: not connected")

	// ErrClosed is returned after Close.
	ErrClosed = errors.New("electrum: client closed")
)

// ServerError is an error object returned by the server.
type ServerError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (e *ServerError) Error() string {
	return fmt.Sprintf("electrum error %d: %s", e.Code, e.Message)
}

// StatusUpdate is a scripthash status change pushed by the server.
type StatusUpdate struct {
	ScriptHash string
	Status     string
}

type request struct {
	JSONRPC string `json:"jsonrpc"`
	ID      uint64 `json:"id"`
	Method  string `json:"method"`
	Params  []any  `json:"params"`
}

// message is any frame the server sends: a response or a notification.
type message struct {
	ID     *uint64         `json:"id"`
	Result json.RawMessage `json:"result"`
	Error  *ServerError    `json:"error"`
	Method string          `json:"method"`
	Params json.RawMessage `json:"params"`
}

// conn is one live websocket connection and its in-flight calls.
type conn struct {
	ws      *websocket.Conn
	writeMu sync.Mutex
	mu      sync.Mutex
	pending map[uint64]chan *message
	done    chan struct{}
}

// Client talks to one ElectrumX endpoint at a time. Subscriptions survive
// reconnects and endpoint changes.
type Client struct {
	mu       sync.Mutex
	endpoint string
	cur      *conn
	subs     map[string]struct{}
	closed   bool

	nextID  atomic.Uint64
	timeout time.Duration
	dialer  *websocket.Dialer
	updates chan StatusUpdate
	logger  zerolog.Logger
	wg      sync.WaitGroup
}

// New creates a client for endpoint. Call Connect to dial.
func New(endpoint string) *Client {
	return &Client{
		endpoint: endpoint,
		subs:     make(map[string]struct{}),
		timeout:  defaultRequestTimeout,
		dialer:   websocket.DefaultDialer,
		updates:  make(chan StatusUpdate, notificationBuffer),
		logger:   klog.Electrum,
	}
}

// SetTimeout changes the per-request timeout.
func (c *Client) SetTimeout(d time.Duration) {
	if d > 0 {
		c.timeout = d
	}
}

// Endpoint returns the current endpoint URL.
func (c *Client) Endpoint() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.endpoint
}

// Updates delivers scripthash status changes. Updates are dropped when the
// channel is full; consumers resync on the next one anyway.
func (c *Client) Updates() <-chan StatusUpdate {
	return c.updates
}

// IsConnected reports whether a connection is open.
func (c *Client) IsConnected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.cur == nil {
		return false
	}
	select {
	case <-c.cur.done:
		return false
	default:
		return true
	}
}

// Connect dials the endpoint and re-registers every subscription.
func (c *Client) Connect(ctx context.Context) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrClosed
	}
	endpoint := c.endpoint
	c.mu.Unlock()

	ws, _, err := c.dialer.DialContext(ctx, endpoint, nil)
	if err != nil {
		return fmt.Errorf("dial %s: %w", endpoint, err)
	}
	cn := &conn{
		ws:      ws,
		pending: make(map[uint64]chan *message),
		done:    make(chan struct{}),
	}

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		ws.Close()
		return ErrClosed
	}
	old := c.cur
	c.cur = cn
	subs := make([]string, 0, len(c.subs))
	for sh := range c.subs {
		subs = append(subs, sh)
	}
	c.mu.Unlock()

	if old != nil {
		old.ws.Close()
	}

	c.wg.Add(1)
	go c.readLoop(cn)

	c.logger.Info().Str("endpoint", endpoint).Msg("Connected to indexer")

	for _, sh := range subs {
		if _, err := c.Subscribe(ctx, sh); err != nil {
			return fmt.Errorf("resubscribe %s: %w", sh, err)
		}
	}
	return nil
}

// ChangeEndpoint tears down the current connection, dials endpoint and
// re-registers all subscriptions.
func (c *Client) ChangeEndpoint(ctx context.Context, endpoint string) error {
	c.mu.Lock()
	c.endpoint = endpoint
	old := c.cur
	c.cur = nil
	c.mu.Unlock()

	if old != nil {
		old.ws.Close()
	}
	return c.Connect(ctx)
}

// Close shuts the connection and stops the read loop.
func (c *Client) Close() error {
	c.mu.Lock()
	c.closed = true
	cur := c.cur
	c.cur = nil
	c.mu.Unlock()

	var err error
	if cur != nil {
		err = cur.ws.Close()
	}
	c.wg.Wait()
	return err
}

// Call invokes method and decodes the result into result, which may be nil.
func (c *Client) Call(ctx context.Context, method string, params []any, result any) error {
	c.mu.Lock()
	cn := c.cur
	closed := c.closed
	c.mu.Unlock()
	if closed {
		return ErrClosed
	}
	if cn == nil {
		return ErrNotConnected
	}
	if params == nil {
		params = []any{}
	}

	id := c.nextID.Add(1)
	ch := make(chan *message, 1)
	cn.mu.Lock()
	cn.pending[id] = ch
	cn.mu.Unlock()
	defer func() {
		cn.mu.Lock()
		delete(cn.pending, id)
		cn.mu.Unlock()
	}()

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	cn.writeMu.Lock()
	if dl, ok := ctx.Deadline(); ok {
		_ = cn.ws.SetWriteDeadline(dl)
	}
	err := cn.ws.WriteJSON(request{JSONRPC: "2.0", ID: id, Method: method, Params: params})
	cn.writeMu.Unlock()
	if err != nil {
		return fmt.Errorf("%s: write: %w", method, err)
	}

	select {
	case msg := <-ch:
		if msg.Error != nil {
			return msg.Error
		}
		if result == nil {
			return nil
		}
		if err := json.Unmarshal(msg.Result, result); err != nil {
			return fmt.Errorf("%s: decode result: %w", method, err)
		}
		return nil
	case <-cn.done:
		return fmt.Errorf("%s: %w", method, ErrNotConnected)
	case <-ctx.Done():
		return fmt.Errorf("%s: %w", method, ctx.Err())
	}
}

func (c *Client) readLoop(cn *conn) {
	defer c.wg.Done()
	defer close(cn.done)

	for {
		_, data, err := cn.ws.ReadMessage()
		if err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				c.logger.Debug().Err(err).Msg("Indexer connection closed")
			}
			return
		}

		var msg message
		if err := json.Unmarshal(data, &msg); err != nil {
			c.logger.Debug().Err(err).Msg("Malformed indexer frame")
			continue
		}

		if msg.ID != nil {
			cn.mu.Lock()
			ch, ok := cn.pending[*msg.ID]
			cn.mu.Unlock()
			if !ok {
				continue
			}
			select {
			case ch <- &msg:
			default:
				c.logger.Debug().Uint64("id", *msg.ID).Msg("Dropping duplicate indexer response")
			}
			continue
		}

		if msg.Method == methodSubscribe {
			c.handleStatus(msg.Params)
		}
	}
}

func (c *Client) handleStatus(raw json.RawMessage) {
	var params []*string
	if err := json.Unmarshal(raw, &params); err != nil || len(params) < 1 || params[0] == nil {
		c.logger.Debug().Msg("Malformed status notification")
		return
	}
	upd := StatusUpdate{ScriptHash: *params[0]}
	if len(params) > 1 && params[1] != nil {
		upd.Status = *params[1]
	}
	select {
	case c.updates <- upd:
	default:
		c.logger.Debug().Str("scripthash", upd.ScriptHash).Msg("Dropped status update")
	}
}
