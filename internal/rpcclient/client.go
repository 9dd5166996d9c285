// Package rpcclient provides a JSON-RPC 2.0 client for the orbital daemon.
package rpcclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/Klingon-tech/orbital-wallet/internal/broker"
	"github.com/Klingon-tech/orbital-wallet/internal/rpc"
	"github.com/Klingon-tech/orbital-wallet/internal/token"
	"github.com/Klingon-tech/orbital-wallet/internal/txengine"
)

// Client is a JSON-RPC 2.0 HTTP client. It talks to the capability
// endpoint at the root and to the surface endpoint at /surface.
type Client struct {
	base string
	http *http.Client
}

// New creates a new RPC client targeting the daemon's base URL.
func New(endpoint string) *Client {
	return NewWithTimeout(endpoint, 10*time.Second)
}

// NewWithTimeout creates a new RPC client with a custom HTTP timeout.
// Capability calls that wait for a decision need a generous one.
func NewWithTimeout(endpoint string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	if !strings.Contains(endpoint, "://") {
		endpoint = "http://" + endpoint
	}
	return &Client{
		base: strings.TrimRight(endpoint, "/"),
		http: &http.Client{
			Timeout: timeout,
		},
	}
}

// request is a JSON-RPC 2.0 request.
type request struct {
	JSONRPC string `json:"jsonrpc"`
	Method  string `json:"method"`
	Params  any    `json:"params,omitempty"`
	ID      int    `json:"id"`
}

// response is a JSON-RPC 2.0 response.
type response struct {
	JSONRPC string          `json:"jsonrpc"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *rpcError       `json:"error,omitempty"`
	ID      int             `json:"id"`
}

// rpcError is a JSON-RPC 2.0 error.
type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// RPCError is returned when the server responds with an error.
type RPCError struct {
	Code    int
	Message string
}

func (e *RPCError) Error() string {
	return fmt.Sprintf("rpc error %d: %s", e.Code, e.Message)
}

// Call invokes a method on the path and unmarshals the result into the
// provided pointer. If result is nil, the response result is discarded.
func (c *Client) Call(ctx context.Context, path, method string, params, result any) error {
	return c.call(ctx, path, "", method, params, result)
}

// call is Call with an optional Origin header.
func (c *Client) call(ctx context.Context, path, origin, method string, params, result any) error {
	req := request{
		JSONRPC: "2.0",
		Method:  method,
		Params:  params,
		ID:      1,
	}

	body, err := json.Marshal(req)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.base+path, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if origin != "" {
		httpReq.Header.Set("Origin", origin)
	}

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("http status %s", resp.Status)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	var rpcResp response
	if err := json.Unmarshal(data, &rpcResp); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}

	if rpcResp.Error != nil {
		return &RPCError{
			Code:    rpcResp.Error.Code,
			Message: rpcResp.Error.Message,
		}
	}

	if result != nil && rpcResp.Result != nil {
		if err := json.Unmarshal(rpcResp.Result, result); err != nil {
			return fmt.Errorf("decode result: %w", err)
		}
	}

	return nil
}

// Envelope is a capability result with its data left raw.
type Envelope struct {
	Type    string          `json:"type"`
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data,omitempty"`
	Error   string          `json:"error,omitempty"`
}

// Capability invokes a capability as origin.
func (c *Client) Capability(ctx context.Context, origin broker.Origin, method string, data any) (*Envelope, error) {
	params := map[string]any{"origin": origin}
	if data != nil {
		params["data"] = data
	}
	var env Envelope
	if err := c.call(ctx, "/", "https://"+origin.Domain, method, params, &env); err != nil {
		return nil, err
	}
	return &env, nil
}

func (c *Client) surface(ctx context.Context, method string, params, result any) error {
	return c.Call(ctx, "/surface", method, params, result)
}

// Status returns the wallet summary.
func (c *Client) Status(ctx context.Context) (*rpc.Status, error) {
	var st rpc.Status
	if err := c.surface(ctx, rpc.SurfaceStatus, nil, &st); err != nil {
		return nil, err
	}
	return &st, nil
}

// Pending lists the requests awaiting a decision.
func (c *Client) Pending(ctx context.Context) (*rpc.PendingResult, error) {
	var res rpc.PendingResult
	if err := c.surface(ctx, rpc.SurfacePending, nil, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

// Record returns the stored payload of the pending kind.
func (c *Client) Record(ctx context.Context, kind broker.Kind) (*broker.Request, error) {
	var req broker.Request
	if err := c.surface(ctx, rpc.SurfaceRecord, map[string]broker.Kind{"kind": kind}, &req); err != nil {
		return nil, err
	}
	return &req, nil
}

// Decide answers a pending request and returns the request's result.
func (c *Client) Decide(ctx context.Context, d broker.Decision) (json.RawMessage, error) {
	var res json.RawMessage
	if err := c.surface(ctx, rpc.SurfaceDecide, d, &res); err != nil {
		return nil, err
	}
	return res, nil
}

// SurfaceClosed dismisses everything the surface was showing.
func (c *Client) SurfaceClosed(ctx context.Context, surfaceID string) error {
	return c.surface(ctx, rpc.SurfaceClosed, rpc.SurfaceParam{SurfaceID: surfaceID}, nil)
}

// Create creates a wallet, or restores one when mnemonic is set. It returns
// the mnemonic in use.
func (c *Client) Create(ctx context.Context, password, mnemonic string) (string, error) {
	var res rpc.CreateResult
	if err := c.surface(ctx, rpc.SurfaceCreate, rpc.CreateParam{Password: password, Mnemonic: mnemonic}, &res); err != nil {
		return "", err
	}
	return res.Mnemonic, nil
}

// Unlock opens a session.
func (c *Client) Unlock(ctx context.Context, password string) (*rpc.Status, error) {
	var st rpc.Status
	if err := c.surface(ctx, rpc.SurfaceUnlock, rpc.PasswordParam{Password: password}, &st); err != nil {
		return nil, err
	}
	return &st, nil
}

// Lock ends the session.
func (c *Client) Lock(ctx context.Context) error {
	return c.surface(ctx, rpc.SurfaceLock, nil, nil)
}

// SetNetwork switches the active network.
func (c *Client) SetNetwork(ctx context.Context, network string) (*rpc.Status, error) {
	var st rpc.Status
	if err := c.surface(ctx, rpc.SurfaceSetNetwork, rpc.NetworkParam{Network: network}, &st); err != nil {
		return nil, err
	}
	return &st, nil
}

// Sync refreshes the ledgers from the indexer.
func (c *Client) Sync(ctx context.Context) (*rpc.Status, error) {
	var st rpc.Status
	if err := c.surface(ctx, rpc.SurfaceSync, nil, &st); err != nil {
		return nil, err
	}
	return &st, nil
}

// Tokens lists the fungible token holdings.
func (c *Client) Tokens(ctx context.Context) ([]*token.Token, error) {
	var tokens []*token.Token
	if err := c.surface(ctx, rpc.SurfaceTokens, nil, &tokens); err != nil {
		return nil, err
	}
	return tokens, nil
}

// SendToken transfers amount of the token ref to an address.
func (c *Client) SendToken(ctx context.Context, p rpc.SendTokenParam) (*txengine.SendResult, error) {
	var res txengine.SendResult
	if err := c.surface(ctx, rpc.SurfaceSendToken, p, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

// Whitelist lists the connected origins.
func (c *Client) Whitelist(ctx context.Context) ([]broker.Origin, error) {
	var list []broker.Origin
	if err := c.surface(ctx, rpc.SurfaceWhitelist, nil, &list); err != nil {
		return nil, err
	}
	return list, nil
}

// RemoveOrigin disconnects a domain.
func (c *Client) RemoveOrigin(ctx context.Context, domain string) (bool, error) {
	var removed bool
	if err := c.surface(ctx, rpc.SurfaceRemoveOrigin, broker.Origin{Domain: domain}, &removed); err != nil {
		return false, err
	}
	return removed, nil
}

// Preferences returns the user settings.
func (c *Client) Preferences(ctx context.Context) (*rpc.Preferences, error) {
	var prefs rpc.Preferences
	if err := c.surface(ctx, rpc.SurfacePreferences, nil, &prefs); err != nil {
		return nil, err
	}
	return &prefs, nil
}

// SetPreferences applies an update and returns the new settings.
func (c *Client) SetPreferences(ctx context.Context, u rpc.PreferencesUpdate) (*rpc.Preferences, error) {
	var prefs rpc.Preferences
	if err := c.surface(ctx, rpc.SurfaceSetPreferences, u, &prefs); err != nil {
		return nil, err
	}
	return &prefs, nil
}
