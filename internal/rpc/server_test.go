package rpc

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"

	"github.com/Klingon-tech/orbital-wallet/config"
	"github.com/Klingon-tech/orbital-wallet/internal/broker"
	"github.com/Klingon-tech/orbital-wallet/internal/settings"
	"github.com/Klingon-tech/orbital-wallet/internal/storage"
	"github.com/Klingon-tech/orbital-wallet/internal/token"
	"github.com/Klingon-tech/orbital-wallet/internal/txengine"
	"github.com/Klingon-tech/orbital-wallet/internal/wallet"
)

const (
	testPassword = "correcthorsebattery"
	testOrigin   = "app.example"
)

type fakeBackend struct {
	mu          sync.Mutex
	unlocked    bool
	network     string
	balance     uint64
	autoApprove bool
	touches     int
	executed    []*broker.Request
}

func (f *fakeBackend) Status() *Status {
	f.mu.Lock()
	defer f.mu.Unlock()
	return &Status{HasWallet: true, Unlocked: f.unlocked, Network: f.network, Balance: f.balance}
}

func (f *fakeBackend) Touch() {
	f.mu.Lock()
	f.touches++
	f.mu.Unlock()
}

func (f *fakeBackend) isUnlocked() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.unlocked
}

func (f *fakeBackend) PubKeys() (*PubKeys, error) {
	if !f.isUnlocked() {
		return nil, wallet.ErrLocked
	}
	return &PubKeys{IdentityPubKey: "02id", WalletPubKey: "02wallet"}, nil
}

func (f *fakeBackend) Addresses() (*Addresses, error) {
	if !f.isUnlocked() {
		return nil, wallet.ErrLocked
	}
	return &Addresses{Address: "1Wallet", IdentityAddress: "1Identity"}, nil
}

func (f *fakeBackend) Balance() (uint64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.balance, nil
}

func (f *fakeBackend) Tokens() ([]*token.Token, error) {
	return []*token.Token{{Ticker: "GLY", Name: "Glyph", Balance: 5}}, nil
}

func (f *fakeBackend) PaymentUtxos() ([]PaymentUtxo, error) {
	return []PaymentUtxo{{Value: 1000, TxID: "aa", Vout: 1}}, nil
}

func (f *fakeBackend) SocialProfile() (*settings.SocialProfile, error) {
	return &settings.SocialProfile{DisplayName: "satoshi"}, nil
}

func (f *fakeBackend) ExchangeRate(context.Context) (float64, error) {
	return 0.0012, nil
}

func (f *fakeBackend) AutoApproves(json.RawMessage) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.autoApprove && f.unlocked
}

func (f *fakeBackend) Execute(_ context.Context, req *broker.Request, password string) (any, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !req.IsAuthorized || req.Kind == broker.KindConnect {
		if password != testPassword {
			return nil, wallet.ErrUnauthorized
		}
	}
	f.executed = append(f.executed, req)
	switch req.Kind {
	case broker.KindConnect:
		f.unlocked = true
		return "02id", nil
	case broker.KindSendCoins:
		return &txengine.SendResult{TxID: "feed"}, nil
	}
	return map[string]string{"kind": req.Kind.String()}, nil
}

func (f *fakeBackend) CreateWallet(password, mnemonic string) (string, error) {
	if password == "" {
		return "", txengine.ErrInvalidRequest
	}
	f.mu.Lock()
	f.unlocked = true
	f.mu.Unlock()
	if mnemonic == "" {
		mnemonic = "abandon ability able about above absent absorb abstract absurd abuse access accident"
	}
	return mnemonic, nil
}

func (f *fakeBackend) Unlock(password string) error {
	if password != testPassword {
		return wallet.ErrUnauthorized
	}
	f.mu.Lock()
	f.unlocked = true
	f.mu.Unlock()
	return nil
}

func (f *fakeBackend) Lock() {
	f.mu.Lock()
	f.unlocked = false
	f.mu.Unlock()
}

func (f *fakeBackend) SetNetwork(_ context.Context, network string) error {
	n, err := config.ParseNetwork(network)
	if err != nil {
		return err
	}
	f.mu.Lock()
	f.network = string(n)
	f.unlocked = false
	f.mu.Unlock()
	return nil
}

func (f *fakeBackend) Sync(context.Context) error { return nil }

func (f *fakeBackend) Preferences() (*Preferences, error) {
	return &Preferences{NoApprovalLimit: 100, PasswordRequired: true}, nil
}

func (f *fakeBackend) UpdatePreferences(u PreferencesUpdate) error {
	if u.Password != testPassword {
		return wallet.ErrUnauthorized
	}
	return nil
}

func (f *fakeBackend) SendToken(_ context.Context, ref, to string, amount uint64, password string) (*txengine.SendResult, error) {
	if password != testPassword {
		return nil, wallet.ErrUnauthorized
	}
	return &txengine.SendResult{TxID: "cafe"}, nil
}

type testEnv struct {
	server  *Server
	backend *fakeBackend
	broker  *broker.Broker
	url     string
}

func setupTestEnv(t *testing.T, cfg Config) *testEnv {
	t.Helper()
	backend := &fakeBackend{network: "mainnet", balance: 1234}
	b := broker.New(storage.NewMemory(), broker.Config{Executor: backend})
	s := New("127.0.0.1:0", backend, b, cfg)
	ts := httptest.NewServer(s.Handler())
	t.Cleanup(ts.Close)
	return &testEnv{server: s, backend: backend, broker: b, url: ts.URL}
}

type rawResponse struct {
	Result json.RawMessage `json:"result"`
	Error  *Error          `json:"error"`
}

func rpcCall(t *testing.T, url, method string, params any) rawResponse {
	t.Helper()
	return rpcCallFrom(t, url, "", method, params)
}

// rpcCallFrom posts a JSON-RPC request carrying origin as its Origin
// header. An empty origin sends no header.
func rpcCallFrom(t *testing.T, url, origin, method string, params any) rawResponse {
	t.Helper()
	body := map[string]any{"jsonrpc": "2.0", "method": method, "id": 1}
	if params != nil {
		body["params"] = params
	}
	data, err := json.Marshal(body)
	require.NoError(t, err)

	req, err := http.NewRequest(http.MethodPost, url, bytes.NewReader(data))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	if origin != "" {
		req.Header.Set("Origin", origin)
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var out rawResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return out
}

type envelope struct {
	Type    string          `json:"type"`
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   string          `json:"error"`
}

func (e *testEnv) capability(t *testing.T, method string, data any) envelope {
	t.Helper()
	params := map[string]any{"origin": broker.Origin{Domain: testOrigin}}
	if data != nil {
		params["data"] = data
	}
	resp := rpcCallFrom(t, e.url+"/", "https://"+testOrigin, method, params)
	require.Nil(t, resp.Error, "unexpected rpc error")
	var env envelope
	require.NoError(t, json.Unmarshal(resp.Result, &env))
	require.Equal(t, method, env.Type)
	return env
}

func (e *testEnv) surface(t *testing.T, method string, params any) rawResponse {
	t.Helper()
	return rpcCall(t, e.url+"/surface", method, params)
}

func (e *testEnv) connectOrigin(t *testing.T) {
	t.Helper()
	require.NoError(t, e.broker.Whitelist().Add(broker.Origin{Domain: testOrigin}))
}

func TestUnauthorizedOrigin(t *testing.T) {
	env := setupTestEnv(t, Config{})

	got := env.capability(t, "getBalance", nil)
	require.False(t, got.Success)
	require.Equal(t, "Unauthorized!", got.Error)
}

func TestMethodNotFound(t *testing.T) {
	env := setupTestEnv(t, Config{})

	resp := rpcCall(t, env.url+"/", "mine", map[string]any{"origin": broker.Origin{Domain: testOrigin}})
	require.NotNil(t, resp.Error)
	require.Equal(t, CodeMethodNotFound, resp.Error.Code)
}

func TestInvalidJSONRPCVersion(t *testing.T) {
	env := setupTestEnv(t, Config{})

	resp, err := http.Post(env.url+"/", "application/json", strings.NewReader(`{"jsonrpc":"1.0","method":"getNetwork","id":1}`))
	require.NoError(t, err)
	defer resp.Body.Close()
	var out rawResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	require.NotNil(t, out.Error)
	require.Equal(t, CodeInvalidRequest, out.Error.Code)
}

func TestOriginFromHeader(t *testing.T) {
	env := setupTestEnv(t, Config{})
	env.connectOrigin(t)

	req, err := http.NewRequest(http.MethodPost, env.url+"/", strings.NewReader(`{"jsonrpc":"2.0","method":"getNetwork","id":1}`))
	require.NoError(t, err)
	req.Header.Set("Origin", "https://"+testOrigin)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	var out rawResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	require.Nil(t, out.Error)
	var got envelope
	require.NoError(t, json.Unmarshal(out.Result, &got))
	require.True(t, got.Success)
	require.JSONEq(t, `"mainnet"`, string(got.Data))
}

func TestReadCapabilities(t *testing.T) {
	env := setupTestEnv(t, Config{})
	env.connectOrigin(t)

	got := env.capability(t, "getBalance", nil)
	require.True(t, got.Success)
	require.JSONEq(t, `1234`, string(got.Data))

	got = env.capability(t, "getPaymentUtxos", nil)
	require.True(t, got.Success)
	require.JSONEq(t, `[{"value":1000,"txid":"aa","vout":1}]`, string(got.Data))

	// Keys need an open session.
	got = env.capability(t, "getPubKeys", nil)
	require.False(t, got.Success)
	require.Equal(t, wallet.ErrLocked.Error(), got.Error)

	env.backend.Unlock(testPassword)
	got = env.capability(t, "getAddresses", nil)
	require.True(t, got.Success)
	require.JSONEq(t, `{"address":"1Wallet","identityAddress":"1Identity"}`, string(got.Data))
}

func TestIsConnected(t *testing.T) {
	env := setupTestEnv(t, Config{})

	got := env.capability(t, "isConnected", nil)
	require.True(t, got.Success)
	require.JSONEq(t, `false`, string(got.Data))

	env.connectOrigin(t)
	got = env.capability(t, "isConnected", nil)
	require.JSONEq(t, `false`, string(got.Data), "locked wallet is not connected")

	env.backend.Unlock(testPassword)
	got = env.capability(t, "isConnected", nil)
	require.JSONEq(t, `true`, string(got.Data))

	got = env.capability(t, "disconnect", nil)
	require.True(t, got.Success)
	got = env.capability(t, "isConnected", nil)
	require.JSONEq(t, `false`, string(got.Data))
}

func waitPending(t *testing.T, env *testEnv, n int) PendingResult {
	t.Helper()
	var pending PendingResult
	require.Eventually(t, func() bool {
		resp := env.surface(t, "pending", nil)
		if resp.Error != nil {
			return false
		}
		if err := json.Unmarshal(resp.Result, &pending); err != nil {
			return false
		}
		return len(pending.Requests) == n
	}, 2*time.Second, 10*time.Millisecond)
	return pending
}

func TestConnectThroughSurface(t *testing.T) {
	env := setupTestEnv(t, Config{})

	done := make(chan envelope, 1)
	go func() { done <- env.capability(t, "connect", nil) }()

	pending := waitPending(t, env, 1)
	require.NotEmpty(t, pending.SurfaceID)
	require.Equal(t, broker.KindConnect, pending.Requests[0].Kind)
	require.Equal(t, testOrigin, pending.Requests[0].Origin.Domain)

	// A wrong password leaves the request open.
	resp := env.surface(t, "decide", broker.Decision{Type: "connectResponse", Approved: true, Password: "nope"})
	require.NotNil(t, resp.Error)
	require.Equal(t, CodeUnauthorized, resp.Error.Code)
	waitPending(t, env, 1)

	resp = env.surface(t, "decide", broker.Decision{Type: "connectResponse", Approved: true, Password: testPassword})
	require.Nil(t, resp.Error)
	require.JSONEq(t, `"02id"`, string(resp.Result))

	select {
	case got := <-done:
		require.True(t, got.Success)
		require.JSONEq(t, `"02id"`, string(got.Data))
	case <-time.After(2 * time.Second):
		t.Fatal("connect did not return")
	}

	connected, err := env.broker.Whitelist().Has(testOrigin)
	require.NoError(t, err)
	require.True(t, connected)

	// Connected and unlocked: no second decision.
	got := env.capability(t, "connect", nil)
	require.True(t, got.Success)
	require.JSONEq(t, `"02id"`, string(got.Data))
}

func TestSurfaceClosedDismisses(t *testing.T) {
	env := setupTestEnv(t, Config{})
	env.connectOrigin(t)

	done := make(chan envelope, 1)
	go func() { done <- env.capability(t, "signMessage", map[string]string{"message": "hi"}) }()
	pending := waitPending(t, env, 1)

	resp := env.surface(t, "record", map[string]string{"kind": "signMessage"})
	require.Nil(t, resp.Error)
	var rec broker.Request
	require.NoError(t, json.Unmarshal(resp.Result, &rec))
	require.JSONEq(t, `{"message":"hi"}`, string(rec.Params))

	resp = env.surface(t, "surfaceClosed", SurfaceParam{SurfaceID: pending.SurfaceID})
	require.Nil(t, resp.Error)

	select {
	case got := <-done:
		require.False(t, got.Success)
		require.Equal(t, "User dismissed the request!", got.Error)
	case <-time.After(2 * time.Second):
		t.Fatal("signMessage did not return")
	}

	resp = env.surface(t, "record", map[string]string{"kind": "signMessage"})
	require.NotNil(t, resp.Error)
	require.Equal(t, CodeNotFound, resp.Error.Code)
}

func TestSendCoinsAutoApproved(t *testing.T) {
	env := setupTestEnv(t, Config{})
	env.connectOrigin(t)
	env.backend.Unlock(testPassword)
	env.backend.autoApprove = true

	got := env.capability(t, "sendCoins", []map[string]any{{"address": "1Dest", "value": 50}})
	require.True(t, got.Success)
	require.JSONEq(t, `{"txid":"feed"}`, string(got.Data))
	require.Empty(t, env.broker.Pending())
	require.Len(t, env.backend.executed, 1)
	require.True(t, env.backend.executed[0].IsAuthorized)
}

func TestOriginBodyCannotOverrideHeader(t *testing.T) {
	env := setupTestEnv(t, Config{})
	require.NoError(t, env.broker.Whitelist().Add(broker.Origin{Domain: "bank.example"}))
	env.backend.Unlock(testPassword)
	env.backend.autoApprove = true

	params := map[string]any{
		"origin": broker.Origin{Domain: "bank.example"},
		"data":   []map[string]any{{"address": "1Dest", "satoshis": 50}},
	}
	resp := rpcCallFrom(t, env.url+"/", "https://evil.example", "sendCoins", params)
	require.NotNil(t, resp.Error)
	require.Equal(t, CodeUnauthorized, resp.Error.Code)
	require.Empty(t, env.backend.executed)

	// Without a body domain the header decides, and evil.example is not
	// connected.
	resp = rpcCallFrom(t, env.url+"/", "https://evil.example", "sendCoins", map[string]any{"data": params["data"]})
	require.Nil(t, resp.Error)
	var got envelope
	require.NoError(t, json.Unmarshal(resp.Result, &got))
	require.False(t, got.Success)
	require.Equal(t, "Unauthorized!", got.Error)
	require.Empty(t, env.backend.executed)
}

func TestOriginHeaderRequired(t *testing.T) {
	env := setupTestEnv(t, Config{})
	env.connectOrigin(t)

	resp := rpcCall(t, env.url+"/", "getNetwork", map[string]any{"origin": broker.Origin{Domain: testOrigin}})
	require.NotNil(t, resp.Error)
	require.Equal(t, CodeInvalidParams, resp.Error.Code)

	resp = rpcCallFrom(t, env.url+"/", "null", "getNetwork", nil)
	require.NotNil(t, resp.Error)
	require.Equal(t, CodeInvalidParams, resp.Error.Code)
}

func TestRateLimited(t *testing.T) {
	env := setupTestEnv(t, Config{RateLimit: 0.001, RateBurst: 1})
	env.connectOrigin(t)

	got := env.capability(t, "getNetwork", nil)
	require.True(t, got.Success)

	resp := rpcCallFrom(t, env.url+"/", "https://"+testOrigin, "getNetwork", map[string]any{"origin": broker.Origin{Domain: testOrigin}})
	require.NotNil(t, resp.Error)
	require.Equal(t, CodeRateLimited, resp.Error.Code)
}

func TestAllowedIPs(t *testing.T) {
	env := setupTestEnv(t, Config{AllowedIPs: []string{"10.0.0.0/8"}})

	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{}`))
	req.RemoteAddr = "192.168.1.7:5000"
	rec := httptest.NewRecorder()
	env.server.Handler().ServeHTTP(rec, req)
	require.Equal(t, http.StatusForbidden, rec.Code)

	req = httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"jsonrpc":"2.0","method":"isConnected","params":{"origin":{"domain":"a.example"}},"id":1}`))
	req.RemoteAddr = "10.1.2.3:5000"
	rec = httptest.NewRecorder()
	env.server.Handler().ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
}

func TestCORSPreflight(t *testing.T) {
	env := setupTestEnv(t, Config{CORSOrigins: []string{"https://app.example"}})

	req := httptest.NewRequest(http.MethodOptions, "/", nil)
	req.Header.Set("Origin", "https://app.example")
	rec := httptest.NewRecorder()
	env.server.Handler().ServeHTTP(rec, req)
	require.Equal(t, http.StatusNoContent, rec.Code)
	require.Equal(t, "https://app.example", rec.Header().Get("Access-Control-Allow-Origin"))

	req = httptest.NewRequest(http.MethodOptions, "/", nil)
	req.Header.Set("Origin", "https://evil.example")
	rec = httptest.NewRecorder()
	env.server.Handler().ServeHTTP(rec, req)
	require.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestSurfaceLoopbackOnly(t *testing.T) {
	env := setupTestEnv(t, Config{})

	req := httptest.NewRequest(http.MethodPost, "/surface", strings.NewReader(`{"jsonrpc":"2.0","method":"status","id":1}`))
	req.RemoteAddr = "10.0.0.5:1234"
	rec := httptest.NewRecorder()
	env.server.Handler().ServeHTTP(rec, req)
	require.Equal(t, http.StatusForbidden, rec.Code)
}

func TestSurfaceWallet(t *testing.T) {
	env := setupTestEnv(t, Config{})

	resp := env.surface(t, "create", CreateParam{})
	require.NotNil(t, resp.Error)
	require.Equal(t, CodeInvalidParams, resp.Error.Code)

	resp = env.surface(t, "create", CreateParam{Password: testPassword})
	require.Nil(t, resp.Error)
	var created CreateResult
	require.NoError(t, json.Unmarshal(resp.Result, &created))
	require.Len(t, strings.Fields(created.Mnemonic), 12)

	resp = env.surface(t, "lock", nil)
	require.Nil(t, resp.Error)

	resp = env.surface(t, "unlock", PasswordParam{Password: "bad"})
	require.NotNil(t, resp.Error)
	require.Equal(t, CodeUnauthorized, resp.Error.Code)

	resp = env.surface(t, "unlock", PasswordParam{Password: testPassword})
	require.Nil(t, resp.Error)
	var st Status
	require.NoError(t, json.Unmarshal(resp.Result, &st))
	require.True(t, st.Unlocked)

	resp = env.surface(t, "setNetwork", NetworkParam{Network: "regtest"})
	require.NotNil(t, resp.Error)
	require.Equal(t, CodeInvalidParams, resp.Error.Code)

	resp = env.surface(t, "setNetwork", NetworkParam{Network: "testnet"})
	require.Nil(t, resp.Error)
	require.NoError(t, json.Unmarshal(resp.Result, &st))
	require.Equal(t, "testnet", st.Network)
	require.False(t, st.Unlocked)

	env.backend.mu.Lock()
	touches := env.backend.touches
	env.backend.mu.Unlock()
	require.Equal(t, 7, touches)
}

func TestSurfaceSettings(t *testing.T) {
	env := setupTestEnv(t, Config{})
	env.connectOrigin(t)

	resp := env.surface(t, "whitelist", nil)
	require.Nil(t, resp.Error)
	require.JSONEq(t, `[{"domain":"app.example"}]`, string(resp.Result))

	limit := uint64(500)
	resp = env.surface(t, "setPreferences", PreferencesUpdate{NoApprovalLimit: &limit})
	require.NotNil(t, resp.Error)
	require.Equal(t, CodeUnauthorized, resp.Error.Code)

	resp = env.surface(t, "setPreferences", PreferencesUpdate{Password: testPassword, NoApprovalLimit: &limit})
	require.Nil(t, resp.Error)

	resp = env.surface(t, "removeOrigin", broker.Origin{Domain: testOrigin})
	require.Nil(t, resp.Error)
	require.JSONEq(t, `true`, string(resp.Result))

	resp = env.surface(t, "sendToken", SendTokenParam{Ref: "00", To: "1Dest", Amount: 1, Password: testPassword})
	require.Nil(t, resp.Error)
	require.JSONEq(t, `{"txid":"cafe"}`, string(resp.Result))

	resp = env.surface(t, "decide", broker.Decision{Type: "bogus"})
	require.NotNil(t, resp.Error)
	require.Equal(t, CodeInvalidParams, resp.Error.Code)

	resp = env.surface(t, "decide", broker.Decision{Type: "encryptResponse"})
	require.NotNil(t, resp.Error)
	require.Equal(t, CodeNotFound, resp.Error.Code)
}

func TestEventStream(t *testing.T) {
	env := setupTestEnv(t, Config{})

	wsURL := "ws" + strings.TrimPrefix(env.url, "http") + "/events"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	defer conn.Close()

	// The subscription lands asynchronously, so keep notifying until the
	// first event arrives.
	stop := make(chan struct{})
	defer close(stop)
	go func() {
		tick := time.NewTicker(10 * time.Millisecond)
		defer tick.Stop()
		for {
			select {
			case <-stop:
				return
			case <-tick.C:
				env.broker.Notify(broker.Event{Type: broker.EventSignedOut})
			}
		}
	}()

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)
	require.JSONEq(t, `{"action":"signedOut"}`, string(data))
}

func TestErrorCodes(t *testing.T) {
	tests := []struct {
		err  error
		code int
	}{
		{wallet.ErrUnauthorized, CodeUnauthorized},
		{broker.ErrUnauthorized, CodeUnauthorized},
		{wallet.ErrLocked, CodeLocked},
		{wallet.ErrNoWallet, CodeNoWallet},
		{fmt.Errorf("select: %w", txengine.ErrInsufficientFunds), CodeInsufficientFunds},
		{txengine.ErrFeeTooHigh, CodeFeeTooHigh},
		{txengine.ErrTxTooLarge, CodeTxTooLarge},
		{txengine.ErrBroadcast, CodeBroadcast},
		{broker.ErrUserDismissed, CodeUserDismissed},
		{broker.ErrUserRejected, CodeUserRejected},
		{broker.ErrRequestPending, CodeRequestPending},
		{broker.ErrNoRequest, CodeNotFound},
		{storage.ErrNotFound, CodeNotFound},
		{txengine.ErrInvalidRequest, CodeInvalidParams},
		{wallet.ErrInvalidMnemonic, CodeInvalidParams},
		{config.ErrUnknownNetwork, CodeInvalidParams},
		{errors.New("boom"), CodeInternalError},
	}
	for _, tt := range tests {
		if got := errorCode(tt.err); got != tt.code {
			t.Errorf("errorCode(%v) = %d, want %d", tt.err, got, tt.code)
		}
	}
}

func TestOriginLimiter(t *testing.T) {
	require.Nil(t, newOriginLimiter(0, 5))
	var nilLimiter *originLimiter
	require.True(t, nilLimiter.Allow("x"))

	now := time.Unix(1_700_000_000, 0)
	l := newOriginLimiter(1, 2)
	l.now = func() time.Time { return now }

	require.True(t, l.Allow("a"))
	require.True(t, l.Allow("a"))
	require.False(t, l.Allow("a"), "burst exhausted")
	require.True(t, l.Allow("b"), "origins are limited separately")

	now = now.Add(time.Second)
	require.True(t, l.Allow("a"))

	now = now.Add(limiterIdle + time.Second)
	l.Allow("c")
	require.NotContains(t, l.visitors, "a")
	require.NotContains(t, l.visitors, "b")
}

func TestOriginHost(t *testing.T) {
	require.Equal(t, "app.example", originHost("https://app.example"))
	require.Equal(t, "app.example:8080", originHost("http://app.example:8080"))
	require.Empty(t, originHost(""))
	require.Empty(t, originHost("://bad"))
}
