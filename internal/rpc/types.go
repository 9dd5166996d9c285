package rpc

import (
	"context"
	"encoding/json"
	"time"

	"github.com/Klingon-tech/orbital-wallet/internal/broker"
	"github.com/Klingon-tech/orbital-wallet/internal/settings"
	"github.com/Klingon-tech/orbital-wallet/internal/token"
	"github.com/Klingon-tech/orbital-wallet/internal/txengine"
)

// JSON-RPC 2.0 error codes.
const (
	CodeParseError     = -32700
	CodeInvalidRequest = -32600
	CodeMethodNotFound = -32601
	CodeInvalidParams  = -32602
	CodeInternalError  = -32603
	CodeNotFound       = -32000
)

// Wallet error codes, mapped from the package sentinels.
const (
	CodeUnauthorized      = -32001
	CodeLocked            = -32002
	CodeNoWallet          = -32003
	CodeInsufficientFunds = -32004
	CodeFeeTooHigh        = -32005
	CodeTxTooLarge        = -32006
	CodeBroadcast         = -32007
	CodeUserDismissed     = -32008
	CodeRequestPending    = -32009
	CodeRateLimited       = -32010
	CodeUserRejected      = -32011
)

// Request is a JSON-RPC 2.0 request.
type Request struct {
	JSONRPC string          `json:"jsonrpc"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params,omitempty"`
	ID      any             `json:"id"`
}

// Response is a JSON-RPC 2.0 response.
type Response struct {
	JSONRPC string `json:"jsonrpc"`
	Result  any    `json:"result,omitempty"`
	Error   *Error `json:"error,omitempty"`
	ID      any    `json:"id"`
}

// Error is a JSON-RPC 2.0 error object.
type Error struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
}

// Error implements error so clients can return it directly.
func (e *Error) Error() string {
	return e.Message
}

// Backend is the wallet the API fronts.
type Backend interface {
	Status() *Status
	Touch()

	PubKeys() (*PubKeys, error)
	Addresses() (*Addresses, error)
	Balance() (uint64, error)
	Tokens() ([]*token.Token, error)
	PaymentUtxos() ([]PaymentUtxo, error)
	SocialProfile() (*settings.SocialProfile, error)
	ExchangeRate(ctx context.Context) (float64, error)

	// AutoApproves reports whether a sendCoins request can run without a
	// decision.
	AutoApproves(outputs json.RawMessage) bool
	// Execute runs a privileged request. It is also the broker's executor.
	Execute(ctx context.Context, req *broker.Request, password string) (any, error)

	CreateWallet(password, mnemonic string) (string, error)
	Unlock(password string) error
	Lock()
	SetNetwork(ctx context.Context, network string) error
	Sync(ctx context.Context) error
	Preferences() (*Preferences, error)
	UpdatePreferences(update PreferencesUpdate) error
	SendToken(ctx context.Context, ref, to string, amount uint64, password string) (*txengine.SendResult, error)
}

// ── Capability types ────────────────────────────────────────────────────

// CapabilityParams wraps the arguments of a capability call.
type CapabilityParams struct {
	Origin broker.Origin   `json:"origin"`
	Data   json.RawMessage `json:"data,omitempty"`
}

// PubKeys is the getPubKeys result.
type PubKeys struct {
	IdentityPubKey string `json:"identityPubKey"`
	WalletPubKey   string `json:"walletPubKey"`
}

// Addresses is the getAddresses result.
type Addresses struct {
	Address         string `json:"address"`
	IdentityAddress string `json:"identityAddress"`
}

// PaymentUtxo is one entry of getPaymentUtxos.
type PaymentUtxo struct {
	Value uint64 `json:"value"`
	TxID  string `json:"txid"`
	Vout  uint32 `json:"vout"`
}

// ── Surface types ───────────────────────────────────────────────────────

// Status summarizes the wallet for the surface.
type Status struct {
	HasWallet       bool       `json:"hasWallet"`
	Unlocked        bool       `json:"unlocked"`
	Network         string     `json:"network"`
	Address         string     `json:"address,omitempty"`
	IdentityAddress string     `json:"identityAddress,omitempty"`
	Balance         uint64     `json:"balance"`
	ExpiresAt       *time.Time `json:"expiresAt,omitempty"`
}

// PendingResult is the surface's view of open requests.
type PendingResult struct {
	SurfaceID string            `json:"surfaceId,omitempty"`
	Requests  []*broker.Request `json:"requests"`
}

// SurfaceParam identifies a surface.
type SurfaceParam struct {
	SurfaceID string `json:"surfaceId"`
}

// PasswordParam carries a password.
type PasswordParam struct {
	Password string `json:"password"`
}

// CreateParam creates or restores a wallet. An empty mnemonic generates one.
type CreateParam struct {
	Password string `json:"password"`
	Mnemonic string `json:"mnemonic,omitempty"`
}

// CreateResult returns the mnemonic the wallet was created from.
type CreateResult struct {
	Mnemonic string `json:"mnemonic"`
}

// NetworkParam selects a network.
type NetworkParam struct {
	Network string `json:"network"`
}

// SendTokenParam sends a fungible token.
type SendTokenParam struct {
	Ref      string `json:"ref"`
	To       string `json:"to"`
	Amount   uint64 `json:"amount"`
	Password string `json:"password"`
}

// Preferences are the user settings the surface edits.
type Preferences struct {
	NoApprovalLimit  uint64                  `json:"noApprovalLimit"`
	PasswordRequired bool                    `json:"isPasswordRequired"`
	SocialProfile    *settings.SocialProfile `json:"socialProfile"`
}

// PreferencesUpdate changes some preferences. Changing the approval policy
// needs the wallet password.
type PreferencesUpdate struct {
	Password         string                  `json:"password,omitempty"`
	NoApprovalLimit  *uint64                 `json:"noApprovalLimit,omitempty"`
	PasswordRequired *bool                   `json:"isPasswordRequired,omitempty"`
	SocialProfile    *settings.SocialProfile `json:"socialProfile,omitempty"`
}
