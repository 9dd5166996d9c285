package broker

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// Kind is a privileged request that needs a decision on the surface.
type Kind uint8

const (
	KindConnect Kind = iota
	KindSendCoins
	KindSignMessage
	KindBroadcast
	KindGetSignatures
	KindEncrypt
	KindDecrypt

	numKinds
)

var kindNames = [numKinds]string{
	"connect",
	"sendCoins",
	"signMessage",
	"broadcast",
	"getSignatures",
	"encrypt",
	"decrypt",
}

// recordKeys are the durable keys the surface reads pending payloads from.
var recordKeys = [numKinds]string{
	"connectRequest",
	"sendCoinRequest",
	"signMessageRequest",
	"broadcastRequest",
	"getSignaturesRequest",
	"encryptRequest",
	"decryptRequest",
}

// AllKinds lists every kind in declaration order.
func AllKinds() []Kind {
	out := make([]Kind, numKinds)
	for i := range out {
		out[i] = Kind(i)
	}
	return out
}

func (k Kind) String() string {
	if k < numKinds {
		return kindNames[k]
	}
	return fmt.Sprintf("kind(%d)", uint8(k))
}

// RecordKey is the durable key of the kind's pending payload.
func (k Kind) RecordKey() string {
	if k < numKinds {
		return recordKeys[k]
	}
	return ""
}

// ResponseType is the message type a surface decision for k carries.
func (k Kind) ResponseType() string {
	return k.String() + "Response"
}

// MarshalText encodes the kind by name.
func (k Kind) MarshalText() ([]byte, error) {
	if k >= numKinds {
		return nil, fmt.Errorf("unknown kind %d", uint8(k))
	}
	return []byte(k.String()), nil
}

// UnmarshalText decodes a kind name.
func (k *Kind) UnmarshalText(b []byte) error {
	kind, ok := ParseKind(string(b))
	if !ok {
		return fmt.Errorf("unknown kind %q", b)
	}
	*k = kind
	return nil
}

// ParseKind looks a kind up by name.
func ParseKind(s string) (Kind, bool) {
	for i, name := range kindNames {
		if name == s {
			return Kind(i), true
		}
	}
	return 0, false
}

// ParseResponseType returns the kind a "<kind>Response" message answers.
func ParseResponseType(s string) (Kind, bool) {
	name, ok := strings.CutSuffix(s, "Response")
	if !ok {
		return 0, false
	}
	return ParseKind(name)
}

// Capability is an operation a connected caller may invoke.
type Capability uint8

const (
	CapConnect Capability = iota
	CapDisconnect
	CapIsConnected
	CapGetPubKeys
	CapGetAddresses
	CapGetNetwork
	CapGetBalance
	CapGetTokens
	CapSendCoins
	CapSignMessage
	CapBroadcast
	CapGetSignatures
	CapGetSocialProfile
	CapGetPaymentUtxos
	CapGetExchangeRate
	CapEncrypt
	CapDecrypt

	numCapabilities
)

var capabilityNames = [numCapabilities]string{
	"connect",
	"disconnect",
	"isConnected",
	"getPubKeys",
	"getAddresses",
	"getNetwork",
	"getBalance",
	"getTokens",
	"sendCoins",
	"signMessage",
	"broadcast",
	"getSignatures",
	"getSocialProfile",
	"getPaymentUtxos",
	"getExchangeRate",
	"encrypt",
	"decrypt",
}

func (c Capability) String() string {
	if c < numCapabilities {
		return capabilityNames[c]
	}
	return fmt.Sprintf("capability(%d)", uint8(c))
}

// ParseCapability looks a capability up by its method name.
func ParseCapability(s string) (Capability, bool) {
	for i, name := range capabilityNames {
		if name == s {
			return Capability(i), true
		}
	}
	return 0, false
}

// Kind returns the privileged kind behind c, if it needs a decision.
func (c Capability) Kind() (Kind, bool) {
	switch c {
	case CapConnect:
		return KindConnect, true
	case CapSendCoins:
		return KindSendCoins, true
	case CapSignMessage:
		return KindSignMessage, true
	case CapBroadcast:
		return KindBroadcast, true
	case CapGetSignatures:
		return KindGetSignatures, true
	case CapEncrypt:
		return KindEncrypt, true
	case CapDecrypt:
		return KindDecrypt, true
	}
	return 0, false
}

// RequiresWhitelist reports whether the caller's origin must be connected.
func (c Capability) RequiresWhitelist() bool {
	return c != CapConnect && c != CapIsConnected
}

// Envelope is the result of every capability call.
type Envelope struct {
	Type    string `json:"type"`
	Success bool   `json:"success"`
	Data    any    `json:"data,omitempty"`
	Error   string `json:"error,omitempty"`
}

// Ok wraps a successful result.
func Ok(c Capability, data any) *Envelope {
	return &Envelope{Type: c.String(), Success: true, Data: data}
}

// Fail wraps an error.
func Fail(c Capability, err error) *Envelope {
	return &Envelope{Type: c.String(), Success: false, Error: Message(err)}
}

// Message returns the caller-facing text for err.
func Message(err error) string {
	switch {
	case errors.Is(err, ErrUnauthorized):
		return "Unauthorized!"
	case errors.Is(err, ErrUserDismissed):
		return "User dismissed the request!"
	}
	return err.Error()
}

// Origin identifies the caller of a capability.
type Origin struct {
	Domain string `json:"domain"`
	Icon   string `json:"icon,omitempty"`
}

// Event is a notification fanned out to every subscriber.
type Event struct {
	Type   string          `json:"action"`
	Params json.RawMessage `json:"params,omitempty"`
}

// Event types.
const (
	EventSignedOut      = "signedOut"
	EventNetworkChanged = "networkChanged"
)
