package txengine

import (
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"

	"github.com/Klingon-tech/orbital-wallet/internal/wallet"
	"github.com/Klingon-tech/orbital-wallet/pkg/crypto"
	"github.com/Klingon-tech/orbital-wallet/pkg/tx"
	"github.com/Klingon-tech/orbital-wallet/pkg/types"
)

// SigRequest asks for a signature over one input of a caller-built
// transaction.
type SigRequest struct {
	PrevTxID    string `json:"prevTxid"`
	OutputIndex uint32 `json:"outputIndex"`
	InputIndex  int    `json:"inputIndex"`
	Photons     uint64 `json:"satoshis"`
	Script      string `json:"script"`
	SigHashType uint32 `json:"sigHashType,omitempty"`
}

// SigResponse is a DER signature and the key that made it.
type SigResponse struct {
	InputIndex  int    `json:"inputIndex"`
	Sig         string `json:"sig"`
	PubKey      string `json:"pubKey"`
	SigHashType uint32 `json:"sigHashType"`
}

// GetSignatures signs the requested inputs of rawHex with the wallet key.
// Each request must name the outpoint its input actually spends.
func (e *Engine) GetSignatures(rawHex string, reqs []SigRequest, password string) ([]SigResponse, error) {
	msg, err := tx.DecodeHex(rawHex)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidRequest, err)
	}
	if len(reqs) == 0 {
		return nil, fmt.Errorf("%w: no signature requests", ErrInvalidRequest)
	}
	if err := e.authorize(password); err != nil {
		return nil, err
	}
	keys, err := e.signingKeys(password)
	if err != nil {
		return nil, err
	}

	out := make([]SigResponse, 0, len(reqs))
	for _, r := range reqs {
		if r.InputIndex < 0 || r.InputIndex >= len(msg.TxIn) {
			return nil, fmt.Errorf("%w: input %d out of range", ErrInvalidRequest, r.InputIndex)
		}
		prev := msg.TxIn[r.InputIndex].PreviousOutPoint
		if prev.Hash.String() != r.PrevTxID || prev.Index != r.OutputIndex {
			return nil, fmt.Errorf("%w: input %d does not spend %s:%d", ErrInvalidRequest, r.InputIndex, r.PrevTxID, r.OutputIndex)
		}
		prevScript, err := hex.DecodeString(r.Script)
		if err != nil {
			return nil, fmt.Errorf("%w: bad script hex", ErrInvalidRequest)
		}
		hashType := r.SigHashType
		if hashType == 0 {
			hashType = tx.SigHashAllForkID
		}
		sig, err := tx.SignRaw(msg, r.InputIndex, tx.Prevout{Value: r.Photons, Script: prevScript}, keys.Wallet, hashType)
		if err != nil {
			return nil, fmt.Errorf("sign input %d: %w", r.InputIndex, err)
		}
		out = append(out, SigResponse{
			InputIndex:  r.InputIndex,
			Sig:         hex.EncodeToString(sig[:len(sig)-1]),
			PubKey:      hex.EncodeToString(keys.Wallet.PublicKey()),
			SigHashType: hashType,
		})
	}
	return out, nil
}

// SignMessageRequest is a message to sign with a tag-selected key.
type SignMessageRequest struct {
	Message  string                `json:"message"`
	Encoding string                `json:"encoding,omitempty"`
	Tag      *wallet.DerivationTag `json:"derivationTag,omitempty"`
}

// SignedMessage is a Bitcoin Signed Message result.
type SignedMessage struct {
	Address       string               `json:"address"`
	PubKey        string               `json:"pubKey"`
	Message       string               `json:"message"`
	Sig           string               `json:"sig"`
	DerivationTag wallet.DerivationTag `json:"derivationTag"`
}

// SignMessage signs a message with the identity key unless the request
// names another tag.
func (e *Engine) SignMessage(req SignMessageRequest, password string) (*SignedMessage, error) {
	data, err := decodeMessage(req.Message, req.Encoding)
	if err != nil {
		return nil, err
	}
	if err := e.authorize(password); err != nil {
		return nil, err
	}
	tag := tagOrIdentity(req.Tag)
	key, err := e.tagKey(tag, password)
	if err != nil {
		return nil, err
	}
	sig, err := crypto.SignMessage(key, data)
	if err != nil {
		return nil, fmt.Errorf("sign message: %w", err)
	}

	e.mu.Lock()
	params := e.cfg.Params
	e.mu.Unlock()
	return &SignedMessage{
		Address:       key.Address().Encode(params),
		PubKey:        hex.EncodeToString(key.PublicKey()),
		Message:       req.Message,
		Sig:           sig,
		DerivationTag: tag,
	}, nil
}

// EncryptRequest encrypts one message to each public key.
type EncryptRequest struct {
	Message  string                `json:"message"`
	PubKeys  []string              `json:"pubKeys"`
	Encoding string                `json:"encoding,omitempty"`
	Tag      *wallet.DerivationTag `json:"tag,omitempty"`
}

// Encrypt returns one base64 ciphertext per recipient, in request order.
func (e *Engine) Encrypt(req EncryptRequest, password string) ([]string, error) {
	data, err := decodeMessage(req.Message, req.Encoding)
	if err != nil {
		return nil, err
	}
	if len(req.PubKeys) == 0 {
		return nil, fmt.Errorf("%w: no recipients", ErrInvalidRequest)
	}
	if err := e.authorize(password); err != nil {
		return nil, err
	}
	key, err := e.tagKey(tagOrIdentity(req.Tag), password)
	if err != nil {
		return nil, err
	}

	out := make([]string, 0, len(req.PubKeys))
	for _, pk := range req.PubKeys {
		pub, err := hex.DecodeString(pk)
		if err != nil {
			return nil, fmt.Errorf("%w: bad public key", ErrInvalidRequest)
		}
		ct, err := crypto.Encrypt(key, pub, data)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidRequest, err)
		}
		out = append(out, base64.StdEncoding.EncodeToString(ct))
	}
	return out, nil
}

// DecryptRequest decrypts base64 ciphertexts with a tag-selected key.
type DecryptRequest struct {
	Messages []string              `json:"messages"`
	Tag      *wallet.DerivationTag `json:"tag,omitempty"`
}

// Decrypt returns the base64 plaintext of each message.
func (e *Engine) Decrypt(req DecryptRequest, password string) ([]string, error) {
	if len(req.Messages) == 0 {
		return nil, fmt.Errorf("%w: no messages", ErrInvalidRequest)
	}
	if err := e.authorize(password); err != nil {
		return nil, err
	}
	key, err := e.tagKey(tagOrIdentity(req.Tag), password)
	if err != nil {
		return nil, err
	}

	out := make([]string, 0, len(req.Messages))
	for _, m := range req.Messages {
		ct, err := base64.StdEncoding.DecodeString(m)
		if err != nil {
			return nil, fmt.Errorf("%w: bad ciphertext encoding", ErrInvalidRequest)
		}
		pt, err := crypto.Decrypt(key, ct)
		if err != nil {
			if errors.Is(err, crypto.ErrDecrypt) {
				return nil, fmt.Errorf("%w: %v", ErrInvalidRequest, err)
			}
			return nil, err
		}
		out = append(out, base64.StdEncoding.EncodeToString(pt))
	}
	return out, nil
}

// PublicKeys returns the hex public keys of the wallet and identity keys.
func (e *Engine) PublicKeys() (walletPub, identityPub string, err error) {
	keys, err := e.keys.Keys()
	if err != nil {
		return "", "", fmt.Errorf("%w: %v", ErrUnauthorized, err)
	}
	return hex.EncodeToString(keys.Wallet.PublicKey()), hex.EncodeToString(keys.Identity.PublicKey()), nil
}

// Addresses returns the encoded wallet and identity addresses.
func (e *Engine) Addresses() (walletAddr, identityAddr string, err error) {
	keys, err := e.keys.Keys()
	if err != nil {
		return "", "", fmt.Errorf("%w: %v", ErrUnauthorized, err)
	}
	e.mu.Lock()
	params := e.cfg.Params
	e.mu.Unlock()
	return keys.WalletAddress().Encode(params), keys.IdentityAddress().Encode(params), nil
}

// WalletAddress returns the address that holds coins and tokens.
func (e *Engine) WalletAddress() (types.Address, error) {
	keys, err := e.keys.Keys()
	if err != nil {
		return types.Address{}, fmt.Errorf("%w: %v", ErrUnauthorized, err)
	}
	return keys.WalletAddress(), nil
}

func (e *Engine) tagKey(tag wallet.DerivationTag, password string) (*crypto.PrivateKey, error) {
	keys, err := e.signingKeys(password)
	if err != nil {
		return nil, err
	}
	key, err := keys.ForTag(tag)
	if err != nil {
		return nil, fmt.Errorf("derive tag key: %w", err)
	}
	return key, nil
}

func tagOrIdentity(tag *wallet.DerivationTag) wallet.DerivationTag {
	if tag == nil || tag.ID == "" {
		return wallet.IdentityTag
	}
	return *tag
}

// decodeMessage reads a message in utf8 (default), hex or base64.
func decodeMessage(msg, encoding string) ([]byte, error) {
	switch encoding {
	case "", "utf8", "utf-8":
		return []byte(msg), nil
	case "hex":
		b, err := hex.DecodeString(msg)
		if err != nil {
			return nil, fmt.Errorf("%w: bad hex message", ErrInvalidRequest)
		}
		return b, nil
	case "base64":
		b, err := base64.StdEncoding.DecodeString(msg)
		if err != nil {
			return nil, fmt.Errorf("%w: bad base64 message", ErrInvalidRequest)
		}
		return b, nil
	}
	return nil, fmt.Errorf("%w: unknown encoding %q", ErrInvalidRequest, encoding)
}
