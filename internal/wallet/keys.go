package wallet

import (
	"crypto/sha256"
	"encoding/binary"
	"fmt"

	"github.com/Klingon-tech/orbital-wallet/pkg/crypto"
	"github.com/Klingon-tech/orbital-wallet/pkg/types"
)

// Reserved derivation tag ids.
const (
	TagRXD      = "rxd"
	TagIdentity = "identity"

	reservedLabel = "orbital"
)

// DerivationTag selects which key an operation uses. The reserved ids rxd
// and identity map to the wallet and identity keys. Any other id derives a
// key scoped to the tag's domain.
type DerivationTag struct {
	Label  string         `json:"label"`
	ID     string         `json:"id"`
	Domain string         `json:"domain"`
	Meta   map[string]any `json:"meta,omitempty"`
}

// RXDTag selects the spending key.
var RXDTag = DerivationTag{Label: reservedLabel, ID: TagRXD}

// IdentityTag selects the messaging key.
var IdentityTag = DerivationTag{Label: reservedLabel, ID: TagIdentity}

// IsReserved reports whether the tag names the wallet or identity key.
func (t DerivationTag) IsReserved() bool {
	return t.ID == TagRXD || t.ID == TagIdentity
}

// Path returns the derivation path the tag resolves to.
func (t DerivationTag) Path(k *Keys) string {
	switch t.ID {
	case TagRXD:
		return k.WalletPath
	case TagIdentity:
		return k.IdentityPath
	}
	return fmt.Sprintf("m/44'/0'/0'/%d/%d", customTagBranch, t.index())
}

// index maps a custom tag onto a non-hardened child index.
func (t DerivationTag) index() uint32 {
	h := sha256.New()
	h.Write([]byte(t.Label))
	h.Write([]byte{0})
	h.Write([]byte(t.ID))
	h.Write([]byte{0})
	h.Write([]byte(t.Domain))
	sum := h.Sum(nil)
	return binary.BigEndian.Uint32(sum[:4]) & 0x7fffffff
}

// Keys is the decrypted key material of an unlocked wallet.
type Keys struct {
	Mnemonic     string
	WalletPath   string
	IdentityPath string

	Wallet   *crypto.PrivateKey
	Identity *crypto.PrivateKey

	master *HDKey
}

// DeriveKeys rebuilds the wallet and identity keys from a mnemonic.
// Empty paths fall back to the defaults.
func DeriveKeys(mnemonic, walletPath, identityPath string) (*Keys, error) {
	if walletPath == "" {
		walletPath = DefaultWalletPath
	}
	if identityPath == "" {
		identityPath = DefaultIdentityPath
	}
	mnemonic = NormalizeMnemonic(mnemonic)
	seed, err := mnemonicSeed(mnemonic)
	if err != nil {
		return nil, err
	}
	defer zero(seed)

	master, err := NewMasterKey(seed)
	if err != nil {
		return nil, err
	}
	wallet, err := signerAt(master, walletPath)
	if err != nil {
		return nil, fmt.Errorf("wallet key: %w", err)
	}
	identity, err := signerAt(master, identityPath)
	if err != nil {
		return nil, fmt.Errorf("identity key: %w", err)
	}
	return &Keys{
		Mnemonic:     mnemonic,
		WalletPath:   walletPath,
		IdentityPath: identityPath,
		Wallet:       wallet,
		Identity:     identity,
		master:       master,
	}, nil
}

func signerAt(master *HDKey, path string) (*crypto.PrivateKey, error) {
	child, err := master.DeriveString(path)
	if err != nil {
		return nil, err
	}
	return child.Signer()
}

// WalletAddress returns the address that holds coins and tokens.
func (k *Keys) WalletAddress() types.Address {
	return k.Wallet.Address()
}

// IdentityAddress returns the address of the messaging key.
func (k *Keys) IdentityAddress() types.Address {
	return k.Identity.Address()
}

// ForTag returns the private key a derivation tag selects.
func (k *Keys) ForTag(tag DerivationTag) (*crypto.PrivateKey, error) {
	switch tag.ID {
	case TagRXD:
		return k.Wallet, nil
	case TagIdentity, "":
		return k.Identity, nil
	}
	if k.master == nil {
		return nil, fmt.Errorf("keys have no master key")
	}
	return signerAt(k.master, tag.Path(k))
}

// Zero clears the private keys.
func (k *Keys) Zero() {
	if k.Wallet != nil {
		k.Wallet.Zero()
	}
	if k.Identity != nil {
		k.Identity.Zero()
	}
	k.master = nil
	k.Mnemonic = ""
}
