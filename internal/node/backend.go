package node

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/Klingon-tech/orbital-wallet/internal/broker"
	"github.com/Klingon-tech/orbital-wallet/internal/rpc"
	"github.com/Klingon-tech/orbital-wallet/internal/settings"
	"github.com/Klingon-tech/orbital-wallet/internal/token"
	"github.com/Klingon-tech/orbital-wallet/internal/txengine"
	"github.com/Klingon-tech/orbital-wallet/internal/wallet"
	"github.com/Klingon-tech/orbital-wallet/pkg/types"
)

var (
	_ rpc.Backend     = (*Node)(nil)
	_ broker.Executor = (*Node)(nil)
)

// BroadcastParams are the arguments of the broadcast capability.
type BroadcastParams struct {
	RawTx string `json:"rawtx"`
	Fund  bool   `json:"fund,omitempty"`
}

// SignaturesParams are the arguments of the getSignatures capability.
type SignaturesParams struct {
	RawTx       string                `json:"rawtx"`
	SigRequests []txengine.SigRequest `json:"sigRequests"`
}

// Status summarizes the wallet.
func (n *Node) Status() *rpc.Status {
	snap := n.state.Snapshot()
	params := types.NetParams(snap.Network)
	st := &rpc.Status{
		HasWallet: n.vault.HasWallet(),
		Unlocked:  n.vault.IsUnlocked(),
		Network:   snap.Network,
	}
	if snap.HasAddress() {
		st.Address = snap.WalletAddress.Encode(params)
		st.IdentityAddress = snap.IdentityAddress.Encode(params)
	}
	if bal, err := n.Balance(); err == nil {
		st.Balance = bal
	}
	if st.Unlocked {
		exp := n.vault.ExpiresAt()
		st.ExpiresAt = &exp
	}
	return st
}

// Touch records user activity for the idle lock.
func (n *Node) Touch() {
	n.vault.Touch()
}

// unlockedSnapshot returns the state, failing when the session is closed.
func (n *Node) unlockedSnapshot() (Snapshot, error) {
	if !n.vault.IsUnlocked() {
		return Snapshot{}, wallet.ErrLocked
	}
	return n.state.Snapshot(), nil
}

// PubKeys returns the wallet and identity public keys.
func (n *Node) PubKeys() (*rpc.PubKeys, error) {
	snap, err := n.unlockedSnapshot()
	if err != nil {
		return nil, err
	}
	return &rpc.PubKeys{IdentityPubKey: snap.IdentityPubKey, WalletPubKey: snap.WalletPubKey}, nil
}

// Addresses returns the wallet and identity addresses.
func (n *Node) Addresses() (*rpc.Addresses, error) {
	snap, err := n.unlockedSnapshot()
	if err != nil {
		return nil, err
	}
	params := types.NetParams(snap.Network)
	return &rpc.Addresses{
		Address:         snap.WalletAddress.Encode(params),
		IdentityAddress: snap.IdentityAddress.Encode(params),
	}, nil
}

// Balance returns the cached coin balance in photons.
func (n *Node) Balance() (uint64, error) {
	coins, _ := n.ledgers()
	return coins.Balance()
}

// Tokens lists the held fungible tokens.
func (n *Node) Tokens() ([]*token.Token, error) {
	_, tokens := n.ledgers()
	return tokens.List()
}

// PaymentUtxos lists the coin outputs.
func (n *Node) PaymentUtxos() ([]rpc.PaymentUtxo, error) {
	coins, _ := n.ledgers()
	list, err := coins.Coins()
	if err != nil {
		return nil, err
	}
	out := make([]rpc.PaymentUtxo, 0, len(list))
	for _, u := range list {
		out = append(out, rpc.PaymentUtxo{
			Value: u.Value,
			TxID:  u.Outpoint.TxID.String(),
			Vout:  u.Outpoint.Index,
		})
	}
	return out, nil
}

// SocialProfile returns the stored profile.
func (n *Node) SocialProfile() (*settings.SocialProfile, error) {
	return n.settings.SocialProfile()
}

// ExchangeRate returns the RXD/USD rate.
func (n *Node) ExchangeRate(ctx context.Context) (float64, error) {
	return n.rates.Rate(ctx)
}

// AutoApproves reports whether outputs fit in the auto-approval allowance
// so sendCoins can skip the surface.
func (n *Node) AutoApproves(data json.RawMessage) bool {
	var outputs []txengine.Output
	if err := json.Unmarshal(data, &outputs); err != nil || len(outputs) == 0 {
		return false
	}
	total, err := txengine.TotalPhotons(outputs)
	if err != nil {
		return false
	}
	limit, err := n.settings.NoApprovalLimit()
	if err != nil {
		return false
	}
	return total <= limit && n.vault.IsUnlocked()
}

// Execute carries out an approved privileged request.
func (n *Node) Execute(ctx context.Context, req *broker.Request, password string) (any, error) {
	n.vault.Touch()
	switch req.Kind {
	case broker.KindConnect:
		return n.connect(password)

	case broker.KindSendCoins:
		var outputs []txengine.Output
		if err := decodeParams(req.Params, &outputs); err != nil {
			return nil, err
		}
		res, err := n.engine.SendCoins(ctx, outputs, password)
		if err != nil {
			return nil, err
		}
		n.requestSync()
		return res, nil

	case broker.KindSignMessage:
		var p txengine.SignMessageRequest
		if err := decodeParams(req.Params, &p); err != nil {
			return nil, err
		}
		p.Tag = scopeTag(p.Tag, req.Origin)
		return n.engine.SignMessage(p, password)

	case broker.KindBroadcast:
		var p BroadcastParams
		if err := decodeParams(req.Params, &p); err != nil {
			return nil, err
		}
		txid, err := n.engine.Broadcast(ctx, p.RawTx, p.Fund)
		if err != nil {
			return nil, err
		}
		n.requestSync()
		return txid, nil

	case broker.KindGetSignatures:
		var p SignaturesParams
		if err := decodeParams(req.Params, &p); err != nil {
			return nil, err
		}
		return n.engine.GetSignatures(p.RawTx, p.SigRequests, password)

	case broker.KindEncrypt:
		var p txengine.EncryptRequest
		if err := decodeParams(req.Params, &p); err != nil {
			return nil, err
		}
		p.Tag = scopeTag(p.Tag, req.Origin)
		return n.engine.Encrypt(p, password)

	case broker.KindDecrypt:
		var p txengine.DecryptRequest
		if err := decodeParams(req.Params, &p); err != nil {
			return nil, err
		}
		p.Tag = scopeTag(p.Tag, req.Origin)
		return n.engine.Decrypt(p, password)
	}
	return nil, fmt.Errorf("%w: unsupported request %s", txengine.ErrInvalidRequest, req.Kind)
}

// connect answers a connect request with the identity public key, opening
// a session first when the wallet is locked.
func (n *Node) connect(password string) (string, error) {
	if !n.vault.IsUnlocked() {
		if err := n.Unlock(password); err != nil {
			return "", err
		}
	}
	snap := n.state.Snapshot()
	return snap.IdentityPubKey, nil
}

// CreateWallet creates or restores the wallet and opens a session.
func (n *Node) CreateWallet(password, mnemonic string) (string, error) {
	if password == "" {
		return "", fmt.Errorf("%w: empty password", txengine.ErrInvalidRequest)
	}
	m, err := n.vault.CreateOrRestore(password, mnemonic, "", "")
	if err != nil {
		return "", err
	}
	keys, err := n.vault.Keys()
	if err != nil {
		return "", err
	}
	// A restored wallet may differ from the cached one.
	if err := n.clearLedgers(); err != nil {
		return "", err
	}
	n.unlocked(keys)
	return m, nil
}

// Unlock opens a session.
func (n *Node) Unlock(password string) error {
	keys, err := n.vault.Unlock(password)
	if err != nil {
		return err
	}
	n.unlocked(keys)
	return nil
}

// Lock closes the session.
func (n *Node) Lock() {
	n.vault.Lock()
}

// clearLedgers wipes the active network's cached outputs and tokens.
func (n *Node) clearLedgers() error {
	n.syncMu.Lock()
	defer n.syncMu.Unlock()
	n.ledgerMu.RLock()
	db := n.ledgerDB
	n.ledgerMu.RUnlock()
	return db.DeleteAll()
}

// Preferences returns the user settings.
func (n *Node) Preferences() (*rpc.Preferences, error) {
	limit, err := n.settings.NoApprovalLimit()
	if err != nil {
		return nil, err
	}
	required, err := n.settings.PasswordRequired()
	if err != nil {
		return nil, err
	}
	profile, err := n.settings.SocialProfile()
	if err != nil {
		return nil, err
	}
	return &rpc.Preferences{NoApprovalLimit: limit, PasswordRequired: required, SocialProfile: profile}, nil
}

// UpdatePreferences applies update. The approval policy only changes with
// the correct password.
func (n *Node) UpdatePreferences(u rpc.PreferencesUpdate) error {
	if u.NoApprovalLimit != nil || u.PasswordRequired != nil {
		if !n.vault.Verify(u.Password) {
			return wallet.ErrUnauthorized
		}
	}
	if u.NoApprovalLimit != nil {
		if err := n.settings.SetNoApprovalLimit(*u.NoApprovalLimit); err != nil {
			return err
		}
	}
	if u.PasswordRequired != nil {
		if err := n.settings.SetPasswordRequired(*u.PasswordRequired); err != nil {
			return err
		}
	}
	if u.SocialProfile != nil {
		if err := n.settings.SetSocialProfile(u.SocialProfile); err != nil {
			return err
		}
	}
	return nil
}

// SendToken transfers amount of the token ref to another address.
func (n *Node) SendToken(ctx context.Context, ref, to string, amount uint64, password string) (*txengine.SendResult, error) {
	r, err := parseRef(ref)
	if err != nil {
		return nil, fmt.Errorf("%w: ref: %v", txengine.ErrInvalidRequest, err)
	}
	n.vault.Touch()
	res, err := n.engine.SendToken(ctx, r, to, amount, password)
	if err != nil {
		return nil, err
	}
	n.requestSync()
	return res, nil
}

// parseRef accepts a ref as stored hex or in "txid_vout" form.
func parseRef(s string) (types.Ref, error) {
	if strings.Contains(s, "_") {
		return types.ParseRefOutpoint(s)
	}
	return types.HexToRef(s)
}

// decodeParams unmarshals capability data, mapping failures to
// ErrInvalidRequest.
func decodeParams(data json.RawMessage, v any) error {
	if len(data) == 0 {
		return fmt.Errorf("%w: missing data", txengine.ErrInvalidRequest)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("%w: %v", txengine.ErrInvalidRequest, err)
	}
	return nil
}

// scopeTag binds a custom derivation tag to the calling domain so one site
// cannot reach another site's keys.
func scopeTag(tag *wallet.DerivationTag, origin broker.Origin) *wallet.DerivationTag {
	if tag == nil || tag.IsReserved() || tag.ID == "" {
		return tag
	}
	scoped := *tag
	scoped.Domain = origin.Domain
	return &scoped
}
