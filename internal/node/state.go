package node

import (
	"encoding/hex"
	"sync"

	"github.com/Klingon-tech/orbital-wallet/internal/wallet"
	"github.com/Klingon-tech/orbital-wallet/pkg/types"
)

// State is the application state shared by the API and the sync loop. It
// only changes through SetUnlocked, SetLocked and SetNetwork.
type State struct {
	mu          sync.RWMutex
	locked      bool
	network     string
	walletAddr  types.Address
	identity    types.Address
	walletPub   []byte
	identityPub []byte
}

// Snapshot is a copy of State.
type Snapshot struct {
	Locked          bool
	Network         string
	WalletAddress   types.Address
	IdentityAddress types.Address
	WalletPubKey    string
	IdentityPubKey  string
}

// HasAddress reports whether a wallet has been unlocked on this network.
func (s Snapshot) HasAddress() bool {
	return !s.WalletAddress.IsZero()
}

// NewState returns a locked state on network.
func NewState(network string) *State {
	return &State{locked: true, network: network}
}

// SetUnlocked records the public side of freshly unlocked keys.
func (s *State) SetUnlocked(keys *wallet.Keys) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.locked = false
	s.walletAddr = keys.WalletAddress()
	s.identity = keys.IdentityAddress()
	s.walletPub = keys.Wallet.PublicKey()
	s.identityPub = keys.Identity.PublicKey()
}

// SetLocked marks the wallet locked. Addresses are kept so the ledgers
// continue to sync.
func (s *State) SetLocked() {
	s.mu.Lock()
	s.locked = true
	s.mu.Unlock()
}

// SetNetwork switches network. The wallet is locked and the addresses are
// forgotten until the next unlock.
func (s *State) SetNetwork(network string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.network = network
	s.locked = true
	s.walletAddr = types.Address{}
	s.identity = types.Address{}
	s.walletPub = nil
	s.identityPub = nil
}

// Snapshot returns a copy of the state.
func (s *State) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return Snapshot{
		Locked:          s.locked,
		Network:         s.network,
		WalletAddress:   s.walletAddr,
		IdentityAddress: s.identity,
		WalletPubKey:    hex.EncodeToString(s.walletPub),
		IdentityPubKey:  hex.EncodeToString(s.identityPub),
	}
}
