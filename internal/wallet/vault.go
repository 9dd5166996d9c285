package wallet

import (
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	klog "github.com/Klingon-tech/orbital-wallet/internal/log"
	"github.com/Klingon-tech/orbital-wallet/internal/storage"
	"github.com/lightningnetwork/lnd/clock"
	"github.com/lightningnetwork/lnd/ticker"
)

// Vault errors.
var (
	ErrInvalidMnemonic = errors.New("invalid mnemonic")
	ErrLocked          = errors.New("wallet is locked")
)

// VaultConfig configures a Vault. Zero values fall back to defaults.
type VaultConfig struct {
	Params          EncryptionParams
	SessionTimeout  time.Duration
	InactivityLimit time.Duration
	Clock           clock.Clock
	// IdleTicker drives the idle-lock poll. Tests pass a ticker.Force.
	IdleTicker ticker.Ticker
}

// Vault owns the encrypted key blob, the unlocked session and the idle lock.
type Vault struct {
	mu       sync.Mutex
	cfg      VaultConfig
	store    *Keystore
	activity *ActivityMonitor
	sess     *session
	hooks    []func()
}

// NewVault creates a vault backed by db.
func NewVault(db storage.KV, cfg VaultConfig) *Vault {
	if cfg.Params.N == 0 {
		cfg.Params = DefaultParams()
	}
	if cfg.SessionTimeout <= 0 {
		cfg.SessionTimeout = DefaultSessionTimeout
	}
	if cfg.InactivityLimit <= 0 {
		cfg.InactivityLimit = DefaultInactivityLimit
	}
	if cfg.Clock == nil {
		cfg.Clock = clock.NewDefaultClock()
	}
	return &Vault{
		cfg:      cfg,
		store:    NewKeystore(db),
		activity: NewActivityMonitor(db, cfg.Clock, cfg.InactivityLimit, cfg.IdleTicker),
	}
}

// OnLock registers a hook run after every lock. Hooks run without the vault
// mutex held.
func (v *Vault) OnLock(fn func()) {
	v.mu.Lock()
	v.hooks = append(v.hooks, fn)
	v.mu.Unlock()
}

// Start begins the idle-lock poll.
func (v *Vault) Start() {
	v.activity.Start(v.checkIdle)
}

// Stop halts the idle-lock poll.
func (v *Vault) Stop() {
	v.activity.Stop()
}

// HasWallet reports whether a key blob has been stored.
func (v *Vault) HasWallet() bool {
	return v.store.Exists()
}

// CreateOrRestore encrypts a mnemonic under password and opens a session.
// A fresh 12-word mnemonic is generated when mnemonic is empty. Empty paths
// fall back to the defaults. The mnemonic in use is returned.
func (v *Vault) CreateOrRestore(password, mnemonic, walletPath, identityPath string) (string, error) {
	mnemonic = NormalizeMnemonic(mnemonic)
	if mnemonic == "" {
		m, err := GenerateMnemonic()
		if err != nil {
			return "", err
		}
		mnemonic = m
	} else if !ValidateMnemonic(mnemonic) {
		return "", ErrInvalidMnemonic
	}

	keys, err := DeriveKeys(mnemonic, walletPath, identityPath)
	if err != nil {
		return "", err
	}

	plaintext, err := json.Marshal([]string{keys.Mnemonic, keys.WalletPath, keys.IdentityPath})
	if err != nil {
		return "", fmt.Errorf("marshal keys: %w", err)
	}
	blob, err := Encrypt(plaintext, []byte(password), v.cfg.Params)
	zero(plaintext)
	if err != nil {
		return "", fmt.Errorf("encrypt keys: %w", err)
	}
	if err := v.store.Save(blob); err != nil {
		return "", err
	}

	v.open(keys)
	klog.Wallet.Info().
		Str("address", keys.WalletAddress().Hex()).
		Msg("Wallet created")
	return mnemonic, nil
}

// Unlock decrypts the stored keys and opens a session.
func (v *Vault) Unlock(password string) (*Keys, error) {
	blob, err := v.store.Load()
	if err != nil {
		return nil, err
	}
	plaintext, err := Decrypt(blob, []byte(password))
	if err != nil {
		return nil, err
	}
	defer zero(plaintext)

	var parts []string
	if err := json.Unmarshal(plaintext, &parts); err != nil || len(parts) != 3 {
		return nil, fmt.Errorf("decode keys: malformed plaintext")
	}
	keys, err := DeriveKeys(parts[0], parts[1], parts[2])
	if err != nil {
		return nil, err
	}

	v.open(keys)
	klog.Wallet.Info().Msg("Wallet unlocked")
	return keys, nil
}

func (v *Vault) open(keys *Keys) {
	v.mu.Lock()
	v.sess.destroy()
	v.sess = newSession(keys, v.cfg.Clock.Now(), v.cfg.SessionTimeout)
	v.mu.Unlock()
	v.activity.Touch()
}

// Verify checks password against the stored MAC without touching the session.
func (v *Vault) Verify(password string) bool {
	blob, err := v.store.Load()
	if err != nil {
		return false
	}
	return VerifyMAC(blob, []byte(password))
}

// Lock destroys the session, backdates the last activity and runs the lock
// hooks.
func (v *Vault) Lock() {
	v.mu.Lock()
	v.sess.destroy()
	v.sess = nil
	v.activity.Expire()
	hooks := append([]func(){}, v.hooks...)
	v.mu.Unlock()

	klog.Wallet.Info().Msg("Wallet locked")
	for _, fn := range hooks {
		fn()
	}
}

// Touch records user activity. Activity while locked is ignored.
func (v *Vault) Touch() {
	v.mu.Lock()
	open := v.sess != nil
	v.mu.Unlock()
	if open {
		v.activity.Touch()
	}
}

// IsUnlocked reports whether the session is valid and the idle window open.
func (v *Vault) IsUnlocked() bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.sess.valid(v.cfg.Clock.Now()) && !v.activity.Idle()
}

// Keys returns the session keys. An expired session or idle window locks
// the vault and returns ErrLocked.
func (v *Vault) Keys() (*Keys, error) {
	v.mu.Lock()
	if v.sess == nil {
		v.mu.Unlock()
		return nil, ErrLocked
	}
	if v.sess.valid(v.cfg.Clock.Now()) && !v.activity.Idle() {
		keys := v.sess.keys
		v.mu.Unlock()
		return keys, nil
	}
	v.mu.Unlock()

	v.Lock()
	return nil, ErrLocked
}

// ExpiresAt returns the session expiry, or the zero time when locked.
func (v *Vault) ExpiresAt() time.Time {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.sess == nil {
		return time.Time{}
	}
	return v.sess.expiresAt
}

// checkIdle runs on every idle-poll tick.
func (v *Vault) checkIdle() {
	v.mu.Lock()
	open := v.sess != nil
	expired := open && (!v.sess.valid(v.cfg.Clock.Now()) || v.activity.Idle())
	v.mu.Unlock()

	if expired {
		klog.Wallet.Info().Msg("Session expired or idle")
		v.Lock()
	}
}
