package wallet

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/Klingon-tech/orbital-wallet/internal/storage"
)

// Storage keys owned by the keystore.
var (
	keyBlobKey    = []byte("keyBlob")
	lastActiveKey = []byte("lastActive")
)

// ErrNoWallet is returned when no encrypted key blob has been stored.
var ErrNoWallet = errors.New("no wallet")

// keystoreRecord is the stored JSON form of an encrypted key blob.
type keystoreRecord struct {
	Version int   `json:"version"`
	Blob    *Blob `json:"blob"`
}

// Keystore persists the single encrypted key blob of an installation.
type Keystore struct {
	db storage.KV
}

// NewKeystore creates a keystore on top of a key-value store.
func NewKeystore(db storage.KV) *Keystore {
	return &Keystore{db: db}
}

// Exists reports whether a key blob has been stored.
func (ks *Keystore) Exists() bool {
	ok, err := ks.db.Has(keyBlobKey)
	return err == nil && ok
}

// Save stores blob, replacing any previous one.
func (ks *Keystore) Save(blob *Blob) error {
	data, err := json.Marshal(keystoreRecord{Version: 1, Blob: blob})
	if err != nil {
		return fmt.Errorf("marshal key blob: %w", err)
	}
	if err := ks.db.Put(keyBlobKey, data); err != nil {
		return fmt.Errorf("write key blob: %w", err)
	}
	return nil
}

// Load returns the stored key blob.
func (ks *Keystore) Load() (*Blob, error) {
	data, err := ks.db.Get(keyBlobKey)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, ErrNoWallet
	}
	if err != nil {
		return nil, fmt.Errorf("read key blob: %w", err)
	}
	var rec keystoreRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("parse key blob: %w", err)
	}
	if rec.Version != 1 {
		return nil, fmt.Errorf("unsupported key blob version: %d", rec.Version)
	}
	if rec.Blob == nil {
		return nil, ErrNoWallet
	}
	return rec.Blob, nil
}

// Delete removes the key blob.
func (ks *Keystore) Delete() error {
	return ks.db.Delete(keyBlobKey)
}
