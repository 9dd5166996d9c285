// Package settings persists the user preferences the daemon consults at
// runtime.
package settings

import (
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/Klingon-tech/orbital-wallet/internal/storage"
)

// DefaultDisplayName is the social profile name used until the user sets one.
const DefaultDisplayName = "Anon Orbital"

// DefaultNetwork is the network used on first start.
const DefaultNetwork = "mainnet"

var (
	keyNetwork          = []byte("settings/network")
	keyNoApprovalLimit  = []byte("settings/noApprovalLimit")
	keyPasswordRequired = []byte("settings/isPasswordRequired")
	keySocialProfile    = []byte("settings/socialProfile")
)

// SocialProfile is what getSocialProfile returns.
type SocialProfile struct {
	DisplayName string `json:"displayName"`
	Avatar      string `json:"avatar,omitempty"`
}

// Settings reads and writes preferences.
type Settings struct {
	mu sync.Mutex
	db storage.KV
}

// New creates a settings store on db.
func New(db storage.KV) *Settings {
	return &Settings{db: db}
}

// get decodes key into v. It reports false when the key is absent.
func (s *Settings) get(key []byte, v any) (bool, error) {
	data, err := s.db.Get(key)
	if errors.Is(err, storage.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if err := json.Unmarshal(data, v); err != nil {
		return false, fmt.Errorf("decode %s: %w", key, err)
	}
	return true, nil
}

func (s *Settings) put(key []byte, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return s.db.Put(key, data)
}

// Network returns the selected network.
func (s *Settings) Network() (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var n string
	ok, err := s.get(keyNetwork, &n)
	if err != nil || !ok || n == "" {
		return DefaultNetwork, err
	}
	return n, nil
}

// SetNetwork persists the selected network.
func (s *Settings) SetNetwork(network string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.put(keyNetwork, network)
}

// InitNetwork returns the persisted network, storing fallback first when
// none has been selected yet.
func (s *Settings) InitNetwork(fallback string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var n string
	ok, err := s.get(keyNetwork, &n)
	if err != nil {
		return "", err
	}
	if ok && n != "" {
		return n, nil
	}
	if fallback == "" {
		fallback = DefaultNetwork
	}
	return fallback, s.put(keyNetwork, fallback)
}

// NoApprovalLimit returns the remaining auto-approval allowance in photons.
func (s *Settings) NoApprovalLimit() (uint64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var v uint64
	_, err := s.get(keyNoApprovalLimit, &v)
	return v, err
}

// SetNoApprovalLimit sets the auto-approval allowance.
func (s *Settings) SetNoApprovalLimit(photons uint64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.put(keyNoApprovalLimit, photons)
}

// SpendApproval deducts amount from the allowance, flooring at zero.
func (s *Settings) SpendApproval(amount uint64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	var v uint64
	if _, err := s.get(keyNoApprovalLimit, &v); err != nil {
		return err
	}
	if amount > v {
		v = 0
	} else {
		v -= amount
	}
	return s.put(keyNoApprovalLimit, v)
}

// PasswordRequired reports whether approvals ask for the password.
// It defaults to true.
func (s *Settings) PasswordRequired() (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v := true
	_, err := s.get(keyPasswordRequired, &v)
	return v, err
}

// SetPasswordRequired toggles the approval password.
func (s *Settings) SetPasswordRequired(required bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.put(keyPasswordRequired, required)
}

// SocialProfile returns the stored profile with defaults filled in.
func (s *Settings) SocialProfile() (*SocialProfile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p := &SocialProfile{}
	if _, err := s.get(keySocialProfile, p); err != nil {
		return nil, err
	}
	if p.DisplayName == "" {
		p.DisplayName = DefaultDisplayName
	}
	return p, nil
}

// SetSocialProfile stores the profile.
func (s *Settings) SetSocialProfile(p *SocialProfile) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.put(keySocialProfile, p)
}
