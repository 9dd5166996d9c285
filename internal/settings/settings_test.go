package settings

import (
	"testing"

	"github.com/Klingon-tech/orbital-wallet/internal/storage"
)

func TestSettings_Defaults(t *testing.T) {
	s := New(storage.NewMemory())

	if n, err := s.Network(); err != nil || n != "mainnet" {
		t.Errorf("Network() = %q, %v; want mainnet", n, err)
	}
	if v, err := s.NoApprovalLimit(); err != nil || v != 0 {
		t.Errorf("NoApprovalLimit() = %d, %v; want 0", v, err)
	}
	if req, err := s.PasswordRequired(); err != nil || !req {
		t.Errorf("PasswordRequired() = %v, %v; want true", req, err)
	}
	p, err := s.SocialProfile()
	if err != nil {
		t.Fatalf("SocialProfile: %v", err)
	}
	if p.DisplayName != "Anon Orbital" || p.Avatar != "" {
		t.Errorf("SocialProfile() = %+v", p)
	}
}

func TestSettings_Persisted(t *testing.T) {
	db := storage.NewMemory()
	s := New(db)
	s.SetNetwork("testnet")
	s.SetNoApprovalLimit(5000)
	s.SetPasswordRequired(false)
	s.SetSocialProfile(&SocialProfile{DisplayName: "Ada", Avatar: "https://a/b.png"})

	s = New(db)
	if n, _ := s.Network(); n != "testnet" {
		t.Errorf("Network() = %q, want testnet", n)
	}
	if v, _ := s.NoApprovalLimit(); v != 5000 {
		t.Errorf("NoApprovalLimit() = %d, want 5000", v)
	}
	if req, _ := s.PasswordRequired(); req {
		t.Error("PasswordRequired() = true, want false")
	}
	if p, _ := s.SocialProfile(); p.DisplayName != "Ada" || p.Avatar != "https://a/b.png" {
		t.Errorf("SocialProfile() = %+v", p)
	}
}

func TestSettings_SpendApproval(t *testing.T) {
	s := New(storage.NewMemory())
	s.SetNoApprovalLimit(1000)

	if err := s.SpendApproval(300); err != nil {
		t.Fatalf("SpendApproval: %v", err)
	}
	if v, _ := s.NoApprovalLimit(); v != 700 {
		t.Errorf("limit = %d, want 700", v)
	}
	s.SpendApproval(5000)
	if v, _ := s.NoApprovalLimit(); v != 0 {
		t.Errorf("limit = %d, want 0 (floored)", v)
	}
}

func TestSettings_CorruptValue(t *testing.T) {
	db := storage.NewMemory()
	db.Put(keyNoApprovalLimit, []byte("not json"))
	if _, err := New(db).NoApprovalLimit(); err == nil {
		t.Error("expected decode error")
	}
}

func TestSettings_InitNetwork(t *testing.T) {
	s := New(storage.NewMemory())
	n, err := s.InitNetwork("testnet")
	if err != nil || n != "testnet" {
		t.Fatalf("first InitNetwork = %q, %v; want testnet", n, err)
	}
	// The stored choice wins over later fallbacks.
	if n, _ := s.InitNetwork("mainnet"); n != "testnet" {
		t.Errorf("InitNetwork = %q, want testnet", n)
	}
	if err := s.SetNetwork("mainnet"); err != nil {
		t.Fatal(err)
	}
	if n, _ := s.InitNetwork("testnet"); n != "mainnet" {
		t.Errorf("InitNetwork after SetNetwork = %q, want mainnet", n)
	}
}
