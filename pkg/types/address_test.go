package types

import (
	"strings"
	"testing"
)

func TestAddress_IsZero(t *testing.T) {
	var zero Address
	if !zero.IsZero() {
		t.Error("zero-value Address should be zero")
	}

	nonZero := Address{0x01}
	if nonZero.IsZero() {
		t.Error("non-zero Address should not be zero")
	}
}

func TestAddress_Encode_ZeroHash(t *testing.T) {
	var zero Address
	if got := zero.Encode(MainnetParams); got != "1111111111111111111114oLvT2" {
		t.Errorf("Encode(mainnet) = %s, want 1111111111111111111114oLvT2", got)
	}
}

func TestAddress_Encode_Prefix(t *testing.T) {
	a := Address{0xab, 0x01}
	if s := a.Encode(MainnetParams); !strings.HasPrefix(s, "1") {
		t.Errorf("mainnet address should start with '1', got %s", s)
	}
	s := a.Encode(TestnetParams)
	if !strings.HasPrefix(s, "m") && !strings.HasPrefix(s, "n") {
		t.Errorf("testnet address should start with 'm' or 'n', got %s", s)
	}
}

func TestAddress_Roundtrip(t *testing.T) {
	a := Address{0x8f, 0x3a, 0x44, 0xb8, 0x05, 0x6c, 0xaf, 0xec, 0x36, 0x8d,
		0x11, 0x22, 0x33, 0x44, 0x55, 0x66, 0x77, 0x88, 0x99, 0x00}

	for _, params := range []string{"mainnet", "testnet"} {
		net := NetParams(params)
		got, err := ParseAddress(a.Encode(net), net)
		if err != nil {
			t.Fatalf("ParseAddress(%s): %v", params, err)
		}
		if got != a {
			t.Errorf("%s roundtrip = %x, want %x", params, got, a)
		}
	}
}

func TestParseAddress_WrongNetwork(t *testing.T) {
	a := Address{0x42}
	if _, err := ParseAddress(a.Encode(MainnetParams), TestnetParams); err == nil {
		t.Error("mainnet address should not parse on testnet")
	}
}

func TestParseAddress_Invalid(t *testing.T) {
	for _, s := range []string{"", "not-an-address", "1111111111111111111114oLvT3"} {
		if _, err := ParseAddress(s, MainnetParams); err == nil {
			t.Errorf("ParseAddress(%q) should fail", s)
		}
	}
}

func TestAddressFromPubKey(t *testing.T) {
	pub := make([]byte, 33)
	pub[0] = 0x02
	a := AddressFromPubKey(pub)
	if a.IsZero() {
		t.Error("AddressFromPubKey returned zero address")
	}
	if a != AddressFromPubKey(pub) {
		t.Error("AddressFromPubKey is not deterministic")
	}
}
