package wallet

import (
	"encoding/hex"
	"errors"
	"strings"
	"testing"
)

const vectorMnemonic = "abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon about"

func TestGenerateMnemonic(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 4; i++ {
		m, err := GenerateMnemonic()
		if err != nil {
			t.Fatalf("GenerateMnemonic: %v", err)
		}
		if n := len(strings.Fields(m)); n != 12 {
			t.Fatalf("word count = %d, want 12", n)
		}
		if !ValidateMnemonic(m) {
			t.Fatalf("generated mnemonic %q does not validate", m)
		}
		if seen[m] {
			t.Fatal("duplicate mnemonic")
		}
		seen[m] = true
	}
}

func TestNormalizeMnemonic(t *testing.T) {
	got := NormalizeMnemonic("  Abandon\tabandon abandon abandon abandon abandon\nabandon abandon abandon abandon  abandon ABOUT \n")
	if got != vectorMnemonic {
		t.Errorf("NormalizeMnemonic = %q", got)
	}
	if NormalizeMnemonic(" \n ") != "" {
		t.Error("blank input should normalize to empty")
	}
}

func TestValidateMnemonic(t *testing.T) {
	tests := map[string]bool{
		vectorMnemonic: true,
		"abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon art": true,
		"": false,
		"abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon": false,
		"orbital wallet words that are not on the list at all ok": false,
	}
	for m, want := range tests {
		if got := ValidateMnemonic(m); got != want {
			t.Errorf("ValidateMnemonic(%q) = %v, want %v", m, got, want)
		}
	}
}

func TestMnemonicSeed(t *testing.T) {
	seed, err := mnemonicSeed(vectorMnemonic)
	if err != nil {
		t.Fatalf("mnemonicSeed: %v", err)
	}
	if len(seed) != SeedSize {
		t.Fatalf("seed length = %d", len(seed))
	}
	// BIP-39 vector for the empty passphrase.
	want := "5eb00bbddcf069084889a8ab9155568165f5c453ccb85e70811aaed6f6da5fc19a5ac40b389cd370d086206dec8aa6c43daea6690f20ad3d8d48b2d2ce9e38e4"
	if got := hex.EncodeToString(seed); got != want {
		t.Errorf("seed = %s, want %s", got, want)
	}

	if _, err := mnemonicSeed("abandon about"); !errors.Is(err, ErrInvalidMnemonic) {
		t.Errorf("bad mnemonic err = %v, want ErrInvalidMnemonic", err)
	}
}

func TestDeriveKeysNormalizes(t *testing.T) {
	a, err := DeriveKeys(vectorMnemonic, "", "")
	if err != nil {
		t.Fatalf("DeriveKeys: %v", err)
	}
	b, err := DeriveKeys(strings.ToUpper(vectorMnemonic)+"  ", "", "")
	if err != nil {
		t.Fatalf("DeriveKeys (messy input): %v", err)
	}
	if a.WalletAddress() != b.WalletAddress() {
		t.Error("normalized input should derive the same wallet key")
	}
	if b.Mnemonic != vectorMnemonic {
		t.Errorf("stored mnemonic = %q", b.Mnemonic)
	}
}
