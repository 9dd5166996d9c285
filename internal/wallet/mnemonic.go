// Package wallet holds the encrypted key vault, the unlocked session and the
// idle lock.
package wallet

import (
	"fmt"
	"strings"

	"github.com/tyler-smith/go-bip39"
)

// mnemonicEntropyBits yields 12 words.
const mnemonicEntropyBits = 128

// GenerateMnemonic returns a fresh 12-word mnemonic.
func GenerateMnemonic() (string, error) {
	entropy, err := bip39.NewEntropy(mnemonicEntropyBits)
	if err != nil {
		return "", fmt.Errorf("generate entropy: %w", err)
	}
	defer zero(entropy)
	return bip39.NewMnemonic(entropy)
}

// NormalizeMnemonic lowercases a typed mnemonic and collapses whitespace.
func NormalizeMnemonic(mnemonic string) string {
	return strings.Join(strings.Fields(strings.ToLower(mnemonic)), " ")
}

// ValidateMnemonic checks word list membership and the checksum.
func ValidateMnemonic(mnemonic string) bool {
	return bip39.IsMnemonicValid(mnemonic)
}

// mnemonicSeed stretches a mnemonic into the 64-byte HD seed. The wallet
// never uses a passphrase.
func mnemonicSeed(mnemonic string) ([]byte, error) {
	seed, err := bip39.NewSeedWithErrorChecking(mnemonic, "")
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidMnemonic, err)
	}
	return seed, nil
}
