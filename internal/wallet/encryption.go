package wallet

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/subtle"
	"errors"
	"fmt"

	"golang.org/x/crypto/scrypt"
	"golang.org/x/crypto/sha3"
)

// Encryption constants.
const (
	SaltSize = 32
	IVSize   = aes.BlockSize

	// derivedKeySize covers the AES-128 key and the MAC key.
	derivedKeySize = 32
	cipherKeySize  = 16
)

// ErrUnauthorized is returned when a password does not match the stored blob.
var ErrUnauthorized = errors.New("unauthorized")

// EncryptionParams holds scrypt parameters.
type EncryptionParams struct {
	N     int `json:"n"`
	R     int `json:"r"`
	P     int `json:"p"`
	DKLen int `json:"dklen"`
}

// DefaultParams returns the scrypt parameters used for new vaults.
func DefaultParams() EncryptionParams {
	return EncryptionParams{
		N:     1 << 18,
		R:     8,
		P:     1,
		DKLen: derivedKeySize,
	}
}

// Blob is an encrypted secret with everything needed to open it again.
type Blob struct {
	Ciphertext []byte           `json:"ciphertext"`
	IV         []byte           `json:"iv"`
	Salt       []byte           `json:"salt"`
	MAC        []byte           `json:"mac"`
	Params     EncryptionParams `json:"kdf"`
}

// deriveKey runs scrypt over password and salt.
func deriveKey(password, salt []byte, params EncryptionParams) ([]byte, error) {
	if params.DKLen < derivedKeySize {
		return nil, fmt.Errorf("derived key length %d, need %d", params.DKLen, derivedKeySize)
	}
	dk, err := scrypt.Key(password, salt, params.N, params.R, params.P, params.DKLen)
	if err != nil {
		return nil, fmt.Errorf("scrypt: %w", err)
	}
	return dk, nil
}

// computeMAC returns keccak256(dk[16:32] || ciphertext).
func computeMAC(dk, ciphertext []byte) []byte {
	h := sha3.NewLegacyKeccak256()
	h.Write(dk[cipherKeySize:derivedKeySize])
	h.Write(ciphertext)
	return h.Sum(nil)
}

func xorCTR(key, iv, in []byte) ([]byte, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("create cipher: %w", err)
	}
	out := make([]byte, len(in))
	cipher.NewCTR(block, iv).XORKeyStream(out, in)
	return out, nil
}

func zero(b []byte) {
	for i := range b {
		b[i] = 0
	}
}

// Encrypt encrypts data with password using scrypt + AES-128-CTR and
// authenticates the ciphertext with a keccak256 MAC.
func Encrypt(data, password []byte, params EncryptionParams) (*Blob, error) {
	salt := make([]byte, SaltSize)
	if _, err := rand.Read(salt); err != nil {
		return nil, fmt.Errorf("generate salt: %w", err)
	}
	iv := make([]byte, IVSize)
	if _, err := rand.Read(iv); err != nil {
		return nil, fmt.Errorf("generate iv: %w", err)
	}

	dk, err := deriveKey(password, salt, params)
	if err != nil {
		return nil, err
	}
	defer zero(dk)

	ciphertext, err := xorCTR(dk[:cipherKeySize], iv, data)
	if err != nil {
		return nil, err
	}

	return &Blob{
		Ciphertext: ciphertext,
		IV:         iv,
		Salt:       salt,
		MAC:        computeMAC(dk, ciphertext),
		Params:     params,
	}, nil
}

// VerifyMAC reports whether password opens the blob. Nothing is decrypted.
func VerifyMAC(blob *Blob, password []byte) bool {
	dk, err := deriveKey(password, blob.Salt, blob.Params)
	if err != nil {
		return false
	}
	defer zero(dk)
	return subtle.ConstantTimeCompare(computeMAC(dk, blob.Ciphertext), blob.MAC) == 1
}

// Decrypt checks the MAC and then decrypts the blob.
func Decrypt(blob *Blob, password []byte) ([]byte, error) {
	if blob == nil || len(blob.IV) != IVSize {
		return nil, fmt.Errorf("malformed blob")
	}
	dk, err := deriveKey(password, blob.Salt, blob.Params)
	if err != nil {
		return nil, err
	}
	defer zero(dk)

	if subtle.ConstantTimeCompare(computeMAC(dk, blob.Ciphertext), blob.MAC) != 1 {
		return nil, ErrUnauthorized
	}
	return xorCTR(dk[:cipherKeySize], blob.IV, blob.Ciphertext)
}
