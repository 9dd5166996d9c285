package crypto

import (
	"bytes"
	"errors"
	"testing"
)

func TestECIES_Roundtrip(t *testing.T) {
	alice, _ := GenerateKey()
	bob, _ := GenerateKey()

	for _, msg := range [][]byte{{}, []byte("hi"), bytes.Repeat([]byte("x"), 16), bytes.Repeat([]byte("y"), 1000)} {
		ct, err := Encrypt(alice, bob.PublicKey(), msg)
		if err != nil {
			t.Fatalf("Encrypt: %v", err)
		}
		if !bytes.HasPrefix(ct, []byte("BIE1")) {
			t.Fatal("ciphertext missing BIE1 magic")
		}
		pt, err := Decrypt(bob, ct)
		if err != nil {
			t.Fatalf("Decrypt(%d bytes): %v", len(msg), err)
		}
		if !bytes.Equal(pt, msg) {
			t.Errorf("roundtrip = %q, want %q", pt, msg)
		}
	}
}

func TestECIES_SelfEncrypt(t *testing.T) {
	key, _ := GenerateKey()
	ct, err := Encrypt(key, key.PublicKey(), []byte("note to self"))
	if err != nil {
		t.Fatal(err)
	}
	pt, err := Decrypt(key, ct)
	if err != nil {
		t.Fatal(err)
	}
	if string(pt) != "note to self" {
		t.Errorf("got %q", pt)
	}
}

func TestECIES_WrongKey(t *testing.T) {
	alice, _ := GenerateKey()
	bob, _ := GenerateKey()
	eve, _ := GenerateKey()

	ct, _ := Encrypt(alice, bob.PublicKey(), []byte("secret"))
	if _, err := Decrypt(eve, ct); !errors.Is(err, ErrDecrypt) {
		t.Errorf("Decrypt with wrong key = %v, want ErrDecrypt", err)
	}
}

func TestECIES_Tampered(t *testing.T) {
	alice, _ := GenerateKey()
	bob, _ := GenerateKey()
	ct, _ := Encrypt(alice, bob.PublicKey(), []byte("secret"))

	ct[len(ct)-40] ^= 0x01
	if _, err := Decrypt(bob, ct); !errors.Is(err, ErrDecrypt) {
		t.Errorf("Decrypt tampered = %v, want ErrDecrypt", err)
	}
	if _, err := Decrypt(bob, []byte("BIE1short")); !errors.Is(err, ErrDecrypt) {
		t.Errorf("Decrypt short = %v, want ErrDecrypt", err)
	}
}

func TestEncrypt_BadRecipient(t *testing.T) {
	alice, _ := GenerateKey()
	if _, err := Encrypt(alice, []byte{0x02, 0x01}, []byte("x")); err == nil {
		t.Error("Encrypt accepted an invalid recipient key")
	}
}
