package types

import (
	"bytes"
	"strings"
	"testing"
)

func TestOutpoint_IsZero(t *testing.T) {
	var zero Outpoint
	if !zero.IsZero() {
		t.Error("zero-value Outpoint should be zero")
	}

	// Non-zero TxID
	nonZero := Outpoint{TxID: Hash{0x01}, Index: 0}
	if nonZero.IsZero() {
		t.Error("Outpoint with non-zero TxID should not be zero")
	}

	// Non-zero index
	nonZero2 := Outpoint{TxID: Hash{}, Index: 1}
	if nonZero2.IsZero() {
		t.Error("Outpoint with non-zero Index should not be zero")
	}
}

func TestOutpoint_String(t *testing.T) {
	o := Outpoint{
		TxID:  Hash{0xab},
		Index: 3,
	}
	s := o.String()

	// Display order puts the first internal byte last.
	if !strings.HasSuffix(s, "ab:3") {
		t.Errorf("String() should end with 'ab:3', got %s", s)
	}
}

func TestOutpoint_Key(t *testing.T) {
	a := Outpoint{TxID: Hash{0x01}, Index: 1}
	b := Outpoint{TxID: Hash{0x01}, Index: 256}
	if len(a.Key()) != 36 {
		t.Fatalf("Key() len = %d, want 36", len(a.Key()))
	}
	if bytes.Compare(a.Key(), b.Key()) >= 0 {
		t.Error("keys for the same txid should sort by index")
	}
}
