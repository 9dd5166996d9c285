package types

import (
	"encoding/json"
	"strings"
	"testing"
)

const testTxID = "0102030405060708091011121314151617181920212223242526272829303132"

func TestParseRefOutpoint(t *testing.T) {
	r, err := ParseRefOutpoint(testTxID + "_1")
	if err != nil {
		t.Fatalf("ParseRefOutpoint: %v", err)
	}

	// Little-endian form: reversed txid then LE index.
	want := "3231302928272625242322212019181716151413121110090807060504030201" + "01000000"
	if r.String() != want {
		t.Errorf("String() = %s, want %s", r.String(), want)
	}

	// Big-endian form: display txid then BE index.
	if r.BigEndian() != testTxID+"00000001" {
		t.Errorf("BigEndian() = %s, want %s", r.BigEndian(), testTxID+"00000001")
	}

	op := r.Outpoint()
	if op.TxID.String() != testTxID || op.Index != 1 {
		t.Errorf("Outpoint() = %s, want %s:1", op, testTxID)
	}
}

func TestParseRefOutpoint_Invalid(t *testing.T) {
	for _, s := range []string{"", testTxID, testTxID + "_x", "zz_1", testTxID[:10] + "_0"} {
		if _, err := ParseRefOutpoint(s); err == nil {
			t.Errorf("ParseRefOutpoint(%q) should fail", s)
		}
	}
}

func TestRef_OutpointRoundtrip(t *testing.T) {
	h, _ := HexToHash(testTxID)
	op := Outpoint{TxID: h, Index: 70000}
	if got := op.Ref().Outpoint(); got != op {
		t.Errorf("Ref().Outpoint() = %s, want %s", got, op)
	}
}

func TestRef_JSON(t *testing.T) {
	r, _ := ParseRefOutpoint(testTxID + "_0")
	data, err := json.Marshal(r)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), r.String()) {
		t.Errorf("Marshal = %s, want hex %s", data, r.String())
	}
	var back Ref
	if err := json.Unmarshal(data, &back); err != nil {
		t.Fatal(err)
	}
	if back != r {
		t.Error("JSON roundtrip mismatch")
	}
}

func TestZeroRef(t *testing.T) {
	if !ZeroRef.IsZero() {
		t.Error("ZeroRef.IsZero() = false")
	}
	if len(ZeroRef.String()) != 72 {
		t.Errorf("ZeroRef hex len = %d, want 72", len(ZeroRef.String()))
	}
}
