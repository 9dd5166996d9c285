package script

import (
	"encoding/hex"
	"testing"

	"github.com/Klingon-tech/orbital-wallet/pkg/types"
)

var testAddr = types.Address{0x11, 0x22, 0x33, 0x44, 0x55, 0x66, 0x77, 0x88, 0x99, 0xaa,
	0xbb, 0xcc, 0xdd, 0xee, 0xff, 0x00, 0x01, 0x02, 0x03, 0x04}

func testRef(t *testing.T) types.Ref {
	t.Helper()
	r, err := types.ParseRefOutpoint("0102030405060708091011121314151617181920212223242526272829303132_2")
	if err != nil {
		t.Fatal(err)
	}
	return r
}

func TestP2PKH(t *testing.T) {
	s := P2PKH(testAddr)
	want := "76a914" + testAddr.Hex() + "88ac"
	if hex.EncodeToString(s) != want {
		t.Errorf("P2PKH = %x, want %s", s, want)
	}
	if len(s) != P2PKHScriptSize {
		t.Errorf("len = %d, want %d", len(s), P2PKHScriptSize)
	}
	addr, ok := ParseP2PKH(s)
	if !ok || addr != testAddr {
		t.Errorf("ParseP2PKH = %x, %v", addr, ok)
	}
}

func TestFT(t *testing.T) {
	ref := testRef(t)
	s := FT(testAddr, ref)
	want := "76a914" + testAddr.Hex() + "88acbdd0" + ref.String() + "dec0e9aa76e378e4a269e69d"
	if hex.EncodeToString(s) != want {
		t.Errorf("FT = %x\nwant %s", s, want)
	}
	if len(s) != FTScriptSize {
		t.Errorf("len = %d, want %d", len(s), FTScriptSize)
	}

	addr, gotRef, ok := ParseFT(s)
	if !ok {
		t.Fatal("ParseFT failed on FT script")
	}
	if addr != testAddr || gotRef != ref {
		t.Errorf("ParseFT = %x %s", addr, gotRef)
	}
	if Classify(s) != KindFT {
		t.Errorf("Classify = %s, want ft", Classify(s))
	}
}

func TestFT_TamperedEpilogue(t *testing.T) {
	s := FT(testAddr, testRef(t))
	s[len(s)-1] ^= 0xff
	if _, _, ok := ParseFT(s); ok {
		t.Error("ParseFT accepted a modified epilogue")
	}
}

func TestNFT(t *testing.T) {
	ref := testRef(t)
	s := NFT(testAddr, ref)
	want := "d8" + ref.String() + "75" + "76a914" + testAddr.Hex() + "88ac"
	if hex.EncodeToString(s) != want {
		t.Errorf("NFT = %x\nwant %s", s, want)
	}
	if len(s) != NFTScriptSize {
		t.Errorf("len = %d, want %d", len(s), NFTScriptSize)
	}
	addr, gotRef, ok := ParseNFT(s)
	if !ok || addr != testAddr || gotRef != ref {
		t.Errorf("ParseNFT = %x %s %v", addr, gotRef, ok)
	}
	if Classify(s) != KindNFT {
		t.Errorf("Classify = %s, want nft", Classify(s))
	}
}

func TestData(t *testing.T) {
	s, err := DataHex([]string{"6869", "00ff"})
	if err != nil {
		t.Fatal(err)
	}
	if hex.EncodeToString(s) != "006a02686902"+"00ff" {
		t.Errorf("Data = %x", s)
	}
	if Classify(s) != KindData {
		t.Errorf("Classify = %s, want data", Classify(s))
	}

	if _, err := DataHex([]string{"zz"}); err == nil {
		t.Error("DataHex accepted invalid hex")
	}
}

func TestLookupKey(t *testing.T) {
	// sha256("") = e3b0c442...b855, reversed.
	got := LookupKey(nil)
	want := "55b852781b9995a44c939b64e441ae2724b96f99c8f4fb9a141cfc9842c4b0e3"
	if got != want {
		t.Errorf("LookupKey(empty) = %s, want %s", got, want)
	}
}

func TestLookupKey_ZeroRefFT(t *testing.T) {
	// Every FT output of an address is indexed under the zero-ref key.
	a := LookupKey(FT(testAddr, types.ZeroRef))
	b := LookupKey(FT(testAddr, testRef(t)))
	if a == b {
		t.Error("zero-ref and real-ref FT scripts should hash differently")
	}
}

func TestPushRefs(t *testing.T) {
	ref := testRef(t)
	other := types.Ref{0x09}

	ft := FT(testAddr, ref)
	refs, err := PushRefs(ft)
	if err != nil {
		t.Fatalf("PushRefs(ft): %v", err)
	}
	if len(refs) != 1 || refs[0] != ref {
		t.Errorf("PushRefs(ft) = %v", refs)
	}

	// OP_REQUIREINPUTREF operands are skipped, singletons are collected.
	s := append([]byte{OpRequireInputRef}, other[:]...)
	s = append(s, NFT(testAddr, ref)...)
	refs, err = PushRefs(s)
	if err != nil {
		t.Fatalf("PushRefs(mixed): %v", err)
	}
	if len(refs) != 1 || refs[0] != ref {
		t.Errorf("PushRefs(mixed) = %v", refs)
	}

	if refs, _ := PushRefs(P2PKH(testAddr)); len(refs) != 0 {
		t.Errorf("PushRefs(p2pkh) = %v, want none", refs)
	}
}

func TestPushRefs_Truncated(t *testing.T) {
	if _, err := PushRefs([]byte{OpPushInputRef, 0x01, 0x02}); err == nil {
		t.Error("PushRefs accepted truncated operand")
	}
	if _, err := PushRefs([]byte{0x05, 0x01}); err == nil {
		t.Error("PushRefs accepted truncated data push")
	}
}

func TestClassify_Unknown(t *testing.T) {
	if Classify([]byte{0x51}) != KindUnknown {
		t.Error("OP_1 should be unknown")
	}
}
