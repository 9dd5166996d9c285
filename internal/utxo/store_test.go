package utxo

import (
	"errors"
	"testing"

	"github.com/Klingon-tech/orbital-wallet/internal/storage"
	"github.com/Klingon-tech/orbital-wallet/pkg/crypto"
	"github.com/Klingon-tech/orbital-wallet/pkg/script"
	"github.com/Klingon-tech/orbital-wallet/pkg/types"
)

var testAddr = types.Address{0x01, 0x02, 0x03, 0x04, 0x05, 0x06, 0x07, 0x08,
	0x09, 0x0a, 0x0b, 0x0c, 0x0d, 0x0e, 0x0f, 0x10,
	0x11, 0x12, 0x13, 0x14}

func testStore(t *testing.T) *Store {
	t.Helper()
	return NewStore(storage.NewMemory())
}

func makeOutpoint(data string, index uint32) types.Outpoint {
	return types.Outpoint{
		TxID:  crypto.DoubleSha256([]byte(data)),
		Index: index,
	}
}

func makeUTXO(data string, index uint32, value uint64) *UTXO {
	s := script.P2PKH(testAddr)
	return &UTXO{
		Kind:      KindCoin,
		Outpoint:  makeOutpoint(data, index),
		Value:     value,
		Script:    s,
		Height:    1,
		LookupKey: script.LookupKey(s),
	}
}

func makeTokenUTXO(data string, index uint32, value uint64, ref types.Ref) *UTXO {
	s := script.FT(testAddr, ref)
	return &UTXO{
		Kind:      KindToken,
		Outpoint:  makeOutpoint(data, index),
		Value:     value,
		Script:    s,
		TokenRef:  &ref,
		Height:    1,
		LookupKey: script.LookupKey(script.FT(testAddr, types.ZeroRef)),
	}
}

func TestStore_PutAndGet(t *testing.T) {
	s := testStore(t)
	u := makeUTXO("tx1", 0, 5000)

	err := s.Put(u)
	if err != nil {
		t.Fatalf("Put() error: %v", err)
	}

	got, err := s.Get(u.Outpoint)
	if err != nil {
		t.Fatalf("Get() error: %v", err)
	}

	if got.Value != u.Value {
		t.Errorf("Value = %d, want %d", got.Value, u.Value)
	}
	if got.Outpoint != u.Outpoint {
		t.Error("Outpoint mismatch")
	}
	if got.Height != u.Height {
		t.Errorf("Height = %d, want %d", got.Height, u.Height)
	}
}

func TestStore_GetNonexistent(t *testing.T) {
	s := testStore(t)

	_, err := s.Get(makeOutpoint("missing", 0))
	if err == nil {
		t.Error("Get() for nonexistent UTXO should return error")
	}
}

func TestStore_Has(t *testing.T) {
	s := testStore(t)
	u := makeUTXO("tx1", 0, 1000)

	ok, _ := s.Has(u.Outpoint)
	if ok {
		t.Error("Has() should be false before Put()")
	}

	s.Put(u)

	ok, err := s.Has(u.Outpoint)
	if err != nil {
		t.Fatalf("Has() error: %v", err)
	}
	if !ok {
		t.Error("Has() should be true after Put()")
	}
}

func TestStore_Delete(t *testing.T) {
	s := testStore(t)
	u := makeUTXO("tx1", 0, 1000)

	s.Put(u)

	err := s.Delete(u.Outpoint)
	if err != nil {
		t.Fatalf("Delete() error: %v", err)
	}

	ok, _ := s.Has(u.Outpoint)
	if ok {
		t.Error("UTXO should be gone after Delete()")
	}
}

func TestStore_MultipleOutputs(t *testing.T) {
	s := testStore(t)

	// Same tx, different output indices.
	u0 := makeUTXO("tx1", 0, 1000)
	u1 := makeUTXO("tx1", 1, 2000)
	u2 := makeUTXO("tx1", 2, 3000)

	s.Put(u0)
	s.Put(u1)
	s.Put(u2)

	got0, _ := s.Get(u0.Outpoint)
	got1, _ := s.Get(u1.Outpoint)
	got2, _ := s.Get(u2.Outpoint)

	if got0.Value != 1000 || got1.Value != 2000 || got2.Value != 3000 {
		t.Error("values mismatch for multi-output tx")
	}

	// Delete middle one.
	s.Delete(u1.Outpoint)

	ok, _ := s.Has(u1.Outpoint)
	if ok {
		t.Error("deleted output should be gone")
	}

	// Others should remain.
	ok0, _ := s.Has(u0.Outpoint)
	ok2, _ := s.Has(u2.Outpoint)
	if !ok0 || !ok2 {
		t.Error("non-deleted outputs should remain")
	}
}

func TestStore_TokenRef(t *testing.T) {
	s := testStore(t)
	ref := makeOutpoint("genesis", 1).Ref()
	u := makeTokenUTXO("token-tx", 0, 50000, ref)

	if err := s.Put(u); err != nil {
		t.Fatalf("Put() error: %v", err)
	}

	got, err := s.Get(u.Outpoint)
	if err != nil {
		t.Fatalf("Get() error: %v", err)
	}
	if got.TokenRef == nil || *got.TokenRef != ref {
		t.Fatal("TokenRef mismatch")
	}
	if got.Kind != KindToken {
		t.Errorf("Kind = %v, want ft", got.Kind)
	}
}

func TestStore_GetNotFoundWraps(t *testing.T) {
	s := testStore(t)
	_, err := s.Get(makeOutpoint("missing", 0))
	if !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("error = %v, want wrapped ErrNotFound", err)
	}
}

func TestStore_LookupIndex(t *testing.T) {
	s := testStore(t)
	coinKey := makeUTXO("a", 0, 1).LookupKey

	s.Put(makeUTXO("a", 0, 1000))
	s.Put(makeUTXO("b", 0, 2000))
	s.Put(makeTokenUTXO("c", 0, 10, makeOutpoint("g", 0).Ref()))

	coins, err := s.ByLookupKey(coinKey)
	if err != nil {
		t.Fatalf("ByLookupKey() error: %v", err)
	}
	if len(coins) != 2 {
		t.Errorf("coins = %d, want 2", len(coins))
	}

	s.Delete(makeOutpoint("a", 0))
	coins, _ = s.ByLookupKey(coinKey)
	if len(coins) != 1 || coins[0].Value != 2000 {
		t.Errorf("after delete: %d coins", len(coins))
	}
}

func TestStore_RefIndex(t *testing.T) {
	s := testStore(t)
	refA := makeOutpoint("genesis-a", 0).Ref()
	refB := makeOutpoint("genesis-b", 0).Ref()

	s.Put(makeTokenUTXO("t1", 0, 10, refA))
	s.Put(makeTokenUTXO("t2", 0, 20, refA))
	s.Put(makeTokenUTXO("t3", 0, 30, refB))

	a, err := s.ByRef(refA)
	if err != nil {
		t.Fatalf("ByRef() error: %v", err)
	}
	if len(a) != 2 {
		t.Errorf("refA utxos = %d, want 2", len(a))
	}

	s.Delete(makeOutpoint("t1", 0))
	a, _ = s.ByRef(refA)
	if len(a) != 1 || a[0].Value != 20 {
		t.Error("ref index should drop deleted utxo")
	}
}

func TestStore_ByKind(t *testing.T) {
	s := testStore(t)
	s.Put(makeUTXO("a", 0, 1000))
	s.Put(makeTokenUTXO("b", 0, 10, makeOutpoint("g", 0).Ref()))

	coins, _ := s.ByKind(KindCoin)
	tokens, _ := s.ByKind(KindToken)
	if len(coins) != 1 || len(tokens) != 1 {
		t.Errorf("coins = %d tokens = %d, want 1/1", len(coins), len(tokens))
	}
}

func TestStore_ClearAll(t *testing.T) {
	db := storage.NewMemory()
	s := NewStore(db)
	s.Put(makeUTXO("a", 0, 1000))
	s.Put(makeTokenUTXO("b", 0, 10, makeOutpoint("g", 0).Ref()))

	if err := s.ClearAll(); err != nil {
		t.Fatalf("ClearAll() error: %v", err)
	}
	n := 0
	db.ForEach(nil, func(_, _ []byte) error {
		n++
		return nil
	})
	if n != 0 {
		t.Errorf("%d keys left after ClearAll", n)
	}
}

func TestSortCandidates(t *testing.T) {
	u := func(h uint64, tx byte, idx uint32) *UTXO {
		var id types.Hash
		id[types.HashSize-1] = tx
		return &UTXO{Outpoint: types.Outpoint{TxID: id, Index: idx}, Height: h}
	}
	list := []*UTXO{u(0, 1, 0), u(20, 2, 0), u(10, 3, 1), u(10, 3, 0), u(10, 1, 5)}
	SortCandidates(list)

	want := []struct {
		h   uint64
		tx  byte
		idx uint32
	}{{10, 1, 5}, {10, 3, 0}, {10, 3, 1}, {20, 2, 0}, {0, 1, 0}}
	for i, w := range want {
		got := list[i]
		if got.Height != w.h || got.Outpoint.TxID[types.HashSize-1] != w.tx || got.Outpoint.Index != w.idx {
			t.Errorf("position %d = h%d tx%d:%d, want h%d tx%d:%d", i,
				got.Height, got.Outpoint.TxID[types.HashSize-1], got.Outpoint.Index, w.h, w.tx, w.idx)
		}
	}
}

func TestKindOf(t *testing.T) {
	ref := makeOutpoint("g", 0).Ref()
	if KindOf(script.P2PKH(testAddr)) != KindCoin {
		t.Error("p2pkh should be coin")
	}
	if KindOf(script.FT(testAddr, ref)) != KindToken {
		t.Error("ft should be token")
	}
	if KindOf(script.NFT(testAddr, ref)) != KindNFT {
		t.Error("nft should be nft")
	}
}

func TestKind_JSON(t *testing.T) {
	for _, k := range []Kind{KindCoin, KindToken, KindNFT} {
		data, err := k.MarshalJSON()
		if err != nil {
			t.Fatalf("MarshalJSON() error: %v", err)
		}
		var got Kind
		if err := got.UnmarshalJSON(data); err != nil {
			t.Fatalf("UnmarshalJSON(%s) error: %v", data, err)
		}
		if got != k {
			t.Errorf("roundtrip %v -> %v", k, got)
		}
	}
	var k Kind
	if err := k.UnmarshalJSON([]byte(`"bogus"`)); err == nil {
		t.Error("unknown kind should fail")
	}
}
