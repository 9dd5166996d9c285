package types

import (
	"encoding/binary"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// RefSize is the length of a ref in bytes.
const RefSize = 36

// Ref identifies a token by its genesis outpoint. It is stored in
// little-endian form: the internal-order txid followed by the output index
// as a little-endian uint32. This is the byte string pushed after
// OP_PUSHINPUTREF in token scripts.
type Ref [RefSize]byte

// ZeroRef is the all-zero ref, used to derive the lookup key that matches
// every FT output of an address.
var ZeroRef Ref

// ParseRefOutpoint parses the "txid_vout" form returned by ElectrumX.
func ParseRefOutpoint(s string) (Ref, error) {
	txid, vout, ok := strings.Cut(s, "_")
	if !ok {
		return Ref{}, fmt.Errorf("ref %q: missing '_' separator", s)
	}
	h, err := HexToHash(txid)
	if err != nil {
		return Ref{}, fmt.Errorf("ref %q: %w", s, err)
	}
	n, err := strconv.ParseUint(vout, 10, 32)
	if err != nil {
		return Ref{}, fmt.Errorf("ref %q: invalid vout: %w", s, err)
	}
	return Outpoint{TxID: h, Index: uint32(n)}.Ref(), nil
}

// HexToRef parses the 72-char little-endian hex form.
func HexToRef(s string) (Ref, error) {
	b, err := hex.DecodeString(s)
	if err != nil {
		return Ref{}, fmt.Errorf("invalid ref hex: %w", err)
	}
	if len(b) != RefSize {
		return Ref{}, fmt.Errorf("ref must be %d bytes, got %d", RefSize, len(b))
	}
	var r Ref
	copy(r[:], b)
	return r, nil
}

// IsZero returns true for the all-zero ref.
func (r Ref) IsZero() bool {
	return r == ZeroRef
}

// String returns the little-endian hex form.
func (r Ref) String() string {
	return hex.EncodeToString(r[:])
}

// BigEndian returns the display-order txid followed by the big-endian
// index. ElectrumX's blockchain.ref.get expects this form.
func (r Ref) BigEndian() string {
	var b [RefSize]byte
	copy(b[:HashSize], ReverseBytes(r[:HashSize]))
	copy(b[HashSize:], ReverseBytes(r[HashSize:]))
	return hex.EncodeToString(b[:])
}

// Outpoint returns the genesis outpoint this ref points at.
func (r Ref) Outpoint() Outpoint {
	var o Outpoint
	copy(o.TxID[:], r[:HashSize])
	o.Index = binary.LittleEndian.Uint32(r[HashSize:])
	return o
}

// MarshalJSON encodes the ref as little-endian hex.
func (r Ref) MarshalJSON() ([]byte, error) {
	return json.Marshal(r.String())
}

// UnmarshalJSON decodes a little-endian hex ref.
func (r *Ref) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	parsed, err := HexToRef(s)
	if err != nil {
		return err
	}
	*r = parsed
	return nil
}
