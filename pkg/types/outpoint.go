package types

import (
	"encoding/binary"
	"fmt"
)

// Outpoint references a specific output in a transaction.
type Outpoint struct {
	TxID  Hash   `json:"txid"`
	Index uint32 `json:"vout"`
}

// IsZero returns true if the outpoint has a zero TxID and zero index.
func (o Outpoint) IsZero() bool {
	return o.TxID == (Hash{}) && o.Index == 0
}

// String returns "txid:index" with the txid in display order.
func (o Outpoint) String() string {
	return fmt.Sprintf("%s:%d", o.TxID.String(), o.Index)
}

// Key returns the 36-byte storage key: internal-order txid followed by the
// big-endian index, so keys for one transaction sort by output.
func (o Outpoint) Key() []byte {
	k := make([]byte, HashSize+4)
	copy(k, o.TxID[:])
	binary.BigEndian.PutUint32(k[HashSize:], o.Index)
	return k
}

// Ref returns the token ref that identifies this outpoint.
func (o Outpoint) Ref() Ref {
	var r Ref
	copy(r[:HashSize], o.TxID[:])
	binary.LittleEndian.PutUint32(r[HashSize:], o.Index)
	return r
}
