package utxo

import (
	"fmt"

	"github.com/Klingon-tech/orbital-wallet/internal/electrum"
)

// FromUnspent converts an indexer entry into a UTXO locked by lockScript.
// Mempool entries report a height of zero or below and are stored as
// unconfirmed.
func FromUnspent(u *electrum.Unspent, kind Kind, lockScript []byte) (*UTXO, error) {
	op, err := u.Outpoint()
	if err != nil {
		return nil, fmt.Errorf("unspent %s:%d: %w", u.TxHash, u.TxPos, err)
	}
	var height uint64
	if u.Height > 0 {
		height = uint64(u.Height)
	}
	return &UTXO{
		Kind:     kind,
		Outpoint: op,
		Value:    u.Value,
		Script:   lockScript,
		Height:   height,
	}, nil
}
