// Package token tracks the Glyph fungible tokens held by the wallet.
//
// Tokens are identified by the ref of their genesis outpoint. Their metadata
// is read from the reveal transaction that spent the genesis commit, and
// their balance is always derived from the cached token UTXOs that carry
// the ref.
package token

import (
	"github.com/Klingon-tech/orbital-wallet/pkg/types"
)

// Token is a fungible token known to the wallet.
type Token struct {
	Ref     types.Ref `json:"ref"`
	Ticker  string    `json:"ticker"`
	Name    string    `json:"name"`
	Balance uint64    `json:"balance"`
	IconExt string    `json:"iconExt,omitempty"`
}
