// Package utxo caches the wallet's unspent outputs and reconciles them
// against the indexer.
package utxo

import (
	"encoding/json"
	"fmt"

	"github.com/Klingon-tech/orbital-wallet/pkg/script"
	"github.com/Klingon-tech/orbital-wallet/pkg/types"
)

// Kind classifies what an output carries.
type Kind uint8

const (
	KindCoin Kind = iota
	KindToken
	KindNFT
)

func (k Kind) String() string {
	switch k {
	case KindCoin:
		return "rxd"
	case KindToken:
		return "ft"
	case KindNFT:
		return "nft"
	default:
		return fmt.Sprintf("kind(%d)", uint8(k))
	}
}

// MarshalJSON encodes the kind by name.
func (k Kind) MarshalJSON() ([]byte, error) {
	return json.Marshal(k.String())
}

// UnmarshalJSON decodes a kind name.
func (k *Kind) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	switch s {
	case "rxd":
		*k = KindCoin
	case "ft":
		*k = KindToken
	case "nft":
		*k = KindNFT
	default:
		return fmt.Errorf("unknown utxo kind %q", s)
	}
	return nil
}

// KindOf classifies a locking script. Unknown scripts count as coins.
func KindOf(s []byte) Kind {
	switch script.Classify(s) {
	case script.KindFT:
		return KindToken
	case script.KindNFT:
		return KindNFT
	default:
		return KindCoin
	}
}

// UTXO represents an unspent output owned by the wallet.
type UTXO struct {
	Kind      Kind           `json:"kind"`
	Outpoint  types.Outpoint `json:"outpoint"`
	Value     uint64         `json:"value"`
	Script    []byte         `json:"script"`
	TokenRef  *types.Ref     `json:"tokenRef,omitempty"`
	Height    uint64         `json:"height"`
	LookupKey string         `json:"lookupKey"`
}
