package utxo

import (
	"errors"
	"fmt"
)

// Coin selection errors.
var (
	ErrInsufficientFunds = errors.New("insufficient funds")
)

// Selection holds the result of input selection.
type Selection struct {
	Inputs []*UTXO // Selected UTXOs to spend, in candidate order.
	Total  uint64  // Sum of selected input values.
}

// Needed returns target plus the per-input fee for the selected inputs.
func (s *Selection) Needed(target, feePerInput uint64) uint64 {
	return target + uint64(len(s.Inputs))*feePerInput
}

// SelectInputs walks utxos in the given order and takes each one until
// Σvalue ≥ target + n*feePerInput, where n is the number taken so far.
// With sendAll every candidate is taken. Running out of candidates first
// fails with ErrInsufficientFunds.
func SelectInputs(utxos []*UTXO, target, feePerInput uint64, sendAll bool) (*Selection, error) {
	sel := &Selection{}
	if sendAll {
		if len(utxos) == 0 {
			return nil, fmt.Errorf("%w: no inputs", ErrInsufficientFunds)
		}
		sel.Inputs = append(sel.Inputs, utxos...)
		sel.Total = totalValue(utxos)
		return sel, nil
	}

	for _, u := range utxos {
		sel.Inputs = append(sel.Inputs, u)
		sel.Total += u.Value
		if sel.Total >= sel.Needed(target, feePerInput) {
			return sel, nil
		}
	}
	return nil, fmt.Errorf("%w: have %d, need %d", ErrInsufficientFunds, sel.Total, sel.Needed(target, feePerInput))
}

func totalValue(utxos []*UTXO) uint64 {
	var total uint64
	for _, u := range utxos {
		total += u.Value
	}
	return total
}
