package utxo

import (
	"errors"
	"testing"

	"github.com/Klingon-tech/orbital-wallet/pkg/types"
)

func makeUTXOs(values ...uint64) []*UTXO {
	utxos := make([]*UTXO, len(values))
	for i, v := range values {
		utxos[i] = &UTXO{
			Outpoint: types.Outpoint{TxID: types.Hash{byte(i + 1)}, Index: 0},
			Value:    v,
		}
	}
	return utxos
}

func TestSelectInputs_SingleUTXO(t *testing.T) {
	sel, err := SelectInputs(makeUTXOs(5000), 3000, 0, false)
	if err != nil {
		t.Fatalf("SelectInputs: %v", err)
	}
	if sel.Total != 5000 {
		t.Errorf("total = %d, want 5000", sel.Total)
	}
	if len(sel.Inputs) != 1 {
		t.Errorf("inputs = %d, want 1", len(sel.Inputs))
	}
}

func TestSelectInputs_GivenOrder(t *testing.T) {
	// Greedy in order: 1000 + 3000 covers 3500, the 5000 is never reached.
	utxos := makeUTXOs(1000, 3000, 5000)
	sel, err := SelectInputs(utxos, 3500, 0, false)
	if err != nil {
		t.Fatalf("SelectInputs: %v", err)
	}
	if len(sel.Inputs) != 2 || sel.Total != 4000 {
		t.Errorf("inputs = %d total = %d, want 2 / 4000", len(sel.Inputs), sel.Total)
	}
	if sel.Inputs[0] != utxos[0] || sel.Inputs[1] != utxos[1] {
		t.Error("inputs should keep candidate order")
	}
}

func TestSelectInputs_ExactBoundary(t *testing.T) {
	// Σvalue == target + n*feePerInput stops the walk.
	sel, err := SelectInputs(makeUTXOs(1100, 1000), 1000, 100, false)
	if err != nil {
		t.Fatalf("SelectInputs: %v", err)
	}
	if len(sel.Inputs) != 1 {
		t.Errorf("inputs = %d, want 1", len(sel.Inputs))
	}
}

func TestSelectInputs_FeePerInputPullsMore(t *testing.T) {
	// 1000 alone covers the target but not target + fee.
	sel, err := SelectInputs(makeUTXOs(1000, 1000, 1000), 1000, 400, false)
	if err != nil {
		t.Fatalf("SelectInputs: %v", err)
	}
	// n=1: 1000 < 1400; n=2: 2000 >= 1800.
	if len(sel.Inputs) != 2 {
		t.Errorf("inputs = %d, want 2", len(sel.Inputs))
	}
	if got := sel.Needed(1000, 400); got != 1800 {
		t.Errorf("Needed = %d, want 1800", got)
	}
}

func TestSelectInputs_InsufficientFunds(t *testing.T) {
	_, err := SelectInputs(makeUTXOs(1000, 2000), 5000, 0, false)
	if !errors.Is(err, ErrInsufficientFunds) {
		t.Errorf("expected ErrInsufficientFunds, got: %v", err)
	}
	// Enough value but not enough for the per-input fee.
	_, err = SelectInputs(makeUTXOs(1000, 2000), 2900, 100, false)
	if !errors.Is(err, ErrInsufficientFunds) {
		t.Errorf("expected ErrInsufficientFunds with fees, got: %v", err)
	}
}

func TestSelectInputs_NoUTXOs(t *testing.T) {
	if _, err := SelectInputs(nil, 1000, 0, false); !errors.Is(err, ErrInsufficientFunds) {
		t.Errorf("expected ErrInsufficientFunds, got: %v", err)
	}
	if _, err := SelectInputs(nil, 0, 0, true); !errors.Is(err, ErrInsufficientFunds) {
		t.Errorf("sendAll with no inputs: expected ErrInsufficientFunds, got: %v", err)
	}
}

func TestSelectInputs_SendAll(t *testing.T) {
	utxos := makeUTXOs(1000, 2000, 3000)
	sel, err := SelectInputs(utxos, 10, 500, true)
	if err != nil {
		t.Fatalf("SelectInputs: %v", err)
	}
	if sel.Total != 6000 || len(sel.Inputs) != 3 {
		t.Errorf("total = %d inputs = %d, want 6000 / 3", sel.Total, len(sel.Inputs))
	}
}

// Sound: the selection covers its requirement. Complete: whenever the full
// candidate list covers target + n*fee at some prefix, selection succeeds.
func TestSelectInputs_SoundAndComplete(t *testing.T) {
	values := []uint64{700, 50, 1200, 3, 900, 4000, 20}
	const fee = 148
	for target := uint64(0); target < 8000; target += 37 {
		utxos := makeUTXOs(values...)
		sel, err := SelectInputs(utxos, target, fee, false)

		var sum uint64
		feasible := false
		for i, v := range values {
			sum += v
			if sum >= target+uint64(i+1)*fee {
				feasible = true
				break
			}
		}

		if feasible != (err == nil) {
			t.Fatalf("target %d: feasible=%v err=%v", target, feasible, err)
		}
		if err != nil {
			continue
		}
		if sel.Total < sel.Needed(target, fee) {
			t.Fatalf("target %d: total %d below needed %d", target, sel.Total, sel.Needed(target, fee))
		}
		// Minimal prefix: dropping the last input would not cover.
		n := len(sel.Inputs)
		if n > 1 {
			prev := sel.Total - sel.Inputs[n-1].Value
			if prev >= target+uint64(n-1)*fee {
				t.Fatalf("target %d: selection not minimal", target)
			}
		}
	}
}
