package txengine

import (
	"context"
	"encoding/hex"
	"fmt"
	"math"
	"math/bits"

	klog "github.com/Klingon-tech/orbital-wallet/internal/log"
	"github.com/Klingon-tech/orbital-wallet/internal/token"
	"github.com/Klingon-tech/orbital-wallet/internal/utxo"
	"github.com/Klingon-tech/orbital-wallet/pkg/script"
	"github.com/Klingon-tech/orbital-wallet/pkg/tx"
	"github.com/Klingon-tech/orbital-wallet/pkg/types"
)

// Output is one payment of a SendCoins request. Exactly one of Address,
// Script or Data is set.
type Output struct {
	Photons uint64   `json:"satoshis"`
	Address string   `json:"address,omitempty"`
	Script  string   `json:"script,omitempty"`
	Data    []string `json:"data,omitempty"`
}

// SendResult is the outcome of a broadcast send.
type SendResult struct {
	TxID  string `json:"txid"`
	RawTx string `json:"rawtx,omitempty"`
}

// maxOutputValue is the largest value an output can carry on the wire.
const maxOutputValue = math.MaxInt64

// TotalPhotons sums the output values. A value or total above what an
// output can carry is ErrInvalidRequest.
func TotalPhotons(outputs []Output) (uint64, error) {
	var total uint64
	for i := range outputs {
		v := outputs[i].Photons
		if v > maxOutputValue {
			return 0, fmt.Errorf("%w: output %d value %d out of range", ErrInvalidRequest, i, v)
		}
		sum, carry := bits.Add64(total, v, 0)
		if carry != 0 || sum > maxOutputValue {
			return 0, fmt.Errorf("%w: output total out of range", ErrInvalidRequest)
		}
		total = sum
	}
	return total, nil
}

// lockingScript resolves an output to the script it pays.
func (o *Output) lockingScript(e *Engine) ([]byte, error) {
	set := 0
	if o.Address != "" {
		set++
	}
	if o.Script != "" {
		set++
	}
	if len(o.Data) > 0 {
		set++
	}
	if set != 1 {
		return nil, fmt.Errorf("%w: output needs exactly one of address, script or data", ErrInvalidRequest)
	}

	switch {
	case o.Address != "":
		addr, err := types.ParseAddress(o.Address, e.cfg.Params)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidRequest, err)
		}
		return script.P2PKH(addr), nil
	case o.Script != "":
		s, err := hex.DecodeString(o.Script)
		if err != nil || len(s) == 0 {
			return nil, fmt.Errorf("%w: bad script hex", ErrInvalidRequest)
		}
		return s, nil
	default:
		s, err := script.DataHex(o.Data)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidRequest, err)
		}
		return s, nil
	}
}

// SendCoins pays outputs from the wallet's coin UTXOs. A total within the
// auto-approval ceiling skips the password and is charged against it.
func (e *Engine) SendCoins(ctx context.Context, outputs []Output, password string) (*SendResult, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if len(outputs) == 0 {
		return nil, fmt.Errorf("%w: no outputs", ErrInvalidRequest)
	}
	scripts := make([][]byte, len(outputs))
	for i := range outputs {
		s, err := outputs[i].lockingScript(e)
		if err != nil {
			return nil, err
		}
		scripts[i] = s
	}
	amount, err := TotalPhotons(outputs)
	if err != nil {
		return nil, err
	}

	limit, err := e.policy.NoApprovalLimit()
	if err != nil {
		return nil, err
	}
	autoApproved := amount <= limit
	if !autoApproved {
		if err := e.authorize(password); err != nil {
			return nil, err
		}
	}
	keys, err := e.signingKeys(password)
	if err != nil {
		return nil, err
	}

	coins, err := e.coins.Coins()
	if err != nil {
		return nil, fmt.Errorf("load coins: %w", err)
	}
	var balance uint64
	for _, c := range coins {
		balance += c.Value
	}
	sendAll := len(outputs) == 1 && amount == balance

	outSizes := make([]int, 0, len(scripts)+1)
	for _, s := range scripts {
		outSizes = append(outSizes, len(s))
	}
	if !sendAll {
		outSizes = append(outSizes, script.P2PKHScriptSize)
	}

	rate := e.cfg.FeePerByte
	estimate := tx.FeeForSize(script.TxSize(nil, outSizes), rate)
	feePerInput := tx.FeeForSize(script.P2PKHInputSize, rate)
	sel, err := utxo.SelectInputs(coins, amount+estimate, feePerInput, sendAll)
	if err != nil {
		return nil, err
	}
	fee := tx.EstimateP2PKHFee(len(sel.Inputs), outSizes, rate)

	self := script.P2PKH(keys.WalletAddress())
	b := tx.NewBuilder()
	for _, u := range sel.Inputs {
		b.AddInput(u.Outpoint, tx.Prevout{Value: u.Value, Script: u.Script})
	}
	if sendAll {
		if sel.Total <= fee {
			return nil, fmt.Errorf("%w: balance %d does not cover fee %d", ErrInsufficientFunds, sel.Total, fee)
		}
		b.AddOutput(sel.Total-fee, scripts[0])
	} else {
		if sel.Total < amount+fee {
			return nil, fmt.Errorf("%w: have %d, need %d", ErrInsufficientFunds, sel.Total, amount+fee)
		}
		for i, s := range scripts {
			b.AddOutput(outputs[i].Photons, s)
		}
		if change := sel.Total - amount - fee; change >= DustLimit {
			b.AddOutput(change, self)
		}
	}

	if err := b.SignAll(keys.Wallet); err != nil {
		return nil, fmt.Errorf("sign: %w", err)
	}
	txid, rawHex, err := e.finalize(ctx, b)
	if err != nil {
		return nil, err
	}

	kinds := make(map[int]utxo.Kind)
	lookup := make(map[int]string)
	selfKey := script.LookupKey(self)
	for i, out := range b.Build().TxOut {
		if string(out.PkScript) == string(self) {
			kinds[i] = utxo.KindCoin
			lookup[i] = selfKey
		}
	}
	created := ownOutputs(b.Build(), kinds, nil, lookup)
	if err := e.applySpend(outpoints(sel.Inputs), created); err != nil {
		return nil, err
	}

	if autoApproved && amount > 0 {
		if err := e.policy.SpendApproval(amount); err != nil {
			klog.TxEngine.Warn().Err(err).Msg("Failed to charge auto-approval ceiling")
		}
	}
	return &SendResult{TxID: txid, RawTx: rawHex}, nil
}

// SendToken transfers amount units of the token ref to an address. Token
// change returns to the wallet and the fee is paid from coin inputs.
func (e *Engine) SendToken(ctx context.Context, ref types.Ref, to string, amount uint64, password string) (*SendResult, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if amount == 0 || amount > maxOutputValue {
		return nil, fmt.Errorf("%w: amount %d out of range", ErrInvalidRequest, amount)
	}
	dest, err := types.ParseAddress(to, e.cfg.Params)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidRequest, err)
	}
	if err := e.authorize(password); err != nil {
		return nil, err
	}
	keys, err := e.signingKeys(password)
	if err != nil {
		return nil, err
	}
	addr := keys.WalletAddress()

	held, err := e.coins.Tokens(ref)
	if err != nil {
		return nil, fmt.Errorf("load token utxos: %w", err)
	}
	tokSel, err := utxo.SelectInputs(held, amount, 0, false)
	if err != nil {
		return nil, err
	}
	tokChange := tokSel.Total - amount

	outSizes := []int{script.FTScriptSize}
	if tokChange > 0 {
		outSizes = append(outSizes, script.FTScriptSize)
	}
	outSizes = append(outSizes, script.P2PKHScriptSize)

	rate := e.cfg.FeePerByte
	inSizes := script.Repeat(script.P2PKHScriptSigSize, len(tokSel.Inputs))
	estimate := tx.FeeForSize(script.TxSize(inSizes, outSizes), rate)
	feePerInput := tx.FeeForSize(script.P2PKHInputSize, rate)
	coins, err := e.coins.Coins()
	if err != nil {
		return nil, fmt.Errorf("load coins: %w", err)
	}
	coinSel, err := utxo.SelectInputs(coins, estimate, feePerInput, false)
	if err != nil {
		return nil, err
	}
	fee := tx.EstimateP2PKHFee(len(tokSel.Inputs)+len(coinSel.Inputs), outSizes, rate)
	if coinSel.Total < fee {
		return nil, fmt.Errorf("%w: have %d, need %d for fee", ErrInsufficientFunds, coinSel.Total, fee)
	}

	selfFT := script.FT(addr, ref)
	selfCoin := script.P2PKH(addr)
	b := tx.NewBuilder()
	for _, u := range tokSel.Inputs {
		b.AddInput(u.Outpoint, tx.Prevout{Value: u.Value, Script: u.Script})
	}
	for _, u := range coinSel.Inputs {
		b.AddInput(u.Outpoint, tx.Prevout{Value: u.Value, Script: u.Script})
	}
	b.AddOutput(amount, script.FT(dest, ref))
	if tokChange > 0 {
		b.AddOutput(tokChange, selfFT)
	}
	if change := coinSel.Total - fee; change >= DustLimit {
		b.AddOutput(change, selfCoin)
	}

	if err := b.SignAll(keys.Wallet); err != nil {
		return nil, fmt.Errorf("sign: %w", err)
	}
	txid, rawHex, err := e.finalize(ctx, b)
	if err != nil {
		return nil, err
	}

	kinds := make(map[int]utxo.Kind)
	refs := make(map[int]types.Ref)
	lookup := make(map[int]string)
	ftKey, coinKey := token.LookupKey(addr), script.LookupKey(selfCoin)
	for i, out := range b.Build().TxOut {
		switch string(out.PkScript) {
		case string(selfFT):
			kinds[i], refs[i], lookup[i] = utxo.KindToken, ref, ftKey
		case string(selfCoin):
			kinds[i], lookup[i] = utxo.KindCoin, coinKey
		}
	}
	spent := append(outpoints(tokSel.Inputs), outpoints(coinSel.Inputs)...)
	if err := e.applySpend(spent, ownOutputs(b.Build(), kinds, refs, lookup)); err != nil {
		return nil, err
	}
	klog.TxEngine.Info().Str("ref", ref.String()).Uint64("amount", amount).Msg("Token sent")
	return &SendResult{TxID: txid, RawTx: rawHex}, nil
}

func outpoints(utxos []*utxo.UTXO) []types.Outpoint {
	out := make([]types.Outpoint, len(utxos))
	for i, u := range utxos {
		out[i] = u.Outpoint
	}
	return out
}
