package rpc

import (
	"errors"

	"github.com/Klingon-tech/orbital-wallet/config"
	"github.com/Klingon-tech/orbital-wallet/internal/broker"
	"github.com/Klingon-tech/orbital-wallet/internal/storage"
	"github.com/Klingon-tech/orbital-wallet/internal/txengine"
	"github.com/Klingon-tech/orbital-wallet/internal/wallet"
)

// errorCode maps a package sentinel onto its JSON-RPC code.
func errorCode(err error) int {
	switch {
	case errors.Is(err, wallet.ErrUnauthorized), errors.Is(err, broker.ErrUnauthorized):
		return CodeUnauthorized
	case errors.Is(err, wallet.ErrLocked):
		return CodeLocked
	case errors.Is(err, wallet.ErrNoWallet):
		return CodeNoWallet
	case errors.Is(err, txengine.ErrInsufficientFunds):
		return CodeInsufficientFunds
	case errors.Is(err, txengine.ErrFeeTooHigh):
		return CodeFeeTooHigh
	case errors.Is(err, txengine.ErrTxTooLarge):
		return CodeTxTooLarge
	case errors.Is(err, txengine.ErrBroadcast):
		return CodeBroadcast
	case errors.Is(err, broker.ErrUserDismissed):
		return CodeUserDismissed
	case errors.Is(err, broker.ErrUserRejected):
		return CodeUserRejected
	case errors.Is(err, broker.ErrRequestPending):
		return CodeRequestPending
	case errors.Is(err, broker.ErrNoRequest), errors.Is(err, storage.ErrNotFound):
		return CodeNotFound
	case errors.Is(err, txengine.ErrInvalidRequest),
		errors.Is(err, wallet.ErrInvalidMnemonic),
		errors.Is(err, broker.ErrBadDecision),
		errors.Is(err, config.ErrUnknownNetwork):
		return CodeInvalidParams
	}
	return CodeInternalError
}

// toError converts err into a JSON-RPC error.
func toError(err error) *Error {
	return &Error{Code: errorCode(err), Message: err.Error()}
}
