package rpc

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/Klingon-tech/orbital-wallet/internal/broker"
)

// Surface methods.
const (
	SurfaceStatus         = "status"
	SurfacePending        = "pending"
	SurfaceRecord         = "record"
	SurfaceDecide         = "decide"
	SurfaceClosed         = "surfaceClosed"
	SurfaceCreate         = "create"
	SurfaceUnlock         = "unlock"
	SurfaceLock           = "lock"
	SurfaceSetNetwork     = "setNetwork"
	SurfaceSync           = "sync"
	SurfaceTokens         = "tokens"
	SurfaceSendToken      = "sendToken"
	SurfaceWhitelist      = "whitelist"
	SurfaceRemoveOrigin   = "removeOrigin"
	SurfacePreferences    = "preferences"
	SurfaceSetPreferences = "setPreferences"
)

// dispatchSurface routes a surface request. Every call counts as user
// activity for the idle lock.
func (s *Server) dispatchSurface(ctx context.Context, req *Request) (any, *Error) {
	s.backend.Touch()

	switch req.Method {
	case SurfaceStatus:
		return s.backend.Status(), nil

	case SurfacePending:
		return &PendingResult{SurfaceID: s.broker.SurfaceID(), Requests: s.broker.Pending()}, nil

	case SurfaceRecord:
		var p struct {
			Kind broker.Kind `json:"kind"`
		}
		if rpcErr := parseParams(req, &p); rpcErr != nil {
			return nil, rpcErr
		}
		rec, err := s.broker.Record(p.Kind)
		if err != nil {
			return nil, toError(fmt.Errorf("%s record: %w", p.Kind, err))
		}
		return rec, nil

	case SurfaceDecide:
		var d broker.Decision
		if rpcErr := parseParams(req, &d); rpcErr != nil {
			return nil, rpcErr
		}
		data, err := s.broker.Decide(ctx, d)
		if errors.Is(err, broker.ErrUserRejected) {
			// The caller hears about the rejection; the surface does not.
			return json.RawMessage("null"), nil
		}
		if err != nil {
			return nil, toError(err)
		}
		return json.RawMessage(data), nil

	case SurfaceClosed:
		var p SurfaceParam
		if len(req.Params) > 0 {
			if rpcErr := parseParams(req, &p); rpcErr != nil {
				return nil, rpcErr
			}
		}
		s.broker.SurfaceClosed(p.SurfaceID)
		return true, nil

	case SurfaceCreate:
		var p CreateParam
		if rpcErr := parseParams(req, &p); rpcErr != nil {
			return nil, rpcErr
		}
		m, err := s.backend.CreateWallet(p.Password, p.Mnemonic)
		if err != nil {
			return nil, toError(err)
		}
		return &CreateResult{Mnemonic: m}, nil

	case SurfaceUnlock:
		var p PasswordParam
		if rpcErr := parseParams(req, &p); rpcErr != nil {
			return nil, rpcErr
		}
		if err := s.backend.Unlock(p.Password); err != nil {
			return nil, toError(err)
		}
		return s.backend.Status(), nil

	case SurfaceLock:
		s.backend.Lock()
		return true, nil

	case SurfaceSetNetwork:
		var p NetworkParam
		if rpcErr := parseParams(req, &p); rpcErr != nil {
			return nil, rpcErr
		}
		if err := s.backend.SetNetwork(ctx, p.Network); err != nil {
			return nil, toError(err)
		}
		return s.backend.Status(), nil

	case SurfaceSync:
		if err := s.backend.Sync(ctx); err != nil {
			return nil, toError(err)
		}
		return s.backend.Status(), nil

	case SurfaceTokens:
		tokens, err := s.backend.Tokens()
		if err != nil {
			return nil, toError(err)
		}
		return tokens, nil

	case SurfaceSendToken:
		var p SendTokenParam
		if rpcErr := parseParams(req, &p); rpcErr != nil {
			return nil, rpcErr
		}
		res, err := s.backend.SendToken(ctx, p.Ref, p.To, p.Amount, p.Password)
		if err != nil {
			return nil, toError(err)
		}
		return res, nil

	case SurfaceWhitelist:
		list, err := s.broker.Whitelist().List()
		if err != nil {
			return nil, toError(err)
		}
		return list, nil

	case SurfaceRemoveOrigin:
		var p broker.Origin
		if rpcErr := parseParams(req, &p); rpcErr != nil {
			return nil, rpcErr
		}
		removed, err := s.broker.Whitelist().Remove(p.Domain)
		if err != nil {
			return nil, toError(err)
		}
		return removed, nil

	case SurfacePreferences:
		prefs, err := s.backend.Preferences()
		if err != nil {
			return nil, toError(err)
		}
		return prefs, nil

	case SurfaceSetPreferences:
		var p PreferencesUpdate
		if rpcErr := parseParams(req, &p); rpcErr != nil {
			return nil, rpcErr
		}
		if err := s.backend.UpdatePreferences(p); err != nil {
			return nil, toError(err)
		}
		prefs, err := s.backend.Preferences()
		if err != nil {
			return nil, toError(err)
		}
		return prefs, nil
	}
	return nil, &Error{Code: CodeMethodNotFound, Message: fmt.Sprintf("method %q not found", req.Method)}
}
