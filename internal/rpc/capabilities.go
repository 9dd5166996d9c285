package rpc

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/Klingon-tech/orbital-wallet/internal/broker"
	"github.com/Klingon-tech/orbital-wallet/internal/metrics"
)

// dispatchCapability runs one capability call. Protocol problems become
// JSON-RPC errors; everything the capability itself reports travels in the
// envelope.
func (s *Server) dispatchCapability(r *http.Request, req *Request) (any, *Error) {
	c, ok := broker.ParseCapability(req.Method)
	if !ok {
		return nil, &Error{Code: CodeMethodNotFound, Message: fmt.Sprintf("method %q not found", req.Method)}
	}

	var p CapabilityParams
	if len(req.Params) > 0 {
		if rpcErr := parseParams(req, &p); rpcErr != nil {
			return nil, rpcErr
		}
	}
	origin, rpcErr := requestOrigin(r, p.Origin)
	if rpcErr != nil {
		return nil, rpcErr
	}
	p.Origin = origin

	if !s.limiter.Allow(p.Origin.Domain) {
		metrics.Default().RecordThrottle("origin")
		return nil, &Error{Code: CodeRateLimited, Message: "rate limit exceeded"}
	}

	start := time.Now()
	data, err := s.runCapability(r.Context(), c, p)
	metrics.Default().ObserveRequest(c.String(), err, time.Since(start))
	if err != nil {
		s.logger.Debug().Err(err).Str("capability", c.String()).Str("origin", p.Origin.Domain).Msg("Capability failed")
		return broker.Fail(c, err), nil
	}
	return broker.Ok(c, data), nil
}

func (s *Server) runCapability(ctx context.Context, c broker.Capability, p CapabilityParams) (any, error) {
	wl := s.broker.Whitelist()
	connected, err := wl.Has(p.Origin.Domain)
	if err != nil {
		return nil, err
	}
	if c.RequiresWhitelist() && !connected {
		return nil, broker.ErrUnauthorized
	}

	switch c {
	case broker.CapConnect:
		// An already connected origin with an open session needs no decision.
		if connected && s.backend.Status().Unlocked {
			keys, err := s.backend.PubKeys()
			if err != nil {
				return nil, err
			}
			return keys.IdentityPubKey, nil
		}
		return s.submit(ctx, broker.KindConnect, p)

	case broker.CapDisconnect:
		return wl.Remove(p.Origin.Domain)

	case broker.CapIsConnected:
		return connected && s.backend.Status().Unlocked, nil

	case broker.CapGetPubKeys:
		return s.backend.PubKeys()

	case broker.CapGetAddresses:
		return s.backend.Addresses()

	case broker.CapGetNetwork:
		return s.backend.Status().Network, nil

	case broker.CapGetBalance:
		return s.backend.Balance()

	case broker.CapGetTokens:
		return s.backend.Tokens()

	case broker.CapGetSocialProfile:
		return s.backend.SocialProfile()

	case broker.CapGetPaymentUtxos:
		return s.backend.PaymentUtxos()

	case broker.CapGetExchangeRate:
		return s.backend.ExchangeRate(ctx)

	case broker.CapSendCoins:
		if s.backend.AutoApproves(p.Data) {
			return s.backend.Execute(ctx, &broker.Request{
				Kind:         broker.KindSendCoins,
				Origin:       p.Origin,
				Params:       p.Data,
				IsAuthorized: true,
			}, "")
		}
		return s.submit(ctx, broker.KindSendCoins, p)
	}

	kind, ok := c.Kind()
	if !ok {
		return nil, fmt.Errorf("capability %s has no handler", c)
	}
	return s.submit(ctx, kind, p)
}

// submit hands a privileged call to the broker and waits for the outcome.
func (s *Server) submit(ctx context.Context, kind broker.Kind, p CapabilityParams) (any, error) {
	res, err := s.broker.Submit(ctx, kind, p.Origin, p.Data)
	if err != nil {
		return nil, err
	}
	if len(res) == 0 {
		return nil, nil
	}
	return json.RawMessage(res), nil
}

// requestOrigin resolves the calling origin. The domain comes from the
// Origin header, which the browser sets and a page cannot override. The
// body may repeat the domain and add an icon.
func requestOrigin(r *http.Request, claimed broker.Origin) (broker.Origin, *Error) {
	host := originHost(r.Header.Get("Origin"))
	if host == "" {
		return broker.Origin{}, &Error{Code: CodeInvalidParams, Message: "Origin header required"}
	}
	if claimed.Domain != "" && claimed.Domain != host {
		return broker.Origin{}, &Error{
			Code:    CodeUnauthorized,
			Message: fmt.Sprintf("origin %q does not match Origin header %q", claimed.Domain, host),
		}
	}
	return broker.Origin{Domain: host, Icon: claimed.Icon}, nil
}

// originHost extracts the host of an Origin header.
func originHost(origin string) string {
	if origin == "" {
		return ""
	}
	u, err := url.Parse(origin)
	if err != nil {
		return ""
	}
	return u.Host
}
