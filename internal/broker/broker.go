// Package broker turns privileged capability calls into decisions made on
// a separate surface and hands the outcome back to the waiting caller.
package broker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/lightningnetwork/lnd/clock"
	"github.com/lightningnetwork/lnd/fn/v2"
	"github.com/rs/zerolog"

	klog "github.com/Klingon-tech/orbital-wallet/internal/log"
	"github.com/Klingon-tech/orbital-wallet/internal/metrics"
	"github.com/Klingon-tech/orbital-wallet/internal/storage"
	"github.com/Klingon-tech/orbital-wallet/internal/wallet"
)

// Broker errors.
var (
	ErrUnauthorized   = errors.New("origin not authorized")
	ErrRequestPending = errors.New("request already pending")
	ErrUserDismissed  = errors.New("user dismissed the request")
	ErrUserRejected   = errors.New("user rejected the request")
	ErrNoRequest      = errors.New("no pending request")
	ErrBadDecision    = errors.New("unknown decision type")
)

// Request is the durable record of a pending privileged call.
type Request struct {
	ID           string          `json:"id"`
	Kind         Kind            `json:"kind"`
	Origin       Origin          `json:"origin"`
	Params       json.RawMessage `json:"params,omitempty"`
	IsAuthorized bool            `json:"isAuthorized,omitempty"`
	CreatedAt    time.Time       `json:"createdAt"`
}

// Decision is a surface's answer to a pending request.
type Decision struct {
	Type     string `json:"type"`
	Approved bool   `json:"approved"`
	Password string `json:"password,omitempty"`
}

// Executor carries out an approved request.
type Executor interface {
	Execute(ctx context.Context, req *Request, password string) (any, error)
}

// ExecutorFunc adapts a function to Executor.
type ExecutorFunc func(ctx context.Context, req *Request, password string) (any, error)

// Execute calls f.
func (f ExecutorFunc) Execute(ctx context.Context, req *Request, password string) (any, error) {
	return f(ctx, req, password)
}

// Config configures a Broker.
type Config struct {
	Launcher Launcher
	Executor Executor
	// DecisionTimeout dismisses a request left undecided this long.
	// Zero waits forever.
	DecisionTimeout time.Duration
	Clock           clock.Clock
}

type pending struct {
	req      *Request
	done     chan fn.Result[json.RawMessage]
	deciding bool
	// dismissed is set when the request was dismissed while a decision
	// was executing. The execution result still answers the caller.
	dismissed error
}

// Broker holds at most one pending request per kind.
type Broker struct {
	mu        sync.Mutex
	db        storage.DB
	cfg       Config
	whitelist *Whitelist
	pending   map[Kind]*pending
	surface   string

	subMu   sync.Mutex
	subs    map[uint64]chan Event
	nextSub uint64

	logger zerolog.Logger
}

// New creates a broker.
func New(db storage.DB, cfg Config) *Broker {
	if cfg.Clock == nil {
		cfg.Clock = clock.NewDefaultClock()
	}
	if cfg.Launcher == nil {
		cfg.Launcher = ManualLauncher{}
	}
	return &Broker{
		db:        db,
		cfg:       cfg,
		whitelist: NewWhitelist(db),
		pending:   make(map[Kind]*pending),
		subs:      make(map[uint64]chan Event),
		logger:    klog.Broker,
	}
}

// Whitelist returns the connected-origin set.
func (b *Broker) Whitelist() *Whitelist {
	return b.whitelist
}

// Recover clears records left by a previous run. Their callers are gone.
func (b *Broker) Recover() error {
	return b.db.Update(func(kv storage.KV) error {
		for _, k := range AllKinds() {
			if _, err := getRecord(kv, k); err == nil {
				b.logger.Warn().Str("kind", k.String()).Msg("Dropping stale request")
			}
			if err := deleteRecord(kv, k); err != nil {
				return err
			}
		}
		return putSurfaceID(kv, "")
	})
}

// Submit records a privileged request, opens the surface and blocks until
// the request is decided, dismissed, or ctx ends.
func (b *Broker) Submit(ctx context.Context, kind Kind, origin Origin, params json.RawMessage) (json.RawMessage, error) {
	if kind >= numKinds {
		return nil, fmt.Errorf("unknown kind %d", uint8(kind))
	}
	authorized, err := b.whitelist.Has(origin.Domain)
	if err != nil {
		return nil, err
	}
	if kind != KindConnect && !authorized {
		return nil, ErrUnauthorized
	}

	req := &Request{
		ID:           uuid.NewString(),
		Kind:         kind,
		Origin:       origin,
		Params:       params,
		IsAuthorized: authorized,
		CreatedAt:    b.cfg.Clock.Now(),
	}
	p, launch, err := b.enqueue(req)
	if err != nil {
		return nil, err
	}
	if launch != "" {
		if err := b.cfg.Launcher.Open(ctx, launch, func() { b.SurfaceClosed(launch) }); err != nil {
			b.logger.Error().Err(err).Msg("Failed to open surface")
			b.complete(kind, p, fn.Err[json.RawMessage](err), "failed")
		}
	}
	return b.await(ctx, kind, p)
}

// enqueue registers req and returns the surface id to launch, if the
// surface is not already open.
func (b *Broker) enqueue(req *Request) (*pending, string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if _, busy := b.pending[req.Kind]; busy {
		return nil, "", fmt.Errorf("%w: %s", ErrRequestPending, req.Kind)
	}
	launch := ""
	if b.surface == "" {
		launch = uuid.NewString()
	}
	err := b.db.Update(func(kv storage.KV) error {
		if err := putRecord(kv, req); err != nil {
			return err
		}
		if launch != "" {
			return putSurfaceID(kv, launch)
		}
		return nil
	})
	if err != nil {
		return nil, "", fmt.Errorf("persist request: %w", err)
	}
	if launch != "" {
		b.surface = launch
	}

	p := &pending{req: req, done: make(chan fn.Result[json.RawMessage], 1)}
	b.pending[req.Kind] = p
	b.logger.Info().Str("kind", req.Kind.String()).Str("origin", req.Origin.Domain).Msg("Request pending")
	return p, launch, nil
}

func (b *Broker) await(ctx context.Context, kind Kind, p *pending) (json.RawMessage, error) {
	var deadline <-chan time.Time
	if b.cfg.DecisionTimeout > 0 {
		deadline = b.cfg.Clock.TickAfter(b.cfg.DecisionTimeout)
	}

	select {
	case res := <-p.done:
		return res.Unpack()
	case <-deadline:
		b.dismiss(kind, p, ErrUserDismissed, "dismissed")
	case <-ctx.Done():
		b.dismiss(kind, p, ctx.Err(), "canceled")
	}
	// Either we completed it above or a decision is delivering its result.
	res := <-p.done
	return res.Unpack()
}

// complete delivers res to p once and clears its state. It reports false
// when p was already completed.
func (b *Broker) complete(kind Kind, p *pending, res fn.Result[json.RawMessage], outcome string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.completeLocked(kind, p, res, outcome)
}

func (b *Broker) completeLocked(kind Kind, p *pending, res fn.Result[json.RawMessage], outcome string) bool {
	if b.pending[kind] != p {
		return false
	}
	delete(b.pending, kind)
	b.clearLocked([]Kind{kind}, false)
	p.done <- res
	metrics.Default().RecordDecision(kind.String(), outcome)
	b.logger.Info().Str("kind", kind.String()).Str("outcome", outcome).Msg("Request completed")
	return true
}

// dismiss completes p with err unless a decision is executing, in which
// case the execution result answers the caller instead.
func (b *Broker) dismiss(kind Kind, p *pending, err error, outcome string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.pending[kind] != p {
		return
	}
	if p.deciding {
		p.dismissed = err
		return
	}
	b.completeLocked(kind, p, fn.Err[json.RawMessage](err), outcome)
}

// clearLocked removes the records of kinds. The surface is released when
// release is set or nothing is pending.
func (b *Broker) clearLocked(kinds []Kind, release bool) {
	release = release || len(b.pending) == 0
	err := b.db.Update(func(kv storage.KV) error {
		for _, k := range kinds {
			if err := deleteRecord(kv, k); err != nil {
				return err
			}
		}
		if release {
			return putSurfaceID(kv, "")
		}
		return nil
	})
	if err != nil {
		b.logger.Error().Err(err).Msg("Failed to clear request records")
	}
	if release {
		b.surface = ""
	}
}

// Decide applies a surface decision. An approved request is executed and
// its result returned to both the surface and the waiting caller. A wrong
// password leaves the request pending so the surface can retry.
func (b *Broker) Decide(ctx context.Context, d Decision) (json.RawMessage, error) {
	kind, ok := ParseResponseType(d.Type)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrBadDecision, d.Type)
	}

	b.mu.Lock()
	p := b.pending[kind]
	if p == nil {
		b.mu.Unlock()
		return nil, fmt.Errorf("%w: %s", ErrNoRequest, kind)
	}
	if p.deciding {
		b.mu.Unlock()
		return nil, fmt.Errorf("%w: %s is being decided", ErrRequestPending, kind)
	}
	p.deciding = true
	b.mu.Unlock()

	if !d.Approved {
		if kind == KindConnect {
			// A declined connect answers with no key rather than an error.
			b.complete(kind, p, fn.Ok(json.RawMessage("null")), "rejected")
			return json.RawMessage("null"), nil
		}
		b.complete(kind, p, fn.Err[json.RawMessage](ErrUserRejected), "rejected")
		return nil, ErrUserRejected
	}

	data, err := b.cfg.Executor.Execute(ctx, p.req, d.Password)
	if errors.Is(err, wallet.ErrUnauthorized) {
		b.mu.Lock()
		defer b.mu.Unlock()
		p.deciding = false
		if p.dismissed != nil {
			// The surface went away during the attempt; nobody is left
			// to retry.
			b.completeLocked(kind, p, fn.Err[json.RawMessage](p.dismissed), "dismissed")
		}
		return nil, err
	}
	if err != nil {
		b.complete(kind, p, fn.Err[json.RawMessage](err), "failed")
		return nil, err
	}

	raw, err := json.Marshal(data)
	if err != nil {
		b.complete(kind, p, fn.Err[json.RawMessage](err), "failed")
		return nil, err
	}
	if kind == KindConnect {
		if err := b.whitelist.Add(p.req.Origin); err != nil {
			b.complete(kind, p, fn.Err[json.RawMessage](err), "failed")
			return nil, err
		}
	}
	b.complete(kind, p, fn.Ok(json.RawMessage(raw)), "approved")
	return raw, nil
}

// SurfaceClosed dismisses every pending request and releases the surface.
// A request whose approval is executing is left to finish and answers its
// caller with the execution result. An id that is not the open surface is
// ignored; an empty id matches any surface.
func (b *Broker) SurfaceClosed(id string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.surface == "" || (id != "" && id != b.surface) {
		return
	}

	kinds := make([]Kind, 0, len(b.pending))
	for k, p := range b.pending {
		if p.deciding {
			p.dismissed = ErrUserDismissed
			continue
		}
		kinds = append(kinds, k)
		p.done <- fn.Err[json.RawMessage](ErrUserDismissed)
		metrics.Default().RecordDecision(k.String(), "dismissed")
		delete(b.pending, k)
	}
	b.clearLocked(kinds, true)
	b.logger.Info().Int("dismissed", len(kinds)).Int("executing", len(b.pending)).Msg("Surface closed")
}

// Pending returns the pending requests in kind order.
func (b *Broker) Pending() []*Request {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]*Request, 0, len(b.pending))
	for _, p := range b.pending {
		out = append(out, p.req)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Kind < out[j].Kind })
	return out
}

// Record reads the durable payload of a pending kind.
func (b *Broker) Record(kind Kind) (*Request, error) {
	var req *Request
	err := b.db.View(func(kv storage.KV) error {
		var err error
		req, err = getRecord(kv, kind)
		return err
	})
	return req, err
}

// SurfaceID returns the id of the open surface, or "".
func (b *Broker) SurfaceID() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.surface
}

// Subscribe registers for notifications. The returned cancel function
// closes the channel.
func (b *Broker) Subscribe(buffer int) (<-chan Event, func()) {
	ch := make(chan Event, buffer)
	b.subMu.Lock()
	id := b.nextSub
	b.nextSub++
	b.subs[id] = ch
	b.subMu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			b.subMu.Lock()
			delete(b.subs, id)
			b.subMu.Unlock()
			close(ch)
		})
	}
}

// Notify fans ev out to every subscriber. A subscriber with a full buffer
// misses the event.
func (b *Broker) Notify(ev Event) {
	b.subMu.Lock()
	defer b.subMu.Unlock()
	for id, ch := range b.subs {
		select {
		case ch <- ev:
		default:
			b.logger.Warn().Uint64("subscriber", id).Str("event", ev.Type).Msg("Dropping event for slow subscriber")
		}
	}
}
