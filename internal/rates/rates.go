// Package rates fetches and caches the RXD/USD exchange rate.
package rates

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"sync"
	"time"

	"github.com/lightningnetwork/lnd/clock"
	"golang.org/x/sync/singleflight"

	klog "github.com/Klingon-tech/orbital-wallet/internal/log"
	"github.com/Klingon-tech/orbital-wallet/internal/storage"
)

var cacheKey = []byte("settings/exchangeRateCache")

const maxResponseSize = 1 << 16

// cached is the persisted rate. Timestamp is in milliseconds.
type cached struct {
	Rate      float64 `json:"rate"`
	Timestamp int64   `json:"timestamp"`
}

// Config configures a Service.
type Config struct {
	Endpoint string
	TTL      time.Duration
	Clock    clock.Clock
	Client   *http.Client
}

// Service serves the rate from cache and refreshes it once stale.
type Service struct {
	mu    sync.Mutex
	cfg   Config
	db    storage.KV
	group singleflight.Group
}

// New creates a rate service.
func New(db storage.KV, cfg Config) *Service {
	if cfg.Clock == nil {
		cfg.Clock = clock.NewDefaultClock()
	}
	if cfg.Client == nil {
		cfg.Client = &http.Client{Timeout: 15 * time.Second}
	}
	return &Service{cfg: cfg, db: db}
}

// Rate returns the RXD/USD rate rounded to two decimals. Concurrent
// refreshes share one request. A failed refresh falls back to a stale
// cached rate when there is one.
func (s *Service) Rate(ctx context.Context) (float64, error) {
	c, err := s.load()
	if err != nil {
		klog.Rates.Warn().Err(err).Msg("Ignoring unreadable rate cache")
	}
	now := s.cfg.Clock.Now()
	if c != nil && c.Rate > 0 && now.Sub(time.UnixMilli(c.Timestamp)) < s.cfg.TTL {
		return round2(c.Rate), nil
	}

	v, err, _ := s.group.Do("rate", func() (any, error) {
		return s.refresh(ctx)
	})
	if err != nil {
		if c != nil {
			klog.Rates.Warn().Err(err).Msg("Rate refresh failed, serving stale rate")
			return round2(c.Rate), nil
		}
		return 0, err
	}
	return round2(v.(float64)), nil
}

func (s *Service) refresh(ctx context.Context) (float64, error) {
	rate, err := s.fetch(ctx)
	if err != nil {
		return 0, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	data, err := json.Marshal(cached{Rate: rate, Timestamp: s.cfg.Clock.Now().UnixMilli()})
	if err != nil {
		return 0, err
	}
	if err := s.db.Put(cacheKey, data); err != nil {
		return 0, fmt.Errorf("store rate: %w", err)
	}
	klog.Rates.Debug().Float64("rate", rate).Msg("Exchange rate refreshed")
	return rate, nil
}

// fetch reads [0].close from the OHLCV endpoint. An empty series is a
// rate of zero.
func (s *Service) fetch(ctx context.Context) (float64, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.cfg.Endpoint, nil)
	if err != nil {
		return 0, err
	}
	resp, err := s.cfg.Client.Do(req)
	if err != nil {
		return 0, fmt.Errorf("fetch rate: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return 0, fmt.Errorf("fetch rate: status %d", resp.StatusCode)
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return 0, fmt.Errorf("read rate: %w", err)
	}
	var series []struct {
		Close float64 `json:"close"`
	}
	if err := json.Unmarshal(body, &series); err != nil {
		return 0, fmt.Errorf("decode rate: %w", err)
	}
	if len(series) == 0 {
		return 0, nil
	}
	return series[0].Close, nil
}

func (s *Service) load() (*cached, error) {
	data, err := s.db.Get(cacheKey)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var c cached
	if err := json.Unmarshal(data, &c); err != nil {
		return nil, err
	}
	return &c, nil
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
