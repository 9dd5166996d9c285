package wallet

import (
	"encoding/binary"
	"sync"
	"time"

	klog "github.com/Klingon-tech/orbital-wallet/internal/log"
	"github.com/Klingon-tech/orbital-wallet/internal/storage"
	"github.com/lightningnetwork/lnd/clock"
	"github.com/lightningnetwork/lnd/ticker"
)

// Idle lock defaults.
const (
	DefaultInactivityLimit = 10 * time.Minute
	IdlePollInterval       = 5 * time.Second
)

// ActivityMonitor tracks the time of the last user interaction and fires a
// callback once the inactivity limit has elapsed.
type ActivityMonitor struct {
	mu         sync.Mutex
	db         storage.KV
	clock      clock.Clock
	limit      time.Duration
	lastActive time.Time

	ticker ticker.Ticker
	quit   chan struct{}
	stop   sync.Once
	wg     sync.WaitGroup
}

// NewActivityMonitor creates a monitor. The last-active time is restored from
// db so a restart inside the idle window keeps counting from the persisted
// value.
func NewActivityMonitor(db storage.KV, clk clock.Clock, limit time.Duration, t ticker.Ticker) *ActivityMonitor {
	if limit <= 0 {
		limit = DefaultInactivityLimit
	}
	if t == nil {
		t = ticker.New(IdlePollInterval)
	}
	m := &ActivityMonitor{
		db:         db,
		clock:      clk,
		limit:      limit,
		lastActive: clk.Now().Add(-2 * limit),
		ticker:     t,
		quit:       make(chan struct{}),
	}
	if raw, err := db.Get(lastActiveKey); err == nil && len(raw) == 8 {
		m.lastActive = time.UnixMilli(int64(binary.BigEndian.Uint64(raw)))
	}
	return m
}

// Touch records an interaction at the current time.
func (m *ActivityMonitor) Touch() {
	m.set(m.clock.Now())
}

// Expire pushes the last-active time back by twice the limit so a check
// racing with a lock cannot see the window as open.
func (m *ActivityMonitor) Expire() {
	m.set(m.clock.Now().Add(-2 * m.limit))
}

// LastActive returns the time of the last recorded interaction.
func (m *ActivityMonitor) LastActive() time.Time {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lastActive
}

// Idle reports whether the inactivity limit has elapsed.
func (m *ActivityMonitor) Idle() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.clock.Now().Sub(m.lastActive) > m.limit
}

func (m *ActivityMonitor) set(t time.Time) {
	m.mu.Lock()
	m.lastActive = t
	m.mu.Unlock()

	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], uint64(t.UnixMilli()))
	if err := m.db.Put(lastActiveKey, buf[:]); err != nil {
		klog.Wallet.Warn().Err(err).Msg("Failed to persist last activity")
	}
}

// Start polls on every tick and calls onTick. The callback decides whether
// to lock.
func (m *ActivityMonitor) Start(onTick func()) {
	m.ticker.Resume()
	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		for {
			select {
			case <-m.ticker.Ticks():
				onTick()
			case <-m.quit:
				return
			}
		}
	}()
}

// Stop halts polling and waits for the poll goroutine to exit.
func (m *ActivityMonitor) Stop() {
	m.stop.Do(func() {
		close(m.quit)
		m.ticker.Stop()
	})
	m.wg.Wait()
}
