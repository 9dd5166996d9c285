// Package node wires the wallet components into a running daemon that can
// be embedded in any binary.
package node

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/lightningnetwork/lnd/ticker"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/Klingon-tech/orbital-wallet/config"
	"github.com/Klingon-tech/orbital-wallet/internal/broker"
	"github.com/Klingon-tech/orbital-wallet/internal/electrum"
	klog "github.com/Klingon-tech/orbital-wallet/internal/log"
	"github.com/Klingon-tech/orbital-wallet/internal/metrics"
	"github.com/Klingon-tech/orbital-wallet/internal/rates"
	"github.com/Klingon-tech/orbital-wallet/internal/rpc"
	"github.com/Klingon-tech/orbital-wallet/internal/settings"
	"github.com/Klingon-tech/orbital-wallet/internal/storage"
	"github.com/Klingon-tech/orbital-wallet/internal/token"
	"github.com/Klingon-tech/orbital-wallet/internal/txengine"
	"github.com/Klingon-tech/orbital-wallet/internal/utxo"
	"github.com/Klingon-tech/orbital-wallet/internal/wallet"
	"github.com/Klingon-tech/orbital-wallet/pkg/types"
)

// indexer is the part of the ElectrumX client the node drives.
type indexer interface {
	electrum.Chain
	Connect(ctx context.Context) error
	IsConnected() bool
	ChangeEndpoint(ctx context.Context, endpoint string) error
	Subscribe(ctx context.Context, lookupKey string) (string, error)
	ClearSubscriptions()
	Updates() <-chan electrum.StatusUpdate
	Close() error
}

// Node is a fully initialized wallet daemon.
type Node struct {
	cfg    *config.Config
	logger zerolog.Logger

	// Core
	db       storage.DB
	settings *settings.Settings
	vault    *wallet.Vault
	chain    indexer
	icons    *token.IconStore
	engine   *txengine.Engine
	broker   *broker.Broker
	rates    *rates.Service
	state    *State

	// Network-scoped ledgers, swapped on SetNetwork.
	ledgerMu sync.RWMutex
	ledgerDB *storage.PrefixDB
	coins    *utxo.Ledger
	tokens   *token.Ledger

	// Sync
	syncMu     sync.Mutex
	subscribed map[string]struct{}
	syncNow    chan struct{}
	syncTicker ticker.Ticker

	// API
	rpcServer *rpc.Server

	// Lifecycle
	ctx    context.Context
	cancel context.CancelFunc
	group  *errgroup.Group
}

// New creates and initializes a Node: logger, storage, wallet, indexer
// client, ledgers, broker and API. It does NOT start background work.
// Call Start for that.
func New(cfg *config.Config) (*Node, error) {
	// ── 1. Init logger ──────────────────────────────────────────────
	logFile := cfg.Log.File
	if logFile == "" {
		logsDir := cfg.LogsDir()
		if err := os.MkdirAll(logsDir, 0755); err != nil {
			return nil, fmt.Errorf("creating logs dir: %w", err)
		}
		logFile = filepath.Join(logsDir, "orbital.log")
	}
	if err := klog.Init(cfg.Log.Level, cfg.Log.JSON, logFile); err != nil {
		return nil, fmt.Errorf("initializing logger: %w", err)
	}

	// ── 2. Open storage ─────────────────────────────────────────────
	db, err := storage.NewBadger(cfg.DBDir())
	if err != nil {
		return nil, fmt.Errorf("open database at %s: %w", cfg.DBDir(), err)
	}
	klog.Node.Info().Str("path", cfg.DBDir()).Msg("Database opened")

	// ── 3. Components ───────────────────────────────────────────────
	n, err := build(cfg, db, deps{
		dial: func(endpoint string) indexer { return electrum.New(endpoint) },
	})
	if err != nil {
		db.Close()
		return nil, err
	}

	// ── 4. API ──────────────────────────────────────────────────────
	addr := fmt.Sprintf("%s:%d", cfg.API.Addr, cfg.API.Port)
	n.rpcServer = rpc.New(addr, n, n.broker, rpc.Config{
		AllowedIPs:  cfg.API.AllowedIPs,
		CORSOrigins: cfg.API.CORSOrigins,
		RateLimit:   cfg.API.RateLimit,
		RateBurst:   cfg.API.RateBurst,
		Metrics:     cfg.Metrics.Enabled,
	})
	return n, nil
}

// deps are the pieces tests replace.
type deps struct {
	dial func(endpoint string) indexer
	kdf  wallet.EncryptionParams // zero means the wallet default
}

// build assembles the components on an open database.
func build(cfg *config.Config, db storage.DB, d deps) (*Node, error) {
	interval := cfg.Electrum.SyncInterval
	if interval <= 0 {
		interval = config.DefaultSyncInterval
	}
	n := &Node{
		cfg:        cfg,
		logger:     klog.WithComponent("node"),
		db:         db,
		settings:   settings.New(db),
		icons:      token.NewIconStore(cfg.IconsDir()),
		subscribed: make(map[string]struct{}),
		syncNow:    make(chan struct{}, 1),
		syncTicker: ticker.New(interval),
	}

	network, err := n.settings.InitNetwork(string(cfg.Network))
	if err != nil {
		return nil, fmt.Errorf("load network: %w", err)
	}
	n.state = NewState(network)
	n.logger.Info().Str("network", network).Msg("Starting Orbital wallet")

	n.vault = wallet.NewVault(db, wallet.VaultConfig{
		Params:          d.kdf,
		SessionTimeout:  cfg.Wallet.SessionTimeout,
		InactivityLimit: cfg.Wallet.InactivityLimit,
	})
	n.vault.OnLock(n.onLock)

	n.chain = d.dial(n.endpointFor(network))
	n.useLedgers(network)

	n.engine = txengine.New(txengine.Config{
		FeePerByte: cfg.Wallet.FeePerByte,
		MaxTxBytes: cfg.Wallet.MaxTxBytes,
		Params:     types.NetParams(network),
	}, &keyring{n}, n.settings, n.chain, n.coins)

	n.broker = broker.New(db, broker.Config{
		Launcher:        n.launcher(),
		Executor:        n,
		DecisionTimeout: cfg.Wallet.DecisionTimeout,
	})
	if err := n.broker.Recover(); err != nil {
		return nil, fmt.Errorf("recover pending requests: %w", err)
	}

	n.rates = rates.New(db, rates.Config{
		Endpoint: cfg.Rates.Endpoint,
		TTL:      cfg.Rates.TTL,
	})
	metrics.Default().SetLocked(true)
	return n, nil
}

// Start launches the idle lock, the indexer connection, the sync loop and
// the API.
func (n *Node) Start() error {
	n.ctx, n.cancel = context.WithCancel(context.Background())
	n.group = &errgroup.Group{}

	n.vault.Start()

	if err := n.chain.Connect(n.ctx); err != nil {
		n.logger.Warn().Err(err).Msg("Indexer unreachable, retrying on next sync")
	}

	n.syncTicker.Resume()
	ticks := n.syncTicker.Ticks()
	n.group.Go(func() error {
		n.runSyncLoop(n.ctx, ticks)
		return nil
	})

	if n.rpcServer != nil {
		if err := n.rpcServer.Start(); err != nil {
			n.Stop()
			return err
		}
		n.logger.Info().Str("addr", n.rpcServer.Addr()).Msg("API server started")
	}
	return nil
}

// Stop shuts everything down in reverse order of Start and closes the
// database.
func (n *Node) Stop() error {
	if n.cancel != nil {
		n.cancel()
	}
	if n.rpcServer != nil {
		if err := n.rpcServer.Stop(); err != nil {
			n.logger.Error().Err(err).Msg("RPC server shutdown error")
		}
	}
	n.syncTicker.Stop()
	if n.group != nil {
		n.group.Wait()
	}
	n.vault.Stop()
	n.vault.Lock()
	if err := n.chain.Close(); err != nil {
		n.logger.Debug().Err(err).Msg("Indexer close error")
	}
	n.logger.Info().Msg("Node stopped")
	return n.db.Close()
}

// RPCAddr returns the bound API address.
func (n *Node) RPCAddr() string {
	if n.rpcServer == nil {
		return ""
	}
	return n.rpcServer.Addr()
}

// Broker returns the request broker.
func (n *Node) Broker() *broker.Broker {
	return n.broker
}

// State returns the application state.
func (n *Node) State() *State {
	return n.state
}

// useLedgers points the ledgers at the prefix of network.
func (n *Node) useLedgers(network string) {
	n.ledgerMu.Lock()
	defer n.ledgerMu.Unlock()
	n.ledgerDB = storage.NewPrefixDB(n.db, ledgerPrefix(network))
	n.coins = utxo.NewLedger(n.ledgerDB)
	n.tokens = token.NewLedger(n.ledgerDB, n.chain, n.icons)
}

// ledgers returns the active ledgers.
func (n *Node) ledgers() (*utxo.Ledger, *token.Ledger) {
	n.ledgerMu.RLock()
	defer n.ledgerMu.RUnlock()
	return n.coins, n.tokens
}

// endpointFor returns the indexer endpoint of network. The configured
// endpoint applies to the configured network only.
func (n *Node) endpointFor(network string) string {
	if network == string(n.cfg.Network) && n.cfg.Electrum.Endpoint != "" {
		return n.cfg.Electrum.Endpoint
	}
	return config.ElectrumEndpoint(config.NetworkType(network))
}

func (n *Node) launcher() broker.Launcher {
	if len(n.cfg.Wallet.SurfaceCommand) == 0 {
		return broker.ManualLauncher{}
	}
	return &broker.CommandLauncher{Command: surfaceCommand(n.cfg.Wallet.SurfaceCommand)}
}

// onLock runs whenever the vault locks, including idle and expiry locks.
func (n *Node) onLock() {
	n.state.SetLocked()
	metrics.Default().SetLocked(true)
	n.broker.Notify(broker.Event{Type: broker.EventSignedOut})
}

// unlocked records a new session.
func (n *Node) unlocked(keys *wallet.Keys) {
	n.state.SetUnlocked(keys)
	metrics.Default().SetLocked(false)
	n.requestSync()
}

// keyring hands the vault to the engine and keeps State current when the
// engine reopens a lapsed session.
type keyring struct {
	n *Node
}

func (k *keyring) Verify(password string) bool {
	return k.n.vault.Verify(password)
}

func (k *keyring) Keys() (*wallet.Keys, error) {
	return k.n.vault.Keys()
}

func (k *keyring) Unlock(password string) (*wallet.Keys, error) {
	keys, err := k.n.vault.Unlock(password)
	if err != nil {
		return nil, err
	}
	k.n.unlocked(keys)
	return keys, nil
}
