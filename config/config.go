// Package config handles application configuration.
//
// Settings come from three layers, lowest precedence first: built-in
// defaults for the selected network, the orbital.conf file in the data
// directory, and command-line flags.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"time"
)

// NetworkType identifies mainnet or testnet.
type NetworkType string

const (
	Mainnet NetworkType = "mainnet"
	Testnet NetworkType = "testnet"
)

// ErrUnknownNetwork is returned for a network other than mainnet or testnet.
var ErrUnknownNetwork = errors.New("unknown network")

// ParseNetwork validates a network name.
func ParseNetwork(s string) (NetworkType, error) {
	switch n := NetworkType(s); n {
	case Mainnet, Testnet:
		return n, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownNetwork, s)
}

// Config holds the daemon's runtime configuration.
type Config struct {
	// Core
	Network NetworkType `conf:"network"`
	DataDir string      `conf:"datadir"`

	// Indexer connection
	Electrum ElectrumConfig

	// Capability and surface API
	API APIConfig

	// Wallet policy
	Wallet WalletConfig

	// Exchange-rate cache
	Rates RatesConfig

	// Prometheus endpoint
	Metrics MetricsConfig

	// Logging
	Log LogConfig
}

// ElectrumConfig holds ElectrumX connection settings.
type ElectrumConfig struct {
	Endpoint     string        `conf:"electrum.endpoint"`
	SyncInterval time.Duration `conf:"electrum.sync_interval"`
}

// APIConfig holds HTTP API settings.
type APIConfig struct {
	Addr        string   `conf:"api.addr"`
	Port        int      `conf:"api.port"`
	AllowedIPs  []string `conf:"api.allowed"`
	CORSOrigins []string `conf:"api.cors"` // Allowed CORS origins ("*" = all).
	RateLimit   float64  `conf:"api.rate"`  // Capability requests per second per origin.
	RateBurst   int      `conf:"api.burst"`
}

// WalletConfig holds wallet policy settings.
type WalletConfig struct {
	FeePerByte      uint64        `conf:"wallet.fee_per_byte"`
	MaxTxBytes      uint64        `conf:"wallet.max_tx_bytes"`
	SessionTimeout  time.Duration `conf:"wallet.session_timeout"`
	InactivityLimit time.Duration `conf:"wallet.inactivity_limit"`
	// DecisionTimeout dismisses a pending request that received no decision.
	// Zero disables it.
	DecisionTimeout time.Duration `conf:"wallet.decision_timeout"`
	// SurfaceCommand is executed to open the approval surface. The surface
	// id is appended as the last argument. Empty means surfaces are opened
	// out of band and only tracked.
	SurfaceCommand []string `conf:"wallet.surface_command"`
}

// RatesConfig holds exchange-rate settings.
type RatesConfig struct {
	Endpoint string        `conf:"rates.endpoint"`
	TTL      time.Duration `conf:"rates.ttl"`
}

// MetricsConfig holds metrics settings.
type MetricsConfig struct {
	Enabled bool `conf:"metrics.enabled"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level string `conf:"log.level"`
	File  string `conf:"log.file"`
	JSON  bool   `conf:"log.json"`
}

// =============================================================================
// Directory helpers
// =============================================================================

// DefaultDataDir returns the platform-specific default data directory.
//
//	Linux:   ~/.orbital
//	macOS:   ~/Library/Application Support/Orbital
//	Windows: %APPDATA%\Orbital
func DefaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".orbital"
	}
	switch runtime.GOOS {
	case "darwin":
		return filepath.Join(home, "Library", "Application Support", "Orbital")
	case "windows":
		appData := os.Getenv("APPDATA")
		if appData != "" {
			return filepath.Join(appData, "Orbital")
		}
		return filepath.Join(home, "AppData", "Roaming", "Orbital")
	default:
		return filepath.Join(home, ".orbital")
	}
}

// DBDir returns the wallet database directory. One database serves both
// networks; ledger data is namespaced per network inside it.
func (c *Config) DBDir() string {
	return filepath.Join(c.DataDir, "db")
}

// IconsDir returns the token icon directory.
func (c *Config) IconsDir() string {
	return filepath.Join(c.DataDir, "icons")
}

// LogsDir returns the logs directory.
func (c *Config) LogsDir() string {
	return filepath.Join(c.DataDir, "logs")
}

// ConfigFile returns the config file path.
func (c *Config) ConfigFile() string {
	return filepath.Join(c.DataDir, "orbital.conf")
}
