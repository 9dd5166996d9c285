package config

import (
	"fmt"
	"net/url"
)

// Validate checks runtime config for obvious operator mistakes.
func Validate(cfg *Config) error {
	if cfg == nil {
		return fmt.Errorf("config is nil")
	}
	if cfg.Network != Mainnet && cfg.Network != Testnet {
		return fmt.Errorf("network must be %q or %q", Mainnet, Testnet)
	}
	if cfg.API.Port < 0 || cfg.API.Port > 65535 {
		return fmt.Errorf("api.port must be in range [0, 65535]")
	}
	if cfg.API.RateLimit < 0 || cfg.API.RateBurst < 0 {
		return fmt.Errorf("api.rate and api.burst must not be negative")
	}

	u, err := url.Parse(cfg.Electrum.Endpoint)
	if err != nil || (u.Scheme != "ws" && u.Scheme != "wss") || u.Host == "" {
		return fmt.Errorf("electrum.endpoint must be a ws:// or wss:// URL")
	}
	if cfg.Electrum.SyncInterval <= 0 {
		return fmt.Errorf("electrum.sync_interval must be positive")
	}

	if cfg.Wallet.FeePerByte == 0 {
		return fmt.Errorf("wallet.fee_per_byte must be positive")
	}
	if cfg.Wallet.MaxTxBytes == 0 {
		return fmt.Errorf("wallet.max_tx_bytes must be positive")
	}
	if cfg.Wallet.SessionTimeout <= 0 || cfg.Wallet.InactivityLimit <= 0 {
		return fmt.Errorf("wallet.session_timeout and wallet.inactivity_limit must be positive")
	}
	if cfg.Wallet.DecisionTimeout < 0 {
		return fmt.Errorf("wallet.decision_timeout must not be negative")
	}
	if cfg.Rates.TTL <= 0 {
		return fmt.Errorf("rates.ttl must be positive")
	}

	return nil
}
