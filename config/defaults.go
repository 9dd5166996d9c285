package config

import "time"

// Wallet policy defaults.
const (
	DefaultFeePerByte      = 3000
	DefaultMaxTxBytes      = 1_000_000
	DefaultSessionTimeout  = 30 * time.Minute
	DefaultInactivityLimit = 10 * time.Minute
	DefaultSyncInterval    = 30 * time.Second
	DefaultRatesTTL        = 10 * time.Minute
	DefaultRatesEndpoint   = "https://api.coinpaprika.com/v1/coins/rxd-radiant/ohlcv/today"
)

// DefaultMainnet returns the default configuration for mainnet.
func DefaultMainnet() *Config {
	return &Config{
		Network: Mainnet,
		DataDir: DefaultDataDir(),
		Electrum: ElectrumConfig{
			Endpoint:     "wss://electrumx.radiant4people.com:50022",
			SyncInterval: DefaultSyncInterval,
		},
		API: APIConfig{
			Addr:       "127.0.0.1",
			Port:       9445,
			AllowedIPs: []string{"127.0.0.1"},
			RateLimit:  10,
			RateBurst:  20,
		},
		Wallet: WalletConfig{
			FeePerByte:      DefaultFeePerByte,
			MaxTxBytes:      DefaultMaxTxBytes,
			SessionTimeout:  DefaultSessionTimeout,
			InactivityLimit: DefaultInactivityLimit,
		},
		Rates: RatesConfig{
			Endpoint: DefaultRatesEndpoint,
			TTL:      DefaultRatesTTL,
		},
		Metrics: MetricsConfig{
			Enabled: true,
		},
		Log: LogConfig{
			Level: "info",
			JSON:  false,
		},
	}
}

// DefaultTestnet returns the default configuration for testnet.
func DefaultTestnet() *Config {
	cfg := DefaultMainnet()
	cfg.Network = Testnet
	cfg.Electrum.Endpoint = "ws://127.0.0.1:50022"
	cfg.API.Port = 9446
	return cfg
}

// Default returns the default configuration for the given network.
func Default(network NetworkType) *Config {
	switch network {
	case Testnet:
		return DefaultTestnet()
	default:
		return DefaultMainnet()
	}
}

// ElectrumEndpoint returns the default ElectrumX endpoint for a network.
func ElectrumEndpoint(network NetworkType) string {
	return Default(network).Electrum.Endpoint
}
