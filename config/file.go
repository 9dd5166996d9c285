package config

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// LoadFile loads configuration from a .conf file.
// Format: key = value (one per line, # for comments)
func LoadFile(path string) (map[string]string, error) {
	file, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return make(map[string]string), nil
		}
		return nil, err
	}
	defer file.Close()

	values := make(map[string]string)
	scanner := bufio.NewScanner(file)
	lineNum := 0

	for scanner.Scan() {
		lineNum++
		line := strings.TrimSpace(scanner.Text())

		// Skip empty lines and comments
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		// Parse key = value
		parts := strings.SplitN(line, "=", 2)
		if len(parts) != 2 {
			return nil, fmt.Errorf("line %d: invalid format (expected key = value)", lineNum)
		}

		key := strings.TrimSpace(parts[0])
		value := strings.TrimSpace(parts[1])

		// Remove quotes if present
		if len(value) >= 2 {
			if (value[0] == '"' && value[len(value)-1] == '"') ||
				(value[0] == '\'' && value[len(value)-1] == '\'') {
				value = value[1 : len(value)-1]
			}
		}

		values[key] = value
	}

	return values, scanner.Err()
}

// ApplyFileConfig applies file configuration to a Config struct.
func ApplyFileConfig(cfg *Config, values map[string]string) error {
	for key, value := range values {
		if err := setConfigValue(cfg, key, value); err != nil {
			return fmt.Errorf("config key %q: %w", key, err)
		}
	}
	return nil
}

// setConfigValue sets a config value by key.
func setConfigValue(cfg *Config, key, value string) error {
	switch key {
	// Core
	case "network":
		cfg.Network = NetworkType(value)
	case "datadir":
		cfg.DataDir = value

	// Electrum
	case "electrum.endpoint", "electrum":
		cfg.Electrum.Endpoint = value
	case "electrum.sync_interval":
		d, err := time.ParseDuration(value)
		if err != nil {
			return err
		}
		cfg.Electrum.SyncInterval = d

	// API
	case "api.addr":
		cfg.API.Addr = value
	case "api.port":
		port, err := strconv.Atoi(value)
		if err != nil {
			return err
		}
		cfg.API.Port = port
	case "api.allowed":
		cfg.API.AllowedIPs = parseStringList(value)
	case "api.cors":
		cfg.API.CORSOrigins = parseStringList(value)
	case "api.rate":
		r, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return err
		}
		cfg.API.RateLimit = r
	case "api.burst":
		n, err := strconv.Atoi(value)
		if err != nil {
			return err
		}
		cfg.API.RateBurst = n

	// Wallet
	case "wallet.fee_per_byte":
		n, err := strconv.ParseUint(value, 10, 64)
		if err != nil {
			return err
		}
		cfg.Wallet.FeePerByte = n
	case "wallet.max_tx_bytes":
		n, err := strconv.ParseUint(value, 10, 64)
		if err != nil {
			return err
		}
		cfg.Wallet.MaxTxBytes = n
	case "wallet.session_timeout":
		d, err := time.ParseDuration(value)
		if err != nil {
			return err
		}
		cfg.Wallet.SessionTimeout = d
	case "wallet.inactivity_limit":
		d, err := time.ParseDuration(value)
		if err != nil {
			return err
		}
		cfg.Wallet.InactivityLimit = d
	case "wallet.decision_timeout":
		d, err := time.ParseDuration(value)
		if err != nil {
			return err
		}
		cfg.Wallet.DecisionTimeout = d
	case "wallet.surface_command":
		cfg.Wallet.SurfaceCommand = strings.Fields(value)

	// Rates
	case "rates.endpoint":
		cfg.Rates.Endpoint = value
	case "rates.ttl":
		d, err := time.ParseDuration(value)
		if err != nil {
			return err
		}
		cfg.Rates.TTL = d

	// Metrics
	case "metrics.enabled", "metrics":
		cfg.Metrics.Enabled = parseBool(value)

	// Logging
	case "log.level":
		cfg.Log.Level = value
	case "log.file":
		cfg.Log.File = value
	case "log.json":
		cfg.Log.JSON = parseBool(value)

	default:
		// Unknown keys are ignored
	}
	return nil
}

// parseBool parses a boolean value.
func parseBool(s string) bool {
	s = strings.ToLower(s)
	return s == "true" || s == "1" || s == "yes" || s == "on"
}

// parseStringList parses a comma-separated list.
func parseStringList(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	result := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			result = append(result, p)
		}
	}
	return result
}

// WriteDefaultConfig writes a default configuration file.
func WriteDefaultConfig(path string, network NetworkType) error {
	def := Default(network)
	content := `# Orbital Wallet Daemon Configuration

# Network: mainnet or testnet
network = ` + string(network) + `

# Data directory (default: ~/.orbital)
# datadir = ~/.orbital

# ============================================================================
# ElectrumX indexer
# ============================================================================

electrum.endpoint = ` + def.Electrum.Endpoint + `
electrum.sync_interval = ` + def.Electrum.SyncInterval.String() + `

# ============================================================================
# API (capability requests, approval surface, events)
# ============================================================================

api.addr = 127.0.0.1
api.port = ` + strconv.Itoa(def.API.Port) + `
api.allowed = 127.0.0.1
# CORS allowed origins ("*" for all)
# api.cors = https://app.example.com
# Per-origin request rate (requests/second) and burst
api.rate = 10
api.burst = 20

# ============================================================================
# Wallet policy
# ============================================================================

wallet.fee_per_byte = 3000
wallet.max_tx_bytes = 1000000
wallet.session_timeout = 30m
wallet.inactivity_limit = 10m
# Dismiss a pending approval after this long (0 = never)
wallet.decision_timeout = 0
# Command that opens the approval surface; the surface id is appended.
# wallet.surface_command = orbital-approve --id

# ============================================================================
# Exchange rate
# ============================================================================

rates.endpoint = ` + DefaultRatesEndpoint + `
rates.ttl = 10m

# ============================================================================
# Metrics and logging
# ============================================================================

metrics.enabled = true
log.level = info
# log.file =
log.json = false
`
	return os.WriteFile(path, []byte(content), 0644)
}
