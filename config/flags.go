package config

import (
	"flag"
	"fmt"
	"os"
	"strings"
	"time"
)

// Flags holds parsed command-line flags.
type Flags struct {
	// Commands
	Help    bool
	Version bool

	// Core
	Network string
	DataDir string
	Config  string

	// Electrum
	Electrum string

	// API
	APIAddr    string
	APIPort    int
	APIAllowed string
	APICORS    string

	// Wallet
	FeePerByte      uint64
	DecisionTimeout time.Duration
	SurfaceCommand  string

	// Metrics
	Metrics bool

	// Logging
	LogLevel string
	LogFile  string
	LogJSON  bool

	// Remaining args
	Args []string

	// Explicitly-set flags (for true/false and zero overrides).
	SetMetrics         bool
	SetLogJSON         bool
	SetDecisionTimeout bool
}

// ParseFlags parses command-line flags.
func ParseFlags(args []string) (*Flags, error) {
	f := &Flags{}
	fs := flag.NewFlagSet("orbitald", flag.ContinueOnError)

	// Commands
	fs.BoolVar(&f.Help, "help", false, "Show help message")
	fs.BoolVar(&f.Help, "h", false, "Show help message (shorthand)")
	fs.BoolVar(&f.Version, "version", false, "Show version information")
	fs.BoolVar(&f.Version, "v", false, "Show version (shorthand)")

	// Core
	fs.StringVar(&f.Network, "network", "", "Network type (mainnet or testnet)")
	testnet := fs.Bool("testnet", false, "Use testnet (shorthand for --network=testnet)")
	fs.StringVar(&f.DataDir, "datadir", "", "Data directory path")
	fs.StringVar(&f.Config, "config", "", "Config file path")
	fs.StringVar(&f.Config, "c", "", "Config file path (shorthand)")

	// Electrum
	fs.StringVar(&f.Electrum, "electrum", "", "ElectrumX websocket endpoint")

	// API
	fs.StringVar(&f.APIAddr, "api-addr", "", "API listen address")
	fs.IntVar(&f.APIPort, "api-port", 0, "API listen port")
	fs.StringVar(&f.APIAllowed, "api-allowed", "", "Allowed IPs for the API (comma-separated)")
	fs.StringVar(&f.APICORS, "api-cors", "", "Allowed CORS origins (comma-separated)")

	// Wallet
	fs.Uint64Var(&f.FeePerByte, "fee-per-byte", 0, "Fee rate in photons per byte")
	fs.DurationVar(&f.DecisionTimeout, "decision-timeout", 0, "Dismiss pending approvals after this long (0 = never)")
	fs.StringVar(&f.SurfaceCommand, "surface-command", "", "Command that opens the approval surface")

	// Metrics
	fs.BoolVar(&f.Metrics, "metrics", true, "Serve Prometheus metrics on /metrics")

	// Logging
	fs.StringVar(&f.LogLevel, "log-level", "", "Log level (debug, info, warn, error)")
	fs.StringVar(&f.LogFile, "log-file", "", "Log file path")
	fs.BoolVar(&f.LogJSON, "log-json", false, "Output logs as JSON")

	fs.Usage = printUsage

	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	if *testnet {
		f.Network = string(Testnet)
	}
	f.SetMetrics = isFlagSet(fs, "metrics")
	f.SetLogJSON = isFlagSet(fs, "log-json")
	f.SetDecisionTimeout = isFlagSet(fs, "decision-timeout")
	f.Args = fs.Args()

	// Detect unparsed flags caused by positional arguments stopping the parser.
	for _, arg := range f.Args {
		if strings.HasPrefix(arg, "-") {
			return nil, fmt.Errorf("flag %q was not parsed (positional argument stopped parsing)", arg)
		}
	}

	return f, nil
}

// ApplyFlags applies command-line flags to a Config struct.
func ApplyFlags(cfg *Config, f *Flags) {
	// Core
	if f.Network != "" {
		cfg.Network = NetworkType(f.Network)
	}
	if f.DataDir != "" {
		cfg.DataDir = f.DataDir
	}

	// Electrum
	if f.Electrum != "" {
		cfg.Electrum.Endpoint = f.Electrum
	}

	// API
	if f.APIAddr != "" {
		cfg.API.Addr = f.APIAddr
	}
	if f.APIPort != 0 {
		cfg.API.Port = f.APIPort
	}
	if f.APIAllowed != "" {
		cfg.API.AllowedIPs = parseStringList(f.APIAllowed)
	}
	if f.APICORS != "" {
		cfg.API.CORSOrigins = parseStringList(f.APICORS)
	}

	// Wallet
	if f.FeePerByte != 0 {
		cfg.Wallet.FeePerByte = f.FeePerByte
	}
	if f.SetDecisionTimeout {
		cfg.Wallet.DecisionTimeout = f.DecisionTimeout
	}
	if f.SurfaceCommand != "" {
		cfg.Wallet.SurfaceCommand = strings.Fields(f.SurfaceCommand)
	}

	// Metrics
	if f.SetMetrics {
		cfg.Metrics.Enabled = f.Metrics
	}

	// Logging
	if f.LogLevel != "" {
		cfg.Log.Level = f.LogLevel
	}
	if f.LogFile != "" {
		cfg.Log.File = f.LogFile
	}
	if f.SetLogJSON {
		cfg.Log.JSON = f.LogJSON
	}
}

// isFlagSet checks if a flag was explicitly set.
func isFlagSet(fs *flag.FlagSet, name string) bool {
	found := false
	fs.Visit(func(f *flag.Flag) {
		if f.Name == name {
			found = true
		}
	})
	return found
}

func printUsage() {
	usage := `Orbital - non-custodial Radiant wallet daemon

Usage:
  orbitald [options]
  orbitald --help

Commands:
  --help, -h      Show this help message
  --version, -v   Show version information

Core Options:
  --network       Network type: mainnet (default) or testnet
  --testnet       Shorthand for --network=testnet
  --datadir       Data directory (default: ~/.orbital)
  --config, -c    Config file path (default: <datadir>/orbital.conf)
  --electrum      ElectrumX websocket endpoint (ws:// or wss://)

API Options:
  --api-addr      API listen address (default: 127.0.0.1)
  --api-port      API port (mainnet: 9445, testnet: 9446)
  --api-allowed   Allowed IPs for the API (comma-separated)
  --api-cors      Allowed CORS origins (comma-separated)

Wallet Options:
  --fee-per-byte      Fee rate in photons per byte (default: 3000)
  --decision-timeout  Dismiss pending approvals after this long (default: never)
  --surface-command   Command that opens the approval surface

Other Options:
  --metrics       Serve Prometheus metrics on /metrics (default: true)
  --log-level     Log level: debug, info, warn, error (default: info)
  --log-file      Log file path (rotated; default: stdout only)
  --log-json      Output logs as JSON

Examples:
  # Start on mainnet
  orbitald

  # Start on testnet against a local ElectrumX
  orbitald --testnet --electrum=ws://127.0.0.1:50022
`
	fmt.Print(usage)
}

// Version is reported by --version.
const Version = "0.1.0"

// Load loads configuration with the following precedence:
// 1. Default values
// 2. Auto-create data dirs + default config (idempotent)
// 3. Config file
// 4. Command-line flags
func Load() (*Config, *Flags, error) {
	flags, err := ParseFlags(os.Args[1:])
	if err != nil {
		if err == flag.ErrHelp {
			os.Exit(0)
		}
		return nil, nil, err
	}

	// Handle help/version
	if flags.Help {
		printUsage()
		os.Exit(0)
	}
	if flags.Version {
		fmt.Println("orbitald version " + Version)
		os.Exit(0)
	}

	cfg, err := build(flags)
	if err != nil {
		return nil, nil, err
	}
	return cfg, flags, nil
}

func build(flags *Flags) (*Config, error) {
	// Determine network first (needed for defaults)
	network := Mainnet
	if strings.ToLower(flags.Network) == string(Testnet) {
		network = Testnet
	}

	// Start with defaults
	cfg := Default(network)

	// Override datadir if specified
	if flags.DataDir != "" {
		cfg.DataDir = flags.DataDir
	}

	// Auto-create data directories and default config on first start.
	if err := EnsureDataDirs(cfg); err != nil {
		return nil, fmt.Errorf("ensuring data dirs: %w", err)
	}

	// Determine config file path
	configPath := flags.Config
	if configPath == "" {
		configPath = cfg.ConfigFile()
	}

	fileValues, err := LoadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("loading config file: %w", err)
	}
	if err := ApplyFileConfig(cfg, fileValues); err != nil {
		return nil, fmt.Errorf("applying config file: %w", err)
	}

	// Apply flags (highest precedence)
	ApplyFlags(cfg, flags)
	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// EnsureDataDirs creates the data directory structure and a default config
// file if they don't already exist. This is idempotent, so it is safe to
// call on every startup.
func EnsureDataDirs(cfg *Config) error {
	dirs := []string{
		cfg.DataDir,
		cfg.DBDir(),
		cfg.IconsDir(),
		cfg.LogsDir(),
	}

	for _, dir := range dirs {
		if err := os.MkdirAll(dir, 0700); err != nil {
			return fmt.Errorf("creating directory %s: %w", dir, err)
		}
	}

	// Create default config if it doesn't exist.
	configPath := cfg.ConfigFile()
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		if err := WriteDefaultConfig(configPath, cfg.Network); err != nil {
			return fmt.Errorf("writing config file: %w", err)
		}
	}

	return nil
}
