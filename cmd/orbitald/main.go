// Orbital wallet daemon.
//
// Usage:
//
//	orbitald [--network=testnet --surface-command=...] Run the wallet
//	orbitald --help                                    Show help
package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/Klingon-tech/orbital-wallet/config"
	klog "github.com/Klingon-tech/orbital-wallet/internal/log"
	"github.com/Klingon-tech/orbital-wallet/internal/node"
)

func main() {
	cfg, _, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	n, err := node.New(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	if err := n.Start(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		n.Stop()
		os.Exit(1)
	}

	logger := klog.WithNetwork(n.State().Snapshot().Network)
	logger.Info().Str("api", n.RPCAddr()).Str("version", config.Version).Msg("Orbital wallet running")

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh

	logger.Info().Str("signal", sig.String()).Msg("Shutting down")
	if err := n.Stop(); err != nil {
		logger.Error().Err(err).Msg("Shutdown error")
		os.Exit(1)
	}
}
