package node

import (
	"os"
	"path/filepath"
	"strings"
)

// surfaceCommand copies the configured surface command with a leading ~/
// in the program path resolved against the home directory.
func surfaceCommand(cmd []string) []string {
	out := append([]string(nil), cmd...)
	if len(out) == 0 || !strings.HasPrefix(out[0], "~/") {
		return out
	}
	if home, err := os.UserHomeDir(); err == nil {
		out[0] = filepath.Join(home, out[0][2:])
	}
	return out
}

// ledgerPrefix namespaces the cached outputs and tokens of a network.
func ledgerPrefix(network string) []byte {
	return []byte("ledger/" + network + "/")
}
