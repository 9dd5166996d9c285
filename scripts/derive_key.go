// derive_key.go prints the wallet and identity keys a mnemonic restores to.
// The mnemonic is read from stdin.
// Usage: go run scripts/derive_key.go [mainnet|testnet] < mnemonic.txt
package main

import (
	"bufio"
	"encoding/hex"
	"fmt"
	"os"
	"strings"

	"github.com/Klingon-tech/orbital-wallet/internal/wallet"
	"github.com/Klingon-tech/orbital-wallet/pkg/types"
)

func main() {
	network := "mainnet"
	if len(os.Args) > 1 {
		network = os.Args[1]
	}
	line, err := bufio.NewReader(os.Stdin).ReadString('\n')
	if err != nil && line == "" {
		fmt.Fprintln(os.Stderr, "usage: derive_key [network] < mnemonic")
		os.Exit(1)
	}
	keys, err := wallet.DeriveKeys(strings.TrimSpace(line), "", "")
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	defer keys.Zero()

	params := types.NetParams(network)
	fmt.Printf("wallet_path=%s\n", keys.WalletPath)
	fmt.Printf("wallet_pubkey=%s\n", hex.EncodeToString(keys.Wallet.PublicKey()))
	fmt.Printf("wallet_address=%s\n", keys.WalletAddress().Encode(params))
	fmt.Printf("identity_path=%s\n", keys.IdentityPath)
	fmt.Printf("identity_pubkey=%s\n", hex.EncodeToString(keys.Identity.PublicKey()))
	fmt.Printf("identity_address=%s\n", keys.IdentityAddress().Encode(params))
}
