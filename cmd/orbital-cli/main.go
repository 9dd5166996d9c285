// orbital-cli controls a running orbitald and doubles as a terminal
// approval surface.
package main

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"syscall"
	"time"

	"github.com/urfave/cli"
	"golang.org/x/term"

	"github.com/Klingon-tech/orbital-wallet/config"
	"github.com/Klingon-tech/orbital-wallet/internal/rpc"
	"github.com/Klingon-tech/orbital-wallet/internal/rpcclient"
)

const defaultAPI = "127.0.0.1:9445"

// photonsPerRXD is the number of photons in one RXD.
const photonsPerRXD = 100_000_000

func fatal(err error) {
	fmt.Fprintf(os.Stderr, "[orbital-cli] %v\n", err)
	os.Exit(1)
}

func main() {
	app := cli.NewApp()
	app.Name = "orbital-cli"
	app.Version = config.Version
	app.Usage = "control plane for the orbital wallet daemon"
	app.Flags = []cli.Flag{
		cli.StringFlag{
			Name:   "api",
			Value:  defaultAPI,
			Usage:  "host:port of the orbitald API",
			EnvVar: "ORBITAL_API",
		},
		cli.BoolFlag{
			Name:  "json",
			Usage: "print raw JSON",
		},
		cli.DurationFlag{
			Name:  "timeout",
			Value: 2 * time.Minute,
			Usage: "how long to wait for the daemon",
		},
	}
	app.Commands = []cli.Command{
		statusCommand,
		createCommand,
		unlockCommand,
		lockCommand,
		syncCommand,
		networkCommand,
		tokensCommand,
		sendTokenCommand,
		pendingCommand,
		approveCommand,
		rejectCommand,
		dismissCommand,
		surfaceCommand,
		whitelistCommand,
		disconnectCommand,
		prefsCommand,
	}

	if err := app.Run(os.Args); err != nil {
		fatal(err)
	}
}

func getClient(ctx *cli.Context) *rpcclient.Client {
	return rpcclient.NewWithTimeout(ctx.GlobalString("api"), ctx.GlobalDuration("timeout"))
}

// readPassword reads a password from the terminal without echo.
func readPassword(text string) (string, error) {
	fmt.Fprint(os.Stderr, text)
	pw, err := term.ReadPassword(int(syscall.Stdin)) // nolint:unconvert
	fmt.Fprintln(os.Stderr)
	return string(pw), err
}

// readNewPassword asks twice and insists on a match.
func readNewPassword() (string, error) {
	pw, err := readPassword("Choose a password: ")
	if err != nil {
		return "", err
	}
	if pw == "" {
		return "", errors.New("password must not be empty")
	}
	again, err := readPassword("Confirm password: ")
	if err != nil {
		return "", err
	}
	if pw != again {
		return "", errors.New("passwords do not match")
	}
	return pw, nil
}

// readLine reads one trimmed line.
func readLine(r *bufio.Reader, prompt string) (string, error) {
	fmt.Fprint(os.Stderr, prompt)
	line, err := r.ReadString('\n')
	if err != nil && !(errors.Is(err, io.EOF) && line != "") {
		return "", err
	}
	return strings.TrimSpace(line), nil
}

// confirm asks a yes/no question. Anything but y or yes is a no.
func confirm(r *bufio.Reader, prompt string) (bool, error) {
	answer, err := readLine(r, prompt+" [y/N]: ")
	if err != nil {
		return false, err
	}
	switch strings.ToLower(answer) {
	case "y", "yes":
		return true, nil
	}
	return false, nil
}

func printJSON(v any) {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		fmt.Fprintf(os.Stderr, "unable to encode: %v\n", err)
		return
	}
	fmt.Println(string(b))
}

// formatRXD renders photons as a decimal RXD amount.
func formatRXD(photons uint64) string {
	whole := photons / photonsPerRXD
	frac := photons % photonsPerRXD
	if frac == 0 {
		return fmt.Sprintf("%d RXD", whole)
	}
	s := strings.TrimRight(fmt.Sprintf("%08d", frac), "0")
	return fmt.Sprintf("%d.%s RXD", whole, s)
}

// isUnauthorized reports whether the daemon rejected a password.
func isUnauthorized(err error) bool {
	var rpcErr *rpcclient.RPCError
	return errors.As(err, &rpcErr) && rpcErr.Code == rpc.CodeUnauthorized
}
