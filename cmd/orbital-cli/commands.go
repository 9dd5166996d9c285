package main

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strconv"

	"github.com/urfave/cli"

	"github.com/Klingon-tech/orbital-wallet/internal/broker"
	"github.com/Klingon-tech/orbital-wallet/internal/rpc"
	"github.com/Klingon-tech/orbital-wallet/internal/settings"
)

// maxPasswordAttempts bounds password retries on a pending decision.
const maxPasswordAttempts = 3

var statusCommand = cli.Command{
	Name:     "status",
	Category: "Wallet",
	Usage:    "Show the wallet status.",
	Action:   status,
}

func status(ctx *cli.Context) error {
	st, err := getClient(ctx).Status(context.Background())
	if err != nil {
		return err
	}
	if ctx.GlobalBool("json") {
		printJSON(st)
		return nil
	}
	printStatus(st)
	return nil
}

func printStatus(st *rpc.Status) {
	fmt.Printf("Network:   %s\n", st.Network)
	if !st.HasWallet {
		fmt.Println("Wallet:    none (run `orbital-cli create`)")
		return
	}
	state := "locked"
	if st.Unlocked {
		state = "unlocked"
		if st.ExpiresAt != nil {
			state += " until " + st.ExpiresAt.Local().Format("15:04:05")
		}
	}
	fmt.Printf("Wallet:    %s\n", state)
	if st.Address != "" {
		fmt.Printf("Address:   %s\n", st.Address)
		fmt.Printf("Identity:  %s\n", st.IdentityAddress)
	}
	fmt.Printf("Balance:   %s\n", formatRXD(st.Balance))
}

var createCommand = cli.Command{
	Name:     "create",
	Category: "Wallet",
	Usage:    "Create a new wallet or restore one from a mnemonic.",
	Description: `
	Creates the wallet and prints its 12 word mnemonic. With --restore the
	mnemonic is read from stdin instead. An existing wallet is replaced.`,
	Flags: []cli.Flag{
		cli.BoolFlag{
			Name:  "restore",
			Usage: "restore from an existing mnemonic",
		},
	},
	Action: create,
}

func create(ctx *cli.Context) error {
	var mnemonic string
	if ctx.Bool("restore") {
		var err error
		mnemonic, err = readLine(bufio.NewReader(os.Stdin), "Mnemonic: ")
		if err != nil {
			return err
		}
	}
	pw, err := readNewPassword()
	if err != nil {
		return err
	}
	m, err := getClient(ctx).Create(context.Background(), pw, mnemonic)
	if err != nil {
		return err
	}
	if mnemonic == "" {
		fmt.Println("Write down your mnemonic and keep it safe:")
		fmt.Println()
		fmt.Println("  " + m)
		fmt.Println()
	}
	fmt.Println("Wallet ready.")
	return nil
}

var unlockCommand = cli.Command{
	Name:     "unlock",
	Category: "Wallet",
	Usage:    "Open a session.",
	Action:   unlock,
}

func unlock(ctx *cli.Context) error {
	pw, err := readPassword("Password: ")
	if err != nil {
		return err
	}
	st, err := getClient(ctx).Unlock(context.Background(), pw)
	if err != nil {
		return err
	}
	printStatus(st)
	return nil
}

var lockCommand = cli.Command{
	Name:     "lock",
	Category: "Wallet",
	Usage:    "End the session.",
	Action: func(ctx *cli.Context) error {
		return getClient(ctx).Lock(context.Background())
	},
}

var syncCommand = cli.Command{
	Name:     "sync",
	Category: "Wallet",
	Usage:    "Refresh balances from the indexer.",
	Action: func(ctx *cli.Context) error {
		st, err := getClient(ctx).Sync(context.Background())
		if err != nil {
			return err
		}
		printStatus(st)
		return nil
	},
}

var networkCommand = cli.Command{
	Name:      "network",
	Category:  "Wallet",
	Usage:     "Switch between mainnet and testnet.",
	ArgsUsage: "mainnet|testnet",
	Action: func(ctx *cli.Context) error {
		if ctx.NArg() != 1 {
			return cli.ShowCommandHelp(ctx, "network")
		}
		st, err := getClient(ctx).SetNetwork(context.Background(), ctx.Args().First())
		if err != nil {
			return err
		}
		printStatus(st)
		return nil
	},
}

var tokensCommand = cli.Command{
	Name:     "tokens",
	Category: "Tokens",
	Usage:    "List fungible token balances.",
	Action: func(ctx *cli.Context) error {
		tokens, err := getClient(ctx).Tokens(context.Background())
		if err != nil {
			return err
		}
		if len(tokens) == 0 {
			fmt.Println("No tokens.")
			return nil
		}
		fmt.Printf("%-10s %-20s %16s  %s\n", "TICKER", "NAME", "BALANCE", "REF")
		for _, t := range tokens {
			fmt.Printf("%-10s %-20s %16d  %s\n", t.Ticker, t.Name, t.Balance, t.Ref)
		}
		return nil
	},
}

var sendTokenCommand = cli.Command{
	Name:      "send-token",
	Category:  "Tokens",
	Usage:     "Send a fungible token.",
	ArgsUsage: "ref address amount",
	Action:    sendToken,
}

func sendToken(ctx *cli.Context) error {
	if ctx.NArg() != 3 {
		return cli.ShowCommandHelp(ctx, "send-token")
	}
	args := ctx.Args()
	amount, err := strconv.ParseUint(args.Get(2), 10, 64)
	if err != nil || amount == 0 {
		return fmt.Errorf("invalid amount %q", args.Get(2))
	}
	pw, err := readPassword("Password: ")
	if err != nil {
		return err
	}
	res, err := getClient(ctx).SendToken(context.Background(), rpc.SendTokenParam{
		Ref:      args.Get(0),
		To:       args.Get(1),
		Amount:   amount,
		Password: pw,
	})
	if err != nil {
		return err
	}
	fmt.Printf("Sent: %s\n", res.TxID)
	return nil
}

var pendingCommand = cli.Command{
	Name:     "pending",
	Category: "Requests",
	Usage:    "List requests awaiting a decision.",
	Action: func(ctx *cli.Context) error {
		pending, err := getClient(ctx).Pending(context.Background())
		if err != nil {
			return err
		}
		if len(pending.Requests) == 0 {
			fmt.Println("Nothing pending.")
			return nil
		}
		for _, req := range pending.Requests {
			printRequest(req)
		}
		return nil
	},
}

func printRequest(req *broker.Request) {
	fmt.Printf("[%s] from %s at %s\n", req.Kind, req.Origin.Domain, req.CreatedAt.Local().Format("15:04:05"))
	if len(req.Params) > 0 && string(req.Params) != "null" {
		fmt.Printf("  %s\n", req.Params)
	}
}

var approveCommand = cli.Command{
	Name:      "approve",
	Category:  "Requests",
	Usage:     "Approve a pending request.",
	ArgsUsage: "kind",
	Action: func(ctx *cli.Context) error {
		return decideArg(ctx, true)
	},
}

var rejectCommand = cli.Command{
	Name:      "reject",
	Category:  "Requests",
	Usage:     "Reject a pending request.",
	ArgsUsage: "kind",
	Action: func(ctx *cli.Context) error {
		return decideArg(ctx, false)
	},
}

func decideArg(ctx *cli.Context, approved bool) error {
	if ctx.NArg() != 1 {
		return cli.ShowCommandHelp(ctx, ctx.Command.Name)
	}
	kind, ok := broker.ParseKind(ctx.Args().First())
	if !ok {
		return fmt.Errorf("unknown request kind %q", ctx.Args().First())
	}
	return decide(getClient(ctx), kind, approved)
}

type decider interface {
	Decide(context.Context, broker.Decision) (json.RawMessage, error)
}

// decide sends a decision, asking for the password again while the daemon
// rejects it.
func decide(client decider, kind broker.Kind, approved bool) error {
	d := broker.Decision{Type: kind.ResponseType(), Approved: approved}
	if !approved {
		if _, err := client.Decide(context.Background(), d); err != nil {
			return err
		}
		fmt.Println("Rejected.")
		return nil
	}
	for attempt := 1; ; attempt++ {
		pw, err := readPassword("Password: ")
		if err != nil {
			return err
		}
		d.Password = pw
		res, err := client.Decide(context.Background(), d)
		if err == nil {
			fmt.Printf("Approved: %s\n", res)
			return nil
		}
		if !isUnauthorized(err) || attempt == maxPasswordAttempts {
			return err
		}
		fmt.Fprintln(os.Stderr, "Wrong password.")
	}
}

var dismissCommand = cli.Command{
	Name:     "dismiss",
	Category: "Requests",
	Usage:    "Dismiss every pending request.",
	Action: func(ctx *cli.Context) error {
		return getClient(ctx).SurfaceClosed(context.Background(), "")
	},
}

var whitelistCommand = cli.Command{
	Name:     "whitelist",
	Category: "Applications",
	Usage:    "List connected applications.",
	Action: func(ctx *cli.Context) error {
		list, err := getClient(ctx).Whitelist(context.Background())
		if err != nil {
			return err
		}
		if len(list) == 0 {
			fmt.Println("No connected applications.")
			return nil
		}
		for _, o := range list {
			fmt.Println(o.Domain)
		}
		return nil
	},
}

var disconnectCommand = cli.Command{
	Name:      "disconnect",
	Category:  "Applications",
	Usage:     "Disconnect an application.",
	ArgsUsage: "domain",
	Action: func(ctx *cli.Context) error {
		if ctx.NArg() != 1 {
			return cli.ShowCommandHelp(ctx, "disconnect")
		}
		removed, err := getClient(ctx).RemoveOrigin(context.Background(), ctx.Args().First())
		if err != nil {
			return err
		}
		if !removed {
			return fmt.Errorf("%s is not connected", ctx.Args().First())
		}
		return nil
	},
}

var prefsCommand = cli.Command{
	Name:     "prefs",
	Category: "Settings",
	Usage:    "Show or change preferences.",
	Description: `
	Without flags the current preferences are printed. Changing the
	approval limit or the password requirement asks for the password.`,
	Flags: []cli.Flag{
		cli.Uint64Flag{
			Name:  "limit",
			Usage: "photons an application may spend without approval",
		},
		cli.BoolTFlag{
			Name:  "password-required",
			Usage: "require the password for every approval",
		},
		cli.StringFlag{
			Name:  "display-name",
			Usage: "name shown to applications",
		},
		cli.StringFlag{
			Name:  "avatar",
			Usage: "avatar URL shown to applications",
		},
	},
	Action: prefs,
}

func prefs(ctx *cli.Context) error {
	client := getClient(ctx)
	var u rpc.PreferencesUpdate
	if ctx.IsSet("limit") {
		v := ctx.Uint64("limit")
		u.NoApprovalLimit = &v
	}
	if ctx.IsSet("password-required") {
		v := ctx.BoolT("password-required")
		u.PasswordRequired = &v
	}
	if ctx.IsSet("display-name") || ctx.IsSet("avatar") {
		u.SocialProfile = &settings.SocialProfile{
			DisplayName: ctx.String("display-name"),
			Avatar:      ctx.String("avatar"),
		}
	}

	if u.NoApprovalLimit == nil && u.PasswordRequired == nil && u.SocialProfile == nil {
		p, err := client.Preferences(context.Background())
		if err != nil {
			return err
		}
		printJSON(p)
		return nil
	}
	if u.NoApprovalLimit != nil || u.PasswordRequired != nil {
		pw, err := readPassword("Password: ")
		if err != nil {
			return err
		}
		u.Password = pw
	}
	p, err := client.SetPreferences(context.Background(), u)
	if err != nil {
		return err
	}
	printJSON(p)
	return nil
}
