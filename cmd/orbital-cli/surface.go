package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/urfave/cli"

	"github.com/Klingon-tech/orbital-wallet/internal/broker"
	"github.com/Klingon-tech/orbital-wallet/internal/rpcclient"
)

const surfacePollInterval = 500 * time.Millisecond

var surfaceCommand = cli.Command{
	Name:      "surface",
	Category:  "Requests",
	Usage:     "Answer requests interactively.",
	ArgsUsage: "[surface-id]",
	Description: `
	Polls the daemon and asks about each pending request in turn. When the
	daemon launches this command it passes the surface id, and the command
	exits once nothing is left to decide. Started by hand it runs until
	interrupted. Interrupting dismisses whatever is still pending.`,
	Action: runSurface,
}

func runSurface(ctx *cli.Context) error {
	client := getClient(ctx)
	id := ctx.Args().First()
	if id == "" {
		id = os.Getenv(broker.SurfaceEnv)
	}
	launched := id != ""

	bg, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		cancel()
	}()

	in := bufio.NewReader(os.Stdin)
	answered := 0
	for {
		select {
		case <-bg.Done():
			return dismiss(client, id)
		default:
		}

		pending, err := client.Pending(bg)
		if err != nil {
			if bg.Err() != nil {
				return dismiss(client, id)
			}
			return err
		}
		if len(pending.Requests) == 0 {
			if launched && answered > 0 {
				return nil
			}
			select {
			case <-bg.Done():
				return dismiss(client, id)
			case <-time.After(surfacePollInterval):
			}
			continue
		}

		for _, req := range pending.Requests {
			fmt.Println()
			printRequest(req)
			ok, err := confirm(in, "Approve "+req.Kind.String()+"?")
			if err != nil {
				return dismiss(client, id)
			}
			if err := decide(client, req.Kind, ok); err != nil {
				fmt.Fprintf(os.Stderr, "%s: %v\n", req.Kind, err)
			}
			answered++
		}
	}
}

// dismiss reports the surface as closed.
func dismiss(client *rpcclient.Client, id string) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return client.SurfaceClosed(ctx, id)
}
