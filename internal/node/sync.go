package node

import (
	"context"
	"fmt"
	"time"

	"github.com/Klingon-tech/orbital-wallet/internal/electrum"
	"github.com/Klingon-tech/orbital-wallet/internal/metrics"
	"github.com/Klingon-tech/orbital-wallet/internal/token"
	"github.com/Klingon-tech/orbital-wallet/internal/utxo"
	"github.com/Klingon-tech/orbital-wallet/pkg/script"
)

// syncTimeout bounds one sync pass.
const syncTimeout = 2 * time.Minute

// runSyncLoop refreshes the ledgers on every tick, on every status change
// the indexer pushes and whenever requestSync is called.
func (n *Node) runSyncLoop(ctx context.Context, ticks <-chan time.Time) {
	var updates <-chan electrum.StatusUpdate = n.chain.Updates()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticks:
		case u := <-updates:
			n.logger.Debug().Str("scripthash", u.ScriptHash).Msg("Status changed")
		case <-n.syncNow:
		}
		syncCtx, cancel := context.WithTimeout(ctx, syncTimeout)
		if err := n.Sync(syncCtx); err != nil && ctx.Err() == nil {
			n.logger.Warn().Err(err).Msg("Sync failed")
		}
		cancel()
	}
}

// requestSync asks the loop for a pass without blocking.
func (n *Node) requestSync() {
	select {
	case n.syncNow <- struct{}{}:
	default:
	}
}

// Sync reconciles the coin and token outputs of the wallet address with
// the indexer and refreshes the balance. It does nothing until a wallet has
// been unlocked on the current network.
func (n *Node) Sync(ctx context.Context) error {
	n.syncMu.Lock()
	defer n.syncMu.Unlock()

	snap := n.state.Snapshot()
	if !snap.HasAddress() {
		return nil
	}

	start := time.Now()
	err := n.syncOnce(ctx, snap)
	metrics.Default().ObserveSync(time.Since(start), err)
	return err
}

func (n *Node) syncOnce(ctx context.Context, snap Snapshot) error {
	if !n.chain.IsConnected() {
		if err := n.chain.Connect(ctx); err != nil {
			return fmt.Errorf("connect indexer: %w", err)
		}
	}
	coins, tokens := n.ledgers()

	coinScript := script.P2PKH(snap.WalletAddress)
	coinKey := script.LookupKey(coinScript)
	unspent, err := n.chain.ListUnspent(ctx, coinKey)
	if err != nil {
		return fmt.Errorf("list coin unspent: %w", err)
	}
	remote := make([]*utxo.UTXO, 0, len(unspent))
	for i := range unspent {
		u, err := utxo.FromUnspent(&unspent[i], utxo.KindCoin, coinScript)
		if err != nil {
			n.logger.Debug().Err(err).Msg("Skipping malformed unspent entry")
			continue
		}
		remote = append(remote, u)
	}
	diff, err := coins.Reconcile(coinKey, remote)
	if err != nil {
		return err
	}

	tokenDiff, err := tokens.Sync(ctx, snap.WalletAddress)
	if err != nil {
		return err
	}

	n.subscribe(ctx, coinKey, token.LookupKey(snap.WalletAddress))

	balance, err := coins.Balance()
	if err != nil {
		return err
	}
	list, err := tokens.List()
	if err != nil {
		return err
	}
	metrics.Default().SetBalance(balance, len(list))

	n.logger.Debug().
		Uint64("balance", balance).
		Int("coins_added", len(diff.Added)).
		Int("coins_removed", len(diff.Removed)).
		Int("token_changes", len(tokenDiff.Added)+len(tokenDiff.Removed)).
		Int("tokens", len(list)).
		Msg("Sync complete")
	return nil
}

// subscribe registers status notifications for keys not yet subscribed.
func (n *Node) subscribe(ctx context.Context, keys ...string) {
	for _, key := range keys {
		if _, ok := n.subscribed[key]; ok {
			continue
		}
		if _, err := n.chain.Subscribe(ctx, key); err != nil {
			n.logger.Warn().Err(err).Str("key", key).Msg("Subscribe failed")
			continue
		}
		n.subscribed[key] = struct{}{}
	}
}
