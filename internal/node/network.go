package node

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/Klingon-tech/orbital-wallet/config"
	"github.com/Klingon-tech/orbital-wallet/internal/broker"
	"github.com/Klingon-tech/orbital-wallet/pkg/types"
)

// SetNetwork switches to network. The ledgers of the old network are
// wiped, the choice is persisted, the indexer is redialed, the wallet is
// locked and networkChanged is emitted.
func (n *Node) SetNetwork(ctx context.Context, network string) error {
	if _, err := config.ParseNetwork(network); err != nil {
		return err
	}

	n.syncMu.Lock()
	defer n.syncMu.Unlock()

	if n.state.Snapshot().Network == network {
		return nil
	}

	n.ledgerMu.RLock()
	old := n.ledgerDB
	n.ledgerMu.RUnlock()
	if err := old.DeleteAll(); err != nil {
		return fmt.Errorf("clear ledgers: %w", err)
	}
	if err := n.settings.SetNetwork(network); err != nil {
		return fmt.Errorf("persist network: %w", err)
	}

	n.useLedgers(network)
	coins, _ := n.ledgers()
	n.engine.Reconfigure(types.NetParams(network), coins)

	n.chain.ClearSubscriptions()
	n.subscribed = make(map[string]struct{})
	if err := n.chain.ChangeEndpoint(ctx, n.endpointFor(network)); err != nil {
		n.logger.Warn().Err(err).Msg("Indexer unreachable after network change")
	}

	n.state.SetNetwork(network)
	n.vault.Lock()

	params, _ := json.Marshal(map[string]string{"network": network})
	n.broker.Notify(broker.Event{Type: broker.EventNetworkChanged, Params: params})
	n.logger.Info().Str("network", network).Msg("Network changed")
	return nil
}
