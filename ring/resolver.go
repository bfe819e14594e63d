package ring

import (
	"fmt"
	"math/big"

	"ring-settler/chain"
)

// Expiration values below this are block heights, values at or above it are
// Unix timestamps. 1e9 seconds is September 2001, far beyond any plausible
// block height.
const blockHeightThreshold = 1_000_000_000

func expired(expiration uint64, head chain.Head) bool {
	if expiration == 0 {
		return false
	}
	if expiration < blockHeightThreshold {
		return head.Number > expiration
	}
	return head.Time > expiration
}

// resolveCapacity derives an order's current fillable sell capacity from
// ledger truth: the unfilled remainder of the signed sell amount, capped by
// what the owner can actually spend. Results are never cached across
// settlements.
func resolveCapacity(state *OrderState, ledger Ledger, head chain.Head) error {
	if expired(state.Order.Expiration, head) {
		return fmt.Errorf("resolveCapacity: order %s: %w", state.Hash, ErrOrderExpired)
	}

	cancelled, err := ledger.IsCancelled(state.Hash)
	if err != nil {
		return fmt.Errorf("resolveCapacity: %w", err)
	}
	if cancelled {
		return fmt.Errorf("resolveCapacity: order %s: %w", state.Hash, ErrOrderCancelled)
	}

	filled, err := ledger.CumulativeFilled(state.Hash)
	if err != nil {
		return fmt.Errorf("resolveCapacity: %w", err)
	}

	remaining := new(big.Int).Sub(state.Order.AmountS, filled)
	if remaining.Sign() <= 0 {
		return fmt.Errorf("resolveCapacity: order %s fully filled: %w", state.Hash, ErrOrderExhausted)
	}

	spendable, err := ledger.Spendable(state.Owner, state.Order.TokenS)
	if err != nil {
		return fmt.Errorf("resolveCapacity: %w", err)
	}

	available := remaining
	if spendable.Cmp(remaining) < 0 {
		available = spendable
	}
	if available.Sign() <= 0 {
		return fmt.Errorf("resolveCapacity: order %s owner has no spendable %s: %w",
			state.Hash, state.Order.TokenS, ErrOrderExhausted)
	}

	state.Available = new(big.Int).Set(available)

	return nil
}
