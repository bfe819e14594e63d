package ring

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// TokenLedger is the external token balance collaborator. Spendable is the
// amount the settler may move for an owner: min(balance, approved allowance).
type TokenLedger interface {
	Spendable(owner, token common.Address) (*big.Int, error)
	Transfer(from, to, token common.Address, amount *big.Int) error
}

// OrderLedger tracks per-order-hash cumulative fills and cancellation flags.
// Both are externally mutable, so they are read fresh on every settlement.
type OrderLedger interface {
	CumulativeFilled(orderHash common.Hash) (*big.Int, error)
	IsCancelled(orderHash common.Hash) (bool, error)
	AddFilled(orderHash common.Hash, amount *big.Int) error
}

// EventSink records settlement events for off-chain observers.
type EventSink interface {
	RingSettled(event *RingSettledEvent) error
	OrderFilled(event *OrderFilledEvent) error
}

// Ledger is the full collaborator surface one settlement runs against.
type Ledger interface {
	TokenLedger
	OrderLedger
	EventSink

	// NextRingIndex returns the ring sequence index for this settlement and
	// advances the counter.
	NextRingIndex() (uint64, error)
}

// Store hands out transactional ledgers: either every mutation made inside
// fn commits, or none does.
type Store interface {
	WithinTransaction(fn func(Ledger) error) error
}
