package ring

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

type RingSettledEvent struct {
	RingIndex    uint64
	RingHash     common.Hash
	Miner        common.Address
	FeeRecipient common.Address
}

type OrderFilledEvent struct {
	RingIndex uint64
	OrderHash common.Hash
	AmountS   *big.Int
	AmountB   *big.Int
	LrcReward *big.Int
	LrcFee    *big.Int
	SplitS    *big.Int
	SplitB    *big.Int
}

// SettlementResult is returned to the caller after a successful commit, with
// the same events that were persisted.
type SettlementResult struct {
	Ring   RingSettledEvent
	Orders []OrderFilledEvent
}
