package ring

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

// FeeSelection is the miner-chosen fee mode for a single order.
type FeeSelection uint8

const (
	// FeeSelectFeeToken pays the fee in the designated fee token,
	// proportional to the fill fraction.
	FeeSelectFeeToken FeeSelection = iota
	// FeeSelectSavingShare gives the fee recipient a share of the order's
	// price improvement and compensates the owner with a fee token reward.
	FeeSelectSavingShare
)

// SavingShareBase is the denominator of SavingSharePercentage (basis points).
const SavingShareBase = 10000

type Signature struct {
	V uint8
	R *big.Int
	S *big.Int
}

// Order is a signed trade intent. It is immutable once created; its hash is
// the key under which cumulative fill and cancellation are tracked.
type Order struct {
	TokenS                common.Address
	TokenB                common.Address
	AmountS               *big.Int
	AmountB               *big.Int
	Expiration            uint64
	Rand                  *big.Int
	LrcFee                *big.Int
	BuyNoMoreThanAmountB  bool
	SavingSharePercentage uint16
	Sig                   Signature
}

// Hash is the deterministic identity of the order: keccak256 over every
// field except the signature.
func (o Order) Hash() common.Hash {
	buyFlag := byte(0)
	if o.BuyNoMoreThanAmountB {
		buyFlag = 1
	}

	return crypto.Keccak256Hash(
		o.TokenS.Bytes(),
		o.TokenB.Bytes(),
		common.LeftPadBytes(o.AmountS.Bytes(), 32),
		common.LeftPadBytes(o.AmountB.Bytes(), 32),
		common.LeftPadBytes(new(big.Int).SetUint64(o.Expiration).Bytes(), 32),
		common.LeftPadBytes(o.Rand.Bytes(), 32),
		common.LeftPadBytes(o.LrcFee.Bytes(), 32),
		[]byte{buyFlag},
		[]byte{byte(o.SavingSharePercentage >> 8), byte(o.SavingSharePercentage)},
	)
}

// OrderState wraps an Order with everything derived for one settlement run.
// It is built at the start of ring processing and discarded afterwards,
// never persisted.
type OrderState struct {
	Order        Order
	Hash         common.Hash
	Owner        common.Address // recovered from the signature, never trusted input
	FeeSelection FeeSelection
	RateAmountS  *big.Int // miner-proposed sell amount at the proposed rate; rateAmountB is the signed AmountB

	// Resolved and computed during the pipeline.
	Available   *big.Int // fillable sell capacity at resolution time
	FillAmountS *big.Int
	FillAmountB *big.Int
	LrcFee      *big.Int
	LrcReward   *big.Int
	SplitS      *big.Int
	SplitB      *big.Int
}

// Ring is an ordered loop of orders where each order's buy token is the next
// order's sell token, plus the miner's settlement choices. Owned exclusively
// by one settlement invocation.
type Ring struct {
	Orders                 []*OrderState
	Hash                   common.Hash
	Miner                  common.Address
	FeeRecipient           common.Address
	ThrowIfLrcInsufficient bool
}

func (r *Ring) Size() int {
	return len(r.Orders)
}
