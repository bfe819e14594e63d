package ring

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

// Positions within the per-order value 6-tuple.
const (
	valAmountS = iota
	valAmountB
	valRateAmountS
	valExpiration
	valRand
	valLrcFee
)

// Submission is the flat-array wire format of a ring. The ring's token chain
// is implicit: order i buys what order i+1 sells, so only the sell tokens
// are transmitted and TokenB is derived.
type Submission struct {
	// TokenS[i] is the sell token of order i; the ring length is len(TokenS).
	TokenS []common.Address
	// OrderValues[i] is (amountS, amountB, rateAmountS, expiration, rand, lrcFee).
	OrderValues [][6]*big.Int
	// FeeChoices[i] is (savingSharePercentage, feeSelection).
	FeeChoices           [][2]uint16
	BuyNoMoreThanAmountB []bool
	// Signatures holds one signature per order plus the ring signature last.
	Signatures             []Signature
	FeeRecipient           common.Address
	ThrowIfLrcInsufficient bool
}

// orders reconstructs the structured order sequence, rejecting any shape
// violation before signature work starts.
func (sub *Submission) orders() ([]Order, error) {
	n := len(sub.TokenS)
	if n < 2 {
		return nil, fmt.Errorf("orders: ring size %d: %w", n, ErrMalformedRing)
	}
	if len(sub.OrderValues) != n || len(sub.FeeChoices) != n ||
		len(sub.BuyNoMoreThanAmountB) != n || len(sub.Signatures) != n+1 {
		return nil, fmt.Errorf("orders: mismatched array lengths: %w", ErrMalformedRing)
	}

	// A token appearing twice as a sell token would create a sub-ring.
	seen := make(map[common.Address]bool, n)
	for _, token := range sub.TokenS {
		if seen[token] {
			return nil, fmt.Errorf("orders: token %s forms a sub-ring: %w", token, ErrMalformedRing)
		}
		seen[token] = true
	}

	orders := make([]Order, n)
	for i := 0; i < n; i++ {
		values := sub.OrderValues[i]
		for _, v := range values {
			if v == nil || v.Sign() < 0 {
				return nil, fmt.Errorf("orders: order %d has a missing or negative value: %w", i, ErrMalformedRing)
			}
		}
		if values[valAmountS].Sign() == 0 || values[valAmountB].Sign() == 0 {
			return nil, fmt.Errorf("orders: order %d has zero amounts: %w", i, ErrMalformedRing)
		}
		if sub.FeeChoices[i][0] > SavingShareBase {
			return nil, fmt.Errorf("orders: order %d saving share %d exceeds %d: %w",
				i, sub.FeeChoices[i][0], SavingShareBase, ErrMalformedRing)
		}
		if FeeSelection(sub.FeeChoices[i][1]) > FeeSelectSavingShare {
			return nil, fmt.Errorf("orders: order %d unknown fee selection %d: %w",
				i, sub.FeeChoices[i][1], ErrMalformedRing)
		}
		if !values[valExpiration].IsUint64() {
			return nil, fmt.Errorf("orders: order %d expiration out of range: %w", i, ErrMalformedRing)
		}

		orders[i] = Order{
			TokenS:                sub.TokenS[i],
			TokenB:                sub.TokenS[(i+1)%n],
			AmountS:               values[valAmountS],
			AmountB:               values[valAmountB],
			Expiration:            values[valExpiration].Uint64(),
			Rand:                  values[valRand],
			LrcFee:                values[valLrcFee],
			BuyNoMoreThanAmountB:  sub.BuyNoMoreThanAmountB[i],
			SavingSharePercentage: sub.FeeChoices[i][0],
			Sig:                   sub.Signatures[i],
		}
	}

	return orders, nil
}

// RingHash commits to the derived orders and every miner choice, so the ring
// signature covers fee selections, the fee recipient and the fee policy.
// Relayers sign this hash before submitting.
func (sub *Submission) RingHash() (common.Hash, error) {
	orders, err := sub.orders()
	if err != nil {
		return common.Hash{}, fmt.Errorf("RingHash: %w", err)
	}

	parts := make([][]byte, 0, len(orders)+2)
	for i := range orders {
		hash := orders[i].Hash()
		parts = append(parts, hash.Bytes())
		parts = append(parts, []byte{byte(sub.FeeChoices[i][1])})
	}
	parts = append(parts, sub.FeeRecipient.Bytes())
	policy := byte(0)
	if sub.ThrowIfLrcInsufficient {
		policy = 1
	}
	parts = append(parts, []byte{policy})

	return crypto.Keccak256Hash(parts...), nil
}

// Build authenticates the submission and assembles the Ring: every order
// owner is recovered from its signature, the ring signer is recovered from
// the ring signature and becomes the miner, and the fee recipient defaults
// to the miner when unset.
func (sub *Submission) Build() (*Ring, error) {
	orders, err := sub.orders()
	if err != nil {
		return nil, fmt.Errorf("Build: %w", err)
	}

	ringHash, err := sub.RingHash()
	if err != nil {
		return nil, fmt.Errorf("Build: %w", err)
	}

	miner, err := RecoverSigner(ringHash, sub.Signatures[len(orders)])
	if err != nil {
		return nil, fmt.Errorf("Build: ring signature: %w", err)
	}

	feeRecipient := sub.FeeRecipient
	if feeRecipient == (common.Address{}) {
		feeRecipient = miner
	}

	states := make([]*OrderState, len(orders))
	for i := range orders {
		hash := orders[i].Hash()
		owner, err := RecoverSigner(hash, orders[i].Sig)
		if err != nil {
			return nil, fmt.Errorf("Build: order %d: %w", i, err)
		}

		states[i] = &OrderState{
			Order:        orders[i],
			Hash:         hash,
			Owner:        owner,
			FeeSelection: FeeSelection(sub.FeeChoices[i][1]),
			RateAmountS:  sub.OrderValues[i][valRateAmountS],
		}
	}

	return &Ring{
		Orders:                 states,
		Hash:                   ringHash,
		Miner:                  miner,
		FeeRecipient:           feeRecipient,
		ThrowIfLrcInsufficient: sub.ThrowIfLrcInsufficient,
	}, nil
}
