package ring

import (
	"fmt"
	"math/big"
)

// reconcileRates verifies the miner-proposed rates before any fill is
// computed. Two conditions, both in exact integer arithmetic:
//
//  1. Per order, the proposed rate may only improve on the signed rate:
//     rateAmountS * amountB <= amountB * amountS, i.e. the order never sells
//     more per unit bought than it signed for.
//  2. Around the ring, value must be conserved or released, never created:
//     prod(rateAmountS) <= prod(amountB). A product above one would mean the
//     propagated fill grows while looping, which no balance backs.
func reconcileRates(r *Ring) error {
	prodRateS := big.NewInt(1)
	prodAmountB := big.NewInt(1)

	for i, state := range r.Orders {
		if state.RateAmountS == nil || state.RateAmountS.Sign() <= 0 {
			return fmt.Errorf("reconcileRates: order %d has no proposed rate: %w", i, ErrRateViolation)
		}

		// With rateAmountB fixed at the signed amountB, the cross-multiplied
		// floor check reduces to rateAmountS <= amountS.
		if state.RateAmountS.Cmp(state.Order.AmountS) > 0 {
			return fmt.Errorf("reconcileRates: order %d rate below signed floor: %w", i, ErrRateViolation)
		}

		prodRateS.Mul(prodRateS, state.RateAmountS)
		prodAmountB.Mul(prodAmountB, state.Order.AmountB)
	}

	if prodRateS.Cmp(prodAmountB) > 0 {
		return fmt.Errorf("reconcileRates: ring rates create value: %w", ErrRateViolation)
	}

	return nil
}

// checkFloorPrices re-verifies every order's signed price floor against the
// final fill amounts: fillAmountS * amountB <= fillAmountB * amountS. This
// is the anti-fraud backstop; a miner whose rates concentrate the ring
// surplus badly fails here.
func checkFloorPrices(r *Ring) error {
	lhs := new(big.Int)
	rhs := new(big.Int)

	for i, state := range r.Orders {
		lhs.Mul(state.FillAmountS, state.Order.AmountB)
		rhs.Mul(state.FillAmountB, state.Order.AmountS)
		if lhs.Cmp(rhs) > 0 {
			return fmt.Errorf("checkFloorPrices: order %d settles below its signed rate: %w", i, ErrRateViolation)
		}

		if state.Order.BuyNoMoreThanAmountB && state.FillAmountB.Cmp(state.Order.AmountB) > 0 {
			return fmt.Errorf("checkFloorPrices: order %d buys more than requested: %w", i, ErrRateViolation)
		}
	}

	return nil
}
