package ring

import (
	"fmt"
	"math/big"
)

// calculateFills settles the ring at the rate of its tightest order. Each
// order starts at its resolved capacity; one pass over all edges finds the
// binding order while propagating fills forward (order i's buy funds order
// i+1's sell), then the edges before the binding order are walked again so
// the binding fill reaches every order. Finally fill buy amounts are pinned
// to the neighbour's sell amounts so value is conserved exactly around the
// loop.
func calculateFills(r *Ring) error {
	n := r.Size()

	for _, state := range r.Orders {
		fill := new(big.Int).Set(state.Available)
		// A capped buy translates to a sell cap of rateAmountS, since
		// fillAmountB = fillAmountS * amountB / rateAmountS <= amountB.
		if state.Order.BuyNoMoreThanAmountB && fill.Cmp(state.RateAmountS) > 0 {
			fill.Set(state.RateAmountS)
		}
		state.FillAmountS = fill
	}

	smallest := 0
	for i := 0; i < n; i++ {
		smallest = propagateFill(r, i, smallest)
	}
	for i := 0; i < smallest; i++ {
		propagateFill(r, i, smallest)
	}

	for i, state := range r.Orders {
		next := r.Orders[(i+1)%n]
		state.FillAmountB = new(big.Int).Set(next.FillAmountS)

		if state.FillAmountS.Sign() == 0 || state.FillAmountB.Sign() == 0 {
			return fmt.Errorf("calculateFills: order %d rounds to nothing: %w", i, ErrZeroFill)
		}
	}

	return nil
}

// propagateFill walks one edge of the ring: order i's implied buy amount is
// offered to order i+1 as its sell amount. If the neighbour cannot absorb
// it, the neighbour keeps its own cap and becomes the binding candidate.
func propagateFill(r *Ring, i, smallest int) int {
	n := r.Size()
	j := (i + 1) % n

	state := r.Orders[i]
	next := r.Orders[j]

	fillB := new(big.Int).Mul(state.FillAmountS, state.Order.AmountB)
	fillB.Div(fillB, state.RateAmountS)

	if fillB.Cmp(next.FillAmountS) <= 0 {
		next.FillAmountS = fillB
	} else {
		smallest = j
	}

	return smallest
}
