package ring

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// feeFunds tracks the uncommitted fee-token spendable per account while fees
// are computed. One balance can back several commitments in the same ring
// (an owner with two orders, or the fee recipient rewarding more than one),
// so caps and strict-policy checks must see the funds net of everything
// promised earlier in the walk.
type feeFunds struct {
	ledger    Ledger
	token     common.Address
	remaining map[common.Address]*big.Int
}

func newFeeFunds(ledger Ledger, token common.Address) *feeFunds {
	return &feeFunds{
		ledger:    ledger,
		token:     token,
		remaining: make(map[common.Address]*big.Int),
	}
}

// available returns the account's fee-token spendable minus prior
// commitments. The returned value is shared state; callers copy before
// keeping it.
func (f *feeFunds) available(account common.Address) (*big.Int, error) {
	if v, ok := f.remaining[account]; ok {
		return v, nil
	}
	spendable, err := f.ledger.Spendable(account, f.token)
	if err != nil {
		return nil, err
	}
	v := new(big.Int).Set(spendable)
	f.remaining[account] = v
	return v, nil
}

// commit reserves amount of the account's funds, flooring at zero.
func (f *feeFunds) commit(account common.Address, amount *big.Int) error {
	v, err := f.available(account)
	if err != nil {
		return err
	}
	v.Sub(v, amount)
	if v.Sign() < 0 {
		v.SetInt64(0)
	}
	return nil
}

// computeFees fills in the fee side-payments for every order. The buy and
// sell quantities fixed by the fill calculation are never changed here.
func computeFees(r *Ring, ledger Ledger, feeToken common.Address) error {
	funds := newFeeFunds(ledger, feeToken)

	// Fill legs of orders selling the fee token drain the same balances the
	// fees draw on, and they execute first.
	for _, state := range r.Orders {
		if state.Order.TokenS == feeToken {
			if err := funds.commit(state.Owner, state.FillAmountS); err != nil {
				return fmt.Errorf("computeFees: %w", err)
			}
		}
	}

	for i, state := range r.Orders {
		state.LrcFee = big.NewInt(0)
		state.LrcReward = big.NewInt(0)
		state.SplitS = big.NewInt(0)
		state.SplitB = big.NewInt(0)

		switch state.FeeSelection {
		case FeeSelectFeeToken:
			if err := computeFeeTokenFee(r, state, funds); err != nil {
				return fmt.Errorf("computeFees: order %d: %w", i, err)
			}
		case FeeSelectSavingShare:
			if err := computeSavingShare(r, state, funds); err != nil {
				return fmt.Errorf("computeFees: order %d: %w", i, err)
			}
		default:
			return fmt.Errorf("computeFees: order %d fee selection %d: %w", i, state.FeeSelection, ErrMalformedRing)
		}
	}

	return nil
}

// computeFeeTokenFee charges the owner a fee in the fee token, proportional
// to the filled fraction of the order. Under the lenient policy a shortfall
// reduces the fee to what the owner's remaining funds cover.
func computeFeeTokenFee(r *Ring, state *OrderState, funds *feeFunds) error {
	fee := proRata(state.Order.LrcFee, state.FillAmountS, state.Order.AmountS)
	if fee.Sign() == 0 {
		return nil
	}

	remaining, err := funds.available(state.Owner)
	if err != nil {
		return err
	}
	if remaining.Cmp(fee) < 0 {
		if r.ThrowIfLrcInsufficient {
			return fmt.Errorf("owner %s holds %s of %s fee: %w", state.Owner, remaining, fee, ErrInsufficientFee)
		}
		fee = new(big.Int).Set(remaining)
	}
	if err := funds.commit(state.Owner, fee); err != nil {
		return err
	}

	state.LrcFee = fee

	return nil
}

// computeSavingShare takes the miner's share of the order's price
// improvement over its signed rate, bounded by savingSharePercentage, and
// compensates the owner with a fee-token reward funded by the fee recipient.
func computeSavingShare(r *Ring, state *OrderState, funds *feeFunds) error {
	order := &state.Order

	if order.BuyNoMoreThanAmountB {
		// Improvement shows on the sell side: the signed rate would have
		// required selling fullS for the same buy amount.
		fullS := new(big.Int).Mul(state.FillAmountB, order.AmountS)
		fullS.Div(fullS, order.AmountB)
		saving := new(big.Int).Sub(fullS, state.FillAmountS)
		if saving.Sign() > 0 {
			state.SplitS = shareOf(saving, order.SavingSharePercentage)
			// A sell-side split of the fee token competes with fees for the
			// same balance.
			if order.TokenS == funds.token {
				if err := funds.commit(state.Owner, state.SplitS); err != nil {
					return err
				}
			}
		}
	} else {
		// Improvement shows on the buy side: the signed rate would have
		// bought only fullB for the same sell amount. SplitB is paid out of
		// tokens the fill itself delivers, so it needs no funds commitment.
		fullB := new(big.Int).Mul(state.FillAmountS, order.AmountB)
		fullB.Div(fullB, order.AmountS)
		saving := new(big.Int).Sub(state.FillAmountB, fullB)
		if saving.Sign() > 0 {
			state.SplitB = shareOf(saving, order.SavingSharePercentage)
		}
	}

	reward := proRata(order.LrcFee, state.FillAmountS, order.AmountS)
	if reward.Sign() == 0 {
		return nil
	}

	remaining, err := funds.available(r.FeeRecipient)
	if err != nil {
		return err
	}
	if remaining.Cmp(reward) < 0 {
		if r.ThrowIfLrcInsufficient {
			return fmt.Errorf("fee recipient %s holds %s of %s reward: %w",
				r.FeeRecipient, remaining, reward, ErrInsufficientFee)
		}
		reward = new(big.Int).Set(remaining)
	}
	if err := funds.commit(r.FeeRecipient, reward); err != nil {
		return err
	}

	state.LrcReward = reward

	return nil
}

// proRata scales total by the filled fraction fill/amount, rounding down.
func proRata(total, fill, amount *big.Int) *big.Int {
	out := new(big.Int).Mul(total, fill)
	return out.Div(out, amount)
}

func shareOf(amount *big.Int, basisPoints uint16) *big.Int {
	out := new(big.Int).Mul(amount, big.NewInt(int64(basisPoints)))
	return out.Div(out, big.NewInt(SavingShareBase))
}
