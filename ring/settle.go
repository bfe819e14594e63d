package ring

import (
	"context"
	"fmt"

	"ring-settler/chain"
	"ring-settler/config"
	"ring-settler/logger"

	"github.com/ethereum/go-ethereum/common"
)

// Settler drives the settlement pipeline: authenticate, resolve capacities,
// reconcile rates, calculate fills, compute fees, transfer. One invocation
// owns its Ring exclusively; the transactional store is the only shared
// state, so concurrent submissions serialize on it.
type Settler struct {
	store       Store
	heads       chain.HeadSource
	feeToken    common.Address
	maxRingSize int
}

func NewSettler(store Store, heads chain.HeadSource, cfg config.EngineConfig) *Settler {
	return &Settler{
		store:       store,
		heads:       heads,
		feeToken:    common.HexToAddress(cfg.FeeTokenAddress),
		maxRingSize: cfg.MaxRingSize,
	}
}

// SubmitRing validates and settles one ring atomically. Any failure leaves
// the ledger untouched and emits no events; on success the returned result
// carries the events that were persisted.
func (s *Settler) SubmitRing(ctx context.Context, sub *Submission) (*SettlementResult, error) {
	r, err := sub.Build()
	if err != nil {
		return nil, fmt.Errorf("SubmitRing: %w", err)
	}
	if s.maxRingSize > 0 && r.Size() > s.maxRingSize {
		return nil, fmt.Errorf("SubmitRing: ring size %d exceeds limit %d: %w",
			r.Size(), s.maxRingSize, ErrMalformedRing)
	}

	head, err := s.heads.Head(ctx)
	if err != nil {
		return nil, fmt.Errorf("SubmitRing: %w", err)
	}

	var result *SettlementResult
	err = s.store.WithinTransaction(func(ledger Ledger) error {
		result, err = s.settle(r, ledger, head)
		return err
	})
	if err != nil {
		logger.Debug("Ring %s rejected: %s", r.Hash, err)
		return nil, fmt.Errorf("SubmitRing: %w", err)
	}

	logger.Info("Settled ring %d (%s) with %d orders, miner %s",
		result.Ring.RingIndex, r.Hash, r.Size(), r.Miner)

	return result, nil
}

func (s *Settler) settle(r *Ring, ledger Ledger, head chain.Head) (*SettlementResult, error) {
	// Capacities come from ledger truth inside the transaction, never from
	// anything cached across submissions.
	for _, state := range r.Orders {
		if err := resolveCapacity(state, ledger, head); err != nil {
			return nil, err
		}
	}

	if err := reconcileRates(r); err != nil {
		return nil, err
	}
	if err := calculateFills(r); err != nil {
		return nil, err
	}
	if err := checkFloorPrices(r); err != nil {
		return nil, err
	}
	if err := computeFees(r, ledger, s.feeToken); err != nil {
		return nil, err
	}

	return s.executeTransfers(r, ledger)
}

// executeTransfers moves every leg of the ring: each order's sale goes to
// the previous order (whose buy token it is), then splits and fees go to the
// fee recipient and rewards come back from it. Fill legs run first so a
// buy-side split is paid out of tokens actually received. Runs inside the
// store transaction, so a failed leg rolls back all of them.
func (s *Settler) executeTransfers(r *Ring, ledger Ledger) (*SettlementResult, error) {
	n := r.Size()

	for i, state := range r.Orders {
		prev := r.Orders[(i+n-1)%n]

		if err := ledger.Transfer(state.Owner, prev.Owner, state.Order.TokenS, state.FillAmountS); err != nil {
			return nil, fmt.Errorf("executeTransfers: order %d fill: %w: %s", i, ErrTransferFailed, err)
		}
	}

	for i, state := range r.Orders {
		if state.SplitS.Sign() > 0 {
			if err := ledger.Transfer(state.Owner, r.FeeRecipient, state.Order.TokenS, state.SplitS); err != nil {
				return nil, fmt.Errorf("executeTransfers: order %d splitS: %w: %s", i, ErrTransferFailed, err)
			}
		}
		if state.SplitB.Sign() > 0 {
			if err := ledger.Transfer(state.Owner, r.FeeRecipient, state.Order.TokenB, state.SplitB); err != nil {
				return nil, fmt.Errorf("executeTransfers: order %d splitB: %w: %s", i, ErrTransferFailed, err)
			}
		}
		if state.LrcFee.Sign() > 0 {
			if err := ledger.Transfer(state.Owner, r.FeeRecipient, s.feeToken, state.LrcFee); err != nil {
				return nil, fmt.Errorf("executeTransfers: order %d fee: %w: %s", i, ErrTransferFailed, err)
			}
		}
		if state.LrcReward.Sign() > 0 {
			if err := ledger.Transfer(r.FeeRecipient, state.Owner, s.feeToken, state.LrcReward); err != nil {
				return nil, fmt.Errorf("executeTransfers: order %d reward: %w: %s", i, ErrTransferFailed, err)
			}
		}

		if err := ledger.AddFilled(state.Hash, state.FillAmountS); err != nil {
			return nil, fmt.Errorf("executeTransfers: order %d: %w", i, err)
		}
	}

	ringIndex, err := ledger.NextRingIndex()
	if err != nil {
		return nil, fmt.Errorf("executeTransfers: %w", err)
	}

	result := &SettlementResult{
		Ring: RingSettledEvent{
			RingIndex:    ringIndex,
			RingHash:     r.Hash,
			Miner:        r.Miner,
			FeeRecipient: r.FeeRecipient,
		},
	}
	if err := ledger.RingSettled(&result.Ring); err != nil {
		return nil, fmt.Errorf("executeTransfers: %w", err)
	}

	result.Orders = make([]OrderFilledEvent, n)
	for i, state := range r.Orders {
		result.Orders[i] = OrderFilledEvent{
			RingIndex: ringIndex,
			OrderHash: state.Hash,
			AmountS:   state.FillAmountS,
			AmountB:   state.FillAmountB,
			LrcReward: state.LrcReward,
			LrcFee:    state.LrcFee,
			SplitS:    state.SplitS,
			SplitB:    state.SplitB,
		}
		if err := ledger.OrderFilled(&result.Orders[i]); err != nil {
			return nil, fmt.Errorf("executeTransfers: %w", err)
		}
	}

	return result, nil
}
