package api

import (
	"fmt"
	"math/big"
	"strings"

	"ring-settler/ring"

	"github.com/ethereum/go-ethereum/common"
)

// RingSubmissionRequest is the JSON form of the flat-array ring submission.
// Amounts are decimal or 0x-hex strings so uint256 values survive encoding.
type RingSubmissionRequest struct {
	TokenS                 []string      `json:"tokenS"`
	OrderValues            [][6]string   `json:"orderValues"`
	FeeChoices             [][2]uint16   `json:"feeChoices"`
	BuyNoMoreThanAmountB   []bool        `json:"buyNoMoreThanAmountB"`
	Signatures             []SigPayload  `json:"signatures"`
	FeeRecipient           string        `json:"feeRecipient"`
	ThrowIfLrcInsufficient bool          `json:"throwIfLrcInsufficient"`
}

type SigPayload struct {
	V uint8  `json:"v"`
	R string `json:"r"`
	S string `json:"s"`
}

func (p SigPayload) toSignature() (ring.Signature, error) {
	r, err := parseBig(p.R)
	if err != nil {
		return ring.Signature{}, err
	}
	s, err := parseBig(p.S)
	if err != nil {
		return ring.Signature{}, err
	}
	return ring.Signature{V: p.V, R: r, S: s}, nil
}

// OrderPayload is the JSON form of a single signed order, used by the
// cancellation endpoint where the full order must be presented.
type OrderPayload struct {
	TokenS                string     `json:"tokenS"`
	TokenB                string     `json:"tokenB"`
	AmountS               string     `json:"amountS"`
	AmountB               string     `json:"amountB"`
	Expiration            uint64     `json:"expiration"`
	Rand                  string     `json:"rand"`
	LrcFee                string     `json:"lrcFee"`
	BuyNoMoreThanAmountB  bool       `json:"buyNoMoreThanAmountB"`
	SavingSharePercentage uint16     `json:"savingSharePercentage"`
	Signature             SigPayload `json:"signature"`
}

func (p *OrderPayload) ToOrder() (*ring.Order, error) {
	tokenS, err := parseAddress(p.TokenS)
	if err != nil {
		return nil, fmt.Errorf("ToOrder: %w", err)
	}
	tokenB, err := parseAddress(p.TokenB)
	if err != nil {
		return nil, fmt.Errorf("ToOrder: %w", err)
	}
	amountS, err := parseBig(p.AmountS)
	if err != nil {
		return nil, fmt.Errorf("ToOrder: amountS: %w", err)
	}
	amountB, err := parseBig(p.AmountB)
	if err != nil {
		return nil, fmt.Errorf("ToOrder: amountB: %w", err)
	}
	rand, err := parseBig(p.Rand)
	if err != nil {
		return nil, fmt.Errorf("ToOrder: rand: %w", err)
	}
	lrcFee, err := parseBig(p.LrcFee)
	if err != nil {
		return nil, fmt.Errorf("ToOrder: lrcFee: %w", err)
	}
	sig, err := p.Signature.toSignature()
	if err != nil {
		return nil, fmt.Errorf("ToOrder: signature: %w", err)
	}

	return &ring.Order{
		TokenS:                tokenS,
		TokenB:                tokenB,
		AmountS:               amountS,
		AmountB:               amountB,
		Expiration:            p.Expiration,
		Rand:                  rand,
		LrcFee:                lrcFee,
		BuyNoMoreThanAmountB:  p.BuyNoMoreThanAmountB,
		SavingSharePercentage: p.SavingSharePercentage,
		Sig:                   sig,
	}, nil
}

// OrderCancellationRequest carries the full signed order plus a second
// signature by the owner over the cancellation digest of the order hash.
type OrderCancellationRequest struct {
	Order           OrderPayload `json:"order"`
	CancelSignature SigPayload   `json:"cancelSignature"`
}

func parseBig(s string) (*big.Int, error) {
	var (
		v  *big.Int
		ok bool
	)
	if strings.HasPrefix(s, "0x") || strings.HasPrefix(s, "0X") {
		v, ok = new(big.Int).SetString(s[2:], 16)
	} else {
		v, ok = new(big.Int).SetString(s, 10)
	}
	if !ok {
		return nil, fmt.Errorf("parseBig: invalid number %q", s)
	}
	return v, nil
}

func parseAddress(s string) (common.Address, error) {
	if !common.IsHexAddress(s) {
		return common.Address{}, fmt.Errorf("parseAddress: invalid address %q", s)
	}
	return common.HexToAddress(s), nil
}

// ToSubmission converts the wire form into the engine's structured
// submission. Only syntactic validation happens here; ring shape checks
// belong to the engine.
func (req *RingSubmissionRequest) ToSubmission() (*ring.Submission, error) {
	sub := &ring.Submission{
		FeeChoices:             req.FeeChoices,
		BuyNoMoreThanAmountB:   req.BuyNoMoreThanAmountB,
		ThrowIfLrcInsufficient: req.ThrowIfLrcInsufficient,
	}

	for _, token := range req.TokenS {
		addr, err := parseAddress(token)
		if err != nil {
			return nil, fmt.Errorf("ToSubmission: %w", err)
		}
		sub.TokenS = append(sub.TokenS, addr)
	}

	for i, values := range req.OrderValues {
		var parsed [6]*big.Int
		for j, value := range values {
			v, err := parseBig(value)
			if err != nil {
				return nil, fmt.Errorf("ToSubmission: order %d: %w", i, err)
			}
			parsed[j] = v
		}
		sub.OrderValues = append(sub.OrderValues, parsed)
	}

	for i, payload := range req.Signatures {
		sig, err := payload.toSignature()
		if err != nil {
			return nil, fmt.Errorf("ToSubmission: signature %d: %w", i, err)
		}
		sub.Signatures = append(sub.Signatures, sig)
	}

	if req.FeeRecipient != "" {
		addr, err := parseAddress(req.FeeRecipient)
		if err != nil {
			return nil, fmt.Errorf("ToSubmission: %w", err)
		}
		sub.FeeRecipient = addr
	}

	return sub, nil
}

// Event payloads pushed to websocket observers and returned to submitters.

type RingSettledPayload struct {
	RingIndex    uint64 `json:"ringIndex"`
	RingHash     string `json:"ringHash"`
	Miner        string `json:"miner"`
	FeeRecipient string `json:"feeRecipient"`
}

type OrderFilledPayload struct {
	RingIndex uint64 `json:"ringIndex"`
	OrderHash string `json:"orderHash"`
	AmountS   string `json:"amountS"`
	AmountB   string `json:"amountB"`
	LrcReward string `json:"lrcReward"`
	LrcFee    string `json:"lrcFee"`
	SplitS    string `json:"splitS"`
	SplitB    string `json:"splitB"`
}

type SettlementPayload struct {
	Ring   RingSettledPayload   `json:"ring"`
	Orders []OrderFilledPayload `json:"orders"`
}

func settlementPayload(result *ring.SettlementResult) SettlementPayload {
	payload := SettlementPayload{
		Ring: RingSettledPayload{
			RingIndex:    result.Ring.RingIndex,
			RingHash:     result.Ring.RingHash.Hex(),
			Miner:        result.Ring.Miner.Hex(),
			FeeRecipient: result.Ring.FeeRecipient.Hex(),
		},
	}
	for _, order := range result.Orders {
		payload.Orders = append(payload.Orders, OrderFilledPayload{
			RingIndex: order.RingIndex,
			OrderHash: order.OrderHash.Hex(),
			AmountS:   order.AmountS.String(),
			AmountB:   order.AmountB.String(),
			LrcReward: order.LrcReward.String(),
			LrcFee:    order.LrcFee.String(),
			SplitS:    order.SplitS.String(),
			SplitB:    order.SplitB.String(),
		})
	}
	return payload
}
