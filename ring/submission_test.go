package ring

import (
	"context"
	"math/big"
	"testing"

	"ring-settler/chain"
	"ring-settler/config"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validSubmission(t *testing.T) *Submission {
	return buildSubmission(t,
		[]common.Address{tokenX, tokenY},
		[]orderSpec{
			{amountS: 100, amountB: 100, rateAmountS: 100, key: testKey(t, 1)},
			{amountS: 100, amountB: 100, rateAmountS: 100, key: testKey(t, 2)},
		},
		testKey(t, 3), common.Address{}, false,
	)
}

func TestSubmissionBuild(t *testing.T) {
	sub := validSubmission(t)

	r, err := sub.Build()
	require.NoError(t, err)
	require.Equal(t, 2, r.Size())

	// The buy token of each order is the next order's sell token.
	assert.Equal(t, tokenY, r.Orders[0].Order.TokenB)
	assert.Equal(t, tokenX, r.Orders[1].Order.TokenB)

	assert.Equal(t, crypto.PubkeyToAddress(testKey(t, 1).PublicKey), r.Orders[0].Owner)
	assert.Equal(t, crypto.PubkeyToAddress(testKey(t, 2).PublicKey), r.Orders[1].Owner)
	assert.Equal(t, crypto.PubkeyToAddress(testKey(t, 3).PublicKey), r.Miner)
	assert.Equal(t, r.Miner, r.FeeRecipient)
}

func TestSubmissionMalformed(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Submission)
	}{
		{
			name:   "single order",
			mutate: func(s *Submission) { s.TokenS = s.TokenS[:1] },
		},
		{
			name:   "mismatched lengths",
			mutate: func(s *Submission) { s.BuyNoMoreThanAmountB = s.BuyNoMoreThanAmountB[:1] },
		},
		{
			name:   "missing ring signature",
			mutate: func(s *Submission) { s.Signatures = s.Signatures[:2] },
		},
		{
			name:   "sub-ring via duplicate sell token",
			mutate: func(s *Submission) { s.TokenS[1] = s.TokenS[0] },
		},
		{
			name:   "nil order value",
			mutate: func(s *Submission) { s.OrderValues[0][valLrcFee] = nil },
		},
		{
			name:   "negative order value",
			mutate: func(s *Submission) { s.OrderValues[0][valRand] = big.NewInt(-1) },
		},
		{
			name:   "zero sell amount",
			mutate: func(s *Submission) { s.OrderValues[0][valAmountS] = big.NewInt(0) },
		},
		{
			name:   "zero buy amount",
			mutate: func(s *Submission) { s.OrderValues[1][valAmountB] = big.NewInt(0) },
		},
		{
			name:   "saving share above base",
			mutate: func(s *Submission) { s.FeeChoices[0][0] = SavingShareBase + 1 },
		},
		{
			name:   "unknown fee selection",
			mutate: func(s *Submission) { s.FeeChoices[0][1] = 2 },
		},
		{
			name: "expiration out of range",
			mutate: func(s *Submission) {
				s.OrderValues[0][valExpiration] = new(big.Int).Lsh(big.NewInt(1), 80)
			},
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			sub := validSubmission(t)
			tc.mutate(sub)
			_, err := sub.Build()
			require.ErrorIs(t, err, ErrMalformedRing)
		})
	}
}

func TestSubmissionInvalidSignatures(t *testing.T) {
	t.Run("order signature", func(t *testing.T) {
		sub := validSubmission(t)
		sub.Signatures[0] = Signature{}
		_, err := sub.Build()
		require.ErrorIs(t, err, ErrInvalidSignature)
	})

	t.Run("ring signature", func(t *testing.T) {
		sub := validSubmission(t)
		sub.Signatures[2] = Signature{V: 27, R: big.NewInt(0), S: big.NewInt(0)}
		_, err := sub.Build()
		require.ErrorIs(t, err, ErrInvalidSignature)
	})
}

// The ring hash commits to the miner's choices, so changing any of them
// invalidates the ring signature by changing what it must cover.
func TestRingHashCoversMinerChoices(t *testing.T) {
	sub := validSubmission(t)
	base, err := sub.RingHash()
	require.NoError(t, err)

	sub.FeeRecipient = common.HexToAddress("0x4000000000000000000000000000000000000001")
	changed, err := sub.RingHash()
	require.NoError(t, err)
	assert.NotEqual(t, base, changed)

	sub = validSubmission(t)
	sub.ThrowIfLrcInsufficient = true
	changed, err = sub.RingHash()
	require.NoError(t, err)
	assert.NotEqual(t, base, changed)

	sub = validSubmission(t)
	sub.FeeChoices[0][1] = uint16(FeeSelectSavingShare)
	changed, err = sub.RingHash()
	require.NoError(t, err)
	assert.NotEqual(t, base, changed)
}

func TestSubmissionRingSizeLimit(t *testing.T) {
	sub := buildSubmission(t,
		[]common.Address{tokenX, tokenY, tokenZ},
		[]orderSpec{
			{amountS: 100, amountB: 100, rateAmountS: 100, key: testKey(t, 1)},
			{amountS: 100, amountB: 100, rateAmountS: 100, key: testKey(t, 2)},
			{amountS: 100, amountB: 100, rateAmountS: 100, key: testKey(t, 4)},
		},
		testKey(t, 3), common.Address{}, false,
	)

	settler := NewSettler(
		&fakeStore{ledger: newFakeLedger()},
		chain.StaticHeadSource{Current: testHead},
		config.EngineConfig{FeeTokenAddress: lrcToken.Hex(), MaxRingSize: 2},
	)

	_, err := settler.SubmitRing(context.Background(), sub)
	require.ErrorIs(t, err, ErrMalformedRing)
}
