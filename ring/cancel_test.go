package ring

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCancelHashDiffersFromOrderHash(t *testing.T) {
	order := baseOrder()
	orderHash := order.Hash()
	assert.NotEqual(t, orderHash, CancelHash(orderHash))
}

func TestVerifyCancellationByOwner(t *testing.T) {
	key := testKey(t, 1)
	order := baseOrder()
	order.Sig = signHash(t, key, order.Hash())

	cancelSig := signHash(t, key, CancelHash(order.Hash()))

	hash, err := VerifyCancellation(&order, cancelSig)
	require.NoError(t, err)
	assert.Equal(t, order.Hash(), hash)
}

func TestVerifyCancellationRejectsStranger(t *testing.T) {
	ownerKey := testKey(t, 1)
	strangerKey := testKey(t, 2)

	order := baseOrder()
	order.Sig = signHash(t, ownerKey, order.Hash())

	cancelSig := signHash(t, strangerKey, CancelHash(order.Hash()))

	_, err := VerifyCancellation(&order, cancelSig)
	require.ErrorIs(t, err, ErrInvalidSignature)
}

func TestVerifyCancellationRejectsMalformedSignatures(t *testing.T) {
	key := testKey(t, 1)

	t.Run("unsigned order", func(t *testing.T) {
		order := baseOrder()
		cancelSig := signHash(t, key, CancelHash(order.Hash()))
		_, err := VerifyCancellation(&order, cancelSig)
		require.ErrorIs(t, err, ErrInvalidSignature)
	})

	t.Run("garbage cancel signature", func(t *testing.T) {
		order := baseOrder()
		order.Sig = signHash(t, key, order.Hash())
		_, err := VerifyCancellation(&order, Signature{V: 99, R: big.NewInt(1), S: big.NewInt(1)})
		require.ErrorIs(t, err, ErrInvalidSignature)
	})
}
