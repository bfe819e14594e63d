package ring

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

var cancelPrefix = []byte("cancelOrder")

// CancelHash is the digest an order owner signs to cancel the order.
func CancelHash(orderHash common.Hash) common.Hash {
	return crypto.Keccak256Hash(cancelPrefix, orderHash.Bytes())
}

// VerifyCancellation checks that cancelSig was produced by the order's owner
// over the cancellation digest of the order. It returns the order hash to
// cancel, or ErrInvalidSignature when either signature fails to recover or
// the signers differ.
func VerifyCancellation(order *Order, cancelSig Signature) (common.Hash, error) {
	orderHash := order.Hash()

	owner, err := RecoverSigner(orderHash, order.Sig)
	if err != nil {
		return common.Hash{}, fmt.Errorf("VerifyCancellation: order signature: %w", err)
	}
	signer, err := RecoverSigner(CancelHash(orderHash), cancelSig)
	if err != nil {
		return common.Hash{}, fmt.Errorf("VerifyCancellation: cancel signature: %w", err)
	}
	if signer != owner {
		return common.Hash{}, fmt.Errorf("VerifyCancellation: signer is not the order owner: %w", ErrInvalidSignature)
	}
	return orderHash, nil
}
