package ring

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

// RecoverSigner recovers the address that signed the given 32-byte hash.
// Pure function of (hash, signature); fails with ErrInvalidSignature if
// recovery fails or yields the zero address.
func RecoverSigner(hash common.Hash, sig Signature) (common.Address, error) {
	if sig.R == nil || sig.S == nil {
		return common.Address{}, ErrInvalidSignature
	}

	v := sig.V
	// Accept both the raw recovery id and the Ethereum 27/28 convention.
	if v >= 27 {
		v -= 27
	}
	if v > 1 {
		return common.Address{}, ErrInvalidSignature
	}

	sigBytes := make([]byte, 65)
	copy(sigBytes[0:32], common.LeftPadBytes(sig.R.Bytes(), 32))
	copy(sigBytes[32:64], common.LeftPadBytes(sig.S.Bytes(), 32))
	sigBytes[64] = v

	pubKey, err := crypto.SigToPub(hash.Bytes(), sigBytes)
	if err != nil {
		return common.Address{}, fmt.Errorf("RecoverSigner: %w", ErrInvalidSignature)
	}

	addr := crypto.PubkeyToAddress(*pubKey)
	if addr == (common.Address{}) {
		return common.Address{}, ErrInvalidSignature
	}

	return addr, nil
}
