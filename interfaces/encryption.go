package interfaces

import (
	"context"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/signer/core/apitypes"
)

// EncryptedInputBuilder accumulates plaintext values bound to one contract and user.
type EncryptedInputBuilder interface {
	// Add32 appends value as an encrypted 32-bit unsigned integer.
	Add32(value uint32) EncryptedInputBuilder

	// Encrypt encrypts the accumulated values and obtains the input proof.
	// It is local to the encryption service and never touches contract state.
	Encrypt(ctx context.Context) (*EncryptedInput, error)
}

// EncryptionClient is the FHE encryption / user-decryption client.
type EncryptionClient interface {
	CreateEncryptedInput(contract, user common.Address) EncryptedInputBuilder

	// CreateEIP712 returns the typed data a user signs to authorize decryption
	// of handles of contracts for the holder of publicKey.
	CreateEIP712(publicKey []byte, contracts []common.Address, startTimestamp, durationDays int64) apitypes.TypedData

	// UserDecrypt decrypts the requested handles with auth. The result maps
	// each handle to its plaintext; booleans are 0 or 1.
	UserDecrypt(ctx context.Context, requests []HandleContractPair, auth *DecryptionAuthorization) (map[Handle]uint64, error)
}

// EncryptionProvider exposes an EncryptionClient that may still be initializing.
type EncryptionProvider interface {
	// Instance returns the client once ready. While initializing loading is
	// true; a failed initialization is reported through err.
	Instance() (client EncryptionClient, loading bool, err error)
}
