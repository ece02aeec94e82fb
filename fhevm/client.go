package fhevm

import (
	"context"
	"encoding/binary"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/crypto/ecies"
	"github.com/ethereum/go-ethereum/signer/core/apitypes"
	"github.com/ruteri/fhe-identity-auth/coprocessor"
	"github.com/ruteri/fhe-identity-auth/interfaces"
)

// LocalClient is an EncryptionClient talking to an in-process coprocessor.
type LocalClient struct {
	cp *coprocessor.Coprocessor
}

// NewLocalClient returns a client for cp.
func NewLocalClient(cp *coprocessor.Coprocessor) *LocalClient {
	return &LocalClient{cp: cp}
}

// Coprocessor returns the backing coprocessor.
func (c *LocalClient) Coprocessor() *coprocessor.Coprocessor {
	return c.cp
}

func (c *LocalClient) CreateEncryptedInput(contract, user common.Address) interfaces.EncryptedInputBuilder {
	return &inputBuilder{cp: c.cp, contract: contract, user: user}
}

func (c *LocalClient) CreateEIP712(publicKey []byte, contracts []common.Address, startTimestamp, durationDays int64) apitypes.TypedData {
	return coprocessor.UserDecryptTypedData(c.cp.ChainID(), c.cp.DecryptionVerifier(), publicKey, contracts, startTimestamp, durationDays)
}

func (c *LocalClient) UserDecrypt(ctx context.Context, requests []interfaces.HandleContractPair, auth *interfaces.DecryptionAuthorization) (map[interfaces.Handle]uint64, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if auth == nil {
		return nil, fmt.Errorf("%w: missing decryption authorization", interfaces.ErrEncryptionService)
	}

	privateKey, err := crypto.ToECDSA(auth.PrivateKey)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid decryption key: %w", interfaces.ErrEncryptionService, err)
	}

	sealed, err := c.cp.UserDecrypt(&coprocessor.UserDecryptRequest{
		Pairs:             requests,
		PublicKey:         auth.PublicKey,
		Signature:         auth.Signature,
		ContractAddresses: auth.ContractAddresses,
		UserAddress:       auth.UserAddress,
		StartTimestamp:    auth.StartTimestamp,
		DurationDays:      auth.DurationDays,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: user decryption failed: %w", interfaces.ErrEncryptionService, err)
	}

	eciesKey := ecies.ImportECDSA(privateKey)
	results := make(map[interfaces.Handle]uint64, len(sealed))
	for handle, ct := range sealed {
		plain, err := eciesKey.Decrypt(ct, nil, nil)
		if err != nil {
			return nil, fmt.Errorf("%w: could not open decryption result: %w", interfaces.ErrEncryptionService, err)
		}
		if len(plain) != 8 {
			return nil, fmt.Errorf("%w: unexpected plaintext length %d", interfaces.ErrEncryptionService, len(plain))
		}
		results[handle] = binary.BigEndian.Uint64(plain)
	}
	return results, nil
}

type inputBuilder struct {
	cp       *coprocessor.Coprocessor
	contract common.Address
	user     common.Address
	values   []uint32
}

func (b *inputBuilder) Add32(value uint32) interfaces.EncryptedInputBuilder {
	b.values = append(b.values, value)
	return b
}

func (b *inputBuilder) Encrypt(ctx context.Context) (*interfaces.EncryptedInput, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return b.cp.Encrypt32(b.contract, b.user, b.values)
}
