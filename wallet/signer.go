package wallet

import (
	"context"
	"crypto/ecdsa"
	"fmt"
	"math/big"
	"os"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/accounts/keystore"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/signer/core/apitypes"
	"github.com/ruteri/fhe-identity-auth/interfaces"
)

// Prompt describes what the user is asked to approve.
type Prompt struct {
	Kind    string
	Account common.Address
	Detail  string
}

const (
	PromptTransaction = "transaction"
	PromptTypedData   = "typed-data"
)

// ConfirmFunc asks the user to approve a prompt. Returning false rejects it.
type ConfirmFunc func(ctx context.Context, prompt Prompt) bool

// KeySigner is a Signer holding a secp256k1 private key in memory.
type KeySigner struct {
	key     *ecdsa.PrivateKey
	address common.Address
	confirm ConfirmFunc
}

// NewKeySigner returns a signer for key. confirm may be nil, in which case
// every request is approved.
func NewKeySigner(key *ecdsa.PrivateKey, confirm ConfirmFunc) *KeySigner {
	return &KeySigner{
		key:     key,
		address: crypto.PubkeyToAddress(key.PublicKey),
		confirm: confirm,
	}
}

// NewKeySignerFromHex parses a hex private key, with or without 0x prefix.
func NewKeySignerFromHex(hexKey string, confirm ConfirmFunc) (*KeySigner, error) {
	key, err := crypto.HexToECDSA(strings.TrimPrefix(strings.TrimSpace(hexKey), "0x"))
	if err != nil {
		return nil, fmt.Errorf("could not parse private key: %w", err)
	}
	return NewKeySigner(key, confirm), nil
}

// NewKeySignerFromKeystore decrypts a V3 keystore file.
func NewKeySignerFromKeystore(path, password string, confirm ConfirmFunc) (*KeySigner, error) {
	keyJSON, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("could not read keystore file: %w", err)
	}

	key, err := keystore.DecryptKey(keyJSON, password)
	if err != nil {
		return nil, fmt.Errorf("could not decrypt keystore file: %w", err)
	}
	return NewKeySigner(key.PrivateKey, confirm), nil
}

func (s *KeySigner) Address() common.Address {
	return s.address
}

// TransactOpts returns transactor options bound to ctx. The confirm hook runs
// once per signed transaction.
func (s *KeySigner) TransactOpts(ctx context.Context, chainID interfaces.ChainID) (*bind.TransactOpts, error) {
	opts, err := bind.NewKeyedTransactorWithChainID(s.key, new(big.Int).SetUint64(uint64(chainID)))
	if err != nil {
		return nil, fmt.Errorf("could not create transactor: %w", err)
	}
	opts.Context = ctx

	keySigner := opts.Signer
	opts.Signer = func(from common.Address, tx *types.Transaction) (*types.Transaction, error) {
		err := s.approve(ctx, Prompt{
			Kind:    PromptTransaction,
			Account: from,
			Detail:  fmt.Sprintf("to=%s nonce=%d", addressOrCreate(tx.To()), tx.Nonce()),
		})
		if err != nil {
			return nil, err
		}
		return keySigner(from, tx)
	}
	return opts, nil
}

// SignTypedData signs the EIP-712 hash of data. The recovery id is returned
// as 27/28, as wallets do.
func (s *KeySigner) SignTypedData(ctx context.Context, data apitypes.TypedData) ([]byte, error) {
	if err := s.approve(ctx, Prompt{Kind: PromptTypedData, Account: s.address, Detail: data.PrimaryType}); err != nil {
		return nil, err
	}

	hash, _, err := apitypes.TypedDataAndHash(data)
	if err != nil {
		return nil, fmt.Errorf("could not hash typed data: %w", err)
	}

	sig, err := crypto.Sign(hash, s.key)
	if err != nil {
		return nil, fmt.Errorf("could not sign typed data: %w", err)
	}
	sig[crypto.RecoveryIDOffset] += 27
	return sig, nil
}

func (s *KeySigner) approve(ctx context.Context, prompt Prompt) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s.confirm != nil && !s.confirm(ctx, prompt) {
		return fmt.Errorf("%w: %s", interfaces.ErrUserRejected, prompt.Kind)
	}
	return nil
}

func addressOrCreate(to *common.Address) string {
	if to == nil {
		return "create"
	}
	return to.Hex()
}
