package fhevm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ruteri/fhe-identity-auth/coprocessor"
	"github.com/ruteri/fhe-identity-auth/interfaces"
)

// DefaultDurationDays is the validity window of a new authorization.
const DefaultDurationDays = 10

const authorizationKeyPrefix = "fhevm.decryption."

var ErrAuthorizationUnavailable = errors.New("decryption authorization unavailable")

// Authorizer loads decryption authorizations from storage or asks the signer
// for a new one.
type Authorizer struct {
	Storage      interfaces.KeyValueStorage
	Log          *slog.Logger
	DurationDays int64
	Now          func() time.Time
}

// LoadOrSign returns a cached authorization for signer and contracts, or signs
// and caches a new one. Storage may be nil, in which case nothing is cached.
func LoadOrSign(ctx context.Context, client interfaces.EncryptionClient, contracts []common.Address, signer interfaces.Signer, storage interfaces.KeyValueStorage) (*interfaces.DecryptionAuthorization, error) {
	a := &Authorizer{Storage: storage}
	return a.LoadOrSign(ctx, client, contracts, signer)
}

func (a *Authorizer) LoadOrSign(ctx context.Context, client interfaces.EncryptionClient, contracts []common.Address, signer interfaces.Signer) (*interfaces.DecryptionAuthorization, error) {
	if client == nil || signer == nil {
		return nil, ErrAuthorizationUnavailable
	}

	contracts = sortedContracts(contracts)
	user := signer.Address()
	key := AuthorizationKey(user, contracts)
	now := a.now()

	if cached := a.load(ctx, key); cached != nil {
		err := validateAuthorization(client, cached, user, contracts, now)
		if err == nil {
			return cached, nil
		}
		a.log().Debug("discarding cached decryption authorization", "key", key, "err", err)
	}

	privateKey, err := crypto.GenerateKey()
	if err != nil {
		return nil, fmt.Errorf("%w: could not generate keypair: %w", ErrAuthorizationUnavailable, err)
	}

	duration := a.DurationDays
	if duration <= 0 {
		duration = DefaultDurationDays
	}

	auth := &interfaces.DecryptionAuthorization{
		PrivateKey:        crypto.FromECDSA(privateKey),
		PublicKey:         crypto.FromECDSAPub(&privateKey.PublicKey),
		ContractAddresses: contracts,
		UserAddress:       user,
		StartTimestamp:    now.Unix(),
		DurationDays:      duration,
	}

	typedData := client.CreateEIP712(auth.PublicKey, contracts, auth.StartTimestamp, auth.DurationDays)
	sig, err := signer.SignTypedData(ctx, typedData)
	if err != nil {
		return nil, fmt.Errorf("could not sign decryption authorization: %w", err)
	}
	auth.Signature = hexutil.Bytes(sig)

	a.store(ctx, key, auth)
	return auth, nil
}

// AuthorizationKey is the storage key for user and the (sorted) contract set.
func AuthorizationKey(user common.Address, contracts []common.Address) string {
	var buf bytes.Buffer
	buf.Write(user.Bytes())
	for _, c := range sortedContracts(contracts) {
		buf.Write(c.Bytes())
	}
	return authorizationKeyPrefix + common.Bytes2Hex(crypto.Keccak256(buf.Bytes()))
}

func validateAuthorization(client interfaces.EncryptionClient, auth *interfaces.DecryptionAuthorization, user common.Address, contracts []common.Address, now time.Time) error {
	if auth.UserAddress != user {
		return errors.New("authorization belongs to a different account")
	}
	if !auth.IsValidAt(now) {
		return errors.New("authorization expired")
	}
	if len(auth.ContractAddresses) != len(contracts) {
		return errors.New("authorization covers a different contract set")
	}
	for _, c := range contracts {
		if !auth.Covers(c) {
			return errors.New("authorization covers a different contract set")
		}
	}
	if _, err := crypto.ToECDSA(auth.PrivateKey); err != nil {
		return fmt.Errorf("invalid private key: %w", err)
	}

	typedData := client.CreateEIP712(auth.PublicKey, auth.ContractAddresses, auth.StartTimestamp, auth.DurationDays)
	recovered, err := coprocessor.RecoverTypedDataSigner(typedData, auth.Signature)
	if err != nil {
		return err
	}
	if recovered != user {
		return errors.New("authorization signature does not match account")
	}
	return nil
}

func (a *Authorizer) load(ctx context.Context, key string) *interfaces.DecryptionAuthorization {
	if a.Storage == nil {
		return nil
	}

	raw, err := a.Storage.GetItem(ctx, key)
	if err != nil {
		if !errors.Is(err, interfaces.ErrItemNotFound) {
			a.log().Warn("could not read cached decryption authorization", "backend", a.Storage.Name(), "err", err)
		}
		return nil
	}

	var auth interfaces.DecryptionAuthorization
	if err := json.Unmarshal([]byte(raw), &auth); err != nil {
		a.log().Warn("malformed cached decryption authorization", "key", key, "err", err)
		return nil
	}
	return &auth
}

func (a *Authorizer) store(ctx context.Context, key string, auth *interfaces.DecryptionAuthorization) {
	if a.Storage == nil {
		return
	}

	raw, err := json.Marshal(auth)
	if err != nil {
		a.log().Warn("could not encode decryption authorization", "err", err)
		return
	}
	if err := a.Storage.SetItem(ctx, key, string(raw)); err != nil {
		a.log().Warn("could not cache decryption authorization", "backend", a.Storage.Name(), "err", err)
	}
}

func (a *Authorizer) now() time.Time {
	if a.Now != nil {
		return a.Now()
	}
	return time.Now()
}

func (a *Authorizer) log() *slog.Logger {
	if a.Log != nil {
		return a.Log
	}
	return slog.Default()
}

func sortedContracts(contracts []common.Address) []common.Address {
	sorted := make([]common.Address, len(contracts))
	copy(sorted, contracts)
	sort.Slice(sorted, func(i, j int) bool {
		return bytes.Compare(sorted[i][:], sorted[j][:]) < 0
	})
	return sorted
}
