package coprocessor

import (
	"encoding/binary"
	"errors"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/crypto/ecies"
	"github.com/ethereum/go-ethereum/signer/core/apitypes"
	"github.com/ruteri/fhe-identity-auth/interfaces"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type failingEqEngine struct {
	*PlaintextEngine
}

func (failingEqEngine) Eq(lhs, rhs []byte) ([]byte, error) {
	return nil, errors.New("eq failed")
}

var (
	testContract = common.HexToAddress("0x5FbDB2315678afecb367f032d93F642f64180aa3")
	testVerifier = common.HexToAddress("0x00000000000000000000000000000000000000dd")
)

func newTestCoprocessor(t *testing.T, now time.Time) *Coprocessor {
	t.Helper()
	cp, err := New(NewPlaintextEngine(), interfaces.HardhatChainID, Options{
		DecryptionVerifier: testVerifier,
		Now:                func() time.Time { return now },
	})
	require.NoError(t, err)
	return cp
}

func signRequest(t *testing.T, key []byte, req *UserDecryptRequest) {
	t.Helper()
	userKey, err := crypto.ToECDSA(key)
	require.NoError(t, err)

	data := UserDecryptTypedData(interfaces.HardhatChainID, testVerifier, req.PublicKey, req.ContractAddresses, req.StartTimestamp, req.DurationDays)
	hash, _, err := apitypes.TypedDataAndHash(data)
	require.NoError(t, err)

	sig, err := crypto.Sign(hash, userKey)
	require.NoError(t, err)
	sig[crypto.RecoveryIDOffset] += 27
	req.Signature = sig
}

func TestEncrypt32_HandlesAndProof(t *testing.T) {
	cp := newTestCoprocessor(t, time.Now())
	user := common.HexToAddress("0x01")

	input, err := cp.Encrypt32(testContract, user, []uint32{12345})
	require.NoError(t, err)
	require.Len(t, input.Handles, 1)

	h := input.Handles[0]
	assert.Equal(t, TypeEuint32, HandleType(h))
	assert.Equal(t, byte(0), h[handleIndexOffset])
	assert.Len(t, input.InputProof, 2+32+crypto.SignatureLength)

	assert.NoError(t, cp.VerifyInput(h, input.InputProof, testContract, user))

	// Proof is bound to the user and the contract.
	assert.ErrorIs(t, cp.VerifyInput(h, input.InputProof, testContract, common.HexToAddress("0x02")), ErrInvalidProof)
	assert.ErrorIs(t, cp.VerifyInput(h, input.InputProof, common.HexToAddress("0x03"), user), ErrInvalidProof)

	// Handle must be part of the proof.
	assert.ErrorIs(t, cp.VerifyInput(interfaces.Handle{0x01}, input.InputProof, testContract, user), ErrInvalidProof)

	_, err = cp.Encrypt32(testContract, user, nil)
	assert.ErrorIs(t, err, interfaces.ErrEncryptionService)
}

func TestVerifyInput_MalformedProof(t *testing.T) {
	cp := newTestCoprocessor(t, time.Now())

	assert.ErrorIs(t, cp.VerifyInput(interfaces.Handle{}, nil, testContract, common.Address{}), ErrInvalidProof)
	assert.ErrorIs(t, cp.VerifyInput(interfaces.Handle{}, []byte{1, 1, 0}, testContract, common.Address{}), ErrInvalidProof)
}

func TestVerifyInput_ForeignSigner(t *testing.T) {
	user := common.HexToAddress("0x01")
	issuer := newTestCoprocessor(t, time.Now())
	other := newTestCoprocessor(t, time.Now())

	input, err := issuer.Encrypt32(testContract, user, []uint32{7})
	require.NoError(t, err)

	assert.ErrorIs(t, other.VerifyInput(input.Handles[0], input.InputProof, testContract, user), ErrInvalidProof)
}

func TestEq_DeterministicResultHandle(t *testing.T) {
	cp := newTestCoprocessor(t, time.Now())
	user := common.HexToAddress("0x01")

	a, err := cp.Encrypt32(testContract, user, []uint32{5})
	require.NoError(t, err)
	b, err := cp.Encrypt32(testContract, user, []uint32{5})
	require.NoError(t, err)

	result, err := cp.Eq(a.Handles[0], b.Handles[0])
	require.NoError(t, err)
	assert.Equal(t, EqHandle(a.Handles[0], b.Handles[0]), result)
	assert.Equal(t, TypeEbool, HandleType(result))

	again, err := cp.Eq(a.Handles[0], b.Handles[0])
	require.NoError(t, err)
	assert.Equal(t, result, again)

	_, err = cp.Eq(a.Handles[0], interfaces.Handle{0xff})
	assert.ErrorIs(t, err, ErrUnknownHandle)
}

func TestEq_EngineFailure(t *testing.T) {
	engine := failingEqEngine{NewPlaintextEngine()}
	cp, err := New(engine, interfaces.HardhatChainID, Options{})
	require.NoError(t, err)

	a, err := cp.Encrypt32(testContract, common.Address{}, []uint32{1, 2})
	require.NoError(t, err)

	_, err = cp.Eq(a.Handles[0], a.Handles[1])
	assert.ErrorIs(t, err, interfaces.ErrEncryptionService)
}

func TestUserDecrypt(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	cp := newTestCoprocessor(t, now)

	userKey, err := crypto.GenerateKey()
	require.NoError(t, err)
	user := crypto.PubkeyToAddress(userKey.PublicKey)

	ephemeral, err := crypto.GenerateKey()
	require.NoError(t, err)

	stored, err := cp.Encrypt32(testContract, user, []uint32{12345})
	require.NoError(t, err)
	probe, err := cp.Encrypt32(testContract, user, []uint32{12345})
	require.NoError(t, err)

	h, err := cp.FromExternal(stored.Handles[0], stored.InputProof, testContract, user)
	require.NoError(t, err)
	p, err := cp.FromExternal(probe.Handles[0], probe.InputProof, testContract, user)
	require.NoError(t, err)

	result, err := cp.Eq(h, p)
	require.NoError(t, err)

	newRequest := func() *UserDecryptRequest {
		req := &UserDecryptRequest{
			Pairs:             []interfaces.HandleContractPair{{Handle: result, ContractAddress: testContract}},
			PublicKey:         crypto.FromECDSAPub(&ephemeral.PublicKey),
			ContractAddresses: []common.Address{testContract},
			UserAddress:       user,
			StartTimestamp:    now.Add(-time.Hour).Unix(),
			DurationDays:      10,
		}
		signRequest(t, crypto.FromECDSA(userKey), req)
		return req
	}

	t.Run("not in acl", func(t *testing.T) {
		_, err := cp.UserDecrypt(newRequest())
		assert.ErrorIs(t, err, ErrHandleNotInACL)
	})

	cp.Allow(result, testContract)
	cp.Allow(result, user)

	t.Run("success", func(t *testing.T) {
		sealed, err := cp.UserDecrypt(newRequest())
		require.NoError(t, err)
		require.Contains(t, sealed, result)

		plain, err := ecies.ImportECDSA(ephemeral).Decrypt(sealed[result], nil, nil)
		require.NoError(t, err)
		assert.Equal(t, uint64(1), binary.BigEndian.Uint64(plain))
	})

	t.Run("wrong signer", func(t *testing.T) {
		req := newRequest()
		otherKey, err := crypto.GenerateKey()
		require.NoError(t, err)
		signRequest(t, crypto.FromECDSA(otherKey), req)

		_, err = cp.UserDecrypt(req)
		assert.ErrorIs(t, err, ErrInvalidSignature)
	})

	t.Run("expired", func(t *testing.T) {
		req := newRequest()
		req.StartTimestamp = now.Add(-11 * 24 * time.Hour).Unix()
		signRequest(t, crypto.FromECDSA(userKey), req)

		_, err := cp.UserDecrypt(req)
		assert.ErrorIs(t, err, ErrInvalidSignature)
	})

	t.Run("tampered window", func(t *testing.T) {
		req := newRequest()
		req.DurationDays = 365

		_, err := cp.UserDecrypt(req)
		assert.ErrorIs(t, err, ErrInvalidSignature)
	})

	t.Run("contract not covered", func(t *testing.T) {
		req := newRequest()
		req.Pairs[0].ContractAddress = common.HexToAddress("0x04")

		_, err := cp.UserDecrypt(req)
		assert.ErrorIs(t, err, ErrHandleNotInACL)
	})
}

func TestRecoverTypedDataSigner_BadLength(t *testing.T) {
	data := UserDecryptTypedData(interfaces.HardhatChainID, testVerifier, []byte{1}, nil, 0, 1)
	_, err := RecoverTypedDataSigner(data, []byte{1, 2, 3})
	assert.ErrorIs(t, err, ErrInvalidSignature)
}
