package coprocessor

import (
	"crypto/ecdsa"
	"crypto/rand"
	"encoding/binary"
	"fmt"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/crypto/ecies"
	"github.com/ruteri/fhe-identity-auth/interfaces"
)

// Options configures a Coprocessor.
type Options struct {
	// InputSignerKey signs input proofs. A random key is generated when nil.
	InputSignerKey *ecdsa.PrivateKey
	// DecryptionVerifier is the verifying contract of the user decryption
	// EIP-712 domain.
	DecryptionVerifier common.Address
	// Now overrides the clock used for authorization windows.
	Now func() time.Time
}

// UserDecryptRequest is what a client submits to re-encrypt handles under its
// ephemeral public key. It never carries the matching private key.
type UserDecryptRequest struct {
	Pairs             []interfaces.HandleContractPair
	PublicKey         []byte
	Signature         []byte
	ContractAddresses []common.Address
	UserAddress       common.Address
	StartTimestamp    int64
	DurationDays      int64
}

// Coprocessor holds ciphertexts by handle, verifies input proofs, evaluates
// comparisons and serves user decryption. It plays the role of the off-chain
// FHE network for a single chain.
type Coprocessor struct {
	engine             Engine
	chainID            interfaces.ChainID
	signerKey          *ecdsa.PrivateKey
	decryptionVerifier common.Address
	now                func() time.Time

	mu          sync.RWMutex
	ciphertexts map[interfaces.Handle][]byte
	acl         map[interfaces.Handle]map[common.Address]struct{}
}

// New returns a Coprocessor evaluating on engine.
func New(engine Engine, chainID interfaces.ChainID, opts Options) (*Coprocessor, error) {
	signerKey := opts.InputSignerKey
	if signerKey == nil {
		var err error
		signerKey, err = crypto.GenerateKey()
		if err != nil {
			return nil, fmt.Errorf("could not generate input signer key: %w", err)
		}
	}

	now := opts.Now
	if now == nil {
		now = time.Now
	}

	return &Coprocessor{
		engine:             engine,
		chainID:            chainID,
		signerKey:          signerKey,
		decryptionVerifier: opts.DecryptionVerifier,
		now:                now,
		ciphertexts:        make(map[interfaces.Handle][]byte),
		acl:                make(map[interfaces.Handle]map[common.Address]struct{}),
	}, nil
}

// ChainID returns the chain the coprocessor serves.
func (c *Coprocessor) ChainID() interfaces.ChainID {
	return c.chainID
}

// InputSigner returns the address input proofs are signed with.
func (c *Coprocessor) InputSigner() common.Address {
	return crypto.PubkeyToAddress(c.signerKey.PublicKey)
}

// DecryptionVerifier returns the verifying contract of the decryption domain.
func (c *Coprocessor) DecryptionVerifier() common.Address {
	return c.decryptionVerifier
}

// Encrypt32 encrypts values for use by user in contract and returns their
// handles with a proof binding them to both.
func (c *Coprocessor) Encrypt32(contract, user common.Address, values []uint32) (*interfaces.EncryptedInput, error) {
	if len(values) == 0 {
		return nil, fmt.Errorf("%w: no values to encrypt", interfaces.ErrEncryptionService)
	}
	if len(values) > 255 {
		return nil, fmt.Errorf("%w: too many values in one input", interfaces.ErrEncryptionService)
	}

	handles := make([]interfaces.Handle, len(values))
	ciphertexts := make([][]byte, len(values))
	for i, v := range values {
		ct, err := c.engine.EncryptUint32(v)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", interfaces.ErrEncryptionService, err)
		}
		ciphertexts[i] = ct
		handles[i] = inputHandle(ct, contract, user, c.chainID, i, TypeEuint32)
	}

	sig, err := signDigest(inputDigest(handles, contract, user, c.chainID), c.signerKey)
	if err != nil {
		return nil, fmt.Errorf("%w: could not sign input proof: %w", interfaces.ErrEncryptionService, err)
	}

	c.mu.Lock()
	for i, h := range handles {
		c.ciphertexts[h] = ciphertexts[i]
	}
	c.mu.Unlock()

	return &interfaces.EncryptedInput{
		Handles:    handles,
		InputProof: encodeProof(handles, [][]byte{sig}),
	}, nil
}

// VerifyInput checks that handle is part of proof and that the proof was
// issued for contract and user on this chain.
func (c *Coprocessor) VerifyInput(handle interfaces.Handle, proof []byte, contract, user common.Address) error {
	handles, sigs, err := decodeProof(proof)
	if err != nil {
		return err
	}

	found := false
	for _, h := range handles {
		if h == handle {
			found = true
			break
		}
	}
	if !found {
		return fmt.Errorf("%w: handle %s not in proof", ErrInvalidProof, handle.Preview())
	}
	if len(sigs) == 0 {
		return fmt.Errorf("%w: no signatures", ErrInvalidProof)
	}

	digest := inputDigest(handles, contract, user, c.chainID)
	expected := c.InputSigner()
	for _, sig := range sigs {
		signer, err := recoverDigestSigner(digest, sig)
		if err != nil {
			return fmt.Errorf("%w: %v", ErrInvalidProof, err)
		}
		if signer != expected {
			return fmt.Errorf("%w: unexpected signer %s", ErrInvalidProof, signer.Hex())
		}
	}

	if !c.has(handle) {
		return fmt.Errorf("%w: %s", ErrUnknownHandle, handle.Preview())
	}
	return nil
}

// FromExternal verifies an external input and grants contract access to it.
func (c *Coprocessor) FromExternal(handle interfaces.Handle, proof []byte, contract, user common.Address) (interfaces.Handle, error) {
	if err := c.VerifyInput(handle, proof, contract, user); err != nil {
		return interfaces.Handle{}, err
	}
	c.Allow(handle, contract)
	return handle, nil
}

// Eq evaluates lhs == rhs and stores the encrypted result under EqHandle(lhs, rhs).
func (c *Coprocessor) Eq(lhs, rhs interfaces.Handle) (interfaces.Handle, error) {
	result := EqHandle(lhs, rhs)
	if c.has(result) {
		return result, nil
	}

	c.mu.RLock()
	ctLhs, okLhs := c.ciphertexts[lhs]
	ctRhs, okRhs := c.ciphertexts[rhs]
	c.mu.RUnlock()
	if !okLhs {
		return interfaces.Handle{}, fmt.Errorf("%w: %s", ErrUnknownHandle, lhs.Preview())
	}
	if !okRhs {
		return interfaces.Handle{}, fmt.Errorf("%w: %s", ErrUnknownHandle, rhs.Preview())
	}

	ct, err := c.engine.Eq(ctLhs, ctRhs)
	if err != nil {
		return interfaces.Handle{}, fmt.Errorf("%w: %w", interfaces.ErrEncryptionService, err)
	}

	c.mu.Lock()
	c.ciphertexts[result] = ct
	c.mu.Unlock()
	return result, nil
}

// Allow grants account the right to use and decrypt handle.
func (c *Coprocessor) Allow(handle interfaces.Handle, account common.Address) {
	c.mu.Lock()
	defer c.mu.Unlock()

	allowed, ok := c.acl[handle]
	if !ok {
		allowed = make(map[common.Address]struct{})
		c.acl[handle] = allowed
	}
	allowed[account] = struct{}{}
}

// IsAllowed reports whether account was granted access to handle.
func (c *Coprocessor) IsAllowed(handle interfaces.Handle, account common.Address) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()

	_, ok := c.acl[handle][account]
	return ok
}

// UserDecrypt checks the signed authorization and the ACL, then returns each
// plaintext sealed with ECIES to the request's public key.
func (c *Coprocessor) UserDecrypt(req *UserDecryptRequest) (map[interfaces.Handle][]byte, error) {
	data := UserDecryptTypedData(c.chainID, c.decryptionVerifier, req.PublicKey, req.ContractAddresses, req.StartTimestamp, req.DurationDays)
	signer, err := RecoverTypedDataSigner(data, req.Signature)
	if err != nil {
		return nil, err
	}
	if signer != req.UserAddress {
		return nil, fmt.Errorf("%w: signed by %s, expected %s", ErrInvalidSignature, signer.Hex(), req.UserAddress.Hex())
	}

	window := interfaces.DecryptionAuthorization{
		ContractAddresses: req.ContractAddresses,
		StartTimestamp:    req.StartTimestamp,
		DurationDays:      req.DurationDays,
	}
	if !window.IsValidAt(c.now()) {
		return nil, fmt.Errorf("%w: authorization is outside its validity window", ErrInvalidSignature)
	}

	pub, err := crypto.UnmarshalPubkey(req.PublicKey)
	if err != nil {
		return nil, fmt.Errorf("invalid decryption public key: %w", err)
	}
	eciesPub := ecies.ImportECDSAPublic(pub)

	results := make(map[interfaces.Handle][]byte, len(req.Pairs))
	for _, pair := range req.Pairs {
		if !window.Covers(pair.ContractAddress) {
			return nil, fmt.Errorf("%w: contract %s not covered by authorization", ErrHandleNotInACL, pair.ContractAddress.Hex())
		}
		if !c.IsAllowed(pair.Handle, pair.ContractAddress) || !c.IsAllowed(pair.Handle, req.UserAddress) {
			return nil, fmt.Errorf("%w: %s", ErrHandleNotInACL, pair.Handle.Preview())
		}

		c.mu.RLock()
		ct, ok := c.ciphertexts[pair.Handle]
		c.mu.RUnlock()
		if !ok {
			return nil, fmt.Errorf("%w: %s", ErrUnknownHandle, pair.Handle.Preview())
		}

		value, err := c.engine.Decrypt(ct)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", interfaces.ErrEncryptionService, err)
		}

		sealed, err := ecies.Encrypt(rand.Reader, eciesPub, binary.BigEndian.AppendUint64(nil, value), nil, nil)
		if err != nil {
			return nil, fmt.Errorf("could not seal plaintext: %w", err)
		}
		results[pair.Handle] = sealed
	}
	return results, nil
}

func (c *Coprocessor) has(handle interfaces.Handle) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	_, ok := c.ciphertexts[handle]
	return ok
}
