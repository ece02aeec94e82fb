package coprocessor

import (
	"crypto/ecdsa"
	"encoding/binary"
	"errors"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ruteri/fhe-identity-auth/interfaces"
	"github.com/zeebo/blake3"
)

// Handle layout: bytes [0:29] hash, [29] index within the input, [30] fhe type, [31] version.
const (
	handleIndexOffset   = 29
	handleTypeOffset    = 30
	handleVersionOffset = 31
	handleVersion       = 0

	TypeEbool   uint8 = 0
	TypeEuint32 uint8 = 4
)

var (
	ErrInvalidProof   = errors.New("invalid input proof")
	ErrUnknownHandle  = errors.New("unknown ciphertext handle")
	ErrHandleNotInACL = errors.New("handle is not allowed for account")
)

// HandleType returns the fhe type encoded in h.
func HandleType(h interfaces.Handle) uint8 {
	return h[handleTypeOffset]
}

func inputHandle(ciphertext []byte, contract, user common.Address, chainID interfaces.ChainID, index int, fheType uint8) interfaces.Handle {
	var buf []byte
	buf = append(buf, "input"...)
	buf = append(buf, ciphertext...)
	buf = append(buf, contract.Bytes()...)
	buf = append(buf, user.Bytes()...)
	buf = binary.BigEndian.AppendUint64(buf, uint64(chainID))
	buf = append(buf, byte(index))

	return finishHandle(blake3.Sum256(buf), uint8(index), fheType)
}

// EqHandle derives the result handle of eq(lhs, rhs). It is pure so that a
// read-only replay of a comparison yields the same handle as the transaction.
func EqHandle(lhs, rhs interfaces.Handle) interfaces.Handle {
	var buf []byte
	buf = append(buf, "eq"...)
	buf = append(buf, lhs[:]...)
	buf = append(buf, rhs[:]...)
	return finishHandle(blake3.Sum256(buf), 0, TypeEbool)
}

func finishHandle(sum [32]byte, index uint8, fheType uint8) interfaces.Handle {
	var h interfaces.Handle
	copy(h[:handleIndexOffset], sum[:handleIndexOffset])
	h[handleIndexOffset] = index
	h[handleTypeOffset] = fheType
	h[handleVersionOffset] = handleVersion
	return h
}

func inputDigest(handles []interfaces.Handle, contract, user common.Address, chainID interfaces.ChainID) []byte {
	var buf []byte
	for _, h := range handles {
		buf = append(buf, h[:]...)
	}
	buf = append(buf, user.Bytes()...)
	buf = append(buf, contract.Bytes()...)
	buf = append(buf, common.BigToHash(new(big.Int).SetUint64(uint64(chainID))).Bytes()...)
	return crypto.Keccak256(buf)
}

// encodeProof lays out numHandles | numSigners | handles | signatures.
func encodeProof(handles []interfaces.Handle, signatures [][]byte) []byte {
	proof := []byte{byte(len(handles)), byte(len(signatures))}
	for _, h := range handles {
		proof = append(proof, h[:]...)
	}
	for _, s := range signatures {
		proof = append(proof, s...)
	}
	return proof
}

func decodeProof(proof []byte) ([]interfaces.Handle, [][]byte, error) {
	if len(proof) < 2 {
		return nil, nil, fmt.Errorf("%w: too short", ErrInvalidProof)
	}
	numHandles, numSigners := int(proof[0]), int(proof[1])
	if len(proof) != 2+numHandles*32+numSigners*crypto.SignatureLength {
		return nil, nil, fmt.Errorf("%w: unexpected length %d", ErrInvalidProof, len(proof))
	}

	handles := make([]interfaces.Handle, numHandles)
	offset := 2
	for i := range handles {
		copy(handles[i][:], proof[offset:offset+32])
		offset += 32
	}

	signatures := make([][]byte, numSigners)
	for i := range signatures {
		signatures[i] = proof[offset : offset+crypto.SignatureLength]
		offset += crypto.SignatureLength
	}
	return handles, signatures, nil
}

func signDigest(digest []byte, key *ecdsa.PrivateKey) ([]byte, error) {
	sig, err := crypto.Sign(digest, key)
	if err != nil {
		return nil, err
	}
	sig[crypto.RecoveryIDOffset] += 27
	return sig, nil
}

func recoverDigestSigner(digest, sig []byte) (common.Address, error) {
	normalized := make([]byte, len(sig))
	copy(normalized, sig)
	if normalized[crypto.RecoveryIDOffset] >= 27 {
		normalized[crypto.RecoveryIDOffset] -= 27
	}
	pub, err := crypto.SigToPub(digest, normalized)
	if err != nil {
		return common.Address{}, err
	}
	return crypto.PubkeyToAddress(*pub), nil
}
