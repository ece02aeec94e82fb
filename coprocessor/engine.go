package coprocessor

import (
	"errors"
	"fmt"
	"sync"

	"github.com/luxfi/fhe"
)

var (
	ErrEngineLoading     = errors.New("fhe engine is still loading")
	ErrInvalidCiphertext = errors.New("invalid ciphertext")
)

// Engine evaluates FHE operations on serialized ciphertexts.
type Engine interface {
	EncryptUint32(value uint32) ([]byte, error)
	Eq(lhs, rhs []byte) ([]byte, error)
	Decrypt(ct []byte) (uint64, error)
}

// TFHEEngine is an Engine backed by binary TFHE. The evaluator is not safe for
// concurrent use, so all operations are serialized.
type TFHEEngine struct {
	mu        sync.Mutex
	encryptor *fhe.BitwiseEncryptor
	decryptor *fhe.BitwiseDecryptor
	evaluator *fhe.BitwiseEvaluator
}

// NewTFHEEngine generates a fresh key set. Bootstrap key generation takes a
// few seconds.
func NewTFHEEngine() (*TFHEEngine, error) {
	params, err := fhe.NewParametersFromLiteral(fhe.PN10QP27)
	if err != nil {
		return nil, fmt.Errorf("could not create tfhe parameters: %w", err)
	}

	kg := fhe.NewKeyGenerator(params)
	secretKey, _ := kg.GenKeyPair()
	bsk := kg.GenBootstrapKey(secretKey)

	return &TFHEEngine{
		encryptor: fhe.NewBitwiseEncryptor(params, secretKey),
		decryptor: fhe.NewBitwiseDecryptor(params, secretKey),
		evaluator: fhe.NewBitwiseEvaluator(params, bsk, secretKey),
	}, nil
}

// EncryptUint32 encrypts value as an euint32.
func (e *TFHEEngine) EncryptUint32(value uint32) ([]byte, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	ct := e.encryptor.EncryptUint64(uint64(value), fhe.FheUint32)
	return ct.MarshalBinary()
}

// Eq compares two encrypted integers and returns an encrypted boolean.
func (e *TFHEEngine) Eq(lhs, rhs []byte) ([]byte, error) {
	ctLhs, err := unmarshalBitCiphertext(lhs)
	if err != nil {
		return nil, err
	}
	ctRhs, err := unmarshalBitCiphertext(rhs)
	if err != nil {
		return nil, err
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	result, err := e.evaluator.Eq(ctLhs, ctRhs)
	if err != nil {
		return nil, fmt.Errorf("tfhe eq failed: %w", err)
	}
	return fhe.WrapBoolCiphertext(result).MarshalBinary()
}

// Decrypt returns the plaintext of ct.
func (e *TFHEEngine) Decrypt(ct []byte) (uint64, error) {
	parsed, err := unmarshalBitCiphertext(ct)
	if err != nil {
		return 0, err
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	return e.decryptor.DecryptUint64(parsed), nil
}

func unmarshalBitCiphertext(data []byte) (*fhe.BitCiphertext, error) {
	if len(data) == 0 {
		return nil, ErrInvalidCiphertext
	}
	ct := new(fhe.BitCiphertext)
	if err := ct.UnmarshalBinary(data); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidCiphertext, err)
	}
	return ct, nil
}
