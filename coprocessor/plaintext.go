package coprocessor

import (
	"encoding/binary"
	"sync"
)

// PlaintextEngine is an Engine that does not encrypt. Ciphertexts carry the
// value in the clear followed by a counter. It is meant for tests and quick
// local runs where TFHE key generation is too slow.
type PlaintextEngine struct {
	mu      sync.Mutex
	counter uint64
}

func NewPlaintextEngine() *PlaintextEngine {
	return &PlaintextEngine{}
}

func (e *PlaintextEngine) EncryptUint32(value uint32) ([]byte, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	// Equal plaintexts must still produce distinct ciphertexts.
	e.counter++
	ct := binary.BigEndian.AppendUint64(nil, uint64(value))
	return binary.BigEndian.AppendUint64(ct, e.counter), nil
}

func (e *PlaintextEngine) Eq(lhs, rhs []byte) ([]byte, error) {
	a, err := e.Decrypt(lhs)
	if err != nil {
		return nil, err
	}
	b, err := e.Decrypt(rhs)
	if err != nil {
		return nil, err
	}

	var result uint64
	if a == b {
		result = 1
	}
	return e.EncryptUint32(uint32(result))
}

func (e *PlaintextEngine) Decrypt(ct []byte) (uint64, error) {
	if len(ct) < 8 {
		return 0, ErrInvalidCiphertext
	}
	return binary.BigEndian.Uint64(ct[:8]), nil
}
