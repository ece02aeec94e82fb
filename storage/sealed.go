package storage

import (
	"context"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/ruteri/fhe-identity-auth/interfaces"
	"golang.org/x/crypto/scrypt"
)

const (
	// DefaultScryptN costs roughly 100ms per item on a laptop.
	DefaultScryptN = 1 << 15
	maxScryptN     = 1 << 20
	scryptR        = 8
	scryptP        = 1
	scryptKeyLen   = 32
	saltLen        = 32
	nonceLen       = 12
	sealedVersion  = 1
)

// ErrUnsealFailed is returned when an item cannot be decrypted with the passphrase.
var ErrUnsealFailed = errors.New("could not unseal stored item")

type sealedItem struct {
	Version    int    `json:"version"`
	N          int    `json:"n"`
	Salt       string `json:"salt"`
	Nonce      string `json:"nonce"`
	CipherText string `json:"ciphertext"`
}

// SealedBackend encrypts values with AES-256-GCM under a scrypt-derived key
// before handing them to the wrapped backend. Each item has its own salt and
// nonce; the key is bound to the item key as additional data.
type SealedBackend struct {
	inner      interfaces.KeyValueStorage
	passphrase []byte
	n          int
}

// NewSealedBackend wraps inner. n is the scrypt cost parameter; zero selects
// DefaultScryptN.
func NewSealedBackend(inner interfaces.KeyValueStorage, passphrase []byte, n int) (*SealedBackend, error) {
	if len(passphrase) == 0 {
		return nil, errors.New("empty sealing passphrase")
	}
	if n == 0 {
		n = DefaultScryptN
	}
	return &SealedBackend{inner: inner, passphrase: passphrase, n: n}, nil
}

func (b *SealedBackend) GetItem(ctx context.Context, key string) (string, error) {
	raw, err := b.inner.GetItem(ctx, key)
	if err != nil {
		return "", err
	}

	var item sealedItem
	if err := json.Unmarshal([]byte(raw), &item); err != nil {
		return "", fmt.Errorf("%w: %v", ErrUnsealFailed, err)
	}
	if item.Version != sealedVersion {
		return "", fmt.Errorf("%w: unsupported version %d", ErrUnsealFailed, item.Version)
	}
	if item.N < 2 || item.N > maxScryptN {
		return "", fmt.Errorf("%w: scrypt cost out of range", ErrUnsealFailed)
	}

	salt, err := base64.StdEncoding.DecodeString(item.Salt)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrUnsealFailed, err)
	}
	nonce, err := base64.StdEncoding.DecodeString(item.Nonce)
	if err != nil || len(nonce) != nonceLen {
		return "", fmt.Errorf("%w: invalid nonce", ErrUnsealFailed)
	}
	ciphertext, err := base64.StdEncoding.DecodeString(item.CipherText)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrUnsealFailed, err)
	}

	aead, err := b.aead(salt, item.N)
	if err != nil {
		return "", err
	}

	plaintext, err := aead.Open(nil, nonce, ciphertext, []byte(key))
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrUnsealFailed, err)
	}
	return string(plaintext), nil
}

func (b *SealedBackend) SetItem(ctx context.Context, key string, value string) error {
	salt := make([]byte, saltLen)
	if _, err := io.ReadFull(rand.Reader, salt); err != nil {
		return fmt.Errorf("failed to generate salt: %w", err)
	}
	nonce := make([]byte, nonceLen)
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return fmt.Errorf("failed to generate nonce: %w", err)
	}

	aead, err := b.aead(salt, b.n)
	if err != nil {
		return err
	}

	plaintext := []byte(value)
	defer clear(plaintext)

	encoded, err := json.Marshal(sealedItem{
		Version:    sealedVersion,
		N:          b.n,
		Salt:       base64.StdEncoding.EncodeToString(salt),
		Nonce:      base64.StdEncoding.EncodeToString(nonce),
		CipherText: base64.StdEncoding.EncodeToString(aead.Seal(nil, nonce, plaintext, []byte(key))),
	})
	if err != nil {
		return fmt.Errorf("failed to encode sealed item: %w", err)
	}

	return b.inner.SetItem(ctx, key, string(encoded))
}

func (b *SealedBackend) RemoveItem(ctx context.Context, key string) error {
	return b.inner.RemoveItem(ctx, key)
}

func (b *SealedBackend) Available(ctx context.Context) bool {
	return b.inner.Available(ctx)
}

func (b *SealedBackend) Name() string {
	return "sealed-" + b.inner.Name()
}

func (b *SealedBackend) LocationURI() string {
	return b.inner.LocationURI()
}

func (b *SealedBackend) aead(salt []byte, n int) (cipher.AEAD, error) {
	key, err := scrypt.Key(b.passphrase, salt, n, scryptR, scryptP, scryptKeyLen)
	if err != nil {
		return nil, fmt.Errorf("failed to derive key: %w", err)
	}
	defer clear(key)

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("failed to create cipher: %w", err)
	}
	return cipher.NewGCM(block)
}
