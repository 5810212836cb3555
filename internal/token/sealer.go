package token

import (
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"strings"

	"golang.org/x/crypto/argon2"
	"golang.org/x/crypto/nacl/secretbox"
)

const (
	sealedPrefix = "sealed:v1:"
	sealerSalt   = "smart-stay/credential-store"
	nonceSize    = 24
)

var (
	ErrSealed = errors.New("credential is sealed and no secret is configured")
	ErrUnseal = errors.New("failed to unseal credential")
)

// Sealer encrypts credentials at rest with a key derived from the deployment secret.
// A nil Sealer stores values as plaintext.
type Sealer struct {
	key [32]byte
}

// NewSealer returns nil when secret is empty.
func NewSealer(secret string) *Sealer {
	if secret == "" {
		return nil
	}
	s := &Sealer{}
	derived := argon2.IDKey(
		[]byte(secret),
		[]byte(sealerSalt),
		3,       // time (number of iterations)
		64*1024, // memory in KB (64 MB)
		4,       // parallelism
		32,      // key length in bytes
	)
	copy(s.key[:], derived)
	return s
}

func (s *Sealer) Seal(plaintext string) (string, error) {
	if s == nil {
		return plaintext, nil
	}
	var nonce [nonceSize]byte
	if _, err := io.ReadFull(rand.Reader, nonce[:]); err != nil {
		return "", fmt.Errorf("failed to generate nonce: %w", err)
	}
	box := secretbox.Seal(nonce[:], []byte(plaintext), &nonce, &s.key)
	return sealedPrefix + base64.RawURLEncoding.EncodeToString(box), nil
}

// Open reverses Seal. Values stored before sealing was enabled are returned unchanged.
func (s *Sealer) Open(value string) (string, error) {
	if !strings.HasPrefix(value, sealedPrefix) {
		return value, nil
	}
	if s == nil {
		return "", ErrSealed
	}

	box, err := base64.RawURLEncoding.DecodeString(strings.TrimPrefix(value, sealedPrefix))
	if err != nil || len(box) < nonceSize+secretbox.Overhead {
		return "", ErrUnseal
	}
	var nonce [nonceSize]byte
	copy(nonce[:], box[:nonceSize])

	plaintext, ok := secretbox.Open(nil, box[nonceSize:], &nonce, &s.key)
	if !ok {
		return "", ErrUnseal
	}
	return string(plaintext), nil
}
