package auth

import (
	"crypto/subtle"
	"encoding/hex"
	"errors"

	"golang.org/x/crypto/blake2b"
)

var errEmptyHashKey = errors.New("token hash key is empty")

// KeyedTokenHasher computes a keyed BLAKE2b-256 MAC of issued tokens so the
// session table never holds them in plaintext. Unlike bcrypt it is cheap
// enough to run on every login and refresh, and it is deterministic, so a
// presented token can be matched against the stored value.
type KeyedTokenHasher struct {
	key []byte
}

// NewKeyedTokenHasher builds a hasher. Keys longer than the 64 bytes BLAKE2b
// accepts are compressed with BLAKE2b-512 first.
func NewKeyedTokenHasher(key []byte) (*KeyedTokenHasher, error) {
	if len(key) == 0 {
		return nil, errEmptyHashKey
	}
	if len(key) > blake2b.Size {
		sum := blake2b.Sum512(key)
		key = sum[:]
	}
	k := make([]byte, len(key))
	copy(k, key)
	return &KeyedTokenHasher{key: k}, nil
}

// Hash returns the hex-encoded MAC of token.
func (h *KeyedTokenHasher) Hash(token string) (string, error) {
	mac, err := blake2b.New256(h.key)
	if err != nil {
		return "", err
	}
	mac.Write([]byte(token))
	return hex.EncodeToString(mac.Sum(nil)), nil
}

// Compare reports in constant time whether token hashes to hashed.
func (h *KeyedTokenHasher) Compare(token, hashed string) bool {
	want, err := hex.DecodeString(hashed)
	if err != nil {
		return false
	}
	got, err := h.Hash(token)
	if err != nil {
		return false
	}
	gotRaw, _ := hex.DecodeString(got)
	return subtle.ConstantTimeCompare(gotRaw, want) == 1
}
