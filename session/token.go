package session

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
)

const tokenRawSize = 32

// tokenEncodedLen is the unpadded base64url length of tokenRawSize bytes.
var tokenEncodedLen = base64.RawURLEncoding.EncodedLen(tokenRawSize)

// NewToken returns a fresh 256-bit URL-safe token and its hash.
func NewToken() (string, [32]byte, error) {
	var raw [tokenRawSize]byte
	if _, err := rand.Read(raw[:]); err != nil {
		return "", [32]byte{}, err
	}
	token := base64.RawURLEncoding.EncodeToString(raw[:])
	return token, HashToken(token), nil
}

// HashToken returns the lookup key of token.
func HashToken(token string) [32]byte {
	return sha256.Sum256([]byte(token))
}

// ParseToken checks that token has the shape produced by [NewToken] and
// returns its hash. Malformed tokens are rejected without touching a store.
func ParseToken(token string) ([32]byte, bool) {
	if len(token) != tokenEncodedLen {
		return [32]byte{}, false
	}
	raw, err := base64.RawURLEncoding.DecodeString(token)
	if err != nil || len(raw) != tokenRawSize {
		return [32]byte{}, false
	}
	return HashToken(token), true
}
