package crypto

import (
	"crypto/ed25519"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/mr-tron/base58"
)

// ParseSecret decodes a wallet secret in any of the formats wallets export:
// a solana-keygen JSON byte array, base58, or hex. Both the 64-byte keypair
// and the 32-byte seed are accepted.
func ParseSecret(s string) (ed25519.PrivateKey, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, ErrNoKey
	}

	var (
		raw []byte
		err error
	)
	switch {
	case strings.HasPrefix(s, "["):
		var ints []int
		if err = json.Unmarshal([]byte(s), &ints); err != nil {
			return nil, fmt.Errorf("crypto: parsing key array: %w", err)
		}
		raw = make([]byte, len(ints))
		for i, n := range ints {
			if n < 0 || n > 255 {
				return nil, fmt.Errorf("crypto: key array byte %d out of range", i)
			}
			raw[i] = byte(n)
		}
	case isHex(s):
		raw, err = hex.DecodeString(strings.TrimPrefix(s, "0x"))
		if err != nil {
			return nil, fmt.Errorf("crypto: decoding hex secret: %w", err)
		}
	default:
		raw, err = base58.Decode(s)
		if err != nil {
			return nil, fmt.Errorf("crypto: decoding base58 secret: %w", err)
		}
	}
	return toPrivateKey(raw)
}

// EncodePublicKey renders a public key as a base58 wallet address.
func EncodePublicKey(pub ed25519.PublicKey) string {
	return base58.Encode(pub)
}

func toPrivateKey(raw []byte) (ed25519.PrivateKey, error) {
	switch len(raw) {
	case ed25519.SeedSize:
		return ed25519.NewKeyFromSeed(raw), nil
	case ed25519.PrivateKeySize:
		key := ed25519.NewKeyFromSeed(raw[:ed25519.SeedSize])
		if !key.Equal(ed25519.PrivateKey(raw)) {
			return nil, fmt.Errorf("crypto: keypair public half does not match its seed")
		}
		return key, nil
	default:
		return nil, fmt.Errorf("crypto: expected %d or %d key bytes, got %d", ed25519.SeedSize, ed25519.PrivateKeySize, len(raw))
	}
}

// isHex reports whether s is hex of a key length. Base58 keys are 43-44 or
// 87-88 characters, so the lengths never collide.
func isHex(s string) bool {
	s = strings.TrimPrefix(s, "0x")
	if len(s) != 2*ed25519.SeedSize && len(s) != 2*ed25519.PrivateKeySize {
		return false
	}
	for _, c := range s {
		if !strings.ContainsRune("0123456789abcdefABCDEF", c) {
			return false
		}
	}
	return true
}
