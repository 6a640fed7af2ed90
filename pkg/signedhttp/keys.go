package signedhttp

import (
	"crypto/ed25519"
	"crypto/rand"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"strings"
)

// Message-signing keys are not ledger transaction keys. A compromised tool
// container must not automatically gain on-chain spending power, so the two
// roles stay separate end to end.

// keytoolFlagEd25519 is the scheme flag prefixing 33-byte exported keys.
const keytoolFlagEd25519 = 0x00

// GenerateKeypair creates a fresh random ed25519 signing key.
func GenerateKeypair() (ed25519.PublicKey, ed25519.PrivateKey, error) {
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return nil, nil, fmt.Errorf("generate keypair: %w", err)
	}
	return pub, priv, nil
}

// ParsePrivateKey accepts the common encodings of a 32-byte ed25519 seed:
// hex (64 chars, optional 0x prefix), base64/base64url with or without
// padding, and the keytool form base64(0x00 || seed).
func ParsePrivateKey(raw string) (ed25519.PrivateKey, error) {
	raw = strings.TrimSpace(raw)
	noPrefix := strings.TrimPrefix(raw, "0x")

	looksLikeHex := strings.HasPrefix(raw, "0x") ||
		((len(noPrefix) == 64 || len(noPrefix) == 66) && isHex(noPrefix))

	var decoded []byte
	if looksLikeHex {
		b, err := hex.DecodeString(noPrefix)
		if err != nil {
			return nil, newErr(KindInvalidInvokerPublicKey, "invalid hex private key: %v", err)
		}
		decoded = b
	} else {
		b, err := decodeAnyBase64(raw)
		if err != nil {
			return nil, err
		}
		decoded = b
	}

	switch len(decoded) {
	case ed25519.SeedSize:
		return ed25519.NewKeyFromSeed(decoded), nil
	case ed25519.SeedSize + 1:
		if decoded[0] != keytoolFlagEd25519 {
			return nil, newErr(KindInvalidInvokerPublicKey,
				"unsupported key scheme flag 0x%02x (expected 0x00 for ed25519)", decoded[0])
		}
		return ed25519.NewKeyFromSeed(decoded[1:]), nil
	default:
		return nil, newErr(KindInvalidInvokerPublicKey,
			"invalid private key length %d, expected 32 bytes (raw) or 33 bytes (0x00 + key)", len(decoded))
	}
}

// ParsePublicKeyHex parses a 64-char hex public key, the format used in the
// allowed-leaders file.
func ParsePublicKeyHex(s string) (ed25519.PublicKey, error) {
	s = strings.TrimPrefix(strings.TrimSpace(s), "0x")
	if len(s) != 2*PublicKeyLen {
		return nil, newErr(KindInvalidInvokerPublicKey, "public key must be %d hex chars, got %d", 2*PublicKeyLen, len(s))
	}
	b, err := hex.DecodeString(s)
	if err != nil {
		return nil, newErr(KindInvalidInvokerPublicKey, "invalid hex public key: %v", err)
	}
	return ed25519.PublicKey(b), nil
}

// PrivateKeyHex renders the 32-byte seed as hex.
func PrivateKeyHex(key ed25519.PrivateKey) string {
	return hex.EncodeToString(key.Seed())
}

// PublicKeyHex renders the 32-byte public key as hex.
func PublicKeyHex(pub ed25519.PublicKey) string {
	return hex.EncodeToString(pub)
}

func decodeAnyBase64(raw string) ([]byte, error) {
	for _, enc := range []*base64.Encoding{
		base64.StdEncoding,
		base64.RawStdEncoding,
		base64.URLEncoding,
		base64.RawURLEncoding,
	} {
		if b, err := enc.DecodeString(raw); err == nil {
			return b, nil
		}
	}
	return nil, newErr(KindInvalidBase64, "expected base64/base64url private key data")
}

func isHex(s string) bool {
	for _, c := range s {
		switch {
		case c >= '0' && c <= '9':
		case c >= 'a' && c <= 'f':
		case c >= 'A' && c <= 'F':
		default:
			return false
		}
	}
	return true
}
