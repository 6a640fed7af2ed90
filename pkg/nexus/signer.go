package nexus

import (
	"crypto/ed25519"
	"encoding/base64"

	"golang.org/x/crypto/blake2b"

	"github.com/Talus-Network/nexus-sdk-sub002/pkg/chain"
	"github.com/Talus-Network/nexus-sdk-sub002/pkg/signedhttp"
)

// ed25519Flag is the ledger's signature-scheme discriminator for ed25519.
const ed25519Flag = 0x00

// Signer derives the sender address from an ed25519 key and produces
// ledger-formatted transaction signatures.
type Signer struct {
	key ed25519.PrivateKey
}

// NewSigner wraps a raw ed25519 private key.
func NewSigner(key ed25519.PrivateKey) (*Signer, error) {
	if len(key) != ed25519.PrivateKeySize {
		return nil, configurationf("private key must be %d bytes, got %d", ed25519.PrivateKeySize, len(key))
	}
	return &Signer{key: key}, nil
}

// NewSignerFromString parses a key in any of the accepted encodings (hex,
// base64, base64url, flagged keytool form) and wraps it.
func NewSignerFromString(raw string) (*Signer, error) {
	key, err := signedhttp.ParsePrivateKey(raw)
	if err != nil {
		return nil, configurationf("parse private key: %v", err)
	}
	return NewSigner(key)
}

// PublicKey returns the signer's ed25519 public key.
func (s *Signer) PublicKey() ed25519.PublicKey {
	return s.key.Public().(ed25519.PublicKey)
}

// Address derives the ledger address: blake2b-256 over the scheme flag
// followed by the public key.
func (s *Signer) Address() chain.Address {
	pub := s.PublicKey()
	buf := make([]byte, 0, 1+len(pub))
	buf = append(buf, ed25519Flag)
	buf = append(buf, pub...)

	var addr chain.Address
	sum := blake2b.Sum256(buf)
	copy(addr[:], sum[:])
	return addr
}

// SignTransaction signs the blake2b digest of the transaction's intent
// message and returns the serialized signature the ledger expects: base64
// over flag || signature || public key.
func (s *Signer) SignTransaction(td chain.TransactionData) (string, error) {
	msg, err := td.SigningMessage()
	if err != nil {
		return "", buildError(err)
	}
	sum := blake2b.Sum256(msg)
	sig := ed25519.Sign(s.key, sum[:])

	pub := s.PublicKey()
	serialized := make([]byte, 0, 1+len(sig)+len(pub))
	serialized = append(serialized, ed25519Flag)
	serialized = append(serialized, sig...)
	serialized = append(serialized, pub...)
	return base64.StdEncoding.EncodeToString(serialized), nil
}
