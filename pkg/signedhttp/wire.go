package signedhttp

import (
	"bytes"
	"crypto/ed25519"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"fmt"
)

// Protocol version and header names. The version header must match the
// literal "1".
const (
	SigVersion1 = "1"

	HeaderSigVersion = "X-Nexus-Sig-V"
	HeaderSigInput   = "X-Nexus-Sig-Input"
	HeaderSig        = "X-Nexus-Sig"
)

// Domain separation tags, prepended to the signed bytes. A request signature
// can never be accepted as a response signature and vice versa.
const (
	RequestDomainTagV1  = "nexus.leader_tool.request.v1."
	ResponseDomainTagV1 = "nexus.leader_tool.response.v1."
)

// SignatureLen is the detached ed25519 signature length.
const SignatureLen = ed25519.SignatureSize

// PublicKeyLen is the ed25519 public key length.
const PublicKeyLen = ed25519.PublicKeySize

// RequestClaims are the signed request fields. Field order is fixed by
// declaration; the canonical byte encoding of the claims is their JSON in
// exactly this order.
type RequestClaims struct {
	LeaderID   string `json:"leader_id"`
	LeaderKID  uint64 `json:"leader_kid"`
	ToolID     string `json:"tool_id"`
	IatMs      int64  `json:"iat_ms"`
	ExpMs      int64  `json:"exp_ms"`
	Nonce      string `json:"nonce"`
	Method     string `json:"method"`
	Path       string `json:"path"`
	Query      string `json:"query"`
	BodySha256 string `json:"body_sha256"`
}

// ResponseClaims are the signed response fields, binding the response to the
// exact signed request bytes via ReqSigInputSha256.
type ResponseClaims struct {
	ToolID            string `json:"tool_id"`
	ToolKID           uint64 `json:"tool_kid"`
	IatMs             int64  `json:"iat_ms"`
	ExpMs             int64  `json:"exp_ms"`
	Nonce             string `json:"nonce"`
	ReqSigInputSha256 string `json:"req_sig_input_sha256"`
	Status            int    `json:"status"`
	BodySha256        string `json:"body_sha256"`
}

// Sha256Hex hashes bytes to 64-char lowercase hex. The empty body hashes to
// the well-known empty digest; both sides must agree on that.
func Sha256Hex(b []byte) string {
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:])
}

var b64 = base64.RawURLEncoding

// EncodeSigHeaders renders the signed input and signature as URL-safe
// unpadded base64 header values.
func EncodeSigHeaders(sigInput, signature []byte) (string, string) {
	return b64.EncodeToString(sigInput), b64.EncodeToString(signature)
}

// DecodeSigHeaders validates the header triple and decodes the signed input
// bytes and the 64-byte signature.
func DecodeSigHeaders(version, sigInputB64, sigB64 string) ([]byte, []byte, error) {
	if version == "" {
		return nil, nil, newErr(KindMissingHeader, "missing %s header", HeaderSigVersion)
	}
	if sigInputB64 == "" {
		return nil, nil, newErr(KindMissingHeader, "missing %s header", HeaderSigInput)
	}
	if sigB64 == "" {
		return nil, nil, newErr(KindMissingHeader, "missing %s header", HeaderSig)
	}
	if version != SigVersion1 {
		return nil, nil, newErr(KindUnsupportedVersion, "unsupported signature version %q", version)
	}

	sigInput, err := b64.DecodeString(sigInputB64)
	if err != nil {
		return nil, nil, newErr(KindInvalidBase64, "signed input: %v", err)
	}
	signature, err := b64.DecodeString(sigB64)
	if err != nil {
		return nil, nil, newErr(KindInvalidBase64, "signature: %v", err)
	}
	if len(signature) != SignatureLen {
		return nil, nil, newErr(KindInvalidSignatureLen, "signature is %d bytes, want %d", len(signature), SignatureLen)
	}
	return sigInput, signature, nil
}

// SignClaims serializes the claims in declaration order and signs
// domainTag || sig_input with the ed25519 private key. Returns the signed
// input bytes and the detached signature.
func SignClaims(domainTag string, claims any, key ed25519.PrivateKey) ([]byte, []byte, error) {
	sigInput, err := json.Marshal(claims)
	if err != nil {
		return nil, nil, newErr(KindInvalidSignedInput, "marshal claims: %v", err)
	}
	sig := ed25519.Sign(key, signedMessage(domainTag, sigInput))
	return sigInput, sig, nil
}

// VerifySignature strictly verifies a detached signature over
// domainTag || sigInput.
func VerifySignature(domainTag string, sigInput, signature []byte, pub ed25519.PublicKey) error {
	if len(pub) != PublicKeyLen {
		return newErr(KindInvalidSignature, "public key is %d bytes, want %d", len(pub), PublicKeyLen)
	}
	if !ed25519.Verify(pub, signedMessage(domainTag, sigInput), signature) {
		return newErr(KindInvalidSignature, "signature verification failed")
	}
	return nil
}

// strictUnmarshal decodes claims JSON, rejecting unknown fields and trailing
// data.
func strictUnmarshal(data []byte, out any) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(out); err != nil {
		return err
	}
	if dec.More() {
		return fmt.Errorf("trailing data after claims object")
	}
	return nil
}

func signedMessage(domainTag string, sigInput []byte) []byte {
	msg := make([]byte, 0, len(domainTag)+len(sigInput))
	msg = append(msg, domainTag...)
	msg = append(msg, sigInput...)
	return msg
}
