package signedhttp

import (
	"crypto/ed25519"
	"net/http"

	"github.com/google/uuid"
)

// RequestMeta is the transport-level request shape bound into the claims.
type RequestMeta struct {
	Method string
	Path   string
	Query  string
}

// Invoker is the Leader side of the protocol. It signs outbound requests and
// verifies the responses bound to them.
type Invoker struct {
	LeaderID string
	KID      uint64
	key      ed25519.PrivateKey
	Policy   TimePolicy
}

// NewInvoker builds an invoker with the default time policy.
func NewInvoker(leaderID string, kid uint64, key ed25519.PrivateKey) *Invoker {
	return &Invoker{LeaderID: leaderID, KID: kid, key: key, Policy: DefaultTimePolicy()}
}

// InvokeOption tweaks BeginInvoke.
type InvokeOption func(*invokeOptions)

type invokeOptions struct {
	nonce string
}

// WithNonce pins the nonce instead of generating one. Tests and replays of
// idempotent work only.
func WithNonce(nonce string) InvokeOption {
	return func(o *invokeOptions) { o.nonce = nonce }
}

// NewNonce generates the default nonce: 16 random bytes, base64url without
// padding.
func NewNonce() string {
	id := uuid.New()
	return b64.EncodeToString(id[:])
}

// OutboundSession is one signed request and the state needed to verify the
// response bound to it. Header values are stable across calls, so transport
// retries are safe without nonce churn.
type OutboundSession struct {
	invoker  *Invoker
	claims   RequestClaims
	sigInput []byte
	sig      []byte

	// sigInputSha is sha256(sig_input); the response must echo it.
	sigInputSha string
}

// BeginInvoke signs a request to the given tool and opens a session.
func (inv *Invoker) BeginInvoke(toolID string, meta RequestMeta, body []byte, opts ...InvokeOption) (*OutboundSession, error) {
	var options invokeOptions
	for _, opt := range opts {
		opt(&options)
	}

	nonce := options.nonce
	if nonce == "" {
		nonce = NewNonce()
	}

	iat := inv.Policy.nowMs()
	claims := RequestClaims{
		LeaderID:   inv.LeaderID,
		LeaderKID:  inv.KID,
		ToolID:     toolID,
		IatMs:      iat,
		ExpMs:      iat + inv.Policy.MaxValidityMs,
		Nonce:      nonce,
		Method:     meta.Method,
		Path:       meta.Path,
		Query:      meta.Query,
		BodySha256: Sha256Hex(body),
	}

	sigInput, sig, err := SignClaims(RequestDomainTagV1, claims, inv.key)
	if err != nil {
		return nil, err
	}

	return &OutboundSession{
		invoker:     inv,
		claims:      claims,
		sigInput:    sigInput,
		sig:         sig,
		sigInputSha: Sha256Hex(sigInput),
	}, nil
}

// Claims returns the signed request claims.
func (s *OutboundSession) Claims() RequestClaims { return s.claims }

// SigInputSha256 returns sha256(sig_input) held for response binding.
func (s *OutboundSession) SigInputSha256() string { return s.sigInputSha }

// HeaderValues returns the three header values. Stable on every call.
func (s *OutboundSession) HeaderValues() (version, sigInput, sig string) {
	inputB64, sigB64 := EncodeSigHeaders(s.sigInput, s.sig)
	return SigVersion1, inputB64, sigB64
}

// Apply sets the signature headers on an outgoing request.
func (s *OutboundSession) Apply(h http.Header) {
	version, input, sig := s.HeaderValues()
	h.Set(HeaderSigVersion, version)
	h.Set(HeaderSigInput, input)
	h.Set(HeaderSig, sig)
}

// VerifiedResponse is a response that passed every check: headers, claims
// parsing, status, body hash, time window, request binding and signature.
type VerifiedResponse struct {
	Claims   ResponseClaims
	SigInput []byte
	Sig      []byte
}

// VerifyResponse authenticates a response against this session.
func (s *OutboundSession) VerifyResponse(
	status int,
	version, sigInputB64, sigB64 string,
	body []byte,
	responderKeys KeyResolver,
) (*VerifiedResponse, error) {
	sigInput, sig, err := DecodeSigHeaders(version, sigInputB64, sigB64)
	if err != nil {
		return nil, err
	}

	var claims ResponseClaims
	if err := strictUnmarshal(sigInput, &claims); err != nil {
		return nil, newErr(KindInvalidSignedInput, "response claims: %v", err)
	}

	if claims.Status != status {
		return nil, &Error{
			Kind:       KindStatusMismatch,
			Reason:     "response claims do not match the received status",
			StatusCode: status,
		}
	}

	pub, ok := responderKeys.ResolveKey(claims.ToolID, claims.ToolKID)
	if !ok {
		return nil, newErr(KindUnknownResponderKey, "no key for tool %q kid %d", claims.ToolID, claims.ToolKID)
	}
	if len(pub) != PublicKeyLen {
		return nil, newErr(KindInvalidResponderPublicKey, "resolved key is %d bytes, want %d", len(pub), PublicKeyLen)
	}

	if claims.BodySha256 != Sha256Hex(body) {
		return nil, newErr(KindBodyHashMismatch, "response body hash does not match claims")
	}
	if err := s.invoker.Policy.Validate(claims.IatMs, claims.ExpMs); err != nil {
		return nil, err
	}
	if claims.ReqSigInputSha256 != s.sigInputSha {
		return nil, newErr(KindRequestBindingMismatch, "response is not bound to this request")
	}
	if err := VerifySignature(ResponseDomainTagV1, sigInput, sig, pub); err != nil {
		return nil, err
	}

	return &VerifiedResponse{Claims: claims, SigInput: sigInput, Sig: sig}, nil
}
