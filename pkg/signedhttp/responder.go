package signedhttp

import (
	"context"
	"crypto/ed25519"
	"fmt"
	"log/slog"
	"net/http"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// ResponderConfig wires a Responder.
type ResponderConfig struct {
	ToolID string
	KID    uint64
	Key    ed25519.PrivateKey
	// InvokerKeys resolves leader public keys, typically loaded from an
	// allowed-leaders file.
	InvokerKeys KeyResolver
	// Store defaults to an in-memory replay store.
	Store ReplayStore
	// Policy defaults to DefaultTimePolicy.
	Policy *TimePolicy
	Logger *slog.Logger
}

// Responder is the Tool side of the protocol: it authenticates inbound
// requests, arbitrates replays, and signs responses bound to the request.
type Responder struct {
	toolID string
	kid    uint64
	key    ed25519.PrivateKey
	keys   KeyResolver
	store  ReplayStore
	policy TimePolicy
	log    *slog.Logger
	tracer trace.Tracer
}

// NewResponder validates the configuration and builds a responder.
func NewResponder(cfg ResponderConfig) (*Responder, error) {
	if cfg.ToolID == "" {
		return nil, fmt.Errorf("responder: tool id is required")
	}
	if len(cfg.Key) != ed25519.PrivateKeySize {
		return nil, fmt.Errorf("responder: signing key is required")
	}
	if cfg.InvokerKeys == nil {
		return nil, fmt.Errorf("responder: invoker key resolver is required")
	}
	if cfg.Store == nil {
		cfg.Store = NewMemoryReplayStore()
	}
	policy := DefaultTimePolicy()
	if cfg.Policy != nil {
		policy = *cfg.Policy
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	return &Responder{
		toolID: cfg.ToolID,
		kid:    cfg.KID,
		key:    cfg.Key,
		keys:   cfg.InvokerKeys,
		store:  cfg.Store,
		policy: policy,
		log:    cfg.Logger,
		tracer: otel.Tracer("nexus/signedhttp"),
	}, nil
}

// DecisionKind discriminates the replay arbitration outcome. Rejections are
// values, not errors: the caller can still produce a signed error response
// bound to the authenticated request.
type DecisionKind uint8

const (
	// DecisionProceed: first delivery; process the request and Finish.
	DecisionProceed DecisionKind = iota
	// DecisionReturn: completed before; return Stored bit-exact.
	DecisionReturn
	// DecisionRejectInFlight: same request currently being processed.
	DecisionRejectInFlight
	// DecisionRejectConflict: nonce reused with a different request.
	DecisionRejectConflict
)

// Decision is the responder's verdict on an inbound request.
type Decision struct {
	Kind    DecisionKind
	Session *InboundSession
	Stored  *StoredResponse
}

// InboundSession is an authenticated inbound request. A Proceed session
// holds an in-flight reservation that is released on Close unless Finish
// disarmed it; sessions attached to rejections carry no reservation and
// never persist their responses.
type InboundSession struct {
	responder   *Responder
	claims      RequestClaims
	sigInputSha string
	storeKey    string

	// armed guards the in-flight reservation; Finish disarms, Close
	// releases while armed.
	armed   bool
	persist bool
}

// AuthenticateInvoke verifies an inbound request end to end and consults
// the replay store.
func (r *Responder) AuthenticateInvoke(ctx context.Context, meta RequestMeta, body []byte, version, sigInputB64, sigB64 string) (*Decision, error) {
	ctx, span := r.tracer.Start(ctx, "signedhttp.AuthenticateInvoke")
	defer span.End()

	sigInput, sig, err := DecodeSigHeaders(version, sigInputB64, sigB64)
	if err != nil {
		return nil, err
	}

	var claims RequestClaims
	if err := strictUnmarshal(sigInput, &claims); err != nil {
		return nil, newErr(KindInvalidSignedInput, "request claims: %v", err)
	}

	if claims.ToolID != r.toolID {
		return nil, newErr(KindToolIDMismatch, "request addressed to %q, this tool is %q", claims.ToolID, r.toolID)
	}
	if claims.Method != meta.Method {
		return nil, newErr(KindMethodMismatch, "claims method %q, transport method %q", claims.Method, meta.Method)
	}
	if claims.Path != meta.Path {
		return nil, newErr(KindPathMismatch, "claims path %q, transport path %q", claims.Path, meta.Path)
	}
	if claims.Query != meta.Query {
		return nil, newErr(KindQueryMismatch, "claims query %q, transport query %q", claims.Query, meta.Query)
	}
	if claims.BodySha256 != Sha256Hex(body) {
		return nil, newErr(KindBodyHashMismatch, "request body hash does not match claims")
	}
	if err := r.policy.Validate(claims.IatMs, claims.ExpMs); err != nil {
		return nil, err
	}

	pub, ok := r.keys.ResolveKey(claims.LeaderID, claims.LeaderKID)
	if !ok {
		return nil, newErr(KindUnknownInvokerKey, "no key for leader %q kid %d", claims.LeaderID, claims.LeaderKID)
	}
	if len(pub) != PublicKeyLen {
		return nil, newErr(KindInvalidInvokerPublicKey, "resolved key is %d bytes, want %d", len(pub), PublicKeyLen)
	}
	if err := VerifySignature(RequestDomainTagV1, sigInput, sig, pub); err != nil {
		return nil, err
	}

	span.SetAttributes(
		attribute.String("nexus.leader_id", claims.LeaderID),
		attribute.String("nexus.nonce", claims.Nonce),
	)

	key := ReplayKey(claims.LeaderID, claims.Nonce)
	requestHash := Sha256Hex(sigInput)

	result, err := r.store.BeginOrReplay(ctx, key, requestHash, claims.ExpMs)
	if err != nil {
		return nil, fmt.Errorf("replay store: %w", err)
	}

	session := &InboundSession{
		responder:   r,
		claims:      claims,
		sigInputSha: requestHash,
		storeKey:    key,
	}

	switch result.Outcome {
	case BeginProceed:
		session.armed = true
		session.persist = true
		return &Decision{Kind: DecisionProceed, Session: session}, nil
	case BeginReplay:
		r.log.Debug("replaying completed response", "leader_id", claims.LeaderID, "nonce", claims.Nonce)
		return &Decision{Kind: DecisionReturn, Stored: result.Stored}, nil
	case BeginInFlight:
		return &Decision{Kind: DecisionRejectInFlight, Session: session}, nil
	default:
		r.log.Warn("replay conflict", "leader_id", claims.LeaderID, "nonce", claims.Nonce)
		return &Decision{Kind: DecisionRejectConflict, Session: session}, nil
	}
}

// Claims returns the authenticated request claims.
func (s *InboundSession) Claims() RequestClaims { return s.claims }

// Finish signs a response bound to the verified request, persists it under
// the nonce key when this session holds the reservation, and disarms the
// drop-guard.
func (s *InboundSession) Finish(ctx context.Context, status int, body []byte) (*StoredResponse, error) {
	r := s.responder
	iat := r.policy.nowMs()

	claims := ResponseClaims{
		ToolID:            r.toolID,
		ToolKID:           r.kid,
		IatMs:             iat,
		ExpMs:             iat + r.policy.MaxValidityMs,
		Nonce:             s.claims.Nonce,
		ReqSigInputSha256: s.sigInputSha,
		Status:            status,
		BodySha256:        Sha256Hex(body),
	}

	sigInput, sig, err := SignClaims(ResponseDomainTagV1, claims, r.key)
	if err != nil {
		return nil, err
	}

	resp := &StoredResponse{Status: status, Body: body, SigInput: sigInput, Sig: sig}

	if s.persist {
		if err := r.store.Complete(ctx, s.storeKey, s.sigInputSha, resp); err != nil {
			return nil, fmt.Errorf("replay store: %w", err)
		}
	}
	s.armed = false
	return resp, nil
}

// Close releases the in-flight reservation when the session is dropped
// without finishing. Safe to call multiple times and after Finish.
func (s *InboundSession) Close(ctx context.Context) error {
	if !s.armed {
		return nil
	}
	s.armed = false
	if err := s.responder.store.Release(ctx, s.storeKey); err != nil {
		return fmt.Errorf("replay store: %w", err)
	}
	return nil
}

// ResponseHeaders renders the header triple of a stored response.
func (resp *StoredResponse) ResponseHeaders() http.Header {
	inputB64, sigB64 := EncodeSigHeaders(resp.SigInput, resp.Sig)
	h := http.Header{}
	h.Set(HeaderSigVersion, SigVersion1)
	h.Set(HeaderSigInput, inputB64)
	h.Set(HeaderSig, sigB64)
	return h
}
