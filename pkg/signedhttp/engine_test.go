package signedhttp

import (
	"context"
	"crypto/ed25519"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// zeroNonce is 16 zero bytes in unpadded base64url.
const zeroNonce = "AAAAAAAAAAAAAAAAAAAAAA"

type fixture struct {
	invoker   *Invoker
	responder *Responder
	toolPub   ed25519.PublicKey
	toolKeys  StaticKeys
	store     *MemoryReplayStore
}

func newFixture(t *testing.T, nowMs int64) *fixture {
	t.Helper()

	leaderPub, leaderPriv, err := GenerateKeypair()
	require.NoError(t, err)
	toolPub, toolPriv, err := GenerateKeypair()
	require.NoError(t, err)

	policy := DefaultTimePolicy()
	policy.Now = fixedClock(nowMs)

	invoker := NewInvoker("leader-1", 0, leaderPriv)
	invoker.Policy = policy

	leaderKeys := StaticKeys{}
	leaderKeys.Add("leader-1", 0, leaderPub)

	store := NewMemoryReplayStore().WithClock(fixedClock(nowMs))

	responder, err := NewResponder(ResponderConfig{
		ToolID:      "tool-1",
		KID:         0,
		Key:         toolPriv,
		InvokerKeys: leaderKeys,
		Store:       store,
		Policy:      &policy,
	})
	require.NoError(t, err)

	toolKeys := StaticKeys{}
	toolKeys.Add("tool-1", 0, toolPub)

	return &fixture{invoker: invoker, responder: responder, toolPub: toolPub, toolKeys: toolKeys, store: store}
}

func (f *fixture) authenticate(t *testing.T, session *OutboundSession, meta RequestMeta, body []byte) *Decision {
	t.Helper()
	version, input, sig := session.HeaderValues()
	decision, err := f.responder.AuthenticateInvoke(context.Background(), meta, body, version, input, sig)
	require.NoError(t, err)
	return decision
}

func TestInvokeRoundtripAndIdempotentRetry(t *testing.T) {
	f := newFixture(t, 1_000_000)
	meta := RequestMeta{Method: http.MethodPost, Path: "/invoke", Query: ""}
	body := []byte("ping")

	session, err := f.invoker.BeginInvoke("tool-1", meta, body, WithNonce(zeroNonce))
	require.NoError(t, err)
	require.Equal(t, zeroNonce, session.Claims().Nonce)

	decision := f.authenticate(t, session, meta, body)
	require.Equal(t, DecisionProceed, decision.Kind)

	resp, err := decision.Session.Finish(context.Background(), 200, []byte("pong"))
	require.NoError(t, err)
	require.Equal(t, 200, resp.Status)

	// The invoker accepts the signed response.
	respHeaders := resp.ResponseHeaders()
	verified, err := session.VerifyResponse(
		resp.Status,
		respHeaders.Get(HeaderSigVersion),
		respHeaders.Get(HeaderSigInput),
		respHeaders.Get(HeaderSig),
		resp.Body,
		f.toolKeys,
	)
	require.NoError(t, err)
	assert.Equal(t, zeroNonce, verified.Claims.Nonce)
	assert.Equal(t, session.SigInputSha256(), verified.Claims.ReqSigInputSha256)

	// Transport redelivers the identical request: bit-exact replay.
	retry := f.authenticate(t, session, meta, body)
	require.Equal(t, DecisionReturn, retry.Kind)
	assert.Equal(t, resp.SigInput, retry.Stored.SigInput)
	assert.Equal(t, resp.Sig, retry.Stored.Sig)
	assert.Equal(t, resp.Body, retry.Stored.Body)
	assert.Equal(t, resp.Status, retry.Stored.Status)
}

func TestNonceConflictDifferentBody(t *testing.T) {
	f := newFixture(t, 1_000_000)
	meta := RequestMeta{Method: http.MethodPost, Path: "/invoke"}

	first, err := f.invoker.BeginInvoke("tool-1", meta, []byte("ping"), WithNonce(zeroNonce))
	require.NoError(t, err)
	decision := f.authenticate(t, first, meta, []byte("ping"))
	require.Equal(t, DecisionProceed, decision.Kind)
	_, err = decision.Session.Finish(context.Background(), 200, []byte("pong"))
	require.NoError(t, err)

	// Same nonce, different body.
	second, err := f.invoker.BeginInvoke("tool-1", meta, []byte("pang"), WithNonce(zeroNonce))
	require.NoError(t, err)
	conflict := f.authenticate(t, second, meta, []byte("pang"))
	assert.Equal(t, DecisionRejectConflict, conflict.Kind)
}

func TestInFlightRejection(t *testing.T) {
	f := newFixture(t, 1_000_000)
	meta := RequestMeta{Method: http.MethodPost, Path: "/invoke"}
	body := []byte("ping")

	session, err := f.invoker.BeginInvoke("tool-1", meta, body, WithNonce(zeroNonce))
	require.NoError(t, err)

	first := f.authenticate(t, session, meta, body)
	require.Equal(t, DecisionProceed, first.Kind)

	// Second delivery while the first is still processing.
	second := f.authenticate(t, session, meta, body)
	assert.Equal(t, DecisionRejectInFlight, second.Kind)

	// A rejection session signs a response without clobbering the
	// in-flight reservation.
	_, err = second.Session.Finish(context.Background(), http.StatusConflict, []byte(`{"error":"in flight"}`))
	require.NoError(t, err)
	third := f.authenticate(t, session, meta, body)
	assert.Equal(t, DecisionRejectInFlight, third.Kind)
}

func TestDropGuardReleasesReservation(t *testing.T) {
	f := newFixture(t, 1_000_000)
	meta := RequestMeta{Method: http.MethodPost, Path: "/invoke"}
	body := []byte("ping")

	session, err := f.invoker.BeginInvoke("tool-1", meta, body, WithNonce(zeroNonce))
	require.NoError(t, err)

	decision := f.authenticate(t, session, meta, body)
	require.Equal(t, DecisionProceed, decision.Kind)

	// Handler crashed before Finish; Close releases the reservation.
	require.NoError(t, decision.Session.Close(context.Background()))
	require.NoError(t, decision.Session.Close(context.Background())) // idempotent

	retry := f.authenticate(t, session, meta, body)
	assert.Equal(t, DecisionProceed, retry.Kind)
}

func TestCloseAfterFinishKeepsCompletion(t *testing.T) {
	f := newFixture(t, 1_000_000)
	meta := RequestMeta{Method: http.MethodPost, Path: "/invoke"}
	body := []byte("ping")

	session, err := f.invoker.BeginInvoke("tool-1", meta, body, WithNonce(zeroNonce))
	require.NoError(t, err)
	decision := f.authenticate(t, session, meta, body)
	require.Equal(t, DecisionProceed, decision.Kind)

	_, err = decision.Session.Finish(context.Background(), 200, []byte("pong"))
	require.NoError(t, err)
	require.NoError(t, decision.Session.Close(context.Background()))

	retry := f.authenticate(t, session, meta, body)
	assert.Equal(t, DecisionReturn, retry.Kind)
}

func TestAuthenticateRejectsMismatches(t *testing.T) {
	f := newFixture(t, 1_000_000)
	meta := RequestMeta{Method: http.MethodPost, Path: "/invoke", Query: "a=1"}
	body := []byte("ping")

	session, err := f.invoker.BeginInvoke("tool-1", meta, body)
	require.NoError(t, err)
	version, input, sig := session.HeaderValues()

	cases := []struct {
		name string
		meta RequestMeta
		body []byte
		kind ErrorKind
	}{
		{"method", RequestMeta{Method: "GET", Path: "/invoke", Query: "a=1"}, body, KindMethodMismatch},
		{"path", RequestMeta{Method: "POST", Path: "/other", Query: "a=1"}, body, KindPathMismatch},
		{"query", RequestMeta{Method: "POST", Path: "/invoke", Query: "a=2"}, body, KindQueryMismatch},
		{"body", meta, []byte("tampered"), KindBodyHashMismatch},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := f.responder.AuthenticateInvoke(context.Background(), tc.meta, tc.body, version, input, sig)
			assert.Equal(t, tc.kind, KindOf(err))
		})
	}
}

func TestAuthenticateRejectsWrongTool(t *testing.T) {
	f := newFixture(t, 1_000_000)
	meta := RequestMeta{Method: http.MethodPost, Path: "/invoke"}

	session, err := f.invoker.BeginInvoke("some-other-tool", meta, nil)
	require.NoError(t, err)
	version, input, sig := session.HeaderValues()

	_, err = f.responder.AuthenticateInvoke(context.Background(), meta, nil, version, input, sig)
	assert.Equal(t, KindToolIDMismatch, KindOf(err))
}

func TestAuthenticateRejectsUnknownLeader(t *testing.T) {
	f := newFixture(t, 1_000_000)
	meta := RequestMeta{Method: http.MethodPost, Path: "/invoke"}

	_, strangerPriv, err := GenerateKeypair()
	require.NoError(t, err)
	stranger := NewInvoker("leader-2", 0, strangerPriv)
	stranger.Policy = f.invoker.Policy

	session, err := stranger.BeginInvoke("tool-1", meta, nil)
	require.NoError(t, err)
	version, input, sig := session.HeaderValues()

	_, err = f.responder.AuthenticateInvoke(context.Background(), meta, nil, version, input, sig)
	assert.Equal(t, KindUnknownInvokerKey, KindOf(err))
}

func TestAuthenticateRejectsForgedSignature(t *testing.T) {
	f := newFixture(t, 1_000_000)
	meta := RequestMeta{Method: http.MethodPost, Path: "/invoke"}

	// Right claims, wrong private key for the registered public key.
	_, forgedPriv, err := GenerateKeypair()
	require.NoError(t, err)
	forger := NewInvoker("leader-1", 0, forgedPriv)
	forger.Policy = f.invoker.Policy

	session, err := forger.BeginInvoke("tool-1", meta, nil)
	require.NoError(t, err)
	version, input, sig := session.HeaderValues()

	_, err = f.responder.AuthenticateInvoke(context.Background(), meta, nil, version, input, sig)
	assert.Equal(t, KindInvalidSignature, KindOf(err))
}

func TestAuthenticateRejectsExpired(t *testing.T) {
	f := newFixture(t, 1_000_000)
	meta := RequestMeta{Method: http.MethodPost, Path: "/invoke"}

	session, err := f.invoker.BeginInvoke("tool-1", meta, nil)
	require.NoError(t, err)
	version, input, sig := session.HeaderValues()

	// Move the responder's clock past exp + skew.
	late := f.invoker.Policy
	late.Now = fixedClock(1_000_000 + late.MaxValidityMs + late.SkewMs + 1)
	f.responder.policy = late

	_, err = f.responder.AuthenticateInvoke(context.Background(), meta, nil, version, input, sig)
	assert.Equal(t, KindExpired, KindOf(err))
}

func TestVerifyResponseRejections(t *testing.T) {
	f := newFixture(t, 1_000_000)
	meta := RequestMeta{Method: http.MethodPost, Path: "/invoke"}
	body := []byte("ping")

	session, err := f.invoker.BeginInvoke("tool-1", meta, body)
	require.NoError(t, err)
	decision := f.authenticate(t, session, meta, body)
	require.Equal(t, DecisionProceed, decision.Kind)
	resp, err := decision.Session.Finish(context.Background(), 200, []byte("pong"))
	require.NoError(t, err)
	h := resp.ResponseHeaders()

	t.Run("status mismatch", func(t *testing.T) {
		_, err := session.VerifyResponse(500, h.Get(HeaderSigVersion), h.Get(HeaderSigInput), h.Get(HeaderSig), resp.Body, f.toolKeys)
		require.Equal(t, KindStatusMismatch, KindOf(err))
		var verr *Error
		require.ErrorAs(t, err, &verr)
		assert.Equal(t, 500, verr.StatusCode)
	})

	t.Run("body tampered", func(t *testing.T) {
		_, err := session.VerifyResponse(200, h.Get(HeaderSigVersion), h.Get(HeaderSigInput), h.Get(HeaderSig), []byte("gnop"), f.toolKeys)
		assert.Equal(t, KindBodyHashMismatch, KindOf(err))
	})

	t.Run("unknown responder key", func(t *testing.T) {
		_, err := session.VerifyResponse(200, h.Get(HeaderSigVersion), h.Get(HeaderSigInput), h.Get(HeaderSig), resp.Body, StaticKeys{})
		assert.Equal(t, KindUnknownResponderKey, KindOf(err))
	})

	t.Run("binding mismatch", func(t *testing.T) {
		// A response signed for a different request must not verify here.
		other, err := f.invoker.BeginInvoke("tool-1", meta, []byte("other"))
		require.NoError(t, err)
		otherDecision := f.authenticate(t, other, meta, []byte("other"))
		require.Equal(t, DecisionProceed, otherDecision.Kind)
		otherResp, err := otherDecision.Session.Finish(context.Background(), 200, []byte("pong"))
		require.NoError(t, err)
		oh := otherResp.ResponseHeaders()

		_, err = session.VerifyResponse(200, oh.Get(HeaderSigVersion), oh.Get(HeaderSigInput), oh.Get(HeaderSig), otherResp.Body, f.toolKeys)
		assert.Equal(t, KindRequestBindingMismatch, KindOf(err))
	})
}

func TestHeaderValuesStable(t *testing.T) {
	f := newFixture(t, 1_000_000)
	session, err := f.invoker.BeginInvoke("tool-1", RequestMeta{Method: "POST", Path: "/invoke"}, []byte("ping"))
	require.NoError(t, err)

	v1, i1, s1 := session.HeaderValues()
	v2, i2, s2 := session.HeaderValues()
	assert.Equal(t, v1, v2)
	assert.Equal(t, i1, i2)
	assert.Equal(t, s1, s2)
}

func TestNewNonceLength(t *testing.T) {
	nonce := NewNonce()
	raw, err := b64.DecodeString(nonce)
	require.NoError(t, err)
	assert.Len(t, raw, 16)
	assert.NotEqual(t, NewNonce(), nonce)
}

func TestExpiredReservationPurged(t *testing.T) {
	now := int64(1_000_000)
	clockMs := now
	clock := func() int64 { return clockMs }

	store := NewMemoryReplayStore().WithClock(func() time.Time { return time.UnixMilli(clock()) })

	res, err := store.BeginOrReplay(context.Background(), "l:n", "hash", now+60_000)
	require.NoError(t, err)
	require.Equal(t, BeginProceed, res.Outcome)

	// Entry expires; a fresh reservation succeeds with a different hash.
	clockMs = now + 60_001
	res, err = store.BeginOrReplay(context.Background(), "l:n", "other-hash", clockMs+60_000)
	require.NoError(t, err)
	assert.Equal(t, BeginProceed, res.Outcome)
	assert.Equal(t, 1, store.Len())
}
