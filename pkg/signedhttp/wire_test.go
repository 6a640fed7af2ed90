package signedhttp

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRequestClaimsFieldOrder(t *testing.T) {
	claims := RequestClaims{
		LeaderID:   "leader-1",
		LeaderKID:  3,
		ToolID:     "tool-1",
		IatMs:      1000,
		ExpMs:      2000,
		Nonce:      "n",
		Method:     "POST",
		Path:       "/invoke",
		Query:      "a=1",
		BodySha256: Sha256Hex([]byte("x")),
	}
	data, err := json.Marshal(claims)
	require.NoError(t, err)

	keys := []string{
		"leader_id", "leader_kid", "tool_id", "iat_ms", "exp_ms",
		"nonce", "method", "path", "query", "body_sha256",
	}
	last := -1
	for _, k := range keys {
		idx := strings.Index(string(data), `"`+k+`"`)
		require.Greater(t, idx, last, "field %q out of order", k)
		last = idx
	}
}

func TestResponseClaimsFieldOrder(t *testing.T) {
	claims := ResponseClaims{ToolID: "t", ToolKID: 1, IatMs: 1, ExpMs: 2, Nonce: "n", ReqSigInputSha256: "h", Status: 200, BodySha256: "b"}
	data, err := json.Marshal(claims)
	require.NoError(t, err)

	keys := []string{"tool_id", "tool_kid", "iat_ms", "exp_ms", "nonce", "req_sig_input_sha256", "status", "body_sha256"}
	last := -1
	for _, k := range keys {
		idx := strings.Index(string(data), `"`+k+`"`)
		require.Greater(t, idx, last, "field %q out of order", k)
		last = idx
	}
}

func TestSignVerifyRoundtrip(t *testing.T) {
	pub, priv, err := GenerateKeypair()
	require.NoError(t, err)

	claims := RequestClaims{LeaderID: "l", ToolID: "t", IatMs: 1, ExpMs: 2, Nonce: "n", Method: "POST", Path: "/invoke", BodySha256: Sha256Hex(nil)}
	sigInput, sig, err := SignClaims(RequestDomainTagV1, claims, priv)
	require.NoError(t, err)

	require.NoError(t, VerifySignature(RequestDomainTagV1, sigInput, sig, pub))
}

func TestDomainSeparation(t *testing.T) {
	pub, priv, err := GenerateKeypair()
	require.NoError(t, err)

	claims := RequestClaims{LeaderID: "l", ToolID: "t"}
	sigInput, sig, err := SignClaims(RequestDomainTagV1, claims, priv)
	require.NoError(t, err)

	// A request signature must never verify under the response tag.
	err = VerifySignature(ResponseDomainTagV1, sigInput, sig, pub)
	assert.Equal(t, KindInvalidSignature, KindOf(err))
}

func TestDecodeSigHeadersErrors(t *testing.T) {
	pub, priv, err := GenerateKeypair()
	require.NoError(t, err)
	_ = pub

	sigInput, sig, err := SignClaims(RequestDomainTagV1, RequestClaims{}, priv)
	require.NoError(t, err)
	inputB64, sigB64 := EncodeSigHeaders(sigInput, sig)

	cases := []struct {
		name                   string
		version, input, sigval string
		kind                   ErrorKind
	}{
		{"missing version", "", inputB64, sigB64, KindMissingHeader},
		{"missing input", "1", "", sigB64, KindMissingHeader},
		{"missing sig", "1", inputB64, "", KindMissingHeader},
		{"bad version", "2", inputB64, sigB64, KindUnsupportedVersion},
		{"bad base64 input", "1", "!!!", sigB64, KindInvalidBase64},
		{"bad base64 sig", "1", inputB64, "!!!", KindInvalidBase64},
		{"short signature", "1", inputB64, b64.EncodeToString([]byte("short")), KindInvalidSignatureLen},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, _, err := DecodeSigHeaders(tc.version, tc.input, tc.sigval)
			assert.Equal(t, tc.kind, KindOf(err))
		})
	}
}

func TestDecodeSigHeadersRejectsPaddedBase64(t *testing.T) {
	_, priv, err := GenerateKeypair()
	require.NoError(t, err)

	sigInput, sig, err := SignClaims(RequestDomainTagV1, RequestClaims{LeaderID: "l"}, priv)
	require.NoError(t, err)
	_, sigB64 := EncodeSigHeaders(sigInput, sig)

	// Standard padded base64 is not URL-safe unpadded; decoding must fail.
	padded := b64.EncodeToString(sigInput) + "=="
	_, _, err = DecodeSigHeaders("1", padded, sigB64)
	assert.Equal(t, KindInvalidBase64, KindOf(err))
}

func TestStrictUnmarshalRejectsUnknownFields(t *testing.T) {
	var claims RequestClaims
	err := strictUnmarshal([]byte(`{"leader_id":"l","extra":true}`), &claims)
	require.Error(t, err)
}

func TestStrictUnmarshalRejectsTrailingData(t *testing.T) {
	var claims RequestClaims
	err := strictUnmarshal([]byte(`{"leader_id":"l"}{}`), &claims)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "trailing")
}

func TestSha256HexEmptyBody(t *testing.T) {
	// Both sides hash the empty body to the well-known empty digest.
	assert.Equal(t,
		"e3b0c44298fc1c149afbf4c8996fb92427ae41e4649b934ca495991b7852b855",
		Sha256Hex(nil))
	assert.Equal(t, Sha256Hex(nil), Sha256Hex([]byte{}))
}
