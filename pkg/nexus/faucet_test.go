package nexus

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Talus-Network/nexus-sdk-sub002/pkg/chain"
)

func TestFaucetClientRequiresURL(t *testing.T) {
	_, err := NewFaucetClient("")
	require.Error(t, err)
	assert.True(t, IsKind(err, KindConfiguration))
}

func TestFaucetRetriesServerFailures(t *testing.T) {
	var requests int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests++
		var req faucetRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, chain.MustParseAddress("0x42"), req.FixedAmountRequest.Recipient)

		if requests < 3 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.WriteHeader(http.StatusCreated)
	}))
	defer srv.Close()

	faucet, err := NewFaucetClient(srv.URL)
	require.NoError(t, err)

	err = faucet.RequestFunds(context.Background(), chain.MustParseAddress("0x42"))
	require.NoError(t, err)
	assert.Equal(t, 3, requests)
}

func TestFaucetDoesNotRetryRejections(t *testing.T) {
	var requests int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests++
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	faucet, err := NewFaucetClient(srv.URL)
	require.NoError(t, err)

	err = faucet.RequestFunds(context.Background(), chain.MustParseAddress("0x42"))
	require.Error(t, err)
	assert.True(t, IsKind(err, KindRpc))
	assert.Equal(t, 1, requests)

	var fe *Error
	require.ErrorAs(t, err, &fe)
	assert.Equal(t, http.StatusTooManyRequests, fe.StatusCode)
}
