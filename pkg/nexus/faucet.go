package nexus

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v5"

	"github.com/Talus-Network/nexus-sdk-sub002/pkg/chain"
)

// faucetRequestTimeout bounds a single faucet round trip.
const faucetRequestTimeout = 10 * time.Second

// FaucetClient requests test funds for an address. Faucets are flaky, so
// transient failures are retried; rejections are not.
type FaucetClient struct {
	url    string
	client *http.Client
}

// NewFaucetClient builds a client for the faucet endpoint.
func NewFaucetClient(url string) (*FaucetClient, error) {
	if url == "" {
		return nil, configurationf("a faucet URL is required")
	}
	return &FaucetClient{
		url:    url,
		client: &http.Client{Timeout: faucetRequestTimeout},
	}, nil
}

type faucetRequest struct {
	FixedAmountRequest struct {
		Recipient chain.Address `json:"recipient"`
	} `json:"FixedAmountRequest"`
}

// RequestFunds asks the faucet to fund the recipient. Server-side and
// network failures are retried with exponential backoff; client-side
// rejections fail immediately.
func (f *FaucetClient) RequestFunds(ctx context.Context, recipient chain.Address) error {
	var req faucetRequest
	req.FixedAmountRequest.Recipient = recipient
	payload, err := json.Marshal(req)
	if err != nil {
		return parsingf("encode faucet request: %v", err)
	}

	var lastStatus int
	_, err = backoff.Retry(ctx, func() (struct{}, error) {
		return struct{}{}, f.post(ctx, payload, &lastStatus)
	}, backoff.WithBackOff(backoff.NewExponentialBackOff()), backoff.WithMaxTries(4))
	if err != nil {
		fe := rpcError("request faucet funds", err)
		fe.StatusCode = lastStatus
		return fe
	}
	return nil
}

func (f *FaucetClient) post(ctx context.Context, payload []byte, lastStatus *int) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, f.url, bytes.NewReader(payload))
	if err != nil {
		return backoff.Permanent(err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := f.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
	*lastStatus = resp.StatusCode

	switch {
	case resp.StatusCode < 300:
		return nil
	case resp.StatusCode >= 500:
		return fmt.Errorf("faucet returned status %d", resp.StatusCode)
	default:
		// The faucet rejected the request; retrying cannot change its mind.
		return backoff.Permanent(fmt.Errorf("faucet returned status %d", resp.StatusCode))
	}
}
