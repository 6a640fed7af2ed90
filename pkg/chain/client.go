package chain

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/time/rate"
)

// ContentFieldMask asks the server for object content alongside metadata.
var ContentFieldMask = []string{"object_id", "owner", "version", "digest", "balance", "json"}

// MetadataFieldMask omits content; useful when callers need only
// version/digest/owner.
var MetadataFieldMask = []string{"object_id", "owner", "version", "digest", "balance"}

// DynamicFieldPageSize is the page size used when listing dynamic fields.
const DynamicFieldPageSize = 1000

// Config holds the ledger RPC client configuration.
type Config struct {
	// Endpoint is the JSON-RPC HTTP endpoint.
	Endpoint string
	// Timeout bounds a single HTTP round trip. Defaults to 30s.
	Timeout time.Duration
	// RequestsPerSecond throttles outgoing calls. Zero disables throttling.
	RequestsPerSecond float64
	// Burst is the limiter burst size. Defaults to 10 when throttled.
	Burst int
	// Logger defaults to slog.Default.
	Logger *slog.Logger
	// HTTPClient overrides the transport. Mostly for tests.
	HTTPClient *http.Client
}

// Client is a JSON-RPC ledger client. Its request-level methods are
// individually re-entrant; one logical client is shared across the crawler
// and the facade.
type Client struct {
	endpoint string
	http     *http.Client
	limiter  *rate.Limiter
	log      *slog.Logger
	tracer   trace.Tracer
	nextID   atomic.Uint64
}

// NewClient validates the configuration and builds a client.
func NewClient(cfg Config) (*Client, error) {
	if cfg.Endpoint == "" {
		return nil, fmt.Errorf("chain client: endpoint is required")
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: cfg.Timeout}
	}

	var limiter *rate.Limiter
	if cfg.RequestsPerSecond > 0 {
		burst := cfg.Burst
		if burst <= 0 {
			burst = 10
		}
		limiter = rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), burst)
	}

	return &Client{
		endpoint: cfg.Endpoint,
		http:     httpClient,
		limiter:  limiter,
		log:      cfg.Logger,
		tracer:   otel.Tracer("nexus/chain"),
	}, nil
}

type rpcRequest struct {
	JSONRPC string `json:"jsonrpc"`
	ID      uint64 `json:"id"`
	Method  string `json:"method"`
	Params  []any  `json:"params"`
}

type rpcResponse struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      uint64          `json:"id"`
	Result  json.RawMessage `json:"result"`
	Error   *RPCError       `json:"error"`
}

// RPCError is a JSON-RPC error object returned by the ledger.
type RPCError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (e *RPCError) Error() string {
	return fmt.Sprintf("rpc error %d: %s", e.Code, e.Message)
}

// Call performs one JSON-RPC request and decodes the result into out.
func (c *Client) Call(ctx context.Context, method string, params []any, out any) error {
	ctx, span := c.tracer.Start(ctx, "chain.Call",
		trace.WithAttributes(attribute.String("rpc.method", method)))
	defer span.End()

	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return fmt.Errorf("rate limit wait: %w", err)
		}
	}

	payload, err := json.Marshal(rpcRequest{
		JSONRPC: "2.0",
		ID:      c.nextID.Add(1),
		Method:  method,
		Params:  params,
	})
	if err != nil {
		return fmt.Errorf("marshal rpc request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("build rpc request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("call %s: %w", method, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 64<<20))
	if err != nil {
		return fmt.Errorf("read %s response: %w", method, err)
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("call %s: unexpected status %d", method, resp.StatusCode)
	}

	var decoded rpcResponse
	if err := json.Unmarshal(body, &decoded); err != nil {
		return fmt.Errorf("decode %s response: %w", method, err)
	}
	if decoded.Error != nil {
		return fmt.Errorf("call %s: %w", method, decoded.Error)
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(decoded.Result, out); err != nil {
		return fmt.Errorf("decode %s result: %w", method, err)
	}
	return nil
}

// RawObject is an object as returned by the ledger, prior to typed
// deserialization by the crawler.
type RawObject struct {
	ObjectID ObjectID        `json:"object_id"`
	Version  U64String       `json:"version"`
	Digest   Digest          `json:"digest"`
	Owner    Owner           `json:"owner"`
	Balance  OptionU64String `json:"balance"`
	JSON     json.RawMessage `json:"json,omitempty"`
}

// GetObject fetches a single object with the given field mask.
func (c *Client) GetObject(ctx context.Context, id ObjectID, mask []string) (*RawObject, error) {
	var out *RawObject
	if err := c.Call(ctx, "ledger_getObject", []any{id.String(), mask}, &out); err != nil {
		return nil, err
	}
	if out == nil {
		return nil, fmt.Errorf("object %s: %w", id, ErrNotFound)
	}
	return out, nil
}

// BatchGetObjects fetches many objects in one round trip, preserving order.
// Missing objects come back as nil entries.
func (c *Client) BatchGetObjects(ctx context.Context, ids []ObjectID, mask []string) ([]*RawObject, error) {
	strIDs := make([]string, len(ids))
	for i, id := range ids {
		strIDs[i] = id.String()
	}
	var out []*RawObject
	if err := c.Call(ctx, "ledger_batchGetObjects", []any{strIDs, mask}, &out); err != nil {
		return nil, err
	}
	if len(out) != len(ids) {
		return nil, fmt.Errorf("batch get: requested %d objects, got %d", len(ids), len(out))
	}
	return out, nil
}

// GetEpoch returns the current epoch descriptor, including the reference gas
// price.
func (c *Client) GetEpoch(ctx context.Context) (*Epoch, error) {
	var out Epoch
	if err := c.Call(ctx, "ledger_getEpoch", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

type dynamicFieldPage struct {
	Fields     []DynamicFieldInfo `json:"fields"`
	NextCursor *string            `json:"next_cursor"`
}

// ListDynamicFields lists every dynamic field of a parent, looping pages of
// DynamicFieldPageSize until the server returns no continuation token.
func (c *Client) ListDynamicFields(ctx context.Context, parent ObjectID) ([]DynamicFieldInfo, error) {
	var (
		all    []DynamicFieldInfo
		cursor *string
	)
	mask := []string{"name", "child_id", "field_id"}

	for {
		var page dynamicFieldPage
		params := []any{parent.String(), mask, DynamicFieldPageSize, cursor}
		if err := c.Call(ctx, "state_listDynamicFields", params, &page); err != nil {
			return nil, err
		}
		all = append(all, page.Fields...)
		if page.NextCursor == nil {
			return all, nil
		}
		cursor = page.NextCursor
	}
}

// ObjectChange describes one object mutation in transaction effects.
type ObjectChange struct {
	Kind       string    `json:"kind"` // created | mutated | deleted
	ObjectID   ObjectID  `json:"object_id"`
	Version    U64String `json:"version"`
	Digest     Digest    `json:"digest"`
	ObjectType string    `json:"object_type"`
	Owner      *Owner    `json:"owner,omitempty"`
}

// ExecutedTransaction is the ledger's response to transaction execution.
type ExecutedTransaction struct {
	Digest        Digest         `json:"digest"`
	Status        string         `json:"status"` // success | failure
	Error         string         `json:"error,omitempty"`
	ObjectChanges []ObjectChange `json:"object_changes"`
	Events        []Event        `json:"events"`
	Checkpoint    *U64String     `json:"checkpoint,omitempty"`
}

// ExecuteTransaction submits a signed transaction. Never retried: submission
// is not idempotent.
func (c *Client) ExecuteTransaction(ctx context.Context, txBytes []byte, signatures []string) (*ExecutedTransaction, error) {
	var out ExecutedTransaction
	params := []any{jsonBytes(txBytes), signatures}
	if err := c.Call(ctx, "transaction_execute", params, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// GetTransactionCheckpoint reports the checkpoint sequence a transaction was
// included in, or nil when it is not yet checkpointed.
func (c *Client) GetTransactionCheckpoint(ctx context.Context, digest Digest) (*uint64, error) {
	var out struct {
		Checkpoint OptionU64String `json:"checkpoint"`
	}
	if err := c.Call(ctx, "transaction_getCheckpoint", []any{string(digest)}, &out); err != nil {
		return nil, err
	}
	return out.Checkpoint.Ptr(), nil
}

// EventPage is one page of an event query.
type EventPage struct {
	Events     []Event `json:"events"`
	NextCursor *string `json:"next_cursor"`
}

// QueryEvents returns events emitted by a package after the given cursor.
func (c *Client) QueryEvents(ctx context.Context, pkg ObjectID, cursor *string, limit int) (*EventPage, error) {
	var out EventPage
	if err := c.Call(ctx, "ledger_queryEvents", []any{pkg.String(), cursor, limit}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// ErrNotFound reports that an object does not exist on the ledger.
var ErrNotFound = fmt.Errorf("object not found")

type jsonBytes []byte

func (b jsonBytes) MarshalJSON() ([]byte, error) {
	return json.Marshal([]byte(b))
}
