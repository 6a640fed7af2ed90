// Package nexus is the high-level client facade: action groups for
// workflows, the scheduler, tools, gas and network auth, composed over the
// transaction builder, the object crawler and the event decoder. Every
// action acquires a gas coin from a shared pool, signs, submits, waits for
// checkpoint inclusion and releases the coin.
package nexus

import (
	"context"
	"crypto/ed25519"
	"log/slog"
	"time"

	"github.com/Talus-Network/nexus-sdk-sub002/pkg/chain"
	"github.com/Talus-Network/nexus-sdk-sub002/pkg/types"
)

// defaultTransactionTimeout bounds the checkpoint-confirmation wait.
const defaultTransactionTimeout = 5 * time.Second

// Config wires a Client.
type Config struct {
	// Key is the sender's ed25519 private key.
	Key ed25519.PrivateKey
	// RPCURL is the ledger JSON-RPC endpoint. Ignored when RPC is set.
	RPCURL string
	// RPC overrides the ledger client, mostly for tests.
	RPC *chain.Client
	// Objects is the deployment registry of package IDs and shared objects.
	Objects *types.NexusObjects
	// GasCoins seeds the gas pool. At least one owned coin is required.
	GasCoins []chain.ObjectRef
	// GasBudget is the per-transaction budget shared by all actions.
	GasBudget uint64
	// TransactionTimeout bounds checkpoint confirmation. Defaults to 5s.
	TransactionTimeout time.Duration
	// Logger defaults to slog.Default.
	Logger *slog.Logger
}

// Client is the facade entry point. It is safe for concurrent use; actions
// serialize only on gas-coin acquisition.
type Client struct {
	rpc         *chain.Client
	signer      *Signer
	gas         *GasPool
	objects     *types.NexusObjects
	refGasPrice uint64
	txTimeout   time.Duration
	log         *slog.Logger
}

// NewClient validates the configuration, connects to the ledger and caches
// the reference gas price.
func NewClient(ctx context.Context, cfg Config) (*Client, error) {
	if len(cfg.Key) == 0 {
		return nil, configurationf("a private key is required")
	}
	if cfg.Objects == nil {
		return nil, configurationf("the deployment objects are required")
	}

	signer, err := NewSigner(cfg.Key)
	if err != nil {
		return nil, err
	}
	gas, err := NewGasPool(cfg.GasCoins, cfg.GasBudget)
	if err != nil {
		return nil, err
	}

	rpc := cfg.RPC
	if rpc == nil {
		if cfg.RPCURL == "" {
			return nil, configurationf("an RPC endpoint is required")
		}
		rpc, err = chain.NewClient(chain.Config{Endpoint: cfg.RPCURL, Logger: cfg.Logger})
		if err != nil {
			return nil, configurationf("%v", err)
		}
	}

	if cfg.TransactionTimeout <= 0 {
		cfg.TransactionTimeout = defaultTransactionTimeout
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	epoch, err := rpc.GetEpoch(ctx)
	if err != nil {
		return nil, rpcError("fetch reference gas price", err)
	}

	return &Client{
		rpc:         rpc,
		signer:      signer,
		gas:         gas,
		objects:     cfg.Objects,
		refGasPrice: uint64(epoch.ReferenceGasPrice),
		txTimeout:   cfg.TransactionTimeout,
		log:         cfg.Logger,
	}, nil
}

// Address is the sender address derived from the configured key.
func (c *Client) Address() chain.Address { return c.signer.Address() }

// ReferenceGasPrice is the epoch gas price cached at construction.
func (c *Client) ReferenceGasPrice() uint64 { return c.refGasPrice }

// Objects exposes the deployment registry.
func (c *Client) Objects() *types.NexusObjects { return c.objects }

// RPC exposes the underlying ledger client, shared with the crawler.
func (c *Client) RPC() *chain.Client { return c.rpc }

// Gas exposes the gas pool for callers that compose their own transactions.
func (c *Client) Gas() *GasPool { return c.gas }

// Workflow returns the workflow action group.
func (c *Client) Workflow() *WorkflowActions { return &WorkflowActions{c: c} }

// Scheduler returns the scheduler action group.
func (c *Client) Scheduler() *SchedulerActions { return &SchedulerActions{c: c} }

// Tools returns the tool registry action group.
func (c *Client) Tools() *ToolActions { return &ToolActions{c: c} }

// GasService returns the gas service action group.
func (c *Client) GasService() *GasActions { return &GasActions{c: c} }

// NetworkAuth returns the key-binding action group.
func (c *Client) NetworkAuth() *NetworkAuthActions { return &NetworkAuthActions{c: c} }

// PreKeys returns the pre-key handshake action group.
func (c *Client) PreKeys() *PreKeyActions { return &PreKeyActions{c: c} }
