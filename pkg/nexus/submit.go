package nexus

import (
	"context"
	"errors"
	"time"

	"github.com/cenkalti/backoff/v5"

	"github.com/Talus-Network/nexus-sdk-sub002/pkg/chain"
	"github.com/Talus-Network/nexus-sdk-sub002/pkg/crawler"
	"github.com/Talus-Network/nexus-sdk-sub002/pkg/events"
)

// checkpointPollInterval paces the confirmation loop after execution.
const checkpointPollInterval = 100 * time.Millisecond

// Execution is the outcome of one submitted transaction: its digest, the
// checkpoint it landed in, decoded Nexus events and raw object changes.
type Execution struct {
	Digest        chain.Digest
	Checkpoint    uint64
	Events        []*events.NexusEvent
	ObjectChanges []chain.ObjectChange
}

// createdObject finds the created object whose type matches module::name in
// any of the deployment's packages.
func (e *Execution) createdObject(c *Client, module, name string) (chain.ObjectID, bool) {
	for _, change := range e.ObjectChanges {
		if change.Kind != "created" {
			continue
		}
		tag, err := chain.ParseStructTag(change.ObjectType)
		if err != nil {
			continue
		}
		if tag.Module == module && tag.Name == name && c.objects.IsNexusPackage(tag.Address) {
			return change.ObjectID, true
		}
	}
	return chain.ObjectID{}, false
}

// submit runs the full pipeline for a composed transaction: acquire a gas
// coin, assemble and sign the transaction data, execute it, wait for
// checkpoint inclusion and decode its events. The coin is released back to
// the pool on every path, advanced to its post-execution version when the
// effects report it.
func (c *Client) submit(ctx context.Context, pt chain.ProgrammableTransaction) (*Execution, error) {
	coin, err := c.gas.Acquire(ctx)
	if err != nil {
		return nil, timeoutf("acquire gas coin: %v", err)
	}
	defer func() { c.gas.Release(coin) }()

	td := chain.NewProgrammableTransactionData(
		c.signer.Address(),
		[]chain.ObjectRef{coin},
		pt,
		c.gas.Budget(),
		c.refGasPrice,
	)

	signature, err := c.signer.SignTransaction(td)
	if err != nil {
		return nil, err
	}
	txBytes, err := td.Bytes()
	if err != nil {
		return nil, buildError(err)
	}

	// Submission is never retried: it is not idempotent.
	res, err := c.rpc.ExecuteTransaction(ctx, txBytes, []string{signature})
	if err != nil {
		return nil, rpcError("execute transaction", err)
	}
	if res.Status != "success" {
		return nil, walletError("transaction execution failed: "+res.Error, nil)
	}

	// The gas coin was mutated by execution; pick up its new version and
	// digest before it goes back into the pool.
	for _, change := range res.ObjectChanges {
		if change.ObjectID == coin.ObjectID && change.Kind == "mutated" {
			coin.Version = uint64(change.Version)
			coin.Digest = change.Digest
		}
	}

	checkpoint, err := c.confirmCheckpoint(ctx, res.Digest, res.Checkpoint)
	if err != nil {
		return nil, err
	}

	decoded := make([]*events.NexusEvent, 0, len(res.Events))
	for i := range res.Events {
		ev, err := events.Parse(res.Events[i], c.objects)
		if err != nil {
			// Foreign and undecodable events ride along in effects; they are
			// not ours to fail on.
			continue
		}
		decoded = append(decoded, ev)
	}

	c.log.Debug("transaction confirmed",
		"digest", res.Digest,
		"checkpoint", checkpoint,
		"events", len(decoded),
	)

	return &Execution{
		Digest:        res.Digest,
		Checkpoint:    checkpoint,
		Events:        decoded,
		ObjectChanges: res.ObjectChanges,
	}, nil
}

// confirmCheckpoint waits until the transaction is included in a checkpoint,
// polling every 100ms up to the configured transaction timeout.
func (c *Client) confirmCheckpoint(ctx context.Context, digest chain.Digest, hint *chain.U64String) (uint64, error) {
	if hint != nil {
		return uint64(*hint), nil
	}

	ctx, cancel := context.WithTimeout(ctx, c.txTimeout)
	defer cancel()

	ticker := time.NewTicker(checkpointPollInterval)
	defer ticker.Stop()

	for {
		seq, err := c.rpc.GetTransactionCheckpoint(ctx, digest)
		if err == nil && seq != nil {
			return *seq, nil
		}

		select {
		case <-ctx.Done():
			return 0, timeoutf("transaction %s was not checkpointed within %s", digest, c.txTimeout)
		case <-ticker.C:
		}
	}
}

// objectRef resolves an object's current (id, version, digest) triple.
// Reads are idempotent, so transient RPC failures are retried with
// exponential backoff.
func (c *Client) objectRef(ctx context.Context, id chain.ObjectID) (chain.ObjectRef, error) {
	meta, err := backoff.Retry(ctx, func() (*crawler.Metadata, error) {
		m, err := crawler.GetObjectMetadata(ctx, c.rpc, id)
		if errors.Is(err, chain.ErrNotFound) {
			return nil, backoff.Permanent(err)
		}
		return m, err
	}, backoff.WithBackOff(backoff.NewExponentialBackOff()), backoff.WithMaxTries(4))
	if err != nil {
		return chain.ObjectRef{}, rpcError("fetch object "+id.String(), err)
	}
	return meta.Reference(), nil
}

// sharedRef resolves a shared object's reference, where Version carries the
// initial shared version required by shared transaction inputs.
func (c *Client) sharedRef(ctx context.Context, id chain.ObjectID) (chain.ObjectRef, error) {
	meta, err := backoff.Retry(ctx, func() (*crawler.Metadata, error) {
		m, err := crawler.GetObjectMetadata(ctx, c.rpc, id)
		if errors.Is(err, chain.ErrNotFound) {
			return nil, backoff.Permanent(err)
		}
		return m, err
	}, backoff.WithBackOff(backoff.NewExponentialBackOff()), backoff.WithMaxTries(4))
	if err != nil {
		return chain.ObjectRef{}, rpcError("fetch object "+id.String(), err)
	}
	initial, err := meta.InitialVersion()
	if err != nil {
		return chain.ObjectRef{}, parsingf("object %s: %v", id, err)
	}
	return chain.ObjectRef{ObjectID: id, Version: initial, Digest: meta.Reference().Digest}, nil
}
