package events

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v5"

	"github.com/Talus-Network/nexus-sdk-sub002/pkg/chain"
	"github.com/Talus-Network/nexus-sdk-sub002/pkg/types"
)

// Poll pacing. The interval backs off while the ledger has nothing for us
// and snaps back to the floor as soon as a page carries events.
const (
	pollFloor   = 100 * time.Millisecond
	pollCeiling = 2 * time.Second
)

// defaultPageSize bounds one event query.
const defaultPageSize = 100

// Handler consumes one decoded event. Returning an error stops the poller.
type Handler func(ctx context.Context, ev *NexusEvent) error

// PollerConfig wires a Poller.
type PollerConfig struct {
	Client  *chain.Client
	Objects *types.NexusObjects
	// Cursor resumes a previous poll. Nil starts from the latest position
	// the ledger reports.
	Cursor *string
	// PageSize defaults to 100.
	PageSize int
	// Logger defaults to slog.Default.
	Logger *slog.Logger
}

// Poller tails the workflow package's event stream, decoding each event and
// handing it to a callback. Events that fail to decode are logged and
// skipped so one malformed or foreign event cannot wedge the stream.
type Poller struct {
	client   *chain.Client
	objects  *types.NexusObjects
	cursor   *string
	pageSize int
	log      *slog.Logger
}

// NewPoller validates the configuration and builds a poller.
func NewPoller(cfg PollerConfig) (*Poller, error) {
	if cfg.Client == nil {
		return nil, fmt.Errorf("event poller: client is required")
	}
	if cfg.Objects == nil {
		return nil, fmt.Errorf("event poller: nexus objects are required")
	}
	if cfg.PageSize <= 0 {
		cfg.PageSize = defaultPageSize
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Poller{
		client:   cfg.Client,
		objects:  cfg.Objects,
		cursor:   cfg.Cursor,
		pageSize: cfg.PageSize,
		log:      cfg.Logger,
	}, nil
}

// Cursor returns the last consumed position, suitable for resuming.
func (p *Poller) Cursor() *string { return p.cursor }

// Run polls until the context is canceled or the handler returns an error.
// Query failures are retried with the same backoff as empty pages.
func (p *Poller) Run(ctx context.Context, handle Handler) error {
	wait := backoff.ExponentialBackOff{
		InitialInterval:     pollFloor,
		RandomizationFactor: backoff.DefaultRandomizationFactor,
		Multiplier:          backoff.DefaultMultiplier,
		MaxInterval:         pollCeiling,
	}
	wait.Reset()

	timer := time.NewTimer(0)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-timer.C:
		}

		page, err := p.client.QueryEvents(ctx, p.objects.WorkflowPkgID, p.cursor, p.pageSize)
		switch {
		case err != nil:
			if ctx.Err() != nil {
				return ctx.Err()
			}
			p.log.Warn("event query failed", "error", err)
			timer.Reset(wait.NextBackOff())
			continue
		case len(page.Events) == 0:
			timer.Reset(wait.NextBackOff())
			continue
		}

		for i := range page.Events {
			ev, err := Parse(page.Events[i], p.objects)
			if err != nil {
				if errors.Is(err, ErrNotNexusEvent) {
					continue
				}
				p.log.Warn("skipping undecodable event",
					"tx_digest", page.Events[i].ID.TxDigest,
					"event_seq", page.Events[i].ID.EventSeq,
					"error", err,
				)
				continue
			}
			if err := handle(ctx, ev); err != nil {
				return err
			}
		}

		if page.NextCursor != nil {
			p.cursor = page.NextCursor
		}
		wait.Reset()
		timer.Reset(pollFloor)
	}
}
