package signedhttp

import (
	"context"
	"sync"
	"time"
)

// ReplayKey builds the store key for an (invoker, nonce) pair.
func ReplayKey(invokerID, nonce string) string {
	return invokerID + ":" + nonce
}

// BeginOutcome is the replay store's per-nonce decision.
type BeginOutcome uint8

const (
	// BeginProceed: the nonce is new; an in-flight reservation was taken.
	BeginProceed BeginOutcome = iota
	// BeginInFlight: same request is already being processed.
	BeginInFlight
	// BeginReplay: same request already completed; Stored holds the signed
	// response for a bit-exact retry.
	BeginReplay
	// BeginConflict: the nonce was seen with a different request hash.
	BeginConflict
)

// BeginResult is returned by BeginOrReplay.
type BeginResult struct {
	Outcome BeginOutcome
	Stored  *StoredResponse
}

// StoredResponse is a completed signed response, persisted so retries return
// it bit-exact: same signed input bytes, same signature.
type StoredResponse struct {
	Status   int    `json:"status"`
	Body     []byte `json:"body"`
	SigInput []byte `json:"sig_input"`
	Sig      []byte `json:"sig"`
}

// ReplayStore distinguishes first-time requests from retries and from
// malicious replays. Entries expire at exp_ms; implementations purge
// eagerly on BeginOrReplay. Decisions are linearized per key: concurrent
// BeginOrReplay calls on one key produce exactly one BeginProceed.
//
// The default store is in-memory; callers may substitute a process-external
// implementation (replicated, persistent) without changing engine
// semantics.
type ReplayStore interface {
	BeginOrReplay(ctx context.Context, key, requestHash string, expiresAtMs int64) (BeginResult, error)
	Complete(ctx context.Context, key, requestHash string, resp *StoredResponse) error
	Release(ctx context.Context, key string) error
}

type replayState uint8

const (
	stateInFlight replayState = iota
	stateComplete
)

type memoryEntry struct {
	requestHash string
	expiresAtMs int64
	state       replayState
	response    *StoredResponse
}

// MemoryReplayStore is the default single-process store: one map behind a
// mutex, critical section bounded by a constant number of hash comparisons.
type MemoryReplayStore struct {
	mu      sync.Mutex
	entries map[string]memoryEntry
	now     func() time.Time
}

// NewMemoryReplayStore builds an empty in-memory store.
func NewMemoryReplayStore() *MemoryReplayStore {
	return &MemoryReplayStore{entries: make(map[string]memoryEntry)}
}

// WithClock overrides the clock for tests.
func (s *MemoryReplayStore) WithClock(now func() time.Time) *MemoryReplayStore {
	s.now = now
	return s
}

func (s *MemoryReplayStore) nowMs() int64 {
	if s.now != nil {
		return s.now().UnixMilli()
	}
	return time.Now().UnixMilli()
}

func (s *MemoryReplayStore) BeginOrReplay(_ context.Context, key, requestHash string, expiresAtMs int64) (BeginResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.nowMs()
	for k, e := range s.entries {
		if e.expiresAtMs < now {
			delete(s.entries, k)
		}
	}

	entry, ok := s.entries[key]
	if !ok {
		s.entries[key] = memoryEntry{requestHash: requestHash, expiresAtMs: expiresAtMs, state: stateInFlight}
		return BeginResult{Outcome: BeginProceed}, nil
	}

	if entry.requestHash != requestHash {
		return BeginResult{Outcome: BeginConflict}, nil
	}
	if entry.state == stateComplete {
		return BeginResult{Outcome: BeginReplay, Stored: entry.response}, nil
	}
	return BeginResult{Outcome: BeginInFlight}, nil
}

func (s *MemoryReplayStore) Complete(_ context.Context, key, requestHash string, resp *StoredResponse) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.entries[key]
	if !ok {
		// Reservation expired mid-flight; store the completion anyway so
		// later retries still replay bit-exact.
		entry = memoryEntry{requestHash: requestHash, expiresAtMs: s.nowMs() + DefaultMaxValidityMs}
	}
	entry.state = stateComplete
	entry.response = resp
	s.entries[key] = entry
	return nil
}

func (s *MemoryReplayStore) Release(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if entry, ok := s.entries[key]; ok && entry.state == stateInFlight {
		delete(s.entries, key)
	}
	return nil
}

// Len reports the live entry count. Test helper.
func (s *MemoryReplayStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}
