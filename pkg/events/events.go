// Package events decodes ledger events emitted by the Nexus packages into a
// typed sum. Every Nexus event arrives wrapped in the primitives package's
// EventWrapper generic; the wrapper's first type parameter names the inner
// event kind, and that name drives dispatch.
package events

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/Talus-Network/nexus-sdk-sub002/pkg/chain"
	"github.com/Talus-Network/nexus-sdk-sub002/pkg/fqn"
	"github.com/Talus-Network/nexus-sdk-sub002/pkg/types"
)

// Decode failure classes.
var (
	// ErrNotNexusEvent marks events emitted by foreign packages or not
	// wrapped in the Nexus event wrapper.
	ErrNotNexusEvent = errors.New("not a nexus event")
	// ErrNotAStruct marks wrapper type parameters that are not struct tags.
	ErrNotAStruct = errors.New("event type parameter is not a struct")
	// ErrUnknownEventKind marks event names with no registered decoder.
	ErrUnknownEventKind = errors.New("unknown event kind")
	// ErrMalformedPayload marks payloads that fail typed deserialization.
	ErrMalformedPayload = errors.New("malformed event payload")
)

// typeKey carries the spliced event kind discriminator.
const typeKey = "_nexus_event_type"

// Kind is one decoded Nexus event payload. Callers type-switch on the
// concrete pointer types below.
type Kind interface {
	// EventName is the ledger-side short struct name of the event.
	EventName() string
}

// NexusEvent is a decoded event: identity, leftover generics of the inner
// event type, the typed payload, and optional distribution metadata.
type NexusEvent struct {
	ID           chain.EventID
	Generics     []chain.TypeTag
	Data         Kind
	Distribution *DistributedEventMetadata
}

// DistributedEventMetadata rides along on events the network distributes to
// specific leaders for execution.
type DistributedEventMetadata struct {
	Deadline time.Time
	Leaders  []chain.Address
	TaskID   chain.ObjectID
}

type distributionWire struct {
	DeadlineMs chain.U64String `json:"deadline_ms"`
	Leaders    []chain.Address `json:"leaders"`
	TaskID     chain.ObjectID  `json:"task_id"`
}

func (m DistributedEventMetadata) MarshalJSON() ([]byte, error) {
	return json.Marshal(distributionWire{
		DeadlineMs: chain.U64String(m.Deadline.UnixMilli()),
		Leaders:    m.Leaders,
		TaskID:     m.TaskID,
	})
}

func (m *DistributedEventMetadata) UnmarshalJSON(data []byte) error {
	var wire distributionWire
	if err := json.Unmarshal(data, &wire); err != nil {
		return err
	}
	*m = DistributedEventMetadata{
		Deadline: time.UnixMilli(int64(wire.DeadlineMs)).UTC(),
		Leaders:  wire.Leaders,
		TaskID:   wire.TaskID,
	}
	return nil
}

// Envelope is the tagged wire form of a Kind:
// `{"_nexus_event_type": <name>, "event": {…}}`.
type Envelope struct {
	Kind Kind
}

type envelopeWire struct {
	Type  string          `json:"_nexus_event_type"`
	Event json.RawMessage `json:"event"`
}

func (e Envelope) MarshalJSON() ([]byte, error) {
	if e.Kind == nil {
		return nil, fmt.Errorf("event envelope: no kind set")
	}
	payload, err := json.Marshal(e.Kind)
	if err != nil {
		return nil, err
	}
	return json.Marshal(envelopeWire{Type: e.Kind.EventName(), Event: payload})
}

func (e *Envelope) UnmarshalJSON(data []byte) error {
	var wire envelopeWire
	if err := json.Unmarshal(data, &wire); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformedPayload, err)
	}
	kind, err := decodeKind(wire.Type, wire.Event)
	if err != nil {
		return err
	}
	e.Kind = kind
	return nil
}

// decodeKind dispatches an event payload by its short name.
func decodeKind(name string, payload []byte) (Kind, error) {
	ctor, ok := kindRegistry[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownEventKind, name)
	}
	kind := ctor()
	if err := json.Unmarshal(payload, kind); err != nil {
		return nil, fmt.Errorf("%w: decode %s: %v", ErrMalformedPayload, name, err)
	}
	return kind, nil
}

// kindRegistry maps ledger event names to payload constructors.
var kindRegistry = map[string]func() Kind{}

func registerKind(ctor func() Kind) {
	name := ctor().EventName()
	if _, dup := kindRegistry[name]; dup {
		panic(fmt.Sprintf("events: duplicate kind %q", name))
	}
	kindRegistry[name] = ctor
}

func init() {
	for _, ctor := range []func() Kind{
		func() Kind { return new(ScheduledEvent) },
		func() Kind { return new(OccurrenceScheduledEvent) },
		func() Kind { return new(RequestWalkExecutionEvent) },
		func() Kind { return new(AnnounceInterfacePackageEvent) },
		func() Kind { return new(ToolRegisteredEvent) },
		func() Kind { return new(ToolUnregisteredEvent) },
		func() Kind { return new(WalkAdvancedEvent) },
		func() Kind { return new(WalkFailedEvent) },
		func() Kind { return new(EndStateReachedEvent) },
		func() Kind { return new(ExecutionFinishedEvent) },
		func() Kind { return new(MissedOccurrenceEvent) },
		func() Kind { return new(TaskCreatedEvent) },
		func() Kind { return new(TaskPausedEvent) },
		func() Kind { return new(TaskResumedEvent) },
		func() Kind { return new(TaskCanceledEvent) },
		func() Kind { return new(OccurrenceConsumedEvent) },
		func() Kind { return new(PeriodicScheduleConfiguredEvent) },
		func() Kind { return new(FoundingLeaderCapCreatedEvent) },
		func() Kind { return new(GasSettlementUpdateEvent) },
		func() Kind { return new(LeaderClaimedGasEvent) },
		func() Kind { return new(PreKeyVaultCreatedEvent) },
		func() Kind { return new(PreKeyRequestedEvent) },
		func() Kind { return new(PreKeyFulfilledEvent) },
		func() Kind { return new(PreKeyAssociatedEvent) },
		func() Kind { return new(DAGCreatedEvent) },
		func() Kind { return new(ToolRegistryCreatedEvent) },
	} {
		registerKind(ctor)
	}
}

// ScheduledName is the ledger name of the generic scheduling wrapper. Its
// payload nests another event under `request`, discriminated only by the
// wrapper's type parameter.
const ScheduledName = "RequestScheduledExecution"

// ScheduledEvent wraps another event kind with scheduling metadata. Request
// may itself hold a ScheduledEvent; nesting depth follows the type-parameter
// tree of the emitting call.
type ScheduledEvent struct {
	Request    Envelope        `json:"request"`
	Priority   chain.U64String `json:"priority"`
	RequestMs  chain.U64String `json:"request_ms"`
	StartMs    chain.U64String `json:"start_ms"`
	DeadlineMs chain.U64String `json:"deadline_ms"`
}

func (*ScheduledEvent) EventName() string { return ScheduledName }

// OccurrenceScheduledEvent is emitted when the scheduler registers a pending
// occurrence for a task.
type OccurrenceScheduledEvent struct {
	Task      chain.ObjectID     `json:"task"`
	Generator types.PolicySymbol `json:"generator"`
}

func (*OccurrenceScheduledEvent) EventName() string { return "OccurrenceScheduledEvent" }

// RequestWalkExecutionEvent asks a leader to advance a walk. The
// WorksheetFromType names the agent type holding the DAG so evaluation can be
// confirmed against it.
type RequestWalkExecutionEvent struct {
	DAG               chain.ObjectID      `json:"dag"`
	Execution         chain.ObjectID      `json:"execution"`
	Invoker           chain.Address       `json:"invoker"`
	WalkIndex         chain.U64String     `json:"walk_index"`
	NextVertex        types.RuntimeVertex `json:"next_vertex"`
	Evaluations       chain.ObjectID      `json:"evaluations"`
	WorksheetFromType types.TypeName      `json:"worksheet_from_type"`
}

func (*RequestWalkExecutionEvent) EventName() string { return "RequestWalkExecutionEvent" }

// AnnounceInterfacePackageEvent advertises a newly registered agent's shared
// objects.
type AnnounceInterfacePackageEvent struct {
	SharedObjects []types.SharedObjectRef `json:"shared_objects"`
}

func (*AnnounceInterfacePackageEvent) EventName() string { return "AnnounceInterfacePackageEvent" }

// ToolRegisteredEvent is emitted when a tool joins the registry.
type ToolRegisteredEvent struct {
	Tool chain.ObjectID `json:"tool"`
	Fqn  fqn.ToolFqn    `json:"fqn"`
}

func (*ToolRegisteredEvent) EventName() string { return "ToolRegisteredEvent" }

// ToolUnregisteredEvent is emitted when a tool leaves the registry.
type ToolUnregisteredEvent struct {
	Tool chain.ObjectID `json:"tool"`
	Fqn  fqn.ToolFqn    `json:"fqn"`
}

func (*ToolUnregisteredEvent) EventName() string { return "ToolUnregisteredEvent" }

// WalkAdvancedEvent reports that a walk executed a vertex and which output
// variant it took.
type WalkAdvancedEvent struct {
	DAG                chain.ObjectID      `json:"dag"`
	Execution          chain.ObjectID      `json:"execution"`
	WalkIndex          chain.U64String     `json:"walk_index"`
	Vertex             types.RuntimeVertex `json:"vertex"`
	Variant            types.TypeName      `json:"variant"`
	VariantPortsToData types.PortsData     `json:"variant_ports_to_data"`
}

func (*WalkAdvancedEvent) EventName() string { return "WalkAdvancedEvent" }

// WalkFailedEvent reports a failed walk along with the vertex it failed on.
type WalkFailedEvent struct {
	DAG       chain.ObjectID      `json:"dag"`
	Execution chain.ObjectID      `json:"execution"`
	WalkIndex chain.U64String     `json:"walk_index"`
	Vertex    types.RuntimeVertex `json:"vertex"`
	Reason    string              `json:"reason"`
}

func (*WalkFailedEvent) EventName() string { return "WalkFailedEvent" }

// EndStateReachedEvent reports that a walk reached an end state.
type EndStateReachedEvent struct {
	DAG                chain.ObjectID      `json:"dag"`
	Execution          chain.ObjectID      `json:"execution"`
	WalkIndex          chain.U64String     `json:"walk_index"`
	Vertex             types.RuntimeVertex `json:"vertex"`
	Variant            types.TypeName      `json:"variant"`
	VariantPortsToData types.PortsData     `json:"variant_ports_to_data"`
}

func (*EndStateReachedEvent) EventName() string { return "EndStateReachedEvent" }

// ExecutionFinishedEvent closes a DAG execution.
type ExecutionFinishedEvent struct {
	DAG                 chain.ObjectID `json:"dag"`
	Execution           chain.ObjectID `json:"execution"`
	HasAnyWalkFailed    bool           `json:"has_any_walk_failed"`
	HasAnyWalkSucceeded bool           `json:"has_any_walk_succeeded"`
}

func (*ExecutionFinishedEvent) EventName() string { return "ExecutionFinishedEvent" }

// MissedOccurrenceEvent is emitted when a pending occurrence misses its
// deadline and is pruned.
type MissedOccurrenceEvent struct {
	Task                  chain.ObjectID        `json:"task"`
	StartTimeMs           chain.U64String       `json:"start_time_ms"`
	DeadlineMs            chain.OptionU64String `json:"deadline_ms"`
	PrunedAt              chain.U64String       `json:"pruned_at"`
	PriorityFeePerGasUnit chain.U64String       `json:"priority_fee_per_gas_unit"`
	Generator             types.PolicySymbol    `json:"generator"`
}

func (*MissedOccurrenceEvent) EventName() string { return "MissedOccurrenceEvent" }

// TaskCreatedEvent is emitted after a scheduler task object is created.
type TaskCreatedEvent struct {
	Task  chain.ObjectID `json:"task"`
	Owner chain.Address  `json:"owner"`
}

func (*TaskCreatedEvent) EventName() string { return "TaskCreatedEvent" }

// TaskPausedEvent is emitted when a task is paused.
type TaskPausedEvent struct {
	Task chain.ObjectID `json:"task"`
}

func (*TaskPausedEvent) EventName() string { return "TaskPausedEvent" }

// TaskResumedEvent is emitted when a paused task is resumed.
type TaskResumedEvent struct {
	Task chain.ObjectID `json:"task"`
}

func (*TaskResumedEvent) EventName() string { return "TaskResumedEvent" }

// TaskCanceledEvent is emitted when a task is canceled.
type TaskCanceledEvent struct {
	Task               chain.ObjectID  `json:"task"`
	ClearedOccurrences chain.U64String `json:"cleared_occurrences"`
	HadPeriodic        bool            `json:"had_periodic"`
}

func (*TaskCanceledEvent) EventName() string { return "TaskCanceledEvent" }

// OccurrenceConsumedEvent is emitted whenever a pending occurrence is
// consumed for execution.
type OccurrenceConsumedEvent struct {
	Task                  chain.ObjectID        `json:"task"`
	StartTimeMs           chain.U64String       `json:"start_time_ms"`
	DeadlineMs            chain.OptionU64String `json:"deadline_ms"`
	PriorityFeePerGasUnit chain.U64String       `json:"priority_fee_per_gas_unit"`
	Generator             types.PolicySymbol    `json:"generator"`
	ExecutedAt            chain.U64String       `json:"executed_at"`
}

func (*OccurrenceConsumedEvent) EventName() string { return "OccurrenceConsumedEvent" }

// PeriodicScheduleConfiguredEvent is emitted whenever a task's periodic
// schedule is configured or cleared.
type PeriodicScheduleConfiguredEvent struct {
	Task                  chain.ObjectID        `json:"task"`
	PeriodMs              chain.OptionU64String `json:"period_ms"`
	DeadlineOffsetMs      chain.OptionU64String `json:"deadline_offset_ms"`
	MaxIterations         chain.OptionU64String `json:"max_iterations"`
	Generated             chain.OptionU64String `json:"generated"`
	PriorityFeePerGasUnit chain.OptionU64String `json:"priority_fee_per_gas_unit"`
	LastGeneratedStartMs  chain.OptionU64String `json:"last_generated_start_ms"`
}

func (*PeriodicScheduleConfiguredEvent) EventName() string { return "PeriodicScheduleConfiguredEvent" }

// FoundingLeaderCapCreatedEvent is emitted when a founding LeaderCap is
// created.
type FoundingLeaderCapCreatedEvent struct {
	LeaderCap chain.ObjectID `json:"leader_cap"`
	Network   chain.ObjectID `json:"network"`
}

func (*FoundingLeaderCapCreatedEvent) EventName() string { return "FoundingLeaderCapCreatedEvent" }

// GasSettlementUpdateEvent reports whether a tool invocation was paid for.
// The (execution, vertex) pair identifies the invocation.
type GasSettlementUpdateEvent struct {
	Execution  chain.ObjectID      `json:"execution"`
	ToolFqn    fqn.ToolFqn         `json:"tool_fqn"`
	Vertex     types.RuntimeVertex `json:"vertex"`
	WasSettled bool                `json:"was_settled"`
}

func (*GasSettlementUpdateEvent) EventName() string { return "GasSettlementUpdateEvent" }

// LeaderClaimedGasEvent is emitted when a leader claims gas from a user's
// budget. Purpose is free-form audit text and may be empty.
type LeaderClaimedGasEvent struct {
	Network chain.ObjectID  `json:"network"`
	Amount  chain.U64String `json:"amount"`
	Purpose string          `json:"purpose,omitempty"`
}

func (*LeaderClaimedGasEvent) EventName() string { return "LeaderClaimedGasEvent" }

// PreKeyVaultCreatedEvent is emitted on initial network setup.
type PreKeyVaultCreatedEvent struct {
	Vault     chain.ObjectID `json:"vault"`
	CryptoCap chain.ObjectID `json:"crypto_cap"`
}

func (*PreKeyVaultCreatedEvent) EventName() string { return "PreKeyVaultCreatedEvent" }

// PreKeyRequestedEvent is emitted when a user requests a pre key. The key
// bytes are fulfilled later by the leader.
type PreKeyRequestedEvent struct {
	RequestedBy chain.Address `json:"requested_by"`
}

func (*PreKeyRequestedEvent) EventName() string { return "PreKeyRequestedEvent" }

// PreKeyFulfilledEvent carries the pending pre key bytes for a requester.
type PreKeyFulfilledEvent struct {
	RequestedBy chain.Address   `json:"requested_by"`
	PreKeyBytes types.ByteArray `json:"pre_key_bytes"`
}

func (*PreKeyFulfilledEvent) EventName() string { return "PreKeyFulfilledEvent" }

// PreKeyAssociatedEvent is emitted when a pre key is claimed by a user.
type PreKeyAssociatedEvent struct {
	ClaimedBy      chain.Address   `json:"claimed_by"`
	PreKey         types.ByteArray `json:"pre_key"`
	InitialMessage types.ByteArray `json:"initial_message"`
}

func (*PreKeyAssociatedEvent) EventName() string { return "PreKeyAssociatedEvent" }

// DAGCreatedEvent is emitted when a DAG object is shared.
type DAGCreatedEvent struct {
	DAG chain.ObjectID `json:"dag"`
}

func (*DAGCreatedEvent) EventName() string { return "DAGCreatedEvent" }

// ToolRegistryCreatedEvent is emitted when a ToolRegistry is created.
type ToolRegistryCreatedEvent struct {
	Registry    chain.ObjectID `json:"registry"`
	SlashingCap chain.ObjectID `json:"slashing_cap"`
}

func (*ToolRegistryCreatedEvent) EventName() string { return "ToolRegistryCreatedEvent" }

type nexusEventWire struct {
	ID           chain.EventID             `json:"id"`
	Generics     []chain.TypeTag           `json:"generics"`
	Data         Envelope                  `json:"data"`
	Distribution *DistributedEventMetadata `json:"distribution,omitempty"`
}

func (e NexusEvent) MarshalJSON() ([]byte, error) {
	return json.Marshal(nexusEventWire{
		ID:           e.ID,
		Generics:     e.Generics,
		Data:         Envelope{Kind: e.Data},
		Distribution: e.Distribution,
	})
}

func (e *NexusEvent) UnmarshalJSON(data []byte) error {
	var wire nexusEventWire
	if err := json.Unmarshal(data, &wire); err != nil {
		return err
	}
	*e = NexusEvent{
		ID:           wire.ID,
		Generics:     wire.Generics,
		Data:         wire.Data.Kind,
		Distribution: wire.Distribution,
	}
	return nil
}
