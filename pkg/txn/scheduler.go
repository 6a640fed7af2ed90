package txn

import (
	"fmt"

	"github.com/Talus-Network/nexus-sdk-sub002/pkg/chain"
	"github.com/Talus-Network/nexus-sdk-sub002/pkg/types"
)

// ScheduleError reports an occurrence or periodic configuration the composer
// refuses to turn into a transaction.
type ScheduleError struct {
	Reason string
}

func (e *ScheduleError) Error() string { return e.Reason }

func scheduleErrorf(format string, args ...any) error {
	return &ScheduleError{Reason: fmt.Sprintf(format, args...)}
}

// OccurrenceRequest describes one future execution of a task. Exactly one
// start form is used: an absolute start in epoch milliseconds, or an offset
// from the ledger clock at execution time. Deadlines follow the same split.
type OccurrenceRequest struct {
	StartMs          *uint64
	DeadlineMs       *uint64
	StartOffsetMs    *uint64
	DeadlineOffsetMs *uint64
	GasPrice         uint64
}

// NewOccurrenceRequest validates the field combination before any
// transaction is composed. requireStart demands one of the two start forms.
func NewOccurrenceRequest(startMs, deadlineMs, startOffsetMs, deadlineOffsetMs *uint64, gasPrice uint64, requireStart bool) (OccurrenceRequest, error) {
	req := OccurrenceRequest{
		StartMs:          startMs,
		DeadlineMs:       deadlineMs,
		StartOffsetMs:    startOffsetMs,
		DeadlineOffsetMs: deadlineOffsetMs,
		GasPrice:         gasPrice,
	}
	if err := req.Validate(requireStart); err != nil {
		return OccurrenceRequest{}, err
	}
	return req, nil
}

// Validate checks the start/deadline field combination.
func (r *OccurrenceRequest) Validate(requireStart bool) error {
	if requireStart && r.StartMs == nil && r.StartOffsetMs == nil {
		return scheduleErrorf("Provide either an absolute start or a start offset")
	}
	if r.DeadlineMs != nil && r.StartMs == nil {
		return scheduleErrorf("Absolute deadlines require an absolute start time")
	}
	if r.StartMs == nil && r.StartOffsetMs == nil && (r.DeadlineMs != nil || r.DeadlineOffsetMs != nil) {
		return scheduleErrorf("Deadline flags require a corresponding start flag")
	}
	if r.StartMs != nil && r.DeadlineMs != nil && *r.DeadlineMs < *r.StartMs {
		return scheduleErrorf("Deadline (%d) cannot be earlier than start (%d)", *r.DeadlineMs, *r.StartMs)
	}
	if r.DeadlineOffsetMs != nil && r.StartOffsetMs == nil && r.StartMs == nil {
		return scheduleErrorf("Deadline offset requires either an absolute start or a start offset")
	}
	return nil
}

// AddOccurrence enqueues one occurrence on a task, choosing the entry point
// from the fields set on the request:
//
//	start_ms, optional deadline_ms        -> add_occurrence_absolute
//	start_ms + deadline_offset_ms         -> add_occurrence_with_offset
//	start_offset_ms, optional deadline... -> add_occurrence_with_offsets_from_now
func AddOccurrence(b *chain.Builder, objects *types.NexusObjects, task chain.ObjectRef, req OccurrenceRequest) (chain.Argument, error) {
	if err := req.Validate(false); err != nil {
		return chain.Argument{}, err
	}

	wf := objects.WorkflowPkgID
	p := pures(b)

	var function string
	var start uint64
	var deadline *uint64
	switch {
	case req.StartMs != nil && req.DeadlineOffsetMs != nil:
		function = "add_occurrence_with_offset"
		start = *req.StartMs
		deadline = req.DeadlineOffsetMs
	case req.StartMs != nil:
		function = "add_occurrence_absolute"
		start = *req.StartMs
		deadline = req.DeadlineMs
	case req.StartOffsetMs != nil:
		function = "add_occurrence_with_offsets_from_now"
		start = *req.StartOffsetMs
		deadline = req.DeadlineOffsetMs
	default:
		return chain.Argument{}, scheduleErrorf("Provide either an absolute start or a start offset")
	}

	args := []chain.Argument{
		p.shared(task, true),
		p.arg(start),
		p.arg(deadline),
		p.arg(req.GasPrice),
		p.clock(),
	}
	if p.err != nil {
		return chain.Argument{}, p.err
	}
	return b.MoveCall(wf, moduleScheduler, function, nil, args), nil
}

// TaskStateAction selects a time-constraint state transition.
type TaskStateAction int

const (
	TaskPause TaskStateAction = iota
	TaskResume
	TaskCancel
)

func (a TaskStateAction) String() string {
	switch a {
	case TaskPause:
		return "pause"
	case TaskResume:
		return "resume"
	case TaskCancel:
		return "cancel"
	default:
		return fmt.Sprintf("TaskStateAction(%d)", int(a))
	}
}

// SetTaskState pauses, resumes or cancels scheduling for a task.
func SetTaskState(b *chain.Builder, objects *types.NexusObjects, task chain.ObjectRef, action TaskStateAction) (chain.Argument, error) {
	var function string
	switch action {
	case TaskPause:
		function = "pause_time_constraint_for_task"
	case TaskResume:
		function = "resume_time_constraint_for_task"
	case TaskCancel:
		function = "cancel_time_constraint_for_task"
	default:
		return chain.Argument{}, scheduleErrorf("unknown task state action %d", int(action))
	}

	p := pures(b)
	taskArg := p.shared(task, true)
	if p.err != nil {
		return chain.Argument{}, p.err
	}
	return b.MoveCall(objects.WorkflowPkgID, moduleScheduler, function, nil, []chain.Argument{taskArg}), nil
}

// PeriodicSchedule configures or reconfigures periodic generation on a task.
type PeriodicSchedule struct {
	FirstStartMs     uint64
	PeriodMs         uint64
	DeadlineOffsetMs *uint64
	MaxIterations    *uint64
	GasPrice         uint64
}

// Validate rejects degenerate periods.
func (s *PeriodicSchedule) Validate() error {
	if s.PeriodMs == 0 {
		return scheduleErrorf("Periodic schedules require a non-zero period")
	}
	return nil
}

// ConfigurePeriodic creates or updates the periodic schedule of a task.
func ConfigurePeriodic(b *chain.Builder, objects *types.NexusObjects, task chain.ObjectRef, schedule PeriodicSchedule) (chain.Argument, error) {
	if err := schedule.Validate(); err != nil {
		return chain.Argument{}, err
	}

	p := pures(b)
	args := []chain.Argument{
		p.shared(task, true),
		p.arg(schedule.FirstStartMs),
		p.arg(schedule.PeriodMs),
		p.arg(schedule.DeadlineOffsetMs),
		p.arg(schedule.MaxIterations),
		p.arg(schedule.GasPrice),
	}
	if p.err != nil {
		return chain.Argument{}, p.err
	}
	return b.MoveCall(objects.WorkflowPkgID, moduleScheduler, "new_or_modify_periodic_for_task", nil, args), nil
}

// DisablePeriodic turns periodic generation off for a task.
func DisablePeriodic(b *chain.Builder, objects *types.NexusObjects, task chain.ObjectRef) (chain.Argument, error) {
	p := pures(b)
	taskArg := p.shared(task, true)
	if p.err != nil {
		return chain.Argument{}, p.err
	}
	return b.MoveCall(objects.WorkflowPkgID, moduleScheduler, "disable_periodic_for_task", nil, []chain.Argument{taskArg}), nil
}

// CheckTimeConstraint evaluates the scheduler and consumes the next due
// occurrence, if any.
func CheckTimeConstraint(b *chain.Builder, objects *types.NexusObjects, task chain.ObjectRef) (chain.Argument, error) {
	p := pures(b)
	args := []chain.Argument{p.shared(task, true), p.clock()}
	if p.err != nil {
		return chain.Argument{}, p.err
	}
	return b.MoveCall(objects.WorkflowPkgID, moduleScheduler, "check_time_constraint", nil, args), nil
}

// BeginDagExecutionFromScheduler invokes DAG execution for a consumed
// occurrence through the default TAP.
func BeginDagExecutionFromScheduler(b *chain.Builder, objects *types.NexusObjects, task, dag chain.ObjectRef) (chain.Argument, error) {
	p := pures(b)
	args := []chain.Argument{
		p.shared(objects.DefaultTap, true),
		p.shared(task, true),
		p.shared(dag, false),
		p.shared(objects.GasService, true),
		p.clock(),
	}
	if p.err != nil {
		return chain.Argument{}, p.err
	}
	return b.MoveCall(objects.WorkflowPkgID, moduleDefaultTap, "dag_begin_execution_from_scheduler", nil, args), nil
}

// ExecuteScheduledOccurrence consumes the next due occurrence and begins the
// corresponding DAG execution in one transaction.
func ExecuteScheduledOccurrence(b *chain.Builder, objects *types.NexusObjects, task, dag chain.ObjectRef) error {
	if _, err := CheckTimeConstraint(b, objects, task); err != nil {
		return err
	}
	_, err := BeginDagExecutionFromScheduler(b, objects, task, dag)
	return err
}

// GeneratorKind selects how a task produces occurrences.
type GeneratorKind int

const (
	// GeneratorQueue tasks consume explicitly enqueued occurrences.
	GeneratorQueue GeneratorKind = iota
	// GeneratorPeriodic tasks generate occurrences from a periodic schedule.
	GeneratorPeriodic
)

// MetadataEntry is one key/value pair of task metadata. Order is preserved
// on the ledger, so it matters here too.
type MetadataEntry struct {
	Key   string
	Value string
}

// CreateTaskParams carries everything needed to compose task creation.
type CreateTaskParams struct {
	DagID             chain.Address
	EntryGroup        string
	Inputs            []DagInput
	Metadata          []MetadataEntry
	ExecutionGasPrice uint64
	Generator         GeneratorKind
}

// CreateTask composes the full creation of a scheduler task: metadata map,
// constraints policy with its generator, execution policy, the task itself,
// and finally sharing it. Returns the public_share_object handle.
func CreateTask(b *chain.Builder, objects *types.NexusObjects, params CreateTaskParams) (chain.Argument, error) {
	if params.EntryGroup == "" {
		params.EntryGroup = types.DefaultEntryGroup
	}

	wf := objects.WorkflowPkgID
	p := pures(b)

	metadata := newTaskMetadata(b, p, wf, params.Metadata)

	constraints, err := newConstraintsPolicy(b, wf, params.Generator)
	if err != nil {
		return chain.Argument{}, err
	}

	execution, err := newExecutionPolicy(b, p, wf, params)
	if err != nil {
		return chain.Argument{}, err
	}

	if p.err != nil {
		return chain.Argument{}, p.err
	}

	task := b.MoveCall(wf, moduleScheduler, "new", nil,
		[]chain.Argument{metadata, constraints, execution})

	return publicShareObject(b, StructTypeTag(wf, moduleScheduler, "Task"), task), nil
}

// newTaskMetadata builds a `VecMap<String, String>` input and wraps it into
// scheduler metadata.
func newTaskMetadata(b *chain.Builder, p *pureBuf, wf chain.ObjectID, entries []MetadataEntry) chain.Argument {
	str := stringTypeTag()
	typeArgs := []chain.TypeTag{str, str}

	m := b.MoveCall(FrameworkPackageID, moduleVecMap, "empty", typeArgs, nil)
	for _, e := range entries {
		args := []chain.Argument{m, p.arg(e.Key), p.arg(e.Value)}
		if p.err != nil {
			return chain.Argument{}
		}
		b.MoveCall(FrameworkPackageID, moduleVecMap, "insert", typeArgs, args)
	}

	return b.MoveCall(wf, moduleScheduler, "new_metadata", nil, []chain.Argument{m})
}

// newConstraintsPolicy creates the constraints policy and registers the
// requested occurrence generator on it.
func newConstraintsPolicy(b *chain.Builder, wf chain.ObjectID, generator GeneratorKind) (chain.Argument, error) {
	policy := b.MoveCall(wf, moduleScheduler, "new_constraints_policy", nil, nil)

	switch generator {
	case GeneratorQueue:
		state := b.MoveCall(wf, moduleScheduler, "new_queue_generator_state", nil, nil)
		b.MoveCall(wf, moduleScheduler, "register_queue_generator", nil, []chain.Argument{policy, state})
	case GeneratorPeriodic:
		state := b.MoveCall(wf, moduleScheduler, "new_periodic_generator_state", nil, nil)
		b.MoveCall(wf, moduleScheduler, "register_periodic_generator", nil, []chain.Argument{policy, state})
	default:
		return chain.Argument{}, scheduleErrorf("unknown generator kind %d", int(generator))
	}

	return policy, nil
}

// newExecutionPolicy creates the execution policy binding the task to its
// DAG, entry group, pre-composed inputs and gas price.
func newExecutionPolicy(b *chain.Builder, p *pureBuf, wf chain.ObjectID, params CreateTaskParams) (chain.Argument, error) {
	inputs, err := composeDagInputs(b, p, wf, params.Inputs)
	if err != nil {
		return chain.Argument{}, err
	}

	args := []chain.Argument{
		p.arg(params.DagID),
		p.arg(params.ExecutionGasPrice),
		p.arg(params.EntryGroup),
		inputs,
	}
	if p.err != nil {
		return chain.Argument{}, p.err
	}
	return b.MoveCall(wf, moduleScheduler, "new_execution_policy", nil, args), nil
}

// UpdateTaskMetadata replaces metadata entries on an existing task.
func UpdateTaskMetadata(b *chain.Builder, objects *types.NexusObjects, task chain.ObjectRef, entries []MetadataEntry) (chain.Argument, error) {
	wf := objects.WorkflowPkgID
	p := pures(b)

	metadata := newTaskMetadata(b, p, wf, entries)
	taskArg := p.shared(task, true)
	if p.err != nil {
		return chain.Argument{}, p.err
	}
	return b.MoveCall(wf, moduleScheduler, "update_metadata", nil, []chain.Argument{taskArg, metadata}), nil
}
