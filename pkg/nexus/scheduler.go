package nexus

import (
	"context"
	"errors"

	"github.com/Talus-Network/nexus-sdk-sub002/pkg/chain"
	"github.com/Talus-Network/nexus-sdk-sub002/pkg/events"
	"github.com/Talus-Network/nexus-sdk-sub002/pkg/txn"
	"github.com/Talus-Network/nexus-sdk-sub002/pkg/types"
)

// SchedulerActions manages scheduler tasks: creation, occurrence queues,
// periodic schedules and lifecycle transitions.
type SchedulerActions struct {
	c *Client
}

// CreateTaskParams describes a new scheduler task. Inputs are committed to
// their storage locations before the task is composed. InitialSchedule, when
// set, enqueues the first occurrence in a follow-up transaction and is only
// valid with the queue generator.
type CreateTaskParams struct {
	DAGID             chain.ObjectID
	EntryGroup        string
	Inputs            map[string]map[string]types.NexusData
	Storage           types.StorageConf
	Metadata          []txn.MetadataEntry
	ExecutionGasPrice uint64
	Generator         txn.GeneratorKind
	InitialSchedule   *txn.OccurrenceRequest
}

// ScheduleResult reports one enqueued occurrence.
type ScheduleResult struct {
	TxDigest chain.Digest
	Event    *events.OccurrenceScheduledEvent
}

// CreateTaskResult reports a created task and, when requested, the outcome of
// its initial schedule. The two live in separate transactions, so both
// digests are surfaced.
type CreateTaskResult struct {
	TxDigest        chain.Digest
	TaskID          chain.ObjectID
	InitialSchedule *ScheduleResult
}

// CreateTask creates a shared scheduler task and optionally enqueues its
// first occurrence.
func (a *SchedulerActions) CreateTask(ctx context.Context, params CreateTaskParams) (*CreateTaskResult, error) {
	if params.InitialSchedule != nil && params.Generator != txn.GeneratorQueue {
		return nil, configurationf("Initial queue schedule can only be used with the queue generator")
	}

	inputs, err := commitInputs(ctx, params.Inputs, params.Storage)
	if err != nil {
		return nil, err
	}

	b := chain.NewBuilder()
	_, err = txn.CreateTask(b, a.c.objects, txn.CreateTaskParams{
		DagID:             chain.Address(params.DAGID),
		EntryGroup:        params.EntryGroup,
		Inputs:            inputs,
		Metadata:          params.Metadata,
		ExecutionGasPrice: params.ExecutionGasPrice,
		Generator:         params.Generator,
	})
	if err != nil {
		return nil, composeError(err)
	}

	exec, err := a.c.submit(ctx, b.Finish())
	if err != nil {
		return nil, err
	}

	var taskID chain.ObjectID
	found := false
	for _, ev := range exec.Events {
		if created, ok := ev.Data.(*events.TaskCreatedEvent); ok {
			taskID = created.Task
			found = true
			break
		}
	}
	if !found {
		return nil, parsingf("TaskCreatedEvent not found in response")
	}

	result := &CreateTaskResult{TxDigest: exec.Digest, TaskID: taskID}
	if params.InitialSchedule != nil {
		schedule, err := a.AddOccurrence(ctx, taskID, *params.InitialSchedule)
		if err != nil {
			return nil, err
		}
		result.InitialSchedule = schedule
	}
	return result, nil
}

// AddOccurrence enqueues one occurrence on an existing queue-generator task.
func (a *SchedulerActions) AddOccurrence(ctx context.Context, taskID chain.ObjectID, req txn.OccurrenceRequest) (*ScheduleResult, error) {
	taskRef, err := a.c.sharedRef(ctx, taskID)
	if err != nil {
		return nil, err
	}

	b := chain.NewBuilder()
	if _, err := txn.AddOccurrence(b, a.c.objects, taskRef, req); err != nil {
		return nil, composeError(err)
	}

	exec, err := a.c.submit(ctx, b.Finish())
	if err != nil {
		return nil, err
	}

	result := &ScheduleResult{TxDigest: exec.Digest}
	for _, ev := range exec.Events {
		if scheduled, ok := ev.Data.(*events.OccurrenceScheduledEvent); ok {
			result.Event = scheduled
			break
		}
	}
	return result, nil
}

// SetState pauses, resumes or cancels scheduling for a task.
func (a *SchedulerActions) SetState(ctx context.Context, taskID chain.ObjectID, action txn.TaskStateAction) (*Execution, error) {
	taskRef, err := a.c.sharedRef(ctx, taskID)
	if err != nil {
		return nil, err
	}

	b := chain.NewBuilder()
	if _, err := txn.SetTaskState(b, a.c.objects, taskRef, action); err != nil {
		return nil, composeError(err)
	}
	return a.c.submit(ctx, b.Finish())
}

// UpdateMetadata replaces a task's metadata entries.
func (a *SchedulerActions) UpdateMetadata(ctx context.Context, taskID chain.ObjectID, entries []txn.MetadataEntry) (*Execution, error) {
	taskRef, err := a.c.sharedRef(ctx, taskID)
	if err != nil {
		return nil, err
	}

	b := chain.NewBuilder()
	if _, err := txn.UpdateTaskMetadata(b, a.c.objects, taskRef, entries); err != nil {
		return nil, composeError(err)
	}
	return a.c.submit(ctx, b.Finish())
}

// ConfigurePeriodic creates or updates a task's periodic schedule.
func (a *SchedulerActions) ConfigurePeriodic(ctx context.Context, taskID chain.ObjectID, schedule txn.PeriodicSchedule) (*Execution, error) {
	taskRef, err := a.c.sharedRef(ctx, taskID)
	if err != nil {
		return nil, err
	}

	b := chain.NewBuilder()
	if _, err := txn.ConfigurePeriodic(b, a.c.objects, taskRef, schedule); err != nil {
		return nil, composeError(err)
	}
	return a.c.submit(ctx, b.Finish())
}

// DisablePeriodic turns periodic generation off for a task.
func (a *SchedulerActions) DisablePeriodic(ctx context.Context, taskID chain.ObjectID) (*Execution, error) {
	taskRef, err := a.c.sharedRef(ctx, taskID)
	if err != nil {
		return nil, err
	}

	b := chain.NewBuilder()
	if _, err := txn.DisablePeriodic(b, a.c.objects, taskRef); err != nil {
		return nil, composeError(err)
	}
	return a.c.submit(ctx, b.Finish())
}

// ExecuteOccurrence consumes the next due occurrence of a task and begins the
// corresponding DAG execution in one transaction.
func (a *SchedulerActions) ExecuteOccurrence(ctx context.Context, taskID, dagID chain.ObjectID) (*Execution, error) {
	taskRef, err := a.c.sharedRef(ctx, taskID)
	if err != nil {
		return nil, err
	}
	dagRef, err := a.c.sharedRef(ctx, dagID)
	if err != nil {
		return nil, err
	}

	b := chain.NewBuilder()
	if err := txn.ExecuteScheduledOccurrence(b, a.c.objects, taskRef, dagRef); err != nil {
		return nil, composeError(err)
	}
	return a.c.submit(ctx, b.Finish())
}

// composeError classifies transaction-composition failures. Schedule
// validation failures are the caller's misconfiguration; everything else is a
// composition defect.
func composeError(err error) error {
	var schedule *txn.ScheduleError
	if errors.As(err, &schedule) {
		return configurationf("%s", schedule.Reason)
	}
	return buildError(err)
}
