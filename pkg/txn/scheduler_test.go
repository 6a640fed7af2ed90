package txn

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Talus-Network/nexus-sdk-sub002/pkg/chain"
)

func TestOccurrenceRequestDeadlineBeforeStart(t *testing.T) {
	_, err := NewOccurrenceRequest(u64(50), u64(40), nil, nil, 1, true)
	require.Error(t, err)

	var scheduleErr *ScheduleError
	require.ErrorAs(t, err, &scheduleErr)
	assert.Equal(t, "Deadline (40) cannot be earlier than start (50)", scheduleErr.Reason)
}

func TestOccurrenceRequestValidation(t *testing.T) {
	cases := []struct {
		name         string
		start        *uint64
		deadline     *uint64
		startOff     *uint64
		deadlineOff  *uint64
		requireStart bool
		wantErr      string
	}{
		{
			name:         "no start when required",
			requireStart: true,
			wantErr:      "Provide either an absolute start or a start offset",
		},
		{
			name:     "absolute deadline without absolute start",
			startOff: u64(10),
			deadline: u64(100),
			wantErr:  "Absolute deadlines require an absolute start time",
		},
		{
			name:        "deadline offset without any start",
			deadlineOff: u64(100),
			wantErr:     "Deadline flags require a corresponding start flag",
		},
		{
			name:     "valid absolute",
			start:    u64(10),
			deadline: u64(100),
		},
		{
			name:        "valid offsets",
			startOff:    u64(10),
			deadlineOff: u64(100),
		},
		{
			name: "no start allowed when not required",
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := NewOccurrenceRequest(tc.start, tc.deadline, tc.startOff, tc.deadlineOff, 1, tc.requireStart)
			if tc.wantErr == "" {
				require.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tc.wantErr)
		})
	}
}

func TestAddOccurrenceTieBreaks(t *testing.T) {
	cases := []struct {
		name     string
		req      OccurrenceRequest
		function string
	}{
		{
			name:     "absolute start and deadline",
			req:      OccurrenceRequest{StartMs: u64(10), DeadlineMs: u64(100), GasPrice: 1},
			function: "add_occurrence_absolute",
		},
		{
			name:     "absolute start only",
			req:      OccurrenceRequest{StartMs: u64(10), GasPrice: 1},
			function: "add_occurrence_absolute",
		},
		{
			name:     "absolute start with deadline offset",
			req:      OccurrenceRequest{StartMs: u64(10), DeadlineOffsetMs: u64(90), GasPrice: 1},
			function: "add_occurrence_with_offset",
		},
		{
			name:     "offsets only",
			req:      OccurrenceRequest{StartOffsetMs: u64(10), DeadlineOffsetMs: u64(90), GasPrice: 1},
			function: "add_occurrence_with_offsets_from_now",
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			b := chain.NewBuilder()
			_, err := AddOccurrence(b, testObjects(), testRef("0x200"), tc.req)
			require.NoError(t, err)

			call := lastMoveCall(b.Finish())
			require.NotNil(t, call)
			assert.Equal(t, "scheduler", call.Module)
			assert.Equal(t, tc.function, call.Function)
			// task, start, deadline, gas price, clock
			assert.Len(t, call.Args, 5)
		})
	}
}

func TestAddOccurrenceRejectsInvalid(t *testing.T) {
	b := chain.NewBuilder()
	_, err := AddOccurrence(b, testObjects(), testRef("0x200"), OccurrenceRequest{
		StartMs:    u64(50),
		DeadlineMs: u64(40),
		GasPrice:   1,
	})
	require.Error(t, err)
	assert.Zero(t, b.CommandCount(), "no commands composed for an invalid request")
}

func TestSetTaskState(t *testing.T) {
	cases := []struct {
		action   TaskStateAction
		function string
	}{
		{TaskPause, "pause_time_constraint_for_task"},
		{TaskResume, "resume_time_constraint_for_task"},
		{TaskCancel, "cancel_time_constraint_for_task"},
	}

	for _, tc := range cases {
		t.Run(tc.action.String(), func(t *testing.T) {
			b := chain.NewBuilder()
			_, err := SetTaskState(b, testObjects(), testRef("0x200"), tc.action)
			require.NoError(t, err)

			call := lastMoveCall(b.Finish())
			require.NotNil(t, call)
			assert.Equal(t, "scheduler", call.Module)
			assert.Equal(t, tc.function, call.Function)
			assert.Len(t, call.Args, 1)
		})
	}
}

func TestConfigurePeriodic(t *testing.T) {
	b := chain.NewBuilder()
	_, err := ConfigurePeriodic(b, testObjects(), testRef("0x200"), PeriodicSchedule{
		FirstStartMs:     1_000,
		PeriodMs:         60_000,
		DeadlineOffsetMs: u64(5_000),
		MaxIterations:    u64(10),
		GasPrice:         1,
	})
	require.NoError(t, err)

	call := lastMoveCall(b.Finish())
	require.NotNil(t, call)
	assert.Equal(t, "new_or_modify_periodic_for_task", call.Function)
	assert.Len(t, call.Args, 6)
}

func TestConfigurePeriodicRejectsZeroPeriod(t *testing.T) {
	b := chain.NewBuilder()
	_, err := ConfigurePeriodic(b, testObjects(), testRef("0x200"), PeriodicSchedule{GasPrice: 1})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "non-zero period")
}

func TestCreateTaskSequence(t *testing.T) {
	objects := testObjects()
	b := chain.NewBuilder()

	_, err := CreateTask(b, objects, CreateTaskParams{
		DagID:             chain.MustParseAddress("0x500"),
		EntryGroup:        "",
		Metadata:          []MetadataEntry{{Key: "name", Value: "test task"}},
		ExecutionGasPrice: 1,
		Generator:         GeneratorQueue,
	})
	require.NoError(t, err)

	pt := b.Finish()
	require.Equal(t, [][2]string{
		{"vec_map", "empty"},
		{"vec_map", "insert"},
		{"scheduler", "new_metadata"},
		{"scheduler", "new_constraints_policy"},
		{"scheduler", "new_queue_generator_state"},
		{"scheduler", "register_queue_generator"},
		{"dag", "empty_inputs"},
		{"scheduler", "new_execution_policy"},
		{"scheduler", "new"},
		{"transfer", "public_share_object"},
	}, moveCalls(pt))

	share := lastMoveCall(pt)
	require.Len(t, share.TypeArgs, 1)
	assert.Equal(t, "Task", share.TypeArgs[0].Struct.Name)
	assert.Equal(t, "scheduler", share.TypeArgs[0].Struct.Module)
}

func TestCreateTaskPeriodicGenerator(t *testing.T) {
	b := chain.NewBuilder()
	_, err := CreateTask(b, testObjects(), CreateTaskParams{
		DagID:             chain.MustParseAddress("0x500"),
		ExecutionGasPrice: 1,
		Generator:         GeneratorPeriodic,
	})
	require.NoError(t, err)

	calls := moveCalls(b.Finish())
	assert.Contains(t, calls, [2]string{"scheduler", "new_periodic_generator_state"})
	assert.Contains(t, calls, [2]string{"scheduler", "register_periodic_generator"})
}

func TestExecuteScheduledOccurrence(t *testing.T) {
	objects := testObjects()
	b := chain.NewBuilder()

	err := ExecuteScheduledOccurrence(b, objects, testRef("0x200"), testRef("0x500"))
	require.NoError(t, err)

	pt := b.Finish()
	require.Equal(t, [][2]string{
		{"scheduler", "check_time_constraint"},
		{"default_tap", "dag_begin_execution_from_scheduler"},
	}, moveCalls(pt))

	begin := lastMoveCall(pt)
	// tap, task, dag, gas service, clock
	require.Len(t, begin.Args, 5)

	// The tap and gas service ride along mutable, the dag read-only.
	tap := pt.Inputs[begin.Args[0].Input].Object
	require.NotNil(t, tap)
	assert.True(t, tap.Mutable)
	dag := pt.Inputs[begin.Args[2].Input].Object
	require.NotNil(t, dag)
	assert.False(t, dag.Mutable)
}
