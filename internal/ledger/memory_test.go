package ledger

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/taskledger/internal/ir"
)

func TestMemoryStore_AppendTaskAllocatesSequentially(t *testing.T) {
	st := NewMemoryStore()
	ctx := context.Background()

	for want := uint64(0); want < 3; want++ {
		rec, ev, err := st.AppendTask(ctx, ir.TaskRecord{Requester: "U", ModelID: "m", InputData: "x"})
		require.NoError(t, err)
		assert.Equal(t, want, rec.TaskID)
		assert.Equal(t, ir.EventTaskSubmitted, ev.Kind)
		assert.Equal(t, want, ev.TaskID())
		assert.Equal(t, int64(want)+1, ev.Seq)
	}
	assert.Equal(t, uint64(3), st.Sequence().Current())
}

func TestMemoryStore_ConcurrentAppendsKeepEventsInTaskOrder(t *testing.T) {
	st := NewMemoryStore()
	ctx := context.Background()

	const n = 200
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _, err := st.AppendTask(ctx, ir.TaskRecord{Requester: "U", ModelID: "m", InputData: "x"})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	events, err := st.Events(ctx, 0, 0)
	require.NoError(t, err)
	require.Len(t, events, n)
	for _, e := range events {
		assert.Equal(t, uint64(e.Seq-1), e.TaskID(), "event seq %d", e.Seq)
	}
}

func TestMemoryStore_TaskMissing(t *testing.T) {
	st := NewMemoryStore()

	_, found, err := st.Task(context.Background(), 0)
	require.NoError(t, err)
	assert.False(t, found)
}

func TestMemoryStore_CreateResultIsCompareAndCreate(t *testing.T) {
	st := NewMemoryStore()
	ctx := context.Background()
	ts := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	first := ir.VerifiedResult{TaskID: 1, OutputHash: "aa", Timestamp: ts, SignerSet: []ir.Identity{"a", "b", "c"}}
	stored, ev, created, err := st.CreateResult(ctx, first)
	require.NoError(t, err)
	require.True(t, created)
	assert.Equal(t, first, stored)
	assert.Equal(t, ir.EventResultVerified, ev.Kind)

	second := ir.VerifiedResult{TaskID: 1, OutputHash: "bb", Timestamp: ts, SignerSet: []ir.Identity{"c", "d", "e"}}
	existing, _, created, err := st.CreateResult(ctx, second)
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, "aa", existing.OutputHash)

	events, err := st.Events(ctx, 0, 0)
	require.NoError(t, err)
	assert.Len(t, events, 1)
}

func TestMemoryStore_ResultIsolation(t *testing.T) {
	st := NewMemoryStore()
	ctx := context.Background()
	signers := []ir.Identity{"a", "b", "c"}

	_, _, _, err := st.CreateResult(ctx, ir.VerifiedResult{TaskID: 1, OutputHash: "aa", SignerSet: signers})
	require.NoError(t, err)
	signers[0] = "mutated"

	got, found, err := st.Result(ctx, 1)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, ir.Identity("a"), got.SignerSet[0])

	got.SignerSet[1] = "mutated"
	again, _, err := st.Result(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, ir.Identity("b"), again.SignerSet[1])
}

func TestMemoryStore_EventsEmpty(t *testing.T) {
	events, err := NewMemoryStore().Events(context.Background(), 0, 10)
	require.NoError(t, err)
	assert.NotNil(t, events)
	assert.Empty(t, events)
}
