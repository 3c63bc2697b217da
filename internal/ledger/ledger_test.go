package ledger

import (
	"context"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/taskledger/internal/committee"
	"github.com/roach88/taskledger/internal/ir"
	"github.com/roach88/taskledger/internal/testutil"
)

func TestLedger_EndToEnd(t *testing.T) {
	l := newTestLedger(t)
	ctx := context.Background()
	m := l.Members

	taskID, err := l.Submit(ctx, "U", "llama-7b", "Hello world")
	require.NoError(t, err)
	assert.Equal(t, uint64(0), taskID)

	att := committee.Attest(taskID, "deadbeef", m.A, m.B, m.C)
	assert.Equal(t, "0:deadbeef", string(ir.CanonicalMessage(taskID, "deadbeef")))

	res, err := l.SubmitAttestation(ctx, att)
	require.NoError(t, err)
	assert.Equal(t, "deadbeef", res.OutputHash)
	assert.Equal(t, []ir.Identity{m.A.Identity(), m.B.Identity(), m.C.Identity()}, res.SignerSet)

	stored, err := l.Result(ctx, taskID)
	require.NoError(t, err)
	assert.Equal(t, "deadbeef", stored.OutputHash)

	status, err := l.Status(ctx, taskID)
	require.NoError(t, err)
	assert.Equal(t, ir.StatusVerified, status)

	events := l.Recorder.Events()
	require.Len(t, events, 2)
	assert.Equal(t, &ir.TaskSubmitted{
		Requester:    "U",
		ModelID:      "llama-7b",
		TaskID:       0,
		InputPreview: "Hello world",
	}, events[0].Submitted)
	assert.Equal(t, &ir.ResultVerified{TaskID: 0, OutputHash: "deadbeef"}, events[1].Verified)
	assert.Equal(t, int64(1), events[0].Seq)
	assert.Equal(t, int64(2), events[1].Seq)
}

func TestLedger_EndToEndDuplicateSigner(t *testing.T) {
	l := newTestLedger(t)
	ctx := context.Background()
	m := l.Members

	taskID, err := l.Submit(ctx, "U", "llama-7b", "Hello world")
	require.NoError(t, err)

	_, err = l.SubmitAttestation(ctx, committee.Attest(taskID, "deadbeef", m.A, m.A, m.B))
	require.Error(t, err)
	assert.True(t, IsQuorumNotMet(err))

	_, err = l.Result(ctx, taskID)
	assert.True(t, IsResultNotFound(err), "no VerifiedResult may be created")

	status, err := l.Status(ctx, taskID)
	require.NoError(t, err)
	assert.Equal(t, ir.StatusSubmitted, status)
	assert.Len(t, l.Recorder.Events(), 1, "only TaskSubmitted was emitted")
}

func TestLedger_RejectedAttestationIsRetryable(t *testing.T) {
	l := newTestLedger(t)
	ctx := context.Background()
	m := l.Members

	taskID, err := l.Submit(ctx, "U", "llama-7b", "Hello world")
	require.NoError(t, err)

	bad := committee.Attest(taskID, "deadbeef", m.A, m.B, m.C)
	bad.Signatures[0] = m.A.Sign(taskID, "00")
	_, err = l.SubmitAttestation(ctx, bad)
	require.True(t, IsInvalidSignature(err))

	var le *Error
	require.ErrorAs(t, err, &le)
	assert.True(t, le.Retryable())

	// Re-collected signature set from a different quorum; same task id.
	res, err := l.SubmitAttestation(ctx, committee.Attest(taskID, "deadbeef", m.C, m.D, m.E))
	require.NoError(t, err)
	assert.Equal(t, taskID, res.TaskID)

	next, err := l.Submit(ctx, "U", "llama-7b", "again")
	require.NoError(t, err)
	assert.Equal(t, uint64(1), next, "retrying must not consume task ids")
}

func TestLedger_SecondAttestationAlreadyCommitted(t *testing.T) {
	l := newTestLedger(t)
	ctx := context.Background()
	m := l.Members

	taskID, err := l.Submit(ctx, "U", "llama-7b", "Hello world")
	require.NoError(t, err)

	first, err := l.SubmitAttestation(ctx, committee.Attest(taskID, "deadbeef", m.A, m.B, m.C))
	require.NoError(t, err)

	_, err = l.SubmitAttestation(ctx, committee.Attest(taskID, "cafebabe", m.C, m.D, m.E))
	require.Error(t, err)
	assert.True(t, IsAlreadyCommitted(err))

	var le *Error
	require.ErrorAs(t, err, &le)
	assert.False(t, le.Retryable(), "ALREADY_COMMITTED is terminal")

	stored, err := l.Result(ctx, taskID)
	require.NoError(t, err)
	assert.Equal(t, first, stored)
}

func TestLedger_AttestationForUnknownTask(t *testing.T) {
	l := newTestLedger(t)
	m := l.Members

	_, err := l.SubmitAttestation(context.Background(), committee.Attest(99, "deadbeef", m.A, m.B, m.C))
	assert.True(t, IsTaskNotFound(err))
}

func TestLedger_SubmitValidation(t *testing.T) {
	tests := []struct {
		name      string
		requester ir.Identity
		modelID   string
		input     string
		field     string
	}{
		{"model_id at limit", "U", strings.Repeat("m", 64), "x", "model_id"},
		{"model_id over limit", "U", strings.Repeat("m", 100), "x", "model_id"},
		{"input at limit", "U", "llama-7b", strings.Repeat("i", 256), "input_data"},
		{"missing requester", "", "llama-7b", "x", "requester"},
		{"input not UTF-8", "U", "llama-7b", "hi \xff\xfe", "input_data"},
		{"model_id not UTF-8", "U", "llama-\xc3", "x", "model_id"},
		{"requester not UTF-8", "U\x80", "llama-7b", "x", "requester"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l := newTestLedger(t)
			ctx := context.Background()

			_, err := l.Submit(ctx, tt.requester, tt.modelID, tt.input)
			require.Error(t, err)
			assert.True(t, IsValidationError(err))

			var le *Error
			require.ErrorAs(t, err, &le)
			assert.Equal(t, tt.field, le.Details["field"])

			assert.False(t, l.Store.Sequence().Initialized(), "rejected submit must not touch the sequence")
			assert.Empty(t, l.Recorder.Events())

			id, err := l.Submit(ctx, "U", "llama-7b", "ok")
			require.NoError(t, err)
			assert.Equal(t, uint64(0), id, "next successful submit gets the expected id")
		})
	}
}

func TestLedger_SubmitBoundsAccepted(t *testing.T) {
	l := newTestLedger(t)

	_, err := l.Submit(context.Background(), "U", strings.Repeat("m", 63), strings.Repeat("i", 255))
	assert.NoError(t, err)
}

func TestLedger_SubmitStoresNFC(t *testing.T) {
	l := newTestLedger(t)
	ctx := context.Background()

	id, err := l.Submit(ctx, "U", "cafe\u0301", "re\u0301sume\u0301")
	require.NoError(t, err)

	rec, err := l.Task(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "caf\u00e9", rec.ModelID)
	assert.Equal(t, "r\u00e9sum\u00e9", rec.InputData)

	events := l.Recorder.Events()
	require.Len(t, events, 1)
	assert.Equal(t, rec.ModelID, events[0].Submitted.ModelID)
	assert.Equal(t, rec.InputData, events[0].Submitted.InputPreview)

	stored, err := l.Events(ctx, 0, 0)
	require.NoError(t, err)
	assert.Equal(t, events, stored)
}

func TestLedger_SubmitBoundsApplyToNFC(t *testing.T) {
	l := newTestLedger(t)

	// 64 bytes as given, 63 once "e" + U+0301 composes to U+00E9.
	modelID := strings.Repeat("m", 61) + "e\u0301"
	require.Len(t, modelID, 64)

	_, err := l.Submit(context.Background(), "U", modelID, "x")
	assert.NoError(t, err)
}

func TestLedger_InputPreviewTruncated(t *testing.T) {
	l := newTestLedger(t)
	input := strings.Repeat("abcdefghij", 10)

	taskID, err := l.Submit(context.Background(), "U", "llama-7b", input)
	require.NoError(t, err)

	rec, err := l.Task(context.Background(), taskID)
	require.NoError(t, err)
	assert.Equal(t, input, rec.InputData, "the record keeps the full input")

	events := l.Recorder.Events()
	require.Len(t, events, 1)
	assert.Equal(t, input[:40], events[0].Submitted.InputPreview)
}

func TestLedger_TaskRecordTimestamps(t *testing.T) {
	l := newTestLedger(t)

	taskID, err := l.Submit(context.Background(), "U", "llama-7b", "x")
	require.NoError(t, err)

	rec, err := l.Task(context.Background(), taskID)
	require.NoError(t, err)
	assert.True(t, rec.CreatedAt.Equal(testutil.Epoch))
	assert.Equal(t, ir.Identity("U"), rec.Requester)
}

func TestLedger_ConcurrentSubmitsAreGapFree(t *testing.T) {
	l := newTestLedger(t)
	const n = 200

	ids := make(chan uint64, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			id, err := l.Submit(context.Background(), "U", "llama-7b", "x")
			if err != nil {
				t.Errorf("Submit: %v", err)
				return
			}
			ids <- id
		}()
	}
	wg.Wait()
	close(ids)

	seen := make(map[uint64]bool, n)
	for id := range ids {
		require.False(t, seen[id], "id %d issued twice", id)
		seen[id] = true
	}
	require.Len(t, seen, n)
	for id := uint64(0); id < n; id++ {
		assert.True(t, seen[id], "id %d missing", id)
	}
}

func TestLedger_OutputHashValidation(t *testing.T) {
	tests := []struct {
		name string
		hash string
	}{
		{"empty", ""},
		{"not hex", "xyz1"},
		{"too long", strings.Repeat("ab", 33)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l := newTestLedger(t)
			m := l.Members
			taskID, err := l.Submit(context.Background(), "U", "llama-7b", "x")
			require.NoError(t, err)

			_, err = l.SubmitAttestation(context.Background(), committee.Attest(taskID, tt.hash, m.A, m.B, m.C))
			assert.True(t, IsValidationError(err))
		})
	}
}

func TestLedger_StatusUnknown(t *testing.T) {
	l := newTestLedger(t)
	status, err := l.Status(context.Background(), 5)
	require.NoError(t, err)
	assert.Equal(t, ir.StatusUnknown, status)

	_, err = l.Task(context.Background(), 5)
	assert.True(t, IsTaskNotFound(err))
}

func TestLedger_CommitteeChangeTakesEffect(t *testing.T) {
	members := newTestCommittee(t)
	current := committee.MustNew(members.A.Member(), members.B.Member(), members.C.Member())
	source := sourceFunc(func(context.Context) (*committee.Committee, error) { return current, nil })

	l := New(NewMemoryStore(), source, WithLogger(discardLogger()))
	ctx := context.Background()

	taskID, err := l.Submit(ctx, "U", "llama-7b", "x")
	require.NoError(t, err)

	att := committee.Attest(taskID, "ab", members.C, members.D, members.E)
	_, err = l.SubmitAttestation(ctx, att)
	require.True(t, IsUnknownSigner(err))

	// Governance rotates D and E in.
	current = committee.MustNew(members.C.Member(), members.D.Member(), members.E.Member())
	_, err = l.SubmitAttestation(ctx, att)
	assert.NoError(t, err)
}

func TestLedger_CommitteeSourceError(t *testing.T) {
	source := sourceFunc(func(context.Context) (*committee.Committee, error) { return nil, assert.AnError })
	members := newTestCommittee(t)
	l := New(NewMemoryStore(), source, WithLogger(discardLogger()))
	ctx := context.Background()

	taskID, err := l.Submit(ctx, "U", "llama-7b", "x")
	require.NoError(t, err)

	_, err = l.SubmitAttestation(ctx, committee.Attest(taskID, "ab", members.A, members.B, members.C))
	require.Error(t, err)
	assert.ErrorIs(t, err, assert.AnError)
	assert.Equal(t, ErrorCode(""), CodeOf(err), "infrastructure errors are not protocol rejections")
}

func TestLedger_EventsPaging(t *testing.T) {
	l := newTestLedger(t)
	ctx := context.Background()
	for i := 0; i < 5; i++ {
		_, err := l.Submit(ctx, "U", "llama-7b", "x")
		require.NoError(t, err)
	}

	page, err := l.Events(ctx, 0, 2)
	require.NoError(t, err)
	require.Len(t, page, 2)
	assert.Equal(t, int64(1), page[0].Seq)

	rest, err := l.Events(ctx, page[1].Seq, 0)
	require.NoError(t, err)
	require.Len(t, rest, 3)
	assert.Equal(t, int64(3), rest[0].Seq)
}

type sourceFunc func(ctx context.Context) (*committee.Committee, error)

func (f sourceFunc) Committee(ctx context.Context) (*committee.Committee, error) { return f(ctx) }
