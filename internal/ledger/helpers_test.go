package ledger

import (
	"io"
	"log/slog"
	"testing"

	"github.com/roach88/taskledger/internal/committee"
	"github.com/roach88/taskledger/internal/testutil"
)

// testCommittee holds five deterministic members A..E, all authorized.
type testCommittee struct {
	A, B, C, D, E *committee.Signer
	Committee     *committee.Committee
}

func newTestCommittee(t *testing.T) *testCommittee {
	t.Helper()
	tc := &testCommittee{
		A: committee.DeterministicSigner("A"),
		B: committee.DeterministicSigner("B"),
		C: committee.DeterministicSigner("C"),
		D: committee.DeterministicSigner("D"),
		E: committee.DeterministicSigner("E"),
	}
	c, err := committee.New(
		tc.A.Member(), tc.B.Member(), tc.C.Member(), tc.D.Member(), tc.E.Member(),
	)
	if err != nil {
		t.Fatalf("committee.New() failed: %v", err)
	}
	tc.Committee = c
	return tc
}

// testLedger bundles a ledger with its in-memory store and recorded events.
type testLedger struct {
	*Ledger
	Store    *MemoryStore
	Recorder *Recorder
	Members  *testCommittee
}

func newTestLedger(t *testing.T, opts ...Option) *testLedger {
	t.Helper()
	members := newTestCommittee(t)
	st := NewMemoryStore()
	rec := NewRecorder()

	base := []Option{
		WithSink(rec),
		WithClock(testutil.NewDeterministicClock()),
		WithLogger(discardLogger()),
		WithRequestIDs(NewFixedGenerator()),
	}
	l := New(st, committee.NewStatic(members.Committee), append(base, opts...)...)
	return &testLedger{Ledger: l, Store: st, Recorder: rec, Members: members}
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
