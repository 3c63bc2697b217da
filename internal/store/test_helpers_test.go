package store

import (
	"io"
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	"github.com/roach88/taskledger/internal/committee"
	"github.com/roach88/taskledger/internal/ir"
	"github.com/roach88/taskledger/internal/ledger"
)

// createTestStore creates a new file-backed store in a temp dir.
func createTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

var testTime = time.Date(2026, 1, 1, 12, 0, 0, 123456789, time.UTC)

// createTestTask creates a task draft with minimal required fields.
func createTestTask(input string) ir.TaskRecord {
	return ir.TaskRecord{
		Requester: "U",
		ModelID:   "llama-7b",
		InputData: input,
		CreatedAt: testTime,
	}
}

// createTestResult creates a result with a three-member signer set.
func createTestResult(taskID uint64, outputHash string) ir.VerifiedResult {
	return ir.VerifiedResult{
		TaskID:     taskID,
		OutputHash: outputHash,
		Timestamp:  testTime.Add(time.Minute),
		SignerSet:  []ir.Identity{"aa", "bb", "cc"},
	}
}

// createTestLedger runs a ledger over s with an empty committee, recording
// the events it emits.
func createTestLedger(t *testing.T, s *Store) (*ledger.Ledger, *ledger.Recorder) {
	t.Helper()
	c, err := committee.New()
	if err != nil {
		t.Fatalf("committee.New() failed: %v", err)
	}
	rec := ledger.NewRecorder()
	l := ledger.New(s, committee.NewStatic(c),
		ledger.WithSink(rec),
		ledger.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
	)
	return l, rec
}
