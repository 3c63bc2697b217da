// Package store provides SQLite-backed durable storage for the task ledger.
//
// The store holds four tables:
//   - sequences: named counters; "task" issues gap-free task ids
//   - tasks: accepted task records
//   - verified_results: one committed result per task
//   - events: the append-only TaskSubmitted / ResultVerified log
//
// # Critical Patterns
//
// Allocate-and-insert: a task id is drawn from the sequence and the task row
// and its event are inserted in the same transaction. A failed insert rolls
// back the increment, so ids stay gap-free.
//
// Compare-and-create: results are inserted with ON CONFLICT(task_id) DO
// NOTHING and RowsAffected decides the winner. The event row is written only
// by the winner, in the same transaction.
//
// Integrity: every task and result row carries a content digest
// (ir.TaskDigest, ir.ResultDigest) that is rechecked on read.
//
// # Database Configuration
//
// Pragmas are passed as go-sqlite3 DSN options so every pooled connection
// gets them: WAL journal, synchronous=NORMAL, busy_timeout=5000,
// foreign_keys=ON, and immediate write transactions. Schema upgrades are
// tracked in PRAGMA user_version.
package store
