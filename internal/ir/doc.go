// Package ir provides the canonical record types for the task ledger.
//
// This package contains type definitions and pure helpers only. All other
// internal packages import ir; ir imports nothing internal.
//
// Key design constraints:
//   - Task ids are uint64 and issued only by the ledger's sequence allocator
//   - Records are immutable once created; there are no update helpers here
//   - All JSON tags use snake_case
//   - Hashes and event payloads use canonical JSON (see MarshalCanonical)
package ir
