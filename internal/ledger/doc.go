// Package ledger implements the verifiable task ledger.
//
// The ledger runs a two-phase protocol for off-chain compute:
//
//  1. Submit: a requester submits an inference task and receives a unique,
//     strictly increasing task id from the sequence allocator.
//  2. Attest: a committee returns an output hash with signatures; the result
//     is committed only if a quorum of the authorized committee signed that
//     exact (task id, output hash) pair.
//
// ARCHITECTURE:
//
// Ledger (Submit, SubmitAttestation, Task, Result, Status)
//
//	├── Store       persistence port: sequence, tasks, results, event log
//	├── Verifier    quorum certificate check (pure, no I/O)
//	├── Results     one-shot result commit over Store compare-and-create
//	└── Sink        outward notification of TaskSubmitted / ResultVerified
//
// CRITICAL PATTERNS:
//
// Single synchronization point:
// The store's atomic read-increment of the task sequence is the only
// coordination between concurrent submitters. Everything else is keyed by
// the id it returns.
//
// Compare-and-create:
// Results are created only if absent. Concurrent commits for the same task
// yield exactly one success; all others observe ALREADY_COMMITTED.
//
// Rejection is not failure:
// A rejected attestation returns a typed *Error and leaves the task in
// Submitted. Nothing is retried internally.
package ledger
