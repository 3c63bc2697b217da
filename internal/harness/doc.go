// Package harness runs YAML ledger scenarios.
//
// A scenario names a committee of deterministic members, then drives a fresh
// ledger through submit and attest steps. Each step may state the expected
// outcome (a task id, or an error code); assertions then check the final
// state and event log. The trace of step outcomes plus the event log can be
// pinned with golden files.
//
// Example scenario:
//
//	name: duplicate_signer
//	description: A repeated signer does not count twice.
//	committee: [A, B, C, D, E]
//	steps:
//	  - submit: {requester: U, model_id: llama-7b, input: Hello world}
//	    expect: {task_id: 0}
//	  - attest: {task_id: 0, output_hash: deadbeef, signers: [A, A, B]}
//	    expect: {error: QUORUM_NOT_MET}
//	assertions:
//	  - {type: status, task_id: 0, status: submitted}
//
// Member names map to keys through committee.DeterministicSigner, so a name
// absent from the committee list signs with a valid key the ledger does not
// authorize.
package harness
