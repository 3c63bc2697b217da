package ledger

import (
	"crypto/ed25519"
	"fmt"

	"github.com/roach88/taskledger/internal/committee"
	"github.com/roach88/taskledger/internal/ir"
)

// Verifier checks attestations as quorum certificates.
//
// An attestation is accepted only if it carries at least the threshold of
// distinct, committee-authorized signers, each with a valid ed25519
// signature over CanonicalMessage(task_id, output_hash). One bad signature
// rejects the whole attestation; there is no partial credit.
//
// Verifier holds no mutable state and is safe for concurrent use.
type Verifier struct {
	threshold int
}

// NewVerifier creates a verifier with the protocol threshold (ir.QuorumThreshold).
func NewVerifier() *Verifier {
	return &Verifier{threshold: ir.QuorumThreshold}
}

// Threshold returns the number of signatures required.
func (v *Verifier) Threshold() int {
	return v.threshold
}

// Verify reports whether the signatures form a valid quorum certificate for
// (taskID, outputHash) under c. A false result is a normal outcome: the
// attestation is not yet valid and may be retried with a new signature set.
func (v *Verifier) Verify(
	taskID uint64,
	outputHash string,
	signatures []ir.Signature,
	signers []ir.Identity,
	c *committee.Committee,
) bool {
	return v.Check(ir.Attestation{
		TaskID:     taskID,
		OutputHash: outputHash,
		Signatures: signatures,
		Signers:    signers,
	}, c) == nil
}

// Check is Verify with the reason for rejection.
// Returns a *Error with code QUORUM_NOT_MET, UNKNOWN_SIGNER or
// INVALID_SIGNATURE, or nil when the attestation is accepted.
//
// Checks run in a fixed order: counts, pairing, duplicates, membership,
// then cryptography, so that no signature is verified for an attestation
// that cannot reach quorum.
func (v *Verifier) Check(att ir.Attestation, c *committee.Committee) error {
	// 1. Quorum size
	if len(att.Signatures) < v.threshold || len(att.Signers) < v.threshold {
		return NewQuorumError(att.TaskID, fmt.Sprintf(
			"%d signatures from %d signers, need %d",
			len(att.Signatures), len(att.Signers), v.threshold))
	}
	if len(att.Signatures) != len(att.Signers) {
		return NewQuorumError(att.TaskID, fmt.Sprintf(
			"%d signatures for %d signers", len(att.Signatures), len(att.Signers)))
	}

	// 2. Distinct signers
	seen := make(map[ir.Identity]struct{}, len(att.Signers))
	for _, s := range att.Signers {
		id := committee.Normalize(s)
		if _, dup := seen[id]; dup {
			return &Error{
				Code:    ErrCodeQuorumNotMet,
				Message: "duplicate signer",
				TaskID:  att.TaskID,
				Signer:  id,
				Details: map[string]string{"threshold": fmt.Sprintf("%d", v.threshold)},
			}
		}
		seen[id] = struct{}{}
	}

	// 3. Committee membership
	if c == nil {
		return NewQuorumError(att.TaskID, "no committee configured")
	}
	keys := make([]ed25519.PublicKey, len(att.Signers))
	for i, s := range att.Signers {
		pub, ok := c.PublicKey(s)
		if !ok {
			return NewUnknownSignerError(att.TaskID, committee.Normalize(s))
		}
		keys[i] = pub
	}

	// 4. Canonical message
	msg := ir.CanonicalMessage(att.TaskID, att.OutputHash)

	// 5. Every signature must verify
	for i, sig := range att.Signatures {
		if len(sig) != ed25519.SignatureSize || !ed25519.Verify(keys[i], msg, sig) {
			return NewInvalidSignatureError(att.TaskID, committee.Normalize(att.Signers[i]), i)
		}
	}

	return nil
}
