package ledger

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/taskledger/internal/committee"
	"github.com/roach88/taskledger/internal/ir"
)

func TestVerifier_AcceptsQuorum(t *testing.T) {
	tc := newTestCommittee(t)
	v := NewVerifier()

	att := committee.Attest(0, "deadbeef", tc.A, tc.B, tc.C)
	assert.True(t, v.Verify(att.TaskID, att.OutputHash, att.Signatures, att.Signers, tc.Committee))
	assert.NoError(t, v.Check(att, tc.Committee))
}

func TestVerifier_AcceptsFullCommittee(t *testing.T) {
	tc := newTestCommittee(t)
	att := committee.Attest(12, "ab", tc.E, tc.D, tc.C, tc.B, tc.A)
	assert.NoError(t, NewVerifier().Check(att, tc.Committee))
}

func TestVerifier_RejectsBelowThreshold(t *testing.T) {
	tc := newTestCommittee(t)
	v := NewVerifier()

	// Both signatures are individually valid.
	att := committee.Attest(0, "deadbeef", tc.A, tc.B)
	assert.False(t, v.Verify(att.TaskID, att.OutputHash, att.Signatures, att.Signers, tc.Committee))

	err := v.Check(att, tc.Committee)
	require.Error(t, err)
	assert.True(t, IsQuorumNotMet(err))
}

func TestVerifier_RejectsEmptyAttestation(t *testing.T) {
	tc := newTestCommittee(t)
	assert.False(t, NewVerifier().Verify(0, "deadbeef", nil, nil, tc.Committee))
}

func TestVerifier_RejectsDuplicateSigner(t *testing.T) {
	tc := newTestCommittee(t)
	v := NewVerifier()

	// [A, A, B]: nominal count meets quorum, distinct count does not.
	att := committee.Attest(0, "deadbeef", tc.A, tc.A, tc.B)
	assert.False(t, v.Verify(att.TaskID, att.OutputHash, att.Signatures, att.Signers, tc.Committee))

	err := v.Check(att, tc.Committee)
	require.Error(t, err)
	assert.True(t, IsQuorumNotMet(err))
	assert.Contains(t, err.Error(), "duplicate signer")
}

func TestVerifier_DuplicateDetectionIgnoresCase(t *testing.T) {
	tc := newTestCommittee(t)
	att := committee.Attest(0, "deadbeef", tc.A, tc.B, tc.C)
	att.Signers[2] = ir.Identity(strings.ToUpper(string(tc.A.Identity())))

	err := NewVerifier().Check(att, tc.Committee)
	assert.True(t, IsQuorumNotMet(err))
}

func TestVerifier_RejectsUnknownSigner(t *testing.T) {
	tc := newTestCommittee(t)
	outsider := committee.DeterministicSigner("outsider")

	att := committee.Attest(0, "deadbeef", tc.A, tc.B, outsider)
	err := NewVerifier().Check(att, tc.Committee)
	require.Error(t, err)
	assert.True(t, IsUnknownSigner(err))

	var le *Error
	require.ErrorAs(t, err, &le)
	assert.Equal(t, outsider.Identity(), le.Signer)
}

func TestVerifier_RejectsOneInvalidSignature(t *testing.T) {
	tc := newTestCommittee(t)

	// C signs a different output hash; A, B and D are valid.
	att := committee.Attest(0, "deadbeef", tc.A, tc.B, tc.C, tc.D)
	att.Signatures[2] = tc.C.Sign(0, "cafebabe")

	err := NewVerifier().Check(att, tc.Committee)
	require.Error(t, err)
	assert.True(t, IsInvalidSignature(err), "no partial credit for the three valid signatures")

	var le *Error
	require.ErrorAs(t, err, &le)
	assert.Equal(t, tc.C.Identity(), le.Signer)
	assert.Equal(t, "2", le.Details["index"])
}

func TestVerifier_RejectsSignatureForOtherTask(t *testing.T) {
	tc := newTestCommittee(t)
	att := committee.Attest(1, "deadbeef", tc.A, tc.B, tc.C)
	att.TaskID = 2

	assert.True(t, IsInvalidSignature(NewVerifier().Check(att, tc.Committee)))
}

func TestVerifier_RejectsSwappedSignatures(t *testing.T) {
	tc := newTestCommittee(t)
	att := committee.Attest(0, "deadbeef", tc.A, tc.B, tc.C)
	att.Signatures[0], att.Signatures[1] = att.Signatures[1], att.Signatures[0]

	assert.True(t, IsInvalidSignature(NewVerifier().Check(att, tc.Committee)))
}

func TestVerifier_RejectsMalformedSignature(t *testing.T) {
	tc := newTestCommittee(t)
	att := committee.Attest(0, "deadbeef", tc.A, tc.B, tc.C)
	att.Signatures[1] = att.Signatures[1][:10]

	assert.True(t, IsInvalidSignature(NewVerifier().Check(att, tc.Committee)))
}

func TestVerifier_RejectsMismatchedLengths(t *testing.T) {
	tc := newTestCommittee(t)
	att := committee.Attest(0, "deadbeef", tc.A, tc.B, tc.C, tc.D)
	att.Signatures = att.Signatures[:3]

	err := NewVerifier().Check(att, tc.Committee)
	assert.True(t, IsQuorumNotMet(err))
}

func TestVerifier_NilCommittee(t *testing.T) {
	tc := newTestCommittee(t)
	att := committee.Attest(0, "deadbeef", tc.A, tc.B, tc.C)
	assert.False(t, NewVerifier().Verify(att.TaskID, att.OutputHash, att.Signatures, att.Signers, nil))
}

func TestVerifier_Threshold(t *testing.T) {
	assert.Equal(t, ir.QuorumThreshold, NewVerifier().Threshold())
}
