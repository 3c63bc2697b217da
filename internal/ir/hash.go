package ir

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strconv"
)

// Domain prefixes for content digests.
// Version suffix enables future algorithm migration.
const (
	DomainResult = "taskledger/result/v1"
	DomainTask   = "taskledger/task/v1"
)

// hashWithDomain computes SHA-256 hash with domain separation.
// Format: SHA256(domain + 0x00 + data)
func hashWithDomain(domain string, data []byte) string {
	h := sha256.New()
	h.Write([]byte(domain))
	h.Write([]byte{0x00}) // Null separator
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}

// CanonicalMessage is the exact byte string committee members sign:
// the decimal task id, a colon, then the output hash.
//
//	CanonicalMessage(0, "deadbeef") // "0:deadbeef"
func CanonicalMessage(taskID uint64, outputHash string) []byte {
	msg := strconv.AppendUint(nil, taskID, 10)
	msg = append(msg, ':')
	return append(msg, outputHash...)
}

// HashOutput returns the lowercase hex SHA-256 of an inference output payload.
// Committee members attest to this value, never to the raw output.
func HashOutput(payload []byte) string {
	sum := sha256.Sum256(payload)
	return hex.EncodeToString(sum[:])
}

// TaskDigest computes a content digest of a task record.
// created_at is encoded as Unix nanoseconds.
func TaskDigest(rec TaskRecord) (string, error) {
	canonical, err := MarshalCanonical(map[string]any{
		"task_id":    rec.TaskID,
		"requester":  rec.Requester,
		"model_id":   rec.ModelID,
		"input_data": rec.InputData,
		"created_at": rec.CreatedAt.UnixNano(),
	})
	if err != nil {
		return "", fmt.Errorf("TaskDigest: failed to marshal: %w", err)
	}
	return hashWithDomain(DomainTask, canonical), nil
}

// ResultDigest computes a content digest of a verified result, usable as a
// receipt by observers. Signer order is preserved.
func ResultDigest(res VerifiedResult) (string, error) {
	signers := make([]any, len(res.SignerSet))
	for i, s := range res.SignerSet {
		signers[i] = s
	}
	canonical, err := MarshalCanonical(map[string]any{
		"task_id":     res.TaskID,
		"output_hash": res.OutputHash,
		"timestamp":   res.Timestamp.UnixNano(),
		"signer_set":  signers,
	})
	if err != nil {
		return "", fmt.Errorf("ResultDigest: failed to marshal: %w", err)
	}
	return hashWithDomain(DomainResult, canonical), nil
}
