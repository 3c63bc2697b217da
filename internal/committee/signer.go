package committee

import (
	"crypto/ed25519"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/roach88/taskledger/internal/ir"
)

// seedDomain separates name-derived test seeds from any other use of SHA-256.
const seedDomain = "taskledger/committee-seed/v1"

// Signer is the off-chain half of a committee member: it holds the private
// key and signs canonical messages. The ledger never holds a Signer.
type Signer struct {
	name string
	key  ed25519.PrivateKey
}

// NewSigner wraps an existing private key.
func NewSigner(name string, key ed25519.PrivateKey) *Signer {
	return &Signer{name: name, key: key}
}

// GenerateSigner creates a signer with a fresh key from rand
// (crypto/rand.Reader when nil).
func GenerateSigner(name string, rand io.Reader) (*Signer, error) {
	_, key, err := ed25519.GenerateKey(rand)
	if err != nil {
		return nil, fmt.Errorf("generate key: %w", err)
	}
	return NewSigner(name, key), nil
}

// SignerFromSeed derives a signer from a 32-byte ed25519 seed.
func SignerFromSeed(name string, seed []byte) (*Signer, error) {
	if len(seed) != ed25519.SeedSize {
		return nil, fmt.Errorf("seed is %d bytes, want %d", len(seed), ed25519.SeedSize)
	}
	return NewSigner(name, ed25519.NewKeyFromSeed(seed)), nil
}

// DeterministicSigner derives a signer whose key depends only on name.
// For tests, scenarios and demos; never for real committees.
func DeterministicSigner(name string) *Signer {
	h := sha256.New()
	h.Write([]byte(seedDomain))
	h.Write([]byte{0x00})
	h.Write([]byte(name))
	return NewSigner(name, ed25519.NewKeyFromSeed(h.Sum(nil)))
}

// Name returns the signer's display name.
func (s *Signer) Name() string {
	return s.name
}

// Identity returns the lowercase hex public key.
func (s *Signer) Identity() ir.Identity {
	return ir.Identity(hex.EncodeToString(s.key.Public().(ed25519.PublicKey)))
}

// Member returns the committee entry for this signer.
func (s *Signer) Member() Member {
	return Member{Name: s.name, Key: s.Identity()}
}

// Seed returns the private seed, hex encoded.
func (s *Signer) Seed() string {
	return hex.EncodeToString(s.key.Seed())
}

// Sign signs the canonical message for (taskID, outputHash).
func (s *Signer) Sign(taskID uint64, outputHash string) ir.Signature {
	return ir.Signature(ed25519.Sign(s.key, ir.CanonicalMessage(taskID, outputHash)))
}

// Attest assembles an attestation signed by every signer, in order.
func Attest(taskID uint64, outputHash string, signers ...*Signer) ir.Attestation {
	att := ir.Attestation{
		TaskID:     taskID,
		OutputHash: outputHash,
		Signatures: make([]ir.Signature, len(signers)),
		Signers:    make([]ir.Identity, len(signers)),
	}
	for i, s := range signers {
		att.Signatures[i] = s.Sign(taskID, outputHash)
		att.Signers[i] = s.Identity()
	}
	return att
}

// WriteKeyFile stores the signer's seed as hex, readable only by the owner.
// Parent directories are created as needed.
func WriteKeyFile(path string, s *Signer) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return fmt.Errorf("write key file: %w", err)
	}
	if err := os.WriteFile(path, []byte(s.Seed()+"\n"), 0o600); err != nil {
		return fmt.Errorf("write key file: %w", err)
	}
	return nil
}

// ReadKeyFile loads a signer from a hex seed file written by WriteKeyFile.
func ReadKeyFile(path, name string) (*Signer, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read key file: %w", err)
	}
	seed, err := hex.DecodeString(strings.TrimSpace(string(data)))
	if err != nil {
		return nil, fmt.Errorf("read key file %s: seed is not hex: %w", path, err)
	}
	return SignerFromSeed(name, seed)
}
