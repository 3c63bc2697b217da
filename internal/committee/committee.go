// Package committee models the authorized attestation committee.
//
// Membership is supplied from outside the ledger (configuration or a
// governance process) and is read-only to it. Members are identified by the
// lowercase hex encoding of their ed25519 public key.
package committee

import (
	"context"
	"crypto/ed25519"
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/roach88/taskledger/internal/ir"
)

// Member is one committee identity.
type Member struct {
	Name string      `json:"name"` // Display name only; never used for authorization
	Key  ir.Identity `json:"public_key"`
}

// Committee is an immutable set of at most ir.MaxCommittee members.
type Committee struct {
	members []Member
	keys    map[ir.Identity]ed25519.PublicKey
}

// New builds a committee. Keys are normalized to lowercase hex and must be
// valid ed25519 public keys, distinct, and no more than ir.MaxCommittee.
func New(members ...Member) (*Committee, error) {
	if len(members) > ir.MaxCommittee {
		return nil, fmt.Errorf("committee has %d members, max %d", len(members), ir.MaxCommittee)
	}

	c := &Committee{
		members: make([]Member, 0, len(members)),
		keys:    make(map[ir.Identity]ed25519.PublicKey, len(members)),
	}
	for i, m := range members {
		pub, err := ParseIdentity(m.Key)
		if err != nil {
			return nil, fmt.Errorf("member[%d] %q: %w", i, m.Name, err)
		}
		id := Normalize(m.Key)
		if _, dup := c.keys[id]; dup {
			return nil, fmt.Errorf("member[%d] %q: duplicate public key %s", i, m.Name, id)
		}
		c.keys[id] = pub
		c.members = append(c.members, Member{Name: m.Name, Key: id})
	}
	return c, nil
}

// MustNew is like New but panics on error.
// Use only in tests or when inputs are known to be valid.
func MustNew(members ...Member) *Committee {
	c, err := New(members...)
	if err != nil {
		panic(err)
	}
	return c
}

// Size returns the number of members.
func (c *Committee) Size() int {
	return len(c.members)
}

// Members returns the members in configuration order.
func (c *Committee) Members() []Member {
	out := make([]Member, len(c.members))
	copy(out, c.members)
	return out
}

// Contains reports whether id is a current member.
func (c *Committee) Contains(id ir.Identity) bool {
	_, ok := c.keys[Normalize(id)]
	return ok
}

// PublicKey returns the verification key for a member.
func (c *Committee) PublicKey(id ir.Identity) (ed25519.PublicKey, bool) {
	pub, ok := c.keys[Normalize(id)]
	return pub, ok
}

// Name returns the display name of a member, or "" if id is not a member.
func (c *Committee) Name(id ir.Identity) string {
	id = Normalize(id)
	for _, m := range c.members {
		if m.Key == id {
			return m.Name
		}
	}
	return ""
}

// FaultTolerance is how many members may be faulty or absent while a quorum
// can still form.
func (c *Committee) FaultTolerance() int {
	if n := len(c.members) - ir.QuorumThreshold; n > 0 {
		return n
	}
	return 0
}

// Normalize returns the canonical (lowercase, trimmed) form of an identity.
func Normalize(id ir.Identity) ir.Identity {
	return ir.Identity(strings.ToLower(strings.TrimSpace(string(id))))
}

// ParseIdentity decodes a hex-encoded ed25519 public key.
func ParseIdentity(id ir.Identity) (ed25519.PublicKey, error) {
	b, err := hex.DecodeString(string(Normalize(id)))
	if err != nil {
		return nil, fmt.Errorf("public key is not hex: %w", err)
	}
	if len(b) != ed25519.PublicKeySize {
		return nil, fmt.Errorf("public key is %d bytes, want %d", len(b), ed25519.PublicKeySize)
	}
	return ed25519.PublicKey(b), nil
}

// Source supplies the current committee. The ledger asks for it on every
// attestation so membership changes take effect without a restart.
type Source interface {
	Committee(ctx context.Context) (*Committee, error)
}

// Static is a Source with fixed membership.
type Static struct {
	c *Committee
}

// NewStatic wraps a committee as a Source.
func NewStatic(c *Committee) Static {
	return Static{c: c}
}

// Committee implements Source.
func (s Static) Committee(ctx context.Context) (*Committee, error) {
	if s.c == nil {
		return nil, fmt.Errorf("static committee: not configured")
	}
	return s.c, nil
}
