package committee

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/taskledger/internal/ir"
)

func members(names ...string) []Member {
	out := make([]Member, len(names))
	for i, n := range names {
		out[i] = DeterministicSigner(n).Member()
	}
	return out
}

func TestNew_FiveMembers(t *testing.T) {
	c, err := New(members("A", "B", "C", "D", "E")...)
	require.NoError(t, err)

	assert.Equal(t, 5, c.Size())
	assert.Equal(t, 2, c.FaultTolerance())
	assert.Equal(t, "C", c.Members()[2].Name)
}

func TestNew_RejectsOversizedCommittee(t *testing.T) {
	_, err := New(members("A", "B", "C", "D", "E", "F")...)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "max 5")
}

func TestNew_RejectsDuplicateKeys(t *testing.T) {
	a := DeterministicSigner("A").Member()
	upper := Member{Name: "A again", Key: ir.Identity(strings.ToUpper(string(a.Key)))}

	_, err := New(a, upper)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "duplicate public key")
}

func TestNew_RejectsBadKeys(t *testing.T) {
	tests := []struct {
		name string
		key  ir.Identity
		want string
	}{
		{"not hex", "zz", "not hex"},
		{"short", "abcd", "2 bytes"},
		{"empty", "", "0 bytes"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(Member{Name: "X", Key: tt.key})
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestCommittee_LookupsNormalize(t *testing.T) {
	a := DeterministicSigner("A")
	c := MustNew(a.Member())

	mixed := ir.Identity("  " + strings.ToUpper(string(a.Identity())) + " ")
	assert.True(t, c.Contains(mixed))
	assert.Equal(t, "A", c.Name(mixed))

	pub, ok := c.PublicKey(mixed)
	require.True(t, ok)
	assert.Len(t, pub, 32)

	assert.False(t, c.Contains(DeterministicSigner("B").Identity()))
	assert.Equal(t, "", c.Name("ff"))
}

func TestCommittee_MembersReturnsCopy(t *testing.T) {
	c := MustNew(members("A", "B", "C")...)
	m := c.Members()
	m[0].Name = "mutated"

	assert.Equal(t, "A", c.Members()[0].Name)
	assert.Equal(t, 0, c.FaultTolerance())
}

func TestMustNew_Panics(t *testing.T) {
	assert.Panics(t, func() { MustNew(Member{Name: "bad", Key: "zz"}) })
}

func TestStatic(t *testing.T) {
	c := MustNew(members("A", "B", "C")...)

	got, err := NewStatic(c).Committee(context.Background())
	require.NoError(t, err)
	assert.Same(t, c, got)

	_, err = NewStatic(nil).Committee(context.Background())
	assert.Error(t, err)
}
