package pos

import (
	"bytes"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/empower1/ledger/internal/address"
)

func newAddr(t *testing.T) address.Address {
	t.Helper()
	sk, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(t, err)
	a, err := address.Implicit(&sk.PublicKey)
	require.NoError(t, err)
	return a
}

func TestQuorum_StrictlyGreaterThanTwoThirds(t *testing.T) {
	v1, v2, v3 := newAddr(t), newAddr(t), newAddr(t)
	vs := NewValidatorSet(1, map[address.Address]uint64{v1: 34, v2: 33, v3: 33})

	// 67/100 is exactly 2/3 rounded; 3*67=201 > 2*100=200, so this is a
	// quorum.
	assert.True(t, vs.Quorum([]address.Address{v1, v2}))
	// 33/100 alone is well under 2/3.
	assert.False(t, vs.Quorum([]address.Address{v3}))
	assert.False(t, vs.Quorum(nil))
}

func TestQuorum_ExactlyTwoThirdsIsNotQuorum(t *testing.T) {
	v1, v2, v3 := newAddr(t), newAddr(t), newAddr(t)
	// 2,1,0 stakes: total 3, 2/3 boundary is exactly 2.
	vs := NewValidatorSet(1, map[address.Address]uint64{v1: 2, v2: 1})
	_ = v3
	assert.False(t, vs.Quorum([]address.Address{v1}), "exactly 2/3 must not satisfy a strict > 2/3 bound")
}

func TestQuorum_DuplicateSignersCountedOnce(t *testing.T) {
	v1, v2 := newAddr(t), newAddr(t)
	vs := NewValidatorSet(1, map[address.Address]uint64{v1: 70, v2: 30})
	assert.True(t, vs.Quorum([]address.Address{v1, v1, v1}))
}

func TestVotingPower_ReducedToLowestTerms(t *testing.T) {
	v1, v2 := newAddr(t), newAddr(t)
	vs := NewValidatorSet(1, map[address.Address]uint64{v1: 50, v2: 50})
	vp, err := vs.VotingPower(v1)
	require.NoError(t, err)
	assert.Equal(t, int64(1), vp.Num().Int64())
	assert.Equal(t, int64(2), vp.Denom().Int64())
}

func TestVotingPower_UnknownValidator(t *testing.T) {
	v1 := newAddr(t)
	vs := NewValidatorSet(1, map[address.Address]uint64{v1: 1})
	_, err := vs.VotingPower(newAddr(t))
	assert.ErrorIs(t, err, ErrUnknownValidator)
}

func TestSignaturesNeededForQuorum(t *testing.T) {
	// Three equal validators: two of them hold exactly 2/3, so all 3 are
	// needed for > 2/3.
	assert.Equal(t, 3, SignaturesNeededForQuorum([]uint64{10, 10, 10}))
	// A single dominant validator alone exceeds 2/3.
	assert.Equal(t, 1, SignaturesNeededForQuorum([]uint64{100, 1, 1}))
	assert.Equal(t, 0, SignaturesNeededForQuorum(nil))
}

func TestValidators_CanonicalByteOrder(t *testing.T) {
	v1, v2 := newAddr(t), newAddr(t)
	vs := NewValidatorSet(1, map[address.Address]uint64{v1: 1, v2: 1})
	ordered := vs.Validators()
	require.Len(t, ordered, 2)
	assert.LessOrEqual(t, bytes.Compare(ordered[0].Bytes(), ordered[1].Bytes()), 0)
}
