package governance

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/empower1/ledger/internal/address"
	"github.com/empower1/ledger/internal/pos"
)

func newVoter(t *testing.T) address.Address {
	t.Helper()
	sk, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(t, err)
	a, err := address.Implicit(&sk.PublicKey)
	require.NoError(t, err)
	return a
}

func TestCompute_NilProposalFails(t *testing.T) {
	vs := pos.NewValidatorSet(1, map[address.Address]uint64{newVoter(t): 1})
	tally := Compute(nil, vs, DefaultGovernanceQuorumBps)
	assert.Equal(t, StatusFailed, tally.Result)
}

func TestCompute_PassesWhenYayExceedsNayAndQuorumMet(t *testing.T) {
	v1, v2, v3 := newVoter(t), newVoter(t), newVoter(t)
	vs := pos.NewValidatorSet(1, map[address.Address]uint64{v1: 50, v2: 30, v3: 20})

	p := NewProposal(1, v1, 100, 0, 1, PayloadNone, nil)
	p.CastVote(v1, Yay)
	p.CastVote(v2, Nay)

	tally := Compute(p, vs, DefaultGovernanceQuorumBps)
	assert.True(t, tally.QuorumMet)
	assert.Equal(t, StatusPassed, tally.Result)
	assert.Equal(t, uint64(50), tally.YayStake)
	assert.Equal(t, uint64(30), tally.NayStake)
}

func TestCompute_TieIsRejected(t *testing.T) {
	v1, v2 := newVoter(t), newVoter(t)
	vs := pos.NewValidatorSet(1, map[address.Address]uint64{v1: 50, v2: 50})

	p := NewProposal(1, v1, 100, 0, 1, PayloadNone, nil)
	p.CastVote(v1, Yay)
	p.CastVote(v2, Nay)

	tally := Compute(p, vs, DefaultGovernanceQuorumBps)
	assert.Equal(t, StatusRejected, tally.Result, "equal stake must reject, not pass")
}

func TestCompute_ZeroVotesFailsQuorum(t *testing.T) {
	v1 := newVoter(t)
	vs := pos.NewValidatorSet(1, map[address.Address]uint64{v1: 100})
	p := NewProposal(1, v1, 100, 0, 1, PayloadWASM, []byte{0x01})

	tally := Compute(p, vs, DefaultGovernanceQuorumBps)
	assert.False(t, tally.QuorumMet)
	assert.Equal(t, StatusRejected, tally.Result)
}

func TestCompute_VotesBelowQuorumThresholdReject(t *testing.T) {
	v1, v2, v3 := newVoter(t), newVoter(t), newVoter(t)
	vs := pos.NewValidatorSet(1, map[address.Address]uint64{v1: 10, v2: 10, v3: 80})

	p := NewProposal(1, v1, 100, 0, 1, PayloadNone, nil)
	p.CastVote(v1, Yay) // 10/100 turnout, below the ~33.33% default quorum

	tally := Compute(p, vs, DefaultGovernanceQuorumBps)
	assert.False(t, tally.QuorumMet)
	assert.Equal(t, StatusRejected, tally.Result)
}

func TestProposal_HasCode(t *testing.T) {
	author := newVoter(t)
	withCode := NewProposal(1, author, 0, 0, 1, PayloadWASM, []byte{0x01})
	assert.True(t, withCode.HasCode())

	noCode := NewProposal(2, author, 0, 0, 1, PayloadNone, nil)
	assert.False(t, noCode.HasCode())
}
