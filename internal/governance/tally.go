package governance

import "github.com/empower1/ledger/internal/pos"

// Tally is the computed stake-weighted outcome of a proposal's vote (spec
// §4.6).
type Tally struct {
	YayStake    uint64
	NayStake    uint64
	QuorumMet   bool
	Result      Status
}

// QuorumBps is the governance quorum threshold, expressed in basis points
// of total stake that must have voted (Open Question §9, resolved in
// SPEC_FULL.md §5: a single protocol parameter rather than the multiple
// ambiguous thresholds the original source reads).
type QuorumBps uint64

// DefaultGovernanceQuorumBps is the default quorum threshold, ~1/3 of
// total stake (SPEC_FULL.md §3.8).
const DefaultGovernanceQuorumBps QuorumBps = 3333

// Compute tallies p's votes against vs, the validator set snapshotted at
// p.VotingEndEpoch (spec §4.6, step 2). A nil p represents a proposal
// whose required storage fields could not be read, which always tallies
// Failed (spec §4.6, step 1).
func Compute(p *Proposal, vs *pos.ValidatorSet, quorum QuorumBps) Tally {
	if p == nil {
		return Tally{Result: StatusFailed}
	}

	var yay, nay uint64
	for addrStr, v := range p.Votes {
		stake, ok := stakeByString(vs, addrStr)
		if !ok {
			continue
		}
		if v == Yay {
			yay += stake
		} else {
			nay += stake
		}
	}

	total := vs.TotalStake()
	turnout := yay + nay
	quorumMet := total > 0 && 10000*turnout >= uint64(quorum)*total

	t := Tally{YayStake: yay, NayStake: nay, QuorumMet: quorumMet}

	// Tie-break: strictly greater Yay than Nay is required; equal stake
	// is rejected (spec §4.6: "Tie-break").
	if quorumMet && yay > nay {
		t.Result = StatusPassed
	} else {
		t.Result = StatusRejected
	}
	return t
}

func stakeByString(vs *pos.ValidatorSet, addrStr string) (uint64, bool) {
	for _, a := range vs.Validators() {
		if a.String() == addrStr {
			return vs.Stake(a)
		}
	}
	return 0, false
}
