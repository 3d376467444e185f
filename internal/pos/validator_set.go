// Package pos implements the epoch-scoped validator set and voting-power
// math used by governance tallying and the vote-extension aggregator,
// generalized from the teacher's internal/consensus/pos.go round-robin
// POS{validators, proposerIndex} into a stake-weighted set (spec §3,
// §4.5).
package pos

import (
	"errors"
	"math/big"
	"sort"

	"github.com/empower1/ledger/internal/address"
)

var (
	ErrUnknownValidator = errors.New("pos: unknown validator")
	ErrEmptyValidatorSet = errors.New("pos: validator set is empty")
)

// ValidatorSet is the set of (address, bonded_stake) pairs in effect for
// one epoch (spec §3: "ValidatorSet(epoch)").
type ValidatorSet struct {
	Epoch      uint64
	validators map[string]uint64 // address.Bytes() string -> bonded stake
	order      []address.Address
}

// NewValidatorSet builds a ValidatorSet for epoch from a stake map.
func NewValidatorSet(epoch uint64, stakes map[address.Address]uint64) *ValidatorSet {
	vs := &ValidatorSet{
		Epoch:      epoch,
		validators: make(map[string]uint64, len(stakes)),
	}
	for addr, stake := range stakes {
		vs.validators[string(addr.Bytes())] = stake
		vs.order = append(vs.order, addr)
	}
	sort.Slice(vs.order, func(i, j int) bool {
		return string(vs.order[i].Bytes()) < string(vs.order[j].Bytes())
	})
	return vs
}

// TotalStake returns the sum of bonded stake across the set.
func (vs *ValidatorSet) TotalStake() uint64 {
	var total uint64
	for _, s := range vs.validators {
		total += s
	}
	return total
}

// Stake returns the bonded stake of addr, and whether addr is a member.
func (vs *ValidatorSet) Stake(addr address.Address) (uint64, bool) {
	s, ok := vs.validators[string(addr.Bytes())]
	return s, ok
}

// Contains reports whether addr is a validator in this set.
func (vs *ValidatorSet) Contains(addr address.Address) bool {
	_, ok := vs.validators[string(addr.Bytes())]
	return ok
}

// Validators returns the set's addresses in canonical (byte-sorted) order.
func (vs *ValidatorSet) Validators() []address.Address {
	return append([]address.Address(nil), vs.order...)
}

// VotingPower returns addr's fractional voting power, bonded/total,
// reduced to lowest terms (spec §3).
func (vs *ValidatorSet) VotingPower(addr address.Address) (*big.Rat, error) {
	stake, ok := vs.Stake(addr)
	if !ok {
		return nil, ErrUnknownValidator
	}
	total := vs.TotalStake()
	if total == 0 {
		return nil, ErrEmptyValidatorSet
	}
	return new(big.Rat).SetFrac64(int64(stake), int64(total)), nil
}

// Quorum reports whether the combined stake of signers exceeds 2/3 of
// total stake (spec §4.5: "> 2/3 of stake").
func (vs *ValidatorSet) Quorum(signers []address.Address) bool {
	total := vs.TotalStake()
	if total == 0 {
		return false
	}
	var signed uint64
	seen := make(map[string]bool, len(signers))
	for _, s := range signers {
		key := string(s.Bytes())
		if seen[key] {
			continue
		}
		seen[key] = true
		if stake, ok := vs.validators[key]; ok {
			signed += stake
		}
	}
	// signed/total > 2/3  <=>  3*signed > 2*total
	return new(big.Int).Mul(big.NewInt(3), big.NewInt(int64(signed))).Cmp(
		new(big.Int).Mul(big.NewInt(2), big.NewInt(int64(total)))) > 0
}

// SignaturesNeededForQuorum returns the minimum number of validators,
// taken from sorted descending voting power, whose combined stake exceeds
// 2/3 of total — used by the bridge-pool relayer recommender's
// validator-gas estimate (spec §4.7).
func SignaturesNeededForQuorum(sortedDescStakes []uint64) int {
	var total uint64
	for _, s := range sortedDescStakes {
		total += s
	}
	if total == 0 {
		return 0
	}
	var acc uint64
	for i, s := range sortedDescStakes {
		acc += s
		if new(big.Int).Mul(big.NewInt(3), big.NewInt(int64(acc))).Cmp(
			new(big.Int).Mul(big.NewInt(2), big.NewInt(int64(total)))) > 0 {
			return i + 1
		}
	}
	return len(sortedDescStakes)
}
