// Package governance implements proposal storage, stake-weighted tallying
// at epoch transitions, and optional code execution (spec §4.6),
// supplemented with a typed status lifecycle and payload kinds from
// other_examples' nhbchain governance-types.go and the original source's
// shell/governance.rs tally-then-execute-then-transfer-funds sequencing
// (see SPEC_FULL.md §3.8).
package governance

import (
	"errors"

	"github.com/empower1/ledger/internal/address"
)

var (
	ErrMissingField  = errors.New("governance: required proposal field missing")
	ErrAlreadyTallied = errors.New("governance: proposal already tallied")
)

// Status is the terminal or in-flight state of a proposal. The distilled
// spec names only the terminal tri-state {Passed, Rejected, Failed}; the
// richer lifecycle below is additive (spec.md's tri-state is unchanged as
// the terminal values this type can reach).
type Status int

const (
	StatusVotingPeriod Status = iota
	StatusPassed
	StatusRejected
	StatusFailed
	StatusExecuted
)

func (s Status) String() string {
	switch s {
	case StatusVotingPeriod:
		return "VotingPeriod"
	case StatusPassed:
		return "Passed"
	case StatusRejected:
		return "Rejected"
	case StatusFailed:
		return "Failed"
	case StatusExecuted:
		return "Executed"
	default:
		return "Unknown"
	}
}

// PayloadKind distinguishes proposals that carry executable code from
// plain signalling proposals, and further classifies code proposals by
// what they do once executed — a supplement beyond the bare code/no-code
// split spec.md describes (SPEC_FULL.md §3.8).
type PayloadKind int

const (
	PayloadNone PayloadKind = iota
	PayloadParamChange
	PayloadTreasuryDirective
	PayloadWASM
)

// Vote is a validator's Yay/Nay ballot on a proposal.
type Vote bool

const (
	Nay Vote = false
	Yay Vote = true
)

// Proposal is the governance entity of spec §3.
type Proposal struct {
	ID              uint64
	Author          address.Address
	FundsLocked     uint64
	VotingStartEpoch uint64
	VotingEndEpoch  uint64
	PayloadKind     PayloadKind
	Code            []byte // present iff PayloadKind != PayloadNone

	Votes  map[string]Vote // validator address textual form -> ballot
	Status Status
}

// NewProposal constructs a proposal in its voting period.
func NewProposal(id uint64, author address.Address, funds uint64, startEpoch, endEpoch uint64, kind PayloadKind, code []byte) *Proposal {
	return &Proposal{
		ID:               id,
		Author:           author,
		FundsLocked:      funds,
		VotingStartEpoch: startEpoch,
		VotingEndEpoch:   endEpoch,
		PayloadKind:      kind,
		Code:             code,
		Votes:            make(map[string]Vote),
		Status:           StatusVotingPeriod,
	}
}

// CastVote records addr's ballot, mutable until VotingEndEpoch (spec §3
// lifecycle). Voting is rejected once the proposal has left its voting
// period — Compute has already tallied it — and from a voter with no
// established identity.
func (p *Proposal) CastVote(addr address.Address, v Vote) error {
	if addr.IsZero() {
		return ErrMissingField
	}
	if p.Status != StatusVotingPeriod {
		return ErrAlreadyTallied
	}
	p.Votes[addr.String()] = v
	return nil
}

// HasCode reports whether passing this proposal triggers code execution.
func (p *Proposal) HasCode() bool {
	return p.PayloadKind != PayloadNone && len(p.Code) > 0
}
