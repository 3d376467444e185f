package pipeline

import (
	"fmt"

	"github.com/empower1/ledger/internal/governance"
	"github.com/empower1/ledger/internal/storage"
)

// govProposalStore persists governance.Proposal values under the
// reserved "/gov/<id>/…" prefix spec §6 names, using the gob codec the
// teacher's own Transaction persistence established (internal/storage/codecs.go).
type govProposalStore struct{}

// govBaseKey is the per-proposal root under the reserved "/gov/<id>/…"
// prefix; individual fields are derived from it with Sub so adding another
// per-proposal sub-key never risks a typo'd sibling path.
func govBaseKey(id uint64) storage.StorageKey[governance.Proposal] {
	return storage.NewKey[governance.Proposal](fmt.Sprintf("gov/%d", id), storage.GobCodec[governance.Proposal]{})
}

func govKey(id uint64) storage.StorageKey[governance.Proposal] {
	return govBaseKey(id).Sub("proposal")
}

// Get reads the proposal with id, if one has been submitted.
func (govProposalStore) Get(acc storage.Accessor, id uint64) (*governance.Proposal, bool, error) {
	v, ok, err := govKey(id).Get(acc)
	if err != nil || !ok {
		return nil, ok, err
	}
	return &v, true, nil
}

// Put writes p back to storage.
func (govProposalStore) Put(acc storage.Accessor, p *governance.Proposal) error {
	return govKey(p.ID).Set(acc, *p)
}
