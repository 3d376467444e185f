package vote

import (
	"crypto/ecdsa"

	"github.com/empower1/ledger/internal/address"
	"github.com/empower1/ledger/internal/pos"
)

// MultiSignedEvent carries an event and the set of validators that
// contributed it to a quorum (spec §3).
type MultiSignedEvent struct {
	Event   EthereumEvent
	Signers []address.Address
}

// EventDigest is the compressed aggregate of vote extensions across a
// quorum, emitted as the payload of a Protocol{EthEventsDigest} tx (spec
// §3, §4.5).
type EventDigest struct {
	Events     []MultiSignedEvent
	Signatures map[string][]byte // validator address textual form -> VoteExtension signature
}

// ProtocolKeys resolves a validator's protocol (vote-extension signing)
// public key, which may differ from its bonding/staking identity.
type ProtocolKeys interface {
	ProtocolKey(addr address.Address) (*ecdsa.PublicKey, bool)
}

// Aggregate filters and compresses a set of per-validator VoteExtensions
// collected for height h into a single EventDigest (spec §4.5). It is run
// in PrepareProposal of height h+1 over the extensions gathered at height
// h's ExtendVote.
//
// Filtering drops entries silently (they count as absent, never as a
// format error): bad signature, height mismatch, signer outside the
// epoch's validator set. Duplicate events within one extension are
// dropped by VoteExtension.Sign/dedup before this ever sees them, but
// Aggregate defends the invariant again in case an extension arrived
// unsigned-then-mutated.
func Aggregate(extensions []VoteExtension, lastCommittedHeight uint64, vs *pos.ValidatorSet, keys ProtocolKeys) EventDigest {
	type group struct {
		event   EthereumEvent
		signers map[string]address.Address
	}
	groups := make(map[[32]byte]*group)
	sigs := make(map[string][]byte)

	for _, ext := range extensions {
		if ext.BlockHeight != lastCommittedHeight {
			continue
		}
		if !vs.Contains(ext.ValidatorAddr) {
			continue
		}
		pub, ok := keys.ProtocolKey(ext.ValidatorAddr)
		if !ok || !ext.Verify(pub) {
			continue
		}
		sigs[ext.ValidatorAddr.String()] = ext.Signature
		for _, e := range dedup(ext.Events) {
			k := e.hashKey()
			g, ok := groups[k]
			if !ok {
				g = &group{event: e, signers: make(map[string]address.Address)}
				groups[k] = g
			}
			g.signers[string(ext.ValidatorAddr.Bytes())] = ext.ValidatorAddr
		}
	}

	var digest EventDigest
	digest.Signatures = sigs
	for _, g := range groups {
		signers := make([]address.Address, 0, len(g.signers))
		for _, a := range g.signers {
			signers = append(signers, a)
		}
		if !vs.Quorum(signers) {
			// Below 2/3 stake: not included in the digest. The caller
			// (ProcessProposal) treats a proposer who included such an
			// event as Byzantine and rejects the whole block (spec
			// §4.5) — Aggregate itself only ever produces a
			// quorum-valid digest, so the proposer-side check is the
			// place that catches a forged one.
			continue
		}
		digest.Events = append(digest.Events, MultiSignedEvent{Event: g.event, Signers: signers})
	}
	return digest
}

// VerifyDigest re-checks that every event in a received digest meets
// quorum at vs, used by ProcessProposal to reject a block whose proposer
// forged or inflated the digest (spec §4.5, §8: "Σ signer-stake > 2/3 Σ
// total-stake").
func VerifyDigest(d EventDigest, vs *pos.ValidatorSet) error {
	for _, mse := range d.Events {
		if !vs.Quorum(mse.Signers) {
			return ErrInsufficientQuorum
		}
	}
	return nil
}
