// Package vote implements the Ethereum-bridge vote-extension pipeline:
// per-validator observations of L1 events, aggregation across a
// voting-power quorum, and compression into a digest protocol tx (spec
// §4.5), grounded in the teacher's internal/consensus/validation.go
// signature/ordering verification discipline generalized from
// single-proposer block validation to per-validator extension checks.
package vote

import (
	"bytes"
	"crypto/ecdsa"
	"crypto/rand"
	"crypto/sha256"
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/empower1/ledger/internal/address"
)

var (
	ErrBadSignature     = errors.New("vote: bad signature")
	ErrHeightMismatch   = errors.New("vote: block_height mismatch")
	ErrUnknownSigner    = errors.New("vote: signer not in validator set")
	ErrInsufficientQuorum = errors.New("vote: signer stake does not exceed 2/3 quorum")
)

// EventKind enumerates the Ethereum event variants this core mints state
// transitions for.
type EventKind byte

const (
	EventTransfersToNamada EventKind = iota
	EventTransfersToEthereum
	EventValidatorSetUpdate
)

// EthereumEvent is a variant record carrying a monotonically increasing
// per-event-kind nonce (spec §3).
type EthereumEvent struct {
	Kind    EventKind
	Nonce   uint64
	Payload []byte
}

// CanonicalBytes returns the deterministic encoding used for equality,
// hashing, and signing.
func (e EthereumEvent) CanonicalBytes() []byte {
	var buf bytes.Buffer
	buf.WriteByte(byte(e.Kind))
	var n [8]byte
	binary.BigEndian.PutUint64(n[:], e.Nonce)
	buf.Write(n[:])
	var l [4]byte
	binary.BigEndian.PutUint32(l[:], uint32(len(e.Payload)))
	buf.Write(l[:])
	buf.Write(e.Payload)
	return buf.Bytes()
}

// Equal reports canonical equality between two events.
func (e EthereumEvent) Equal(other EthereumEvent) bool {
	return bytes.Equal(e.CanonicalBytes(), other.CanonicalBytes())
}

func (e EthereumEvent) hashKey() [32]byte {
	return sha256.Sum256(e.CanonicalBytes())
}

// ObservedEvent pairs an event with the set of validators that reported
// it (spec §3).
type ObservedEvent struct {
	Event     EthereumEvent
	Observers []address.Address
}

// dedup removes duplicate events within a single extension (spec §4.5),
// keeping the first occurrence and preserving relative order.
func dedup(events []EthereumEvent) []EthereumEvent {
	seen := make(map[[32]byte]bool, len(events))
	out := make([]EthereumEvent, 0, len(events))
	for _, e := range events {
		k := e.hashKey()
		if seen[k] {
			continue
		}
		seen[k] = true
		out = append(out, e)
	}
	return out
}

// VoteExtension is the auxiliary payload a validator attaches to its
// consensus vote at height h, carrying events observed since its last
// signed extension (spec §3, §4.5).
type VoteExtension struct {
	ValidatorAddr address.Address
	BlockHeight   uint64
	Events        []EthereumEvent

	Signature []byte
}

func (v *VoteExtension) canonicalBytes() []byte {
	var buf bytes.Buffer
	buf.Write(v.ValidatorAddr.Bytes())
	var h [8]byte
	binary.BigEndian.PutUint64(h[:], v.BlockHeight)
	buf.Write(h[:])
	var n [4]byte
	binary.BigEndian.PutUint32(n[:], uint32(len(v.Events)))
	buf.Write(n[:])
	for _, e := range v.Events {
		buf.Write(e.CanonicalBytes())
	}
	return buf.Bytes()
}

// Sign computes the signature over the canonical encoding of the inner
// struct (spec §6: "Signature covers the canonical encoding of the inner
// struct"), deduplicating events first.
func (v *VoteExtension) Sign(sk *ecdsa.PrivateKey) error {
	v.Events = dedup(v.Events)
	h := sha256.Sum256(v.canonicalBytes())
	r, s, err := ecdsa.Sign(rand.Reader, sk, h[:])
	if err != nil {
		return fmt.Errorf("vote: sign extension: %w", err)
	}
	v.Signature = encodeRS(r, s)
	return nil
}

// Verify reports whether v.Signature is valid under pub.
func (v *VoteExtension) Verify(pub *ecdsa.PublicKey) bool {
	if pub == nil || len(v.Signature) == 0 {
		return false
	}
	r, s, err := decodeRS(v.Signature)
	if err != nil {
		return false
	}
	h := sha256.Sum256(v.canonicalBytes())
	return ecdsa.Verify(pub, h[:], r, s)
}
