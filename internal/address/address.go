// Package address implements the ledger's Address sum type: a byte-equal
// identifier that is either derived from a hash of validity-predicate code
// (Established), derived from a public key (Implicit), or one of a fixed
// set of predefined internal addresses that key reserved storage prefixes.
package address

import (
	"bytes"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"

	"github.com/multiformats/go-multibase"
	"github.com/multiformats/go-multicodec"
	"golang.org/x/crypto/ripemd160"
)

var (
	ErrInvalidKind       = errors.New("address: invalid kind byte")
	ErrInvalidLength     = errors.New("address: invalid encoded length")
	ErrInvalidPubKey     = errors.New("address: invalid public key")
	ErrUnknownInternal   = errors.New("address: unknown internal address id")
	ErrInvalidTextual    = errors.New("address: malformed textual encoding")
	ErrMulticodecMismatch = errors.New("address: unexpected multicodec tag")
)

// Kind discriminates the three address variants. The byte value is part of
// the canonical encoding and must never change once a chain has used it.
type Kind byte

const (
	KindEstablished Kind = 0x01
	KindImplicit    Kind = 0x02
	KindInternal    Kind = 0x03
)

// HashLength is the length of the payload carried by Established and
// Implicit addresses: RIPEMD160(SHA256(x)), as in the teacher's
// HashPublicKey derivation.
const HashLength = 20

// addressCodec tags the canonical payload when producing a textual form, so
// the did-style string round-trips through a single multicodec namespace
// rather than relying on positional convention alone.
const addressCodec multicodec.Code = 0x1f00 // private-use range

// Address is a sum type over the three kinds above. Equality is byte
// equality of Kind||Payload, per spec: "Equality is byte-equality of the
// canonical encoding."
type Address struct {
	kind    Kind
	payload []byte
}

// InternalID enumerates the fixed internal addresses that key reserved
// storage prefixes (spec §6: "/pos/…", "/gov/…", "/eth_bridge/pool/…").
type InternalID byte

const (
	InternalPoS InternalID = iota + 1
	InternalGovernance
	InternalBridgePool
	InternalSlashPool
	InternalMasp
	InternalFeeEscrow
)

func (id InternalID) String() string {
	switch id {
	case InternalPoS:
		return "pos"
	case InternalGovernance:
		return "gov"
	case InternalBridgePool:
		return "eth_bridge_pool"
	case InternalSlashPool:
		return "slash_pool"
	case InternalFeeEscrow:
		return "fee_escrow"
	case InternalMasp:
		return "masp"
	default:
		return fmt.Sprintf("internal(%d)", byte(id))
	}
}

// Internal returns the well-known Address for a predefined internal id.
func Internal(id InternalID) Address {
	return Address{kind: KindInternal, payload: []byte{byte(id)}}
}

var (
	PoS          = Internal(InternalPoS)
	Governance   = Internal(InternalGovernance)
	BridgePool   = Internal(InternalBridgePool)
	SlashPool    = Internal(InternalSlashPool)
	Masp         = Internal(InternalMasp)
	FeeEscrow    = Internal(InternalFeeEscrow)
)

// Established builds an Established address from a hash of validity
// predicate code (e.g. a deployed contract). The caller supplies that
// hash; Established derives the address payload from it as
// RIPEMD160(SHA256(codeHash)), the same scheme Implicit applies to a
// public key.
func Established(codeHash [32]byte) (Address, error) {
	h, err := ripemd160Of(codeHash[:])
	if err != nil {
		return Address{}, err
	}
	return Address{kind: KindEstablished, payload: h}, nil
}

// Implicit derives an address directly from an ECDSA P256 public key,
// following the teacher's RIPEMD160(SHA256(pubkey)) scheme.
func Implicit(pub *ecdsa.PublicKey) (Address, error) {
	if pub == nil || pub.Curve != elliptic.P256() {
		return Address{}, ErrInvalidPubKey
	}
	raw := elliptic.Marshal(elliptic.P256(), pub.X, pub.Y)
	h, err := ripemd160Of(raw)
	if err != nil {
		return Address{}, err
	}
	return Address{kind: KindImplicit, payload: h}, nil
}

func ripemd160Of(data []byte) ([]byte, error) {
	sha := sha256.Sum256(data)
	h := ripemd160.New()
	if _, err := h.Write(sha[:]); err != nil {
		return nil, fmt.Errorf("address: ripemd160 write: %w", err)
	}
	sum := h.Sum(nil)
	if len(sum) != HashLength {
		return nil, fmt.Errorf("address: unexpected ripemd160 length %d", len(sum))
	}
	return sum, nil
}

// Kind reports the address's variant.
func (a Address) Kind() Kind { return a.kind }

// IsZero reports whether a is the unset Address value.
func (a Address) IsZero() bool { return a.kind == 0 }

// InternalID returns the internal id, valid only when Kind() == KindInternal.
func (a Address) InternalID() (InternalID, bool) {
	if a.kind != KindInternal || len(a.payload) != 1 {
		return 0, false
	}
	return InternalID(a.payload[0]), true
}

// Bytes returns the canonical binary encoding: one kind byte followed by
// the payload. This is the encoding used for equality, map keys, and
// storage-key construction.
func (a Address) Bytes() []byte {
	out := make([]byte, 0, 1+len(a.payload))
	out = append(out, byte(a.kind))
	out = append(out, a.payload...)
	return out
}

// MarshalBinary implements encoding.BinaryMarshaler so Address can be
// embedded in gob-encoded composite values (e.g. governance.Proposal)
// without gob silently dropping its unexported fields.
func (a Address) MarshalBinary() ([]byte, error) { return a.Bytes(), nil }

// UnmarshalBinary implements encoding.BinaryUnmarshaler, the counterpart
// to MarshalBinary.
func (a *Address) UnmarshalBinary(b []byte) error {
	v, err := FromBytes(b)
	if err != nil {
		return err
	}
	*a = v
	return nil
}

// FromBytes parses the canonical binary encoding produced by Bytes.
func FromBytes(b []byte) (Address, error) {
	if len(b) < 1 {
		return Address{}, ErrInvalidLength
	}
	kind := Kind(b[0])
	payload := b[1:]
	switch kind {
	case KindEstablished, KindImplicit:
		if len(payload) != HashLength {
			return Address{}, fmt.Errorf("%w: expected %d-byte hash payload, got %d", ErrInvalidLength, HashLength, len(payload))
		}
	case KindInternal:
		if len(payload) != 1 {
			return Address{}, fmt.Errorf("%w: internal address payload must be 1 byte, got %d", ErrInvalidLength, len(payload))
		}
	default:
		return Address{}, fmt.Errorf("%w: 0x%x", ErrInvalidKind, byte(kind))
	}
	cp := append([]byte(nil), payload...)
	return Address{kind: kind, payload: cp}, nil
}

// Equal reports canonical byte-equality, per spec.
func (a Address) Equal(other Address) bool {
	return a.kind == other.kind && bytes.Equal(a.payload, other.payload)
}

// String renders the textual form used in logs, events, and RPC output:
// did:empower1:<multicodec-tagged multibase>. It is not used for storage
// keys; StoragePrefix uses the hex form instead so key ordering stays
// stable and printable without base-encoding overhead on the hot path.
func (a Address) String() string {
	tagged := append(multicodec.Header(addressCodec), a.Bytes()...)
	s, err := multibase.Encode(multibase.Base58BTC, tagged)
	if err != nil {
		// multibase.Encode only fails for an unknown base constant, which
		// Base58BTC never is; a panic here would indicate a programming
		// error, not a runtime condition.
		return "ep1:" + hex.EncodeToString(a.Bytes())
	}
	return "did:empower1:" + s
}

// Parse parses the textual form produced by String.
func Parse(s string) (Address, error) {
	const prefix = "did:empower1:"
	if len(s) <= len(prefix) || s[:len(prefix)] != prefix {
		return Address{}, ErrInvalidTextual
	}
	_, tagged, err := multibase.Decode(s[len(prefix):])
	if err != nil {
		return Address{}, fmt.Errorf("%w: %v", ErrInvalidTextual, err)
	}
	code, rest, err := multicodec.Consume(tagged)
	if err != nil {
		return Address{}, fmt.Errorf("%w: %v", ErrInvalidTextual, err)
	}
	if multicodec.Code(code) != addressCodec {
		return Address{}, fmt.Errorf("%w: got 0x%x", ErrMulticodecMismatch, code)
	}
	return FromBytes(rest)
}

// StoragePrefix returns the key segment this address occupies in the
// persisted state layout (spec §6: "#<addr>/…"). Internal addresses use
// their symbolic name so reserved prefixes like "/pos/" stay readable.
func (a Address) StoragePrefix() string {
	if id, ok := a.InternalID(); ok {
		return id.String()
	}
	return hex.EncodeToString(a.Bytes())
}
