// Package bridge implements the bridge-pool outbound path: a
// content-addressed Merkle-accumulator of pending L1 withdrawals, a
// signed-root archive, batch proof construction, and the relayer
// recommendation optimizer (spec §4.7). Grounded in the original source's
// shared/ledger/eth_bridge/bridge_pool.rs accumulator/archive shape and the
// teacher's internal/mempool/mempool.go constructor-and-method-set idiom.
package bridge

import (
	"bytes"
	"crypto/sha256"
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/empower1/ledger/internal/address"
)

var (
	ErrInsufficientGasFee = errors.New("bridge: transfer must escrow at least one gas-fee token")
	ErrUnknownTransfer    = errors.New("bridge: transfer not found in pool")
	ErrNoSignedRoot       = errors.New("bridge: no signed root archived at or before height")
)

// GasFee is the fee locked in escrow to pay a relayer for including a
// transfer in a batch (spec §3: "gas_fee{amount, payer}").
type GasFee struct {
	Amount uint64
	Payer  address.Address
}

// PendingTransfer is an outbound bridge transfer awaiting inclusion under
// a quorum-signed Merkle root (spec §3).
type PendingTransfer struct {
	Asset     string
	Recipient [20]byte // L1 (Ethereum) address
	Sender    address.Address
	Amount    uint64
	GasFee    GasFee
}

// canonicalBytes returns the deterministic encoding whose hash is the
// transfer's identity.
func (t PendingTransfer) canonicalBytes() []byte {
	var buf bytes.Buffer
	writeStr(&buf, t.Asset)
	buf.Write(t.Recipient[:])
	buf.Write(t.Sender.Bytes())
	var amt [8]byte
	binary.BigEndian.PutUint64(amt[:], t.Amount)
	buf.Write(amt[:])
	binary.BigEndian.PutUint64(amt[:], t.GasFee.Amount)
	buf.Write(amt[:])
	buf.Write(t.GasFee.Payer.Bytes())
	return buf.Bytes()
}

func writeStr(buf *bytes.Buffer, s string) {
	var l [4]byte
	binary.BigEndian.PutUint32(l[:], uint32(len(s)))
	buf.Write(l[:])
	buf.WriteString(s)
}

// ContentHash is the transfer's identity (spec §3: "Identity is the
// KECCAK of its canonical encoding"). The real Keccak primitive is out of
// scope here (spec §1 cryptography-primitives non-goal — see DESIGN.md);
// this uses a domain-separated sha256 instead, satisfying the
// content-addressing requirement without inventing a hash this core
// doesn't actually own.
func (t PendingTransfer) ContentHash() [32]byte {
	h := sha256.New()
	h.Write([]byte("empower1-bridge-transfer-v1"))
	h.Write(t.canonicalBytes())
	var out [32]byte
	copy(out[:], h.Sum(nil))
	return out
}

func (t PendingTransfer) String() string {
	ch := t.ContentHash()
	return fmt.Sprintf("transfer{asset=%s amount=%d hash=%x}", t.Asset, t.Amount, ch[:8])
}
