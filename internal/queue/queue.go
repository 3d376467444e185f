// Package queue implements the FIFO of accepted wrappers awaiting
// decryption in the next block (spec §4.3), including the fee resolution
// for the Undecryptable placeholder (Open Question, spec §9, resolved in
// SPEC_FULL.md §3.4).
package queue

import "github.com/empower1/ledger/internal/txn"

// Entry is a queued wrapper handle: its partial hash (the identity used
// to match a decrypted payload back to its committed wrapper), the wrapper
// metadata needed to compute fees if decryption fails, and the hash of the
// still-encrypted payload committed alongside the wrapper, which the
// decrypted counterpart must reproduce (spec §4.4: "the payload hash
// matches the wrapper's committed code hash").
type Entry struct {
	PartialHash   [32]byte
	Wrapper       txn.Wrapper
	CommittedHash [32]byte
}

// Queue is a FIFO of Entry, committed at block h and consumed by
// PrepareProposal(h+1) in exact insertion order (spec §4.3: "Ordering").
type Queue struct {
	entries []Entry
}

// New constructs an empty queue.
func New() *Queue {
	return &Queue{}
}

// Enqueue appends e to the back of the queue, called at Commit(h) for
// every wrapper accepted in block h.
func (q *Queue) Enqueue(e Entry) {
	q.entries = append(q.entries, e)
}

// Snapshot returns a copy of the queue contents in FIFO order, the
// sequence PrepareProposal(h) replays as decrypted txs (spec §4.4, step
// 3).
func (q *Queue) Snapshot() []Entry {
	return append([]Entry(nil), q.entries...)
}

// Len reports the number of queued entries.
func (q *Queue) Len() int { return len(q.entries) }

// Advance removes the first n entries — called at Commit(h) once their
// decrypted counterparts have run in block h (spec §4.4, Commit).
func (q *Queue) Advance(n int) {
	if n <= 0 {
		return
	}
	if n >= len(q.entries) {
		q.entries = nil
		return
	}
	q.entries = append([]Entry(nil), q.entries[n:]...)
}

// Clone deep-copies the queue; Restore puts a clone's contents back in
// the same order (spec §4.3: "No reordering under revert"). The pipeline
// does not call either: it applies its queue mutations only at Commit,
// so a rejected proposal leaves the queue untouched.
func (q *Queue) Clone() *Queue {
	return &Queue{entries: append([]Entry(nil), q.entries...)}
}

// Restore replaces q's contents with other's.
func (q *Queue) Restore(other *Queue) {
	q.entries = append([]Entry(nil), other.entries...)
}

// UndecryptableCharge computes the fee charged when a queue slot's wrapper
// fails threshold decryption. Per the Open Question resolution, this is
// the wrapper's declared fee at the gas-price floor for a fixed
// base-decryption gas cost — never the full gas_limit, which is a ceiling
// the submitter authorized spending up to, not a pre-committed spend. The
// charge can never exceed the fee the wrapper actually locked.
func UndecryptableCharge(w txn.Wrapper, gasPriceFloor, baseDecryptGas uint64) uint64 {
	charge := gasPriceFloor * baseDecryptGas
	if charge > w.Fee {
		return w.Fee
	}
	return charge
}
