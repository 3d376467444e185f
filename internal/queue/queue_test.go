package queue

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/empower1/ledger/internal/txn"
)

func TestEnqueueSnapshot_PreservesFIFOOrder(t *testing.T) {
	q := New()
	q.Enqueue(Entry{PartialHash: [32]byte{1}})
	q.Enqueue(Entry{PartialHash: [32]byte{2}})
	q.Enqueue(Entry{PartialHash: [32]byte{3}})

	snap := q.Snapshot()
	assert.Len(t, snap, 3)
	assert.Equal(t, [32]byte{1}, snap[0].PartialHash)
	assert.Equal(t, [32]byte{2}, snap[1].PartialHash)
	assert.Equal(t, [32]byte{3}, snap[2].PartialHash)
}

func TestAdvance_RemovesFromFront(t *testing.T) {
	q := New()
	q.Enqueue(Entry{PartialHash: [32]byte{1}})
	q.Enqueue(Entry{PartialHash: [32]byte{2}})
	q.Enqueue(Entry{PartialHash: [32]byte{3}})

	q.Advance(2)
	assert.Equal(t, 1, q.Len())
	assert.Equal(t, [32]byte{3}, q.Snapshot()[0].PartialHash)
}

func TestAdvance_BeyondLengthEmptiesQueue(t *testing.T) {
	q := New()
	q.Enqueue(Entry{PartialHash: [32]byte{1}})
	q.Advance(100)
	assert.Equal(t, 0, q.Len())
}

func TestCloneRestore_RoundTripIsIndependent(t *testing.T) {
	q := New()
	q.Enqueue(Entry{PartialHash: [32]byte{1}})
	clone := q.Clone()

	q.Enqueue(Entry{PartialHash: [32]byte{2}})
	assert.Equal(t, 1, clone.Len(), "clone must not observe later mutations")

	q.Restore(clone)
	assert.Equal(t, 1, q.Len())
}

func TestUndecryptableCharge_CapsAtWrapperFee(t *testing.T) {
	w := txn.Wrapper{Fee: 5, GasLimit: 10000}
	// gasPriceFloor*baseDecryptGas exceeds the fee: charge must cap at Fee,
	// never the full gas_limit (spec §9 Open Question resolution).
	assert.Equal(t, uint64(5), UndecryptableCharge(w, 10, 100))

	w2 := txn.Wrapper{Fee: 1000, GasLimit: 10000}
	assert.Equal(t, uint64(1000), UndecryptableCharge(w2, 10, 100))
}
