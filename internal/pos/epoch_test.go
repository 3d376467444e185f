package pos

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/empower1/ledger/internal/address"
)

func TestEpochManager_EpochAtAndBoundary(t *testing.T) {
	m := NewEpochManager(10)
	assert.Equal(t, uint64(0), m.EpochAt(5))
	assert.Equal(t, uint64(1), m.EpochAt(10))
	assert.False(t, m.CrossesBoundary(5))
	assert.True(t, m.CrossesBoundary(10))
	assert.False(t, m.CrossesBoundary(11))
	assert.False(t, m.CrossesBoundary(0))
}

func TestEpochManager_ZeroBlocksPerEpochDefaultsToOne(t *testing.T) {
	m := NewEpochManager(0)
	assert.Equal(t, uint64(5), m.EpochAt(5))
}

func TestEpochManager_SnapshotAndAt(t *testing.T) {
	m := NewEpochManager(1)
	vs := NewValidatorSet(3, map[address.Address]uint64{})
	m.Snapshot(vs)

	got, ok := m.At(3)
	assert.True(t, ok)
	assert.Same(t, vs, got)

	_, ok = m.At(99)
	assert.False(t, ok)
}
