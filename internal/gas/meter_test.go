package gas

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConsume_WithinLimit(t *testing.T) {
	m := NewMeter(100)
	require.NoError(t, m.Consume(40))
	assert.Equal(t, uint64(40), m.Consumed())
	assert.Equal(t, uint64(60), m.Remaining())
	assert.False(t, m.Exhausted())
}

func TestConsume_ExceedsLimitPinsAtLimit(t *testing.T) {
	m := NewMeter(100)
	require.NoError(t, m.Consume(90))
	err := m.Consume(20)
	assert.ErrorIs(t, err, ErrOutOfGas)
	assert.Equal(t, uint64(100), m.Consumed())
	assert.Equal(t, uint64(0), m.Remaining())
	assert.True(t, m.Exhausted())
}

func TestConsume_OverflowGuard(t *testing.T) {
	m := NewMeter(math.MaxUint64)
	require.NoError(t, m.Consume(math.MaxUint64-1))
	err := m.Consume(math.MaxUint64)
	assert.ErrorIs(t, err, ErrOutOfGas)
	assert.True(t, m.Exhausted())
}

func TestExhausted_ExactlyAtLimit(t *testing.T) {
	m := NewMeter(50)
	require.NoError(t, m.Consume(50))
	assert.True(t, m.Exhausted())
	assert.Equal(t, uint64(0), m.Remaining())
}
