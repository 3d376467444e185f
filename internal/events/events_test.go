package events

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBus_OrdersByTxIndexThenEmissionOrder(t *testing.T) {
	bus := NewBus()
	bus.Emit(Event{Type: "b", TxIndex: 1})
	bus.Emit(Event{Type: "a", TxIndex: 0})
	bus.Emit(Event{Type: "c", TxIndex: 1})
	bus.Emit(Event{Type: "d", TxIndex: 0})

	got := bus.Events()
	assert.Len(t, got, 4)
	assert.Equal(t, []string{"a", "d", "b", "c"}, []string{got[0].Type, got[1].Type, got[2].Type, got[3].Type})
}

func TestNew_NilAttributesBecomesEmptyMap(t *testing.T) {
	ev := New(TypeTransfer, LevelInfo, nil)
	assert.NotNil(t, ev.Attributes)
	assert.Empty(t, ev.Attributes)
}

func TestBus_ResetClearsEvents(t *testing.T) {
	bus := NewBus()
	bus.Emit(Event{Type: "x"})
	bus.Reset()
	assert.Empty(t, bus.Events())
}
