// Package gas implements the bounded resource accounting shared by WASM
// execution and host-function calls within a single transaction.
package gas

import "errors"

// ErrOutOfGas is returned once a consumption request would push the meter
// past its limit.
var ErrOutOfGas = errors.New("gas: out of gas")

// Meter tracks consumption against a fixed limit for the lifetime of one
// transaction's execution. Unlike the teacher's GasTank it is not atomic:
// the block pipeline is strictly single-threaded per spec §5, so a meter is
// never shared across goroutines.
type Meter struct {
	limit    uint64
	consumed uint64
}

// NewMeter creates a meter bounded by limit.
func NewMeter(limit uint64) *Meter {
	return &Meter{limit: limit}
}

// Consume charges amount against the meter. On overflow it pins Consumed
// at Limit (so Remaining reads zero, not a wrapped negative) and returns
// ErrOutOfGas; the caller must treat this as a deterministic abort of the
// current transaction, never the block (spec §5).
func (m *Meter) Consume(amount uint64) error {
	next := m.consumed + amount
	if next < m.consumed || next > m.limit {
		m.consumed = m.limit
		return ErrOutOfGas
	}
	m.consumed = next
	return nil
}

// Consumed returns the total gas spent so far.
func (m *Meter) Consumed() uint64 { return m.consumed }

// Limit returns the meter's ceiling.
func (m *Meter) Limit() uint64 { return m.limit }

// Remaining returns the unspent gas.
func (m *Meter) Remaining() uint64 {
	if m.consumed >= m.limit {
		return 0
	}
	return m.limit - m.consumed
}

// Exhausted reports whether the meter has no gas left.
func (m *Meter) Exhausted() bool { return m.consumed >= m.limit }
