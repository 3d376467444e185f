package pipeline

import (
	"errors"
	"fmt"

	"github.com/empower1/ledger/internal/address"
	"github.com/empower1/ledger/internal/storage"
)

// ErrUnknownAccount reports a read against an address with no balance
// entry yet, treated as a zero balance rather than an error by Balance.
var ErrUnknownAccount = errors.New("pipeline: unknown account")

func balanceKey(addr address.Address) storage.StorageKey[uint64] {
	return storage.NewKey("#"+addr.StoragePrefix()+"/balance", storage.Uint64Codec{})
}

// Ledger is the narrow balance-accounting surface the pipeline, bridge
// escrow, governance fund transfers, and vmrun.Balances all share. It
// reads and writes through whatever Accessor it is given, so the same
// Ledger value works against a tx-level write-log layer or the
// block-level layer directly.
type Ledger struct{}

// Balance reads addr's balance, defaulting to zero if no entry exists yet.
func (Ledger) Balance(acc storage.Accessor, addr address.Address) (uint64, error) {
	v, ok, err := balanceKey(addr).Get(acc)
	if err != nil {
		return 0, err
	}
	if !ok {
		return 0, nil
	}
	return v, nil
}

// Credit adds amount to addr's balance.
func (l Ledger) Credit(acc storage.Accessor, addr address.Address, amount uint64) error {
	if amount == 0 {
		return nil
	}
	cur, err := l.Balance(acc, addr)
	if err != nil {
		return err
	}
	return balanceKey(addr).Set(acc, cur+amount)
}

// Debit subtracts amount from addr's balance, returning
// ErrWrapperBalanceUnderflow if the balance would go negative (Open
// Question §9, resolved as a typed rejection rather than the source's
// panic-on-underflow behavior).
func (l Ledger) Debit(acc storage.Accessor, addr address.Address, amount uint64) error {
	if amount == 0 {
		return nil
	}
	cur, err := l.Balance(acc, addr)
	if err != nil {
		return err
	}
	if cur < amount {
		return fmt.Errorf("%w: %s has %d, needs %d", ErrWrapperBalanceUnderflow, addr, cur, amount)
	}
	return balanceKey(addr).Set(acc, cur-amount)
}

// Transfer moves amount from from to to atomically within acc; it debits
// before crediting so a partial-write is never observable across a single
// call (the caller's tx-level layer is discarded wholesale on any error
// from a subsequent step, per spec §4.1's write-log invariants).
func (l Ledger) Transfer(acc storage.Accessor, from, to address.Address, amount uint64) error {
	if err := l.Debit(acc, from, amount); err != nil {
		return err
	}
	return l.Credit(acc, to, amount)
}

// vmBalances adapts Ledger to vmrun.Balances for one fixed accessor, so
// WASM host functions can read/move funds through the same accounting
// path as native dispatch (internal/pipeline's dispatch.go).
type vmBalances struct {
	ledger Ledger
	acc    storage.Accessor
}

func (b vmBalances) Balance(addr address.Address) (uint64, error) {
	return b.ledger.Balance(b.acc, addr)
}

func (b vmBalances) Transfer(from, to address.Address, amount uint64) error {
	return b.ledger.Transfer(b.acc, from, to, amount)
}
