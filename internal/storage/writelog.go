package storage

import "sort"

type entry struct {
	value   []byte
	deleted bool
}

// Layer is a single speculative overlay over a Reader. It never touches
// the base data until Fold is called by its owner.
type Layer struct {
	base    reader
	pending map[string]entry
	order   []string // insertion order, so fold replays mutations deterministically
}

// reader is the subset of Store a Layer needs from whatever it wraps,
// satisfied by both Store and *Layer itself (so layers nest).
type reader interface {
	Read(key string) ([]byte, bool, error)
	Iterate(prefix string, fn func(key string, value []byte) bool) error
}

func newLayer(base reader) *Layer {
	return &Layer{base: base, pending: make(map[string]entry)}
}

func (l *Layer) Read(key string) ([]byte, bool, error) {
	if e, ok := l.pending[key]; ok {
		if e.deleted {
			return nil, false, nil
		}
		return append([]byte(nil), e.value...), true, nil
	}
	return l.base.Read(key)
}

func (l *Layer) Write(key string, value []byte) error {
	if _, exists := l.pending[key]; !exists {
		l.order = append(l.order, key)
	}
	l.pending[key] = entry{value: append([]byte(nil), value...)}
	return nil
}

func (l *Layer) Delete(key string) error {
	if _, exists := l.pending[key]; !exists {
		l.order = append(l.order, key)
	}
	l.pending[key] = entry{deleted: true}
	return nil
}

// Iterate walks keys with prefix in lexicographic order (spec §4.1),
// consulting this layer's pending mutations over the base's contents.
func (l *Layer) Iterate(prefix string, fn func(key string, value []byte) bool) error {
	seen := make(map[string]bool)
	keys := make([]string, 0)

	for k := range l.pending {
		if hasPrefix(k, prefix) {
			keys = append(keys, k)
			seen[k] = true
		}
	}

	var baseErr error
	_ = l.base.Iterate(prefix, func(k string, v []byte) bool {
		if !seen[k] {
			keys = append(keys, k)
		}
		return true
	})
	if baseErr != nil {
		return baseErr
	}

	sort.Strings(keys)
	for _, k := range keys {
		v, ok, err := l.Read(k)
		if err != nil {
			return err
		}
		if !ok {
			continue
		}
		if !fn(k, v) {
			break
		}
	}
	return nil
}

// fold applies this layer's pending mutations onto dst.
func (l *Layer) fold(dst interface {
	Write(string, []byte) error
	Delete(string) error
}) error {
	for _, k := range l.order {
		e := l.pending[k]
		if e.deleted {
			if err := dst.Delete(k); err != nil {
				return err
			}
			continue
		}
		if err := dst.Write(k, e.value); err != nil {
			return err
		}
	}
	return nil
}

// discard drops every pending mutation, leaving the base untouched.
func (l *Layer) discard() {
	l.pending = make(map[string]entry)
	l.order = nil
}

// WriteLog stacks two layers over a committed Store (spec §4.1): a
// block-level layer folded at Commit, and a tx-level layer folded
// or discarded per transaction. Reads always reflect
// tx-level-on-top-of-block-level-on-top-of-committed.
type WriteLog struct {
	committed Store
	block     *Layer
	tx        *Layer
}

// NewWriteLog wraps committed with a fresh block-level layer.
func NewWriteLog(committed Store) *WriteLog {
	wl := &WriteLog{committed: committed}
	wl.block = newLayer(committed)
	return wl
}

// BeginTx opens a new tx-level layer over the current block-level layer.
// It is an error to call BeginTx while one is already open.
func (wl *WriteLog) BeginTx() {
	wl.tx = newLayer(wl.block)
}

// FoldTx folds the open tx-level layer into the block-level layer
// (accepted tx) and clears it.
func (wl *WriteLog) FoldTx() error {
	if wl.tx == nil {
		return nil
	}
	if err := wl.tx.fold(wl.block); err != nil {
		return err
	}
	wl.tx = nil
	return nil
}

// DiscardTx drops the open tx-level layer (rejected tx) without touching
// the block-level layer.
func (wl *WriteLog) DiscardTx() {
	wl.tx = nil
}

// Read, Write, and Delete operate on whichever layer is innermost: the
// tx-level layer if one is open, otherwise the block-level layer.
func (wl *WriteLog) active() *Layer {
	if wl.tx != nil {
		return wl.tx
	}
	return wl.block
}

func (wl *WriteLog) Read(key string) ([]byte, bool, error) { return wl.active().Read(key) }
func (wl *WriteLog) Write(key string, value []byte) error  { return wl.active().Write(key, value) }
func (wl *WriteLog) Delete(key string) error                { return wl.active().Delete(key) }
func (wl *WriteLog) Iterate(prefix string, fn func(key string, value []byte) bool) error {
	return wl.active().Iterate(prefix, fn)
}

// FoldBlock commits the block-level layer into the underlying Store
// (Commit(h): "Merkle-commit the block-level write-log") and starts a
// fresh block-level layer for the next height.
func (wl *WriteLog) FoldBlock() ([32]byte, error) {
	if err := wl.block.fold(wl.committed); err != nil {
		return [32]byte{}, err
	}
	root, err := wl.committed.Commit()
	if err != nil {
		return [32]byte{}, err
	}
	wl.block = newLayer(wl.committed)
	return root, nil
}

// DiscardBlock drops the block-level layer without touching the
// committed store, restoring the pre-block state.
func (wl *WriteLog) DiscardBlock() {
	wl.block.discard()
	wl.tx = nil
}
