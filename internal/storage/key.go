package storage

import "fmt"

// Codec converts a typed value to and from the bytes stored under a
// StorageKey.
type Codec[V any] interface {
	Encode(V) ([]byte, error)
	Decode([]byte) (V, error)
}

// Accessor is the read/write surface a WriteLog satisfies; StorageKey is
// generic over it so the same typed key works against a WriteLog or a
// bare Store.
type Accessor interface {
	Read(key string) ([]byte, bool, error)
	Write(key string, value []byte) error
	Delete(key string) error
}

// StorageKey pairs a key path with the codec of the value stored there
// (spec §9: "StorageKey<V> carries both the key path and the expected
// codec of V, making reads Option<V> instead of raw bytes" — replacing the
// teacher's duck-typed map[string][]byte contract storage).
type StorageKey[V any] struct {
	path  string
	codec Codec[V]
}

// NewKey builds a typed accessor for path using codec.
func NewKey[V any](path string, codec Codec[V]) StorageKey[V] {
	return StorageKey[V]{path: path, codec: codec}
}

// Path returns the underlying storage key string.
func (k StorageKey[V]) Path() string { return k.path }

// Get reads and decodes the value at k, reporting false if absent.
func (k StorageKey[V]) Get(a Accessor) (V, bool, error) {
	var zero V
	raw, ok, err := a.Read(k.path)
	if err != nil {
		return zero, false, err
	}
	if !ok {
		return zero, false, nil
	}
	v, err := k.codec.Decode(raw)
	if err != nil {
		return zero, false, fmt.Errorf("storage: decode %s: %w", k.path, err)
	}
	return v, true, nil
}

// Set encodes and writes value at k.
func (k StorageKey[V]) Set(a Accessor, value V) error {
	raw, err := k.codec.Encode(value)
	if err != nil {
		return fmt.Errorf("storage: encode %s: %w", k.path, err)
	}
	return a.Write(k.path, raw)
}

// Delete removes the value at k.
func (k StorageKey[V]) Delete(a Accessor) error {
	return a.Delete(k.path)
}

// Sub derives a child key by appending a "/"-delimited segment, for the
// reserved prefixes of spec §6 (e.g. "/gov/<id>/<field>").
func (k StorageKey[V]) Sub(segment string) StorageKey[V] {
	return StorageKey[V]{path: k.path + "/" + segment, codec: k.codec}
}
