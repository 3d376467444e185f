package storage

import (
	"bytes"
	"encoding/binary"
	"encoding/gob"
	"fmt"
)

// BytesCodec stores raw bytes verbatim.
type BytesCodec struct{}

func (BytesCodec) Encode(v []byte) ([]byte, error) { return v, nil }
func (BytesCodec) Decode(b []byte) ([]byte, error) { return b, nil }

// Uint64Codec stores a uint64 as 8 big-endian bytes, so lexicographic key
// ordering on a fixed-width numeric suffix also orders numerically.
type Uint64Codec struct{}

func (Uint64Codec) Encode(v uint64) ([]byte, error) {
	var b [8]byte
	binary.BigEndian.PutUint64(b[:], v)
	return b[:], nil
}

func (Uint64Codec) Decode(b []byte) (uint64, error) {
	if len(b) != 8 {
		return 0, fmt.Errorf("uint64 codec: expected 8 bytes, got %d", len(b))
	}
	return binary.BigEndian.Uint64(b), nil
}

// GobCodec adapts encoding/gob to the Codec interface for composite
// values that don't warrant a hand-rolled binary layout, matching the
// teacher's own use of gob for Transaction persistence
// (internal/core/transaction.go's Serialize/DeserializeTransaction).
type GobCodec[V any] struct{}

func (GobCodec[V]) Encode(v V) ([]byte, error) {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(v); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (GobCodec[V]) Decode(b []byte) (V, error) {
	var v V
	if err := gob.NewDecoder(bytes.NewReader(b)).Decode(&v); err != nil {
		return v, err
	}
	return v, nil
}
