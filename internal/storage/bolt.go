package storage

import (
	"fmt"
	"sort"

	"github.com/boltdb/bolt"
)

var rootBucket = []byte("ledger")

// Bolt is the on-disk Store backend (spec §9: "an interface with two
// implementations (rocks-backed and in-memory for tests)" — bolt stands in
// for the rocks-backed half, since it is the persistent KV the teacher's
// own go.mod already carries).
type Bolt struct {
	db *bolt.DB
}

// OpenBolt opens (creating if absent) a bolt-backed store at path.
func OpenBolt(path string) (*Bolt, error) {
	db, err := bolt.Open(path, 0600, nil)
	if err != nil {
		return nil, fmt.Errorf("storage: open bolt db: %w", err)
	}
	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(rootBucket)
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("storage: create bucket: %w", err)
	}
	return &Bolt{db: db}, nil
}

// Close releases the underlying file handle.
func (b *Bolt) Close() error {
	return b.db.Close()
}

func (b *Bolt) Read(key string) ([]byte, bool, error) {
	var out []byte
	err := b.db.View(func(tx *bolt.Tx) error {
		v := tx.Bucket(rootBucket).Get([]byte(key))
		if v != nil {
			out = append([]byte(nil), v...)
		}
		return nil
	})
	if err != nil {
		return nil, false, fmt.Errorf("storage: bolt read: %w", err)
	}
	return out, out != nil, nil
}

func (b *Bolt) Write(key string, value []byte) error {
	err := b.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(rootBucket).Put([]byte(key), value)
	})
	if err != nil {
		return fmt.Errorf("storage: bolt write: %w", err)
	}
	return nil
}

func (b *Bolt) Delete(key string) error {
	err := b.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(rootBucket).Delete([]byte(key))
	})
	if err != nil {
		return fmt.Errorf("storage: bolt delete: %w", err)
	}
	return nil
}

func (b *Bolt) Iterate(prefix string, fn func(key string, value []byte) bool) error {
	matches := make(map[string][]byte)
	err := b.db.View(func(tx *bolt.Tx) error {
		c := tx.Bucket(rootBucket).Cursor()
		p := []byte(prefix)
		for k, v := c.Seek(p); k != nil && hasPrefix(string(k), prefix); k, v = c.Next() {
			matches[string(k)] = append([]byte(nil), v...)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("storage: bolt iterate: %w", err)
	}
	// bolt's cursor already walks in key order, but Iterate's contract
	// (spec §4.1: lexicographic order) shouldn't depend on that as an
	// incidental detail of the backend, so the traversal order is fixed
	// explicitly the same way Memory.Iterate does.
	for _, k := range sortedKeys(matches) {
		if !fn(k, matches[k]) {
			break
		}
	}
	return nil
}

func (b *Bolt) Commit() ([32]byte, error) {
	data := make(map[string][]byte)
	err := b.db.View(func(tx *bolt.Tx) error {
		c := tx.Bucket(rootBucket).Cursor()
		for k, v := c.First(); k != nil; k, v = c.Next() {
			data[string(k)] = append([]byte(nil), v...)
		}
		return nil
	})
	if err != nil {
		return [32]byte{}, fmt.Errorf("storage: bolt commit scan: %w", err)
	}
	return merkleRoot(data), nil
}

// sortedKeys returns data's keys in lexicographic order, the traversal
// order Commit's root is defined over (spec §4.1: "reproducible across
// nodes").
func sortedKeys(data map[string][]byte) []string {
	keys := make([]string, 0, len(data))
	for k := range data {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
