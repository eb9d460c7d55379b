package proposal

import (
	"encoding/binary"
	"fmt"
	"sync"

	"github.com/cockroachdb/pebble"

	pebblestore "github.com/ballothq/ballot/internal/storage/pebble"
)

// Keyspace: proposal/<8-byte big-endian key>
var recordPrefix = []byte("proposal/")

func recordKey(key uint64) []byte {
	k := make([]byte, 0, len(recordPrefix)+8)
	k = append(k, recordPrefix...)
	var kb [8]byte
	binary.BigEndian.PutUint64(kb[:], key)
	return append(k, kb[:]...)
}

// prefixUpperBound returns the smallest key sorting after every key with
// the given prefix. Key suffixes are raw binary, so the bound must come
// from incrementing the prefix itself, not from appending a sentinel
// byte.
func prefixUpperBound(prefix []byte) []byte {
	end := append([]byte(nil), prefix...)
	for i := len(end) - 1; i >= 0; i-- {
		end[i]++
		if end[i] != 0 {
			return end[:i+1]
		}
	}
	return nil
}

// Registry is a durable mapping from 64-bit keys to proposal records.
//
// Get and Put are each atomic against the store. The record count is
// seeded by one keyspace scan at open and adjusted on insert, so Count
// never scans per call. Check-then-write cycles spanning Get and Put are
// serialized by the service layer.
type Registry struct {
	db       *pebblestore.DB
	maxBytes int

	mu    sync.Mutex
	count uint64
}

// OpenRegistry opens the registry over db. maxBytes caps the serialized
// record size; values <= 0 fall back to MaxRecordBytes.
func OpenRegistry(db *pebblestore.DB, maxBytes int) (*Registry, error) {
	if maxBytes <= 0 {
		maxBytes = MaxRecordBytes
	}
	r := &Registry{db: db, maxBytes: maxBytes}

	it, err := db.NewIter(&pebble.IterOptions{
		LowerBound: recordPrefix,
		UpperBound: prefixUpperBound(recordPrefix),
	})
	if err != nil {
		return nil, fmt.Errorf("registry: seed count: %w", err)
	}
	defer func() { _ = it.Close() }()
	for ok := it.First(); ok; ok = it.Next() {
		r.count++
	}
	return r, nil
}

// Get returns a copy of the record at key, or ok=false if absent.
func (r *Registry) Get(key uint64) (*Proposal, bool, error) {
	b, err := r.db.Get(recordKey(key))
	if err != nil {
		if err == pebblestore.ErrNotFound {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("registry: get %d: %w", key, err)
	}
	pr, err := Decode(b)
	if err != nil {
		return nil, false, fmt.Errorf("registry: get %d: %w", key, err)
	}
	return pr, true, nil
}

// Put inserts or overwrites the record at key and returns the previous
// record if one existed. The write fails with ErrRecordTooLarge when the
// encoded value exceeds the registry's byte cap; nothing is truncated.
func (r *Registry) Put(key uint64, pr *Proposal) (*Proposal, error) {
	enc := Encode(pr)
	if len(enc) > r.maxBytes {
		return nil, fmt.Errorf("registry: put %d: %d bytes: %w", key, len(enc), ErrRecordTooLarge)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	prev, existed, err := r.Get(key)
	if err != nil {
		return nil, err
	}
	if err := r.db.Set(recordKey(key), enc); err != nil {
		return nil, fmt.Errorf("registry: put %d: %w", key, err)
	}
	if !existed {
		r.count++
		return nil, nil
	}
	return prev, nil
}

// Count returns the number of stored records.
func (r *Registry) Count() uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.count
}

// RawGet returns the stored bytes for key without decoding. Used by
// tests to assert that rejected operations leave records byte-identical.
func (r *Registry) RawGet(key uint64) ([]byte, error) {
	return r.db.Get(recordKey(key))
}
