package entry

import (
	"encoding/binary"
	"fmt"
	"sync"

	"github.com/cockroachdb/pebble"
)

// PebbleStore is the durable log backend. One store per session; the session
// id is part of the database path, not the keyspace.
//
// keys: e:<kind>:<8-byte-seq> -> gob(Record), m:seq -> last assigned seq
type PebbleStore struct {
	mu  sync.Mutex
	db  *pebble.DB
	seq uint64
}

func kRecord(kind string, seq uint64) []byte {
	k := append([]byte("e:"), kind...)
	k = append(k, ':')
	return append(k, seqKey(seq)...)
}

func kSeq() []byte { return []byte("m:seq") }

func kindPrefix(kind string) []byte {
	k := append([]byte("e:"), kind...)
	return append(k, ':')
}

// keyUpperBound returns the exclusive upper bound for a prefix scan.
func keyUpperBound(prefix []byte) []byte {
	end := append([]byte(nil), prefix...)
	for i := len(end) - 1; i >= 0; i-- {
		end[i]++
		if end[i] != 0 {
			return end[:i+1]
		}
	}
	return nil // prefix is all 0xff
}

// OpenPebble opens (or creates) the log at path and restores the sequence
// counter so appends continue where the previous process stopped.
func OpenPebble(path string) (*PebbleStore, error) {
	db, err := pebble.Open(path, &pebble.Options{})
	if err != nil {
		return nil, fmt.Errorf("open entry log: %w", err)
	}

	s := &PebbleStore{db: db}

	val, closer, err := db.Get(kSeq())
	switch err {
	case nil:
		s.seq = binary.BigEndian.Uint64(val)
		closer.Close()
	case pebble.ErrNotFound:
		// fresh store
	default:
		db.Close()
		return nil, fmt.Errorf("restore seq counter: %w", err)
	}

	return s, nil
}

func (s *PebbleStore) Append(kind, owner string, round int, data []byte) (uint64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	seq := s.seq + 1
	rec := Record{Seq: seq, Kind: kind, Owner: owner, Round: round, Data: data}

	val, err := Encode(rec)
	if err != nil {
		return 0, fmt.Errorf("encode record: %w", err)
	}

	// Record and counter commit together or not at all.
	b := s.db.NewBatch()
	defer b.Close()
	if err := b.Set(kRecord(kind, seq), val, nil); err != nil {
		return 0, err
	}
	if err := b.Set(kSeq(), seqKey(seq), nil); err != nil {
		return 0, err
	}
	if err := b.Commit(pebble.Sync); err != nil {
		return 0, fmt.Errorf("append record: %w", err)
	}

	s.seq = seq
	return seq, nil
}

func (s *PebbleStore) Filter(kind string, q Query) ([]Record, error) {
	prefix := kindPrefix(kind)
	iter, err := s.db.NewIter(&pebble.IterOptions{
		LowerBound: prefix,
		UpperBound: keyUpperBound(prefix),
	})
	if err != nil {
		return nil, err
	}
	defer iter.Close()

	// Keys sort by big-endian seq, so iteration order is append order.
	var out []Record
	for iter.First(); iter.Valid(); iter.Next() {
		var rec Record
		if err := Decode(iter.Value(), &rec); err != nil {
			return nil, fmt.Errorf("decode record %x: %w", iter.Key(), err)
		}
		if q.matches(rec) {
			out = append(out, rec)
		}
	}
	if err := iter.Error(); err != nil {
		return nil, err
	}
	return out, nil
}

func (s *PebbleStore) Close() error { return s.db.Close() }

var _ Store = (*PebbleStore)(nil)
