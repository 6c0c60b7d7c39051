package entry

import "sync"

// MemoryStore keeps the log in process memory. Used by tests and
// single-session development runs where durability is not needed.
type MemoryStore struct {
	mu   sync.Mutex
	seq  uint64
	recs map[string][]Record // kind -> records in append order
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{recs: make(map[string][]Record)}
}

func (s *MemoryStore) Append(kind, owner string, round int, data []byte) (uint64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.seq++
	rec := Record{
		Seq:   s.seq,
		Kind:  kind,
		Owner: owner,
		Round: round,
		Data:  append([]byte(nil), data...),
	}
	s.recs[kind] = append(s.recs[kind], rec)
	return rec.Seq, nil
}

func (s *MemoryStore) Filter(kind string, q Query) ([]Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []Record
	for _, r := range s.recs[kind] {
		if q.matches(r) {
			out = append(out, r)
		}
	}
	return out, nil
}

func (s *MemoryStore) Close() error { return nil }

var _ Store = (*MemoryStore)(nil)
