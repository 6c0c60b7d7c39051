// Package entry implements the append-only record log the market engine
// reads and writes. Records are immutable: "updating" state means appending
// a newer record, and readers derive the current state themselves. Each
// append gets a session-scoped, strictly increasing sequence number, and
// Filter returns records in append order.
package entry

// Record kinds stored in the log.
const (
	KindOffer = "offer"
	KindTx    = "tx"
)

// Record is the stored envelope. Owner and Round are the filterable fields;
// Data carries the gob-encoded body (see Encode/Decode).
type Record struct {
	Seq   uint64
	Kind  string
	Owner string
	Round int
	Data  []byte
}

// Query selects records by field equality. Nil fields match everything.
type Query struct {
	Round *int
	Owner *string
}

func (q Query) matches(r Record) bool {
	if q.Round != nil && r.Round != *q.Round {
		return false
	}
	if q.Owner != nil && r.Owner != *q.Owner {
		return false
	}
	return true
}

// Store is a session-scoped entry log.
type Store interface {
	// Append stores a new record and returns its sequence number.
	// Sequence numbers are strictly increasing across all kinds.
	Append(kind, owner string, round int, data []byte) (uint64, error)

	// Filter returns every record of the given kind matching q, in
	// append order.
	Filter(kind string, q Query) ([]Record, error)

	Close() error
}
