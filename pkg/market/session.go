package market

import (
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/marketlab/dauction/pkg/util"
)

// SessionConfig bounds the private value draw and sets the advisory round
// deadline.
type SessionConfig struct {
	ValueMin      int
	ValueMax      int
	RoundDuration time.Duration
}

func DefaultSessionConfig() SessionConfig {
	return SessionConfig{
		ValueMin:      1,
		ValueMax:      10,
		RoundDuration: 25 * time.Minute,
	}
}

// Session owns participant identity and the round counter. The deadline it
// tracks is advisory: the HTTP layer stops taking submissions once it
// passes, but matching correctness never depends on it.
type Session struct {
	ID string

	mu           sync.RWMutex
	participants []*Participant
	byID         map[string]*Participant
	round        int
	tradeUntil   time.Time

	cfg   SessionConfig
	clock util.Clock
	rng   *rand.Rand
}

func NewSession(id string, clock util.Clock, cfg SessionConfig) *Session {
	if cfg.ValueMax < cfg.ValueMin {
		cfg.ValueMin, cfg.ValueMax = cfg.ValueMax, cfg.ValueMin
	}
	return &Session{
		ID:    id,
		byID:  make(map[string]*Participant),
		cfg:   cfg,
		clock: clock,
		rng:   rand.New(rand.NewSource(clock.Now().UnixNano())),
	}
}

// Join registers a participant. Roles partition by parity of the join
// ordinal: even ordinals buy, odd ordinals sell.
func (s *Session) Join(id string) (*Participant, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.byID[id]; ok {
		return nil, fmt.Errorf("participant %q already joined", id)
	}

	p := &Participant{
		ID:          id,
		Ordinal:     len(s.participants) + 1,
		Reservation: s.draw(),
	}
	p.Buyer = p.Ordinal%2 == 0

	s.participants = append(s.participants, p)
	s.byID[id] = p
	return p, nil
}

// StartRound advances the round counter, resets every participant's
// round-scoped state with a fresh value draw, and arms the deadline.
func (s *Session) StartRound(round int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.round = round
	s.tradeUntil = s.clock.Now().Add(s.cfg.RoundDuration)
	for _, p := range s.participants {
		p.resetRound(s.draw())
	}
}

func (s *Session) draw() float64 {
	span := s.cfg.ValueMax - s.cfg.ValueMin + 1
	return float64(s.cfg.ValueMin + s.rng.Intn(span))
}

func (s *Session) Round() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.round
}

// Deadline returns the advisory end of the current round.
func (s *Session) Deadline() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.tradeUntil
}

// Remaining returns the time left before the deadline, zero once passed.
func (s *Session) Remaining() time.Duration {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if d := s.tradeUntil.Sub(s.clock.Now()); d > 0 {
		return d
	}
	return 0
}

// Open reports whether the current round is still taking submissions.
func (s *Session) Open() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.clock.Now().Before(s.tradeUntil)
}

// Participant returns the live participant record. The pointer is shared:
// callers reading round-scoped fields while the market is running should use
// Snapshot instead.
func (s *Session) Participant(id string) (*Participant, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.byID[id]
	return p, ok
}

// Snapshot returns a copy of the participant's current state, taken under
// the session lock.
func (s *Session) Snapshot(id string) (Participant, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.byID[id]
	if !ok {
		return Participant{}, false
	}
	return *p, true
}

// Snapshots returns a copy of every participant's state in join order.
func (s *Session) Snapshots() []Participant {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Participant, len(s.participants))
	for i, p := range s.participants {
		out[i] = *p
	}
	return out
}

// update runs fn on the participant under the session lock. Engine mutations
// go through here so round-state writes share one guard with StartRound and
// the snapshot readers.
func (s *Session) update(id string, fn func(*Participant)) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.byID[id]
	if !ok {
		return false
	}
	fn(p)
	return true
}

// Participants returns every participant in join order.
func (s *Session) Participants() []*Participant {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]*Participant(nil), s.participants...)
}

// ParticipantIDs returns every participant id in join order.
func (s *Session) ParticipantIDs() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ids := make([]string, len(s.participants))
	for i, p := range s.participants {
		ids[i] = p.ID
	}
	return ids
}
