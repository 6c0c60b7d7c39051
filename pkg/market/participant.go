package market

import "github.com/google/uuid"

// Participant is one trader's session state. Identity and role are fixed at
// join time; the round-scoped fields are reset by Session.StartRound and
// mutated by the engine, both under the session lock. Concurrent readers go
// through Session.Snapshot.
type Participant struct {
	ID      string `json:"id"`
	Ordinal int    `json:"ordinal"` // 1-based join order
	Buyer   bool   `json:"buyer"`   // even ordinals buy, odd ordinals sell

	// Reservation is the private value (buyers) or cost (sellers) drawn at
	// round start.
	Reservation float64 `json:"reservation"`

	// OfferID is the last offer this participant believes is standing.
	OfferID *uuid.UUID `json:"offerId"`

	// TradeID is set once a trade executes and is terminal for the round.
	TradeID *uuid.UUID `json:"tradeId"`

	// Profit is realized profit, set together with TradeID.
	Profit *float64 `json:"profit"`
}

// profitAt applies the role-dependent formula: buyers gain value-price,
// sellers gain price-cost.
func (p *Participant) profitAt(price float64) float64 {
	if p.Buyer {
		return p.Reservation - price
	}
	return price - p.Reservation
}

// resetRound clears round-scoped state ahead of a new round.
func (p *Participant) resetRound(reservation float64) {
	p.Reservation = reservation
	p.OfferID = nil
	p.TradeID = nil
	p.Profit = nil
}
