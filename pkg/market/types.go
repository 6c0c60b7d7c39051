// Package market implements a continuous double auction: each participant
// is a buyer or a seller with a private reservation value, holds at most one
// standing offer, and trades at most once per round by accepting an offer
// from the other side. All state derives from an append-only entry log.
package market

import (
	"github.com/google/uuid"

	"github.com/marketlab/dauction/pkg/entry"
)

// Offer is a participant's intent to trade, reconstructed from the log.
// A nil Price marks a cancellation: it supersedes the owner's earlier offer
// without placing a new one. Seq is the log position and decides which of an
// owner's records is the active one (highest wins).
type Offer struct {
	ID    uuid.UUID
	Owner string
	Round int
	Buy   bool
	Price *float64
	Seq   uint64
}

// Transaction is an executed trade. Created exactly once per accept.
type Transaction struct {
	ID       uuid.UUID `json:"id"`
	Round    int       `json:"round"`
	Acceptor string    `json:"acceptor"`
	Price    float64   `json:"price"`
	OfferID  uuid.UUID `json:"offerId"`
}

// BookEntry is one standing offer as shown to clients.
type BookEntry struct {
	ID    uuid.UUID `json:"id"`
	Owner string    `json:"owner"`
	Price float64   `json:"price"`
}

// Book is the full market view for one round: standing bids and asks plus
// every executed trade, all in append order.
type Book struct {
	Round int           `json:"round"`
	Bids  []BookEntry   `json:"bids"`
	Asks  []BookEntry   `json:"asks"`
	Txs   []Transaction `json:"txs"`
}

// AcceptNotice is sent directly to a proposer whose offer was accepted.
type AcceptNotice struct {
	Accepted bool    `json:"accepted"`
	Profit   float64 `json:"profit"`
}

// Stored bodies. Owner, round and seq live in the log envelope.
type offerBody struct {
	ID    uuid.UUID
	Buy   bool
	Price *float64
}

type txBody struct {
	ID       uuid.UUID
	Acceptor string
	Price    float64
	OfferID  uuid.UUID
}

func decodeOffer(rec entry.Record) (Offer, error) {
	var body offerBody
	if err := entry.Decode(rec.Data, &body); err != nil {
		return Offer{}, err
	}
	return Offer{
		ID:    body.ID,
		Owner: rec.Owner,
		Round: rec.Round,
		Buy:   body.Buy,
		Price: body.Price,
		Seq:   rec.Seq,
	}, nil
}

func decodeTx(rec entry.Record) (Transaction, error) {
	var body txBody
	if err := entry.Decode(rec.Data, &body); err != nil {
		return Transaction{}, err
	}
	return Transaction{
		ID:       body.ID,
		Round:    rec.Round,
		Acceptor: body.Acceptor,
		Price:    body.Price,
		OfferID:  body.OfferID,
	}, nil
}
