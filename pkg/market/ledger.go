package market

import (
	"fmt"

	"github.com/google/uuid"

	"github.com/marketlab/dauction/pkg/entry"
)

// Ledger derives the active-offer view from the entry log. It holds no state
// of its own: every query is a fresh projection over the append-ordered
// records, so it never needs the store to support updates.
type Ledger struct {
	store entry.Store
}

func NewLedger(store entry.Store) *Ledger {
	return &Ledger{store: store}
}

// LatestOffers returns each participant's most recently appended offer for
// the round, cancellation markers included. Last write wins; a single pass
// in append order is enough.
func (l *Ledger) LatestOffers(round int) (map[string]Offer, error) {
	recs, err := l.store.Filter(entry.KindOffer, entry.Query{Round: &round})
	if err != nil {
		return nil, fmt.Errorf("read offers: %w", err)
	}

	latest := make(map[string]Offer, len(recs))
	for _, rec := range recs {
		o, err := decodeOffer(rec)
		if err != nil {
			return nil, fmt.Errorf("decode offer %d: %w", rec.Seq, err)
		}
		latest[o.Owner] = o
	}
	return latest, nil
}

// Live returns the offer only if it is still its owner's active offer for
// the round. A missing id, a cancellation marker, and a superseded offer all
// fail with ErrOfferInvalid: the caller must not learn which race it lost.
func (l *Ledger) Live(round int, id uuid.UUID) (Offer, error) {
	recs, err := l.store.Filter(entry.KindOffer, entry.Query{Round: &round})
	if err != nil {
		return Offer{}, fmt.Errorf("read offers: %w", err)
	}

	var target Offer
	found := false
	latest := make(map[string]Offer, len(recs))
	for _, rec := range recs {
		o, err := decodeOffer(rec)
		if err != nil {
			return Offer{}, fmt.Errorf("decode offer %d: %w", rec.Seq, err)
		}
		latest[o.Owner] = o
		if o.ID == id {
			target = o
			found = true
		}
	}

	if !found {
		return Offer{}, ErrOfferInvalid
	}
	if target.Price == nil {
		// A cancellation marker is never a live offer.
		return Offer{}, ErrOfferInvalid
	}
	if latest[target.Owner].Seq != target.Seq {
		// Owner cancelled or re-offered since.
		return Offer{}, ErrOfferInvalid
	}
	return target, nil
}

// Transactions returns every executed trade for the round in append order.
func (l *Ledger) Transactions(round int) ([]Transaction, error) {
	recs, err := l.store.Filter(entry.KindTx, entry.Query{Round: &round})
	if err != nil {
		return nil, fmt.Errorf("read transactions: %w", err)
	}

	txs := make([]Transaction, 0, len(recs))
	for _, rec := range recs {
		tx, err := decodeTx(rec)
		if err != nil {
			return nil, fmt.Errorf("decode transaction %d: %w", rec.Seq, err)
		}
		txs = append(txs, tx)
	}
	return txs, nil
}
