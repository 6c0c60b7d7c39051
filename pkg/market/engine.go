package market

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/marketlab/dauction/pkg/entry"
)

// Engine is the matching core. All validation happens before any mutation,
// and the whole submit/accept path runs under one session-level lock: two
// accepts racing on the same offer serialize, and the loser's liveness check
// observes the winner's cancellation marker. Participant round-state itself
// is guarded by the session lock, which the engine takes through Snapshot
// and update; the HTTP read path shares that guard. Notifications go out
// before the engine lock is released, so clients observe books in mutation
// order (the hub never blocks on a slow client).
type Engine struct {
	mu       sync.Mutex
	session  *Session
	store    entry.Store
	ledger   *Ledger
	notifier Notifier
	log      *zap.SugaredLogger
}

func NewEngine(session *Session, store entry.Store, notifier Notifier, log *zap.SugaredLogger) *Engine {
	if notifier == nil {
		notifier = NopNotifier{}
	}
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	return &Engine{
		session:  session,
		store:    store,
		ledger:   NewLedger(store),
		notifier: notifier,
		log:      log,
	}
}

func (e *Engine) Session() *Session { return e.session }

// SubmitOffer appends a new offer for the participant. A nil price cancels
// the participant's standing offer; either way the new record supersedes
// everything the participant appended before (ledger latest-wins), so no
// prior record is touched. Returns the submitted price.
func (e *Engine) SubmitOffer(participantID string, round int, price *float64) (*float64, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	p, ok := e.session.Snapshot(participantID)
	if !ok {
		return nil, ErrUnknownParticipant
	}
	if p.TradeID != nil {
		return nil, ErrAlreadyTraded
	}
	if price != nil && *price < 0 {
		return nil, ErrInvalidPrice
	}

	id, err := e.appendOffer(p.ID, round, p.Buyer, price)
	if err != nil {
		return nil, err
	}
	e.session.update(p.ID, func(p *Participant) { p.OfferID = &id })

	if price == nil {
		e.log.Infow("offer_cancelled", "participant", p.ID, "round", round, "offer", id)
	} else {
		e.log.Infow("offer_submitted", "participant", p.ID, "round", round, "offer", id, "buy", p.Buyer, "price", *price)
	}

	e.Broadcast(round)
	return price, nil
}

// AcceptOffer executes a trade against a standing offer from the other side.
// Validation order is fixed: trade gate, liveness, then side. Once mutation
// starts nothing can fail it: the proposer's cancellation marker, both
// profit assignments, the acceptor's own cancellation and the transaction
// record all land inside the same critical section. Returns the acceptor's
// profit.
func (e *Engine) AcceptOffer(acceptorID string, round int, offerID uuid.UUID) (float64, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	acceptor, ok := e.session.Snapshot(acceptorID)
	if !ok {
		return 0, ErrUnknownParticipant
	}
	if acceptor.TradeID != nil {
		return 0, ErrAlreadyTraded
	}

	target, err := e.ledger.Live(round, offerID)
	if err != nil {
		return 0, err
	}
	if target.Buy == acceptor.Buyer {
		return 0, ErrSideMismatch
	}

	proposer, ok := e.session.Snapshot(target.Owner)
	if !ok {
		return 0, fmt.Errorf("offer %s owned by unknown participant %q", target.ID, target.Owner)
	}

	price := *target.Price

	// Cancel the proposer's offer first. The marker forces a newer record
	// for the proposer into the log, so any later liveness check on the
	// accepted id fails.
	if _, err := e.appendOffer(proposer.ID, round, proposer.Buyer, nil); err != nil {
		return 0, err
	}

	// Close out any standing offer of the acceptor's own.
	if _, err := e.appendOffer(acceptor.ID, round, acceptor.Buyer, nil); err != nil {
		return 0, err
	}

	txID, err := e.appendTx(acceptor.ID, round, price, target.ID)
	if err != nil {
		return 0, err
	}

	proposerProfit := proposer.profitAt(price)
	acceptorProfit := acceptor.profitAt(price)
	proposerTrade, acceptorTrade := txID, txID
	e.session.update(proposer.ID, func(p *Participant) {
		p.OfferID = nil
		p.Profit = &proposerProfit
		p.TradeID = &proposerTrade
	})
	e.session.update(acceptor.ID, func(p *Participant) {
		p.OfferID = nil
		p.Profit = &acceptorProfit
		p.TradeID = &acceptorTrade
	})

	e.log.Infow("trade_executed",
		"round", round,
		"tx", txID,
		"offer", target.ID,
		"proposer", proposer.ID,
		"acceptor", acceptor.ID,
		"price", price)

	e.notifier.DirectNotify(proposer.ID, AcceptNotice{Accepted: true, Profit: proposerProfit}, EventAccepted)
	e.Broadcast(round)
	return acceptorProfit, nil
}

// ActiveOffer returns the price of the participant's own offer if it is
// still standing, nil if it was cancelled or superseded. Reconnecting
// clients use it to re-render their state.
func (e *Engine) ActiveOffer(participantID string, round int) (*float64, error) {
	p, ok := e.session.Snapshot(participantID)
	if !ok {
		return nil, ErrUnknownParticipant
	}
	offerID := p.OfferID

	if offerID == nil {
		return nil, nil
	}
	offer, err := e.ledger.Live(round, *offerID)
	if errors.Is(err, ErrOfferInvalid) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return offer.Price, nil
}

// Book assembles the market view for a round: each side's standing offers in
// append order plus every executed trade. Pure read, no broadcast.
func (e *Engine) Book(round int) (Book, error) {
	latest, err := e.ledger.LatestOffers(round)
	if err != nil {
		return Book{}, err
	}

	standing := make([]Offer, 0, len(latest))
	for _, o := range latest {
		if o.Price != nil {
			standing = append(standing, o)
		}
	}
	sort.Slice(standing, func(i, j int) bool { return standing[i].Seq < standing[j].Seq })

	book := Book{Round: round, Bids: []BookEntry{}, Asks: []BookEntry{}}
	for _, o := range standing {
		be := BookEntry{ID: o.ID, Owner: o.Owner, Price: *o.Price}
		if o.Buy {
			book.Bids = append(book.Bids, be)
		} else {
			book.Asks = append(book.Asks, be)
		}
	}

	txs, err := e.ledger.Transactions(round)
	if err != nil {
		return Book{}, err
	}
	book.Txs = txs
	return book, nil
}

// Broadcast pushes the current book to every participant in the session.
// Mutators call it while still holding the engine lock, so the hub receives
// books in mutation order.
func (e *Engine) Broadcast(round int) {
	book, err := e.Book(round)
	if err != nil {
		e.log.Warnw("broadcast_skipped", "round", round, "err", err)
		return
	}
	e.notifier.BroadcastTo(e.session.ParticipantIDs(), book, EventMarket)
}

func (e *Engine) appendOffer(owner string, round int, buy bool, price *float64) (uuid.UUID, error) {
	body := offerBody{ID: uuid.New(), Buy: buy, Price: price}
	data, err := entry.Encode(body)
	if err != nil {
		return uuid.UUID{}, fmt.Errorf("encode offer: %w", err)
	}
	if _, err := e.store.Append(entry.KindOffer, owner, round, data); err != nil {
		return uuid.UUID{}, fmt.Errorf("append offer: %w", err)
	}
	return body.ID, nil
}

func (e *Engine) appendTx(acceptor string, round int, price float64, offerID uuid.UUID) (uuid.UUID, error) {
	body := txBody{ID: uuid.New(), Acceptor: acceptor, Price: price, OfferID: offerID}
	data, err := entry.Encode(body)
	if err != nil {
		return uuid.UUID{}, fmt.Errorf("encode transaction: %w", err)
	}
	if _, err := e.store.Append(entry.KindTx, acceptor, round, data); err != nil {
		return uuid.UUID{}, fmt.Errorf("append transaction: %w", err)
	}
	return body.ID, nil
}
