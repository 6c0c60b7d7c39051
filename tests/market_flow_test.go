package tests

import (
	"testing"
	"time"

	"github.com/marketlab/dauction/pkg/entry"
	"github.com/marketlab/dauction/pkg/market"
	"github.com/marketlab/dauction/pkg/util"
)

func fp(v float64) *float64 { return &v }

func newSession(t *testing.T, n int) *market.Session {
	sess := market.NewSession("flow", util.RealClock{}, market.SessionConfig{
		ValueMin:      1,
		ValueMax:      10,
		RoundDuration: time.Hour,
	})
	ids := []string{"p1", "p2", "p3", "p4", "p5", "p6"}
	for i := 0; i < n; i++ {
		if _, err := sess.Join(ids[i]); err != nil {
			t.Fatalf("join %s: %v", ids[i], err)
		}
	}
	sess.StartRound(1)
	return sess
}

// TestFullTradingRound walks a session through a complete round: offers,
// re-offers, a cancellation, a trade, and the stale-accept rejection.
func TestFullTradingRound(t *testing.T) {
	sess := newSession(t, 4)
	store := entry.NewMemoryStore()
	eng := market.NewEngine(sess, store, nil, nil)

	// p1/p3 sell, p2/p4 buy
	p1, _ := sess.Participant("p1")
	p2, _ := sess.Participant("p2")
	p1.Reservation = 2
	p2.Reservation = 9

	// Everyone quotes.
	if _, err := eng.SubmitOffer("p2", 1, fp(4)); err != nil {
		t.Fatalf("p2 bid: %v", err)
	}
	if _, err := eng.SubmitOffer("p1", 1, fp(8)); err != nil {
		t.Fatalf("p1 ask: %v", err)
	}
	if _, err := eng.SubmitOffer("p4", 1, fp(3)); err != nil {
		t.Fatalf("p4 bid: %v", err)
	}
	if _, err := eng.SubmitOffer("p3", 1, fp(7)); err != nil {
		t.Fatalf("p3 ask: %v", err)
	}

	// p2 improves their bid; the old bid id must die.
	book, err := eng.Book(1)
	if err != nil {
		t.Fatalf("book: %v", err)
	}
	staleBid := book.Bids[0].ID
	if _, err := eng.SubmitOffer("p2", 1, fp(5)); err != nil {
		t.Fatalf("p2 re-bid: %v", err)
	}
	if _, err := eng.AcceptOffer("p1", 1, staleBid); err != market.ErrOfferInvalid {
		t.Fatalf("stale bid accept: want ErrOfferInvalid, got %v", err)
	}

	// p4 withdraws.
	if _, err := eng.SubmitOffer("p4", 1, nil); err != nil {
		t.Fatalf("p4 cancel: %v", err)
	}

	book, err = eng.Book(1)
	if err != nil {
		t.Fatalf("book: %v", err)
	}
	if len(book.Bids) != 1 || len(book.Asks) != 2 {
		t.Fatalf("book shape: got %d bids / %d asks, want 1/2", len(book.Bids), len(book.Asks))
	}

	// p1 lifts p2's bid at 5.
	profit, err := eng.AcceptOffer("p1", 1, book.Bids[0].ID)
	if err != nil {
		t.Fatalf("accept: %v", err)
	}
	if profit != 3 { // 5 - cost 2
		t.Fatalf("seller profit: got %v, want 3", profit)
	}
	if p2.Profit == nil || *p2.Profit != 4 { // value 9 - 5
		t.Fatalf("buyer profit: got %v, want 4", p2.Profit)
	}
	if p1.TradeID == nil || p2.TradeID == nil || *p1.TradeID != *p2.TradeID {
		t.Fatalf("trade ids: %v vs %v", p1.TradeID, p2.TradeID)
	}

	book, err = eng.Book(1)
	if err != nil {
		t.Fatalf("book: %v", err)
	}
	if len(book.Txs) != 1 || book.Txs[0].Price != 5 {
		t.Fatalf("transactions: %+v", book.Txs)
	}
	// p1's ask was closed out by the trade; only p3's ask remains.
	if len(book.Bids) != 0 || len(book.Asks) != 1 {
		t.Fatalf("post-trade book: %d bids / %d asks", len(book.Bids), len(book.Asks))
	}
	if book.Asks[0].Owner != "p3" {
		t.Fatalf("remaining ask owner: %s", book.Asks[0].Owner)
	}
}

// TestBookSurvivesRestart replays the same market from a reopened durable
// log: the derived book is identical because all state lives in the entries.
func TestBookSurvivesRestart(t *testing.T) {
	dir := t.TempDir()

	store, err := entry.OpenPebble(dir)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	sess := newSession(t, 2)
	eng := market.NewEngine(sess, store, nil, nil)

	if _, err := eng.SubmitOffer("p2", 1, fp(6)); err != nil {
		t.Fatalf("bid: %v", err)
	}
	if _, err := eng.SubmitOffer("p1", 1, fp(6)); err != nil {
		t.Fatalf("ask: %v", err)
	}
	book, err := eng.Book(1)
	if err != nil {
		t.Fatalf("book: %v", err)
	}
	if _, err := eng.AcceptOffer("p1", 1, book.Bids[0].ID); err != nil {
		t.Fatalf("accept: %v", err)
	}
	before, err := eng.Book(1)
	if err != nil {
		t.Fatalf("book: %v", err)
	}
	if err := store.Close(); err != nil {
		t.Fatalf("close store: %v", err)
	}

	store, err = entry.OpenPebble(dir)
	if err != nil {
		t.Fatalf("reopen store: %v", err)
	}
	defer store.Close()

	sess2 := newSession(t, 2)
	eng2 := market.NewEngine(sess2, store, nil, nil)
	after, err := eng2.Book(1)
	if err != nil {
		t.Fatalf("book after restart: %v", err)
	}

	if len(after.Txs) != 1 || after.Txs[0] != before.Txs[0] {
		t.Fatalf("transactions diverged: %+v vs %+v", after.Txs, before.Txs)
	}
	if len(after.Bids) != 0 || len(after.Asks) != 0 {
		t.Fatalf("restarted book not settled: %d bids / %d asks", len(after.Bids), len(after.Asks))
	}

	// The accepted offer stays dead across the restart.
	if _, err := eng2.AcceptOffer("p2", 1, before.Txs[0].OfferID); err != market.ErrOfferInvalid {
		t.Fatalf("resurrected offer: want ErrOfferInvalid, got %v", err)
	}
}
