package market

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/marketlab/dauction/pkg/entry"
)

// appendTestOffer writes an offer record straight into the log, bypassing
// the engine, so ledger behavior can be probed in isolation.
func appendTestOffer(t *testing.T, store entry.Store, owner string, round int, buy bool, price *float64) uuid.UUID {
	t.Helper()
	body := offerBody{ID: uuid.New(), Buy: buy, Price: price}
	data, err := entry.Encode(body)
	require.NoError(t, err)
	_, err = store.Append(entry.KindOffer, owner, round, data)
	require.NoError(t, err)
	return body.ID
}

func fp(v float64) *float64 { return &v }

func TestLatestOffersLastWriteWins(t *testing.T) {
	store := entry.NewMemoryStore()
	ledger := NewLedger(store)

	appendTestOffer(t, store, "buyer", 1, true, fp(5))
	second := appendTestOffer(t, store, "buyer", 1, true, fp(7))
	appendTestOffer(t, store, "seller", 1, false, fp(9))

	latest, err := ledger.LatestOffers(1)
	require.NoError(t, err)
	require.Len(t, latest, 2)
	require.Equal(t, second, latest["buyer"].ID)
	require.Equal(t, 7.0, *latest["buyer"].Price)
}

func TestLatestOffersScopedToRound(t *testing.T) {
	store := entry.NewMemoryStore()
	ledger := NewLedger(store)

	appendTestOffer(t, store, "buyer", 1, true, fp(5))
	appendTestOffer(t, store, "buyer", 2, true, fp(6))

	latest, err := ledger.LatestOffers(1)
	require.NoError(t, err)
	require.Equal(t, 5.0, *latest["buyer"].Price)

	latest, err = ledger.LatestOffers(2)
	require.NoError(t, err)
	require.Equal(t, 6.0, *latest["buyer"].Price)
}

func TestLiveReturnsStandingOffer(t *testing.T) {
	store := entry.NewMemoryStore()
	ledger := NewLedger(store)

	id := appendTestOffer(t, store, "seller", 1, false, fp(4))

	offer, err := ledger.Live(1, id)
	require.NoError(t, err)
	require.Equal(t, id, offer.ID)
	require.Equal(t, "seller", offer.Owner)
	require.False(t, offer.Buy)
	require.Equal(t, 4.0, *offer.Price)
}

func TestLiveFailureModesCollapse(t *testing.T) {
	store := entry.NewMemoryStore()
	ledger := NewLedger(store)

	superseded := appendTestOffer(t, store, "buyer", 1, true, fp(5))
	appendTestOffer(t, store, "buyer", 1, true, fp(7))

	cancelled := appendTestOffer(t, store, "seller", 1, false, fp(9))
	marker := appendTestOffer(t, store, "seller", 1, false, nil)

	tests := []struct {
		name string
		id   uuid.UUID
	}{
		{"unknown id", uuid.New()},
		{"superseded by newer offer", superseded},
		{"explicitly cancelled", cancelled},
		{"cancellation marker itself", marker},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ledger.Live(1, tt.id)
			require.ErrorIs(t, err, ErrOfferInvalid)
		})
	}
}

func TestLiveWrongRound(t *testing.T) {
	store := entry.NewMemoryStore()
	ledger := NewLedger(store)

	id := appendTestOffer(t, store, "buyer", 1, true, fp(5))

	_, err := ledger.Live(2, id)
	require.ErrorIs(t, err, ErrOfferInvalid)
}
