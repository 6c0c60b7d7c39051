package api

import (
	"bytes"
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"
)

// readEvents collects pushed events until want distinct event names arrived
// or the deadline passed. Frames may carry several newline-separated
// messages when the hub coalesces a backlog.
func readEvents(t *testing.T, conn *websocket.Conn, want map[string]bool) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for len(want) > 0 {
		conn.SetReadDeadline(deadline)
		_, frame, err := conn.ReadMessage()
		require.NoError(t, err, "still waiting for events: %v", want)
		for _, raw := range bytes.Split(frame, []byte{'\n'}) {
			if len(raw) == 0 {
				continue
			}
			var ev WSEvent
			require.NoError(t, json.Unmarshal(raw, &ev))
			delete(want, ev.Event)
		}
	}
}

func TestHubDeliversMarketAndAcceptEvents(t *testing.T) {
	s, sess, _ := newTestServer(t)
	go s.hub.Run()

	ts := httptest.NewServer(s.Handler())
	defer ts.Close()
	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http")

	conn, _, err := websocket.DefaultDialer.Dial(wsURL+"/ws?participant=p2", nil)
	require.NoError(t, err)
	defer conn.Close()

	// Registration runs through the hub loop; give it a beat before the
	// first broadcast goes out.
	time.Sleep(50 * time.Millisecond)

	buyer, _ := sess.Participant("p2")
	seller, _ := sess.Participant("p1")
	buyer.Reservation = 9
	seller.Reservation = 2

	five := 5.0
	w := doJSON(t, s, "POST", "/api/v1/offers", SubmitOfferRequest{Participant: "p2", Price: &five})
	require.Equal(t, 200, w.Code)

	book := decodeBody[struct {
		Bids []struct {
			ID string `json:"id"`
		} `json:"bids"`
	}](t, doJSON(t, s, "GET", "/api/v1/market/book", nil))
	require.Len(t, book.Bids, 1)

	var accept AcceptOfferRequest
	accept.Participant = "p1"
	require.NoError(t, accept.OfferID.UnmarshalText([]byte(book.Bids[0].ID)))
	w = doJSON(t, s, "POST", "/api/v1/offers/accept", accept)
	require.Equal(t, 200, w.Code)

	// The proposer sees both the market refresh and the direct accept
	// notice carrying their profit.
	readEvents(t, conn, map[string]bool{
		"offers_and_txs": true,
		"offer_accepted": true,
	})
}

func TestWebSocketRejectsUnknownParticipant(t *testing.T) {
	s, _, _ := newTestServer(t)
	go s.hub.Run()

	ts := httptest.NewServer(s.Handler())
	defer ts.Close()
	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http")

	_, resp, err := websocket.DefaultDialer.Dial(wsURL+"/ws?participant=ghost", nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	require.Equal(t, 404, resp.StatusCode)
}
