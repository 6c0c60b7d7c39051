package api

import "github.com/google/uuid"

// API request/response types for REST endpoints

// SessionStatus reports the session and round the server is running.
type SessionStatus struct {
	ID           string `json:"id"`
	Round        int    `json:"round"`
	Participants int    `json:"participants"`
	Deadline     int64  `json:"deadline"`    // Unix milliseconds
	RemainingMs  int64  `json:"remainingMs"` // 0 once the round closed
	Open         bool   `json:"open"`
}

// ParticipantPublic is what anyone may see about a participant.
type ParticipantPublic struct {
	ID      string `json:"id"`
	Ordinal int    `json:"ordinal"`
	Buyer   bool   `json:"buyer"`
	Traded  bool   `json:"traded"`
}

// ParticipantPrivate is the participant's own view: reservation value,
// standing offer echo and realized profit.
type ParticipantPrivate struct {
	ParticipantPublic
	Reservation float64  `json:"reservation"`
	OfferPrice  *float64 `json:"offerPrice"` // nil if cancelled or superseded
	Profit      *float64 `json:"profit"`
}

// SubmitOfferRequest is the payload for POST /api/v1/offers.
// A null price cancels the participant's standing offer.
type SubmitOfferRequest struct {
	Participant string   `json:"participant"`
	Round       *int     `json:"round,omitempty"` // defaults to current round
	Price       *float64 `json:"price"`
}

type SubmitOfferResponse struct {
	Price *float64 `json:"price"`
}

// AcceptOfferRequest is the payload for POST /api/v1/offers/accept.
type AcceptOfferRequest struct {
	Participant string    `json:"participant"`
	Round       *int      `json:"round,omitempty"`
	OfferID     uuid.UUID `json:"offerId"`
}

type AcceptOfferResponse struct {
	Profit float64 `json:"profit"`
}

// ErrorResponse is returned for all errors.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}
