package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"
	"github.com/rs/cors"
	"go.uber.org/zap"

	"github.com/marketlab/dauction/pkg/market"
)

// Server is the page-flow surface in front of the engine: REST endpoints for
// submitting and accepting offers and reading the book, plus the WebSocket
// hub that delivers market broadcasts.
type Server struct {
	engine  *market.Engine
	session *market.Session
	hub     *Hub
	router  *mux.Router
	log     *zap.SugaredLogger
}

func NewServer(engine *market.Engine, hub *Hub, log *zap.SugaredLogger) *Server {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	s := &Server{
		engine:  engine,
		session: engine.Session(),
		hub:     hub,
		router:  mux.NewRouter(),
		log:     log,
	}
	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	api := s.router.PathPrefix("/api/v1").Subrouter()

	api.HandleFunc("/session", s.handleGetSession).Methods("GET")
	api.HandleFunc("/participants", s.handleGetParticipants).Methods("GET")
	api.HandleFunc("/participants/{id}", s.handleGetParticipant).Methods("GET")
	api.HandleFunc("/market/book", s.handleGetBook).Methods("GET")

	api.HandleFunc("/offers", s.handleSubmitOffer).Methods("POST")
	api.HandleFunc("/offers/accept", s.handleAcceptOffer).Methods("POST")

	s.router.HandleFunc("/ws", s.handleWebSocket)
	s.router.HandleFunc("/health", s.handleHealth).Methods("GET")
}

// Handler exposes the routed handler for tests.
func (s *Server) Handler() http.Handler { return s.router }

// Start runs the hub and serves HTTP on addr. Blocks.
func (s *Server) Start(addr string) error {
	go s.hub.Run()

	c := cors.New(cors.Options{
		AllowedOrigins:   []string{"http://localhost:3000", "http://localhost:3001"},
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Content-Type", "Authorization"},
		AllowCredentials: true,
	})

	s.log.Infow("api_server_starting", "addr", addr)
	return http.ListenAndServe(addr, c.Handler(s.router))
}

// ==============================
// REST Handlers
// ==============================

func (s *Server) handleGetSession(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, SessionStatus{
		ID:           s.session.ID,
		Round:        s.session.Round(),
		Participants: len(s.session.ParticipantIDs()),
		Deadline:     s.session.Deadline().UnixMilli(),
		RemainingMs:  s.session.Remaining().Milliseconds(),
		Open:         s.session.Open(),
	})
}

func (s *Server) handleGetParticipants(w http.ResponseWriter, r *http.Request) {
	all := s.session.Snapshots()
	out := make([]ParticipantPublic, len(all))
	for i, p := range all {
		out[i] = ParticipantPublic{
			ID:      p.ID,
			Ordinal: p.Ordinal,
			Buyer:   p.Buyer,
			Traded:  p.TradeID != nil,
		}
	}
	respondJSON(w, out)
}

func (s *Server) handleGetParticipant(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	p, ok := s.session.Snapshot(id)
	if !ok {
		respondError(w, http.StatusNotFound, "unknown participant", id)
		return
	}

	// Echo the standing offer so a reloading client can re-render it.
	offerPrice, err := s.engine.ActiveOffer(id, s.session.Round())
	if err != nil {
		respondError(w, http.StatusInternalServerError, "read offer", err.Error())
		return
	}

	respondJSON(w, ParticipantPrivate{
		ParticipantPublic: ParticipantPublic{
			ID:      p.ID,
			Ordinal: p.Ordinal,
			Buyer:   p.Buyer,
			Traded:  p.TradeID != nil,
		},
		Reservation: p.Reservation,
		OfferPrice:  offerPrice,
		Profit:      p.Profit,
	})
}

func (s *Server) handleGetBook(w http.ResponseWriter, r *http.Request) {
	round := s.session.Round()
	if v := r.URL.Query().Get("round"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			respondError(w, http.StatusBadRequest, "invalid round", v)
			return
		}
		round = n
	}

	book, err := s.engine.Book(round)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "read book", err.Error())
		return
	}
	respondJSON(w, book)
}

func (s *Server) handleSubmitOffer(w http.ResponseWriter, r *http.Request) {
	var req SubmitOfferRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}
	if req.Participant == "" {
		respondError(w, http.StatusBadRequest, "missing participant", "")
		return
	}
	if !s.session.Open() {
		respondError(w, http.StatusConflict, "round closed", "")
		return
	}

	round := s.session.Round()
	if req.Round != nil {
		round = *req.Round
	}

	price, err := s.engine.SubmitOffer(req.Participant, round, req.Price)
	if err != nil {
		s.respondMarketError(w, err)
		return
	}
	respondJSON(w, SubmitOfferResponse{Price: price})
}

func (s *Server) handleAcceptOffer(w http.ResponseWriter, r *http.Request) {
	var req AcceptOfferRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}
	if req.Participant == "" {
		respondError(w, http.StatusBadRequest, "missing participant", "")
		return
	}
	if !s.session.Open() {
		respondError(w, http.StatusConflict, "round closed", "")
		return
	}

	round := s.session.Round()
	if req.Round != nil {
		round = *req.Round
	}

	profit, err := s.engine.AcceptOffer(req.Participant, round, req.OfferID)
	if err != nil {
		s.respondMarketError(w, err)
		return
	}
	respondJSON(w, AcceptOfferResponse{Profit: profit})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, map[string]string{"status": "ok"})
}

// respondMarketError maps engine validation failures to HTTP statuses.
// Everything else is an infrastructure fault.
func (s *Server) respondMarketError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, market.ErrUnknownParticipant):
		respondError(w, http.StatusNotFound, "unknown participant", err.Error())
	case errors.Is(err, market.ErrInvalidPrice):
		respondError(w, http.StatusBadRequest, "invalid price", err.Error())
	case errors.Is(err, market.ErrAlreadyTraded),
		errors.Is(err, market.ErrOfferInvalid),
		errors.Is(err, market.ErrSideMismatch):
		respondError(w, http.StatusConflict, "rejected", err.Error())
	default:
		s.log.Errorw("engine_error", "err", err)
		respondError(w, http.StatusInternalServerError, "internal error", err.Error())
	}
}

// ==============================
// Helper Functions
// ==============================

func respondJSON(w http.ResponseWriter, data any) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, status int, error string, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(ErrorResponse{
		Error:   error,
		Message: message,
	})
}
