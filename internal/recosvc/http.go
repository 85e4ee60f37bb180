// Package recosvc exposes the recommendation path (C13-C17) over HTTP.
package recosvc

import (
	"encoding/json"
	"log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/nucleus/giftreco/internal/recommend"
)

// Server wires a Recommender to chi routes.
type Server struct {
	Recommender *recommend.Recommender
	router      chi.Router
}

// NewServer builds the router with standard chi middleware (request id, real
// ip, panic recovery, a 30s timeout) plus the recommendation routes.
func NewServer(recommender *recommend.Recommender) *Server {
	s := &Server{Recommender: recommender}
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(30 * time.Second))

	r.Get("/health", s.handleHealth)
	r.Post("/recommendations", s.handleRecommend)
	s.router = r
	return s
}

// ServeHTTP makes Server an http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":    "ok",
		"service":   "reco",
		"timestamp": time.Now().UTC(),
	})
}

// recommendRequest is the wire shape of POST /recommendations.
type recommendRequest struct {
	Mode              string   `json:"mode"`
	AlgorithmOverride string   `json:"algorithmOverride,omitempty"`
	Event             string   `json:"event,omitempty"`
	Recipient         string   `json:"recipient,omitempty"`
	BudgetMinYen      *int64   `json:"budgetMinYen,omitempty"`
	BudgetMaxYen      *int64   `json:"budgetMaxYen,omitempty"`
	LikeTags          []string `json:"likeTags,omitempty"`
	DislikeTags       []string `json:"dislikeTags,omitempty"`
	NGTags            []string `json:"ngTags,omitempty"`
}

func (s *Server) handleRecommend(w http.ResponseWriter, r *http.Request) {
	var body recommendRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	req := recommend.Request{
		Mode:              recommend.Mode(body.Mode),
		AlgorithmOverride: recommend.Algorithm(body.AlgorithmOverride),
		Event:             body.Event,
		Recipient:         body.Recipient,
		BudgetMinYen:      body.BudgetMinYen,
		BudgetMaxYen:      body.BudgetMaxYen,
		LikeTags:          body.LikeTags,
		DislikeTags:       body.DislikeTags,
		NGTags:            body.NGTags,
	}

	resp, err := s.Recommender.Recommend(r.Context(), req)
	if err != nil {
		if _, ok := err.(*recommend.InvalidArgumentError); ok {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		log.Printf("recosvc: recommend failed: %v", err)
		writeError(w, http.StatusInternalServerError, "recommendation failed")
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("recosvc: encode response: %v", err)
	}
}

func writeError(w http.ResponseWriter, status int, detail string) {
	writeJSON(w, status, map[string]string{"detail": detail})
}
