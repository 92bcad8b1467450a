// Package api implements the read-only HTTP + WebSocket query surface:
// pair listing, book depth, and mark price over REST, plus the pair-scoped
// spec §6 events (every event except OrderDeposit) streamed to WebSocket
// subscribers. It is a pure observer of
// internal/engine — no handler here can mutate a book; mutation only
// happens through internal/server's order-entry protocol. Routing and CORS
// follow uhyunpark-hyperlicked's pkg/api/server.go (gorilla/mux + rs/cors);
// the WebSocket hub in hub.go follows the same file's websocket.go.
package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/rs/cors"
	"github.com/rs/zerolog"

	"safex/internal/common"
	"safex/internal/orderbook"
	"safex/internal/registry"
)

const defaultDepth = 50

// Engine is the narrow read-only surface the API needs from
// engine.MatchingEngine: book enumeration and mark price, nothing mutating.
type Engine interface {
	Registry() *registry.Registry
	MktPrice(base, quote common.Token) (common.Price, error)
}

// Server serves the REST + WS query surface for one MatchingEngine.
type Server struct {
	engine Engine
	hub    *Hub
	router *mux.Router
	http   *http.Server
	log    zerolog.Logger
}

// NewServer builds the router and wires hub as the WebSocket broadcast
// target. Call Start to bind and serve.
func NewServer(engine Engine, hub *Hub, allowedOrigins []string, log zerolog.Logger) *Server {
	s := &Server{engine: engine, hub: hub, router: mux.NewRouter(), log: log}
	s.setupRoutes()

	c := cors.New(cors.Options{
		AllowedOrigins: allowedOrigins,
		AllowedMethods: []string{"GET", "OPTIONS"},
		AllowedHeaders: []string{"Content-Type"},
	})
	s.http = &http.Server{
		Handler:      c.Handler(s.router),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	return s
}

func (s *Server) setupRoutes() {
	api := s.router.PathPrefix("/api/v1").Subrouter()
	api.HandleFunc("/pairs", s.handlePairs).Methods("GET")
	api.HandleFunc("/pairs/{base}/{quote}/book", s.handleBook).Methods("GET")
	api.HandleFunc("/pairs/{base}/{quote}/price", s.handlePrice).Methods("GET")
	s.router.HandleFunc("/health", s.handleHealth).Methods("GET")
	s.router.HandleFunc("/ws", s.hub.ServeWS)
}

// Start binds addr and serves until Stop is called or an unrecoverable
// error occurs. Call in its own goroutine alongside go hub.Run().
func (s *Server) Start(addr string) error {
	s.http.Addr = addr
	s.log.Info().Str("address", addr).Msg("api server starting")
	if err := s.http.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("api server: %w", err)
	}
	return nil
}

// Stop gracefully shuts the HTTP server down.
func (s *Server) Stop() error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return s.http.Shutdown(ctx)
}

func (s *Server) handlePairs(w http.ResponseWriter, r *http.Request) {
	all := s.engine.Registry().All()
	out := make([]PairInfo, 0, len(all))
	for _, entry := range all {
		out = append(out, PairInfo{
			ID:            entry.Book.ID(),
			Base:          string(entry.Pair.Base),
			Quote:         string(entry.Pair.Quote),
			BaseDecimals:  entry.Book.BaseDecimals(),
			QuoteDecimals: entry.Book.QuoteDecimals(),
		})
	}
	respondJSON(w, out)
}

func (s *Server) handleBook(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	base, quote := common.Token(vars["base"]), common.Token(vars["quote"])

	book, err := s.engine.Registry().Get(base, quote)
	if err != nil {
		respondError(w, http.StatusNotFound, err.Error())
		return
	}

	depth := defaultDepth
	if q := r.URL.Query().Get("depth"); q != "" {
		if n, err := strconv.Atoi(q); err == nil && n > 0 {
			depth = n
		}
	}

	respondJSON(w, BookSnapshot{
		Base:  string(base),
		Quote: string(quote),
		Bids:  toLevels(book.Levels(common.Bid, depth)),
		Asks:  toLevels(book.Levels(common.Ask, depth)),
	})
}

func toLevels(levels []orderbook.Level) []PriceLevel {
	out := make([]PriceLevel, len(levels))
	for i, l := range levels {
		out[i] = PriceLevel{Price: uint64(l.Price), Amount: l.Amount.String()}
	}
	return out
}

func (s *Server) handlePrice(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	base, quote := common.Token(vars["base"]), common.Token(vars["quote"])

	price, err := s.engine.MktPrice(base, quote)
	if err != nil {
		respondError(w, http.StatusNotFound, err.Error())
		return
	}
	respondJSON(w, PriceInfo{Base: string(base), Quote: string(quote), Price: uint64(price)})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, map[string]string{"status": "ok"})
}

func respondJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(v)
}

func respondError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(ErrorResponse{Error: msg})
}
