// Package api exposes the metered analysis operations over HTTP.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/kvasirlabs/momenta/internal/candles"
	"github.com/kvasirlabs/momenta/internal/payment"
	"github.com/kvasirlabs/momenta/internal/portfolio"
	"github.com/kvasirlabs/momenta/internal/quote"
	"github.com/kvasirlabs/momenta/internal/registry"
	"github.com/kvasirlabs/momenta/models"
)

// Server wires the engine's operations onto HTTP routes.
type Server struct {
	registry   *registry.Registry
	quotes     *quote.Service
	aggregator *candles.Aggregator
	analyzer   *portfolio.Analyzer
	authorizer payment.Authorizer
	prices     payment.PriceTable

	fetchConcurrency int

	httpServer *http.Server
	logger     zerolog.Logger
}

// ServerOptions holds the server's collaborators and listen address.
// FetchConcurrency bounds concurrent feed fetches per request.
type ServerOptions struct {
	Addr             string
	Registry         *registry.Registry
	Quotes           *quote.Service
	Aggregator       *candles.Aggregator
	Analyzer         *portfolio.Analyzer
	Authorizer       payment.Authorizer
	Prices           payment.PriceTable
	FetchConcurrency int
}

// NewServer builds the route table.
func NewServer(opts ServerOptions) *Server {
	if opts.FetchConcurrency <= 0 {
		opts.FetchConcurrency = 4
	}
	s := &Server{
		registry:         opts.Registry,
		quotes:           opts.Quotes,
		aggregator:       opts.Aggregator,
		analyzer:         opts.Analyzer,
		authorizer:       opts.Authorizer,
		prices:           opts.Prices,
		fetchConcurrency: opts.FetchConcurrency,
		logger:           log.With().Str("component", "api_server").Logger(),
	}

	r := mux.NewRouter()
	r.Use(s.requestLogging)

	v1 := r.PathPrefix("/v1").Subrouter()
	v1.Handle("/prices", s.gated(payment.OpCurrentPrices, s.handleCurrentPrices)).Methods(http.MethodGet)
	v1.Handle("/ohlc", s.gated(payment.OpOHLCData, s.handleOHLC)).Methods(http.MethodGet)
	v1.Handle("/rsi", s.gated(payment.OpRSIAnalysis, s.handleRSI)).Methods(http.MethodGet)
	v1.Handle("/divergence", s.gated(payment.OpRSIDivergence, s.handleDivergence)).Methods(http.MethodGet)
	v1.Handle("/portfolio", s.gated(payment.OpPortfolioSignals, s.handlePortfolio)).Methods(http.MethodGet)

	r.HandleFunc("/healthz", s.handleHealth).Methods(http.MethodGet)

	s.httpServer = &http.Server{
		Addr:         opts.Addr,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
	}
	return s
}

// ListenAndServe blocks serving requests until the listener fails or the
// server is shut down.
func (s *Server) ListenAndServe() error {
	s.logger.Info().Str("addr", s.httpServer.Addr).Msg("http server listening")
	return s.httpServer.ListenAndServe()
}

// Shutdown drains in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// Handler exposes the route table, for tests.
func (s *Server) Handler() http.Handler { return s.httpServer.Handler }

// gated wraps a handler with the payment authorization check. Every exposed
// operation passes through here; a denial returns 402 with the operation's
// quote so the caller can pay and retry.
func (s *Server) gated(operation string, next http.HandlerFunc) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reqCtx := payment.RequestContext{
			PaymentRef: r.Header.Get("X-Payment-Ref"),
			RemoteAddr: r.RemoteAddr,
		}
		if err := s.authorizer.Authorize(r.Context(), operation, reqCtx); err != nil {
			s.writeError(w, err)
			return
		}
		next(w, r)
	})
}

func (s *Server) requestLogging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := uuid.NewString()
		started := time.Now()
		next.ServeHTTP(w, r)
		s.logger.Info().
			Str("request_id", requestID).
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Dur("took", time.Since(started)).
			Msg("request handled")
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// badRequestError marks caller input errors that are not part of the engine
// taxonomy, e.g. an unsupported interval string.
type badRequestError struct {
	err error
}

func (e *badRequestError) Error() string { return e.err.Error() }

func (e *badRequestError) Unwrap() error { return e.err }

type errorBody struct {
	Kind    string `json:"kind"`
	Message string `json:"message"`
}

type errorEnvelope struct {
	Error errorBody      `json:"error"`
	Quote *payment.Quote `json:"quote,omitempty"`
}

// writeError maps the engine's error taxonomy onto HTTP statuses. Every
// response carries the machine-readable kind plus a human explanation.
func (s *Server) writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	body := errorEnvelope{Error: errorBody{Kind: "internal", Message: err.Error()}}

	var denied *models.AuthorizationDeniedError
	var notFound *models.InstrumentNotFoundError
	var insufficient *models.InsufficientDataError
	var upstream *models.UpstreamFetchError
	var badInput *badRequestError

	switch {
	case errors.As(err, &badInput):
		status = http.StatusBadRequest
		body.Error.Kind = "invalid_argument"
	case errors.As(err, &denied):
		status = http.StatusPaymentRequired
		body.Error.Kind = denied.Kind()
		body.Quote = &payment.Quote{
			Operation:   denied.Operation,
			PriceUSD:    denied.PriceUSD,
			Description: denied.Description,
		}
	case errors.As(err, &notFound):
		status = http.StatusNotFound
		body.Error.Kind = notFound.Kind()
	case errors.As(err, &insufficient):
		status = http.StatusUnprocessableEntity
		body.Error.Kind = insufficient.Kind()
	case errors.As(err, &upstream):
		status = http.StatusBadGateway
		body.Error.Kind = upstream.Kind()
	}

	s.writeJSON(w, status, body)
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error().Err(err).Msg("encoding response failed")
	}
}
