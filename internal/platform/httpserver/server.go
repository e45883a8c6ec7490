package httpserver

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	voteledger "tally/contexts/elections/vote-ledger"
	ledgererrors "tally/contexts/elections/vote-ledger/domain/errors"
	ledgerhttp "tally/contexts/elections/vote-ledger/transport/http"

	httpSwagger "github.com/swaggo/http-swagger"
	_ "tally/internal/platform/httpserver/docs"
)

type Server struct {
	mux    *http.ServeMux
	http   *http.Server
	logger *slog.Logger
	addr   string
	ledger voteledger.Module
}

func New(
	ledger voteledger.Module,
	logger *slog.Logger,
	addr string,
) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	if addr == "" {
		addr = ":8080"
	}

	s := &Server{
		mux:    http.NewServeMux(),
		logger: logger,
		addr:   addr,
		ledger: ledger,
	}
	s.registerRoutes()
	s.http = &http.Server{
		Addr:              addr,
		Handler:           s.mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	return s
}

func (s *Server) Handler() http.Handler {
	return s.mux
}

// Start blocks until the server stops. A graceful Shutdown is reported as nil.
func (s *Server) Start() error {
	s.logger.Info("http server starting",
		"event", "http_server_starting",
		"module", "internal/platform/httpserver",
		"layer", "platform",
		"addr", s.addr,
	)
	if err := s.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("http server stopping",
		"event", "http_server_stopping",
		"module", "internal/platform/httpserver",
		"layer", "platform",
	)
	return s.http.Shutdown(ctx)
}

func (s *Server) registerRoutes() {
	s.mux.Handle("/swagger/", httpSwagger.Handler(
		httpSwagger.URL("/swagger/doc.json"),
	))

	s.mux.HandleFunc("GET /healthz", s.handleHealth)

	s.mux.HandleFunc("GET /v1/ledger/candidates", s.handleListCandidates)
	s.mux.HandleFunc("POST /v1/ledger/votes", s.handleCastVote)
	s.mux.HandleFunc("GET /v1/ledger/standings", s.handleStandings)
	s.mux.HandleFunc("GET /v1/ledger/voters/{voter_id}", s.handleVoterStatus)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleListCandidates godoc
// @Summary List candidates
// @Tags ledger
// @Produce json
// @Success 200 {object} ledgerhttp.CandidatesResponse
// @Router /v1/ledger/candidates [get]
func (s *Server) handleListCandidates(w http.ResponseWriter, r *http.Request) {
	resp, err := s.ledger.Handler.ListCandidatesHandler(r.Context())
	if err != nil {
		s.writeLedgerDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// handleCastVote godoc
// @Summary Cast a vote
// @Tags ledger
// @Accept json
// @Produce json
// @Param X-User-Id header string true "voter identity"
// @Param request body ledgerhttp.CastVoteRequest true "ballot"
// @Success 201 {object} ledgerhttp.BallotResponse
// @Failure 400 {object} ledgerhttp.ErrorResponse
// @Failure 409 {object} ledgerhttp.ErrorResponse
// @Failure 422 {object} ledgerhttp.ErrorResponse
// @Router /v1/ledger/votes [post]
func (s *Server) handleCastVote(w http.ResponseWriter, r *http.Request) {
	userID := strings.TrimSpace(r.Header.Get("X-User-Id"))
	if userID == "" {
		writeLedgerError(w, http.StatusUnauthorized, "missing_user", "X-User-Id header is required")
		return
	}

	var req ledgerhttp.CastVoteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeLedgerError(w, http.StatusBadRequest, "invalid_json", "request body must be valid JSON")
		return
	}

	resp, err := s.ledger.Handler.CastVoteHandler(r.Context(), userID, req)
	if err != nil {
		s.writeLedgerDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, resp)
}

// handleStandings godoc
// @Summary Current standings
// @Tags ledger
// @Produce json
// @Success 200 {object} ledgerhttp.StandingsResponse
// @Router /v1/ledger/standings [get]
func (s *Server) handleStandings(w http.ResponseWriter, r *http.Request) {
	resp, err := s.ledger.Handler.StandingsHandler(r.Context())
	if err != nil {
		s.writeLedgerDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// handleVoterStatus godoc
// @Summary Voter participation
// @Tags ledger
// @Produce json
// @Param voter_id path string true "voter identity"
// @Success 200 {object} ledgerhttp.VoterStatusResponse
// @Router /v1/ledger/voters/{voter_id} [get]
func (s *Server) handleVoterStatus(w http.ResponseWriter, r *http.Request) {
	resp, err := s.ledger.Handler.VoterStatusHandler(r.Context(), r.PathValue("voter_id"))
	if err != nil {
		s.writeLedgerDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) writeLedgerDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ledgererrors.ErrAlreadyVoted):
		writeLedgerError(w, http.StatusConflict, "already_voted", err.Error())
	case errors.Is(err, ledgererrors.ErrInvalidCandidateIndex):
		writeLedgerError(w, http.StatusUnprocessableEntity, "invalid_candidate_index", err.Error())
	case errors.Is(err, ledgererrors.ErrInvalidVoterIdentity):
		writeLedgerError(w, http.StatusBadRequest, "invalid_voter_id", err.Error())
	case errors.Is(err, ledgererrors.ErrMissingCandidateIndex):
		writeLedgerError(w, http.StatusBadRequest, "missing_candidate_index", err.Error())
	default:
		s.logger.Error("ledger request failed",
			"event", "http_ledger_request_failed",
			"module", "internal/platform/httpserver",
			"layer", "platform",
			"error", err.Error(),
		)
		writeLedgerError(w, http.StatusInternalServerError, "internal_error", "internal server error")
	}
}

func writeLedgerError(w http.ResponseWriter, status int, code string, message string) {
	writeJSON(w, status, ledgerhttp.ErrorResponse{
		Code:    code,
		Message: message,
	})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
