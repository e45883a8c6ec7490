package httpserver

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	voteledger "tally/contexts/elections/vote-ledger"
	ledgerhttp "tally/contexts/elections/vote-ledger/transport/http"
)

func newTestServer(t *testing.T) *Server {
	t.Helper()
	module, err := voteledger.NewInMemoryModule([]string{"Alice", "Bob", "Charlie"}, nil, nil)
	if err != nil {
		t.Fatalf("build ledger module: %v", err)
	}
	return New(module, nil, ":0")
}

func castVote(t *testing.T, handler http.Handler, userID string, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/v1/ledger/votes", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if userID != "" {
		req.Header.Set("X-User-Id", userID)
	}
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) ledgerhttp.ErrorResponse {
	t.Helper()
	var resp ledgerhttp.ErrorResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode error response: %v", err)
	}
	return resp
}

func TestCastVoteEndpoint(t *testing.T) {
	handler := newTestServer(t).Handler()

	rec := castVote(t, handler, "addr1", `{"candidate_index":0}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
	var ballot ledgerhttp.BallotResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &ballot); err != nil {
		t.Fatalf("decode ballot: %v", err)
	}
	if ballot.CandidateName != "Alice" || ballot.VoterID != "addr1" {
		t.Fatalf("unexpected ballot: %+v", ballot)
	}

	rec = castVote(t, handler, "addr1", `{"candidate_index":1}`)
	if rec.Code != http.StatusConflict || decodeError(t, rec).Code != "already_voted" {
		t.Fatalf("expected 409 already_voted, got %d: %s", rec.Code, rec.Body.String())
	}

	rec = castVote(t, handler, "addr2", `{"candidate_index":3}`)
	if rec.Code != http.StatusUnprocessableEntity || decodeError(t, rec).Code != "invalid_candidate_index" {
		t.Fatalf("expected 422 invalid_candidate_index, got %d: %s", rec.Code, rec.Body.String())
	}

	rec = castVote(t, handler, "", `{"candidate_index":0}`)
	if rec.Code != http.StatusUnauthorized || decodeError(t, rec).Code != "missing_user" {
		t.Fatalf("expected 401 missing_user, got %d: %s", rec.Code, rec.Body.String())
	}

	rec = castVote(t, handler, "addr3", `{"candidate_index":`)
	if rec.Code != http.StatusBadRequest || decodeError(t, rec).Code != "invalid_json" {
		t.Fatalf("expected 400 invalid_json, got %d: %s", rec.Code, rec.Body.String())
	}
}

func TestCastVoteRejectsMissingCandidateIndex(t *testing.T) {
	handler := newTestServer(t).Handler()

	for _, body := range []string{`{}`, `{"candidate":1}`, `{"candidate_index":null}`} {
		rec := castVote(t, handler, "addr9", body)
		if rec.Code != http.StatusBadRequest || decodeError(t, rec).Code != "missing_candidate_index" {
			t.Fatalf("body %s: expected 400 missing_candidate_index, got %d: %s", body, rec.Code, rec.Body.String())
		}
	}

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/ledger/candidates", nil))
	var candidates ledgerhttp.CandidatesResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &candidates); err != nil {
		t.Fatalf("decode candidates: %v", err)
	}
	for _, item := range candidates.Items {
		if item.VoteCount != 0 {
			t.Fatalf("rejected requests must not change tallies: %+v", candidates.Items)
		}
	}

	rec = castVote(t, handler, "addr9", `{"candidate_index":0}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected voter to vote after rejected requests, got %d: %s", rec.Code, rec.Body.String())
	}
}

func TestReadEndpoints(t *testing.T) {
	handler := newTestServer(t).Handler()
	castVote(t, handler, "addr1", `{"candidate_index":1}`)
	castVote(t, handler, "addr2", `{"candidate_index":1}`)

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/ledger/candidates", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var candidates ledgerhttp.CandidatesResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &candidates); err != nil {
		t.Fatalf("decode candidates: %v", err)
	}
	if len(candidates.Items) != 3 || candidates.Items[1].VoteCount != 2 || candidates.Items[0].VoteCount != 0 {
		t.Fatalf("unexpected candidates: %+v", candidates.Items)
	}

	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/ledger/standings", nil))
	var standings ledgerhttp.StandingsResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &standings); err != nil {
		t.Fatalf("decode standings: %v", err)
	}
	if standings.TotalVotes != 2 || len(standings.Leaders) != 1 || standings.Leaders[0].Name != "Bob" {
		t.Fatalf("unexpected standings: %+v", standings)
	}

	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/ledger/voters/addr3", nil))
	var status ledgerhttp.VoterStatusResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &status); err != nil {
		t.Fatalf("decode voter status: %v", err)
	}
	if status.HasVoted || status.VoterID != "addr3" {
		t.Fatalf("unexpected voter status: %+v", status)
	}
}

func TestHealthAndSwagger(t *testing.T) {
	handler := newTestServer(t).Handler()

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected healthz 200, got %d", rec.Code)
	}

	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/swagger/doc.json", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected swagger doc 200, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "/v1/ledger/votes") {
		t.Fatalf("swagger doc does not describe the votes route")
	}
}
