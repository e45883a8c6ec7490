package http

type ErrorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// CastVoteRequest carries the chosen candidate. CandidateIndex is a pointer so
// an absent field is distinguishable from index 0.
type CastVoteRequest struct {
	CandidateIndex *int `json:"candidate_index"`
}

type BallotResponse struct {
	BallotID       string `json:"ballot_id"`
	VoterID        string `json:"voter_id"`
	CandidateIndex int    `json:"candidate_index"`
	CandidateName  string `json:"candidate_name"`
	CastAt         string `json:"cast_at"`
}

type CandidateItem struct {
	Index     int    `json:"index"`
	Name      string `json:"name"`
	VoteCount uint64 `json:"vote_count"`
}

type CandidatesResponse struct {
	Items []CandidateItem `json:"items"`
}

type StandingsResponse struct {
	Items      []CandidateItem `json:"items"`
	TotalVotes uint64          `json:"total_votes"`
	Leaders    []CandidateItem `json:"leaders"`
}

type VoterStatusResponse struct {
	VoterID  string `json:"voter_id"`
	HasVoted bool   `json:"has_voted"`
}
