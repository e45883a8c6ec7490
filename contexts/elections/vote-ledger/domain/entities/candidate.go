package entities

import "time"

// Candidate is one registered option. Index is its fixed registration position.
type Candidate struct {
	Index     int
	Name      string
	VoteCount uint64
}

// Ballot is the receipt of one accepted vote.
type Ballot struct {
	BallotID       string
	VoterID        string
	CandidateIndex int
	CandidateName  string
	CastAt         time.Time
}

type Standings struct {
	Candidates []Candidate
	TotalVotes uint64
	// Leaders holds every candidate sharing the highest raw count. Empty until
	// the first vote is cast.
	Leaders []Candidate
}
