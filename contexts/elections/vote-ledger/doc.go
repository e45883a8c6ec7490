// Package voteledger implements the vote ledger inside the elections context.
//
// The module owns the candidate registry fixed at construction, the set of
// voter identities that already cast a ballot, and the cast-vote state
// transition with its ordered checks (already voted, then candidate index).
// Voter identities arrive already authenticated; the ledger only deduplicates
// on them. Storage, transport and event relay live behind ports and adapters.
package voteledger
