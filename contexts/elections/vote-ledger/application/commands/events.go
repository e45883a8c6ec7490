package commands

import (
	"encoding/json"
	"time"

	"tally/contexts/elections/vote-ledger/ports"
)

func newLedgerEnvelope(
	eventID string,
	eventType string,
	voterID string,
	occurredAt time.Time,
	data map[string]any,
) (ports.EventEnvelope, error) {
	// Ballot events are partitioned by voter; each voter produces at most one.
	payload, err := json.Marshal(data)
	if err != nil {
		return ports.EventEnvelope{}, err
	}
	return ports.EventEnvelope{
		EventID:          eventID,
		EventType:        eventType,
		OccurredAt:       occurredAt.UTC(),
		SourceService:    "vote-ledger",
		TraceID:          eventID,
		SchemaVersion:    1,
		PartitionKeyPath: "voter_id",
		PartitionKey:     voterID,
		Data:             payload,
	}, nil
}
