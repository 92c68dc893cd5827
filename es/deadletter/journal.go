package deadletter

import (
	"bufio"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"

	"github.com/tidemark/eventfold/es"
)

// journalTimeFormat keeps timestamps in the journal human-readable and
// lexicographically sortable.
const journalTimeFormat = time.RFC3339Nano

func (je journalEvent) toStoredEvent() (es.StoredEvent, error) {
	id, err := uuid.Parse(je.EventID)
	if err != nil {
		return es.StoredEvent{}, fmt.Errorf("corrupt dead-letter event ID %q: %w", je.EventID, err)
	}
	occurredAt, err := time.Parse(journalTimeFormat, je.OccurredAt)
	if err != nil {
		return es.StoredEvent{}, fmt.Errorf("corrupt dead-letter timestamp %q: %w", je.OccurredAt, err)
	}
	return es.StoredEvent{
		EventID:     id,
		AggregateID: je.AggregateID,
		TenantID:    je.TenantID,
		Version:     je.Version,
		Payload:     je.Payload,
		Metadata:    je.Metadata,
		OccurredAt:  occurredAt,
	}, nil
}

// countLines counts journal entries without decoding them.
func countLines(file *os.File) (int, error) {
	if _, err := file.Seek(0, 0); err != nil {
		return 0, err
	}
	count := 0
	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	for scanner.Scan() {
		count++
	}
	if err := scanner.Err(); err != nil {
		return 0, err
	}
	if _, err := file.Seek(0, 2); err != nil {
		return 0, err
	}
	return count, nil
}
