package postgres

import (
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"

	"github.com/tidemark/eventfold/es"
)

// The functions below are the explicit schema mapping between relational
// rows and the es record types. Columns are defined by the migrations
// package; nothing here depends on ORM annotations.

// encodeMetadata serializes the metadata map for the JSONB column.
// A nil or empty map is stored as NULL.
func encodeMetadata(metadata map[string]string) (interface{}, error) {
	if len(metadata) == 0 {
		return nil, nil
	}
	encoded, err := json.Marshal(metadata)
	if err != nil {
		return nil, fmt.Errorf("failed to encode event metadata: %w", err)
	}
	return encoded, nil
}

// scanEvents maps queried rows back to StoredEvents.
func scanEvents(rows *sql.Rows) ([]es.StoredEvent, error) {
	var events []es.StoredEvent
	for rows.Next() {
		var (
			event    es.StoredEvent
			eventID  string
			metadata []byte
		)
		err := rows.Scan(
			&eventID,
			&event.AggregateID,
			&event.TenantID,
			&event.Version,
			&event.Payload,
			&metadata,
			&event.OccurredAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan event: %w", err)
		}

		event.EventID, err = uuid.Parse(eventID)
		if err != nil {
			return nil, fmt.Errorf("failed to parse event ID %q: %w", eventID, err)
		}
		if len(metadata) > 0 {
			if err := json.Unmarshal(metadata, &event.Metadata); err != nil {
				return nil, fmt.Errorf("failed to decode event metadata: %w", err)
			}
		}

		events = append(events, event)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}
	return events, nil
}
