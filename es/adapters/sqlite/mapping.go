package sqlite

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/tidemark/eventfold/es"
)

// Explicit schema mapping between SQLite rows and the es record types.
// SQLite stores timestamps as formatted TEXT and metadata as a JSON string.

// encodeMetadata serializes the metadata map for the metadata column.
// A nil or empty map is stored as NULL.
func encodeMetadata(metadata map[string]string) (interface{}, error) {
	if len(metadata) == 0 {
		return nil, nil
	}
	encoded, err := json.Marshal(metadata)
	if err != nil {
		return nil, fmt.Errorf("failed to encode event metadata: %w", err)
	}
	return string(encoded), nil
}

// scanEvents maps queried rows back to StoredEvents.
func scanEvents(rows *sql.Rows) ([]es.StoredEvent, error) {
	var events []es.StoredEvent
	for rows.Next() {
		var (
			event      es.StoredEvent
			eventID    string
			metadata   sql.NullString
			occurredAt string
		)
		err := rows.Scan(
			&eventID,
			&event.AggregateID,
			&event.TenantID,
			&event.Version,
			&event.Payload,
			&metadata,
			&occurredAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan event: %w", err)
		}

		event.EventID, err = uuid.Parse(eventID)
		if err != nil {
			return nil, fmt.Errorf("failed to parse event ID %q: %w", eventID, err)
		}
		if metadata.Valid && metadata.String != "" {
			if err := json.Unmarshal([]byte(metadata.String), &event.Metadata); err != nil {
				return nil, fmt.Errorf("failed to decode event metadata: %w", err)
			}
		}
		event.OccurredAt, err = parseDateTime(occurredAt)
		if err != nil {
			return nil, err
		}

		events = append(events, event)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}
	return events, nil
}

func parseDateTime(value string) (time.Time, error) {
	t, err := time.Parse(sqliteDateTimeFormat, value)
	if err != nil {
		return time.Time{}, fmt.Errorf("failed to parse timestamp %q: %w", value, err)
	}
	return t.UTC(), nil
}
