package store

import (
	"context"
	"io"

	"github.com/tidemark/eventfold/es"
)

// Stream is a lazy, keyset-paginated iterator over one aggregate's events in
// ascending version order. It fetches one page at a time from the backend so
// memory use is bounded by the page size, not the stream length.
//
// A Stream is finite: Next returns io.EOF once the history is exhausted.
// Each page is a complete query, so a consumer may stop iterating at any
// point; Close releases the buffered page and is idempotent.
//
// A Stream observes events committed before each page fetch. It is
// restartable per call (ask the store for a new stream), not resumable
// mid-iteration.
type Stream struct {
	backend     EventBackend
	logger      es.Logger
	aggregateID string
	tenantID    string

	next     int64 // version keyset cursor: first version not yet fetched
	pageSize int

	page   []es.StoredEvent
	offset int
	done   bool
	err    error
}

// Next returns the next event in ascending version order, fetching the next
// page from the backend when the buffered one is exhausted. It returns
// io.EOF when the stream ends, or the first backend error encountered
// (wrapped as *es.StoreError); after either, all subsequent calls return the
// same result.
func (st *Stream) Next(ctx context.Context) (es.StoredEvent, error) {
	if st.err != nil {
		return es.StoredEvent{}, st.err
	}

	if st.offset >= len(st.page) {
		if st.done {
			st.err = io.EOF
			return es.StoredEvent{}, st.err
		}
		if err := st.fetch(ctx); err != nil {
			return es.StoredEvent{}, st.err
		}
		if len(st.page) == 0 {
			st.err = io.EOF
			return es.StoredEvent{}, st.err
		}
	}

	event := st.page[st.offset]
	st.offset++
	return event, nil
}

// fetch loads the next page and advances the keyset cursor.
func (st *Stream) fetch(ctx context.Context) error {
	page, err := st.backend.SelectPage(ctx, st.aggregateID, st.tenantID, st.next, st.pageSize)
	if err != nil {
		st.err = &es.StoreError{
			Op:          "loadSince",
			AggregateID: st.aggregateID,
			TenantID:    st.tenantID,
			Attempt:     1,
			Err:         err,
		}
		return st.err
	}

	if st.logger != nil {
		st.logger.Debug(ctx, "stream page fetched",
			"aggregate_id", st.aggregateID,
			"tenant_id", st.tenantID,
			"from_version", st.next,
			"event_count", len(page))
	}

	st.page = page
	st.offset = 0
	if len(page) > 0 {
		st.next = page[len(page)-1].Version + 1
	}
	// A short page means the history is exhausted.
	if len(page) < st.pageSize {
		st.done = true
	}
	return nil
}

// All drains the remainder of the stream into a slice.
// Useful when the caller wants the events materialized anyway.
func (st *Stream) All(ctx context.Context) ([]es.StoredEvent, error) {
	var events []es.StoredEvent
	for {
		event, err := st.Next(ctx)
		if err == io.EOF {
			return events, nil
		}
		if err != nil {
			return nil, err
		}
		events = append(events, event)
	}
}

// Close releases the buffered page. Iteration after Close returns io.EOF
// unless the stream already failed.
func (st *Stream) Close() error {
	if st.err == nil {
		st.err = io.EOF
	}
	st.page = nil
	st.done = true
	return nil
}
