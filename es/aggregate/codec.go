package aggregate

import (
	"encoding/json"
	"fmt"
)

// decodeJSON is the default snapshot payload decoder.
func decodeJSON[S any](payload []byte) (S, error) {
	var state S
	if err := json.Unmarshal(payload, &state); err != nil {
		return state, fmt.Errorf("failed to decode snapshot payload: %w", err)
	}
	return state, nil
}

// EncodeSnapshot is the counterpart to the default decoder: it serializes
// state for snapshot.Store.Save. Callers using their own encoding can skip
// it and write the payload directly.
func EncodeSnapshot[S any](state S) ([]byte, error) {
	payload, err := json.Marshal(state)
	if err != nil {
		return nil, fmt.Errorf("failed to encode snapshot payload: %w", err)
	}
	return payload, nil
}
