package pool

import (
	"bytes"
	"fmt"
	"io"

	json "github.com/goccy/go-json"
)

// Stats is a point-in-time snapshot of a pool's occupancy and counters.
// Live estimates factory-created instances currently outside the store
// (creations minus idle, floored at zero). The pool does not track
// checkouts individually, so instances discarded after capacity rejection
// or drain stay counted until the figures rebalance.
type Stats struct {
	Name     string `json:"name"`
	Idle     int    `json:"idle"`
	Live     uint64 `json:"live"`
	MaxSize  int    `json:"max_size"`
	Created  uint64 `json:"created"`
	Retained uint64 `json:"retained"`
	Rejected uint64 `json:"rejected"`
	Drained  uint64 `json:"drained"`
}

// EncodeJSON marshals the value to JSON bytes without HTML escaping.
func EncodeJSON(v any) ([]byte, error) {
	buf := &bytes.Buffer{}
	encoder := json.NewEncoder(buf)
	encoder.SetEscapeHTML(false)
	if err := encoder.Encode(v); err != nil {
		return nil, fmt.Errorf("json encode: %w", err)
	}
	data := buf.Bytes()
	if len(data) > 0 && data[len(data)-1] == '\n' {
		data = data[:len(data)-1]
	}
	return data, nil
}

// WriteJSON encodes and writes JSON directly to the writer without HTML escaping.
func WriteJSON(w io.Writer, v any) error {
	data, err := EncodeJSON(v)
	if err != nil {
		return err
	}
	if _, err := w.Write(data); err != nil {
		return fmt.Errorf("write encoded json: %w", err)
	}
	return nil
}
