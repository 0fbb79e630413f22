package memories

import (
	"errors"
	"io"
	"time"

	"github.com/bytedance/sonic"
)

// memoryJSON is the wire form of a Memory: durable state only.
type memoryJSON[I any] struct {
	ID        string               `json:"id"`
	Limit     int                  `json:"limit"`
	TimeoutMS int64                `json:"timeout_ms"`
	Items     []memoryJSONEntry[I] `json:"items"`
}

type memoryJSONEntry[I any] struct {
	Time  string `json:"time"`
	Value I      `json:"value"`
}

// MarshalJSON encodes the memory with its items oldest first.
func (m *Memory[I]) MarshalJSON() ([]byte, error) {
	if m == nil {
		return []byte("null"), nil
	}
	return sonic.ConfigStd.Marshal(m.snapshot())
}

func (m *Memory[I]) snapshot() memoryJSON[I] {
	m.mu.RLock()
	defer m.mu.RUnlock()

	keys := m.items.sortedKeys()
	entries := make([]memoryJSONEntry[I], 0, len(keys))
	for _, k := range keys {
		entries = append(entries, memoryJSONEntry[I]{
			Time:  k.Time().UTC().Format(time.RFC3339Nano),
			Value: m.items[k],
		})
	}
	return memoryJSON[I]{
		ID:        m.ID,
		Limit:     m.limit,
		TimeoutMS: m.timeOut.Milliseconds(),
		Items:     entries,
	}
}

// WriteJSON writes the indented JSON form of m followed by a newline.
func (m *Memory[I]) WriteJSON(w io.Writer) error {
	if m == nil {
		return errors.New("memories: nil memory")
	}
	if w == nil {
		return errors.New("memories: nil writer")
	}
	out, err := sonic.ConfigStd.MarshalIndent(m.snapshot(), "", "  ")
	if err != nil {
		return err
	}
	_, err = w.Write(append(out, '\n'))
	return err
}
