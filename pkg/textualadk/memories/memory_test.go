package memories

import (
	"bytes"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryKeepsInsertionOrder(t *testing.T) {
	m := NewMemory[string]("s1", 0, 0, 0)
	for _, v := range []string{"a", "b", "c", "d"} {
		m.Add(v)
	}
	assert.Equal(t, []string{"a", "b", "c", "d"}, m.Items())

	last, ok := m.Last()
	require.True(t, ok)
	assert.Equal(t, "d", last)
}

func TestMemoryLimitDropsOldest(t *testing.T) {
	m := NewMemory[int]("s1", 3, 0, 0)
	for i := 1; i <= 5; i++ {
		m.Add(i)
	}
	assert.Equal(t, []int{3, 4, 5}, m.Items())

	m.SetLimit(1)
	assert.Equal(t, []int{5}, m.Items())
}

func TestMemoryTimeout(t *testing.T) {
	m := NewMemory[int]("s1", 0, time.Hour, 0)
	m.Add(1)
	assert.Equal(t, 1, m.Size())

	m.SetTimeout(time.Nanosecond)
	time.Sleep(time.Millisecond)
	m.Purge()
	assert.Zero(t, m.Size())
}

func TestMemoryAutoPurge(t *testing.T) {
	m := NewMemory[int]("s1", 0, time.Millisecond, 5*time.Millisecond)
	defer m.HaltAutoPurge()
	m.Add(1)

	assert.Eventually(t, func() bool { return m.Size() == 0 }, time.Second, 5*time.Millisecond)
	m.HaltAutoPurge()
	m.HaltAutoPurge()
}

func TestMemoryClearAndEmpty(t *testing.T) {
	m := NewMemory[int]("", 0, 0, 0)
	assert.NotEmpty(t, m.ID)

	_, ok := m.Last()
	assert.False(t, ok)
	assert.Equal(t, []int{}, m.Items())

	m.Add(1)
	m.Clear()
	assert.Zero(t, m.Size())
}

func TestMemoryJSON(t *testing.T) {
	m := NewMemory[map[string]string]("session_x", 10, 2*time.Second, 0)
	m.Add(map[string]string{"message": "hi"})
	m.Add(map[string]string{"message": "again"})

	b, err := json.Marshal(m)
	require.NoError(t, err)

	var decoded struct {
		ID        string `json:"id"`
		Limit     int    `json:"limit"`
		TimeoutMS int64  `json:"timeout_ms"`
		Items     []struct {
			Time  string            `json:"time"`
			Value map[string]string `json:"value"`
		} `json:"items"`
	}
	require.NoError(t, json.Unmarshal(b, &decoded))
	assert.Equal(t, "session_x", decoded.ID)
	assert.Equal(t, 10, decoded.Limit)
	assert.Equal(t, int64(2000), decoded.TimeoutMS)
	require.Len(t, decoded.Items, 2)
	assert.Equal(t, "hi", decoded.Items[0].Value["message"])
	assert.Equal(t, "again", decoded.Items[1].Value["message"])
	_, err = time.Parse(time.RFC3339Nano, decoded.Items[0].Time)
	assert.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, m.WriteJSON(&buf))
	assert.True(t, json.Valid(buf.Bytes()))
	assert.Contains(t, buf.String(), "\n  ")

	var nilMemory *Memory[int]
	assert.Error(t, nilMemory.WriteJSON(&buf))
}

func TestStorage(t *testing.T) {
	s := NewStorage[string](2, 0, 0)
	defer s.Close()

	a := s.Memory("b-session")
	assert.Same(t, a, s.Memory("b-session"))
	s.Memory("a-session").Add("x")

	assert.Equal(t, []string{"a-session", "b-session"}, s.IDs())

	got, ok := s.Get("a-session")
	require.True(t, ok)
	assert.Equal(t, []string{"x"}, got.Items())
	assert.Equal(t, 2, got.Limit())

	s.Delete("a-session")
	s.Delete("unknown")
	_, ok = s.Get("a-session")
	assert.False(t, ok)

	s.Close()
	assert.Empty(t, s.IDs())
}

func TestKeyFactoryIsMonotonic(t *testing.T) {
	var kf KeyFactory
	prev := kf.NowKey()
	for i := 0; i < 1000; i++ {
		k := kf.NowKey()
		assert.True(t, prev.Before(k))
		prev = k
	}
}
