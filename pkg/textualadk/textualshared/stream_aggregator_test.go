package textualshared

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStreamAggregatorLineKeepsTail(t *testing.T) {
	agg := NewStreamAggregator(Line)

	assert.Empty(t, agg.Append([]byte("data: {\"a\"")))
	assert.Equal(t, len("data: {\"a\""), agg.Pending())

	got := agg.Append([]byte(":1}\nevent: x\npartial"))
	assert.Equal(t, []string{"data: {\"a\":1}\n", "event: x\n"}, got)
	assert.Equal(t, len("partial"), agg.Pending())

	got = agg.Append([]byte(" line\n"))
	assert.Equal(t, []string{"partial line\n"}, got)
	assert.Zero(t, agg.Pending())
}

func TestStreamAggregatorWordSegments(t *testing.T) {
	agg := NewStreamAggregator(Word)

	got := agg.Append([]byte("Hello wor"))
	assert.Equal(t, []string{"Hello "}, got)

	got = agg.Append([]byte("ld, again"))
	assert.Equal(t, []string{"world,", " "}, got)

	assert.Equal(t, []string{"again"}, agg.Final())
	assert.Nil(t, agg.Final())
}

func TestStreamAggregatorSplitRune(t *testing.T) {
	agg := NewStreamAggregator(Line)
	payload := []byte("₹5 crores\n")

	// Split inside the three-byte rupee sign.
	assert.Empty(t, agg.Append(payload[:1]))
	assert.Empty(t, agg.Append(payload[1:2]))
	got := agg.Append(payload[2:])

	require.Len(t, got, 1)
	assert.Equal(t, "₹5 crores\n", got[0])
}

func TestStreamAggregatorDiscard(t *testing.T) {
	agg := NewStreamAggregator(Line)
	agg.Append([]byte("complete\ndangling"))

	assert.Equal(t, len("dangling"), agg.Discard())
	assert.Zero(t, agg.Pending())
	assert.Nil(t, agg.Final())
}

func TestNewStreamAggregatorFallsBackToWord(t *testing.T) {
	agg := NewStreamAggregator(AggregateType("json"))
	assert.Equal(t, Word, agg.Type())
	assert.Equal(t, Word, ParseAggregateType("bogus"))
	assert.Equal(t, Line, ParseAggregateType("line"))
}

func TestStreamAggregatorManySmallChunks(t *testing.T) {
	agg := NewStreamAggregator(Line)
	input := "a\nbb\n\nccc\n"

	var lines []string
	for i := 0; i < len(input); i++ {
		lines = append(lines, agg.Append([]byte{input[i]})...)
	}

	assert.Equal(t, input, strings.Join(lines, ""))
	assert.Equal(t, []string{"a\n", "bb\n", "\n", "ccc\n"}, lines)
}
