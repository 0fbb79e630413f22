package textualshared

// AggregateType controls how streamed chunks are turned into output segments.
//
//   - Word: emit when we cross a whitespace / punctuation boundary.
//   - Line: emit when we cross a newline boundary.
type AggregateType string

const (
	Word AggregateType = "word"
	Line AggregateType = "line"
)

// ParseAggregateType maps a user supplied value to an AggregateType.
// Unknown values fall back to Word.
func ParseAggregateType(s string) AggregateType {
	switch AggregateType(s) {
	case Line:
		return Line
	default:
		return Word
	}
}

// Role is the message role used when a request payload carries a chat-like
// "newMessage" item.
type Role string

const (
	RoleUser  Role = "user"
	RoleModel Role = "model"
)
