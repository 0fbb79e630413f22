// Copyright 2026 Benoit Pereira da Silva
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package adkstream

// EventKind tags the variant carried by an Event.
type EventKind int

const (
	// KindTextDelta carries visible text. Partial deltas are appended,
	// final deltas replace everything accumulated so far.
	KindTextDelta EventKind = iota + 1

	// KindFunctionCall announces that the coordinator routed the request to
	// a sub-agent.
	KindFunctionCall

	// KindFunctionResult carries the text a sub-agent returned.
	KindFunctionResult

	// KindAuthorTag attributes the event to an agent.
	KindAuthorTag
)

func (k EventKind) String() string {
	switch k {
	case KindTextDelta:
		return "text_delta"
	case KindFunctionCall:
		return "function_call"
	case KindFunctionResult:
		return "function_result"
	case KindAuthorTag:
		return "author_tag"
	default:
		return "unknown"
	}
}

// Event is one decoded protocol event. Only the fields relevant to Kind are
// populated:
//
//   - KindTextDelta: Text, Partial
//   - KindFunctionCall: Agent, Args
//   - KindFunctionResult: Agent, Text
//   - KindAuthorTag: Agent
type Event struct {
	Kind    EventKind
	Text    string
	Partial bool
	Agent   string
	Args    map[string]any
}

// TextDelta builds a KindTextDelta event.
func TextDelta(text string, partial bool) Event {
	return Event{Kind: KindTextDelta, Text: text, Partial: partial}
}

// FunctionCall builds a KindFunctionCall event.
func FunctionCall(agent string, args map[string]any) Event {
	return Event{Kind: KindFunctionCall, Agent: agent, Args: args}
}

// FunctionResult builds a KindFunctionResult event.
func FunctionResult(agent, text string) Event {
	return Event{Kind: KindFunctionResult, Agent: agent, Text: text}
}

// AuthorTag builds a KindAuthorTag event.
func AuthorTag(agent string) Event {
	return Event{Kind: KindAuthorTag, Agent: agent}
}

// ─────────────────────────────────────────────────────────────
// Wire envelope (ADK /run_sse "data:" payloads)
// ─────────────────────────────────────────────────────────────

// wireEvent is the subset of an ADK event the aggregator reads.
type wireEvent struct {
	Author       string       `json:"author,omitempty"`
	Partial      bool         `json:"partial,omitempty"`
	Content      *wireContent `json:"content,omitempty"`
	ErrorCode    string       `json:"errorCode,omitempty"`
	ErrorMessage string       `json:"errorMessage,omitempty"`
}

type wireContent struct {
	Role  string     `json:"role,omitempty"`
	Parts []wirePart `json:"parts,omitempty"`
}

type wirePart struct {
	Text             string                `json:"text,omitempty"`
	FunctionCall     *wireFunctionCall     `json:"functionCall,omitempty"`
	FunctionResponse *wireFunctionResponse `json:"functionResponse,omitempty"`
}

type wireFunctionCall struct {
	ID   string         `json:"id,omitempty"`
	Name string         `json:"name"`
	Args map[string]any `json:"args,omitempty"`
}

type wireFunctionResponse struct {
	ID       string         `json:"id,omitempty"`
	Name     string         `json:"name"`
	Response map[string]any `json:"response,omitempty"`
}
