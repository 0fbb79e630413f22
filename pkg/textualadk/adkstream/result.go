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

const (
	// DefaultResponse is used when a stream carried no visible text.
	DefaultResponse = "No response received"

	// DefaultAgentName is used when no event attributed the exchange.
	DefaultAgentName = "coordinator_agent"

	// ApologyResponse is the user-facing text of a failed exchange.
	ApologyResponse = "Sorry, I encountered an error while processing your request. Please try again."
)

// Status is the outcome of an exchange.
type Status string

const (
	StatusSuccess Status = "success"
	StatusError   Status = "error"
)

// Result is the aggregated outcome of one exchange, handed to the rendering
// layer. It is never mutated after it is built.
type Result struct {
	Response    string       `json:"response"`
	AgentName   string       `json:"agent_name,omitempty"`
	Status      Status       `json:"status"`
	Error       string       `json:"error,omitempty"`
	RoutingInfo *RoutingInfo `json:"routing_info,omitempty"`
	Charts      []Chart      `json:"charts,omitempty"`
}

// OK reports whether the exchange succeeded.
func (r Result) OK() bool {
	return r.Status == StatusSuccess
}

// Result builds the success result from the accumulated state.
func (s *State) Result() Result {
	r := Result{
		Response:  s.VisibleText,
		AgentName: s.AgentName,
		Status:    StatusSuccess,
	}
	if r.Response == "" {
		r.Response = DefaultResponse
	}
	if r.AgentName == "" {
		r.AgentName = DefaultAgentName
	}
	if s.Routing != nil {
		routing := *s.Routing
		r.RoutingInfo = &routing
	}
	if len(s.Charts) > 0 {
		r.Charts = append([]Chart(nil), s.Charts...)
	}
	return r
}

// FailureResult builds the error result for a transport failure. It never
// carries partial aggregation state.
func FailureResult(err error) Result {
	detail := "Unknown error"
	if err != nil {
		detail = err.Error()
	}
	return Result{
		Response: ApologyResponse,
		Status:   StatusError,
		Error:    detail,
	}
}
