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

import (
	"fmt"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

const routingMessageFormat = "🔄 Routing your request to %s specialist..."

// RoutingInfo describes the sub-agent a request was routed to.
type RoutingInfo struct {
	CalledAgent    string `json:"called_agent"`
	RoutingMessage string `json:"routing_message"`
}

// State accumulates one exchange. It is created per request, mutated only
// through Apply and read once by Result.
type State struct {
	VisibleText string
	AgentName   string
	Routing     *RoutingInfo
	Charts      []Chart
}

// Apply folds ev into the state.
func (s *State) Apply(ev Event) {
	switch ev.Kind {
	case KindTextDelta:
		if ev.Partial {
			s.VisibleText += ev.Text
		} else {
			s.VisibleText = ev.Text
		}
	case KindFunctionCall:
		// Only the first routed agent gets a banner.
		if s.Routing == nil {
			s.Routing = &RoutingInfo{
				CalledAgent:    ev.Agent,
				RoutingMessage: RoutingMessage(ev.Agent),
			}
		}
	case KindFunctionResult:
		s.VisibleText = ev.Text
		s.AgentName = ev.Agent
	case KindAuthorTag:
		s.AgentName = ev.Agent
	}
}

// DisplayName converts an agent id such as "goal_planning_agent" into the
// banner label "GOAL PLANNING". Only the first "_agent" suffix and the first
// remaining underscore are rewritten.
func DisplayName(agentID string) string {
	name := strings.Replace(agentID, "_agent", "", 1)
	name = strings.Replace(name, "_", " ", 1)
	// cases.Caser is stateful, one per call.
	return cases.Upper(language.Und).String(name)
}

// RoutingMessage returns the routing banner shown for agentID.
func RoutingMessage(agentID string) string {
	return fmt.Sprintf(routingMessageFormat, DisplayName(agentID))
}
