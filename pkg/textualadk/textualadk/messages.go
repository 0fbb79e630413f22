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

package textualadk

import (
	"context"
	"strings"
	"time"

	"github.com/benoit-pereira-da-silva/textualadk/pkg/textualadk/adkstream"
)

// CoordinatorDisplayName labels messages authored by the coordinator.
const CoordinatorDisplayName = "Coordinator Agent"

// MessageKind distinguishes the messages derived from one Result.
type MessageKind string

const (
	KindPrimary    MessageKind = "primary"
	KindSpecialist MessageKind = "specialist"
)

// Message is what a chat surface shows for a Result.
type Message struct {
	Kind      MessageKind       `json:"kind"`
	AgentID   string            `json:"agent_id"`
	AgentName string            `json:"agent_name"`
	Content   string            `json:"content"`
	Charts    []adkstream.Chart `json:"charts,omitempty"`
	Error     bool              `json:"error,omitempty"`
}

// PrimaryMessage is shown as soon as the exchange completes. A routed
// exchange first shows the routing banner; the answer follows in the
// specialist message.
func PrimaryMessage(r adkstream.Result) Message {
	m := Message{
		Kind:      KindPrimary,
		AgentID:   r.AgentName,
		AgentName: CoordinatorDisplayName,
		Error:     !r.OK(),
	}
	if r.RoutingInfo != nil {
		m.Content = r.RoutingInfo.RoutingMessage
		return m
	}
	m.Content = r.Response
	m.Charts = r.Charts
	if r.AgentName != "" {
		m.AgentName = r.AgentName
	}
	return m
}

// SpecialistMessage returns the follow-up carrying a routed answer.
func SpecialistMessage(r adkstream.Result) (Message, bool) {
	if r.RoutingInfo == nil {
		return Message{}, false
	}
	called := r.RoutingInfo.CalledAgent
	name := r.AgentName
	if name == "" {
		name = strings.Replace(called, "_", " ", 1)
	}
	return Message{
		Kind:      KindSpecialist,
		AgentID:   called,
		AgentName: name,
		Content:   r.Response,
		Charts:    r.Charts,
		Error:     !r.OK(),
	}, true
}

// Pacer delivers the messages of a Result, delaying the specialist
// follow-up so the routing banner stays visible for a moment.
type Pacer struct {
	Delay time.Duration
}

// NewPacer returns a Pacer using DefaultSpecialistDelay.
func NewPacer() Pacer {
	return Pacer{Delay: DefaultSpecialistDelay}
}

// Deliver calls emit with the primary message, then with the specialist
// message after Delay. It returns the context error if ctx ends while
// waiting; the specialist message is not emitted in that case.
func (p Pacer) Deliver(ctx context.Context, r adkstream.Result, emit func(Message)) error {
	emit(PrimaryMessage(r))

	follow, ok := SpecialistMessage(r)
	if !ok {
		return nil
	}
	if p.Delay > 0 {
		timer := time.NewTimer(p.Delay)
		defer timer.Stop()
		select {
		case <-ctx.Done():
			return context.Cause(ctx)
		case <-timer.C:
		}
	}
	emit(follow)
	return nil
}
