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

package relay

import (
	"github.com/benoit-pereira-da-silva/textualadk/pkg/textualadk/adkstream"
	"github.com/benoit-pereira-da-silva/textualadk/pkg/textualadk/textualadk"
)

// FrameType names the frames pushed to live clients.
type FrameType string

const (
	// FrameDelta carries the visible text so far.
	FrameDelta FrameType = "delta"
	// FrameRouting announces the specialist chosen by the coordinator.
	FrameRouting FrameType = "routing"
	// FrameResult carries the final Result.
	FrameResult FrameType = "result"
	// FrameMessage carries a chat message derived from the Result.
	FrameMessage FrameType = "message"
	// FrameError reports a request that produced no Result.
	FrameError FrameType = "error"
	// FrameSession reports the session id after a reset.
	FrameSession FrameType = "session"
)

// Frame is one server push on /v1/ws and /v1/chat/stream.
type Frame struct {
	Type      FrameType           `json:"type"`
	Text      string              `json:"text,omitempty"`
	Agent     string              `json:"agent,omitempty"`
	SessionID string              `json:"session_id,omitempty"`
	Result    *adkstream.Result   `json:"result,omitempty"`
	Message   *textualadk.Message `json:"message,omitempty"`
	Error     string              `json:"error,omitempty"`
}

// frameTracker turns applied events into frames. Only the first routing
// decision is announced, the same one the Result keeps.
type frameTracker struct {
	routed bool
	last   string
}

func (f *frameTracker) frame(ev adkstream.Event, text string) (Frame, bool) {
	switch ev.Kind {
	case adkstream.KindFunctionCall:
		if f.routed || ev.Agent == "" {
			return Frame{}, false
		}
		f.routed = true
		return Frame{Type: FrameRouting, Agent: ev.Agent, Text: adkstream.RoutingMessage(ev.Agent)}, true
	case adkstream.KindTextDelta, adkstream.KindFunctionResult:
		if text == f.last {
			return Frame{}, false
		}
		f.last = text
		return Frame{Type: FrameDelta, Text: text}, true
	default:
		return Frame{}, false
	}
}

func resultFrame(r adkstream.Result) Frame {
	return Frame{Type: FrameResult, Result: &r}
}

func messageFrame(m textualadk.Message) Frame {
	return Frame{Type: FrameMessage, Message: &m}
}

// inbound is a client request on /v1/ws.
type inbound struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

const (
	inboundChat  = "chat"
	inboundReset = "reset"
)
