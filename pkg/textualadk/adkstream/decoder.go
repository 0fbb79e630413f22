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
	"log/slog"
	"strings"

	"github.com/bytedance/sonic"
)

const (
	dataPrefix  = "data:"
	eventPrefix = "event:"

	// DoneSentinel is sent by some servers in place of a JSON payload. It
	// carries nothing and does not end the read loop.
	DoneSentinel = "[DONE]"
)

// Decoder classifies framed lines and maps "data:" payloads to Events.
//
// Malformed payloads are dropped and counted; they never abort a stream.
// A Decoder is owned by a single stream.
type Decoder struct {
	logger        *slog.Logger
	lastEventType string
	dropped       int
}

// NewDecoder returns a Decoder logging to logger (slog.Default() when nil).
func NewDecoder(logger *slog.Logger) *Decoder {
	if logger == nil {
		logger = slog.Default()
	}
	return &Decoder{logger: logger}
}

// LastEventType returns the value of the most recent "event:" line.
func (d *Decoder) LastEventType() string {
	return d.lastEventType
}

// Dropped returns the number of data lines that could not be parsed.
func (d *Decoder) Dropped() int {
	return d.dropped
}

// Decode maps one framed line to zero or more events, in the order their
// source fields appear in the payload.
func (d *Decoder) Decode(line string) []Event {
	switch {
	case strings.HasPrefix(line, dataPrefix):
		return d.decodeData(strings.TrimSpace(line[len(dataPrefix):]))
	case strings.HasPrefix(line, eventPrefix):
		d.lastEventType = strings.TrimSpace(line[len(eventPrefix):])
		d.logger.Debug("adkstream: event type", "type", d.lastEventType)
		return nil
	default:
		// Keep-alives, comments, id: and retry: fields.
		return nil
	}
}

func (d *Decoder) decodeData(payload string) []Event {
	if payload == "" {
		return nil
	}
	if payload == DoneSentinel {
		d.logger.Debug("adkstream: done sentinel")
		return nil
	}

	var ev wireEvent
	if err := sonic.ConfigStd.UnmarshalFromString(payload, &ev); err != nil {
		d.dropped++
		d.logger.Warn("adkstream: dropping malformed data line", "error", err, "bytes", len(payload))
		return nil
	}
	if ev.ErrorCode != "" || ev.ErrorMessage != "" {
		d.logger.Warn("adkstream: backend reported an error event",
			"code", ev.ErrorCode, "message", ev.ErrorMessage, "author", ev.Author)
	}
	return d.mapEvent(ev)
}

func (d *Decoder) mapEvent(ev wireEvent) []Event {
	var out []Event
	if ev.Content != nil {
		for _, part := range ev.Content.Parts {
			switch {
			case part.Text != "":
				out = append(out, TextDelta(part.Text, ev.Partial))
			case part.FunctionCall != nil:
				out = append(out, FunctionCall(part.FunctionCall.Name, part.FunctionCall.Args))
			case part.FunctionResponse != nil:
				if text, ok := d.resultText(part.FunctionResponse); ok {
					out = append(out, FunctionResult(part.FunctionResponse.Name, text))
				}
			}
		}
	}
	if ev.Author != "" {
		out = append(out, AuthorTag(ev.Author))
	}
	return out
}

// resultText extracts response.result. Strings are used verbatim, other
// JSON values are kept as compact JSON text. Falsy results (null, "",
// false, 0) are ignored.
func (d *Decoder) resultText(fr *wireFunctionResponse) (string, bool) {
	raw, ok := fr.Response["result"]
	if !ok {
		return "", false
	}
	switch v := raw.(type) {
	case nil:
		return "", false
	case string:
		return v, v != ""
	case bool:
		if !v {
			return "", false
		}
	case float64:
		if v == 0 {
			return "", false
		}
	}
	text, err := sonic.ConfigStd.MarshalToString(raw)
	if err != nil {
		d.logger.Debug("adkstream: unprintable function result", "agent", fr.Name, "error", err)
		return "", false
	}
	return text, true
}

// DecodeLine decodes a single line with a throwaway Decoder.
func DecodeLine(line string) []Event {
	return NewDecoder(slog.New(slog.DiscardHandler)).Decode(line)
}
