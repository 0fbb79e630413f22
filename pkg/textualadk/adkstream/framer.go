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

	"github.com/benoit-pereira-da-silva/textualadk/pkg/textualadk/textualshared"
)

// LineFramer turns arbitrarily aligned body chunks into complete protocol
// lines. It owns a single pending-line buffer: the fragment after the last
// newline of a chunk is held back and prepended to the next one.
//
// A LineFramer belongs to exactly one stream and is not safe for concurrent
// use.
type LineFramer struct {
	lines  *textualshared.StreamAggregator
	logger *slog.Logger
}

// NewLineFramer returns an empty framer. A nil logger uses slog.Default().
func NewLineFramer(logger *slog.Logger) *LineFramer {
	if logger == nil {
		logger = slog.Default()
	}
	return &LineFramer{
		lines:  textualshared.NewStreamAggregator(textualshared.Line),
		logger: logger,
	}
}

// Feed appends chunk and returns every line completed by it, in order, with
// the terminating "\n" (and an optional preceding "\r") stripped.
func (f *LineFramer) Feed(chunk []byte) []string {
	segments := f.lines.Append(chunk)
	if len(segments) == 0 {
		return nil
	}
	out := make([]string, len(segments))
	for i, s := range segments {
		s = strings.TrimSuffix(s, "\n")
		out[i] = strings.TrimSuffix(s, "\r")
	}
	return out
}

// Pending reports how many bytes wait for a newline.
func (f *LineFramer) Pending() int {
	return f.lines.Pending()
}

// Flush ends the stream. A dangling line that never received its newline is
// incomplete and therefore dropped: Flush never returns a line.
func (f *LineFramer) Flush() []string {
	if n := f.lines.Discard(); n > 0 {
		f.logger.Debug("adkstream: dropped unterminated line at end of stream", "bytes", n)
	}
	return nil
}
