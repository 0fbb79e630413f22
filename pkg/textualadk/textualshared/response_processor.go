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

package textualshared

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"text/template"

	"github.com/benoit-pereira-da-silva/textual/pkg/carrier"
)

// ErrEmptyPrompt is attached to items whose rendered prompt is blank. Such
// items never reach the exchange handler.
var ErrEmptyPrompt = errors.New("empty prompt")

// inputAction matches {{.Input}} with optional spaces and trim markers.
var inputAction = regexp.MustCompile(`\{\{-?\s*\.Input\s*-?\}\}`)

// ResponseProcessor holds what every agent-backed processor shares: the
// prompt template, the snapshot segmentation, and the Apply loop feeding one
// exchange per incoming item.
//
// It does not implement textual.Processor itself. The embedding processor
// owns the exchange and passes it to Apply as an ExchangeHandler.
type ResponseProcessor[S carrier.Carrier[S]] struct {
	// Template wraps each user message before it is sent. Nil sends the
	// message as is.
	Template *template.Template `json:"-"`

	// AggregateType controls how streamed partial text is segmented into
	// snapshots.
	AggregateType AggregateType `json:"aggregateType"`
}

// templateData is what Template sees.
type templateData[S any] struct {
	Input string // trimmed message text
	Item  S
}

// ParseTemplate parses a Go text/template that must inject the message
// through {{.Input}} ("{{ .Input }}" and "{{- .Input -}}" also qualify).
func ParseTemplate(name, templateStr string) (*template.Template, error) {
	if !inputAction.MatchString(templateStr) {
		return nil, errors.New("template must contain an {{.Input}} placeholder")
	}
	tmpl, err := template.New(name).Parse(templateStr)
	if err != nil {
		return nil, fmt.Errorf("parse template: %w", err)
	}
	return tmpl, nil
}

// BuildPrompt renders the message carried by input. Surrounding whitespace
// is trimmed before and after rendering; a blank result is ErrEmptyPrompt.
func (p ResponseProcessor[S]) BuildPrompt(input S) (string, error) {
	message := strings.TrimSpace(input.UTF8String())
	if message == "" {
		return "", ErrEmptyPrompt
	}
	if p.Template == nil {
		return message, nil
	}

	var buf bytes.Buffer
	if err := p.Template.Execute(&buf, templateData[S]{Input: message, Item: input}); err != nil {
		return "", fmt.Errorf("render template: %w", err)
	}
	prompt := strings.TrimSpace(buf.String())
	if prompt == "" {
		return "", ErrEmptyPrompt
	}
	return prompt, nil
}

// ExchangeHandler runs one exchange for input and writes its snapshots to
// out. It must stop writing once ctx is done.
type ExchangeHandler[S carrier.Carrier[S]] func(ctx context.Context, input S, prompt string, out chan<- S) error

// Apply runs handler once per item of in, sequentially. A prompt or handler
// error is attached to the item with WithError and the item is emitted; the
// stream goes on with the next item.
//
// When ctx is done the remaining items of in are drained so senders never
// block.
func (p ResponseProcessor[S]) Apply(ctx context.Context, in <-chan S, handler ExchangeHandler[S]) <-chan S {
	if ctx == nil {
		ctx = context.Background()
	}
	out := make(chan S)

	go func() {
		defer close(out)
		for {
			var (
				input S
				ok    bool
			)
			select {
			case <-ctx.Done():
				for range in {
				}
				return
			case input, ok = <-in:
				if !ok {
					return
				}
			}

			err := p.exchange(ctx, input, handler, out)
			if err == nil {
				continue
			}
			select {
			case <-ctx.Done():
				return
			case out <- input.WithError(err):
			}
		}
	}()

	return out
}

func (p ResponseProcessor[S]) exchange(ctx context.Context, input S, handler ExchangeHandler[S], out chan<- S) error {
	prompt, err := p.BuildPrompt(input)
	if err != nil {
		return err
	}
	if handler == nil {
		return nil
	}
	return handler(ctx, input, prompt, out)
}
