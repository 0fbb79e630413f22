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
	"errors"
	"fmt"

	"github.com/benoit-pereira-da-silva/textual/pkg/carrier"

	"github.com/benoit-pereira-da-silva/textualadk/pkg/textualadk/adkstream"
	"github.com/benoit-pereira-da-silva/textualadk/pkg/textualadk/textualshared"
)

// ErrExchange is attached to the input item when the ADK exchange failed.
var ErrExchange = errors.New("textualadk: exchange failed")

// ResultHook receives the aggregated Result of every successful or failed
// exchange, before the final snapshot is emitted.
type ResultHook func(input string, r adkstream.Result)

// ResponseProcessor is a textual.Processor that sends each incoming carrier
// to the ADK coordinator and re-emits the answer as text snapshots.
//
// Snapshots are cumulative: each one is the whole visible text so far.
// Partial deltas are released at AggregateType boundaries (word or line),
// authoritative text (final deltas, function results) immediately. The last
// snapshot of an exchange is the final response, charts removed. Identical
// consecutive snapshots are not repeated.
type ResponseProcessor[S carrier.Carrier[S]] struct {
	textualshared.ResponseProcessor[S]

	agent  *Agent
	onDone ResultHook
}

// NewResponseProcessor builds a processor on top of agent. templateStr may
// be empty; otherwise it must reference {{.Input}}.
func NewResponseProcessor[S carrier.Carrier[S]](agent *Agent, templateStr string) (*ResponseProcessor[S], error) {
	if agent == nil {
		return nil, errors.New("textualadk: nil agent")
	}
	p := &ResponseProcessor[S]{
		ResponseProcessor: textualshared.ResponseProcessor[S]{
			AggregateType: textualshared.Word,
		},
		agent: agent,
	}
	if templateStr != "" {
		tmpl, err := textualshared.ParseTemplate("adk", templateStr)
		if err != nil {
			return nil, err
		}
		p.Template = tmpl
	}
	return p, nil
}

// WithAggregateType returns a copy using t to release partial text.
func (p ResponseProcessor[S]) WithAggregateType(t textualshared.AggregateType) ResponseProcessor[S] {
	p.AggregateType = t
	return p
}

// WithResultHook returns a copy calling fn with each exchange result.
func (p ResponseProcessor[S]) WithResultHook(fn ResultHook) ResponseProcessor[S] {
	p.onDone = fn
	return p
}

// Apply implements textual.Processor.
func (p ResponseProcessor[S]) Apply(ctx context.Context, in <-chan S) <-chan S {
	return p.ResponseProcessor.Apply(ctx, in, p.handlePrompt)
}

func (p ResponseProcessor[S]) handlePrompt(ctx context.Context, input S, prompt string, out chan<- S) error {
	segments := textualshared.NewStreamAggregator(p.AggregateType)
	var (
		last    string
		sendErr error
	)
	send := func(text string) {
		if sendErr != nil {
			return
		}
		select {
		case <-ctx.Done():
			sendErr = context.Cause(ctx)
		case out <- input.FromUTF8String(text).WithIndex(input.GetIndex()):
			last = text
		}
	}

	observer := func(ev adkstream.Event, text string) {
		switch ev.Kind {
		case adkstream.KindTextDelta:
			if ev.Partial {
				if len(segments.Append([]byte(ev.Text))) == 0 {
					return
				}
				text = text[:len(text)-segments.Pending()]
			} else {
				segments.Discard()
			}
		case adkstream.KindFunctionResult:
			segments.Discard()
		default:
			return
		}
		if text != last {
			send(text)
		}
	}

	res, err := p.agent.SendMessage(ctx, prompt, adkstream.WithObserver(observer))
	if err != nil {
		return err
	}
	if p.onDone != nil {
		p.onDone(input.UTF8String(), res)
	}
	if !res.OK() {
		return fmt.Errorf("%w: %s", ErrExchange, res.Error)
	}
	if res.Response != last {
		send(res.Response)
	}
	return sendErr
}
