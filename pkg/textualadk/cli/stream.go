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

package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/benoit-pereira-da-silva/textual/pkg/carrier"
	"github.com/benoit-pereira-da-silva/textual/pkg/textual"
	"github.com/bytedance/sonic"

	"github.com/benoit-pereira-da-silva/textualadk/pkg/textualadk/adkstream"
	"github.com/benoit-pereira-da-silva/textualadk/pkg/textualadk/textualadk"
)

// ------------------------------
// Streaming + loop
// ------------------------------

func withOptionalTimeout(parent context.Context, d OptDuration) (context.Context, context.CancelFunc) {
	if !d.IsSet() || d.Value() <= 0 {
		return parent, func() {}
	}
	return context.WithTimeout(parent, d.Value())
}

// DefaultStreamer runs one processor invocation and streams its output to outw.
//
// It expects the processor to emit aggregated "snapshots" and prints only the
// delta between successive snapshots. A snapshot that does not extend the
// previous one (charts removed from the final answer, a function result
// replacing the text) is printed on a new line. It returns the final
// accumulated text.
func DefaultStreamer(
	ctx context.Context,
	proc textual.Processor[carrier.String],
	prompt string,
	outw *bufio.Writer,
) (string, error) {
	if proc == nil {
		return "", errors.New("nil processor")
	}

	prompt = strings.TrimSpace(prompt)
	if prompt == "" {
		return "", errors.New("empty prompt")
	}

	in := make(chan carrier.String, 1)
	in <- carrier.String{}.FromUTF8String(prompt).WithIndex(0)
	close(in)

	out := proc.Apply(ctx, in)

	var last string
	for item := range out {
		if err := item.GetError(); err != nil {
			return last, err
		}
		snapshot := item.UTF8String()
		delta := snapshot
		if strings.HasPrefix(snapshot, last) {
			delta = snapshot[len(last):]
		} else if last != "" {
			delta = "\n" + snapshot
		}
		if delta != "" {
			if _, err := outw.WriteString(delta); err != nil {
				return last, err
			}
			_ = outw.Flush()
		}
		last = snapshot
	}

	return last, nil
}

// resultBox keeps the Result reported by the processor hook.
type resultBox struct {
	mu  sync.Mutex
	res adkstream.Result
	ok  bool
}

func (b *resultBox) set(_ string, r adkstream.Result) {
	b.mu.Lock()
	b.res, b.ok = r, true
	b.mu.Unlock()
}

func (b *resultBox) take() (adkstream.Result, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	r, ok := b.res, b.ok
	b.res, b.ok = adkstream.Result{}, false
	return r, ok
}

// chat carries everything one exchange needs.
type chat struct {
	cfg     Config
	agent   *textualadk.Agent
	proc    textual.Processor[carrier.String]
	results *resultBox
	stream  Streamer
	pacer   textualadk.Pacer
	outw    *bufio.Writer
	stderr  io.Writer
}

// exchange sends msg and prints the answer: the streamed text first, then
// the messages derived from the Result (routing banner, specialist
// follow-up, chart summaries), or the Result as JSON with --json.
func (c *chat) exchange(ctx context.Context, msg string) error {
	c.results.take()

	reqCtx, cancel := withOptionalTimeout(ctx, c.cfg.Timeout)
	defer cancel()

	w := c.outw
	if c.cfg.JSON.Enabled() || c.cfg.NoStream.Enabled() {
		w = bufio.NewWriter(io.Discard)
	}
	streamed, err := c.stream(reqCtx, c.proc, msg, w)

	res, ok := c.results.take()
	if !ok {
		if err == nil {
			err = errors.New("no result received")
		}
		if streamed != "" && w == c.outw {
			fmt.Fprintln(c.outw)
			_ = c.outw.Flush()
		}
		return err
	}

	if c.cfg.JSON.Enabled() {
		if werr := writeResultJSON(c.outw, res); werr != nil && err == nil {
			err = werr
		}
		return err
	}

	if w != c.outw {
		streamed = ""
	}
	if streamed != "" {
		fmt.Fprintln(c.outw)
	}
	derr := c.pacer.Deliver(ctx, res, func(m textualadk.Message) {
		writeMessage(c.outw, m, streamed)
		_ = c.outw.Flush()
	})
	if err == nil {
		err = derr
	}
	return err
}

func writeResultJSON(w *bufio.Writer, r adkstream.Result) error {
	b, err := sonic.ConfigStd.MarshalIndent(r, "", "  ")
	if err != nil {
		return err
	}
	if _, err := w.Write(append(b, '\n')); err != nil {
		return err
	}
	return w.Flush()
}

// writeMessage prints m. Content already printed while streaming is not
// repeated.
func writeMessage(w *bufio.Writer, m textualadk.Message, streamed string) {
	switch {
	case m.Content == "":
		fmt.Fprintf(w, "[%s]\n", m.AgentName)
	case m.Content == streamed:
		fmt.Fprintf(w, "-- %s\n", m.AgentName)
	default:
		fmt.Fprintf(w, "[%s] %s\n", m.AgentName, m.Content)
	}
	for _, ch := range m.Charts {
		fmt.Fprintf(w, "  chart: %s (%s, %d labels, %d datasets)\n",
			ch.Title, ch.Type, len(ch.Data.Labels), len(ch.Data.Datasets))
	}
}

// writeHistory prints the exchanges of the current session.
func writeHistory(w *bufio.Writer, agent *textualadk.Agent, asJSON bool) error {
	defer w.Flush()
	if asJSON {
		m, ok := agent.HistoryMemory()
		if !ok {
			_, err := w.WriteString("[]\n")
			return err
		}
		return m.WriteJSON(w)
	}

	items := agent.History()
	if len(items) == 0 {
		fmt.Fprintln(w, "(no exchanges)")
		return nil
	}
	for i, ex := range items {
		agentName := ex.Result.AgentName
		if agentName == "" {
			agentName = "-"
		}
		fmt.Fprintf(w, "%2d. %s %s %s (%s)\n", i+1,
			ex.At.Format(time.TimeOnly), ex.Result.Status, agentName, ex.Elapsed.Round(time.Millisecond))
		fmt.Fprintf(w, "    > %s\n", ellipsis(ex.Message, 72))
		fmt.Fprintf(w, "    < %s\n", ellipsis(ex.Result.Response, 72))
	}
	return nil
}

func ellipsis(s string, n int) string {
	s = strings.Join(strings.Fields(s), " ")
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}

func interactiveLoop(rootCtx context.Context, c *chat, stdin io.Reader) int {
	if stdin == nil {
		stdin = os.Stdin
	}

	exitCmds := make(map[string]struct{})
	for _, cmd := range splitCSV(c.cfg.ExitCommands) {
		exitCmds[strings.ToLower(cmd)] = struct{}{}
	}

	inReader := bufio.NewReader(stdin)
	outw := c.outw

	for {
		select {
		case <-rootCtx.Done():
			fmt.Fprintln(c.stderr, "\nCanceled.")
			return 1
		default:
		}

		// Prompt.
		fmt.Fprint(outw, "> ")
		_ = outw.Flush()

		line, err := inReader.ReadString('\n')
		if err != nil && !(errors.Is(err, io.EOF) && strings.TrimSpace(line) != "") {
			if errors.Is(err, io.EOF) {
				fmt.Fprintln(outw)
				_ = outw.Flush()
				return 0
			}
			fmt.Fprintln(c.stderr, "Error reading stdin:", err)
			return 1
		}

		msg := strings.TrimSpace(line)
		if msg == "" {
			continue
		}
		if _, ok := exitCmds[strings.ToLower(msg)]; ok {
			return 0
		}

		switch strings.ToLower(msg) {
		case "/reset":
			c.agent.ResetSession()
			fmt.Fprintf(outw, "New session: %s\n", c.agent.SessionID())
			_ = outw.Flush()
			continue
		case "/session":
			fmt.Fprintln(outw, c.agent.SessionID())
			_ = outw.Flush()
			continue
		case "/history":
			if err := writeHistory(outw, c.agent, c.cfg.JSON.Enabled()); err != nil {
				fmt.Fprintln(c.stderr, "Error:", err)
			}
			continue
		}

		if err := c.exchange(rootCtx, msg); err != nil {
			fmt.Fprintln(c.stderr, "Error:", err)
		}
		_ = outw.Flush()
	}
}
