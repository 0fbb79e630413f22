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
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/benoit-pereira-da-silva/textualadk/pkg/textualadk/adkstream"
	"github.com/benoit-pereira-da-silva/textualadk/pkg/textualadk/memories"
)

// Default history bounds per session.
const (
	DefaultHistoryLimit   = 200
	DefaultHistoryTimeout = 24 * time.Hour
	defaultHistoryPurge   = time.Minute
)

// Exchange is one request/response pair kept in the history.
type Exchange struct {
	ID        string           `json:"id"`
	SessionID string           `json:"session_id"`
	Message   string           `json:"message"`
	Result    adkstream.Result `json:"result"`
	At        time.Time        `json:"at"`
	Elapsed   time.Duration    `json:"elapsed_ns"`
}

// AgentOption configures an Agent.
type AgentOption func(*Agent)

// WithHTTPClient sets the HTTP client used for every request.
func WithHTTPClient(c *http.Client) AgentOption {
	return func(a *Agent) { a.httpClient = c }
}

// WithAgentLogger sets the agent logger.
func WithAgentLogger(l *slog.Logger) AgentOption {
	return func(a *Agent) {
		if l != nil {
			a.logger = l
		}
	}
}

// WithHistory sets the storage receiving exchanges. A nil storage disables
// history.
func WithHistory(s *memories.Storage[Exchange]) AgentOption {
	return func(a *Agent) {
		a.history = s
		a.historySet = true
	}
}

// WithStreamOptions adds options applied to every aggregation.
func WithStreamOptions(opts ...adkstream.Option) AgentOption {
	return func(a *Agent) { a.streamOpts = append(a.streamOpts, opts...) }
}

// Agent sends user messages to the ADK coordinator and aggregates the
// streamed answers. It is safe for concurrent use; each call aggregates
// its own stream.
type Agent struct {
	client     Client
	session    *Session
	logger     *slog.Logger
	httpClient *http.Client
	history    *memories.Storage[Exchange]
	historySet bool
	streamOpts []adkstream.Option
}

// NewAgent validates config and returns an Agent with a fresh session.
func NewAgent(config Config, opts ...AgentOption) (*Agent, error) {
	if err := config.validate(); err != nil {
		return nil, err
	}
	a := &Agent{logger: slog.Default()}
	for _, opt := range opts {
		opt(a)
	}
	if !a.historySet {
		a.history = memories.NewStorage[Exchange](DefaultHistoryLimit, DefaultHistoryTimeout, defaultHistoryPurge)
	}
	a.client = NewClient(config, a.httpClient)
	a.session = NewSession(a.client, a.logger)
	return a, nil
}

// SessionID returns the current session id.
func (a *Agent) SessionID() string {
	_, sessionID := a.session.Identity()
	return sessionID
}

// Session exposes the session collaborator.
func (a *Agent) Session() *Session {
	return a.session
}

// ResetSession starts a new conversation. Earlier history stays readable
// under the previous session id.
func (a *Agent) ResetSession() {
	previous := a.SessionID()
	a.session.Reset()
	a.logger.Info("textualadk: session reset", "previous_session_id", previous, "session_id", a.SessionID())
}

// History returns the exchanges of the current session, oldest first.
func (a *Agent) History() []Exchange {
	return a.HistoryOf(a.SessionID())
}

// HistoryOf returns the exchanges recorded for sessionID.
func (a *Agent) HistoryOf(sessionID string) []Exchange {
	if a.history == nil {
		return nil
	}
	m, ok := a.history.Get(sessionID)
	if !ok {
		return []Exchange{}
	}
	return m.Items()
}

// HistoryMemory returns the memory of the current session, if any.
func (a *Agent) HistoryMemory() (*memories.Memory[Exchange], bool) {
	if a.history == nil {
		return nil, false
	}
	return a.history.Get(a.SessionID())
}

// Close stops the history purge loops.
func (a *Agent) Close() {
	if a.history != nil {
		a.history.Close()
	}
}

// SendMessage runs one exchange: ensure the session, open the event stream,
// aggregate it. The run request and the history entry use the ids Ensure
// returned, even when ResetSession is called meanwhile.
//
// Session and transport failures are reported inside the Result
// (Status == error) with a nil error. Cancellation of ctx returns an error
// wrapping adkstream.ErrCanceled and no Result. opts apply to this exchange
// only, typically adkstream.WithObserver for progressive display.
func (a *Agent) SendMessage(ctx context.Context, message string, opts ...adkstream.Option) (adkstream.Result, error) {
	message = strings.TrimSpace(message)
	if message == "" {
		return adkstream.Result{}, ErrEmptyMessage
	}

	started := time.Now()
	userID, sessionID, err := a.session.Ensure(ctx)
	logger := a.logger.With("session_id", sessionID)

	var res adkstream.Result
	if err != nil {
		res, err = a.failure(ctx, logger, err)
	} else {
		res, err = a.run(ctx, logger, userID, sessionID, message, opts)
	}
	if err != nil {
		logger.Info("textualadk: exchange canceled", "error", err)
		return adkstream.Result{}, err
	}

	elapsed := time.Since(started)
	logger.Info("textualadk: exchange done",
		"status", res.Status,
		"agent", res.AgentName,
		"routed", res.RoutingInfo != nil,
		"charts", len(res.Charts),
		"elapsed", elapsed)

	if a.history != nil {
		a.history.Memory(sessionID).Add(Exchange{
			ID:        uuid.NewString(),
			SessionID: sessionID,
			Message:   message,
			Result:    res,
			At:        started,
			Elapsed:   elapsed,
		})
	}
	return res, nil
}

// run streams one message into the ensured session and aggregates the answer.
func (a *Agent) run(ctx context.Context, logger *slog.Logger, userID, sessionID, message string, opts []adkstream.Option) (adkstream.Result, error) {
	resp, err := a.client.RunSSE(ctx, NewRunRequest(a.client.config.appName, userID, sessionID, message))
	if err != nil {
		return a.failure(ctx, logger, err)
	}
	defer resp.Body.Close()

	streamOpts := make([]adkstream.Option, 0, len(a.streamOpts)+len(opts)+1)
	streamOpts = append(streamOpts, adkstream.WithLogger(logger))
	streamOpts = append(streamOpts, a.streamOpts...)
	streamOpts = append(streamOpts, opts...)

	res, err := adkstream.NewAggregator(streamOpts...).Aggregate(ctx, resp.Body)
	switch {
	case err == nil:
		return res, nil
	case errors.Is(err, adkstream.ErrCanceled):
		return adkstream.Result{}, err
	default:
		return a.failure(ctx, logger, err)
	}
}

// failure maps err to an error Result, unless ctx was canceled.
func (a *Agent) failure(ctx context.Context, logger *slog.Logger, err error) (adkstream.Result, error) {
	if cause := context.Cause(ctx); cause != nil {
		return adkstream.Result{}, fmt.Errorf("%w: %w", adkstream.ErrCanceled, cause)
	}
	logger.Error("textualadk: exchange failed", "error", err)
	return adkstream.FailureResult(err), nil
}
