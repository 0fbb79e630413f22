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
	"fmt"
	"log/slog"
	"sync"

	"github.com/google/uuid"
)

// Session holds the ADK (user, session) identity of a conversation and
// creates it on the server at most once.
type Session struct {
	client Client
	logger *slog.Logger

	mu         sync.Mutex
	userID     string
	sessionID  string
	created    bool
	generation uint64
	inflight   chan struct{}
}

// NewSession returns an un-created Session. Ids pinned in the client config
// are used as-is, missing ones are minted.
func NewSession(client Client, logger *slog.Logger) *Session {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Session{client: client, logger: logger}
	s.userID = client.config.userID
	s.sessionID = client.config.sessionID
	if s.userID == "" {
		s.userID = newUserID()
	}
	if s.sessionID == "" {
		s.sessionID = newSessionID()
	}
	return s
}

func newUserID() string    { return "user_" + uuid.NewString() }
func newSessionID() string { return "session_" + uuid.NewString() }

// Identity returns the current user and session ids.
func (s *Session) Identity() (userID, sessionID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.userID, s.sessionID
}

// Created reports whether the server acknowledged the current session.
func (s *Session) Created() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.created
}

// Ensure creates the session on the server unless that already succeeded,
// and returns the ids it ensured. Those are the ids to run against: a Reset
// racing with Ensure does not change them.
//
// Concurrent callers wait for a single attempt. A failed attempt leaves the
// session un-created so the next call tries again; the ids are still
// returned for logging.
func (s *Session) Ensure(ctx context.Context) (userID, sessionID string, err error) {
	for {
		s.mu.Lock()
		userID, sessionID = s.userID, s.sessionID
		if s.created {
			s.mu.Unlock()
			return userID, sessionID, nil
		}
		if s.inflight == nil {
			return s.create(ctx)
		}
		wait := s.inflight
		s.mu.Unlock()

		select {
		case <-ctx.Done():
			return userID, sessionID, fmt.Errorf("%w: %w", ErrSession, context.Cause(ctx))
		case <-wait:
		}
	}
}

// create runs with s.mu held and releases it.
func (s *Session) create(ctx context.Context) (string, string, error) {
	done := make(chan struct{})
	s.inflight = done
	gen, userID, sessionID := s.generation, s.userID, s.sessionID
	s.mu.Unlock()

	s.logger.Debug("textualadk: creating session", "user_id", userID, "session_id", sessionID)
	err := s.client.CreateSession(ctx, userID, sessionID)

	s.mu.Lock()
	if err == nil && gen == s.generation {
		s.created = true
	}
	s.inflight = nil
	close(done)
	s.mu.Unlock()

	if err != nil {
		s.logger.Error("textualadk: session creation failed", "session_id", sessionID, "error", err)
		return userID, sessionID, fmt.Errorf("%w: create %s: %w", ErrSession, sessionID, err)
	}
	s.logger.Info("textualadk: session created", "session_id", sessionID)
	return userID, sessionID, nil
}

// Reset starts a new conversation with freshly minted ids. The new session
// is created lazily by the next Ensure.
func (s *Session) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.userID = newUserID()
	s.sessionID = newSessionID()
	s.created = false
	s.generation++
}
