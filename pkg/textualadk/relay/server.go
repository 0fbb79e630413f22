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

// Package relay exposes a textualadk.Agent over HTTP: plain JSON requests,
// a server-sent event stream and a websocket for live chat surfaces.
package relay

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/benoit-pereira-da-silva/textualadk/pkg/textualadk/adkstream"
	"github.com/benoit-pereira-da-silva/textualadk/pkg/textualadk/textualadk"
)

// DefaultRequestTimeout bounds one exchange.
const DefaultRequestTimeout = 2 * time.Minute

// Option configures a Server.
type Option func(*Server)

// WithLogger sets the server logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Server) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithPacer sets the pacing of the specialist follow-up on live endpoints.
func WithPacer(p textualadk.Pacer) Option {
	return func(s *Server) { s.pacer = p }
}

// WithRequestTimeout bounds each exchange. Zero disables the bound.
func WithRequestTimeout(d time.Duration) Option {
	return func(s *Server) { s.timeout = d }
}

// WithCheckOrigin sets the websocket origin check. The default accepts
// same-host origins only.
func WithCheckOrigin(fn func(r *http.Request) bool) Option {
	return func(s *Server) { s.upgrader.CheckOrigin = fn }
}

// Server relays chat requests to one Agent.
type Server struct {
	agent    *textualadk.Agent
	router   *gin.Engine
	logger   *slog.Logger
	pacer    textualadk.Pacer
	timeout  time.Duration
	upgrader websocket.Upgrader
}

// NewServer builds the relay routes around agent.
func NewServer(agent *textualadk.Agent, opts ...Option) *Server {
	s := &Server{
		agent:   agent,
		logger:  slog.Default(),
		pacer:   textualadk.NewPacer(),
		timeout: DefaultRequestTimeout,
	}
	for _, opt := range opts {
		opt(s)
	}

	r := gin.New()
	r.Use(gin.Recovery(), requestLogger(s.logger))
	s.router = r
	s.registerRoutes()
	return s
}

// Engine returns the gin engine.
func (s *Server) Engine() *gin.Engine { return s.router }

// Handler returns the relay as an http.Handler.
func (s *Server) Handler() http.Handler { return s.router }

func (s *Server) registerRoutes() {
	s.router.GET("/healthz", s.health)

	v1 := s.router.Group("/v1")
	v1.POST("/chat", s.chat)
	v1.POST("/chat/stream", s.chatStream)
	v1.GET("/ws", s.ws)
	v1.GET("/history", s.history)
	v1.POST("/session/reset", s.resetSession)
}

func requestLogger(logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		logger.Debug("relay: request",
			"method", c.Request.Method,
			"path", c.FullPath(),
			"status", c.Writer.Status(),
			"elapsed", time.Since(start))
	}
}

func (s *Server) withTimeout(parent context.Context) (context.Context, context.CancelFunc) {
	if s.timeout <= 0 {
		return context.WithCancel(parent)
	}
	return context.WithTimeout(parent, s.timeout)
}

type chatRequest struct {
	Message string `json:"message"`
}

// chatResponse is the body of POST /v1/chat.
type chatResponse struct {
	SessionID string               `json:"session_id"`
	Result    adkstream.Result     `json:"result"`
	Messages  []textualadk.Message `json:"messages"`
}

func (s *Server) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok", "session_id": s.agent.SessionID()})
}

func (s *Server) chat(c *gin.Context) {
	var req chatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid_body", err.Error())
		return
	}
	if strings.TrimSpace(req.Message) == "" {
		badRequest(c, "empty_message", textualadk.ErrEmptyMessage.Error())
		return
	}

	ctx, cancel := s.withTimeout(c.Request.Context())
	defer cancel()

	sessionID := s.agent.SessionID()
	res, err := s.agent.SendMessage(ctx, req.Message)
	if err != nil {
		s.logger.Info("relay: chat abandoned", "session_id", sessionID, "error", err)
		unavailable(c, "canceled", err.Error())
		return
	}

	messages := []textualadk.Message{textualadk.PrimaryMessage(res)}
	if follow, ok := textualadk.SpecialistMessage(res); ok {
		messages = append(messages, follow)
	}
	success(c, chatResponse{SessionID: sessionID, Result: res, Messages: messages})
}

// chatStream answers with server-sent events: delta and routing frames while
// the answer streams, then the result, the paced messages and a done event.
func (s *Server) chatStream(c *gin.Context) {
	var req chatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid_body", err.Error())
		return
	}
	if strings.TrimSpace(req.Message) == "" {
		badRequest(c, "empty_message", textualadk.ErrEmptyMessage.Error())
		return
	}

	ctx, cancel := s.withTimeout(c.Request.Context())
	defer cancel()

	c.Header("Cache-Control", "no-cache")
	c.Header("X-Accel-Buffering", "no")
	c.Status(http.StatusOK)

	push := func(f Frame) {
		c.SSEvent(string(f.Type), f)
		c.Writer.Flush()
	}

	tracker := &frameTracker{}
	observer := func(ev adkstream.Event, text string) {
		if f, ok := tracker.frame(ev, text); ok {
			push(f)
		}
	}

	res, err := s.agent.SendMessage(ctx, req.Message, adkstream.WithObserver(observer))
	if err != nil {
		if !errors.Is(err, context.Canceled) {
			push(Frame{Type: FrameError, Error: err.Error()})
		}
		return
	}
	push(resultFrame(res))
	if err := s.pacer.Deliver(ctx, res, func(m textualadk.Message) { push(messageFrame(m)) }); err != nil {
		return
	}
	c.SSEvent("done", adkstream.DoneSentinel)
	c.Writer.Flush()
}

func (s *Server) history(c *gin.Context) {
	sessionID := c.Query("session_id")
	if sessionID == "" {
		sessionID = s.agent.SessionID()
	}
	items := s.agent.HistoryOf(sessionID)
	if items == nil {
		items = []textualadk.Exchange{}
	}
	success(c, gin.H{"session_id": sessionID, "exchanges": items})
}

func (s *Server) resetSession(c *gin.Context) {
	previous := s.agent.SessionID()
	s.agent.ResetSession()
	success(c, gin.H{"previous_session_id": previous, "session_id": s.agent.SessionID()})
}
