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
	"context"
	"strings"
	"sync"
	"time"

	"github.com/bytedance/sonic"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/benoit-pereira-da-silva/textualadk/pkg/textualadk/adkstream"
	"github.com/benoit-pereira-da-silva/textualadk/pkg/textualadk/textualadk"
)

const (
	wsWriteWait = 10 * time.Second
	wsReadLimit = 64 * 1024
	wsInboxSize = 4
)

// wsConn serializes writes: gorilla/websocket allows one concurrent writer.
type wsConn struct {
	ws *websocket.Conn
	mu sync.Mutex
}

func (w *wsConn) send(f Frame) error {
	data, err := sonic.ConfigStd.Marshal(f)
	if err != nil {
		return err
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	_ = w.ws.SetWriteDeadline(time.Now().Add(wsWriteWait))
	return w.ws.WriteMessage(websocket.TextMessage, data)
}

// ws serves one websocket client. Requests are handled one at a time; a
// closed connection cancels the exchange in flight.
func (s *Server) ws(c *gin.Context) {
	ws, err := s.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		s.logger.Warn("relay: websocket upgrade failed", "error", err)
		return
	}
	defer ws.Close()
	ws.SetReadLimit(wsReadLimit)

	conn := &wsConn{ws: ws}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	inbox := make(chan inbound, wsInboxSize)
	go s.readLoop(conn, inbox, cancel)

	s.logger.Debug("relay: websocket connected", "remote", c.Request.RemoteAddr)
	for {
		select {
		case <-ctx.Done():
			return
		case in, ok := <-inbox:
			if !ok {
				return
			}
			s.handleInbound(ctx, conn, in)
		}
	}
}

func (s *Server) readLoop(conn *wsConn, inbox chan<- inbound, cancel context.CancelFunc) {
	defer cancel()
	defer close(inbox)
	for {
		_, data, err := conn.ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				s.logger.Warn("relay: websocket read failed", "error", err)
			}
			return
		}
		var in inbound
		if err := sonic.ConfigStd.Unmarshal(data, &in); err != nil {
			_ = conn.send(Frame{Type: FrameError, Error: "invalid request: " + err.Error()})
			continue
		}
		select {
		case inbox <- in:
		default:
			_ = conn.send(Frame{Type: FrameError, Error: "busy: too many pending requests"})
		}
	}
}

func (s *Server) handleInbound(ctx context.Context, conn *wsConn, in inbound) {
	switch in.Type {
	case inboundReset:
		s.agent.ResetSession()
		_ = conn.send(Frame{Type: FrameSession, SessionID: s.agent.SessionID()})
	case "", inboundChat:
		s.relayExchange(ctx, conn, in.Message)
	default:
		_ = conn.send(Frame{Type: FrameError, Error: "unknown request type " + in.Type})
	}
}

func (s *Server) relayExchange(ctx context.Context, conn *wsConn, message string) {
	if strings.TrimSpace(message) == "" {
		_ = conn.send(Frame{Type: FrameError, Error: textualadk.ErrEmptyMessage.Error()})
		return
	}

	exCtx, cancel := s.withTimeout(ctx)
	defer cancel()

	tracker := &frameTracker{}
	observer := func(ev adkstream.Event, text string) {
		if f, ok := tracker.frame(ev, text); ok {
			if err := conn.send(f); err != nil {
				cancel()
			}
		}
	}

	res, err := s.agent.SendMessage(exCtx, message, adkstream.WithObserver(observer))
	if err != nil {
		if ctx.Err() == nil {
			_ = conn.send(Frame{Type: FrameError, Error: err.Error()})
		}
		return
	}
	if err := conn.send(resultFrame(res)); err != nil {
		return
	}
	_ = s.pacer.Deliver(ctx, res, func(m textualadk.Message) { _ = conn.send(messageFrame(m)) })
}
