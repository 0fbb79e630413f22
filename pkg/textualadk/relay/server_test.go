package relay

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/benoit-pereira-da-silva/textualadk/pkg/textualadk/adkstream"
	"github.com/benoit-pereira-da-silva/textualadk/pkg/textualadk/textualadk"
)

func TestMain(m *testing.M) {
	gin.SetMode(gin.TestMode)
	os.Exit(m.Run())
}

const (
	evPartial  = `{"author":"coordinator_agent","partial":true,"content":{"parts":[{"text":"Checking "}]}}`
	evCall     = `{"author":"coordinator_agent","content":{"parts":[{"functionCall":{"name":"goal_planning_agent","args":{"request":"retire"}}}]}}`
	evResponse = `{"author":"coordinator_agent","content":{"parts":[{"functionResponse":{"name":"goal_planning_agent","response":{"result":"Save 40% of income."}}}]}}`
	evFinal    = `{"author":"goal_planning_agent","content":{"parts":[{"text":"Save 40% of income."}]}}`
)

func fakeADK(t *testing.T, runStatus *atomic.Int32, events ...string) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("POST /apps/{app}/users/{user}/sessions/{session}", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintf(w, `{"id":%q}`, r.PathValue("session"))
	})
	mux.HandleFunc("POST /run_sse", func(w http.ResponseWriter, r *http.Request) {
		if runStatus != nil && runStatus.Load() != http.StatusOK {
			http.Error(w, "agent crashed", int(runStatus.Load()))
			return
		}
		w.Header().Set("Content-Type", "text/event-stream")
		for _, ev := range events {
			fmt.Fprintf(w, "data: %s\n\n", ev)
		}
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func newRelay(t *testing.T, backend string) (*textualadk.Agent, *httptest.Server) {
	t.Helper()
	logger := slog.New(slog.DiscardHandler)
	agent, err := textualadk.NewAgent(
		textualadk.NewConfig(backend, "coordinator").WithIdentity("", ""),
		textualadk.WithAgentLogger(logger),
	)
	require.NoError(t, err)
	t.Cleanup(agent.Close)

	s := NewServer(agent, WithLogger(logger), WithPacer(textualadk.Pacer{}), WithRequestTimeout(5*time.Second))
	srv := httptest.NewServer(s.Handler())
	t.Cleanup(srv.Close)
	return agent, srv
}

type envelope[T any] struct {
	Success bool `json:"success"`
	Data    T    `json:"data"`
	Error   struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

func postJSON[T any](t *testing.T, url, body string) (int, envelope[T]) {
	t.Helper()
	resp, err := http.Post(url, "application/json", strings.NewReader(body))
	require.NoError(t, err)
	defer resp.Body.Close()
	var env envelope[T]
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&env))
	return resp.StatusCode, env
}

func getJSON[T any](t *testing.T, url string) envelope[T] {
	t.Helper()
	resp, err := http.Get(url)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var env envelope[T]
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&env))
	return env
}

type historyData struct {
	SessionID string                `json:"session_id"`
	Exchanges []textualadk.Exchange `json:"exchanges"`
}

func TestHealth(t *testing.T) {
	agent, srv := newRelay(t, fakeADK(t, nil).URL)

	resp, err := http.Get(srv.URL + "/healthz")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var body map[string]string
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, "ok", body["status"])
	assert.Equal(t, agent.SessionID(), body["session_id"])
}

func TestChatRoutedExchange(t *testing.T) {
	_, srv := newRelay(t, fakeADK(t, nil, evPartial, evCall, evResponse, evFinal).URL)

	code, env := postJSON[chatResponse](t, srv.URL+"/v1/chat", `{"message":"How do I retire at 50?"}`)
	require.Equal(t, http.StatusOK, code)
	require.True(t, env.Success)

	res := env.Data.Result
	assert.Equal(t, adkstream.StatusSuccess, res.Status)
	assert.Equal(t, "Save 40% of income.", res.Response)
	require.NotNil(t, res.RoutingInfo)
	assert.Equal(t, "goal_planning_agent", res.RoutingInfo.CalledAgent)

	require.Len(t, env.Data.Messages, 2)
	primary, specialist := env.Data.Messages[0], env.Data.Messages[1]
	assert.Equal(t, textualadk.KindPrimary, primary.Kind)
	assert.Equal(t, textualadk.CoordinatorDisplayName, primary.AgentName)
	assert.Equal(t, "🔄 Routing your request to GOAL PLANNING specialist...", primary.Content)
	assert.Equal(t, textualadk.KindSpecialist, specialist.Kind)
	assert.Equal(t, "goal_planning_agent", specialist.AgentID)
	assert.Equal(t, "Save 40% of income.", specialist.Content)
}

func TestChatBackendFailureIsAResult(t *testing.T) {
	var status atomic.Int32
	status.Store(http.StatusBadGateway)
	_, srv := newRelay(t, fakeADK(t, &status).URL)

	code, env := postJSON[chatResponse](t, srv.URL+"/v1/chat", `{"message":"hello"}`)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, adkstream.StatusError, env.Data.Result.Status)
	assert.Equal(t, adkstream.ApologyResponse, env.Data.Result.Response)
	assert.Contains(t, env.Data.Result.Error, "agent crashed")
	require.Len(t, env.Data.Messages, 1)
	assert.True(t, env.Data.Messages[0].Error)
}

func TestChatRejectsBadRequests(t *testing.T) {
	_, srv := newRelay(t, fakeADK(t, nil).URL)

	code, env := postJSON[any](t, srv.URL+"/v1/chat", `{"message":"   "}`)
	assert.Equal(t, http.StatusBadRequest, code)
	assert.False(t, env.Success)
	assert.Equal(t, "empty_message", env.Error.Code)

	code, env = postJSON[any](t, srv.URL+"/v1/chat", `{not json`)
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, "invalid_body", env.Error.Code)
}

func TestHistoryAndReset(t *testing.T) {
	agent, srv := newRelay(t, fakeADK(t, nil, evFinal).URL)

	_, _ = postJSON[chatResponse](t, srv.URL+"/v1/chat", `{"message":"first"}`)
	first := agent.SessionID()

	h := getJSON[historyData](t, srv.URL+"/v1/history")
	assert.Equal(t, first, h.Data.SessionID)
	require.Len(t, h.Data.Exchanges, 1)
	assert.Equal(t, "first", h.Data.Exchanges[0].Message)

	code, reset := postJSON[map[string]string](t, srv.URL+"/v1/session/reset", ``)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, first, reset.Data["previous_session_id"])
	assert.Equal(t, agent.SessionID(), reset.Data["session_id"])
	assert.NotEqual(t, first, reset.Data["session_id"])

	h = getJSON[historyData](t, srv.URL+"/v1/history")
	assert.Empty(t, h.Data.Exchanges)
	assert.NotNil(t, h.Data.Exchanges)

	h = getJSON[historyData](t, srv.URL+"/v1/history?session_id="+first)
	assert.Len(t, h.Data.Exchanges, 1)
}

func TestChatStreamServerSentEvents(t *testing.T) {
	_, srv := newRelay(t, fakeADK(t, nil, evPartial, evCall, evResponse, evFinal).URL)

	resp, err := http.Post(srv.URL+"/v1/chat/stream", "application/json", bytes.NewBufferString(`{"message":"retire?"}`))
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, resp.Header.Get("Content-Type"), "text/event-stream")

	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	body := string(raw)

	order := []string{"event:delta\n", "event:routing\n", "event:result\n", "event:message\n", "event:done\n"}
	pos := 0
	for _, marker := range order {
		i := strings.Index(body[pos:], marker)
		require.GreaterOrEqual(t, i, 0, "missing %q after offset %d in %s", marker, pos, body)
		pos += i + len(marker)
	}
	assert.Equal(t, 2, strings.Count(body, "event:message\n"))
	assert.Contains(t, body, "data:[DONE]")
}

func wsURL(srv *httptest.Server) string {
	return "ws" + strings.TrimPrefix(srv.URL, "http") + "/v1/ws"
}

func readFrame(t *testing.T, ws *websocket.Conn) Frame {
	t.Helper()
	require.NoError(t, ws.SetReadDeadline(time.Now().Add(3*time.Second)))
	var f Frame
	require.NoError(t, ws.ReadJSON(&f))
	return f
}

func TestWebsocketChat(t *testing.T) {
	agent, srv := newRelay(t, fakeADK(t, nil, evPartial, evCall, evResponse, evFinal).URL)

	ws, _, err := websocket.DefaultDialer.Dial(wsURL(srv), nil)
	require.NoError(t, err)
	defer ws.Close()

	require.NoError(t, ws.WriteJSON(inbound{Message: "How do I retire at 50?"}))

	var frames []Frame
	for len(frames) < 6 {
		frames = append(frames, readFrame(t, ws))
	}

	types := make([]FrameType, len(frames))
	for i, f := range frames {
		types[i] = f.Type
	}
	assert.Equal(t, []FrameType{FrameDelta, FrameRouting, FrameDelta, FrameResult, FrameMessage, FrameMessage}, types)
	assert.Equal(t, "Checking ", frames[0].Text)
	assert.Equal(t, "goal_planning_agent", frames[1].Agent)
	assert.Equal(t, "Save 40% of income.", frames[2].Text)
	require.NotNil(t, frames[3].Result)
	assert.True(t, frames[3].Result.OK())
	require.NotNil(t, frames[5].Message)
	assert.Equal(t, textualadk.KindSpecialist, frames[5].Message.Kind)

	previous := agent.SessionID()
	require.NoError(t, ws.WriteJSON(inbound{Type: inboundReset}))
	f := readFrame(t, ws)
	assert.Equal(t, FrameSession, f.Type)
	assert.NotEqual(t, previous, f.SessionID)
	assert.Equal(t, agent.SessionID(), f.SessionID)
}

func TestWebsocketRejectsBadFrames(t *testing.T) {
	_, srv := newRelay(t, fakeADK(t, nil).URL)

	ws, _, err := websocket.DefaultDialer.Dial(wsURL(srv), nil)
	require.NoError(t, err)
	defer ws.Close()

	require.NoError(t, ws.WriteMessage(websocket.TextMessage, []byte("not json")))
	f := readFrame(t, ws)
	assert.Equal(t, FrameError, f.Type)
	assert.Contains(t, f.Error, "invalid request")

	require.NoError(t, ws.WriteJSON(inbound{Type: "bogus"}))
	f = readFrame(t, ws)
	assert.Equal(t, FrameError, f.Type)
	assert.Contains(t, f.Error, "bogus")

	require.NoError(t, ws.WriteJSON(inbound{Message: "  "}))
	f = readFrame(t, ws)
	assert.Equal(t, FrameError, f.Type)
	assert.Equal(t, textualadk.ErrEmptyMessage.Error(), f.Error)
}

func TestFrameTrackerAnnouncesFirstRoutingOnly(t *testing.T) {
	var tr frameTracker
	f, ok := tr.frame(adkstream.FunctionCall("tax_agent", nil), "")
	require.True(t, ok)
	assert.Equal(t, FrameRouting, f.Type)
	assert.Equal(t, "🔄 Routing your request to TAX specialist...", f.Text)

	_, ok = tr.frame(adkstream.FunctionCall("risk_agent", nil), "")
	assert.False(t, ok)

	_, ok = tr.frame(adkstream.AuthorTag("tax_agent"), "")
	assert.False(t, ok)

	f, ok = tr.frame(adkstream.TextDelta("a", true), "a")
	require.True(t, ok)
	assert.Equal(t, "a", f.Text)
	_, ok = tr.frame(adkstream.TextDelta("a", false), "a")
	assert.False(t, ok)
}
