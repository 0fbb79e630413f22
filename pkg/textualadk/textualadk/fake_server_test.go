package textualadk

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"
)

// fakeADK is a minimal ADK api server.
type fakeADK struct {
	t *testing.T

	sessionCalls  atomic.Int32
	sessionStatus atomic.Int32
	runStatus     atomic.Int32

	mu       sync.Mutex
	events   []string
	runs     []RunRequest
	headers  []http.Header
	sessions []string
	block    chan struct{}
	// sessionBlock holds session creation until it is closed.
	sessionBlock chan struct{}
}

func newFakeADK(t *testing.T, events ...string) (*fakeADK, *httptest.Server) {
	f := &fakeADK{t: t, events: events}
	f.sessionStatus.Store(http.StatusOK)
	f.runStatus.Store(http.StatusOK)

	mux := http.NewServeMux()
	mux.HandleFunc("POST /apps/{app}/users/{user}/sessions/{session}", f.handleSession)
	mux.HandleFunc("POST /run_sse", f.handleRun)
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return f, srv
}

func (f *fakeADK) handleSession(w http.ResponseWriter, r *http.Request) {
	f.sessionCalls.Add(1)
	body, _ := io.ReadAll(r.Body)
	if strings.TrimSpace(string(body)) != `{"state":null}` {
		http.Error(w, "unexpected body "+string(body), http.StatusBadRequest)
		return
	}
	f.mu.Lock()
	f.sessions = append(f.sessions, r.PathValue("app")+"/"+r.PathValue("user")+"/"+r.PathValue("session"))
	sessionBlock := f.sessionBlock
	f.mu.Unlock()
	if sessionBlock != nil {
		select {
		case <-sessionBlock:
		case <-r.Context().Done():
			return
		}
	}

	status := int(f.sessionStatus.Load())
	if status != http.StatusOK {
		http.Error(w, "session store unavailable", status)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	fmt.Fprintf(w, `{"id":%q,"appName":%q,"userId":%q,"state":{},"events":[]}`,
		r.PathValue("session"), r.PathValue("app"), r.PathValue("user"))
}

func (f *fakeADK) handleRun(w http.ResponseWriter, r *http.Request) {
	var req RunRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	f.mu.Lock()
	f.runs = append(f.runs, req)
	f.headers = append(f.headers, r.Header.Clone())
	events := append([]string(nil), f.events...)
	block := f.block
	f.mu.Unlock()

	if status := int(f.runStatus.Load()); status != http.StatusOK {
		http.Error(w, `{"detail":"Session not found"}`, status)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	flusher, _ := w.(http.Flusher)
	for _, ev := range events {
		fmt.Fprintf(w, "data: %s\n\n", ev)
		if flusher != nil {
			flusher.Flush()
		}
	}
	if block != nil {
		select {
		case <-block:
		case <-r.Context().Done():
		}
	}
}

func (f *fakeADK) lastRun() (RunRequest, http.Header) {
	f.mu.Lock()
	defer f.mu.Unlock()
	require.NotEmpty(f.t, f.runs)
	return f.runs[len(f.runs)-1], f.headers[len(f.headers)-1]
}

func (f *fakeADK) sessionPaths() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.sessions...)
}

func quietLogger() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}

func newTestAgent(t *testing.T, baseURL string, opts ...AgentOption) *Agent {
	t.Helper()
	cfg := NewConfig(baseURL, "coordinator").WithIdentity("", "")
	a, err := NewAgent(cfg, append([]AgentOption{WithAgentLogger(quietLogger())}, opts...)...)
	require.NoError(t, err)
	t.Cleanup(a.Close)
	return a
}

const (
	evPartial  = `{"author":"coordinator_agent","partial":true,"content":{"parts":[{"text":"Checking your goals "}]}}`
	evCall     = `{"author":"coordinator_agent","content":{"parts":[{"functionCall":{"name":"goal_planning_agent","args":{"request":"retire at 50"}}}]}}`
	evResponse = `{"author":"coordinator_agent","content":{"parts":[{"functionResponse":{"name":"goal_planning_agent","response":{"result":"Save 40% of income."}}}]}}`
	evFinal    = `{"author":"goal_planning_agent","content":{"parts":[{"text":"Save 40% of income."}]}}`
)
