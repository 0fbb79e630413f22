package textualadk

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRunSSERequiresIdentity(t *testing.T) {
	c := NewClient(NewConfig("http://localhost:1", "coordinator"), nil)
	_, err := c.RunSSE(context.Background(), NewRunRequest("coordinator", "", "s", "hi"))
	assert.Error(t, err)
}

func TestErrorBodyIsCapped(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		_, _ = w.Write([]byte(strings.Repeat("x", 3*maxErrorBody)))
	}))
	defer srv.Close()

	c := NewClient(NewConfig(srv.URL, "coordinator"), srv.Client())
	_, err := c.RunSSE(context.Background(), NewRunRequest("coordinator", "u", "s", "hi"))
	require.ErrorIs(t, err, ErrHTTPStatus)
	assert.Contains(t, err.Error(), "http 502")
	assert.Less(t, len(err.Error()), maxErrorBody+128)
}

func TestEmptyErrorBodyFallsBackToStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))
	defer srv.Close()

	err := NewClient(NewConfig(srv.URL, "coordinator"), nil).CreateSession(context.Background(), "u", "s")
	require.ErrorIs(t, err, ErrHTTPStatus)
	assert.Contains(t, err.Error(), "418 I'm a teapot")
}

func TestSessionEnsureHonorsContextWhileWaiting(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-release
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()
	defer close(release)

	s := NewSession(NewClient(NewConfig(srv.URL, "coordinator").WithIdentity("", ""), nil), quietLogger())
	go func() { _, _, _ = s.Ensure(context.Background()) }()

	// Wait for the first attempt to be in flight.
	require.Eventually(t, func() bool {
		s.mu.Lock()
		defer s.mu.Unlock()
		return s.inflight != nil
	}, time.Second, time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	userID, sessionID, err := s.Ensure(ctx)
	assert.ErrorIs(t, err, ErrSession)
	assert.ErrorIs(t, err, context.Canceled)
	wantUser, wantSession := s.Identity()
	assert.Equal(t, wantUser, userID)
	assert.Equal(t, wantSession, sessionID)
}
