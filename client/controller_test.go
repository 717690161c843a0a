package client

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/bytedance/sonic"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/current-see/solar_api/dto"
	"github.com/current-see/solar_api/model"
	"github.com/current-see/solar_api/shared"
)

func writeEnvelope(w http.ResponseWriter, status int, message string, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	payload, _ := sonic.Marshal(map[string]interface{}{
		"code":    status,
		"message": message,
		"data":    data,
	})
	w.Write(payload)
}

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func TestTrackReportsServerState(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/content/article/a1/access", r.URL.Path)
		assert.Equal(t, "sess-1", r.Header.Get("X-Session-ID"))
		writeEnvelope(w, http.StatusOK, "OK", dto.AccessStatusResponse{
			Status:     shared.StatusLocked,
			AccessType: shared.AccessPreview,
			SolarCost:  50,
		})
	}))
	defer server.Close()

	api := NewAPIClient(server.URL, WithSessionID("sess-1"))
	ctrl := NewController(api)

	resp, err := ctrl.Track(context.Background(), "article", "a1")
	require.NoError(t, err)
	assert.Equal(t, shared.StatusLocked, resp.Status)

	status, accessType, remaining, ok := ctrl.Status("article", "a1")
	require.True(t, ok)
	assert.Equal(t, shared.StatusLocked, status)
	assert.Equal(t, shared.AccessPreview, accessType)
	assert.Equal(t, 0, remaining)
}

func TestCountdownRecomputesFromEndTime(t *testing.T) {
	clock := &fakeClock{now: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
	end := clock.Now().Add(5 * time.Minute)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeEnvelope(w, http.StatusOK, "OK", dto.AccessStatusResponse{
			Status:       shared.StatusTimerActive,
			AccessType:   shared.AccessTimerActive,
			TimerEndTime: &end,
			Progression:  &model.Progression{ID: "p1", Status: shared.StatusTimerActive, TimerEndTime: &end},
		})
	}))
	defer server.Close()

	ctrl := NewController(NewAPIClient(server.URL), WithClock(clock.Now))
	_, err := ctrl.Track(context.Background(), "article", "a1")
	require.NoError(t, err)

	_, _, remaining, _ := ctrl.Status("article", "a1")
	assert.Equal(t, 300, remaining)

	// A long pause does not drift the countdown; it is recomputed, not
	// decremented.
	clock.Advance(4*time.Minute + 30*time.Second)
	_, _, remaining, _ = ctrl.Status("article", "a1")
	assert.Equal(t, 30, remaining)

	clock.Advance(time.Hour)
	_, _, remaining, _ = ctrl.Status("article", "a1")
	assert.Equal(t, 0, remaining)
}

func TestTickCompletesElapsedTimerOnce(t *testing.T) {
	clock := &fakeClock{now: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
	end := clock.Now().Add(time.Minute)

	var completeCalls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/v1/content/article/a1/access":
			writeEnvelope(w, http.StatusOK, "OK", dto.AccessStatusResponse{
				Status:       shared.StatusTimerActive,
				AccessType:   shared.AccessTimerActive,
				TimerEndTime: &end,
				Progression:  &model.Progression{ID: "p1", Status: shared.StatusTimerActive, TimerEndTime: &end},
			})
		case "/api/v1/progression/p1/complete":
			atomic.AddInt32(&completeCalls, 1)
			writeEnvelope(w, http.StatusOK, "OK", model.Progression{ID: "p1", Status: shared.StatusTimerComplete})
		default:
			t.Errorf("unexpected path %s", r.URL.Path)
		}
	}))
	defer server.Close()

	ctrl := NewController(NewAPIClient(server.URL), WithClock(clock.Now))
	_, err := ctrl.Track(context.Background(), "article", "a1")
	require.NoError(t, err)

	// Before the end time nothing is completed.
	ctrl.tick(context.Background())
	assert.Equal(t, int32(0), atomic.LoadInt32(&completeCalls))

	clock.Advance(2 * time.Minute)
	ctrl.tick(context.Background())
	ctrl.tick(context.Background())
	assert.Equal(t, int32(1), atomic.LoadInt32(&completeCalls))

	status, accessType, _, ok := ctrl.Status("article", "a1")
	require.True(t, ok)
	assert.Equal(t, shared.StatusTimerComplete, status)
	assert.Equal(t, shared.AccessTimerComplete, accessType)
}

func TestTickRetriesAfterTooEarly(t *testing.T) {
	clock := &fakeClock{now: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
	end := clock.Now().Add(time.Minute)

	var completeCalls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/v1/content/article/a1/access":
			writeEnvelope(w, http.StatusOK, "OK", dto.AccessStatusResponse{
				Status:       shared.StatusTimerActive,
				AccessType:   shared.AccessTimerActive,
				TimerEndTime: &end,
				Progression:  &model.Progression{ID: "p1", Status: shared.StatusTimerActive, TimerEndTime: &end},
			})
		case "/api/v1/progression/p1/complete":
			// The server clock sees time remaining on the first attempt.
			if atomic.AddInt32(&completeCalls, 1) == 1 {
				writeEnvelope(w, http.StatusTooEarly, "timer has not elapsed", nil)
				return
			}
			writeEnvelope(w, http.StatusOK, "OK", model.Progression{ID: "p1", Status: shared.StatusTimerComplete})
		}
	}))
	defer server.Close()

	ctrl := NewController(NewAPIClient(server.URL), WithClock(clock.Now))
	events := ctrl.Subscribe()

	_, err := ctrl.Track(context.Background(), "article", "a1")
	require.NoError(t, err)

	clock.Advance(2 * time.Minute)
	ctrl.tick(context.Background())

	status, _, _, _ := ctrl.Status("article", "a1")
	assert.Equal(t, shared.StatusTimerActive, status)

	ctrl.tick(context.Background())
	assert.Equal(t, int32(2), atomic.LoadInt32(&completeCalls))

	status, _, _, _ = ctrl.Status("article", "a1")
	assert.Equal(t, shared.StatusTimerComplete, status)

	// 425 is part of the normal retry path, never surfaced as an error.
	for {
		select {
		case ev := <-events:
			assert.NoError(t, ev.Err)
			continue
		default:
		}
		break
	}
}

func TestTrackRetriesWhileStoreUnavailable(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) <= 2 {
			writeEnvelope(w, http.StatusServiceUnavailable, "store unavailable", nil)
			return
		}
		writeEnvelope(w, http.StatusOK, "OK", dto.AccessStatusResponse{
			Status:     shared.StatusLocked,
			AccessType: shared.AccessPreview,
		})
	}))
	defer server.Close()

	ctrl := NewController(NewAPIClient(server.URL))
	ctrl.retryBackoff = []time.Duration{time.Millisecond, time.Millisecond, time.Millisecond}

	resp, err := ctrl.Track(context.Background(), "article", "a1")
	require.NoError(t, err)
	assert.Equal(t, shared.StatusLocked, resp.Status)
	assert.Equal(t, int32(3), atomic.LoadInt32(&calls))
}

func TestTrackDoesNotRetryClientErrors(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		writeEnvelope(w, http.StatusBadRequest, "unknown content", nil)
	}))
	defer server.Close()

	ctrl := NewController(NewAPIClient(server.URL))
	ctrl.retryBackoff = []time.Duration{time.Millisecond}

	_, err := ctrl.Track(context.Background(), "article", "missing")
	require.Error(t, err)

	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusBadRequest, apiErr.StatusCode)
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestStartTimerCollapsesConcurrentCalls(t *testing.T) {
	end := time.Now().Add(5 * time.Minute)

	var starts int32
	release := make(chan struct{})
	arrived := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&starts, 1)
		close(arrived)
		<-release
		writeEnvelope(w, http.StatusCreated, "Created", dto.StartTimerResponse{
			Progression: &model.Progression{ID: "p1", Status: shared.StatusTimerActive, TimerEndTime: &end},
		})
	}))
	defer server.Close()

	ctrl := NewController(NewAPIClient(server.URL))

	done := make(chan error, 1)
	go func() {
		done <- ctrl.StartTimer(context.Background(), "article", "a1")
	}()
	<-arrived

	// A second call while the first is in flight is a no-op.
	require.NoError(t, ctrl.StartTimer(context.Background(), "article", "a1"))
	close(release)
	require.NoError(t, <-done)

	assert.Equal(t, int32(1), atomic.LoadInt32(&starts))

	status, _, remaining, ok := ctrl.Status("article", "a1")
	require.True(t, ok)
	assert.Equal(t, shared.StatusTimerActive, status)
	assert.Greater(t, remaining, 0)
}

func TestStartTimerCachesServerReportedState(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Already unlocked on the server; no timer starts.
		writeEnvelope(w, http.StatusOK, "OK", dto.StartTimerResponse{
			Progression:   &model.Progression{ID: "p1", Status: shared.StatusUnlocked},
			AlreadyActive: true,
		})
	}))
	defer server.Close()

	ctrl := NewController(NewAPIClient(server.URL, WithToken("jwt")))
	require.NoError(t, ctrl.StartTimer(context.Background(), "article", "a1"))

	status, accessType, remaining, ok := ctrl.Status("article", "a1")
	require.True(t, ok)
	assert.Equal(t, shared.StatusUnlocked, status)
	assert.Equal(t, shared.AccessFull, accessType)
	assert.Equal(t, 0, remaining)
}

func TestUnlockRejectsOverlappingCalls(t *testing.T) {
	release := make(chan struct{})
	arrived := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		close(arrived)
		<-release
		writeEnvelope(w, http.StatusOK, "OK", dto.UnlockResponse{
			Entitlement: &model.Entitlement{ID: "e1", ContentType: "article", ContentID: "a1"},
			NewBalance:  6,
		})
	}))
	defer server.Close()

	ctrl := NewController(NewAPIClient(server.URL, WithToken("jwt")))

	type result struct {
		resp *dto.UnlockResponse
		err  error
	}
	done := make(chan result, 1)
	go func() {
		resp, err := ctrl.Unlock(context.Background(), "article", "a1")
		done <- result{resp, err}
	}()
	<-arrived

	_, err := ctrl.Unlock(context.Background(), "article", "a1")
	require.Error(t, err)
	close(release)

	first := <-done
	require.NoError(t, first.err)
	assert.Equal(t, 6.0, first.resp.NewBalance)

	status, accessType, _, _ := ctrl.Status("article", "a1")
	assert.Equal(t, shared.StatusUnlocked, status)
	assert.Equal(t, shared.AccessFull, accessType)
}

func TestResumeRefetchesTrackedContent(t *testing.T) {
	var state atomic.Value
	state.Store(shared.StatusLocked)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeEnvelope(w, http.StatusOK, "OK", dto.AccessStatusResponse{
			Status:     state.Load().(string),
			AccessType: shared.AccessPreview,
		})
	}))
	defer server.Close()

	ctrl := NewController(NewAPIClient(server.URL))
	_, err := ctrl.Track(context.Background(), "article", "a1")
	require.NoError(t, err)

	// Server-side state changed while the client was away.
	state.Store(shared.StatusTimerComplete)
	require.NoError(t, ctrl.Resume(context.Background()))

	status, _, _, _ := ctrl.Status("article", "a1")
	assert.Equal(t, shared.StatusTimerComplete, status)
}
