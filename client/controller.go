package client

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/current-see/solar_api/dto"
	"github.com/current-see/solar_api/shared"
)

// Event is pushed to subscribers whenever the controller's view of a piece of
// content changes.
type Event struct {
	ContentType   string
	ContentID     string
	Status        string
	AccessType    string
	TimeRemaining int // seconds
	Err           error
}

type contentState struct {
	status        string
	accessType    string
	timerEndTime  *time.Time
	progressionID string

	startInFlight    bool
	completeInFlight bool
	unlockInFlight   bool
}

// Controller tracks progression state for a set of gated content and drives
// the countdown locally between server responses. Remaining time is always
// recomputed from the server-issued end time and the local clock, never
// decremented, so a paused or slept client stays correct on the next tick.
type Controller struct {
	api *APIClient

	mu     sync.Mutex
	states map[string]*contentState
	subs   []chan Event

	now func() time.Time

	tickInterval time.Duration
	retryBackoff []time.Duration

	done chan struct{}
}

type ControllerOption func(*Controller)

func WithClock(now func() time.Time) ControllerOption {
	return func(c *Controller) { c.now = now }
}

func WithTickInterval(interval time.Duration) ControllerOption {
	return func(c *Controller) { c.tickInterval = interval }
}

func NewController(api *APIClient, opts ...ControllerOption) *Controller {
	c := &Controller{
		api:          api,
		states:       make(map[string]*contentState),
		now:          time.Now,
		tickInterval: time.Second,
		retryBackoff: []time.Duration{time.Second, 2 * time.Second, 5 * time.Second},
		done:         make(chan struct{}),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Subscribe returns a channel of state change events. Slow subscribers drop
// events rather than block the controller.
func (c *Controller) Subscribe() <-chan Event {
	ch := make(chan Event, 16)
	c.mu.Lock()
	c.subs = append(c.subs, ch)
	c.mu.Unlock()
	return ch
}

func (c *Controller) notify(ev Event) {
	c.mu.Lock()
	subs := make([]chan Event, len(c.subs))
	copy(subs, c.subs)
	c.mu.Unlock()

	for _, ch := range subs {
		select {
		case ch <- ev:
		default:
		}
	}
}

func key(contentType, contentID string) string {
	return contentType + ":" + contentID
}

func accessTypeFor(status string) string {
	switch status {
	case shared.StatusTimerActive:
		return shared.AccessTimerActive
	case shared.StatusTimerComplete:
		return shared.AccessTimerComplete
	case shared.StatusUnlocked:
		return shared.AccessFull
	default:
		return shared.AccessPreview
	}
}

// Track fetches current access state for a piece of content and begins
// managing it. Safe to call again for the same content; the fetched state
// replaces the cached one.
func (c *Controller) Track(ctx context.Context, contentType, contentID string) (*dto.AccessStatusResponse, error) {
	status, err := c.checkAccessWithRetry(ctx, contentType, contentID)
	if err != nil {
		return nil, err
	}

	c.applyAccessStatus(contentType, contentID, status)
	return status, nil
}

// Resume re-fetches every tracked content. Called after the app returns to
// the foreground so the cache never trusts state older than the pause.
func (c *Controller) Resume(ctx context.Context) error {
	c.mu.Lock()
	keys := make([][2]string, 0, len(c.states))
	for k := range c.states {
		for i := 0; i < len(k); i++ {
			if k[i] == ':' {
				keys = append(keys, [2]string{k[:i], k[i+1:]})
				break
			}
		}
	}
	c.mu.Unlock()

	var firstErr error
	for _, parts := range keys {
		if _, err := c.Track(ctx, parts[0], parts[1]); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// StartTimer asks the server to start the gate timer. Concurrent calls for
// the same content collapse into one request.
func (c *Controller) StartTimer(ctx context.Context, contentType, contentID string) error {
	k := key(contentType, contentID)

	c.mu.Lock()
	state := c.ensureStateLocked(k)
	if state.startInFlight {
		c.mu.Unlock()
		return nil
	}
	state.startInFlight = true
	c.mu.Unlock()

	resp, err := c.api.StartTimer(ctx, contentType, contentID)

	c.mu.Lock()
	state.startInFlight = false
	c.mu.Unlock()

	if err != nil {
		c.notify(Event{ContentType: contentType, ContentID: contentID, Err: err})
		return err
	}

	// The server answers with whatever row already exists, so the cached
	// state follows its status rather than assuming a fresh timer.
	c.mu.Lock()
	state.status = resp.Progression.Status
	state.accessType = accessTypeFor(resp.Progression.Status)
	state.timerEndTime = resp.Progression.TimerEndTime
	state.progressionID = resp.Progression.ID
	c.mu.Unlock()

	c.emit(contentType, contentID)
	return nil
}

// Unlock spends Solar for permanent access. The server treats duplicates as
// success, so a retry after a dropped response is safe.
func (c *Controller) Unlock(ctx context.Context, contentType, contentID string) (*dto.UnlockResponse, error) {
	k := key(contentType, contentID)

	c.mu.Lock()
	state := c.ensureStateLocked(k)
	if state.unlockInFlight {
		c.mu.Unlock()
		return nil, errors.New("unlock already in progress")
	}
	state.unlockInFlight = true
	c.mu.Unlock()

	resp, err := c.api.Unlock(ctx, contentType, contentID)

	c.mu.Lock()
	state.unlockInFlight = false
	if err == nil {
		state.status = shared.StatusUnlocked
		state.accessType = shared.AccessFull
		state.timerEndTime = nil
	}
	c.mu.Unlock()

	if err != nil {
		c.notify(Event{ContentType: contentType, ContentID: contentID, Err: err})
		return nil, err
	}

	c.emit(contentType, contentID)
	return resp, nil
}

// Run ticks the countdowns until ctx is cancelled. When a tracked timer
// reaches zero locally, the controller calls completeTimer exactly once; the
// server may still answer 425 if its clock disagrees, in which case the timer
// stays active and is retried on a later tick.
func (c *Controller) Run(ctx context.Context) {
	ticker := time.NewTicker(c.tickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-c.done:
			return
		case <-ticker.C:
			c.tick(ctx)
		}
	}
}

func (c *Controller) Close() {
	close(c.done)
}

func (c *Controller) tick(ctx context.Context) {
	type pending struct {
		contentType, contentID, progressionID string
	}

	var completions []pending

	c.mu.Lock()
	for k, state := range c.states {
		if state.status != shared.StatusTimerActive || state.timerEndTime == nil {
			continue
		}

		if c.remainingLocked(state) > 0 {
			continue
		}

		if state.completeInFlight || state.progressionID == "" {
			continue
		}
		state.completeInFlight = true

		for i := 0; i < len(k); i++ {
			if k[i] == ':' {
				completions = append(completions, pending{k[:i], k[i+1:], state.progressionID})
				break
			}
		}
	}
	c.mu.Unlock()

	for _, p := range completions {
		c.completeTimer(ctx, p.contentType, p.contentID, p.progressionID)
	}

	// Push countdown events for anything still running.
	c.mu.Lock()
	type running struct {
		contentType, contentID string
	}
	var active []running
	for k, state := range c.states {
		if state.status == shared.StatusTimerActive && c.remainingLocked(state) > 0 {
			for i := 0; i < len(k); i++ {
				if k[i] == ':' {
					active = append(active, running{k[:i], k[i+1:]})
					break
				}
			}
		}
	}
	c.mu.Unlock()

	for _, r := range active {
		c.emit(r.contentType, r.contentID)
	}
}

func (c *Controller) completeTimer(ctx context.Context, contentType, contentID, progressionID string) {
	progression, err := c.api.CompleteTimer(ctx, progressionID)

	k := key(contentType, contentID)
	c.mu.Lock()
	state := c.ensureStateLocked(k)
	state.completeInFlight = false

	if err == nil {
		state.status = progression.Status
		state.accessType = shared.AccessTimerComplete
		state.timerEndTime = nil
	}
	c.mu.Unlock()

	if err != nil {
		// 425 means the server clock still sees time remaining; the next
		// tick recomputes from the server end time and tries again.
		var apiErr *APIError
		if !errors.As(err, &apiErr) || apiErr.StatusCode != 425 {
			c.notify(Event{ContentType: contentType, ContentID: contentID, Err: err})
		}
		return
	}

	c.emit(contentType, contentID)
}

// Status returns the cached view for a piece of content.
func (c *Controller) Status(contentType, contentID string) (status, accessType string, remaining int, ok bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	state, exists := c.states[key(contentType, contentID)]
	if !exists {
		return "", "", 0, false
	}
	return state.status, state.accessType, c.remainingLocked(state), true
}

func (c *Controller) checkAccessWithRetry(ctx context.Context, contentType, contentID string) (*dto.AccessStatusResponse, error) {
	var lastErr error
	for attempt := 0; ; attempt++ {
		status, err := c.api.CheckAccess(ctx, contentType, contentID)
		if err == nil {
			return status, nil
		}
		lastErr = err

		var apiErr *APIError
		if !errors.As(err, &apiErr) || !apiErr.Retryable() || attempt >= len(c.retryBackoff) {
			return nil, lastErr
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(c.retryBackoff[attempt]):
		}
	}
}

func (c *Controller) applyAccessStatus(contentType, contentID string, status *dto.AccessStatusResponse) {
	k := key(contentType, contentID)

	c.mu.Lock()
	state := c.ensureStateLocked(k)
	state.status = status.Status
	state.accessType = status.AccessType
	state.timerEndTime = status.TimerEndTime
	if status.Progression != nil {
		state.progressionID = status.Progression.ID
		if state.timerEndTime == nil {
			state.timerEndTime = status.Progression.TimerEndTime
		}
	}
	c.mu.Unlock()

	c.emit(contentType, contentID)
}

func (c *Controller) ensureStateLocked(k string) *contentState {
	state, exists := c.states[k]
	if !exists {
		state = &contentState{status: shared.StatusLocked, accessType: shared.AccessPreview}
		c.states[k] = state
	}
	return state
}

// remainingLocked computes whole seconds left from the server end time. Never
// negative; never stored, so clock corrections apply immediately.
func (c *Controller) remainingLocked(state *contentState) int {
	if state.timerEndTime == nil {
		return 0
	}
	remaining := state.timerEndTime.Sub(c.now())
	if remaining <= 0 {
		return 0
	}
	return int((remaining + time.Second - 1) / time.Second)
}

func (c *Controller) emit(contentType, contentID string) {
	c.mu.Lock()
	state, exists := c.states[key(contentType, contentID)]
	if !exists {
		c.mu.Unlock()
		return
	}
	ev := Event{
		ContentType:   contentType,
		ContentID:     contentID,
		Status:        state.status,
		AccessType:    state.accessType,
		TimeRemaining: c.remainingLocked(state),
	}
	c.mu.Unlock()

	c.notify(ev)
}
