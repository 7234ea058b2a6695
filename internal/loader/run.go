package loader

import (
	"sync"
	"time"

	"github.com/jon4hz/showtrack/internal/provider"
)

// State is a step of a hierarchy load.
type State string

const (
	StatePending          State = "PENDING"
	StateFetchingSeasons  State = "FETCHING_SEASONS"
	StateFetchingEpisodes State = "FETCHING_EPISODES"
	StatePersisting       State = "PERSISTING"
	StateNotifying        State = "NOTIFYING"
	StateDone             State = "DONE"
	StateFailed           State = "FAILED"
)

// Terminal reports whether no further transition can happen.
func (s State) Terminal() bool {
	return s == StateDone || s == StateFailed
}

// Request describes the favorite that triggered a load.
type Request struct {
	AccountID  uint
	ProfileID  uint
	ShowID     uint
	ExternalID int64
	Title      string

	// Details are the show details already fetched by the caller. The load fetches them
	// itself when nil.
	Details *provider.ShowDetails
}

// Run tracks one hierarchy load.
type Run struct {
	ID      string
	Request Request

	mu            sync.RWMutex
	state         State
	history       []State
	season        int
	seasonsLoaded int
	delivered     bool
	joined        []Request
	err           error
	startedAt     time.Time
	finishedAt    time.Time
	done          chan struct{}
}

// RunStatus is a point in time copy of a run.
type RunStatus struct {
	ID            string    `json:"id"`
	ShowID        uint      `json:"showId"`
	ProfileID     uint      `json:"profileId"`
	State         State     `json:"state"`
	Season        int       `json:"season,omitempty"`
	SeasonsLoaded int       `json:"seasonsLoaded"`
	Delivered     bool      `json:"delivered"`
	Error         string    `json:"error,omitempty"`
	StartedAt     time.Time `json:"startedAt"`
	FinishedAt    time.Time `json:"finishedAt,omitzero"`
}

func newRun(id string, req Request) *Run {
	return &Run{
		ID:        id,
		Request:   req,
		state:     StatePending,
		history:   []State{StatePending},
		startedAt: time.Now(),
		done:      make(chan struct{}),
	}
}

func (r *Run) transition(s State) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.state = s
	r.history = append(r.history, s)
	if s.Terminal() {
		r.finishedAt = time.Now()
	}
}

// join adds another favorite of the same show to the run. Its account is notified when the
// run completes. Once the run stopped persisting seasons it can't be joined anymore.
func (r *Run) join(req Request) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	switch r.state {
	case StateNotifying, StateDone, StateFailed:
		return false
	}
	r.joined = append(r.joined, req)
	return true
}

// requests returns the request that started the run followed by every joined one.
func (r *Run) requests() []Request {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]Request{r.Request}, r.joined...)
}

func (r *Run) setSeason(number int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.season = number
}

func (r *Run) seasonLoaded() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.seasonsLoaded++
}

func (r *Run) fail(err error) {
	r.mu.Lock()
	r.err = err
	r.mu.Unlock()
	r.transition(StateFailed)
}

// State returns the current state.
func (r *Run) State() State {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.state
}

// History returns every state the run went through, in order.
func (r *Run) History() []State {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]State(nil), r.history...)
}

// Err returns the error that failed the run.
func (r *Run) Err() error {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.err
}

// Delivered reports whether the completion event reached a session.
func (r *Run) Delivered() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.delivered
}

// Done is closed once the run reached DONE or FAILED.
func (r *Run) Done() <-chan struct{} {
	return r.done
}

// Status returns a copy of the run's progress.
func (r *Run) Status() RunStatus {
	r.mu.RLock()
	defer r.mu.RUnlock()
	st := RunStatus{
		ID:            r.ID,
		ShowID:        r.Request.ShowID,
		ProfileID:     r.Request.ProfileID,
		State:         r.state,
		Season:        r.season,
		SeasonsLoaded: r.seasonsLoaded,
		Delivered:     r.delivered,
		StartedAt:     r.startedAt,
		FinishedAt:    r.finishedAt,
	}
	if r.err != nil {
		st.Error = r.err.Error()
	}
	return st
}
