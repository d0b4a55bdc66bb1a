/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

// Package reveal drives the staged disclosure of a drawn assignment: a
// global spin, then one team at a time, then done.
package reveal

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/Seednode/foosball/internal/teams"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"
)

const (
	// StepInterval separates consecutive team reveals.
	StepInterval = 900 * time.Millisecond

	baseSpin    = 800 * time.Millisecond
	perTeamSpin = 250 * time.Millisecond
	maxSpin     = 1800 * time.Millisecond
)

var ErrClosed = errors.New("reveal scheduler is closed")

// SpinDuration is how long every team spins before the first reveal. It
// grows with the number of teams, up to a cap.
func SpinDuration(total int) time.Duration {
	return min(maxSpin, baseSpin+time.Duration(total)*perTeamSpin)
}

type Phase string

const (
	PhaseIdle      Phase = "idle"
	PhaseSpinning  Phase = "spinning"
	PhaseRevealing Phase = "revealing"
	PhaseDone      Phase = "done"
)

// State is a snapshot of the reveal of one draw.
type State struct {
	Phase       Phase     `json:"phase"`
	Spinning    bool      `json:"spinning"`
	RevealIndex int       `json:"reveal_index"` // -1 until the first team is shown
	Total       int       `json:"total"`
	Draw        uint64    `json:"draw"`
	StartedAt   time.Time `json:"started_at"`
}

// Revealed reports whether team t has been locked in.
func (s State) Revealed(t int) bool {
	return s.RevealIndex >= t
}

// handle owns every timer of one in-flight draw. Once stopped, nothing it
// armed can fire into the scheduler again.
type handle struct {
	gen    uint64
	total  int
	ctx    context.Context
	cancel context.CancelFunc
	spin   clockwork.Timer
	step   clockwork.Ticker
}

func (h *handle) stop() {
	h.cancel()
	stopAndDrainTimer(h.spin)
	if h.step != nil {
		h.step.Stop()
	}
}

func stopAndDrainTimer(timer clockwork.Timer) {
	if !timer.Stop() {
		select {
		case <-timer.Chan():
		default:
		}
	}
}

type Option func(*Scheduler)

// WithObserver registers fn to receive every state transition, in order.
// fn runs with the scheduler locked: it must not block or call back into
// the Scheduler.
func WithObserver(fn func(State)) Option {
	return func(s *Scheduler) {
		s.observer = fn
	}
}

// Scheduler runs at most one reveal at a time. Starting a new one first
// invalidates the previous draw's timers.
type Scheduler struct {
	clock    clockwork.Clock
	observer func(State)
	changes  chan struct{}

	mu     sync.Mutex
	state  State
	live   *handle
	gen    uint64
	closed bool
}

func New(clock clockwork.Clock, opts ...Option) *Scheduler {
	s := &Scheduler{
		clock:   clock,
		changes: make(chan struct{}, 1),
		state:   State{Phase: PhaseIdle, RevealIndex: -1},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start begins revealing a. Any reveal still in flight is cancelled first.
func (s *Scheduler) Start(a teams.Assignment) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrClosed
	}

	s.invalidateLocked()
	s.gen++

	total := len(a.Teams)
	s.state = State{
		Phase:       PhaseSpinning,
		Spinning:    true,
		RevealIndex: -1,
		Total:       total,
		Draw:        s.gen,
		StartedAt:   s.clock.Now(),
	}

	if total == 0 {
		s.state.Phase = PhaseDone
		s.state.Spinning = false
		s.publishLocked()
		return nil
	}

	ctx, cancel := context.WithCancel(context.Background())
	h := &handle{
		gen:    s.gen,
		total:  total,
		ctx:    ctx,
		cancel: cancel,
		spin:   s.clock.NewTimer(SpinDuration(total)),
	}
	s.live = h
	s.publishLocked()

	go s.run(h)

	return nil
}

// Cancel stops the pending timers of the current draw. The last published
// state is left as it was.
func (s *Scheduler) Cancel() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.live != nil {
		log.Debug().Uint64("draw", s.live.gen).Msg("reveal cancelled")
	}
	s.invalidateLocked()
}

// Close cancels any reveal and rejects further Starts.
func (s *Scheduler) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.invalidateLocked()
	s.closed = true
}

func (s *Scheduler) Snapshot() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Changes signals after one or more transitions; read Snapshot for the
// current state. Bursts are coalesced.
func (s *Scheduler) Changes() <-chan struct{} {
	return s.changes
}

func (s *Scheduler) invalidateLocked() {
	if s.live == nil {
		return
	}
	s.live.stop()
	s.live = nil
}

func (s *Scheduler) publishLocked() {
	log.Debug().
		Uint64("draw", s.state.Draw).
		Str("phase", string(s.state.Phase)).
		Int("reveal_index", s.state.RevealIndex).
		Int("total", s.state.Total).
		Msg("reveal transition")

	if s.observer != nil {
		s.observer(s.state)
	}

	select {
	case s.changes <- struct{}{}:
	default:
	}
}

func (s *Scheduler) run(h *handle) {
	select {
	case <-h.ctx.Done():
		return
	case <-h.spin.Chan():
	}

	step, ok := s.reveal(h, 0)
	if !ok {
		return
	}

	for next := 1; ; next++ {
		select {
		case <-h.ctx.Done():
			return
		case <-step:
			if _, ok := s.reveal(h, next); !ok {
				return
			}
		}
	}
}

// reveal locks in team i of h's draw. Locking in the last team also finishes
// the draw in the same step. It returns the step channel to wait on for the
// next team, or false once h is finished or no longer live.
func (s *Scheduler) reveal(h *handle, i int) (<-chan time.Time, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.live != h {
		return nil, false
	}

	s.state.Phase = PhaseRevealing
	s.state.RevealIndex = i
	s.publishLocked()

	if i >= h.total-1 {
		s.state.Phase = PhaseDone
		s.state.Spinning = false
		s.publishLocked()
		s.invalidateLocked()
		return nil, false
	}

	if h.step == nil {
		h.step = s.clock.NewTicker(StepInterval)
	}

	return h.step.Chan(), true
}
