// Package wizard drives multi-step interactive sessions.
//
// A Session shows one step at a time. Advance renders the next step, Retry re-renders the step on
// screen with a validation notice, and advancing past the last step finalizes the session exactly once.
// Every transition checks expiry and authorization under the session lock, so a double-clicked
// button is applied once and the loser gets ErrStaleStep or ErrFinished.
package wizard

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/lucashicks1/cssebot/cmd/internal/ids"
)

// DefaultTimeout bounds a session's lifetime from creation.
const DefaultTimeout = 600 * time.Second

// State is the lifecycle state of a Session.
type State int

const (
	StateActive State = iota
	StateFinished
	StateAborted
	StateExpired
)

func (s State) String() string {
	switch s {
	case StateActive:
		return "active"
	case StateFinished:
		return "finished"
	case StateAborted:
		return "aborted"
	case StateExpired:
		return "expired"
	default:
		return "unknown"
	}
}

func (s State) terminal() bool { return s != StateActive }

// Actor is whoever triggered an interaction.
type Actor struct {
	ID          string
	GuildID     string
	Permissions uint64
}

// Step describes one screen of a session. Describe and Build must not block.
type Step[S any] struct {
	Title    string
	Describe func(Values) string
	Build    func(Values) (S, error)
}

// Frame is what the caller shows for a transition.
type Frame[S any] struct {
	SessionID   string
	Index       int
	Total       int
	Title       string
	Description string
	Surface     S
	Notice      string
	Done        bool
}

// StepResult is the outcome of validating a step's raw input: either a value to store, or a
// message explaining why the step must be shown again.
type StepResult struct {
	Value any
	Retry string
}

// Accept wraps a validated value.
func Accept(v any) StepResult { return StepResult{Value: v} }

// Reject asks for the displayed step to be shown again with msg.
func Reject(msg string) StepResult {
	msg = strings.TrimSpace(msg)
	if msg == "" {
		msg = "invalid input"
	}
	return StepResult{Retry: msg}
}

// Finalizer runs once after the last step. The returned surface is shown as the closing frame.
type Finalizer[S any] func(ctx context.Context, values Values) (S, error)

// Observer receives transition events (render, retry, finish, expire, unauthorized, abort, stale).
type Observer interface {
	Transition(event string)
}

type noopObserver struct{}

func (noopObserver) Transition(string) {}

// Config describes a new Session.
type Config[S any] struct {
	GuildID  string
	Require  uint64
	Timeout  time.Duration
	Steps    []Step[S]
	Finalize Finalizer[S]

	// Authorize overrides the default guild + permission-bit check.
	Authorize func(Actor) bool

	Now      func() time.Time
	Logger   *slog.Logger
	Observer Observer
}

// Session is a single run of a multi-step flow.
type Session[S any] struct {
	id        string
	guildID   string
	require   uint64
	steps     []Step[S]
	finalize  Finalizer[S]
	authorize func(Actor) bool
	now       func() time.Time
	expiresAt time.Time
	log       *slog.Logger
	obs       Observer

	mu     sync.Mutex
	index  int
	state  State
	values Values
}

// New validates cfg and returns an active session with no step displayed.
func New[S any](cfg Config[S]) (*Session[S], error) {
	if len(cfg.Steps) == 0 || cfg.Finalize == nil {
		return nil, ErrInvalidInput
	}
	for _, st := range cfg.Steps {
		if st.Build == nil {
			return nil, ErrInvalidInput
		}
	}

	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	log := cfg.Logger
	if log == nil {
		log = slog.Default()
	}
	obs := cfg.Observer
	if obs == nil {
		obs = noopObserver{}
	}

	created := now()
	id, err := ids.NewULID(created)
	if err != nil {
		return nil, err
	}

	s := &Session[S]{
		id:        id,
		guildID:   cfg.GuildID,
		require:   cfg.Require,
		steps:     append([]Step[S](nil), cfg.Steps...),
		finalize:  cfg.Finalize,
		authorize: cfg.Authorize,
		now:       now,
		expiresAt: created.Add(timeout),
		log:       log.With("session", id),
		obs:       obs,
		values:    Values{},
	}
	if s.authorize == nil {
		s.authorize = s.defaultAuthorize
	}
	return s, nil
}

func (s *Session[S]) defaultAuthorize(a Actor) bool {
	if a.GuildID != s.guildID {
		return false
	}
	return a.Permissions&s.require == s.require
}

// ID returns the session identifier.
func (s *Session[S]) ID() string { return s.id }

// GuildID returns the owning guild.
func (s *Session[S]) GuildID() string { return s.guildID }

// ExpiresAt returns the absolute expiry time.
func (s *Session[S]) ExpiresAt() time.Time { return s.expiresAt }

// State returns the current state, reporting an overdue active session as expired.
func (s *Session[S]) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == StateActive && !s.now().Before(s.expiresAt) {
		return StateExpired
	}
	return s.state
}

// Displayed returns the index of the step on screen, or -1 before the first render.
func (s *Session[S]) Displayed() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.index - 1
}

// Values returns a copy of the collected values.
func (s *Session[S]) Values() Values {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.values.clone()
}

// Advance renders the next step, or finalizes the session once every step has been shown.
func (s *Session[S]) Advance(ctx context.Context, actor Actor) (Frame[S], error) {
	if err := ctx.Err(); err != nil {
		return Frame[S]{}, err
	}

	s.mu.Lock()
	if err := s.checkLocked(actor); err != nil {
		s.mu.Unlock()
		return Frame[S]{}, err
	}
	if s.index >= len(s.steps) {
		return s.finishUnlock(ctx)
	}
	f, err := s.renderLocked(s.index, "")
	if err == nil {
		s.index++
	}
	s.mu.Unlock()
	return f, err
}

// Begin renders the first step. Once any step has been shown it fails with ErrStaleStep, so a
// repeated start button cannot skip ahead.
func (s *Session[S]) Begin(ctx context.Context, actor Actor) (Frame[S], error) {
	if err := ctx.Err(); err != nil {
		return Frame[S]{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.checkLocked(actor); err != nil {
		return Frame[S]{}, err
	}
	if s.index != 0 {
		s.obs.Transition("stale")
		return Frame[S]{}, ErrStaleStep
	}
	f, err := s.renderLocked(0, "")
	if err == nil {
		s.index++
	}
	return f, err
}

// Retry re-renders the step on screen with msg. The index is unchanged.
func (s *Session[S]) Retry(ctx context.Context, actor Actor, msg string) (Frame[S], error) {
	if err := ctx.Err(); err != nil {
		return Frame[S]{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.checkLocked(actor); err != nil {
		return Frame[S]{}, err
	}
	if s.index == 0 {
		return Frame[S]{}, ErrNotStarted
	}
	s.obs.Transition("retry")
	return s.renderLocked(s.index-1, msg)
}

// Submit applies input for step, which must be the step on screen. An accepted value is stored
// under field (skipped when field is empty) and the session advances; a rejected one is retried.
// Before the first step is shown it returns ErrNotStarted.
func (s *Session[S]) Submit(ctx context.Context, actor Actor, step int, field string, res StepResult) (Frame[S], error) {
	if err := ctx.Err(); err != nil {
		return Frame[S]{}, err
	}

	s.mu.Lock()
	if err := s.checkLocked(actor); err != nil {
		s.mu.Unlock()
		return Frame[S]{}, err
	}
	if s.index == 0 {
		s.mu.Unlock()
		return Frame[S]{}, ErrNotStarted
	}
	if step != s.index-1 {
		displayed := s.index - 1
		s.mu.Unlock()
		s.obs.Transition("stale")
		s.log.Debug("wizard.submit.stale", "step", step, "displayed", displayed)
		return Frame[S]{}, ErrStaleStep
	}

	if res.Retry != "" {
		s.obs.Transition("retry")
		f, err := s.renderLocked(step, res.Retry)
		s.mu.Unlock()
		return f, err
	}

	if field != "" {
		s.values[field] = res.Value
	}
	if s.index >= len(s.steps) {
		return s.finishUnlock(ctx)
	}
	f, err := s.renderLocked(s.index, "")
	if err == nil {
		s.index++
	}
	s.mu.Unlock()
	return f, err
}

// Check reports whether actor may act on step now, without changing the session. It is used
// before answering with something that is not a transition, such as opening a modal.
func (s *Session[S]) Check(actor Actor, step int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.checkLocked(actor); err != nil {
		return err
	}
	if s.index == 0 {
		return ErrNotStarted
	}
	if step != s.index-1 {
		return ErrStaleStep
	}
	return nil
}

// Expire marks an active session expired. It is used when the session is discarded by a registry.
func (s *Session[S]) Expire() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == StateActive {
		s.state = StateExpired
		s.obs.Transition("expire")
	}
}

func (s *Session[S]) checkLocked(actor Actor) error {
	if s.state == StateExpired {
		return ErrSessionExpired
	}
	if s.state == StateActive && !s.now().Before(s.expiresAt) {
		s.state = StateExpired
		s.obs.Transition("expire")
		s.log.Info("wizard.session.expired", "guild_id", s.guildID)
		return ErrSessionExpired
	}
	if !s.authorize(actor) {
		s.obs.Transition("unauthorized")
		s.log.Info("wizard.actor.unauthorized", "actor", actor.ID, "guild_id", actor.GuildID)
		return ErrUnauthorized
	}
	switch s.state {
	case StateFinished:
		return ErrFinished
	case StateAborted:
		return ErrAborted
	}
	return nil
}

// renderLocked builds step i. A build failure aborts the session.
func (s *Session[S]) renderLocked(i int, notice string) (Frame[S], error) {
	st := s.steps[i]
	f := Frame[S]{
		SessionID: s.id,
		Index:     i,
		Total:     len(s.steps),
		Title:     st.Title,
		Notice:    notice,
	}
	if st.Describe != nil {
		f.Description = st.Describe(s.values)
	}
	surface, err := st.Build(s.values)
	if err != nil {
		s.state = StateAborted
		s.obs.Transition("abort")
		s.log.Error("wizard.step.render.fail", "step", i, "title", st.Title, "err", err)
		return Frame[S]{}, RenderError{Step: i, Title: st.Title, Err: err}
	}
	f.Surface = surface
	s.obs.Transition("render")
	return f, nil
}

// finishUnlock moves the session to Finished, releases the lock and runs the finalizer.
func (s *Session[S]) finishUnlock(ctx context.Context) (Frame[S], error) {
	s.state = StateFinished
	values := s.values.clone()
	s.mu.Unlock()

	s.obs.Transition("finish")
	s.log.Info("wizard.session.finished", "guild_id", s.guildID)

	surface, err := s.finalize(ctx, values)
	f := Frame[S]{SessionID: s.id, Index: len(s.steps), Total: len(s.steps), Surface: surface, Done: true}
	return f, err
}
