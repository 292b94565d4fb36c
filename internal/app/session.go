package app

import (
	"fmt"
	"sync"
	"time"

	"timed-quiz/internal/domain"
)

// Session is the state machine of one quiz attempt. It is the sole owner of the
// question list, cursor, pending selection, recorded answers and countdown value.
// Every operation is serialized by mu and is all-or-nothing: a rejected operation
// leaves the session untouched.
type Session struct {
	id        string
	createdAt time.Time
	now       func() time.Time
	timeLimit int
	done      chan struct{}

	mu            sync.Mutex
	questions     []domain.Question
	current       int
	pending       string
	hasPending    bool
	answered      []domain.AnsweredQuestion
	timeRemaining int
	phase         domain.Phase
	finishedAt    time.Time
	lastActive    time.Time
	resultClaimed bool
	subscribers   map[chan domain.View]struct{}
}

// SessionOption customizes a new Session.
type SessionOption func(*Session)

// WithTimeLimit sets the countdown length per question in seconds.
func WithTimeLimit(seconds int) SessionOption {
	return func(s *Session) {
		if seconds > 0 {
			s.timeLimit = seconds
		}
	}
}

// WithClock allows deterministic timestamps in tests.
func WithClock(now func() time.Time) SessionOption {
	return func(s *Session) {
		s.now = now
	}
}

// NewSession builds an ACTIVE session positioned on the first question. The
// question list is copied and never mutated afterwards.
func NewSession(id string, questions []domain.Question, opts ...SessionOption) (*Session, error) {
	if len(questions) == 0 {
		return nil, domain.ErrNoQuestions
	}
	owned := make([]domain.Question, 0, len(questions))
	for _, q := range questions {
		if err := q.Validate(); err != nil {
			return nil, err
		}
		owned = append(owned, q.Clone())
	}

	s := &Session{
		id:          id,
		now:         time.Now,
		timeLimit:   domain.DefaultTimeLimitSeconds,
		done:        make(chan struct{}),
		questions:   owned,
		answered:    make([]domain.AnsweredQuestion, 0, len(owned)),
		phase:       domain.PhaseActive,
		subscribers: make(map[chan domain.View]struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.createdAt = s.now()
	s.lastActive = s.createdAt
	s.timeRemaining = s.timeLimit
	return s, nil
}

// ID returns the session identifier.
func (s *Session) ID() string {
	return s.id
}

// CreatedAt returns when the session was built.
func (s *Session) CreatedAt() time.Time {
	return s.createdAt
}

// Done is closed once the last question is finalized.
func (s *Session) Done() <-chan struct{} {
	return s.done
}

// Epoch is the number of finalized questions. It changes exactly when a
// question is finalized, so a countdown can tell whether its ticks are stale.
func (s *Session) Epoch() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.answered)
}

// View returns the presenter read model.
func (s *Session) View() domain.View {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.viewLocked()
}

// SelectOption records option as the pending choice for the current question.
// It can be called repeatedly before the question is finalized.
func (s *Session) SelectOption(option string) (domain.View, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.selectLocked(option)
}

func (s *Session) selectLocked(option string) (domain.View, error) {
	if s.phase != domain.PhaseActive {
		return s.viewLocked(), fmt.Errorf("%w: session finished", domain.ErrInvalidState)
	}
	if s.reviewingLocked() {
		return s.viewLocked(), fmt.Errorf("%w: question %d already answered", domain.ErrInvalidState, s.current+1)
	}
	if !s.questions[s.current].HasOption(option) {
		return s.viewLocked(), fmt.Errorf("%w: %q", domain.ErrOptionNotFound, option)
	}

	s.pending = option
	s.hasPending = true
	s.touchLocked()
	return s.broadcastLocked(), nil
}

// SelectIndex selects the option at index of the current question. The index
// is resolved under the same lock as the selection.
func (s *Session) SelectIndex(index int) (domain.View, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	options := s.questions[s.current].Options
	if index < 0 || index >= len(options) {
		if s.phase != domain.PhaseActive {
			return s.viewLocked(), fmt.Errorf("%w: session finished", domain.ErrInvalidState)
		}
		return s.viewLocked(), fmt.Errorf("%w: option %d", domain.ErrOptionNotFound, index+1)
	}
	return s.selectLocked(options[index])
}

// Advance finalizes the current question with the pending selection. Without a
// selection it is rejected with ErrNoSelection; skipping is an explicit intent.
// While reviewing an answered question it only moves the cursor forward.
func (s *Session) Advance() (domain.View, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.phase != domain.PhaseActive {
		return s.viewLocked(), fmt.Errorf("%w: session finished", domain.ErrInvalidState)
	}
	if s.reviewingLocked() {
		s.moveLocked(s.current + 1)
		s.touchLocked()
		return s.broadcastLocked(), nil
	}
	if !s.hasPending {
		return s.viewLocked(), domain.ErrNoSelection
	}

	s.finalizeLocked(domain.OptionChoice(s.pending))
	s.touchLocked()
	return s.broadcastLocked(), nil
}

// Skip finalizes the current question with the SKIP-marker, discarding any
// pending selection. While reviewing it only moves the cursor forward.
func (s *Session) Skip() (domain.View, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.phase != domain.PhaseActive {
		return s.viewLocked(), fmt.Errorf("%w: session finished", domain.ErrInvalidState)
	}
	if s.reviewingLocked() {
		s.moveLocked(s.current + 1)
		s.touchLocked()
		return s.broadcastLocked(), nil
	}

	s.finalizeLocked(domain.SkipChoice())
	s.touchLocked()
	return s.broadcastLocked(), nil
}

// GoBack moves the cursor to the previous question for review. Recorded
// answers, the score and the countdown are left alone.
func (s *Session) GoBack() (domain.View, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.phase != domain.PhaseActive {
		return s.viewLocked(), fmt.Errorf("%w: session finished", domain.ErrInvalidState)
	}
	if s.current == 0 {
		return s.viewLocked(), fmt.Errorf("%w: already at the first question", domain.ErrInvalidState)
	}

	s.moveLocked(s.current - 1)
	s.touchLocked()
	return s.broadcastLocked(), nil
}

// Tick advances the countdown by one second for the current epoch.
func (s *Session) Tick() domain.View {
	s.mu.Lock()
	epoch := len(s.answered)
	s.mu.Unlock()

	view, _ := s.TickFor(epoch)
	return view
}

// TickFor advances the countdown by one second if epoch is still current. When
// the countdown is exhausted the unanswered question is finalized with the
// pending selection, or skipped when there is none. Ticks for a finished
// session or a stale epoch are ignored and report false.
func (s *Session) TickFor(epoch int) (domain.View, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.phase != domain.PhaseActive || epoch != len(s.answered) {
		return s.viewLocked(), false
	}

	s.timeRemaining--
	if s.timeRemaining <= 0 {
		s.timeRemaining = 0
		if s.hasPending && !s.reviewingLocked() {
			s.finalizeLocked(domain.OptionChoice(s.pending))
		} else {
			s.finalizeLocked(domain.SkipChoice())
		}
	}
	return s.broadcastLocked(), true
}

// Result returns the terminal payload. It fails with ErrInvalidState while the
// session is still active.
func (s *Session) Result() (domain.Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.phase != domain.PhaseFinished {
		return domain.Result{}, fmt.Errorf("%w: session still active", domain.ErrInvalidState)
	}
	return s.resultLocked(), nil
}

// FinishedAt returns when the session finished, or the zero time.
func (s *Session) FinishedAt() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.finishedAt
}

// LastActive returns when the player last sent an accepted intent. Countdown
// ticks do not count.
func (s *Session) LastActive() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastActive
}

// claimResult hands out the result exactly once after the session finished.
func (s *Session) claimResult() (domain.Result, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.phase != domain.PhaseFinished || s.resultClaimed {
		return domain.Result{}, false
	}
	s.resultClaimed = true
	return s.resultLocked(), true
}

// Subscribe returns a channel that receives a view after every state change.
// The caller must invoke the returned cancel function to avoid leaks.
func (s *Session) Subscribe() (<-chan domain.View, func()) {
	ch := make(chan domain.View, 8)

	// The buffer is empty, so the first send cannot block while mu is held, and
	// no broadcast can be queued ahead of it.
	s.mu.Lock()
	s.subscribers[ch] = struct{}{}
	ch <- s.viewLocked()
	s.mu.Unlock()

	cancel := func() {
		s.mu.Lock()
		if _, ok := s.subscribers[ch]; ok {
			delete(s.subscribers, ch)
			close(ch)
		}
		s.mu.Unlock()
	}
	return ch, cancel
}

func (s *Session) reviewingLocked() bool {
	return s.current < len(s.answered)
}

// finalizeLocked records the first unanswered question and moves past it.
func (s *Session) finalizeLocked(choice domain.Choice) {
	frontier := len(s.answered)
	s.answered = append(s.answered, domain.NewAnsweredQuestion(s.questions[frontier], choice))
	s.pending = ""
	s.hasPending = false

	if len(s.answered) == len(s.questions) {
		s.current = len(s.questions) - 1
		s.phase = domain.PhaseFinished
		s.finishedAt = s.now()
		close(s.done)
		return
	}
	s.current = len(s.answered)
	s.timeRemaining = s.timeLimit
}

func (s *Session) touchLocked() {
	s.lastActive = s.now()
}

func (s *Session) moveLocked(index int) {
	s.current = index
	s.pending = ""
	s.hasPending = false
}

func (s *Session) scoreLocked() int {
	score := 0
	for _, a := range s.answered {
		if a.IsCorrect {
			score++
		}
	}
	return score
}

func (s *Session) resultLocked() domain.Result {
	answered := make([]domain.AnsweredQuestion, len(s.answered))
	copy(answered, s.answered)
	return domain.Result{
		FinalScore: s.scoreLocked(),
		Total:      len(s.questions),
		Answered:   answered,
	}
}

func (s *Session) viewLocked() domain.View {
	q := s.questions[s.current]
	options := make([]string, len(q.Options))
	copy(options, q.Options)

	view := domain.View{
		SessionID:            s.id,
		Phase:                s.phase,
		CurrentIndex:         s.current,
		TotalQuestions:       len(s.questions),
		QuestionText:         q.Text,
		Options:              options,
		SelectedOption:       s.pending,
		HasSelection:         s.hasPending,
		TimeRemainingSeconds: s.timeRemaining,
		AnsweredCount:        len(s.answered),
		Score:                s.scoreLocked(),
		IsLast:               s.current == len(s.questions)-1,
	}
	if s.reviewingLocked() {
		recorded := s.answered[s.current]
		view.Recorded = &recorded
		view.Reviewing = s.phase == domain.PhaseActive
	}
	return view
}

func (s *Session) broadcastLocked() domain.View {
	view := s.viewLocked()
	for ch := range s.subscribers {
		select {
		case ch <- view:
		default:
			// Drop the oldest pending view so a slow reader never blocks the session.
			select {
			case <-ch:
			default:
			}
			ch <- view
		}
	}
	return view
}
