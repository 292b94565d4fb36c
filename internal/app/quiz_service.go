package app

import (
	"context"
	"sync"
	"time"

	"timed-quiz/internal/domain"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// SessionRepository abstracts how live quiz sessions are kept (in-memory, Redis, etc).
type SessionRepository interface {
	Save(session *Session)
	Get(sessionID string) (*Session, bool)
	Delete(sessionID string)
	List() []*Session
}

// QuestionSource supplies the ordered question list of a new session.
type QuestionSource interface {
	Fetch(ctx context.Context) ([]domain.Question, error)
}

// ScoreStore persists the single best score across sessions.
type ScoreStore interface {
	Get(ctx context.Context) (int, error)
	Set(ctx context.Context, score int) error
}

// Session expiry defaults.
const (
	DefaultRetention   = 5 * time.Minute
	DefaultIdleTimeout = 10 * time.Minute
)

// QuizService contains the quiz use cases shared by every presenter.
type QuizService struct {
	sessions SessionRepository
	source   QuestionSource
	scores   ScoreStore

	log       logrus.FieldLogger
	timeLimit int
	interval  time.Duration
	newTicker TickerFunc
	newID     func() string
	now       func() time.Time
	retention time.Duration
	idle      time.Duration

	scoreMu sync.Mutex

	mu         sync.Mutex
	countdowns map[string]*Countdown
	summaries  map[string]domain.Summary
}

// Option customizes a QuizService.
type Option func(*QuizService)

// WithQuestionTimeLimit sets the countdown length per question in seconds.
func WithQuestionTimeLimit(seconds int) Option {
	return func(s *QuizService) {
		if seconds > 0 {
			s.timeLimit = seconds
		}
	}
}

// WithTickInterval sets how much wall time one countdown second takes.
func WithTickInterval(d time.Duration) Option {
	return func(s *QuizService) {
		if d > 0 {
			s.interval = d
		}
	}
}

// WithTicker replaces the wall-clock ticker, mostly for tests.
func WithTicker(newTicker TickerFunc) Option {
	return func(s *QuizService) {
		s.newTicker = newTicker
	}
}

// WithLogger sets the service logger.
func WithLogger(log logrus.FieldLogger) Option {
	return func(s *QuizService) {
		s.log = log
	}
}

// WithNow replaces time.Now for sessions and expiry.
func WithNow(now func() time.Time) Option {
	return func(s *QuizService) {
		s.now = now
	}
}

// WithRetention sets how long a finished session stays readable.
func WithRetention(d time.Duration) Option {
	return func(s *QuizService) {
		if d > 0 {
			s.retention = d
		}
	}
}

// WithIdleTimeout sets how long an active session may go without player
// intents before it is dropped.
func WithIdleTimeout(d time.Duration) Option {
	return func(s *QuizService) {
		if d > 0 {
			s.idle = d
		}
	}
}

// WithIDGenerator replaces the uuid session ids.
func WithIDGenerator(newID func() string) Option {
	return func(s *QuizService) {
		s.newID = newID
	}
}

func NewQuizService(sessions SessionRepository, source QuestionSource, scores ScoreStore, opts ...Option) *QuizService {
	s := &QuizService{
		sessions:   sessions,
		source:     source,
		scores:     scores,
		log:        logrus.StandardLogger(),
		timeLimit:  domain.DefaultTimeLimitSeconds,
		interval:   time.Second,
		newTicker:  NewTimeTicker,
		newID:      uuid.NewString,
		now:        time.Now,
		retention:  DefaultRetention,
		idle:       DefaultIdleTimeout,
		countdowns: make(map[string]*Countdown),
		summaries:  make(map[string]domain.Summary),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start fetches a question list, builds a session on it and starts its countdown.
func (s *QuizService) Start(ctx context.Context) (domain.View, error) {
	questions, err := s.source.Fetch(ctx)
	if err != nil {
		return domain.View{}, err
	}

	session, err := NewSession(s.newID(), questions, WithTimeLimit(s.timeLimit), WithClock(s.now))
	if err != nil {
		return domain.View{}, err
	}
	s.sessions.Save(session)
	s.startCountdown(session)

	s.log.WithFields(logrus.Fields{
		"session":   session.ID(),
		"questions": len(questions),
	}).Info("quiz session started")
	return session.View(), nil
}

// View returns the current read model of a session.
func (s *QuizService) View(_ context.Context, sessionID string) (domain.View, error) {
	session, ok := s.sessions.Get(sessionID)
	if !ok {
		return domain.View{}, domain.ErrSessionNotFound
	}
	return session.View(), nil
}

// Select records the pending option of the current question.
func (s *QuizService) Select(ctx context.Context, sessionID, option string) (domain.View, error) {
	return s.apply(ctx, sessionID, "select", func(session *Session) (domain.View, error) {
		return session.SelectOption(option)
	})
}

// SelectIndex selects the option at index of the current question.
func (s *QuizService) SelectIndex(ctx context.Context, sessionID string, index int) (domain.View, error) {
	return s.apply(ctx, sessionID, "select", func(session *Session) (domain.View, error) {
		return session.SelectIndex(index)
	})
}

// Next finalizes the current question with the pending selection.
func (s *QuizService) Next(ctx context.Context, sessionID string) (domain.View, error) {
	return s.apply(ctx, sessionID, "next", (*Session).Advance)
}

// Skip finalizes the current question as skipped.
func (s *QuizService) Skip(ctx context.Context, sessionID string) (domain.View, error) {
	return s.apply(ctx, sessionID, "skip", (*Session).Skip)
}

// Previous moves back one question for review.
func (s *QuizService) Previous(ctx context.Context, sessionID string) (domain.View, error) {
	return s.apply(ctx, sessionID, "previous", (*Session).GoBack)
}

// Subscribe returns a channel that receives a view after every change of a
// session, countdown ticks included. The caller must invoke cancel.
func (s *QuizService) Subscribe(_ context.Context, sessionID string) (<-chan domain.View, func(), error) {
	session, ok := s.sessions.Get(sessionID)
	if !ok {
		return nil, nil, domain.ErrSessionNotFound
	}
	ch, cancel := session.Subscribe()
	return ch, cancel, nil
}

// Summary returns the result of a finished session with the high score.
func (s *QuizService) Summary(ctx context.Context, sessionID string) (domain.Summary, error) {
	session, ok := s.sessions.Get(sessionID)
	if !ok {
		return domain.Summary{}, domain.ErrSessionNotFound
	}
	result, err := session.Result()
	if err != nil {
		return domain.Summary{}, err
	}

	// A finish observed only by Done (no service call saw it) is recorded here.
	if claimed, ok := session.claimResult(); ok {
		return s.recordResult(ctx, sessionID, claimed), nil
	}

	s.mu.Lock()
	summary, ok := s.summaries[sessionID]
	s.mu.Unlock()
	if ok {
		return summary, nil
	}

	high, err := s.scores.Get(ctx)
	if err != nil {
		return domain.Summary{}, err
	}
	return domain.Summary{Result: result, HighScore: high}, nil
}

// HighScore returns the persisted best score.
func (s *QuizService) HighScore(ctx context.Context) (int, error) {
	return s.scores.Get(ctx)
}

// End stops the countdown of a session and drops it.
func (s *QuizService) End(_ context.Context, sessionID string) {
	s.stopCountdown(sessionID)
	s.sessions.Delete(sessionID)

	s.mu.Lock()
	delete(s.summaries, sessionID)
	s.mu.Unlock()
}

// Sweep ends sessions that finished more than the retention ago and active
// sessions idle for longer than the idle timeout. It reports how many it removed.
func (s *QuizService) Sweep(ctx context.Context) int {
	now := s.now()
	removed := 0
	for _, session := range s.sessions.List() {
		finishedAt := session.FinishedAt()
		switch {
		case !finishedAt.IsZero() && now.Sub(finishedAt) >= s.retention:
		case finishedAt.IsZero() && now.Sub(session.LastActive()) >= s.idle:
		default:
			continue
		}
		s.End(ctx, session.ID())
		removed++
	}
	if removed > 0 {
		s.log.WithField("removed", removed).Debug("expired sessions swept")
	}
	return removed
}

// RunJanitor calls Sweep every interval until ctx is done.
func (s *QuizService) RunJanitor(ctx context.Context, every time.Duration) {
	if every <= 0 {
		every = time.Minute
	}
	ticker := time.NewTicker(every)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.Sweep(ctx)
		}
	}
}

func (s *QuizService) apply(ctx context.Context, sessionID, intent string, op func(*Session) (domain.View, error)) (domain.View, error) {
	session, ok := s.sessions.Get(sessionID)
	if !ok {
		return domain.View{}, domain.ErrSessionNotFound
	}

	before := session.Epoch()
	view, err := op(session)
	if err != nil {
		s.log.WithFields(logrus.Fields{
			"session": sessionID,
			"intent":  intent,
		}).WithError(err).Debug("intent rejected")
		return view, err
	}
	s.afterChange(ctx, session, before, view)
	return view, nil
}

// afterChange restarts the countdown when a question was finalized and
// records the result once the session finished.
func (s *QuizService) afterChange(ctx context.Context, session *Session, before int, view domain.View) {
	if view.Phase == domain.PhaseFinished {
		s.stopCountdown(session.ID())
		if result, ok := session.claimResult(); ok {
			s.recordResult(ctx, session.ID(), result)
		}
		return
	}
	if view.AnsweredCount != before {
		s.startCountdown(session)
	}
}

func (s *QuizService) startCountdown(session *Session) {
	if _, ok := s.sessions.Get(session.ID()); !ok {
		return
	}

	s.mu.Lock()
	countdown, ok := s.countdowns[session.ID()]
	if !ok {
		countdown = NewCountdown(s.interval, s.newTicker)
		s.countdowns[session.ID()] = countdown
	}
	s.mu.Unlock()

	epoch := session.Epoch()
	countdown.Restart(func() bool {
		view, applied := session.TickFor(epoch)
		if !applied {
			return false
		}
		if view.Phase == domain.PhaseFinished || view.AnsweredCount != epoch {
			// The countdown expired and finalized a question.
			s.afterChange(context.Background(), session, epoch, view)
			return false
		}
		return true
	})
}

func (s *QuizService) stopCountdown(sessionID string) {
	s.mu.Lock()
	countdown, ok := s.countdowns[sessionID]
	delete(s.countdowns, sessionID)
	s.mu.Unlock()
	if ok {
		countdown.Stop()
	}
}

func (s *QuizService) recordResult(ctx context.Context, sessionID string, result domain.Result) domain.Summary {
	s.scoreMu.Lock()
	high, improved, err := RecordHighScore(ctx, s.scores, result.FinalScore)
	s.scoreMu.Unlock()

	log := s.log.WithFields(logrus.Fields{
		"session": sessionID,
		"score":   result.FinalScore,
		"total":   result.Total,
	})
	if err != nil {
		log.WithError(err).Error("high score not recorded")
		high = result.FinalScore
	}

	summary := domain.Summary{Result: result, HighScore: high, NewHighScore: improved}
	s.mu.Lock()
	s.summaries[sessionID] = summary
	s.mu.Unlock()

	log.WithField("highScore", high).Info("quiz session finished")
	return summary
}
