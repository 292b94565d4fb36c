package terminal

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"timed-quiz/internal/app"
	"timed-quiz/internal/domain"
)

// frame is what a full redraw depends on; a change of the countdown alone only
// rewrites the timer line.
type frame struct {
	index     int
	answered  int
	selected  string
	phase     domain.Phase
	reviewing bool
}

func frameOf(view domain.View) frame {
	return frame{
		index:     view.CurrentIndex,
		answered:  view.AnsweredCount,
		selected:  view.SelectedOption,
		phase:     view.Phase,
		reviewing: view.Reviewing,
	}
}

type player struct {
	service *app.QuizService
	out     io.Writer

	sessionID   string
	updates     <-chan domain.View
	unsubscribe func()
	last        frame
	lastTime    int
	summarized  bool
}

// Run plays quizzes on a line based terminal until the user quits or in is
// exhausted.
func Run(ctx context.Context, service *app.QuizService, in io.Reader, out io.Writer) error {
	p := &player{service: service, out: out}
	if err := p.start(ctx); err != nil {
		return err
	}
	defer p.end()

	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(in)
		for scanner.Scan() {
			select {
			case lines <- strings.TrimSpace(scanner.Text()):
			case <-ctx.Done():
				return
			}
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case view, ok := <-p.updates:
			if !ok {
				p.updates = nil
				continue
			}
			p.show(ctx, view)
		case line, ok := <-lines:
			if !ok {
				return nil
			}
			quit, err := p.handle(ctx, line)
			if err != nil {
				return err
			}
			if quit {
				fmt.Fprintln(p.out, "Bye!")
				return nil
			}
		}
	}
}

func (p *player) start(ctx context.Context) error {
	view, err := p.service.Start(ctx)
	if err != nil {
		return err
	}
	updates, cancel, err := p.service.Subscribe(ctx, view.SessionID)
	if err != nil {
		p.service.End(ctx, view.SessionID)
		return err
	}
	p.sessionID = view.SessionID
	p.updates = updates
	p.unsubscribe = cancel
	p.summarized = false
	p.render(view)
	return nil
}

func (p *player) end() {
	if p.unsubscribe != nil {
		p.unsubscribe()
		p.unsubscribe = nil
	}
	if p.sessionID != "" {
		p.service.End(context.Background(), p.sessionID)
		p.sessionID = ""
	}
}

// handle applies one command line. It reports true when the user quits.
func (p *player) handle(ctx context.Context, line string) (bool, error) {
	var (
		view domain.View
		err  error
	)
	switch line {
	case "":
		return false, nil
	case "q":
		return true, nil
	case "r":
		p.end()
		return false, p.start(ctx)
	case "n":
		view, err = p.service.Next(ctx, p.sessionID)
	case "p":
		view, err = p.service.Previous(ctx, p.sessionID)
	case "s":
		view, err = p.service.Skip(ctx, p.sessionID)
	default:
		n, convErr := strconv.Atoi(line)
		if convErr != nil {
			fmt.Fprintln(p.out, "Unknown command. Use 1-9 to select, n next, p previous, s skip, r restart, q quit.")
			return false, nil
		}
		view, err = p.service.SelectIndex(ctx, p.sessionID, n-1)
	}

	switch {
	case errors.Is(err, domain.ErrNoSelection):
		fmt.Fprintln(p.out, "Select an option first, or press s to skip.")
	case errors.Is(err, domain.ErrOptionNotFound):
		fmt.Fprintf(p.out, "Choose an option between 1 and %d.\n", len(view.Options))
	case errors.Is(err, domain.ErrInvalidState):
		if view.Phase == domain.PhaseFinished {
			fmt.Fprintln(p.out, "The quiz is over. Press r to restart or q to quit.")
		}
	case err != nil:
		return false, err
	default:
		p.show(ctx, view)
	}
	return false, nil
}

// show renders view unless it was already drawn, and prints the summary once
// the session finished.
func (p *player) show(ctx context.Context, view domain.View) {
	if view.SessionID != p.sessionID {
		return
	}
	f := frameOf(view)
	switch {
	case f != p.last:
		p.render(view)
	case view.TimeRemainingSeconds != p.lastTime && view.Phase == domain.PhaseActive:
		p.lastTime = view.TimeRemainingSeconds
		fmt.Fprintf(p.out, "Time left: %ds\n", view.TimeRemainingSeconds)
	}

	if view.Phase != domain.PhaseFinished || p.summarized {
		return
	}
	summary, err := p.service.Summary(ctx, p.sessionID)
	if err != nil {
		fmt.Fprintf(p.out, "Result unavailable: %v\n", err)
		return
	}
	p.summarized = true
	renderSummary(p.out, summary)
}

func (p *player) render(view domain.View) {
	p.last = frameOf(view)
	p.lastTime = view.TimeRemainingSeconds
	if view.Phase == domain.PhaseFinished {
		return
	}

	fmt.Fprintln(p.out)
	fmt.Fprintf(p.out, "Question %d of %d\n", view.CurrentIndex+1, view.TotalQuestions)
	fmt.Fprintf(p.out, "Time left: %ds\n\n", view.TimeRemainingSeconds)
	fmt.Fprintln(p.out, view.QuestionText)
	for i, option := range view.Options {
		marker := " "
		if view.HasSelection && option == view.SelectedOption {
			marker = "*"
		}
		fmt.Fprintf(p.out, "%s %d. %s\n", marker, i+1, option)
	}
	if view.Recorded != nil {
		fmt.Fprintf(p.out, "\nAnswered: %s (press n or s to continue)\n", view.Recorded.Choice)
	}
	fmt.Fprintln(p.out)
}

func renderSummary(out io.Writer, summary domain.Summary) {
	fmt.Fprintln(out)
	fmt.Fprintln(out, "Quiz complete!")
	for i, answered := range summary.Answered {
		fmt.Fprintf(out, "\nQ%d: %s\n", i+1, answered.Question.Text)
		if answered.IsCorrect {
			fmt.Fprintf(out, "Your answer: %s. Correct!\n", answered.Choice)
			continue
		}
		fmt.Fprintf(out, "Your answer: %s. Correct answer was %s\n", answered.Choice, answered.Question.CorrectOption)
	}

	fmt.Fprintf(out, "\nFinal score: %d/%d\n", summary.FinalScore, summary.Total)
	if summary.NewHighScore {
		fmt.Fprintf(out, "New high score: %d\n", summary.HighScore)
	} else {
		fmt.Fprintf(out, "High score: %d\n", summary.HighScore)
	}
	fmt.Fprintln(out, "Press r to restart or q to quit.")
}
