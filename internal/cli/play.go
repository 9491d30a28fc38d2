package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/armtemiy/armlab/internal/presentation/tui"
	"github.com/armtemiy/armlab/pkg/domain"
)

// Wizard is the slice of the session manager the terminal wizard drives.
type Wizard interface {
	Start(ctx context.Context, sessionID string, caller domain.Caller) (*domain.View, error)
	Advance(ctx context.Context, sessionID string, caller domain.Caller, label, next string) (*domain.View, error)
	Back(ctx context.Context, sessionID string, caller domain.Caller) (*domain.View, error)
	Restart(ctx context.Context, sessionID string, caller domain.Caller) (*domain.View, error)
}

// PlayOptions configures Play.
type PlayOptions struct {
	SessionID string
	Caller    domain.Caller
	// Render turns view markdown into terminal output. Nil prints it raw.
	Render func(string) (string, error)
	Styler tui.Styler
}

const playHelp = "number: answer, b: back, r: restart, q: quit"

// Play runs the wizard over a line-oriented terminal until the user quits,
// backs out of the first question or input ends.
func Play(ctx context.Context, w Wizard, in io.Reader, out io.Writer, opts PlayOptions) error {
	if opts.SessionID == "" {
		opts.SessionID = "cli"
	}
	render := opts.Render
	if render == nil {
		render = func(md string) (string, error) { return md, nil }
	}

	view, err := w.Start(ctx, opts.SessionID, opts.Caller)
	if err != nil {
		return err
	}

	scanner := bufio.NewScanner(in)
	redraw := true
	for {
		if redraw {
			text, err := render(tui.ViewMarkdown(view))
			if err != nil {
				return err
			}
			fmt.Fprintln(out, text)
		}
		redraw = true
		fmt.Fprint(out, opts.Styler.Prompt("> "))

		if !scanner.Scan() {
			fmt.Fprintln(out)
			if err := scanner.Err(); err != nil && !errors.Is(err, ErrInterrupted) {
				return err
			}
			return nil
		}
		input := strings.TrimSpace(scanner.Text())

		var next *domain.View
		switch input {
		case "q", "quit", "exit":
			return nil
		case "b", "back":
			next, err = w.Back(ctx, opts.SessionID, opts.Caller)
			if errors.Is(err, domain.ErrExit) {
				return nil
			}
		case "r", "restart":
			next, err = w.Restart(ctx, opts.SessionID, opts.Caller)
		default:
			opt, ok := pickOption(view, input)
			if !ok {
				fmt.Fprintln(out, opts.Styler.Muted(playHelp))
				redraw = false
				continue
			}
			next, err = w.Advance(ctx, opts.SessionID, opts.Caller, opt.Label, opt.Next)
		}

		if errors.Is(err, domain.ErrNodeNotFound) {
			fmt.Fprintln(out, opts.Styler.Alert("broken tree: "+err.Error()+" (r to restart)"))
			redraw = false
			continue
		}
		if err != nil {
			return err
		}
		view = next
	}
}

func pickOption(view *domain.View, input string) (domain.Option, bool) {
	if view.Question == nil {
		return domain.Option{}, false
	}
	n, err := strconv.Atoi(input)
	if err != nil || n < 1 || n > len(view.Question.Options) {
		return domain.Option{}, false
	}
	return view.Question.Options[n-1], true
}
