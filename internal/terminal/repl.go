// Package terminal is the interactive chat front end of the guard.
//
// The REPL uses challenge confirmation: a gated request prints its
// challenge and the next non-command line is taken as the reply.
package terminal

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/peterh/liner"

	"github.com/Lin-Jiong-HDU/actionguard/internal/core/guard"
)

// ErrUserExit means the user asked to leave the REPL
var ErrUserExit = errors.New("user requested exit")

// Guard is the part of the guard the REPL drives
type Guard interface {
	RequestRead(ctx context.Context, principal, path string) guard.Outcome
	RequestList(ctx context.Context, principal, path string) guard.Outcome
	RequestWrite(ctx context.Context, principal, path, content string, opts guard.RequestOptions) guard.Outcome
	RequestDelete(ctx context.Context, principal, path string, opts guard.RequestOptions) guard.Outcome
	RequestExecute(ctx context.Context, principal, code string, opts guard.RequestOptions) guard.Outcome
	Reply(ctx context.Context, principal, reply string) guard.Outcome
	HasPending(principal string) bool
	Remaining(principal string) int
	ResetAt(principal string) time.Time
}

// LineReader reads one line of input. *liner.State implements it.
type LineReader interface {
	Prompt(prompt string) (string, error)
	AppendHistory(item string)
	Close() error
}

// REPL is an interactive session for a single principal
type REPL struct {
	guard     Guard
	principal string
	renderer  *Renderer
	out       io.Writer
	// SkipWarnings waives warning-tier confirmations.
	SkipWarnings bool
}

// NewREPL creates a REPL acting as principal
func NewREPL(g Guard, principal string, out io.Writer) *REPL {
	return &REPL{
		guard:     g,
		principal: principal,
		out:       out,
	}
}

// SetRenderer sets the markdown renderer. Nil prints raw markdown.
func (r *REPL) SetRenderer(renderer *Renderer) {
	r.renderer = renderer
}

func (r *REPL) opts() guard.RequestOptions {
	return guard.RequestOptions{ChannelIsAsync: true, SkipConfirmation: r.SkipWarnings}
}

// ProcessInput handles one line of input
func (r *REPL) ProcessInput(ctx context.Context, input string) error {
	input = strings.TrimSpace(input)
	if input == "" {
		return nil
	}

	if r.guard.HasPending(r.principal) && !strings.HasPrefix(input, "/") {
		r.show(r.guard.Reply(ctx, r.principal, input))
		return nil
	}

	if !strings.HasPrefix(input, "/") {
		r.show(r.guard.RequestExecute(ctx, r.principal, input, r.opts()))
		return nil
	}

	shouldExit, err := r.HandleCommand(ctx, input)
	if err != nil {
		return err
	}
	if shouldExit {
		return ErrUserExit
	}
	return nil
}

// HandleCommand runs a slash command and reports whether to exit
func (r *REPL) HandleCommand(ctx context.Context, cmd string) (bool, error) {
	name, rest, _ := strings.Cut(strings.TrimSpace(cmd), " ")
	rest = strings.TrimSpace(rest)

	switch name {
	case "/exit", "/quit":
		fmt.Fprintln(r.out, "bye")
		return true, nil

	case "/help":
		r.DisplayHelp()

	case "/clear":
		fmt.Fprint(r.out, "\033[H\033[2J")

	case "/read", "/cat":
		if rest == "" {
			return false, fmt.Errorf("usage: %s <path>", name)
		}
		r.show(r.guard.RequestRead(ctx, r.principal, rest))

	case "/ls":
		if rest == "" {
			rest = "."
		}
		r.show(r.guard.RequestList(ctx, r.principal, rest))

	case "/write":
		path, content, ok := strings.Cut(rest, " ")
		if !ok || path == "" {
			return false, errors.New("usage: /write <path> <content>")
		}
		content = strings.ReplaceAll(content, `\n`, "\n")
		r.show(r.guard.RequestWrite(ctx, r.principal, path, content, r.opts()))

	case "/rm", "/delete":
		if rest == "" {
			return false, fmt.Errorf("usage: %s <path>", name)
		}
		r.show(r.guard.RequestDelete(ctx, r.principal, rest, r.opts()))

	case "/exec":
		if rest == "" {
			return false, errors.New("usage: /exec <code>")
		}
		r.show(r.guard.RequestExecute(ctx, r.principal, rest, r.opts()))

	case "/cancel":
		if !r.guard.HasPending(r.principal) {
			fmt.Fprintln(r.out, "nothing is waiting for confirmation")
			return false, nil
		}
		// any non-matching reply cancels
		r.show(r.guard.Reply(ctx, r.principal, "/cancel"))

	case "/limits":
		remaining := r.guard.Remaining(r.principal)
		fmt.Fprintf(r.out, "%d executions remaining", remaining)
		if remaining == 0 {
			fmt.Fprintf(r.out, " until %s", r.guard.ResetAt(r.principal).Local().Format("15:04:05"))
		}
		fmt.Fprintln(r.out)

	default:
		fmt.Fprintf(r.out, "unknown command: %s\n", name)
	}
	return false, nil
}

// DisplayHelp prints the command list
func (r *REPL) DisplayHelp() {
	help := `
Commands:
  /read <path>            read a file
  /ls [path]              list a directory
  /write <path> <text>    write a file (\n starts a new line)
  /rm <path>              delete a file
  /exec <code>            run code in the sandbox
  /cancel                 cancel the action waiting for confirmation
  /limits                 show the remaining execution quota
  /clear                  clear the screen
  /exit, /quit            leave

Any other line runs as code, or answers a pending confirmation.
`
	fmt.Fprintln(r.out, help)
}

func (r *REPL) show(o guard.Outcome) {
	fmt.Fprint(r.out, r.renderer.Render(FormatOutcome(o)))
}

// Run reads lines from lr until exit, EOF or Ctrl-C
func (r *REPL) Run(ctx context.Context, lr LineReader) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		prompt := ">> "
		if r.guard.HasPending(r.principal) {
			prompt = "?> "
		}
		input, err := lr.Prompt(prompt)
		if err != nil {
			switch {
			case errors.Is(err, io.EOF), errors.Is(err, liner.ErrPromptAborted):
				return nil
			default:
				return fmt.Errorf("read input: %w", err)
			}
		}
		if strings.TrimSpace(input) == "" {
			continue
		}
		// replies carry confirmation codes and stay out of history
		if !r.guard.HasPending(r.principal) {
			lr.AppendHistory(input)
		}

		if err := r.ProcessInput(ctx, input); err != nil {
			if errors.Is(err, ErrUserExit) {
				return nil
			}
			fmt.Fprintf(r.out, "error: %v\n", err)
		}
		fmt.Fprintln(r.out)
	}
}

// NewLineReader opens a liner prompt on the controlling terminal
func NewLineReader() LineReader {
	line := liner.NewLiner()
	line.SetCtrlCAborts(true)
	return line
}
