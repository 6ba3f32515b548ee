package confirm

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"golang.org/x/term"

	"github.com/Lin-Jiong-HDU/actionguard/internal/core/security"
)

// BlockingConfirmer prompts on a reader/writer pair and waits for the answer.
// It is only valid for a single local caller.
type BlockingConfirmer struct {
	mu      sync.Mutex
	input   *bufio.Scanner
	output  io.Writer
	tty     bool
	digits  int
	newCode func(digits int) (string, error)
}

// NewBlockingConfirmer creates a confirmer on stdin/stdout.
// Passing non-nil input or output injects them instead and skips the terminal check.
func NewBlockingConfirmer(input io.Reader, output io.Writer, digits int) *BlockingConfirmer {
	tty := true
	if input == nil {
		input = os.Stdin
		tty = term.IsTerminal(int(os.Stdin.Fd()))
	}
	if output == nil {
		output = os.Stdout
	}
	if digits <= 0 {
		digits = DefaultCodeDigits
	}
	return &BlockingConfirmer{
		input:   bufio.NewScanner(input),
		output:  output,
		tty:     tty,
		digits:  digits,
		newCode: NewCode,
	}
}

func (b *BlockingConfirmer) Blocking() bool { return true }

// Confirm prompts for the tier of req. Blocked requests are denied without prompting.
func (b *BlockingConfirmer) Confirm(ctx context.Context, req Request) (Result, error) {
	if verdict, done := decideWithoutPrompt(req.Level); done {
		return Result{Verdict: verdict}, nil
	}
	if !b.tty {
		return Result{Verdict: VerdictDenied}, ErrNotInteractive
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return Result{Verdict: VerdictDenied}, err
	}

	b.describe(req)
	if req.Level == security.LevelCritical {
		return b.confirmCritical()
	}
	return b.confirmWarning()
}

func (b *BlockingConfirmer) describe(req Request) {
	icon := "⚠️"
	if req.Level == security.LevelCritical {
		icon = "🚨"
	}
	fmt.Fprintf(b.output, "\n%s  This action needs your confirmation (%s)\n\n", icon, req.Level)
	fmt.Fprintf(b.output, "Action: %s\n", req.Action)
	if req.Target != "" {
		fmt.Fprintf(b.output, "Target: %s\n", req.Target)
	}
	if req.Reason != "" {
		fmt.Fprintf(b.output, "Reason: %s\n", req.Reason)
	}
}

func (b *BlockingConfirmer) confirmWarning() (Result, error) {
	fmt.Fprintf(b.output, "\n[y] proceed  [n] cancel\n> ")

	for b.input.Scan() {
		choice := strings.ToLower(strings.TrimSpace(b.input.Text()))

		switch choice {
		case "y", "yes", "s", "sim":
			fmt.Fprintln(b.output, "✓ Confirmed")
			return Result{Verdict: VerdictApproved}, nil
		case "n", "no", "nao", "não", "":
			fmt.Fprintln(b.output, "✗ Cancelled")
			return Result{Verdict: VerdictDenied}, nil
		default:
			fmt.Fprintf(b.output, "Invalid choice, enter y/n: ")
		}
	}

	if err := b.input.Err(); err != nil {
		return Result{Verdict: VerdictDenied}, err
	}
	return Result{Verdict: VerdictDenied}, nil
}

func (b *BlockingConfirmer) confirmCritical() (Result, error) {
	code, err := b.newCode(b.digits)
	if err != nil {
		return Result{Verdict: VerdictDenied}, err
	}
	fmt.Fprintf(b.output, "\nType the code %s to proceed, anything else cancels\n> ", code)

	if !b.input.Scan() {
		if err := b.input.Err(); err != nil {
			return Result{Verdict: VerdictDenied}, err
		}
		return Result{Verdict: VerdictDenied}, nil
	}
	if !matches(b.input.Text(), code) {
		fmt.Fprintln(b.output, "✗ Code did not match, cancelled")
		return Result{Verdict: VerdictDenied}, nil
	}
	fmt.Fprintln(b.output, "✓ Confirmed")
	return Result{Verdict: VerdictApproved}, nil
}
