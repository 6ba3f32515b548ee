package terminal

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/glamour"

	"github.com/Lin-Jiong-HDU/actionguard/internal/core/guard"
)

// Renderer renders outcomes as terminal markdown
type Renderer struct {
	term *glamour.TermRenderer
}

// NewRenderer creates a Renderer wrapping at width
func NewRenderer(width int) (*Renderer, error) {
	term, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(width),
	)
	if err != nil {
		return nil, err
	}

	return &Renderer{term: term}, nil
}

// Render renders markdown. A nil renderer returns the markdown unchanged.
func (r *Renderer) Render(markdown string) string {
	if r == nil || r.term == nil {
		return markdown
	}
	out, err := r.term.Render(markdown)
	if err != nil {
		// fall back to the raw text
		return markdown
	}
	return out
}

// FormatOutcome describes an outcome as markdown
func FormatOutcome(o guard.Outcome) string {
	var b strings.Builder

	switch {
	case o.Pending():
		fmt.Fprintf(&b, "**confirmation required** (%s)\n\n", o.Level)
		fmt.Fprintf(&b, "%s\n\n", o.Failure.Reason)
		if o.Failure.Remediation != "" {
			fmt.Fprintf(&b, "> %s\n", o.Failure.Remediation)
		}
		return b.String()

	case !o.OK:
		kind := guard.InternalError
		reason := "unknown failure"
		remediation := ""
		if o.Failure != nil {
			kind, reason, remediation = o.Failure.Kind, o.Failure.Reason, o.Failure.Remediation
		}
		fmt.Fprintf(&b, "✗ **%s**: %s\n", kind, reason)
		if remediation != "" {
			fmt.Fprintf(&b, "\n%s\n", remediation)
		}
		return b.String()
	}

	p := o.Payload
	if p == nil {
		p = &guard.Payload{}
	}
	switch o.Action {
	case guard.ActionRead:
		fmt.Fprintf(&b, "**%s** (%s, %d bytes)\n\n", p.Path, p.MIME, p.Bytes)
		if p.Content != "" {
			fmt.Fprintf(&b, "```\n%s\n```\n", strings.TrimRight(p.Content, "\n"))
		}
	case guard.ActionList:
		fmt.Fprintf(&b, "**%s**\n\n", p.Path)
		if len(p.Entries) == 0 {
			b.WriteString("_empty_\n")
		}
		for _, e := range p.Entries {
			fmt.Fprintf(&b, "- %s\n", e)
		}
	case guard.ActionWrite:
		fmt.Fprintf(&b, "✓ wrote %d bytes to `%s`\n", p.Bytes, p.Path)
	case guard.ActionDelete:
		fmt.Fprintf(&b, "✓ deleted `%s`\n", p.Path)
	case guard.ActionExecute:
		if p.Output != "" {
			fmt.Fprintf(&b, "```\n%s\n```\n\n", strings.TrimRight(p.Output, "\n"))
		}
		if p.Value != "" {
			fmt.Fprintf(&b, "→ `%s`\n\n", p.Value)
		}
		fmt.Fprintf(&b, "_finished in %s_\n", p.Duration.Round(time.Microsecond))
	}
	if p.Warning != "" {
		fmt.Fprintf(&b, "\n> ⚠️ %s\n", p.Warning)
	}
	return b.String()
}
