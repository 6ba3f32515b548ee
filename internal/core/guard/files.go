package guard

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/gabriel-vasile/mimetype"

	"github.com/Lin-Jiong-HDU/actionguard/internal/core/security"
)

// RequestRead reads a file. Sensitive files and system locations are
// refused; secrets found in the content are masked before it is returned.
func (g *Guard) RequestRead(ctx context.Context, principal, path string) Outcome {
	return g.guarded(ctx, principal, ActionRead, func(o Outcome) Outcome {
		if o, limited := g.rateLimited(ctx, o, principal, g.fileLimiter); limited {
			return o
		}

		c := g.security.ClassifyPath(path, security.ModeRead)
		o.Level = c.Level
		if !c.Allowed {
			g.record(ctx, principal, EventReadBlocked, map[string]any{"path": path, "reason": c.Reason})
			return g.fail(o, PathBlocked, c.Reason, "")
		}

		info, err := os.Stat(c.Path)
		if err != nil {
			return g.ioFailure(ctx, o, principal, "read", c.Path, err)
		}
		if info.IsDir() {
			g.record(ctx, principal, EventIOFailure, map[string]any{"op": "read", "path": c.Path, "error": "is a directory"})
			return g.fail(o, IOFailure, fmt.Sprintf("%s is a directory", c.Path), "use list to see its entries")
		}
		if info.Size() > g.opts.MaxReadBytes {
			g.record(ctx, principal, EventIOFailure, map[string]any{
				"op":    "read",
				"path":  c.Path,
				"error": "file too large",
				"bytes": info.Size(),
			})
			return g.fail(o, IOFailure,
				fmt.Sprintf("file is %d bytes, the limit is %d", info.Size(), g.opts.MaxReadBytes), "")
		}

		if o, ok := g.reserve(ctx, o, principal, g.fileLimiter); !ok {
			return o
		}
		data, err := os.ReadFile(c.Path)
		if err != nil {
			return g.ioFailure(ctx, o, principal, "read", c.Path, err)
		}

		payload := &Payload{Path: c.Path, Bytes: len(data)}
		mtype := mimetype.Detect(data)
		payload.MIME = mtype.String()

		if !isText(mtype) {
			payload.Warning = "binary content withheld"
			g.record(ctx, principal, EventFileRead, map[string]any{"path": c.Path, "bytes": len(data), "mime": payload.MIME})
			return g.succeed(o, payload)
		}

		text := string(data)
		if d := g.scanner.Detect(text); d.HasSensitive {
			payload.Content = g.scanner.Mask(text)
			payload.Masked = true
			payload.Warning = fmt.Sprintf("sensitive data was masked: %s", strings.Join(d.Kinds(), ", "))
			g.record(ctx, principal, EventSensitiveMasked, map[string]any{"path": c.Path, "kinds": d.Kinds()})
		} else {
			payload.Content = text
		}
		g.record(ctx, principal, EventFileRead, map[string]any{"path": c.Path, "bytes": len(data), "mime": payload.MIME})
		return g.succeed(o, payload)
	})
}

func isText(m *mimetype.MIME) bool {
	for ; m != nil; m = m.Parent() {
		if m.Is("text/plain") {
			return true
		}
	}
	return false
}

// RequestList lists a directory under read policy. Entries that name
// sensitive files are marked and every name is masked.
func (g *Guard) RequestList(ctx context.Context, principal, path string) Outcome {
	return g.guarded(ctx, principal, ActionList, func(o Outcome) Outcome {
		if o, limited := g.rateLimited(ctx, o, principal, g.fileLimiter); limited {
			return o
		}

		c := g.security.ClassifyPath(path, security.ModeRead)
		o.Level = c.Level
		if !c.Allowed {
			g.record(ctx, principal, EventReadBlocked, map[string]any{"path": path, "reason": c.Reason})
			return g.fail(o, PathBlocked, c.Reason, "")
		}

		if o, ok := g.reserve(ctx, o, principal, g.fileLimiter); !ok {
			return o
		}
		entries, err := os.ReadDir(c.Path)
		if err != nil {
			return g.ioFailure(ctx, o, principal, "list", c.Path, err)
		}

		names := make([]string, 0, len(entries))
		for _, e := range entries {
			name := g.scanner.Mask(e.Name())
			if e.IsDir() {
				name += "/"
			}
			if ec := g.security.ClassifyPath(filepath.Join(c.Path, e.Name()), security.ModeRead); !ec.Allowed {
				name += " (restricted)"
			}
			names = append(names, name)
		}
		sort.Strings(names)

		g.record(ctx, principal, EventDirListed, map[string]any{"path": c.Path, "entries": len(names)})
		return g.succeed(o, &Payload{Path: c.Path, Entries: names})
	})
}

// RequestWrite writes content to path after confirmation. Content holding
// secrets raises the tier to critical.
func (g *Guard) RequestWrite(ctx context.Context, principal, path, content string, opts RequestOptions) Outcome {
	return g.guarded(ctx, principal, ActionWrite, func(o Outcome) Outcome {
		if o, limited := g.rateLimited(ctx, o, principal, g.fileLimiter); limited {
			return o
		}

		c, _ := g.security.ClassifyWrite(path, content)
		o.Level = c.Level
		if !c.Allowed {
			g.record(ctx, principal, EventWriteBlocked, map[string]any{"path": path, "reason": c.Reason})
			return g.fail(o, PathBlocked, c.Reason, "")
		}

		pa := &pendingAction{action: ActionWrite, level: c.Level, requested: path, path: c.Path, content: content, opts: opts}
		o, state := g.confirmAction(ctx, o, principal, pa, c.Reason)
		if state != confirmed {
			return o
		}
		return g.performWrite(ctx, o, principal, pa)
	})
}

func (g *Guard) performWrite(ctx context.Context, o Outcome, principal string, pa *pendingAction) Outcome {
	if o, ok := g.reserve(ctx, o, principal, g.fileLimiter); !ok {
		return o
	}
	if err := os.MkdirAll(filepath.Dir(pa.path), 0755); err != nil {
		return g.ioFailure(ctx, o, principal, "write", pa.path, err)
	}
	if err := os.WriteFile(pa.path, []byte(pa.content), 0644); err != nil {
		return g.ioFailure(ctx, o, principal, "write", pa.path, err)
	}
	g.record(ctx, principal, EventFileWritten, map[string]any{
		"path":  pa.path,
		"bytes": len(pa.content),
		"level": string(pa.level),
	})
	return g.succeed(o, &Payload{Path: pa.path, Bytes: len(pa.content)})
}

// RequestDelete removes a file. Deletes always need critical confirmation,
// whatever opts says.
func (g *Guard) RequestDelete(ctx context.Context, principal, path string, opts RequestOptions) Outcome {
	return g.guarded(ctx, principal, ActionDelete, func(o Outcome) Outcome {
		if o, limited := g.rateLimited(ctx, o, principal, g.fileLimiter); limited {
			return o
		}

		c := g.security.ClassifyDelete(path)
		o.Level = c.Level
		if !c.Allowed {
			g.record(ctx, principal, EventDeleteBlocked, map[string]any{"path": path, "reason": c.Reason})
			return g.fail(o, PathBlocked, c.Reason, "")
		}

		info, err := os.Lstat(c.Path)
		if err != nil {
			return g.ioFailure(ctx, o, principal, "delete", c.Path, err)
		}
		if info.IsDir() {
			g.record(ctx, principal, EventIOFailure, map[string]any{"op": "delete", "path": c.Path, "error": "is a directory"})
			return g.fail(o, IOFailure, fmt.Sprintf("%s is a directory, only files can be deleted", c.Path), "")
		}

		pa := &pendingAction{action: ActionDelete, level: c.Level, requested: path, path: c.Path, opts: opts}
		o, state := g.confirmAction(ctx, o, principal, pa, c.Reason)
		if state != confirmed {
			return o
		}
		return g.performDelete(ctx, o, principal, pa)
	})
}

func (g *Guard) performDelete(ctx context.Context, o Outcome, principal string, pa *pendingAction) Outcome {
	if o, ok := g.reserve(ctx, o, principal, g.fileLimiter); !ok {
		return o
	}
	if err := os.Remove(pa.path); err != nil {
		return g.ioFailure(ctx, o, principal, "delete", pa.path, err)
	}
	g.record(ctx, principal, EventFileDeleted, map[string]any{"path": pa.path, "level": string(pa.level)})
	return g.succeed(o, &Payload{Path: pa.path})
}

// reclassify checks a parked write or delete again before it runs. The
// path may have been swapped for a symlink while the challenge was open,
// so the action is refused unless it still resolves to the same target
// at the same tier.
func (g *Guard) reclassify(ctx context.Context, o Outcome, principal string, pa *pendingAction) (Outcome, bool) {
	var c security.Classification
	event := EventWriteBlocked
	if pa.action == ActionDelete {
		c = g.security.ClassifyDelete(pa.requested)
		event = EventDeleteBlocked
	} else {
		c, _ = g.security.ClassifyWrite(pa.requested, pa.content)
	}

	reason := c.Reason
	switch {
	case !c.Allowed:
	case c.Path != pa.path:
		reason = fmt.Sprintf("%s now resolves to %s", pa.requested, c.Path)
	case c.Level != pa.level:
		reason = fmt.Sprintf("%s changed from %s to %s since it was confirmed", pa.path, pa.level, c.Level)
	default:
		return o, true
	}
	g.record(ctx, principal, event, map[string]any{"path": pa.requested, "reason": reason})
	return g.fail(o, PathBlocked, reason, "send the request again"), false
}

func (g *Guard) ioFailure(ctx context.Context, o Outcome, principal, op, path string, err error) Outcome {
	g.record(ctx, principal, EventIOFailure, map[string]any{"op": op, "path": path, "error": err})
	remediation := ""
	if os.IsNotExist(err) {
		remediation = "check that the path exists"
	} else if os.IsPermission(err) {
		remediation = "check the file permissions"
	}
	return g.fail(o, IOFailure, fmt.Sprintf("%s %s: %v", op, path, err), remediation)
}
