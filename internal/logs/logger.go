// Package logs builds the process logger: a text handler on the terminal
// fanned out with the systemd journal, behind a handler that masks secrets.
package logs

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path"
	"strings"
	"time"

	slogmulti "github.com/samber/slog-multi"
	slogjournal "github.com/systemd/slog-journal"
)

// Masker redacts sensitive substrings.
type Masker interface {
	Mask(text string) string
}

// Options configure New.
type Options struct {
	Level   string
	Journal bool
	Masker  Masker
}

// ParseLevel maps a level name to a slog level, defaulting to info.
func ParseLevel(name string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// New creates the logger. Under a systemd service only the journal is used.
func New(writer io.Writer, opts Options) *slog.Logger {
	level := new(slog.LevelVar)
	level.Set(ParseLevel(opts.Level))

	var handlers []slog.Handler

	var terminalHandler slog.Handler
	if !isSystemdService() {
		terminalHandler = slog.NewTextHandler(writer, &slog.HandlerOptions{Level: level})
		handlers = append(handlers, terminalHandler)
	}

	if opts.Journal {
		journalHandler, err := slogjournal.NewHandler(&slogjournal.Options{
			Level: level,
			ReplaceGroup: func(key string) string {
				return toJournalKey(key)
			},
			ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
				a.Key = toJournalKey(a.Key)
				return a
			},
		})
		if err != nil {
			if terminalHandler != nil && terminalHandler.Enabled(context.Background(), slog.LevelDebug) {
				record := slog.NewRecord(time.Now(), slog.LevelDebug, "systemd journal unavailable", 0)
				record.Add("error", err)
				_ = terminalHandler.Handle(context.Background(), record)
			}
		} else {
			handlers = append(handlers, journalHandler)
		}
	}

	if len(handlers) == 0 {
		handlers = append(handlers, slog.NewTextHandler(writer, &slog.HandlerOptions{Level: level}))
	}

	var h slog.Handler = slogmulti.Fanout(handlers...)
	if opts.Masker != nil {
		h = &Handler{Handler: h, masker: opts.Masker}
	}
	return slog.New(h)
}

func toJournalKey(str string) string {
	str = strings.ToUpper(str)
	str = strings.Map(func(r rune) rune {
		if r >= 'A' && r <= 'Z' ||
			r >= '0' && r <= '9' {
			return r
		}
		return '_'
	}, str)
	return str
}

func isSystemdService() bool {
	content, err := os.ReadFile("/proc/self/cgroup")
	if err != nil {
		return false
	}
	parts := strings.Split(strings.TrimSpace(string(content)), ":")
	if len(parts) < 3 {
		return false
	}
	return strings.HasSuffix(path.Dir(parts[2]), ".service")
}
