package palloc

import (
	"fmt"
	"io"
	"log/slog"
)

// Severities above slog.LevelError used for failures that need attention but never
// change what the allocator does.
const (
	LevelAlert    = slog.LevelError + 2
	LevelCritical = slog.LevelError + 4
)

// NewLogger returns a text logger writing to w that names LevelAlert and
// LevelCritical records ALERT and CRIT.
func NewLogger(w io.Writer, level slog.Leveler) *slog.Logger {
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{
		Level: level,
		ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
			if a.Key != slog.LevelKey || len(groups) > 0 {
				return a
			}
			if l, ok := a.Value.Any().(slog.Level); ok {
				a.Value = slog.StringValue(levelName(l))
			}
			return a
		},
	}))
}

func levelName(l slog.Level) string {
	switch {
	case l >= LevelCritical:
		return "CRIT"
	case l >= LevelAlert:
		return "ALERT"
	default:
		return l.String()
	}
}

func addrAttr(key string, b []byte) slog.Attr {
	return slog.String(key, fmt.Sprintf("%#x", addr(b)))
}
