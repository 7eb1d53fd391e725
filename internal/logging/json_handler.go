package logging

import (
	"io"
	"log/slog"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// JSON lines use "ts" for an RFC3339 UTC timestamp, a lowercase level and a
// short file:line source. Grouped attrs are left alone.
var jsonRewrites = map[string]func(slog.Attr) slog.Attr{
	slog.TimeKey: func(a slog.Attr) slog.Attr {
		if a.Value.Kind() == slog.KindTime {
			return slog.String("ts", a.Value.Time().UTC().Format(time.RFC3339))
		}
		a.Key = "ts"
		return a
	},
	slog.LevelKey: func(a slog.Attr) slog.Attr {
		return slog.String(a.Key, strings.ToLower(a.Value.String()))
	},
	slog.SourceKey: func(a slog.Attr) slog.Attr {
		if src, ok := a.Value.Any().(*slog.Source); ok && src != nil {
			return slog.String(a.Key, filepath.Base(src.File)+":"+strconv.Itoa(src.Line))
		}
		return a
	},
}

func newJSONHandler(w io.Writer, lvl *slog.LevelVar, addSource bool) slog.Handler {
	return slog.NewJSONHandler(w, &slog.HandlerOptions{
		Level:     lvl,
		AddSource: addSource,
		ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
			if rewrite, ok := jsonRewrites[a.Key]; ok && len(groups) == 0 {
				return rewrite(a)
			}
			return a
		},
	})
}
