package logger

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"strings"
	"sync"
	"time"
)

const (
	ansiReset  = "\033[0m"
	ansiBold   = "\033[1m"
	ansiRed    = "\033[31m"
	ansiYellow = "\033[33m"
	ansiBlue   = "\033[34m"
	ansiCyan   = "\033[36m"
	ansiGray   = "\033[90m"
)

// prettyHandler renders one colored line per record:
//
//	[2006-01-02 15:04:05] INFO  quantizing model model=tiny.safetensors
//
// Handler attributes are formatted once, when attached. Attribute groups
// are flattened into dotted key prefixes rather than nested.
type prettyHandler struct {
	level  slog.Leveler
	prefix string // dotted group prefix for subsequent attr keys
	attrs  string // preformatted attrs from WithAttrs
	mu     *sync.Mutex
	w      io.Writer
}

func newPrettyHandler(w io.Writer, level slog.Leveler) *prettyHandler {
	return &prettyHandler{level: level, mu: &sync.Mutex{}, w: w}
}

func (h *prettyHandler) Enabled(_ context.Context, level slog.Level) bool {
	min := slog.LevelInfo
	if h.level != nil {
		min = h.level.Level()
	}
	return level >= min
}

func (h *prettyHandler) Handle(_ context.Context, r slog.Record) error {
	var b strings.Builder
	b.WriteString(ansiGray)
	b.WriteByte('[')
	b.WriteString(r.Time.Format(time.DateTime))
	b.WriteByte(']')
	b.WriteString(ansiReset)
	b.WriteByte(' ')
	b.WriteString(levelColor(r.Level))
	b.WriteString(ansiBold)
	fmt.Fprintf(&b, "%-5s", r.Level.String())
	b.WriteString(ansiReset)
	b.WriteByte(' ')
	b.WriteString(r.Message)

	attrs := h.attrs
	r.Attrs(func(a slog.Attr) bool {
		attrs = appendAttrText(attrs, a, h.prefix)
		return true
	})
	if attrs != "" {
		b.WriteByte(' ')
		b.WriteString(ansiCyan)
		b.WriteString(attrs)
		b.WriteString(ansiReset)
	}
	b.WriteByte('\n')

	h.mu.Lock()
	defer h.mu.Unlock()
	_, err := io.WriteString(h.w, b.String())
	return err
}

func (h *prettyHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	nh := *h
	for _, a := range attrs {
		nh.attrs = appendAttrText(nh.attrs, a, h.prefix)
	}
	return &nh
}

func (h *prettyHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	nh := *h
	nh.prefix = name
	if h.prefix != "" {
		nh.prefix = h.prefix + "." + name
	}
	return &nh
}

// appendAttrText appends "key=value" to s, space-separated. String values
// containing whitespace or quotes are quoted; everything else prints bare.
func appendAttrText(s string, a slog.Attr, prefix string) string {
	key := a.Key
	if prefix != "" {
		key = prefix + "." + key
	}

	var val string
	switch a.Value.Kind() {
	case slog.KindString:
		val = a.Value.String()
		if strings.ContainsAny(val, " \t\n\"") {
			val = strconv.Quote(val)
		}
	case slog.KindTime:
		val = a.Value.Time().Format(time.RFC3339)
	case slog.KindGroup:
		var inner string
		for _, ga := range a.Value.Group() {
			inner = appendAttrText(inner, ga, "")
		}
		val = "{" + inner + "}"
	default:
		val = fmt.Sprint(a.Value.Any())
	}

	if s != "" {
		s += " "
	}
	return s + key + "=" + val
}

func levelColor(level slog.Level) string {
	switch {
	case level >= slog.LevelError:
		return ansiRed
	case level >= slog.LevelWarn:
		return ansiYellow
	case level >= slog.LevelInfo:
		return ansiBlue
	default:
		return ansiGray
	}
}
