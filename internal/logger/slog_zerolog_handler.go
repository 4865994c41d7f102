package logger

import (
	"context"
	"log/slog"

	"github.com/rs/zerolog"
)

// NewSlog bridges a zerolog logger into the *slog.Logger the rest of the
// codebase takes as a dependency.
func NewSlog(zl *zerolog.Logger) *slog.Logger {
	return slog.New(&bridge{zl: zl})
}

// bridge implements slog.Handler on top of zerolog. Groups flatten into
// dot-prefixed keys; zerolog has no native grouping.
type bridge struct {
	zl     *zerolog.Logger
	prefix string
	preset []slog.Attr
}

func (b *bridge) Enabled(_ context.Context, l slog.Level) bool {
	return toZerologLevel(l) >= b.zl.GetLevel()
}

func (b *bridge) Handle(ctx context.Context, r slog.Record) error {
	zl := FromContext(ctx, b.zl)
	ev := zl.WithLevel(toZerologLevel(r.Level))

	for _, a := range b.preset {
		b.emit(ev, a)
	}
	r.Attrs(func(a slog.Attr) bool {
		b.emit(ev, a)
		return true
	})

	ev.Msg(r.Message)
	return nil
}

func (b *bridge) WithAttrs(attrs []slog.Attr) slog.Handler {
	next := *b
	next.preset = append(append([]slog.Attr(nil), b.preset...), attrs...)
	return &next
}

func (b *bridge) WithGroup(name string) slog.Handler {
	if name == "" {
		return b
	}
	next := *b
	next.prefix = b.prefix + name + "."
	return &next
}

func (b *bridge) emit(ev *zerolog.Event, a slog.Attr) {
	key := b.prefix + a.Key
	v := a.Value.Resolve()
	switch v.Kind() {
	case slog.KindString:
		ev.Str(key, v.String())
	case slog.KindInt64:
		ev.Int64(key, v.Int64())
	case slog.KindUint64:
		ev.Uint64(key, v.Uint64())
	case slog.KindFloat64:
		ev.Float64(key, v.Float64())
	case slog.KindBool:
		ev.Bool(key, v.Bool())
	case slog.KindDuration:
		ev.Dur(key, v.Duration())
	case slog.KindTime:
		ev.Time(key, v.Time())
	default:
		ev.Interface(key, v.Any())
	}
}

func toZerologLevel(l slog.Level) zerolog.Level {
	switch {
	case l < slog.LevelInfo:
		return zerolog.DebugLevel
	case l < slog.LevelWarn:
		return zerolog.InfoLevel
	case l < slog.LevelError:
		return zerolog.WarnLevel
	default:
		return zerolog.ErrorLevel
	}
}
