package pg

import (
	"context"
	"strings"

	"instapilot/internal/platform/logger"

	"github.com/rs/zerolog"
)

// QueryEvent describes one finished statement
type QueryEvent struct {
	SQL       string
	Args      any
	ElapsedUS int64
	Err       error
	Slow      bool
}

// QueryTracer receives every statement the store adapter runs
type QueryTracer interface {
	OnQuery(ctx context.Context, ev QueryEvent)
}

// Tracer logs statements on root. It pins its own level so enabling
// PG_LOG_SQL works whatever the process log level is
func Tracer(root logger.Logger) QueryTracer {
	return &logTracer{log: root.Level(zerolog.InfoLevel).With().Str("component", "pg").Logger()}
}

type logTracer struct{ log logger.Logger }

func (l *logTracer) OnQuery(_ context.Context, ev QueryEvent) {
	e := l.log.Info()
	if ev.Slow {
		e = l.log.Warn()
	}
	e.Float64("elapsed_ms", float64(ev.ElapsedUS)/1000).
		Bool("slow", ev.Slow).
		Str("sql", strings.Join(strings.Fields(ev.SQL), " ")).
		Interface("args", ev.Args).
		Err(ev.Err).
		Msg("pg query")
}
