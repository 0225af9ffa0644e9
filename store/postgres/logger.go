package postgres

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/lmittmann/tint"
	"github.com/pitabwire/util"
	glogger "gorm.io/gorm/logger"

	"github.com/pitabwire/lingua/store"
)

const (
	tintAttrCodeDuration = 214
	tintAttrCodeRows     = 12
	tintAttrCodeQuery    = 2
)

func newQueryLogger(ctx context.Context, opts *Options) glogger.Interface {
	return &queryLogger{
		logQueries:    opts.TraceQueries,
		slowThreshold: opts.SlowQueryThreshold,
		baseLogger:    util.Log(ctx).WithField("component", "store/postgres"),
	}
}

// queryLogger routes gorm output through the context logger.
type queryLogger struct {
	baseLogger    *util.LogEntry
	logQueries    bool
	slowThreshold time.Duration
}

func (l *queryLogger) LogMode(_ glogger.LogLevel) glogger.Interface {
	return l
}

func (l *queryLogger) Info(ctx context.Context, msg string, data ...any) {
	l.baseLogger.WithContext(ctx).Info(msg, data...)
}

func (l *queryLogger) Warn(ctx context.Context, msg string, data ...any) {
	l.baseLogger.WithContext(ctx).Warn(msg, data...)
}

func (l *queryLogger) Error(ctx context.Context, msg string, data ...any) {
	l.baseLogger.WithContext(ctx).Error(msg, data...)
}

// Trace logs failed statements always, slow ones at warn and the rest only
// when debug or query tracing is on.
func (l *queryLogger) Trace(ctx context.Context, begin time.Time, fc func() (string, int64), err error) {
	elapsed := time.Since(begin)
	baseLog := l.baseLogger.WithContext(ctx)

	queryIsSlow := l.slowThreshold != 0 && elapsed > l.slowThreshold
	queryErrored := err != nil && !store.ErrorIsNoRows(err)
	debug := baseLog.Enabled(ctx, slog.LevelDebug)
	traced := l.logQueries && baseLog.Enabled(ctx, slog.LevelInfo)

	if !queryErrored && !debug && !traced && !(queryIsSlow && baseLog.Enabled(ctx, slog.LevelWarn)) {
		return
	}

	sql, rows := fc()
	log := baseLog.With(
		tint.Attr(tintAttrCodeDuration, slog.Any("duration", elapsed.String())),
		tint.Attr(tintAttrCodeRows, slog.Any("rows", strconv.FormatInt(rows, 10))),
		tint.Attr(tintAttrCodeQuery, slog.Any("query", sql)),
	)
	defer log.Release()

	if queryIsSlow {
		log = log.WithField("slow_query", fmt.Sprintf(">= %v", l.slowThreshold))
	}

	switch {
	case queryErrored:
		log.WithError(err).Error("query failed")
	case debug:
		log.Debug("query executed")
	case traced:
		log.Info("query executed")
	case queryIsSlow:
		log.Warn("query is slow")
	}
}
