package logging

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// GormAdapter пишет логи gorm в slog. SQL-запросы идут на уровне Debug,
// медленные - на Warn.
type GormAdapter struct {
	logger        *slog.Logger
	slowThreshold time.Duration
}

func NewGormAdapter(logger *slog.Logger, slowThreshold time.Duration) *GormAdapter {
	return &GormAdapter{logger: logger, slowThreshold: slowThreshold}
}

// LogMode игнорируется, уровень задает slog.
func (a *GormAdapter) LogMode(gormlogger.LogLevel) gormlogger.Interface { return a }

func (a *GormAdapter) Info(ctx context.Context, msg string, data ...any) {
	a.logger.DebugContext(ctx, msg, "data", data)
}

func (a *GormAdapter) Warn(ctx context.Context, msg string, data ...any) {
	a.logger.WarnContext(ctx, msg, "data", data)
}

func (a *GormAdapter) Error(ctx context.Context, msg string, data ...any) {
	a.logger.ErrorContext(ctx, msg, "data", data)
}

func (a *GormAdapter) Trace(ctx context.Context, begin time.Time, fc func() (string, int64), err error) {
	elapsed := time.Since(begin)
	switch {
	case err != nil && !errors.Is(err, gorm.ErrRecordNotFound):
		sql, rows := fc()
		a.logger.ErrorContext(ctx, "query failed", "sql", sql, "rows", rows, "elapsed", elapsed, "error", err)
	case a.slowThreshold > 0 && elapsed > a.slowThreshold:
		sql, rows := fc()
		a.logger.WarnContext(ctx, "slow query", "sql", sql, "rows", rows, "elapsed", elapsed)
	case a.logger.Enabled(ctx, slog.LevelDebug):
		sql, rows := fc()
		a.logger.DebugContext(ctx, "query", "sql", sql, "rows", rows, "elapsed", elapsed)
	}
}
