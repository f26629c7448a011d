package jobs

import (
	"context"
	"log/slog"
	"time"

	"github.com/UkralStul/feedback-board-service/internal/logging"
)

// Schedule - еженедельный момент запуска в заданном часовом поясе.
type Schedule struct {
	Weekday  time.Weekday
	Hour     int
	Minute   int
	Location *time.Location
}

// Next возвращает ближайший момент запуска строго после after.
func (s Schedule) Next(after time.Time) time.Time {
	loc := s.Location
	if loc == nil {
		loc = time.UTC
	}
	local := after.In(loc)
	days := (int(s.Weekday) - int(local.Weekday()) + 7) % 7
	next := time.Date(local.Year(), local.Month(), local.Day()+days, s.Hour, s.Minute, 0, 0, loc)
	if !next.After(local) {
		next = time.Date(local.Year(), local.Month(), local.Day()+days+7, s.Hour, s.Minute, 0, 0, loc)
	}
	return next
}

// RunFunc - задача, запускаемая планировщиком.
type RunFunc func(ctx context.Context, now time.Time) (int, error)

// Scheduler запускает задачу по расписанию и по требованию.
type Scheduler struct {
	schedule Schedule
	run      RunFunc
	trigger  chan struct{}
	now      func() time.Time
	log      *slog.Logger
}

func NewScheduler(schedule Schedule, run RunFunc) *Scheduler {
	return &Scheduler{
		schedule: schedule,
		run:      run,
		trigger:  make(chan struct{}, 1),
		now:      time.Now,
		log:      logging.Module("scheduler"),
	}
}

// TriggerNow просит выполнить задачу вне расписания. Повторные вызовы до
// запуска схлопываются в один.
func (s *Scheduler) TriggerNow() {
	select {
	case s.trigger <- struct{}{}:
	default:
	}
}

// Start блокируется до отмены ctx.
func (s *Scheduler) Start(ctx context.Context) {
	for {
		next := s.schedule.Next(s.now())
		s.log.Info("next digest run scheduled", "at", next)
		timer := time.NewTimer(time.Until(next))
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
		case <-s.trigger:
			timer.Stop()
		}
		s.fire(ctx)
	}
}

func (s *Scheduler) fire(ctx context.Context) {
	start := s.now()
	n, err := s.run(ctx, start)
	if err != nil {
		s.log.Error("scheduled run failed", "events", n, "took", time.Since(start), "error", err)
		return
	}
	s.log.Info("scheduled run finished", "events", n, "took", time.Since(start))
}
