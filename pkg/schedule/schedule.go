package schedule

import (
	"fmt"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
)

// Schedule computes the next run time after from.
type Schedule interface {
	Next(from time.Time) time.Time
}

// everySchedule runs at fixed intervals.
type everySchedule struct {
	interval time.Duration
}

// Every creates a schedule that runs at fixed intervals.
func Every(d time.Duration) Schedule {
	return &everySchedule{interval: d}
}

func (s *everySchedule) Next(from time.Time) time.Time {
	return from.Add(s.interval)
}

// cronSchedule wraps a cron expression.
type cronSchedule struct {
	schedule cron.Schedule
}

func (s *cronSchedule) Next(from time.Time) time.Time {
	return s.schedule.Next(from)
}

var parser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)

// Parse reads a five-field cron expression or a descriptor such as
// "@daily" or "@every 30m". A bare duration like "1h" is accepted as
// shorthand for "@every 1h".
func Parse(expr string) (Schedule, error) {
	expr = strings.TrimSpace(expr)
	if expr == "" {
		return nil, fmt.Errorf("schedule: empty expression")
	}
	if d, err := time.ParseDuration(expr); err == nil {
		if d <= 0 {
			return nil, fmt.Errorf("schedule: interval must be positive, got %s", d)
		}
		return Every(d), nil
	}
	s, err := parser.Parse(expr)
	if err != nil {
		return nil, fmt.Errorf("schedule: invalid expression %q: %w", expr, err)
	}
	return &cronSchedule{schedule: s}, nil
}
