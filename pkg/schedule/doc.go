// Package schedule computes run times for recurring maintenance, such as
// the data directory sweep.
//
// Schedules come from Every for fixed intervals or Parse for cron
// expressions and descriptors:
//
//	s, err := schedule.Parse("0 3 * * *")
//	next := s.Next(time.Now())
package schedule
