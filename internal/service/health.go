package service

import (
	"fmt"
	"time"

	"race-tracker/internal/domain"
)

// HealthMonitor folds a cycle's failure count into the race's error streak
// and trips the race off after Threshold consecutive failing cycles.
type HealthMonitor struct {
	Threshold int
}

func NewHealthMonitor(threshold int) HealthMonitor {
	return HealthMonitor{Threshold: threshold}
}

// Apply updates race in place and reports whether it was deactivated by this
// cycle. last_polled_at is always advanced.
func (m HealthMonitor) Apply(race *domain.TrackedRace, failures int, now time.Time) bool {
	polledAt := now
	race.LastPolledAt = &polledAt

	if failures == 0 {
		race.ConsecutiveErrors = 0
		race.LastError = nil
		return false
	}

	race.ConsecutiveErrors++
	msg := fmt.Sprintf("%d competitor(s) failed on this poll", failures)
	race.LastError = &msg

	if race.IsActive && race.ConsecutiveErrors >= m.Threshold {
		race.IsActive = false
		return true
	}
	return false
}
