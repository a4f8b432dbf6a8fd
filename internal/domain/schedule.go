package domain

import "time"

// Phase is the lifecycle position of a quiz relative to its schedule.
type Phase string

const (
	PhaseScheduled Phase = "scheduled"
	PhaseOngoing   Phase = "ongoing"
	PhaseCompleted Phase = "completed"
)

// PhaseAt derives the phase from the schedule. Both bounds are inclusive for Ongoing.
func PhaseAt(now, start, end time.Time) Phase {
	if now.Before(start) {
		return PhaseScheduled
	}
	if now.After(end) {
		return PhaseCompleted
	}
	return PhaseOngoing
}

// IsActive reports start <= now <= end.
func IsActive(now, start, end time.Time) bool {
	return !now.Before(start) && !now.After(end)
}

// PhaseAt is the quiz's phase at now; the stored Status is only a memo of this.
func (q Quiz) PhaseAt(now time.Time) Phase {
	return PhaseAt(now, q.StartTime, q.EndTime)
}

// ActiveAt gates every participant action on the schedule.
func (q Quiz) ActiveAt(now time.Time) bool {
	return IsActive(now, q.StartTime, q.EndTime)
}
