package delivery

import "time"

const (
	DefaultCutoffHour = 15
	leadBeforeCutoff  = 2
	leadAfterCutoff   = 3
)

// Scheduler computes delivery dates in the store's local timezone.
type Scheduler struct {
	loc        *time.Location
	cutoffHour int
}

func NewScheduler(loc *time.Location, cutoffHour int) *Scheduler {
	if loc == nil {
		loc = time.UTC
	}
	return &Scheduler{loc: loc, cutoffHour: cutoffHour}
}

// LeadDays returns the business days of lead time for an order placed at now.
func (s *Scheduler) LeadDays(now time.Time) int {
	if now.In(s.loc).Hour() >= s.cutoffHour {
		return leadAfterCutoff
	}
	return leadBeforeCutoff
}

// DeliveryDate walks forward one calendar day at a time from now, counting
// only weekdays, until the lead time is used up. The result is midnight local
// time of the delivery day.
func (s *Scheduler) DeliveryDate(now time.Time) time.Time {
	local := now.In(s.loc)
	day := time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, s.loc)
	for remaining := s.LeadDays(now); remaining > 0; {
		day = day.AddDate(0, 0, 1)
		if IsBusinessDay(day) {
			remaining--
		}
	}
	return day
}

// IsBusinessDay reports whether t falls Monday through Friday.
func IsBusinessDay(t time.Time) bool {
	wd := t.Weekday()
	return wd != time.Saturday && wd != time.Sunday
}
