// Package calendar provides the national holiday lookup used by the feature
// deriver.
package calendar

import (
	"sync"
	"time"
)

// India implements domain.HolidayCalendar for Indian national holidays.
// The gazetted fixed-date holidays are generated per year on first lookup;
// movable observances (Diwali, Holi, Eid and the like) vary by year and can
// be supplied via AddDates from configuration.
type India struct {
	mu    sync.RWMutex
	years map[int]map[string]struct{} // year -> "MM-DD" set
}

// NewIndia creates a calendar with the fixed national holidays.
func NewIndia() *India {
	return &India{years: make(map[int]map[string]struct{})}
}

// fixedHolidays are the gazetted holidays observed on the same date every
// year.
var fixedHolidays = []string{
	"01-26", // Republic Day
	"05-01", // Labour Day
	"08-15", // Independence Day
	"10-02", // Gandhi Jayanti
	"12-25", // Christmas
}

// AddDates registers additional holiday dates (format "2006-01-02"), used
// for the year-specific movable holidays.
func (c *India) AddDates(dates ...string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, d := range dates {
		t, err := time.Parse("2006-01-02", d)
		if err != nil {
			continue
		}
		set := c.yearSetLocked(t.Year())
		set[t.Format("01-02")] = struct{}{}
	}
}

// IsHoliday reports whether the given date is a designated national holiday
// for its year.
func (c *India) IsHoliday(date time.Time) bool {
	key := date.Format("01-02")

	c.mu.RLock()
	set, ok := c.years[date.Year()]
	if ok {
		_, hit := set[key]
		c.mu.RUnlock()
		return hit
	}
	c.mu.RUnlock()

	c.mu.Lock()
	defer c.mu.Unlock()
	_, hit := c.yearSetLocked(date.Year())[key]
	return hit
}

// yearSetLocked returns the holiday set for a year, creating it with the
// fixed holidays if absent. Caller must hold the write lock.
func (c *India) yearSetLocked(year int) map[string]struct{} {
	set, ok := c.years[year]
	if !ok {
		set = make(map[string]struct{}, len(fixedHolidays))
		for _, d := range fixedHolidays {
			set[d] = struct{}{}
		}
		c.years[year] = set
	}
	return set
}
