package holiday

import (
	"fmt"
	"time"

	"GridCast/internal/domain/repository"
)

// Calendar answers IsHoliday from dates that recur every year (MM-DD) and
// one-off dates (YYYY-MM-DD), such as lunar festivals.
type Calendar struct {
	fixed map[string]struct{}
	dates map[string]struct{}
}

var _ repository.HolidayCalendar = (*Calendar)(nil)

func New(fixed, dates []string) (*Calendar, error) {
	c := &Calendar{fixed: map[string]struct{}{}, dates: map[string]struct{}{}}
	for _, f := range fixed {
		if _, err := time.Parse("01-02", f); err != nil {
			return nil, fmt.Errorf("holiday %q: want MM-DD: %w", f, err)
		}
		c.fixed[f] = struct{}{}
	}
	for _, d := range dates {
		if _, err := time.Parse("2006-01-02", d); err != nil {
			return nil, fmt.Errorf("holiday %q: want YYYY-MM-DD: %w", d, err)
		}
		c.dates[d] = struct{}{}
	}
	return c, nil
}

// IsHoliday uses the calendar date of d in its own location.
func (c *Calendar) IsHoliday(d time.Time) bool {
	if _, ok := c.fixed[d.Format("01-02")]; ok {
		return true
	}
	_, ok := c.dates[d.Format("2006-01-02")]
	return ok
}
