package schedule

import (
	"strings"
	"time"

	"tradecore/internal/message"
	"tradecore/pkg/exception"

	"github.com/scmhub/calendar"
	"github.com/yanun0323/errors"
)

var _ message.WorkingTime = (*WorkingTime)(nil)

// Window is an intraday session, as offsets from local midnight.
// Close is exclusive. A zero window means the exchange session.
type Window struct {
	Open  time.Duration
	Close time.Duration
}

func (w Window) IsZero() bool { return w.Open == 0 && w.Close == 0 }

func (w Window) contains(at time.Time) bool {
	y, m, d := at.Date()
	offset := at.Sub(time.Date(y, m, d, 0, 0, 0, 0, at.Location()))
	return offset >= w.Open && offset < w.Close
}

// ParseWindow parses "HH:MM-HH:MM".
func ParseWindow(s string) (Window, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Window{}, nil
	}
	from, to, ok := strings.Cut(s, "-")
	if !ok {
		return Window{}, errors.Wrapf(exception.ErrInvalidArgument, "window %q", s)
	}
	o, err := time.Parse("15:04", strings.TrimSpace(from))
	if err != nil {
		return Window{}, errors.Wrapf(exception.ErrInvalidArgument, "window open %q", from)
	}
	c, err := time.Parse("15:04", strings.TrimSpace(to))
	if err != nil {
		return Window{}, errors.Wrapf(exception.ErrInvalidArgument, "window close %q", to)
	}
	w := Window{
		Open:  time.Duration(o.Hour())*time.Hour + time.Duration(o.Minute())*time.Minute,
		Close: time.Duration(c.Hour())*time.Hour + time.Duration(c.Minute())*time.Minute,
	}
	if w.Close <= w.Open {
		return Window{}, errors.Wrapf(exception.ErrInvalidArgument, "window %q closes before it opens", s)
	}
	return w, nil
}

// WorkingTime is an exchange schedule: business days from an exchange
// calendar, optionally narrowed to an intraday window.
type WorkingTime struct {
	cal    *calendar.Calendar
	loc    *time.Location
	window Window
}

// ForExchange loads the calendar of an ISO 10383 MIC, e.g. "xnys".
func ForExchange(mic string, window Window) (*WorkingTime, error) {
	cal := calendar.GetCalendar(strings.ToLower(strings.TrimSpace(mic)))
	if cal == nil {
		return nil, errors.Wrapf(exception.ErrInvalidArgument, "no calendar for mic %q", mic)
	}
	return &WorkingTime{cal: cal, loc: cal.Loc, window: window}, nil
}

// Weekdays is Monday to Friday in loc without holidays. A zero window is open
// all day.
func Weekdays(loc *time.Location, window Window) *WorkingTime {
	if loc == nil {
		loc = time.UTC
	}
	return &WorkingTime{loc: loc, window: window}
}

func (wt *WorkingTime) Location() *time.Location { return wt.loc }

// IsOpen reports whether the schedule is open at the given instant.
func (wt *WorkingTime) IsOpen(at time.Time) bool {
	at = at.In(wt.loc)
	if wt.cal == nil {
		if wd := at.Weekday(); wd == time.Saturday || wd == time.Sunday {
			return false
		}
		return wt.window.IsZero() || wt.window.contains(at)
	}

	if !wt.cal.IsBusinessDay(at) {
		return false
	}
	if wt.window.IsZero() {
		return wt.cal.IsOpen(at)
	}
	return wt.window.contains(at)
}
