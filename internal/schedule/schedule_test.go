package schedule

import (
	"sync/atomic"
	"testing"
	"time"

	"tradecore/pkg/exception"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseWindow(t *testing.T) {
	w, err := ParseWindow("09:30-16:00")
	require.NoError(t, err)
	assert.Equal(t, 9*time.Hour+30*time.Minute, w.Open)
	assert.Equal(t, 16*time.Hour, w.Close)

	w, err = ParseWindow("")
	require.NoError(t, err)
	assert.True(t, w.IsZero())

	for _, s := range []string{"09:30", "9h-10h", "16:00-09:30", "10:00-10:00"} {
		_, err := ParseWindow(s)
		require.ErrorIs(t, err, exception.ErrInvalidArgument, s)
	}
}

func TestWeekdays(t *testing.T) {
	wt := Weekdays(time.UTC, Window{Open: 9 * time.Hour, Close: 17 * time.Hour})

	// 2025-07-07 is a Monday
	assert.True(t, wt.IsOpen(time.Date(2025, 7, 7, 9, 0, 0, 0, time.UTC)))
	assert.True(t, wt.IsOpen(time.Date(2025, 7, 7, 16, 59, 0, 0, time.UTC)))
	assert.False(t, wt.IsOpen(time.Date(2025, 7, 7, 17, 0, 0, 0, time.UTC)))
	assert.False(t, wt.IsOpen(time.Date(2025, 7, 7, 8, 59, 0, 0, time.UTC)))
	assert.False(t, wt.IsOpen(time.Date(2025, 7, 6, 12, 0, 0, 0, time.UTC)), "sunday")

	allDay := Weekdays(nil, Window{})
	assert.True(t, allDay.IsOpen(time.Date(2025, 7, 8, 3, 0, 0, 0, time.UTC)))
}

func TestWeekdaysLocation(t *testing.T) {
	loc := time.FixedZone("UTC+3", 3*60*60)
	wt := Weekdays(loc, Window{Open: 10 * time.Hour, Close: 11 * time.Hour})

	assert.True(t, wt.IsOpen(time.Date(2025, 7, 7, 7, 30, 0, 0, time.UTC)))
	assert.False(t, wt.IsOpen(time.Date(2025, 7, 7, 10, 30, 0, 0, time.UTC)))
}

func TestForExchange(t *testing.T) {
	_, err := ForExchange("nope", Window{})
	require.ErrorIs(t, err, exception.ErrInvalidArgument)

	wt, err := ForExchange("XNYS", Window{})
	require.NoError(t, err)
	ny := wt.Location()

	assert.True(t, wt.IsOpen(time.Date(2025, 7, 7, 10, 0, 0, 0, ny)))
	assert.False(t, wt.IsOpen(time.Date(2025, 7, 4, 10, 0, 0, 0, ny)), "independence day")
	assert.False(t, wt.IsOpen(time.Date(2025, 7, 5, 10, 0, 0, 0, ny)), "saturday")
}

func TestTask(t *testing.T) {
	var running atomic.Bool
	task := NewTask("replay", Weekdays(time.UTC, Window{Open: 9 * time.Hour, Close: 17 * time.Hour}), running.Load)

	open := time.Date(2025, 7, 7, 12, 0, 0, 0, time.UTC)
	closed := time.Date(2025, 7, 7, 20, 0, 0, 0, time.UTC)

	assert.True(t, task.CanStart(open))
	assert.False(t, task.CanStart(closed))
	assert.False(t, task.CanStop(open))

	running.Store(true)
	assert.False(t, task.CanStart(open), "already running")
	assert.True(t, task.CanStop(open))
	assert.True(t, task.CanStop(closed))
	assert.False(t, task.ShouldStop(open))
	assert.True(t, task.ShouldStop(closed))

	unscheduled := NewTask("always", nil, nil)
	assert.True(t, unscheduled.CanStart(closed))
	assert.Nil(t, unscheduled.WorkingTime())
}
