package schedule

import (
	"fmt"
	"strings"
	"time"

	"github.com/deviceclinic/bookingbackend/services/bookingapi"
)

// window is a daily opening interval at minute resolution. The open minute
// is bookable, the close minute is not.
type window struct {
	open  int // minutes since midnight
	close int
}

func (w window) contains(minute int) bool {
	return minute >= w.open && minute < w.close
}

func (w window) String() string {
	return fmt.Sprintf("%02d:%02d-%02d:%02d", w.open/60, w.open%60, w.close/60, w.close%60)
}

var (
	morning   = window{open: 10 * 60, close: 13 * 60}
	afternoon = window{open: 14 * 60, close: 19 * 60}

	// Weekly availability of the repair venue, in its local time.
	weeklyWindows = map[time.Weekday][]window{
		time.Monday:    {afternoon},
		time.Tuesday:   {morning, afternoon},
		time.Wednesday: {morning, afternoon},
		time.Thursday:  {morning, afternoon},
		time.Friday:    {morning, afternoon},
		time.Saturday:  {morning, afternoon},
		time.Sunday:    {morning},
	}
)

type Result struct {
	Valid  bool
	Reason string
}

func valid() Result {
	return Result{Valid: true}
}

func invalid(format string, args ...any) Result {
	return Result{Valid: false, Reason: fmt.Sprintf(format, args...)}
}

// Validate checks a requested repair slot against the weekly availability
// calendar. A missing date or time is reported distinctly from a slot that
// falls outside the opening windows of its weekday.
func Validate(slot bookingapi.ScheduleSlot) Result {
	if slot.Date == "" || slot.Time == "" {
		return invalid("appointment date and time are required")
	}

	day, err := time.Parse("2006-01-02", slot.Date)
	if err != nil {
		return invalid("invalid appointment date %q", slot.Date)
	}

	clock, err := time.Parse("15:04", slot.Time)
	if err != nil {
		return invalid("invalid appointment time %q", slot.Time)
	}

	weekday := day.Weekday()
	minute := clock.Hour()*60 + clock.Minute()

	windows := weeklyWindows[weekday]
	for _, w := range windows {
		if w.contains(minute) {
			return valid()
		}
	}

	return invalid("%s appointments are available %s only", weekday, describeWindows(windows))
}

func describeWindows(windows []window) string {
	parts := make([]string, 0, len(windows))
	for _, w := range windows {
		parts = append(parts, w.String())
	}
	return strings.Join(parts, " and ")
}
