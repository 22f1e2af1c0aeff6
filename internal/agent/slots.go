package agent

import (
	"slices"
	"strconv"
	"strings"
	"time"
)

// DateLayout is the layout of day identifiers in slots and postbacks.
const DateLayout = "2006-01-02"

var weekdayNames = map[string]time.Weekday{
	"lunes":     time.Monday,
	"martes":    time.Tuesday,
	"miercoles": time.Wednesday,
	"jueves":    time.Thursday,
	"viernes":   time.Friday,
	"sabado":    time.Saturday,
	"domingo":   time.Sunday,
}

var spanishWeekdays = [...]string{"Domingo", "Lunes", "Martes", "Miércoles", "Jueves", "Viernes", "Sábado"}

var spanishMonths = [...]string{"", "enero", "febrero", "marzo", "abril", "mayo", "junio", "julio",
	"agosto", "septiembre", "octubre", "noviembre", "diciembre"}

// ParseWeekdays reads a comma separated list of Spanish weekday names.
// Unknown names are ignored; order follows first appearance.
func ParseWeekdays(s string) []time.Weekday {
	var days []time.Weekday
	for _, part := range strings.Split(s, ",") {
		name := foldAccents.Replace(strings.ToLower(strings.TrimSpace(part)))
		wd, ok := weekdayNames[name]
		if ok && !slices.Contains(days, wd) {
			days = append(days, wd)
		}
	}
	return days
}

// ParseTimes reads a comma separated list of interview time ranges such as
// "10:00-10:30, 15:00-15:30".
func ParseTimes(s string) []string {
	var times []string
	for _, part := range strings.Split(s, ",") {
		t := strings.Join(strings.Fields(part), "")
		if t != "" && !slices.Contains(times, t) {
			times = append(times, t)
		}
	}
	return times
}

// Calendar turns weekday names into concrete interview dates.
type Calendar struct {
	Location *time.Location
	// Horizon is how many days after today are offered.
	Horizon int
}

// DefaultCalendar offers the next 14 days in loc.
func DefaultCalendar(loc *time.Location) Calendar {
	if loc == nil {
		loc = time.UTC
	}
	return Calendar{Location: loc, Horizon: 14}
}

// Dates returns the dates from tomorrow through the horizon that fall on one
// of the given weekdays and are not federal holidays.
func (c Calendar) Dates(now time.Time, weekdays []time.Weekday) []time.Time {
	loc := c.Location
	if loc == nil {
		loc = time.UTC
	}
	local := now.In(loc)
	today := time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, loc)

	var dates []time.Time
	for i := 1; i <= c.Horizon; i++ {
		d := today.AddDate(0, 0, i)
		if slices.Contains(weekdays, d.Weekday()) && !IsMexicanHoliday(d) {
			dates = append(dates, d)
		}
	}
	return dates
}

// IsMexicanHoliday reports whether t falls on a mandatory rest day of the
// Mexican federal labor law.
func IsMexicanHoliday(t time.Time) bool {
	y, m, d := t.Date()
	switch {
	case m == time.January && d == 1,
		m == time.May && d == 1,
		m == time.September && d == 16,
		m == time.December && d == 25:
		return true
	case m == time.February:
		return d == nthMonday(y, m, 1)
	case m == time.March:
		return d == nthMonday(y, m, 3)
	case m == time.November:
		return d == nthMonday(y, m, 3)
	case m == time.October && d == 1:
		// Presidential inauguration, every six years since 2024.
		return y >= 2024 && (y-2024)%6 == 0
	}
	return false
}

func nthMonday(year int, month time.Month, n int) int {
	first := time.Date(year, month, 1, 0, 0, 0, 0, time.UTC).Weekday()
	offset := (int(time.Monday) - int(first) + 7) % 7
	return 1 + offset + 7*(n-1)
}

// DayLabel renders a date as "Lunes 19 de octubre".
func DayLabel(t time.Time) string {
	return spanishWeekdays[t.Weekday()] + " " + strconv.Itoa(t.Day()) + " de " + spanishMonths[t.Month()]
}

// GetCurrentTime renders now in loc for "today is" phrasing, for example
// "jueves 15 de octubre de 2026, 10:30".
func GetCurrentTime(now time.Time, loc *time.Location) string {
	if loc != nil {
		now = now.In(loc)
	}
	return strings.ToLower(spanishWeekdays[now.Weekday()]) + " " + strconv.Itoa(now.Day()) + " de " +
		spanishMonths[now.Month()] + " de " + strconv.Itoa(now.Year()) + ", " + now.Format("15:04")
}
