package timetable

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	appErrors "github.com/noah-isme/study-planner-api/pkg/errors"
)

const (
	dateLayout     = "2006-01-02"
	clockLayout    = "15:04:05"
	minutesPerDay  = 24 * 60
	lastClockValue = minutesPerDay - 1
)

// fallbackDateLayouts are tried in order after ISO.
var fallbackDateLayouts = []string{
	"2006/1/2",
	"2-1-2006",
	"2/1/2006",
	"1-2-2006",
	"1/2/2006",
}

// RevisionIntervals are the spaced-repetition offsets in days after initial learning.
var RevisionIntervals = []int{1, 3, 7}

// Date is a calendar day without time of day or zone.
type Date struct {
	t time.Time
}

// NewDate builds a Date from its calendar parts. Out of range parts normalise like time.Date.
func NewDate(year int, month time.Month, day int) Date {
	return Date{t: time.Date(year, month, day, 0, 0, 0, 0, time.UTC)}
}

// DateOf truncates a time to its calendar day in the time's own location.
func DateOf(t time.Time) Date {
	return NewDate(t.Year(), t.Month(), t.Day())
}

// Today returns the current calendar day.
func Today() Date {
	return DateOf(time.Now())
}

// ParseDate parses ISO dates first, then the common slash and dash layouts.
func ParseDate(value string) (Date, error) {
	value = strings.TrimSpace(value)
	if t, err := time.Parse(dateLayout, value); err == nil {
		return DateOf(t), nil
	}
	for _, layout := range fallbackDateLayouts {
		if t, err := time.Parse(layout, value); err == nil {
			return DateOf(t), nil
		}
	}
	return Date{}, appErrors.Clone(appErrors.ErrInvalidDate, fmt.Sprintf("cannot parse date: %q", value))
}

// MustParseDate is ParseDate for literals known to be valid.
func MustParseDate(value string) Date {
	d, err := ParseDate(value)
	if err != nil {
		panic(err)
	}
	return d
}

// IsZero reports whether d is the zero Date.
func (d Date) IsZero() bool { return d.t.IsZero() }

// Time exposes the day as midnight UTC.
func (d Date) Time() time.Time { return d.t }

// AddDays shifts the date by n days.
func (d Date) AddDays(n int) Date { return Date{t: d.t.AddDate(0, 0, n)} }

// Before reports whether d is strictly earlier than other.
func (d Date) Before(other Date) bool { return d.t.Before(other.t) }

// After reports whether d is strictly later than other.
func (d Date) After(other Date) bool { return d.t.After(other.t) }

// Equal reports whether both values denote the same day.
func (d Date) Equal(other Date) bool { return d.t.Equal(other.t) }

// Weekday returns the day of the week.
func (d Date) Weekday() time.Weekday { return d.t.Weekday() }

func (d Date) String() string {
	if d.IsZero() {
		return ""
	}
	return d.t.Format(dateLayout)
}

// MarshalJSON renders the day as YYYY-MM-DD, or null for the zero value.
func (d Date) MarshalJSON() ([]byte, error) {
	if d.IsZero() {
		return []byte("null"), nil
	}
	return json.Marshal(d.String())
}

// UnmarshalJSON accepts any layout understood by ParseDate.
func (d *Date) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*d = Date{}
		return nil
	}
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	parsed, err := ParseDate(raw)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// Clock is a time of day in minutes from midnight, kept within [00:00, 23:59].
type Clock int

// NewClock builds a clamped Clock from hour and minute.
func NewClock(hour, minute int) Clock {
	return clampClock(hour*60 + minute)
}

func clampClock(minutes int) Clock {
	if minutes < 0 {
		return 0
	}
	if minutes > lastClockValue {
		return lastClockValue
	}
	return Clock(minutes)
}

// ParseClock accepts HH:MM:SS first, then HH:MM.
func ParseClock(value string) (Clock, error) {
	value = strings.TrimSpace(value)
	if t, err := time.Parse(clockLayout, value); err == nil {
		return NewClock(t.Hour(), t.Minute()), nil
	}
	parts := strings.Split(value, ":")
	if len(parts) >= 2 {
		hour, errH := strconv.Atoi(parts[0])
		minute, errM := strconv.Atoi(parts[1])
		if errH == nil && errM == nil && hour >= 0 && hour < 24 && minute >= 0 && minute < 60 {
			return NewClock(hour, minute), nil
		}
	}
	return 0, appErrors.Clone(appErrors.ErrInvalidTime, fmt.Sprintf("cannot parse time: %q", value))
}

// Add moves the clock forward by minutes, saturating at the day boundaries.
func (c Clock) Add(minutes int) Clock { return clampClock(int(c) + minutes) }

// Minutes returns minutes since midnight.
func (c Clock) Minutes() int { return int(c) }

// Hour returns the hour component.
func (c Clock) Hour() int { return int(c) / 60 }

// Minute returns the minute component.
func (c Clock) Minute() int { return int(c) % 60 }

func (c Clock) String() string {
	return fmt.Sprintf("%02d:%02d:00", c.Hour(), c.Minute())
}

// MarshalJSON renders HH:MM:SS.
func (c Clock) MarshalJSON() ([]byte, error) {
	return json.Marshal(c.String())
}

// UnmarshalJSON accepts HH:MM:SS or HH:MM.
func (c *Clock) UnmarshalJSON(data []byte) error {
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	parsed, err := ParseClock(raw)
	if err != nil {
		return err
	}
	*c = parsed
	return nil
}

// MinutesBetween returns end minus start in minutes, negative when end is earlier.
func MinutesBetween(start, end Clock) int {
	return int(end) - int(start)
}

// DateRange lists every day from start to end inclusive. It is empty when end precedes start.
func DateRange(start, end Date) []Date {
	if end.Before(start) {
		return nil
	}
	days := make([]Date, 0, DaysBetween(start, end)+1)
	for current := start; !current.After(end); current = current.AddDays(1) {
		days = append(days, current)
	}
	return days
}

// DaysBetween returns the signed number of days from start to end.
func DaysBetween(start, end Date) int {
	return int(math.Round(end.t.Sub(start.t).Hours() / 24))
}

// IsWeekend reports Saturday and Sunday.
func IsWeekend(d Date) bool {
	wd := d.Weekday()
	return wd == time.Saturday || wd == time.Sunday
}

// IsWeekday reports Monday through Friday.
func IsWeekday(d Date) bool { return !IsWeekend(d) }

// DayName returns the English weekday name.
func DayName(d Date) string { return d.Weekday().String() }

// HoursToMinutes truncates fractional minutes.
func HoursToMinutes(hours float64) int {
	return int(hours * 60)
}

// MinutesToHours converts minutes to fractional hours.
func MinutesToHours(minutes int) float64 {
	return float64(minutes) / 60.0
}

// FormatDuration renders minutes as "45m", "1h" or "1h 30m".
func FormatDuration(minutes int) string {
	if minutes < 60 {
		return fmt.Sprintf("%dm", minutes)
	}
	hours := minutes / 60
	rest := minutes % 60
	if rest == 0 {
		return fmt.Sprintf("%dh", hours)
	}
	return fmt.Sprintf("%dh %dm", hours, rest)
}

// LatestDate returns the maximum date and false for an empty input.
func LatestDate(dates []Date) (Date, bool) {
	if len(dates) == 0 {
		return Date{}, false
	}
	latest := dates[0]
	for _, d := range dates[1:] {
		if d.After(latest) {
			latest = d
		}
	}
	return latest, true
}

// EarliestDate returns the minimum date and false for an empty input.
func EarliestDate(dates []Date) (Date, bool) {
	if len(dates) == 0 {
		return Date{}, false
	}
	earliest := dates[0]
	for _, d := range dates[1:] {
		if d.Before(earliest) {
			earliest = d
		}
	}
	return earliest, true
}

// SpacedRepetitionDates offsets initial by each interval, dropping dates after end.
func SpacedRepetitionDates(initial, end Date, intervals []int) []Date {
	if intervals == nil {
		intervals = RevisionIntervals
	}
	dates := make([]Date, 0, len(intervals))
	for _, interval := range intervals {
		candidate := initial.AddDays(interval)
		if candidate.After(end) {
			continue
		}
		dates = append(dates, candidate)
	}
	return dates
}

// Clamp bounds value to [min, max].
func Clamp(value, min, max float64) float64 {
	return math.Max(min, math.Min(max, value))
}

func clampInt(value, min, max int) int {
	if value < min {
		return min
	}
	if value > max {
		return max
	}
	return value
}

// SafeDivide returns fallback when the denominator is zero.
func SafeDivide(numerator, denominator, fallback float64) float64 {
	if denominator == 0 {
		return fallback
	}
	return numerator / denominator
}

// JoinID builds a deterministic identifier such as "revision_math_2".
func JoinID(prefix string, parts ...any) string {
	segments := make([]string, 0, len(parts)+1)
	segments = append(segments, prefix)
	for _, part := range parts {
		segments = append(segments, fmt.Sprint(part))
	}
	return strings.Join(segments, "_")
}
