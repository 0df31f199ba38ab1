package timetable

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	appErrors "github.com/noah-isme/study-planner-api/pkg/errors"
)

func TestParseDateAcceptsFallbackLayouts(t *testing.T) {
	cases := map[string]string{
		"2024-03-15": "2024-03-15",
		"2024/03/15": "2024-03-15",
		"2024/3/5":   "2024-03-05",
		"15-03-2024": "2024-03-15",
		"15/03/2024": "2024-03-15",
		"03-15-2024": "2024-03-15",
		"03/15/2024": "2024-03-15",
	}
	for input, expected := range cases {
		parsed, err := ParseDate(input)
		require.NoError(t, err, input)
		assert.Equal(t, expected, parsed.String(), input)
	}
}

func TestParseDatePrefersDayFirst(t *testing.T) {
	parsed, err := ParseDate("04/05/2024")
	require.NoError(t, err)
	assert.Equal(t, "2024-05-04", parsed.String())
}

func TestParseDateRejectsGarbage(t *testing.T) {
	_, err := ParseDate("next tuesday")
	require.Error(t, err)
	assert.True(t, appErrors.Is(err, appErrors.ErrInvalidDate))
}

func TestParseClock(t *testing.T) {
	c, err := ParseClock("09:30")
	require.NoError(t, err)
	assert.Equal(t, 570, c.Minutes())

	c, err = ParseClock("14:05:30")
	require.NoError(t, err)
	assert.Equal(t, "14:05:00", c.String())

	_, err = ParseClock("25:00")
	require.Error(t, err)
	assert.True(t, appErrors.Is(err, appErrors.ErrInvalidTime))
}

func TestClockAddSaturates(t *testing.T) {
	assert.Equal(t, "23:59:00", NewClock(23, 0).Add(120).String())
	assert.Equal(t, "00:00:00", NewClock(0, 10).Add(-30).String())
	assert.Equal(t, "10:15:00", NewClock(9, 30).Add(45).String())
	assert.Equal(t, 45, MinutesBetween(NewClock(9, 30), NewClock(10, 15)))
}

func TestDateArithmetic(t *testing.T) {
	start := NewDate(2024, time.January, 30)
	end := NewDate(2024, time.February, 2)

	days := DateRange(start, end)
	require.Len(t, days, 4)
	assert.Equal(t, "2024-01-31", days[1].String())
	assert.Empty(t, DateRange(end, start))

	assert.Equal(t, 3, DaysBetween(start, end))
	assert.Equal(t, -3, DaysBetween(end, start))
	assert.Equal(t, "2024-03-01", NewDate(2024, time.February, 28).AddDays(2).String())
}

func TestWeekendHelpers(t *testing.T) {
	saturday := MustParseDate("2024-03-16")
	friday := MustParseDate("2024-03-15")

	assert.True(t, IsWeekend(saturday))
	assert.False(t, IsWeekday(saturday))
	assert.True(t, IsWeekday(friday))
	assert.Equal(t, "Saturday", DayName(saturday))
}

func TestDurationHelpers(t *testing.T) {
	assert.Equal(t, "45m", FormatDuration(45))
	assert.Equal(t, "1h", FormatDuration(60))
	assert.Equal(t, "1h 30m", FormatDuration(90))
	assert.Equal(t, 119, HoursToMinutes(1.999))
	assert.InDelta(t, 1.5, MinutesToHours(90), 1e-9)
}

func TestLatestAndEarliestDate(t *testing.T) {
	dates := []Date{MustParseDate("2024-03-10"), MustParseDate("2024-02-01"), MustParseDate("2024-04-01")}

	latest, ok := LatestDate(dates)
	require.True(t, ok)
	assert.Equal(t, "2024-04-01", latest.String())

	earliest, ok := EarliestDate(dates)
	require.True(t, ok)
	assert.Equal(t, "2024-02-01", earliest.String())

	_, ok = LatestDate(nil)
	assert.False(t, ok)
}

func TestSpacedRepetitionDatesRespectEnd(t *testing.T) {
	initial := MustParseDate("2024-03-01")

	all := SpacedRepetitionDates(initial, MustParseDate("2024-03-31"), nil)
	require.Len(t, all, 3)
	assert.Equal(t, "2024-03-02", all[0].String())
	assert.Equal(t, "2024-03-04", all[1].String())
	assert.Equal(t, "2024-03-08", all[2].String())

	bounded := SpacedRepetitionDates(initial, MustParseDate("2024-03-05"), nil)
	assert.Len(t, bounded, 2)
}

func TestNumericHelpers(t *testing.T) {
	assert.Equal(t, 1.0, Clamp(3, 0, 1))
	assert.Equal(t, 0.0, Clamp(-3, 0, 1))
	assert.Equal(t, 7.0, SafeDivide(1, 0, 7))
	assert.Equal(t, 0.5, SafeDivide(1, 2, 7))
	assert.Equal(t, "revision_math_2", JoinID("revision", "math", 2))
}

func TestDateJSON(t *testing.T) {
	payload, err := json.Marshal(struct {
		Due  Date  `json:"due"`
		Done *Date `json:"done"`
		Zero Date  `json:"zero"`
	}{Due: MustParseDate("2024-03-15")})
	require.NoError(t, err)
	assert.JSONEq(t, `{"due":"2024-03-15","done":null,"zero":null}`, string(payload))

	var decoded struct {
		Due Date `json:"due"`
	}
	require.NoError(t, json.Unmarshal([]byte(`{"due":"15/03/2024"}`), &decoded))
	assert.Equal(t, "2024-03-15", decoded.Due.String())
}
