package schedule

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestParse(t *testing.T) {
	_, err := Parse("0 18 * * SUN")
	require.NoError(t, err)

	_, err = Parse("not a cron")
	require.Error(t, err)

	// 6-field (seconds) expressions are not standard cron.
	_, err = Parse("0 0 18 * * SUN")
	require.Error(t, err)
}

func TestOccurrencesDaily(t *testing.T) {
	after := date(2026, time.June, 1)          // exclusive
	until := date(2026, time.June, 5).Add(24*time.Hour - time.Nanosecond) // inclusive

	occ, err := Occurrences("0 18 * * *", after, until, 100)
	require.NoError(t, err)
	require.Len(t, occ, 5)
	require.Equal(t, time.Date(2026, time.June, 1, 18, 0, 0, 0, time.UTC), occ[0])
	require.Equal(t, time.Date(2026, time.June, 5, 18, 0, 0, 0, time.UTC), occ[4])
}

func TestOccurrencesRespectsMax(t *testing.T) {
	after := date(2026, time.June, 1)
	until := date(2026, time.December, 31)

	occ, err := Occurrences("0 18 * * *", after, until, 3)
	require.NoError(t, err)
	require.Len(t, occ, 3)
}

func TestOccurrencesWeekly(t *testing.T) {
	// June 2026: the 7th, 14th, 21st and 28th are Sundays.
	after := date(2026, time.June, 1)
	until := date(2026, time.June, 30)

	occ, err := Occurrences("0 18 * * SUN", after, until, 100)
	require.NoError(t, err)
	require.Len(t, occ, 4)
	for _, o := range occ {
		require.Equal(t, time.Sunday, o.Weekday())
		require.Equal(t, 18, o.Hour())
	}
}

func TestOccurrencesAfterBoundIsExclusive(t *testing.T) {
	// An occurrence exactly at `after` must not be returned.
	after := time.Date(2026, time.June, 7, 18, 0, 0, 0, time.UTC)
	until := date(2026, time.June, 30)

	occ, err := Occurrences("0 18 * * SUN", after, until, 100)
	require.NoError(t, err)
	require.NotEmpty(t, occ)
	require.Equal(t, time.Date(2026, time.June, 14, 18, 0, 0, 0, time.UTC), occ[0])
}

func TestWindowOpenEnded(t *testing.T) {
	start := date(2026, time.June, 1)
	now := date(2026, time.June, 10)

	from, until := Window(start, nil, nil, now)
	require.Equal(t, start, from)
	require.Equal(t, now.AddDate(0, 0, GenerateAheadDays), until)
}

func TestWindowResumesFromHighWaterMark(t *testing.T) {
	start := date(2026, time.June, 1)
	last := date(2026, time.June, 15)
	now := date(2026, time.June, 10)

	// Resumption starts after the whole high-water-mark day.
	from, _ := Window(start, nil, &last, now)
	require.True(t, from.After(last.Add(23*time.Hour)))
	require.True(t, from.Before(date(2026, time.June, 16)))

	// A high-water mark before the series start never widens the window.
	early := date(2026, time.May, 1)
	from, _ = Window(start, nil, &early, now)
	require.Equal(t, start, from)
}

func TestWindowDoesNotRepeatGeneratedDay(t *testing.T) {
	// June 15's 18:00 occurrence already exists and set the high-water mark
	// (stored as a bare date). Resuming must yield June 16 onwards, not the
	// June 15 slot again.
	start := date(2026, time.June, 1)
	last := date(2026, time.June, 15)
	now := date(2026, time.June, 15)

	from, until := Window(start, nil, &last, now)
	occ, err := Occurrences("0 18 * * *", from, until, 100)
	require.NoError(t, err)
	require.NotEmpty(t, occ)
	require.Equal(t, time.Date(2026, time.June, 16, 18, 0, 0, 0, time.UTC), occ[0])
}

func TestWindowClampsToEndDate(t *testing.T) {
	start := date(2026, time.June, 1)
	end := date(2026, time.June, 5)
	now := date(2026, time.June, 1)

	from, until := Window(start, &end, nil, now)
	require.Equal(t, start, from)
	// The whole end date is inside the window, so a "0 18 * * *" occurrence
	// on the end date itself still generates.
	require.True(t, until.After(end.Add(18*time.Hour)))
	require.True(t, until.Before(date(2026, time.June, 6)))
}
