// Package schedule computes the concrete occurrences of a recurring game
// from its cron expression and date range. It is pure calendar math — the
// callers decide what to do with the resulting times (materialize Game rows,
// skip already-generated dates, etc.).
package schedule

import (
	"time"

	// cron parses standard 5-field cron expressions ("0 18 * * SUN") and can
	// compute the next activation time after any instant.
	"github.com/robfig/cron/v3"
)

// GenerateAheadDays bounds how far into the future occurrences are
// materialized in one pass. The external batch job picks up from
// last_generated_date, so the window only needs to cover the near future.
const GenerateAheadDays = 30

// MaxPerBatch caps how many occurrences a single generation pass produces,
// protecting against pathological expressions like "* * * * *".
const MaxPerBatch = 10

// Parse validates a cron expression, returning an error for anything the
// standard 5-field parser rejects. Used to fail game creation with a 400
// before any rows are written.
func Parse(expr string) (cron.Schedule, error) {
	return cron.ParseStandard(expr)
}

// Occurrences returns the activation times of expr strictly after `after`
// and no later than `until` (inclusive, compared by date), capped at max
// entries. Times are computed in UTC.
func Occurrences(expr string, after, until time.Time, max int) ([]time.Time, error) {
	sched, err := Parse(expr)
	if err != nil {
		return nil, err
	}

	var out []time.Time
	t := after.UTC()
	for len(out) < max {
		t = sched.Next(t)
		if t.IsZero() || t.After(until) {
			break
		}
		out = append(out, t)
	}
	return out, nil
}

// Window computes the generation window for a recurring series:
// from the high-water mark (or the series start when nothing has been
// generated yet) up to min(endDate, now+GenerateAheadDays).
// The "from" bound is exclusive, the "until" bound inclusive.
func Window(startDate time.Time, endDate, lastGenerated *time.Time, now time.Time) (from, until time.Time) {
	from = startDate
	if lastGenerated != nil {
		// The high-water mark is a calendar date whose occurrences already
		// exist as games. Resume after the end of that whole day, or an
		// occurrence later on it (the 18:00 slot that set the mark) would be
		// yielded a second time.
		generated := lastGenerated.UTC().Add(24*time.Hour - time.Nanosecond)
		if generated.After(from) {
			from = generated
		}
	}

	until = now.UTC().AddDate(0, 0, GenerateAheadDays)
	if endDate != nil {
		// Compare end of the end date so same-day occurrences still count
		end := endDate.UTC().Add(24*time.Hour - time.Nanosecond)
		if end.Before(until) {
			until = end
		}
	}
	return from, until
}
