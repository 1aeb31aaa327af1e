package scheduler

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
)

var cronParser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)

// ParseSchedule parses a standard 5-field cron expression
// (minute hour day-of-month month day-of-week). Descriptors such as
// "@daily" and "TZ=" prefixes are rejected; the schedule is always
// evaluated in the configured server time zone.
func ParseSchedule(expr string) (cron.Schedule, error) {
	expr = strings.TrimSpace(expr)
	if expr == "" {
		return nil, fmt.Errorf("schedule is empty")
	}
	if strings.HasPrefix(expr, "@") || strings.HasPrefix(expr, "TZ=") || strings.HasPrefix(expr, "CRON_TZ=") {
		return nil, fmt.Errorf("schedule must be a 5-field cron expression, got %q", expr)
	}

	sched, err := cronParser.Parse(normalizeSunday(expr))
	if err != nil {
		return nil, fmt.Errorf("invalid schedule %q: %w", expr, err)
	}
	if sched.Next(time.Now()).IsZero() {
		return nil, fmt.Errorf("schedule %q never fires", expr)
	}
	return sched, nil
}

// normalizeSunday rewrites day-of-week 7 to 0 so that "0 0 * * 7" and
// "0 0 * * 5-7" are accepted as in vixie cron. Ranges ending in 7 are
// expanded to an explicit list.
func normalizeSunday(expr string) string {
	fields := strings.Fields(expr)
	if len(fields) != 5 {
		return expr
	}

	items := strings.Split(fields[4], ",")
	for i, item := range items {
		rng, step, hasStep := strings.Cut(item, "/")
		lo, hi, isRange := strings.Cut(rng, "-")
		if !isRange {
			if rng == "7" && !hasStep {
				items[i] = "0"
			}
			continue
		}
		if hi != "7" {
			continue
		}

		start, err := strconv.Atoi(lo)
		if err != nil || start < 0 || start > 7 {
			continue
		}
		inc := 1
		if hasStep {
			if inc, err = strconv.Atoi(step); err != nil || inc <= 0 {
				continue
			}
		}

		days := make([]string, 0, 8)
		for d := start; d <= 7; d += inc {
			days = append(days, strconv.Itoa(d%7))
		}
		items[i] = strings.Join(days, ",")
	}
	fields[4] = strings.Join(items, ",")

	return strings.Join(fields, " ")
}

// Matches reports whether the calendar minute containing t is selected by sched.
func Matches(sched cron.Schedule, t time.Time) bool {
	minute := t.Truncate(time.Minute)
	return sched.Next(minute.Add(-time.Second)).Equal(minute)
}
