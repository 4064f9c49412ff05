package scheduler

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// CronSchedule is a five-field cron expression (minute hour day month
// weekday) evaluated in a fixed location. Fields accept *, n, n-m, lists
// and /step.
type CronSchedule struct {
	raw     string
	loc     *time.Location
	minute  fieldSet
	hour    fieldSet
	day     fieldSet
	month   fieldSet
	weekday fieldSet
}

// fieldSet is a bitmask of allowed values (max 63).
type fieldSet uint64

func (f fieldSet) has(v int) bool { return f&(1<<uint(v)) != 0 }

// ParseCron parses expr. A nil loc means UTC.
func ParseCron(expr string, loc *time.Location) (*CronSchedule, error) {
	fields := strings.Fields(expr)
	if len(fields) != 5 {
		return nil, fmt.Errorf("cron %q: expected 5 fields, got %d", expr, len(fields))
	}
	if loc == nil {
		loc = time.UTC
	}

	bounds := [5][2]int{{0, 59}, {0, 23}, {1, 31}, {1, 12}, {0, 6}}
	names := [5]string{"minute", "hour", "day", "month", "weekday"}
	var sets [5]fieldSet
	for i, f := range fields {
		set, err := parseCronField(f, bounds[i][0], bounds[i][1])
		if err != nil {
			return nil, fmt.Errorf("cron %q: %s field: %w", expr, names[i], err)
		}
		sets[i] = set
	}

	return &CronSchedule{
		raw:     expr,
		loc:     loc,
		minute:  sets[0],
		hour:    sets[1],
		day:     sets[2],
		month:   sets[3],
		weekday: sets[4],
	}, nil
}

// MustParseCron is ParseCron for constant expressions.
func MustParseCron(expr string, loc *time.Location) *CronSchedule {
	c, err := ParseCron(expr, loc)
	if err != nil {
		panic(err)
	}
	return c
}

func parseCronField(field string, lo, hi int) (fieldSet, error) {
	var set fieldSet
	for _, part := range strings.Split(field, ",") {
		step := 1
		if base, s, ok := strings.Cut(part, "/"); ok {
			n, err := strconv.Atoi(s)
			if err != nil || n <= 0 {
				return 0, fmt.Errorf("invalid step %q", s)
			}
			step, part = n, base
		}

		from, to := lo, hi
		switch {
		case part == "*":
		case strings.Contains(part, "-"):
			a, b, _ := strings.Cut(part, "-")
			var err1, err2 error
			from, err1 = strconv.Atoi(a)
			to, err2 = strconv.Atoi(b)
			if err1 != nil || err2 != nil {
				return 0, fmt.Errorf("invalid range %q", part)
			}
		default:
			v, err := strconv.Atoi(part)
			if err != nil {
				return 0, fmt.Errorf("invalid value %q", part)
			}
			from = v
			if step == 1 {
				to = v
			}
		}
		if from < lo || to > hi || from > to {
			return 0, fmt.Errorf("%q out of range [%d-%d]", part, lo, hi)
		}
		for v := from; v <= to; v += step {
			set |= 1 << uint(v)
		}
	}
	return set, nil
}

// Next returns the first matching minute after t, or the zero time if none
// matches within a year.
func (c *CronSchedule) Next(t time.Time) time.Time {
	next := t.In(c.loc).Truncate(time.Minute).Add(time.Minute)
	for limit := 366 * 24 * 60; limit > 0; limit-- {
		if c.matches(next) {
			return next
		}
		next = next.Add(time.Minute)
	}
	return time.Time{}
}

func (c *CronSchedule) matches(t time.Time) bool {
	return c.minute.has(t.Minute()) &&
		c.hour.has(t.Hour()) &&
		c.day.has(t.Day()) &&
		c.month.has(int(t.Month())) &&
		c.weekday.has(int(t.Weekday()))
}

func (c *CronSchedule) String() string {
	return c.raw
}
