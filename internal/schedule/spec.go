package schedule

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
)

// SecondOptional allows both 5-field and 6-field (with seconds) cron specs.
var parser = cron.NewParser(cron.SecondOptional | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)

// Spec is a parsed schedule string.
//
// Supported forms:
//   - cron: "0 9 * * 1-5", "30 0 9 * * *", "@daily", "@every 6h"
//   - interval duration: "90m", "2h30m"
//   - interval HH:MM: "02:30" (every 2 hours 30 minutes)
//
// "cron:" forces cron parsing; "every:" or "interval:" forces an interval.
type Spec struct {
	Raw   string
	Cron  string // normalized cron expression handed to robfig/cron
	Every time.Duration
	sched cron.Schedule
}

var reHHMM = regexp.MustCompile(`^\s*(\d{1,3}):(\d{2})\s*$`)

func ParseSpec(raw string) (Spec, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return Spec{}, fmt.Errorf("schedule required")
	}

	low := strings.ToLower(s)
	switch {
	case strings.HasPrefix(low, "cron:"):
		return cronSpec(raw, strings.TrimSpace(s[len("cron:"):]))
	case strings.HasPrefix(low, "interval:"):
		return intervalSpec(raw, s[len("interval:"):])
	case strings.HasPrefix(low, "every:"):
		return intervalSpec(raw, s[len("every:"):])
	case strings.ContainsAny(s, " \t") || strings.HasPrefix(s, "@"):
		return cronSpec(raw, s)
	}
	if sp, err := intervalSpec(raw, s); err == nil {
		return sp, nil
	}
	return Spec{}, fmt.Errorf("invalid schedule %q (use cron like '0 9 * * *', HH:MM like '02:30', or a duration like '90m')", raw)
}

func cronSpec(raw, expr string) (Spec, error) {
	if expr == "" {
		return Spec{}, fmt.Errorf("cron expression required in %q", raw)
	}
	sched, err := parser.Parse(expr)
	if err != nil {
		return Spec{}, fmt.Errorf("invalid cron %q: %w", expr, err)
	}
	return Spec{Raw: raw, Cron: expr, sched: sched}, nil
}

func intervalSpec(raw, v string) (Spec, error) {
	d, err := parseInterval(v)
	if err != nil {
		return Spec{}, err
	}
	return Spec{Raw: raw, Cron: "@every " + d.String(), Every: d, sched: cron.Every(d)}, nil
}

func parseInterval(v string) (time.Duration, error) {
	v = strings.TrimSpace(v)
	if v == "" {
		return 0, fmt.Errorf("interval required")
	}
	var d time.Duration
	if m := reHHMM.FindStringSubmatch(v); m != nil {
		hh, _ := strconv.Atoi(m[1])
		mm, _ := strconv.Atoi(m[2])
		if mm > 59 {
			return 0, fmt.Errorf("invalid minutes in %q", v)
		}
		d = time.Duration(hh)*time.Hour + time.Duration(mm)*time.Minute
	} else {
		var err error
		if d, err = time.ParseDuration(v); err != nil {
			return 0, fmt.Errorf("invalid interval %q (use HH:MM or a duration like '90m')", v)
		}
	}
	if d < time.Second {
		return 0, fmt.Errorf("interval must be at least 1s")
	}
	return d, nil
}

// Next returns the first activation after t, or the zero time.
func (s Spec) Next(t time.Time) time.Time {
	if s.sched == nil {
		return time.Time{}
	}
	return s.sched.Next(t)
}
