package service

import (
	"fmt"
	"slices"
	"strconv"
	"strings"
	"time"

	perr "instapilot/internal/platform/errors"
	"instapilot/internal/services/automation/domain"
)

// hourRange is a parsed "HH:MM-HH:MM" in minutes since midnight, end exclusive
type hourRange struct{ start, end int }

func parseHours(s string) (hourRange, bool, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return hourRange{}, false, nil
	}
	from, to, ok := strings.Cut(s, "-")
	if !ok {
		return hourRange{}, false, perr.InvalidArgf("active hours %q: want HH:MM-HH:MM", s)
	}
	a, err := parseClock(from)
	if err != nil {
		return hourRange{}, false, err
	}
	b, err := parseClock(to)
	if err != nil {
		return hourRange{}, false, err
	}
	return hourRange{start: a, end: b}, true, nil
}

func parseClock(s string) (int, error) {
	h, m, ok := strings.Cut(strings.TrimSpace(s), ":")
	if !ok {
		return 0, perr.InvalidArgf("clock %q: want HH:MM", s)
	}
	hh, err1 := strconv.Atoi(h)
	mm, err2 := strconv.Atoi(m)
	if err1 != nil || err2 != nil || hh < 0 || mm < 0 || mm > 59 || hh > 24 || (hh == 24 && mm != 0) {
		return 0, perr.InvalidArgf("clock %q out of range", s)
	}
	return hh*60 + mm, nil
}

// contains reports whether minute-of-day m is inside; start > end wraps past midnight
func (r hourRange) contains(m int) bool {
	switch {
	case r.start == r.end:
		return true
	case r.start < r.end:
		return m >= r.start && m < r.end
	default:
		return m >= r.start || m < r.end
	}
}

// isoWeekday maps Sunday to 7
func isoWeekday(t time.Time) int {
	if wd := int(t.Weekday()); wd != 0 {
		return wd
	}
	return 7
}

func civilDate(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

// inWindow evaluates a rule's schedule at now in loc. A refusal carries a reason
func inWindow(rule domain.Rule, now time.Time, loc *time.Location) (bool, string) {
	if loc == nil {
		loc = time.UTC
	}
	s := rule.Schedule
	local := now.In(loc)
	today := civilDate(local)

	var start time.Time
	if s.StartDate != nil {
		start = civilDate(s.StartDate.In(loc))
		if today.Before(start) {
			return false, "not active until " + start.Format(time.DateOnly)
		}
	}
	if s.ExpiryDays > 0 {
		from := start
		if from.IsZero() {
			from = civilDate(rule.CreatedAt.In(loc))
		}
		if end := from.AddDate(0, 0, s.ExpiryDays); !today.Before(end) {
			return false, "expired on " + end.Format(time.DateOnly)
		}
	}

	if len(s.ActiveDays) > 0 {
		if wd := isoWeekday(local); !slices.Contains(s.ActiveDays, wd) {
			return false, fmt.Sprintf("inactive on %s", local.Weekday())
		}
	}

	hr, bounded, err := parseHours(s.ActiveHours)
	if err != nil {
		return false, "invalid schedule: " + err.Error()
	}
	if bounded && !hr.contains(local.Hour()*60+local.Minute()) {
		return false, fmt.Sprintf("outside active hours %s (local %s)", strings.TrimSpace(s.ActiveHours), local.Format("15:04"))
	}
	return true, ""
}
