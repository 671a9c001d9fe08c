package periodical

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// Interval is a schedule interval. Calendar parts are applied with
// time.AddDate so "P1M" means one calendar month, not thirty days.
type Interval struct {
	Years  int
	Months int
	Days   int
	Clock  time.Duration
}

var isoDuration = regexp.MustCompile(`^P(?:(\d+)Y)?(?:(\d+)M)?(?:(\d+)W)?(?:(\d+)D)?(?:T(?:(\d+)H)?(?:(\d+)M)?(?:(\d+)S)?)?$`)

// ParseInterval accepts an ISO-8601 duration such as "PT1H" or "P1DT12H",
// or a Go duration string such as "90m".
func ParseInterval(s string) (Interval, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Interval{}, fmt.Errorf("empty interval")
	}

	if strings.HasPrefix(s, "P") {
		m := isoDuration.FindStringSubmatch(s)
		if m == nil || s == "P" || strings.HasSuffix(s, "T") {
			return Interval{}, fmt.Errorf("invalid ISO-8601 duration %q", s)
		}
		n := make([]int, len(m))
		for i := 1; i < len(m); i++ {
			if m[i] == "" {
				continue
			}
			v, err := strconv.Atoi(m[i])
			if err != nil {
				return Interval{}, fmt.Errorf("invalid ISO-8601 duration %q: %w", s, err)
			}
			n[i] = v
		}
		return Interval{
			Years:  n[1],
			Months: n[2],
			Days:   n[3]*7 + n[4],
			Clock:  time.Duration(n[5])*time.Hour + time.Duration(n[6])*time.Minute + time.Duration(n[7])*time.Second,
		}, nil
	}

	d, err := time.ParseDuration(s)
	if err != nil {
		return Interval{}, fmt.Errorf("invalid interval %q: %w", s, err)
	}
	if d < 0 {
		return Interval{}, fmt.Errorf("negative interval %q", s)
	}
	return Interval{Clock: d}, nil
}

// IsZero reports whether the interval is empty.
func (i Interval) IsZero() bool {
	return i.Years == 0 && i.Months == 0 && i.Days == 0 && i.Clock == 0
}

// Before returns t moved back by the interval.
func (i Interval) Before(t time.Time) time.Time {
	return t.AddDate(-i.Years, -i.Months, -i.Days).Add(-i.Clock)
}

func (i Interval) String() string {
	if i.IsZero() {
		return "PT0S"
	}
	var b strings.Builder
	b.WriteString("P")
	if i.Years > 0 {
		fmt.Fprintf(&b, "%dY", i.Years)
	}
	if i.Months > 0 {
		fmt.Fprintf(&b, "%dM", i.Months)
	}
	if i.Days > 0 {
		fmt.Fprintf(&b, "%dD", i.Days)
	}
	if i.Clock > 0 {
		b.WriteString("T")
		rest := i.Clock
		if h := rest / time.Hour; h > 0 {
			fmt.Fprintf(&b, "%dH", h)
			rest -= h * time.Hour
		}
		if m := rest / time.Minute; m > 0 {
			fmt.Fprintf(&b, "%dM", m)
			rest -= m * time.Minute
		}
		if rest > 0 {
			fmt.Fprintf(&b, "%gS", rest.Seconds())
		}
	}
	return b.String()
}
