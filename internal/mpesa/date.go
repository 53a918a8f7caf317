package mpesa

import (
	"regexp"
	"strconv"
	"strings"
	"time"
)

// dateToken matches "20/1/25 at 8:54 PM". Four digit years are tried before
// two digit ones so "2025" is not read as "20".
var dateToken = regexp.MustCompile(`(?i)(\d{1,2})/(\d{1,2})/(\d{4}|\d{2})\s+at\s+(\d{1,2}):(\d{2})\s*(AM|PM)`)

// NormalizeDate converts the first date token found in s into an absolute
// time in loc. ok is false when there is no well-formed token or the token
// names an impossible date, hour or minute; callers supply their own fallback.
//
// Two-digit years are read as 2000+YY, so "99" is 2099.
func NormalizeDate(s string, loc *time.Location) (t time.Time, ok bool) {
	m := dateToken.FindStringSubmatch(s)
	if m == nil {
		return time.Time{}, false
	}
	day, _ := strconv.Atoi(m[1])
	month, _ := strconv.Atoi(m[2])
	year, _ := strconv.Atoi(m[3])
	hour, _ := strconv.Atoi(m[4])
	minute, _ := strconv.Atoi(m[5])

	if len(m[3]) == 2 {
		year += 2000
	}
	if month < 1 || month > 12 || day < 1 || day > daysIn(year, time.Month(month)) {
		return time.Time{}, false
	}
	if hour < 1 || hour > 12 || minute > 59 {
		return time.Time{}, false
	}

	switch strings.ToUpper(m[6]) {
	case "AM":
		if hour == 12 {
			hour = 0
		}
	case "PM":
		if hour != 12 {
			hour += 12
		}
	}

	if loc == nil {
		loc = time.Local
	}
	return time.Date(year, time.Month(month), day, hour, minute, 0, 0, loc), true
}

func daysIn(year int, month time.Month) int {
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}

// findDateIndex returns the byte offset of the first date token in s, or -1.
func findDateIndex(s string) int {
	loc := dateToken.FindStringIndex(s)
	if loc == nil {
		return -1
	}
	return loc[0]
}
