package mpesa

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestNormalizeDate(t *testing.T) {
	cases := []struct {
		name string
		in   string
		want time.Time
		ok   bool
	}{
		{"two digit year", "on 20/1/25 at 8:54 PM", time.Date(2025, 1, 20, 20, 54, 0, 0, time.UTC), true},
		{"99 is 2099", "1/1/99 at 9:15 AM", time.Date(2099, 1, 1, 9, 15, 0, 0, time.UTC), true},
		{"four digit year", "15/6/2024 at 3:07 PM", time.Date(2024, 6, 15, 15, 7, 0, 0, time.UTC), true},
		{"midnight", "2/3/25 at 12:05 AM", time.Date(2025, 3, 2, 0, 5, 0, 0, time.UTC), true},
		{"noon", "2/3/25 at 12:30 PM", time.Date(2025, 3, 2, 12, 30, 0, 0, time.UTC), true},
		{"lowercase meridiem", "29/2/24 at 9:05 am", time.Date(2024, 2, 29, 9, 5, 0, 0, time.UTC), true},
		{"no space before meridiem", "29/2/24 at 9:05PM", time.Date(2024, 2, 29, 21, 5, 0, 0, time.UTC), true},
		{"impossible day", "31/2/25 at 1:00 PM", time.Time{}, false},
		{"not a leap year", "29/2/25 at 1:00 PM", time.Time{}, false},
		{"month 13", "1/13/25 at 1:00 PM", time.Time{}, false},
		{"hour 13", "1/1/25 at 13:00 PM", time.Time{}, false},
		{"hour 0", "1/1/25 at 0:10 AM", time.Time{}, false},
		{"minute 60", "1/1/25 at 1:60 PM", time.Time{}, false},
		{"missing at", "1/1/25 8:54 PM", time.Time{}, false},
		{"three digit year", "1/1/202 at 8:54 PM", time.Time{}, false},
		{"empty", "", time.Time{}, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, ok := NormalizeDate(tc.in, time.UTC)
			require.Equal(t, tc.ok, ok)
			if tc.ok {
				require.True(t, tc.want.Equal(got), "got %s want %s", got, tc.want)
			}
		})
	}
}

func TestNormalizeDateUsesLocation(t *testing.T) {
	nairobi := time.FixedZone("EAT", 3*60*60)
	got, ok := NormalizeDate("20/1/25 at 8:54 PM", nairobi)
	require.True(t, ok)
	require.Equal(t, time.Date(2025, 1, 20, 17, 54, 0, 0, time.UTC), got.UTC())
}

func TestFindDateIndex(t *testing.T) {
	require.Equal(t, 5, findDateIndex("from 1/2/25 at 1:00 PM"))
	require.Equal(t, -1, findDateIndex("from nobody"))
}
