package utils

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDateWindow_Length(t *testing.T) {
	now := time.Date(2024, 1, 1, 15, 30, 0, 0, time.UTC)

	for _, n := range []int{0, 1, 7, 31, 400} {
		window := DateWindow(now, n)
		require.Len(t, window, n+1)
		assert.Equal(t, "2024-01-01", window[0])

		seen := make(map[string]bool, len(window))
		for i, day := range window {
			assert.False(t, seen[day], "duplicate day %s", day)
			seen[day] = true

			if i == 0 {
				continue
			}
			prev, err := ParseDay(window[i-1])
			require.NoError(t, err)
			cur, err := ParseDay(day)
			require.NoError(t, err)
			assert.Equal(t, 24*time.Hour, cur.Sub(prev))
			assert.Less(t, window[i-1], day)
		}
	}
}

func TestDateWindow_CrossesMonthAndYear(t *testing.T) {
	now := time.Date(2023, 12, 29, 23, 59, 0, 0, time.UTC)

	window := DateWindow(now, 4)

	assert.Equal(t, []string{"2023-12-29", "2023-12-30", "2023-12-31", "2024-01-01", "2024-01-02"}, window)
}

func TestDateWindow_LeapDay(t *testing.T) {
	window := DateWindow(time.Date(2024, 2, 28, 0, 0, 0, 0, time.UTC), 2)

	assert.Equal(t, []string{"2024-02-28", "2024-02-29", "2024-03-01"}, window)
}

func TestDateWindow_NegativeDays(t *testing.T) {
	window := DateWindow(time.Date(2024, 5, 5, 0, 0, 0, 0, time.UTC), -3)

	assert.Equal(t, []string{"2024-05-05"}, window)
}

func TestDateWindow_UsesUTC(t *testing.T) {
	tokyo := time.FixedZone("JST", 9*60*60)
	// 2024-03-10 02:00 JST is still 2024-03-09 in UTC.
	now := time.Date(2024, 3, 10, 2, 0, 0, 0, tokyo)

	assert.Equal(t, "2024-03-09", DateWindow(now, 0)[0])
	assert.Equal(t, "2024-03-09", FormatDay(now))
}
