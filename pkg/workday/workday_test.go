package workday

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func date(t *testing.T, raw string) time.Time {
	t.Helper()
	d, err := ParseDate(raw)
	require.NoError(t, err)
	return d
}

func TestAddWorkingDaysExamples(t *testing.T) {
	cases := []struct {
		name  string
		start string
		n     int
		want  string
	}{
		{name: "ten from monday", start: "2024-01-01", n: 10, want: "2024-01-15"},
		{name: "one from friday", start: "2024-01-05", n: 1, want: "2024-01-08"},
		{name: "foi response from friday", start: "2024-03-01", n: 10, want: "2024-03-15"},
		{name: "foi internal from friday", start: "2024-03-01", n: 20, want: "2024-03-29"},
		{name: "saturday start not counted", start: "2024-01-06", n: 1, want: "2024-01-08"},
		{name: "sunday start not counted", start: "2024-01-07", n: 5, want: "2024-01-12"},
		{name: "across leap day", start: "2024-02-28", n: 2, want: "2024-03-01"},
		{name: "across year end", start: "2024-12-31", n: 3, want: "2025-01-03"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := AddWorkingDays(date(t, tc.start), tc.n)
			require.NoError(t, err)
			assert.Equal(t, tc.want, FormatDate(got))
		})
	}
}

func TestAddWorkingDaysZeroReturnsStart(t *testing.T) {
	for _, raw := range []string{"2024-01-01", "2024-01-06", "2024-01-07", "2023-02-28"} {
		d := date(t, raw)
		got, err := AddWorkingDays(d, 0)
		require.NoError(t, err)
		assert.True(t, got.Equal(d), raw)
	}
}

func TestAddWorkingDaysProperties(t *testing.T) {
	start := date(t, "2023-12-25")
	for offset := 0; offset < 21; offset++ {
		d := start.AddDate(0, 0, offset)
		prev := d
		for n := 0; n <= 25; n++ {
			got, err := AddWorkingDays(d, n)
			require.NoError(t, err)
			if n > 0 {
				assert.True(t, IsWorkingDay(got), "%s+%d landed on %s", FormatDate(d), n, got.Weekday())
				assert.True(t, got.After(d), "%s+%d not after start", FormatDate(d), n)
			}
			assert.False(t, got.Before(prev), "%s+%d not monotonic", FormatDate(d), n)
			prev = got
		}
	}
}

func TestAddWorkingDaysNormalisesToUTCDay(t *testing.T) {
	loc := time.FixedZone("UTC+10", 10*60*60)
	// 2024-01-06 02:00 at +10 is Friday 2024-01-05 16:00 UTC.
	local := time.Date(2024, time.January, 6, 2, 0, 0, 0, loc)

	got, err := AddWorkingDays(local, 1)
	require.NoError(t, err)
	assert.Equal(t, "2024-01-08", FormatDate(got))
	assert.Equal(t, time.UTC, got.Location())
}

func TestAddWorkingDaysInvalidArguments(t *testing.T) {
	_, err := AddWorkingDays(date(t, "2024-01-01"), -1)
	assert.True(t, errors.Is(err, ErrInvalidArgument))

	_, err = AddWorkingDays(time.Time{}, 3)
	assert.True(t, errors.Is(err, ErrInvalidArgument))
}

func TestParseDateRejectsMalformed(t *testing.T) {
	for _, raw := range []string{"", "2024-13-01", "2024-02-30", "01/02/2024", "2024-1-1"} {
		_, err := ParseDate(raw)
		assert.True(t, errors.Is(err, ErrInvalidArgument), raw)
	}
}
