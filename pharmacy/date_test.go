package pharmacy_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/pharmacy-ledger/pharmacy"
)

func TestNewDate_Bounds(t *testing.T) {
	tests := []struct {
		name             string
		day, month, year int
		field            string
	}{
		{"leap day in leap year", 29, 2, 2024, ""},
		{"leap day in century leap year", 29, 2, 2000, ""},
		{"leap day in non-leap century", 29, 2, 1900, "day"},
		{"leap day in common year", 29, 2, 2023, "day"},
		{"31st of a 30-day month", 31, 4, 2025, "day"},
		{"day zero", 0, 1, 2025, "day"},
		{"month 13", 1, 13, 2025, "month"},
		{"month zero", 1, 0, 2025, "month"},
		{"year below range", 1, 1, 1899, "year"},
		{"year above range", 1, 1, 2101, "year"},
		{"lower bound", 1, 1, 1900, ""},
		{"upper bound", 31, 12, 2100, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d, err := pharmacy.NewDate(tt.day, tt.month, tt.year)
			if tt.field == "" {
				require.NoError(t, err)
				assert.Equal(t, tt.day, d.Day())
				assert.Equal(t, tt.month, d.Month())
				assert.Equal(t, tt.year, d.Year())
				return
			}
			var verr *pharmacy.ValidationError
			require.ErrorAs(t, err, &verr)
			assert.Equal(t, tt.field, verr.Field)
			assert.ErrorIs(t, err, pharmacy.ErrValidation)
		})
	}
}

func TestDate_IsPast(t *testing.T) {
	// GIVEN: "now" is 15 March 2025, late in the day
	now := time.Date(2025, time.March, 15, 23, 59, 0, 0, time.UTC)

	// THEN: Only strictly earlier calendar dates are past
	assert.True(t, pharmacy.MustDate(14, 3, 2025).IsPast(now))
	assert.False(t, pharmacy.MustDate(15, 3, 2025).IsPast(now), "today is not past")
	assert.False(t, pharmacy.MustDate(16, 3, 2025).IsPast(now))
	assert.True(t, pharmacy.MustDate(31, 12, 2024).IsPast(now))
}

func TestDate_IsExpired_UsesWallClock(t *testing.T) {
	assert.True(t, pharmacy.MustDate(1, 1, 2000).IsExpired())
	assert.False(t, pharmacy.MustDate(31, 12, 2100).IsExpired())
	assert.False(t, pharmacy.Today().IsExpired())
}

func TestParseDate(t *testing.T) {
	d, err := pharmacy.ParseDate("2025-06-01")
	require.NoError(t, err)
	assert.Equal(t, pharmacy.MustDate(1, 6, 2025), d)
	assert.Equal(t, "01/06/2025", d.String())
	assert.Equal(t, "2025-06-01", d.ISO())

	for _, bad := range []string{"", "2025-13-01", "2025-02-30", "01/06/2025", "1800-01-01", "2025-6-1"} {
		_, err := pharmacy.ParseDate(bad)
		assert.ErrorIs(t, err, pharmacy.ErrValidation, "input %q", bad)
	}
}

func TestDate_BeforeAndZero(t *testing.T) {
	a := pharmacy.MustDate(31, 12, 2024)
	b := pharmacy.MustDate(1, 1, 2025)

	assert.True(t, a.Before(b))
	assert.False(t, b.Before(a))
	assert.False(t, a.Before(a))
	assert.True(t, pharmacy.Date{}.IsZero())
	assert.False(t, a.IsZero())
	assert.Equal(t, time.Date(2024, time.December, 31, 0, 0, 0, 0, time.UTC), a.Time())
}

func TestMustDate_PanicsOnInvalid(t *testing.T) {
	assert.Panics(t, func() { pharmacy.MustDate(30, 2, 2024) })
}
