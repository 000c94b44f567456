package marketdata

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCalendarForSymbol(t *testing.T) {
	_, ok := CalendarForSymbol("EURUSD")
	assert.False(t, ok)

	_, ok = CalendarForSymbol("BRENT.cash")
	assert.False(t, ok)

	cal, ok := CalendarForSymbol("VOD.L")
	require.True(t, ok)
	assert.Equal(t, "xlon", cal.MIC)

	cal, ok = CalendarForSymbol("msft.us")
	require.True(t, ok)
	assert.Equal(t, "xnys", cal.MIC)
}

func TestFallbackSession(t *testing.T) {
	cal := &SessionCalendar{MIC: "xnys", Fallback: true, Timezone: time.UTC}

	monday := time.Date(2024, 6, 3, 0, 0, 0, 0, time.UTC)
	assert.True(t, cal.IsTradingDay(monday))
	assert.False(t, cal.IsTradingDay(monday.AddDate(0, 0, -1)))

	assert.False(t, cal.IsOpen(monday.Add(9*time.Hour+29*time.Minute)))
	assert.True(t, cal.IsOpen(monday.Add(9*time.Hour+30*time.Minute)))
	assert.True(t, cal.IsOpen(monday.Add(15*time.Hour+59*time.Minute)))
	assert.False(t, cal.IsOpen(monday.Add(16*time.Hour)))
}
