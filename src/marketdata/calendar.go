package marketdata

import (
	"strings"
	"time"

	"github.com/scmhub/calendar"
)

// exchangeSuffixes maps broker symbol suffixes onto ISO 10383 MIC codes.
// Symbols without one of these suffixes (forex, metals, CFDs) trade
// around the clock and are not checked against an exchange calendar.
var exchangeSuffixes = map[string]string{
	".US":   "xnys",
	".NYSE": "xnys",
	".NAS":  "xnys",
	".L":    "xlon",
	".LSE":  "xlon",
	".PA":   "xpar",
	".DE":   "xfra",
	".AS":   "xams",
	".BR":   "xbru",
	".MI":   "xmil",
	".MC":   "xmad",
	".ST":   "xsto",
	".CO":   "xcse",
	".HE":   "xhel",
	".VI":   "xwbo",
	".SW":   "xswx",
	".TO":   "xtse",
	".T":    "xtks",
	".HK":   "xhkg",
	".AX":   "xasx",
}

// -----------------------------------------------------------------------------

// SessionCalendar answers whether an exchange is in session.
type SessionCalendar struct {
	MIC      string
	Calendar *calendar.Calendar
	Fallback bool
	Timezone *time.Location
}

// -----------------------------------------------------------------------------

// CalendarForSymbol returns the exchange calendar of an exchange-listed
// symbol, or false when the symbol carries no known exchange suffix.
func CalendarForSymbol(symbol string) (*SessionCalendar, bool) {
	dot := strings.LastIndex(symbol, ".")
	if dot <= 0 {
		return nil, false
	}
	mic, ok := exchangeSuffixes[strings.ToUpper(symbol[dot:])]
	if !ok {
		return nil, false
	}

	cal := calendar.GetCalendar(mic)
	if cal == nil {
		nyLoc, _ := time.LoadLocation("America/New_York")
		if nyLoc == nil {
			nyLoc = time.UTC
		}
		return &SessionCalendar{MIC: mic, Fallback: true, Timezone: nyLoc}, true
	}

	return &SessionCalendar{MIC: mic, Calendar: cal, Timezone: cal.Loc}, true
}

// -----------------------------------------------------------------------------

func (sc *SessionCalendar) IsTradingDay(date time.Time) bool {
	if sc.Timezone != nil {
		date = date.In(sc.Timezone)
	}

	if sc.Fallback {
		weekday := date.Weekday()
		return weekday != time.Saturday && weekday != time.Sunday
	}
	return sc.Calendar.IsBusinessDay(date)
}

// -----------------------------------------------------------------------------

// IsOpen checks if the exchange is in its regular session at t.
func (sc *SessionCalendar) IsOpen(t time.Time) bool {
	if sc.Timezone != nil {
		t = t.In(sc.Timezone)
	}

	if sc.Fallback {
		if !sc.IsTradingDay(t) {
			return false
		}

		// 9:30 - 16:00 local
		hour, minute := t.Hour(), t.Minute()
		return (hour > 9 || (hour == 9 && minute >= 30)) && hour < 16
	}

	return sc.Calendar.IsOpen(t)
}
