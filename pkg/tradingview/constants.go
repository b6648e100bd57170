package tradingview

import "fmt"

// Interval is the time granularity of a recommendation request.
type Interval string

// IntervalMeta holds the column suffix the scanner expects for an interval.
type IntervalMeta struct {
	Suffix  string
	Minutes int
}

const (
	Interval1Min   Interval = "1m"
	Interval5Min   Interval = "5m"
	Interval15Min  Interval = "15m"
	Interval30Min  Interval = "30m"
	Interval1Hour  Interval = "1h"
	Interval2Hour  Interval = "2h"
	Interval4Hour  Interval = "4h"
	IntervalDaily  Interval = "1d"
	IntervalWeekly Interval = "1W"
	IntervalMonth  Interval = "1M"
)

// validIntervals maps an Interval to its scanner column suffix.
var validIntervals = map[Interval]IntervalMeta{
	Interval1Min:   {Suffix: "|1", Minutes: 1},
	Interval5Min:   {Suffix: "|5", Minutes: 5},
	Interval15Min:  {Suffix: "|15", Minutes: 15},
	Interval30Min:  {Suffix: "|30", Minutes: 30},
	Interval1Hour:  {Suffix: "|60", Minutes: 60},
	Interval2Hour:  {Suffix: "|120", Minutes: 120},
	Interval4Hour:  {Suffix: "|240", Minutes: 240},
	IntervalDaily:  {Suffix: "", Minutes: 1440},
	IntervalWeekly: {Suffix: "|1W", Minutes: 10080},
	IntervalMonth:  {Suffix: "|1M", Minutes: 43200},
}

// IsValid checks if the Interval is a predefined interval
func (i Interval) IsValid() bool {
	_, ok := validIntervals[i]
	return ok
}

// ParseInterval parses a string into a valid IntervalMeta
func ParseInterval(s string) (IntervalMeta, error) {
	meta, ok := validIntervals[Interval(s)]
	if !ok {
		return IntervalMeta{}, fmt.Errorf("invalid interval: %s", s)
	}
	return meta, nil
}

// Screeners known to the scanner API.
const (
	ScreenerForex   = "forex"
	ScreenerCrypto  = "crypto"
	ScreenerCFD     = "cfd"
	ScreenerAmerica = "america"
)
