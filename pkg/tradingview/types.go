package tradingview

import "encoding/json"

// ScanRequest is the body posted to /{screener}/scan.
type ScanRequest struct {
	Symbols ScanSymbols `json:"symbols"`
	Columns []string    `json:"columns"`
}

type ScanSymbols struct {
	Tickers []string  `json:"tickers"` // "EXCHANGE:SYMBOL", e.g. "FOREXCOM:EURUSD"
	Query   ScanQuery `json:"query"`
}

type ScanQuery struct {
	Types []string `json:"types"`
}

// ScanResponse is the scanner envelope.
type ScanResponse struct {
	TotalCount int        `json:"totalCount"`
	Data       []ScanData `json:"data"`
	Error      string     `json:"error,omitempty"`
}

// ScanData carries one ticker and its column values in request order.
type ScanData struct {
	Symbol string            `json:"s"`
	Values []json.RawMessage `json:"d"` // null when the venue has no value for a column
}

// Request identifies one recommendation lookup.
type Request struct {
	Symbol   string
	Screener string
	Exchange string
	Interval Interval
}

func (r Request) ticker() string {
	return r.Exchange + ":" + r.Symbol
}
