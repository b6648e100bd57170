package signal

import (
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode"
)

var (
	ErrInvalidSymbol         = errors.New("invalid symbol")
	ErrUnknownClassification = errors.New("unknown classification")
)

// Subscriber is the opaque identity of whoever receives alerts (e.g. a Telegram chat id).
type Subscriber string

// Symbol is an uppercase alphanumeric instrument code (e.g., "EURUSD").
type Symbol string

// MaxSymbolLen is the longest accepted symbol; storage columns are sized to it.
const MaxSymbolLen = 32

// Classification is the recommendation verdict returned by a venue.
// The zero value means no classification.
type Classification string

const (
	StrongBuy  Classification = "STRONG_BUY"
	Buy        Classification = "BUY"
	Neutral    Classification = "NEUTRAL"
	Sell       Classification = "SELL"
	StrongSell Classification = "STRONG_SELL"
)

var knownClassifications = map[Classification]struct{}{
	StrongBuy:  {},
	Buy:        {},
	Neutral:    {},
	Sell:       {},
	StrongSell: {},
}

// ParseClassification accepts exactly the provider spellings.
func ParseClassification(s string) (Classification, error) {
	c := Classification(s)
	if _, ok := knownClassifications[c]; !ok {
		return "", fmt.Errorf("%w: %q", ErrUnknownClassification, s)
	}
	return c, nil
}

func (c Classification) IsValid() bool {
	_, ok := knownClassifications[c]
	return ok
}

func (c Classification) String() string {
	return string(c)
}

// AlertWorthy is the set of classifications that may trigger a notification.
type AlertWorthy map[Classification]struct{}

// DefaultAlertWorthy returns {STRONG_BUY, STRONG_SELL}.
func DefaultAlertWorthy() AlertWorthy {
	return AlertWorthy{StrongBuy: {}, StrongSell: {}}
}

// NewAlertWorthy builds a set from provider spellings.
func NewAlertWorthy(values []string) (AlertWorthy, error) {
	set := make(AlertWorthy, len(values))
	for _, v := range values {
		c, err := ParseClassification(strings.ToUpper(strings.TrimSpace(v)))
		if err != nil {
			return nil, err
		}
		set[c] = struct{}{}
	}
	return set, nil
}

func (a AlertWorthy) Contains(c Classification) bool {
	_, ok := a[c]
	return ok
}

// AlertEvent is built per trigger and lives only until dispatch returns.
type AlertEvent struct {
	Subscriber     Subscriber     `json:"subscriber"`
	Symbol         Symbol         `json:"symbol"`
	Classification Classification `json:"classification"`
	Venue          string         `json:"venue"`
	Timestamp      time.Time      `json:"timestamp"`
}

// NormalizeSymbol trims and uppercases s and rejects anything that is not alphanumeric.
func NormalizeSymbol(s string) (Symbol, error) {
	s = strings.ToUpper(strings.TrimSpace(s))
	if s == "" {
		return "", fmt.Errorf("%w: empty", ErrInvalidSymbol)
	}
	if len(s) > MaxSymbolLen {
		return "", fmt.Errorf("%w: longer than %d characters", ErrInvalidSymbol, MaxSymbolLen)
	}
	for _, r := range s {
		if r > unicode.MaxASCII || !(unicode.IsLetter(r) || unicode.IsDigit(r)) {
			return "", fmt.Errorf("%w: %q", ErrInvalidSymbol, s)
		}
	}
	return Symbol(s), nil
}
