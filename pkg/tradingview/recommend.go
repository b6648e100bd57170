package tradingview

import (
	"encoding/json"
	"fmt"
)

const recommendColumn = "Recommend.All"

// Recommend maps a Recommend.All score in [-1, 1] to its summary label.
func Recommend(score float64) (string, error) {
	switch {
	case score >= -1 && score < -0.5:
		return "STRONG_SELL", nil
	case score >= -0.5 && score < -0.1:
		return "SELL", nil
	case score >= -0.1 && score <= 0.1:
		return "NEUTRAL", nil
	case score > 0.1 && score <= 0.5:
		return "BUY", nil
	case score > 0.5 && score <= 1:
		return "STRONG_BUY", nil
	}
	return "", fmt.Errorf("recommendation score out of range: %v", score)
}

// parseScore reads the first column value; a null value means no data.
func parseScore(data ScanData) (float64, error) {
	if len(data.Values) == 0 {
		return 0, fmt.Errorf("%w: no columns for %s", ErrNoData, data.Symbol)
	}
	raw := data.Values[0]
	if string(raw) == "null" {
		return 0, fmt.Errorf("%w: null score for %s", ErrNoData, data.Symbol)
	}
	var score float64
	if err := json.Unmarshal(raw, &score); err != nil {
		return 0, fmt.Errorf("decode score: %w", err)
	}
	return score, nil
}
