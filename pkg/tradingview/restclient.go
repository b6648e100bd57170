package tradingview

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"
)

var (
	ErrSymbolNotFound = errors.New("exchange or symbol not found")
	ErrNoData         = errors.New("no recommendation data")
)

type RESTClient struct {
	baseURL    string
	userAgent  string
	httpClient *http.Client
}

func NewRESTClient(baseURL string, timeout time.Duration) *RESTClient {
	return &RESTClient{
		baseURL:    baseURL,
		userAgent:  "signalwatch/1.0",
		httpClient: &http.Client{Timeout: timeout},
	}
}

func (c *RESTClient) HTTPClient() *http.Client {
	return c.httpClient
}

// Scan posts a scan request for one screener.
func (c *RESTClient) Scan(ctx context.Context, screener string, body ScanRequest) (*ScanResponse, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("encode request: %w", err)
	}

	endpoint := fmt.Sprintf("%s/%s/scan", c.baseURL, screener)

	// Construct the POST request with context for timeout/cancel support
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", c.userAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("making request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("tradingview error: status %d: %s", resp.StatusCode, body)
	}

	var result ScanResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	if result.Error != "" {
		return nil, fmt.Errorf("tradingview error: %s", result.Error)
	}
	return &result, nil
}

// Recommendation returns the summary label (e.g. "STRONG_BUY") for one ticker on one venue.
func (c *RESTClient) Recommendation(ctx context.Context, r Request) (string, error) {
	meta, err := ParseInterval(string(r.Interval))
	if err != nil {
		return "", err
	}

	result, err := c.Scan(ctx, r.Screener, ScanRequest{
		Symbols: ScanSymbols{
			Tickers: []string{r.ticker()},
			Query:   ScanQuery{Types: []string{}},
		},
		Columns: []string{recommendColumn + meta.Suffix},
	})
	if err != nil {
		return "", err
	}
	if len(result.Data) == 0 {
		return "", fmt.Errorf("%w: %s", ErrSymbolNotFound, r.ticker())
	}

	score, err := parseScore(result.Data[0])
	if err != nil {
		return "", err
	}
	return Recommend(score)
}
