package yahoo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"time"

	"github.com/feedmux/feedmux/internal/model"
	"github.com/feedmux/feedmux/internal/source"
)

// rangeFor maps a bar interval to the chart query range. The range only
// needs to be wide enough to contain the latest complete bar.
var rangeFor = map[string]string{
	"1m":  "1d",
	"2m":  "1d",
	"5m":  "1d",
	"15m": "1d",
	"30m": "1d",
	"1h":  "1d",
	"1d":  "5d",
}

func supportedIntervals() []string {
	out := make([]string, 0, len(rangeFor))
	for interval := range rangeFor {
		out = append(out, interval)
	}
	sort.Strings(out)
	return out
}

// chartResponse is the v8 chart API envelope.
type chartResponse struct {
	Chart struct {
		Result []chartResult `json:"result"`
		Error  *chartError   `json:"error"`
	} `json:"chart"`
}

type chartError struct {
	Code        string `json:"code"`
	Description string `json:"description"`
}

type chartResult struct {
	Meta struct {
		Symbol      string `json:"symbol"`
		Granularity string `json:"dataGranularity"`
	} `json:"meta"`
	Timestamps []int64 `json:"timestamp"`
	Indicators struct {
		Quote []quoteBlock `json:"quote"`
	} `json:"indicators"`
}

// quoteBlock carries parallel arrays; entries are null for bars the
// upstream has not finalized, hence the pointers.
type quoteBlock struct {
	Open   []*float64 `json:"open"`
	High   []*float64 `json:"high"`
	Low    []*float64 `json:"low"`
	Close  []*float64 `json:"close"`
	Volume []*float64 `json:"volume"`
}

// PollLatest fetches the most recent complete bar for symbol at interval.
// The bool result is false when the upstream returned no usable bar.
func (c *Client) PollLatest(ctx context.Context, symbol, interval string) (model.DataPoint, bool, error) {
	rng, ok := rangeFor[interval]
	if !ok {
		return model.DataPoint{}, false, fmt.Errorf("unsupported interval %q", interval)
	}

	query := url.Values{}
	query.Set("interval", interval)
	query.Set("range", rng)
	query.Set("includePrePost", "false")

	var resp chartResponse
	if err := c.get(ctx, "/v8/finance/chart/"+url.PathEscape(symbol), query, &resp); err != nil {
		var statusErr *StatusError
		if errors.As(err, &statusErr) && statusErr.IsThrottled() {
			return model.DataPoint{}, false, source.ErrThrottled
		}
		return model.DataPoint{}, false, err
	}

	if resp.Chart.Error != nil {
		return model.DataPoint{}, false, fmt.Errorf("chart error %s: %s",
			resp.Chart.Error.Code, resp.Chart.Error.Description)
	}
	if len(resp.Chart.Result) == 0 {
		return model.DataPoint{}, false, nil
	}

	point, ok := latestBar(resp.Chart.Result[0], symbol, interval)
	if !ok {
		c.logger.Debug("no usable bar in chart response", "symbol", symbol, "interval", interval)
		return model.DataPoint{}, false, nil
	}
	return point, true, nil
}

// latestBar picks the newest index with a full OHLC set. Trailing bars
// frequently have null quotes while the upstream finalizes them.
func latestBar(result chartResult, symbol, interval string) (model.DataPoint, bool) {
	if len(result.Indicators.Quote) == 0 {
		return model.DataPoint{}, false
	}
	quote := result.Indicators.Quote[0]

	for i := len(result.Timestamps) - 1; i >= 0; i-- {
		if i >= len(quote.Open) || i >= len(quote.High) || i >= len(quote.Low) || i >= len(quote.Close) {
			continue
		}
		if quote.Open[i] == nil || quote.High[i] == nil || quote.Low[i] == nil || quote.Close[i] == nil {
			continue
		}

		var volume float64
		if i < len(quote.Volume) && quote.Volume[i] != nil {
			volume = *quote.Volume[i]
		}

		return model.DataPoint{
			Symbol:    symbol,
			Timestamp: time.Unix(result.Timestamps[i], 0).UTC(),
			Open:      *quote.Open[i],
			High:      *quote.High[i],
			Low:       *quote.Low[i],
			Close:     *quote.Close[i],
			Volume:    volume,
			Interval:  interval,
			Provider:  providerSlug,
		}, true
	}
	return model.DataPoint{}, false
}

// get performs a GET request and decodes the JSON body into result.
func (c *Client) get(ctx context.Context, path string, query url.Values, result any) error {
	fullURL := c.baseURL + path
	if len(query) > 0 {
		fullURL += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fullURL, nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", "feedmux/1.0")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode >= 400 {
		return &StatusError{
			StatusCode: resp.StatusCode,
			Message:    http.StatusText(resp.StatusCode),
			Body:       body,
		}
	}

	if err := json.Unmarshal(body, result); err != nil {
		return fmt.Errorf("unmarshal response: %w", err)
	}
	return nil
}
