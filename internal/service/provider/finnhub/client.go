package finnhub

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"time"

	"MarketGate/internal/domain/models"
	drepo "MarketGate/internal/domain/repository"
	"MarketGate/internal/service/provider"
	xhttp "MarketGate/pkg/http"
)

const (
	Name           = "finnhub"
	DefaultBaseURL = "https://finnhub.io/api/v1"

	quoteCompleteness = 0.8
)

var errMissingKey = errors.New("api key not configured")

// Client implements the Adapter contract on top of the Finnhub REST API.
type Client struct {
	apiKey  string
	baseURL string
	http    *xhttp.Client
}

// New creates a Finnhub adapter. An empty baseURL selects the public endpoint.
func New(apiKey, baseURL string, http *xhttp.Client) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if http == nil {
		http = xhttp.NewClient()
	}
	return &Client{apiKey: strings.TrimSpace(apiKey), baseURL: strings.TrimRight(baseURL, "/"), http: http}
}

func (c *Client) Name() string { return Name }

func (c *Client) Capabilities() models.Capabilities {
	return models.Capabilities{Quote: true, OHLCV: true, PriceAt: true}
}

type fhQuote struct {
	C  float64 `json:"c"`  // current
	D  float64 `json:"d"`  // change
	DP float64 `json:"dp"` // change percent
	PC float64 `json:"pc"` // previous close
	T  int64   `json:"t"`  // unix seconds
}

type fhCandles struct {
	S string    `json:"s"`
	T []int64   `json:"t"`
	O []float64 `json:"o"`
	H []float64 `json:"h"`
	L []float64 `json:"l"`
	C []float64 `json:"c"`
	V []float64 `json:"v"`
}

// FetchQuote reads /quote. Finnhub answers unknown symbols with an all-zero body.
func (c *Client) FetchQuote(ctx context.Context, symbol string) (*models.RawResult, error) {
	const op = "quote"
	var q fhQuote
	if err := c.get(ctx, op, "/quote", map[string][]string{"symbol": {symbol}}, &q); err != nil {
		return nil, err
	}
	if q.C <= 0 {
		return nil, provider.Errorf(provider.NotFound, Name, op, "no quote for %s", symbol)
	}
	quote := &models.Quote{Price: q.C, PreviousClose: q.PC, ChangePct1D: q.DP, AsOf: time.Unix(q.T, 0).UTC()}
	if q.T == 0 {
		quote.AsOf = time.Time{}
	}
	return &models.RawResult{Payload: models.Payload{Quote: quote}, Completeness: quoteCompleteness}, nil
}

// FetchOHLCV reads /stock/candle for the requested window.
func (c *Client) FetchOHLCV(ctx context.Context, symbol string, r models.Range) (*models.RawResult, error) {
	candles, err := c.candles(ctx, "ohlcv", symbol, r.Interval, r.Start, r.End)
	if err != nil {
		return nil, err
	}
	return provider.SeriesResult(provider.FilterRange(candles, r.Start, r.End), r), nil
}

// FetchPriceAt resolves the daily close nearest to ts.
func (c *Client) FetchPriceAt(ctx context.Context, symbol string, ts time.Time, tolerance time.Duration) (*models.RawResult, error) {
	from, to := provider.PriceAtWindow(ts, tolerance)
	candles, err := c.candles(ctx, "price_at", symbol, models.IntervalDaily, from, to)
	if err != nil {
		return nil, err
	}
	res, ok := provider.NearestClose(candles, ts, tolerance)
	if !ok {
		return nil, provider.Errorf(provider.NotFound, Name, "price_at", "no bars around %s", ts.Format(time.DateOnly))
	}
	return res, nil
}

func (c *Client) candles(ctx context.Context, op, symbol, interval string, from, to time.Time) ([]models.Candle, error) {
	res, ok := resolution(interval)
	if !ok {
		return nil, provider.Errorf(provider.NotFound, Name, op, "unsupported interval %q", interval)
	}
	if to.IsZero() {
		to = time.Now()
	}
	params := map[string][]string{
		"symbol":     {symbol},
		"resolution": {res},
		"from":       {strconv.FormatInt(from.Unix(), 10)},
		"to":         {strconv.FormatInt(to.Unix(), 10)},
	}
	var body fhCandles
	if err := c.get(ctx, op, "/stock/candle", params, &body); err != nil {
		return nil, err
	}
	if body.S == "no_data" || len(body.T) == 0 {
		return nil, provider.Errorf(provider.NotFound, Name, op, "no candles for %s", symbol)
	}
	if body.S != "ok" {
		return nil, provider.Errorf(provider.Malformed, Name, op, "status %q", body.S)
	}
	n := len(body.T)
	if len(body.O) != n || len(body.H) != n || len(body.L) != n || len(body.C) != n {
		return nil, provider.Errorf(provider.Malformed, Name, op, "ragged candle arrays")
	}

	out := make([]models.Candle, 0, n)
	for i := 0; i < n; i++ {
		cd := models.Candle{
			Bucket: time.Unix(body.T[i], 0).UTC(),
			Open:   body.O[i],
			High:   body.H[i],
			Low:    body.L[i],
			Close:  body.C[i],
		}
		if i < len(body.V) {
			cd.Volume = body.V[i]
		}
		out = append(out, cd)
	}
	return out, nil
}

func (c *Client) get(ctx context.Context, op, path string, params map[string][]string, dest interface{}) error {
	if c.apiKey == "" {
		return provider.NewError(provider.AuthFailure, Name, op, errMissingKey)
	}
	params["token"] = []string{c.apiKey}
	err := c.http.SendAndParse(ctx, &xhttp.RequestOptions{
		Method:      xhttp.MethodGet,
		URL:         c.baseURL + path,
		QueryParams: params,
	}, dest)
	if err != nil {
		return provider.Classify(Name, op, err)
	}
	return nil
}

func resolution(interval string) (string, bool) {
	switch interval {
	case "", models.IntervalDaily:
		return "D", true
	}
	return "", false
}

var _ drepo.Adapter = (*Client)(nil)
