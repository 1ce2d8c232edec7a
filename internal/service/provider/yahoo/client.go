package yahoo

import (
	"context"
	"net/url"
	"strconv"
	"strings"
	"time"

	"MarketGate/internal/domain/models"
	drepo "MarketGate/internal/domain/repository"
	"MarketGate/internal/service/provider"
	xhttp "MarketGate/pkg/http"
)

const (
	Name           = "yahoo"
	DefaultBaseURL = "https://query1.finance.yahoo.com"
	userAgent      = "Mozilla/5.0 (compatible; MarketGate/1.0)"
)

// Client reads Yahoo Finance chart data. It is the only shipped adapter that
// can serve sub-daily bars.
type Client struct {
	baseURL string
	http    *xhttp.Client
}

func New(baseURL string, http *xhttp.Client) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if http == nil {
		http = xhttp.NewClient(xhttp.WithHeader("User-Agent", userAgent))
	}
	return &Client{baseURL: strings.TrimRight(baseURL, "/"), http: http}
}

func (c *Client) Name() string { return Name }

func (c *Client) Capabilities() models.Capabilities {
	return models.Capabilities{Quote: true, OHLCV: true, PriceAt: true, Intraday: true}
}

type chartResponse struct {
	Chart struct {
		Result []chartResult `json:"result"`
		Error  *struct {
			Code        string `json:"code"`
			Description string `json:"description"`
		} `json:"error"`
	} `json:"chart"`
}

type chartResult struct {
	Meta struct {
		RegularMarketPrice  *float64 `json:"regularMarketPrice"`
		ChartPreviousClose  *float64 `json:"chartPreviousClose"`
		RegularMarketVolume *float64 `json:"regularMarketVolume"`
		RegularMarketTime   int64    `json:"regularMarketTime"`
	} `json:"meta"`
	Timestamp  []int64 `json:"timestamp"`
	Indicators struct {
		Quote []struct {
			Open   []*float64 `json:"open"`
			High   []*float64 `json:"high"`
			Low    []*float64 `json:"low"`
			Close  []*float64 `json:"close"`
			Volume []*float64 `json:"volume"`
		} `json:"quote"`
	} `json:"indicators"`
}

func (c *Client) FetchQuote(ctx context.Context, symbol string) (*models.RawResult, error) {
	const op = "quote"
	res, err := c.chart(ctx, op, symbol, map[string][]string{"interval": {"1d"}, "range": {"5d"}})
	if err != nil {
		return nil, err
	}
	m := res.Meta
	if m.RegularMarketPrice == nil || *m.RegularMarketPrice <= 0 {
		return nil, provider.Errorf(provider.NotFound, Name, op, "no market price for %s", symbol)
	}
	q := &models.Quote{Price: *m.RegularMarketPrice}
	if m.ChartPreviousClose != nil && *m.ChartPreviousClose > 0 {
		q.PreviousClose = *m.ChartPreviousClose
		q.ChangePct1D = (q.Price/q.PreviousClose - 1) * 100
	}
	if m.RegularMarketVolume != nil {
		q.Volume = *m.RegularMarketVolume
	}
	if m.RegularMarketTime > 0 {
		q.AsOf = time.Unix(m.RegularMarketTime, 0).UTC()
	}
	return &models.RawResult{Payload: models.Payload{Quote: q}, Completeness: 1}, nil
}

func (c *Client) FetchOHLCV(ctx context.Context, symbol string, r models.Range) (*models.RawResult, error) {
	const op = "ohlcv"
	interval := r.Interval
	if interval == "" {
		interval = models.IntervalDaily
	}
	end := r.End
	if end.IsZero() {
		end = time.Now()
	}
	res, err := c.chart(ctx, op, symbol, map[string][]string{
		"interval": {interval},
		"period1":  {strconv.FormatInt(r.Start.Unix(), 10)},
		"period2":  {strconv.FormatInt(end.Unix(), 10)},
	})
	if err != nil {
		return nil, err
	}
	candles, err := bars(op, res)
	if err != nil {
		return nil, err
	}
	return provider.SeriesResult(provider.FilterRange(candles, r.Start, r.End), r), nil
}

func (c *Client) FetchPriceAt(ctx context.Context, symbol string, ts time.Time, tolerance time.Duration) (*models.RawResult, error) {
	const op = "price_at"
	from, to := provider.PriceAtWindow(ts, tolerance)
	res, err := c.chart(ctx, op, symbol, map[string][]string{
		"interval": {models.IntervalDaily},
		"period1":  {strconv.FormatInt(from.Unix(), 10)},
		"period2":  {strconv.FormatInt(to.Unix(), 10)},
	})
	if err != nil {
		return nil, err
	}
	candles, err := bars(op, res)
	if err != nil {
		return nil, err
	}
	out, ok := provider.NearestClose(candles, ts, tolerance)
	if !ok {
		return nil, provider.Errorf(provider.NotFound, Name, op, "no bars around %s", ts.Format(time.DateOnly))
	}
	return out, nil
}

func (c *Client) chart(ctx context.Context, op, symbol string, params map[string][]string) (*chartResult, error) {
	var body chartResponse
	err := c.http.SendAndParse(ctx, &xhttp.RequestOptions{
		Method:      xhttp.MethodGet,
		URL:         c.baseURL + "/v8/finance/chart/" + url.PathEscape(symbol),
		QueryParams: params,
	}, &body)
	if err != nil {
		return nil, provider.Classify(Name, op, err)
	}
	if e := body.Chart.Error; e != nil {
		if strings.EqualFold(e.Code, "Not Found") {
			return nil, provider.Errorf(provider.NotFound, Name, op, "%s", e.Description)
		}
		return nil, provider.Errorf(provider.Unknown, Name, op, "%s: %s", e.Code, e.Description)
	}
	if len(body.Chart.Result) == 0 {
		return nil, provider.Errorf(provider.NotFound, Name, op, "empty chart for %s", symbol)
	}
	return &body.Chart.Result[0], nil
}

// bars zips the column arrays, dropping rows with null prices.
func bars(op string, res *chartResult) ([]models.Candle, error) {
	if len(res.Timestamp) == 0 || len(res.Indicators.Quote) == 0 {
		return nil, provider.Errorf(provider.NotFound, Name, op, "no bars")
	}
	q := res.Indicators.Quote[0]
	n := len(res.Timestamp)
	if len(q.Open) != n || len(q.High) != n || len(q.Low) != n || len(q.Close) != n {
		return nil, provider.Errorf(provider.Malformed, Name, op, "ragged indicator arrays")
	}

	out := make([]models.Candle, 0, n)
	for i, ts := range res.Timestamp {
		if q.Open[i] == nil || q.High[i] == nil || q.Low[i] == nil || q.Close[i] == nil {
			continue
		}
		cd := models.Candle{
			Bucket: time.Unix(ts, 0).UTC(),
			Open:   *q.Open[i],
			High:   *q.High[i],
			Low:    *q.Low[i],
			Close:  *q.Close[i],
		}
		if i < len(q.Volume) && q.Volume[i] != nil {
			cd.Volume = *q.Volume[i]
		}
		out = append(out, cd)
	}
	if len(out) == 0 {
		return nil, provider.Errorf(provider.NotFound, Name, op, "all bars null")
	}
	return out, nil
}

var _ drepo.Adapter = (*Client)(nil)
