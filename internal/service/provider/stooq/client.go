package stooq

import (
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"MarketGate/internal/domain/models"
	drepo "MarketGate/internal/domain/repository"
	"MarketGate/internal/service/provider"
	xhttp "MarketGate/pkg/http"
)

const (
	Name           = "stooq"
	DefaultBaseURL = "https://stooq.com"

	quoteCompleteness = 0.85
	missing           = "N/D"
)

// Client serves US equities from Stooq's CSV endpoints. Daily bars only.
type Client struct {
	baseURL string
	http    *xhttp.Client
}

func New(baseURL string, http *xhttp.Client) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if http == nil {
		http = xhttp.NewClient()
	}
	return &Client{baseURL: strings.TrimRight(baseURL, "/"), http: http}
}

func (c *Client) Name() string { return Name }

func (c *Client) Capabilities() models.Capabilities {
	return models.Capabilities{Quote: true, OHLCV: true, PriceAt: true}
}

// Symbol maps a canonical ticker to Stooq's notation. Index, futures and
// crypto forms have no Stooq equivalent.
func Symbol(canonical string) (string, bool) {
	if canonical == "" || strings.HasPrefix(canonical, "^") || strings.HasSuffix(canonical, "=F") || strings.HasSuffix(canonical, "-USD") {
		return "", false
	}
	return strings.ToLower(strings.ReplaceAll(canonical, ".", "-")) + ".us", true
}

func (c *Client) FetchQuote(ctx context.Context, symbol string) (*models.RawResult, error) {
	const op = "quote"
	sym, ok := Symbol(symbol)
	if !ok {
		return nil, provider.Errorf(provider.NotFound, Name, op, "unsupported symbol %s", symbol)
	}
	rows, err := c.fetchCSV(ctx, op, "/q/l/", map[string][]string{
		"s": {sym},
		"f": {"sd2t2ohlcv"},
		"h": {""},
		"e": {"csv"},
	})
	if err != nil {
		return nil, err
	}
	if len(rows) < 2 {
		return nil, provider.Errorf(provider.NotFound, Name, op, "empty quote for %s", symbol)
	}
	idx := columns(rows[0])
	rec := rows[1]
	closeStr := field(rec, idx, "close")
	if closeStr == "" || closeStr == missing {
		return nil, provider.Errorf(provider.NotFound, Name, op, "no quote for %s", symbol)
	}
	price, err := strconv.ParseFloat(closeStr, 64)
	if err != nil {
		return nil, provider.NewError(provider.Malformed, Name, op, err)
	}

	q := &models.Quote{Price: price}
	if v, err := strconv.ParseFloat(field(rec, idx, "volume"), 64); err == nil {
		q.Volume = v
	}
	if t, err := time.Parse("2006-01-02 15:04:05", field(rec, idx, "date")+" "+field(rec, idx, "time")); err == nil {
		q.AsOf = t.UTC()
	}
	return &models.RawResult{Payload: models.Payload{Quote: q}, Completeness: quoteCompleteness}, nil
}

func (c *Client) FetchOHLCV(ctx context.Context, symbol string, r models.Range) (*models.RawResult, error) {
	const op = "ohlcv"
	if r.IsIntraday() {
		return nil, provider.Errorf(provider.NotFound, Name, op, "interval %s not served", r.Interval)
	}
	candles, err := c.history(ctx, op, symbol, r.Start, r.End)
	if err != nil {
		return nil, err
	}
	return provider.SeriesResult(provider.FilterRange(candles, r.Start, r.End), r), nil
}

func (c *Client) FetchPriceAt(ctx context.Context, symbol string, ts time.Time, tolerance time.Duration) (*models.RawResult, error) {
	const op = "price_at"
	from, to := provider.PriceAtWindow(ts, tolerance)
	candles, err := c.history(ctx, op, symbol, from, to)
	if err != nil {
		return nil, err
	}
	res, ok := provider.NearestClose(provider.FilterRange(candles, from, to), ts, tolerance)
	if !ok {
		return nil, provider.Errorf(provider.NotFound, Name, op, "no bars around %s", ts.Format(time.DateOnly))
	}
	return res, nil
}

func (c *Client) history(ctx context.Context, op, symbol string, from, to time.Time) ([]models.Candle, error) {
	sym, ok := Symbol(symbol)
	if !ok {
		return nil, provider.Errorf(provider.NotFound, Name, op, "unsupported symbol %s", symbol)
	}
	params := map[string][]string{"s": {sym}, "i": {"d"}}
	if !from.IsZero() {
		params["d1"] = []string{from.UTC().Format("20060102")}
	}
	if !to.IsZero() {
		params["d2"] = []string{to.UTC().Format("20060102")}
	}
	rows, err := c.fetchCSV(ctx, op, "/q/d/l/", params)
	if err != nil {
		return nil, err
	}
	if len(rows) < 2 {
		return nil, provider.Errorf(provider.NotFound, Name, op, "no history for %s", symbol)
	}
	idx := columns(rows[0])
	if _, ok := idx["date"]; !ok {
		return nil, provider.Errorf(provider.NotFound, Name, op, "no history for %s", symbol)
	}

	out := make([]models.Candle, 0, len(rows)-1)
	for _, rec := range rows[1:] {
		day, err := time.Parse(time.DateOnly, field(rec, idx, "date"))
		if err != nil {
			continue
		}
		cd := models.Candle{Bucket: day}
		vals := []*float64{&cd.Open, &cd.High, &cd.Low, &cd.Close}
		bad := false
		for i, name := range []string{"open", "high", "low", "close"} {
			v, err := strconv.ParseFloat(field(rec, idx, name), 64)
			if err != nil {
				bad = true
				break
			}
			*vals[i] = v
		}
		if bad {
			continue
		}
		if v, err := strconv.ParseFloat(field(rec, idx, "volume"), 64); err == nil {
			cd.Volume = v
		}
		out = append(out, cd)
	}
	if len(out) == 0 {
		return nil, provider.Errorf(provider.Malformed, Name, op, "no parsable rows for %s", symbol)
	}
	return out, nil
}

func (c *Client) fetchCSV(ctx context.Context, op, path string, params map[string][]string) ([][]string, error) {
	var body []byte
	err := c.http.SendAndParse(ctx, &xhttp.RequestOptions{
		Method:      xhttp.MethodGet,
		URL:         c.baseURL + path,
		QueryParams: params,
	}, &body)
	if err != nil {
		return nil, provider.Classify(Name, op, err)
	}
	body = bytes.TrimSpace(body)
	if len(body) == 0 || bytes.HasPrefix(bytes.ToLower(body), []byte("no data")) {
		return nil, provider.Errorf(provider.NotFound, Name, op, "no data")
	}
	if bytes.Contains(bytes.ToLower(body), []byte("exceeded the daily hits limit")) {
		return nil, provider.Errorf(provider.RateLimited, Name, op, "daily hits limit")
	}

	r := csv.NewReader(bytes.NewReader(body))
	r.FieldsPerRecord = -1
	if first, _, _ := bytes.Cut(body, []byte("\n")); bytes.Count(first, []byte(";")) > bytes.Count(first, []byte(",")) {
		r.Comma = ';'
	}
	var rows [][]string
	for {
		rec, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, provider.NewError(provider.Malformed, Name, op, fmt.Errorf("csv: %w", err))
		}
		rows = append(rows, rec)
	}
	return rows, nil
}

func columns(header []string) map[string]int {
	idx := make(map[string]int, len(header))
	for i, h := range header {
		idx[strings.ToLower(strings.TrimSpace(h))] = i
	}
	return idx
}

func field(rec []string, idx map[string]int, name string) string {
	i, ok := idx[name]
	if !ok || i >= len(rec) {
		return ""
	}
	return strings.TrimSpace(rec[i])
}

var _ drepo.Adapter = (*Client)(nil)
