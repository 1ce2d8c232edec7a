package stooq

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"MarketGate/internal/domain/models"
	"MarketGate/internal/service/provider"
)

func serve(t *testing.T, body string) *Client {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return New(srv.URL, nil)
}

func TestSymbol(t *testing.T) {
	tests := map[string]struct {
		want string
		ok   bool
	}{
		"AAPL":    {"aapl.us", true},
		"BRK.B":   {"brk-b.us", true},
		"^GSPC":   {"", false},
		"ES=F":    {"", false},
		"BTC-USD": {"", false},
	}
	for in, tt := range tests {
		got, ok := Symbol(in)
		assert.Equal(t, tt.ok, ok, in)
		assert.Equal(t, tt.want, got, in)
	}
}

func TestFetchQuote(t *testing.T) {
	var gotQuery string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.Query().Get("s")
		_, _ = w.Write([]byte("Symbol,Date,Time,Open,High,Low,Close,Volume\r\nAAPL.US,2024-03-01,22:00:09,179.55,180.53,177.38,179.66,73563082\r\n"))
	}))
	defer srv.Close()

	res, err := New(srv.URL, nil).FetchQuote(context.Background(), "AAPL")
	require.NoError(t, err)
	assert.Equal(t, "aapl.us", gotQuery)
	assert.InDelta(t, 179.66, res.Payload.Quote.Price, 1e-9)
	assert.InDelta(t, 73563082, res.Payload.Quote.Volume, 1e-9)
	assert.Equal(t, time.Date(2024, 3, 1, 22, 0, 9, 0, time.UTC), res.Payload.Quote.AsOf)
	assert.InDelta(t, 0.85, res.Completeness, 1e-9)
}

func TestFetchQuote_NotFound(t *testing.T) {
	c := serve(t, "Symbol,Date,Time,Open,High,Low,Close,Volume\nZZZZ.US,N/D,N/D,N/D,N/D,N/D,N/D,N/D\n")
	_, err := c.FetchQuote(context.Background(), "ZZZZ")
	assert.Equal(t, provider.NotFound, provider.KindOf(err))

	_, err = c.FetchQuote(context.Background(), "^GSPC")
	assert.Equal(t, provider.NotFound, provider.KindOf(err))
}

func TestFetchOHLCV_SemicolonHistory(t *testing.T) {
	c := serve(t, "Date;Open;High;Low;Close;Volume\n2024-02-28;1;2;0.5;1.5;10\n2024-02-29;1.5;2.5;1;2;20\n2024-03-01;2;3;1.5;2.5;30\n")

	r := models.Range{
		Start:     time.Date(2024, 2, 29, 0, 0, 0, 0, time.UTC),
		End:       time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC),
		Interval:  models.IntervalDaily,
		MinPoints: 2,
	}
	res, err := c.FetchOHLCV(context.Background(), "AAPL", r)
	require.NoError(t, err)
	require.Len(t, res.Payload.OHLCV.Candles, 2)
	assert.InDelta(t, 2.0, res.Payload.OHLCV.Candles[0].Close, 1e-9)
	assert.InDelta(t, 1.0, res.Completeness, 1e-9)
	assert.Empty(t, res.Flags)
}

func TestFetchOHLCV_Errors(t *testing.T) {
	_, err := serve(t, "No data").FetchOHLCV(context.Background(), "ZZZZ", models.Range{Interval: "1d"})
	assert.Equal(t, provider.NotFound, provider.KindOf(err))

	_, err = serve(t, "Exceeded the daily hits limit").FetchOHLCV(context.Background(), "AAPL", models.Range{Interval: "1d"})
	assert.Equal(t, provider.RateLimited, provider.KindOf(err))

	_, err = serve(t, "Date,Open\n").FetchOHLCV(context.Background(), "AAPL", models.Range{Interval: "1h"})
	assert.Equal(t, provider.NotFound, provider.KindOf(err))
}

func TestFetchPriceAt_OutsideTolerance(t *testing.T) {
	c := serve(t, "Date,Open,High,Low,Close,Volume\n2024-02-20,1,1,1,1,1\n")

	ts := time.Date(2024, 2, 24, 0, 0, 0, 0, time.UTC)
	res, err := c.FetchPriceAt(context.Background(), "AAPL", ts, 24*time.Hour)
	require.NoError(t, err)
	assert.Zero(t, res.Completeness)
	assert.Contains(t, res.Flags, models.FlagIncompleteWindow)
}
