package marketdata

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	"breakout_bot/pkg/logger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMain(m *testing.M) {
	if err := logger.Init(); err != nil {
		panic(err)
	}
	os.Exit(m.Run())
}

func quoteServer(t *testing.T, handler http.HandlerFunc) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return srv
}

func TestFetchLastPrices_FullSnapshot(t *testing.T) {
	srv := quoteServer(t, func(w http.ResponseWriter, r *http.Request) {
		// TCS отвечает, INFY приходит без цены, GHOST вообще не приходит
		fmt.Fprint(w, `{"quoteResponse":{"result":[
			{"symbol":"TCS.NS","regularMarketPrice":3850.5,"regularMarketTime":1756600000},
			{"symbol":"INFY.NS","regularMarketPrice":null}
		],"error":null}}`)
	})

	c := NewClient(Options{QuoteURL: srv.URL})
	symbols := []string{"TCS.NS", "INFY.NS", "GHOST.NS"}
	snap := c.FetchLastPrices(context.Background(), symbols)

	// на каждый входной символ ровно одна запись
	require.Len(t, snap, 3)

	q := snap.At("TCS.NS")
	assert.True(t, q.Valid)
	assert.Equal(t, 3850.5, q.Price)
	assert.Equal(t, time.Unix(1756600000, 0), q.At)

	assert.False(t, snap.At("INFY.NS").Valid)
	assert.False(t, snap.At("GHOST.NS").Valid)
}

func TestFetchLastPrices_Batching(t *testing.T) {
	var batches []string
	srv := quoteServer(t, func(w http.ResponseWriter, r *http.Request) {
		batches = append(batches, r.URL.Query().Get("symbols"))
		fmt.Fprint(w, `{"quoteResponse":{"result":[],"error":null}}`)
	})

	c := NewClient(Options{QuoteURL: srv.URL, BatchSize: 2, BatchPause: time.Millisecond})
	snap := c.FetchLastPrices(context.Background(), []string{"A", "B", "C", "D", "E"})

	assert.Len(t, snap, 5)
	require.Len(t, batches, 3)
	assert.Equal(t, "A,B", batches[0])
	assert.Equal(t, "C,D", batches[1])
	assert.Equal(t, "E", batches[2])
}

// Ответ на запрос одного символа приходит плоским объектом, не массивом.
func TestFetchLastPrices_SingleObjectShape(t *testing.T) {
	srv := quoteServer(t, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"quoteResponse":{"result":{"symbol":"SBIN.NS","regularMarketPrice":820.4},"error":null}}`)
	})

	c := NewClient(Options{QuoteURL: srv.URL})
	snap := c.FetchLastPrices(context.Background(), []string{"SBIN.NS"})

	q := snap.At("SBIN.NS")
	assert.True(t, q.Valid)
	assert.Equal(t, 820.4, q.Price)
}

func TestFetchLastPrices_BatchFailureIsolated(t *testing.T) {
	var n int
	srv := quoteServer(t, func(w http.ResponseWriter, r *http.Request) {
		n++
		if n == 1 {
			http.Error(w, "rate limited", http.StatusTooManyRequests)
			return
		}
		syms := strings.Split(r.URL.Query().Get("symbols"), ",")
		fmt.Fprintf(w, `{"quoteResponse":{"result":[{"symbol":"%s","regularMarketPrice":100}],"error":null}}`, syms[0])
	})

	c := NewClient(Options{QuoteURL: srv.URL, BatchSize: 1, BatchPause: time.Millisecond})
	snap := c.FetchLastPrices(context.Background(), []string{"A", "B"})

	// упавший батч не валит соседний
	assert.False(t, snap.At("A").Valid)
	assert.True(t, snap.At("B").Valid)
}

func TestFetchLastPrices_RejectsGarbagePrices(t *testing.T) {
	srv := quoteServer(t, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"quoteResponse":{"result":[
			{"symbol":"ZERO.NS","regularMarketPrice":0},
			{"symbol":"NEG.NS","regularMarketPrice":-4.2},
			{"symbol":"","regularMarketPrice":10}
		],"error":null}}`)
	})

	c := NewClient(Options{QuoteURL: srv.URL})
	snap := c.FetchLastPrices(context.Background(), []string{"ZERO.NS", "NEG.NS"})

	assert.False(t, snap.At("ZERO.NS").Valid)
	assert.False(t, snap.At("NEG.NS").Valid)
}

// Свежая стримовая цена закрывает дыру HTTP-опроса, протухшая — нет.
func TestFetchLastPrices_StreamFallback(t *testing.T) {
	srv := quoteServer(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "down", http.StatusBadGateway)
	})

	c := NewClient(Options{QuoteURL: srv.URL})
	c.SetPrice("LIVE.NS", 512.3)
	c.prices["STALE.NS"] = cachedPx{price: 100, at: time.Now().Add(-2 * streamFreshFor)}

	snap := c.FetchLastPrices(context.Background(), []string{"LIVE.NS", "STALE.NS"})

	q := snap.At("LIVE.NS")
	assert.True(t, q.Valid)
	assert.Equal(t, 512.3, q.Price)
	assert.False(t, snap.At("STALE.NS").Valid)
}

func TestFetchLastPrices_Empty(t *testing.T) {
	c := NewClient(Options{QuoteURL: "http://127.0.0.1:0"})
	snap := c.FetchLastPrices(context.Background(), nil)
	assert.Empty(t, snap)
}

func TestFetchHistory_MalformedPayload(t *testing.T) {
	srv := quoteServer(t, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"chart":{"result":null,"error":{"code":"Not Found"}}}`)
	})

	c := NewClient(Options{ChartURL: srv.URL})
	bars, err := c.FetchHistory(context.Background(), "NOPE.NS", "1y", "1d")
	require.NoError(t, err)
	assert.Empty(t, bars)
}

func TestFetchHistory_SkipsBrokenBars(t *testing.T) {
	srv := quoteServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Contains(t, r.URL.Path, "TCS.NS")
		assert.Equal(t, "1y", r.URL.Query().Get("range"))
		fmt.Fprint(w, `{"chart":{"result":[{
			"timestamp":[1756500000,1756586400,1756672800],
			"indicators":{"quote":[{
				"open":[100,null,102],
				"high":[101,105,103],
				"low":[99,100,101],
				"close":[100.5,104,102.5],
				"volume":[1000,2000,3000]
			}]}
		}],"error":null}}`)
	})

	c := NewClient(Options{ChartURL: srv.URL})
	bars, err := c.FetchHistory(context.Background(), "TCS.NS", "1y", "1d")
	require.NoError(t, err)

	// средний бар с дырой в open выпадает целиком
	require.Len(t, bars, 2)
	assert.Equal(t, 100.5, bars[0].Close)
	assert.Equal(t, 102.5, bars[1].Close)
}
