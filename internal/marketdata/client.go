package marketdata

import (
	"context"
	"net/http"
	"sync"
	"time"

	"breakout_bot/internal/models"

	"github.com/gorilla/websocket"
)

// HistorySource — источник исторических баров. Реализуется клиентом
// и redis-декоратором поверх него.
type HistorySource interface {
	FetchHistory(ctx context.Context, symbol, rng, interval string) ([]models.Bar, error)
}

// PriceSource — источник последних цен для раннера.
type PriceSource interface {
	FetchLastPrices(ctx context.Context, symbols []string) models.PriceSnapshot
}

// Насколько старой может быть стримовая цена, чтобы ещё считаться живой.
const streamFreshFor = 90 * time.Second

type cachedPx struct {
	price float64
	at    time.Time
}

type Client struct {
	quoteURL   string
	chartURL   string
	streamURL  string
	batchSize  int
	batchPause time.Duration

	http     *http.Client
	wsDialer *websocket.Dialer

	mu     sync.RWMutex
	prices map[string]cachedPx // последние цены из WS-стрима
}

type Options struct {
	QuoteURL   string
	ChartURL   string
	StreamURL  string
	BatchSize  int
	BatchPause time.Duration
}

func NewClient(opts Options) *Client {
	if opts.BatchSize <= 0 {
		opts.BatchSize = 50
	}
	if opts.BatchPause <= 0 {
		opts.BatchPause = 500 * time.Millisecond
	}
	return &Client{
		quoteURL:   opts.QuoteURL,
		chartURL:   opts.ChartURL,
		streamURL:  opts.StreamURL,
		batchSize:  opts.BatchSize,
		batchPause: opts.BatchPause,
		http:       &http.Client{Timeout: 10 * time.Second},
		wsDialer:   &websocket.Dialer{},
		prices:     make(map[string]cachedPx),
	}
}

func (c *Client) SetPrice(symbol string, price float64) {
	c.mu.Lock()
	c.prices[symbol] = cachedPx{price: price, at: time.Now()}
	c.mu.Unlock()
}

// cachedPrice возвращает стримовую цену, если она ещё свежая.
func (c *Client) cachedPrice(symbol string) (float64, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	px, ok := c.prices[symbol]
	if !ok || px.price <= 0 {
		return 0, false
	}
	if time.Since(px.at) > streamFreshFor {
		return 0, false
	}
	return px.price, true
}
