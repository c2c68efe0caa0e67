package marketdata

import (
	"context"
	"encoding/json"
	"io"
	"math"
	"net/http"
	"net/url"
	"strings"
	"time"

	"breakout_bot/internal/models"
	"breakout_bot/pkg/logger"

	"github.com/bytedance/sonic"
	"github.com/pkg/errors"
)

type quoteDTO struct {
	Symbol             string   `json:"symbol"`
	RegularMarketPrice *float64 `json:"regularMarketPrice"`
	RegularMarketTime  int64    `json:"regularMarketTime"`
}

// FetchLastPrices собирает полный снимок цен по списку символов.
// На каждый входной символ ровно одна запись, даже при полном отказе
// источника: неразрешённый символ получает {0, invalid}, чтобы downstream
// никогда не ветвился на отсутствующем ключе.
//
// Символы режутся на батчи фиксированного размера с паузой между ними:
// один гигантский запрос выше порога отдаёт битые/частичные ответы.
func (c *Client) FetchLastPrices(ctx context.Context, symbols []string) models.PriceSnapshot {
	snap := make(models.PriceSnapshot, len(symbols))
	for _, s := range symbols {
		snap[s] = models.Quote{}
	}
	if len(symbols) == 0 {
		return snap
	}

	now := time.Now()
	for i := 0; i < len(symbols); i += c.batchSize {
		end := i + c.batchSize
		if end > len(symbols) {
			end = len(symbols)
		}
		batch := symbols[i:end]

		got, err := c.fetchQuoteBatch(ctx, batch)
		if err != nil {
			// отказ батча не валит остальные: символы остаются invalid
			logger.Warn("quote batch %d-%d failed: %v", i, end, err)
		}
		for sym, q := range got {
			if _, known := snap[sym]; known {
				snap[sym] = q
			}
		}

		if end < len(symbols) {
			select {
			case <-ctx.Done():
				return c.fillFromStream(snap, now)
			case <-time.After(c.batchPause):
			}
		}
	}

	return c.fillFromStream(snap, now)
}

// fillFromStream подставляет свежие стримовые цены вместо дыр HTTP-опроса.
func (c *Client) fillFromStream(snap models.PriceSnapshot, at time.Time) models.PriceSnapshot {
	for sym, q := range snap {
		if q.Valid {
			continue
		}
		if px, ok := c.cachedPrice(sym); ok {
			snap[sym] = models.Quote{Price: px, Valid: true, At: at}
		}
	}
	return snap
}

func (c *Client) fetchQuoteBatch(ctx context.Context, symbols []string) (map[string]models.Quote, error) {
	q := url.Values{}
	q.Set("symbols", strings.Join(symbols, ","))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.quoteURL+"?"+q.Encode(), nil)
	if err != nil {
		return nil, errors.Wrap(err, "build request")
	}
	req.Header.Set("User-Agent", "Mozilla/5.0")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, errors.Wrap(err, "do request")
	}
	defer resp.Body.Close()

	if resp.StatusCode/100 != 2 {
		b, _ := io.ReadAll(resp.Body)
		return nil, errors.Errorf("http %d: %s", resp.StatusCode, string(b))
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errors.Wrap(err, "read body")
	}

	rows, err := decodeQuotePayload(body)
	if err != nil {
		return nil, err
	}

	out := make(map[string]models.Quote, len(rows))
	now := time.Now()
	for _, r := range rows {
		// ошибки извлечения изолируем на уровне символа:
		// плохая строка не трогает соседей по батчу
		if r.Symbol == "" || r.RegularMarketPrice == nil {
			continue
		}
		px := *r.RegularMarketPrice
		if px <= 0 || math.IsNaN(px) || math.IsInf(px, 0) {
			continue
		}
		at := now
		if r.RegularMarketTime > 0 {
			at = time.Unix(r.RegularMarketTime, 0)
		}
		out[r.Symbol] = models.Quote{Price: px, Valid: true, At: at}
	}
	return out, nil
}

// decodeQuotePayload разруливает форму массового ответа один раз на входе.
// result с одним символом приходит плоским объектом, с несколькими —
// массивом; дальше по коду эта развилка не живёт.
func decodeQuotePayload(body []byte) ([]quoteDTO, error) {
	var wrap struct {
		QuoteResponse struct {
			Result json.RawMessage `json:"result"`
			Error  json.RawMessage `json:"error"`
		} `json:"quoteResponse"`
	}
	if err := sonic.Unmarshal(body, &wrap); err != nil {
		return nil, errors.Wrap(err, "decode payload")
	}
	raw := wrap.QuoteResponse.Result
	if len(raw) == 0 || string(raw) == "null" {
		return nil, errors.New("empty result")
	}

	var many []quoteDTO
	if err := sonic.Unmarshal(raw, &many); err == nil {
		return many, nil
	}
	var one quoteDTO
	if err := sonic.Unmarshal(raw, &one); err == nil && one.Symbol != "" {
		return []quoteDTO{one}, nil
	}
	return nil, errors.New("unexpected result shape")
}
