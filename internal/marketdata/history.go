package marketdata

import (
	"context"
	"io"
	"math"
	"net/http"
	"net/url"
	"time"

	"breakout_bot/internal/models"

	"github.com/bytedance/sonic"
	"github.com/pkg/errors"
)

type chartResponse struct {
	Chart struct {
		Result []struct {
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
		} `json:"result"`
	} `json:"chart"`
}

// FetchHistory грузит бары по одному символу, oldest-first.
// Пустой или битый ответ даёт пустой срез: для вызывающего это
// "нет сигнала, символ пропускаем", а не ошибка.
func (c *Client) FetchHistory(ctx context.Context, symbol, rng, interval string) ([]models.Bar, error) {
	q := url.Values{}
	q.Set("range", rng)
	q.Set("interval", interval)

	u := c.chartURL + "/" + url.PathEscape(symbol) + "?" + q.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
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
		return nil, errors.Errorf("http %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errors.Wrap(err, "read body")
	}

	var payload chartResponse
	if err := sonic.Unmarshal(body, &payload); err != nil {
		return nil, nil // битый payload = нет данных
	}
	if len(payload.Chart.Result) == 0 {
		return nil, nil
	}

	res := payload.Chart.Result[0]
	if len(res.Indicators.Quote) == 0 {
		return nil, nil
	}
	qd := res.Indicators.Quote[0]

	bars := make([]models.Bar, 0, len(res.Timestamp))
	for i, ts := range res.Timestamp {
		o := at(qd.Open, i)
		h := at(qd.High, i)
		l := at(qd.Low, i)
		cl := at(qd.Close, i)
		// неполные бары выкидываем сразу, дальше они не нужны никому
		if o == nil || h == nil || l == nil || cl == nil {
			continue
		}
		if bad(*o) || bad(*h) || bad(*l) || bad(*cl) {
			continue
		}
		var vol float64
		if v := at(qd.Volume, i); v != nil {
			vol = *v
		}
		bars = append(bars, models.Bar{
			Time:   time.Unix(ts, 0),
			Open:   *o,
			High:   *h,
			Low:    *l,
			Close:  *cl,
			Volume: vol,
		})
	}
	return bars, nil
}

func at(xs []*float64, i int) *float64 {
	if i >= len(xs) {
		return nil
	}
	return xs[i]
}

func bad(v float64) bool {
	return math.IsNaN(v) || math.IsInf(v, 0) || v <= 0
}
