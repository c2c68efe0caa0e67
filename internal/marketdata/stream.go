package marketdata

import (
	"context"
	"time"

	"breakout_bot/pkg/logger"

	"github.com/bytedance/sonic"
)

// StreamQuotes держит websocket-подписку на последние цены и складывает их
// в кэш клиента. Снимок тика строит HTTP-опрос; стрим лишь закрывает его
// дыры свежими ценами между опросами.
func (c *Client) StreamQuotes(ctx context.Context, symbols []string) {
	if c.streamURL == "" || len(symbols) == 0 {
		return
	}

	go func() {
		retry := 0
		for {
			conn, _, err := c.wsDialer.Dial(c.streamURL, nil)
			if err != nil {
				retry++
				if retry > 8 {
					logger.Error("quote stream: giving up after %d retries: %v", retry, err)
					return
				}
				select {
				case <-ctx.Done():
					return
				case <-time.After(time.Duration(300*retry) * time.Millisecond):
				}
				continue
			}
			retry = 0

			_ = conn.WriteJSON(map[string]any{"subscribe": symbols})

			stopPing := make(chan struct{})
			go func() {
				t := time.NewTicker(15 * time.Second)
				defer t.Stop()
				for {
					select {
					case <-stopPing:
						return
					case <-ctx.Done():
						return
					case <-t.C:
						_ = conn.WriteJSON(map[string]string{"op": "ping"})
					}
				}
			}()

			for {
				_, msg, err := conn.ReadMessage()
				if err != nil {
					close(stopPing)
					_ = conn.Close()
					break
				}
				var frame struct {
					Symbol string  `json:"id"`
					Price  float64 `json:"price"`
				}
				if err := sonic.Unmarshal(msg, &frame); err != nil {
					continue
				}
				if frame.Symbol == "" || frame.Price <= 0 {
					continue
				}
				c.SetPrice(frame.Symbol, frame.Price)
			}

			select {
			case <-ctx.Done():
				return
			default:
				time.Sleep(time.Second)
			}
		}
	}()
}
