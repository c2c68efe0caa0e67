package engine

import (
	"math"

	"breakout_bot/pkg/logger"
)

// qtyByRisk — размер позиции от фиксированного риска на сделку:
// floor(risk / (price - stop)), минимум 1.
//
// При price <= stop риск неположительный, сетап вырожденный. Вместо отказа
// берём qty=1: это защитный пол, а не политика сайзинга. Такая сделка несёт
// неограниченный риск, поэтому шумим в лог.
func qtyByRisk(price, stop, risk float64) float64 {
	perShare := price - stop
	if perShare <= 0 {
		logger.Warn("degenerate setup: price=%.4f <= stop=%.4f, qty floor 1", price, stop)
		return 1
	}
	qty := math.Floor(risk / perShare)
	if qty < 1 {
		return 1
	}
	return qty
}
