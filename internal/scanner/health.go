package scanner

import (
	"context"

	"breakout_bot/internal/marketdata"
	"breakout_bot/internal/models"
	"breakout_bot/pkg/logger"
)

// HealthChecker — вето рынка: широкий индекс + индекс волатильности.
// Любая ошибка данных даёт UNKNOWN и ничего не блокирует.
type HealthChecker struct {
	hist     marketdata.HistorySource
	indexSym string
	vixSym   string
}

func NewHealthChecker(hist marketdata.HistorySource, indexSym, vixSym string) *HealthChecker {
	return &HealthChecker{hist: hist, indexSym: indexSym, vixSym: vixSym}
}

func (h *HealthChecker) Check(ctx context.Context) models.MarketHealth {
	idx, err := h.hist.FetchHistory(ctx, h.indexSym, "1d", "15m")
	if err != nil || len(idx) == 0 {
		logger.Warn("market health: index %s unavailable: %v", h.indexSym, err)
		return models.MarketHealth{Regime: models.RegimeUnknown}
	}
	first, last := idx[0], idx[len(idx)-1]
	if first.Open <= 0 {
		return models.MarketHealth{Regime: models.RegimeUnknown}
	}
	change := (last.Close - first.Open) / first.Open * 100

	var vix float64
	if bars, err := h.hist.FetchHistory(ctx, h.vixSym, "5d", "1d"); err == nil && len(bars) > 0 {
		vix = bars[len(bars)-1].Close
	}

	health := models.MarketHealth{IndexChangePct: change, VIX: vix}
	switch {
	case change < -0.8:
		health.Regime = models.RegimeCritical
	case vix > 22:
		health.Regime = models.RegimeCaution
	default:
		health.Regime = models.RegimeStable
	}
	return health
}
