package scanner

import (
	"context"
	"sort"

	"breakout_bot/internal/marketdata"
	"breakout_bot/internal/models"
	"breakout_bot/pkg/logger"

	"github.com/opentracing/opentracing-go"
)

// Config — параметры сетапа. Множители и буфер взяты из исходной
// стратегии как есть; это настройки, а не выведенные константы.
type Config struct {
	Range    string // например "1y"
	Interval string // например "1d"

	TriggerBufferPct float64 // буфер над prevHigh, в процентах
	StopATRMult      float64
	TargetATRMult    float64

	// VCP-гейт: тренд + сжатие волатильности
	VCPFilter bool
	SMAPeriod int
	MaxATRPct float64

	// Воронка: оставить только почти готовые к пробою
	FunnelEnabled bool
	FunnelLowPct  float64
	FunnelHighPct float64
	FunnelTopN    int
}

type Scanner struct {
	hist marketdata.HistorySource
	cfg  Config
}

func New(hist marketdata.HistorySource, cfg Config) *Scanner {
	if cfg.TriggerBufferPct <= 0 {
		cfg.TriggerBufferPct = 0.1
	}
	if cfg.StopATRMult <= 0 {
		cfg.StopATRMult = 1.5
	}
	if cfg.TargetATRMult <= 0 {
		cfg.TargetATRMult = 3.0
	}
	if cfg.SMAPeriod <= 0 {
		cfg.SMAPeriod = 50
	}
	return &Scanner{hist: hist, cfg: cfg}
}

// Scan строит вотчлист по списку символов. Синхронный и дорогой:
// дергается только руками, мониторинг живёт на готовом вотчлисте.
// Отказ по одному символу не роняет скан.
func (s *Scanner) Scan(ctx context.Context, symbols []string) []models.WatchlistEntry {
	span := opentracing.StartSpan("scanner.scan")
	defer span.Finish()
	span.SetTag("symbols", len(symbols))

	var out []models.WatchlistEntry
	for i, sym := range symbols {
		select {
		case <-ctx.Done():
			logger.Warn("scan cancelled at %d/%d", i, len(symbols))
			return out
		default:
		}

		entry, ok := s.scanOne(ctx, sym)
		if !ok {
			continue
		}
		out = append(out, entry)
	}

	if s.cfg.FunnelEnabled {
		out = s.funnel(out)
	}

	logger.Info("scan complete: %d setups from %d symbols", len(out), len(symbols))
	span.SetTag("setups", len(out))
	return out
}

func (s *Scanner) scanOne(ctx context.Context, symbol string) (models.WatchlistEntry, bool) {
	bars, err := s.hist.FetchHistory(ctx, symbol, s.cfg.Range, s.cfg.Interval)
	if err != nil {
		logger.Warn("scan %s: history: %v", symbol, err)
		return models.WatchlistEntry{}, false
	}
	// минимум два валидных бара: один формируется, один завершён
	if len(bars) < 2 {
		return models.WatchlistEntry{}, false
	}

	latest := bars[len(bars)-1]
	window := bars[:len(bars)-1] // текущий бар не завершён, в уровни не идёт

	atr := meanRange(window)
	cl := latest.Close

	if s.cfg.VCPFilter {
		ma := sma(bars, s.cfg.SMAPeriod)
		if ma <= 0 || cl <= ma {
			return models.WatchlistEntry{}, false
		}
		if cl <= 0 || atr/cl*100 >= s.cfg.MaxATRPct {
			return models.WatchlistEntry{}, false
		}
	}

	prevHigh := maxHigh(window)
	trigger := prevHigh * (1 + s.cfg.TriggerBufferPct/100)
	stop := trigger - atr*s.cfg.StopATRMult
	target := trigger + atr*s.cfg.TargetATRMult

	// вырожденный сетап (atr=0 и т.п.) отбрасываем на месте
	if !(stop < trigger && trigger < target) {
		return models.WatchlistEntry{}, false
	}

	return models.WatchlistEntry{
		Symbol:      symbol,
		Close:       cl,
		Trigger:     trigger,
		StopLoss:    stop,
		Target:      target,
		ATR:         atr,
		DistancePct: (cl - trigger) / trigger * 100,
	}, true
}

// funnel сужает вотчлист до почти готовых к пробою: дистанция в полосе,
// ближайшие к триггеру первыми, не больше TopN.
func (s *Scanner) funnel(entries []models.WatchlistEntry) []models.WatchlistEntry {
	kept := entries[:0]
	for _, e := range entries {
		if e.DistancePct > s.cfg.FunnelLowPct && e.DistancePct < s.cfg.FunnelHighPct {
			kept = append(kept, e)
		}
	}
	sort.SliceStable(kept, func(i, j int) bool {
		return kept[i].DistancePct > kept[j].DistancePct
	})
	if s.cfg.FunnelTopN > 0 && len(kept) > s.cfg.FunnelTopN {
		kept = kept[:s.cfg.FunnelTopN]
	}
	return kept
}
