package models

import "time"

// Статусы строки вотчлиста для рендера.
const (
	WatchWaiting  = "WAITING"
	WatchBreakout = "BREAKOUT"
	WatchPending  = "PENDING" // нет пригодной цены на этом тике
)

type WatchRow struct {
	Symbol      string
	Price       float64
	Trigger     float64
	DistancePct float64
	Status      string
}

// RenderView — read-only снимок состояния для наблюдателя (UI/нотификатор).
// Отдаётся раз в тик, после всех переходов движка.
type RenderView struct {
	At          time.Time
	AutoTrading bool
	Regime      MarketHealth
	Positions   []Position
	Watchlist   []WatchRow
	Trades      []TradeLogEntry // newest-first
}
