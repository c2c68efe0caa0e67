package models

import "time"

type Action string

const (
	ActionBuy  Action = "BUY"
	ActionSell Action = "SELL"
)

type Result string

const (
	ResultOpen      Result = "OPEN"
	ResultStopLoss  Result = "STOP LOSS"
	ResultTargetHit Result = "TARGET HIT"
	ResultManual    Result = "MANUAL"
)

// TradeLogEntry — запись журнала сделок. Append-only, никогда не мутируется.
// BUY всегда раньше парного SELL, но структурной связи между ними нет:
// PnL считается в момент SELL из закрываемой позиции.
type TradeLogEntry struct {
	Symbol string
	Action Action
	Price  float64
	Time   time.Time
	PnL    float64
	Result Result
}
