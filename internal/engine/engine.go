package engine

import (
	"sort"
	"sync"
	"time"

	"breakout_bot/internal/models"
	"breakout_bot/pkg/logger"
)

// ExitEvent — закрытие позиции за тик, для нотификаций и журнала.
type ExitEvent struct {
	Position models.Position
	Price    float64
	Reason   models.Result
	PnL      float64
}

// Engine — конечный автомат бумажных позиций: NONE -> OPEN -> закрыта и
// залогирована. Символ может войти снова после закрытия, но двух
// одновременных позиций по одному символу не бывает.
//
// Движок владеет портфелем и журналом эксклюзивно; все мутации идут
// через его методы под одним мьютексом.
type Engine struct {
	mu           sync.Mutex
	riskPerTrade float64

	positions map[string]*models.Position
	log       []models.TradeLogEntry // append-only, oldest-first
}

func New(riskPerTrade float64) *Engine {
	if riskPerTrade <= 0 {
		riskPerTrade = 1000
	}
	return &Engine{
		riskPerTrade: riskPerTrade,
		positions:    make(map[string]*models.Position),
	}
}

// Enter открывает позицию по пробою. Молчаливый no-op (не ошибка), если
// цена непригодна или позиция по символу уже открыта: повторный вызов
// идемпотентен.
func (e *Engine) Enter(symbol string, price, stop, target float64, now time.Time) (models.Position, bool) {
	if price <= 0 {
		return models.Position{}, false
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if _, open := e.positions[symbol]; open {
		return models.Position{}, false
	}

	qty := qtyByRisk(price, stop, e.riskPerTrade)
	pos := &models.Position{
		Symbol:    symbol,
		Entry:     price,
		Qty:       qty,
		SL:        stop,
		TP:        target,
		OpenedAt:  now,
		LastPrice: price,
	}
	e.positions[symbol] = pos
	e.log = append(e.log, models.TradeLogEntry{
		Symbol: symbol,
		Action: models.ActionBuy,
		Price:  price,
		Time:   now,
		PnL:    0,
		Result: models.ResultOpen,
	})

	logger.Info("ENTER %s qty=%.0f @ %.2f sl=%.2f tp=%.2f", symbol, qty, price, stop, target)
	return *pos, true
}

// EvaluateAll прогоняет все открытые позиции по снимку цен одного тика.
// Невалидная котировка пропускает позицию целиком: по плохой цене не
// выходим никогда, строка лишь помечается stale с fallback на цену входа
// (это подмена для отображения, не живая цена).
//
// Порядок проверок фиксированный: стоп раньше тейка. Гэповый бар,
// задевший оба уровня, закрывается как STOP LOSS.
func (e *Engine) EvaluateAll(snap models.PriceSnapshot, now time.Time) []ExitEvent {
	e.mu.Lock()
	defer e.mu.Unlock()

	var exits []ExitEvent
	for _, sym := range e.symbolsLocked() {
		pos := e.positions[sym]
		q := snap.At(sym)
		if !q.Valid {
			pos.Stale = true
			pos.LastPrice = pos.Entry
			pos.UnrealizedPnL = 0
			continue
		}

		pos.Stale = false
		pos.LastPrice = q.Price

		switch {
		case q.Price <= pos.SL:
			exits = append(exits, e.exitLocked(pos, q.Price, models.ResultStopLoss, now))
		case q.Price >= pos.TP:
			exits = append(exits, e.exitLocked(pos, q.Price, models.ResultTargetHit, now))
		default:
			pos.UnrealizedPnL = (q.Price - pos.Entry) * pos.Qty
		}
	}
	return exits
}

// CloseAll закрывает всё по последним ценам с результатом MANUAL.
// Без валидной цены позиция закрывается по цене входа (PnL=0).
func (e *Engine) CloseAll(snap models.PriceSnapshot, now time.Time) []ExitEvent {
	e.mu.Lock()
	defer e.mu.Unlock()

	var exits []ExitEvent
	for _, sym := range e.symbolsLocked() {
		pos := e.positions[sym]
		price := pos.Entry
		if q := snap.At(sym); q.Valid {
			price = q.Price
		}
		exits = append(exits, e.exitLocked(pos, price, models.ResultManual, now))
	}
	return exits
}

// exitLocked — терминальный переход: ровно одна SELL-запись, позиция
// уходит из портфеля, символ снова доступен для входа.
func (e *Engine) exitLocked(pos *models.Position, price float64, reason models.Result, now time.Time) ExitEvent {
	pnl := (price - pos.Entry) * pos.Qty
	e.log = append(e.log, models.TradeLogEntry{
		Symbol: pos.Symbol,
		Action: models.ActionSell,
		Price:  price,
		Time:   now,
		PnL:    pnl,
		Result: reason,
	})
	delete(e.positions, pos.Symbol)

	logger.Info("EXIT %s %s @ %.2f pnl=%.2f", pos.Symbol, reason, price, pnl)
	return ExitEvent{Position: *pos, Price: price, Reason: reason, PnL: pnl}
}

func (e *Engine) symbolsLocked() []string {
	syms := make([]string, 0, len(e.positions))
	for s := range e.positions {
		syms = append(syms, s)
	}
	sort.Strings(syms)
	return syms
}

func (e *Engine) HasPosition(symbol string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	_, ok := e.positions[symbol]
	return ok
}

func (e *Engine) OpenCount() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.positions)
}

// Positions — копия открытых позиций, отсортированная по символу.
func (e *Engine) Positions() []models.Position {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]models.Position, 0, len(e.positions))
	for _, sym := range e.symbolsLocked() {
		out = append(out, *e.positions[sym])
	}
	return out
}

// Symbols — тикеры открытых позиций.
func (e *Engine) Symbols() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.symbolsLocked()
}

// Trades — последние n записей журнала, newest-first. n<=0 — все.
func (e *Engine) Trades(n int) []models.TradeLogEntry {
	e.mu.Lock()
	defer e.mu.Unlock()

	total := len(e.log)
	if n <= 0 || n > total {
		n = total
	}
	out := make([]models.TradeLogEntry, 0, n)
	for i := total - 1; i >= total-n; i-- {
		out = append(out, e.log[i])
	}
	return out
}

// Reset — явный сброс в пустое состояние (позиции и журнал).
func (e *Engine) Reset() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.positions = make(map[string]*models.Position)
	e.log = nil
}
