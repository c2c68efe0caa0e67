package runner

import (
	"context"
	"io"
	"sync"
	"time"

	"breakout_bot/internal/engine"
	"breakout_bot/internal/journal"
	"breakout_bot/internal/models"
	"breakout_bot/internal/watchlist"
	"breakout_bot/pkg/logger"

	"github.com/opentracing/opentracing-go"
)

type Notifier interface {
	Send(msg string)
	Sendf(format string, args ...any)
}

type PriceSource interface {
	FetchLastPrices(ctx context.Context, symbols []string) models.PriceSnapshot
}

// QuoteStreamer — опциональный WS-стрим цен поверх опроса.
type QuoteStreamer interface {
	StreamQuotes(ctx context.Context, symbols []string)
}

type SignalScanner interface {
	Scan(ctx context.Context, symbols []string) []models.WatchlistEntry
}

type HealthChecker interface {
	Check(ctx context.Context) models.MarketHealth
}

type UniverseSource interface {
	Get(ctx context.Context) []string
}

// StateTouch — крохотный мост в health-модуль.
type StateTouch interface {
	SetReady(v bool)
	TouchTick(t time.Time)
	SetOpenPositions(n int)
	SetAutoTrading(v bool)
}

type Config struct {
	ScanUniverseSize int
	AutoTrading      bool
	PollInterval     time.Duration // авто-трейдинг включён
	PollIntervalIdle time.Duration // выключен
}

// Runner — внешний цикл: раз в тик собирает цены по объединению
// портфеля и вотчлиста, гонит переходы движка и отдаёт снимок
// наблюдателю. Один тик владеет состоянием эксклюзивно: команды
// (скан, сброс, тумблер) сериализуются тем же мьютексом, поэтому
// конкурентные действия из UI не теряют обновлений.
type Runner struct {
	ctx    context.Context
	cancel context.CancelFunc

	cfg    Config
	gw     PriceSource
	stream QuoteStreamer // может быть nil
	scan   SignalScanner
	market HealthChecker // может быть nil
	uni    UniverseSource
	eng    *engine.Engine
	wl     *watchlist.Store
	jrnl   *journal.Store // nil = без персистентности
	n      Notifier
	state  StateTouch // может быть nil

	mu           sync.Mutex // тик + команды + auto/health/view
	auto         bool
	lastHealth   models.MarketHealth
	lastView     models.RenderView
	streamCancel context.CancelFunc

	// наблюдатель рендера; вызывается после каждого тика
	observer func(models.RenderView)
}

func New(
	cfg Config,
	gw PriceSource,
	scan SignalScanner,
	uni UniverseSource,
	eng *engine.Engine,
	wl *watchlist.Store,
	n Notifier,
) *Runner {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 30 * time.Second
	}
	if cfg.PollIntervalIdle <= 0 {
		cfg.PollIntervalIdle = 60 * time.Second
	}
	if cfg.ScanUniverseSize <= 0 {
		cfg.ScanUniverseSize = 100
	}
	return &Runner{
		cfg:  cfg,
		gw:   gw,
		scan: scan,
		uni:  uni,
		eng:  eng,
		wl:   wl,
		n:    n,
		auto: cfg.AutoTrading,
		lastHealth: models.MarketHealth{
			Regime: models.RegimeUnknown,
		},
	}
}

func (r *Runner) SetStreamer(s QuoteStreamer)           { r.stream = s }
func (r *Runner) SetMarketHealth(h HealthChecker)       { r.market = h }
func (r *Runner) SetJournal(j *journal.Store)           { r.jrnl = j }
func (r *Runner) SetState(s StateTouch)                 { r.state = s }
func (r *Runner) SetObserver(fn func(models.RenderView)) { r.observer = fn }

func (r *Runner) Start(parent context.Context) {
	r.ctx, r.cancel = context.WithCancel(parent)

	if r.state != nil {
		r.state.SetReady(true)
		r.state.SetAutoTrading(r.AutoTrading())
	}
	r.n.Sendf("🦅 Движок запущен | авто-трейдинг: %v | риск на сделку фиксированный", r.AutoTrading())

	go r.loop(r.ctx)
}

// Stop мягко гасит раннер; текущий тик дорабатывает,
// следующий уже не стартует.
func (r *Runner) Stop() {
	if r.cancel != nil {
		r.cancel()
	}
}

func (r *Runner) loop(ctx context.Context) {
	for {
		r.Tick(ctx)

		// кооперативная пауза; точка отмены — только граница тика
		timer := time.NewTimer(r.interval())
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
		}
	}
}

func (r *Runner) interval() time.Duration {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.auto {
		return r.cfg.PollInterval
	}
	return r.cfg.PollIntervalIdle
}

// Tick — один проход: цены -> выходы -> входы -> рендер.
// Внутри тика ретраев нет: неудачный фетч даёт невалидную котировку,
// исправится на следующем тике.
func (r *Runner) Tick(ctx context.Context) {
	r.mu.Lock()
	defer r.mu.Unlock()

	span := opentracing.StartSpan("runner.tick")
	defer span.Finish()

	now := time.Now()
	syms := unionSymbols(r.eng.Symbols(), r.wl.Symbols())

	snap := models.PriceSnapshot{}
	if len(syms) > 0 {
		snap = r.gw.FetchLastPrices(ctx, syms)
	}
	span.SetTag("symbols", len(syms))

	// сперва выходы по открытым позициям
	for _, ev := range r.eng.EvaluateAll(snap, now) {
		r.afterExit(ctx, ev)
	}

	// затем входы по пробоям вотчлиста
	if r.auto {
		for _, e := range r.wl.Entries() {
			q := snap.At(e.Symbol)
			if !q.Valid || q.Price <= e.Trigger {
				continue
			}
			pos, ok := r.eng.Enter(e.Symbol, q.Price, e.StopLoss, e.Target, now)
			if !ok {
				continue
			}
			r.n.Sendf("🔥 [%s] BREAKOUT | BUY %.0f @ %.2f | SL=%.2f TP=%.2f",
				pos.Symbol, pos.Qty, pos.Entry, pos.SL, pos.TP)
			r.persist(ctx, models.TradeLogEntry{
				Symbol: pos.Symbol,
				Action: models.ActionBuy,
				Price:  pos.Entry,
				Time:   pos.OpenedAt,
				Result: models.ResultOpen,
			})
		}
	}

	view := r.buildViewLocked(snap, now)
	r.lastView = view
	if r.observer != nil {
		r.observer(view)
	}

	if r.state != nil {
		r.state.TouchTick(now)
		r.state.SetOpenPositions(r.eng.OpenCount())
	}
}

func (r *Runner) afterExit(ctx context.Context, ev engine.ExitEvent) {
	emoji := "🛑"
	if ev.Reason == models.ResultTargetHit {
		emoji = "🎯"
	}
	r.n.Sendf("%s [%s] %s | SELL %.0f @ %.2f | PnL=%.2f",
		emoji, ev.Position.Symbol, ev.Reason, ev.Position.Qty, ev.Price, ev.PnL)
	r.persist(ctx, models.TradeLogEntry{
		Symbol: ev.Position.Symbol,
		Action: models.ActionSell,
		Price:  ev.Price,
		Time:   time.Now(),
		PnL:    ev.PnL,
		Result: ev.Reason,
	})
}

// persist — best effort: журнал в Postgres опционален,
// его отказ не трогает торговый цикл.
func (r *Runner) persist(ctx context.Context, e models.TradeLogEntry) {
	if r.jrnl == nil {
		return
	}
	if err := r.jrnl.Append(ctx, e); err != nil {
		logger.Error("journal append: %v", err)
	}
}

func (r *Runner) buildViewLocked(snap models.PriceSnapshot, now time.Time) models.RenderView {
	entries := r.wl.Entries()
	rows := make([]models.WatchRow, 0, len(entries))
	for _, e := range entries {
		row := models.WatchRow{
			Symbol:  e.Symbol,
			Trigger: e.Trigger,
			Status:  models.WatchPending,
		}
		if q := snap.At(e.Symbol); q.Valid {
			row.Price = q.Price
			row.DistancePct = (q.Price - e.Trigger) / e.Trigger * 100
			if q.Price > e.Trigger {
				row.Status = models.WatchBreakout
			} else {
				row.Status = models.WatchWaiting
			}
		}
		rows = append(rows, row)
	}

	return models.RenderView{
		At:          now,
		AutoTrading: r.auto,
		Regime:      r.lastHealth,
		Positions:   r.eng.Positions(),
		Watchlist:   rows,
		Trades:      r.eng.Trades(20),
	}
}

// TriggerScan перестраивает вотчлист целиком. Скан дорогой и держит
// мьютекс раннера: тики ждут, частичного вотчлиста никто не видит.
func (r *Runner) TriggerScan(ctx context.Context, limit int) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	if limit <= 0 || limit > r.cfg.ScanUniverseSize {
		limit = r.cfg.ScanUniverseSize
	}

	if r.market != nil {
		r.lastHealth = r.market.Check(ctx)
	}

	symbols := r.uni.Get(ctx)
	if len(symbols) > limit {
		symbols = symbols[:limit]
	}

	entries := r.scan.Scan(ctx, symbols)
	r.wl.Replace(entries)

	// пересобираем WS-стрим под новый вотчлист
	if r.stream != nil && r.ctx != nil {
		if r.streamCancel != nil {
			r.streamCancel()
		}
		sctx, cancel := context.WithCancel(r.ctx)
		r.streamCancel = cancel
		r.stream.StreamQuotes(sctx, r.wl.Symbols())
	}

	return len(entries)
}

func (r *Runner) SetAutoTrading(on bool) {
	r.mu.Lock()
	r.auto = on
	r.mu.Unlock()
	if r.state != nil {
		r.state.SetAutoTrading(on)
	}
}

func (r *Runner) AutoTrading() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.auto
}

// CloseAll вручную закрывает все позиции по последним ценам.
func (r *Runner) CloseAll(ctx context.Context) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	syms := r.eng.Symbols()
	snap := models.PriceSnapshot{}
	if len(syms) > 0 {
		snap = r.gw.FetchLastPrices(ctx, syms)
	}
	exits := r.eng.CloseAll(snap, time.Now())
	for _, ev := range exits {
		r.afterExit(ctx, ev)
	}
	return len(exits)
}

// Reset — явный сброс в пустое состояние: позиции, вотчлист, журнал.
func (r *Runner) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.eng.Reset()
	r.wl.Clear()
	r.lastView = models.RenderView{}
	logger.Info("state reset")
}

// View — последний снимок рендера (для команд и health).
func (r *Runner) View() models.RenderView {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.lastView
}

// ExportCSV выгружает весь журнал, newest-first.
func (r *Runner) ExportCSV(w io.Writer) error {
	return journal.WriteCSV(w, r.eng.Trades(0))
}

func unionSymbols(a, b []string) []string {
	seen := make(map[string]struct{}, len(a)+len(b))
	out := make([]string, 0, len(a)+len(b))
	for _, s := range a {
		if _, ok := seen[s]; !ok {
			seen[s] = struct{}{}
			out = append(out, s)
		}
	}
	for _, s := range b {
		if _, ok := seen[s]; !ok {
			seen[s] = struct{}{}
			out = append(out, s)
		}
	}
	return out
}
