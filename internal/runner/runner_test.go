package runner

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"breakout_bot/internal/engine"
	"breakout_bot/internal/models"
	"breakout_bot/internal/watchlist"
	"breakout_bot/pkg/logger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMain(m *testing.M) {
	if err := logger.Init(); err != nil {
		panic(err)
	}
	os.Exit(m.Run())
}

type priceStub struct {
	mu sync.Mutex
	px map[string]models.Quote
}

func (p *priceStub) set(sym string, price float64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.px == nil {
		p.px = map[string]models.Quote{}
	}
	p.px[sym] = models.Quote{Price: price, Valid: true, At: time.Now()}
}

func (p *priceStub) FetchLastPrices(_ context.Context, symbols []string) models.PriceSnapshot {
	p.mu.Lock()
	defer p.mu.Unlock()
	snap := make(models.PriceSnapshot, len(symbols))
	for _, s := range symbols {
		snap[s] = p.px[s]
	}
	return snap
}

type scanStub struct {
	entries []models.WatchlistEntry
	got     []string
}

func (s *scanStub) Scan(_ context.Context, symbols []string) []models.WatchlistEntry {
	s.got = symbols
	return s.entries
}

type uniStub []string

func (u uniStub) Get(context.Context) []string { return u }

type noteRec struct {
	mu   sync.Mutex
	msgs []string
}

func (n *noteRec) Send(msg string) {
	n.mu.Lock()
	n.msgs = append(n.msgs, msg)
	n.mu.Unlock()
}

func (n *noteRec) Sendf(format string, args ...any) { n.Send(fmt.Sprintf(format, args...)) }

func (n *noteRec) joined() string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return strings.Join(n.msgs, "\n")
}

func newTestRunner(cfg Config, gw PriceSource, scan SignalScanner, uni UniverseSource) (*Runner, *noteRec) {
	n := &noteRec{}
	r := New(cfg, gw, scan, uni, engine.New(1000), watchlist.NewStore(), n)
	return r, n
}

func TestRunner_TriggerScan(t *testing.T) {
	scan := &scanStub{entries: []models.WatchlistEntry{
		{Symbol: "TCS.NS", Trigger: 100.1, StopLoss: 97.1, Target: 106.1},
	}}
	uni := uniStub{"TCS.NS", "INFY.NS", "SBIN.NS"}
	r, _ := newTestRunner(Config{ScanUniverseSize: 2}, &priceStub{}, scan, uni)

	got := r.TriggerScan(context.Background(), 0)
	assert.Equal(t, 1, got)
	// вселенная режется до лимита перед сканом
	assert.Equal(t, []string{"TCS.NS", "INFY.NS"}, scan.got)
	assert.Equal(t, []string{"TCS.NS"}, r.wl.Symbols())
}

func TestRunner_AutoEntryAndExit(t *testing.T) {
	scan := &scanStub{entries: []models.WatchlistEntry{
		{Symbol: "TCS.NS", Trigger: 100.1, StopLoss: 97.1, Target: 106.1},
	}}
	px := &priceStub{}
	r, n := newTestRunner(Config{AutoTrading: true, ScanUniverseSize: 10}, px, scan, uniStub{"TCS.NS"})
	r.TriggerScan(context.Background(), 0)

	// цена под триггером: входа нет
	px.set("TCS.NS", 99.8)
	r.Tick(context.Background())
	assert.False(t, r.eng.HasPosition("TCS.NS"))

	// пробой: вход по рыночной цене, не по триггеру
	px.set("TCS.NS", 100.4)
	r.Tick(context.Background())
	require.True(t, r.eng.HasPosition("TCS.NS"))
	pos := r.eng.Positions()[0]
	assert.Equal(t, 100.4, pos.Entry)
	assert.Equal(t, 97.1, pos.SL)
	assert.Contains(t, n.joined(), "BREAKOUT")

	// повторный тик над триггером не дублирует позицию
	r.Tick(context.Background())
	assert.Equal(t, 1, r.eng.OpenCount())

	// стоп: выход и уведомление
	px.set("TCS.NS", 96.9)
	r.Tick(context.Background())
	assert.Equal(t, 0, r.eng.OpenCount())
	assert.Contains(t, n.joined(), "STOP LOSS")
}

func TestRunner_NoEntryWhenAutoOff(t *testing.T) {
	scan := &scanStub{entries: []models.WatchlistEntry{
		{Symbol: "TCS.NS", Trigger: 100.1, StopLoss: 97.1, Target: 106.1},
	}}
	px := &priceStub{}
	px.set("TCS.NS", 105)
	r, _ := newTestRunner(Config{ScanUniverseSize: 10}, px, scan, uniStub{"TCS.NS"})
	r.TriggerScan(context.Background(), 0)

	r.Tick(context.Background())
	assert.Equal(t, 0, r.eng.OpenCount())

	// но выходы по уже открытым позициям работают и без авто-режима
	r.SetAutoTrading(true)
	r.Tick(context.Background())
	require.Equal(t, 1, r.eng.OpenCount())
	r.SetAutoTrading(false)

	px.set("TCS.NS", 90)
	r.Tick(context.Background())
	assert.Equal(t, 0, r.eng.OpenCount())
}

func TestRunner_InvalidQuoteNeverEnters(t *testing.T) {
	scan := &scanStub{entries: []models.WatchlistEntry{
		{Symbol: "TCS.NS", Trigger: 100.1, StopLoss: 97.1, Target: 106.1},
	}}
	r, _ := newTestRunner(Config{AutoTrading: true, ScanUniverseSize: 10}, &priceStub{}, scan, uniStub{"TCS.NS"})
	r.TriggerScan(context.Background(), 0)

	r.Tick(context.Background())
	assert.Equal(t, 0, r.eng.OpenCount())

	view := r.View()
	require.Len(t, view.Watchlist, 1)
	assert.Equal(t, models.WatchPending, view.Watchlist[0].Status)
}

func TestRunner_ViewStatuses(t *testing.T) {
	scan := &scanStub{entries: []models.WatchlistEntry{
		{Symbol: "UP.NS", Trigger: 100, StopLoss: 95, Target: 110},
		{Symbol: "DOWN.NS", Trigger: 200, StopLoss: 190, Target: 220},
	}}
	px := &priceStub{}
	px.set("UP.NS", 101)
	px.set("DOWN.NS", 195)
	r, _ := newTestRunner(Config{ScanUniverseSize: 10}, px, scan, uniStub{"UP.NS", "DOWN.NS"})
	r.TriggerScan(context.Background(), 0)
	r.Tick(context.Background())

	view := r.View()
	require.Len(t, view.Watchlist, 2)
	rows := map[string]models.WatchRow{}
	for _, row := range view.Watchlist {
		rows[row.Symbol] = row
	}
	assert.Equal(t, models.WatchBreakout, rows["UP.NS"].Status)
	assert.Equal(t, models.WatchWaiting, rows["DOWN.NS"].Status)
	assert.InDelta(t, 1.0, rows["UP.NS"].DistancePct, 1e-9)
	assert.InDelta(t, -2.5, rows["DOWN.NS"].DistancePct, 1e-9)
}

func TestRunner_CloseAllAndReset(t *testing.T) {
	scan := &scanStub{entries: []models.WatchlistEntry{
		{Symbol: "TCS.NS", Trigger: 100.1, StopLoss: 97.1, Target: 106.1},
	}}
	px := &priceStub{}
	px.set("TCS.NS", 101)
	r, n := newTestRunner(Config{AutoTrading: true, ScanUniverseSize: 10}, px, scan, uniStub{"TCS.NS"})
	r.TriggerScan(context.Background(), 0)
	r.Tick(context.Background())
	require.Equal(t, 1, r.eng.OpenCount())

	closed := r.CloseAll(context.Background())
	assert.Equal(t, 1, closed)
	assert.Equal(t, 0, r.eng.OpenCount())
	assert.Contains(t, n.joined(), "MANUAL")

	r.Reset()
	assert.Empty(t, r.eng.Trades(0))
	assert.Equal(t, 0, r.wl.Len())
}

func TestRunner_ExportCSV(t *testing.T) {
	scan := &scanStub{entries: []models.WatchlistEntry{
		{Symbol: "TCS.NS", Trigger: 100.1, StopLoss: 97.1, Target: 106.1},
	}}
	px := &priceStub{}
	px.set("TCS.NS", 101)
	r, _ := newTestRunner(Config{AutoTrading: true, ScanUniverseSize: 10}, px, scan, uniStub{"TCS.NS"})
	r.TriggerScan(context.Background(), 0)
	r.Tick(context.Background())

	var buf bytes.Buffer
	require.NoError(t, r.ExportCSV(&buf))
	out := buf.String()
	assert.True(t, strings.HasPrefix(out, "Ticker,Action,Price,Time,PnL,Result"))
	assert.Contains(t, out, "TCS.NS,BUY,101.00")
}

func TestRunner_StartStop(t *testing.T) {
	scan := &scanStub{}
	r, n := newTestRunner(Config{
		ScanUniverseSize: 10,
		PollInterval:     10 * time.Millisecond,
		PollIntervalIdle: 10 * time.Millisecond,
	}, &priceStub{}, scan, uniStub{})

	r.Start(context.Background())
	time.Sleep(25 * time.Millisecond)
	r.Stop()

	assert.Contains(t, n.joined(), "запущен")
}

func TestUnionSymbols(t *testing.T) {
	got := unionSymbols([]string{"A", "B"}, []string{"B", "C"})
	assert.ElementsMatch(t, []string{"A", "B", "C"}, got)
	assert.Empty(t, unionSymbols(nil, nil))
}
