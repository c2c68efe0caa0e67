package notify

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log"
	"strconv"
	"strings"

	"breakout_bot/internal/models"

	tgbot "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

type Notifier interface {
	Send(msg string)
	Sendf(format string, args ...any)
}

// Controller — команды наблюдателя к раннеру. Реализует runner.Runner;
// интерфейс здесь, чтобы не тянуть цикл импортов.
type Controller interface {
	TriggerScan(ctx context.Context, limit int) int
	SetAutoTrading(on bool)
	AutoTrading() bool
	CloseAll(ctx context.Context) int
	Reset()
	View() models.RenderView
	ExportCSV(w io.Writer) error
}

// Telegram — пассивный нотифайер + обработка команд управления.
type Telegram struct {
	bot    *tgbot.BotAPI
	chatID int64
	ctrl   Controller
}

func NewTelegram(token string, chatID int64) (*Telegram, error) {
	b, err := tgbot.NewBotAPI(token)
	if err != nil {
		return nil, err
	}
	return &Telegram{bot: b, chatID: chatID}, nil
}

func (t *Telegram) SetController(c Controller) { t.ctrl = c }

func (t *Telegram) Send(msg string) {
	if t == nil || t.bot == nil || t.chatID == 0 {
		return
	}
	_, _ = t.bot.Send(tgbot.NewMessage(t.chatID, msg))
}

func (t *Telegram) Sendf(format string, args ...any) { t.Send(fmt.Sprintf(format, args...)) }

// Start: long-polling команд. Команды исполняются в горутинах,
// чтобы долгий скан не вешал приём остальных.
func (t *Telegram) Start(ctx context.Context) error {
	if t == nil || t.bot == nil {
		return nil
	}

	u := tgbot.NewUpdate(0)
	u.Timeout = 30
	u.AllowedUpdates = []string{"message"}

	updates := t.bot.GetUpdatesChan(u)
	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case upd := <-updates:
				if upd.Message == nil || upd.Message.Chat == nil ||
					upd.Message.Chat.ID != t.chatID || !upd.Message.IsCommand() {
					continue
				}
				go t.handleCommand(ctx, upd.Message)
			}
		}
	}()
	return nil
}

func (t *Telegram) handleCommand(ctx context.Context, msg *tgbot.Message) {
	if t.ctrl == nil {
		return
	}
	switch msg.Command() {
	case "scan":
		limit := 0
		if arg := strings.TrimSpace(msg.CommandArguments()); arg != "" {
			limit, _ = strconv.Atoi(arg)
		}
		t.Send("🔍 Скан запущен...")
		n := t.ctrl.TriggerScan(ctx, limit)
		t.Sendf("✅ Скан завершён: %d сетапов в вотчлисте", n)

	case "auto":
		arg := strings.ToLower(strings.TrimSpace(msg.CommandArguments()))
		switch arg {
		case "on":
			t.ctrl.SetAutoTrading(true)
			t.Send("▶️ Авто-трейдинг включён (опрос 30с)")
		case "off":
			t.ctrl.SetAutoTrading(false)
			t.Send("⏸ Авто-трейдинг выключен (опрос 60с)")
		default:
			t.Sendf("Авто-трейдинг: %v. Используй /auto on|off", t.ctrl.AutoTrading())
		}

	case "positions":
		t.Send(formatPositions(t.ctrl.View()))

	case "watchlist":
		t.Send(formatWatchlist(t.ctrl.View()))

	case "log":
		t.Send(formatTrades(t.ctrl.View()))

	case "export":
		var buf bytes.Buffer
		if err := t.ctrl.ExportCSV(&buf); err != nil {
			t.Sendf("❗️ Экспорт не удался: %v", err)
			return
		}
		doc := tgbot.NewDocument(t.chatID, tgbot.FileBytes{Name: "trade_log.csv", Bytes: buf.Bytes()})
		_, _ = t.bot.Send(doc)

	case "close":
		n := t.ctrl.CloseAll(ctx)
		t.Sendf("📭 Закрыто позиций: %d", n)

	case "reset":
		t.ctrl.Reset()
		t.Send("🧹 Состояние сброшено: позиции, вотчлист, журнал")
	}
}

func formatPositions(v models.RenderView) string {
	if len(v.Positions) == 0 {
		return "📭 Открытых позиций нет"
	}
	var b strings.Builder
	b.WriteString("📊 Открытые позиции:\n")
	for _, p := range v.Positions {
		mark := ""
		if p.Stale {
			// цена не живая, показана цена входа
			mark = " (stale)"
		}
		fmt.Fprintf(&b, "- %s qty=%.0f @ %.2f | last=%.2f%s | uPnL=%.2f | SL=%.2f TP=%.2f\n",
			p.Symbol, p.Qty, p.Entry, p.LastPrice, mark, p.UnrealizedPnL, p.SL, p.TP)
	}
	return b.String()
}

func formatWatchlist(v models.RenderView) string {
	if len(v.Watchlist) == 0 {
		return "Вотчлист пуст. Запусти /scan"
	}
	var b strings.Builder
	fmt.Fprintf(&b, "👀 Вотчлист (%d) | рынок: %s\n", len(v.Watchlist), v.Regime.Regime)
	for _, w := range v.Watchlist {
		fmt.Fprintf(&b, "- %s %.2f / триггер %.2f (%+.2f%%) %s\n",
			w.Symbol, w.Price, w.Trigger, w.DistancePct, w.Status)
	}
	return b.String()
}

func formatTrades(v models.RenderView) string {
	if len(v.Trades) == 0 {
		return "Журнал пуст"
	}
	var b strings.Builder
	b.WriteString("📒 Последние сделки:\n")
	for _, e := range v.Trades {
		fmt.Fprintf(&b, "- %s %s %s @ %.2f pnl=%.2f [%s]\n",
			e.Time.Format("01-02 15:04"), e.Symbol, e.Action, e.Price, e.PnL, e.Result)
	}
	return b.String()
}

// Stdout — заглушка без телеграма, всё в лог.
type Stdout struct{}

func NewStdout() *Stdout                           { return &Stdout{} }
func (s *Stdout) Send(msg string)                  { log.Println(msg) }
func (s *Stdout) Sendf(format string, args ...any) { log.Printf(format, args...) }
