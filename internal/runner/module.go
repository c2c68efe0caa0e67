package runner

import (
	"context"

	"breakout_bot/internal/engine"
	"breakout_bot/internal/journal"
	"breakout_bot/internal/marketdata"
	"breakout_bot/internal/modules/config"
	healthsvc "breakout_bot/internal/modules/health/service"
	"breakout_bot/internal/notify"
	"breakout_bot/internal/scanner"
	"breakout_bot/internal/universe"
	"breakout_bot/internal/watchlist"

	"github.com/redis/go-redis/v9"
	"go.uber.org/fx"
)

func Module() fx.Option {
	return fx.Module("runner",
		fx.Provide(
			func(cfg *config.Config) *marketdata.Client {
				return marketdata.NewClient(marketdata.Options{
					QuoteURL:   cfg.QuoteURL,
					ChartURL:   cfg.ChartURL,
					StreamURL:  cfg.StreamURL,
					BatchSize:  cfg.BatchSize,
					BatchPause: cfg.BatchPause,
				})
			},
			// история: redis-кэш поверх клиента, если redis настроен
			func(cfg *config.Config, c *marketdata.Client) marketdata.HistorySource {
				if cfg.RedisAddr == "" {
					return c
				}
				rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
				return marketdata.NewCachingHistory(rdb, cfg.UniverseTTL, c)
			},
			func(cfg *config.Config, hist marketdata.HistorySource) *scanner.Scanner {
				return scanner.New(hist, scanner.Config{
					Range:            cfg.HistoryRange,
					Interval:         cfg.HistoryInterval,
					TriggerBufferPct: cfg.TriggerBufferPct,
					StopATRMult:      cfg.StopATRMult,
					TargetATRMult:    cfg.TargetATRMult,
					VCPFilter:        cfg.VCPFilter,
					SMAPeriod:        cfg.SMAPeriod,
					MaxATRPct:        cfg.MaxATRPct,
					FunnelEnabled:    cfg.FunnelEnabled,
					FunnelLowPct:     cfg.FunnelLowPct,
					FunnelHighPct:    cfg.FunnelHighPct,
					FunnelTopN:       cfg.FunnelTopN,
				})
			},
			func(cfg *config.Config, hist marketdata.HistorySource) *scanner.HealthChecker {
				return scanner.NewHealthChecker(hist, cfg.IndexSymbol, cfg.VIXSymbol)
			},
			func(cfg *config.Config) *universe.Source {
				return universe.NewSource(cfg.UniverseURL, cfg.UniverseTTL, cfg.UniverseFallback)
			},
			func(cfg *config.Config) *engine.Engine {
				return engine.New(cfg.RiskPerTrade)
			},
			watchlist.NewStore,
			// телеграм опционален: без токена сообщения идут в stdout
			func(cfg *config.Config) (Notifier, *notify.Telegram, error) {
				if cfg.Telegram.Token == "" {
					return notify.NewStdout(), nil, nil
				}
				tg, err := notify.NewTelegram(cfg.Telegram.Token, cfg.Telegram.ChatID)
				if err != nil {
					return nil, nil, err
				}
				return tg, tg, nil
			},
			func(
				cfg *config.Config,
				gw *marketdata.Client,
				scan *scanner.Scanner,
				market *scanner.HealthChecker,
				uni *universe.Source,
				eng *engine.Engine,
				wl *watchlist.Store,
				n Notifier,
				jrnl *journal.Store,
				state *healthsvc.State,
			) *Runner {
				r := New(Config{
					ScanUniverseSize: cfg.ScanUniverseSize,
					AutoTrading:      cfg.AutoTrading,
					PollInterval:     cfg.PollInterval,
					PollIntervalIdle: cfg.PollIntervalIdle,
				}, gw, scan, uni, eng, wl, n)
				if cfg.StreamURL != "" {
					r.SetStreamer(gw)
				}
				r.SetMarketHealth(market)
				r.SetJournal(jrnl)
				r.SetState(state)
				return r
			},
		),
		fx.Invoke(func(
			lc fx.Lifecycle,
			r *Runner,
			tg *notify.Telegram,
			ctx context.Context,
		) {
			lc.Append(fx.Hook{
				OnStart: func(_ context.Context) error {
					r.Start(ctx)
					if tg != nil {
						tg.SetController(r)
						if err := tg.Start(ctx); err != nil {
							return err
						}
					}
					return nil
				},
				OnStop: func(_ context.Context) error {
					r.Stop()
					return nil
				},
			})
		}),
	)
}
