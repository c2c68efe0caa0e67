package postgres

import (
	"context"
	"fmt"

	"breakout_bot/internal/journal"
	"breakout_bot/internal/modules/config"
	"breakout_bot/pkg/db"

	"go.uber.org/fx"
)

// Module поднимает пул и журнал сделок. Без DSN журнал работает
// только в памяти: persistence опциональна.
func Module() fx.Option {
	return fx.Module("postgres",
		fx.Provide(
			func(ctx context.Context, cfg *config.Config) (*journal.Store, error) {
				if cfg.DB == "" {
					return nil, nil
				}

				poolMaster, err := db.NewPool(ctx, db.PoolConfig{
					DSN: cfg.DB,
				})
				if err != nil {
					return nil, fmt.Errorf("failed to create poolMaster: %w", err)
				}

				if err = poolMaster.Ping(ctx); err != nil {
					return nil, err
				}

				store := journal.NewStore(db.NewPgTxManager(poolMaster))
				if err := store.Migrate(ctx); err != nil {
					return nil, err
				}
				return store, nil
			},
		),
	)
}
