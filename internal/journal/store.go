package journal

import (
	"context"
	"fmt"

	"breakout_bot/internal/models"
	"breakout_bot/pkg/db"

	"github.com/jackc/pgx/v5"
)

// Store implement db store — журнал сделок в Postgres, append-only.
type Store struct {
	txm db.TxManager
}

func NewStore(txm db.TxManager) *Store {
	return &Store{txm: txm}
}

const createTable = `
CREATE TABLE IF NOT EXISTS trade_log (
    id      BIGSERIAL PRIMARY KEY,
    ticker  TEXT NOT NULL,
    action  TEXT NOT NULL,
    price   DOUBLE PRECISION NOT NULL,
    ts      TIMESTAMPTZ NOT NULL,
    pnl     DOUBLE PRECISION NOT NULL,
    result  TEXT NOT NULL
)`

func (s *Store) Migrate(ctx context.Context) (err error) {
	defer func() {
		if err != nil {
			err = fmt.Errorf("Store.Migrate: %w", err)
		}
	}()
	return s.txm.RunMaster(ctx, func(ctxTx context.Context, tx pgx.Tx) error {
		_, err := tx.Exec(ctxTx, createTable)
		return err
	})
}

func (s *Store) Append(ctx context.Context, e models.TradeLogEntry) (err error) {
	defer func() {
		if err != nil {
			err = fmt.Errorf("Store.Append: %w", err)
		}
	}()
	return s.txm.RunMaster(ctx, func(ctxTx context.Context, tx pgx.Tx) error {
		_, err := tx.Exec(ctxTx,
			`INSERT INTO trade_log (ticker, action, price, ts, pnl, result) VALUES ($1, $2, $3, $4, $5, $6)`,
			e.Symbol, string(e.Action), e.Price, e.Time, e.PnL, string(e.Result),
		)
		return err
	})
}

// LastN — последние n записей, newest-first.
func (s *Store) LastN(ctx context.Context, n int) (entries []models.TradeLogEntry, err error) {
	defer func() {
		if err != nil {
			err = fmt.Errorf("Store.LastN: %w", err)
		}
	}()

	rows, err := s.txm.Conn().Query(ctx,
		`SELECT ticker, action, price, ts, pnl, result FROM trade_log ORDER BY ts DESC, id DESC LIMIT $1`, n)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var e models.TradeLogEntry
		var action, result string
		if err := rows.Scan(&e.Symbol, &action, &e.Price, &e.Time, &e.PnL, &result); err != nil {
			return nil, err
		}
		e.Action = models.Action(action)
		e.Result = models.Result(result)
		entries = append(entries, e)
	}
	return entries, rows.Err()
}
