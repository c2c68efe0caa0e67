package journal

import (
	"encoding/csv"
	"io"
	"strconv"

	"breakout_bot/internal/models"

	"github.com/pkg/errors"
)

// Колонки экспорта фиксированы, порядок менять нельзя:
// внешние импортёры журнала на него завязаны.
var exportHeader = []string{"Ticker", "Action", "Price", "Time", "PnL", "Result"}

// WriteCSV пишет журнал как есть, в переданном порядке
// (вызывающий отдаёт newest-first).
func WriteCSV(w io.Writer, entries []models.TradeLogEntry) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(exportHeader); err != nil {
		return errors.Wrap(err, "write header")
	}
	for _, e := range entries {
		rec := []string{
			e.Symbol,
			string(e.Action),
			strconv.FormatFloat(e.Price, 'f', 2, 64),
			e.Time.Format("2006-01-02 15:04:05"),
			strconv.FormatFloat(e.PnL, 'f', 2, 64),
			string(e.Result),
		}
		if err := cw.Write(rec); err != nil {
			return errors.Wrap(err, "write row")
		}
	}
	cw.Flush()
	return errors.Wrap(cw.Error(), "flush")
}
