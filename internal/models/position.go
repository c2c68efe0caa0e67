package models

import "time"

// Position — открытая бумажная позиция. Одна на символ.
type Position struct {
	Symbol   string
	Entry    float64
	Qty      float64
	SL       float64
	TP       float64
	OpenedAt time.Time

	// Для отображения: последняя цена тика и её свежесть.
	// При Stale=true LastPrice — это fallback на цену входа,
	// а не живая котировка.
	LastPrice     float64
	Stale         bool
	UnrealizedPnL float64
}
