package models

import "time"

// Quote — последняя известная цена по символу.
// Valid=false означает "нет пригодной цены на этом тике":
// это не ноль и не старая цена, downstream обязан пропустить символ.
type Quote struct {
	Price float64
	Valid bool
	At    time.Time
}

// PriceSnapshot — полная карта котировок одного тика.
// Пересобирается целиком на каждом опросе, частично не мержится.
type PriceSnapshot map[string]Quote

// At возвращает котировку символа; отсутствующий ключ = невалидная котировка.
func (s PriceSnapshot) At(symbol string) Quote {
	if s == nil {
		return Quote{}
	}
	return s[symbol]
}
