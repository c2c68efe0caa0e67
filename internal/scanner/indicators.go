package scanner

import "breakout_bot/internal/models"

// Индикаторы сознательно простые: ATR здесь — средний размах бара,
// без сглаживания Уайлдера. Так считал исходный скринер.
func meanRange(bars []models.Bar) float64 {
	if len(bars) == 0 {
		return 0
	}
	sum := 0.0
	for _, b := range bars {
		sum += b.High - b.Low
	}
	return sum / float64(len(bars))
}

func maxHigh(bars []models.Bar) float64 {
	if len(bars) == 0 {
		return 0
	}
	m := bars[0].High
	for _, b := range bars[1:] {
		if b.High > m {
			m = b.High
		}
	}
	return m
}

// sma по close последних n баров; 0 если данных меньше n.
func sma(bars []models.Bar, n int) float64 {
	if n <= 0 || len(bars) < n {
		return 0
	}
	sum := 0.0
	for _, b := range bars[len(bars)-n:] {
		sum += b.Close
	}
	return sum / float64(n)
}
