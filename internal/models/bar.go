package models

import "time"

// Bar — одна OHLCV-свеча по символу. Неизменяема после загрузки.
type Bar struct {
	Time   time.Time
	Open   float64
	High   float64
	Low    float64
	Close  float64
	Volume float64
}
