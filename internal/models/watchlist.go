package models

// WatchlistEntry — результат сканера: уровни для одного сетапа.
// Read-only после создания, инвариант stop < trigger < target.
type WatchlistEntry struct {
	Symbol      string
	Close       float64 // close на момент скана
	Trigger     float64
	StopLoss    float64
	Target      float64
	ATR         float64
	DistancePct float64 // (close-trigger)/trigger*100, отрицательно ниже триггера
}
