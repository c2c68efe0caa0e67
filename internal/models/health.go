package models

type Regime string

const (
	RegimeStable   Regime = "STABLE"
	RegimeCaution  Regime = "CAUTION"
	RegimeCritical Regime = "CRITICAL"
	RegimeUnknown  Regime = "UNKNOWN"
)

// MarketHealth — режим рынка по индексу и VIX. Ошибка данных даёт UNKNOWN,
// торговлю не блокирует.
type MarketHealth struct {
	Regime         Regime
	IndexChangePct float64
	VIX            float64
}
