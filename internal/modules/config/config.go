package config

import (
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/pkg/errors"
	"github.com/spf13/viper"
)

const configFilePathENV = "CONFIG_FILE"

// Config ...
type Config struct {
	// Вселенная тикеров
	UniverseURL      string        `mapstructure:"universe_url"`
	UniverseTTL      time.Duration `mapstructure:"universe_ttl"`
	UniverseFallback string        `mapstructure:"universe_fallback"` // yaml со статичным списком
	ScanUniverseSize int           `mapstructure:"scan_universe_size"`

	// Источник котировок
	QuoteURL        string        `mapstructure:"quote_url"`
	ChartURL        string        `mapstructure:"chart_url"`
	StreamURL       string        `mapstructure:"stream_url"` // пусто = без WS-стрима
	BatchSize       int           `mapstructure:"batch_size"`
	BatchPause      time.Duration `mapstructure:"batch_pause"`
	HistoryRange    string        `mapstructure:"history_range"`
	HistoryInterval string        `mapstructure:"history_interval"`

	// Сканер
	TriggerBufferPct float64 `mapstructure:"trigger_buffer_pct"` // 0.1% над prevHigh
	StopATRMult      float64 `mapstructure:"stop_atr_mult"`
	TargetATRMult    float64 `mapstructure:"target_atr_mult"`
	SMAPeriod        int     `mapstructure:"sma_period"`
	MaxATRPct        float64 `mapstructure:"max_atr_pct"` // VCP-гейт: atr/close*100
	VCPFilter        bool    `mapstructure:"vcp_filter"`
	FunnelEnabled    bool    `mapstructure:"funnel_enabled"`
	FunnelLowPct     float64 `mapstructure:"funnel_low_pct"`
	FunnelHighPct    float64 `mapstructure:"funnel_high_pct"`
	FunnelTopN       int     `mapstructure:"funnel_top_n"`

	// Режим рынка
	IndexSymbol string `mapstructure:"index_symbol"`
	VIXSymbol   string `mapstructure:"vix_symbol"`

	// Риск / движок
	RiskPerTrade float64 `mapstructure:"risk_per_trade"` // фикс. сумма риска на сделку

	// Раннер
	AutoTrading      bool          `mapstructure:"auto_trading"`
	PollInterval     time.Duration `mapstructure:"poll_interval"`      // при включённом авто-трейдинге
	PollIntervalIdle time.Duration `mapstructure:"poll_interval_idle"` // без него

	// Инфраструктура
	DB         string `mapstructure:"db_dsn"`
	RedisAddr  string `mapstructure:"redis_addr"`
	HealthAddr string `mapstructure:"health_addr"`

	Telegram struct {
		Token  string `mapstructure:"token"`
		ChatID int64  `mapstructure:"chat_id"`
	} `mapstructure:"telegram"`

	Jaeger struct {
		Host string `mapstructure:"host"`
		Port int    `mapstructure:"port"`
	} `mapstructure:"jaeger"`
}

func NewConfig() (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	setDefaults(v)

	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	configFileName := os.Getenv(configFilePathENV)
	if configFileName == "" {
		configFileName = "values_local.yaml"
	}
	v.SetConfigFile("configs/" + configFileName)
	if err := v.ReadInConfig(); err != nil {
		// файл опционален: дефолты + env покрывают всё
		if _, ok := err.(*os.PathError); !ok {
			if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
				return nil, errors.Wrap(err, "read config file")
			}
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, errors.Wrap(err, "unmarshal config")
	}

	if token := os.Getenv("TELEGRAM_TOKEN"); token != "" {
		config.Telegram.Token = token
	}
	if dsn := os.Getenv("DATABASE_DSN"); dsn != "" {
		config.DB = dsn
	}

	return &config, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("universe_url", "https://nsearchives.nseindia.com/content/indices/ind_nifty500list.csv")
	v.SetDefault("universe_ttl", "5m")
	v.SetDefault("scan_universe_size", 100)

	v.SetDefault("quote_url", "https://query1.finance.yahoo.com/v7/finance/quote")
	v.SetDefault("chart_url", "https://query1.finance.yahoo.com/v8/finance/chart")
	v.SetDefault("batch_size", 50)
	v.SetDefault("batch_pause", "500ms")
	v.SetDefault("history_range", "1y")
	v.SetDefault("history_interval", "1d")

	v.SetDefault("trigger_buffer_pct", 0.1)
	v.SetDefault("stop_atr_mult", 1.5)
	v.SetDefault("target_atr_mult", 3.0)
	v.SetDefault("sma_period", 50)
	v.SetDefault("max_atr_pct", 2.5)
	v.SetDefault("vcp_filter", true)
	v.SetDefault("funnel_enabled", true)
	v.SetDefault("funnel_low_pct", -2.0)
	v.SetDefault("funnel_high_pct", 1.0)
	v.SetDefault("funnel_top_n", 20)

	v.SetDefault("index_symbol", "^NSEI")
	v.SetDefault("vix_symbol", "^INDIAVIX")

	v.SetDefault("risk_per_trade", 1000.0)

	v.SetDefault("auto_trading", false)
	v.SetDefault("poll_interval", "30s")
	v.SetDefault("poll_interval_idle", "60s")

	v.SetDefault("health_addr", ":8080")
	v.SetDefault("jaeger.host", "localhost")
	v.SetDefault("jaeger.port", 6831)
}
