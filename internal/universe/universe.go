package universe

import (
	"context"
	"encoding/csv"
	"io"
	"net/http"
	"os"
	"sync"
	"time"

	"breakout_bot/pkg/logger"

	"github.com/pkg/errors"
	yaml "gopkg.in/yaml.v2"
)

// Статичный запасной список на случай полного отказа источника.
var fallbackTickers = []string{
	"RELIANCE.NS", "TCS.NS", "SBIN.NS", "MARUTI.NS",
	"LT.NS", "INFY.NS", "ITC.NS", "ICICIBANK.NS",
}

const exchangeSuffix = ".NS"

// Source отдаёт вселенную тикеров: CSV индекса с TTL-кэшем,
// yaml-файл как запасной вариант, захардкоженный список как последний.
// Get никогда не возвращает ошибку наружу: полный отказ деградирует, не валит.
type Source struct {
	url          string
	ttl          time.Duration
	fallbackPath string
	http         *http.Client

	mu        sync.Mutex
	cached    []string
	fetchedAt time.Time
}

func NewSource(url string, ttl time.Duration, fallbackPath string) *Source {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &Source{
		url:          url,
		ttl:          ttl,
		fallbackPath: fallbackPath,
		http:         &http.Client{Timeout: 15 * time.Second},
	}
}

func (s *Source) Get(ctx context.Context) []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.cached) > 0 && time.Since(s.fetchedAt) < s.ttl {
		return append([]string(nil), s.cached...)
	}

	tickers, err := s.fetch(ctx)
	if err != nil {
		logger.Warn("universe fetch failed: %v", err)
		if len(s.cached) > 0 {
			// просроченный кэш лучше статичного списка
			return append([]string(nil), s.cached...)
		}
		return s.fallback()
	}

	s.cached = tickers
	s.fetchedAt = time.Now()
	return append([]string(nil), tickers...)
}

func (s *Source) fetch(ctx context.Context) ([]string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.url, nil)
	if err != nil {
		return nil, errors.Wrap(err, "build request")
	}
	req.Header.Set("User-Agent", "Mozilla/5.0")

	resp, err := s.http.Do(req)
	if err != nil {
		return nil, errors.Wrap(err, "do request")
	}
	defer resp.Body.Close()

	if resp.StatusCode/100 != 2 {
		return nil, errors.Errorf("http %d", resp.StatusCode)
	}
	return parseIndexCSV(resp.Body)
}

// parseIndexCSV вытаскивает колонку Symbol и добавляет биржевой суффикс.
func parseIndexCSV(r io.Reader) ([]string, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1

	header, err := cr.Read()
	if err != nil {
		return nil, errors.Wrap(err, "read header")
	}
	symCol := -1
	for i, h := range header {
		if h == "Symbol" {
			symCol = i
			break
		}
	}
	if symCol < 0 {
		return nil, errors.New("no Symbol column")
	}

	var out []string
	for {
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, errors.Wrap(err, "read row")
		}
		if symCol >= len(rec) || rec[symCol] == "" {
			continue
		}
		out = append(out, rec[symCol]+exchangeSuffix)
	}
	if len(out) == 0 {
		return nil, errors.New("empty index list")
	}
	return out, nil
}

func (s *Source) fallback() []string {
	if s.fallbackPath != "" {
		if tickers, err := loadFallbackFile(s.fallbackPath); err == nil && len(tickers) > 0 {
			return tickers
		} else if err != nil {
			logger.Warn("universe fallback file: %v", err)
		}
	}
	return append([]string(nil), fallbackTickers...)
}

func loadFallbackFile(path string) ([]string, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "read fallback file")
	}
	var doc struct {
		Tickers []string `yaml:"tickers"`
	}
	if err := yaml.Unmarshal(b, &doc); err != nil {
		return nil, errors.Wrap(err, "parse fallback yaml")
	}
	return doc.Tickers, nil
}
