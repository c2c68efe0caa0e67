package universe

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"breakout_bot/pkg/logger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMain(m *testing.M) {
	if err := logger.Init(); err != nil {
		panic(err)
	}
	os.Exit(m.Run())
}

const indexCSV = `Company Name,Industry,Symbol,Series,ISIN Code
Reliance Industries Ltd.,Oil & Gas,RELIANCE,EQ,INE002A01018
Tata Consultancy Services Ltd.,IT,TCS,EQ,INE467B01029
State Bank of India,Banks,SBIN,EQ,INE062A01020
`

func TestParseIndexCSV(t *testing.T) {
	tickers, err := parseIndexCSV(strings.NewReader(indexCSV))
	require.NoError(t, err)
	assert.Equal(t, []string{"RELIANCE.NS", "TCS.NS", "SBIN.NS"}, tickers)
}

func TestParseIndexCSV_NoSymbolColumn(t *testing.T) {
	_, err := parseIndexCSV(strings.NewReader("Name,ISIN\nFoo,123\n"))
	assert.Error(t, err)
}

func TestSource_TTLCache(t *testing.T) {
	var hits int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits++
		fmt.Fprint(w, indexCSV)
	}))
	defer srv.Close()

	s := NewSource(srv.URL, time.Hour, "")
	first := s.Get(context.Background())
	second := s.Get(context.Background())

	assert.Equal(t, first, second)
	assert.Equal(t, 1, hits) // второй Get живёт из кэша
}

func TestSource_ExpiredCacheBeatsFallback(t *testing.T) {
	var hits int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits++
		if hits == 1 {
			fmt.Fprint(w, indexCSV)
			return
		}
		http.Error(w, "blocked", http.StatusForbidden)
	}))
	defer srv.Close()

	s := NewSource(srv.URL, time.Nanosecond, "")
	first := s.Get(context.Background())
	require.Len(t, first, 3)

	time.Sleep(time.Millisecond)
	second := s.Get(context.Background())
	assert.Equal(t, first, second)
	assert.Equal(t, 2, hits)
}

func TestSource_FallbackFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tickers.yaml")
	require.NoError(t, os.WriteFile(path, []byte("tickers:\n  - AAA.NS\n  - BBB.NS\n"), 0o644))

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "down", http.StatusBadGateway)
	}))
	defer srv.Close()

	s := NewSource(srv.URL, time.Hour, path)
	assert.Equal(t, []string{"AAA.NS", "BBB.NS"}, s.Get(context.Background()))
}

func TestSource_HardcodedFallback(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "down", http.StatusBadGateway)
	}))
	defer srv.Close()

	s := NewSource(srv.URL, time.Hour, "")
	got := s.Get(context.Background())
	assert.Equal(t, fallbackTickers, got)
	assert.Contains(t, got, "RELIANCE.NS")
}
