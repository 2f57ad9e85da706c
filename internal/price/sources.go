package price

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/shopspring/decimal"

	"fazenda.ton/farm-bot/internal/retry"
)

// Source: один независимый источник курса (крипта → местная валюта).
type Source interface {
	Name() string
	Fetch(ctx context.Context) (float64, error)
}

// Endpoints: адреса внешних API. В тестах подменяются на httptest.
type Endpoints struct {
	CoinGecko        string
	Binance          string
	OKX              string
	OpenER           string
	ExchangeRateHost string
}

// DefaultEndpoints: боевые адреса.
func DefaultEndpoints() Endpoints {
	return Endpoints{
		CoinGecko:        "https://api.coingecko.com",
		Binance:          "https://api.binance.com",
		OKX:              "https://www.okx.com",
		OpenER:           "https://open.er-api.com",
		ExchangeRateHost: "https://api.exchangerate.host",
	}
}

var errEmpty = errors.New("пустой ответ источника")

// httpSource: GET запрос с разбором JSON в одно число.
type httpSource struct {
	name    string
	url     string
	client  *http.Client
	extract func(body []byte) (float64, error)
}

func (s *httpSource) Name() string { return s.name }

func (s *httpSource) Fetch(ctx context.Context) (float64, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.url, nil)
	if err != nil {
		return 0, fmt.Errorf("%s: ошибка создания запроса: %w", s.name, err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return 0, fmt.Errorf("%s: запрос не удался: %w", s.name, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return 0, fmt.Errorf("%s: ошибка чтения ответа: %w", s.name, err)
	}
	if resp.StatusCode != http.StatusOK {
		return 0, fmt.Errorf("%s: статус %d", s.name, resp.StatusCode)
	}

	v, err := s.extract(body)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", s.name, err)
	}
	if v <= 0 {
		return 0, fmt.Errorf("%s: неположительный курс %v", s.name, v)
	}
	return v, nil
}

func parseNumber(s string) (float64, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return 0, fmt.Errorf("некорректное число %q: %w", s, err)
	}
	f, _ := d.Float64()
	return f, nil
}

// CoinGeckoSimple: /simple/price?ids=<coin>&vs_currencies=<fiat>.
func CoinGeckoSimple(client *http.Client, base, coin, fiat string) Source {
	q := url.Values{}
	q.Set("ids", coin)
	q.Set("vs_currencies", fiat)
	q.Set("precision", "full")
	return &httpSource{
		name:   "coingecko_simple",
		url:    base + "/api/v3/simple/price?" + q.Encode(),
		client: client,
		extract: func(body []byte) (float64, error) {
			var out map[string]map[string]float64
			if err := json.Unmarshal(body, &out); err != nil {
				return 0, err
			}
			v, ok := out[coin][fiat]
			if !ok {
				return 0, errEmpty
			}
			return v, nil
		},
	}
}

// CoinGeckoMarkets: /coins/markets, поле current_price первой записи.
func CoinGeckoMarkets(client *http.Client, base, coin, fiat string) Source {
	q := url.Values{}
	q.Set("vs_currency", fiat)
	q.Set("ids", coin)
	return &httpSource{
		name:   "coingecko_markets",
		url:    base + "/api/v3/coins/markets?" + q.Encode(),
		client: client,
		extract: func(body []byte) (float64, error) {
			var out []struct {
				CurrentPrice float64 `json:"current_price"`
			}
			if err := json.Unmarshal(body, &out); err != nil {
				return 0, err
			}
			if len(out) == 0 {
				return 0, errEmpty
			}
			return out[0].CurrentPrice, nil
		},
	}
}

// BinanceTicker: цена пары в USDT.
func BinanceTicker(client *http.Client, base, symbol string) Source {
	return &httpSource{
		name:   "binance",
		url:    base + "/api/v3/ticker/price?symbol=" + url.QueryEscape(symbol),
		client: client,
		extract: func(body []byte) (float64, error) {
			var out struct {
				Price string `json:"price"`
			}
			if err := json.Unmarshal(body, &out); err != nil {
				return 0, err
			}
			if out.Price == "" {
				return 0, errEmpty
			}
			return parseNumber(out.Price)
		},
	}
}

// OKXTicker: поле data[0].last.
func OKXTicker(client *http.Client, base, instID string) Source {
	return &httpSource{
		name:   "okx",
		url:    base + "/api/v5/market/ticker?instId=" + url.QueryEscape(instID),
		client: client,
		extract: func(body []byte) (float64, error) {
			var out struct {
				Data []struct {
					Last string `json:"last"`
				} `json:"data"`
			}
			if err := json.Unmarshal(body, &out); err != nil {
				return 0, err
			}
			if len(out.Data) == 0 || out.Data[0].Last == "" {
				return 0, errEmpty
			}
			return parseNumber(out.Data[0].Last)
		},
	}
}

type ratesResponse struct {
	Rates map[string]float64 `json:"rates"`
}

func extractRate(fiat string) func([]byte) (float64, error) {
	return func(body []byte) (float64, error) {
		var out ratesResponse
		if err := json.Unmarshal(body, &out); err != nil {
			return 0, err
		}
		v, ok := out.Rates[fiat]
		if !ok {
			return 0, errEmpty
		}
		return v, nil
	}
}

// OpenERRate: курс USD → fiat с open.er-api.com.
func OpenERRate(client *http.Client, base, fiat string) Source {
	return &httpSource{
		name:    "open_er_api",
		url:     base + "/v6/latest/USD",
		client:  client,
		extract: extractRate(fiat),
	}
}

// ExchangeRateHostRate: курс USD → fiat с exchangerate.host.
func ExchangeRateHostRate(client *http.Client, base, fiat string) Source {
	return &httpSource{
		name:    "exchangerate_host",
		url:     base + "/latest?base=USD&symbols=" + url.QueryEscape(fiat),
		client:  client,
		extract: extractRate(fiat),
	}
}

// Synthetic собирает курс из двух ног: крипта/USDT × USD/fiat.
// В каждой ноге берётся первый источник, ответивший после повторов.
type Synthetic struct {
	Tickers []Source
	FX      []Source
	Policy  retry.Policy
}

func (s *Synthetic) Name() string { return "synthetic_usdt" }

func (s *Synthetic) Fetch(ctx context.Context) (float64, error) {
	usdt, err := firstOf(ctx, s.Policy, s.Tickers)
	if err != nil {
		return 0, fmt.Errorf("тикер USDT: %w", err)
	}
	fx, err := firstOf(ctx, s.Policy, s.FX)
	if err != nil {
		return 0, fmt.Errorf("курс USD: %w", err)
	}
	return usdt * fx, nil
}

func firstOf(ctx context.Context, p retry.Policy, sources []Source) (float64, error) {
	var errs []error
	for _, src := range sources {
		v, err := retry.Do(ctx, p, src.Fetch)
		if err == nil {
			return v, nil
		}
		errs = append(errs, err)
	}
	if len(errs) == 0 {
		return 0, errEmpty
	}
	return 0, errors.Join(errs...)
}

// DefaultSources: порядок опроса: CoinGecko simple, CoinGecko markets,
// затем синтетика Binance|OKX × open.er-api|exchangerate.host.
func DefaultSources(client *http.Client, ep Endpoints, p retry.Policy, fiat string) []Source {
	fiatLower := strings.ToLower(fiat)
	return []Source{
		CoinGeckoSimple(client, ep.CoinGecko, "the-open-network", fiatLower),
		CoinGeckoMarkets(client, ep.CoinGecko, "the-open-network", fiatLower),
		&Synthetic{
			Tickers: []Source{
				BinanceTicker(client, ep.Binance, "TONUSDT"),
				OKXTicker(client, ep.OKX, "TON-USDT"),
			},
			FX: []Source{
				OpenERRate(client, ep.OpenER, fiat),
				ExchangeRateHostRate(client, ep.ExchangeRateHost, fiat),
			},
			Policy: p,
		},
	}
}
