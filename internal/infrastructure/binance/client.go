package binance

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"rangebot-backend/internal/domain"
)

const (
	SpotBaseURL    = "https://api.binance.com"
	TestnetBaseURL = "https://testnet.binance.vision"
)

// Client is the unauthenticated Binance spot client for public market data.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

func NewClient(baseURL string) *Client {
	if baseURL == "" {
		baseURL = SpotBaseURL
	}
	return &Client{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: 10 * time.Second},
	}
}

// Ping checks exchange reachability.
func (c *Client) Ping(ctx context.Context) error {
	resp, err := c.get(ctx, "/api/v3/ping")
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return parseAPIError(resp.StatusCode, body)
	}
	return nil
}

// GetKlines returns candlestick data ordered oldest to newest.
// Binance returns: [ [open_time, open, high, low, close, volume, close_time, ...], ... ]
func (c *Client) GetKlines(ctx context.Context, symbol, interval string, limit int) ([]domain.Candle, error) {
	path := fmt.Sprintf("/api/v3/klines?symbol=%s&interval=%s&limit=%d", symbol, interval, limit)
	resp, err := c.get(ctx, path)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, parseAPIError(resp.StatusCode, body)
	}

	var raw [][]interface{}
	if err := json.NewDecoder(resp.Body).Decode(&raw); err != nil {
		return nil, err
	}

	candles := make([]domain.Candle, 0, len(raw))
	for _, k := range raw {
		if len(k) < 6 {
			continue
		}
		openMs, _ := parseValue(k[0])
		open, _ := parseValue(k[1])
		high, _ := parseValue(k[2])
		low, _ := parseValue(k[3])
		closePrice, _ := parseValue(k[4])
		volume, _ := parseValue(k[5])

		candles = append(candles, domain.Candle{
			OpenTime: time.UnixMilli(int64(openMs)),
			Open:     open,
			High:     high,
			Low:      low,
			Close:    closePrice,
			Volume:   volume,
		})
	}
	return candles, nil
}

// GetPrice returns the latest traded price for a symbol.
func (c *Client) GetPrice(ctx context.Context, symbol string) (float64, error) {
	resp, err := c.get(ctx, "/api/v3/ticker/price?symbol="+symbol)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return 0, parseAPIError(resp.StatusCode, body)
	}

	var data struct {
		Price string `json:"price"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&data); err != nil {
		return 0, err
	}
	return strconv.ParseFloat(data.Price, 64)
}

// GetLotSizeStep returns the LOT_SIZE step for a symbol from exchange info.
func (c *Client) GetLotSizeStep(ctx context.Context, symbol string) (float64, error) {
	resp, err := c.get(ctx, "/api/v3/exchangeInfo?symbol="+symbol)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return 0, parseAPIError(resp.StatusCode, body)
	}

	var info struct {
		Symbols []struct {
			Symbol  string `json:"symbol"`
			Filters []struct {
				FilterType string `json:"filterType"`
				StepSize   string `json:"stepSize"`
			} `json:"filters"`
		} `json:"symbols"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&info); err != nil {
		return 0, err
	}

	for _, s := range info.Symbols {
		if s.Symbol != symbol {
			continue
		}
		for _, f := range s.Filters {
			if f.FilterType == "LOT_SIZE" {
				return strconv.ParseFloat(f.StepSize, 64)
			}
		}
	}
	return 0, fmt.Errorf("no LOT_SIZE filter for symbol %s", symbol)
}

func (c *Client) get(ctx context.Context, path string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return nil, err
	}
	return c.httpClient.Do(req)
}

func parseValue(v interface{}) (float64, error) {
	switch val := v.(type) {
	case string:
		return strconv.ParseFloat(val, 64)
	case float64:
		return val, nil
	}
	return 0, nil
}
