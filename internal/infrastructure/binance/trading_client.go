package binance

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"rangebot-backend/internal/domain"
)

// TradingClient handles authenticated Binance spot API requests.
type TradingClient struct {
	apiKey     string
	secretKey  string
	baseURL    string
	httpClient *http.Client
}

// APIError captures structured error info returned by Binance.
type APIError struct {
	StatusCode int
	Code       int    `json:"code"`
	Message    string `json:"msg"`
	Body       string
}

func (e *APIError) Error() string {
	if e == nil {
		return "binance API error"
	}
	if e.Code != 0 || e.Message != "" {
		return fmt.Sprintf("binance API error %d (code=%d): %s", e.StatusCode, e.Code, e.Message)
	}
	return fmt.Sprintf("binance API error %d: %s", e.StatusCode, e.Body)
}

func parseAPIError(statusCode int, body []byte) error {
	var parsed struct {
		Code int    `json:"code"`
		Msg  string `json:"msg"`
	}
	if err := json.Unmarshal(body, &parsed); err == nil && (parsed.Code != 0 || parsed.Msg != "") {
		return &APIError{StatusCode: statusCode, Code: parsed.Code, Message: parsed.Msg, Body: string(body)}
	}
	return &APIError{StatusCode: statusCode, Body: string(body)}
}

// NewTradingClient creates a new authenticated Binance spot client.
func NewTradingClient(apiKey, secretKey string, isTestnet bool) *TradingClient {
	baseURL := SpotBaseURL
	if isTestnet {
		baseURL = TestnetBaseURL
	}
	return &TradingClient{
		apiKey:     apiKey,
		secretKey:  secretKey,
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: 10 * time.Second},
	}
}

// TestConnection verifies the API credentials against the account endpoint.
func (c *TradingClient) TestConnection(ctx context.Context) error {
	_, err := c.GetBalances(ctx)
	return err
}

// GetBalances returns free balances per asset.
func (c *TradingClient) GetBalances(ctx context.Context) (map[string]float64, error) {
	resp, err := c.signedRequest(ctx, http.MethodGet, "/api/v3/account", nil)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		return nil, parseAPIError(resp.StatusCode, body)
	}

	var account struct {
		Balances []struct {
			Asset string `json:"asset"`
			Free  string `json:"free"`
		} `json:"balances"`
	}
	if err := json.Unmarshal(body, &account); err != nil {
		return nil, err
	}

	balances := make(map[string]float64, len(account.Balances))
	for _, b := range account.Balances {
		free, _ := strconv.ParseFloat(b.Free, 64)
		balances[b.Asset] = free
	}
	return balances, nil
}

// OrderRequest describes an order to place.
type OrderRequest struct {
	Symbol        string
	Side          domain.OrderSide
	Type          domain.OrderType
	Quantity      float64
	Price         float64 // limit orders only
	ClientOrderID string
}

// PlaceOrder places a new order and returns the exchange's view of it.
// cummulativeQuoteQty / executedQty gives the average fill price on
// market orders.
func (c *TradingClient) PlaceOrder(ctx context.Context, req *OrderRequest) (*domain.Order, error) {
	params := url.Values{}
	params.Set("symbol", req.Symbol)
	params.Set("side", string(req.Side))
	params.Set("type", string(req.Type))
	params.Set("quantity", strconv.FormatFloat(req.Quantity, 'f', -1, 64))
	params.Set("newOrderRespType", "FULL")
	if req.ClientOrderID != "" {
		params.Set("newClientOrderId", req.ClientOrderID)
	}
	if req.Type == domain.OrderLimit && req.Price > 0 {
		params.Set("price", strconv.FormatFloat(req.Price, 'f', -1, 64))
		params.Set("timeInForce", "GTC")
	}

	resp, err := c.signedRequest(ctx, http.MethodPost, "/api/v3/order", params)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		return nil, parseAPIError(resp.StatusCode, body)
	}

	var placed struct {
		OrderID             int64  `json:"orderId"`
		ClientOrderID       string `json:"clientOrderId"`
		Symbol              string `json:"symbol"`
		Status              string `json:"status"`
		Price               string `json:"price"`
		OrigQty             string `json:"origQty"`
		ExecutedQty         string `json:"executedQty"`
		CummulativeQuoteQty string `json:"cummulativeQuoteQty"`
		TransactTime        int64  `json:"transactTime"`
	}
	if err := json.Unmarshal(body, &placed); err != nil {
		return nil, err
	}

	quantity, _ := strconv.ParseFloat(placed.OrigQty, 64)
	executed, _ := strconv.ParseFloat(placed.ExecutedQty, 64)
	quote, _ := strconv.ParseFloat(placed.CummulativeQuoteQty, 64)
	price, _ := strconv.ParseFloat(placed.Price, 64)
	if executed > 0 && quote > 0 {
		price = quote / executed
	}

	return &domain.Order{
		OrderID:       placed.OrderID,
		ClientOrderID: placed.ClientOrderID,
		Symbol:        placed.Symbol,
		Side:          req.Side,
		Type:          req.Type,
		Quantity:      quantity,
		Price:         price,
		Status:        placed.Status,
		CreatedAt:     time.UnixMilli(placed.TransactTime),
	}, nil
}

// GetOrder returns the current state of an order.
func (c *TradingClient) GetOrder(ctx context.Context, symbol string, orderID int64) (*domain.Order, error) {
	params := url.Values{}
	params.Set("symbol", symbol)
	params.Set("orderId", strconv.FormatInt(orderID, 10))

	resp, err := c.signedRequest(ctx, http.MethodGet, "/api/v3/order", params)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		return nil, parseAPIError(resp.StatusCode, body)
	}

	var raw struct {
		OrderID             int64  `json:"orderId"`
		ClientOrderID       string `json:"clientOrderId"`
		Symbol              string `json:"symbol"`
		Side                string `json:"side"`
		Type                string `json:"type"`
		Status              string `json:"status"`
		Price               string `json:"price"`
		OrigQty             string `json:"origQty"`
		ExecutedQty         string `json:"executedQty"`
		CummulativeQuoteQty string `json:"cummulativeQuoteQty"`
		StopPrice           string `json:"stopPrice"`
		Time                int64  `json:"time"`
	}
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, err
	}

	quantity, _ := strconv.ParseFloat(raw.OrigQty, 64)
	executed, _ := strconv.ParseFloat(raw.ExecutedQty, 64)
	quote, _ := strconv.ParseFloat(raw.CummulativeQuoteQty, 64)
	price, _ := strconv.ParseFloat(raw.Price, 64)
	if executed > 0 && quote > 0 {
		price = quote / executed
	}

	order := &domain.Order{
		OrderID:       raw.OrderID,
		ClientOrderID: raw.ClientOrderID,
		Symbol:        raw.Symbol,
		Side:          domain.OrderSide(raw.Side),
		Type:          domain.OrderType(raw.Type),
		Quantity:      quantity,
		Price:         price,
		Status:        raw.Status,
		CreatedAt:     time.UnixMilli(raw.Time),
	}
	if stop, err := strconv.ParseFloat(raw.StopPrice, 64); err == nil && stop > 0 {
		order.StopPrice = &stop
	}
	return order, nil
}

// CancelOrder cancels an existing order.
func (c *TradingClient) CancelOrder(ctx context.Context, symbol string, orderID int64) error {
	params := url.Values{}
	params.Set("symbol", symbol)
	params.Set("orderId", strconv.FormatInt(orderID, 10))

	resp, err := c.signedRequest(ctx, http.MethodDelete, "/api/v3/order", params)
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

// signedRequest makes a signed API request.
func (c *TradingClient) signedRequest(ctx context.Context, method, endpoint string, params url.Values) (*http.Response, error) {
	if params == nil {
		params = url.Values{}
	}

	params.Set("timestamp", strconv.FormatInt(time.Now().UnixMilli(), 10))

	// The signature covers the query string exactly as transmitted and must
	// come last.
	query := params.Encode()
	query += "&signature=" + c.sign(query)

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+endpoint+"?"+query, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("X-MBX-APIKEY", c.apiKey)

	return c.httpClient.Do(req)
}

// sign creates an HMAC SHA256 signature.
func (c *TradingClient) sign(message string) string {
	mac := hmac.New(sha256.New, []byte(c.secretKey))
	mac.Write([]byte(message))
	return hex.EncodeToString(mac.Sum(nil))
}
