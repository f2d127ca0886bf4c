package payment

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// RazorpayGateway talks to the provider's orders REST API with basic auth.
type RazorpayGateway struct {
	keyID      string
	keySecret  string
	baseURL    string
	httpClient *http.Client
	logger     zerolog.Logger
}

func NewRazorpayGateway(keyID, keySecret, baseURL string, logger zerolog.Logger) *RazorpayGateway {
	return &RazorpayGateway{
		keyID:      keyID,
		keySecret:  keySecret,
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: 10 * time.Second},
		logger:     logger.With().Str("component", "payment_gateway").Logger(),
	}
}

type createOrderRequest struct {
	Amount   int64  `json:"amount"`
	Currency string `json:"currency"`
	Receipt  string `json:"receipt"`
}

func (g *RazorpayGateway) CreateOrder(ctx context.Context, amount int64, currency, receipt string) (*Order, error) {
	body, err := json.Marshal(createOrderRequest{
		Amount:   amount,
		Currency: currency,
		Receipt:  receipt,
	})
	if err != nil {
		return nil, fmt.Errorf("encode order request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.baseURL+"/v1/orders", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build order request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.SetBasicAuth(g.keyID, g.keySecret)

	resp, err := g.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrOrderCreateFailed, err)
	}
	defer func() { _ = resp.Body.Close() }()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("%w: read response: %v", ErrOrderCreateFailed, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		g.logger.Error().Int("status", resp.StatusCode).Msg("order creation rejected by provider")
		return nil, fmt.Errorf("%w: provider returned %d", ErrOrderCreateFailed, resp.StatusCode)
	}

	var order Order
	if err := json.Unmarshal(raw, &order); err != nil {
		return nil, fmt.Errorf("%w: decode response: %v", ErrOrderCreateFailed, err)
	}
	if order.ID == "" {
		return nil, fmt.Errorf("%w: provider returned no order id", ErrOrderCreateFailed)
	}

	g.logger.Debug().Str("order_id", order.ID).Int64("amount", order.Amount).Msg("payment order created")
	return &order, nil
}

func (g *RazorpayGateway) VerifySignature(orderID, paymentID, signature string) bool {
	return verify(g.keySecret, orderID, paymentID, signature)
}
