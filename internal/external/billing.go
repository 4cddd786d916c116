package external

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
)

type BillingConfig struct {
	BaseURL string
	APIKey  string
	Timeout time.Duration
}

// BillingClient talks to the billing gateway that charges drop-in
// bookings. It records the charge intent; actual settlement is async
// and reported back over the gateway's own channels.
type BillingClient struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

type ChargeRequest struct {
	OrgID       string `json:"orgId"`
	MemberID    string `json:"memberId"`
	BookingID   string `json:"bookingId"`
	AmountCents int64  `json:"amountCents"`
	Currency    string `json:"currency"`
	Description string `json:"description,omitempty"`
}

type ChargeResponse struct {
	Success  bool   `json:"success"`
	ChargeID string `json:"chargeId"`
	Status   string `json:"status"`
}

type RefundRequest struct {
	OrgID     string `json:"orgId"`
	BookingID string `json:"bookingId"`
	Reason    string `json:"reason,omitempty"`
}

type RefundResponse struct {
	Success  bool   `json:"success"`
	RefundID string `json:"refundId"`
	Status   string `json:"status"`
}

func NewBillingClient(cfg BillingConfig) *BillingClient {
	if cfg.Timeout == 0 {
		cfg.Timeout = 30 * time.Second
	}

	return &BillingClient{
		baseURL: cfg.BaseURL,
		apiKey:  cfg.APIKey,
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
	}
}

func (bc *BillingClient) ChargeDropIn(ctx context.Context, orgID, memberID, bookingID uuid.UUID, amountCents int64, description string) (*ChargeResponse, error) {
	req := ChargeRequest{
		OrgID:       orgID.String(),
		MemberID:    memberID.String(),
		BookingID:   bookingID.String(),
		AmountCents: amountCents,
		Currency:    "USD",
		Description: description,
	}

	var result ChargeResponse
	if err := bc.post(ctx, "/api/v1/charges", req, &result); err != nil {
		return nil, err
	}

	if !result.Success {
		return nil, fmt.Errorf("charge was rejected: %s", result.Status)
	}

	return &result, nil
}

// RefundCharge reverses the drop-in charge for a booking. The gateway
// keys charges by our booking id.
func (bc *BillingClient) RefundCharge(ctx context.Context, orgID, bookingID uuid.UUID, reason string) (*RefundResponse, error) {
	req := RefundRequest{
		OrgID:     orgID.String(),
		BookingID: bookingID.String(),
		Reason:    reason,
	}

	var result RefundResponse
	if err := bc.post(ctx, "/api/v1/refunds", req, &result); err != nil {
		return nil, err
	}

	if !result.Success {
		return nil, fmt.Errorf("refund was rejected: %s", result.Status)
	}

	return &result, nil
}

func (bc *BillingClient) post(ctx context.Context, path string, body, out interface{}) error {
	jsonBody, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, bc.baseURL+path, bytes.NewBuffer(jsonBody))
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+bc.apiKey)

	resp, err := bc.httpClient.Do(httpReq)
	if err != nil {
		return fmt.Errorf("billing gateway request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 500 {
		return fmt.Errorf("billing gateway error: status %d", resp.StatusCode)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}

	return nil
}
