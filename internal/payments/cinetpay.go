package payments

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"
)

/*
cinetPayProvider wraps the two CinetPay REST calls the app needs: opening
a hosted mobile-money checkout and re-checking a transaction after the
notify callback. CinetPay covers the Orange Money / Moov Money / Wave
rails common in UEMOA countries.

The notify callback body is never trusted on its own: settlement is
confirmed with a server-to-server /payment/check call before the payment
row moves to succeeded.
*/

type cinetPayProvider struct {
	baseURL   string // e.g. https://api-checkout.cinetpay.com/v2
	apiKey    string
	siteID    string
	notifyURL string
	client    *http.Client
}

func newCinetPayProvider() *cinetPayProvider {
	base := os.Getenv("CINETPAY_BASE_URL")
	if base == "" {
		base = "https://api-checkout.cinetpay.com/v2"
	}
	return &cinetPayProvider{
		baseURL:   base,
		apiKey:    os.Getenv("CINETPAY_API_KEY"),
		siteID:    os.Getenv("CINETPAY_SITE_ID"),
		notifyURL: os.Getenv("CINETPAY_NOTIFY_URL"),
		client:    &http.Client{Timeout: 30 * time.Second},
	}
}

func (p *cinetPayProvider) Name() string { return "cinetpay" }

type cinetPayInitRequest struct {
	APIKey        string `json:"apikey"`
	SiteID        string `json:"site_id"`
	TransactionID string `json:"transaction_id"`
	Amount        int64  `json:"amount"`
	Currency      string `json:"currency"`
	Description   string `json:"description"`
	NotifyURL     string `json:"notify_url"`
	ReturnURL     string `json:"return_url"`
	Channels      string `json:"channels"`
	CustomerName  string `json:"customer_name,omitempty"`
	CustomerEmail string `json:"customer_email,omitempty"`
}

type cinetPayEnvelope struct {
	Code    string          `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

// CreateCheckout opens a checkout: POST {base}/payment. The payment row ID
// doubles as the CinetPay transaction_id so the notify callback maps back
// without extra state.
func (p *cinetPayProvider) CreateCheckout(ctx context.Context, in CheckoutInput) (*Session, error) {
	body := cinetPayInitRequest{
		APIKey:        p.apiKey,
		SiteID:        p.siteID,
		TransactionID: in.Payment.ID.String(),
		Amount:        wholeFCFA(in.Payment.Amount),
		Currency:      "XOF",
		Description:   in.Description,
		NotifyURL:     p.notifyURL,
		ReturnURL:     in.Payment.SuccessURL,
		Channels:      "ALL",
		CustomerName:  in.User.Name,
		CustomerEmail: in.User.Email,
	}

	var data struct {
		PaymentURL   string `json:"payment_url"`
		PaymentToken string `json:"payment_token"`
	}
	if err := p.post(ctx, "/payment", body, &data); err != nil {
		return nil, err
	}
	return &Session{ID: in.Payment.ID.String(), URL: data.PaymentURL}, nil
}

// CheckTransaction asks CinetPay for the authoritative status of a
// transaction: POST {base}/payment/check. Returns true only when the
// provider says ACCEPTED.
func (p *cinetPayProvider) CheckTransaction(ctx context.Context, transactionID string) (bool, error) {
	body := map[string]string{
		"apikey":         p.apiKey,
		"site_id":        p.siteID,
		"transaction_id": transactionID,
	}
	var data struct {
		Status string `json:"status"`
	}
	if err := p.post(ctx, "/payment/check", body, &data); err != nil {
		return false, err
	}
	return data.Status == "ACCEPTED", nil
}

func (p *cinetPayProvider) post(ctx context.Context, path string, body any, out any) error {
	raw, err := json.Marshal(body)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+path, bytes.NewReader(raw))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	res, err := p.client.Do(req)
	if err != nil {
		return err
	}
	defer res.Body.Close()

	if res.StatusCode >= 300 {
		msg, _ := io.ReadAll(res.Body)
		return fmt.Errorf("cinetpay %s error: %s | %s", path, res.Status, string(msg))
	}

	var env cinetPayEnvelope
	if err := json.NewDecoder(res.Body).Decode(&env); err != nil {
		return fmt.Errorf("cinetpay %s: decode response: %w", path, err)
	}
	// 201 = created, 00 = check ok
	if env.Code != "201" && env.Code != "00" {
		return fmt.Errorf("cinetpay %s rejected: %s %s", path, env.Code, env.Message)
	}
	if out != nil && len(env.Data) > 0 {
		if err := json.Unmarshal(env.Data, out); err != nil {
			return fmt.Errorf("cinetpay %s: decode data: %w", path, err)
		}
	}
	return nil
}
