// Package payment integrates the Midtrans hosted payment page (Snap).
package payment

import (
	"bytes"
	"context"
	"crypto/sha512"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/pkg/errors"
)

const (
	SandboxSnapURL    = "https://app.sandbox.midtrans.com"
	ProductionSnapURL = "https://app.midtrans.com"
	SandboxAPIURL     = "https://api.sandbox.midtrans.com"
	ProductionAPIURL  = "https://api.midtrans.com"
)

// MidtransConfig selects keys and environment
type MidtransConfig struct {
	ServerKey  string
	ClientKey  string
	Production bool
	// overrides for tests
	SnapURL string
	APIURL  string
}

func (c MidtransConfig) snapURL() string {
	if c.SnapURL != "" {
		return c.SnapURL
	}
	if c.Production {
		return ProductionSnapURL
	}
	return SandboxSnapURL
}

func (c MidtransConfig) apiURL() string {
	if c.APIURL != "" {
		return c.APIURL
	}
	if c.Production {
		return ProductionAPIURL
	}
	return SandboxAPIURL
}

// ScriptURL is the snap.js location for this environment
func (c MidtransConfig) ScriptURL() string {
	return c.snapURL() + "/snap/snap.js"
}

type TransactionDetails struct {
	OrderID     string `json:"order_id"`
	GrossAmount int64  `json:"gross_amount"`
}

type ItemDetail struct {
	ID       string `json:"id"`
	Price    int64  `json:"price"`
	Quantity int    `json:"quantity"`
	Name     string `json:"name"`
}

type CustomerAddress struct {
	FirstName   string `json:"first_name,omitempty"`
	Phone       string `json:"phone,omitempty"`
	Address     string `json:"address,omitempty"`
	City        string `json:"city,omitempty"`
	PostalCode  string `json:"postal_code,omitempty"`
	CountryCode string `json:"country_code,omitempty"`
}

type CustomerDetails struct {
	FirstName       string           `json:"first_name,omitempty"`
	Email           string           `json:"email,omitempty"`
	Phone           string           `json:"phone,omitempty"`
	ShippingAddress *CustomerAddress `json:"shipping_address,omitempty"`
}

type Callbacks struct {
	Finish string `json:"finish,omitempty"`
}

// SnapRequest is the body of a Snap transaction creation call
type SnapRequest struct {
	TransactionDetails TransactionDetails `json:"transaction_details"`
	ItemDetails        []ItemDetail       `json:"item_details,omitempty"`
	CustomerDetails    *CustomerDetails   `json:"customer_details,omitempty"`
	Callbacks          *Callbacks         `json:"callbacks,omitempty"`
}

type SnapResponse struct {
	Token         string   `json:"token"`
	RedirectURL   string   `json:"redirect_url"`
	ErrorMessages []string `json:"error_messages,omitempty"`
}

// TransactionStatus is returned by the status API and posted by HTTP notifications
type TransactionStatus struct {
	StatusCode        string `json:"status_code"`
	StatusMessage     string `json:"status_message,omitempty"`
	TransactionID     string `json:"transaction_id"`
	OrderID           string `json:"order_id"`
	GrossAmount       string `json:"gross_amount"`
	PaymentType       string `json:"payment_type"`
	TransactionStatus string `json:"transaction_status"`
	FraudStatus       string `json:"fraud_status,omitempty"`
	SignatureKey      string `json:"signature_key,omitempty"`
	TransactionTime   string `json:"transaction_time,omitempty"`
}

// Client talks to the Snap and Core APIs
type Client struct {
	cfg  MidtransConfig
	http *http.Client
}

func NewClient(cfg MidtransConfig) *Client {
	return &Client{
		cfg:  cfg,
		http: &http.Client{Timeout: 15 * time.Second},
	}
}

func (c *Client) Config() MidtransConfig {
	return c.cfg
}

// CreateTransaction requests a Snap token for a transaction
func (c *Client) CreateTransaction(ctx context.Context, req SnapRequest) (*SnapResponse, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, errors.Wrap(err, "marshal snap request")
	}

	resp, err := c.do(ctx, http.MethodPost, c.cfg.snapURL()+"/snap/v1/transactions", body)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	raw, _ := io.ReadAll(resp.Body)
	var snap SnapResponse
	if err := json.Unmarshal(raw, &snap); err != nil {
		return nil, errors.Wrapf(err, "parse snap response (%d)", resp.StatusCode)
	}
	if resp.StatusCode != http.StatusCreated && resp.StatusCode != http.StatusOK {
		return nil, errors.Errorf("midtrans snap error (%d): %s", resp.StatusCode, strings.Join(snap.ErrorMessages, "; "))
	}
	if snap.Token == "" {
		return nil, errors.New("midtrans returned an empty token")
	}
	return &snap, nil
}

// Status fetches the current state of a transaction by gateway order id
func (c *Client) Status(ctx context.Context, gatewayOrderID string) (*TransactionStatus, error) {
	resp, err := c.do(ctx, http.MethodGet, fmt.Sprintf("%s/v2/%s/status", c.cfg.apiURL(), gatewayOrderID), nil)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var status TransactionStatus
	if err := json.NewDecoder(resp.Body).Decode(&status); err != nil {
		return nil, errors.Wrap(err, "parse status response")
	}
	if resp.StatusCode != http.StatusOK {
		return nil, errors.Errorf("midtrans status error (%d): %s", resp.StatusCode, status.StatusMessage)
	}
	return &status, nil
}

// VerifySignature checks a notification's signature_key:
// sha512(order_id + status_code + gross_amount + server_key)
func (c *Client) VerifySignature(n TransactionStatus) bool {
	return n.SignatureKey != "" && n.SignatureKey == Signature(n.OrderID, n.StatusCode, n.GrossAmount, c.cfg.ServerKey)
}

func Signature(orderID, statusCode, grossAmount, serverKey string) string {
	sum := sha512.Sum512([]byte(orderID + statusCode + grossAmount + serverKey))
	return hex.EncodeToString(sum[:])
}

func (c *Client) do(ctx context.Context, method, url string, body []byte) (*http.Response, error) {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return nil, errors.Wrap(err, "build midtrans request")
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Content-Type", "application/json")
	req.SetBasicAuth(c.cfg.ServerKey, "")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, errors.Wrap(err, "reach midtrans")
	}
	return resp, nil
}
