package payment

import (
	"context"
	"time"

	"fashion-store/models"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

// MaxItemNameLength is the longest item name Midtrans accepts
const MaxItemNameLength = 50

var ErrAmountMismatch = errors.New("amount does not match the sum of the line items")

// LineItem is one entry sent to the gateway
type LineItem struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Price    int64  `json:"price"`
	Quantity int    `json:"quantity"`
}

// TokenRequest is what the storefront sends to get a payment token
type TokenRequest struct {
	OrderID  string              `json:"order_id"`
	Amount   int64               `json:"amount"`
	Items    []LineItem          `json:"items"`
	Shipping models.ShippingInfo `json:"shipping"`
	Email    string              `json:"email,omitempty"`
	Retry    bool                `json:"retry,omitempty"`
}

// Token is an issued Snap token
type Token struct {
	OrderID        string `json:"order_id"`
	GatewayOrderID string `json:"gateway_order_id"`
	Token          string `json:"token"`
	RedirectURL    string `json:"redirect_url"`
}

// TokenIssuer hands out payment tokens
type TokenIssuer interface {
	IssueToken(ctx context.Context, req TokenRequest) (*Token, error)
}

// TokenRecorder stores an issued token on its order
type TokenRecorder interface {
	SetPaymentToken(ctx context.Context, orderID, token, redirectURL string) error
}

// TruncateName shortens a name to the gateway limit without splitting a rune
func TruncateName(name string) string {
	runes := []rune(name)
	if len(runes) <= MaxItemNameLength {
		return name
	}
	return string(runes[:MaxItemNameLength])
}

// TokenRequestForOrder builds a token request from a stored order.
// Shipping is sent as its own line so the items add up to the total.
func TokenRequestForOrder(order models.Order, email string, retry bool) TokenRequest {
	req := TokenRequest{
		OrderID:  order.ID.Hex(),
		Amount:   order.Total,
		Shipping: order.Shipping,
		Email:    email,
		Retry:    retry,
	}
	for _, item := range order.Items {
		name := item.Name
		if item.Size != "" || item.Color != "" {
			name = name + " (" + joinOptions(item.Color, item.Size) + ")"
		}
		req.Items = append(req.Items, LineItem{
			ID:       item.ProductID.Hex(),
			Name:     name,
			Price:    item.Price,
			Quantity: item.Quantity,
		})
	}
	if order.ShippingCost > 0 {
		req.Items = append(req.Items, LineItem{
			ID:       "SHIPPING",
			Name:     "Shipping " + string(order.ShippingMethod),
			Price:    order.ShippingCost,
			Quantity: 1,
		})
	}
	return req
}

func joinOptions(color, size string) string {
	switch {
	case color == "":
		return size
	case size == "":
		return color
	}
	return color + ", " + size
}

// Gateway issues Snap tokens through the Midtrans client
type Gateway struct {
	client   *Client
	recorder TokenRecorder
	finish   string
	now      func() time.Time
	log      logrus.FieldLogger
}

// NewGateway builds a Gateway. finishURL is where Snap sends the browser
// after a redirect-mode payment; recorder may be nil.
func NewGateway(client *Client, recorder TokenRecorder, finishURL string, log logrus.FieldLogger) *Gateway {
	return &Gateway{
		client:   client,
		recorder: recorder,
		finish:   finishURL,
		now:      time.Now,
		log:      log,
	}
}

func (g *Gateway) IssueToken(ctx context.Context, req TokenRequest) (*Token, error) {
	if req.OrderID == "" {
		return nil, errors.New("order id is required")
	}

	var sum int64
	items := make([]ItemDetail, 0, len(req.Items))
	for _, item := range req.Items {
		sum += item.Price * int64(item.Quantity)
		items = append(items, ItemDetail{
			ID:       item.ID,
			Price:    item.Price,
			Quantity: item.Quantity,
			Name:     TruncateName(item.Name),
		})
	}
	if sum != req.Amount {
		return nil, errors.Wrapf(ErrAmountMismatch, "items %d, amount %d", sum, req.Amount)
	}

	gatewayOrderID := req.OrderID
	if req.Retry {
		gatewayOrderID = RetryOrderID(req.OrderID, g.now())
	}

	snapReq := SnapRequest{
		TransactionDetails: TransactionDetails{OrderID: gatewayOrderID, GrossAmount: req.Amount},
		ItemDetails:        items,
		CustomerDetails: &CustomerDetails{
			FirstName: req.Shipping.Name,
			Email:     req.Email,
			Phone:     req.Shipping.Phone,
			ShippingAddress: &CustomerAddress{
				FirstName:   req.Shipping.Name,
				Phone:       req.Shipping.Phone,
				Address:     req.Shipping.Address,
				City:        req.Shipping.City,
				PostalCode:  req.Shipping.PostalCode,
				CountryCode: "IDN",
			},
		},
	}
	if g.finish != "" {
		snapReq.Callbacks = &Callbacks{Finish: g.finish}
	}

	resp, err := g.client.CreateTransaction(ctx, snapReq)
	if err != nil {
		return nil, err
	}

	token := &Token{
		OrderID:        req.OrderID,
		GatewayOrderID: gatewayOrderID,
		Token:          resp.Token,
		RedirectURL:    resp.RedirectURL,
	}

	if g.recorder != nil {
		if err := g.recorder.SetPaymentToken(ctx, req.OrderID, resp.Token, resp.RedirectURL); err != nil {
			g.log.WithFields(logrus.Fields{"order_id": req.OrderID, "err": err}).Warn("could not store payment token on order")
		}
	}

	g.log.WithFields(logrus.Fields{"order_id": req.OrderID, "gateway_order_id": gatewayOrderID, "retry": req.Retry}).Info("payment token issued")
	return token, nil
}
