// Package checkout runs the SHIPPING -> PAYMENT -> REVIEW wizard for a
// signed-in user and hands Midtrans orders to the payment adapter.
package checkout

import (
	"context"
	"encoding/json"
	"net/url"
	"time"

	"fashion-store/cart"
	"fashion-store/models"
	"fashion-store/orders"
	"fashion-store/payment"

	"github.com/pkg/errors"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

var (
	ErrAddressRequired   = errors.New("select a saved address or enter a new one")
	ErrIncompleteAddress = errors.New("shipping address is incomplete")
	ErrCODUnavailable    = errors.New("cash on delivery is not available for this total")
	ErrMethodUnavailable = errors.New("payment method is not available")
	ErrSubmitInProgress  = errors.New("order is already being submitted")
	ErrWrongStep         = errors.New("not possible at this step")
	ErrEmptyCart         = errors.New("cart is empty")
	ErrNoOrder           = errors.New("no order is waiting for payment")
	ErrPaymentFailed     = errors.New("payment failed")
)

const (
	InterruptedMessage   = "Payment process was interrupted. Please try again."
	SuccessRedirectDelay = 2 * time.Second

	LoginPath  = "/login?callbackUrl=/checkout"
	CartPath   = "/cart"
	OrdersPath = "/orders"
)

type Step int

const (
	StepShipping Step = iota + 1
	StepPayment
	StepReview
)

func (s Step) String() string {
	switch s {
	case StepShipping:
		return "shipping"
	case StepPayment:
		return "payment"
	case StepReview:
		return "review"
	}
	return "unknown"
}

func (s Step) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// Navigation tells the client where to go next, optionally after a delay
type Navigation struct {
	Target string
	Delay  time.Duration
}

func (n Navigation) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Target  string `json:"target"`
		DelayMS int64  `json:"delay_ms"`
	}{n.Target, n.Delay.Milliseconds()})
}

// SuccessPath is the confirmation page for an order
func SuccessPath(orderID string, method models.PaymentMethod) string {
	q := url.Values{}
	q.Set("orderId", orderID)
	q.Set("paymentMethod", string(method))
	return "/checkout/success?" + q.Encode()
}

type Identity struct {
	UserID primitive.ObjectID
	Email  string
}

// OrderAPI is the part of the order service the wizard uses
type OrderAPI interface {
	Create(ctx context.Context, userID primitive.ObjectID, req orders.CreateOrderRequest) (*models.Order, error)
	GetForUser(ctx context.Context, userID primitive.ObjectID, id string) (*models.Order, error)
	AttachPaymentID(ctx context.Context, orderID, paymentID string) error
	MarkStatus(ctx context.Context, orderID string, status models.OrderStatus) error
}

type AddressBook interface {
	FindByID(ctx context.Context, userID, id primitive.ObjectID) (*models.Address, error)
	Default(ctx context.Context, userID primitive.ObjectID) (*models.Address, error)
	Create(ctx context.Context, address *models.Address) error
}

type Carts interface {
	Cart(ctx context.Context, owner string) (*cart.Store, error)
	Markers(owner string) *cart.Markers
}

// StatusChecker asks the gateway how a transaction stands
type StatusChecker interface {
	Status(ctx context.Context, gatewayOrderID string) (*payment.TransactionStatus, error)
}

// PaymentDeps are shared by the adapters of every session. Without a Status
// checker the confirmation page never treats a redirect as paid.
type PaymentDeps struct {
	Loader     payment.ScriptLoader
	Issuer     payment.TokenIssuer
	Popups     *payment.Popups
	Reconciler *payment.Reconciler
	Status     StatusChecker
}

type Config struct {
	CODThreshold int64
	Country      string
	SessionIdle  time.Duration
}

// ShippingOption is a selectable shipping method with its cost
type ShippingOption struct {
	Method models.ShippingMethod `json:"method"`
	Cost   int64                 `json:"cost"`
}

// View is the wizard state rendered to the client
type View struct {
	Step            Step                  `json:"step"`
	Items           []models.CartItem     `json:"items"`
	Shipping        models.ShippingInfo   `json:"shipping"`
	AddressID       string                `json:"address_id,omitempty"`
	ShippingMethod  models.ShippingMethod `json:"shipping_method"`
	ShippingOptions []ShippingOption      `json:"shipping_options"`
	PaymentMethod   models.PaymentMethod  `json:"payment_method"`
	CODAvailable    bool                  `json:"cod_available"`
	Subtotal        int64                 `json:"subtotal"`
	ShippingCost    int64                 `json:"shipping_cost"`
	Total           int64                 `json:"total"`
	Submitting      bool                  `json:"submitting"`
	Submitted       bool                  `json:"submitted"`
	OrderID         string                `json:"order_id,omitempty"`
	PaymentState    string                `json:"payment_state"`
	PaymentToken    string                `json:"payment_token,omitempty"`
	Error           string                `json:"error,omitempty"`
	Interrupted     bool                  `json:"interrupted"`
	Message         string                `json:"message,omitempty"`
	CanRetry        bool                  `json:"can_retry"`
	Navigation      *Navigation           `json:"navigation,omitempty"`
}
