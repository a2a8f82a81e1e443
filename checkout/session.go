package checkout

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"fashion-store/models"
	"fashion-store/orders"
	"fashion-store/payment"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Session is one user's pass through the wizard. Methods are safe for
// concurrent use; the payment adapter is never called with mu held because
// its hooks take mu themselves.
type Session struct {
	m       *Manager
	ident   Identity
	owner   string
	log     logrus.FieldLogger
	adapter *payment.Adapter

	lastSeen time.Time // guarded by Manager.mu

	mu             sync.Mutex
	step           Step
	items          []models.CartItem
	shipping       models.ShippingInfo
	addressID      *primitive.ObjectID
	addressChosen  bool
	shippingMethod models.ShippingMethod
	paymentMethod  models.PaymentMethod
	subtotal       int64
	shippingCost   int64
	total          int64
	submitting     bool
	submitted      bool
	order          *models.Order
	lastErr        error
	interrupted    bool
	nav            *Navigation
}

func (s *Session) enter(ctx context.Context) (*Navigation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.refresh(ctx); err != nil {
		return nil, err
	}
	if len(s.items) == 0 && s.order == nil {
		if s.submitted {
			s.submitted = false
			return nil, nil
		}
		done, err := s.m.carts.Markers(s.owner).ConsumeCompleted(ctx)
		if err != nil {
			s.log.WithField("err", err).Warn("could not read completed payment marker")
		}
		if done != "" {
			return nil, nil
		}
		return &Navigation{Target: CartPath}, nil
	}

	if !s.addressChosen && s.m.addresses != nil {
		if def, err := s.m.addresses.Default(ctx, s.ident.UserID); err == nil {
			s.useAddress(def)
		}
	}
	return nil, nil
}

// refresh reloads the cart and recomputes totals. A COD selection that no
// longer fits under the threshold is switched to Midtrans. Callers hold mu.
func (s *Session) refresh(ctx context.Context) error {
	c, err := s.m.carts.Cart(ctx, s.owner)
	if err != nil {
		return err
	}
	s.items = c.Items()
	s.subtotal = c.TotalPrice()
	s.shippingCost = s.shippingMethod.Cost()
	s.total = s.subtotal + s.shippingCost
	if s.paymentMethod == models.PaymentCOD && !s.codAvailable() {
		s.log.WithField("total", s.total).Debug("switching payment to midtrans above the COD limit")
		s.paymentMethod = models.PaymentMidtrans
	}
	return nil
}

func (s *Session) codAvailable() bool {
	return s.total <= s.m.cfg.CODThreshold
}

func (s *Session) useAddress(a *models.Address) {
	id := a.ID
	s.addressID = &id
	s.shipping = a.Shipping()
	s.shipping.Country = s.m.cfg.Country
	s.addressChosen = true
}

// edit runs fn under mu unless an order is being submitted
func (s *Session) edit(ctx context.Context, fn func() error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.submitting {
		return ErrSubmitInProgress
	}
	s.nav = nil
	if err := s.refresh(ctx); err != nil {
		return err
	}
	if err := fn(); err != nil {
		return err
	}
	return s.refresh(ctx)
}

func (s *Session) SelectAddress(ctx context.Context, addressID string) error {
	id, err := primitive.ObjectIDFromHex(addressID)
	if err != nil {
		return errors.Wrapf(orders.ErrNotFound, "address %q", addressID)
	}
	address, err := s.m.addresses.FindByID(ctx, s.ident.UserID, id)
	if err != nil {
		return err
	}
	return s.edit(ctx, func() error {
		s.useAddress(address)
		return nil
	})
}

// UseNewAddress ships to an address typed at checkout, optionally saving it
// to the address book.
func (s *Session) UseNewAddress(ctx context.Context, info models.ShippingInfo, save bool) error {
	info.Country = s.m.cfg.Country
	if !info.Complete() {
		return ErrIncompleteAddress
	}
	var saved *models.Address
	if save {
		saved = &models.Address{
			UserID:     s.ident.UserID,
			Name:       info.Name,
			Phone:      info.Phone,
			Address:    info.Address,
			City:       info.City,
			Province:   info.Province,
			PostalCode: info.PostalCode,
			Country:    info.Country,
		}
		if err := s.m.addresses.Create(ctx, saved); err != nil {
			return err
		}
	}
	return s.edit(ctx, func() error {
		if saved != nil {
			s.useAddress(saved)
			return nil
		}
		s.addressID = nil
		s.shipping = info
		s.addressChosen = true
		return nil
	})
}

func (s *Session) SetShippingMethod(ctx context.Context, method models.ShippingMethod) error {
	if !method.Valid() {
		return errors.Wrapf(orders.ErrInvalidShippingMethod, "%q", method)
	}
	return s.edit(ctx, func() error {
		s.shippingMethod = method
		return nil
	})
}

func (s *Session) SetPaymentMethod(ctx context.Context, method models.PaymentMethod) error {
	return s.edit(ctx, func() error {
		switch method {
		case models.PaymentMidtrans:
		case models.PaymentCOD:
			if !s.codAvailable() {
				return ErrCODUnavailable
			}
		default:
			return errors.Wrapf(ErrMethodUnavailable, "%q", method)
		}
		s.paymentMethod = method
		return nil
	})
}

// Next advances one step. The review step needs a complete address.
func (s *Session) Next(ctx context.Context) error {
	return s.edit(ctx, func() error {
		switch s.step {
		case StepShipping:
			if !s.addressChosen || !s.shipping.Complete() {
				return ErrAddressRequired
			}
			s.step = StepPayment
		case StepPayment:
			if !s.addressChosen {
				return ErrAddressRequired
			}
			s.step = StepReview
		default:
			return ErrWrongStep
		}
		return nil
	})
}

func (s *Session) Back(ctx context.Context) error {
	return s.edit(ctx, func() error {
		if s.step > StepShipping {
			s.step--
		}
		return nil
	})
}

func (s *Session) Step() Step {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.step
}

// Submit places the order. COD orders complete at once; Midtrans orders
// open the payment window and complete through its hooks. After an
// interrupted payment the same cart reopens the window for the placed order,
// while a changed cart cancels that order and places a new one.
func (s *Session) Submit(ctx context.Context) error {
	s.expireWindow(ctx)

	s.mu.Lock()
	if s.step != StepReview {
		s.mu.Unlock()
		return ErrWrongStep
	}
	if s.submitting || (s.order != nil && s.adapter.Active()) {
		s.mu.Unlock()
		return ErrSubmitInProgress
	}
	if err := s.refresh(ctx); err != nil {
		s.mu.Unlock()
		return err
	}
	if len(s.items) == 0 {
		s.mu.Unlock()
		return ErrEmptyCart
	}
	if s.order != nil && s.orderMatches(*s.order) {
		s.mu.Unlock()
		return s.RetryPayment(ctx)
	}
	abandoned := s.order
	s.order = nil
	req := s.orderRequest()
	s.submitting = true
	s.lastErr = nil
	s.interrupted = false
	s.nav = nil
	s.mu.Unlock()

	if abandoned != nil {
		s.abandon(ctx, abandoned.ID.Hex())
	}

	order, err := s.m.orders.Create(ctx, s.ident.UserID, req)
	if err != nil {
		s.mu.Lock()
		s.submitting = false
		s.lastErr = err
		s.mu.Unlock()
		return err
	}
	log := s.log.WithFields(logrus.Fields{"order_id": order.ID.Hex(), "payment_method": order.PaymentMethod})
	log.Info("checkout order placed")

	if order.PaymentMethod == models.PaymentCOD {
		paymentID := s.codPaymentID()
		if err := s.m.orders.AttachPaymentID(ctx, order.ID.Hex(), paymentID); err != nil {
			log.WithField("err", err).Warn("could not attach COD payment id")
		}
		s.complete(ctx, order.ID.Hex(), models.PaymentCOD, SuccessRedirectDelay)
		return nil
	}

	s.mu.Lock()
	s.order = order
	s.mu.Unlock()
	if err := s.m.carts.Markers(s.owner).MarkInFlight(ctx, order.ID.Hex()); err != nil {
		log.WithField("err", err).Warn("could not store in-flight payment marker")
	}

	err = s.startPayment(ctx, false)
	s.mu.Lock()
	s.submitting = false
	s.mu.Unlock()
	return err
}

// orderMatches reports whether the placed order still describes the cart
// and the wizard choices. Callers hold mu.
func (s *Session) orderMatches(order models.Order) bool {
	if order.PaymentMethod != s.paymentMethod || order.ShippingMethod != s.shippingMethod ||
		order.Shipping != s.shipping || order.Total != s.total {
		return false
	}
	type line struct{ product, color, size string }
	want := make(map[line]int)
	for _, item := range s.items {
		want[line{item.ProductID, item.Color, item.Size}] += item.Quantity
	}
	for _, item := range order.Items {
		want[line{item.ProductID.Hex(), item.Color, item.Size}] -= item.Quantity
	}
	for _, n := range want {
		if n != 0 {
			return false
		}
	}
	return true
}

// abandon cancels an unpaid order the customer replaced, giving its stock back
func (s *Session) abandon(ctx context.Context, orderID string) {
	log := s.log.WithField("order_id", orderID)
	if err := s.m.orders.MarkStatus(ctx, orderID, models.StatusCancelled); err != nil {
		log.WithField("err", err).Warn("could not cancel replaced order")
		return
	}
	log.Info("replaced unpaid order cancelled")
}

// expireWindow closes this session's payment window if the browser never
// reported on it
func (s *Session) expireWindow(ctx context.Context) {
	s.mu.Lock()
	order := s.order
	s.mu.Unlock()
	if order != nil {
		s.m.payments.Popups.Expire(ctx, order.ID.Hex())
	}
}

// orderRequest builds the order from the cart. Callers hold mu.
func (s *Session) orderRequest() orders.CreateOrderRequest {
	req := orders.CreateOrderRequest{
		ShippingMethod: s.shippingMethod,
		PaymentMethod:  s.paymentMethod,
		Shipping:       s.shipping,
	}
	if s.addressID != nil {
		req.AddressID = s.addressID.Hex()
	}
	for _, item := range s.items {
		req.Items = append(req.Items, orders.ItemRequest{
			ProductID: item.ProductID,
			Quantity:  item.Quantity,
			Color:     item.Color,
			Size:      item.Size,
		})
	}
	return req
}

// codPaymentID is a local reference for cash orders: COD-<unix ms>-<6 hex>
func (s *Session) codPaymentID() string {
	suffix := strings.ReplaceAll(uuid.NewString(), "-", "")[:6]
	return fmt.Sprintf("COD-%d-%s", s.m.now().UnixMilli(), suffix)
}

// RetryPayment opens a fresh payment window for the order. It does nothing
// while a window is already open.
func (s *Session) RetryPayment(ctx context.Context) error {
	s.expireWindow(ctx)
	if s.adapter.Active() {
		return nil
	}
	s.mu.Lock()
	if s.order == nil {
		s.mu.Unlock()
		return ErrNoOrder
	}
	s.interrupted = false
	s.lastErr = nil
	s.nav = nil
	s.mu.Unlock()

	err := s.startPayment(ctx, true)
	if errors.Is(err, payment.ErrPopupActive) {
		return nil
	}
	return err
}

func (s *Session) startPayment(ctx context.Context, retry bool) error {
	if err := s.adapter.Load(ctx); err != nil {
		s.fail(err)
		return err
	}
	s.mu.Lock()
	order := *s.order
	s.mu.Unlock()

	req := payment.TokenRequestForOrder(order, s.ident.Email, retry)
	if err := s.adapter.ProcessPayment(ctx, req, s.hooks()); err != nil {
		if !errors.Is(err, payment.ErrPopupActive) {
			s.fail(err)
		}
		return err
	}
	return nil
}

func (s *Session) fail(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastErr = err
}

func (s *Session) hooks() payment.Hooks {
	return payment.Hooks{
		OnSuccess: func(ctx context.Context, r payment.Result) {
			s.complete(ctx, r.OrderID, models.PaymentMidtrans, 0)
		},
		OnPending: func(ctx context.Context, r payment.Result) {
			s.mu.Lock()
			s.nav = &Navigation{Target: OrdersPath}
			s.mu.Unlock()
			s.m.discard(s)
		},
		OnError: func(ctx context.Context, r payment.Result) {
			s.mu.Lock()
			defer s.mu.Unlock()
			s.lastErr = ErrPaymentFailed
			if r.Message != "" {
				s.lastErr = errors.Wrap(ErrPaymentFailed, r.Message)
			}
		},
		OnClose: func(ctx context.Context, r payment.Result) {
			s.mu.Lock()
			defer s.mu.Unlock()
			s.interrupted = true
			s.lastErr = nil
		},
	}
}

// complete clears the cart, leaves the one-shot submitted marker and points
// the client at the confirmation page. Cart and marker trouble is logged only.
func (s *Session) complete(ctx context.Context, orderID string, method models.PaymentMethod, delay time.Duration) {
	log := s.log.WithField("order_id", orderID)
	if c, err := s.m.carts.Cart(ctx, s.owner); err != nil {
		log.WithField("err", err).Warn("could not open cart after checkout")
	} else if err := c.ClearCart(ctx); err != nil {
		log.WithField("err", err).Warn("could not clear cart after checkout")
	}
	if err := s.m.carts.Markers(s.owner).MarkCompleted(ctx, orderID); err != nil {
		log.WithField("err", err).Warn("could not store completed payment marker")
	}

	s.mu.Lock()
	s.items = []models.CartItem{}
	s.subtotal, s.total = 0, s.shippingCost
	s.submitting = false
	s.submitted = true
	s.lastErr = nil
	s.interrupted = false
	s.nav = &Navigation{Target: SuccessPath(orderID, method), Delay: delay}
	s.mu.Unlock()

	s.m.discard(s)
}

// Report delivers what the browser's payment window said. The result must
// belong to this session's order.
func (s *Session) Report(ctx context.Context, r payment.Result) error {
	s.mu.Lock()
	order := s.order
	s.mu.Unlock()
	if order == nil {
		return ErrNoOrder
	}
	orderID := order.ID.Hex()
	if r.OrderID != "" && payment.BaseOrderID(r.OrderID) != orderID {
		return errors.Wrapf(ErrNoOrder, "result for %s", r.OrderID)
	}
	return s.m.payments.Popups.Resolve(ctx, orderID, r)
}

// Adapter exposes the payment adapter state
func (s *Session) Adapter() *payment.Adapter {
	return s.adapter
}

func (s *Session) View() View {
	s.mu.Lock()
	defer s.mu.Unlock()

	v := View{
		Step:           s.step,
		Items:          append([]models.CartItem(nil), s.items...),
		Shipping:       s.shipping,
		ShippingMethod: s.shippingMethod,
		PaymentMethod:  s.paymentMethod,
		CODAvailable:   s.codAvailable(),
		Subtotal:       s.subtotal,
		ShippingCost:   s.shippingCost,
		Total:          s.total,
		Submitting:     s.submitting,
		Submitted:      s.submitted,
		PaymentState:   s.adapter.State().String(),
		Interrupted:    s.interrupted,
		Navigation:     s.nav,
	}
	for _, m := range models.ShippingMethods() {
		v.ShippingOptions = append(v.ShippingOptions, ShippingOption{Method: m, Cost: m.Cost()})
	}
	if s.addressID != nil {
		v.AddressID = s.addressID.Hex()
	}
	if s.order != nil {
		v.OrderID = s.order.ID.Hex()
		if tok, ok := s.adapter.Current(); ok {
			v.PaymentToken = tok.Token
		}
	}
	if s.lastErr != nil {
		v.Error = s.lastErr.Error()
	}
	if s.interrupted {
		v.Message = InterruptedMessage
	}
	v.CanRetry = s.order != nil && !s.adapter.Active() && !s.submitted &&
		!errors.Is(s.lastErr, payment.ErrScriptUnavailable)
	return v
}
