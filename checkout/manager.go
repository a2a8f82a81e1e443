package checkout

import (
	"context"
	"sync"
	"time"

	"fashion-store/models"
	"fashion-store/payment"

	"github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// DefaultSessionIdle is how long an untouched session is kept
const DefaultSessionIdle = time.Hour

// Manager keeps one checkout session per user. A session is dropped once
// its order is placed or after it has been idle for cfg.SessionIdle.
type Manager struct {
	orders    OrderAPI
	addresses AddressBook
	carts     Carts
	payments  PaymentDeps
	cfg       Config
	log       logrus.FieldLogger
	now       func() time.Time

	mu       sync.Mutex
	sessions map[primitive.ObjectID]*Session
}

func NewManager(orders OrderAPI, addresses AddressBook, carts Carts, payments PaymentDeps, cfg Config, log logrus.FieldLogger) *Manager {
	if cfg.SessionIdle <= 0 {
		cfg.SessionIdle = DefaultSessionIdle
	}
	return &Manager{
		orders:    orders,
		addresses: addresses,
		carts:     carts,
		payments:  payments,
		cfg:       cfg,
		log:       log,
		now:       time.Now,
		sessions:  make(map[primitive.ObjectID]*Session),
	}
}

// Enter opens or resumes the checkout. A nil identity is sent to login and
// an empty cart back to the cart page, unless an order was just placed.
func (m *Manager) Enter(ctx context.Context, ident *Identity) (*Session, *Navigation, error) {
	if ident == nil {
		return nil, &Navigation{Target: LoginPath}, nil
	}

	// windows nobody reported on are closed before any session resumes
	m.payments.Popups.ExpireStale(ctx)

	now := m.now()
	m.mu.Lock()
	m.pruneIdle(now)
	s, ok := m.sessions[ident.UserID]
	if !ok {
		s = m.newSession(*ident)
		m.sessions[ident.UserID] = s
	}
	s.lastSeen = now
	m.mu.Unlock()

	nav, err := s.enter(ctx)
	return s, nav, err
}

// Lookup returns the running session of a user. A session idle for longer
// than cfg.SessionIdle is dropped instead.
func (m *Manager) Lookup(userID primitive.ObjectID) (*Session, bool) {
	now := m.now()
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[userID]
	if !ok {
		return nil, false
	}
	if m.idle(s, now) {
		delete(m.sessions, userID)
		s.log.Debug("checkout session expired")
		return nil, false
	}
	s.lastSeen = now
	return s, true
}

// pruneIdle drops idle sessions. Callers hold mu.
func (m *Manager) pruneIdle(now time.Time) {
	for id, s := range m.sessions {
		if m.idle(s, now) {
			delete(m.sessions, id)
		}
	}
}

func (m *Manager) idle(s *Session, now time.Time) bool {
	return now.Sub(s.lastSeen) >= m.cfg.SessionIdle
}

func (m *Manager) discard(s *Session) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.sessions[s.ident.UserID] == s {
		delete(m.sessions, s.ident.UserID)
	}
}

func (m *Manager) newSession(ident Identity) *Session {
	log := m.log.WithField("user_id", ident.UserID.Hex())
	return &Session{
		m:              m,
		ident:          ident,
		owner:          ident.UserID.Hex(),
		log:            log,
		adapter:        payment.NewAdapter(m.payments.Loader, m.payments.Issuer, m.payments.Popups, m.payments.Reconciler, log),
		step:           StepShipping,
		shippingMethod: models.ShippingRegular,
		paymentMethod:  models.PaymentMidtrans,
		items:          []models.CartItem{},
	}
}

// SuccessQuery carries the parameters of the confirmation page, both ours
// and the ones Midtrans appends to its finish redirect.
type SuccessQuery struct {
	OrderID           string
	PaymentMethod     models.PaymentMethod
	GatewayOrderID    string
	TransactionStatus string
}

type SuccessView struct {
	Order         *models.Order        `json:"order"`
	PaymentMethod models.PaymentMethod `json:"payment_method"`
	Paid          bool                 `json:"paid"`
}

// Finish serves the confirmation page. Arriving from the Midtrans redirect
// with a settled transaction completes the checkout the same way the
// payment window callback does, once the gateway confirms the settlement.
func (m *Manager) Finish(ctx context.Context, ident Identity, q SuccessQuery) (*SuccessView, error) {
	orderID := q.OrderID
	if orderID == "" {
		orderID = payment.BaseOrderID(q.GatewayOrderID)
	}
	order, err := m.orders.GetForUser(ctx, ident.UserID, orderID)
	if err != nil {
		return nil, err
	}
	method := q.PaymentMethod
	if method == "" {
		method = order.PaymentMethod
	}
	view := &SuccessView{Order: order, PaymentMethod: method}

	if payment.Completed(q.TransactionStatus) && m.settled(ctx, orderID, q.GatewayOrderID) {
		view.Paid = true
		if order.Status == models.StatusAwaitingPayment || order.Status == models.StatusPending {
			if m.payments.Reconciler != nil {
				m.payments.Reconciler.MarkProcessing(ctx, orderID)
			}
			if refreshed, err := m.orders.GetForUser(ctx, ident.UserID, orderID); err == nil {
				view.Order = refreshed
			}
		}
		owner := ident.UserID.Hex()
		if c, err := m.carts.Cart(ctx, owner); err == nil && !c.Empty() {
			if err := c.ClearCart(ctx); err != nil {
				m.log.WithFields(logrus.Fields{"user_id": owner, "err": err}).Warn("could not clear cart after payment")
			}
		}
		if err := m.carts.Markers(owner).MarkCompleted(ctx, orderID); err != nil {
			m.log.WithFields(logrus.Fields{"user_id": owner, "err": err}).Warn("could not store completed payment marker")
		}
		if s, ok := m.Lookup(ident.UserID); ok {
			m.discard(s)
		}
	}
	return view, nil
}

// settled asks the gateway whether the redirect's transaction really went
// through; the query string alone is client controlled.
func (m *Manager) settled(ctx context.Context, orderID, gatewayOrderID string) bool {
	if m.payments.Status == nil {
		return false
	}
	if gatewayOrderID == "" {
		gatewayOrderID = orderID
	}
	log := m.log.WithFields(logrus.Fields{"order_id": orderID, "gateway_order_id": gatewayOrderID})
	if payment.BaseOrderID(gatewayOrderID) != orderID {
		log.Warn("redirect names a transaction of another order")
		return false
	}
	st, err := m.payments.Status.Status(ctx, gatewayOrderID)
	if err != nil {
		log.WithField("err", err).Warn("could not confirm payment with the gateway")
		return false
	}
	status, ok := payment.StatusFromTransaction(st.TransactionStatus, st.FraudStatus)
	return ok && status == models.StatusPaid
}
