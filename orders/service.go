// Package orders owns the order lifecycle: creation against the catalog,
// status changes, payment bookkeeping and the gateway notification path.
package orders

import (
	"context"
	"strconv"
	"sync"

	"fashion-store/cart"
	"fashion-store/models"
	"fashion-store/payment"
	"fashion-store/repository"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

var (
	ErrNotFound              = repository.ErrNotFound
	ErrEmptyOrder            = errors.New("order has no items")
	ErrInvalidQuantity       = errors.New("quantity must be at least 1")
	ErrIncompleteShipping    = errors.New("shipping address is incomplete")
	ErrInvalidShippingMethod = errors.New("unknown shipping method")
	ErrUnsupportedPayment    = errors.New("payment method is not available")
	ErrCODUnavailable        = errors.New("cash on delivery is not available for this total")
	ErrInvalidStatus         = errors.New("unknown order status")
	ErrInvalidTransition     = errors.New("order status change not allowed")
)

// Notifier sends customer emails about orders
type Notifier interface {
	SendOrderConfirmationEmail(toEmail string, order models.Order) error
	SendOrderStatusEmail(toEmail, name string, order models.Order) error
}

type Options struct {
	// CODThreshold is the highest total still payable on delivery
	CODThreshold int64
	// Country is written on every shipping address
	Country string
}

type ItemRequest struct {
	ProductID string `json:"product_id"`
	Quantity  int    `json:"quantity"`
	Color     string `json:"color,omitempty"`
	Size      string `json:"size,omitempty"`
}

type CreateOrderRequest struct {
	Items          []ItemRequest         `json:"items"`
	ShippingMethod models.ShippingMethod `json:"shipping_method"`
	PaymentMethod  models.PaymentMethod  `json:"payment_method"`
	AddressID      string                `json:"address_id,omitempty"`
	Shipping       models.ShippingInfo   `json:"shipping"`
}

type Service struct {
	orders    repository.Orders
	products  repository.Products
	users     repository.Users
	addresses repository.Addresses
	payments  repository.Payments
	notifier  Notifier
	events    Publisher
	opts      Options
	log       logrus.FieldLogger

	wg sync.WaitGroup
}

func NewService(store *repository.Store, notifier Notifier, events Publisher, opts Options, log logrus.FieldLogger) *Service {
	return &Service{
		orders:    store.Orders,
		products:  store.Products,
		users:     store.Users,
		addresses: store.Addresses,
		payments:  store.Payments,
		notifier:  notifier,
		events:    events,
		opts:      opts,
		log:       log,
	}
}

// Wait blocks until queued emails have been handed to the provider
func (s *Service) Wait() {
	s.wg.Wait()
}

func parseID(id, what string) (primitive.ObjectID, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return primitive.NilObjectID, errors.Wrapf(ErrNotFound, "%s %q", what, id)
	}
	return oid, nil
}

// Create places an order for userID. Prices come from the catalog, stock is
// taken up front and given back if the order cannot be stored.
func (s *Service) Create(ctx context.Context, userID primitive.ObjectID, req CreateOrderRequest) (*models.Order, error) {
	if len(req.Items) == 0 {
		return nil, ErrEmptyOrder
	}
	if req.ShippingMethod == "" {
		req.ShippingMethod = models.ShippingRegular
	}
	if !req.ShippingMethod.Valid() {
		return nil, errors.Wrapf(ErrInvalidShippingMethod, "%q", req.ShippingMethod)
	}
	if req.PaymentMethod != models.PaymentCOD && req.PaymentMethod != models.PaymentMidtrans {
		return nil, errors.Wrapf(ErrUnsupportedPayment, "%q", req.PaymentMethod)
	}

	order := models.Order{
		UserID:         userID,
		ShippingMethod: req.ShippingMethod,
		ShippingCost:   req.ShippingMethod.Cost(),
		PaymentMethod:  req.PaymentMethod,
		Shipping:       req.Shipping,
		Status:         models.StatusAwaitingPayment,
	}
	if req.PaymentMethod == models.PaymentCOD {
		order.Status = models.StatusPending
	}

	if req.AddressID != "" {
		addressID, err := parseID(req.AddressID, "address")
		if err != nil {
			return nil, err
		}
		address, err := s.addresses.FindByID(ctx, userID, addressID)
		if err != nil {
			return nil, err
		}
		order.AddressID = &address.ID
		order.Shipping = address.Shipping()
	}
	order.Shipping.Country = s.opts.Country
	if !order.Shipping.Complete() {
		return nil, ErrIncompleteShipping
	}

	for _, item := range req.Items {
		line, err := s.line(ctx, item)
		if err != nil {
			return nil, err
		}
		order.Items = append(order.Items, line)
		order.Subtotal += line.Price * int64(line.Quantity)
	}
	order.Total = order.Subtotal + order.ShippingCost

	if order.PaymentMethod == models.PaymentCOD && order.Total > s.opts.CODThreshold {
		return nil, ErrCODUnavailable
	}

	if err := s.takeStock(ctx, order.Items); err != nil {
		return nil, err
	}
	if err := s.orders.Create(ctx, &order); err != nil {
		s.restoreStock(ctx, order.Items)
		return nil, err
	}

	s.log.WithFields(logrus.Fields{
		"order_id":       order.ID.Hex(),
		"user_id":        userID.Hex(),
		"total":          order.Total,
		"payment_method": order.PaymentMethod,
	}).Info("order created")
	s.publish(EventCreated, order)
	s.notifyCreated(order)
	return &order, nil
}

func (s *Service) line(ctx context.Context, item ItemRequest) (models.OrderItem, error) {
	if item.Quantity < 1 {
		return models.OrderItem{}, ErrInvalidQuantity
	}
	productID, err := parseID(item.ProductID, "product")
	if err != nil {
		return models.OrderItem{}, err
	}
	product, err := s.products.FindByID(ctx, productID)
	if err != nil {
		return models.OrderItem{}, err
	}
	if err := cart.ValidateOptions(*product, item.Color, item.Size); err != nil {
		return models.OrderItem{}, errors.Wrapf(err, "%s", product.Name)
	}
	if product.Stock < item.Quantity {
		return models.OrderItem{}, errors.Wrapf(repository.ErrInsufficientStock, "%s", product.Name)
	}
	return models.OrderItem{
		ProductID: product.ID,
		Name:      product.Name,
		Quantity:  item.Quantity,
		Price:     product.Price,
		Color:     item.Color,
		Size:      item.Size,
	}, nil
}

func (s *Service) takeStock(ctx context.Context, items []models.OrderItem) error {
	for i, item := range items {
		if err := s.products.DecrementStock(ctx, item.ProductID, item.Quantity); err != nil {
			s.restoreStock(ctx, items[:i])
			return errors.Wrapf(err, "%s", item.Name)
		}
	}
	return nil
}

func (s *Service) restoreStock(ctx context.Context, items []models.OrderItem) {
	for _, item := range items {
		if err := s.products.RestoreStock(ctx, item.ProductID, item.Quantity); err != nil {
			s.log.WithFields(logrus.Fields{"product_id": item.ProductID.Hex(), "err": err}).Error("could not restore stock")
		}
	}
}

func (s *Service) Get(ctx context.Context, id string) (*models.Order, error) {
	oid, err := parseID(id, "order")
	if err != nil {
		return nil, err
	}
	return s.orders.FindByID(ctx, oid)
}

// GetForUser hides orders of other users behind ErrNotFound
func (s *Service) GetForUser(ctx context.Context, userID primitive.ObjectID, id string) (*models.Order, error) {
	order, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !order.OwnedBy(userID) {
		return nil, errors.Wrap(ErrNotFound, "order")
	}
	return order, nil
}

func (s *Service) ListForUser(ctx context.Context, userID primitive.ObjectID) ([]models.Order, error) {
	return s.orders.ListByUser(ctx, userID)
}

func (s *Service) ListAll(ctx context.Context, status models.OrderStatus) ([]models.Order, error) {
	if status != "" && !status.Valid() {
		return nil, errors.Wrapf(ErrInvalidStatus, "%q", status)
	}
	return s.orders.List(ctx, status)
}

// UpdateStatus moves an order along the status table. Writing the current
// status again is a no-op; moving backwards fails with ErrInvalidTransition.
func (s *Service) UpdateStatus(ctx context.Context, id string, status models.OrderStatus) (*models.Order, error) {
	if !status.Valid() {
		return nil, errors.Wrapf(ErrInvalidStatus, "%q", status)
	}
	order, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if order.Status == status {
		return order, nil
	}
	if !order.Status.CanTransitionTo(status) {
		return nil, errors.Wrapf(ErrInvalidTransition, "%s -> %s", order.Status, status)
	}
	if err := s.orders.UpdateStatus(ctx, order.ID, order.Status, status); err != nil {
		return nil, err
	}

	s.log.WithFields(logrus.Fields{"order_id": id, "from": order.Status, "to": status}).Info("order status changed")
	order.Status = status
	if status == models.StatusCancelled {
		s.restoreStock(ctx, order.Items)
	}
	s.publish(EventStatusChanged, *order)
	s.notifyStatus(*order)
	return order, nil
}

// MarkStatus is UpdateStatus for callers that only care about the error
func (s *Service) MarkStatus(ctx context.Context, orderID string, status models.OrderStatus) error {
	_, err := s.UpdateStatus(ctx, orderID, status)
	return err
}

func (s *Service) AttachPaymentID(ctx context.Context, orderID, paymentID string) error {
	oid, err := parseID(orderID, "order")
	if err != nil {
		return err
	}
	return s.orders.SetPaymentID(ctx, oid, paymentID)
}

func (s *Service) SetPaymentToken(ctx context.Context, orderID, token, redirectURL string) error {
	oid, err := parseID(orderID, "order")
	if err != nil {
		return err
	}
	return s.orders.SetPaymentToken(ctx, oid, token, redirectURL)
}

// RestartPayment puts an unpaid Midtrans order back to awaiting_payment so a
// new token can be issued.
func (s *Service) RestartPayment(ctx context.Context, userID primitive.ObjectID, id string) (*models.Order, error) {
	order, err := s.GetForUser(ctx, userID, id)
	if err != nil {
		return nil, err
	}
	if order.PaymentMethod != models.PaymentMidtrans {
		return nil, errors.Wrapf(ErrUnsupportedPayment, "restart %s payment", order.PaymentMethod)
	}
	if !order.Status.CanRestartPayment() {
		return nil, errors.Wrapf(ErrInvalidTransition, "restart payment from %s", order.Status)
	}
	if err := s.orders.ResetPayment(ctx, order.ID, models.StatusAwaitingPayment); err != nil {
		return nil, err
	}
	order.Status = models.StatusAwaitingPayment
	order.PaymentToken, order.PaymentURL = "", ""
	s.publish(EventPaymentRestarted, *order)
	return order, nil
}

// ApplyNotification records a gateway notification and moves the order to
// the status it implies. The signature must already have been verified.
// Notifications that would move an order backwards are recorded but ignored.
func (s *Service) ApplyNotification(ctx context.Context, n payment.TransactionStatus) (*models.Order, error) {
	orderID := payment.BaseOrderID(n.OrderID)
	order, err := s.Get(ctx, orderID)
	if err != nil {
		return nil, err
	}
	log := s.log.WithFields(logrus.Fields{
		"order_id":           orderID,
		"gateway_order_id":   n.OrderID,
		"transaction_status": n.TransactionStatus,
		"fraud_status":       n.FraudStatus,
	})

	record := &models.Payment{
		OrderID:           order.ID,
		GatewayOrderID:    n.OrderID,
		TransactionID:     n.TransactionID,
		TransactionStatus: n.TransactionStatus,
		PaymentType:       n.PaymentType,
		Amount:            grossAmount(n.GrossAmount),
	}
	if err := s.payments.Record(ctx, record); err != nil {
		log.WithField("err", err).Warn("could not record payment notification")
	}

	status, ok := payment.StatusFromTransaction(n.TransactionStatus, n.FraudStatus)
	if !ok {
		log.Info("notification does not change the order")
		return order, nil
	}
	if n.TransactionID != "" && order.PaymentID != n.TransactionID {
		if err := s.orders.SetPaymentID(ctx, order.ID, n.TransactionID); err != nil {
			return nil, err
		}
		order.PaymentID = n.TransactionID
	}
	if order.Status == status {
		return order, nil
	}
	if !order.Status.CanTransitionTo(status) {
		log.WithField("current", order.Status).Info("ignoring notification that would move the order backwards")
		return order, nil
	}
	return s.UpdateStatus(ctx, orderID, status)
}

// grossAmount parses Midtrans' "150000.00"
func grossAmount(s string) int64 {
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0
	}
	return int64(f)
}

func (s *Service) publish(kind string, order models.Order) {
	if s.events != nil {
		s.events.Publish(Event{Type: kind, Order: order})
	}
}

func (s *Service) notifyCreated(order models.Order) {
	s.notify(order, func(user *models.User) error {
		return s.notifier.SendOrderConfirmationEmail(user.Email, order)
	})
}

func (s *Service) notifyStatus(order models.Order) {
	s.notify(order, func(user *models.User) error {
		return s.notifier.SendOrderStatusEmail(user.Email, user.Name, order)
	})
}

// notify sends in the background; email trouble never fails an order
func (s *Service) notify(order models.Order, send func(user *models.User) error) {
	if s.notifier == nil {
		return
	}
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		log := s.log.WithField("order_id", order.ID.Hex())
		user, err := s.users.FindByID(context.Background(), order.UserID)
		if err != nil {
			log.WithField("err", err).Warn("no recipient for order email")
			return
		}
		if err := send(user); err != nil {
			log.WithField("err", err).Error("failed to send order email")
		}
	}()
}
