package orders

import (
	"context"
	"errors"
	"sync"
	"testing"

	"fashion-store/models"
	"fashion-store/payment"
	"fashion-store/repository"
	"fashion-store/repository/memory"

	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

type notifierMock struct {
	mu            sync.Mutex
	confirmations []string
	statuses      []models.OrderStatus
}

func (n *notifierMock) SendOrderConfirmationEmail(to string, _ models.Order) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.confirmations = append(n.confirmations, to)
	return nil
}

func (n *notifierMock) SendOrderStatusEmail(_, _ string, order models.Order) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.statuses = append(n.statuses, order.Status)
	return nil
}

type publisherMock struct {
	mu     sync.Mutex
	events []Event
}

func (p *publisherMock) Publish(e Event) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, e)
}

func (p *publisherMock) types() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []string
	for _, e := range p.events {
		out = append(out, e.Type)
	}
	return out
}

type fixture struct {
	svc      *Service
	store    *repository.Store
	notifier *notifierMock
	events   *publisherMock
	user     *models.User
	dress    *models.Product
	coat     *models.Product
}

func newFixture(t *testing.T) *fixture {
	ctx := context.Background()
	log, _ := test.NewNullLogger()
	f := &fixture{store: memory.New(), notifier: &notifierMock{}, events: &publisherMock{}}
	f.svc = NewService(f.store, f.notifier, f.events, Options{CODThreshold: 5000000, Country: "Indonesia"}, log)

	f.user = &models.User{Name: "Sari", Email: "sari@example.com"}
	require.NoError(t, f.store.Users.Create(ctx, f.user))
	f.dress = &models.Product{Name: "Linen Dress", Price: 450000, Stock: 5, Sizes: []string{"S", "M"}}
	f.coat = &models.Product{Name: "Wool Coat", Price: 3000000, Stock: 5}
	require.NoError(t, f.store.Products.Create(ctx, f.dress))
	require.NoError(t, f.store.Products.Create(ctx, f.coat))
	return f
}

func shipping() models.ShippingInfo {
	return models.ShippingInfo{
		Name: "Sari", Phone: "0812", Address: "Jl. Merdeka 1", City: "Bandung",
		Province: "Jawa Barat", PostalCode: "40111", Country: "Malaysia",
	}
}

func (f *fixture) stock(t *testing.T, p *models.Product) int {
	got, err := f.store.Products.FindByID(context.Background(), p.ID)
	require.NoError(t, err)
	return got.Stock
}

func (f *fixture) create(t *testing.T, method models.PaymentMethod, product *models.Product, qty int) *models.Order {
	order, err := f.svc.Create(context.Background(), f.user.ID, CreateOrderRequest{
		Items:         []ItemRequest{{ProductID: product.ID.Hex(), Quantity: qty}},
		PaymentMethod: method,
		Shipping:      shipping(),
	})
	require.NoError(t, err)
	return order
}

func TestCreate_COD(t *testing.T) {
	f := newFixture(t)
	order, err := f.svc.Create(context.Background(), f.user.ID, CreateOrderRequest{
		Items:         []ItemRequest{{ProductID: f.dress.ID.Hex(), Quantity: 2, Size: "M"}},
		PaymentMethod: models.PaymentCOD,
		Shipping:      shipping(),
	})
	require.NoError(t, err)
	f.svc.Wait()

	assert.Equal(t, models.StatusPending, order.Status)
	assert.Equal(t, models.ShippingRegular, order.ShippingMethod)
	assert.Equal(t, int64(900000), order.Subtotal)
	assert.Equal(t, int64(920000), order.Total)
	assert.Equal(t, "Indonesia", order.Shipping.Country)
	assert.Equal(t, "M", order.Items[0].Size)
	assert.Equal(t, 3, f.stock(t, f.dress))
	assert.Equal(t, []string{EventCreated}, f.events.types())
	assert.Equal(t, []string{"sari@example.com"}, f.notifier.confirmations)
}

func TestCreate_MidtransAwaitsPayment(t *testing.T) {
	f := newFixture(t)
	order, err := f.svc.Create(context.Background(), f.user.ID, CreateOrderRequest{
		Items:          []ItemRequest{{ProductID: f.coat.ID.Hex(), Quantity: 2}},
		PaymentMethod:  models.PaymentMidtrans,
		ShippingMethod: models.ShippingExpress,
		Shipping:       shipping(),
	})
	require.NoError(t, err)
	assert.Equal(t, models.StatusAwaitingPayment, order.Status)
	assert.Equal(t, int64(6050000), order.Total)
}

func TestCreate_Rejections(t *testing.T) {
	f := newFixture(t)
	incomplete := shipping()
	incomplete.PostalCode = ""

	tests := []struct {
		name string
		req  CreateOrderRequest
		err  error
	}{
		{"empty", CreateOrderRequest{PaymentMethod: models.PaymentCOD, Shipping: shipping()}, ErrEmptyOrder},
		{"cod over threshold", CreateOrderRequest{
			Items: []ItemRequest{{ProductID: f.coat.ID.Hex(), Quantity: 2}}, PaymentMethod: models.PaymentCOD, Shipping: shipping(),
		}, ErrCODUnavailable},
		{"card", CreateOrderRequest{
			Items: []ItemRequest{{ProductID: f.dress.ID.Hex(), Quantity: 1}}, PaymentMethod: models.PaymentCard, Shipping: shipping(),
		}, ErrUnsupportedPayment},
		{"incomplete address", CreateOrderRequest{
			Items: []ItemRequest{{ProductID: f.dress.ID.Hex(), Quantity: 1}}, PaymentMethod: models.PaymentCOD, Shipping: incomplete,
		}, ErrIncompleteShipping},
		{"zero quantity", CreateOrderRequest{
			Items: []ItemRequest{{ProductID: f.dress.ID.Hex(), Quantity: 0}}, PaymentMethod: models.PaymentCOD, Shipping: shipping(),
		}, ErrInvalidQuantity},
		{"out of stock", CreateOrderRequest{
			Items: []ItemRequest{{ProductID: f.dress.ID.Hex(), Quantity: 6}}, PaymentMethod: models.PaymentMidtrans, Shipping: shipping(),
		}, repository.ErrInsufficientStock},
		{"unknown product", CreateOrderRequest{
			Items: []ItemRequest{{ProductID: primitive.NewObjectID().Hex(), Quantity: 1}}, PaymentMethod: models.PaymentCOD, Shipping: shipping(),
		}, ErrNotFound},
		{"shipping method", CreateOrderRequest{
			Items: []ItemRequest{{ProductID: f.dress.ID.Hex(), Quantity: 1}}, PaymentMethod: models.PaymentCOD,
			ShippingMethod: "drone", Shipping: shipping(),
		}, ErrInvalidShippingMethod},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.svc.Create(context.Background(), f.user.ID, tt.req)
			assert.ErrorIs(t, err, tt.err)
		})
	}
	assert.Equal(t, 5, f.stock(t, f.dress))
	assert.Equal(t, 5, f.stock(t, f.coat))
}

func TestCreate_StoreFailureGivesStockBack(t *testing.T) {
	f := newFixture(t)
	f.store.Orders.(*memory.Orders).Fail = errors.New("mongo down")

	_, err := f.svc.Create(context.Background(), f.user.ID, CreateOrderRequest{
		Items:         []ItemRequest{{ProductID: f.dress.ID.Hex(), Quantity: 2}},
		PaymentMethod: models.PaymentCOD,
		Shipping:      shipping(),
	})
	assert.Error(t, err)
	assert.Equal(t, 5, f.stock(t, f.dress))
}

func TestCreate_SavedAddress(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	info := shipping()
	address := &models.Address{
		UserID: f.user.ID, Name: info.Name, Phone: info.Phone, Address: info.Address,
		City: "Surabaya", Province: "Jawa Timur", PostalCode: "60111",
	}
	require.NoError(t, f.store.Addresses.Create(ctx, address))

	order, err := f.svc.Create(ctx, f.user.ID, CreateOrderRequest{
		Items:         []ItemRequest{{ProductID: f.dress.ID.Hex(), Quantity: 1}},
		PaymentMethod: models.PaymentCOD,
		AddressID:     address.ID.Hex(),
	})
	require.NoError(t, err)
	require.NotNil(t, order.AddressID)
	assert.Equal(t, address.ID, *order.AddressID)
	assert.Equal(t, "Surabaya", order.Shipping.City)
	assert.Equal(t, "Indonesia", order.Shipping.Country)
}

func TestUpdateStatus_Transitions(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	order := f.create(t, models.PaymentMidtrans, f.dress, 1)

	_, err := f.svc.UpdateStatus(ctx, order.ID.Hex(), models.StatusPaid)
	require.NoError(t, err)

	_, err = f.svc.UpdateStatus(ctx, order.ID.Hex(), models.StatusProcessing)
	assert.ErrorIs(t, err, ErrInvalidTransition, "a late processing write must not undo paid")

	_, err = f.svc.UpdateStatus(ctx, order.ID.Hex(), "lost")
	assert.ErrorIs(t, err, ErrInvalidStatus)

	updated, err := f.svc.UpdateStatus(ctx, order.ID.Hex(), models.StatusCancelled)
	require.NoError(t, err)
	assert.Equal(t, models.StatusCancelled, updated.Status)
	assert.Equal(t, 5, f.stock(t, f.dress))

	// status emails go out concurrently, so only the set is fixed
	f.svc.Wait()
	assert.ElementsMatch(t, []models.OrderStatus{models.StatusPaid, models.StatusCancelled}, f.notifier.statuses)
}

func TestMarkStatus_ProcessingAfterPopupSuccess(t *testing.T) {
	f := newFixture(t)
	order := f.create(t, models.PaymentMidtrans, f.dress, 1)

	require.NoError(t, f.svc.MarkStatus(context.Background(), order.ID.Hex(), models.StatusProcessing))
	got, err := f.svc.Get(context.Background(), order.ID.Hex())
	require.NoError(t, err)
	assert.Equal(t, models.StatusProcessing, got.Status)
}

func TestApplyNotification(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	order := f.create(t, models.PaymentMidtrans, f.dress, 1)
	gatewayID := order.ID.Hex() + "-r1700000000"

	got, err := f.svc.ApplyNotification(ctx, payment.TransactionStatus{
		OrderID: gatewayID, TransactionStatus: "settlement", TransactionID: "tx-1", GrossAmount: "470000.00",
	})
	require.NoError(t, err)
	assert.Equal(t, models.StatusPaid, got.Status)
	assert.Equal(t, "tx-1", got.PaymentID)

	got, err = f.svc.ApplyNotification(ctx, payment.TransactionStatus{
		OrderID: order.ID.Hex(), TransactionStatus: "pending", TransactionID: "tx-1",
	})
	require.NoError(t, err)
	assert.Equal(t, models.StatusPaid, got.Status)

	got, err = f.svc.ApplyNotification(ctx, payment.TransactionStatus{
		OrderID: order.ID.Hex(), TransactionStatus: "refund", TransactionID: "tx-1",
	})
	require.NoError(t, err)
	assert.Equal(t, models.StatusPaid, got.Status)

	records, err := f.store.Payments.ListByOrder(ctx, order.ID)
	require.NoError(t, err)
	require.Len(t, records, 3)
	assert.Equal(t, gatewayID, records[0].GatewayOrderID)
	assert.Equal(t, int64(470000), records[0].Amount)

	_, err = f.svc.ApplyNotification(ctx, payment.TransactionStatus{OrderID: primitive.NewObjectID().Hex(), TransactionStatus: "settlement"})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestRestartPayment(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	order := f.create(t, models.PaymentMidtrans, f.dress, 1)
	require.NoError(t, f.svc.SetPaymentToken(ctx, order.ID.Hex(), "tok", "https://pay"))
	require.NoError(t, f.svc.MarkStatus(ctx, order.ID.Hex(), models.StatusFailed))

	restarted, err := f.svc.RestartPayment(ctx, f.user.ID, order.ID.Hex())
	require.NoError(t, err)
	assert.Equal(t, models.StatusAwaitingPayment, restarted.Status)
	assert.Empty(t, restarted.PaymentToken)

	_, err = f.svc.RestartPayment(ctx, primitive.NewObjectID(), order.ID.Hex())
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, f.svc.MarkStatus(ctx, order.ID.Hex(), models.StatusPaid))
	_, err = f.svc.RestartPayment(ctx, f.user.ID, order.ID.Hex())
	assert.ErrorIs(t, err, ErrInvalidTransition)

	cod := f.create(t, models.PaymentCOD, f.dress, 1)
	_, err = f.svc.RestartPayment(ctx, f.user.ID, cod.ID.Hex())
	assert.ErrorIs(t, err, ErrUnsupportedPayment)
}

func TestGetForUser(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	order := f.create(t, models.PaymentCOD, f.dress, 1)

	got, err := f.svc.GetForUser(ctx, f.user.ID, order.ID.Hex())
	require.NoError(t, err)
	assert.Equal(t, order.ID, got.ID)

	_, err = f.svc.GetForUser(ctx, primitive.NewObjectID(), order.ID.Hex())
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = f.svc.Get(ctx, "not-an-id")
	assert.ErrorIs(t, err, ErrNotFound)

	list, err := f.svc.ListAll(ctx, models.StatusPending)
	require.NoError(t, err)
	assert.Len(t, list, 1)
	_, err = f.svc.ListAll(ctx, "bogus")
	assert.ErrorIs(t, err, ErrInvalidStatus)
}
