package repository

import (
	"context"
	"testing"

	"fashion-store/models"
	"fashion-store/utils"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go/modules/mongodb"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

func setupTestDB(t *testing.T) *Store {
	if testing.Short() {
		t.Skip("mongo container tests are skipped in -short mode")
	}
	ctx := context.Background()

	container, err := mongodb.Run(ctx, "mongo:7")
	require.NoError(t, err)
	t.Cleanup(func() {
		if err := container.Terminate(ctx); err != nil {
			t.Logf("failed to terminate container: %s", err)
		}
	})

	uri, err := container.ConnectionString(ctx)
	require.NoError(t, err)

	client, err := utils.ConnectDB(ctx, uri)
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Disconnect(ctx) })

	store := New(client.Database("testdb"))
	require.NoError(t, store.EnsureIndexes(ctx))
	return store
}

func TestUsers_CreateAndFind(t *testing.T) {
	store := setupTestDB(t)
	ctx := context.Background()

	user := &models.User{Name: "Sari", Email: "sari@example.com", Password: "hash"}
	require.NoError(t, store.Users.Create(ctx, user))
	assert.False(t, user.ID.IsZero())
	assert.Equal(t, models.RoleUser, user.Role)

	err := store.Users.Create(ctx, &models.User{Email: "sari@example.com"})
	assert.ErrorIs(t, err, ErrDuplicate)

	found, err := store.Users.FindByEmail(ctx, "sari@example.com")
	require.NoError(t, err)
	assert.Equal(t, user.ID, found.ID)

	require.NoError(t, store.Users.SetRole(ctx, "sari@example.com", models.RoleAdmin))
	found, err = store.Users.FindByID(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, models.RoleAdmin, found.Role)

	_, err = store.Users.FindByEmail(ctx, "nobody@example.com")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestProducts_ListAndStock(t *testing.T) {
	store := setupTestDB(t)
	ctx := context.Background()

	dress := &models.Product{Name: "Linen Dress", Category: "dresses", Price: 450000, Stock: 3}
	shirt := &models.Product{Name: "Oxford Shirt", Category: "tops", Price: 300000, Stock: 1}
	require.NoError(t, store.Products.Create(ctx, dress))
	require.NoError(t, store.Products.Create(ctx, shirt))

	list, total, err := store.Products.List(ctx, models.ProductFilter{Category: "dresses"})
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
	assert.Equal(t, "Linen Dress", list[0].Name)

	list, _, err = store.Products.List(ctx, models.ProductFilter{Query: "oxford"})
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, shirt.ID, list[0].ID)

	require.NoError(t, store.Products.DecrementStock(ctx, dress.ID, 2))
	assert.ErrorIs(t, store.Products.DecrementStock(ctx, dress.ID, 2), ErrInsufficientStock)
	assert.ErrorIs(t, store.Products.DecrementStock(ctx, primitive.NewObjectID(), 1), ErrNotFound)

	require.NoError(t, store.Products.RestoreStock(ctx, dress.ID, 2))
	got, err := store.Products.FindByID(ctx, dress.ID)
	require.NoError(t, err)
	assert.Equal(t, 3, got.Stock)
}

func TestOrders_StatusCompareAndSet(t *testing.T) {
	store := setupTestDB(t)
	ctx := context.Background()

	order := &models.Order{UserID: primitive.NewObjectID(), Status: models.StatusAwaitingPayment, Total: 100000}
	require.NoError(t, store.Orders.Create(ctx, order))

	require.NoError(t, store.Orders.UpdateStatus(ctx, order.ID, models.StatusAwaitingPayment, models.StatusPaid))
	err := store.Orders.UpdateStatus(ctx, order.ID, models.StatusAwaitingPayment, models.StatusProcessing)
	assert.ErrorIs(t, err, ErrStatusChanged)

	require.NoError(t, store.Orders.SetPaymentToken(ctx, order.ID, "tok", "https://pay"))
	require.NoError(t, store.Orders.ResetPayment(ctx, order.ID, models.StatusAwaitingPayment))
	got, err := store.Orders.FindByID(ctx, order.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusAwaitingPayment, got.Status)
	assert.Empty(t, got.PaymentToken)

	list, err := store.Orders.ListByUser(ctx, order.UserID)
	require.NoError(t, err)
	assert.Len(t, list, 1)
}

func TestAddresses_SingleDefault(t *testing.T) {
	store := setupTestDB(t)
	ctx := context.Background()
	userID := primitive.NewObjectID()

	home := &models.Address{UserID: userID, Name: "Home", City: "Bandung"}
	office := &models.Address{UserID: userID, Name: "Office", City: "Jakarta"}
	require.NoError(t, store.Addresses.Create(ctx, home))
	require.NoError(t, store.Addresses.Create(ctx, office))
	assert.True(t, home.IsDefault)
	assert.False(t, office.IsDefault)

	require.NoError(t, store.Addresses.SetDefault(ctx, userID, office.ID))
	def, err := store.Addresses.Default(ctx, userID)
	require.NoError(t, err)
	assert.Equal(t, office.ID, def.ID)

	require.NoError(t, store.Addresses.Delete(ctx, userID, office.ID))
	def, err = store.Addresses.Default(ctx, userID)
	require.NoError(t, err)
	assert.Equal(t, home.ID, def.ID)

	_, err = store.Addresses.FindByID(ctx, primitive.NewObjectID(), home.ID)
	assert.ErrorIs(t, err, ErrNotFound)
}
