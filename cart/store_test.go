package cart

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"fashion-store/models"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

func newProduct(name string, price int64) models.Product {
	return models.Product{
		ID:     primitive.NewObjectID(),
		Name:   name,
		Price:  price,
		Colors: []string{"black", "white"},
		Sizes:  []string{"S", "M", "L"},
		Images: []string{"/img/" + name + ".jpg"},
	}
}

func openEmpty(t *testing.T) (*Store, *MemoryStorage) {
	storage := NewMemoryStorage()
	log, _ := test.NewNullLogger()
	s, err := Open(context.Background(), storage, "user-1", log)
	require.NoError(t, err)
	return s, storage
}

func storedItems(t *testing.T, storage *MemoryStorage, owner string) []models.CartItem {
	data, err := storage.Load(context.Background(), cartKey(owner))
	require.NoError(t, err)
	var items []models.CartItem
	require.NoError(t, json.Unmarshal(data, &items))
	return items
}

func TestAddToCart_SameOptionsMerges(t *testing.T) {
	s, storage := openEmpty(t)
	ctx := context.Background()
	shirt := newProduct("shirt", 150000)

	first, err := s.AddToCart(ctx, shirt, 1, "black", "M")
	require.NoError(t, err)
	second, err := s.AddToCart(ctx, shirt, 2, "black", "M")
	require.NoError(t, err)

	assert.Equal(t, first.ID, second.ID)
	require.Len(t, s.Items(), 1)
	assert.Equal(t, 3, s.Items()[0].Quantity)
	assert.Equal(t, 3, s.ItemCount())
	assert.Equal(t, int64(450000), s.TotalPrice())
	assert.Len(t, storedItems(t, storage, "user-1"), 1)
}

func TestAddToCart_DifferentOptionsAppends(t *testing.T) {
	s, _ := openEmpty(t)
	ctx := context.Background()
	shirt := newProduct("shirt", 150000)

	a, err := s.AddToCart(ctx, shirt, 1, "black", "M")
	require.NoError(t, err)
	b, err := s.AddToCart(ctx, shirt, 1, "white", "M")
	require.NoError(t, err)

	assert.NotEqual(t, a.ID, b.ID)
	assert.Len(t, s.Items(), 2)
	assert.Equal(t, "/img/shirt.jpg", a.Image)
}

func TestAddToCart_RejectsZeroQuantity(t *testing.T) {
	s, _ := openEmpty(t)
	_, err := s.AddToCart(context.Background(), newProduct("hat", 1), 0, "", "")
	assert.ErrorIs(t, err, ErrInvalidQuantity)
	assert.True(t, s.Empty())
}

func TestUpdateQuantity(t *testing.T) {
	s, storage := openEmpty(t)
	ctx := context.Background()
	item, err := s.AddToCart(ctx, newProduct("dress", 300000), 1, "", "")
	require.NoError(t, err)

	t.Run("below one is rejected", func(t *testing.T) {
		err := s.UpdateQuantity(ctx, item.ID, 0)
		assert.ErrorIs(t, err, ErrInvalidQuantity)
		assert.Equal(t, 1, s.ItemCount())
	})

	t.Run("unknown item", func(t *testing.T) {
		err := s.UpdateQuantity(ctx, "missing", 2)
		assert.ErrorIs(t, err, ErrItemNotFound)
	})

	t.Run("success", func(t *testing.T) {
		require.NoError(t, s.UpdateQuantity(ctx, item.ID, 4))
		assert.Equal(t, 4, s.ItemCount())
		assert.Equal(t, int64(1200000), s.TotalPrice())
		assert.Equal(t, 4, storedItems(t, storage, "user-1")[0].Quantity)
	})
}

func TestUpdateOptions_MergesIntoMatchingLine(t *testing.T) {
	s, storage := openEmpty(t)
	ctx := context.Background()
	shirt := newProduct("shirt", 100000)

	black, err := s.AddToCart(ctx, shirt, 2, "black", "M")
	require.NoError(t, err)
	white, err := s.AddToCart(ctx, shirt, 1, "white", "M")
	require.NoError(t, err)

	require.NoError(t, s.UpdateOptions(ctx, white.ID, "black", "M"))

	items := s.Items()
	require.Len(t, items, 1)
	assert.Equal(t, black.ID, items[0].ID)
	assert.Equal(t, 3, items[0].Quantity)
	_, ok := s.Item(white.ID)
	assert.False(t, ok)
	assert.Equal(t, int64(300000), s.TotalPrice())
	assert.Len(t, storedItems(t, storage, "user-1"), 1)
}

func TestUpdateOptions_InPlace(t *testing.T) {
	s, _ := openEmpty(t)
	ctx := context.Background()
	item, err := s.AddToCart(ctx, newProduct("shirt", 100000), 1, "black", "S")
	require.NoError(t, err)

	require.NoError(t, s.UpdateOptions(ctx, item.ID, "black", "L"))

	got, ok := s.Item(item.ID)
	require.True(t, ok)
	assert.Equal(t, "L", got.Size)
	assert.Equal(t, 1, got.Quantity)
}

func TestUpdateOptions_OtherProductNotMerged(t *testing.T) {
	s, _ := openEmpty(t)
	ctx := context.Background()
	_, err := s.AddToCart(ctx, newProduct("shirt", 1), 1, "black", "M")
	require.NoError(t, err)
	pants, err := s.AddToCart(ctx, newProduct("pants", 1), 1, "white", "M")
	require.NoError(t, err)

	require.NoError(t, s.UpdateOptions(ctx, pants.ID, "black", "M"))
	assert.Len(t, s.Items(), 2)
}

func TestRemoveAndClear(t *testing.T) {
	s, storage := openEmpty(t)
	ctx := context.Background()
	a, _ := s.AddToCart(ctx, newProduct("a", 10), 1, "", "")
	_, _ = s.AddToCart(ctx, newProduct("b", 20), 2, "", "")

	require.NoError(t, s.RemoveFromCart(ctx, a.ID))
	assert.Equal(t, 2, s.ItemCount())
	assert.ErrorIs(t, s.RemoveFromCart(ctx, a.ID), ErrItemNotFound)

	require.NoError(t, s.ClearCart(ctx))
	assert.True(t, s.Empty())
	assert.Equal(t, int64(0), s.TotalPrice())
	assert.Empty(t, storedItems(t, storage, "user-1"))
}

func TestOpen_RestoresPersistedCart(t *testing.T) {
	s, storage := openEmpty(t)
	ctx := context.Background()
	_, err := s.AddToCart(ctx, newProduct("coat", 750000), 2, "black", "L")
	require.NoError(t, err)

	log, _ := test.NewNullLogger()
	reopened, err := Open(ctx, storage, "user-1", log)
	require.NoError(t, err)
	assert.Equal(t, 2, reopened.ItemCount())
	assert.Equal(t, int64(1500000), reopened.TotalPrice())
}

func TestOpen_UnreadablePayloadStartsEmpty(t *testing.T) {
	storage := NewMemoryStorage()
	ctx := context.Background()
	require.NoError(t, storage.Save(ctx, cartKey("user-1"), []byte(`[{"id":`)))

	log, hook := test.NewNullLogger()
	s, err := Open(ctx, storage, "user-1", log)
	require.NoError(t, err)
	assert.True(t, s.Empty())
	require.NotNil(t, hook.LastEntry())
	assert.Equal(t, logrus.WarnLevel, hook.LastEntry().Level)
}

type failingStorage struct{ *MemoryStorage }

func (failingStorage) Load(context.Context, string) ([]byte, error) {
	return nil, errors.New("connection refused")
}

func TestOpen_StorageErrorIsReturned(t *testing.T) {
	log, _ := test.NewNullLogger()
	_, err := Open(context.Background(), failingStorage{NewMemoryStorage()}, "user-1", log)
	assert.ErrorContains(t, err, "connection refused")
}

// flakyStorage refuses writes while down is set
type flakyStorage struct {
	*MemoryStorage
	down bool
}

func (f *flakyStorage) Save(ctx context.Context, key string, data []byte) error {
	if f.down {
		return errors.New("redis: connection pool timeout")
	}
	return f.MemoryStorage.Save(ctx, key, data)
}

func TestFailedSaveKeepsPreviousCart(t *testing.T) {
	ctx := context.Background()
	log, _ := test.NewNullLogger()
	storage := &flakyStorage{MemoryStorage: NewMemoryStorage()}
	s, err := Open(ctx, storage, "user-1", log)
	require.NoError(t, err)

	shirt := newProduct("shirt", 150000)
	line, err := s.AddToCart(ctx, shirt, 2, "black", "M")
	require.NoError(t, err)

	storage.down = true
	_, err = s.AddToCart(ctx, shirt, 1, "black", "M")
	assert.ErrorContains(t, err, "save cart")
	_, err = s.AddToCart(ctx, newProduct("hat", 90000), 1, "", "")
	assert.Error(t, err)
	assert.Error(t, s.UpdateQuantity(ctx, line.ID, 5))
	assert.Error(t, s.UpdateOptions(ctx, line.ID, "white", "L"))
	assert.Error(t, s.RemoveFromCart(ctx, line.ID))
	assert.Error(t, s.ClearCart(ctx))

	require.Len(t, s.Items(), 1)
	assert.Equal(t, line, s.Items()[0])
	assert.Equal(t, 2, s.ItemCount())
	assert.Equal(t, int64(300000), s.TotalPrice())

	storage.down = false
	require.NoError(t, s.UpdateQuantity(ctx, line.ID, 3))
	assert.Equal(t, int64(450000), s.TotalPrice())
}

func TestFailedSaveKeepsPreviousWishlist(t *testing.T) {
	ctx := context.Background()
	log, _ := test.NewNullLogger()
	storage := &flakyStorage{MemoryStorage: NewMemoryStorage()}
	w, err := OpenWishlist(ctx, storage, "user-1", log)
	require.NoError(t, err)

	shirt := newProduct("shirt", 150000)
	require.NoError(t, w.Add(ctx, shirt))

	storage.down = true
	assert.Error(t, w.Add(ctx, newProduct("hat", 90000)))
	assert.Error(t, w.Remove(ctx, shirt.ID.Hex()))
	assert.Error(t, w.Clear(ctx))
	assert.True(t, w.Contains(shirt.ID.Hex()))
	assert.Len(t, w.Items(), 1)
}

func TestValidateOptions(t *testing.T) {
	p := newProduct("shirt", 1)
	assert.NoError(t, ValidateOptions(p, "black", "M"))
	assert.NoError(t, ValidateOptions(p, "", ""))
	assert.ErrorIs(t, ValidateOptions(p, "purple", "M"), ErrInvalidOption)
	assert.ErrorIs(t, ValidateOptions(p, "black", "XXL"), ErrInvalidOption)
	assert.NoError(t, ValidateOptions(models.Product{}, "any", "any"))
}
