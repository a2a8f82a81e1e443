package cart

import (
	"context"
	"testing"

	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWishlist_AddIsIdempotent(t *testing.T) {
	storage := NewMemoryStorage()
	log, _ := test.NewNullLogger()
	ctx := context.Background()
	w, err := OpenWishlist(ctx, storage, "guest-1", log)
	require.NoError(t, err)

	bag := newProduct("bag", 500000)
	require.NoError(t, w.Add(ctx, bag))
	require.NoError(t, w.Add(ctx, bag))

	assert.Len(t, w.Items(), 1)
	assert.True(t, w.Contains(bag.ID.Hex()))

	reopened, err := OpenWishlist(ctx, storage, "guest-1", log)
	require.NoError(t, err)
	assert.Len(t, reopened.Items(), 1)
}

func TestWishlist_RemoveUnknown(t *testing.T) {
	log, _ := test.NewNullLogger()
	w, err := OpenWishlist(context.Background(), NewMemoryStorage(), "guest-1", log)
	require.NoError(t, err)
	assert.ErrorIs(t, w.Remove(context.Background(), "nope"), ErrItemNotFound)
}

func TestWishlist_MoveToCart(t *testing.T) {
	storage := NewMemoryStorage()
	log, _ := test.NewNullLogger()
	ctx := context.Background()
	repo := NewRepository(storage, log)

	w, err := repo.Wishlist(ctx, "user-1")
	require.NoError(t, err)
	c, err := repo.Cart(ctx, "user-1")
	require.NoError(t, err)

	shoes := newProduct("shoes", 900000)
	require.NoError(t, w.Add(ctx, shoes))

	item, err := w.MoveToCart(ctx, shoes, c, "black", "")
	require.NoError(t, err)
	assert.Equal(t, shoes.ID.Hex(), item.ProductID)
	assert.Equal(t, 1, c.ItemCount())
	assert.False(t, w.Contains(shoes.ID.Hex()))

	_, err = w.MoveToCart(ctx, shoes, c, "", "")
	assert.ErrorIs(t, err, ErrItemNotFound)
}
