package cart

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"fashion-store/models"

	"github.com/sirupsen/logrus"
)

// Wishlist is one owner's saved products, at most one entry per product
type Wishlist struct {
	owner   string
	storage Storage
	now     func() time.Time

	mu    sync.Mutex
	items []models.WishlistItem
}

func OpenWishlist(ctx context.Context, storage Storage, owner string, log logrus.FieldLogger) (*Wishlist, error) {
	w := &Wishlist{owner: owner, storage: storage, now: time.Now}

	data, err := storage.Load(ctx, wishlistKey(owner))
	if errors.Is(err, ErrNotFound) {
		return w, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load wishlist: %w", err)
	}
	if err := json.Unmarshal(data, &w.items); err != nil {
		log.WithFields(logrus.Fields{"owner": owner, "err": err}).Warn("stored wishlist is unreadable, starting empty")
		w.items = nil
	}
	return w, nil
}

func (w *Wishlist) Items() []models.WishlistItem {
	w.mu.Lock()
	defer w.mu.Unlock()
	return append([]models.WishlistItem(nil), w.items...)
}

func (w *Wishlist) Contains(productID string) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.indexOf(productID) >= 0
}

// Add saves a product. Adding a product twice keeps the first entry.
func (w *Wishlist) Add(ctx context.Context, product models.Product) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	prev := append([]models.WishlistItem(nil), w.items...)

	if w.indexOf(product.ID.Hex()) >= 0 {
		return nil
	}
	w.items = append(w.items, models.WishlistItem{
		ProductID: product.ID.Hex(),
		Name:      product.Name,
		Price:     product.Price,
		Image:     product.Image(),
		AddedAt:   w.now().Unix(),
	})
	return w.commit(ctx, prev)
}

func (w *Wishlist) Remove(ctx context.Context, productID string) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	prev := append([]models.WishlistItem(nil), w.items...)

	i := w.indexOf(productID)
	if i < 0 {
		return ErrItemNotFound
	}
	w.items = append(w.items[:i], w.items[i+1:]...)
	return w.commit(ctx, prev)
}

func (w *Wishlist) Clear(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	prev := append([]models.WishlistItem(nil), w.items...)

	w.items = nil
	return w.commit(ctx, prev)
}

// MoveToCart adds one unit of the product to the cart and drops it from the wishlist
func (w *Wishlist) MoveToCart(ctx context.Context, product models.Product, cart *Store, color, size string) (models.CartItem, error) {
	if !w.Contains(product.ID.Hex()) {
		return models.CartItem{}, ErrItemNotFound
	}
	item, err := cart.AddToCart(ctx, product, 1, color, size)
	if err != nil {
		return models.CartItem{}, err
	}
	return item, w.Remove(ctx, product.ID.Hex())
}

func (w *Wishlist) indexOf(productID string) int {
	for i := range w.items {
		if w.items[i].ProductID == productID {
			return i
		}
	}
	return -1
}

// commit writes the wishlist, restoring prev when the write fails
func (w *Wishlist) commit(ctx context.Context, prev []models.WishlistItem) error {
	items := w.items
	if items == nil {
		items = []models.WishlistItem{}
	}
	data, err := json.Marshal(items)
	if err != nil {
		return fmt.Errorf("marshal wishlist failed: %w", err)
	}
	if err := w.storage.Save(ctx, wishlistKey(w.owner), data); err != nil {
		w.items = prev
		return fmt.Errorf("save wishlist: %w", err)
	}
	return nil
}
