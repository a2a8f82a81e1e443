package cart

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"fashion-store/models"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

var (
	ErrInvalidQuantity = errors.New("quantity must be at least 1")
	ErrItemNotFound    = errors.New("item not found in cart")
	ErrInvalidOption   = errors.New("option not offered for this product")
)

// Store is one owner's cart. ItemCount and TotalPrice are kept in step with
// the items after every mutation, and every mutation is written through to
// Storage.
type Store struct {
	owner   string
	storage Storage
	log     logrus.FieldLogger
	newID   func() string

	mu         sync.Mutex
	items      []models.CartItem
	itemCount  int
	totalPrice int64
}

// Open loads the owner's cart. A payload that does not parse is dropped and
// the cart starts empty.
func Open(ctx context.Context, storage Storage, owner string, log logrus.FieldLogger) (*Store, error) {
	s := &Store{
		owner:   owner,
		storage: storage,
		log:     log,
		newID:   func() string { return uuid.NewString() },
	}

	data, err := storage.Load(ctx, cartKey(owner))
	if errors.Is(err, ErrNotFound) {
		return s, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load cart: %w", err)
	}

	var items []models.CartItem
	if err := json.Unmarshal(data, &items); err != nil {
		log.WithFields(logrus.Fields{"owner": owner, "err": err}).Warn("stored cart is unreadable, starting empty")
		items = nil
	}
	s.items = items
	s.recompute()
	return s, nil
}

func (s *Store) Owner() string {
	return s.owner
}

// Items returns a copy of the cart lines
func (s *Store) Items() []models.CartItem {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]models.CartItem(nil), s.items...)
}

func (s *Store) ItemCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.itemCount
}

func (s *Store) TotalPrice() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.totalPrice
}

func (s *Store) Empty() bool {
	return s.ItemCount() == 0
}

// AddToCart merges into the line with the same product and options, or
// appends a new line.
func (s *Store) AddToCart(ctx context.Context, product models.Product, quantity int, color, size string) (models.CartItem, error) {
	if quantity < 1 {
		return models.CartItem{}, ErrInvalidQuantity
	}
	productID := product.ID.Hex()

	s.mu.Lock()
	defer s.mu.Unlock()
	prev := s.snapshot()

	for i := range s.items {
		if s.items[i].SameVariant(productID, color, size) {
			s.items[i].Quantity += quantity
			item := s.items[i]
			return item, s.commit(ctx, prev)
		}
	}

	item := models.CartItem{
		ID:        s.newID(),
		ProductID: productID,
		Name:      product.Name,
		Price:     product.Price,
		Image:     product.Image(),
		Quantity:  quantity,
		Color:     color,
		Size:      size,
	}
	s.items = append(s.items, item)
	return item, s.commit(ctx, prev)
}

func (s *Store) UpdateQuantity(ctx context.Context, itemID string, quantity int) error {
	if quantity < 1 {
		return ErrInvalidQuantity
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	prev := s.snapshot()

	i := s.indexOf(itemID)
	if i < 0 {
		return ErrItemNotFound
	}
	s.items[i].Quantity = quantity
	return s.commit(ctx, prev)
}

// UpdateOptions changes a line's color and size. When another line already
// has the same product and options the two are merged into that line.
func (s *Store) UpdateOptions(ctx context.Context, itemID, color, size string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	prev := s.snapshot()

	i := s.indexOf(itemID)
	if i < 0 {
		return ErrItemNotFound
	}
	productID := s.items[i].ProductID

	for j := range s.items {
		if j != i && s.items[j].SameVariant(productID, color, size) {
			s.items[j].Quantity += s.items[i].Quantity
			s.items = append(s.items[:i], s.items[i+1:]...)
			return s.commit(ctx, prev)
		}
	}

	s.items[i].Color = color
	s.items[i].Size = size
	return s.commit(ctx, prev)
}

func (s *Store) RemoveFromCart(ctx context.Context, itemID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	prev := s.snapshot()

	i := s.indexOf(itemID)
	if i < 0 {
		return ErrItemNotFound
	}
	s.items = append(s.items[:i], s.items[i+1:]...)
	return s.commit(ctx, prev)
}

func (s *Store) ClearCart(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	prev := s.snapshot()

	s.items = nil
	return s.commit(ctx, prev)
}

// Item looks up one line by id
func (s *Store) Item(itemID string) (models.CartItem, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.indexOf(itemID)
	if i < 0 {
		return models.CartItem{}, false
	}
	return s.items[i], true
}

func (s *Store) indexOf(itemID string) int {
	for i := range s.items {
		if s.items[i].ID == itemID {
			return i
		}
	}
	return -1
}

func (s *Store) recompute() {
	count := 0
	var total int64
	for _, item := range s.items {
		count += item.Quantity
		total += item.Subtotal()
	}
	s.itemCount = count
	s.totalPrice = total
}

// snapshot copies the lines so a failed commit can put them back. Caller holds mu.
func (s *Store) snapshot() []models.CartItem {
	return append([]models.CartItem(nil), s.items...)
}

// commit recomputes totals and writes the full cart. When the write fails
// the cart goes back to prev. Caller holds mu.
func (s *Store) commit(ctx context.Context, prev []models.CartItem) (err error) {
	defer func() {
		if err != nil {
			s.items = prev
			s.recompute()
		}
	}()
	s.recompute()

	items := s.items
	if items == nil {
		items = []models.CartItem{}
	}
	data, err := json.Marshal(items)
	if err != nil {
		return fmt.Errorf("marshal cart failed: %w", err)
	}
	if err := s.storage.Save(ctx, cartKey(s.owner), data); err != nil {
		return fmt.Errorf("save cart: %w", err)
	}
	return nil
}

// ValidateOptions checks a color and size against what the product offers.
// Empty selections are always accepted.
func ValidateOptions(product models.Product, color, size string) error {
	if !offered(product.Colors, color) || !offered(product.Sizes, size) {
		return ErrInvalidOption
	}
	return nil
}

func offered(options []string, v string) bool {
	if v == "" || len(options) == 0 {
		return true
	}
	for _, o := range options {
		if o == v {
			return true
		}
	}
	return false
}

// Repository opens carts and wishlists on a shared Storage
type Repository struct {
	storage Storage
	log     logrus.FieldLogger
}

func NewRepository(storage Storage, log logrus.FieldLogger) *Repository {
	return &Repository{storage: storage, log: log}
}

func (r *Repository) Cart(ctx context.Context, owner string) (*Store, error) {
	return Open(ctx, r.storage, owner, r.log)
}

func (r *Repository) Wishlist(ctx context.Context, owner string) (*Wishlist, error) {
	return OpenWishlist(ctx, r.storage, owner, r.log)
}

func (r *Repository) Markers(owner string) *Markers {
	return NewMarkers(r.storage, owner)
}
