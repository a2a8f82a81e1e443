package models

// CartItem represents one line in a shopping cart
type CartItem struct {
	ID        string `json:"id"`
	ProductID string `json:"product_id"`
	Name      string `json:"name"`
	Price     int64  `json:"price"`
	Image     string `json:"image,omitempty"`
	Quantity  int    `json:"quantity"`
	Color     string `json:"color,omitempty"`
	Size      string `json:"size,omitempty"`
}

// Subtotal is price times quantity
func (i CartItem) Subtotal() int64 {
	return i.Price * int64(i.Quantity)
}

// SameVariant reports whether two lines point at the same product with the same options
func (i CartItem) SameVariant(productID, color, size string) bool {
	return i.ProductID == productID && i.Color == color && i.Size == size
}

// WishlistItem represents a saved product
type WishlistItem struct {
	ProductID string `json:"product_id"`
	Name      string `json:"name"`
	Price     int64  `json:"price"`
	Image     string `json:"image,omitempty"`
	AddedAt   int64  `json:"added_at"`
}
