package controllers

import (
	"net/http"

	"fashion-store/cart"
	"fashion-store/middleware"
	"fashion-store/models"
	"fashion-store/repository"
	"fashion-store/utils"

	"github.com/gorilla/mux"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// CartController serves the cart and wishlist of users and guests
type CartController struct {
	Carts    *cart.Repository
	Products repository.Products
	Log      logrus.FieldLogger
}

func NewCartController(carts *cart.Repository, products repository.Products, log logrus.FieldLogger) *CartController {
	return &CartController{Carts: carts, Products: products, Log: log}
}

type cartView struct {
	Items      []models.CartItem `json:"items"`
	ItemCount  int               `json:"item_count"`
	TotalPrice int64             `json:"total_price"`
}

func viewOf(s *cart.Store) cartView {
	items := s.Items()
	if items == nil {
		items = []models.CartItem{}
	}
	return cartView{Items: items, ItemCount: s.ItemCount(), TotalPrice: s.TotalPrice()}
}

func owner(w http.ResponseWriter, r *http.Request) (string, bool) {
	o, ok := middleware.Owner(r.Context())
	if !ok {
		utils.WriteError(w, http.StatusUnauthorized, "no cart for this request")
	}
	return o, ok
}

// product loads a catalog entry by its hex id
func (cc *CartController) product(r *http.Request, id string) (*models.Product, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, errors.Wrapf(repository.ErrNotFound, "product %q", id)
	}
	ctx, cancel := requestContext(r)
	defer cancel()
	return cc.Products.FindByID(ctx, oid)
}

func (cc *CartController) open(w http.ResponseWriter, r *http.Request) (*cart.Store, bool) {
	o, ok := owner(w, r)
	if !ok {
		return nil, false
	}
	s, err := cc.Carts.Cart(r.Context(), o)
	if err != nil {
		respondError(w, cc.Log, err)
		return nil, false
	}
	return s, true
}

func (cc *CartController) GetCart(w http.ResponseWriter, r *http.Request) {
	s, ok := cc.open(w, r)
	if !ok {
		return
	}
	utils.WriteJSON(w, http.StatusOK, viewOf(s))
}

// AddToCart adds a product variant. The same product with the same options
// increases the quantity of the existing line.
func (cc *CartController) AddToCart(w http.ResponseWriter, r *http.Request) {
	var input struct {
		ProductID string `json:"product_id"`
		Quantity  int    `json:"quantity"`
		Color     string `json:"color"`
		Size      string `json:"size"`
	}
	if err := decodeJSON(r, &input); err != nil {
		respondError(w, cc.Log, err)
		return
	}
	if input.Quantity == 0 {
		input.Quantity = 1
	}

	product, err := cc.product(r, input.ProductID)
	if err != nil {
		respondError(w, cc.Log, err)
		return
	}
	if err := cart.ValidateOptions(*product, input.Color, input.Size); err != nil {
		respondError(w, cc.Log, err)
		return
	}

	s, ok := cc.open(w, r)
	if !ok {
		return
	}
	if inCart := quantityInCart(s, input.ProductID); inCart+input.Quantity > product.Stock {
		respondError(w, cc.Log, errors.Wrapf(repository.ErrInsufficientStock, "%s has %d left", product.Name, product.Stock))
		return
	}
	if _, err := s.AddToCart(r.Context(), *product, input.Quantity, input.Color, input.Size); err != nil {
		respondError(w, cc.Log, err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, viewOf(s))
}

func quantityInCart(s *cart.Store, productID string) int {
	n := 0
	for _, item := range s.Items() {
		if item.ProductID == productID {
			n += item.Quantity
		}
	}
	return n
}

func (cc *CartController) UpdateQuantity(w http.ResponseWriter, r *http.Request) {
	var input struct {
		Quantity int `json:"quantity"`
	}
	if err := decodeJSON(r, &input); err != nil {
		respondError(w, cc.Log, err)
		return
	}
	s, ok := cc.open(w, r)
	if !ok {
		return
	}
	if err := s.UpdateQuantity(r.Context(), mux.Vars(r)["itemId"], input.Quantity); err != nil {
		respondError(w, cc.Log, err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, viewOf(s))
}

// UpdateOptions changes color and size of a line. A line that ends up
// matching another one is merged into it.
func (cc *CartController) UpdateOptions(w http.ResponseWriter, r *http.Request) {
	var input struct {
		Color string `json:"color"`
		Size  string `json:"size"`
	}
	if err := decodeJSON(r, &input); err != nil {
		respondError(w, cc.Log, err)
		return
	}
	s, ok := cc.open(w, r)
	if !ok {
		return
	}
	itemID := mux.Vars(r)["itemId"]
	item, found := s.Item(itemID)
	if !found {
		respondError(w, cc.Log, cart.ErrItemNotFound)
		return
	}
	product, err := cc.product(r, item.ProductID)
	if err != nil {
		respondError(w, cc.Log, err)
		return
	}
	if err := cart.ValidateOptions(*product, input.Color, input.Size); err != nil {
		respondError(w, cc.Log, err)
		return
	}
	if err := s.UpdateOptions(r.Context(), itemID, input.Color, input.Size); err != nil {
		respondError(w, cc.Log, err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, viewOf(s))
}

func (cc *CartController) RemoveFromCart(w http.ResponseWriter, r *http.Request) {
	s, ok := cc.open(w, r)
	if !ok {
		return
	}
	if err := s.RemoveFromCart(r.Context(), mux.Vars(r)["itemId"]); err != nil {
		respondError(w, cc.Log, err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, viewOf(s))
}

func (cc *CartController) ClearCart(w http.ResponseWriter, r *http.Request) {
	s, ok := cc.open(w, r)
	if !ok {
		return
	}
	if err := s.ClearCart(r.Context()); err != nil {
		respondError(w, cc.Log, err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, viewOf(s))
}

func (cc *CartController) wishlist(w http.ResponseWriter, r *http.Request) (*cart.Wishlist, bool) {
	o, ok := owner(w, r)
	if !ok {
		return nil, false
	}
	wl, err := cc.Carts.Wishlist(r.Context(), o)
	if err != nil {
		respondError(w, cc.Log, err)
		return nil, false
	}
	return wl, true
}

func wishlistItems(wl *cart.Wishlist) []models.WishlistItem {
	items := wl.Items()
	if items == nil {
		items = []models.WishlistItem{}
	}
	return items
}

func (cc *CartController) GetWishlist(w http.ResponseWriter, r *http.Request) {
	wl, ok := cc.wishlist(w, r)
	if !ok {
		return
	}
	utils.WriteJSON(w, http.StatusOK, wishlistItems(wl))
}

func (cc *CartController) AddToWishlist(w http.ResponseWriter, r *http.Request) {
	var input struct {
		ProductID string `json:"product_id"`
	}
	if err := decodeJSON(r, &input); err != nil {
		respondError(w, cc.Log, err)
		return
	}
	product, err := cc.product(r, input.ProductID)
	if err != nil {
		respondError(w, cc.Log, err)
		return
	}
	wl, ok := cc.wishlist(w, r)
	if !ok {
		return
	}
	if err := wl.Add(r.Context(), *product); err != nil {
		respondError(w, cc.Log, err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, wishlistItems(wl))
}

func (cc *CartController) RemoveFromWishlist(w http.ResponseWriter, r *http.Request) {
	wl, ok := cc.wishlist(w, r)
	if !ok {
		return
	}
	if err := wl.Remove(r.Context(), mux.Vars(r)["productId"]); err != nil {
		respondError(w, cc.Log, err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, wishlistItems(wl))
}

// MoveToCart puts one unit of a wishlisted product in the cart
func (cc *CartController) MoveToCart(w http.ResponseWriter, r *http.Request) {
	var input struct {
		Color string `json:"color"`
		Size  string `json:"size"`
	}
	if r.ContentLength > 0 {
		if err := decodeJSON(r, &input); err != nil {
			respondError(w, cc.Log, err)
			return
		}
	}
	product, err := cc.product(r, mux.Vars(r)["productId"])
	if err != nil {
		respondError(w, cc.Log, err)
		return
	}
	if err := cart.ValidateOptions(*product, input.Color, input.Size); err != nil {
		respondError(w, cc.Log, err)
		return
	}
	wl, ok := cc.wishlist(w, r)
	if !ok {
		return
	}
	s, ok := cc.open(w, r)
	if !ok {
		return
	}
	if _, err := wl.MoveToCart(r.Context(), *product, s, input.Color, input.Size); err != nil {
		respondError(w, cc.Log, err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"cart":     viewOf(s),
		"wishlist": wishlistItems(wl),
	})
}
