package routes

import (
	"net/http"

	"fashion-store/controllers"
	"fashion-store/middleware"

	"github.com/gorilla/mux"
)

// Controllers are the handlers the router dispatches to
type Controllers struct {
	User     *controllers.UserController
	Product  *controllers.ProductController
	Cart     *controllers.CartController
	Address  *controllers.AddressController
	Order    *controllers.OrderController
	Midtrans *controllers.MidtransController
	Checkout *controllers.CheckoutController
	Admin    *controllers.AdminController
}

// RegisterRoutes sets up all the routes for the application
func RegisterRoutes(router *mux.Router, c Controllers, uploadDir string) {
	// Public routes
	router.HandleFunc("/register", c.User.Register).Methods("POST")
	router.HandleFunc("/login", c.User.Login).Methods("POST")
	router.HandleFunc("/logout", c.User.Logout).Methods("POST")
	router.HandleFunc("/verify", c.User.VerifyEmail).Methods("GET")
	router.PathPrefix("/uploads/").Handler(http.StripPrefix("/uploads/", http.FileServer(http.Dir(uploadDir))))

	api := router.PathPrefix("/api").Subrouter()
	api.HandleFunc("/products", c.Product.GetProducts).Methods("GET")
	api.HandleFunc("/products/{id}", c.Product.GetProductByID).Methods("GET")
	api.HandleFunc("/search", c.Product.Search).Methods("GET")
	api.HandleFunc("/midtrans/notification", c.Midtrans.Notification).Methods("POST")

	// Admin routes
	admin := api.PathPrefix("/admin").Subrouter()
	admin.Use(middleware.AuthMiddleware)
	admin.Use(middleware.AdminMiddleware)
	admin.HandleFunc("/products", c.Product.CreateProduct).Methods("POST")
	admin.HandleFunc("/products/{id}", c.Product.UpdateProduct).Methods("PUT")
	admin.HandleFunc("/products/{id}", c.Product.DeleteProduct).Methods("DELETE")
	admin.HandleFunc("/orders", c.Admin.ListOrders).Methods("GET")
	admin.HandleFunc("/orders/export", c.Admin.ExportOrders).Methods("GET")
	admin.HandleFunc("/orders/feed", c.Admin.OrderFeed).Methods("GET")
	admin.HandleFunc("/orders/{id}/status", c.Admin.UpdateOrderStatus).Methods("PATCH")

	// Cart and wishlist, for users and guests
	guest := api.NewRoute().Subrouter()
	guest.Use(middleware.OptionalAuth)
	guest.HandleFunc("/cart", c.Cart.GetCart).Methods("GET")
	guest.HandleFunc("/cart", c.Cart.AddToCart).Methods("POST")
	guest.HandleFunc("/cart", c.Cart.ClearCart).Methods("DELETE")
	guest.HandleFunc("/cart/{itemId}", c.Cart.UpdateQuantity).Methods("PUT")
	guest.HandleFunc("/cart/{itemId}/options", c.Cart.UpdateOptions).Methods("PUT")
	guest.HandleFunc("/cart/{itemId}", c.Cart.RemoveFromCart).Methods("DELETE")
	guest.HandleFunc("/wishlist", c.Cart.GetWishlist).Methods("GET")
	guest.HandleFunc("/wishlist", c.Cart.AddToWishlist).Methods("POST")
	guest.HandleFunc("/wishlist/{productId}", c.Cart.RemoveFromWishlist).Methods("DELETE")
	guest.HandleFunc("/wishlist/{productId}/move-to-cart", c.Cart.MoveToCart).Methods("POST")

	// Checkout sends guests to the login page itself
	guest.HandleFunc("/checkout", c.Checkout.Get).Methods("GET")
	guest.HandleFunc("/checkout/shipping", c.Checkout.Shipping).Methods("POST")
	guest.HandleFunc("/checkout/shipping-method", c.Checkout.ShippingMethod).Methods("POST")
	guest.HandleFunc("/checkout/payment-method", c.Checkout.PaymentMethod).Methods("POST")
	guest.HandleFunc("/checkout/next", c.Checkout.Next).Methods("POST")
	guest.HandleFunc("/checkout/back", c.Checkout.Back).Methods("POST")
	guest.HandleFunc("/checkout/submit", c.Checkout.Submit).Methods("POST")
	guest.HandleFunc("/checkout/retry", c.Checkout.Retry).Methods("POST")
	guest.HandleFunc("/checkout/payment/result", c.Checkout.PaymentResult).Methods("POST")
	guest.HandleFunc("/checkout/success", c.Checkout.Success).Methods("GET")

	// Protected routes
	protected := api.NewRoute().Subrouter()
	protected.Use(middleware.AuthMiddleware)
	protected.HandleFunc("/user/profile", c.User.GetProfile).Methods("GET")
	protected.HandleFunc("/user/profile", c.User.UpdateProfile).Methods("PUT")
	protected.HandleFunc("/user/profile/image", c.User.UploadImage).Methods("POST")
	protected.HandleFunc("/user/password", c.User.ChangePassword).Methods("PUT")

	protected.HandleFunc("/addresses", c.Address.List).Methods("GET")
	protected.HandleFunc("/addresses", c.Address.Create).Methods("POST")
	protected.HandleFunc("/addresses/{id}", c.Address.Get).Methods("GET")
	protected.HandleFunc("/addresses/{id}", c.Address.Update).Methods("PUT")
	protected.HandleFunc("/addresses/{id}", c.Address.Delete).Methods("DELETE")
	protected.HandleFunc("/addresses/{id}/default", c.Address.SetDefault).Methods("PUT")

	protected.HandleFunc("/orders", c.Order.GetOrders).Methods("GET")
	protected.HandleFunc("/orders", c.Order.CreateOrder).Methods("POST")
	protected.HandleFunc("/orders/{id}", c.Order.GetOrder).Methods("GET")
	protected.HandleFunc("/orders/{id}", c.Order.PatchOrder).Methods("PATCH")
	protected.HandleFunc("/orders/{id}/status", c.Order.UpdateStatus).Methods("PATCH")
	protected.HandleFunc("/orders/{id}/update-payment", c.Order.UpdatePayment).Methods("POST")

	protected.HandleFunc("/midtrans", c.Midtrans.CreateToken).Methods("POST")
	protected.HandleFunc("/midtrans/retry", c.Midtrans.Retry).Methods("POST")
}
