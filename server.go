package main

import (
	"context"
	"net/http"

	"fashion-store/cart"
	"fashion-store/checkout"
	"fashion-store/controllers"
	"fashion-store/middleware"
	"fashion-store/orders"
	"fashion-store/payment"
	"fashion-store/routes"
	"fashion-store/utils"

	"github.com/gorilla/mux"
	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
)

// server wires the services behind the router
type server struct {
	handler http.Handler
	env     *environment
	redis   *redis.Client
	orders  *orders.Service
	hub     *orders.Hub
}

func newServer(ctx context.Context, env *environment) (*server, error) {
	cfg, log := env.cfg, env.log

	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, errors.Wrap(err, "ping Redis")
	}
	carts := cart.NewRepository(cart.NewRedisStorage(rdb, cfg.CartTTL), log)

	email, err := utils.NewEmailService(utils.EmailSettings{
		Provider:       cfg.EmailProvider,
		PostmarkToken:  cfg.PostmarkToken,
		SendgridAPIKey: cfg.SendgridAPIKey,
		Sender:         cfg.EmailSender,
		AppURL:         cfg.AppURL,
	}, log)
	if err != nil {
		return nil, err
	}

	hub := orders.NewHub(cfg.AppURL, log)
	orderService := orders.NewService(env.store, email, hub, orders.Options{
		CODThreshold: cfg.CODThreshold,
		Country:      cfg.Country,
	}, log)

	midtransCfg := payment.MidtransConfig{
		ServerKey:  cfg.MidtransServerKey,
		ClientKey:  cfg.MidtransClientKey,
		Production: cfg.MidtransProduction,
	}
	midtrans := payment.NewClient(midtransCfg)
	gateway := payment.NewGateway(midtrans, orderService, cfg.AppURL+"/checkout/success", log)
	script := payment.NewSnapScript(midtransCfg)
	popups := payment.NewPopups(cfg.PaymentWindowTTL, log)

	manager := checkout.NewManager(orderService, env.store.Addresses, carts, checkout.PaymentDeps{
		Loader:     script,
		Issuer:     gateway,
		Popups:     popups,
		Reconciler: payment.NewReconciler(orderService, log),
		Status:     midtrans,
	}, checkout.Config{
		CODThreshold: cfg.CODThreshold,
		Country:      cfg.Country,
		SessionIdle:  cfg.CheckoutSessionIdle,
	}, log)

	router := mux.NewRouter()
	routes.RegisterRoutes(router, routes.Controllers{
		User:     controllers.NewUserController(env.store.Users, email, cfg.UploadDir, log),
		Product:  controllers.NewProductController(env.store.Products, log),
		Cart:     controllers.NewCartController(carts, env.store.Products, log),
		Address:  controllers.NewAddressController(env.store.Addresses, cfg.Country, log),
		Order:    controllers.NewOrderController(orderService, log),
		Midtrans: controllers.NewMidtransController(orderService, gateway, midtrans, log),
		Checkout: controllers.NewCheckoutController(manager, script, log),
		Admin:    controllers.NewAdminController(orderService, hub, log),
	}, cfg.UploadDir)

	return &server{
		handler: middleware.Logging(log)(middleware.Recovery(log)(router)),
		env:     env,
		redis:   rdb,
		orders:  orderService,
		hub:     hub,
	}, nil
}

// close drops websocket clients, waits for queued emails and closes Redis
func (s *server) close() {
	s.hub.Close()
	s.orders.Wait()
	if err := s.redis.Close(); err != nil {
		s.env.log.WithError(err).Warn("Redis close failed")
	}
}
