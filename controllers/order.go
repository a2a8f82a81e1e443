package controllers

import (
	"net/http"

	"fashion-store/models"
	"fashion-store/orders"
	"fashion-store/utils"

	"github.com/gorilla/mux"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

// customerStatuses are the status writes a customer may make on their own order
var customerStatuses = map[models.OrderStatus]bool{
	models.StatusProcessing: true,
	models.StatusCancelled:  true,
}

// OrderController handles order-related requests
type OrderController struct {
	Orders *orders.Service
	Log    logrus.FieldLogger
}

func NewOrderController(service *orders.Service, log logrus.FieldLogger) *OrderController {
	return &OrderController{Orders: service, Log: log}
}

// CreateOrder places an order from the items in the request body
func (oc *OrderController) CreateOrder(w http.ResponseWriter, r *http.Request) {
	userID, _, ok := currentUser(w, r)
	if !ok {
		return
	}
	var req orders.CreateOrderRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, oc.Log, err)
		return
	}

	ctx, cancel := requestContext(r)
	defer cancel()
	order, err := oc.Orders.Create(ctx, userID, req)
	if err != nil {
		respondError(w, oc.Log, err)
		return
	}
	utils.WriteJSON(w, http.StatusCreated, order)
}

// GetOrders lists the orders of the authenticated user
func (oc *OrderController) GetOrders(w http.ResponseWriter, r *http.Request) {
	userID, _, ok := currentUser(w, r)
	if !ok {
		return
	}
	ctx, cancel := requestContext(r)
	defer cancel()
	list, err := oc.Orders.ListForUser(ctx, userID)
	if err != nil {
		respondError(w, oc.Log, err)
		return
	}
	if list == nil {
		list = []models.Order{}
	}
	utils.WriteJSON(w, http.StatusOK, list)
}

func (oc *OrderController) GetOrder(w http.ResponseWriter, r *http.Request) {
	userID, _, ok := currentUser(w, r)
	if !ok {
		return
	}
	ctx, cancel := requestContext(r)
	defer cancel()
	order, err := oc.Orders.GetForUser(ctx, userID, mux.Vars(r)["id"])
	if err != nil {
		respondError(w, oc.Log, err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, order)
}

// PatchOrder runs an action on an order. Only "restart_payment" exists.
func (oc *OrderController) PatchOrder(w http.ResponseWriter, r *http.Request) {
	userID, _, ok := currentUser(w, r)
	if !ok {
		return
	}
	var input struct {
		Action string `json:"action"`
	}
	if err := decodeJSON(r, &input); err != nil {
		respondError(w, oc.Log, err)
		return
	}
	if input.Action != "restart_payment" {
		utils.WriteError(w, http.StatusBadRequest, "unknown action "+input.Action)
		return
	}

	ctx, cancel := requestContext(r)
	defer cancel()
	order, err := oc.Orders.RestartPayment(ctx, userID, mux.Vars(r)["id"])
	if err != nil {
		respondError(w, oc.Log, err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, order)
}

// UpdateStatus lets a customer move their order to processing after the
// payment window reported success, or cancel it.
func (oc *OrderController) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	userID, _, ok := currentUser(w, r)
	if !ok {
		return
	}
	var input struct {
		Status models.OrderStatus `json:"status"`
	}
	if err := decodeJSON(r, &input); err != nil {
		respondError(w, oc.Log, err)
		return
	}
	if !customerStatuses[input.Status] {
		utils.WriteError(w, http.StatusForbidden, "status "+string(input.Status)+" cannot be set by customers")
		return
	}

	ctx, cancel := requestContext(r)
	defer cancel()
	id := mux.Vars(r)["id"]
	if _, err := oc.Orders.GetForUser(ctx, userID, id); err != nil {
		respondError(w, oc.Log, err)
		return
	}
	order, err := oc.Orders.UpdateStatus(ctx, id, input.Status)
	if err != nil {
		respondError(w, oc.Log, err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, order)
}

// UpdatePayment attaches the gateway reference and, when given, the Snap
// token to an order of the user.
func (oc *OrderController) UpdatePayment(w http.ResponseWriter, r *http.Request) {
	userID, _, ok := currentUser(w, r)
	if !ok {
		return
	}
	var input struct {
		PaymentID   string `json:"payment_id"`
		Token       string `json:"token"`
		RedirectURL string `json:"redirect_url"`
	}
	if err := decodeJSON(r, &input); err != nil {
		respondError(w, oc.Log, err)
		return
	}
	if input.PaymentID == "" && input.Token == "" {
		utils.WriteError(w, http.StatusBadRequest, "payment_id or token is required")
		return
	}

	ctx, cancel := requestContext(r)
	defer cancel()
	id := mux.Vars(r)["id"]
	if _, err := oc.Orders.GetForUser(ctx, userID, id); err != nil {
		respondError(w, oc.Log, err)
		return
	}
	if input.PaymentID != "" {
		if err := oc.Orders.AttachPaymentID(ctx, id, input.PaymentID); err != nil {
			respondError(w, oc.Log, err)
			return
		}
	}
	if input.Token != "" {
		if err := oc.Orders.SetPaymentToken(ctx, id, input.Token, input.RedirectURL); err != nil {
			respondError(w, oc.Log, errors.Wrap(err, "store payment token"))
			return
		}
	}
	order, err := oc.Orders.GetForUser(ctx, userID, id)
	if err != nil {
		respondError(w, oc.Log, err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, order)
}
