package controllers

import (
	"bytes"
	"fmt"
	"net/http"
	"time"

	"fashion-store/models"
	"fashion-store/orders"
	"fashion-store/utils"

	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"
)

// AdminController serves the back office order views
type AdminController struct {
	Orders *orders.Service
	Feed   http.Handler
	Log    logrus.FieldLogger
}

func NewAdminController(service *orders.Service, feed http.Handler, log logrus.FieldLogger) *AdminController {
	return &AdminController{Orders: service, Feed: feed, Log: log}
}

func (ac *AdminController) list(w http.ResponseWriter, r *http.Request) ([]models.Order, bool) {
	ctx, cancel := requestContext(r)
	defer cancel()
	list, err := ac.Orders.ListAll(ctx, models.OrderStatus(r.URL.Query().Get("status")))
	if err != nil {
		respondError(w, ac.Log, err)
		return nil, false
	}
	if list == nil {
		list = []models.Order{}
	}
	return list, true
}

// ListOrders returns every order, optionally filtered by ?status=
func (ac *AdminController) ListOrders(w http.ResponseWriter, r *http.Request) {
	list, ok := ac.list(w, r)
	if !ok {
		return
	}
	utils.WriteJSON(w, http.StatusOK, list)
}

func (ac *AdminController) UpdateOrderStatus(w http.ResponseWriter, r *http.Request) {
	var input struct {
		Status models.OrderStatus `json:"status"`
	}
	if err := decodeJSON(r, &input); err != nil {
		respondError(w, ac.Log, err)
		return
	}
	ctx, cancel := requestContext(r)
	defer cancel()
	order, err := ac.Orders.UpdateStatus(ctx, mux.Vars(r)["id"], input.Status)
	if err != nil {
		respondError(w, ac.Log, err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, order)
}

// ExportOrders downloads the (filtered) orders as an Excel workbook
func (ac *AdminController) ExportOrders(w http.ResponseWriter, r *http.Request) {
	list, ok := ac.list(w, r)
	if !ok {
		return
	}
	var buf bytes.Buffer
	if err := orders.ExportXLSX(&buf, list); err != nil {
		respondError(w, ac.Log, err)
		return
	}
	filename := fmt.Sprintf("orders-%s.xlsx", time.Now().Format("20060102-150405"))
	w.Header().Set("Content-Type", orders.ExportContentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	w.WriteHeader(http.StatusOK)
	_, _ = buf.WriteTo(w)
}

// OrderFeed upgrades to a websocket that receives order events
func (ac *AdminController) OrderFeed(w http.ResponseWriter, r *http.Request) {
	ac.Feed.ServeHTTP(w, r)
}
