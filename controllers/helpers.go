// Package controllers holds the HTTP handlers of the store API.
package controllers

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"fashion-store/cart"
	"fashion-store/checkout"
	"fashion-store/middleware"
	"fashion-store/orders"
	"fashion-store/payment"
	"fashion-store/repository"
	"fashion-store/utils"

	"github.com/gorilla/mux"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

const requestTimeout = 10 * time.Second

var errInvalidInput = errors.New("invalid input")

func requestContext(r *http.Request) (context.Context, context.CancelFunc) {
	return context.WithTimeout(r.Context(), requestTimeout)
}

func decodeJSON(r *http.Request, v interface{}) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return errors.Wrap(errInvalidInput, err.Error())
	}
	return nil
}

// currentUser returns the authenticated user id, writing a 401 when there is none
func currentUser(w http.ResponseWriter, r *http.Request) (primitive.ObjectID, *utils.Claims, bool) {
	claims, ok := middleware.ClaimsFrom(r.Context())
	if !ok {
		utils.WriteError(w, http.StatusUnauthorized, "authentication required")
		return primitive.NilObjectID, nil, false
	}
	id, err := primitive.ObjectIDFromHex(claims.UserID)
	if err != nil {
		utils.WriteError(w, http.StatusUnauthorized, "invalid token")
		return primitive.NilObjectID, nil, false
	}
	return id, claims, true
}

// pathID parses an object id from the route, writing a 400 when malformed
func pathID(w http.ResponseWriter, r *http.Request, name string) (primitive.ObjectID, bool) {
	id, err := primitive.ObjectIDFromHex(mux.Vars(r)[name])
	if err != nil {
		utils.WriteError(w, http.StatusBadRequest, "invalid "+name)
		return primitive.NilObjectID, false
	}
	return id, true
}

func statusOf(err error) int {
	switch {
	case errors.Is(err, errInvalidInput),
		errors.Is(err, orders.ErrEmptyOrder),
		errors.Is(err, orders.ErrInvalidQuantity),
		errors.Is(err, orders.ErrIncompleteShipping),
		errors.Is(err, orders.ErrInvalidShippingMethod),
		errors.Is(err, orders.ErrUnsupportedPayment),
		errors.Is(err, orders.ErrCODUnavailable),
		errors.Is(err, orders.ErrInvalidStatus),
		errors.Is(err, cart.ErrInvalidQuantity),
		errors.Is(err, cart.ErrInvalidOption),
		errors.Is(err, checkout.ErrAddressRequired),
		errors.Is(err, checkout.ErrIncompleteAddress),
		errors.Is(err, checkout.ErrCODUnavailable),
		errors.Is(err, checkout.ErrMethodUnavailable),
		errors.Is(err, checkout.ErrEmptyCart),
		errors.Is(err, payment.ErrAmountMismatch):
		return http.StatusBadRequest
	case errors.Is(err, repository.ErrNotFound),
		errors.Is(err, cart.ErrItemNotFound),
		errors.Is(err, payment.ErrNoPopup):
		return http.StatusNotFound
	case errors.Is(err, repository.ErrDuplicate),
		errors.Is(err, repository.ErrInsufficientStock),
		errors.Is(err, repository.ErrStatusChanged),
		errors.Is(err, orders.ErrInvalidTransition),
		errors.Is(err, checkout.ErrSubmitInProgress),
		errors.Is(err, checkout.ErrWrongStep),
		errors.Is(err, checkout.ErrNoOrder),
		errors.Is(err, payment.ErrPopupActive):
		return http.StatusConflict
	case errors.Is(err, payment.ErrScriptUnavailable),
		errors.Is(err, payment.ErrNotReady):
		return http.StatusServiceUnavailable
	case errors.Is(err, payment.ErrTokenRequest),
		errors.Is(err, checkout.ErrPaymentFailed):
		return http.StatusBadGateway
	}
	return http.StatusInternalServerError
}

// respondError maps a service error to a status. Internal errors are logged
// and not shown to the client.
func respondError(w http.ResponseWriter, log logrus.FieldLogger, err error) {
	status := statusOf(err)
	if status == http.StatusInternalServerError {
		log.WithError(err).Error("request failed")
		utils.WriteError(w, status, "internal server error")
		return
	}
	utils.WriteError(w, status, err.Error())
}
