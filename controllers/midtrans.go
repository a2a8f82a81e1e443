package controllers

import (
	"net/http"

	"fashion-store/models"
	"fashion-store/orders"
	"fashion-store/payment"
	"fashion-store/utils"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

// SignatureVerifier checks the signature_key of a gateway notification
type SignatureVerifier interface {
	VerifySignature(n payment.TransactionStatus) bool
}

// MidtransController issues Snap tokens and receives payment notifications
type MidtransController struct {
	Orders   *orders.Service
	Issuer   payment.TokenIssuer
	Verifier SignatureVerifier
	Log      logrus.FieldLogger
}

func NewMidtransController(service *orders.Service, issuer payment.TokenIssuer, verifier SignatureVerifier, log logrus.FieldLogger) *MidtransController {
	return &MidtransController{Orders: service, Issuer: issuer, Verifier: verifier, Log: log}
}

type tokenInput struct {
	OrderID string `json:"order_id"`
}

func payable(order *models.Order) error {
	if order.PaymentMethod != models.PaymentMidtrans {
		return errors.Wrapf(orders.ErrUnsupportedPayment, "order is paid by %s", order.PaymentMethod)
	}
	if order.Status != models.StatusAwaitingPayment && order.Status != models.StatusPending {
		return errors.Wrapf(orders.ErrInvalidTransition, "order is %s", order.Status)
	}
	return nil
}

// CreateToken returns the Snap token of an unpaid order, issuing one when
// the order has none yet.
func (mc *MidtransController) CreateToken(w http.ResponseWriter, r *http.Request) {
	userID, claims, ok := currentUser(w, r)
	if !ok {
		return
	}
	var input tokenInput
	if err := decodeJSON(r, &input); err != nil {
		respondError(w, mc.Log, err)
		return
	}

	ctx, cancel := requestContext(r)
	defer cancel()
	order, err := mc.Orders.GetForUser(ctx, userID, input.OrderID)
	if err != nil {
		respondError(w, mc.Log, err)
		return
	}
	if err := payable(order); err != nil {
		respondError(w, mc.Log, err)
		return
	}
	if order.PaymentToken != "" {
		utils.WriteJSON(w, http.StatusOK, payment.Token{
			OrderID:        order.ID.Hex(),
			GatewayOrderID: order.ID.Hex(),
			Token:          order.PaymentToken,
			RedirectURL:    order.PaymentURL,
		})
		return
	}

	token, err := mc.Issuer.IssueToken(ctx, payment.TokenRequestForOrder(*order, claims.Email, false))
	if err != nil {
		mc.tokenFailed(w, order.ID.Hex(), err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, token)
}

// Retry starts a fresh transaction for an unpaid order. The gateway sees a
// new order id since it does not accept the old one twice.
func (mc *MidtransController) Retry(w http.ResponseWriter, r *http.Request) {
	userID, claims, ok := currentUser(w, r)
	if !ok {
		return
	}
	var input tokenInput
	if err := decodeJSON(r, &input); err != nil {
		respondError(w, mc.Log, err)
		return
	}

	ctx, cancel := requestContext(r)
	defer cancel()
	order, err := mc.Orders.RestartPayment(ctx, userID, input.OrderID)
	if err != nil {
		respondError(w, mc.Log, err)
		return
	}
	token, err := mc.Issuer.IssueToken(ctx, payment.TokenRequestForOrder(*order, claims.Email, true))
	if err != nil {
		mc.tokenFailed(w, order.ID.Hex(), err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, token)
}

func (mc *MidtransController) tokenFailed(w http.ResponseWriter, orderID string, err error) {
	if statusOf(err) != http.StatusInternalServerError {
		respondError(w, mc.Log, err)
		return
	}
	mc.Log.WithFields(logrus.Fields{"order_id": orderID, "err": err}).Error("payment token request failed")
	utils.WriteError(w, http.StatusBadGateway, payment.ErrTokenRequest.Error())
}

// Notification is the Midtrans HTTP notification webhook. It is the
// authoritative source of payment status.
func (mc *MidtransController) Notification(w http.ResponseWriter, r *http.Request) {
	var n payment.TransactionStatus
	if err := decodeJSON(r, &n); err != nil {
		respondError(w, mc.Log, err)
		return
	}
	log := mc.Log.WithFields(logrus.Fields{
		"gateway_order_id":   n.OrderID,
		"transaction_status": n.TransactionStatus,
		"fraud_status":       n.FraudStatus,
	})
	if !mc.Verifier.VerifySignature(n) {
		log.Warn("notification signature mismatch")
		utils.WriteError(w, http.StatusForbidden, "invalid signature")
		return
	}

	ctx, cancel := requestContext(r)
	defer cancel()
	order, err := mc.Orders.ApplyNotification(ctx, n)
	if err != nil {
		respondError(w, log, err)
		return
	}
	log.WithField("status", order.Status).Info("payment notification applied")
	utils.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
