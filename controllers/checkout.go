package controllers

import (
	"net/http"

	"fashion-store/checkout"
	"fashion-store/middleware"
	"fashion-store/models"
	"fashion-store/payment"
	"fashion-store/utils"

	"github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// CheckoutController exposes the checkout wizard. Every response carries
// the wizard state, or only a navigation when the client has to leave.
type CheckoutController struct {
	Checkout *checkout.Manager
	Script   *payment.SnapScript
	Log      logrus.FieldLogger
}

func NewCheckoutController(manager *checkout.Manager, script *payment.SnapScript, log logrus.FieldLogger) *CheckoutController {
	return &CheckoutController{Checkout: manager, Script: script, Log: log}
}

type scriptInfo struct {
	ID        string `json:"id"`
	URL       string `json:"url"`
	ClientKey string `json:"client_key"`
}

type checkoutResponse struct {
	checkout.View
	Script *scriptInfo `json:"script,omitempty"`
}

func identity(r *http.Request) *checkout.Identity {
	claims, ok := middleware.ClaimsFrom(r.Context())
	if !ok {
		return nil
	}
	id, err := primitive.ObjectIDFromHex(claims.UserID)
	if err != nil {
		return nil
	}
	return &checkout.Identity{UserID: id, Email: claims.Email}
}

func navigate(w http.ResponseWriter, nav *checkout.Navigation) {
	utils.WriteJSON(w, http.StatusOK, map[string]*checkout.Navigation{"navigation": nav})
}

// session resumes the user's checkout or opens a new one. It writes the
// response itself when the client has to be sent elsewhere.
func (cc *CheckoutController) session(w http.ResponseWriter, r *http.Request) (*checkout.Session, bool) {
	ident := identity(r)
	if ident != nil {
		if s, ok := cc.Checkout.Lookup(ident.UserID); ok {
			return s, true
		}
	}
	s, nav, err := cc.Checkout.Enter(r.Context(), ident)
	if err != nil {
		respondError(w, cc.Log, err)
		return nil, false
	}
	if nav != nil {
		navigate(w, nav)
		return nil, false
	}
	return s, true
}

func (cc *CheckoutController) respond(w http.ResponseWriter, s *checkout.Session, err error) {
	if err != nil {
		status := statusOf(err)
		if status == http.StatusInternalServerError {
			respondError(w, cc.Log, err)
			return
		}
		view := s.View()
		view.Error = err.Error()
		utils.WriteJSON(w, status, checkoutResponse{View: view})
		return
	}
	view := s.View()
	resp := checkoutResponse{View: view}
	if view.Step == checkout.StepReview && view.PaymentMethod == models.PaymentMidtrans && cc.Script != nil {
		resp.Script = &scriptInfo{ID: payment.SnapScriptID, URL: cc.Script.URL(), ClientKey: cc.Script.ClientKey()}
	}
	utils.WriteJSON(w, http.StatusOK, resp)
}

// Get enters the checkout. Guests go to login and an empty cart goes back
// to the cart page.
func (cc *CheckoutController) Get(w http.ResponseWriter, r *http.Request) {
	s, nav, err := cc.Checkout.Enter(r.Context(), identity(r))
	if err != nil {
		respondError(w, cc.Log, err)
		return
	}
	if nav != nil {
		navigate(w, nav)
		return
	}
	cc.respond(w, s, nil)
}

// Shipping picks a saved address or takes a new one. A new address is
// saved to the address book when "save" is set.
func (cc *CheckoutController) Shipping(w http.ResponseWriter, r *http.Request) {
	var input struct {
		AddressID string               `json:"address_id"`
		Address   *models.ShippingInfo `json:"address"`
		Save      bool                 `json:"save"`
	}
	if err := decodeJSON(r, &input); err != nil {
		respondError(w, cc.Log, err)
		return
	}
	s, ok := cc.session(w, r)
	if !ok {
		return
	}

	var err error
	switch {
	case input.AddressID != "":
		err = s.SelectAddress(r.Context(), input.AddressID)
	case input.Address != nil:
		err = s.UseNewAddress(r.Context(), *input.Address, input.Save)
	default:
		err = checkout.ErrAddressRequired
	}
	cc.respond(w, s, err)
}

func (cc *CheckoutController) ShippingMethod(w http.ResponseWriter, r *http.Request) {
	var input struct {
		Method models.ShippingMethod `json:"method"`
	}
	if err := decodeJSON(r, &input); err != nil {
		respondError(w, cc.Log, err)
		return
	}
	s, ok := cc.session(w, r)
	if !ok {
		return
	}
	cc.respond(w, s, s.SetShippingMethod(r.Context(), input.Method))
}

func (cc *CheckoutController) PaymentMethod(w http.ResponseWriter, r *http.Request) {
	var input struct {
		Method models.PaymentMethod `json:"method"`
	}
	if err := decodeJSON(r, &input); err != nil {
		respondError(w, cc.Log, err)
		return
	}
	s, ok := cc.session(w, r)
	if !ok {
		return
	}
	cc.respond(w, s, s.SetPaymentMethod(r.Context(), input.Method))
}

func (cc *CheckoutController) Next(w http.ResponseWriter, r *http.Request) {
	s, ok := cc.session(w, r)
	if !ok {
		return
	}
	cc.respond(w, s, s.Next(r.Context()))
}

func (cc *CheckoutController) Back(w http.ResponseWriter, r *http.Request) {
	s, ok := cc.session(w, r)
	if !ok {
		return
	}
	cc.respond(w, s, s.Back(r.Context()))
}

// Submit places the order. For Midtrans the response carries the token of
// the payment window the client has to open.
func (cc *CheckoutController) Submit(w http.ResponseWriter, r *http.Request) {
	s, ok := cc.session(w, r)
	if !ok {
		return
	}
	cc.respond(w, s, s.Submit(r.Context()))
}

// Retry reopens the payment window after it was closed or failed. It does
// nothing while a window is open.
func (cc *CheckoutController) Retry(w http.ResponseWriter, r *http.Request) {
	s, ok := cc.session(w, r)
	if !ok {
		return
	}
	cc.respond(w, s, s.RetryPayment(r.Context()))
}

// PaymentResult receives the snap.js callback of the open window
func (cc *CheckoutController) PaymentResult(w http.ResponseWriter, r *http.Request) {
	var input struct {
		payment.Result
		Outcome string `json:"outcome"`
	}
	if err := decodeJSON(r, &input); err != nil {
		respondError(w, cc.Log, err)
		return
	}
	outcome, known := payment.ParseOutcome(input.Outcome)
	if !known {
		utils.WriteError(w, http.StatusBadRequest, "unknown outcome "+input.Outcome)
		return
	}
	ident := identity(r)
	if ident == nil {
		navigate(w, &checkout.Navigation{Target: checkout.LoginPath})
		return
	}
	s, ok := cc.Checkout.Lookup(ident.UserID)
	if !ok {
		utils.WriteError(w, http.StatusConflict, checkout.ErrNoOrder.Error())
		return
	}
	result := input.Result
	result.Outcome = outcome
	cc.respond(w, s, s.Report(r.Context(), result))
}

// Success serves the confirmation page, also when Midtrans redirects the
// browser here after a redirect-mode payment.
func (cc *CheckoutController) Success(w http.ResponseWriter, r *http.Request) {
	ident := identity(r)
	if ident == nil {
		navigate(w, &checkout.Navigation{Target: checkout.LoginPath})
		return
	}
	q := r.URL.Query()
	view, err := cc.Checkout.Finish(r.Context(), *ident, checkout.SuccessQuery{
		OrderID:           q.Get("orderId"),
		PaymentMethod:     models.PaymentMethod(q.Get("paymentMethod")),
		GatewayOrderID:    q.Get("order_id"),
		TransactionStatus: q.Get("transaction_status"),
	})
	if err != nil {
		respondError(w, cc.Log, err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, view)
}
