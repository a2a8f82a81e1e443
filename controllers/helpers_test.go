package controllers

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"fashion-store/cart"
	"fashion-store/checkout"
	"fashion-store/orders"
	"fashion-store/payment"
	"fashion-store/repository"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStatusOf(t *testing.T) {
	cases := map[error]int{
		errors.Wrap(repository.ErrNotFound, "order"):          http.StatusNotFound,
		errors.Wrap(orders.ErrInvalidTransition, "paid -> x"): http.StatusConflict,
		orders.ErrCODUnavailable:                              http.StatusBadRequest,
		cart.ErrItemNotFound:                                  http.StatusNotFound,
		checkout.ErrSubmitInProgress:                          http.StatusConflict,
		errors.Wrap(payment.ErrScriptUnavailable, "timeout"):  http.StatusServiceUnavailable,
		errors.Wrap(repository.ErrInsufficientStock, "tote"):  http.StatusConflict,
		errors.New("connection reset"):                        http.StatusInternalServerError,
	}
	for err, want := range cases {
		assert.Equal(t, want, statusOf(err), err.Error())
	}
}

func TestRespondError_HidesInternalErrors(t *testing.T) {
	log, hook := test.NewNullLogger()

	rec := httptest.NewRecorder()
	respondError(rec, log, errors.New("mongo: socket closed"))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.NotContains(t, rec.Body.String(), "socket")
	require.Len(t, hook.AllEntries(), 1)
	assert.Equal(t, logrus.ErrorLevel, hook.LastEntry().Level)

	hook.Reset()
	rec = httptest.NewRecorder()
	respondError(rec, log, checkout.ErrAddressRequired)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), checkout.ErrAddressRequired.Error())
	assert.Empty(t, hook.AllEntries())
}
