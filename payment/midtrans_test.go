package payment

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateTransaction_Success(t *testing.T) {
	var got SnapRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/snap/v1/transactions", r.URL.Path)
		user, pass, ok := r.BasicAuth()
		assert.True(t, ok)
		assert.Equal(t, "server-key", user)
		assert.Empty(t, pass)
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))

		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"token":"tok-1","redirect_url":"https://snap/redirect"}`))
	}))
	defer srv.Close()

	client := NewClient(MidtransConfig{ServerKey: "server-key", SnapURL: srv.URL})
	resp, err := client.CreateTransaction(context.Background(), SnapRequest{
		TransactionDetails: TransactionDetails{OrderID: "o-1", GrossAmount: 1000},
	})
	require.NoError(t, err)
	assert.Equal(t, "tok-1", resp.Token)
	assert.Equal(t, "https://snap/redirect", resp.RedirectURL)
	assert.Equal(t, "o-1", got.TransactionDetails.OrderID)
	assert.Equal(t, int64(1000), got.TransactionDetails.GrossAmount)
}

func TestCreateTransaction_GatewayError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error_messages":["transaction_details.order_id has already been taken"]}`))
	}))
	defer srv.Close()

	client := NewClient(MidtransConfig{ServerKey: "k", SnapURL: srv.URL})
	_, err := client.CreateTransaction(context.Background(), SnapRequest{})
	assert.ErrorContains(t, err, "has already been taken")
}

func TestStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v2/o-1/status", r.URL.Path)
		_, _ = w.Write([]byte(`{"status_code":"200","order_id":"o-1","transaction_status":"settlement","gross_amount":"1000.00"}`))
	}))
	defer srv.Close()

	client := NewClient(MidtransConfig{ServerKey: "k", APIURL: srv.URL})
	status, err := client.Status(context.Background(), "o-1")
	require.NoError(t, err)
	assert.Equal(t, "settlement", status.TransactionStatus)
}

func TestVerifySignature(t *testing.T) {
	client := NewClient(MidtransConfig{ServerKey: "secret"})
	n := TransactionStatus{OrderID: "o-1", StatusCode: "200", GrossAmount: "1000.00"}
	n.SignatureKey = Signature(n.OrderID, n.StatusCode, n.GrossAmount, "secret")

	assert.True(t, client.VerifySignature(n))

	n.GrossAmount = "1.00"
	assert.False(t, client.VerifySignature(n))
	assert.False(t, client.VerifySignature(TransactionStatus{OrderID: "o-1"}))
}

func TestEnvironmentURLs(t *testing.T) {
	assert.Equal(t, "https://app.sandbox.midtrans.com/snap/snap.js", MidtransConfig{}.ScriptURL())
	assert.Equal(t, "https://app.midtrans.com/snap/snap.js", MidtransConfig{Production: true}.ScriptURL())
	assert.Equal(t, ProductionAPIURL, MidtransConfig{Production: true}.apiURL())
}
