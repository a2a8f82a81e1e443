package payment

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSnapScript_LoadsOnce(t *testing.T) {
	var hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		_, _ = w.Write([]byte("window.snap = {}"))
	}))
	defer srv.Close()

	s := NewSnapScript(MidtransConfig{SnapURL: srv.URL, ClientKey: "client"})
	require.NoError(t, s.Load(context.Background()))
	require.NoError(t, s.Load(context.Background()))

	assert.Equal(t, int32(1), atomic.LoadInt32(&hits))
	assert.Contains(t, s.Tag(), `id="midtrans-script"`)
	assert.Contains(t, s.Tag(), `data-client-key="client"`)
}

func TestSnapScript_FailureIsRemembered(t *testing.T) {
	var hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	now := time.Unix(0, 0)
	s := NewSnapScript(MidtransConfig{SnapURL: srv.URL})
	s.now = func() time.Time { return now }

	assert.ErrorIs(t, s.Load(context.Background()), ErrScriptUnavailable)
	assert.ErrorIs(t, s.Load(context.Background()), ErrScriptUnavailable)
	assert.Equal(t, int32(1), atomic.LoadInt32(&hits))

	now = now.Add(2 * time.Minute)
	assert.ErrorIs(t, s.Load(context.Background()), ErrScriptUnavailable)
	assert.Equal(t, int32(2), atomic.LoadInt32(&hits))
}
