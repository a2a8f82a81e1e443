package orders

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"fashion-store/models"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHub_BroadcastsEvents(t *testing.T) {
	log, _ := test.NewNullLogger()
	hub := NewHub("http://localhost:3000", log)
	srv := httptest.NewServer(hub)
	defer srv.Close()
	defer hub.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()

	require.Eventually(t, func() bool { return hub.Clients() == 1 }, time.Second, 10*time.Millisecond)

	hub.Publish(Event{Type: EventCreated, Order: models.Order{Status: models.StatusPending, Total: 920000}})

	var got Event
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	require.NoError(t, conn.ReadJSON(&got))
	assert.Equal(t, EventCreated, got.Type)
	assert.Equal(t, int64(920000), got.Order.Total)

	conn.Close()
	assert.Eventually(t, func() bool { return hub.Clients() == 0 }, time.Second, 10*time.Millisecond)
}

func TestHub_ChecksOrigin(t *testing.T) {
	log, _ := test.NewNullLogger()
	hub := NewHub("https://shop.example.com", log)
	srv := httptest.NewServer(hub)
	defer srv.Close()
	defer hub.Close()
	url := "ws" + strings.TrimPrefix(srv.URL, "http")

	conn, resp, err := websocket.DefaultDialer.Dial(url, http.Header{"Origin": {"https://evil.example"}})
	require.ErrorIs(t, err, websocket.ErrBadHandshake)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	assert.Nil(t, conn)
	assert.Equal(t, 0, hub.Clients())

	for _, origin := range []string{"https://shop.example.com", "HTTPS://Shop.Example.com", srv.URL} {
		conn, _, err := websocket.DefaultDialer.Dial(url, http.Header{"Origin": {origin}})
		require.NoError(t, err, origin)
		conn.Close()
	}
}
