package websocket

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newHubServer(t *testing.T) (*Hub, *httptest.Server) {
	t.Helper()
	hub := NewHub()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id, err := strconv.ParseUint(r.URL.Query().Get("account"), 10, 64)
		if err != nil {
			http.Error(w, "bad account", http.StatusBadRequest)
			return
		}
		_ = hub.ServeWS(w, r, uint(id))
	}))
	t.Cleanup(func() {
		hub.Close()
		server.Close()
	})
	return hub, server
}

func dial(t *testing.T, server *httptest.Server, account string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(server.URL, "http") + "/?account=" + account
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func waitConnected(t *testing.T, hub *Hub, accountID uint, want int) {
	t.Helper()
	require.Eventually(t, func() bool { return hub.Connected(accountID) == want }, 2*time.Second, 10*time.Millisecond)
}

func TestSendToAccount_DeliversToAllSessions(t *testing.T) {
	hub, server := newHubServer(t)
	first := dial(t, server, "7")
	second := dial(t, server, "7")
	other := dial(t, server, "8")
	waitConnected(t, hub, 7, 2)
	waitConnected(t, hub, 8, 1)

	payload := map[string]string{"message": "Severance is ready"}
	assert.True(t, hub.SendToAccount(context.Background(), 7, "updateShowFavorite", payload))

	for _, conn := range []*websocket.Conn{first, second} {
		_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
		_, data, err := conn.ReadMessage()
		require.NoError(t, err)

		var msg struct {
			Event string            `json:"event"`
			Data  map[string]string `json:"data"`
		}
		require.NoError(t, json.Unmarshal(data, &msg))
		assert.Equal(t, "updateShowFavorite", msg.Event)
		assert.Equal(t, "Severance is ready", msg.Data["message"])
	}

	// account 8 got nothing
	_ = other.SetReadDeadline(time.Now().Add(100 * time.Millisecond))
	_, _, err := other.ReadMessage()
	assert.Error(t, err)
}

func TestSendToAccount_NoSession(t *testing.T) {
	hub, _ := newHubServer(t)
	assert.False(t, hub.SendToAccount(context.Background(), 42, "updateShowFavorite", nil))
}

func TestDisconnectUnregisters(t *testing.T) {
	hub, server := newHubServer(t)
	conn := dial(t, server, "3")
	waitConnected(t, hub, 3, 1)

	require.NoError(t, conn.Close())
	waitConnected(t, hub, 3, 0)
	assert.False(t, hub.SendToAccount(context.Background(), 3, "updateShowFavorite", nil))
}
