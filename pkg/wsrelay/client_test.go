package wsrelay

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRelayServer(t *testing.T, frames chan<- map[string]any) *httptest.Server {
	t.Helper()
	upgrader := websocket.Upgrader{}
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		for {
			var frame map[string]any
			if err := conn.ReadJSON(&frame); err != nil {
				return
			}
			frames <- frame
		}
	}))
}

func wsURL(srv *httptest.Server) string {
	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

// go test -v --run TestPublish
func TestPublish(t *testing.T) {
	frames := make(chan map[string]any, 4)
	srv := newRelayServer(t, frames)
	defer srv.Close()

	c := NewClient(wsURL(srv), nil)
	defer c.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	require.NoError(t, c.Publish(ctx, map[string]string{"symbol": "EURUSD"}))
	require.NoError(t, c.Publish(ctx, map[string]string{"symbol": "USDJPY"}))

	for _, want := range []string{"EURUSD", "USDJPY"} {
		select {
		case f := <-frames:
			assert.Equal(t, want, f["symbol"])
		case <-time.After(5 * time.Second):
			t.Fatal("frame not received")
		}
	}
}

// go test -v --run TestPublishDialFailure
func TestPublishDialFailure(t *testing.T) {
	c := NewClient("ws://127.0.0.1:1/alerts", nil)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	assert.Error(t, c.Publish(ctx, map[string]string{"symbol": "EURUSD"}))
	assert.NoError(t, c.Close())
}
