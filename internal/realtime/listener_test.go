package realtime

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jmehdipour/pos-sync/internal/model"
)

func TestListenerFiltersFeed(t *testing.T) {
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		// own write echo followed by a genuine remote change
		_ = conn.WriteMessage(websocket.TextMessage,
			[]byte(`{"entity_type":"Product","entity_id":"p-1","operation":"update","last_updated_by":"local","payload":{"price":999}}`))
		_ = conn.WriteMessage(websocket.TextMessage,
			[]byte(`{"entity_type":"Product","entity_id":"p-2","operation":"update","last_updated_by":"cloud","payload":{"price":5}}`))

		// keep the connection open until the client goes away
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}))
	t.Cleanup(srv.Close)

	var mu sync.Mutex
	var applied []model.ChangeNotification

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http")
	l := NewListener(wsURL, NewFilter("local"),
		func(ctx context.Context, n model.ChangeNotification) error {
			mu.Lock()
			applied = append(applied, n)
			mu.Unlock()
			return nil
		},
		50*time.Millisecond,
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = l.Run(ctx) }()

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(applied) == 1
	}, 2*time.Second, 10*time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, "p-2", applied[0].EntityID)
	assert.Equal(t, "cloud", applied[0].Origin)
}
