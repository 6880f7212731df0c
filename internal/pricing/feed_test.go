package pricing

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"btc-treasury-tracker/internal/logger"
	"btc-treasury-tracker/internal/storage/memory"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

func TestWSFeed_Handle(t *testing.T) {
	svc := NewService(memory.NewPriceStore(), logger.Discard())
	feed := NewWSFeed(DefaultFeedConfig("ws://unused"), svc, logger.Discard())

	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	feed.now = func() time.Time { return now }
	ctx := context.Background()

	recorded, err := feed.handle(ctx, []byte(`{"price":"97000.5"}`))
	require.NoError(t, err)
	assert.True(t, recorded)

	// Within the interval: skipped
	now = now.Add(10 * time.Second)
	recorded, err = feed.handle(ctx, []byte(`{"price":98000}`))
	require.NoError(t, err)
	assert.False(t, recorded)

	now = now.Add(time.Minute)
	recorded, err = feed.handle(ctx, []byte(`{"price":98000}`))
	require.NoError(t, err)
	assert.True(t, recorded)

	p, err := svc.Latest(ctx)
	require.NoError(t, err)
	assert.True(t, p.Rate.Equal(decimal.NewFromInt(98000)))

	_, err = feed.handle(ctx, []byte(`{"symbol":"BTCUSDT"}`))
	assert.Error(t, err)
	_, err = feed.handle(ctx, []byte(`not json`))
	assert.Error(t, err)
}

func TestWSFeed_RunRecordsFromStream(t *testing.T) {
	subscribed := make(chan string, 1)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		_, msg, err := conn.ReadMessage()
		if err != nil {
			return
		}
		subscribed <- string(msg)

		_ = conn.WriteMessage(websocket.TextMessage, []byte(`{"price":"101234.56"}`))
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}))
	defer server.Close()

	svc := NewService(memory.NewPriceStore(), logger.Discard())
	cfg := DefaultFeedConfig("ws" + strings.TrimPrefix(server.URL, "http"))
	cfg.Subscribe = []byte(`{"op":"subscribe","channel":"ticker.BTCUSD"}`)
	feed := NewWSFeed(cfg, svc, logger.Discard())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- feed.Run(ctx) }()

	select {
	case msg := <-subscribed:
		assert.Contains(t, msg, "subscribe")
	case <-time.After(5 * time.Second):
		t.Fatal("feed did not subscribe")
	}

	assert.Eventually(t, func() bool {
		p, err := svc.Latest(context.Background())
		return err == nil && p.Rate.Equal(decimal.RequireFromString("101234.56"))
	}, 5*time.Second, 20*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("feed did not stop")
	}
}

func TestWSFeed_Disabled(t *testing.T) {
	feed := NewWSFeed(FeedConfig{}, NewService(memory.NewPriceStore(), logger.Discard()), logger.Discard())
	assert.False(t, feed.Enabled())
	assert.NoError(t, feed.Run(context.Background()))
}
