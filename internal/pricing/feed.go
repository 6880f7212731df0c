package pricing

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/shopspring/decimal"

	"btc-treasury-tracker/internal/logger"
)

// FeedConfig configures the WebSocket ticker feed.
type FeedConfig struct {
	// URL of the ticker stream. The feed is disabled when empty.
	URL string
	// Subscribe is sent once after every (re)connect when non-empty.
	Subscribe []byte
	// Source tags recorded snapshots.
	Source string
	// MinInterval bounds how often a snapshot is recorded.
	MinInterval time.Duration

	ReconnectDelay    time.Duration
	MaxReconnectDelay time.Duration
	ReadTimeout       time.Duration
	HandshakeTimeout  time.Duration
}

// DefaultFeedConfig returns default feed settings for url.
func DefaultFeedConfig(url string) FeedConfig {
	return FeedConfig{
		URL:               url,
		Source:            "ws-feed",
		MinInterval:       time.Minute,
		ReconnectDelay:    time.Second,
		MaxReconnectDelay: 30 * time.Second,
		ReadTimeout:       60 * time.Second,
		HandshakeTimeout:  10 * time.Second,
	}
}

// tickerMessage is the stream payload. The price may be a JSON string or number.
type tickerMessage struct {
	Price *decimal.Decimal `json:"price"`
}

// WSFeed records prices from a WebSocket ticker stream, reconnecting with
// exponential backoff.
type WSFeed struct {
	cfg FeedConfig
	svc *Service
	log *logger.Entry
	now func() time.Time

	mu           sync.Mutex
	lastRecorded time.Time
}

// NewWSFeed creates a feed writing into svc.
func NewWSFeed(cfg FeedConfig, svc *Service, log *logger.Log) *WSFeed {
	return &WSFeed{cfg: cfg, svc: svc, log: log.WithComponent("price-feed"), now: time.Now}
}

// Enabled reports whether a stream URL is configured.
func (f *WSFeed) Enabled() bool {
	return f.cfg.URL != ""
}

// Run connects and consumes the stream until ctx is cancelled.
func (f *WSFeed) Run(ctx context.Context) error {
	if !f.Enabled() {
		return nil
	}

	delay := f.cfg.ReconnectDelay
	for {
		err := f.session(ctx)
		if ctx.Err() != nil {
			return nil
		}
		if errors.Is(err, errSessionHadData) {
			delay = f.cfg.ReconnectDelay
		} else if err != nil {
			f.log.WithError(err).WithField("retry_in", delay.String()).Warn("price feed disconnected")
		}

		select {
		case <-ctx.Done():
			return nil
		case <-time.After(delay):
		}

		delay *= 2
		if delay > f.cfg.MaxReconnectDelay {
			delay = f.cfg.MaxReconnectDelay
		}
	}
}

// errSessionHadData marks a session that read at least one message before
// dropping, which resets the backoff.
var errSessionHadData = errors.New("session ended after receiving data")

func (f *WSFeed) session(ctx context.Context) error {
	dialer := websocket.Dialer{HandshakeTimeout: f.cfg.HandshakeTimeout}
	conn, _, err := dialer.DialContext(ctx, f.cfg.URL, nil)
	if err != nil {
		return fmt.Errorf("websocket dial: %w", err)
	}
	defer conn.Close()

	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			conn.Close()
		case <-done:
		}
	}()

	if len(f.cfg.Subscribe) > 0 {
		if err := conn.WriteMessage(websocket.TextMessage, f.cfg.Subscribe); err != nil {
			return fmt.Errorf("websocket subscribe: %w", err)
		}
	}
	f.log.WithField("url", f.cfg.URL).Info("price feed connected")

	received := false
	for {
		if f.cfg.ReadTimeout > 0 {
			_ = conn.SetReadDeadline(time.Now().Add(f.cfg.ReadTimeout))
		}
		_, message, err := conn.ReadMessage()
		if err != nil {
			if received {
				return errSessionHadData
			}
			return fmt.Errorf("websocket read: %w", err)
		}
		received = true

		if _, err := f.handle(ctx, message); err != nil {
			f.log.WithError(err).Debug("price message skipped")
		}
	}
}

// handle parses one message and records it unless a snapshot was recorded
// within MinInterval. It reports whether a snapshot was written.
func (f *WSFeed) handle(ctx context.Context, message []byte) (bool, error) {
	var msg tickerMessage
	if err := json.Unmarshal(message, &msg); err != nil {
		return false, fmt.Errorf("decode ticker message: %w", err)
	}
	if msg.Price == nil {
		return false, fmt.Errorf("ticker message has no price")
	}

	now := f.now()
	f.mu.Lock()
	if !f.lastRecorded.IsZero() && now.Sub(f.lastRecorded) < f.cfg.MinInterval {
		f.mu.Unlock()
		return false, nil
	}
	f.lastRecorded = now
	f.mu.Unlock()

	if _, err := f.svc.Record(ctx, *msg.Price, f.cfg.Source); err != nil {
		f.mu.Lock()
		f.lastRecorded = time.Time{}
		f.mu.Unlock()
		return false, err
	}
	return true, nil
}
