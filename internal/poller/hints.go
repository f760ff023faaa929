package poller

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sethvargo/go-retry"
	"go.uber.org/zap"
)

const (
	stateChanged = "state_changed"

	redialBase = 500 * time.Millisecond
	redialCap  = 30 * time.Second
)

// redialBackoff is a capped exponential backoff that starts over from
// redialBase whenever a connection is established.
type redialBackoff struct {
	mu sync.Mutex
	b  retry.Backoff
}

func newRedialBackoff() *redialBackoff {
	rb := &redialBackoff{}
	rb.Reset()
	return rb
}

func (rb *redialBackoff) Next() (time.Duration, bool) {
	rb.mu.Lock()
	defer rb.mu.Unlock()
	return rb.b.Next()
}

func (rb *redialBackoff) Reset() {
	rb.mu.Lock()
	defer rb.mu.Unlock()
	rb.b = retry.WithCappedDuration(redialCap, retry.NewExponential(redialBase))
}

// ListenHints connects to the websocket hint channel at url and nudges s on
// every state_changed message. The payload is ignored: a hint only means
// "poll now". Dropped connections are redialled with capped exponential
// backoff until ctx is cancelled; the backoff restarts after every
// successful dial.
func ListenHints(ctx context.Context, url string, s *Synchronizer, log *zap.Logger) error {
	backoff := newRedialBackoff()

	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		err := listenOnce(ctx, url, s, backoff.Reset)
		if ctx.Err() != nil {
			return nil
		}
		log.Warn("hint channel disconnected", zap.Error(err))
		return retry.RetryableError(err)
	})
	if ctx.Err() != nil {
		return nil
	}
	return err
}

func listenOnce(ctx context.Context, url string, s *Synchronizer, connected func()) error {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, url, nil)
	if err != nil {
		return fmt.Errorf("dial hints: %w", err)
	}
	defer conn.Close()
	connected()

	stop := context.AfterFunc(ctx, func() { conn.Close() })
	defer stop()

	// Hints may have been missed while disconnected.
	s.Nudge()

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return err
		}
		var msg struct {
			Type string `json:"type"`
		}
		if json.Unmarshal(data, &msg) == nil && msg.Type == stateChanged {
			s.Nudge()
		}
	}
}
