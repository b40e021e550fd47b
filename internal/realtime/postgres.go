package realtime

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/lib/pq"
	"go.uber.org/zap"
)

// PostgresFeed turns NOTIFY payloads from the change trigger into events.
type PostgresFeed struct {
	*Hub
	listener *pq.Listener
	channel  string
	logger   *zap.Logger
	done     chan struct{}
}

// NewPostgresFeed opens a dedicated LISTEN connection on channel.
func NewPostgresFeed(dsn, channel string, minReconnect, maxReconnect time.Duration, logger *zap.Logger) (*PostgresFeed, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if minReconnect <= 0 {
		minReconnect = time.Second
	}
	if maxReconnect < minReconnect {
		maxReconnect = time.Minute
	}
	log := logger.With(zap.String("feed", "postgres"), zap.String("channel", channel))
	listener := pq.NewListener(dsn, minReconnect, maxReconnect, func(ev pq.ListenerEventType, err error) {
		switch ev {
		case pq.ListenerEventConnectionAttemptFailed, pq.ListenerEventDisconnected:
			log.Warn("change listener connection problem", zap.Error(err))
		case pq.ListenerEventReconnected:
			log.Info("change listener reconnected")
		}
	})
	if err := listener.Listen(channel); err != nil {
		_ = listener.Close()
		return nil, fmt.Errorf("listen %s: %w", channel, err)
	}
	return &PostgresFeed{
		Hub:      NewHub(logger),
		listener: listener,
		channel:  channel,
		logger:   log,
		done:     make(chan struct{}),
	}, nil
}

// Run forwards notifications until ctx is cancelled.
func (f *PostgresFeed) Run(ctx context.Context) {
	defer close(f.done)
	ping := time.NewTicker(90 * time.Second)
	defer ping.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case n, ok := <-f.listener.Notify:
			if !ok {
				return
			}
			// nil after a reconnect: notifications may have been missed.
			if n == nil {
				f.logger.Warn("change listener reconnected, events may have been missed")
				continue
			}
			event, err := DecodeEvent([]byte(n.Extra))
			if err != nil {
				f.logger.Warn("bad change payload", zap.String("payload", n.Extra), zap.Error(err))
				continue
			}
			f.Dispatch(event)
		case <-ping.C:
			if err := f.listener.Ping(); err != nil {
				f.logger.Warn("change listener ping failed", zap.Error(err))
			}
		}
	}
}

// Close stops listening.
func (f *PostgresFeed) Close() error {
	return f.listener.Close()
}

// DecodeEvent parses the JSON payload emitted by notify_table_change.
func DecodeEvent(raw []byte) (Event, error) {
	var event Event
	if err := json.Unmarshal(raw, &event); err != nil {
		return Event{}, err
	}
	if event.Table == "" {
		return Event{}, fmt.Errorf("payload missing table")
	}
	return event, nil
}
