package changefeed

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"
	"k8s.io/apimachinery/pkg/util/wait"
	"k8s.io/klog/v2"
)

// RedisFeed publishes events on a Redis channel so every replica sees the
// changes made by the others. Received events are fanned out locally by a
// Broker.
type RedisFeed struct {
	client  *redis.Client
	channel string
	local   *Broker
	cancel  context.CancelFunc
	done    chan struct{}
}

func NewRedisFeed(ctx context.Context, client *redis.Client, channel string) *RedisFeed {
	ctx, cancel := context.WithCancel(ctx)
	f := &RedisFeed{
		client:  client,
		channel: channel,
		local:   NewBroker(),
		cancel:  cancel,
		done:    make(chan struct{}),
	}
	go func() {
		defer close(f.done)
		// resubscribe after the connection drops
		wait.UntilWithContext(ctx, f.receive, time.Second)
	}()
	return f
}

func (f *RedisFeed) receive(ctx context.Context) {
	sub := f.client.Subscribe(ctx, f.channel)
	defer sub.Close()

	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-sub.Channel():
			if !ok {
				klog.Warning("changefeed: redis subscription closed")
				return
			}
			event, err := decode(msg.Payload)
			if err != nil {
				klog.Errorf("changefeed: bad payload on %s: %v", f.channel, err)
				continue
			}
			f.local.broadcast(event)
		}
	}
}

func encode(event Event) (string, error) {
	data, err := json.Marshal(event)
	return string(data), err
}

func decode(payload string) (Event, error) {
	var event Event
	err := json.Unmarshal([]byte(payload), &event)
	return event, err
}

func (f *RedisFeed) Publish(ctx context.Context, event Event) error {
	payload, err := encode(event)
	if err != nil {
		return err
	}
	return f.client.Publish(ctx, f.channel, payload).Err()
}

func (f *RedisFeed) Subscribe() (<-chan Event, func()) {
	return f.local.Subscribe()
}

func (f *RedisFeed) Close() error {
	f.cancel()
	<-f.done
	_ = f.local.Close()
	return f.client.Close()
}
