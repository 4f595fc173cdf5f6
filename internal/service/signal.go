package service

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/redis/go-redis/v9"

	"github.com/totegamma/memorial"
)

const channelPrefix = "memorial:"

// SignalService fans record events out over redis pub/sub. Without a redis
// client events are dropped.
type SignalService struct {
	rdb *redis.Client
}

func NewSignalService(redisClient *redis.Client) *SignalService {
	return &SignalService{
		rdb: redisClient,
	}
}

func Channel(collection string) string {
	return channelPrefix + collection
}

func (s *SignalService) Publish(ctx context.Context, event memorial.Event) error {
	if s.rdb == nil {
		return nil
	}

	jsonstr, err := json.Marshal(event)
	if err != nil {
		return err
	}

	err = s.rdb.Publish(ctx, Channel(event.Collection), jsonstr).Err()
	if err != nil {
		return err
	}

	return nil
}

// Realtime forwards events of the collections last received on input to
// output until ctx is done or input is closed. output is never closed here.
func (s *SignalService) Realtime(ctx context.Context, input <-chan []string, output chan<- memorial.Event) {
	var pubsub *redis.PubSub
	var messages <-chan *redis.Message
	defer func() {
		if pubsub != nil {
			pubsub.Close()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case collections, ok := <-input:
			if !ok {
				return
			}
			if s.rdb == nil {
				continue
			}
			if pubsub != nil {
				pubsub.Close()
			}

			channels := make([]string, 0, len(collections))
			for _, collection := range collections {
				channels = append(channels, Channel(collection))
			}
			pubsub = s.rdb.Subscribe(ctx, channels...)
			messages = pubsub.Channel()
		case msg, ok := <-messages:
			if !ok {
				messages = nil
				continue
			}

			var event memorial.Event
			if err := json.Unmarshal([]byte(msg.Payload), &event); err != nil {
				slog.WarnContext(
					ctx, "malformed event on channel",
					slog.String("channel", msg.Channel),
					slog.String("error", err.Error()),
					slog.String("module", "signal"),
				)
				continue
			}

			select {
			case output <- event:
			case <-ctx.Done():
				return
			}
		}
	}
}
