package feed

import (
	"context"
	"fmt"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/google/uuid"
)

// TopicMobilePosts carries the mobile-app payload of every published post.
const TopicMobilePosts = "mobile.posts"

// Bus is the in-process pub/sub used between the mobile-app channel and the
// websocket relay. Messages published with no subscriber are dropped.
type Bus struct {
	pubsub *gochannel.GoChannel
}

func NewBus() *Bus {
	return &Bus{pubsub: gochannel.NewGoChannel(
		gochannel.Config{OutputChannelBuffer: 64},
		watermill.NewStdLogger(false, false),
	)}
}

func (b *Bus) Publish(ctx context.Context, topic string, payload []byte) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	msg := message.NewMessage(uuid.NewString(), payload)
	msg.SetContext(ctx)
	if err := b.pubsub.Publish(topic, msg); err != nil {
		return "", fmt.Errorf("publish %s: %w", topic, err)
	}
	return msg.UUID, nil
}

// Subscribe returns a stream that closes when ctx is done. Every message must
// be acked before the next one is delivered.
func (b *Bus) Subscribe(ctx context.Context, topic string) (<-chan *message.Message, error) {
	return b.pubsub.Subscribe(ctx, topic)
}

func (b *Bus) Close() error { return b.pubsub.Close() }
