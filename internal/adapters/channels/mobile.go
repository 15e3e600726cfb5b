package channels

import (
	"context"
	"fmt"
	"time"

	"github.com/goccy/go-json"

	"hotel_agent/internal/domain"
)

const mobileHotels = 3

// Publisher is the feed the mobile app listens on.
type Publisher interface {
	Publish(ctx context.Context, topic string, payload []byte) (string, error)
}

// MobilePayload is the message the mobile app receives for each post.
type MobilePayload struct {
	Type        string               `json:"type"`
	Priority    string               `json:"priority"`
	PostID      string               `json:"postId"`
	Title       string               `json:"title"`
	Body        string               `json:"body"`
	ImageRef    string               `json:"imageRef,omitempty"`
	Location    string               `json:"location"`
	Hotels      []domain.HotelRecord `json:"hotels"`
	PublishedAt time.Time            `json:"publishedAt"`
	Tags        []string             `json:"tags"`
}

type MobileApp struct {
	pub   Publisher
	topic string
}

func NewMobileApp(pub Publisher, topic string) *MobileApp {
	return &MobileApp{pub: pub, topic: topic}
}

func (m *MobileApp) Name() string { return "mobile-app" }

func (m *MobileApp) Deliver(ctx context.Context, p domain.Post) (domain.Receipt, error) {
	b, err := json.Marshal(NewMobilePayload(p))
	if err != nil {
		return domain.Receipt{}, fmt.Errorf("encode mobile payload: %w", err)
	}
	ref, err := m.pub.Publish(ctx, m.topic, b)
	if err != nil {
		return domain.Receipt{}, err
	}
	return domain.Receipt{Platform: m.Name(), Ref: ref}, nil
}

func NewMobilePayload(p domain.Post) MobilePayload {
	hotels := p.Hotels
	if len(hotels) > mobileHotels {
		hotels = hotels[:mobileHotels]
	}
	return MobilePayload{
		Type:        "hotel_deal",
		Priority:    "high",
		PostID:      p.ID,
		Title:       p.Title,
		Body:        p.Body,
		ImageRef:    p.ImageRef,
		Location:    p.Location,
		Hotels:      domain.CloneHotels(hotels),
		PublishedAt: p.PublishedAt,
		Tags:        []string{"hotels", "travel", "deals"},
	}
}
