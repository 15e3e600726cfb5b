package domain

import (
	"time"

	"github.com/google/uuid"
)

type PostStatus string

const (
	StatusDraft     PostStatus = "draft"
	StatusPublished PostStatus = "published"
)

// Post is the article produced by one publishing cycle.
type Post struct {
	ID             string            `json:"id"`
	Title          string            `json:"title"`
	Body           string            `json:"body"`
	Excerpt        string            `json:"excerpt"`
	Location       string            `json:"location"`
	Hotels         []HotelRecord     `json:"hotels"`
	SocialCaptions map[string]string `json:"socialCaptions"`
	ImageRef       string            `json:"imageRef"`
	PublishedAt    time.Time         `json:"publishedAt"`
	Status         PostStatus        `json:"status"`
}

// Content is what the synthesizer returns for a hotel set.
type Content struct {
	Title          string
	Body           string
	Excerpt        string
	ImageRef       string
	SocialCaptions map[string]string
}

// NewPost builds a draft post. Hotels and captions are copied so the post
// shares nothing with the caller's slices or maps.
func NewPost(location string, hotels []HotelRecord, c Content, now time.Time) Post {
	captions := make(map[string]string, len(c.SocialCaptions))
	for k, v := range c.SocialCaptions {
		captions[k] = v
	}
	return Post{
		ID:             uuid.NewString(),
		Title:          c.Title,
		Body:           c.Body,
		Excerpt:        c.Excerpt,
		Location:       location,
		Hotels:         CloneHotels(hotels),
		SocialCaptions: captions,
		ImageRef:       c.ImageRef,
		PublishedAt:    now.UTC(),
		Status:         StatusDraft,
	}
}

// Clone deep-copies p.
func (p Post) Clone() Post {
	out := p
	out.Hotels = CloneHotels(p.Hotels)
	if p.SocialCaptions != nil {
		out.SocialCaptions = make(map[string]string, len(p.SocialCaptions))
		for k, v := range p.SocialCaptions {
			out.SocialCaptions[k] = v
		}
	}
	return out
}

// ChannelResult is the outcome of delivering one post to one channel.
type ChannelResult struct {
	Channel   string `json:"channel"`
	Success   bool   `json:"success"`
	Error     string `json:"error,omitempty"`
	Simulated bool   `json:"simulated,omitempty"`
	Ref       string `json:"ref,omitempty"`
}

// Receipt is what a channel reports back after a successful send.
type Receipt struct {
	Simulated bool
	Platform  string
	Ref       string
}

// CycleRun describes one publishing cycle. It lives only in memory.
type CycleRun struct {
	ID             string                   `json:"id"`
	Trigger        string                   `json:"trigger"`
	Variety        bool                     `json:"variety"`
	Location       string                   `json:"location"`
	UsedFallback   bool                     `json:"usedFallback"`
	FallbackReason string                   `json:"fallbackReason,omitempty"`
	StartedAt      time.Time                `json:"startedAt"`
	FinishedAt     time.Time                `json:"finishedAt"`
	State          string                   `json:"state"`
	FailedStage    string                   `json:"failedStage,omitempty"`
	Err            string                   `json:"error,omitempty"`
	PostID         string                   `json:"postId,omitempty"`
	Channels       map[string]ChannelResult `json:"channels,omitempty"`
}
