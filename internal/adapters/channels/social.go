package channels

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"hotel_agent/internal/domain"
)

const previewRunes = 60

var ErrNoCaption = errors.New("no caption for platform")

// Social is a simulated social network account. Nothing leaves the process;
// the send is logged and reported as simulated.
type Social struct {
	platform string
}

func NewSocial(platform string) *Social { return &Social{platform: platform} }

// NewSocials builds one channel per platform, keeping order.
func NewSocials(platforms []string) []domain.Channel {
	out := make([]domain.Channel, 0, len(platforms))
	for _, p := range platforms {
		out = append(out, NewSocial(p))
	}
	return out
}

func (s *Social) Name() string { return s.platform }

func (s *Social) Deliver(ctx context.Context, p domain.Post) (domain.Receipt, error) {
	if err := ctx.Err(); err != nil {
		return domain.Receipt{}, err
	}
	caption := p.SocialCaptions[s.platform]
	if caption == "" {
		return domain.Receipt{}, fmt.Errorf("%s: %w", s.platform, ErrNoCaption)
	}
	log.Info().
		Str("platform", s.platform).
		Str("post_id", p.ID).
		Str("preview", preview(caption)).
		Msg("social post (simulated)")
	return domain.Receipt{Simulated: true, Platform: s.platform, Ref: uuid.NewString()}, nil
}

func preview(s string) string {
	r := []rune(s)
	if len(r) <= previewRunes {
		return s
	}
	return string(r[:previewRunes]) + "..."
}
