package source

import (
	"context"
	"errors"
	"fmt"

	"hotel_agent/internal/domain"
	"hotel_agent/internal/shared"
)

const (
	ModeBrowser = "browser"
	ModeOffline = "offline"
	ModeAPI     = "api"
)

// ErrOffline is what the offline source always returns.
var ErrOffline = errors.New("live source disabled (offline mode)")

// Offline never reaches the network; every acquisition falls back.
type Offline struct{}

func (Offline) FetchCards(ctx context.Context, location string) ([]domain.HotelCard, error) {
	return nil, ErrOffline
}

// New builds the live source for the configured mode.
func New(cfg shared.Config) (domain.CardSource, error) {
	switch cfg.SourceMode {
	case ModeOffline:
		return Offline{}, nil
	case ModeAPI:
		a, err := NewAPI(APIOptions{
			BaseURL:  cfg.SourceAPIURL,
			Key:      cfg.SourceAPIKey,
			RPS:      cfg.SourceRPS,
			MaxCards: cfg.SourceMaxResults,
			Timeout:  cfg.SourceTimeout,
		})
		if err != nil {
			return nil, err
		}
		return NewBreaker(a, BreakerOptions{Name: "api-source"}), nil
	case ModeBrowser, "":
		b := NewBrowser(BrowserOptions{
			SearchURL: cfg.SourceSearchURL,
			Headless:  cfg.SourceHeadless,
			UserAgent: cfg.SourceUserAgent,
			RPS:       cfg.SourceRPS,
			MaxCards:  cfg.SourceMaxResults,
		})
		return NewBreaker(b, BreakerOptions{Name: "live-source"}), nil
	default:
		return nil, fmt.Errorf("unknown source mode %q", cfg.SourceMode)
	}
}
