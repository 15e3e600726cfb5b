package source

import (
	"context"
	crand "crypto/rand"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"

	"hotel_agent/internal/domain"
)

const maxAttempts = 4

var (
	ErrNotFound     = errors.New("hotel api: not found")
	ErrUnauthorized = errors.New("hotel api: unauthorized")
	ErrForbidden    = errors.New("hotel api: forbidden")
)

type APIOptions struct {
	BaseURL  string
	Key      string
	RPS      float64
	MaxCards int
	Timeout  time.Duration
}

// API fetches result cards from a JSON hotel-search endpoint:
// GET {base}/hotels?location=..&limit=.. answering {"hotels":[...]}.
type API struct {
	opts APIOptions
	hc   *http.Client
	rl   *rate.Limiter
	log  zerolog.Logger
}

func NewAPI(opts APIOptions) (*API, error) {
	if opts.Key == "" {
		return nil, fmt.Errorf("API key is required")
	}
	if opts.BaseURL == "" {
		return nil, fmt.Errorf("API base URL is required")
	}
	if opts.RPS <= 0 {
		opts.RPS = 5
	}
	if opts.MaxCards <= 0 {
		opts.MaxCards = 8
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 20 * time.Second
	}
	burst := max(int(opts.RPS), 1)
	return &API{
		opts: opts,
		hc:   &http.Client{Timeout: opts.Timeout},
		rl:   rate.NewLimiter(rate.Limit(opts.RPS), burst),
		log:  log.With().Str("component", "api-source").Logger(),
	}, nil
}

type apiHotel struct {
	Name        string   `json:"name"`
	Price       any      `json:"price"`
	Rating      any      `json:"rating"`
	Image       string   `json:"image"`
	Description string   `json:"description"`
	Amenities   []string `json:"amenities"`
}

type apiResponse struct {
	Hotels []apiHotel `json:"hotels"`
}

func (a *API) FetchCards(ctx context.Context, location string) ([]domain.HotelCard, error) {
	q := url.Values{}
	q.Set("location", location)
	q.Set("limit", strconv.Itoa(a.opts.MaxCards))
	u := strings.TrimRight(a.opts.BaseURL, "/") + "/hotels?" + q.Encode()

	var resp apiResponse
	if err := a.get(ctx, u, &resp); err != nil {
		return nil, err
	}
	cards := make([]domain.HotelCard, 0, min(len(resp.Hotels), a.opts.MaxCards))
	for _, h := range resp.Hotels {
		if len(cards) == a.opts.MaxCards {
			break
		}
		cards = append(cards, h.card())
	}
	a.log.Debug().Str("location", location).Int("cards", len(cards)).Msg("api cards fetched")
	return cards, nil
}

// card wraps each field as a single-strategy candidate list.
func (h apiHotel) card() domain.HotelCard {
	return domain.HotelCard{
		Name:        []string{h.Name},
		Price:       []string{scalar(h.Price)},
		Rating:      []string{scalar(h.Rating)},
		Image:       []string{h.Image},
		Description: []string{h.Description},
		Amenities:   []string{strings.Join(h.Amenities, ", ")},
	}
}

// scalar renders a JSON number or string; prices are whole units.
func scalar(v any) string {
	switch x := v.(type) {
	case string:
		return x
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case nil:
		return ""
	default:
		return fmt.Sprint(x)
	}
}

// get performs a GET with client-side rate limiting, retries, and JSON decode into out.
// Retries on 429 and transient 5xx, honoring Retry-After when provided.
func (a *API) get(ctx context.Context, u string, out any) error {
	if err := a.rl.Wait(ctx); err != nil {
		return err
	}

	var lastErr error
	for i := 0; i < maxAttempts; i++ {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
		if err != nil {
			return err
		}
		req.Header.Set("X-API-Key", a.opts.Key)
		req.Header.Set("Accept", "application/json")
		req.Header.Set("User-Agent", "hotel-agent/1.0")

		resp, err := a.hc.Do(req)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			lastErr = err
			if i < maxAttempts-1 && sleepCtx(ctx, backoff(i)) {
				continue
			}
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return lastErr
		}

		switch resp.StatusCode {
		case http.StatusOK:
			err := json.NewDecoder(resp.Body).Decode(out)
			resp.Body.Close()
			if err != nil {
				return fmt.Errorf("decode hotels: %w", err)
			}
			return nil

		case http.StatusNotFound:
			resp.Body.Close()
			return ErrNotFound

		case http.StatusUnauthorized:
			resp.Body.Close()
			return ErrUnauthorized

		case http.StatusForbidden:
			resp.Body.Close()
			return ErrForbidden

		case http.StatusTooManyRequests, http.StatusInternalServerError,
			http.StatusBadGateway, http.StatusServiceUnavailable, http.StatusGatewayTimeout:
			wait := retryAfter(resp)
			resp.Body.Close()
			if wait == 0 {
				wait = backoff(i)
			}
			lastErr = fmt.Errorf("remote %d", resp.StatusCode)
			a.log.Debug().Int("status", resp.StatusCode).Dur("wait", wait).Int("attempt", i+1).Msg("retrying")
			if i < maxAttempts-1 && sleepCtx(ctx, wait) {
				continue
			}
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return lastErr

		default:
			b, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
			resp.Body.Close()
			return fmt.Errorf("bad status %d: %s", resp.StatusCode, strings.TrimSpace(string(b)))
		}
	}
	return lastErr
}

// sleepCtx waits for d or returns false early if ctx is done.
func sleepCtx(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return true
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}

// retryAfter parses Retry-After (seconds or HTTP-date). Returns 0 if absent/invalid.
func retryAfter(resp *http.Response) time.Duration {
	h := resp.Header.Get("Retry-After")
	if h == "" {
		return 0
	}
	if secs, err := strconv.Atoi(strings.TrimSpace(h)); err == nil && secs >= 0 {
		return time.Duration(secs) * time.Second
	}
	if t, err := http.ParseTime(h); err == nil {
		if d := time.Until(t); d > 0 {
			return d
		}
	}
	return 0
}

// backoff doubles from 200ms per attempt with up to +50% jitter.
func backoff(i int) time.Duration {
	base := time.Duration(1<<i) * 200 * time.Millisecond
	var b [1]byte
	if _, err := crand.Read(b[:]); err != nil {
		return base
	}
	f := float64(b[0]) / 255.0
	return base + time.Duration(0.5*f*float64(base))
}
