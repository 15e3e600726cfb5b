package source

import (
	"context"
	"fmt"
	"net/url"
	"time"

	"github.com/chromedp/chromedp"
	"github.com/goccy/go-json"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"

	"hotel_agent/internal/domain"
)

type BrowserOptions struct {
	SearchURL string // fmt template with one %s for the location
	Headless  bool
	UserAgent string
	RPS       float64       // page loads per second across all calls
	Settle    time.Duration // extra wait after the cards render
	MaxCards  int
}

// Browser fetches result cards with a headless Chrome session per call.
type Browser struct {
	opts    BrowserOptions
	limiter *rate.Limiter
	log     zerolog.Logger

	// open starts a browser tab; the returned func releases it.
	open func(ctx context.Context) (context.Context, context.CancelFunc)
	// scrape loads url in the tab and decodes the cards.
	scrape func(ctx context.Context, url string, out *[]domain.HotelCard) error
}

func NewBrowser(opts BrowserOptions) *Browser {
	if opts.SearchURL == "" {
		opts.SearchURL = DefaultSearchURL
	}
	if opts.RPS <= 0 {
		opts.RPS = 0.2
	}
	if opts.Settle <= 0 {
		opts.Settle = 2 * time.Second
	}
	if opts.MaxCards <= 0 {
		opts.MaxCards = 8
	}
	b := &Browser{
		opts:    opts,
		limiter: rate.NewLimiter(rate.Limit(opts.RPS), 1),
		log:     log.With().Str("component", "browser-source").Logger(),
	}
	b.open = b.openTab
	b.scrape = b.scrapePage
	return b
}

// FetchCards loads the search page for location and returns its raw cards.
// The browser is always released before returning.
func (b *Browser) FetchCards(ctx context.Context, location string) ([]domain.HotelCard, error) {
	// client-side rate limiting
	if err := b.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	tabCtx, release := b.open(ctx)
	defer release()

	u := fmt.Sprintf(b.opts.SearchURL, url.QueryEscape(location))
	b.log.Debug().Str("location", location).Str("url", u).Msg("loading search page")

	var cards []domain.HotelCard
	if err := b.scrape(tabCtx, u, &cards); err != nil {
		return nil, fmt.Errorf("scrape %s: %w", location, err)
	}
	if len(cards) > b.opts.MaxCards {
		cards = cards[:b.opts.MaxCards]
	}
	return cards, nil
}

func (b *Browser) openTab(ctx context.Context) (context.Context, context.CancelFunc) {
	allocOpts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", b.opts.Headless),
		chromedp.Flag("no-sandbox", true),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("disable-blink-features", "AutomationControlled"),
		chromedp.WindowSize(1440, 900),
	)
	if b.opts.UserAgent != "" {
		allocOpts = append(allocOpts, chromedp.UserAgent(b.opts.UserAgent))
	}
	allocCtx, cancelAlloc := chromedp.NewExecAllocator(ctx, allocOpts...)
	tabCtx, cancelTab := chromedp.NewContext(allocCtx,
		chromedp.WithLogf(func(format string, args ...interface{}) {
			b.log.Debug().Msgf(format, args...)
		}),
	)
	return tabCtx, func() {
		cancelTab()
		cancelAlloc()
	}
}

func (b *Browser) scrapePage(ctx context.Context, u string, out *[]domain.HotelCard) error {
	script, err := extractScript(b.opts.MaxCards)
	if err != nil {
		return err
	}
	return chromedp.Run(ctx,
		chromedp.Navigate(u),
		chromedp.WaitVisible(CardSelector, chromedp.ByQuery),
		chromedp.Sleep(b.opts.Settle),
		chromedp.Evaluate(script, out),
	)
}

// extractScript builds the page script. For every card it records, per
// field, the text each selector yields ("" when a selector misses).
func extractScript(maxCards int) (string, error) {
	fields, err := json.Marshal(fieldSelectors())
	if err != nil {
		return "", fmt.Errorf("encode selectors: %w", err)
	}
	card, err := json.Marshal(CardSelector)
	if err != nil {
		return "", fmt.Errorf("encode card selector: %w", err)
	}
	return fmt.Sprintf(`(() => {
  const fields = %s;
  const text = (el) => {
    if (!el) return "";
    if (el.tagName === "IMG") return el.currentSrc || el.src || "";
    return (el.textContent || "").trim();
  };
  return Array.from(document.querySelectorAll(%s)).slice(0, %d).map((card) => {
    const out = {};
    for (const [field, sels] of Object.entries(fields)) {
      out[field] = sels.map((s) => text(card.querySelector(s)));
    }
    return out;
  });
})()`, fields, card, maxCards), nil
}
