package source

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os/exec"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"hotel_agent/internal/domain"
)

func stubBrowser(t *testing.T, opts BrowserOptions, scrape func(ctx context.Context, url string, out *[]domain.HotelCard) error) (*Browser, *atomic.Int32, *atomic.Int32) {
	t.Helper()
	b := NewBrowser(opts)
	var opened, released atomic.Int32
	b.open = func(ctx context.Context) (context.Context, context.CancelFunc) {
		opened.Add(1)
		cctx, cancel := context.WithCancel(ctx)
		return cctx, func() { released.Add(1); cancel() }
	}
	b.scrape = scrape
	return b, &opened, &released
}

func TestFetchCards_BuildsURLAndReleases(t *testing.T) {
	var gotURL string
	b, opened, released := stubBrowser(t, BrowserOptions{RPS: 1000, MaxCards: 2},
		func(ctx context.Context, u string, out *[]domain.HotelCard) error {
			gotURL = u
			*out = []domain.HotelCard{{Name: []string{"a"}}, {Name: []string{"b"}}, {Name: []string{"c"}}}
			return nil
		})

	cards, err := b.FetchCards(context.Background(), "New York")
	if err != nil {
		t.Fatalf("FetchCards: %v", err)
	}
	if gotURL != "https://www.expedia.com/Hotel-Search?destination=New+York" {
		t.Fatalf("url = %s", gotURL)
	}
	if len(cards) != 2 {
		t.Fatalf("cards not capped: %d", len(cards))
	}
	if opened.Load() != 1 || released.Load() != 1 {
		t.Fatalf("opened=%d released=%d", opened.Load(), released.Load())
	}
}

func TestFetchCards_ReleasesOnError(t *testing.T) {
	b, _, released := stubBrowser(t, BrowserOptions{RPS: 1000},
		func(ctx context.Context, u string, out *[]domain.HotelCard) error {
			return errors.New("net::ERR_NAME_NOT_RESOLVED")
		})
	if _, err := b.FetchCards(context.Background(), "Paris"); err == nil || !strings.Contains(err.Error(), "Paris") {
		t.Fatalf("want wrapped error, got %v", err)
	}
	if released.Load() != 1 {
		t.Fatalf("browser not released on error")
	}
}

func TestFetchCards_ReleasesOnPanic(t *testing.T) {
	b, _, released := stubBrowser(t, BrowserOptions{RPS: 1000},
		func(ctx context.Context, u string, out *[]domain.HotelCard) error { panic("devtools gone") })
	func() {
		defer func() { _ = recover() }()
		_, _ = b.FetchCards(context.Background(), "Paris")
	}()
	if released.Load() != 1 {
		t.Fatalf("browser not released on panic")
	}
}

func TestFetchCards_RateLimited(t *testing.T) {
	b, opened, _ := stubBrowser(t, BrowserOptions{RPS: 0.01},
		func(ctx context.Context, u string, out *[]domain.HotelCard) error { return nil })

	if _, err := b.FetchCards(context.Background(), "Bali"); err != nil {
		t.Fatalf("first call should pass: %v", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	if _, err := b.FetchCards(ctx, "Bali"); err == nil {
		t.Fatalf("second call should be throttled")
	}
	if opened.Load() != 1 {
		t.Fatalf("throttled call must not open a browser")
	}
}

func TestExtractScript_EmbedsSelectors(t *testing.T) {
	s, err := extractScript(8)
	if err != nil {
		t.Fatal(err)
	}
	for _, want := range []string{`property-card`, `hotel-name`, `price-summary`, `.slice(0, 8)`} {
		if !strings.Contains(s, want) {
			t.Fatalf("script missing %s", want)
		}
	}
}

const searchPage = `<!doctype html><html><body>
<div data-stid="property-card"><h3>Harbour House</h3><span class="price">$212 nightly</span><span class="rating">9.0</span><img src="/a.jpg"></div>
<div data-stid="property-card"><div class="uitk-heading">Garden Loft</div><span class="price">$98</span></div>
</body></html>`

// Runs against a real Chrome when one is installed.
func TestBrowser_RealChrome(t *testing.T) {
	if _, err := exec.LookPath("google-chrome"); err != nil {
		if _, err := exec.LookPath("chromium"); err != nil {
			t.Skip("no chrome binary on PATH")
		}
	}
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		_, _ = w.Write([]byte(searchPage))
	}))
	defer ts.Close()

	b := NewBrowser(BrowserOptions{SearchURL: ts.URL + "/?q=%s", Headless: true, RPS: 100, Settle: 10 * time.Millisecond})
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	cards, err := b.FetchCards(ctx, "Oslo")
	if err != nil {
		t.Fatalf("FetchCards: %v", err)
	}
	if len(cards) != 2 {
		t.Fatalf("want 2 cards, got %d", len(cards))
	}
	if cards[0].Name[0] != "Harbour House" || cards[1].Name[2] != "Garden Loft" {
		t.Fatalf("unexpected names: %+v / %+v", cards[0].Name, cards[1].Name)
	}
	if cards[0].Price[2] != "$212 nightly" {
		t.Fatalf("unexpected prices: %+v", cards[0].Price)
	}
}
