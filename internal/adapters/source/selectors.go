package source

// CSS selectors used by the browser source.
// Keeping them in one place makes markup changes a one-file fix.
const (
	// DefaultSearchURL takes the query-escaped location.
	DefaultSearchURL = "https://www.expedia.com/Hotel-Search?destination=%s"

	// CardSelector matches one result card on the search page.
	CardSelector = `[data-stid="property-card"], .uitk-card, .offer-card`
)

// Per-field extraction strategies, tried in order.
var (
	NameSelectors        = []string{`h3`, `[data-test-id="hotel-name"]`, `.uitk-heading`}
	PriceSelectors       = []string{`[data-test-id="price-summary"]`, `.uitk-text`, `.price`}
	RatingSelectors      = []string{`[data-test-id="review-score"]`, `.uitk-badge-base-text`, `.rating`}
	ImageSelectors       = []string{`img[data-stid="image"]`, `figure img`, `img`}
	DescriptionSelectors = []string{`[data-test-id="location-info"]`, `.uitk-text-secondary-theme`, `.description`}
	AmenitySelectors     = []string{`[data-test-id="amenities"]`, `.uitk-typelist`, `.amenities`}
)

// fieldSelectors is the shape handed to the page script; keys match the
// json tags of domain.HotelCard.
func fieldSelectors() map[string][]string {
	return map[string][]string{
		"name":        NameSelectors,
		"price":       PriceSelectors,
		"rating":      RatingSelectors,
		"image":       ImageSelectors,
		"description": DescriptionSelectors,
		"amenities":   AmenitySelectors,
	}
}
