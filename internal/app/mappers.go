package app

import (
	"strconv"
	"strings"
	"time"
	"unicode"

	"github.com/rs/zerolog/log"

	"hotel_agent/internal/domain"
	"hotel_agent/internal/shared"
)

/********** tiny helpers **********/

// firstNonEmpty returns the first candidate that is not blank after trimming.
func firstNonEmpty(cands []string) string {
	for _, c := range cands {
		if t := strings.TrimSpace(c); t != "" {
			return t
		}
	}
	return ""
}

// amount reads the first number in s, e.g. "$1,234.50 total" -> 1234.5.
// A comma followed by exactly two digits is a decimal comma ("89,50 €");
// any other comma, and dots when a decimal comma is present, group thousands.
func amount(s string) (float64, bool) {
	start := strings.IndexFunc(s, unicode.IsDigit)
	if start < 0 {
		return 0, false
	}
	end := start
	for end < len(s) && (s[end] >= '0' && s[end] <= '9' || s[end] == ',' || s[end] == '.') {
		end++
	}
	tok := strings.TrimRight(s[start:end], ",.")

	if i := strings.LastIndexByte(tok, ','); i >= 0 && len(tok)-i-1 == 2 && !strings.Contains(tok[i:], ".") {
		tok = strings.ReplaceAll(tok[:i], ".", "") + "." + tok[i+1:]
	}
	tok = strings.ReplaceAll(tok, ",", "")
	if strings.Count(tok, ".") > 1 {
		tok = strings.ReplaceAll(tok, ".", "")
	}
	f, err := strconv.ParseFloat(tok, 64)
	return f, err == nil
}

// parsePrice: first candidate holding a number.
func parsePrice(cands []string) (float64, bool) {
	for _, c := range cands {
		if f, ok := amount(c); ok {
			return f, true
		}
	}
	return 0, false
}

// parseRating accepts "4.5", "8,6", "Rated 9.2 out of 10". Scores above 5 are
// treated as a 10-point scale.
func parseRating(cands []string) (float64, bool) {
	for _, c := range cands {
		f, ok := leadingFloat(strings.ReplaceAll(c, ",", "."))
		if !ok {
			continue
		}
		if f > 5 {
			f /= 2
		}
		return min(max(f, 0), 5), true
	}
	return 0, false
}

// leadingFloat extracts the first decimal number in s.
func leadingFloat(s string) (float64, bool) {
	start := strings.IndexFunc(s, unicode.IsDigit)
	if start < 0 {
		return 0, false
	}
	end := start
	dot := false
	for end < len(s) {
		ch := s[end]
		if ch == '.' && !dot {
			dot = true
		} else if ch < '0' || ch > '9' {
			break
		}
		end++
	}
	f, err := strconv.ParseFloat(strings.TrimSuffix(s[start:end], "."), 64)
	return f, err == nil
}

func splitAmenities(cands []string) []string {
	out := make([]string, 0, len(cands))
	for _, c := range cands {
		for _, p := range strings.FieldsFunc(c, func(r rune) bool { return r == ',' || r == '•' || r == '\n' }) {
			if t := strings.TrimSpace(p); t != "" {
				out = append(out, t)
			}
		}
	}
	return out
}

/********** card mapper **********/

// mapCards turns raw cards into hotel records, dropping cards without a name
// or a price and keeping card order. At most limit records are returned.
func mapCards(location string, cards []domain.HotelCard, limit int, rng Rand, now time.Time) []domain.HotelRecord {
	location = normalizeLocation(location)
	out := make([]domain.HotelRecord, 0, min(len(cards), limit))
	for i, c := range cards {
		if len(out) == limit {
			break
		}
		name := firstNonEmpty(c.Name)
		price, ok := parsePrice(c.Price)
		if name == "" || !ok {
			continue
		}
		rating, ok := parseRating(c.Rating)
		if !ok {
			rating = randomRating(rng)
		}
		img := firstNonEmpty(c.Image)
		if img == "" {
			img = placeholderImage(i)
		}
		h := domain.HotelRecord{
			Name:         name,
			NightlyPrice: price,
			Rating:       rating,
			Location:     location,
			Amenities:    splitAmenities(c.Amenities),
			ImageRef:     img,
			Description:  firstNonEmpty(c.Description),
			ObservedAt:   now.UTC(),
		}
		if err := shared.Validate(h); err != nil {
			log.Debug().Err(err).
				Str("context", "mapCards").
				Str("name", name).
				Msg("dropping invalid card")
			continue
		}
		out = append(out, h)
	}
	return out
}
