package app

import (
	"fmt"
	"math"
	"strings"
	"time"

	"hotel_agent/internal/domain"
)

// AnywhereLocation names synthetic hotels when the location is blank.
const AnywhereLocation = "Anywhere"

type syntheticTemplate struct {
	suffix    string
	minPrice  int
	span      int
	amenities []string
	blurb     string
}

var syntheticTemplates = []syntheticTemplate{
	{"Luxury Resort", 100, 200, []string{"Pool", "Spa", "Restaurant"}, "Beachfront luxury with world-class amenities"},
	{"City Hotel", 50, 150, []string{"Breakfast", "WiFi", "Gym"}, "Modern hotel in the heart of the city"},
	{"Budget Inn", 30, 80, []string{"Parking", "AC", "TV"}, "Affordable comfort for travelers"},
}

// SyntheticHotels returns the three-record fallback dataset for location.
// Values are random within fixed ranges; the shape matches live records.
func SyntheticHotels(location string, rng Rand, now time.Time) []domain.HotelRecord {
	loc := normalizeLocation(location)
	if rng == nil {
		rng = globalRand{}
	}
	out := make([]domain.HotelRecord, 0, len(syntheticTemplates))
	for i, t := range syntheticTemplates {
		out = append(out, domain.HotelRecord{
			Name:         fmt.Sprintf("%s %s", loc, t.suffix),
			NightlyPrice: float64(t.minPrice + rng.IntN(t.span)),
			Rating:       randomRating(rng),
			Location:     loc,
			Amenities:    append([]string(nil), t.amenities...),
			ImageRef:     placeholderImage(i),
			Description:  t.blurb,
			ObservedAt:   now.UTC(),
		})
	}
	return out
}

// normalizeLocation trims location; blank becomes AnywhereLocation.
func normalizeLocation(location string) string {
	if loc := strings.TrimSpace(location); loc != "" {
		return loc
	}
	return AnywhereLocation
}

// randomRating is a plausible rating in [3.0, 5.0] with one decimal.
func randomRating(rng Rand) float64 {
	return math.Round((3+rng.Float64()*2)*10) / 10
}

func placeholderImage(i int) string {
	return fmt.Sprintf("https://picsum.photos/400/300?random=%d", i)
}
