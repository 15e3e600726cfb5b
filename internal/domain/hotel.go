package domain

import "time"

// HotelRecord is the single hotel shape produced by the source acquirer,
// whether the data came from a live fetch or from the synthetic fallback.
type HotelRecord struct {
	Name         string    `json:"name" validate:"required"`
	NightlyPrice float64   `json:"nightlyPrice" validate:"gte=0"`
	Rating       float64   `json:"rating" validate:"gte=0,lte=5"`
	Location     string    `json:"location"`
	Amenities    []string  `json:"amenities"`
	ImageRef     string    `json:"imageRef" validate:"omitempty,uri"`
	Description  string    `json:"description"`
	ObservedAt   time.Time `json:"observedAt"`
}

// Clone returns a copy that shares no slices with h.
func (h HotelRecord) Clone() HotelRecord {
	out := h
	if h.Amenities != nil {
		out.Amenities = append([]string(nil), h.Amenities...)
	}
	return out
}

// CloneHotels deep-copies a hotel sequence, keeping its order.
func CloneHotels(in []HotelRecord) []HotelRecord {
	if in == nil {
		return nil
	}
	out := make([]HotelRecord, len(in))
	for i, h := range in {
		out[i] = h.Clone()
	}
	return out
}

// HotelCard is one unparsed result card from a live source. Every field holds
// the candidates produced by each extraction strategy, in strategy order;
// a strategy that found nothing contributes "".
type HotelCard struct {
	Name        []string `json:"name"`
	Price       []string `json:"price"`
	Rating      []string `json:"rating"`
	Image       []string `json:"image"`
	Description []string `json:"description"`
	Amenities   []string `json:"amenities"`
}
