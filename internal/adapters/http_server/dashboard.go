package httpserver

import (
	"net/http"
	"slices"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/components"
	"github.com/go-echarts/go-echarts/v2/opts"
	"github.com/rs/zerolog/log"

	"hotel_agent/internal/app"
	"hotel_agent/internal/domain"
)

type locationStats struct {
	posts    int
	hotels   int
	priceSum float64
}

// dashboard renders charts over the recent-posts window.
func (h *Handlers) dashboard(w http.ResponseWriter, r *http.Request) {
	posts, err := h.Posts.RecentPosts(r.Context(), app.MaxRecentPosts)
	if err != nil {
		log.Error().Err(err).Msg("dashboard: list posts failed")
		writeProblem(w, http.StatusInternalServerError, "Internal Server Error", "could not load posts")
		return
	}
	page := buildDashboard(posts)
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := page.Render(w); err != nil {
		log.Error().Err(err).Msg("dashboard: render failed")
	}
}

func buildDashboard(posts []domain.Post) *components.Page {
	stats := map[string]*locationStats{}
	for _, p := range posts {
		s := stats[p.Location]
		if s == nil {
			s = &locationStats{}
			stats[p.Location] = s
		}
		s.posts++
		for _, hr := range p.Hotels {
			s.hotels++
			s.priceSum += hr.NightlyPrice
		}
	}
	locs := make([]string, 0, len(stats))
	for l := range stats {
		locs = append(locs, l)
	}
	slices.Sort(locs)

	pie := charts.NewPie()
	pie.SetGlobalOptions(charts.WithTitleOpts(opts.Title{Title: "Posts per location"}))
	pieItems := make([]opts.PieData, 0, len(locs))
	for _, l := range locs {
		pieItems = append(pieItems, opts.PieData{Name: l, Value: stats[l].posts})
	}
	pie.AddSeries("Posts", pieItems)

	bar := charts.NewBar()
	bar.SetGlobalOptions(charts.WithTitleOpts(opts.Title{Title: "Average nightly price"}))
	barY := make([]opts.BarData, 0, len(locs))
	for _, l := range locs {
		avg := 0.0
		if s := stats[l]; s.hotels > 0 {
			avg = float64(int(s.priceSum/float64(s.hotels)*100)) / 100
		}
		barY = append(barY, opts.BarData{Value: avg})
	}
	bar.SetXAxis(locs).AddSeries("USD", barY)

	page := components.NewPage()
	page.PageTitle = "Hotel agent"
	page.AddCharts(pie, bar)
	return page
}
