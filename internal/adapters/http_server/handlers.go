// internal/adapters/http_server/handlers.go
package httpserver

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/httprate"
	"github.com/goccy/go-json"
	"github.com/rs/zerolog/log"

	"hotel_agent/internal/app"
	"hotel_agent/internal/domain"
	"hotel_agent/internal/shared"
)

const (
	defaultPostsLimit = 10
	apiTimeout        = 15 * time.Second
)

type PostLister interface {
	RecentPosts(ctx context.Context, limit int) ([]domain.Post, error)
}

type CycleControl interface {
	RunCycle(ctx context.Context, req app.Request) (*domain.CycleRun, error)
	State() app.State
	Running() bool
	LastRun() (domain.CycleRun, bool)
}

type Acquirer interface {
	Acquire(ctx context.Context, location string) app.Acquisition
}

type ChatBot interface {
	Reply(message string) app.ChatReply
}

type Handlers struct {
	Posts  PostLister
	Cycles CycleControl
	Scrape Acquirer
	Chat   ChatBot
	// Feed serves the mobile websocket stream; nil disables the route.
	Feed http.Handler
	// TriggersPerMinute limits manual cycles per client IP; 0 disables it.
	TriggersPerMinute int
	// PostsLimit is the /v1/posts page size when no limit is given.
	PostsLimit int
	Now        func() time.Time
}

type problem struct {
	Type   string `json:"type"`
	Title  string `json:"title"`
	Status int    `json:"status"`
	Detail string `json:"detail,omitempty"`
}

func (s *Server) MountHandlers(h *Handlers) {
	if h.Now == nil {
		h.Now = time.Now
	}
	if h.PostsLimit <= 0 || h.PostsLimit > app.MaxRecentPosts {
		h.PostsLimit = defaultPostsLimit
	}
	s.mux.Get("/", h.index)
	s.mux.Get("/healthz", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(200); _, _ = w.Write([]byte("ok")) })

	s.mux.Group(func(r chi.Router) {
		r.Use(Timeout(apiTimeout))
		r.Get("/v1/posts", h.listPosts)
		r.Get("/v1/cycles/state", h.cycleState)
		r.Post("/v1/chat", h.chat)
		r.Get("/dashboard", h.dashboard)
	})

	// Cycles and scrapes can outlive the API timeout.
	trigger := http.HandlerFunc(h.triggerCycle)
	if h.TriggersPerMinute > 0 {
		s.mux.With(httprate.LimitByIP(h.TriggersPerMinute, time.Minute)).Post("/v1/cycles", trigger)
	} else {
		s.mux.Post("/v1/cycles", trigger)
	}
	s.mux.Get("/v1/scrape/{location}", h.scrape)
	if h.Feed != nil {
		s.mux.Get("/v1/feed/ws", h.Feed.ServeHTTP)
	}
}

func writeProblem(w http.ResponseWriter, status int, title, detail string) {
	w.Header().Set("Content-Type", "application/problem+json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(problem{Type: "about:blank", Title: title, Status: status, Detail: detail}); err != nil {
		log.Error().Err(err).Msg("write JSON problem response failed")
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error().Err(err).Msg("write JSON response failed")
	}
}

// decodeBody reads an optional JSON body into dst and validates it.
func decodeBody(r *http.Request, dst any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, 64<<10))
	if err := dec.Decode(dst); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return shared.Validate(dst)
}

// calcETagAndBody marshals once and hashes once, returning both ETag and body.
func calcETagAndBody(v any) (string, []byte) {
	body, err := json.Marshal(v)
	if err != nil {
		log.Error().Err(err).Msg("failed to marshal object for ETag/body")
		return "", nil
	}
	sum := sha1.Sum(body)
	etag := `W/"` + hex.EncodeToString(sum[:]) + `"`
	return etag, body
}

func (h *Handlers) index(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"message": "Hotel publishing agent is running",
		"status":  "ok",
		"time":    h.Now().UTC(),
	})
}

func (h *Handlers) listPosts(w http.ResponseWriter, r *http.Request) {
	limit := h.PostsLimit
	if ls := r.URL.Query().Get("limit"); ls != "" {
		l, err := strconv.Atoi(ls)
		if err != nil || l <= 0 || l > app.MaxRecentPosts {
			writeProblem(w, http.StatusBadRequest, "Invalid limit",
				"limit must be an integer between 1 and "+strconv.Itoa(app.MaxRecentPosts))
			return
		}
		limit = l
	}

	posts, err := h.Posts.RecentPosts(r.Context(), limit)
	if err != nil {
		log.Error().Err(err).Msg("list posts failed")
		writeProblem(w, http.StatusInternalServerError, "Internal Server Error", "could not load posts")
		return
	}
	if posts == nil {
		posts = []domain.Post{}
	}

	etag, body := calcETagAndBody(posts)
	// If client already has this version, short-circuit.
	if inm := r.Header.Get("If-None-Match"); inm != "" && inm == etag {
		w.Header().Set("ETag", etag)
		w.WriteHeader(http.StatusNotModified)
		return
	}

	w.Header().Set("ETag", etag)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(body); err != nil {
		log.Error().Err(err).Msg("failed to write listPosts body")
	}
}

type triggerRequest struct {
	Location string `json:"location" validate:"omitempty,max=100"`
	Variety  bool   `json:"variety"`
}

func (h *Handlers) triggerCycle(w http.ResponseWriter, r *http.Request) {
	var req triggerRequest
	if err := decodeBody(r, &req); err != nil {
		writeProblem(w, http.StatusBadRequest, "Invalid request", err.Error())
		return
	}

	// A manual cycle is not cancelled when the client goes away.
	run, err := h.Cycles.RunCycle(context.WithoutCancel(r.Context()), app.Request{
		Trigger:  app.TriggerManual,
		Variety:  req.Variety,
		Location: strings.TrimSpace(req.Location),
	})
	switch {
	case errors.Is(err, app.ErrCycleInProgress):
		writeProblem(w, http.StatusConflict, "Cycle in progress", err.Error())
	case err != nil:
		var se *app.StageError
		title := "Cycle failed"
		if errors.As(err, &se) {
			title = "Cycle failed during " + string(se.Stage)
		}
		writeProblem(w, http.StatusInternalServerError, title, err.Error())
	default:
		writeJSON(w, http.StatusOK, run)
	}
}

type cycleStateResponse struct {
	State   app.State        `json:"state"`
	Running bool             `json:"running"`
	LastRun *domain.CycleRun `json:"lastRun,omitempty"`
}

func (h *Handlers) cycleState(w http.ResponseWriter, r *http.Request) {
	resp := cycleStateResponse{State: h.Cycles.State(), Running: h.Cycles.Running()}
	if last, ok := h.Cycles.LastRun(); ok {
		resp.LastRun = &last
	}
	writeJSON(w, http.StatusOK, resp)
}

type scrapeResponse struct {
	Location     string               `json:"location"`
	UsedFallback bool                 `json:"usedFallback"`
	Reason       string               `json:"reason,omitempty"`
	Count        int                  `json:"count"`
	Hotels       []domain.HotelRecord `json:"hotels"`
}

func (h *Handlers) scrape(w http.ResponseWriter, r *http.Request) {
	loc := strings.TrimSpace(chi.URLParam(r, "location"))
	if loc == "" || len(loc) > 100 {
		writeProblem(w, http.StatusBadRequest, "Invalid location", "location must be 1-100 characters")
		return
	}
	acq := h.Scrape.Acquire(r.Context(), loc)
	writeJSON(w, http.StatusOK, scrapeResponse{
		Location:     loc,
		UsedFallback: acq.UsedFallback,
		Reason:       acq.Reason,
		Count:        len(acq.Hotels),
		Hotels:       acq.Hotels,
	})
}

type chatRequest struct {
	Message string `json:"message" validate:"required,max=500"`
}

func (h *Handlers) chat(w http.ResponseWriter, r *http.Request) {
	var req chatRequest
	if err := decodeBody(r, &req); err != nil {
		writeProblem(w, http.StatusBadRequest, "Invalid request", err.Error())
		return
	}
	writeJSON(w, http.StatusOK, h.Chat.Reply(req.Message))
}
