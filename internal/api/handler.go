package api

import (
	"log/slog"
	"net/http"
	"sort"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	sr "github.com/example/studybot/internal/spaced_repetition"
	"github.com/example/studybot/pkg/models"
)

// MasteryReader is the read-only part of the tracker the API exposes
type MasteryReader interface {
	GetStats(subject string) sr.Stats
	GetReviewCandidates(allItems []models.VocabularyItem, subject string, includeDueSoon bool) []models.VocabularyItem
}

// Handler serves read-only snapshots of mastery state for widgets and dashboards
type Handler struct {
	tracker  MasteryReader
	catalogs map[string][]models.VocabularyItem
	log      *slog.Logger
}

// NewHandler creates a new Handler
func NewHandler(tracker MasteryReader, catalogs map[string][]models.VocabularyItem, log *slog.Logger) *Handler {
	if log == nil {
		log = slog.Default()
	}
	return &Handler{tracker: tracker, catalogs: catalogs, log: log.With(slog.String("component", "api"))}
}

// Router returns the HTTP routes
func (h *Handler) Router() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(h.requestLogger)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", h.health)
	r.Route("/v1/subjects", func(r chi.Router) {
		r.Get("/", h.listSubjects)
		r.Get("/{subject}/stats", h.subjectStats)
		r.Get("/{subject}/due", h.dueItems)
	})
	return r
}

// SubjectSummary describes one loaded subject
type SubjectSummary struct {
	Subject string `json:"subject"`
	Items   int    `json:"items"`
}

// StatsResponse counts a subject's items per mastery level. Untracked items count as new.
type StatsResponse struct {
	Subject string         `json:"subject"`
	Total   int            `json:"total"`
	Levels  map[string]int `json:"levels"`
}

// DueResponse lists the items due for review
type DueResponse struct {
	Subject        string                  `json:"subject"`
	IncludeDueSoon bool                    `json:"include_due_soon"`
	Count          int                     `json:"count"`
	Items          []models.VocabularyItem `json:"items"`
}

func (h *Handler) health(w http.ResponseWriter, r *http.Request) {
	respondWithJSON(w, r, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *Handler) listSubjects(w http.ResponseWriter, r *http.Request) {
	out := make([]SubjectSummary, 0, len(h.catalogs))
	for subject, items := range h.catalogs {
		out = append(out, SubjectSummary{Subject: subject, Items: len(items)})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Subject < out[j].Subject })
	respondWithJSON(w, r, http.StatusOK, out)
}

func (h *Handler) subjectStats(w http.ResponseWriter, r *http.Request) {
	subject := chi.URLParam(r, "subject")
	catalog, ok := h.catalogs[subject]
	if !ok {
		respondWithError(w, r, http.StatusNotFound, "unknown subject")
		return
	}

	stats := h.tracker.GetStats(subject).WithCatalogSize(len(catalog))
	levels := make(map[string]int, len(models.MasteryLevels))
	for _, level := range models.MasteryLevels {
		levels[level.String()] = stats[level]
	}
	respondWithJSON(w, r, http.StatusOK, StatsResponse{Subject: subject, Total: len(catalog), Levels: levels})
}

func (h *Handler) dueItems(w http.ResponseWriter, r *http.Request) {
	subject := chi.URLParam(r, "subject")
	catalog, ok := h.catalogs[subject]
	if !ok {
		respondWithError(w, r, http.StatusNotFound, "unknown subject")
		return
	}

	soon := false
	if raw := r.URL.Query().Get("soon"); raw != "" {
		var err error
		if soon, err = strconv.ParseBool(raw); err != nil {
			respondWithError(w, r, http.StatusBadRequest, "soon must be a boolean")
			return
		}
	}

	items := h.tracker.GetReviewCandidates(catalog, subject, soon)
	if items == nil {
		items = []models.VocabularyItem{}
	}
	respondWithJSON(w, r, http.StatusOK, DueResponse{Subject: subject, IncludeDueSoon: soon, Count: len(items), Items: items})
}

// requestLogger logs every request through slog
func (h *Handler) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		h.log.DebugContext(r.Context(), "request",
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
			slog.Int("status", ww.Status()),
			slog.Duration("duration", time.Since(start)),
			slog.String("request_id", middleware.GetReqID(r.Context())))
	})
}
