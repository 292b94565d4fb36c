package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"timed-quiz/internal/app"
	"timed-quiz/internal/domain"
	"timed-quiz/internal/logging"

	"github.com/go-chi/chi/v5"
)

// RESTHandler exposes the quiz intents as plain HTTP calls. The countdown keeps
// running server side; clients poll GET /sessions/{id}.
type RESTHandler struct {
	service *app.QuizService
}

func NewRESTHandler(service *app.QuizService) *RESTHandler {
	return &RESTHandler{service: service}
}

type selectRequest struct {
	Option *string `json:"option"`
	Index  *int    `json:"index"`
}

type highScoreResponse struct {
	HighScore int `json:"highScore"`
}

func (h *RESTHandler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Post("/sessions", h.handleStart)
	r.Route("/sessions/{id}", func(r chi.Router) {
		r.Get("/", h.handleView)
		r.Delete("/", h.handleEnd)
		r.Post("/select", h.handleSelect)
		r.Post("/next", h.intent(h.service.Next))
		r.Post("/previous", h.intent(h.service.Previous))
		r.Post("/skip", h.intent(h.service.Skip))
		r.Get("/result", h.handleResult)
	})
	r.Get("/highscore", h.handleHighScore)
	return r
}

func (h *RESTHandler) handleStart(w http.ResponseWriter, r *http.Request) {
	view, err := h.service.Start(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, view)
}

func (h *RESTHandler) handleView(w http.ResponseWriter, r *http.Request) {
	view, err := h.service.View(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

func (h *RESTHandler) handleSelect(w http.ResponseWriter, r *http.Request) {
	var req selectRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid select payload", http.StatusBadRequest)
		return
	}

	id := chi.URLParam(r, "id")
	var (
		view domain.View
		err  error
	)
	switch {
	case req.Option != nil:
		view, err = h.service.Select(r.Context(), id, *req.Option)
	case req.Index != nil:
		view, err = h.service.SelectIndex(r.Context(), id, *req.Index)
	default:
		http.Error(w, "option or index required", http.StatusBadRequest)
		return
	}
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

func (h *RESTHandler) intent(op func(ctx context.Context, id string) (domain.View, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		view, err := op(r.Context(), chi.URLParam(r, "id"))
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, view)
	}
}

func (h *RESTHandler) handleResult(w http.ResponseWriter, r *http.Request) {
	summary, err := h.service.Summary(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

func (h *RESTHandler) handleEnd(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if _, err := h.service.View(r.Context(), id); err != nil {
		writeError(w, r, err)
		return
	}
	h.service.End(r.Context(), id)
	w.WriteHeader(http.StatusNoContent)
}

func (h *RESTHandler) handleHighScore(w http.ResponseWriter, r *http.Request) {
	high, err := h.service.HighScore(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, highScoreResponse{HighScore: high})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError maps domain errors to status codes.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, domain.ErrSessionNotFound):
		status = http.StatusNotFound
	case errors.Is(err, domain.ErrOptionNotFound):
		status = http.StatusBadRequest
	case errors.Is(err, domain.ErrInvalidState):
		status = http.StatusConflict
	case errors.Is(err, domain.ErrFetch), errors.Is(err, domain.ErrNoQuestions):
		status = http.StatusBadGateway
	}
	if status == http.StatusInternalServerError {
		logging.FromContext(r.Context()).WithError(err).Error("request failed")
	}
	http.Error(w, err.Error(), status)
}
