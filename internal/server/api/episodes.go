package api

import (
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/ayusman/magiccandle/internal/store"
)

// DefaultEpisodeLimit caps GET /api/episodes when no limit is given.
const DefaultEpisodeLimit = 50

// EpisodeHandler handles HTTP requests for episode resources.
type EpisodeHandler struct {
	store *store.Store
}

// NewEpisodeHandler creates a new EpisodeHandler with the given store.
func NewEpisodeHandler(s *store.Store) *EpisodeHandler {
	return &EpisodeHandler{store: s}
}

// ServeHTTP routes /api/episodes and /api/episodes/{id}.
func (h *EpisodeHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimPrefix(r.URL.Path, "/api/episodes")
	path = strings.TrimPrefix(path, "/")

	if path == "" {
		if r.Method != http.MethodGet {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}
		h.list(w, r)
		return
	}

	id := path
	switch r.Method {
	case http.MethodGet:
		h.get(w, r, id)
	case http.MethodDelete:
		h.delete(w, r, id)
	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

type episodeResponse struct {
	ID         string  `json:"id"`
	StartedAt  string  `json:"started_at"`
	ResetAt    *string `json:"reset_at"`
	BlowCount  int     `json:"blow_count"`
	MouthOpen  int     `json:"mouth_open"`
	CheekWidth int     `json:"cheek_width"`
	MaxCheek   int     `json:"max_cheek"`
}

type listEpisodesResponse struct {
	Episodes []episodeResponse `json:"episodes"`
	Total    int               `json:"total"`
}

func toEpisodeResponse(e *store.Episode) episodeResponse {
	resp := episodeResponse{
		ID:         e.ID,
		StartedAt:  e.StartedAt.Format(time.RFC3339Nano),
		BlowCount:  e.BlowCount,
		MouthOpen:  e.MouthOpen,
		CheekWidth: e.CheekWidth,
		MaxCheek:   e.MaxCheek,
	}
	if e.ResetAt != nil {
		s := e.ResetAt.Format(time.RFC3339Nano)
		resp.ResetAt = &s
	}
	return resp
}

// list handles GET /api/episodes[?limit=N], newest first.
func (h *EpisodeHandler) list(w http.ResponseWriter, r *http.Request) {
	limit := DefaultEpisodeLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			writeError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = n
	}

	episodes, err := h.store.Episodes().List(limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list episodes")
		return
	}

	total, err := h.store.Episodes().Count()
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to count episodes")
		return
	}

	response := listEpisodesResponse{
		Episodes: make([]episodeResponse, 0, len(episodes)),
		Total:    total,
	}
	for _, e := range episodes {
		response.Episodes = append(response.Episodes, toEpisodeResponse(e))
	}

	writeJSON(w, http.StatusOK, response)
}

// get handles GET /api/episodes/{id}.
func (h *EpisodeHandler) get(w http.ResponseWriter, r *http.Request, id string) {
	e, err := h.store.Episodes().GetByID(id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "Episode not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "Failed to get episode")
		return
	}

	writeJSON(w, http.StatusOK, toEpisodeResponse(e))
}

// delete handles DELETE /api/episodes/{id}.
func (h *EpisodeHandler) delete(w http.ResponseWriter, r *http.Request, id string) {
	if err := h.store.Episodes().Delete(id); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "Episode not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "Failed to delete episode")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
