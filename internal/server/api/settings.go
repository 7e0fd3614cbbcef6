package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/ayusman/magiccandle/internal/blow"
	"github.com/ayusman/magiccandle/internal/store"
)

// Controller is the running detector the settings apply to.
type Controller interface {
	IsEnabled() bool
	SetEnabled(enabled bool)
	Thresholds() blow.Thresholds
	SetThresholds(t blow.Thresholds)
}

// SettingsHandler serves GET and PUT /api/settings.
type SettingsHandler struct {
	store *store.Store
	ctrl  Controller
}

// NewSettingsHandler creates a SettingsHandler. Updated thresholds are
// persisted to s when it is non-nil and always pushed to ctrl.
func NewSettingsHandler(s *store.Store, ctrl Controller) *SettingsHandler {
	return &SettingsHandler{store: s, ctrl: ctrl}
}

type settingsResponse struct {
	Enabled      bool  `json:"enabled"`
	MouthOpen    int   `json:"mouth_open"`
	CheekShrink  int   `json:"cheek_shrink"`
	ResetAfterMs int64 `json:"reset_after_ms"`
	HistorySize  int   `json:"history_size"`
}

// updateSettingsRequest uses pointers so omitted fields keep their value.
type updateSettingsRequest struct {
	Enabled      *bool  `json:"enabled"`
	MouthOpen    *int   `json:"mouth_open"`
	CheekShrink  *int   `json:"cheek_shrink"`
	ResetAfterMs *int64 `json:"reset_after_ms"`
	HistorySize  *int   `json:"history_size"`
}

func (h *SettingsHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		writeJSON(w, http.StatusOK, h.current())
	case http.MethodPut:
		h.update(w, r)
	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

func (h *SettingsHandler) current() settingsResponse {
	t := h.ctrl.Thresholds()
	return settingsResponse{
		Enabled:      h.ctrl.IsEnabled(),
		MouthOpen:    t.MouthOpen,
		CheekShrink:  t.CheekShrink,
		ResetAfterMs: t.ResetAfter.Milliseconds(),
		HistorySize:  t.HistorySize,
	}
}

// update handles PUT /api/settings.
func (h *SettingsHandler) update(w http.ResponseWriter, r *http.Request) {
	var req updateSettingsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON")
		return
	}

	t := h.ctrl.Thresholds()
	changed := false

	for _, f := range []struct {
		name string
		src  *int
		dst  *int
	}{
		{"mouth_open", req.MouthOpen, &t.MouthOpen},
		{"cheek_shrink", req.CheekShrink, &t.CheekShrink},
		{"history_size", req.HistorySize, &t.HistorySize},
	} {
		if f.src == nil {
			continue
		}
		if *f.src <= 0 {
			writeError(w, http.StatusBadRequest, f.name+" must be positive")
			return
		}
		*f.dst = *f.src
		changed = true
	}

	if req.ResetAfterMs != nil {
		if *req.ResetAfterMs <= 0 {
			writeError(w, http.StatusBadRequest, "reset_after_ms must be positive")
			return
		}
		t.ResetAfter = time.Duration(*req.ResetAfterMs) * time.Millisecond
		changed = true
	}

	if changed {
		if h.store != nil {
			if err := h.store.Settings().SaveThresholds(t); err != nil {
				writeError(w, http.StatusInternalServerError, "Failed to save settings")
				return
			}
		}
		h.ctrl.SetThresholds(t)
	}

	if req.Enabled != nil {
		h.ctrl.SetEnabled(*req.Enabled)
	}

	writeJSON(w, http.StatusOK, h.current())
}
