package handlers

import (
	"errors"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/zatekoja/carecompanion/internal/application/services"
	"github.com/zatekoja/carecompanion/internal/domain/entities"
)

// MedicationRegistry holds the live medication sessions
type MedicationRegistry = services.SessionRegistry[*services.MedicationSession]

// MedicationHandler handles medication recommendation endpoints
type MedicationHandler struct {
	service  *services.MedicationService
	sessions *MedicationRegistry
	debounce time.Duration
}

// NewMedicationHandler creates a new medication handler
func NewMedicationHandler(service *services.MedicationService, sessions *MedicationRegistry, debounce time.Duration) *MedicationHandler {
	return &MedicationHandler{service: service, sessions: sessions, debounce: debounce}
}

type recommendRequest struct {
	Text    string               `json:"text"`
	Profile entities.UserProfile `json:"profile"`
}

type classifyRequest struct {
	MedicationID string               `json:"medication_id"`
	Profile      entities.UserProfile `json:"profile"`
}

type createMedicationSessionRequest struct {
	Profile entities.UserProfile `json:"profile"`
}

type sessionTextRequest struct {
	Text string `json:"text"`
}

// Recommend handles POST /api/medications/recommend
func (h *MedicationHandler) Recommend(w http.ResponseWriter, r *http.Request) {
	var req recommendRequest
	if err := decodeJSON(r, &req); err != nil {
		respondWithAppError(w, err)
		return
	}

	rec, err := h.service.Recommend(r.Context(), services.RecommendRequest{Text: req.Text, Profile: req.Profile})
	if err != nil {
		respondWithAppError(w, err)
		return
	}
	respondWithJSON(w, http.StatusOK, rec)
}

// Classify handles POST /api/medications/classify
func (h *MedicationHandler) Classify(w http.ResponseWriter, r *http.Request) {
	var req classifyRequest
	if err := decodeJSON(r, &req); err != nil {
		respondWithAppError(w, err)
		return
	}
	if req.MedicationID == "" {
		respondWithError(w, http.StatusBadRequest, "medication_id is required")
		return
	}

	med, verdict, err := h.service.Classify(req.MedicationID, req.Profile)
	if err != nil {
		respondWithAppError(w, err)
		return
	}
	respondWithJSON(w, http.StatusOK, map[string]interface{}{
		"medication": med,
		"safety":     verdict,
	})
}

// CreateSession handles POST /api/medications/sessions
func (h *MedicationHandler) CreateSession(w http.ResponseWriter, r *http.Request) {
	var req createMedicationSessionRequest
	if err := decodeJSON(r, &req); err != nil {
		respondWithAppError(w, err)
		return
	}

	id := uuid.NewString()
	session := services.NewMedicationSession(id, req.Profile, h.service, h.debounce)
	h.sessions.Add(id, session)

	respondWithJSON(w, http.StatusCreated, session.Snapshot())
}

// GetSession handles GET /api/medications/sessions/{id}
func (h *MedicationHandler) GetSession(w http.ResponseWriter, r *http.Request) {
	session, ok := h.session(w, r)
	if !ok {
		return
	}
	respondWithJSON(w, http.StatusOK, session.Snapshot())
}

// DeleteSession handles DELETE /api/medications/sessions/{id}
func (h *MedicationHandler) DeleteSession(w http.ResponseWriter, r *http.Request) {
	if !h.sessions.Remove(r.PathValue("id")) {
		respondWithError(w, http.StatusNotFound, "session not found")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Input handles POST /api/medications/sessions/{id}/input. The search runs
// after the debounce period; poll the session for its result.
func (h *MedicationHandler) Input(w http.ResponseWriter, r *http.Request) {
	session, ok := h.session(w, r)
	if !ok {
		return
	}

	var req sessionTextRequest
	if err := decodeJSON(r, &req); err != nil {
		respondWithAppError(w, err)
		return
	}
	respondWithJSON(w, http.StatusAccepted, session.Input(req.Text))
}

// Search handles POST /api/medications/sessions/{id}/search
func (h *MedicationHandler) Search(w http.ResponseWriter, r *http.Request) {
	session, ok := h.session(w, r)
	if !ok {
		return
	}

	var req sessionTextRequest
	if err := decodeJSON(r, &req); err != nil {
		respondWithAppError(w, err)
		return
	}

	snap, err := session.SearchNow(r.Context(), req.Text)
	if errors.Is(err, services.ErrSuperseded) {
		// A newer search owns the session; report the state as it stands
		respondWithJSON(w, http.StatusConflict, snap)
		return
	}
	if err != nil {
		respondWithAppError(w, err)
		return
	}
	respondWithJSON(w, http.StatusOK, snap)
}

func (h *MedicationHandler) session(w http.ResponseWriter, r *http.Request) (*services.MedicationSession, bool) {
	session, ok := h.sessions.Get(r.PathValue("id"))
	if !ok {
		respondWithError(w, http.StatusNotFound, "session not found")
		return nil, false
	}
	return session, true
}
