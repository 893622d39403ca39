package handlers

import (
	"net"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/zatekoja/carecompanion/internal/adapters/providers/geolocation"
	"github.com/zatekoja/carecompanion/internal/application/services"
	"github.com/zatekoja/carecompanion/internal/domain/entities"
	"github.com/zatekoja/carecompanion/internal/domain/providers"
	apperrors "github.com/zatekoja/carecompanion/pkg/errors"
)

// LocatorSession pairs a locator session with the relay its client pushes
// live positions into
type LocatorSession struct {
	*services.LocatorSession
	relay *geolocation.RelayPositioner
}

// Close releases the session and every watch on its relay
func (s *LocatorSession) Close() {
	s.LocatorSession.Close()
	s.relay.Detach()
}

// LocatorRegistry holds the live locator sessions
type LocatorRegistry = services.SessionRegistry[*LocatorSession]

// LocatorHandler handles hospital locator session endpoints
type LocatorHandler struct {
	deps     services.LocatorDeps
	sessions *LocatorRegistry
}

// NewLocatorHandler creates a new locator handler
func NewLocatorHandler(deps services.LocatorDeps, sessions *LocatorRegistry) *LocatorHandler {
	return &LocatorHandler{deps: deps, sessions: sessions}
}

// createLocatorRequest may carry the client's first device fix or failure.
// Without one the session starts from the network then default chain.
type createLocatorRequest struct {
	Profile entities.UserProfile `json:"profile"`
	Device  *positionRequest     `json:"device"`
}

// positionRequest is either a fix or a device error code such as
// "permission_denied"
type positionRequest struct {
	Lat     *float64 `json:"lat"`
	Lng     *float64 `json:"lng"`
	Error   string   `json:"error"`
	Message string   `json:"message"`
}

type searchRequest struct {
	Query         string  `json:"query"`
	Specialty     *string `json:"specialty"`
	EmergencyOnly *bool   `json:"emergency_only"`
}

type facilityView struct {
	entities.Facility
	DirectionsURL string `json:"directions_url"`
	CallURL       string `json:"call_url"`
}

type locatorResponse struct {
	services.LocatorSnapshot
	Facilities []facilityView `json:"facilities"`
}

func newLocatorResponse(snap services.LocatorSnapshot) locatorResponse {
	views := make([]facilityView, len(snap.Facilities))
	for i := range snap.Facilities {
		f := snap.Facilities[i]
		views[i] = facilityView{Facility: f, DirectionsURL: f.DirectionsURL(), CallURL: f.CallURL()}
	}
	return locatorResponse{LocatorSnapshot: snap, Facilities: views}
}

// CreateSession handles POST /api/locator/sessions
func (h *LocatorHandler) CreateSession(w http.ResponseWriter, r *http.Request) {
	var req createLocatorRequest
	if err := decodeJSON(r, &req); err != nil {
		respondWithAppError(w, err)
		return
	}

	var device providers.DevicePositioner = geolocation.ReportedPosition{}
	if req.Device != nil {
		reported, err := req.Device.positioner()
		if err != nil {
			respondWithAppError(w, err)
			return
		}
		if reported != nil {
			device = reported
		}
	}

	id := uuid.NewString()
	relay := geolocation.NewRelayPositioner()
	session := &LocatorSession{
		LocatorSession: services.NewLocatorSession(id, req.Profile, relay, h.deps),
		relay:          relay,
	}
	session.SetClientIP(clientIP(r))
	h.sessions.Add(id, session)

	snap, err := session.RequestLocation(r.Context(), device)
	if err != nil {
		h.sessions.Remove(id)
		respondWithAppError(w, err)
		return
	}
	respondWithJSON(w, http.StatusCreated, newLocatorResponse(snap))
}

// GetSession handles GET /api/locator/sessions/{id}
func (h *LocatorHandler) GetSession(w http.ResponseWriter, r *http.Request) {
	session, ok := h.session(w, r)
	if !ok {
		return
	}
	respondWithJSON(w, http.StatusOK, newLocatorResponse(session.Snapshot()))
}

// DeleteSession handles DELETE /api/locator/sessions/{id}
func (h *LocatorHandler) DeleteSession(w http.ResponseWriter, r *http.Request) {
	if !h.sessions.Remove(r.PathValue("id")) {
		respondWithError(w, http.StatusNotFound, "session not found")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// RequestLocation handles POST /api/locator/sessions/{id}/location. The body
// carries the client's own one-shot fix or its failure; an empty body waits
// for the next pushed position.
func (h *LocatorHandler) RequestLocation(w http.ResponseWriter, r *http.Request) {
	session, ok := h.session(w, r)
	if !ok {
		return
	}

	var req positionRequest
	if err := decodeJSON(r, &req); err != nil {
		respondWithAppError(w, err)
		return
	}

	positioner, err := req.positioner()
	if err != nil {
		respondWithAppError(w, err)
		return
	}

	snap, err := session.RequestLocation(r.Context(), positioner)
	if err != nil {
		respondWithAppError(w, err)
		return
	}
	respondWithJSON(w, http.StatusOK, newLocatorResponse(snap))
}

// Search handles POST /api/locator/sessions/{id}/search
func (h *LocatorHandler) Search(w http.ResponseWriter, r *http.Request) {
	session, ok := h.session(w, r)
	if !ok {
		return
	}

	var req searchRequest
	if err := decodeJSON(r, &req); err != nil {
		respondWithAppError(w, err)
		return
	}

	search := services.SearchRequest{Query: req.Query}
	if req.Specialty != nil || req.EmergencyOnly != nil {
		filters := session.Snapshot().Filters
		if req.Specialty != nil {
			filters.Specialty = *req.Specialty
		}
		if req.EmergencyOnly != nil {
			filters.EmergencyOnly = *req.EmergencyOnly
		}
		search.Filters = &filters
	}

	snap, err := session.Search(r.Context(), search)
	if err != nil {
		respondWithAppError(w, err)
		return
	}
	respondWithJSON(w, http.StatusOK, newLocatorResponse(snap))
}

// UpdateFilters handles PATCH /api/locator/sessions/{id}/filters
func (h *LocatorHandler) UpdateFilters(w http.ResponseWriter, r *http.Request) {
	session, ok := h.session(w, r)
	if !ok {
		return
	}

	filters := session.Snapshot().Filters
	if err := decodeJSON(r, &filters); err != nil {
		respondWithAppError(w, err)
		return
	}

	snap, err := session.UpdateFilters(filters)
	if err != nil {
		respondWithAppError(w, err)
		return
	}
	respondWithJSON(w, http.StatusOK, newLocatorResponse(snap))
}

// StartTracking handles POST /api/locator/sessions/{id}/tracking
func (h *LocatorHandler) StartTracking(w http.ResponseWriter, r *http.Request) {
	session, ok := h.session(w, r)
	if !ok {
		return
	}

	snap, err := session.StartTracking()
	if err != nil {
		respondWithAppError(w, err)
		return
	}
	respondWithJSON(w, http.StatusOK, newLocatorResponse(snap))
}

// StopTracking handles DELETE /api/locator/sessions/{id}/tracking
func (h *LocatorHandler) StopTracking(w http.ResponseWriter, r *http.Request) {
	session, ok := h.session(w, r)
	if !ok {
		return
	}
	respondWithJSON(w, http.StatusOK, newLocatorResponse(session.StopTracking()))
}

// PushPosition handles POST /api/locator/sessions/{id}/positions. Each push
// reaches the session's live watch, if any.
func (h *LocatorHandler) PushPosition(w http.ResponseWriter, r *http.Request) {
	session, ok := h.session(w, r)
	if !ok {
		return
	}

	var req positionRequest
	if err := decodeJSON(r, &req); err != nil {
		respondWithAppError(w, err)
		return
	}

	delivered := 0
	if req.Error != "" {
		delivered = session.relay.PushError(req.positionError())
	} else {
		coord, err := req.coordinate()
		if err != nil {
			respondWithAppError(w, err)
			return
		}
		delivered = session.relay.Push(coord)
	}

	respondWithJSON(w, http.StatusAccepted, map[string]interface{}{
		"delivered": delivered,
		"session":   newLocatorResponse(session.Snapshot()),
	})
}

// Exists reports whether a locator session is live
func (h *LocatorHandler) Exists(id string) bool {
	_, ok := h.sessions.Get(id)
	return ok
}

func (h *LocatorHandler) session(w http.ResponseWriter, r *http.Request) (*LocatorSession, bool) {
	session, ok := h.sessions.Get(r.PathValue("id"))
	if !ok {
		respondWithError(w, http.StatusNotFound, "session not found")
		return nil, false
	}
	session.SetClientIP(clientIP(r))
	return session, true
}

// clientIP returns the caller's public address: the first X-Forwarded-For
// hop, else X-Real-IP, else the peer. Addresses an IP lookup cannot place,
// such as loopback or private ranges, yield "".
func clientIP(r *http.Request) string {
	var candidates []string
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		first, _, _ := strings.Cut(fwd, ",")
		candidates = append(candidates, strings.TrimSpace(first))
	}
	candidates = append(candidates, strings.TrimSpace(r.Header.Get("X-Real-IP")))
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		candidates = append(candidates, host)
	} else {
		candidates = append(candidates, r.RemoteAddr)
	}

	for _, c := range candidates {
		ip := net.ParseIP(c)
		if ip == nil {
			continue
		}
		if ip.IsLoopback() || ip.IsPrivate() || ip.IsUnspecified() || ip.IsLinkLocalUnicast() {
			return ""
		}
		return ip.String()
	}
	return ""
}

// positioner replays the reported fix or failure. An empty request returns
// nil so the session waits for its next pushed position.
func (p positionRequest) positioner() (providers.DevicePositioner, error) {
	switch {
	case p.Error != "":
		return geolocation.ReportedPosition{Err: p.positionError()}, nil
	case p.Lat != nil || p.Lng != nil:
		coord, err := p.coordinate()
		if err != nil {
			return nil, err
		}
		return geolocation.ReportedPosition{Coordinate: &coord}, nil
	}
	return nil, nil
}

func (p positionRequest) coordinate() (entities.Coordinate, error) {
	if p.Lat == nil || p.Lng == nil {
		return entities.Coordinate{}, apperrors.NewValidationError("lat and lng are required")
	}
	if *p.Lat < -90 || *p.Lat > 90 || *p.Lng < -180 || *p.Lng > 180 {
		return entities.Coordinate{}, apperrors.NewValidationError("lat or lng out of range")
	}
	return entities.Coordinate{Lat: *p.Lat, Lng: *p.Lng}, nil
}

func (p positionRequest) positionError() *providers.PositionError {
	return &providers.PositionError{
		Code:    providers.ParsePositionErrorCode(strings.ToLower(strings.TrimSpace(p.Error))),
		Message: p.Message,
	}
}
