package handlers

import (
	"net/http"
	"strings"

	"github.com/zatekoja/carecompanion/internal/application/services"
)

// GeolocationHandler handles geocoding endpoints
type GeolocationHandler struct {
	resolver *services.LocationResolver
}

// NewGeolocationHandler creates a new geolocation handler
func NewGeolocationHandler(resolver *services.LocationResolver) *GeolocationHandler {
	return &GeolocationHandler{resolver: resolver}
}

// Geocode handles GET /api/geocode?q=...
func (h *GeolocationHandler) Geocode(w http.ResponseWriter, r *http.Request) {
	query := strings.TrimSpace(r.URL.Query().Get("q"))
	if query == "" {
		respondWithError(w, http.StatusBadRequest, "q parameter is required")
		return
	}

	place, err := h.resolver.GeocodeFreeText(r.Context(), query)
	if err != nil {
		respondWithAppError(w, err)
		return
	}

	// No match is a successful lookup with a null result
	respondWithJSON(w, http.StatusOK, map[string]interface{}{
		"query":  query,
		"result": place,
	})
}
