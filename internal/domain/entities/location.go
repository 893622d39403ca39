package entities

import (
	"time"

	"github.com/google/uuid"
)

// LocationSource names the strategy that produced the current location
type LocationSource string

const (
	LocationSourceDevice  LocationSource = "device"
	LocationSourceIP      LocationSource = "ip"
	LocationSourceGeocode LocationSource = "geocode"
	LocationSourceDefault LocationSource = "default"
)

// LocationState is the per-session location view
type LocationState struct {
	Current           *Coordinate    `json:"current"`
	Source            LocationSource `json:"source,omitempty"`
	IsLiveTracking    bool           `json:"is_live_tracking"`
	LastError         string         `json:"last_error,omitempty"`
	SearchedPlaceName string         `json:"searched_place_name,omitempty"`
}

// LocatorEventType represents the type of locator event
type LocatorEventType string

const (
	LocatorEventLocationUpdated     LocatorEventType = "location_updated"
	LocatorEventFacilitiesRefreshed LocatorEventType = "facilities_refreshed"
	LocatorEventTrackingStopped     LocatorEventType = "tracking_stopped"
)

// LocatorEvent is published when a session's location or results change
// without an explicit request, e.g. from live tracking.
type LocatorEvent struct {
	ID            string           `json:"id"`
	SessionID     string           `json:"session_id"`
	EventType     LocatorEventType `json:"event_type"`
	Timestamp     time.Time        `json:"timestamp"`
	Location      *Coordinate      `json:"location,omitempty"`
	FacilityCount int              `json:"facility_count"`
	Message       string           `json:"message,omitempty"`
}

// NewLocatorEvent creates a new locator event
func NewLocatorEvent(sessionID string, eventType LocatorEventType, location *Coordinate) *LocatorEvent {
	return &LocatorEvent{
		ID:        uuid.NewString(),
		SessionID: sessionID,
		EventType: eventType,
		Timestamp: time.Now(),
		Location:  location,
	}
}
