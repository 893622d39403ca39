package entities

import (
	"fmt"
	"strings"

	"github.com/zatekoja/carecompanion/pkg/geo"
)

// Coordinate represents geographical coordinates
type Coordinate = geo.Coordinate

// FacilityType classifies a healthcare facility
type FacilityType string

const (
	FacilityTypeGeneralHospital FacilityType = "General Hospital"
	FacilityTypeSpecialtyClinic FacilityType = "Specialty Clinic"
	FacilityTypeEmergencyCare   FacilityType = "Emergency Care"
	FacilityTypeUrgentCare      FacilityType = "Urgent Care"
)

// FacilitySource records where a facility record came from
type FacilitySource string

const (
	FacilitySourceLive      FacilitySource = "live"
	FacilitySourceSynthetic FacilitySource = "synthetic"
	FacilitySourceSeed      FacilitySource = "seed"
)

// Facility represents a healthcare facility in a locator result set.
// IDs are unique within one result set only.
type Facility struct {
	ID                string         `json:"id" yaml:"id"`
	Name              string         `json:"name" yaml:"name"`
	Type              FacilityType   `json:"type" yaml:"type"`
	DistanceMiles     float64        `json:"distance_miles" yaml:"-"`
	Rating            float64        `json:"rating" yaml:"rating"`
	Address           string         `json:"address" yaml:"address"`
	Phone             string         `json:"phone" yaml:"phone"`
	Specialties       []string       `json:"specialties" yaml:"specialties"`
	EmergencyServices bool           `json:"emergency_services" yaml:"emergency_services"`
	OperatingHours    string         `json:"operating_hours" yaml:"operating_hours"`
	EstimatedWaitTime string         `json:"estimated_wait_time" yaml:"estimated_wait_time"`
	AcceptsInsurance  bool           `json:"accepts_insurance" yaml:"accepts_insurance"`
	Coordinates       Coordinate     `json:"coordinates" yaml:"coordinates"`
	Source            FacilitySource `json:"source,omitempty" yaml:"-"`
}

// HasSpecialty reports whether the facility lists the specialty exactly
func (f *Facility) HasSpecialty(name string) bool {
	for _, s := range f.Specialties {
		if s == name {
			return true
		}
	}
	return false
}

// DirectionsURL returns a maps link that opens directions to the facility
func (f *Facility) DirectionsURL() string {
	return fmt.Sprintf("https://www.google.com/maps/search/?api=1&query=%g,%g", f.Coordinates.Lat, f.Coordinates.Lng)
}

// CallURL returns a tel: link for the facility phone number
func (f *Facility) CallURL() string {
	return "tel:" + strings.ReplaceAll(f.Phone, " ", "")
}

// Clone returns a copy that shares no slices with f
func (f Facility) Clone() Facility {
	f.Specialties = append([]string(nil), f.Specialties...)
	return f
}

// FacilityFilters are the user-controlled result filters
type FacilityFilters struct {
	Specialty     string `json:"specialty"`
	EmergencyOnly bool   `json:"emergency_only"`
}

// SpecialtyTerm returns the normalized specialty filter, empty when unset or "all"
func (f FacilityFilters) SpecialtyTerm() string {
	term := strings.ToLower(strings.TrimSpace(f.Specialty))
	if term == "all" {
		return ""
	}
	return term
}
