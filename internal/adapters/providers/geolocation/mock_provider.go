package geolocation

import (
	"context"
	"errors"
	"strings"

	"github.com/zatekoja/carecompanion/internal/domain/entities"
	"github.com/zatekoja/carecompanion/internal/domain/providers"
)

// MockGeocoder resolves a fixed table of city names. It backs offline mode
// and tests.
type MockGeocoder struct{}

var mockPlaces = []struct {
	key   string
	name  string
	coord entities.Coordinate
}{
	{"san francisco", "San Francisco, California, United States", entities.Coordinate{Lat: 37.7749, Lng: -122.4194}},
	{"oakland", "Oakland, California, United States", entities.Coordinate{Lat: 37.8044, Lng: -122.2712}},
	{"new york", "New York, United States", entities.Coordinate{Lat: 40.7128, Lng: -74.0060}},
	{"los angeles", "Los Angeles, California, United States", entities.Coordinate{Lat: 34.0522, Lng: -118.2437}},
	{"chicago", "Chicago, Illinois, United States", entities.Coordinate{Lat: 41.8781, Lng: -87.6298}},
	{"houston", "Houston, Texas, United States", entities.Coordinate{Lat: 29.7604, Lng: -95.3698}},
	{"lagos", "Lagos, Nigeria", entities.Coordinate{Lat: 6.5244, Lng: 3.3792}},
}

// Geocode returns the first table entry whose name appears in query, nil otherwise
func (MockGeocoder) Geocode(ctx context.Context, query string) (*providers.GeocodeResult, error) {
	lower := strings.ToLower(query)
	for _, p := range mockPlaces {
		if strings.Contains(lower, p.key) {
			return &providers.GeocodeResult{Coordinates: p.coord, DisplayName: p.name}, nil
		}
	}
	return nil, nil
}

// ErrOffline is returned by offline stand-ins for network services
var ErrOffline = errors.New("network lookups disabled")

// OfflineIPLocator always fails so the resolver falls through to its default
type OfflineIPLocator struct{}

// Locate always returns ErrOffline
func (OfflineIPLocator) Locate(ctx context.Context) (*entities.Coordinate, error) {
	return nil, ErrOffline
}
