// Package model defines the center records shared by the crawler, store, and server.
package model

import (
	"time"

	"github.com/rotisserie/eris"
)

// Center is a persisted mental-health center record.
type Center struct {
	ID          int64     `json:"id"`
	Name        string    `json:"name"`
	Phone       string    `json:"phone,omitempty"`
	Address     string    `json:"address,omitempty"`
	Website     string    `json:"website,omitempty"`
	Lat         *float64  `json:"lat"`
	Lng         *float64  `json:"lng"`
	IsOpen      bool      `json:"is_open"`
	Region      string    `json:"region,omitempty"`
	Description string    `json:"description,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

// CenterSummary is one row of a nearby query result. Lat and Lng are always
// set because rows without a geometry never enter a nearby result.
type CenterSummary struct {
	Name        string  `json:"name"`
	Phone       string  `json:"phone,omitempty"`
	Website     string  `json:"website,omitempty"`
	Description string  `json:"description,omitempty"`
	Lat         float64 `json:"lat"`
	Lng         float64 `json:"lng"`
	Region      string  `json:"region,omitempty"`
	DistanceM   float64 `json:"distance_m"`
}

// ScrapedCenter is the intermediate record produced by the crawler or read
// from a CSV export, before it reaches the store. Coordinates are optional
// and must be present together.
type ScrapedCenter struct {
	Name    string
	Phone   string
	Address string
	Website string
	Lat     *float64
	Lng     *float64
	IsOpen  bool
	Region  string
}

// HasCoords reports whether both coordinates are present.
func (s ScrapedCenter) HasCoords() bool {
	return s.Lat != nil && s.Lng != nil
}

// IngestReport summarizes one ingestion run.
type IngestReport struct {
	Added   int `json:"added"`
	Skipped int `json:"skipped"`
	Failed  int `json:"failed"`
}

// ValidateCoordinates checks that a (lat, lng) pair is on the globe.
func ValidateCoordinates(lat, lng float64) error {
	if lat < -90 || lat > 90 {
		return eris.Errorf("latitude %f out of range [-90, 90]", lat)
	}
	if lng < -180 || lng > 180 {
		return eris.Errorf("longitude %f out of range [-180, 180]", lng)
	}
	return nil
}
