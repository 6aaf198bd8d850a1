// Package domain contains the core data types for the Travel Logbook
// application. This package has zero knowledge of persistence or transport
// and is imported by every other internal package (store, engine, view,
// handler).
package domain

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Collection names a record collection in the store.
// Trips and wishlist entries share one record shape but live in separate
// collections so a destination can exist in both at once.
type Collection string

const (
	CollectionTrips    Collection = "trips"
	CollectionWishlist Collection = "wishlist"
)

// Category classifies a trip. Unknown values are preserved as-is by the
// store; validation happens in the engine.
type Category string

const (
	CategoryVacation  Category = "vacation"
	CategoryBusiness  Category = "business"
	CategoryAdventure Category = "adventure"
	CategoryFamily    Category = "family"
	CategoryRomantic  Category = "romantic"
	CategoryOther     Category = "other"
)

// Weather records the dominant weather during a trip. The empty string
// means "not recorded".
type Weather string

const (
	WeatherUnset  Weather = ""
	WeatherSunny  Weather = "sunny"
	WeatherCloudy Weather = "cloudy"
	WeatherRainy  Weather = "rainy"
	WeatherSnowy  Weather = "snowy"
	WeatherWindy  Weather = "windy"
)

// Coordinates is a latitude/longitude pair. It serializes as a two-element
// JSON array [lat, lon], the wire shape map clients expect.
type Coordinates struct {
	Lat float64
	Lon float64
}

// MarshalJSON encodes the pair as [lat, lon].
func (c Coordinates) MarshalJSON() ([]byte, error) {
	return json.Marshal([2]float64{c.Lat, c.Lon})
}

// UnmarshalJSON accepts a two-element [lat, lon] array.
func (c *Coordinates) UnmarshalJSON(data []byte) error {
	var pair [2]float64
	if err := json.Unmarshal(data, &pair); err != nil {
		return fmt.Errorf("domain.Coordinates: %w", err)
	}
	c.Lat, c.Lon = pair[0], pair[1]
	return nil
}

// Expense is a single line item of trip spending. Cost is kept exactly as
// entered; parsing to a number happens only when totals are computed, so a
// malformed cost never blocks saving a record.
type Expense struct {
	Item string `json:"item"`
	Cost string `json:"cost"`
}

// Record is a trip or wishlist entry. The two share one shape: a wishlist
// entry is a Record with IsWishlist set and, when it was created from an
// existing trip, a SourceTripID back-reference. The back-reference is a
// weak relation: it is never dereferenced for integrity and may point at
// a trip that no longer exists.
type Record struct {
	ID          uuid.UUID   `json:"id"`
	OwnerID     string      `json:"ownerId,omitempty"`
	Title       string      `json:"title"`
	Location    string      `json:"location"`
	Coordinates Coordinates `json:"coordinates"`
	Companions  string      `json:"companions,omitempty"`
	StartDate   *time.Time  `json:"startDate,omitempty"`
	EndDate     *time.Time  `json:"endDate,omitempty"`
	Notes       string      `json:"notes,omitempty"`
	Category    Category    `json:"category"`
	Rating      int         `json:"rating"`
	Weather     Weather     `json:"weather,omitempty"`
	Expenses    []Expense   `json:"expenses"`
	Images      []string    `json:"images"`
	Videos      []string    `json:"videos"`

	IsWishlist   bool       `json:"isWishlist,omitempty"`
	SourceTripID *uuid.UUID `json:"sourceTripId,omitempty"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// MediaRefs returns every media reference the record owns, images first.
func (r Record) MediaRefs() []string {
	refs := make([]string, 0, len(r.Images)+len(r.Videos))
	refs = append(refs, r.Images...)
	refs = append(refs, r.Videos...)
	return refs
}

// TripInput is the payload for creating or updating a trip: every
// user-editable field, without identity or timestamps. The engine assigns
// those.
type TripInput struct {
	Title      string
	Location   string
	Companions string
	StartDate  *time.Time
	EndDate    *time.Time
	Notes      string
	Category   Category
	Rating     int
	Weather    Weather
	Expenses   []Expense
	Images     []string
	Videos     []string
}
