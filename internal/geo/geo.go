// Package geo resolves free-text location names to coordinates.
//
// The resolver is deliberately a fixed in-binary table: the application
// contract treats geocoding as a pure function with a known answer set
// and a sentinel fallback, not as a network service.
package geo

import (
	"strings"

	"github.com/ldenis/travel-logbook/internal/domain"
)

// ResolverFunc is the shape the engine accepts for coordinate resolution.
// Resolve satisfies it; tests can substitute their own.
type ResolverFunc func(location string) domain.Coordinates

// Sentinel is returned for locations the table does not know.
var Sentinel = domain.Coordinates{Lat: 20, Lon: 0}

// locations maps lowercase place names to coordinates.
var locations = map[string]domain.Coordinates{
	"paris":          {Lat: 48.8566, Lon: 2.3522},
	"london":         {Lat: 51.5074, Lon: -0.1278},
	"new york":       {Lat: 40.7128, Lon: -74.0060},
	"tokyo":          {Lat: 35.6895, Lon: 139.6917},
	"rome":           {Lat: 41.9028, Lon: 12.4964},
	"sydney":         {Lat: -33.8688, Lon: 151.2093},
	"cairo":          {Lat: 30.0444, Lon: 31.2357},
	"rio de janeiro": {Lat: -22.9068, Lon: -43.1729},
	"barcelona":      {Lat: 41.3851, Lon: 2.1734},
	"dubai":          {Lat: 25.2048, Lon: 55.2708},
	"amsterdam":      {Lat: 52.3676, Lon: 4.9041},
	"berlin":         {Lat: 52.5200, Lon: 13.4050},
	"prague":         {Lat: 50.0755, Lon: 14.4378},
	"venice":         {Lat: 45.4408, Lon: 12.3155},
	"kyoto":          {Lat: 35.0116, Lon: 135.7681},
	"bangkok":        {Lat: 13.7563, Lon: 100.5018},
	"bali":           {Lat: -8.3405, Lon: 115.0920},
	"santorini":      {Lat: 36.3932, Lon: 25.4615},
	"machu picchu":   {Lat: -13.1631, Lon: -72.5450},
	"grand canyon":   {Lat: 36.1069, Lon: -112.1129},
	"delhi":          {Lat: 28.644800, Lon: 77.216721},
}

// Resolve returns the coordinates for a location name, matching
// case-insensitively. Unknown names resolve to Sentinel.
func Resolve(location string) domain.Coordinates {
	if c, ok := locations[strings.ToLower(location)]; ok {
		return c
	}
	return Sentinel
}
