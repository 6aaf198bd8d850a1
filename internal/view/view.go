// Package view computes derived read models over the record collections:
// search filtering, aggregate statistics, the map-bounds input set, and
// export payloads. Everything here is a pure function of its arguments;
// no state, no I/O.
package view

import (
	"math"
	"strconv"
	"strings"

	"github.com/ldenis/travel-logbook/internal/domain"
)

// Filter returns the records whose title, location, or notes contain
// query, case-insensitively. An empty query matches everything. Records
// without notes simply don't match on notes.
func Filter(records []domain.Record, query string) []domain.Record {
	q := strings.ToLower(query)
	out := []domain.Record{}
	for _, r := range records {
		if strings.Contains(strings.ToLower(r.Title), q) ||
			strings.Contains(strings.ToLower(r.Location), q) ||
			(r.Notes != "" && strings.Contains(strings.ToLower(r.Notes), q)) {
			out = append(out, r)
		}
	}
	return out
}

// TotalExpenses sums a record's expense costs. Costs are parsed from
// their entered form; a malformed cost contributes 0 rather than
// poisoning the total.
func TotalExpenses(rec domain.Record) float64 {
	var total float64
	for _, exp := range rec.Expenses {
		v, err := strconv.ParseFloat(strings.TrimSpace(exp.Cost), 64)
		if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
			continue
		}
		total += v
	}
	return total
}

// AggregateStats computes the home-page statistics for a trip collection.
// All fields are zero for an empty collection. Location uniqueness is
// case-sensitive; the average rating includes zero ratings and is rounded
// to one decimal place.
func AggregateStats(trips []domain.Record) domain.Stats {
	stats := domain.Stats{Count: len(trips)}
	if len(trips) == 0 {
		return stats
	}

	locations := make(map[string]struct{}, len(trips))
	var ratingSum int
	for _, t := range trips {
		locations[t.Location] = struct{}{}
		ratingSum += t.Rating
		stats.TotalExpenses += TotalExpenses(t)
	}
	stats.DistinctLocations = len(locations)
	stats.AverageRating = math.Round(float64(ratingSum)/float64(len(trips))*10) / 10
	return stats
}

// MapBounds returns the coordinate pairs of every record across trips and
// wishlist, in that order. The map collaborator fits its viewport to
// these; an empty result means no bounds change.
func MapBounds(trips, wishlist []domain.Record) []domain.Coordinates {
	out := []domain.Coordinates{}
	for _, r := range trips {
		out = append(out, r.Coordinates)
	}
	for _, r := range wishlist {
		out = append(out, r.Coordinates)
	}
	return out
}
