package domain

// Stats is the aggregate view of a trip collection shown on the home page.
// All values are zero for an empty collection.
type Stats struct {
	// Count is the number of trips.
	Count int `json:"count"`
	// DistinctLocations counts unique location strings. Comparison is
	// case-sensitive with no normalization, so "Paris" and "paris" are two
	// locations.
	DistinctLocations int `json:"distinctLocations"`
	// AverageRating is the mean of all ratings including zeros, rounded to
	// one decimal place.
	AverageRating float64 `json:"averageRating"`
	// TotalExpenses sums every trip's expense costs. Malformed costs
	// contribute 0.
	TotalExpenses float64 `json:"totalExpenses"`
}
