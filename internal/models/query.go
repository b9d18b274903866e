package models

// DistanceQuery holds the two points whose geodesic distance is requested.
// Values are kept as the caller sent them and forwarded to the upstream unchanged.
type DistanceQuery struct {
	Latitude1  string // Latitude of the first point.
	Longitude1 string // Longitude of the first point.
	Latitude2  string // Latitude of the second point.
	Longitude2 string // Longitude of the second point.
}

// Complete reports whether all four coordinates are present.
func (q DistanceQuery) Complete() bool {
	return q.Latitude1 != "" && q.Longitude1 != "" && q.Latitude2 != "" && q.Longitude2 != ""
}
