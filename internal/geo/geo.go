// Package geo provides great-circle distance calculations between
// geographic coordinates using the Haversine formula.
package geo

import "math"

// EarthRadiusKm is the Earth's mean radius in kilometers.
const EarthRadiusKm = 6371.0

// Coordinate is a point on the Earth's surface in decimal degrees.
type Coordinate struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// DistanceKm returns the great-circle distance between two coordinates in
// kilometers on a spherical Earth approximation.
//
// Formula:
// a = sin²(Δφ/2) + cos φ1 ⋅ cos φ2 ⋅ sin²(Δλ/2)
// c = 2 ⋅ atan2( √a, √(1−a) )
// d = R ⋅ c
//
// NaN or out-of-range inputs are undefined behaviour; callers validate
// coordinates before storing them.
func DistanceKm(a, b Coordinate) float64 {
	lat1 := degreesToRadians(a.Latitude)
	lon1 := degreesToRadians(a.Longitude)
	lat2 := degreesToRadians(b.Latitude)
	lon2 := degreesToRadians(b.Longitude)

	deltaLat := lat2 - lat1
	deltaLon := lon2 - lon1

	h := math.Sin(deltaLat/2)*math.Sin(deltaLat/2) +
		math.Cos(lat1)*math.Cos(lat2)*
			math.Sin(deltaLon/2)*math.Sin(deltaLon/2)

	c := 2 * math.Atan2(math.Sqrt(h), math.Sqrt(1-h))

	return EarthRadiusKm * c
}

// WithinRadiusKm reports whether point lies within radiusKm of center.
// Points exactly on the boundary count as inside.
func WithinRadiusKm(point, center Coordinate, radiusKm float64) bool {
	return DistanceKm(point, center) <= radiusKm
}

func degreesToRadians(degrees float64) float64 {
	return degrees * math.Pi / 180
}
