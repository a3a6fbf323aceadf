package geo

import (
	"math"

	"github.com/golang/geo/s2"
)

// EarthRadiusMeters is the mean Earth radius used for great-circle math.
const EarthRadiusMeters = 6371000.0

const degToRad = math.Pi / 180

// Distance returns the great-circle distance in meters between two
// coordinates using the Haversine formula. It is a total function over
// the full latitude/longitude domain; callers supply sane coordinates.
func Distance(lat1, lon1, lat2, lon2 float64) float64 {
	dLat := (lat2 - lat1) * degToRad
	dLon := (lon2 - lon1) * degToRad

	sinLat := math.Sin(dLat / 2)
	sinLon := math.Sin(dLon / 2)
	a := sinLat*sinLat + math.Cos(lat1*degToRad)*math.Cos(lat2*degToRad)*sinLon*sinLon

	// Float drift can push a fractionally outside [0, 1] for identical or
	// antipodal points, which would turn Asin into NaN.
	if a < 0 {
		a = 0
	}
	if a > 1 {
		a = 1
	}
	return 2 * EarthRadiusMeters * math.Asin(math.Sqrt(a))
}

// DestinationPoint returns the point reached by travelling
// distanceMeters from (lat, lon) along the given initial bearing in
// degrees (0 = north, 90 = east).
func DestinationPoint(lat, lon, bearingDeg, distanceMeters float64) (float64, float64) {
	start := s2.LatLngFromDegrees(lat, lon)
	bearing := bearingDeg * degToRad
	angular := distanceMeters / EarthRadiusMeters

	lat1 := start.Lat.Radians()
	lon1 := start.Lng.Radians()

	lat2 := math.Asin(math.Sin(lat1)*math.Cos(angular) +
		math.Cos(lat1)*math.Sin(angular)*math.Cos(bearing))
	lon2 := lon1 + math.Atan2(
		math.Sin(bearing)*math.Sin(angular)*math.Cos(lat1),
		math.Cos(angular)-math.Sin(lat1)*math.Sin(lat2))

	return lat2 / degToRad, lon2 / degToRad
}
