// Package geo holds the distance helpers shared by the trimmer and the GPX
// statistics.
package geo

import "math"

// EarthRadius is the mean Earth radius in meters.
const EarthRadius = 6371000

// Distance returns the great-circle surface distance in meters between two
// points given in degrees (haversine).
func Distance(lat1, lon1, lat2, lon2 float64) float64 {
	if lat1 == lat2 && lon1 == lon2 {
		return 0
	}

	lat1Rad := lat1 * math.Pi / 180
	lat2Rad := lat2 * math.Pi / 180
	deltaLatRad := (lat2 - lat1) * math.Pi / 180
	deltaLonRad := (lon2 - lon1) * math.Pi / 180

	a := math.Sin(deltaLatRad/2)*math.Sin(deltaLatRad/2) +
		math.Cos(lat1Rad)*math.Cos(lat2Rad)*
			math.Sin(deltaLonRad/2)*math.Sin(deltaLonRad/2)

	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))

	return EarthRadius * c
}

// OffsetNorth returns the latitude reached by moving meters due north from
// lat along a meridian. Handy for building tracks with exact spacing.
func OffsetNorth(lat, meters float64) float64 {
	return lat + meters/EarthRadius*180/math.Pi
}
