package store

import "math"

// meanEarthRadiusM matches the sphere PostGIS uses for ST_DistanceSphere.
const meanEarthRadiusM = 6371008.8

// haversineM returns the great-circle distance in meters between two points.
// The SQLite store evaluates radius filters with it in process; the Postgres
// store delegates the same computation to PostGIS.
func haversineM(lat1, lng1, lat2, lng2 float64) float64 {
	φ1 := lat1 * math.Pi / 180
	φ2 := lat2 * math.Pi / 180
	Δφ := (lat2 - lat1) * math.Pi / 180
	Δλ := (lng2 - lng1) * math.Pi / 180

	a := math.Sin(Δφ/2)*math.Sin(Δφ/2) +
		math.Cos(φ1)*math.Cos(φ2)*math.Sin(Δλ/2)*math.Sin(Δλ/2)

	return 2 * meanEarthRadiusM * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
}
