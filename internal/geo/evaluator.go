package geo

import (
	"math"

	"github.com/muratovb/geowatch/internal/models"
)

// earthRadiusMeters is the mean earth radius used for great-circle distances.
const earthRadiusMeters = 6371000.0

// Match is the result of locating a position against the geofence set.
type Match struct {
	Location models.WorkLocation
	Distance float64 // meters from the region center
}

// Evaluator tests positions against a set of circular work locations.
// It has no side effects and is safe to replace wholesale when the
// configured location set changes.
type Evaluator struct {
	locations []models.WorkLocation
}

// NewEvaluator creates an evaluator over the given location set.
func NewEvaluator(locations []models.WorkLocation) *Evaluator {
	return &Evaluator{locations: locations}
}

// Locations returns the active location set.
func (e *Evaluator) Locations() []models.WorkLocation {
	return e.locations
}

// Locate returns the containing region closest to the position, or ok=false
// when the position is outside every region. A region contains the position
// iff the great-circle distance to its center is within its radius; among
// containing regions the smallest distance wins, not list order.
func (e *Evaluator) Locate(lat, lng float64) (Match, bool) {
	var best Match
	found := false

	for _, loc := range e.locations {
		d := Distance(lat, lng, loc.Latitude, loc.Longitude)
		if d <= loc.RadiusMeters && (!found || d < best.Distance) {
			best = Match{Location: loc, Distance: d}
			found = true
		}
	}

	return best, found
}

// Distance returns the great-circle distance in meters between two
// coordinates, using the haversine formula.
func Distance(lat1, lng1, lat2, lng2 float64) float64 {
	phi1 := lat1 * math.Pi / 180
	phi2 := lat2 * math.Pi / 180
	dPhi := (lat2 - lat1) * math.Pi / 180
	dLambda := (lng2 - lng1) * math.Pi / 180

	a := math.Sin(dPhi/2)*math.Sin(dPhi/2) +
		math.Cos(phi1)*math.Cos(phi2)*math.Sin(dLambda/2)*math.Sin(dLambda/2)
	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))

	return earthRadiusMeters * c
}
