package filter

import "math"

const degToRad = math.Pi / 180.0

// Projector maps geodetic coordinates onto a local flat-Earth frame in
// meters, anchored at a fixed origin:
//
//	north = (lat - lat0) * R
//	east  = (lon - lon0) * R * cos(lat0)
//
// The approximation is good to tens of kilometers from the origin; an anchor
// watch never strays past a few hundred meters, so the linearization error is
// well below receiver noise.
type Projector struct {
	lat0    float64 // radians
	lon0    float64 // radians
	cosLat0 float64
	set     bool
}

// SetOrigin fixes the plane origin. Called once per filter lifetime.
func (p *Projector) SetOrigin(lat, lon float64) {
	p.lat0 = lat * degToRad
	p.lon0 = lon * degToRad
	p.cosLat0 = math.Cos(p.lat0)
	p.set = true
}

// OriginSet reports whether an origin has been fixed.
func (p *Projector) OriginSet() bool { return p.set }

// ToLocalNE projects a geodetic position into the plane.
func (p *Projector) ToLocalNE(lat, lon float64) (north, east float64) {
	north = (lat*degToRad - p.lat0) * EarthRadiusM
	east = (lon*degToRad - p.lon0) * EarthRadiusM * p.cosLat0
	return north, east
}

// ToLatLon inverts the projection. With a polar origin cos(lat0) vanishes and
// east displacement carries no longitude information; the origin longitude is
// returned unchanged in that case.
func (p *Projector) ToLatLon(north, east float64) (lat, lon float64) {
	lat = (p.lat0 + north/EarthRadiusM) / degToRad
	if math.Abs(p.cosLat0) < 1e-12 {
		return lat, p.lon0 / degToRad
	}
	lon = (p.lon0 + east/(EarthRadiusM*p.cosLat0)) / degToRad
	return lat, lon
}

// DistanceM returns the great-circle distance in meters between two geodetic
// positions (haversine).
func DistanceM(lat1, lon1, lat2, lon2 float64) float64 {
	phi1 := lat1 * degToRad
	phi2 := lat2 * degToRad
	dPhi := (lat2 - lat1) * degToRad
	dLam := (lon2 - lon1) * degToRad

	sinPhi := math.Sin(dPhi / 2)
	sinLam := math.Sin(dLam / 2)
	a := sinPhi*sinPhi + math.Cos(phi1)*math.Cos(phi2)*sinLam*sinLam
	return 2 * EarthRadiusM * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
}
