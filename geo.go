package seastate

import "math"

// earthRadiusKm is the mean Earth radius used for great-circle math.
const earthRadiusKm = 6371.0

// HaversineDistance returns the great-circle distance between two
// latitude/longitude pairs in kilometers.
func HaversineDistance(lat1, lon1, lat2, lon2 float64) float64 {
	lat1Rad := lat1 * math.Pi / 180
	lat2Rad := lat2 * math.Pi / 180
	deltaLat := (lat2 - lat1) * math.Pi / 180
	deltaLon := (lon2 - lon1) * math.Pi / 180

	a := math.Sin(deltaLat/2)*math.Sin(deltaLat/2) +
		math.Cos(lat1Rad)*math.Cos(lat2Rad)*
			math.Sin(deltaLon/2)*math.Sin(deltaLon/2)
	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))

	return earthRadiusKm * c
}

// PlanarDistance returns the Euclidean distance between two planar points,
// in whatever units the coordinates carry.
func PlanarDistance(x1, y1, x2, y2 float64) float64 {
	dx := x2 - x1
	dy := y2 - y1
	return math.Sqrt(dx*dx + dy*dy)
}

// CalculateBearing returns the initial great-circle bearing from point 1 to
// point 2 in degrees: 0 is north, increasing clockwise, range [0, 360).
func CalculateBearing(lat1, lon1, lat2, lon2 float64) float64 {
	lat1Rad := lat1 * math.Pi / 180
	lat2Rad := lat2 * math.Pi / 180
	lonDiff := (lon2 - lon1) * math.Pi / 180

	y := math.Sin(lonDiff) * math.Cos(lat2Rad)
	x := math.Cos(lat1Rad)*math.Sin(lat2Rad) -
		math.Sin(lat1Rad)*math.Cos(lat2Rad)*math.Cos(lonDiff)

	bearing := math.Atan2(y, x) * 180 / math.Pi
	return math.Mod(bearing+360, 360)
}

// PlanarBearing returns the bearing from planar point 1 to planar point 2
// under the same convention as CalculateBearing, with +y as north.
func PlanarBearing(x1, y1, x2, y2 float64) float64 {
	bearing := math.Atan2(x2-x1, y2-y1) * 180 / math.Pi
	return math.Mod(bearing+360, 360)
}

// BoundingBox represents a geographic bounding box.
type BoundingBox struct {
	MinLat float64 `json:"min_lat" yaml:"min_lat"`
	MaxLat float64 `json:"max_lat" yaml:"max_lat"`
	MinLon float64 `json:"min_lon" yaml:"min_lon"`
	MaxLon float64 `json:"max_lon" yaml:"max_lon"`
}

// Contains checks if a point is within the bounding box.
func (bb BoundingBox) Contains(lat, lon float64) bool {
	return lat >= bb.MinLat && lat <= bb.MaxLat &&
		lon >= bb.MinLon && lon <= bb.MaxLon
}

// ContainsStation checks if a station's position is within the bounding box.
func (bb BoundingBox) ContainsStation(s Station) bool {
	return bb.Contains(s.Latitude, s.Longitude)
}

// IsZero reports whether the box is the zero value.
func (bb BoundingBox) IsZero() bool {
	return bb == BoundingBox{}
}

// FilterStations returns the stations whose positions fall inside the box,
// preserving input order.
func (bb BoundingBox) FilterStations(stations []Station) []Station {
	out := make([]Station, 0, len(stations))
	for _, s := range stations {
		if bb.ContainsStation(s) {
			out = append(out, s)
		}
	}
	return out
}

// ProjectStations returns a copy of the stations with X and Y set to local
// equirectangular coordinates in kilometers: longitude scaled by the cosine
// of the mean latitude, latitude scaled by the Earth radius. The projection
// is suitable for regional station networks queried with MetricEuclidean.
func ProjectStations(stations []Station) []Station {
	out := make([]Station, len(stations))
	if len(stations) == 0 {
		return out
	}

	meanLat := 0.0
	for _, s := range stations {
		meanLat += s.Latitude
	}
	meanLat /= float64(len(stations))
	cosMean := math.Cos(meanLat * math.Pi / 180)

	for i, s := range stations {
		s.X = earthRadiusKm * (s.Longitude * math.Pi / 180) * cosMean
		s.Y = earthRadiusKm * (s.Latitude * math.Pi / 180)
		s.HasPlanar = true
		out[i] = s
	}
	return out
}
