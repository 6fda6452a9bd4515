package seastate

import (
	"container/heap"
	"fmt"
	"sort"

	"gonum.org/v1/gonum/spatial/kdtree"
)

// DistanceMetric selects how station separation is measured.
type DistanceMetric int

const (
	// MetricHaversine measures great-circle distance over raw
	// latitude/longitude, in kilometers.
	MetricHaversine DistanceMetric = iota
	// MetricEuclidean measures straight-line distance over the stations'
	// planar X/Y coordinates, in coordinate units. Every indexed station
	// must carry planar coordinates.
	MetricEuclidean
)

func (m DistanceMetric) String() string {
	switch m {
	case MetricHaversine:
		return "haversine"
	case MetricEuclidean:
		return "euclidean"
	default:
		return fmt.Sprintf("metric(%d)", int(m))
	}
}

// Neighbor is one result of a nearest-neighbor query.
type Neighbor struct {
	Station  Station
	Distance float64
}

// GeoIndex answers k-nearest-station queries over a fixed station set under
// one distance metric. Indexes are cheap, immutable values; build a fresh one
// whenever the active station set changes.
type GeoIndex struct {
	metric   DistanceMetric
	stations []Station
	byID     map[string]int
	tree     *kdtree.Tree
}

// BuildGeoIndex constructs an index over the given stations. Stations are
// validated and held in ID order. MetricEuclidean requires planar coordinates
// on every station.
func BuildGeoIndex(stations []Station, metric DistanceMetric) (*GeoIndex, error) {
	if metric != MetricHaversine && metric != MetricEuclidean {
		return nil, fmt.Errorf("unknown distance metric %d", int(metric))
	}

	idx := &GeoIndex{
		metric:   metric,
		stations: make([]Station, len(stations)),
		byID:     make(map[string]int, len(stations)),
	}
	copy(idx.stations, stations)
	sort.Slice(idx.stations, func(i, j int) bool {
		return idx.stations[i].ID < idx.stations[j].ID
	})

	for i, s := range idx.stations {
		if err := s.Validate(); err != nil {
			return nil, err
		}
		if _, dup := idx.byID[s.ID]; dup {
			return nil, fmt.Errorf("duplicate station %q in index", s.ID)
		}
		if metric == MetricEuclidean && !s.HasPlanar {
			return nil, fmt.Errorf("station %q has no planar coordinates for euclidean metric", s.ID)
		}
		idx.byID[s.ID] = i
	}

	if metric == MetricEuclidean && len(idx.stations) > 0 {
		points := make(stationPoints, len(idx.stations))
		for i, s := range idx.stations {
			points[i] = stationPoint{x: s.X, y: s.Y, idx: i}
		}
		idx.tree = kdtree.New(points, true)
	}

	return idx, nil
}

// Len returns the number of indexed stations.
func (idx *GeoIndex) Len() int {
	return len(idx.stations)
}

// Metric returns the index's distance metric.
func (idx *GeoIndex) Metric() DistanceMetric {
	return idx.metric
}

// Stations returns the indexed stations in ID order.
func (idx *GeoIndex) Stations() []Station {
	out := make([]Station, len(idx.stations))
	copy(out, idx.stations)
	return out
}

// Station returns the indexed station with the given ID.
func (idx *GeoIndex) Station(id string) (Station, bool) {
	i, ok := idx.byID[id]
	if !ok {
		return Station{}, false
	}
	return idx.stations[i], true
}

// NearestNeighbors returns the k stations nearest to origin, ascending by
// distance with ties broken by station ID ascending. When excludeSelf is
// true, stations sharing origin's ID are never returned. Fails with
// ErrInsufficientStations when the index holds fewer than k eligible
// stations.
func (idx *GeoIndex) NearestNeighbors(origin Station, k int, excludeSelf bool) ([]Neighbor, error) {
	if k <= 0 {
		return nil, fmt.Errorf("neighbor count must be positive, got %d", k)
	}
	if idx.metric == MetricEuclidean && !origin.HasPlanar {
		return nil, fmt.Errorf("origin %q has no planar coordinates for euclidean metric", origin.ID)
	}

	eligible := len(idx.stations)
	if excludeSelf {
		if _, ok := idx.byID[origin.ID]; ok {
			eligible--
		}
	}
	if eligible < k {
		return nil, fmt.Errorf("%w: need %d, have %d", ErrInsufficientStations, k, eligible)
	}

	var candidates []Neighbor
	if idx.tree != nil {
		candidates = idx.treeCandidates(origin, k, excludeSelf)
	} else {
		candidates = idx.scanCandidates(origin, excludeSelf)
	}

	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].Distance != candidates[j].Distance {
			return candidates[i].Distance < candidates[j].Distance
		}
		return candidates[i].Station.ID < candidates[j].Station.ID
	})
	return candidates[:k], nil
}

// treeCandidates retrieves nearest candidates from the KD-tree. It keeps one
// station beyond k; a distance tie at that boundary means the tree cannot
// prove which tied station sorts first by ID, so the query falls back to a
// full scan.
func (idx *GeoIndex) treeCandidates(origin Station, k int, excludeSelf bool) []Neighbor {
	keep := k + 2
	if keep > len(idx.stations) {
		keep = len(idx.stations)
	}
	keeper := kdtree.NewNKeeper(keep)
	idx.tree.NearestSet(keeper, stationPoint{x: origin.X, y: origin.Y, idx: -1})

	candidates := make([]Neighbor, 0, keep)
	for keeper.Len() > 0 {
		item := heap.Pop(keeper).(kdtree.ComparableDist)
		p, ok := item.Comparable.(stationPoint)
		if !ok {
			continue
		}
		s := idx.stations[p.idx]
		if excludeSelf && s.ID == origin.ID {
			continue
		}
		candidates = append(candidates, Neighbor{Station: s, Distance: PlanarDistance(origin.X, origin.Y, s.X, s.Y)})
	}

	sort.Slice(candidates, func(i, j int) bool {
		return candidates[i].Distance < candidates[j].Distance
	})
	if len(candidates) > k && candidates[k].Distance == candidates[k-1].Distance {
		return idx.scanCandidates(origin, excludeSelf)
	}
	return candidates
}

// scanCandidates computes distances to every eligible station.
func (idx *GeoIndex) scanCandidates(origin Station, excludeSelf bool) []Neighbor {
	candidates := make([]Neighbor, 0, len(idx.stations))
	for _, s := range idx.stations {
		if excludeSelf && s.ID == origin.ID {
			continue
		}
		candidates = append(candidates, Neighbor{Station: s, Distance: idx.distance(origin, s)})
	}
	return candidates
}

// distance measures origin-to-station separation under the index metric.
func (idx *GeoIndex) distance(origin, s Station) float64 {
	if idx.metric == MetricEuclidean {
		return PlanarDistance(origin.X, origin.Y, s.X, s.Y)
	}
	return HaversineDistance(origin.Latitude, origin.Longitude, s.Latitude, s.Longitude)
}

// ========== KD-Tree Plumbing ==========

// stationPoint adapts an indexed station's planar position to the KD-tree.
type stationPoint struct {
	x, y float64
	idx  int
}

// Compare implements the kdtree.Comparable interface.
func (p stationPoint) Compare(c kdtree.Comparable, d kdtree.Dim) float64 {
	q := c.(stationPoint)
	switch d {
	case 0:
		return p.x - q.x
	case 1:
		return p.y - q.y
	default:
		panic("illegal dimension")
	}
}

// Dims returns the number of dimensions for the KD-tree.
func (p stationPoint) Dims() int { return 2 }

// Distance returns the squared Euclidean distance between two points.
func (p stationPoint) Distance(c kdtree.Comparable) float64 {
	q := c.(stationPoint)
	dx := p.x - q.x
	dy := p.y - q.y
	return dx*dx + dy*dy
}

// stationPoints is a collection of stationPoint that satisfies
// kdtree.Interface.
type stationPoints []stationPoint

func (p stationPoints) Index(i int) kdtree.Comparable         { return p[i] }
func (p stationPoints) Len() int                              { return len(p) }
func (p stationPoints) Slice(start, end int) kdtree.Interface { return p[start:end] }

// Pivot implements the kdtree.Interface method.
func (p stationPoints) Pivot(d kdtree.Dim) int {
	return kdtree.Partition(stationPlane{stationPoints: p, Dim: d}, kdtree.MedianOfRandoms(stationPlane{stationPoints: p, Dim: d}, 100))
}

// stationPlane implements sort.Interface and kdtree.SortSlicer for
// stationPoints.
type stationPlane struct {
	stationPoints
	kdtree.Dim
}

func (p stationPlane) Less(i, j int) bool {
	switch p.Dim {
	case 0:
		return p.stationPoints[i].x < p.stationPoints[j].x
	case 1:
		return p.stationPoints[i].y < p.stationPoints[j].y
	default:
		panic("illegal dimension")
	}
}

func (p stationPlane) Slice(start, end int) kdtree.SortSlicer {
	return stationPlane{stationPoints: p.stationPoints[start:end], Dim: p.Dim}
}

func (p stationPlane) Swap(i, j int) {
	p.stationPoints[i], p.stationPoints[j] = p.stationPoints[j], p.stationPoints[i]
}
