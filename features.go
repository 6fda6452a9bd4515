package seastate

import (
	"fmt"
	"math"
	"runtime"
	"sort"
	"sync"
	"time"
)

// Feature column naming. Neighbor blocks are numbered 1..k, nearest first.
const (
	timeOfDaySinColumn = "tod_sin"
	timeOfDayCosColumn = "tod_cos"
	dayOfYearSinColumn = "doy_sin"
	dayOfYearCosColumn = "doy_cos"
)

// NeighborIDTag returns the tag name carrying the i-th neighbor's station ID.
func NeighborIDTag(i int) string { return fmt.Sprintf("neighbor_%d", i) }

// NeighborDistanceColumn returns the i-th neighbor's distance column name.
func NeighborDistanceColumn(i int) string { return fmt.Sprintf("distance_%d", i) }

// NeighborBearingColumn returns the i-th neighbor's bearing column name.
func NeighborBearingColumn(i int) string { return fmt.Sprintf("bearing_%d", i) }

// NeighborVarColumn returns the column name for a variable copied from the
// i-th neighbor.
func NeighborVarColumn(name string, i int) string { return fmt.Sprintf("%s_%d", name, i) }

// PaddingPolicy controls what happens to a timestamp group with fewer than
// k+1 active stations.
type PaddingPolicy int

const (
	// PadDrop drops the group's rows from the output.
	PadDrop PaddingPolicy = iota
	// PadAbsent keeps the rows, padding missing neighbor blocks with absent
	// values.
	PadAbsent
)

func (p PaddingPolicy) String() string {
	switch p {
	case PadDrop:
		return "drop"
	case PadAbsent:
		return "pad"
	default:
		return fmt.Sprintf("padding(%d)", int(p))
	}
}

// FeatureConfig configures a FeatureBuilder.
type FeatureConfig struct {
	// KNearest is the number of neighbor blocks per anchor station.
	KNearest int

	// FeatureVars names the variables copied from each neighbor. Nil copies
	// every column of the input table.
	FeatureVars []string

	// AddDirections adds an anchor-to-neighbor bearing column per block.
	AddDirections bool

	// AddTimeFeatures adds cyclic time-of-day and day-of-year columns to
	// each row.
	AddTimeFeatures bool

	// Metric measures anchor-to-neighbor distances.
	Metric DistanceMetric

	// Padding selects the short-group policy.
	Padding PaddingPolicy

	// Workers bounds the number of timestamp groups processed concurrently.
	// Zero uses the number of CPUs.
	Workers int

	// FailFast aborts the whole batch on the first group failure instead of
	// reporting per-group failures alongside the successful rows.
	FailFast bool
}

// DefaultFeatureConfig returns a three-neighbor haversine configuration with
// bearings enabled.
func DefaultFeatureConfig() FeatureConfig {
	return FeatureConfig{
		KNearest:      3,
		AddDirections: true,
		Metric:        MetricHaversine,
		Padding:       PadDrop,
	}
}

// NeighborBlock is one neighbor's contribution to a feature row.
type NeighborBlock struct {
	// StationID is the neighbor's station. Empty marks a padded block.
	StationID string
	// Distance is the anchor-to-neighbor distance under the builder metric.
	Distance float64
	// Bearing is the anchor-to-neighbor bearing in degrees, when directions
	// are enabled.
	Bearing    float64
	HasBearing bool
	// Values holds the neighbor's copies of the requested feature variables.
	// Variables absent at the neighbor stay absent here.
	Values map[string]float64
}

// FeatureRow is an anchor observation widened with its nearest-first
// neighbor blocks.
type FeatureRow struct {
	Anchor    Observation
	Neighbors []NeighborBlock
}

// flatten folds the neighbor blocks into one wide observation. Padded blocks
// contribute nothing: absence is the missing-value marker.
func (r FeatureRow) flatten() Observation {
	obs := r.Anchor.clone()
	if obs.Values == nil {
		obs.Values = make(map[string]float64)
	}
	for i, nb := range r.Neighbors {
		if nb.StationID == "" {
			continue
		}
		pos := i + 1
		if obs.Tags == nil {
			obs.Tags = make(map[string]string)
		}
		obs.Tags[NeighborIDTag(pos)] = nb.StationID
		obs.Values[NeighborDistanceColumn(pos)] = nb.Distance
		if nb.HasBearing {
			obs.Values[NeighborBearingColumn(pos)] = nb.Bearing
		}
		for name, v := range nb.Values {
			obs.Values[NeighborVarColumn(name, pos)] = v
		}
	}
	return obs
}

// GroupFailure attaches a group's error to its timestamp.
type GroupFailure struct {
	Timestamp time.Time
	Err       error
}

// BuildResult is the outcome of one feature-building batch.
type BuildResult struct {
	// Table holds the feature rows of every successful group, in canonical
	// order.
	Table *ObservationTable
	// Failures lists the groups that failed, ascending by timestamp. Keys
	// absent from both Table and Failures were dropped by the padding
	// policy.
	Failures []GroupFailure
	// GroupsProcessed counts groups that produced rows.
	GroupsProcessed int
	// GroupsDropped counts groups dropped by PadDrop.
	GroupsDropped int
}

// FeatureBuilder turns observation tables into k-nearest-neighbor feature
// tables. Builders are stateless and safe for concurrent use.
type FeatureBuilder struct {
	config FeatureConfig
}

// NewFeatureBuilder creates a feature builder, sanitizing out-of-range
// configuration values back to their defaults.
func NewFeatureBuilder(config FeatureConfig) *FeatureBuilder {
	if config.KNearest <= 0 {
		config.KNearest = DefaultFeatureConfig().KNearest
	}
	if config.Workers <= 0 {
		config.Workers = runtime.NumCPU()
	}
	return &FeatureBuilder{config: config}
}

// Config returns the builder's configuration.
func (b *FeatureBuilder) Config() FeatureConfig {
	return b.config
}

// BuildFeatures widens each observation with its k nearest co-reporting
// stations at the same timestamp. Station positions come from geography,
// which must cover every station in the table. Groups are processed by a
// bounded worker pool; the output table is in canonical order regardless of
// scheduling. Group failures are reported per timestamp in the result unless
// FailFast is set, in which case the first failure aborts the whole batch.
func (b *FeatureBuilder) BuildFeatures(table *ObservationTable, geography []Station) (*BuildResult, error) {
	byID, err := b.validateGeography(table, geography)
	if err != nil {
		return nil, err
	}

	featureVars := b.config.FeatureVars
	if featureVars == nil {
		featureVars = table.Columns()
	}

	groups := table.groupByTimestamp()
	workers := b.config.Workers
	if workers > len(groups) {
		workers = len(groups)
	}
	if workers < 1 {
		workers = 1
	}

	type slot struct {
		rows     []Observation
		failures []GroupFailure
		built    int
		dropped  int
	}
	slots := make([]slot, workers)
	chunk := (len(groups) + workers - 1) / workers

	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		start := w * chunk
		end := start + chunk
		if end > len(groups) {
			end = len(groups)
		}
		if start >= end {
			continue
		}
		wg.Add(1)
		go func(w, start, end int) {
			defer wg.Done()
			s := &slots[w]
			for _, g := range groups[start:end] {
				rows, err := b.buildGroup(g, byID, featureVars)
				switch {
				case err != nil:
					s.failures = append(s.failures, GroupFailure{Timestamp: g.ts, Err: err})
				case rows == nil:
					s.dropped++
				default:
					s.rows = append(s.rows, rows...)
					s.built++
				}
			}
		}(w, start, end)
	}
	wg.Wait()

	result := &BuildResult{}
	var rows []Observation
	for _, s := range slots {
		rows = append(rows, s.rows...)
		result.Failures = append(result.Failures, s.failures...)
		result.GroupsProcessed += s.built
		result.GroupsDropped += s.dropped
	}
	sortFailures(result.Failures)
	if b.config.FailFast && len(result.Failures) > 0 {
		return nil, result.Failures[0].Err
	}

	result.Table, err = NewObservationTable(rows)
	if err != nil {
		return nil, err
	}
	return result, nil
}

// validateGeography checks the station metadata against the table: valid
// coordinates, no duplicate IDs, planar coordinates under the Euclidean
// metric, and coverage of every observed station.
func (b *FeatureBuilder) validateGeography(table *ObservationTable, geography []Station) (map[string]Station, error) {
	byID := make(map[string]Station, len(geography))
	for _, s := range geography {
		if err := s.Validate(); err != nil {
			return nil, err
		}
		if _, dup := byID[s.ID]; dup {
			return nil, fmt.Errorf("duplicate station %q in geography", s.ID)
		}
		if b.config.Metric == MetricEuclidean && !s.HasPlanar {
			return nil, fmt.Errorf("station %q has no planar coordinates for euclidean metric", s.ID)
		}
		byID[s.ID] = s
	}
	for _, id := range table.StationIDs() {
		if _, ok := byID[id]; !ok {
			return nil, fmt.Errorf("station %q has no geography entry", id)
		}
	}
	return byID, nil
}

// buildGroup produces the feature rows for one timestamp group. A nil row
// slice with nil error means the group was dropped by the padding policy.
func (b *FeatureBuilder) buildGroup(g timestampGroup, byID map[string]Station, featureVars []string) ([]Observation, error) {
	active := make([]Station, 0, len(g.rows))
	rowByStation := make(map[string]Observation, len(g.rows))
	for _, row := range g.rows {
		if _, dup := rowByStation[row.StationID]; dup {
			return nil, newGroupError(GroupErrorTypeMalformed, g.ts,
				fmt.Sprintf("station %q appears twice", row.StationID), nil)
		}
		rowByStation[row.StationID] = row
		active = append(active, byID[row.StationID])
	}

	k := b.config.KNearest
	kEffective := k
	if len(active)-1 < k {
		if b.config.Padding == PadDrop {
			return nil, nil
		}
		kEffective = len(active) - 1
	}

	idx, err := BuildGeoIndex(active, b.config.Metric)
	if err != nil {
		return nil, newGroupError(GroupErrorTypeUnknown, g.ts, "geo index build failed", err)
	}

	rows := make([]Observation, 0, len(g.rows))
	for _, anchorRow := range g.rows {
		anchor := byID[anchorRow.StationID]

		blocks := make([]NeighborBlock, 0, k)
		if kEffective > 0 {
			neighbors, err := idx.NearestNeighbors(anchor, kEffective, true)
			if err != nil {
				return nil, newGroupError(GroupErrorTypeInsufficient, g.ts, "neighbor query failed", err)
			}
			for _, nb := range neighbors {
				blocks = append(blocks, b.makeBlock(anchor, nb, rowByStation[nb.Station.ID], featureVars))
			}
		}
		for len(blocks) < k {
			blocks = append(blocks, NeighborBlock{})
		}

		row := FeatureRow{Anchor: anchorRow, Neighbors: blocks}.flatten()
		if b.config.AddTimeFeatures {
			addTimeFeatures(&row)
		}
		rows = append(rows, row)
	}
	return rows, nil
}

// makeBlock assembles one neighbor block from a neighbor-query result and
// the neighbor's observation in the same group.
func (b *FeatureBuilder) makeBlock(anchor Station, nb Neighbor, nbRow Observation, featureVars []string) NeighborBlock {
	block := NeighborBlock{
		StationID: nb.Station.ID,
		Distance:  nb.Distance,
	}
	if b.config.AddDirections {
		if b.config.Metric == MetricEuclidean {
			block.Bearing = PlanarBearing(anchor.X, anchor.Y, nb.Station.X, nb.Station.Y)
		} else {
			block.Bearing = CalculateBearing(anchor.Latitude, anchor.Longitude, nb.Station.Latitude, nb.Station.Longitude)
		}
		block.HasBearing = true
	}
	for _, name := range featureVars {
		if v, ok := nbRow.Value(name); ok {
			if block.Values == nil {
				block.Values = make(map[string]float64, len(featureVars))
			}
			block.Values[name] = v
		}
	}
	return block
}

// addTimeFeatures writes cyclic encodings of time of day and day of year.
func addTimeFeatures(obs *Observation) {
	ts := obs.Timestamp.UTC()
	secOfDay := float64(ts.Hour()*3600 + ts.Minute()*60 + ts.Second())
	todAngle := 2 * math.Pi * secOfDay / 86400
	doyAngle := 2 * math.Pi * float64(ts.YearDay()) / 365.25

	obs.Values[timeOfDaySinColumn] = math.Sin(todAngle)
	obs.Values[timeOfDayCosColumn] = math.Cos(todAngle)
	obs.Values[dayOfYearSinColumn] = math.Sin(doyAngle)
	obs.Values[dayOfYearCosColumn] = math.Cos(doyAngle)
}

// sortFailures orders group failures by timestamp.
func sortFailures(failures []GroupFailure) {
	sort.Slice(failures, func(i, j int) bool {
		return failures[i].Timestamp.Before(failures[j].Timestamp)
	})
}
