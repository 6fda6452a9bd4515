package seastate

import (
	"fmt"
	"math"
	"math/rand"
	"runtime"
	"sort"
	"sync"
	"time"
)

// Column names of the predictions table produced by the evaluation harness.
const (
	// PredictionActualColumn holds the held-out true value.
	PredictionActualColumn = "actual"
	// PredictionPredictedColumn holds the interpolated value.
	PredictionPredictedColumn = "predicted"
)

// CoordSystem selects the coordinates handed to interpolators.
type CoordSystem int

const (
	// CoordsGeographic uses raw longitude and latitude degrees as X and Y.
	CoordsGeographic CoordSystem = iota
	// CoordsProjected uses the stations' planar X and Y. Stations must carry
	// planar coordinates, typically via ProjectStations.
	CoordsProjected
)

func (c CoordSystem) String() string {
	switch c {
	case CoordsGeographic:
		return "geographic"
	case CoordsProjected:
		return "projected"
	default:
		return fmt.Sprintf("coords(%d)", int(c))
	}
}

// EvalConfig configures an evaluation run.
type EvalConfig struct {
	// Target is the variable being predicted.
	Target string

	// Interpolator configures the per-timestamp field fit.
	Interpolator InterpolatorConfig

	// Coords selects geographic degrees or projected planar coordinates.
	Coords CoordSystem

	// Score selects which held-out partition is scored: PartitionTest or
	// PartitionEval.
	Score Partition

	// MinTrainStations skips timestamps with fewer training observations of
	// the target. Zero uses the default of 4.
	MinTrainStations int

	// EvalFraction randomly subsamples the scored timestamps, seeded by
	// Seed. Values outside (0, 1] score every timestamp.
	EvalFraction float64

	// Seed drives the timestamp subsample.
	Seed int64

	// Workers bounds concurrent timestamp evaluation. Zero uses the number
	// of CPUs.
	Workers int

	// FailFast aborts the run on the first timestamp failure instead of
	// reporting per-timestamp failures alongside the scored rows.
	FailFast bool
}

// DefaultEvalConfig returns a wave-height IDW evaluation over the test
// partition.
func DefaultEvalConfig() EvalConfig {
	return EvalConfig{
		Target:           "wave_height",
		Interpolator:     DefaultInterpolatorConfig(),
		Coords:           CoordsGeographic,
		Score:            PartitionTest,
		MinTrainStations: 4,
		EvalFraction:     1,
	}
}

// Evaluation is the outcome of one harness run.
type Evaluation struct {
	// Predictions pairs each scored key with the true and interpolated
	// target value, in canonical order.
	Predictions *ObservationTable
	// Metrics scores all pairs together.
	Metrics EvalMetrics
	// ByStation scores each held-out station separately.
	ByStation map[string]EvalMetrics
	// Failures lists timestamps whose fit or predict failed, ascending.
	Failures []GroupFailure
	// TimestampsEvaluated counts timestamps that produced scored pairs.
	TimestampsEvaluated int
	// TimestampsSkipped counts timestamps dropped for lacking
	// MinTrainStations training observations.
	TimestampsSkipped int
}

// EvaluateInterpolator replays the held-out partition through the
// interpolator: for every scored timestamp it fits a field on that
// timestamp's training observations and predicts the held-out stations.
// Timestamps are processed by a bounded worker pool; the predictions table
// is in canonical order regardless of scheduling.
func EvaluateInterpolator(table *ObservationTable, geography []Station, assignment *SplitAssignment, config EvalConfig) (*Evaluation, error) {
	if config.Target == "" {
		return nil, fmt.Errorf("evaluation target is empty")
	}
	if config.Score != PartitionTest && config.Score != PartitionEval {
		return nil, fmt.Errorf("score partition must be test or eval, got %s", config.Score)
	}
	if config.MinTrainStations <= 0 {
		config.MinTrainStations = 4
	}
	if config.EvalFraction <= 0 || config.EvalFraction > 1 {
		config.EvalFraction = 1
	}
	if config.Workers <= 0 {
		config.Workers = runtime.NumCPU()
	}

	byID, err := evalStationLookup(table, geography, config.Coords)
	if err != nil {
		return nil, err
	}

	groups := scoredGroups(table, assignment, config)
	groups = subsampleGroups(groups, config.EvalFraction, config.Seed)

	ip := NewInterpolator(config.Interpolator)
	workers := config.Workers
	if workers > len(groups) {
		workers = len(groups)
	}
	if workers < 1 {
		workers = 1
	}

	type slot struct {
		rows      []Observation
		failures  []GroupFailure
		evaluated int
		skipped   int
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
				rows, err := evaluateGroup(g, ip, byID, config)
				switch {
				case err != nil:
					s.failures = append(s.failures, GroupFailure{Timestamp: g.ts, Err: err})
				case rows == nil:
					s.skipped++
				default:
					s.rows = append(s.rows, rows...)
					s.evaluated++
				}
			}
		}(w, start, end)
	}
	wg.Wait()

	ev := &Evaluation{}
	var rows []Observation
	for _, s := range slots {
		rows = append(rows, s.rows...)
		ev.Failures = append(ev.Failures, s.failures...)
		ev.TimestampsEvaluated += s.evaluated
		ev.TimestampsSkipped += s.skipped
	}
	sortFailures(ev.Failures)
	if config.FailFast && len(ev.Failures) > 0 {
		return nil, ev.Failures[0].Err
	}

	ev.Predictions, err = NewObservationTable(rows)
	if err != nil {
		return nil, err
	}
	ev.scoreMetrics()
	return ev, nil
}

// scoredGroup is one timestamp's training and held-out observations of the
// target.
type scoredGroup struct {
	ts    time.Time
	train []Observation
	score []Observation
}

// scoredGroups resolves each timestamp's training and scored rows under the
// assignment, keeping timestamps with at least one scored observation of the
// target. Groups come back ascending by time.
func scoredGroups(table *ObservationTable, assignment *SplitAssignment, config EvalConfig) []scoredGroup {
	var out []scoredGroup
	for _, g := range table.groupByTimestamp() {
		sg := scoredGroup{ts: g.ts}
		for _, row := range g.rows {
			if _, ok := row.Value(config.Target); !ok {
				continue
			}
			p, assigned := assignment.Partition(row.Key())
			if !assigned {
				continue
			}
			switch p {
			case PartitionTrain:
				sg.train = append(sg.train, row)
			case config.Score:
				sg.score = append(sg.score, row)
			}
		}
		if len(sg.score) > 0 {
			out = append(out, sg)
		}
	}
	return out
}

// subsampleGroups keeps a seeded random fraction of the groups, restoring
// ascending time order afterwards.
func subsampleGroups(groups []scoredGroup, fraction float64, seed int64) []scoredGroup {
	if fraction >= 1 || len(groups) == 0 {
		return groups
	}
	keep := int(math.Round(fraction * float64(len(groups))))
	if keep < 1 {
		keep = 1
	}
	if keep >= len(groups) {
		return groups
	}

	rng := rand.New(rand.NewSource(seed))
	shuffled := append([]scoredGroup(nil), groups...)
	rng.Shuffle(len(shuffled), func(i, j int) { shuffled[i], shuffled[j] = shuffled[j], shuffled[i] })
	kept := shuffled[:keep]
	sort.Slice(kept, func(i, j int) bool { return kept[i].ts.Before(kept[j].ts) })
	return kept
}

// evaluateGroup fits on one timestamp's training rows and predicts its
// held-out rows. A nil row slice with nil error means the timestamp lacked
// enough training stations.
func evaluateGroup(g scoredGroup, ip *Interpolator, byID map[string]Station, config EvalConfig) ([]Observation, error) {
	if len(g.train) < config.MinTrainStations {
		return nil, nil
	}

	coords := make([]PlanePoint, len(g.train))
	values := make([]float64, len(g.train))
	for i, row := range g.train {
		coords[i] = stationPlanePoint(byID[row.StationID], config.Coords)
		values[i], _ = row.Value(config.Target)
	}

	model, err := ip.Fit(coords, values)
	if err != nil {
		return nil, err
	}

	queries := make([]PlanePoint, len(g.score))
	for i, row := range g.score {
		queries[i] = stationPlanePoint(byID[row.StationID], config.Coords)
	}
	predicted, err := model.Predict(queries)
	if err != nil {
		return nil, err
	}

	rows := make([]Observation, len(g.score))
	for i, row := range g.score {
		actual, _ := row.Value(config.Target)
		rows[i] = Observation{
			StationID: row.StationID,
			Timestamp: g.ts,
			Values: map[string]float64{
				PredictionActualColumn:    actual,
				PredictionPredictedColumn: predicted[i],
			},
		}
	}
	return rows, nil
}

// scoreMetrics fills the aggregate and per-station metrics from the
// predictions table.
func (ev *Evaluation) scoreMetrics() {
	ev.ByStation = make(map[string]EvalMetrics)
	if ev.Predictions.Len() == 0 {
		return
	}

	var truth, predicted []float64
	byStation := make(map[string][2][]float64)
	for _, row := range ev.Predictions.Rows() {
		y, _ := row.Value(PredictionActualColumn)
		p, _ := row.Value(PredictionPredictedColumn)
		truth = append(truth, y)
		predicted = append(predicted, p)
		pair := byStation[row.StationID]
		pair[0] = append(pair[0], y)
		pair[1] = append(pair[1], p)
		byStation[row.StationID] = pair
	}

	if m, err := ComputeMetrics(truth, predicted); err == nil {
		ev.Metrics = m
	}
	for id, pair := range byStation {
		if m, err := ComputeMetrics(pair[0], pair[1]); err == nil {
			ev.ByStation[id] = m
		}
	}
}

// evalStationLookup builds the geography lookup for an evaluation,
// validating coverage and coordinate availability.
func evalStationLookup(table *ObservationTable, geography []Station, coords CoordSystem) (map[string]Station, error) {
	byID := make(map[string]Station, len(geography))
	for _, s := range geography {
		if err := s.Validate(); err != nil {
			return nil, err
		}
		if _, dup := byID[s.ID]; dup {
			return nil, fmt.Errorf("duplicate station %q in geography", s.ID)
		}
		if coords == CoordsProjected && !s.HasPlanar {
			return nil, fmt.Errorf("station %q has no planar coordinates; project the geography first", s.ID)
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

// stationPlanePoint maps a station to interpolation-plane coordinates.
func stationPlanePoint(s Station, coords CoordSystem) PlanePoint {
	if coords == CoordsProjected {
		return PlanePoint{X: s.X, Y: s.Y}
	}
	return PlanePoint{X: s.Longitude, Y: s.Latitude}
}
