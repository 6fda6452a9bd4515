package seastate

import (
	"fmt"
	"math"
	"math/rand"
	"sort"
	"time"
)

// Partition identifies which side of a split a key landed on.
type Partition int

const (
	// PartitionTrain holds the rows interpolators are fitted on.
	PartitionTrain Partition = iota
	// PartitionTest holds the held-out rows used for scoring.
	PartitionTest
	// PartitionEval holds a second held-out set, typically for model
	// selection.
	PartitionEval
	// PartitionExcluded holds rows removed from consideration entirely.
	PartitionExcluded
)

func (p Partition) String() string {
	switch p {
	case PartitionTrain:
		return "train"
	case PartitionTest:
		return "test"
	case PartitionEval:
		return "eval"
	case PartitionExcluded:
		return "excluded"
	default:
		return fmt.Sprintf("partition(%d)", int(p))
	}
}

// SliceSpec describes an explicit holdout: designated stations and/or time
// windows for the test and eval partitions. A clause is active when it names
// stations or carries a non-zero window. Rows of a designated station that
// fall outside its clause's window are excluded, never trained on, so the
// station is a full spatial holdout. A clause with no stations and a window
// holds out every station's rows inside the window. Zero times mean
// unbounded; windows are half-open [start, end).
type SliceSpec struct {
	TestStations []string
	TestStart    time.Time
	TestEnd      time.Time

	EvalStations []string
	EvalStart    time.Time
	EvalEnd      time.Time

	// ExcludeStations removes stations from every partition.
	ExcludeStations []string
}

// RandomSpec describes a seeded random holdout. With SplitOnStations false,
// individual observations are drawn; otherwise whole stations are drawn so
// held-out stations never leak training rows.
type RandomSpec struct {
	// TestFraction is the observation share targeted for the test set.
	TestFraction float64
	// EvalFraction is the observation share targeted for the eval set.
	EvalFraction float64

	// SplitOnStations draws whole stations instead of observations.
	SplitOnStations bool
	// HoldoutStations fixes the number of test stations drawn. Requires
	// SplitOnStations.
	HoldoutStations int
	// PrioritizeTest keeps drawing test stations past HoldoutStations until
	// TestFraction of the observations is reached.
	PrioritizeTest bool

	// Seed drives the draw. Equal inputs and seed give identical splits.
	Seed int64
}

// SplitAssignment maps every key of the source table to exactly one
// partition.
type SplitAssignment struct {
	assignments map[Key]Partition
	counts      map[Partition]int
}

func newSplitAssignment(n int) *SplitAssignment {
	return &SplitAssignment{
		assignments: make(map[Key]Partition, n),
		counts:      make(map[Partition]int),
	}
}

func (a *SplitAssignment) assign(key Key, p Partition) {
	a.assignments[key] = p
	a.counts[p]++
}

// Partition returns the key's partition, if the key was part of the split.
func (a *SplitAssignment) Partition(key Key) (Partition, bool) {
	p, ok := a.assignments[key]
	return p, ok
}

// Len returns the number of assigned keys.
func (a *SplitAssignment) Len() int {
	return len(a.assignments)
}

// Count returns the number of keys in a partition.
func (a *SplitAssignment) Count(p Partition) int {
	return a.counts[p]
}

// Keys returns a partition's keys in canonical order.
func (a *SplitAssignment) Keys(p Partition) []Key {
	keys := make([]Key, 0, a.counts[p])
	for k, kp := range a.assignments {
		if kp == p {
			keys = append(keys, k)
		}
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i].less(keys[j]) })
	return keys
}

// Tables materializes the train, test, and eval partitions of a table.
func (a *SplitAssignment) Tables(table *ObservationTable) (train, test, eval *ObservationTable) {
	pick := func(want Partition) *ObservationTable {
		return table.Filter(func(o Observation) bool {
			p, ok := a.assignments[o.Key()]
			return ok && p == want
		})
	}
	return pick(PartitionTrain), pick(PartitionTest), pick(PartitionEval)
}

// SplitSlice assigns every key of the table per the slice specification.
// Unknown station IDs, overlapping designations, and inverted windows fail
// with ErrInvalidSplitSpec.
func SplitSlice(table *ObservationTable, spec SliceSpec) (*SplitAssignment, error) {
	if err := validateSliceSpec(table, spec); err != nil {
		return nil, err
	}

	excluded := stringSet(spec.ExcludeStations)
	testStations := stringSet(spec.TestStations)
	evalStations := stringSet(spec.EvalStations)

	testActive := len(spec.TestStations) > 0 || !spec.TestStart.IsZero() || !spec.TestEnd.IsZero()
	evalActive := len(spec.EvalStations) > 0 || !spec.EvalStart.IsZero() || !spec.EvalEnd.IsZero()

	a := newSplitAssignment(table.Len())
	for _, row := range table.Rows() {
		key := row.Key()
		switch {
		case excluded[row.StationID]:
			a.assign(key, PartitionExcluded)
		case testActive && len(spec.TestStations) > 0 && testStations[row.StationID]:
			if inWindow(row.Timestamp, spec.TestStart, spec.TestEnd) {
				a.assign(key, PartitionTest)
			} else {
				a.assign(key, PartitionExcluded)
			}
		case evalActive && len(spec.EvalStations) > 0 && evalStations[row.StationID]:
			if inWindow(row.Timestamp, spec.EvalStart, spec.EvalEnd) {
				a.assign(key, PartitionEval)
			} else {
				a.assign(key, PartitionExcluded)
			}
		case testActive && len(spec.TestStations) == 0 && inWindow(row.Timestamp, spec.TestStart, spec.TestEnd):
			a.assign(key, PartitionTest)
		case evalActive && len(spec.EvalStations) == 0 && inWindow(row.Timestamp, spec.EvalStart, spec.EvalEnd):
			a.assign(key, PartitionEval)
		default:
			a.assign(key, PartitionTrain)
		}
	}
	return a, nil
}

func validateSliceSpec(table *ObservationTable, spec SliceSpec) error {
	known := stringSet(table.StationIDs())
	for _, field := range []struct {
		name string
		ids  []string
	}{
		{"test_stations", spec.TestStations},
		{"eval_stations", spec.EvalStations},
		{"exclude_stations", spec.ExcludeStations},
	} {
		for _, id := range field.ids {
			if !known[id] {
				return newSplitSpecError(field.name, fmt.Sprintf("unknown station %q", id))
			}
		}
	}

	test := stringSet(spec.TestStations)
	eval := stringSet(spec.EvalStations)
	for _, id := range spec.EvalStations {
		if test[id] {
			return newSplitSpecError("eval_stations", fmt.Sprintf("station %q is already a test station", id))
		}
	}
	for _, id := range spec.ExcludeStations {
		if test[id] {
			return newSplitSpecError("exclude_stations", fmt.Sprintf("station %q is already a test station", id))
		}
		if eval[id] {
			return newSplitSpecError("exclude_stations", fmt.Sprintf("station %q is already an eval station", id))
		}
	}

	if !spec.TestStart.IsZero() && !spec.TestEnd.IsZero() && spec.TestEnd.Before(spec.TestStart) {
		return newSplitSpecError("test_window", "end precedes start")
	}
	if !spec.EvalStart.IsZero() && !spec.EvalEnd.IsZero() && spec.EvalEnd.Before(spec.EvalStart) {
		return newSplitSpecError("eval_window", "end precedes start")
	}

	testActive := len(spec.TestStations) > 0 || !spec.TestStart.IsZero() || !spec.TestEnd.IsZero()
	evalActive := len(spec.EvalStations) > 0 || !spec.EvalStart.IsZero() || !spec.EvalEnd.IsZero()
	if !testActive && !evalActive {
		return newSplitSpecError("", "no holdout requested")
	}
	return nil
}

// SplitRandom assigns every key of the table per the random specification.
// The draw is fully determined by the seed: stations and keys are considered
// in canonical order and permuted by a local seeded source.
func SplitRandom(table *ObservationTable, spec RandomSpec) (*SplitAssignment, error) {
	if err := validateRandomSpec(spec); err != nil {
		return nil, err
	}

	rng := rand.New(rand.NewSource(spec.Seed))
	if spec.SplitOnStations {
		return splitRandomStations(table, spec, rng), nil
	}
	return splitRandomKeys(table, spec, rng), nil
}

func validateRandomSpec(spec RandomSpec) error {
	if spec.TestFraction < 0 || spec.TestFraction >= 1 {
		return newSplitSpecError("test_fraction", fmt.Sprintf("%g outside [0, 1)", spec.TestFraction))
	}
	if spec.EvalFraction < 0 || spec.EvalFraction >= 1 {
		return newSplitSpecError("eval_fraction", fmt.Sprintf("%g outside [0, 1)", spec.EvalFraction))
	}
	if spec.TestFraction+spec.EvalFraction >= 1 {
		return newSplitSpecError("eval_fraction", "test and eval fractions leave no training data")
	}
	if spec.HoldoutStations < 0 {
		return newSplitSpecError("holdout_stations", "must not be negative")
	}
	if spec.HoldoutStations > 0 && !spec.SplitOnStations {
		return newSplitSpecError("holdout_stations", "requires split_on_stations")
	}
	holdout := spec.TestFraction > 0 || spec.EvalFraction > 0 ||
		(spec.SplitOnStations && spec.HoldoutStations > 0)
	if !holdout {
		return newSplitSpecError("", "no holdout requested")
	}
	return nil
}

// splitRandomKeys draws individual observations.
func splitRandomKeys(table *ObservationTable, spec RandomSpec, rng *rand.Rand) *SplitAssignment {
	keys := make([]Key, 0, table.Len())
	for _, row := range table.Rows() {
		keys = append(keys, row.Key())
	}
	rng.Shuffle(len(keys), func(i, j int) { keys[i], keys[j] = keys[j], keys[i] })

	n := len(keys)
	nTest := int(math.Round(spec.TestFraction * float64(n)))
	nEval := int(math.Round(spec.EvalFraction * float64(n)))

	a := newSplitAssignment(n)
	for i, key := range keys {
		switch {
		case i < nTest:
			a.assign(key, PartitionTest)
		case i < nTest+nEval:
			a.assign(key, PartitionEval)
		default:
			a.assign(key, PartitionTrain)
		}
	}
	return a
}

// splitRandomStations draws whole stations. Stations are taken from the
// shuffled order until the requested station count or observation fraction
// is reached; with PrioritizeTest both must be satisfied.
func splitRandomStations(table *ObservationTable, spec RandomSpec, rng *rand.Rand) *SplitAssignment {
	ids := table.StationIDs()
	rng.Shuffle(len(ids), func(i, j int) { ids[i], ids[j] = ids[j], ids[i] })

	rowCount := make(map[string]int, len(ids))
	for _, row := range table.Rows() {
		rowCount[row.StationID]++
	}
	n := table.Len()
	testTarget := spec.TestFraction * float64(n)
	evalTarget := spec.EvalFraction * float64(n)

	partitionOf := make(map[string]Partition, len(ids))
	next := 0

	testRows := 0.0
	for next < len(ids) {
		haveCount := spec.HoldoutStations > 0 && next >= spec.HoldoutStations
		haveRows := testRows >= testTarget
		if spec.HoldoutStations > 0 {
			if spec.PrioritizeTest {
				if haveCount && haveRows {
					break
				}
			} else if haveCount {
				break
			}
		} else if haveRows {
			break
		}
		id := ids[next]
		partitionOf[id] = PartitionTest
		testRows += float64(rowCount[id])
		next++
	}

	evalRows := 0.0
	for next < len(ids) && evalRows < evalTarget {
		id := ids[next]
		partitionOf[id] = PartitionEval
		evalRows += float64(rowCount[id])
		next++
	}

	a := newSplitAssignment(n)
	for _, row := range table.Rows() {
		p, held := partitionOf[row.StationID]
		if !held {
			p = PartitionTrain
		}
		a.assign(row.Key(), p)
	}
	return a
}

// ========== Helpers ==========

// inWindow tests half-open window membership; zero bounds are unbounded.
func inWindow(ts, start, end time.Time) bool {
	if !start.IsZero() && ts.Before(start) {
		return false
	}
	if !end.IsZero() && !ts.Before(end) {
		return false
	}
	return true
}

func stringSet(ids []string) map[string]bool {
	set := make(map[string]bool, len(ids))
	for _, id := range ids {
		set[id] = true
	}
	return set
}
