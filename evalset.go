package seastate

import (
	"fmt"
	"os"
	"sort"
	"time"

	"gopkg.in/yaml.v3"
)

// EvalSetDSL represents a declarative evaluation scenario: which stations and
// time windows are held out, optionally restricted to a geographic area, with
// named partial subsets for per-subset reporting.
type EvalSetDSL struct {
	Version  string       `yaml:"version"`
	Name     string       `yaml:"name"`
	Area     BoundingBox  `yaml:"area,omitempty"`
	Test     ClauseDSL    `yaml:"test,omitempty"`
	Eval     ClauseDSL    `yaml:"eval,omitempty"`
	Exclude  []string     `yaml:"exclude_stations,omitempty"`
	Partials []PartialDSL `yaml:"partials,omitempty"`
}

// ClauseDSL designates held-out stations and an RFC 3339 time window. Empty
// times mean unbounded; the window is half-open [start, end).
type ClauseDSL struct {
	Stations []string `yaml:"stations,omitempty"`
	Start    string   `yaml:"start,omitempty"`
	End      string   `yaml:"end,omitempty"`
}

// PartialDSL names a subset of observations for per-subset metrics.
type PartialDSL struct {
	Name     string   `yaml:"name"`
	Stations []string `yaml:"stations,omitempty"`
	Start    string   `yaml:"start,omitempty"`
	End      string   `yaml:"end,omitempty"`
}

// ParseEvalSetDSL parses a YAML eval-set definition from bytes.
func ParseEvalSetDSL(data []byte) (*EvalSetDSL, error) {
	var d EvalSetDSL
	if err := yaml.Unmarshal(data, &d); err != nil {
		return nil, fmt.Errorf("eval set: invalid YAML: %w", err)
	}
	if err := d.Validate(); err != nil {
		return nil, err
	}
	return &d, nil
}

// ParseEvalSetDSLFile parses a YAML eval set from a file path.
func ParseEvalSetDSLFile(path string) (*EvalSetDSL, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("eval set: cannot read %s: %w", path, err)
	}
	return ParseEvalSetDSL(data)
}

// Validate checks the eval set for structural correctness.
func (d *EvalSetDSL) Validate() error {
	if d.Version == "" {
		return fmt.Errorf("eval set: version is required")
	}
	if d.Name == "" {
		return fmt.Errorf("eval set: name is required")
	}

	if !d.Area.IsZero() {
		if d.Area.MinLat > d.Area.MaxLat {
			return fmt.Errorf("eval set: area: min_lat exceeds max_lat")
		}
		if d.Area.MinLon > d.Area.MaxLon {
			return fmt.Errorf("eval set: area: min_lon exceeds max_lon")
		}
	}

	if err := d.Test.validate("test"); err != nil {
		return err
	}
	if err := d.Eval.validate("eval"); err != nil {
		return err
	}
	if !d.Test.active() && !d.Eval.active() {
		return fmt.Errorf("eval set: neither test nor eval names stations or a window")
	}

	partialNames := make(map[string]bool)
	for i, p := range d.Partials {
		if p.Name == "" {
			return fmt.Errorf("eval set: partials[%d].name is required", i)
		}
		if partialNames[p.Name] {
			return fmt.Errorf("eval set: duplicate partial name %q", p.Name)
		}
		partialNames[p.Name] = true
		if len(p.Stations) == 0 && p.Start == "" && p.End == "" {
			return fmt.Errorf("eval set: partials[%d] names no stations and no window", i)
		}
		if _, _, err := parseWindow(fmt.Sprintf("partials[%d]", i), p.Start, p.End); err != nil {
			return err
		}
	}
	return nil
}

func (c ClauseDSL) validate(field string) error {
	_, _, err := parseWindow(field, c.Start, c.End)
	return err
}

func (c ClauseDSL) active() bool {
	return len(c.Stations) > 0 || c.Start != "" || c.End != ""
}

// ToSliceSpec converts the test, eval, and exclusion clauses into a slice
// specification ready for SplitSlice.
func (d *EvalSetDSL) ToSliceSpec() (SliceSpec, error) {
	var spec SliceSpec
	var err error

	spec.TestStations = append([]string(nil), d.Test.Stations...)
	spec.TestStart, spec.TestEnd, err = parseWindow("test", d.Test.Start, d.Test.End)
	if err != nil {
		return SliceSpec{}, err
	}

	spec.EvalStations = append([]string(nil), d.Eval.Stations...)
	spec.EvalStart, spec.EvalEnd, err = parseWindow("eval", d.Eval.Start, d.Eval.End)
	if err != nil {
		return SliceSpec{}, err
	}

	spec.ExcludeStations = append([]string(nil), d.Exclude...)
	return spec, nil
}

// FilterStations restricts the station universe to the eval set's area. With
// no area configured the input is returned filtered by nothing, in order.
func (d *EvalSetDSL) FilterStations(stations []Station) []Station {
	if d.Area.IsZero() {
		return append([]Station(nil), stations...)
	}
	return d.Area.FilterStations(stations)
}

// ResolvePartials maps each named partial to the table keys it matches, in
// canonical order. Stations named by a partial must exist in the table.
func (d *EvalSetDSL) ResolvePartials(table *ObservationTable) (map[string][]Key, error) {
	known := stringSet(table.StationIDs())
	resolved := make(map[string][]Key, len(d.Partials))
	for i, p := range d.Partials {
		for _, id := range p.Stations {
			if !known[id] {
				return nil, fmt.Errorf("eval set: partials[%d]: unknown station %q", i, id)
			}
		}
		start, end, err := parseWindow(fmt.Sprintf("partials[%d]", i), p.Start, p.End)
		if err != nil {
			return nil, err
		}

		members := stringSet(p.Stations)
		var keys []Key
		for _, row := range table.Rows() {
			if len(p.Stations) > 0 && !members[row.StationID] {
				continue
			}
			if !inWindow(row.Timestamp, start, end) {
				continue
			}
			keys = append(keys, row.Key())
		}
		sort.Slice(keys, func(a, b int) bool { return keys[a].less(keys[b]) })
		resolved[p.Name] = keys
	}
	return resolved, nil
}

// MetricsByPartial computes evaluation metrics over each partial's keys
// against a predictions table. Keys absent from the table (skipped or failed
// timestamps) are ignored; partials left with no matched rows are omitted.
func MetricsByPartial(predictions *ObservationTable, partials map[string][]Key) (map[string]EvalMetrics, error) {
	out := make(map[string]EvalMetrics, len(partials))
	for name, keys := range partials {
		var actual, predicted []float64
		for _, key := range keys {
			row, ok := predictions.Lookup(key)
			if !ok {
				continue
			}
			y, okY := row.Value(PredictionActualColumn)
			p, okP := row.Value(PredictionPredictedColumn)
			if !okY || !okP {
				continue
			}
			actual = append(actual, y)
			predicted = append(predicted, p)
		}
		if len(actual) == 0 {
			continue
		}
		m, err := ComputeMetrics(actual, predicted)
		if err != nil {
			return nil, fmt.Errorf("partial %q: %w", name, err)
		}
		out[name] = m
	}
	return out, nil
}

// MarshalYAML serializes an EvalSetDSL back to YAML bytes.
func (d *EvalSetDSL) MarshalYAML() ([]byte, error) {
	return yaml.Marshal(*d)
}

// parseWindow parses optional RFC 3339 bounds and checks their order.
func parseWindow(field, start, end string) (time.Time, time.Time, error) {
	var s, e time.Time
	var err error
	if start != "" {
		s, err = time.Parse(time.RFC3339, start)
		if err != nil {
			return time.Time{}, time.Time{}, fmt.Errorf("eval set: %s.start: %w", field, err)
		}
	}
	if end != "" {
		e, err = time.Parse(time.RFC3339, end)
		if err != nil {
			return time.Time{}, time.Time{}, fmt.Errorf("eval set: %s.end: %w", field, err)
		}
	}
	if !s.IsZero() && !e.IsZero() && e.Before(s) {
		return time.Time{}, time.Time{}, fmt.Errorf("eval set: %s window end precedes start", field)
	}
	return s, e, nil
}
