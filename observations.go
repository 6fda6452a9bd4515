package seastate

import (
	"fmt"
	"sort"
	"time"
)

// Station describes a fixed observation platform in the network geography,
// such as a moored buoy or a coastal gauge.
type Station struct {
	// ID is the unique station identifier (e.g., "41001").
	ID string `json:"id"`
	// Latitude is in decimal degrees, north positive, range [-90, 90].
	Latitude float64 `json:"latitude"`
	// Longitude is in decimal degrees, east positive, range [-180, 180].
	Longitude float64 `json:"longitude"`
	// X and Y are pre-projected planar coordinates used by the Euclidean
	// metric. They are meaningful only when HasPlanar is true.
	X float64 `json:"x,omitempty"`
	Y float64 `json:"y,omitempty"`
	// HasPlanar reports whether X and Y carry projected coordinates.
	HasPlanar bool `json:"has_planar,omitempty"`
}

// Validate checks that the station has an ID and in-range coordinates.
func (s Station) Validate() error {
	if s.ID == "" {
		return fmt.Errorf("station has empty ID")
	}
	if s.Latitude < -90 || s.Latitude > 90 {
		return fmt.Errorf("station %s: latitude %.4f out of range [-90, 90]", s.ID, s.Latitude)
	}
	if s.Longitude < -180 || s.Longitude > 180 {
		return fmt.Errorf("station %s: longitude %.4f out of range [-180, 180]", s.ID, s.Longitude)
	}
	return nil
}

// Key identifies one observation: one station at one timestamp.
type Key struct {
	// StationID is the observing station's identifier.
	StationID string
	// Timestamp is the observation time in Unix nanoseconds (UTC).
	Timestamp int64
}

// NewKey builds a Key from a station ID and a wall-clock time.
func NewKey(stationID string, ts time.Time) Key {
	return Key{StationID: stationID, Timestamp: ts.UnixNano()}
}

// Time returns the key's timestamp as a UTC time.
func (k Key) Time() time.Time {
	return time.Unix(0, k.Timestamp).UTC()
}

func (k Key) String() string {
	return fmt.Sprintf("%s@%s", k.StationID, k.Time().Format(time.RFC3339))
}

// less orders keys canonically: station ID ascending, then timestamp.
func (k Key) less(other Key) bool {
	if k.StationID != other.StationID {
		return k.StationID < other.StationID
	}
	return k.Timestamp < other.Timestamp
}

// Observation is one station's measurements at one timestamp.
type Observation struct {
	// StationID links the observation to its station.
	StationID string `json:"station_id"`
	// Timestamp is the observation time. Tables normalize it to UTC.
	Timestamp time.Time `json:"timestamp"`
	// Values holds the numeric variables measured at this timestamp. A
	// variable that was not measured is absent from the map; absence is the
	// only missing-value representation, zero is a real measurement.
	Values map[string]float64 `json:"values"`
	// Tags holds categorical companions such as neighbor station IDs.
	Tags map[string]string `json:"tags,omitempty"`
}

// Key returns the observation's (station, timestamp) key.
func (o Observation) Key() Key {
	return NewKey(o.StationID, o.Timestamp)
}

// Value returns a variable's measurement and whether it is present.
func (o Observation) Value(name string) (float64, bool) {
	v, ok := o.Values[name]
	return v, ok
}

// Tag returns a categorical companion value and whether it is present.
func (o Observation) Tag(name string) (string, bool) {
	v, ok := o.Tags[name]
	return v, ok
}

// clone deep-copies the observation, normalizing the timestamp to UTC.
func (o Observation) clone() Observation {
	c := Observation{
		StationID: o.StationID,
		Timestamp: time.Unix(0, o.Timestamp.UnixNano()).UTC(),
	}
	if len(o.Values) > 0 {
		c.Values = make(map[string]float64, len(o.Values))
		for k, v := range o.Values {
			c.Values[k] = v
		}
	}
	if len(o.Tags) > 0 {
		c.Tags = make(map[string]string, len(o.Tags))
		for k, v := range o.Tags {
			c.Tags[k] = v
		}
	}
	return c
}

// ObservationTable is an immutable collection of observations in canonical
// order: station ID ascending, then timestamp ascending. Every transformation
// constructs a new table; accessors return data the caller must treat as
// read-only. A table never contains two observations with the same key.
type ObservationTable struct {
	rows    []Observation
	index   map[Key]int
	columns []string
}

// NewObservationTable builds a table from the given rows. The input is
// deep-copied, timestamps are normalized to UTC, and rows are sorted into
// canonical order. Fails with ErrDuplicateKey if two rows share a
// (station, timestamp) key.
func NewObservationTable(rows []Observation) (*ObservationTable, error) {
	t := &ObservationTable{
		rows:  make([]Observation, 0, len(rows)),
		index: make(map[Key]int, len(rows)),
	}
	for _, row := range rows {
		t.rows = append(t.rows, row.clone())
	}
	sort.SliceStable(t.rows, func(i, j int) bool {
		return t.rows[i].Key().less(t.rows[j].Key())
	})
	colSet := make(map[string]struct{})
	for i, row := range t.rows {
		key := row.Key()
		if _, exists := t.index[key]; exists {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateKey, key)
		}
		t.index[key] = i
		for name := range row.Values {
			colSet[name] = struct{}{}
		}
	}
	t.columns = make([]string, 0, len(colSet))
	for name := range colSet {
		t.columns = append(t.columns, name)
	}
	sort.Strings(t.columns)
	return t, nil
}

// EmptyTable returns a table with no rows.
func EmptyTable() *ObservationTable {
	return &ObservationTable{index: make(map[Key]int)}
}

// Len returns the number of observations in the table.
func (t *ObservationTable) Len() int {
	return len(t.rows)
}

// Row returns the observation at position i in canonical order.
func (t *ObservationTable) Row(i int) Observation {
	return t.rows[i]
}

// Rows returns the observations in canonical order. The returned slice is a
// copy; the observations it holds are shared and read-only.
func (t *ObservationTable) Rows() []Observation {
	out := make([]Observation, len(t.rows))
	copy(out, t.rows)
	return out
}

// Lookup returns the observation stored under key, if any.
func (t *ObservationTable) Lookup(key Key) (Observation, bool) {
	i, ok := t.index[key]
	if !ok {
		return Observation{}, false
	}
	return t.rows[i], true
}

// Contains reports whether the table holds an observation under key.
func (t *ObservationTable) Contains(key Key) bool {
	_, ok := t.index[key]
	return ok
}

// Columns returns the sorted union of variable names across all rows.
func (t *ObservationTable) Columns() []string {
	out := make([]string, len(t.columns))
	copy(out, t.columns)
	return out
}

// StationIDs returns the distinct station IDs present, ascending.
func (t *ObservationTable) StationIDs() []string {
	seen := make(map[string]struct{})
	ids := make([]string, 0)
	for _, row := range t.rows {
		if _, ok := seen[row.StationID]; !ok {
			seen[row.StationID] = struct{}{}
			ids = append(ids, row.StationID)
		}
	}
	sort.Strings(ids)
	return ids
}

// Timestamps returns the distinct observation times present, ascending.
func (t *ObservationTable) Timestamps() []time.Time {
	seen := make(map[int64]struct{})
	nanos := make([]int64, 0)
	for _, row := range t.rows {
		ns := row.Timestamp.UnixNano()
		if _, ok := seen[ns]; !ok {
			seen[ns] = struct{}{}
			nanos = append(nanos, ns)
		}
	}
	sort.Slice(nanos, func(i, j int) bool { return nanos[i] < nanos[j] })
	out := make([]time.Time, len(nanos))
	for i, ns := range nanos {
		out[i] = time.Unix(0, ns).UTC()
	}
	return out
}

// Filter returns a new table holding the rows for which keep returns true.
func (t *ObservationTable) Filter(keep func(Observation) bool) *ObservationTable {
	kept := make([]Observation, 0, len(t.rows))
	for _, row := range t.rows {
		if keep(row) {
			kept = append(kept, row)
		}
	}
	return t.rebuild(kept)
}

// SliceStations returns a new table holding only the given stations' rows.
func (t *ObservationTable) SliceStations(ids ...string) *ObservationTable {
	want := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		want[id] = struct{}{}
	}
	return t.Filter(func(o Observation) bool {
		_, ok := want[o.StationID]
		return ok
	})
}

// SliceTimeRange returns a new table holding rows with start <= t < end.
func (t *ObservationTable) SliceTimeRange(start, end time.Time) *ObservationTable {
	s, e := start.UnixNano(), end.UnixNano()
	return t.Filter(func(o Observation) bool {
		ns := o.Timestamp.UnixNano()
		return ns >= s && ns < e
	})
}

// SliceTimestamp returns a new table holding the rows observed exactly at ts.
func (t *ObservationTable) SliceTimestamp(ts time.Time) *ObservationTable {
	ns := ts.UnixNano()
	return t.Filter(func(o Observation) bool {
		return o.Timestamp.UnixNano() == ns
	})
}

// Merge returns a new table with the rows of both tables. Fails with
// ErrDuplicateKey if the tables share a key.
func (t *ObservationTable) Merge(other *ObservationTable) (*ObservationTable, error) {
	for _, row := range other.rows {
		if t.Contains(row.Key()) {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateKey, row.Key())
		}
	}
	merged := make([]Observation, 0, len(t.rows)+len(other.rows))
	merged = append(merged, t.rows...)
	merged = append(merged, other.rows...)
	return NewObservationTable(merged)
}

// rebuild constructs a table from rows already cloned and canonically valid.
func (t *ObservationTable) rebuild(rows []Observation) *ObservationTable {
	nt := &ObservationTable{
		rows:  rows,
		index: make(map[Key]int, len(rows)),
	}
	sort.SliceStable(nt.rows, func(i, j int) bool {
		return nt.rows[i].Key().less(nt.rows[j].Key())
	})
	colSet := make(map[string]struct{})
	for i, row := range nt.rows {
		nt.index[row.Key()] = i
		for name := range row.Values {
			colSet[name] = struct{}{}
		}
	}
	nt.columns = make([]string, 0, len(colSet))
	for name := range colSet {
		nt.columns = append(nt.columns, name)
	}
	sort.Strings(nt.columns)
	return nt
}

// timestampGroup is the active set at one timestamp: the rows observed then,
// in station-ID order.
type timestampGroup struct {
	ts   time.Time
	rows []Observation
}

// groupByTimestamp splits the table into per-timestamp groups, ascending by
// time. Rows within a group stay in station-ID order.
func (t *ObservationTable) groupByTimestamp() []timestampGroup {
	byTS := make(map[int64][]Observation)
	for _, row := range t.rows {
		ns := row.Timestamp.UnixNano()
		byTS[ns] = append(byTS[ns], row)
	}
	nanos := make([]int64, 0, len(byTS))
	for ns := range byTS {
		nanos = append(nanos, ns)
	}
	sort.Slice(nanos, func(i, j int) bool { return nanos[i] < nanos[j] })
	groups := make([]timestampGroup, len(nanos))
	for i, ns := range nanos {
		rows := byTS[ns]
		sort.SliceStable(rows, func(a, b int) bool {
			return rows[a].StationID < rows[b].StationID
		})
		groups[i] = timestampGroup{ts: time.Unix(0, ns).UTC(), rows: rows}
	}
	return groups
}
