package seastate

import (
	"context"
	"path/filepath"
	"reflect"
	"testing"
	"time"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	config := DefaultSQLiteStoreConfig()
	config.Path = filepath.Join(t.TempDir(), "test.db")
	store, err := NewSQLiteStore(config)
	if err != nil {
		t.Fatalf("store creation failed: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func TestSQLiteStoreStations(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	stations := []Station{
		{ID: "41002", Latitude: 31.8, Longitude: -74.8},
		{ID: "41001", Latitude: 34.7, Longitude: -72.7, X: 10.5, Y: -3.25, HasPlanar: true},
	}
	if err := store.SaveStations(ctx, stations); err != nil {
		t.Fatalf("save failed: %v", err)
	}

	loaded, err := store.LoadStations(ctx)
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	want := []Station{stations[1], stations[0]}
	if !reflect.DeepEqual(loaded, want) {
		t.Errorf("unexpected stations:\nwant: %+v\ngot:  %+v", want, loaded)
	}

	// Saving again upserts in place.
	stations[0].Latitude = 32.0
	if err := store.SaveStations(ctx, stations[:1]); err != nil {
		t.Fatalf("upsert failed: %v", err)
	}
	loaded, err = store.LoadStations(ctx)
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if len(loaded) != 2 {
		t.Fatalf("expected 2 stations after upsert, got %d", len(loaded))
	}
	if loaded[1].Latitude != 32.0 {
		t.Errorf("expected updated latitude, got %v", loaded[1].Latitude)
	}

	if err := store.SaveStations(ctx, []Station{{ID: "bad", Latitude: 999}}); err == nil {
		t.Error("expected error for invalid station")
	}
}

func TestSQLiteStoreTableRoundTrip(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	table := codecTable(t)
	if err := store.SaveTable(ctx, table); err != nil {
		t.Fatalf("save failed: %v", err)
	}

	loaded, err := store.LoadTable(ctx)
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if !reflect.DeepEqual(loaded.Rows(), table.Rows()) {
		t.Errorf("round trip changed the table:\nbefore: %+v\nafter:  %+v", table.Rows(), loaded.Rows())
	}

	// Absent variables are absent rows, never zeros.
	row, _ := loaded.Lookup(NewKey("41002", time.Date(2024, 3, 15, 12, 0, 0, 0, time.UTC)))
	if _, ok := row.Value("wind_speed"); ok {
		t.Error("expected absent value to stay absent")
	}
}

func TestSQLiteStoreUpsertObservation(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	ts := time.Date(2024, 3, 15, 12, 0, 0, 0, time.UTC)
	first := mustTable(t, []Observation{
		obsAt("A", ts, map[string]float64{"wave_height": 1.5}),
	})
	if err := store.SaveTable(ctx, first); err != nil {
		t.Fatalf("save failed: %v", err)
	}

	second := mustTable(t, []Observation{
		obsAt("A", ts, map[string]float64{"wave_height": 2.5}),
	})
	if err := store.SaveTable(ctx, second); err != nil {
		t.Fatalf("resave failed: %v", err)
	}

	loaded, err := store.LoadTable(ctx)
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if loaded.Len() != 1 {
		t.Fatalf("expected 1 row after upsert, got %d", loaded.Len())
	}
	if v, _ := loaded.Row(0).Value("wave_height"); v != 2.5 {
		t.Errorf("expected upserted value 2.5, got %v", v)
	}
}

func TestSQLiteStoreLoadTableRange(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	base := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	var rows []Observation
	for i := 0; i < 3; i++ {
		rows = append(rows, obsAt("A", base.Add(time.Duration(i)*time.Hour), map[string]float64{"wave_height": float64(i)}))
	}
	if err := store.SaveTable(ctx, mustTable(t, rows)); err != nil {
		t.Fatalf("save failed: %v", err)
	}

	// The window is half-open: the end bound is excluded.
	got, err := store.LoadTableRange(ctx, base, base.Add(2*time.Hour))
	if err != nil {
		t.Fatalf("range load failed: %v", err)
	}
	if got.Len() != 2 {
		t.Errorf("expected 2 rows in window, got %d", got.Len())
	}
	if got.Contains(NewKey("A", base.Add(2*time.Hour))) {
		t.Error("expected end bound excluded")
	}

	// Zero bounds are unbounded.
	all, err := store.LoadTableRange(ctx, time.Time{}, time.Time{})
	if err != nil {
		t.Fatalf("unbounded load failed: %v", err)
	}
	if all.Len() != 3 {
		t.Errorf("expected 3 rows, got %d", all.Len())
	}

	tail, err := store.LoadTableRange(ctx, base.Add(time.Hour), time.Time{})
	if err != nil {
		t.Fatalf("tail load failed: %v", err)
	}
	if tail.Len() != 2 {
		t.Errorf("expected 2 tail rows, got %d", tail.Len())
	}
}

func TestSQLiteStoreDeleteStation(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	ts := time.Date(2024, 3, 15, 12, 0, 0, 0, time.UTC)
	rowA := obsAt("A", ts, map[string]float64{"wave_height": 1})
	rowA.Tags = map[string]string{"source": "ndbc"}
	table := mustTable(t, []Observation{
		rowA,
		obsAt("B", ts, map[string]float64{"wave_height": 2}),
	})

	if err := store.SaveStations(ctx, []Station{
		{ID: "A", Latitude: 1, Longitude: 1},
		{ID: "B", Latitude: 2, Longitude: 2},
	}); err != nil {
		t.Fatalf("save stations failed: %v", err)
	}
	if err := store.SaveTable(ctx, table); err != nil {
		t.Fatalf("save table failed: %v", err)
	}

	if err := store.DeleteStation(ctx, "A"); err != nil {
		t.Fatalf("delete failed: %v", err)
	}

	stations, err := store.LoadStations(ctx)
	if err != nil {
		t.Fatalf("load stations failed: %v", err)
	}
	if len(stations) != 1 || stations[0].ID != "B" {
		t.Errorf("unexpected stations after delete: %+v", stations)
	}

	loaded, err := store.LoadTable(ctx)
	if err != nil {
		t.Fatalf("load table failed: %v", err)
	}
	if loaded.Len() != 1 || loaded.Contains(NewKey("A", ts)) {
		t.Errorf("expected A's observations removed, got %d rows", loaded.Len())
	}
}

func TestSQLiteStoreVariables(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	if err := store.SaveTable(ctx, codecTable(t)); err != nil {
		t.Fatalf("save failed: %v", err)
	}

	vars, err := store.Variables(ctx)
	if err != nil {
		t.Fatalf("variables failed: %v", err)
	}
	if !reflect.DeepEqual(vars, []string{"wave_height", "wind_speed"}) {
		t.Errorf("unexpected variables: %v", vars)
	}
}

func TestSQLiteStoreStats(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	if err := store.SaveStations(ctx, []Station{{ID: "A", Latitude: 1, Longitude: 1}}); err != nil {
		t.Fatalf("save stations failed: %v", err)
	}
	if err := store.SaveTable(ctx, codecTable(t)); err != nil {
		t.Fatalf("save table failed: %v", err)
	}

	stats, err := store.Stats(ctx)
	if err != nil {
		t.Fatalf("stats failed: %v", err)
	}
	if stats.StationCount != 1 {
		t.Errorf("expected 1 station, got %d", stats.StationCount)
	}
	// codecTable has four value cells across its three rows.
	if stats.ObservationCount != 4 {
		t.Errorf("expected 4 observations, got %d", stats.ObservationCount)
	}
	if stats.VariableCount != 2 {
		t.Errorf("expected 2 variables, got %d", stats.VariableCount)
	}
}

func TestSQLiteStoreEmpty(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	loaded, err := store.LoadTable(ctx)
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if loaded.Len() != 0 {
		t.Errorf("expected empty table, got %d rows", loaded.Len())
	}

	stations, err := store.LoadStations(ctx)
	if err != nil {
		t.Fatalf("load stations failed: %v", err)
	}
	if stations != nil {
		t.Errorf("expected no stations, got %v", stations)
	}
}

func TestSQLiteStoreVacuum(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	if err := store.SaveTable(ctx, codecTable(t)); err != nil {
		t.Fatalf("save failed: %v", err)
	}
	if err := store.Vacuum(ctx); err != nil {
		t.Fatalf("vacuum failed: %v", err)
	}
}

func TestSQLiteStoreClose(t *testing.T) {
	ctx := context.Background()
	config := DefaultSQLiteStoreConfig()
	config.Path = filepath.Join(t.TempDir(), "close.db")
	store, err := NewSQLiteStore(config)
	if err != nil {
		t.Fatalf("store creation failed: %v", err)
	}

	if err := store.Close(); err != nil {
		t.Fatalf("close failed: %v", err)
	}
	if err := store.Close(); err != nil {
		t.Errorf("expected repeated close to be a no-op, got %v", err)
	}

	if err := store.SaveTable(ctx, EmptyTable()); err == nil {
		t.Error("expected error on closed store")
	}
	if _, err := store.LoadTable(ctx); err == nil {
		t.Error("expected error on closed store")
	}
}
