package seastate_test

import (
	"fmt"
	"time"

	"github.com/seastate-io/seastate"
)

func Example() {
	// Three buoys along the equator, one observation each at the same time
	ts := time.Date(2024, 3, 1, 6, 0, 0, 0, time.UTC)
	stations := []seastate.Station{
		{ID: "b1", Latitude: 0, Longitude: 0},
		{ID: "b2", Latitude: 0, Longitude: 0.5},
		{ID: "b3", Latitude: 0, Longitude: 2.0},
	}
	table, err := seastate.NewObservationTable([]seastate.Observation{
		{StationID: "b1", Timestamp: ts, Values: map[string]float64{"wave_height": 2.0}},
		{StationID: "b2", Timestamp: ts, Values: map[string]float64{"wave_height": 2.5}},
		{StationID: "b3", Timestamp: ts, Values: map[string]float64{"wave_height": 3.0}},
	})
	if err != nil {
		panic(err)
	}

	// Widen each observation with its nearest co-reporting neighbor
	builder := seastate.NewFeatureBuilder(seastate.FeatureConfig{
		KNearest:    1,
		FeatureVars: []string{"wave_height"},
		Metric:      seastate.MetricHaversine,
	})
	result, err := builder.BuildFeatures(table, stations)
	if err != nil {
		panic(err)
	}

	row, _ := result.Table.Lookup(seastate.NewKey("b1", ts))
	neighbor, _ := row.Tag(seastate.NeighborIDTag(1))
	dist, _ := row.Value(seastate.NeighborDistanceColumn(1))
	wave, _ := row.Value(seastate.NeighborVarColumn("wave_height", 1))

	fmt.Printf("b1 nearest neighbor: %s (%.1f km)\n", neighbor, dist)
	fmt.Printf("neighbor wave height: %.2f m\n", wave)
	// Output:
	// b1 nearest neighbor: b2 (55.6 km)
	// neighbor wave height: 2.50 m
}

func ExampleInterpolator_Fit() {
	// Four samples at the corners of a square
	coords := []seastate.PlanePoint{
		{X: 0, Y: 0},
		{X: 2, Y: 0},
		{X: 0, Y: 2},
		{X: 2, Y: 2},
	}
	values := []float64{1.0, 3.0, 3.0, 5.0}

	interp := seastate.NewInterpolator(seastate.DefaultInterpolatorConfig())
	model, err := interp.Fit(coords, values)
	if err != nil {
		panic(err)
	}

	// The center is equidistant from every sample; a query on a fitted
	// point returns that sample exactly
	estimates, err := model.Predict([]seastate.PlanePoint{{X: 1, Y: 1}, {X: 0, Y: 0}})
	if err != nil {
		panic(err)
	}

	fmt.Printf("center estimate: %.2f\n", estimates[0])
	fmt.Printf("corner estimate: %.2f\n", estimates[1])
	// Output:
	// center estimate: 3.00
	// corner estimate: 1.00
}

func ExampleSplitSlice() {
	base := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	var rows []seastate.Observation
	for _, id := range []string{"b1", "b2", "b3"} {
		for h := 0; h < 4; h++ {
			rows = append(rows, seastate.Observation{
				StationID: id,
				Timestamp: base.Add(time.Duration(h) * time.Hour),
				Values:    map[string]float64{"wave_height": 2.0},
			})
		}
	}
	table, err := seastate.NewObservationTable(rows)
	if err != nil {
		panic(err)
	}

	// Hold out station b3 entirely; its rows never reach the training set
	assignment, err := seastate.SplitSlice(table, seastate.SliceSpec{
		TestStations: []string{"b3"},
	})
	if err != nil {
		panic(err)
	}

	fmt.Printf("train %d observations\n", assignment.Count(seastate.PartitionTrain))
	fmt.Printf("test %d observations\n", assignment.Count(seastate.PartitionTest))
	// Output:
	// train 8 observations
	// test 4 observations
}

func ExampleComputeMetrics() {
	truth := []float64{1.0, 2.0, 3.0}
	predicted := []float64{1.5, 2.0, 2.5}

	m, err := seastate.ComputeMetrics(truth, predicted)
	if err != nil {
		panic(err)
	}

	fmt.Printf("RMSE %.3f MAE %.3f R2 %.2f\n", m.RMSE, m.MAE, m.R2)
	// Output: RMSE 0.408 MAE 0.333 R2 0.75
}

func ExampleEvaluateInterpolator() {
	// Four training buoys at the corners of a one-degree box and a held-out
	// buoy at its center
	stations := []seastate.Station{
		{ID: "b1", Latitude: -0.5, Longitude: -0.5},
		{ID: "b2", Latitude: -0.5, Longitude: 0.5},
		{ID: "b3", Latitude: 0.5, Longitude: -0.5},
		{ID: "b4", Latitude: 0.5, Longitude: 0.5},
		{ID: "b5", Latitude: 0, Longitude: 0},
	}

	var rows []seastate.Observation
	base := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	for t := 0; t < 2; t++ {
		ts := base.Add(time.Duration(t) * time.Hour)
		for i, id := range []string{"b1", "b2", "b3", "b4"} {
			rows = append(rows, seastate.Observation{
				StationID: id,
				Timestamp: ts,
				Values:    map[string]float64{"wave_height": float64(i + t + 1)},
			})
		}
		// The center buoy reports the corner mean, so a symmetric
		// interpolator should recover it exactly
		rows = append(rows, seastate.Observation{
			StationID: "b5",
			Timestamp: ts,
			Values:    map[string]float64{"wave_height": float64(t) + 2.5},
		})
	}
	table, err := seastate.NewObservationTable(rows)
	if err != nil {
		panic(err)
	}

	assignment, err := seastate.SplitSlice(table, seastate.SliceSpec{
		TestStations: []string{"b5"},
	})
	if err != nil {
		panic(err)
	}

	ev, err := seastate.EvaluateInterpolator(table, stations, assignment, seastate.DefaultEvalConfig())
	if err != nil {
		panic(err)
	}

	fmt.Printf("scored %d predictions across %d timestamps\n", ev.Metrics.Count, ev.TimestampsEvaluated)
	fmt.Printf("RMSE %.3f\n", ev.Metrics.RMSE)
	// Output:
	// scored 2 predictions across 2 timestamps
	// RMSE 0.000
}
