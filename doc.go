// Package seastate estimates sea-surface conditions at arbitrary ocean
// coordinates from sparse buoy networks.
//
// Seastate builds spatial indexes over observation stations, constructs
// nearest-neighbor feature tables, fits interpolated fields over each
// timestamp's active stations, and evaluates interpolators against
// leakage-free holdout sets.
//
// # Basic Usage
//
// Index a station network and query neighbors:
//
//	index, err := seastate.BuildGeoIndex(stations, seastate.MetricHaversine)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	neighbors, err := index.NearestNeighbors(origin, 3, true)
//
// Fit an interpolated field and predict:
//
//	interp := seastate.NewInterpolator(seastate.DefaultInterpolatorConfig())
//	model, err := interp.Fit(coords, waveHeights)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	estimates, err := model.Predict(queryPoints)
//
// Build a nearest-neighbor feature table:
//
//	builder := seastate.NewFeatureBuilder(seastate.DefaultFeatureConfig())
//	result, err := builder.BuildFeatures(table, stations)
//
// # Features
//
// Spatial Core:
//   - k-d tree station index with haversine and planar metrics
//   - Deterministic neighbor ordering with stable distance tie-breaks
//   - Inverse distance weighting, radial basis functions, and Delaunay
//     barycentric interpolation
//   - Local equirectangular projection for planar workflows
//
// Feature Construction:
//   - Per-timestamp active station sets with parallel group workers
//   - Neighbor distance, bearing, and variable copy columns
//   - Cyclic time-of-day and day-of-year encodings
//   - Drop or pad policies for thin timestamps
//
// Splitting & Evaluation:
//   - Spatial holdouts that never leak a held-out station's rows
//   - Seeded random splits by observation or by whole station
//   - Per-timestamp fit-and-score evaluation with RMSE, MAE, bias,
//     MAPE, and R² overall and by station
//   - Declarative YAML eval sets with named partial subsets
//
// Data Plumbing:
//   - Dataset catalog over file, memory, S3, and tiered backends
//   - CSV table codec with optional snappy compression
//   - SQLite store for long-form observations and station geography
//
// # Configuration
//
// Components take config structs with sanitized defaults:
//
//	cfg := seastate.FeatureConfig{
//	    KNearest:      5,
//	    AddDirections: true,
//	    Metric:        seastate.MetricHaversine,
//	    Padding:       seastate.PadAbsent,
//	}
//
// Or use the DefaultXConfig constructors, such as [DefaultFeatureConfig],
// [DefaultInterpolatorConfig], and [DefaultEvalConfig].
package seastate
