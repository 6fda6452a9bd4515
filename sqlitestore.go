package seastate

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math"
	"sync"
	"time"

	// SQLite driver using pure Go implementation
	_ "modernc.org/sqlite"
)

// SQLiteStoreConfig configures the SQLite observation store.
type SQLiteStoreConfig struct {
	// Path to the SQLite database file
	Path string

	// CacheSize is the SQLite page cache size in KB (default: 2000 = 2MB)
	CacheSize int

	// JournalMode sets the SQLite journal mode (WAL, DELETE, TRUNCATE, etc.)
	JournalMode string

	// Synchronous sets the synchronous flag (OFF, NORMAL, FULL, EXTRA)
	Synchronous string

	// BusyTimeout is the timeout for acquiring locks in milliseconds
	BusyTimeout int

	// MaxConnections is the max number of database connections
	MaxConnections int
}

// DefaultSQLiteStoreConfig returns default configuration.
func DefaultSQLiteStoreConfig() SQLiteStoreConfig {
	return SQLiteStoreConfig{
		Path:           "seastate.db",
		CacheSize:      2000,
		JournalMode:    "WAL",
		Synchronous:    "NORMAL",
		BusyTimeout:    5000,
		MaxConnections: 10,
	}
}

// SQLiteStore keeps station geography and long-form observations in a single
// SQLite database file, so datasets can be inspected and edited with standard
// SQLite tools. Observations are one row per station, timestamp, and
// variable; a variable a station never reported is simply absent.
type SQLiteStore struct {
	db     *sql.DB
	config SQLiteStoreConfig
	mu     sync.RWMutex
	closed bool

	// Prepared statements for common operations
	insertStation *sql.Stmt
	insertObs     *sql.Stmt
	insertTag     *sql.Stmt
}

// NewSQLiteStore opens or creates a SQLite observation store.
func NewSQLiteStore(config SQLiteStoreConfig) (*SQLiteStore, error) {
	if config.Path == "" {
		config.Path = "seastate.db"
	}
	if config.CacheSize <= 0 {
		config.CacheSize = 2000
	}
	if config.JournalMode == "" {
		config.JournalMode = "WAL"
	}
	if config.Synchronous == "" {
		config.Synchronous = "NORMAL"
	}
	if config.BusyTimeout <= 0 {
		config.BusyTimeout = 5000
	}
	if config.MaxConnections <= 0 {
		config.MaxConnections = 10
	}

	dsn := fmt.Sprintf("%s?_cache_size=%d&_journal_mode=%s&_synchronous=%s&_busy_timeout=%d",
		config.Path, config.CacheSize, config.JournalMode, config.Synchronous, config.BusyTimeout)

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open SQLite database: %w", err)
	}

	db.SetMaxOpenConns(config.MaxConnections)
	db.SetMaxIdleConns(config.MaxConnections / 2)

	store := &SQLiteStore{
		db:     db,
		config: config,
	}

	if err := store.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	if err := store.prepareStatements(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to prepare statements: %w", err)
	}

	return store, nil
}

// initSchema creates the database schema.
func (s *SQLiteStore) initSchema() error {
	schema := `
		-- Station geography. x and y are NULL until projected.
		CREATE TABLE IF NOT EXISTS stations (
			id TEXT PRIMARY KEY,
			latitude REAL NOT NULL,
			longitude REAL NOT NULL,
			x REAL,
			y REAL
		);

		-- Long-form observations, one row per station, timestamp, variable.
		-- Timestamps are UTC unix nanoseconds.
		CREATE TABLE IF NOT EXISTS observations (
			station_id TEXT NOT NULL,
			timestamp INTEGER NOT NULL,
			variable TEXT NOT NULL,
			value REAL NOT NULL,
			PRIMARY KEY (station_id, timestamp, variable)
		);

		-- Categorical companions keyed by station and timestamp.
		CREATE TABLE IF NOT EXISTS observation_tags (
			station_id TEXT NOT NULL,
			timestamp INTEGER NOT NULL,
			tag TEXT NOT NULL,
			value TEXT NOT NULL,
			PRIMARY KEY (station_id, timestamp, tag)
		);

		CREATE INDEX IF NOT EXISTS idx_observations_timestamp ON observations(timestamp);
		CREATE INDEX IF NOT EXISTS idx_observations_variable ON observations(variable);
	`
	if _, err := s.db.Exec(schema); err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}
	return nil
}

// prepareStatements prepares common SQL statements for better performance.
func (s *SQLiteStore) prepareStatements() error {
	var err error

	s.insertStation, err = s.db.Prepare(`
		INSERT OR REPLACE INTO stations (id, latitude, longitude, x, y)
		VALUES (?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare station insert: %w", err)
	}

	s.insertObs, err = s.db.Prepare(`
		INSERT OR REPLACE INTO observations (station_id, timestamp, variable, value)
		VALUES (?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare observation insert: %w", err)
	}

	s.insertTag, err = s.db.Prepare(`
		INSERT OR REPLACE INTO observation_tags (station_id, timestamp, tag, value)
		VALUES (?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare tag insert: %w", err)
	}

	return nil
}

// SaveStations upserts station geography in a single transaction.
func (s *SQLiteStore) SaveStations(ctx context.Context, stations []Station) error {
	if err := s.checkOpen(); err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt := tx.StmtContext(ctx, s.insertStation)
	for _, st := range stations {
		if err := st.Validate(); err != nil {
			return err
		}
		var x, y any
		if st.HasPlanar {
			x, y = st.X, st.Y
		}
		if _, err := stmt.ExecContext(ctx, st.ID, st.Latitude, st.Longitude, x, y); err != nil {
			return fmt.Errorf("failed to write station %s: %w", st.ID, err)
		}
	}
	return tx.Commit()
}

// LoadStations returns all stored stations, ascending by ID.
func (s *SQLiteStore) LoadStations(ctx context.Context) ([]Station, error) {
	if err := s.checkOpen(); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, latitude, longitude, x, y FROM stations ORDER BY id
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query stations: %w", err)
	}
	defer rows.Close()

	var stations []Station
	for rows.Next() {
		var st Station
		var x, y sql.NullFloat64
		if err := rows.Scan(&st.ID, &st.Latitude, &st.Longitude, &x, &y); err != nil {
			return nil, fmt.Errorf("failed to scan station: %w", err)
		}
		if x.Valid && y.Valid {
			st.X, st.Y = x.Float64, y.Float64
			st.HasPlanar = true
		}
		stations = append(stations, st)
	}
	return stations, rows.Err()
}

// DeleteStation removes a station and all of its observations.
func (s *SQLiteStore) DeleteStation(ctx context.Context, id string) error {
	if err := s.checkOpen(); err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	for _, q := range []string{
		`DELETE FROM observations WHERE station_id = ?`,
		`DELETE FROM observation_tags WHERE station_id = ?`,
		`DELETE FROM stations WHERE id = ?`,
	} {
		if _, err := tx.ExecContext(ctx, q, id); err != nil {
			return fmt.Errorf("failed to delete station %s: %w", id, err)
		}
	}
	return tx.Commit()
}

// SaveTable upserts every observation of a table in a single transaction.
func (s *SQLiteStore) SaveTable(ctx context.Context, table *ObservationTable) error {
	if err := s.checkOpen(); err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	obsStmt := tx.StmtContext(ctx, s.insertObs)
	tagStmt := tx.StmtContext(ctx, s.insertTag)

	columns := table.Columns()
	for _, row := range table.Rows() {
		ts := row.Timestamp.UTC().UnixNano()
		for _, variable := range columns {
			v, ok := row.Value(variable)
			if !ok {
				continue
			}
			if _, err := obsStmt.ExecContext(ctx, row.StationID, ts, variable, v); err != nil {
				return fmt.Errorf("failed to write observation %s: %w", row.Key(), err)
			}
		}
		for tag, v := range row.Tags {
			if _, err := tagStmt.ExecContext(ctx, row.StationID, ts, tag, v); err != nil {
				return fmt.Errorf("failed to write tag %s: %w", row.Key(), err)
			}
		}
	}
	return tx.Commit()
}

// LoadTable loads every stored observation into a table.
func (s *SQLiteStore) LoadTable(ctx context.Context) (*ObservationTable, error) {
	return s.LoadTableRange(ctx, time.Time{}, time.Time{})
}

// LoadTableRange loads observations within a half-open time window. Zero
// bounds are unbounded.
func (s *SQLiteStore) LoadTableRange(ctx context.Context, start, end time.Time) (*ObservationTable, error) {
	if err := s.checkOpen(); err != nil {
		return nil, err
	}

	lo := int64(math.MinInt64)
	if !start.IsZero() {
		lo = start.UTC().UnixNano()
	}
	hi := int64(math.MaxInt64)
	if !end.IsZero() {
		hi = end.UTC().UnixNano()
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT station_id, timestamp, variable, value FROM observations
		WHERE timestamp >= ? AND timestamp < ?
		ORDER BY station_id, timestamp, variable
	`, lo, hi)
	if err != nil {
		return nil, fmt.Errorf("failed to query observations: %w", err)
	}
	defer rows.Close()

	byKey := make(map[Key]*Observation)
	var order []Key
	for rows.Next() {
		var stationID, variable string
		var ts int64
		var value float64
		if err := rows.Scan(&stationID, &ts, &variable, &value); err != nil {
			return nil, fmt.Errorf("failed to scan observation: %w", err)
		}
		key := Key{StationID: stationID, Timestamp: ts}
		obs, ok := byKey[key]
		if !ok {
			obs = &Observation{
				StationID: stationID,
				Timestamp: key.Time(),
				Values:    make(map[string]float64),
			}
			byKey[key] = obs
			order = append(order, key)
		}
		obs.Values[variable] = value
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	if err := s.loadTags(ctx, lo, hi, byKey); err != nil {
		return nil, err
	}

	out := make([]Observation, 0, len(order))
	for _, key := range order {
		out = append(out, *byKey[key])
	}
	return NewObservationTable(out)
}

// loadTags attaches stored tags to the observations already loaded.
func (s *SQLiteStore) loadTags(ctx context.Context, lo, hi int64, byKey map[Key]*Observation) error {
	rows, err := s.db.QueryContext(ctx, `
		SELECT station_id, timestamp, tag, value FROM observation_tags
		WHERE timestamp >= ? AND timestamp < ?
	`, lo, hi)
	if err != nil {
		return fmt.Errorf("failed to query tags: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var stationID, tag, value string
		var ts int64
		if err := rows.Scan(&stationID, &ts, &tag, &value); err != nil {
			return fmt.Errorf("failed to scan tag: %w", err)
		}
		obs, ok := byKey[Key{StationID: stationID, Timestamp: ts}]
		if !ok {
			// Tag rows without a value row carry no observation.
			continue
		}
		if obs.Tags == nil {
			obs.Tags = make(map[string]string)
		}
		obs.Tags[tag] = value
	}
	return rows.Err()
}

// Variables returns the distinct variable names stored, ascending.
func (s *SQLiteStore) Variables(ctx context.Context) ([]string, error) {
	if err := s.checkOpen(); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT DISTINCT variable FROM observations ORDER BY variable
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query variables: %w", err)
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("failed to scan variable: %w", err)
		}
		names = append(names, name)
	}
	return names, rows.Err()
}

// Stats returns database statistics.
func (s *SQLiteStore) Stats(ctx context.Context) (*SQLiteStoreStats, error) {
	if err := s.checkOpen(); err != nil {
		return nil, err
	}

	stats := &SQLiteStoreStats{}

	row := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM stations`)
	if err := row.Scan(&stats.StationCount); err != nil {
		return nil, err
	}

	row = s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM observations`)
	if err := row.Scan(&stats.ObservationCount); err != nil {
		return nil, err
	}

	row = s.db.QueryRowContext(ctx, `SELECT COUNT(DISTINCT variable) FROM observations`)
	if err := row.Scan(&stats.VariableCount); err != nil {
		return nil, err
	}

	row = s.db.QueryRowContext(ctx, `SELECT page_count * page_size FROM pragma_page_count(), pragma_page_size()`)
	if err := row.Scan(&stats.DatabaseSize); err != nil {
		// Ignore error, might not work on all SQLite versions
	}

	return stats, nil
}

// SQLiteStoreStats contains database statistics.
type SQLiteStoreStats struct {
	StationCount     int64 `json:"station_count"`
	ObservationCount int64 `json:"observation_count"`
	VariableCount    int64 `json:"variable_count"`
	DatabaseSize     int64 `json:"database_size"`
}

// Vacuum performs database maintenance.
func (s *SQLiteStore) Vacuum(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return errors.New("store is closed")
	}

	_, err := s.db.ExecContext(ctx, "VACUUM")
	return err
}

// GetDB returns the underlying database connection for direct SQL access.
func (s *SQLiteStore) GetDB() *sql.DB {
	return s.db
}

// Close releases any resources.
func (s *SQLiteStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true

	for _, stmt := range []*sql.Stmt{s.insertStation, s.insertObs, s.insertTag} {
		if stmt != nil {
			stmt.Close()
		}
	}
	return s.db.Close()
}

func (s *SQLiteStore) checkOpen() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return errors.New("store is closed")
	}
	return nil
}
