package seastate

import (
	"bytes"
	"container/list"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"
)

// CatalogBackend defines the interface for dataset blob storage. This allows
// catalogs to keep datasets on the local filesystem, in memory, or in S3 and
// S3-compatible object stores.
//
// Read returns an error matching ErrDatasetNotFound for missing keys. Delete
// is idempotent.
type CatalogBackend interface {
	// Read reads a dataset blob from storage.
	Read(ctx context.Context, key string) ([]byte, error)

	// Write writes a dataset blob to storage.
	Write(ctx context.Context, key string, data []byte) error

	// Delete removes a dataset blob from storage.
	Delete(ctx context.Context, key string) error

	// List returns all blob keys matching a prefix.
	List(ctx context.Context, prefix string) ([]string, error)

	// Exists checks if a blob exists.
	Exists(ctx context.Context, key string) (bool, error)

	// Close releases any resources.
	Close() error
}

// ========== File backend ==========

// FileBackend implements CatalogBackend using the local filesystem.
type FileBackend struct {
	baseDir string
}

// NewFileBackend creates a file-based catalog backend rooted at baseDir.
func NewFileBackend(baseDir string) (*FileBackend, error) {
	if err := os.MkdirAll(baseDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create base directory: %w", err)
	}
	absDir, err := filepath.Abs(baseDir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve base directory: %w", err)
	}
	return &FileBackend{baseDir: filepath.Clean(absDir)}, nil
}

// safePath validates and returns a path within the base directory. Keys that
// resolve outside baseDir are rejected.
func (f *FileBackend) safePath(key string) (string, error) {
	resolved := filepath.Clean(filepath.Join(f.baseDir, filepath.Clean(key)))
	if resolved != f.baseDir && !strings.HasPrefix(resolved, f.baseDir+string(os.PathSeparator)) {
		return "", errors.New("invalid key: path traversal attempt detected")
	}
	return resolved, nil
}

func (f *FileBackend) Read(ctx context.Context, key string) ([]byte, error) {
	path, err := f.safePath(key)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil, fmt.Errorf("%w: %s", ErrDatasetNotFound, key)
	}
	return data, err
}

func (f *FileBackend) Write(ctx context.Context, key string, data []byte) error {
	path, err := f.safePath(key)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

func (f *FileBackend) Delete(ctx context.Context, key string) error {
	path, err := f.safePath(key)
	if err != nil {
		return err
	}
	err = os.Remove(path)
	if os.IsNotExist(err) {
		return nil
	}
	return err
}

func (f *FileBackend) List(ctx context.Context, prefix string) ([]string, error) {
	searchPath, err := f.safePath(prefix)
	if err != nil {
		return nil, err
	}

	var keys []string
	err = filepath.WalkDir(searchPath, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil // unreadable entries are skipped
		}
		if !d.IsDir() {
			rel, _ := filepath.Rel(f.baseDir, path)
			keys = append(keys, filepath.ToSlash(rel))
		}
		return nil
	})
	return keys, err
}

func (f *FileBackend) Exists(ctx context.Context, key string) (bool, error) {
	path, err := f.safePath(key)
	if err != nil {
		return false, err
	}
	_, err = os.Stat(path)
	if os.IsNotExist(err) {
		return false, nil
	}
	return err == nil, err
}

func (f *FileBackend) Close() error {
	return nil
}

// ========== Memory backend ==========

// MemoryBackend implements CatalogBackend using in-memory storage.
// Useful for tests and ephemeral pipelines.
type MemoryBackend struct {
	data map[string][]byte
	mu   sync.RWMutex
}

// NewMemoryBackend creates an in-memory catalog backend.
func NewMemoryBackend() *MemoryBackend {
	return &MemoryBackend{data: make(map[string][]byte)}
}

func (m *MemoryBackend) Read(ctx context.Context, key string) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	data, ok := m.data[key]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrDatasetNotFound, key)
	}
	return append([]byte(nil), data...), nil
}

func (m *MemoryBackend) Write(ctx context.Context, key string, data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.data[key] = append([]byte(nil), data...)
	return nil
}

func (m *MemoryBackend) Delete(ctx context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.data, key)
	return nil
}

func (m *MemoryBackend) List(ctx context.Context, prefix string) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var keys []string
	for k := range m.data {
		if strings.HasPrefix(k, prefix) {
			keys = append(keys, k)
		}
	}
	return keys, nil
}

func (m *MemoryBackend) Exists(ctx context.Context, key string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	_, ok := m.data[key]
	return ok, nil
}

func (m *MemoryBackend) Close() error {
	return nil
}

// Size returns the number of blobs held in memory.
func (m *MemoryBackend) Size() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.data)
}

// ========== LRU cache ==========

// LRUCache caches dataset blobs by key with least-recently-used eviction.
// It is safe for concurrent use.
type LRUCache struct {
	capacity int
	mu       sync.Mutex
	order    *list.List
	items    map[string]*list.Element
}

type cacheEntry struct {
	key  string
	data []byte
}

// NewLRUCache creates an LRU cache holding up to capacity blobs.
func NewLRUCache(capacity int) *LRUCache {
	return &LRUCache{
		capacity: capacity,
		order:    list.New(),
		items:    make(map[string]*list.Element),
	}
}

// Get retrieves a blob and marks it most recently used.
func (c *LRUCache) Get(key string) ([]byte, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	el, ok := c.items[key]
	if !ok {
		return nil, false
	}
	c.order.MoveToFront(el)
	return el.Value.(*cacheEntry).data, true
}

// Put adds or refreshes a blob, evicting the least recently used as needed.
func (c *LRUCache) Put(key string, data []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if el, ok := c.items[key]; ok {
		el.Value.(*cacheEntry).data = data
		c.order.MoveToFront(el)
		return
	}

	for len(c.items) >= c.capacity && c.order.Len() > 0 {
		oldest := c.order.Back()
		c.order.Remove(oldest)
		delete(c.items, oldest.Value.(*cacheEntry).key)
	}

	c.items[key] = c.order.PushFront(&cacheEntry{key: key, data: data})
}

// Delete removes a blob from the cache.
func (c *LRUCache) Delete(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if el, ok := c.items[key]; ok {
		c.order.Remove(el)
		delete(c.items, key)
	}
}

// Len returns the number of cached blobs.
func (c *LRUCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.items)
}

// ========== S3 backend ==========

// S3BackendConfig configures the S3 catalog backend.
type S3BackendConfig struct {
	Bucket   string
	Region   string
	Endpoint string // For S3-compatible services (MinIO, etc.)
	// AccessKeyID for authentication. Prefer IAM roles, instance profiles,
	// or environment variables (AWS_ACCESS_KEY_ID, AWS_SECRET_ACCESS_KEY)
	// over setting these directly. DO NOT commit credentials to source
	// control.
	AccessKeyID     string
	SecretAccessKey string
	Prefix          string // Key prefix for all objects
	UsePathStyle    bool   // Use path-style addressing
	CacheSize       int    // Number of blobs to cache (default: 100)

	// MaxRetries is the max attempts per S3 operation (default: 3).
	MaxRetries int

	// BreakerThreshold opens the circuit after this many consecutive
	// failed operations (default: 5).
	BreakerThreshold int

	// BreakerReset is how long the circuit stays open (default: 30s).
	BreakerReset time.Duration
}

// S3Backend implements CatalogBackend using S3 or S3-compatible storage.
// Operations retry with exponential backoff; a circuit breaker stops
// hammering a persistently failing endpoint. Reads are served from an LRU
// cache when possible.
type S3Backend struct {
	client  *s3.Client
	config  S3BackendConfig
	cache   *LRUCache
	retryer *Retryer
	breaker *CircuitBreaker
}

// NewS3Backend creates an S3 catalog backend.
func NewS3Backend(cfg S3BackendConfig) (*S3Backend, error) {
	if cfg.Bucket == "" {
		return nil, errors.New("bucket is required")
	}
	if cfg.Region == "" {
		cfg.Region = "us-east-1"
	}
	if cfg.CacheSize <= 0 {
		cfg.CacheSize = 100
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = 3
	}
	if cfg.BreakerThreshold <= 0 {
		cfg.BreakerThreshold = 5
	}
	if cfg.BreakerReset <= 0 {
		cfg.BreakerReset = 30 * time.Second
	}

	var opts []func(*config.LoadOptions) error
	opts = append(opts, config.WithRegion(cfg.Region))
	if cfg.AccessKeyID != "" && cfg.SecretAccessKey != "" {
		opts = append(opts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		))
	}

	awsCfg, err := config.LoadDefaultConfig(context.Background(), opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	var s3Opts []func(*s3.Options)
	if cfg.Endpoint != "" {
		s3Opts = append(s3Opts, func(o *s3.Options) {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = cfg.UsePathStyle
		})
	}

	return &S3Backend{
		client: s3.NewFromConfig(awsCfg, s3Opts...),
		config: cfg,
		cache:  NewLRUCache(cfg.CacheSize),
		retryer: NewRetryer(RetryConfig{
			MaxAttempts:       cfg.MaxRetries,
			InitialBackoff:    100 * time.Millisecond,
			MaxBackoff:        10 * time.Second,
			BackoffMultiplier: 2.0,
			Jitter:            0.1,
			RetryIf:           IsRetryable,
		}),
		breaker: NewCircuitBreaker(cfg.BreakerThreshold, cfg.BreakerReset),
	}, nil
}

// guard runs an S3 operation through the circuit breaker and retryer.
// Not-found results do not trip the breaker.
func (s *S3Backend) guard(ctx context.Context, op, key string, fn func() error) error {
	var opErr error
	err := s.breaker.Execute(func() error {
		result := s.retryer.Do(ctx, fn)
		opErr = result.LastErr
		if opErr == nil || errors.Is(opErr, ErrDatasetNotFound) {
			return nil
		}
		slog.Error("catalog s3 operation failed",
			"op", op, "key", key, "attempts", result.Attempts, "err", opErr)
		return opErr
	})
	if err == ErrCircuitOpen {
		slog.Warn("catalog s3 circuit breaker open", "op", op, "key", key)
		return err
	}
	return opErr
}

func (s *S3Backend) Read(ctx context.Context, key string) ([]byte, error) {
	fullKey := s.config.Prefix + key

	if data, ok := s.cache.Get(fullKey); ok {
		return data, nil
	}

	var data []byte
	err := s.guard(ctx, "read", fullKey, func() error {
		resp, err := s.client.GetObject(ctx, &s3.GetObjectInput{
			Bucket: aws.String(s.config.Bucket),
			Key:    aws.String(fullKey),
		})
		if err != nil {
			if nf := normalizeS3Error(err, key); errors.Is(nf, ErrDatasetNotFound) {
				return nf
			}
			return fmt.Errorf("s3 get object failed: %w", err)
		}
		defer func() { _ = resp.Body.Close() }()

		data, err = io.ReadAll(resp.Body)
		if err != nil {
			return fmt.Errorf("s3 read body failed: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.cache.Put(fullKey, data)
	return data, nil
}

func (s *S3Backend) Write(ctx context.Context, key string, data []byte) error {
	fullKey := s.config.Prefix + key

	err := s.guard(ctx, "write", fullKey, func() error {
		_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
			Bucket: aws.String(s.config.Bucket),
			Key:    aws.String(fullKey),
			Body:   bytes.NewReader(data),
		})
		if err != nil {
			return fmt.Errorf("s3 put object failed: %w", err)
		}
		return nil
	})
	if err != nil {
		return err
	}

	s.cache.Put(fullKey, data)
	return nil
}

func (s *S3Backend) Delete(ctx context.Context, key string) error {
	fullKey := s.config.Prefix + key

	err := s.guard(ctx, "delete", fullKey, func() error {
		_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
			Bucket: aws.String(s.config.Bucket),
			Key:    aws.String(fullKey),
		})
		if err != nil {
			return fmt.Errorf("s3 delete object failed: %w", err)
		}
		return nil
	})
	if err != nil {
		return err
	}

	s.cache.Delete(fullKey)
	return nil
}

func (s *S3Backend) List(ctx context.Context, prefix string) ([]string, error) {
	fullPrefix := s.config.Prefix + prefix

	var keys []string
	paginator := s3.NewListObjectsV2Paginator(s.client, &s3.ListObjectsV2Input{
		Bucket: aws.String(s.config.Bucket),
		Prefix: aws.String(fullPrefix),
	})
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("s3 list objects failed: %w", err)
		}
		for _, obj := range page.Contents {
			keys = append(keys, strings.TrimPrefix(*obj.Key, s.config.Prefix))
		}
	}
	return keys, nil
}

func (s *S3Backend) Exists(ctx context.Context, key string) (bool, error) {
	fullKey := s.config.Prefix + key

	if _, ok := s.cache.Get(fullKey); ok {
		return true, nil
	}

	_, err := s.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(s.config.Bucket),
		Key:    aws.String(fullKey),
	})
	if err != nil {
		if errors.Is(normalizeS3Error(err, key), ErrDatasetNotFound) {
			return false, nil
		}
		return false, fmt.Errorf("s3 head object failed: %w", err)
	}
	return true, nil
}

func (s *S3Backend) Close() error {
	return nil
}

// normalizeS3Error maps S3 missing-object errors onto ErrDatasetNotFound and
// passes everything else through.
func normalizeS3Error(err error, key string) error {
	var nsk *s3types.NoSuchKey
	if errors.As(err, &nsk) ||
		strings.Contains(err.Error(), "NoSuchKey") ||
		strings.Contains(err.Error(), "NotFound") ||
		strings.Contains(err.Error(), "404") {
		return fmt.Errorf("%w: %s", ErrDatasetNotFound, key)
	}
	return err
}

// ========== Tiered backend ==========

// TieredBackend layers a fast local backend over a slow remote one. Writes
// land in the hot tier; reads fall back to the cold tier and promote what
// they find.
type TieredBackend struct {
	hot  CatalogBackend
	cold CatalogBackend
}

// NewTieredBackend creates a tiered catalog backend.
func NewTieredBackend(hot, cold CatalogBackend) *TieredBackend {
	return &TieredBackend{hot: hot, cold: cold}
}

func (t *TieredBackend) Read(ctx context.Context, key string) ([]byte, error) {
	data, err := t.hot.Read(ctx, key)
	if err == nil {
		return data, nil
	}

	data, err = t.cold.Read(ctx, key)
	if err != nil {
		return nil, err
	}

	_ = t.hot.Write(ctx, key, data)
	return data, nil
}

func (t *TieredBackend) Write(ctx context.Context, key string, data []byte) error {
	return t.hot.Write(ctx, key, data)
}

func (t *TieredBackend) Delete(ctx context.Context, key string) error {
	errHot := t.hot.Delete(ctx, key)
	errCold := t.cold.Delete(ctx, key)
	if errHot != nil {
		return errHot
	}
	return errCold
}

func (t *TieredBackend) List(ctx context.Context, prefix string) ([]string, error) {
	hotKeys, err := t.hot.List(ctx, prefix)
	if err != nil {
		return nil, err
	}
	coldKeys, err := t.cold.List(ctx, prefix)
	if err != nil {
		return hotKeys, nil
	}

	seen := make(map[string]bool, len(hotKeys))
	for _, k := range hotKeys {
		seen[k] = true
	}
	for _, k := range coldKeys {
		if !seen[k] {
			hotKeys = append(hotKeys, k)
		}
	}
	return hotKeys, nil
}

func (t *TieredBackend) Exists(ctx context.Context, key string) (bool, error) {
	exists, err := t.hot.Exists(ctx, key)
	if err == nil && exists {
		return true, nil
	}
	return t.cold.Exists(ctx, key)
}

func (t *TieredBackend) Close() error {
	errHot := t.hot.Close()
	errCold := t.cold.Close()
	if errHot != nil {
		return errHot
	}
	return errCold
}

// Ensure interfaces are implemented
var (
	_ CatalogBackend = (*FileBackend)(nil)
	_ CatalogBackend = (*S3Backend)(nil)
	_ CatalogBackend = (*MemoryBackend)(nil)
	_ CatalogBackend = (*TieredBackend)(nil)
)

// ========== Catalog ==========

const (
	catalogTablePrefix      = "tables/"
	catalogStationPrefix    = "stations/"
	catalogPredictionPrefix = "predictions/"
)

// CatalogConfig configures a dataset catalog.
type CatalogConfig struct {
	// Codec encodes datasets to blobs and back.
	Codec CodecConfig
}

// DefaultCatalogConfig returns the default catalog configuration.
func DefaultCatalogConfig() CatalogConfig {
	return CatalogConfig{Codec: DefaultCodecConfig()}
}

// Catalog stores and loads observation tables, station geography, and
// prediction tables through a CatalogBackend. Datasets are addressed by
// name within their kind; blobs are CSV, optionally compressed per the
// codec configuration.
type Catalog struct {
	backend CatalogBackend
	codec   *TableCodec

	mu     sync.Mutex
	closed bool
}

// NewCatalog creates a catalog over the given backend.
func NewCatalog(backend CatalogBackend, config CatalogConfig) *Catalog {
	return &Catalog{
		backend: backend,
		codec:   NewTableCodec(config.Codec),
	}
}

// SaveTable encodes and stores an observation table under a name.
func (c *Catalog) SaveTable(ctx context.Context, name string, table *ObservationTable) error {
	return c.saveTable(ctx, catalogTablePrefix, name, table)
}

// LoadTable loads and decodes a stored observation table.
func (c *Catalog) LoadTable(ctx context.Context, name string) (*ObservationTable, error) {
	return c.loadTable(ctx, catalogTablePrefix, name)
}

// DeleteTable removes a stored observation table. Deleting a missing table
// is not an error.
func (c *Catalog) DeleteTable(ctx context.Context, name string) error {
	key, err := c.datasetKey(catalogTablePrefix, name)
	if err != nil {
		return err
	}
	return c.backend.Delete(ctx, key)
}

// HasTable reports whether a table is stored under the name.
func (c *Catalog) HasTable(ctx context.Context, name string) (bool, error) {
	key, err := c.datasetKey(catalogTablePrefix, name)
	if err != nil {
		return false, err
	}
	return c.backend.Exists(ctx, key)
}

// ListTables returns the names of stored observation tables, ascending.
func (c *Catalog) ListTables(ctx context.Context) ([]string, error) {
	return c.listNames(ctx, catalogTablePrefix)
}

// SavePredictions stores a predictions table under a name.
func (c *Catalog) SavePredictions(ctx context.Context, name string, predictions *ObservationTable) error {
	return c.saveTable(ctx, catalogPredictionPrefix, name, predictions)
}

// LoadPredictions loads a stored predictions table.
func (c *Catalog) LoadPredictions(ctx context.Context, name string) (*ObservationTable, error) {
	return c.loadTable(ctx, catalogPredictionPrefix, name)
}

// ListPredictions returns the names of stored prediction tables, ascending.
func (c *Catalog) ListPredictions(ctx context.Context) ([]string, error) {
	return c.listNames(ctx, catalogPredictionPrefix)
}

// SaveStations stores station geography under a name.
func (c *Catalog) SaveStations(ctx context.Context, name string, stations []Station) error {
	key, err := c.datasetKey(catalogStationPrefix, name)
	if err != nil {
		return err
	}
	blob, err := c.codec.EncodeStations(stations)
	if err != nil {
		return newCatalogError(CatalogErrorTypeWrite, "encode stations failed", key, err)
	}
	if err := c.backend.Write(ctx, key, blob); err != nil {
		return newCatalogError(CatalogErrorTypeWrite, "write stations failed", key, err)
	}
	return nil
}

// LoadStations loads stored station geography.
func (c *Catalog) LoadStations(ctx context.Context, name string) ([]Station, error) {
	key, err := c.datasetKey(catalogStationPrefix, name)
	if err != nil {
		return nil, err
	}
	blob, err := c.backend.Read(ctx, key)
	if err != nil {
		return nil, c.readError("stations", key, err)
	}
	stations, err := c.codec.DecodeStations(blob)
	if err != nil {
		return nil, newCatalogError(CatalogErrorTypeDecode, "decode stations failed", key, err)
	}
	return stations, nil
}

// Close closes the catalog and its backend. Further operations fail with
// ErrCatalogClosed.
func (c *Catalog) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return nil
	}
	c.closed = true
	return c.backend.Close()
}

func (c *Catalog) saveTable(ctx context.Context, kind, name string, table *ObservationTable) error {
	key, err := c.datasetKey(kind, name)
	if err != nil {
		return err
	}
	blob, err := c.codec.EncodeTable(table)
	if err != nil {
		return newCatalogError(CatalogErrorTypeWrite, "encode table failed", key, err)
	}
	if err := c.backend.Write(ctx, key, blob); err != nil {
		return newCatalogError(CatalogErrorTypeWrite, "write table failed", key, err)
	}
	return nil
}

func (c *Catalog) loadTable(ctx context.Context, kind, name string) (*ObservationTable, error) {
	key, err := c.datasetKey(kind, name)
	if err != nil {
		return nil, err
	}
	blob, err := c.backend.Read(ctx, key)
	if err != nil {
		return nil, c.readError("table", key, err)
	}
	table, err := c.codec.DecodeTable(blob)
	if err != nil {
		return nil, newCatalogError(CatalogErrorTypeDecode, "decode table failed", key, err)
	}
	return table, nil
}

func (c *Catalog) listNames(ctx context.Context, kind string) ([]string, error) {
	if err := c.checkOpen(); err != nil {
		return nil, err
	}
	keys, err := c.backend.List(ctx, kind)
	if err != nil {
		return nil, newCatalogError(CatalogErrorTypeRead, "list failed", kind, err)
	}

	ext := c.ext()
	names := make([]string, 0, len(keys))
	for _, key := range keys {
		if !strings.HasPrefix(key, kind) || !strings.HasSuffix(key, ext) {
			continue
		}
		names = append(names, strings.TrimSuffix(strings.TrimPrefix(key, kind), ext))
	}
	sort.Strings(names)
	return names, nil
}

// datasetKey validates a dataset name and maps it onto a backend key.
func (c *Catalog) datasetKey(kind, name string) (string, error) {
	if err := c.checkOpen(); err != nil {
		return "", err
	}
	if name == "" {
		return "", fmt.Errorf("catalog: dataset name is required")
	}
	if strings.ContainsAny(name, "/\\") || strings.Contains(name, "..") {
		return "", fmt.Errorf("catalog: invalid dataset name %q", name)
	}
	return kind + name + c.ext(), nil
}

func (c *Catalog) ext() string {
	if c.codec.config.Compression == CompressionSnappy {
		return ".csv.sz"
	}
	return ".csv"
}

func (c *Catalog) checkOpen() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return ErrCatalogClosed
	}
	return nil
}

func (c *Catalog) readError(what, key string, err error) error {
	if errors.Is(err, ErrDatasetNotFound) {
		return newCatalogError(CatalogErrorTypeNotFound, what+" not found", key, err)
	}
	return newCatalogError(CatalogErrorTypeRead, "read "+what+" failed", key, err)
}
