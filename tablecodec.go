package seastate

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/golang/snappy"
)

const (
	csvStationColumn   = "station_id"
	csvTimestampColumn = "timestamp"
	csvTagsColumn      = "tags"
	csvLatitudeColumn  = "latitude"
	csvLongitudeColumn = "longitude"
	csvXColumn         = "x"
	csvYColumn         = "y"
)

// BlobCompression selects the compression applied to encoded blobs.
type BlobCompression int

const (
	// CompressionNone stores blobs uncompressed.
	CompressionNone BlobCompression = iota
	// CompressionSnappy stores blobs snappy block-compressed.
	CompressionSnappy
)

func (b BlobCompression) String() string {
	switch b {
	case CompressionNone:
		return "none"
	case CompressionSnappy:
		return "snappy"
	default:
		return fmt.Sprintf("compression(%d)", int(b))
	}
}

// CodecConfig configures table and station blob encoding.
type CodecConfig struct {
	// Compression is applied after CSV encoding and reversed before
	// decoding.
	Compression BlobCompression

	// TimestampFormat renders row timestamps. The default RFC 3339 with
	// nanoseconds round-trips exactly.
	TimestampFormat string
}

// DefaultCodecConfig returns the default codec configuration.
func DefaultCodecConfig() CodecConfig {
	return CodecConfig{
		Compression:     CompressionNone,
		TimestampFormat: time.RFC3339Nano,
	}
}

// TableCodec encodes observation tables and station geography as CSV blobs.
// Observations are written wide, one column per variable; an absent value is
// an empty cell, never a zero. Decoding with the same configuration restores
// the table exactly.
type TableCodec struct {
	config CodecConfig
}

// NewTableCodec creates a codec with the given configuration.
func NewTableCodec(config CodecConfig) *TableCodec {
	if config.TimestampFormat == "" {
		config.TimestampFormat = time.RFC3339Nano
	}
	return &TableCodec{config: config}
}

// EncodeTable encodes a table as a CSV blob in canonical row order.
func (c *TableCodec) EncodeTable(table *ObservationTable) ([]byte, error) {
	columns := table.Columns()
	header := make([]string, 0, len(columns)+3)
	header = append(header, csvStationColumn, csvTimestampColumn)
	header = append(header, columns...)
	header = append(header, csvTagsColumn)

	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.Write(header); err != nil {
		return nil, fmt.Errorf("table codec: write header: %w", err)
	}

	record := make([]string, len(header))
	for _, row := range table.Rows() {
		record[0] = row.StationID
		record[1] = row.Timestamp.UTC().Format(c.config.TimestampFormat)
		for i, col := range columns {
			if v, ok := row.Value(col); ok {
				record[i+2] = strconv.FormatFloat(v, 'g', -1, 64)
			} else {
				record[i+2] = ""
			}
		}
		tags, err := formatCSVTags(row.Tags)
		if err != nil {
			return nil, fmt.Errorf("table codec: row %s: %w", row.Key(), err)
		}
		record[len(record)-1] = tags
		if err := w.Write(record); err != nil {
			return nil, fmt.Errorf("table codec: write record: %w", err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return nil, fmt.Errorf("table codec: %w", err)
	}
	return c.compress(buf.Bytes()), nil
}

// DecodeTable decodes a CSV blob produced by EncodeTable.
func (c *TableCodec) DecodeTable(data []byte) (*ObservationTable, error) {
	raw, err := c.decompress(data)
	if err != nil {
		return nil, err
	}

	r := csv.NewReader(bytes.NewReader(raw))
	records, err := r.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("table codec: %w", err)
	}
	if len(records) == 0 {
		return EmptyTable(), nil
	}

	header := records[0]
	if len(header) < 2 || header[0] != csvStationColumn || header[1] != csvTimestampColumn {
		return nil, fmt.Errorf("table codec: header must start with %s,%s", csvStationColumn, csvTimestampColumn)
	}
	varEnd := len(header)
	hasTags := header[len(header)-1] == csvTagsColumn
	if hasTags {
		varEnd--
	}
	columns := header[2:varEnd]

	rows := make([]Observation, 0, len(records)-1)
	for n, record := range records[1:] {
		ts, err := time.Parse(c.config.TimestampFormat, record[1])
		if err != nil {
			return nil, fmt.Errorf("table codec: record %d: timestamp: %w", n+1, err)
		}
		obs := Observation{
			StationID: record[0],
			Timestamp: ts,
			Values:    make(map[string]float64, len(columns)),
		}
		for i, col := range columns {
			cell := record[i+2]
			if cell == "" {
				continue
			}
			v, err := strconv.ParseFloat(cell, 64)
			if err != nil {
				return nil, fmt.Errorf("table codec: record %d: column %s: %w", n+1, col, err)
			}
			obs.Values[col] = v
		}
		if hasTags && record[len(record)-1] != "" {
			obs.Tags, err = parseCSVTags(record[len(record)-1])
			if err != nil {
				return nil, fmt.Errorf("table codec: record %d: %w", n+1, err)
			}
		}
		rows = append(rows, obs)
	}
	return NewObservationTable(rows)
}

// EncodeStations encodes station geography as a CSV blob. Stations without
// planar coordinates leave the x and y cells empty.
func (c *TableCodec) EncodeStations(stations []Station) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	header := []string{csvStationColumn, csvLatitudeColumn, csvLongitudeColumn, csvXColumn, csvYColumn}
	if err := w.Write(header); err != nil {
		return nil, fmt.Errorf("station codec: write header: %w", err)
	}

	sorted := append([]Station(nil), stations...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].ID < sorted[j].ID })
	for _, s := range sorted {
		if err := s.Validate(); err != nil {
			return nil, fmt.Errorf("station codec: %w", err)
		}
		record := []string{
			s.ID,
			strconv.FormatFloat(s.Latitude, 'g', -1, 64),
			strconv.FormatFloat(s.Longitude, 'g', -1, 64),
			"",
			"",
		}
		if s.HasPlanar {
			record[3] = strconv.FormatFloat(s.X, 'g', -1, 64)
			record[4] = strconv.FormatFloat(s.Y, 'g', -1, 64)
		}
		if err := w.Write(record); err != nil {
			return nil, fmt.Errorf("station codec: write record: %w", err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return nil, fmt.Errorf("station codec: %w", err)
	}
	return c.compress(buf.Bytes()), nil
}

// DecodeStations decodes a CSV blob produced by EncodeStations.
func (c *TableCodec) DecodeStations(data []byte) ([]Station, error) {
	raw, err := c.decompress(data)
	if err != nil {
		return nil, err
	}

	r := csv.NewReader(bytes.NewReader(raw))
	records, err := r.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("station codec: %w", err)
	}
	if len(records) == 0 {
		return nil, nil
	}
	if len(records[0]) != 5 || records[0][0] != csvStationColumn {
		return nil, fmt.Errorf("station codec: unexpected header %v", records[0])
	}

	stations := make([]Station, 0, len(records)-1)
	for n, record := range records[1:] {
		s := Station{ID: record[0]}
		if s.Latitude, err = strconv.ParseFloat(record[1], 64); err != nil {
			return nil, fmt.Errorf("station codec: record %d: latitude: %w", n+1, err)
		}
		if s.Longitude, err = strconv.ParseFloat(record[2], 64); err != nil {
			return nil, fmt.Errorf("station codec: record %d: longitude: %w", n+1, err)
		}
		if (record[3] == "") != (record[4] == "") {
			return nil, fmt.Errorf("station codec: record %d: x and y must both be set or both be empty", n+1)
		}
		if record[3] != "" {
			if s.X, err = strconv.ParseFloat(record[3], 64); err != nil {
				return nil, fmt.Errorf("station codec: record %d: x: %w", n+1, err)
			}
			if s.Y, err = strconv.ParseFloat(record[4], 64); err != nil {
				return nil, fmt.Errorf("station codec: record %d: y: %w", n+1, err)
			}
			s.HasPlanar = true
		}
		if err := s.Validate(); err != nil {
			return nil, fmt.Errorf("station codec: record %d: %w", n+1, err)
		}
		stations = append(stations, s)
	}
	return stations, nil
}

func (c *TableCodec) compress(data []byte) []byte {
	if c.config.Compression == CompressionSnappy {
		return snappy.Encode(nil, data)
	}
	return data
}

func (c *TableCodec) decompress(data []byte) ([]byte, error) {
	if c.config.Compression == CompressionSnappy {
		raw, err := snappy.Decode(nil, data)
		if err != nil {
			return nil, fmt.Errorf("table codec: snappy: %w", err)
		}
		return raw, nil
	}
	return data, nil
}

// formatCSVTags renders tags as a sorted comma-separated key=value list.
func formatCSVTags(tags map[string]string) (string, error) {
	if len(tags) == 0 {
		return "", nil
	}
	parts := make([]string, 0, len(tags))
	for k, v := range tags {
		if strings.ContainsAny(k, ",=") || strings.ContainsAny(v, ",=") {
			return "", fmt.Errorf("tag %s=%s contains a reserved character", k, v)
		}
		parts = append(parts, k+"="+v)
	}
	sort.Strings(parts)
	return strings.Join(parts, ","), nil
}

// parseCSVTags parses a comma-separated key=value list.
func parseCSVTags(s string) (map[string]string, error) {
	parts := strings.Split(s, ",")
	tags := make(map[string]string, len(parts))
	for _, part := range parts {
		k, v, ok := strings.Cut(part, "=")
		if !ok || k == "" {
			return nil, fmt.Errorf("malformed tag %q", part)
		}
		tags[k] = v
	}
	return tags, nil
}
