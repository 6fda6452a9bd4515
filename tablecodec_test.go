package seastate

import (
	"reflect"
	"strings"
	"testing"
	"time"
)

func codecTable(t *testing.T) *ObservationTable {
	t.Helper()
	t1 := time.Date(2024, 3, 15, 12, 0, 0, 0, time.UTC)
	t2 := t1.Add(time.Hour)
	rows := []Observation{
		obsAt("41001", t1, map[string]float64{"wave_height": 2.375, "wind_speed": 9.5}),
		obsAt("41002", t1, map[string]float64{"wave_height": 1e-7}),
		obsAt("41001", t2, map[string]float64{"wind_speed": 11.25}),
	}
	rows[0].Tags = map[string]string{"source": "ndbc", "qc": "pass"}
	return mustTable(t, rows)
}

func TestBlobCompressionString(t *testing.T) {
	if CompressionNone.String() != "none" {
		t.Errorf("unexpected string: %s", CompressionNone)
	}
	if CompressionSnappy.String() != "snappy" {
		t.Errorf("unexpected string: %s", CompressionSnappy)
	}
	if BlobCompression(9).String() != "compression(9)" {
		t.Errorf("unexpected string: %s", BlobCompression(9))
	}
}

func TestTableCodecRoundTrip(t *testing.T) {
	table := codecTable(t)
	codec := NewTableCodec(DefaultCodecConfig())

	data, err := codec.EncodeTable(table)
	if err != nil {
		t.Fatalf("encode failed: %v", err)
	}
	decoded, err := codec.DecodeTable(data)
	if err != nil {
		t.Fatalf("decode failed: %v", err)
	}

	if !reflect.DeepEqual(decoded.Rows(), table.Rows()) {
		t.Errorf("round trip changed the table:\nbefore: %+v\nafter:  %+v", table.Rows(), decoded.Rows())
	}

	// Absent cells stay absent, they never become zeros.
	row, _ := decoded.Lookup(NewKey("41002", time.Date(2024, 3, 15, 12, 0, 0, 0, time.UTC)))
	if _, ok := row.Value("wind_speed"); ok {
		t.Error("expected absent value to stay absent")
	}
	if tags, _ := decoded.Lookup(NewKey("41001", time.Date(2024, 3, 15, 12, 0, 0, 0, time.UTC))); tags.Tags["source"] != "ndbc" {
		t.Errorf("expected tags to survive, got %v", tags.Tags)
	}
}

func TestTableCodecHeaderLayout(t *testing.T) {
	table := codecTable(t)
	codec := NewTableCodec(DefaultCodecConfig())

	data, err := codec.EncodeTable(table)
	if err != nil {
		t.Fatalf("encode failed: %v", err)
	}

	header := strings.SplitN(string(data), "\n", 2)[0]
	if header != "station_id,timestamp,wave_height,wind_speed,tags" {
		t.Errorf("unexpected header %q", header)
	}
}

func TestTableCodecSnappy(t *testing.T) {
	table := codecTable(t)
	config := DefaultCodecConfig()
	config.Compression = CompressionSnappy
	codec := NewTableCodec(config)

	data, err := codec.EncodeTable(table)
	if err != nil {
		t.Fatalf("encode failed: %v", err)
	}
	decoded, err := codec.DecodeTable(data)
	if err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	if !reflect.DeepEqual(decoded.Rows(), table.Rows()) {
		t.Error("snappy round trip changed the table")
	}

	// An uncompressed blob is not valid snappy input.
	plain, err := NewTableCodec(DefaultCodecConfig()).EncodeTable(table)
	if err != nil {
		t.Fatalf("plain encode failed: %v", err)
	}
	if _, err := codec.DecodeTable(plain); err == nil {
		t.Error("expected snappy decode of plain blob to fail")
	}
}

func TestTableCodecCustomTimestampFormat(t *testing.T) {
	config := DefaultCodecConfig()
	config.TimestampFormat = "2006-01-02 15:04:05"
	codec := NewTableCodec(config)

	table := codecTable(t)
	data, err := codec.EncodeTable(table)
	if err != nil {
		t.Fatalf("encode failed: %v", err)
	}
	decoded, err := codec.DecodeTable(data)
	if err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	if decoded.Len() != table.Len() {
		t.Errorf("expected %d rows, got %d", table.Len(), decoded.Len())
	}
}

func TestTableCodecEmptyTable(t *testing.T) {
	codec := NewTableCodec(DefaultCodecConfig())

	data, err := codec.EncodeTable(EmptyTable())
	if err != nil {
		t.Fatalf("encode failed: %v", err)
	}
	decoded, err := codec.DecodeTable(data)
	if err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	if decoded.Len() != 0 {
		t.Errorf("expected empty table, got %d rows", decoded.Len())
	}

	decoded, err = codec.DecodeTable(nil)
	if err != nil {
		t.Fatalf("decode of empty blob failed: %v", err)
	}
	if decoded.Len() != 0 {
		t.Errorf("expected empty table from empty blob, got %d rows", decoded.Len())
	}
}

func TestTableCodecReservedTagCharacters(t *testing.T) {
	ts := time.Date(2024, 3, 15, 12, 0, 0, 0, time.UTC)
	row := obsAt("A", ts, map[string]float64{"wave_height": 1})
	row.Tags = map[string]string{"note": "a,b"}
	table := mustTable(t, []Observation{row})

	codec := NewTableCodec(DefaultCodecConfig())
	if _, err := codec.EncodeTable(table); err == nil {
		t.Error("expected error for reserved character in tag")
	}
}

func TestTableCodecDecodeErrors(t *testing.T) {
	codec := NewTableCodec(DefaultCodecConfig())
	tests := []struct {
		name string
		blob string
	}{
		{
			name: "bad header",
			blob: "foo,bar\nA,B\n",
		},
		{
			name: "bad timestamp",
			blob: "station_id,timestamp,wave_height,tags\nA,notatime,1.5,\n",
		},
		{
			name: "bad float",
			blob: "station_id,timestamp,wave_height,tags\nA,2024-03-15T12:00:00Z,abc,\n",
		},
		{
			name: "malformed tag",
			blob: "station_id,timestamp,wave_height,tags\nA,2024-03-15T12:00:00Z,1.5,notag\n",
		},
		{
			name: "duplicate key",
			blob: "station_id,timestamp,wave_height,tags\n" +
				"A,2024-03-15T12:00:00Z,1.5,\n" +
				"A,2024-03-15T12:00:00Z,2.5,\n",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := codec.DecodeTable([]byte(tt.blob)); err == nil {
				t.Error("expected error, got nil")
			}
		})
	}
}

func TestStationCodecRoundTrip(t *testing.T) {
	stations := []Station{
		{ID: "41048", Latitude: 31.8, Longitude: -69.6},
		{ID: "41001", Latitude: 34.7, Longitude: -72.7, X: 100.5, Y: -20.25, HasPlanar: true},
	}
	codec := NewTableCodec(DefaultCodecConfig())

	data, err := codec.EncodeStations(stations)
	if err != nil {
		t.Fatalf("encode failed: %v", err)
	}
	decoded, err := codec.DecodeStations(data)
	if err != nil {
		t.Fatalf("decode failed: %v", err)
	}

	// Output is sorted by station ID.
	want := []Station{stations[1], stations[0]}
	if !reflect.DeepEqual(decoded, want) {
		t.Errorf("unexpected stations: %+v", decoded)
	}
}

func TestStationCodecEmptyInput(t *testing.T) {
	codec := NewTableCodec(DefaultCodecConfig())
	decoded, err := codec.DecodeStations(nil)
	if err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	if decoded != nil {
		t.Errorf("expected nil stations, got %v", decoded)
	}
}

func TestStationCodecErrors(t *testing.T) {
	codec := NewTableCodec(DefaultCodecConfig())

	if _, err := codec.EncodeStations([]Station{{ID: "bad", Latitude: 999}}); err == nil {
		t.Error("expected error for invalid station")
	}

	tests := []struct {
		name string
		blob string
	}{
		{
			name: "bad header",
			blob: "foo,bar,baz,x,y\n",
		},
		{
			name: "x without y",
			blob: "station_id,latitude,longitude,x,y\nA,10,20,1.5,\n",
		},
		{
			name: "bad latitude",
			blob: "station_id,latitude,longitude,x,y\nA,north,20,,\n",
		},
		{
			name: "out of range",
			blob: "station_id,latitude,longitude,x,y\nA,999,20,,\n",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := codec.DecodeStations([]byte(tt.blob)); err == nil {
				t.Error("expected error, got nil")
			}
		})
	}
}

func TestFormatCSVTags(t *testing.T) {
	got, err := formatCSVTags(map[string]string{"b": "2", "a": "1"})
	if err != nil {
		t.Fatalf("format failed: %v", err)
	}
	if got != "a=1,b=2" {
		t.Errorf("expected sorted tags, got %q", got)
	}

	tags, err := parseCSVTags(got)
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	if !reflect.DeepEqual(tags, map[string]string{"a": "1", "b": "2"}) {
		t.Errorf("unexpected tags: %v", tags)
	}
}
