package configs

import (
	"path/filepath"
	"strings"
)

const (
	// DefaultPreset is the rulebook used when none is configured.
	DefaultPreset = "rd05"
	// DefaultSkipRows is the number of banner rows above the header in
	// exported asset sheets.
	DefaultSkipRows = 8
	// DefaultUnsetMarker is written for attributes no rule assigned.
	DefaultUnsetMarker = "UNSET"
	// DefaultCollation orders catalog values.
	DefaultCollation = "th"
	// DefaultServeAddr is the listen address for the HTTP transport.
	DefaultServeAddr = "127.0.0.1:8080"
)

// Output formats.
const (
	FormatCSV   = "csv"
	FormatXLSX  = "xlsx"
	FormatJSONL = "jsonl"
	FormatYAML  = "yaml"
)

// Telemetry exporters.
const (
	ExporterNone   = "none"
	ExporterStdout = "stdout"
	ExporterOTLP   = "otlp"
)

// RulebookConfig selects a rulebook by preset name or file path. A path
// takes precedence.
type RulebookConfig struct {
	// Preset names an embedded rulebook, e.g. "rd03" or "rd05".
	Preset string `json:"preset,omitempty" jsonschema:"title=Preset"`
	// Path is a rulebook file. Relative paths resolve against the
	// configuration file's directory.
	Path string `json:"path,omitempty" jsonschema:"title=Path"`
}

func (r *RulebookConfig) EnsureDefaults() {
	if r.Preset == "" && r.Path == "" {
		r.Preset = DefaultPreset
	}
}

// InputConfig controls table reading.
type InputConfig struct {
	// SkipRows is the number of banner rows above the data.
	SkipRows *int `json:"skipRows,omitempty" jsonschema:"title=Skip Rows,minimum=0" validate:"omitempty,gte=0"`
	// Sheet is the XLSX sheet to read. Defaults to the first sheet.
	Sheet string `json:"sheet,omitempty" jsonschema:"title=Sheet"`
	// DropColumns are zero-based column indexes removed before columns are
	// named. Defaults to [0], the row index column of exported sheets.
	DropColumns []int `json:"dropColumns,omitempty" jsonschema:"title=Drop Columns" validate:"dive,gte=0"`
	// Header reads column names from the first row after SkipRows. When
	// false, columns map to schema fields in declaration order.
	Header bool `json:"header,omitempty" jsonschema:"title=Header Row"`
}

func (i *InputConfig) EnsureDefaults() {
	if i.SkipRows == nil {
		n := DefaultSkipRows
		i.SkipRows = &n
	}
	if i.DropColumns == nil {
		i.DropColumns = []int{0}
	}
}

// OutputConfig controls table writing.
type OutputConfig struct {
	// Format is the output format. Inferred from the output file
	// extension when empty.
	Format string `json:"format,omitempty" jsonschema:"title=Format,enum=csv,enum=xlsx,enum=jsonl" validate:"omitempty,oneof=csv xlsx jsonl"`
	// UnsetMarker is written for attributes no rule assigned. It must not
	// equal any rulebook label.
	UnsetMarker string `json:"unsetMarker,omitempty" jsonschema:"title=Unset Marker"`
}

func (o *OutputConfig) EnsureDefaults() {
	if o.UnsetMarker == "" {
		o.UnsetMarker = DefaultUnsetMarker
	}
}

// FormatFor returns the configured format, or the one implied by path.
func (o *OutputConfig) FormatFor(path string) string {
	if o.Format != "" {
		return o.Format
	}

	return FormatFromPath(path, FormatCSV)
}

// FormatFromPath infers a format from the file extension of path.
func FormatFromPath(path, fallback string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".xlsx", ".xlsm":
		return FormatXLSX
	case ".csv":
		return FormatCSV
	case ".jsonl", ".ndjson":
		return FormatJSONL
	case ".yaml", ".yml":
		return FormatYAML
	}

	return fallback
}

// CatalogConfig controls value catalogs.
type CatalogConfig struct {
	// Collation is a BCP 47 language tag used to order values.
	Collation string `json:"collation,omitempty" jsonschema:"title=Collation"`
}

func (c *CatalogConfig) EnsureDefaults() {
	if c.Collation == "" {
		c.Collation = DefaultCollation
	}
}

// ClassifyConfig controls classification runs.
type ClassifyConfig struct {
	// Workers bounds classification concurrency. Zero uses GOMAXPROCS.
	Workers int `json:"workers,omitempty" jsonschema:"title=Workers,minimum=0" validate:"gte=0"`
	// ChunkSize is the number of records per work unit.
	ChunkSize int `json:"chunkSize,omitempty" jsonschema:"title=Chunk Size,minimum=0" validate:"gte=0"`
}

// TelemetryConfig controls trace export. OTEL_* environment variables
// override these settings.
type TelemetryConfig struct {
	// Exporter is one of none, stdout, or otlp.
	Exporter string `json:"exporter,omitempty" jsonschema:"title=Exporter,enum=none,enum=stdout,enum=otlp" validate:"omitempty,oneof=none stdout otlp"`
	// Endpoint is the OTLP gRPC endpoint.
	Endpoint string `json:"endpoint,omitempty" jsonschema:"title=Endpoint"`
}

func (t *TelemetryConfig) EnsureDefaults() {
	if t.Exporter == "" {
		t.Exporter = ExporterNone
	}
}

// ServeConfig controls the MCP server.
type ServeConfig struct {
	// Addr is the listen address for the streamable HTTP transport.
	Addr string `json:"addr,omitempty" jsonschema:"title=Address"`
	// Watch reloads the rulebook file when it changes.
	Watch bool `json:"watch,omitempty" jsonschema:"title=Watch"`
}

func (s *ServeConfig) EnsureDefaults() {
	if s.Addr == "" {
		s.Addr = DefaultServeAddr
	}
}
