package streamconv

import "strings"

// Format tags one of the four interchange formats this package converts
// between (spec.md §3.1).
type Format int

const (
	FormatUnknown Format = iota
	FormatCSV
	FormatNDJSON
	FormatJSON
	FormatXML
)

// ParseFormat maps a host-supplied format name to a Format, accepting
// "jsonl" as a synonym for NDJSON the way the teacher's LoadJSON treats
// the ".ndjson" extension as an alias for line-delimited JSON.
func ParseFormat(s string) (Format, bool) {
	switch strings.ToLower(s) {
	case "csv":
		return FormatCSV, true
	case "ndjson", "jsonl":
		return FormatNDJSON, true
	case "json":
		return FormatJSON, true
	case "xml":
		return FormatXML, true
	default:
		return FormatUnknown, false
	}
}

func (f Format) String() string {
	switch f {
	case FormatCSV:
		return "csv"
	case FormatNDJSON:
		return "ndjson"
	case FormatJSON:
		return "json"
	case FormatXML:
		return "xml"
	default:
		return "unknown"
	}
}

// DefaultChunkTargetBytes is the advisory output buffer capacity hint used
// when a ConverterConfig doesn't specify one, matching the teacher's 64KB
// buffered-reader convention (bufio.NewReaderSize(file, 64*1024)).
const DefaultChunkTargetBytes = 64 * 1024

// ConverterConfig is the full configuration surface described in spec.md
// §3.1 and §6.3.
type ConverterConfig struct {
	InputFormat      Format
	OutputFormat     Format
	ChunkTargetBytes int
	EnableStats      bool
	CSV              *CSVConfig
	XML              *XMLConfig
	Transform        *TransformPlan
}

// NewConverterConfig builds a config with the teacher's defaults: 64KB
// chunk target, stats disabled, default CSV/XML tuning.
func NewConverterConfig(input, output Format) ConverterConfig {
	csv := DefaultCSVConfig()
	xml := DefaultXMLConfig()
	return ConverterConfig{
		InputFormat:      input,
		OutputFormat:     output,
		ChunkTargetBytes: DefaultChunkTargetBytes,
		CSV:              &csv,
		XML:              &xml,
	}
}

// needsCSVDelimiterDetection reports whether the input is CSV without an
// explicitly chosen delimiter.
func (c ConverterConfig) needsCSVDelimiterDetection() bool {
	return c.InputFormat == FormatCSV && (c.CSV == nil || !c.CSV.delimiterExplicit)
}

func (c ConverterConfig) needsXMLRecordElementDetection() bool {
	return c.InputFormat == FormatXML && (c.XML == nil || !c.XML.recordElementExplicit)
}

// needsDetection reports whether this config requires the converter to run
// format/delimiter/record-element auto-detection before it can commit to an
// active pipeline (spec.md §3.3, §4.8).
func (c ConverterConfig) needsDetection() bool {
	return c.InputFormat == FormatUnknown ||
		c.needsCSVDelimiterDetection() ||
		c.needsXMLRecordElementDetection()
}
