package streamconv

import "go.k6.io/k6/js/modules"

// StreamConv is the k6/x/streamconv module root object: it builds
// Converter instances from JS-friendly config and exposes the detectors
// directly, following the same modules.Register shape the teacher
// module used for its own root object.
type StreamConv struct{}

func init() {
	modules.Register("k6/x/streamconv", &StreamConv{})
}

// ConverterHandle is the JS-facing wrapper around a *Converter: every
// method returns plain values (strings/maps) a k6 script can consume
// directly instead of raw byte slices.
type ConverterHandle struct {
	conv *Converter
}

// converterJSConfig is the shape a k6 script passes to NewConverter; it
// mirrors ConverterConfig with string-spelled formats the way the rest
// of spec.md §6.3's configuration surface is described.
type converterJSConfig struct {
	InputFormat      string                 `js:"input_format"`
	OutputFormat     string                 `js:"output_format"`
	ChunkTargetBytes int                    `js:"chunk_target_bytes"`
	EnableStats      bool                   `js:"enable_stats"`
	CSV              *yamlCSVConfig         `js:"csv"`
	XML              *yamlXMLConfig         `js:"xml"`
	Transform        *yamlTransformConfig   `js:"transform"`
}

// NewConverter builds a ConverterHandle from a JS-friendly config object.
// The CSV/XML sub-config building mirrors LoadConverterConfigYAML's, and
// the transform plan goes through the same buildTransformPlanFromYAML, so
// the YAML and JS configuration paths share the policy-parsing switch
// statements instead of duplicating them.
func (s *StreamConv) NewConverter(cfg converterJSConfig) (*ConverterHandle, error) {
	input, ok := ParseFormat(cfg.InputFormat)
	if cfg.InputFormat != "" && !ok {
		return nil, newError(KindInvalidConfig, "unknown input_format %q", cfg.InputFormat)
	}
	output, ok := ParseFormat(cfg.OutputFormat)
	if !ok {
		return nil, newError(KindInvalidConfig, "unknown output_format %q", cfg.OutputFormat)
	}

	converterCfg := NewConverterConfig(input, output)
	if cfg.ChunkTargetBytes > 0 {
		converterCfg.ChunkTargetBytes = cfg.ChunkTargetBytes
	}
	converterCfg.EnableStats = cfg.EnableStats

	if cfg.CSV != nil {
		csvCfg := DefaultCSVConfig()
		if cfg.CSV.Delimiter != "" {
			csvCfg = csvCfg.WithDelimiter(cfg.CSV.Delimiter[0])
		}
		if cfg.CSV.HasHeaders != nil {
			csvCfg.HasHeaders = *cfg.CSV.HasHeaders
		}
		csvCfg.TrimWhitespace = cfg.CSV.TrimWhitespace
		converterCfg.CSV = &csvCfg
	}
	if cfg.XML != nil {
		xmlCfg := DefaultXMLConfig()
		if cfg.XML.RecordElement != "" {
			xmlCfg = xmlCfg.WithRecordElement(cfg.XML.RecordElement)
		}
		if cfg.XML.TrimText != nil {
			xmlCfg.TrimText = *cfg.XML.TrimText
		}
		xmlCfg.IncludeAttributes = cfg.XML.IncludeAttributes
		if cfg.XML.ExpandEntities != nil {
			xmlCfg.ExpandEntities = *cfg.XML.ExpandEntities
		}
		converterCfg.XML = &xmlCfg
	}
	if cfg.Transform != nil {
		plan, err := buildTransformPlanFromYAML(*cfg.Transform)
		if err != nil {
			return nil, err
		}
		converterCfg.Transform = plan
	}

	conv, err := NewConverter(converterCfg)
	if err != nil {
		return nil, err
	}
	return &ConverterHandle{conv: conv}, nil
}

// Push feeds one chunk of bytes (passed as a string from JS) through the
// converter and returns the resulting bytes as a string.
func (h *ConverterHandle) Push(chunk string) (string, error) {
	out, err := h.conv.Push([]byte(chunk))
	return string(out), err
}

// Finish flushes the converter and returns any remaining output.
func (h *ConverterHandle) Finish() (string, error) {
	out, err := h.conv.Finish()
	return string(out), err
}

// Stats returns the running statistics snapshot, with the derived
// throughput field spec.md §6.1 calls for.
func (h *ConverterHandle) Stats() map[string]interface{} {
	s := h.conv.Stats()
	return map[string]interface{}{
		"bytes_in":             s.BytesIn,
		"bytes_out":            s.BytesOut,
		"chunks_in":            s.ChunksIn,
		"records_processed":    s.RecordsProcessed,
		"parse_time_ns":        s.ParseTimeNs,
		"transform_time_ns":    s.TransformTimeNs,
		"write_time_ns":        s.WriteTimeNs,
		"max_buffer_size":      s.MaxBufferSize,
		"current_partial_size": s.CurrentPartialSize,
		"throughput_mb_per_sec": s.ThroughputMBPerSec(),
	}
}

// ID returns the converter's correlation ID, useful in debug logs when a
// script runs several converters concurrently on different VUs.
func (h *ConverterHandle) ID() string { return h.conv.ID }

// DetectFormat exposes spec.md §6.1's detect_format to JS hosts.
func (s *StreamConv) DetectFormat(sample string) (string, bool) {
	f, ok := DetectFormat([]byte(sample))
	return f.String(), ok
}

// DetectCSV exposes detect_csv to JS hosts.
func (s *StreamConv) DetectCSV(sample string) (map[string]interface{}, bool) {
	d, ok := DetectCSV([]byte(sample))
	if !ok {
		return nil, false
	}
	return map[string]interface{}{"delimiter": string(d.Delimiter), "fields": d.Fields}, true
}

// DetectXML exposes detect_xml to JS hosts.
func (s *StreamConv) DetectXML(sample string) (map[string]interface{}, bool) {
	d, ok := DetectXML([]byte(sample))
	if !ok {
		return nil, false
	}
	return map[string]interface{}{"elements": d.Elements, "record_element": d.RecordElement}, true
}
