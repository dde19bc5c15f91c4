package streamconv

import (
	"bytes"

	"github.com/google/uuid"
)

// pipelineSource is the shared two-operation contract spec.md §9 describes
// for every parser: push a chunk and get back complete NDJSON lines, or
// flush whatever's buffered at finish.
type pipelineSource interface {
	push(chunk []byte) ([]byte, error)
	finish() ([]byte, error)
	recordCount() uint64
}

// pipelineSink consumes complete NDJSON lines (never a partial trailing
// line — every upstream stage only emits whole lines) and produces bytes
// in the sink's target format.
type pipelineSink interface {
	push(ndjsonLines []byte) ([]byte, error)
	finish() ([]byte, error)
}

// --- source adapters ---

type csvSourceStage struct{ p *CSVParser }

func (s *csvSourceStage) push(chunk []byte) ([]byte, error) { return s.p.PushToNDJSON(chunk), nil }
func (s *csvSourceStage) finish() ([]byte, error)           { return s.p.Finish(), nil }
func (s *csvSourceStage) recordCount() uint64               { return s.p.RecordCount() }

type ndjsonSourceStage struct{ p *NDJSONParser }

func (s *ndjsonSourceStage) push(chunk []byte) ([]byte, error) { return s.p.Push(chunk), nil }
func (s *ndjsonSourceStage) finish() ([]byte, error)           { return s.p.Finish(), nil }
func (s *ndjsonSourceStage) recordCount() uint64               { return s.p.RecordCount() }

type xmlSourceStage struct{ p *XMLParser }

func (s *xmlSourceStage) push(chunk []byte) ([]byte, error) { return s.p.PushToNDJSON(chunk) }
func (s *xmlSourceStage) finish() ([]byte, error)           { return s.p.Finish(), nil }
func (s *xmlSourceStage) recordCount() uint64               { return s.p.RecordCount() }

// jsonSourceStage buffers the entire document, since a single JSON value
// (object or array) can't generally be split into independent records
// without first knowing where it ends. This is a documented departure
// from the other sources' true streaming behavior: push always returns
// empty output, and the whole document is parsed and fanned out into
// NDJSON lines at finish.
type jsonSourceStage struct {
	buf     []byte
	records uint64
}

func (s *jsonSourceStage) push(chunk []byte) ([]byte, error) {
	s.buf = append(s.buf, chunk...)
	return nil, nil
}

func (s *jsonSourceStage) finish() ([]byte, error) {
	data := bytes.TrimSpace(s.buf)
	s.buf = nil
	if len(data) == 0 {
		return nil, nil
	}
	top, err := ParseAndValidate(data)
	if err != nil {
		return nil, err
	}
	var records []interface{}
	if arr, ok := top.([]interface{}); ok {
		records = arr
	} else {
		records = []interface{}{top}
	}
	var out bytes.Buffer
	for _, r := range records {
		b, err := marshalJSONValue2(r)
		if err != nil {
			return out.Bytes(), wrapError(KindJSONParse, err, "json source: failed to re-serialize record")
		}
		out.Write(b)
		out.WriteByte('\n')
		s.records++
	}
	return out.Bytes(), nil
}

func (s *jsonSourceStage) recordCount() uint64 { return s.records }

func marshalJSONValue2(v interface{}) ([]byte, error) {
	var buf bytes.Buffer
	if err := marshalJSONValue(&buf, v); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// --- sink adapters ---

type ndjsonSinkStage struct{}

func (s *ndjsonSinkStage) push(lines []byte) ([]byte, error) { return lines, nil }
func (s *ndjsonSinkStage) finish() ([]byte, error)           { return nil, nil }

type csvSinkStage struct{ w *CSVWriter }

func (s *csvSinkStage) push(lines []byte) ([]byte, error) {
	var out bytes.Buffer
	for _, line := range splitCompleteLines(lines) {
		b, err := s.w.ProcessJSONLine(line)
		if err != nil {
			return out.Bytes(), err
		}
		out.Write(b)
	}
	return out.Bytes(), nil
}
func (s *csvSinkStage) finish() ([]byte, error) { return s.w.Finish(), nil }

type xmlSinkStage struct{ w *XMLWriter }

func (s *xmlSinkStage) push(lines []byte) ([]byte, error) {
	var out bytes.Buffer
	for _, line := range splitCompleteLines(lines) {
		b, err := s.w.ProcessJSONLine(line)
		if err != nil {
			return out.Bytes(), err
		}
		out.Write(b)
	}
	return out.Bytes(), nil
}
func (s *xmlSinkStage) finish() ([]byte, error) { return s.w.Finish(), nil }

// jsonSinkStage wraps NDJSON lines into a single JSON array, matching
// spec.md §4.3's to_json_array semantics but operating on the sink side
// of the pipeline.
type jsonSinkStage struct {
	opened       bool
	itemsWritten uint64
}

func (s *jsonSinkStage) push(lines []byte) ([]byte, error) {
	var out bytes.Buffer
	if !s.opened {
		out.WriteByte('[')
		s.opened = true
	}
	for _, line := range splitCompleteLines(lines) {
		if s.itemsWritten > 0 {
			out.WriteByte(',')
		}
		out.Write(line)
		s.itemsWritten++
	}
	return out.Bytes(), nil
}

func (s *jsonSinkStage) finish() ([]byte, error) {
	var out bytes.Buffer
	if !s.opened {
		out.WriteByte('[')
		s.opened = true
	}
	out.WriteByte(']')
	return out.Bytes(), nil
}

// splitCompleteLines splits a byte blob that's guaranteed (by upstream
// source/transform stage contracts) to contain only whole "line\n" units,
// dropping the final empty segment after the last newline.
func splitCompleteLines(b []byte) [][]byte {
	if len(b) == 0 {
		return nil
	}
	parts := bytes.Split(b, []byte("\n"))
	if len(parts) > 0 && len(parts[len(parts)-1]) == 0 {
		parts = parts[:len(parts)-1]
	}
	out := parts[:0:0]
	for _, p := range parts {
		if len(bytes.TrimSpace(p)) > 0 {
			out = append(out, p)
		}
	}
	return out
}

func buildSourceStage(cfg ConverterConfig) (pipelineSource, error) {
	switch cfg.InputFormat {
	case FormatCSV:
		csvCfg := DefaultCSVConfig()
		if cfg.CSV != nil {
			csvCfg = *cfg.CSV
		}
		return &csvSourceStage{p: NewCSVParser(csvCfg)}, nil
	case FormatNDJSON:
		return &ndjsonSourceStage{p: NewNDJSONParser()}, nil
	case FormatJSON:
		return &jsonSourceStage{}, nil
	case FormatXML:
		xmlCfg := DefaultXMLConfig()
		if cfg.XML != nil {
			xmlCfg = *cfg.XML
		}
		return &xmlSourceStage{p: NewXMLParser(xmlCfg)}, nil
	default:
		return nil, newError(KindInvalidConfig, "unknown or undetected input format")
	}
}

func buildSinkStage(cfg ConverterConfig) (pipelineSink, error) {
	switch cfg.OutputFormat {
	case FormatCSV:
		delim := byte(',')
		if cfg.CSV != nil {
			delim = cfg.CSV.Delimiter
		}
		return &csvSinkStage{w: NewCSVWriter(delim)}, nil
	case FormatNDJSON:
		return &ndjsonSinkStage{}, nil
	case FormatJSON:
		return &jsonSinkStage{}, nil
	case FormatXML:
		return &xmlSinkStage{w: NewXMLWriter()}, nil
	default:
		return nil, newError(KindInvalidConfig, "unknown output format")
	}
}

// Converter is the tagged state machine from spec.md §4.8: it owns a
// source stage, an optional transform stage, and a sink stage, plus the
// NeedsDetection pre-state buffer used before the pipeline commits.
type Converter struct {
	ID string

	cfg         ConverterConfig
	enableStats bool
	stats       Stats

	active          bool
	finished        bool
	detectionBuffer []byte

	source    pipelineSource
	transform *TransformEngine
	sink      pipelineSink
}

// NewConverter builds a converter from config. If the input is CSV with
// no explicit delimiter, or XML with no explicit record element, it
// starts in NeedsDetection (spec.md §4.8 "Creation").
func NewConverter(cfg ConverterConfig) (*Converter, error) {
	c := &Converter{
		ID:          uuid.New().String(),
		cfg:         cfg,
		enableStats: cfg.EnableStats,
	}
	if cfg.needsDetection() {
		return c, nil
	}
	if err := c.commit(); err != nil {
		return nil, err
	}
	return c, nil
}

func (c *Converter) commit() error {
	source, err := buildSourceStage(c.cfg)
	if err != nil {
		return err
	}
	sink, err := buildSinkStage(c.cfg)
	if err != nil {
		return err
	}
	c.source = source
	c.sink = sink
	if c.cfg.Transform != nil {
		c.transform = NewTransformEngine(c.cfg.Transform)
	}
	c.active = true
	return nil
}

// Push feeds one chunk through the pipeline, auto-detecting format and
// CSV/XML hints on the first ~256 bytes if needed (spec.md §4.8 "Auto-
// detect path"). It returns whatever bytes the sink produced, which may
// be empty while still buffering for detection.
func (c *Converter) Push(chunk []byte) ([]byte, error) {
	if c.finished {
		return nil, newError(KindInvalidConfig, "converter already finished")
	}
	if c.enableStats {
		c.stats.recordChunk(len(chunk))
	}

	if !c.active {
		c.detectionBuffer = append(c.detectionBuffer, chunk...)
		if len(c.detectionBuffer) < minDetectionBufferLen && len(chunk) > 0 {
			return nil, nil
		}
		if err := c.runDetectionAndCommit(); err != nil {
			return nil, err
		}
		buffered := c.detectionBuffer
		c.detectionBuffer = nil
		return c.pushActive(buffered)
	}
	return c.pushActive(chunk)
}

// runDetectionAndCommit runs §4.1 over the buffered prefix, writing
// detected hints into the config without ever overriding user-provided
// values, then commits the active pipeline.
func (c *Converter) runDetectionAndCommit() error {
	sample := c.detectionBuffer

	if c.cfg.InputFormat == FormatUnknown {
		format, ok := DetectFormat(sample)
		if !ok {
			return newError(KindInvalidConfig, "could not auto-detect input format")
		}
		c.cfg.InputFormat = format
	}

	if c.cfg.needsCSVDelimiterDetection() {
		if d, ok := DetectCSV(sample); ok {
			csvCfg := DefaultCSVConfig()
			if c.cfg.CSV != nil {
				csvCfg = *c.cfg.CSV
			}
			csvCfg.Delimiter = d.Delimiter
			c.cfg.CSV = &csvCfg
		} else if c.cfg.CSV == nil {
			def := DefaultCSVConfig()
			c.cfg.CSV = &def
		}
	}

	if c.cfg.needsXMLRecordElementDetection() {
		if d, ok := DetectXML(sample); ok {
			xmlCfg := DefaultXMLConfig()
			if c.cfg.XML != nil {
				xmlCfg = *c.cfg.XML
			}
			xmlCfg.RecordElement = d.RecordElement
			c.cfg.XML = &xmlCfg
		} else if c.cfg.XML == nil {
			def := DefaultXMLConfig()
			c.cfg.XML = &def
		}
	}

	log.WithFields(map[string]interface{}{
		"converter":     c.ID,
		"input_format":  c.cfg.InputFormat.String(),
		"output_format": c.cfg.OutputFormat.String(),
	}).Debug("converter: committing auto-detected pipeline")

	return c.commit()
}

// pushActive drives one chunk through source -> transform -> sink,
// timing each stage when stats are enabled.
func (c *Converter) pushActive(chunk []byte) ([]byte, error) {
	parseTimer := NewTimer()
	ndjson, err := c.source.push(chunk)
	if c.enableStats {
		c.stats.recordParseTime(parseTimer.Elapsed())
	}
	if err != nil {
		return nil, err
	}

	if c.transform != nil {
		transformTimer := NewTimer()
		ndjson, err = c.transform.Push(ndjson)
		if c.enableStats {
			c.stats.recordTransformTime(transformTimer.Elapsed())
		}
		if err != nil {
			return nil, err
		}
	}

	if c.enableStats {
		c.stats.recordRecords(countLines(ndjson))
		c.stats.updateBufferSize(len(ndjson))
	}

	writeTimer := NewTimer()
	out, err := c.sink.push(ndjson)
	if c.enableStats {
		c.stats.recordWriteTime(writeTimer.Elapsed())
		c.stats.recordOutput(len(out))
	}
	return out, err
}

func countLines(b []byte) int {
	return bytes.Count(b, []byte("\n"))
}

// Finish flushes source, transform, and sink in order and closes any
// framing the sink opened. If the converter is still in NeedsDetection
// with buffered data, it runs detection first (spec.md §4.8 step 4).
func (c *Converter) Finish() ([]byte, error) {
	if c.finished {
		return nil, newError(KindInvalidConfig, "converter already finished")
	}
	c.finished = true

	var out bytes.Buffer

	if !c.active {
		if len(c.detectionBuffer) == 0 {
			// Never received enough data to detect anything; nothing to
			// finalize but an empty sink still needs its framing.
			sink, err := buildSinkStage(c.cfg)
			if err != nil {
				return nil, err
			}
			return sink.finish()
		}
		if err := c.runDetectionAndCommit(); err != nil {
			return nil, err
		}
		buffered := c.detectionBuffer
		c.detectionBuffer = nil
		b, err := c.pushActive(buffered)
		if err != nil {
			return nil, err
		}
		out.Write(b)
	}

	parseTimer := NewTimer()
	ndjson, err := c.source.finish()
	if c.enableStats {
		c.stats.recordParseTime(parseTimer.Elapsed())
	}
	if err != nil {
		return out.Bytes(), err
	}

	if c.transform != nil {
		transformTimer := NewTimer()
		var tOut []byte
		tOut, err = c.transform.Finish()
		if c.enableStats {
			c.stats.recordTransformTime(transformTimer.Elapsed())
		}
		if err != nil {
			return out.Bytes(), err
		}
		ndjson = append(ndjson, tOut...)
	}

	if c.enableStats {
		c.stats.recordRecords(countLines(ndjson))
	}

	writeTimer := NewTimer()
	sinkOut, err := c.sink.push(ndjson)
	if err != nil {
		return out.Bytes(), err
	}
	out.Write(sinkOut)

	closing, err := c.sink.finish()
	if c.enableStats {
		c.stats.recordWriteTime(writeTimer.Elapsed())
	}
	if err != nil {
		return out.Bytes(), err
	}
	out.Write(closing)

	if c.enableStats {
		c.stats.recordOutput(len(closing) + len(sinkOut))
	}
	return out.Bytes(), nil
}

// Stats returns a snapshot of the running statistics (spec.md §6.1).
func (c *Converter) Stats() Stats { return c.stats }
