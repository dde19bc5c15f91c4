package streamconv

import (
	"bytes"
	"fmt"
)

// CSVConfig tunes the CSV parser and writer (spec.md §6.3). Quote is fixed
// to '"' and escape to a doubled quote, matching original_source's
// CsvConfig default (quote='"', escape=Some('"')); spec.md never exposes a
// configurable escape byte so this package doesn't either.
type CSVConfig struct {
	Delimiter         byte
	HasHeaders        bool
	TrimWhitespace    bool
	delimiterExplicit bool
}

// DefaultCSVConfig returns comma-delimited, header-bearing, untrimmed CSV
// tuning, matching original_source's CsvConfig::default().
func DefaultCSVConfig() CSVConfig {
	return CSVConfig{Delimiter: ',', HasHeaders: true}
}

// WithDelimiter marks the delimiter as explicitly chosen by the caller, so
// the converter state machine never overwrites it with an auto-detected
// value (spec.md §4.8 "never override user-provided values").
func (c CSVConfig) WithDelimiter(d byte) CSVConfig {
	c.Delimiter = d
	c.delimiterExplicit = true
	return c
}

// CSVParser implements spec.md §4.4: push_to_ndjson/finish over a
// streaming byte source, two-tier fast/quoted field parsing, and
// frozen-length header handling.
type CSVParser struct {
	cfg         CSVConfig
	partialLine []byte
	headers     []string
	sawHeaders  bool
	recordCount uint64
}

// NewCSVParser builds a parser with the given tuning.
func NewCSVParser(cfg CSVConfig) *CSVParser {
	return &CSVParser{cfg: cfg}
}

// RecordCount returns the number of data rows emitted so far (excludes the
// header row), grounded on original_source's csv_parser.rs record_count().
func (p *CSVParser) RecordCount() uint64 { return p.recordCount }

// findLineEnd quote-aware scans buf for the first unescaped newline,
// returning the index of '\n' or -1 if none was found (spec.md §4.4 "Line
// boundary"). A '\r' immediately preceding is treated as part of the line
// terminator, not the field.
func findLineEnd(buf []byte) int {
	inQuote := false
	for i := 0; i < len(buf); i++ {
		c := buf[i]
		switch {
		case c == '"':
			if inQuote && i+1 < len(buf) && buf[i+1] == '"' {
				i++
				continue
			}
			inQuote = !inQuote
		case c == '\n' && !inQuote:
			return i
		}
	}
	return -1
}

func trimLineTerminator(line []byte) []byte {
	return bytes.TrimSuffix(line, []byte("\r"))
}

// hasQuoteByte reports whether line contains a raw '"', deciding which of
// the two parse tiers applies (spec.md §4.4 "Field parsing — two-tier").
func hasQuoteByte(line []byte) bool {
	return bytes.IndexByte(line, '"') != -1
}

func finalizeField(f []byte, trim bool) []byte {
	if !trim {
		return f
	}
	i := 0
	for i < len(f) && (f[i] == ' ' || f[i] == '\t') {
		i++
	}
	j := len(f)
	for j > i && (f[j-1] == ' ' || f[j-1] == '\t') {
		j--
	}
	return f[i:j]
}

// parseFieldsFast splits a quote-free line on delim by byte scan.
func parseFieldsFast(line []byte, delim byte, trim bool) []string {
	parts := bytes.Split(line, []byte{delim})
	out := make([]string, len(parts))
	for i, p := range parts {
		out[i] = string(finalizeField(p, trim))
	}
	return out
}

// parseFieldsQuoted runs the {outside, inside-quote} state machine from
// spec.md §4.4, doubling a quote inside a quoted region to a literal.
func parseFieldsQuoted(line []byte, delim byte, trim bool) []string {
	var fields []string
	var cur bytes.Buffer
	inQuote := false
	for i := 0; i < len(line); i++ {
		c := line[i]
		switch {
		case c == '"':
			if inQuote && i+1 < len(line) && line[i+1] == '"' {
				cur.WriteByte('"')
				i++
				continue
			}
			inQuote = !inQuote
		case c == delim && !inQuote:
			fields = append(fields, string(finalizeField(cur.Bytes(), trim)))
			cur.Reset()
		default:
			cur.WriteByte(c)
		}
	}
	fields = append(fields, string(finalizeField(cur.Bytes(), trim)))
	return fields
}

func parseCSVFields(line []byte, delim byte, trim bool) []string {
	if hasQuoteByte(line) {
		return parseFieldsQuoted(line, delim, trim)
	}
	return parseFieldsFast(line, delim, trim)
}

// fieldsToJSON renders one CSV record as a JSON object, falling back to
// field_<i> keys for columns beyond the header length (spec.md §4.4
// "Header handling").
func fieldsToJSON(headers []string, fields []string) []byte {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, v := range fields {
		if i > 0 {
			buf.WriteByte(',')
		}
		var key string
		if i < len(headers) {
			key = headers[i]
		} else {
			key = fmt.Sprintf("field_%d", i)
		}
		buf.WriteByte('"')
		escapeJSONStringInto(&buf, key)
		buf.WriteByte('"')
		buf.WriteByte(':')
		buf.WriteByte('"')
		escapeJSONStringInto(&buf, v)
		buf.WriteByte('"')
	}
	buf.WriteByte('}')
	return buf.Bytes()
}

// escapeJSONStringInto writes s into buf with the characters spec.md
// §4.4 calls out escaped: " \ \n \r \t \b \f; every other byte (including
// invalid UTF-8) is copied verbatim, matching the "malformed UTF-8 ...
// preserved byte-for-byte" error semantics.
func escapeJSONStringInto(buf *bytes.Buffer, s string) {
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch c {
		case '"':
			buf.WriteString(`\"`)
		case '\\':
			buf.WriteString(`\\`)
		case '\n':
			buf.WriteString(`\n`)
		case '\r':
			buf.WriteString(`\r`)
		case '\t':
			buf.WriteString(`\t`)
		case '\b':
			buf.WriteString(`\b`)
		case '\f':
			buf.WriteString(`\f`)
		default:
			buf.WriteByte(c)
		}
	}
}

// PushToNDJSON implements the CSVParser contract: combine chunk with any
// buffered partial line, emit one NDJSON line per complete data row, and
// retain the unterminated tail. Line boundaries are always found by a
// sequential quote-aware scan (quoted fields can embed literal newlines,
// so boundary detection can't be parallelized); once boundaries are
// known, the independent per-line field parsing work for large batches
// is handed to parseFieldsForLines (spec.md §5).
func (p *CSVParser) PushToNDJSON(chunk []byte) []byte {
	var combined []byte
	if len(p.partialLine) > 0 {
		combined = append(append([]byte{}, p.partialLine...), chunk...)
	} else {
		combined = chunk
	}

	var lines [][]byte
	pos := 0
	for {
		rel := findLineEnd(combined[pos:])
		if rel == -1 {
			break
		}
		line := trimLineTerminator(combined[pos : pos+rel])
		pos += rel + 1
		if len(line) > 0 {
			lines = append(lines, line)
		}
	}
	p.partialLine = append([]byte{}, combined[pos:]...)

	return p.emitLines(lines)
}

// emitLines parses a batch of already-boundary-split lines and emits
// NDJSON records, applying the stateful header-latching rule
// sequentially regardless of how the field parsing itself was scheduled.
func (p *CSVParser) emitLines(lines [][]byte) []byte {
	if len(lines) == 0 {
		return nil
	}
	parsed := parseFieldsForLines(lines, p.cfg.Delimiter, p.cfg.TrimWhitespace)

	var out bytes.Buffer
	for _, fields := range parsed {
		if p.cfg.HasHeaders && !p.sawHeaders {
			p.headers = fields
			p.sawHeaders = true
			continue
		}
		out.Write(fieldsToJSON(p.headers, fields))
		out.WriteByte('\n')
		p.recordCount++
	}
	return out.Bytes()
}

// Finish flushes any remaining buffered partial line as a final record.
func (p *CSVParser) Finish() []byte {
	if len(p.partialLine) == 0 {
		return nil
	}
	line := p.partialLine
	p.partialLine = nil
	return p.emitLines([][]byte{line})
}
