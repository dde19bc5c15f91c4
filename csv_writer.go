package streamconv

import (
	"bytes"
	"encoding/json"
	"sort"
	"strconv"
)

// CSVWriter implements spec.md §4.6: consumes NDJSON lines, flattens each
// record to dot-notation columns, and freezes the header set on the first
// record (deliberately kept as documented behavior, not "fixed" to match
// original_source's dynamic per-row header union; see DESIGN.md).
type CSVWriter struct {
	delimiter     byte
	partialLine   []byte
	headers       []string
	headerIndex   map[string]int
	headerWritten bool
}

// NewCSVWriter builds a writer using the given delimiter (comma by
// default via DefaultCSVConfig).
func NewCSVWriter(delimiter byte) *CSVWriter {
	return &CSVWriter{delimiter: delimiter}
}

// ProcessJSONLine consumes one NDJSON line and appends one CSV row,
// preceded by the header row on the first call.
func (w *CSVWriter) ProcessJSONLine(line []byte) ([]byte, error) {
	trimmed := bytes.TrimSpace(line)
	if len(trimmed) == 0 {
		return nil, nil
	}
	var record map[string]interface{}
	dec := json.NewDecoder(bytes.NewReader(trimmed))
	dec.UseNumber()
	if err := dec.Decode(&record); err != nil {
		return nil, wrapError(KindJSONParse, err, "csv writer: invalid ndjson line")
	}

	flat := map[string]string{}
	flattenObject("", record, flat)

	var out bytes.Buffer
	if !w.headerWritten {
		keys := make([]string, 0, len(flat))
		for k := range flat {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		w.headers = keys
		w.headerIndex = make(map[string]int, len(keys))
		for i, k := range keys {
			w.headerIndex[k] = i
		}
		w.writeRow(&out, keys)
		w.headerWritten = true
	}

	row := make([]string, len(w.headers))
	for k, v := range flat {
		if i, ok := w.headerIndex[k]; ok {
			row[i] = v
		}
	}
	w.writeRow(&out, row)
	return out.Bytes(), nil
}

// Finish emits nothing for CSV (no closing boilerplate), mirroring
// spec.md §4.7's distinction that only the XML writer closes a wrapper.
func (w *CSVWriter) Finish() []byte { return nil }

func (w *CSVWriter) writeRow(out *bytes.Buffer, fields []string) {
	for i, f := range fields {
		if i > 0 {
			out.WriteByte(w.delimiter)
		}
		out.WriteString(quoteCSVField(f, w.delimiter))
	}
	out.WriteByte('\n')
}

// quoteCSVField quotes iff the field contains the delimiter, a quote
// byte, a newline, or a carriage return, doubling internal quotes
// (spec.md §4.6 "Quoting").
func quoteCSVField(f string, delimiter byte) string {
	needsQuote := false
	for i := 0; i < len(f); i++ {
		c := f[i]
		if c == delimiter || c == '"' || c == '\n' || c == '\r' {
			needsQuote = true
			break
		}
	}
	if !needsQuote {
		return f
	}
	var buf bytes.Buffer
	buf.WriteByte('"')
	for i := 0; i < len(f); i++ {
		if f[i] == '"' {
			buf.WriteByte('"')
		}
		buf.WriteByte(f[i])
	}
	buf.WriteByte('"')
	return buf.String()
}

// flattenObject dot-flattens a decoded JSON value into prefix-keyed
// strings, matching spec.md §4.6 "Flattening": nested objects use
// "a.b", arrays use "xs.0...", primitive leaves stringify naturally
// (null -> "", arrays of primitives -> their JSON text).
func flattenObject(prefix string, v interface{}, out map[string]string) {
	switch t := v.(type) {
	case map[string]interface{}:
		for k, child := range t {
			key := k
			if prefix != "" {
				key = prefix + "." + k
			}
			flattenObject(key, child, out)
		}
	case []interface{}:
		if allPrimitive(t) {
			b, _ := json.Marshal(t)
			out[prefix] = string(b)
			return
		}
		for i, child := range t {
			key := prefix + "." + strconv.Itoa(i)
			flattenObject(key, child, out)
		}
	case nil:
		out[prefix] = ""
	case string:
		out[prefix] = t
	case json.Number:
		out[prefix] = t.String()
	case bool:
		if t {
			out[prefix] = "true"
		} else {
			out[prefix] = "false"
		}
	default:
		b, _ := json.Marshal(t)
		out[prefix] = string(b)
	}
}

func allPrimitive(arr []interface{}) bool {
	for _, v := range arr {
		switch v.(type) {
		case map[string]interface{}, []interface{}:
			return false
		}
	}
	return true
}
