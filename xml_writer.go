package streamconv

import (
	"bytes"
	"encoding/json"
	"sort"
	"strings"
)

// XMLWriter implements spec.md §4.7: wraps records in a <root> element,
// one <record> per NDJSON line, closing </root> only if it was opened.
type XMLWriter struct {
	RootElement   string
	RecordElement string
	headerWritten bool
}

// NewXMLWriter builds a writer with the conventional root/record names.
func NewXMLWriter() *XMLWriter {
	return &XMLWriter{RootElement: "root", RecordElement: "record"}
}

// ProcessJSONLine consumes one NDJSON line and appends one <record> element.
func (w *XMLWriter) ProcessJSONLine(line []byte) ([]byte, error) {
	trimmed := bytes.TrimSpace(line)
	if len(trimmed) == 0 {
		return nil, nil
	}
	var record map[string]interface{}
	dec := json.NewDecoder(bytes.NewReader(trimmed))
	dec.UseNumber()
	if err := dec.Decode(&record); err != nil {
		return nil, wrapError(KindJSONParse, err, "xml writer: invalid ndjson line")
	}

	var out bytes.Buffer
	if !w.headerWritten {
		out.WriteString("<" + w.RootElement + ">\n")
		w.headerWritten = true
	}

	keys := make([]string, 0, len(record))
	for k := range record {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	out.WriteString("  <" + w.RecordElement + ">")
	for _, k := range keys {
		writeXMLField(&out, k, record[k])
	}
	out.WriteString("</" + w.RecordElement + ">\n")
	return out.Bytes(), nil
}

func writeXMLField(out *bytes.Buffer, key string, value interface{}) {
	out.WriteByte('<')
	out.WriteString(escapeXMLText(key))
	out.WriteByte('>')
	out.WriteString(xmlFieldText(value))
	out.WriteString("</")
	out.WriteString(escapeXMLText(key))
	out.WriteByte('>')
}

// xmlFieldText renders a decoded JSON value as element text. Nested
// objects/arrays are written as their raw JSON text, a documented lossy
// behavior for mixed/nested shapes (spec.md §4.7).
func xmlFieldText(value interface{}) string {
	switch t := value.(type) {
	case nil:
		return ""
	case string:
		return escapeXMLText(t)
	case json.Number:
		return escapeXMLText(t.String())
	case bool:
		if t {
			return "true"
		}
		return "false"
	default:
		b, _ := json.Marshal(t)
		return escapeXMLText(string(b))
	}
}

func escapeXMLText(s string) string {
	replacer := strings.NewReplacer(
		"&", "&amp;",
		"<", "&lt;",
		">", "&gt;",
		`"`, "&quot;",
	)
	return replacer.Replace(s)
}

// Finish closes the root element, but only if it was ever opened.
func (w *XMLWriter) Finish() []byte {
	if !w.headerWritten {
		return nil
	}
	return []byte("</" + w.RootElement + ">\n")
}
