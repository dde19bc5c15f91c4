package streamconv

import (
	"bytes"
	"sort"
)

// csvDelimiterCandidates is the fixed candidate set scored during
// auto-detection (spec.md §4.1 "Delimiter selection").
var csvDelimiterCandidates = []byte{',', '\t', ';', '|'}

const (
	maxDetectionLines     = 10
	minDetectionBufferLen = 256
)

// CSVDetection is the result of DetectCSV: the winning delimiter and the
// field names read off the first detected line (the header, if the sample
// looks like it has one).
type CSVDetection struct {
	Delimiter byte
	Fields    []string
}

// XMLDetection is the result of DetectXML: every element name observed
// during the tag-scan, plus the inferred repeating record element (empty
// string if none was found).
type XMLDetection struct {
	Elements      []string
	RecordElement string
}

// JSONDetection is the result of DetectJSON/DetectNDJSON: the field names
// of the representative object the detector parsed.
type JSONDetection struct {
	Fields []string
}

// StructureDetection is the unified result of DetectStructure.
type StructureDetection struct {
	Format        Format
	Fields        []string
	Delimiter     byte
	RecordElement string
}

func stripBOM(b []byte) []byte {
	if len(b) >= 3 && b[0] == 0xEF && b[1] == 0xBB && b[2] == 0xBF {
		return b[3:]
	}
	return b
}

func isASCIISpace(c byte) bool {
	return c == ' ' || c == '\t' || c == '\r' || c == '\n'
}

func trimASCIIWhitespace(b []byte) []byte {
	i := 0
	for i < len(b) && isASCIISpace(b[i]) {
		i++
	}
	j := len(b)
	for j > i && isASCIISpace(b[j-1]) {
		j--
	}
	return b[i:j]
}

func looksLikeXML(b []byte) bool {
	if len(b) == 0 || b[0] != '<' {
		return false
	}
	if bytes.HasPrefix(b, []byte("<?xml")) || bytes.HasPrefix(b, []byte("<!DOCTYPE")) {
		return true
	}
	if len(b) >= 2 && isASCIILetter(b[1]) {
		return true
	}
	return false
}

func isASCIILetter(c byte) bool {
	return (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

// nonEmptyLines splits b on '\n', trims a trailing '\r' from each line, and
// drops blank/whitespace-only lines, returning at most maxLines of them.
// maxLines <= 0 means unlimited.
func nonEmptyLines(b []byte, maxLines int) [][]byte {
	var out [][]byte
	for _, line := range bytes.Split(b, []byte("\n")) {
		line = bytes.TrimSuffix(line, []byte("\r"))
		if len(bytes.TrimSpace(line)) == 0 {
			continue
		}
		out = append(out, line)
		if maxLines > 0 && len(out) >= maxLines {
			break
		}
	}
	return out
}

// DetectFormat runs the full spec.md §4.1 algorithm: BOM/whitespace strip,
// XML sniff, NDJSON/JSON sniff, then CSV delimiter scoring. It never errors;
// the zero value (FormatUnknown, false) means "undetermined".
func DetectFormat(sample []byte) (Format, bool) {
	b := trimASCIIWhitespace(stripBOM(sample))
	if len(b) == 0 {
		return FormatUnknown, false
	}
	if b[0] == '<' && looksLikeXML(b) {
		return FormatXML, true
	}
	if b[0] == '{' || b[0] == '[' {
		lines := nonEmptyLines(b, 0)
		validLines := 0
		for _, line := range lines {
			trimmed := bytes.TrimSpace(line)
			if len(trimmed) == 0 {
				continue
			}
			if trimmed[0] != '{' && trimmed[0] != '[' {
				continue
			}
			if !QuickValidate(trimmed) {
				continue
			}
			if _, err := ParseAndValidate(trimmed); err == nil {
				validLines++
				if validLines >= 2 {
					return FormatNDJSON, true
				}
			}
		}
		if _, err := ParseAndValidate(b); err == nil {
			return FormatJSON, true
		}
		return FormatUnknown, false
	}
	if _, ok := detectCSVDelimiter(b); ok {
		return FormatCSV, true
	}
	return FormatUnknown, false
}

// countDelimiterOccurrences counts quote-aware occurrences of delim in
// line: a quoted region is entered on an unescaped '"' and left on the
// next unescaped '"', with a doubled quote inside the region treated as a
// literal (spec.md §4.1 delimiter selection / §4.4 line boundary rule).
func countDelimiterOccurrences(line []byte, delim byte) int {
	count := 0
	inQuote := false
	for i := 0; i < len(line); i++ {
		c := line[i]
		switch {
		case c == '"':
			if inQuote && i+1 < len(line) && line[i+1] == '"' {
				i++
				continue
			}
			inQuote = !inQuote
		case c == delim && !inQuote:
			count++
		}
	}
	return count
}

// splitCSVFields splits a single CSV line on delim using the same
// quote-aware state machine as the real CSV parser's quoted path
// (spec.md §4.4), so detection and parsing agree on field boundaries.
func splitCSVFields(line []byte, delim byte) []string {
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
			fields = append(fields, cur.String())
			cur.Reset()
		default:
			cur.WriteByte(c)
		}
	}
	fields = append(fields, cur.String())
	return fields
}

// detectCSVDelimiter implements the "Delimiter selection (CSV)" rule of
// spec.md §4.1: score each candidate over up to 10 non-empty lines as
// (lines-with-occurrence / total-nonempty-lines) * total-occurrences, tie
// breaking on candidate list order, then require the first line, split on
// the best-scoring delimiter, to yield at least two fields.
func detectCSVDelimiter(b []byte) (CSVDetection, bool) {
	lines := nonEmptyLines(b, maxDetectionLines)
	if len(lines) == 0 {
		return CSVDetection{}, false
	}
	bestScore := -1.0
	bestDelim := byte(0)
	found := false
	for _, delim := range csvDelimiterCandidates {
		linesWithOcc := 0
		totalOcc := 0
		for _, line := range lines {
			n := countDelimiterOccurrences(line, delim)
			if n > 0 {
				linesWithOcc++
				totalOcc += n
			}
		}
		if totalOcc == 0 {
			continue
		}
		score := (float64(linesWithOcc) / float64(len(lines))) * float64(totalOcc)
		if score > bestScore {
			bestScore = score
			bestDelim = delim
			found = true
		}
	}
	if !found {
		return CSVDetection{}, false
	}
	fields := splitCSVFields(lines[0], bestDelim)
	if len(fields) < 2 {
		return CSVDetection{}, false
	}
	return CSVDetection{Delimiter: bestDelim, Fields: fields}, true
}

// DetectCSV is the standalone programmatic entry point from spec.md §6.1.
func DetectCSV(sample []byte) (CSVDetection, bool) {
	b := trimASCIIWhitespace(stripBOM(sample))
	return detectCSVDelimiter(b)
}

type xmlTagInfo struct {
	minDepth   int
	occurrence int
	children   map[string]bool
}

// DetectXML tag-scans the sample tracking depth and parent-at-depth up to
// 10 levels (spec.md §4.1 "XML record-element inference"). Candidate
// record elements are names occurring more than once that aren't the
// document's first root element; ties are broken lexicographically, a
// deliberate stabilization of the open question in spec.md §9.
func DetectXML(sample []byte) (XMLDetection, bool) {
	b := trimASCIIWhitespace(stripBOM(sample))
	tags := scanXMLTags(b)
	if len(tags) == 0 {
		return XMLDetection{}, false
	}
	info := map[string]*xmlTagInfo{}
	var stack []string
	var rootName string
	for _, tag := range tags {
		switch tag.kind {
		case xmlTagOpen, xmlTagSelfClose:
			depth := len(stack)
			if rootName == "" && depth == 0 {
				rootName = tag.name
			}
			ti, ok := info[tag.name]
			if !ok {
				ti = &xmlTagInfo{minDepth: depth, children: map[string]bool{}}
				info[tag.name] = ti
			} else if depth < ti.minDepth {
				ti.minDepth = depth
			}
			ti.occurrence++
			if depth > 0 && depth <= maxDetectionLines {
				parent := stack[len(stack)-1]
				if pi, ok := info[parent]; ok {
					pi.children[tag.name] = true
				}
			}
			if tag.kind == xmlTagOpen {
				stack = append(stack, tag.name)
			}
		case xmlTagClose:
			if len(stack) > 0 && stack[len(stack)-1] == tag.name {
				stack = stack[:len(stack)-1]
			}
		}
	}

	names := make([]string, 0, len(info))
	for name := range info {
		names = append(names, name)
	}
	sort.Strings(names)

	type candidate struct {
		name       string
		hasChild   bool
		depth      int
		occurrence int
	}
	var candidates []candidate
	for _, name := range names {
		ti := info[name]
		if ti.occurrence <= 1 || name == rootName {
			continue
		}
		candidates = append(candidates, candidate{
			name:       name,
			hasChild:   len(ti.children) > 0,
			depth:      ti.minDepth,
			occurrence: ti.occurrence,
		})
	}

	best := -1
	for i, c := range candidates {
		if best == -1 {
			best = i
			continue
		}
		cur := candidates[best]
		switch {
		case c.hasChild != cur.hasChild:
			if c.hasChild {
				best = i
			}
		case c.depth != cur.depth:
			if c.depth < cur.depth {
				best = i
			}
		case c.occurrence != cur.occurrence:
			if c.occurrence > cur.occurrence {
				best = i
			}
		default:
			if c.name < cur.name {
				best = i
			}
		}
	}

	record := ""
	if best >= 0 {
		record = candidates[best].name
	}
	return XMLDetection{Elements: names, RecordElement: record}, record != ""
}

type xmlTagKind int

const (
	xmlTagOpen xmlTagKind = iota
	xmlTagClose
	xmlTagSelfClose
)

type xmlTag struct {
	name string
	kind xmlTagKind
}

// scanXMLTags is a lightweight tag tokenizer: it locates '<...>' runs,
// skips declarations/comments/processing instructions, and classifies
// each remaining tag as open/close/self-closing. It does not attempt to
// parse attributes or text content; that belongs to the full record
// parser in xml_parser.go.
func scanXMLTags(b []byte) []xmlTag {
	var tags []xmlTag
	i := 0
	for i < len(b) {
		if b[i] != '<' {
			i++
			continue
		}
		end := bytes.IndexByte(b[i:], '>')
		if end == -1 {
			break
		}
		end += i
		content := b[i+1 : end]
		i = end + 1
		if len(content) == 0 {
			continue
		}
		if content[0] == '?' || content[0] == '!' {
			continue
		}
		closing := false
		if content[0] == '/' {
			closing = true
			content = content[1:]
		}
		selfClosing := false
		if len(content) > 0 && content[len(content)-1] == '/' {
			selfClosing = true
			content = content[:len(content)-1]
		}
		name := extractTagName(content)
		if name == "" {
			continue
		}
		switch {
		case closing:
			tags = append(tags, xmlTag{name: name, kind: xmlTagClose})
		case selfClosing:
			tags = append(tags, xmlTag{name: name, kind: xmlTagSelfClose})
		default:
			tags = append(tags, xmlTag{name: name, kind: xmlTagOpen})
		}
	}
	return tags
}

func extractTagName(content []byte) string {
	content = bytes.TrimSpace(content)
	end := 0
	for end < len(content) && !isASCIISpace(content[end]) && content[end] != '/' {
		end++
	}
	return string(content[:end])
}

// DetectJSON parses the sample as a single JSON value and returns the
// field names of a representative object (the value itself if it's an
// object, or its first element if it's an array of objects).
func DetectJSON(sample []byte) (JSONDetection, bool) {
	b := trimASCIIWhitespace(stripBOM(sample))
	v, err := ParseAndValidate(b)
	if err != nil {
		return JSONDetection{}, false
	}
	return jsonDetectionFromValue(v)
}

// DetectNDJSON parses the first valid line of the sample as a JSON object
// and returns its field names.
func DetectNDJSON(sample []byte) (JSONDetection, bool) {
	b := trimASCIIWhitespace(stripBOM(sample))
	for _, line := range nonEmptyLines(b, 0) {
		trimmed := bytes.TrimSpace(line)
		if !QuickValidate(trimmed) {
			continue
		}
		v, err := ParseAndValidate(trimmed)
		if err != nil {
			continue
		}
		if d, ok := jsonDetectionFromValue(v); ok {
			return d, true
		}
	}
	return JSONDetection{}, false
}

func jsonDetectionFromValue(v interface{}) (JSONDetection, bool) {
	switch t := v.(type) {
	case map[string]interface{}:
		fields := make([]string, 0, len(t))
		for k := range t {
			fields = append(fields, k)
		}
		sort.Strings(fields)
		return JSONDetection{Fields: fields}, true
	case []interface{}:
		if len(t) == 0 {
			return JSONDetection{}, false
		}
		return jsonDetectionFromValue(t[0])
	default:
		return JSONDetection{}, false
	}
}

// DetectStructure is the unified entry point from spec.md §6.1: it either
// trusts formatHint or runs DetectFormat, then dispatches to the
// format-specific detector to assemble a StructureDetection.
func DetectStructure(sample []byte, formatHint Format) (StructureDetection, bool) {
	format := formatHint
	if format == FormatUnknown {
		f, ok := DetectFormat(sample)
		if !ok {
			return StructureDetection{}, false
		}
		format = f
	}
	switch format {
	case FormatCSV:
		d, ok := DetectCSV(sample)
		if !ok {
			return StructureDetection{}, false
		}
		return StructureDetection{Format: FormatCSV, Fields: d.Fields, Delimiter: d.Delimiter}, true
	case FormatXML:
		d, ok := DetectXML(sample)
		if !ok {
			return StructureDetection{Format: FormatXML}, true
		}
		return StructureDetection{Format: FormatXML, Fields: d.Elements, RecordElement: d.RecordElement}, true
	case FormatJSON:
		d, _ := DetectJSON(sample)
		return StructureDetection{Format: FormatJSON, Fields: d.Fields}, true
	case FormatNDJSON:
		d, _ := DetectNDJSON(sample)
		return StructureDetection{Format: FormatNDJSON, Fields: d.Fields}, true
	default:
		return StructureDetection{}, false
	}
}
