package streamconv

import (
	"bytes"
	"sort"
	"strings"
)

// XMLConfig tunes the XML parser (spec.md §6.3).
type XMLConfig struct {
	RecordElement         string
	TrimText              bool
	IncludeAttributes     bool
	ExpandEntities        bool
	recordElementExplicit bool
}

// DefaultXMLConfig matches original_source's XmlConfig::default():
// record element "row", trimmed text, no attributes, entities expanded.
func DefaultXMLConfig() XMLConfig {
	return XMLConfig{RecordElement: "row", TrimText: true, ExpandEntities: true}
}

// WithRecordElement marks the record element as explicitly chosen, so
// auto-detection never overrides it (spec.md §4.8).
func (c XMLConfig) WithRecordElement(name string) XMLConfig {
	c.RecordElement = name
	c.recordElementExplicit = true
	return c
}

// jsonValue is the tri-shape intermediate the XML parser builds before
// serializing a record, mirroring original_source's JsonValue enum
// (String/Object/Array).
type jsonValue struct {
	str    string
	isStr  bool
	obj    map[string]*jsonValue
	objOrd []string
	arr    []*jsonValue
}

func newStringValue(s string) *jsonValue { return &jsonValue{str: s, isStr: true} }
func newObjectValue() *jsonValue         { return &jsonValue{obj: map[string]*jsonValue{}} }

// insertValue sets key on an object value, promoting to an array if the
// key already exists (spec.md §4.5 "promote to an array").
func (v *jsonValue) insertValue(key string, value *jsonValue) {
	existing, ok := v.obj[key]
	if !ok {
		v.obj[key] = value
		v.objOrd = append(v.objOrd, key)
		return
	}
	if existing.arr != nil && !existing.isStr && existing.obj == nil {
		existing.arr = append(existing.arr, value)
		return
	}
	merged := &jsonValue{arr: []*jsonValue{existing, value}}
	v.obj[key] = merged
}

// XMLParser implements spec.md §4.5: streaming record-element extraction
// by byte-scanning a partial buffer for complete "<elem ...>...</elem>"
// substrings.
type XMLParser struct {
	cfg           XMLConfig
	partialBuffer []byte
	recordCount   uint64
}

// NewXMLParser builds a parser using the given tuning.
func NewXMLParser(cfg XMLConfig) *XMLParser { return &XMLParser{cfg: cfg} }

// RecordCount returns the number of completed records emitted so far.
func (p *XMLParser) RecordCount() uint64 { return p.recordCount }

// PushToNDJSON appends chunk to the partial buffer and repeatedly extracts
// complete records, draining each processed prefix.
func (p *XMLParser) PushToNDJSON(chunk []byte) ([]byte, error) {
	p.partialBuffer = append(p.partialBuffer, chunk...)
	return p.extractRecords()
}

// findRecordOpenTag locates the first occurrence of openTag ("<name")
// that isn't actually a longer element name sharing the prefix, e.g. it
// won't match "<rows" when looking for "<row".
func findRecordOpenTag(buf []byte, openTag string) int {
	searchFrom := 0
	for {
		rel := bytes.Index(buf[searchFrom:], []byte(openTag))
		if rel == -1 {
			return -1
		}
		idx := searchFrom + rel
		after := idx + len(openTag)
		if after >= len(buf) {
			return idx
		}
		c := buf[after]
		if isASCIILetter(c) || (c >= '0' && c <= '9') || c == '-' || c == '_' {
			searchFrom = idx + 1
			continue
		}
		return idx
	}
}

func (p *XMLParser) extractRecords() ([]byte, error) {
	var out bytes.Buffer
	openTag := "<" + p.cfg.RecordElement
	closeTag := "</" + p.cfg.RecordElement + ">"

	for {
		start := findRecordOpenTag(p.partialBuffer, openTag)
		if start == -1 {
			break
		}

		tagEndRel := bytes.IndexByte(p.partialBuffer[start:], '>')
		if tagEndRel == -1 {
			break
		}
		openTagText := p.partialBuffer[start : start+tagEndRel+1]
		selfClosing := bytes.HasSuffix(bytes.TrimSpace(openTagText), []byte("/>"))

		var recordEnd int
		var full []byte
		if selfClosing {
			recordEnd = start + tagEndRel + 1
			full = p.partialBuffer[start:recordEnd]
		} else {
			closeIdx := bytes.Index(p.partialBuffer[start:], []byte(closeTag))
			if closeIdx == -1 {
				p.partialBuffer = p.partialBuffer[start:]
				break
			}
			recordEnd = start + closeIdx + len(closeTag)
			full = p.partialBuffer[start:recordEnd]
		}

		obj, err := p.parseSingleRecord(full, openTagText, selfClosing)
		if err != nil {
			return out.Bytes(), err
		}
		jsonValueToOutput(&out, obj)
		out.WriteByte('\n')
		p.recordCount++
		p.partialBuffer = p.partialBuffer[recordEnd:]
	}
	return out.Bytes(), nil
}

// parseSingleRecord walks the matched substring's tag events, building a
// nested jsonValue tree per spec.md §4.5 "Record -> JSON translation".
func (p *XMLParser) parseSingleRecord(full []byte, openTagText []byte, selfClosing bool) (*jsonValue, error) {
	root := newObjectValue()
	if p.cfg.IncludeAttributes {
		attrs := parseAttributes(openTagText)
		for _, a := range attrs {
			root.insertValue("@"+a.name, newStringValue(a.value))
		}
	}
	if selfClosing {
		return root, nil
	}

	inner := full[len(openTagText) : len(full)-len("</")-len(p.cfg.RecordElement)-1]
	children, err := parseXMLChildren(inner, p.cfg)
	if err != nil {
		return nil, err
	}
	for _, kv := range children {
		root.insertValue(kv.key, kv.value)
	}
	return root, nil
}

type keyedValue struct {
	key   string
	value *jsonValue
}

type xmlAttr struct{ name, value string }

func parseAttributes(openTagText []byte) []xmlAttr {
	s := string(openTagText)
	s = strings.TrimPrefix(s, "<")
	s = strings.TrimSuffix(s, ">")
	s = strings.TrimSuffix(s, "/")
	i := 0
	for i < len(s) && !isASCIISpace(s[i]) {
		i++
	}
	s = s[i:]
	var attrs []xmlAttr
	for len(s) > 0 {
		s = strings.TrimLeft(s, " \t\r\n")
		if len(s) == 0 {
			break
		}
		eq := strings.IndexByte(s, '=')
		if eq == -1 {
			break
		}
		name := strings.TrimSpace(s[:eq])
		rest := s[eq+1:]
		rest = strings.TrimLeft(rest, " \t")
		if len(rest) == 0 || (rest[0] != '"' && rest[0] != '\'') {
			break
		}
		quote := rest[0]
		end := strings.IndexByte(rest[1:], quote)
		if end == -1 {
			break
		}
		value := rest[1 : 1+end]
		attrs = append(attrs, xmlAttr{name: name, value: unescapeXMLEntities(value)})
		s = rest[1+end+1:]
	}
	return attrs
}

// parseXMLChildren walks the inner content of a record element,
// splitting it into top-level child elements and leaf text, one level at
// a time (spec.md §4.5 only requires field extraction for the record's
// direct and nested children, not full document tokenization).
func parseXMLChildren(inner []byte, cfg XMLConfig) ([]keyedValue, error) {
	var result []keyedValue
	i := 0
	for i < len(inner) {
		lt := bytes.IndexByte(inner[i:], '<')
		if lt == -1 {
			break
		}
		lt += i
		// stray text between sibling tags at this level is ignored; only
		// leaf elements carry text content.
		gt := bytes.IndexByte(inner[lt:], '>')
		if gt == -1 {
			return nil, newError(KindXMLParse, "unterminated tag in record")
		}
		gt += lt
		tagContent := inner[lt+1 : gt]
		if len(tagContent) == 0 || tagContent[0] == '?' || tagContent[0] == '!' {
			i = gt + 1
			continue
		}
		if tagContent[0] == '/' {
			i = gt + 1
			continue
		}
		selfClosing := tagContent[len(tagContent)-1] == '/'
		openTagText := inner[lt : gt+1]
		name := extractTagName(tagContent)
		if name == "" {
			i = gt + 1
			continue
		}

		if selfClosing {
			val := newObjectValue()
			if cfg.IncludeAttributes {
				for _, a := range parseAttributes(openTagText) {
					val.insertValue("@"+a.name, newStringValue(a.value))
				}
			}
			result = append(result, keyedValue{key: name, value: val})
			i = gt + 1
			continue
		}

		closeTag := "</" + name + ">"
		closeRel := bytes.Index(inner[gt+1:], []byte(closeTag))
		if closeRel == -1 {
			return nil, newError(KindXMLParse, "unterminated element %q", name)
		}
		childInner := inner[gt+1 : gt+1+closeRel]
		nextI := gt + 1 + closeRel + len(closeTag)

		grandchildren, err := parseXMLChildren(childInner, cfg)
		if err != nil {
			return nil, err
		}

		var val *jsonValue
		if len(grandchildren) > 0 {
			val = newObjectValue()
			if cfg.IncludeAttributes {
				for _, a := range parseAttributes(openTagText) {
					val.insertValue("@"+a.name, newStringValue(a.value))
				}
			}
			for _, kv := range grandchildren {
				val.insertValue(kv.key, kv.value)
			}
		} else {
			text := string(childInner)
			if cfg.ExpandEntities {
				text = unescapeXMLEntities(text)
			}
			if cfg.TrimText {
				text = strings.TrimSpace(text)
			}
			if cfg.IncludeAttributes {
				attrs := parseAttributes(openTagText)
				if len(attrs) > 0 {
					val = newObjectValue()
					for _, a := range attrs {
						val.insertValue("@"+a.name, newStringValue(a.value))
					}
					val.insertValue("#text", newStringValue(text))
				} else {
					val = newStringValue(text)
				}
			} else {
				val = newStringValue(text)
			}
		}
		result = append(result, keyedValue{key: name, value: val})
		i = nextI
	}
	return result, nil
}

func unescapeXMLEntities(s string) string {
	replacer := strings.NewReplacer(
		"&lt;", "<",
		"&gt;", ">",
		"&amp;", "&",
		"&apos;", "'",
		"&quot;", `"`,
	)
	return replacer.Replace(s)
}

// jsonValueToOutput serializes a jsonValue with sorted object keys
// (spec.md §4.5 "Output key ordering").
func jsonValueToOutput(buf *bytes.Buffer, v *jsonValue) {
	switch {
	case v.isStr:
		buf.WriteByte('"')
		escapeJSONStringInto(buf, v.str)
		buf.WriteByte('"')
	case v.arr != nil:
		buf.WriteByte('[')
		for i, item := range v.arr {
			if i > 0 {
				buf.WriteByte(',')
			}
			jsonValueToOutput(buf, item)
		}
		buf.WriteByte(']')
	default:
		keys := make([]string, 0, len(v.obj))
		for k := range v.obj {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		buf.WriteByte('{')
		for i, k := range keys {
			if i > 0 {
				buf.WriteByte(',')
			}
			buf.WriteByte('"')
			escapeJSONStringInto(buf, k)
			buf.WriteByte('"')
			buf.WriteByte(':')
			jsonValueToOutput(buf, v.obj[k])
		}
		buf.WriteByte('}')
	}
}

// Finish silently discards any incomplete buffered record, matching
// original_source's finish() leniency (spec.md §4.5, §9).
func (p *XMLParser) Finish() []byte {
	if len(p.partialBuffer) > 0 {
		log.WithField("bytes", len(p.partialBuffer)).Debug("xml: discarding incomplete trailing record")
		p.partialBuffer = nil
	}
	return nil
}
