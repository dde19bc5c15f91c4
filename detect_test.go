package streamconv

import "testing"

func TestDetectFormatCSV(t *testing.T) {
	sample := []byte("id,name,value\n1,widget,10\n2,gadget,20\n3,gizmo,30\n")
	f, ok := DetectFormat(sample)
	if !ok || f != FormatCSV {
		t.Fatalf("DetectFormat(csv sample) = (%v, %v), want (csv, true)", f, ok)
	}
}

func TestDetectFormatNDJSON(t *testing.T) {
	sample := []byte(`{"id":1,"name":"a"}` + "\n" + `{"id":2,"name":"b"}` + "\n" + `{"id":3,"name":"c"}` + "\n")
	f, ok := DetectFormat(sample)
	if !ok || f != FormatNDJSON {
		t.Fatalf("DetectFormat(ndjson sample) = (%v, %v), want (ndjson, true)", f, ok)
	}
}

func TestDetectFormatJSON(t *testing.T) {
	sample := []byte(`{"id": 1, "items": [1, 2, 3]}`)
	f, ok := DetectFormat(sample)
	if !ok || f != FormatJSON {
		t.Fatalf("DetectFormat(single json object) = (%v, %v), want (json, true)", f, ok)
	}
}

func TestDetectFormatXML(t *testing.T) {
	sample := []byte(`<?xml version="1.0"?><rows><row><id>1</id></row><row><id>2</id></row></rows>`)
	f, ok := DetectFormat(sample)
	if !ok || f != FormatXML {
		t.Fatalf("DetectFormat(xml sample) = (%v, %v), want (xml, true)", f, ok)
	}
}

func TestDetectFormatBOMAndWhitespace(t *testing.T) {
	sample := append([]byte{0xEF, 0xBB, 0xBF}, []byte("  \n  a,b,c\n1,2,3\n4,5,6\n")...)
	f, ok := DetectFormat(sample)
	if !ok || f != FormatCSV {
		t.Fatalf("DetectFormat(bom-prefixed csv) = (%v, %v), want (csv, true)", f, ok)
	}
}

func TestDetectFormatUndetermined(t *testing.T) {
	f, ok := DetectFormat([]byte("   "))
	if ok || f != FormatUnknown {
		t.Fatalf("DetectFormat(blank) = (%v, %v), want (unknown, false)", f, ok)
	}
}

func TestDetectCSVDelimiterSemicolon(t *testing.T) {
	sample := []byte("id;name;value\n1;widget;10\n2;gadget;20\n")
	d, ok := DetectCSV(sample)
	if !ok {
		t.Fatal("DetectCSV failed to detect a delimiter")
	}
	if d.Delimiter != ';' {
		t.Errorf("Delimiter = %q, want ';'", d.Delimiter)
	}
	if len(d.Fields) != 3 {
		t.Errorf("Fields = %v, want 3 fields", d.Fields)
	}
}

func TestDetectCSVPicksHighestScoringCandidate(t *testing.T) {
	// tabs appear once per line, commas appear three times per line,
	// pipes never appear; comma should win.
	sample := []byte("a,b,c\td\n1,2,3\t4\n5,6,7\t8\n")
	d, ok := DetectCSV(sample)
	if !ok {
		t.Fatal("expected a delimiter to be detected")
	}
	if d.Delimiter != ',' {
		t.Errorf("Delimiter = %q, want ','", d.Delimiter)
	}
}

func TestDetectCSVRequiresTwoFields(t *testing.T) {
	sample := []byte("justoneword\nanotherword\n")
	if _, ok := DetectCSV(sample); ok {
		t.Error("expected no delimiter to be detected for single-field lines")
	}
}

func TestDetectXMLFindsRepeatingRecordElement(t *testing.T) {
	sample := []byte(`<catalog><row><id>1</id><name>a</name></row><row><id>2</id><name>b</name></row></catalog>`)
	d, ok := DetectXML(sample)
	if !ok {
		t.Fatal("expected a record element to be detected")
	}
	if d.RecordElement != "row" {
		t.Errorf("RecordElement = %q, want row", d.RecordElement)
	}
}

func TestDetectXMLTieBreaksLexicographically(t *testing.T) {
	// "alpha" and "zeta" both repeat twice at the same depth and both have
	// children; lexicographic tie-break should pick "alpha".
	sample := []byte(`<root><zeta><x>1</x></zeta><zeta><x>2</x></zeta><alpha><y>1</y></alpha><alpha><y>2</y></alpha></root>`)
	d, ok := DetectXML(sample)
	if !ok {
		t.Fatal("expected a record element to be detected")
	}
	if d.RecordElement != "alpha" {
		t.Errorf("RecordElement = %q, want alpha (lexicographic tie-break)", d.RecordElement)
	}
}

func TestDetectXMLNoRepeatingElement(t *testing.T) {
	sample := []byte(`<root><a>1</a><b>2</b></root>`)
	if _, ok := DetectXML(sample); ok {
		t.Error("expected no record element for a document with no repeats")
	}
}

func TestDetectJSONFields(t *testing.T) {
	d, ok := DetectJSON([]byte(`{"b": 1, "a": 2}`))
	if !ok {
		t.Fatal("expected detection to succeed")
	}
	if len(d.Fields) != 2 || d.Fields[0] != "a" || d.Fields[1] != "b" {
		t.Errorf("Fields = %v, want sorted [a b]", d.Fields)
	}
}

func TestDetectNDJSONFields(t *testing.T) {
	sample := []byte(`{"name":"a","id":1}` + "\n" + `{"name":"b","id":2}` + "\n")
	d, ok := DetectNDJSON(sample)
	if !ok {
		t.Fatal("expected detection to succeed")
	}
	if len(d.Fields) != 2 || d.Fields[0] != "id" || d.Fields[1] != "name" {
		t.Errorf("Fields = %v, want sorted [id name]", d.Fields)
	}
}

func TestDetectStructureDispatchesOnHint(t *testing.T) {
	sample := []byte("a;b\n1;2\n3;4\n")
	d, ok := DetectStructure(sample, FormatCSV)
	if !ok {
		t.Fatal("expected detection to succeed")
	}
	if d.Format != FormatCSV || d.Delimiter != ';' {
		t.Errorf("unexpected detection result: %+v", d)
	}
}
