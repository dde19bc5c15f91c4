package streamconv

import (
	"bytes"
	"testing"
)

func TestNDJSONParserPassesValidLines(t *testing.T) {
	p := NewNDJSONParser()
	in := `{"a":1}` + "\n" + `{"b":2}` + "\n"
	out := p.Push([]byte(in))
	if string(out) != in {
		t.Errorf("Push() = %q, want %q", out, in)
	}
	if p.RecordCount() != 2 {
		t.Errorf("RecordCount() = %d, want 2", p.RecordCount())
	}
}

func TestNDJSONParserSkipsInvalidLines(t *testing.T) {
	p := NewNDJSONParser()
	in := `{"a":1}` + "\n" + `not json` + "\n" + `{"b":2}` + "\n"
	out := p.Push([]byte(in))
	want := "{\"a\":1}\n{\"b\":2}\n"
	if string(out) != want {
		t.Errorf("Push() = %q, want %q", out, want)
	}
	if p.RecordCount() != 2 {
		t.Errorf("RecordCount() = %d, want 2 (invalid line excluded)", p.RecordCount())
	}
}

func TestNDJSONParserCarriesPartialLineAcrossPush(t *testing.T) {
	p := NewNDJSONParser()
	out1 := p.Push([]byte(`{"a":1`))
	if len(out1) != 0 {
		t.Fatalf("expected no output for an incomplete line, got %q", out1)
	}
	out2 := p.Push([]byte("}\n"))
	if string(out2) != "{\"a\":1}\n" {
		t.Errorf("Push() after completion = %q", out2)
	}
}

func TestNDJSONParserFinishFlushesTrailingLine(t *testing.T) {
	p := NewNDJSONParser()
	p.Push([]byte(`{"a":1}` + "\n" + `{"b":2}`))
	out := p.Finish()
	if string(out) != "{\"b\":2}\n" {
		t.Errorf("Finish() = %q, want trailing line flushed with newline", out)
	}
}

func TestNDJSONParserToJSONArray(t *testing.T) {
	p := NewNDJSONParser()
	out := p.ToJSONArray([]byte(`{"a":1}`+"\n"+`{"b":2}`+"\n"), true, false)
	if string(out) != `[{"a":1},{"b":2}` {
		t.Errorf("ToJSONArray(mid-stream) = %q", out)
	}
	tail := p.ToJSONArray(nil, false, true)
	if string(tail) != `]` {
		t.Errorf("ToJSONArray(final) = %q, want ]", tail)
	}
}

func TestNDJSONParserToJSONArrayEmptyStream(t *testing.T) {
	p := NewNDJSONParser()
	out := p.ToJSONArray(nil, true, true)
	if !bytes.Equal(out, []byte("[]")) {
		t.Errorf("ToJSONArray(empty) = %q, want []", out)
	}
}
