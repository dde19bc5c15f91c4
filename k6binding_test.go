package streamconv

import "testing"

func TestStreamConvNewConverterAndPushFinish(t *testing.T) {
	s := &StreamConv{}
	handle, err := s.NewConverter(converterJSConfig{
		InputFormat:  "ndjson",
		OutputFormat: "csv",
	})
	if err != nil {
		t.Fatalf("NewConverter failed: %v", err)
	}
	out, err := handle.Push(`{"id":"1","name":"widget"}` + "\n")
	if err != nil {
		t.Fatalf("Push failed: %v", err)
	}
	if out == "" {
		t.Fatal("expected non-empty CSV output")
	}
	if _, err := handle.Finish(); err != nil {
		t.Fatalf("Finish failed: %v", err)
	}
	if handle.ID() == "" {
		t.Error("expected a non-empty converter ID")
	}
}

func TestStreamConvNewConverterUnknownOutputFormat(t *testing.T) {
	s := &StreamConv{}
	if _, err := s.NewConverter(converterJSConfig{OutputFormat: "bogus"}); err == nil {
		t.Fatal("expected an error for an unknown output_format")
	}
}

func TestStreamConvHandleStatsFields(t *testing.T) {
	s := &StreamConv{}
	handle, err := s.NewConverter(converterJSConfig{
		InputFormat:  "ndjson",
		OutputFormat: "ndjson",
		EnableStats:  true,
	})
	if err != nil {
		t.Fatalf("NewConverter failed: %v", err)
	}
	if _, err := handle.Push(`{"a":1}` + "\n"); err != nil {
		t.Fatalf("Push failed: %v", err)
	}
	stats := handle.Stats()
	for _, key := range []string{
		"bytes_in", "bytes_out", "chunks_in", "records_processed",
		"parse_time_ns", "transform_time_ns", "write_time_ns",
		"max_buffer_size", "current_partial_size", "throughput_mb_per_sec",
	} {
		if _, ok := stats[key]; !ok {
			t.Errorf("Stats() missing key %q", key)
		}
	}
	if stats["bytes_in"].(uint64) <= 0 {
		t.Errorf("bytes_in = %v, want > 0", stats["bytes_in"])
	}
}

func TestStreamConvDetectFormat(t *testing.T) {
	s := &StreamConv{}
	format, ok := s.DetectFormat(`{"a":1}` + "\n" + `{"b":2}` + "\n")
	if !ok || format != FormatNDJSON.String() {
		t.Errorf("DetectFormat() = (%q, %v), want (%q, true)", format, ok, FormatNDJSON.String())
	}
}

func TestStreamConvDetectCSV(t *testing.T) {
	s := &StreamConv{}
	result, ok := s.DetectCSV("a,b,c\n1,2,3\n4,5,6\n")
	if !ok {
		t.Fatal("expected CSV detection to succeed")
	}
	if result["delimiter"] != "," {
		t.Errorf("unexpected delimiter: %+v", result)
	}
}

func TestStreamConvDetectXML(t *testing.T) {
	s := &StreamConv{}
	result, ok := s.DetectXML(`<rows><row><id>1</id></row><row><id>2</id></row></rows>`)
	if !ok {
		t.Fatal("expected XML detection to succeed")
	}
	if result["record_element"] != "row" {
		t.Errorf("unexpected record_element: %+v", result)
	}
}
