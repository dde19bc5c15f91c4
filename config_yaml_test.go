package streamconv

import (
	"errors"
	"testing"
)

func TestLoadConverterConfigYAMLBasic(t *testing.T) {
	cfg, err := LoadConverterConfigYAML([]byte(`
input_format: csv
output_format: ndjson
chunk_target_bytes: 4096
enable_stats: true
csv:
  delimiter: ";"
  has_headers: true
  trim_whitespace: true
`))
	if err != nil {
		t.Fatalf("LoadConverterConfigYAML failed: %v", err)
	}
	if cfg.InputFormat != FormatCSV || cfg.OutputFormat != FormatNDJSON {
		t.Errorf("unexpected formats: %+v", cfg)
	}
	if cfg.ChunkTargetBytes != 4096 || !cfg.EnableStats {
		t.Errorf("unexpected scalar fields: %+v", cfg)
	}
	if cfg.CSV == nil || cfg.CSV.Delimiter != ';' || !cfg.CSV.HasHeaders || !cfg.CSV.TrimWhitespace {
		t.Errorf("unexpected csv config: %+v", cfg.CSV)
	}
}

func TestLoadConverterConfigYAMLXML(t *testing.T) {
	cfg, err := LoadConverterConfigYAML([]byte(`
input_format: xml
output_format: ndjson
xml:
  record_element: item
  include_attributes: true
  trim_text: false
`))
	if err != nil {
		t.Fatalf("LoadConverterConfigYAML failed: %v", err)
	}
	if cfg.XML == nil || cfg.XML.RecordElement != "item" || !cfg.XML.IncludeAttributes {
		t.Errorf("unexpected xml config: %+v", cfg.XML)
	}
	if cfg.XML.TrimText {
		t.Errorf("expected trim_text to be overridden to false, got %+v", cfg.XML)
	}
}

func TestLoadConverterConfigYAMLUnknownFormat(t *testing.T) {
	_, err := LoadConverterConfigYAML([]byte(`
input_format: yaml
output_format: ndjson
`))
	if err == nil {
		t.Fatal("expected an error for an unknown input_format")
	}
	var convErr *Error
	if !errors.As(err, &convErr) || convErr.Kind != KindInvalidConfig {
		t.Errorf("expected KindInvalidConfig, got %v", err)
	}
}

func TestLoadConverterConfigYAMLTransformPlan(t *testing.T) {
	cfg, err := LoadConverterConfigYAML([]byte(`
input_format: ndjson
output_format: ndjson
transform:
  mode: augment
  fields:
    - target: id
      origin: id
      coerce: i64
    - target: greeting
      compute: concat("hi ", name)
`))
	if err != nil {
		t.Fatalf("LoadConverterConfigYAML failed: %v", err)
	}
	if cfg.Transform == nil {
		t.Fatal("expected a compiled transform plan")
	}
	engine := NewTransformEngine(cfg.Transform)
	out, err := engine.Push([]byte(`{"id":"7","name":"Ada"}` + "\n"))
	if err != nil {
		t.Fatalf("transform push failed: %v", err)
	}
	if string(out) != `{"greeting":"hi Ada","id":7,"name":"Ada"}`+"\n" {
		t.Errorf("Push() = %s", out)
	}
}

func TestLoadConverterConfigYAMLInvalidTransformMode(t *testing.T) {
	_, err := LoadConverterConfigYAML([]byte(`
input_format: ndjson
output_format: ndjson
transform:
  mode: bogus
  fields:
    - target: id
      origin: id
`))
	if err == nil {
		t.Fatal("expected an error for an unknown transform mode")
	}
}

func TestLoadConverterConfigYAMLInvalidYAML(t *testing.T) {
	_, err := LoadConverterConfigYAML([]byte("not: [valid: yaml"))
	if err == nil {
		t.Fatal("expected an error for malformed yaml")
	}
}

func TestParseCoerceSpecTimestampFormats(t *testing.T) {
	tests := []struct {
		format string
		want   TimestampFormat
	}{
		{"", TimestampISO8601},
		{"iso8601", TimestampISO8601},
		{"unix_ms", TimestampUnixMs},
		{"unix_s", TimestampUnixS},
	}
	for _, tt := range tests {
		spec, err := parseCoerceSpec("timestamp_ms", tt.format)
		if err != nil {
			t.Fatalf("parseCoerceSpec(timestamp_ms, %q) failed: %v", tt.format, err)
		}
		if spec.Kind != CoerceTimestampMs || spec.TimestampFormat != tt.want {
			t.Errorf("parseCoerceSpec(timestamp_ms, %q) = %+v, want format %v", tt.format, spec, tt.want)
		}
	}
	if _, err := parseCoerceSpec("timestamp_ms", "bogus"); err == nil {
		t.Fatal("expected an error for an unknown timestamp format")
	}
}

func TestParseCoerceSpecUnknownKind(t *testing.T) {
	if _, err := parseCoerceSpec("bogus", ""); err == nil {
		t.Fatal("expected an error for an unknown coerce kind")
	}
}

func TestParseMissingFieldPolicyDefaults(t *testing.T) {
	p, err := parseMissingFieldPolicy("")
	if err != nil || p != MissingFieldError {
		t.Errorf("parseMissingFieldPolicy(\"\") = %v, %v; want MissingFieldError, nil", p, err)
	}
	if _, err := parseMissingFieldPolicy("bogus"); err == nil {
		t.Fatal("expected an error for an unknown policy")
	}
}
