package streamconv

import "testing"

func TestParseFormat(t *testing.T) {
	cases := []struct {
		in   string
		want Format
		ok   bool
	}{
		{"csv", FormatCSV, true},
		{"CSV", FormatCSV, true},
		{"ndjson", FormatNDJSON, true},
		{"jsonl", FormatNDJSON, true},
		{"json", FormatJSON, true},
		{"xml", FormatXML, true},
		{"yaml", FormatUnknown, false},
		{"", FormatUnknown, false},
	}

	for _, c := range cases {
		got, ok := ParseFormat(c.in)
		if ok != c.ok || got != c.want {
			t.Errorf("ParseFormat(%q) = (%v, %v), want (%v, %v)", c.in, got, ok, c.want, c.ok)
		}
	}
}

func TestFormatString(t *testing.T) {
	if FormatCSV.String() != "csv" {
		t.Errorf("FormatCSV.String() = %q, want csv", FormatCSV.String())
	}
	if FormatUnknown.String() != "unknown" {
		t.Errorf("FormatUnknown.String() = %q, want unknown", FormatUnknown.String())
	}
}

func TestNewConverterConfigDefaults(t *testing.T) {
	cfg := NewConverterConfig(FormatCSV, FormatNDJSON)
	if cfg.ChunkTargetBytes != DefaultChunkTargetBytes {
		t.Errorf("ChunkTargetBytes = %d, want %d", cfg.ChunkTargetBytes, DefaultChunkTargetBytes)
	}
	if cfg.InputFormat != FormatCSV || cfg.OutputFormat != FormatNDJSON {
		t.Errorf("unexpected formats: %+v", cfg)
	}
}

func TestNeedsDetection(t *testing.T) {
	t.Run("unknown input needs detection", func(t *testing.T) {
		cfg := NewConverterConfig(FormatUnknown, FormatNDJSON)
		if !cfg.needsDetection() {
			t.Error("expected needsDetection to be true for unknown input format")
		}
	})

	t.Run("known non-csv/xml input, no detection needed", func(t *testing.T) {
		cfg := NewConverterConfig(FormatNDJSON, FormatCSV)
		if cfg.needsDetection() {
			t.Error("did not expect needsDetection for fully-specified ndjson->csv")
		}
	})

	t.Run("csv input without explicit delimiter needs detection", func(t *testing.T) {
		cfg := NewConverterConfig(FormatCSV, FormatNDJSON)
		if !cfg.needsDetection() {
			t.Error("expected needsDetection to be true when CSV delimiter unset")
		}
	})

	t.Run("csv input with explicit delimiter does not need detection", func(t *testing.T) {
		cfg := NewConverterConfig(FormatCSV, FormatNDJSON)
		csvCfg := DefaultCSVConfig().WithDelimiter(';')
		cfg.CSV = &csvCfg
		if cfg.needsDetection() {
			t.Error("did not expect needsDetection once delimiter is explicit")
		}
	})

	t.Run("xml input without explicit record element needs detection", func(t *testing.T) {
		cfg := NewConverterConfig(FormatXML, FormatNDJSON)
		if !cfg.needsDetection() {
			t.Error("expected needsDetection to be true when XML record element unset")
		}
	})
}
