package streamconv

import (
	"errors"
	"testing"
)

func TestQuickValidate(t *testing.T) {
	cases := []struct {
		in   string
		want bool
	}{
		{`{"a":1}`, true},
		{`[1,2,3]`, true},
		{`  {"a":1}  `, true},
		{`"just a string"`, true},
		{`not json`, true},
		{``, false},
		{`   `, false},
	}
	for _, c := range cases {
		if got := QuickValidate([]byte(c.in)); got != c.want {
			t.Errorf("QuickValidate(%q) = %v, want %v", c.in, got, c.want)
		}
	}
}

func TestParseAndValidate(t *testing.T) {
	v, err := ParseAndValidate([]byte(`{"a":1,"b":"x"}`))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	obj, ok := v.(map[string]interface{})
	if !ok {
		t.Fatalf("expected map[string]interface{}, got %T", v)
	}
	if len(obj) != 2 {
		t.Errorf("expected 2 fields, got %d", len(obj))
	}
}

func TestParseAndValidateMalformed(t *testing.T) {
	_, err := ParseAndValidate([]byte(`{"a":`))
	if err == nil {
		t.Fatal("expected an error for truncated json")
	}
	var convErr *Error
	if !errors.As(err, &convErr) {
		t.Fatalf("expected *Error, got %T", err)
	}
	if convErr.Kind != KindJSONParse {
		t.Errorf("Kind = %v, want KindJSONParse", convErr.Kind)
	}
}
