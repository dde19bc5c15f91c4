package streamconv

import (
	"bytes"
	"encoding/json"
	"sort"
	"strconv"
	"strings"
	"time"
)

// TransformMode selects whether TransformEngine starts each output record
// empty or as a clone of the input (spec.md §4.9).
type TransformMode int

const (
	TransformReplace TransformMode = iota
	TransformAugment
)

// MissingFieldPolicy governs a non-required field whose value resolved to
// missing/null and has no default.
type MissingFieldPolicy int

const (
	MissingFieldError MissingFieldPolicy = iota
	MissingFieldNull
	MissingFieldDrop
)

// MissingRequiredPolicy governs a required field with no value and no default.
type MissingRequiredPolicy int

const (
	MissingRequiredError MissingRequiredPolicy = iota
	MissingRequiredAbort
)

// CoerceErrorPolicy governs a coercion that fails.
type CoerceErrorPolicy int

const (
	CoerceErrorError CoerceErrorPolicy = iota
	CoerceErrorNull
	CoerceErrorDropRecord
)

// CoerceKind names one of the five coercions spec.md §4.9 defines.
type CoerceKind int

const (
	CoerceNone CoerceKind = iota
	CoerceString
	CoerceI64
	CoerceF64
	CoerceBool
	CoerceTimestampMs
)

// TimestampFormat selects the sub-format for CoerceTimestampMs.
type TimestampFormat int

const (
	TimestampISO8601 TimestampFormat = iota
	TimestampUnixMs
	TimestampUnixS
)

// CoerceSpec describes a field's target type and, for timestamps, the
// source format to parse.
type CoerceSpec struct {
	Kind            CoerceKind
	TimestampFormat TimestampFormat
}

// FieldSpec is one entry of a transform plan's field list, as supplied by
// a host before compilation (spec.md §4.9's field descriptor).
type FieldSpec struct {
	TargetName string
	OriginName string
	Required   bool
	Default    interface{}
	HasDefault bool
	Coerce     *CoerceSpec
	Compute    string
}

// TransformPlanInput is the uncompiled plan a host builds (directly, or
// via config_yaml.go), analogous to original_source's TransformConfigInput.
type TransformPlanInput struct {
	Mode               TransformMode
	Fields             []FieldSpec
	OnMissingField     MissingFieldPolicy
	OnMissingRequired  MissingRequiredPolicy
	OnCoerceError      CoerceErrorPolicy
}

// transformField is a compiled field descriptor.
type transformField struct {
	spec    FieldSpec
	compute *expr
}

// TransformPlan is the compiled form of TransformPlanInput, ready to run
// against decoded records.
type TransformPlan struct {
	mode              TransformMode
	fields            []transformField
	onMissingField    MissingFieldPolicy
	onMissingRequired MissingRequiredPolicy
	onCoerceError     CoerceErrorPolicy
}

// CompileTransformPlan validates and compiles a TransformPlanInput,
// requiring at least one field and compiling every compute expression
// (spec.md §4.9 "Plan shape").
func CompileTransformPlan(input TransformPlanInput) (*TransformPlan, error) {
	if len(input.Fields) == 0 {
		return nil, newError(KindInvalidConfig, "transform plan requires at least one field")
	}
	plan := &TransformPlan{
		mode:              input.Mode,
		onMissingField:    input.OnMissingField,
		onMissingRequired: input.OnMissingRequired,
		onCoerceError:     input.OnCoerceError,
	}
	for _, f := range input.Fields {
		if f.OriginName == "" {
			f.OriginName = f.TargetName
		}
		tf := transformField{spec: f}
		if f.Compute != "" {
			compiled, err := compileExpression(f.Compute)
			if err != nil {
				return nil, err
			}
			tf.compute = compiled
		}
		plan.fields = append(plan.fields, tf)
	}
	return plan, nil
}

// dropRecordSentinel is returned by applyToRecord to signal the whole
// record should be dropped rather than emitted.
type dropRecordSentinel struct{}

func (dropRecordSentinel) Error() string { return "record dropped by transform policy" }

// applyToRecord runs the per-record procedure from spec.md §4.9 steps 1-6.
func (p *TransformPlan) applyToRecord(input map[string]interface{}) (map[string]interface{}, error) {
	var output map[string]interface{}
	if p.mode == TransformAugment {
		output = make(map[string]interface{}, len(input)+len(p.fields))
		for k, v := range input {
			output[k] = v
		}
	} else {
		output = make(map[string]interface{}, len(p.fields))
	}

	for _, tf := range p.fields {
		value, resolved, err := p.resolveField(tf, input)
		if err != nil {
			return nil, err
		}
		if !resolved {
			continue // field dropped by the missing-field drop policy
		}

		if tf.spec.Coerce != nil && tf.spec.Coerce.Kind != CoerceNone {
			coerced, err := coerceValue(value, *tf.spec.Coerce)
			if err != nil {
				switch p.onCoerceError {
				case CoerceErrorNull:
					coerced = nil
				case CoerceErrorDropRecord:
					return nil, dropRecordSentinel{}
				default:
					return nil, err
				}
			}
			value = coerced
		}

		output[tf.spec.TargetName] = value
	}
	return output, nil
}

// resolveField implements steps 2-3: compute-or-lookup, then missing/null
// handling via default/required/policy. The second return value is false
// when the field should be silently omitted from the output.
func (p *TransformPlan) resolveField(tf transformField, input map[string]interface{}) (interface{}, bool, error) {
	var value interface{}
	var err error
	if tf.compute != nil {
		value, err = tf.compute.evaluate(input)
		if err != nil {
			return nil, false, err
		}
	} else {
		v, ok := input[tf.spec.OriginName]
		if ok {
			value = v
		}
	}

	if value != nil {
		return value, true, nil
	}

	if tf.spec.HasDefault {
		return tf.spec.Default, true, nil
	}
	if tf.spec.Required {
		switch p.onMissingRequired {
		case MissingRequiredAbort:
			return nil, false, dropRecordSentinel{}
		default:
			return nil, false, newError(KindInvalidConfig, "required field %q missing", tf.spec.TargetName)
		}
	}
	switch p.onMissingField {
	case MissingFieldNull:
		return nil, true, nil
	case MissingFieldDrop:
		return nil, false, nil
	default:
		return nil, false, newError(KindInvalidConfig, "field %q missing", tf.spec.TargetName)
	}
}

// coerceValue implements spec.md §4.9 "Coercion details".
func coerceValue(value interface{}, spec CoerceSpec) (interface{}, error) {
	switch spec.Kind {
	case CoerceString:
		return scalarToString(value), nil
	case CoerceI64:
		f, err := numericValue(value)
		if err != nil {
			return nil, err
		}
		return int64(f), nil
	case CoerceF64:
		return numericValue(value)
	case CoerceBool:
		return coerceBool(value)
	case CoerceTimestampMs:
		return coerceTimestampMs(value, spec.TimestampFormat)
	default:
		return value, nil
	}
}

// numericValue accepts numeric strings and floats for i64/f64 coercion,
// truncating floats for the i64 path (done by the caller via int64()).
func numericValue(value interface{}) (float64, error) {
	switch t := value.(type) {
	case float64:
		return t, nil
	case json.Number:
		return t.Float64()
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(t), 64)
		if err != nil {
			return 0, wrapError(KindInvalidConfig, err, "cannot coerce %q to a number", t)
		}
		return f, nil
	default:
		return 0, newError(KindInvalidConfig, "cannot coerce value to a number")
	}
}

// coerceBool accepts true/false/1/0 case-insensitive, per spec.md §4.9.
func coerceBool(value interface{}) (bool, error) {
	switch t := value.(type) {
	case bool:
		return t, nil
	case string:
		switch strings.ToLower(strings.TrimSpace(t)) {
		case "true", "1":
			return true, nil
		case "false", "0":
			return false, nil
		}
	case json.Number:
		if t.String() == "1" {
			return true, nil
		}
		if t.String() == "0" {
			return false, nil
		}
	}
	return false, newError(KindInvalidConfig, "cannot coerce value to bool")
}

// coerceTimestampMs implements the three sub-formats from spec.md §4.9:
// iso8601 parses RFC-3339 to epoch milliseconds, unix_s multiplies by
// 1000, unix_ms passes through.
func coerceTimestampMs(value interface{}, format TimestampFormat) (int64, error) {
	switch format {
	case TimestampISO8601:
		s, ok := value.(string)
		if !ok {
			return 0, newError(KindInvalidConfig, "timestamp_ms(iso8601) requires a string value")
		}
		t, err := time.Parse(time.RFC3339, s)
		if err != nil {
			return 0, wrapError(KindInvalidConfig, err, "invalid iso8601 timestamp %q", s)
		}
		return t.UnixMilli(), nil
	case TimestampUnixS:
		f, err := numericValue(value)
		if err != nil {
			return 0, err
		}
		return int64(f * 1000), nil
	case TimestampUnixMs:
		f, err := numericValue(value)
		if err != nil {
			return 0, err
		}
		return int64(f), nil
	default:
		return 0, newError(KindInvalidConfig, "unknown timestamp format")
	}
}

// TransformEngine threads decoded NDJSON lines through a compiled plan,
// maintaining a partial-line buffer identical to NDJSONParser's (spec.md
// §4.9 "State").
type TransformEngine struct {
	plan        *TransformPlan
	partialLine []byte
}

// NewTransformEngine builds an engine bound to a compiled plan.
func NewTransformEngine(plan *TransformPlan) *TransformEngine {
	return &TransformEngine{plan: plan}
}

// Push parses each complete line, applies the plan, and serializes the
// result, line by line. Invalid JSON on a line raises a JsonParse error
// immediately (spec.md §4.9 "State").
func (e *TransformEngine) Push(chunk []byte) ([]byte, error) {
	var combined []byte
	if len(e.partialLine) > 0 {
		combined = append(append([]byte{}, e.partialLine...), chunk...)
	} else {
		combined = chunk
	}

	var out bytes.Buffer
	pos := 0
	for {
		idx := bytes.IndexByte(combined[pos:], '\n')
		if idx == -1 {
			break
		}
		line := combined[pos : pos+idx]
		pos += idx + 1
		if err := e.processLine(line, &out); err != nil {
			e.partialLine = append([]byte{}, combined[pos:]...)
			return out.Bytes(), err
		}
	}
	e.partialLine = append([]byte{}, combined[pos:]...)
	return out.Bytes(), nil
}

func (e *TransformEngine) processLine(line []byte, out *bytes.Buffer) error {
	trimmed := bytes.TrimSpace(line)
	if len(trimmed) == 0 {
		return nil
	}
	var record map[string]interface{}
	dec := json.NewDecoder(bytes.NewReader(trimmed))
	dec.UseNumber()
	if err := dec.Decode(&record); err != nil {
		return wrapError(KindJSONParse, err, "transform: invalid ndjson line")
	}

	result, err := e.plan.applyToRecord(record)
	if err != nil {
		if _, dropped := err.(dropRecordSentinel); dropped {
			return nil
		}
		return err
	}

	b, err := marshalSortedRecord(result)
	if err != nil {
		return wrapError(KindJSONParse, err, "transform: failed to serialize output record")
	}
	out.Write(b)
	out.WriteByte('\n')
	return nil
}

// Finish flushes any remaining buffered partial line.
func (e *TransformEngine) Finish() ([]byte, error) {
	var out bytes.Buffer
	if len(e.partialLine) > 0 {
		line := e.partialLine
		e.partialLine = nil
		if err := e.processLine(line, &out); err != nil {
			return out.Bytes(), err
		}
	}
	return out.Bytes(), nil
}

// marshalSortedRecord serializes a record map with sorted keys so output
// is deterministic, matching the XML/CSV writers' ordering convention.
func marshalSortedRecord(record map[string]interface{}) ([]byte, error) {
	keys := make([]string, 0, len(record))
	for k := range record {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, k := range keys {
		if i > 0 {
			buf.WriteByte(',')
		}
		kb, err := json.Marshal(k)
		if err != nil {
			return nil, err
		}
		buf.Write(kb)
		buf.WriteByte(':')
		if err := marshalJSONValue(&buf, record[k]); err != nil {
			return nil, err
		}
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// marshalJSONValue renders a decoded/computed value as JSON text.
// float64 values (the only type arithmetic in expr.go produces) are
// always rendered with a decimal point, matching original_source's
// transform.rs arithmetic semantics: e.g. 3+4 serializes as "7.0", not
// "7" (spec.md §8.2 scenario 5), even though encoding/json would
// normally print an integral float64 without a fractional part.
func marshalJSONValue(buf *bytes.Buffer, v interface{}) error {
	switch t := v.(type) {
	case nil:
		buf.WriteString("null")
		return nil
	case float64:
		buf.WriteString(formatFloatAsJSONNumber(t))
		return nil
	case map[string]interface{}:
		keys := make([]string, 0, len(t))
		for k := range t {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		buf.WriteByte('{')
		for i, k := range keys {
			if i > 0 {
				buf.WriteByte(',')
			}
			kb, err := json.Marshal(k)
			if err != nil {
				return err
			}
			buf.Write(kb)
			buf.WriteByte(':')
			if err := marshalJSONValue(buf, t[k]); err != nil {
				return err
			}
		}
		buf.WriteByte('}')
		return nil
	case []interface{}:
		buf.WriteByte('[')
		for i, item := range t {
			if i > 0 {
				buf.WriteByte(',')
			}
			if err := marshalJSONValue(buf, item); err != nil {
				return err
			}
		}
		buf.WriteByte(']')
		return nil
	default:
		b, err := json.Marshal(t)
		if err != nil {
			return err
		}
		buf.Write(b)
		return nil
	}
}

func formatFloatAsJSONNumber(f float64) string {
	s := strconv.FormatFloat(f, 'g', -1, 64)
	if !strings.ContainsAny(s, ".eE") {
		s += ".0"
	}
	return s
}
