package streamconv

import "github.com/goccy/go-yaml"

// yamlCSVConfig, yamlXMLConfig, yamlFieldSpec, and yamlTransformConfig mirror
// ConverterConfig's shape but with string-spelled enums, since a YAML
// document can't carry Go's Format/TransformMode constants directly
// (spec.md §6.3 "names may be spelled per host convention").
type yamlCSVConfig struct {
	Delimiter      string `yaml:"delimiter"`
	HasHeaders     *bool  `yaml:"has_headers"`
	TrimWhitespace bool   `yaml:"trim_whitespace"`
}

type yamlXMLConfig struct {
	RecordElement     string `yaml:"record_element"`
	TrimText          *bool  `yaml:"trim_text"`
	IncludeAttributes bool   `yaml:"include_attributes"`
	ExpandEntities    *bool  `yaml:"expand_entities"`
}

type yamlFieldSpec struct {
	Target   string      `yaml:"target"`
	Origin   string      `yaml:"origin"`
	Required bool        `yaml:"required"`
	Default  interface{} `yaml:"default"`
	Coerce   string      `yaml:"coerce"`
	Format   string      `yaml:"format"`
	Compute  string      `yaml:"compute"`
}

type yamlTransformConfig struct {
	Mode              string          `yaml:"mode"`
	Fields            []yamlFieldSpec `yaml:"fields"`
	OnMissingField    string          `yaml:"on_missing_field"`
	OnMissingRequired string          `yaml:"on_missing_required"`
	OnCoerceError     string          `yaml:"on_coerce_error"`
}

type yamlConverterConfig struct {
	InputFormat      string               `yaml:"input_format"`
	OutputFormat     string               `yaml:"output_format"`
	ChunkTargetBytes int                  `yaml:"chunk_target_bytes"`
	EnableStats      bool                 `yaml:"enable_stats"`
	CSV              *yamlCSVConfig       `yaml:"csv"`
	XML              *yamlXMLConfig       `yaml:"xml"`
	Transform        *yamlTransformConfig `yaml:"transform"`
}

// LoadConverterConfigYAML decodes a YAML document into a ConverterConfig,
// for hosts (anything other than the k6 binding, which builds config from
// JS objects directly) that want to configure a Converter declaratively.
func LoadConverterConfigYAML(data []byte) (ConverterConfig, error) {
	var y yamlConverterConfig
	if err := yaml.Unmarshal(data, &y); err != nil {
		return ConverterConfig{}, wrapError(KindInvalidConfig, err, "invalid converter config yaml")
	}

	input, ok := ParseFormat(y.InputFormat)
	if y.InputFormat != "" && !ok {
		return ConverterConfig{}, newError(KindInvalidConfig, "unknown input_format %q", y.InputFormat)
	}
	output, ok := ParseFormat(y.OutputFormat)
	if y.OutputFormat != "" && !ok {
		return ConverterConfig{}, newError(KindInvalidConfig, "unknown output_format %q", y.OutputFormat)
	}

	cfg := NewConverterConfig(input, output)
	if y.ChunkTargetBytes > 0 {
		cfg.ChunkTargetBytes = y.ChunkTargetBytes
	}
	cfg.EnableStats = y.EnableStats

	if y.CSV != nil {
		csvCfg := DefaultCSVConfig()
		if y.CSV.Delimiter != "" {
			csvCfg = csvCfg.WithDelimiter(y.CSV.Delimiter[0])
		}
		if y.CSV.HasHeaders != nil {
			csvCfg.HasHeaders = *y.CSV.HasHeaders
		}
		csvCfg.TrimWhitespace = y.CSV.TrimWhitespace
		cfg.CSV = &csvCfg
	}

	if y.XML != nil {
		xmlCfg := DefaultXMLConfig()
		if y.XML.RecordElement != "" {
			xmlCfg = xmlCfg.WithRecordElement(y.XML.RecordElement)
		}
		if y.XML.TrimText != nil {
			xmlCfg.TrimText = *y.XML.TrimText
		}
		xmlCfg.IncludeAttributes = y.XML.IncludeAttributes
		if y.XML.ExpandEntities != nil {
			xmlCfg.ExpandEntities = *y.XML.ExpandEntities
		}
		cfg.XML = &xmlCfg
	}

	if y.Transform != nil {
		plan, err := buildTransformPlanFromYAML(*y.Transform)
		if err != nil {
			return ConverterConfig{}, err
		}
		cfg.Transform = plan
	}

	return cfg, nil
}

func buildTransformPlanFromYAML(y yamlTransformConfig) (*TransformPlan, error) {
	input := TransformPlanInput{}
	switch y.Mode {
	case "", "replace":
		input.Mode = TransformReplace
	case "augment":
		input.Mode = TransformAugment
	default:
		return nil, newError(KindInvalidConfig, "unknown transform mode %q", y.Mode)
	}

	var err error
	if input.OnMissingField, err = parseMissingFieldPolicy(y.OnMissingField); err != nil {
		return nil, err
	}
	if input.OnMissingRequired, err = parseMissingRequiredPolicy(y.OnMissingRequired); err != nil {
		return nil, err
	}
	if input.OnCoerceError, err = parseCoerceErrorPolicy(y.OnCoerceError); err != nil {
		return nil, err
	}

	for _, f := range y.Fields {
		field := FieldSpec{
			TargetName: f.Target,
			OriginName: f.Origin,
			Required:   f.Required,
			Compute:    f.Compute,
		}
		if f.Default != nil {
			field.Default = f.Default
			field.HasDefault = true
		}
		if f.Coerce != "" {
			spec, err := parseCoerceSpec(f.Coerce, f.Format)
			if err != nil {
				return nil, err
			}
			field.Coerce = &spec
		}
		input.Fields = append(input.Fields, field)
	}

	return CompileTransformPlan(input)
}

func parseMissingFieldPolicy(s string) (MissingFieldPolicy, error) {
	switch s {
	case "", "error":
		return MissingFieldError, nil
	case "null":
		return MissingFieldNull, nil
	case "drop":
		return MissingFieldDrop, nil
	default:
		return 0, newError(KindInvalidConfig, "unknown on_missing_field policy %q", s)
	}
}

func parseMissingRequiredPolicy(s string) (MissingRequiredPolicy, error) {
	switch s {
	case "", "error":
		return MissingRequiredError, nil
	case "abort":
		return MissingRequiredAbort, nil
	default:
		return 0, newError(KindInvalidConfig, "unknown on_missing_required policy %q", s)
	}
}

func parseCoerceErrorPolicy(s string) (CoerceErrorPolicy, error) {
	switch s {
	case "", "error":
		return CoerceErrorError, nil
	case "null":
		return CoerceErrorNull, nil
	case "drop_record":
		return CoerceErrorDropRecord, nil
	default:
		return 0, newError(KindInvalidConfig, "unknown on_coerce_error policy %q", s)
	}
}

func parseCoerceSpec(kind, format string) (CoerceSpec, error) {
	switch kind {
	case "string":
		return CoerceSpec{Kind: CoerceString}, nil
	case "i64":
		return CoerceSpec{Kind: CoerceI64}, nil
	case "f64":
		return CoerceSpec{Kind: CoerceF64}, nil
	case "bool":
		return CoerceSpec{Kind: CoerceBool}, nil
	case "timestamp_ms":
		switch format {
		case "", "iso8601":
			return CoerceSpec{Kind: CoerceTimestampMs, TimestampFormat: TimestampISO8601}, nil
		case "unix_ms":
			return CoerceSpec{Kind: CoerceTimestampMs, TimestampFormat: TimestampUnixMs}, nil
		case "unix_s":
			return CoerceSpec{Kind: CoerceTimestampMs, TimestampFormat: TimestampUnixS}, nil
		default:
			return CoerceSpec{}, newError(KindInvalidConfig, "unknown timestamp_ms format %q", format)
		}
	default:
		return CoerceSpec{}, newError(KindInvalidConfig, "unknown coerce kind %q", kind)
	}
}
