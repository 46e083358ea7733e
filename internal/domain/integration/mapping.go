package integration

import (
	"encoding/json"
	"fmt"
	"maps"
	"slices"
	"strconv"
	"strings"
)

// ValueTransform is an optional conversion applied to a mapped value
type ValueTransform string

const (
	ValueTransformNone      ValueTransform = ""
	ValueTransformUppercase ValueTransform = "uppercase"
	ValueTransformLowercase ValueTransform = "lowercase"
	ValueTransformTrim      ValueTransform = "trim"
	ValueTransformString    ValueTransform = "string"
	ValueTransformNumber    ValueTransform = "number"
)

// IsValid checks if the value transform is known
func (t ValueTransform) IsValid() bool {
	switch t {
	case ValueTransformNone, ValueTransformUppercase, ValueTransformLowercase,
		ValueTransformTrim, ValueTransformString, ValueTransformNumber:
		return true
	}
	return false
}

func (t ValueTransform) apply(v any) (any, error) {
	switch t {
	case ValueTransformNone:
		return v, nil
	case ValueTransformUppercase, ValueTransformLowercase, ValueTransformTrim:
		s, ok := v.(string)
		if !ok {
			return nil, fmt.Errorf("%s requires a string, got %T", t, v)
		}
		switch t {
		case ValueTransformUppercase:
			return strings.ToUpper(s), nil
		case ValueTransformLowercase:
			return strings.ToLower(s), nil
		default:
			return strings.TrimSpace(s), nil
		}
	case ValueTransformString:
		switch val := v.(type) {
		case string:
			return val, nil
		case float64:
			return strconv.FormatFloat(val, 'f', -1, 64), nil
		case bool:
			return strconv.FormatBool(val), nil
		case nil:
			return "", nil
		default:
			raw, err := json.Marshal(val)
			if err != nil {
				return nil, err
			}
			return string(raw), nil
		}
	case ValueTransformNumber:
		switch val := v.(type) {
		case float64:
			return val, nil
		case int:
			return float64(val), nil
		case int64:
			return float64(val), nil
		case string:
			f, err := strconv.ParseFloat(strings.TrimSpace(val), 64)
			if err != nil {
				return nil, fmt.Errorf("cannot convert %q to number", val)
			}
			return f, nil
		default:
			return nil, fmt.Errorf("cannot convert %T to number", v)
		}
	}
	return nil, fmt.Errorf("unknown transform %q", t)
}

// FieldMapping copies the value at Source to Target
type FieldMapping struct {
	Source    string         `json:"source"`
	Target    string         `json:"target"`
	Default   any            `json:"default,omitempty"`
	Required  bool           `json:"required,omitempty"`
	Transform ValueTransform `json:"transform,omitempty"`
}

// MappingSpec is an ordered list of field mappings plus constant defaults
// written to the output when the mappings did not produce them.
type MappingSpec struct {
	Mappings []FieldMapping `json:"mappings"`
	Defaults map[string]any `json:"defaults,omitempty"`
}

// Validate checks that every mapping has usable paths and transforms
func (s MappingSpec) Validate() error {
	for i, m := range s.Mappings {
		if m.Source == "" || m.Target == "" {
			return ErrInvalidTransformation.WithMessage(fmt.Sprintf("Mapping %d requires source and target paths", i))
		}
		if !m.Transform.IsValid() {
			return ErrInvalidTransformation.WithMessage(fmt.Sprintf("Mapping %d has unknown transform %q", i, m.Transform))
		}
	}
	for path := range s.Defaults {
		if path == "" {
			return ErrInvalidTransformation.WithMessage("Default path cannot be empty")
		}
	}
	return nil
}

// Apply maps input into a new payload. Absent source paths fall back to the
// mapping default, are reported when required, and are skipped otherwise.
// All problems are collected rather than stopping at the first one.
func (s MappingSpec) Apply(input Payload) (Payload, []string) {
	out := Payload{}
	var errs []string

	for _, m := range s.Mappings {
		value, ok := input.Get(m.Source)
		if !ok {
			switch {
			case m.Default != nil:
				value = cloneValue(m.Default)
			case m.Required:
				errs = append(errs, fmt.Sprintf("required field %q is missing", m.Source))
				continue
			default:
				continue
			}
		} else {
			value = cloneValue(value)
		}

		converted, err := m.Transform.apply(value)
		if err != nil {
			errs = append(errs, fmt.Sprintf("field %q: %v", m.Source, err))
			continue
		}
		if err := out.Set(m.Target, converted); err != nil {
			errs = append(errs, err.Error())
		}
	}

	for _, path := range slices.Sorted(maps.Keys(s.Defaults)) {
		if _, exists := out.Get(path); exists {
			continue
		}
		if err := out.Set(path, cloneValue(s.Defaults[path])); err != nil {
			errs = append(errs, err.Error())
		}
	}

	return out, errs
}
