package types

import (
	"encoding/json"
	"fmt"
	"math"
	"strings"
)

// Validator is implemented by records that carry their own bound constraints.
type Validator interface {
	Validate() error
}

// Validate checks a decoded JSON value against the schema. The value must be
// the product of json.Unmarshal into any (maps, slices, float64, string,
// bool, nil). It returns a SCHEMA_VALIDATION error naming the offending path.
func (s *JSONSchema) Validate(value any) error {
	return s.validateAt("$", value)
}

func (s *JSONSchema) validateAt(path string, value any) error {
	if value == nil {
		return schemaErr(path, "value is null")
	}

	switch s.Type {
	case SchemaTypeObject:
		obj, ok := value.(map[string]any)
		if !ok {
			return schemaErr(path, "expected object, got %T", value)
		}
		for _, name := range s.Required {
			v, present := obj[name]
			if !present || v == nil {
				return schemaErr(path+"."+name, "required field is missing")
			}
		}
		for name, prop := range s.Properties {
			v, present := obj[name]
			if !present || v == nil {
				continue
			}
			if err := prop.validateAt(path+"."+name, v); err != nil {
				return err
			}
		}

	case SchemaTypeArray:
		arr, ok := value.([]any)
		if !ok {
			return schemaErr(path, "expected array, got %T", value)
		}
		if s.MinItems != nil && len(arr) < *s.MinItems {
			return schemaErr(path, "expected at least %d items, got %d", *s.MinItems, len(arr))
		}
		if s.Items != nil {
			for i, item := range arr {
				if err := s.Items.validateAt(fmt.Sprintf("%s[%d]", path, i), item); err != nil {
					return err
				}
			}
		}

	case SchemaTypeString:
		str, ok := value.(string)
		if !ok {
			return schemaErr(path, "expected string, got %T", value)
		}
		if s.MinLength != nil && len(str) < *s.MinLength {
			return schemaErr(path, "expected at least %d characters", *s.MinLength)
		}

	case SchemaTypeInteger:
		num, ok := value.(float64)
		if !ok {
			return schemaErr(path, "expected integer, got %T", value)
		}
		if num != math.Trunc(num) {
			return schemaErr(path, "expected integer, got %v", num)
		}
		if err := s.checkBounds(path, num); err != nil {
			return err
		}

	case SchemaTypeNumber:
		num, ok := value.(float64)
		if !ok {
			return schemaErr(path, "expected number, got %T", value)
		}
		if err := s.checkBounds(path, num); err != nil {
			return err
		}

	case SchemaTypeBoolean:
		if _, ok := value.(bool); !ok {
			return schemaErr(path, "expected boolean, got %T", value)
		}
	}

	return nil
}

func (s *JSONSchema) checkBounds(path string, num float64) error {
	if s.Minimum != nil && num < *s.Minimum {
		return schemaErr(path, "value %v is below minimum %v", num, *s.Minimum)
	}
	if s.Maximum != nil && num > *s.Maximum {
		return schemaErr(path, "value %v is above maximum %v", num, *s.Maximum)
	}
	return nil
}

func schemaErr(path, format string, args ...any) error {
	return NewError(ErrSchemaValidation, path+": "+fmt.Sprintf(format, args...))
}

// Parse decodes raw agent output, validates it against the schema, and fills
// out with the result. Code fences around the JSON payload are tolerated
// since reasoning capabilities commonly wrap structured output in them.
// If out implements Validator its own constraints are checked as well.
// Any violation yields a SCHEMA_VALIDATION error; out is never partially
// trusted on failure.
func Parse(raw string, schema *JSONSchema, out any) error {
	payload := stripFences(raw)

	var decoded any
	if err := json.Unmarshal([]byte(payload), &decoded); err != nil {
		return NewError(ErrSchemaValidation, "output is not valid JSON").WithCause(err)
	}
	if schema != nil {
		if err := schema.Validate(decoded); err != nil {
			return err
		}
	}
	if err := json.Unmarshal([]byte(payload), out); err != nil {
		return NewError(ErrSchemaValidation, "output does not match target shape").WithCause(err)
	}
	if v, ok := out.(Validator); ok {
		return v.Validate()
	}
	return nil
}

// stripFences removes a surrounding markdown code fence, if any.
func stripFences(raw string) string {
	trimmed := strings.TrimSpace(raw)
	if !strings.HasPrefix(trimmed, "```") {
		return trimmed
	}
	trimmed = strings.TrimPrefix(trimmed, "```")
	if idx := strings.Index(trimmed, "\n"); idx >= 0 {
		trimmed = trimmed[idx+1:] // drop the language tag line
	}
	trimmed = strings.TrimSuffix(strings.TrimSpace(trimmed), "```")
	return strings.TrimSpace(trimmed)
}
