package ai

import (
	"encoding/json"
	"fmt"
	"reflect"
	"strings"

	"github.com/invopop/jsonschema"
	"github.com/kaptinlin/jsonrepair"
)

// GenerateSchema reflects a JSON Schema for the given output type, the
// shape handed to the model as a structured-output response format.
// Additional properties are forbidden so extraction results stay
// parseable into the declared struct.
func GenerateSchema(value any) any {
	reflector := jsonschema.Reflector{
		AllowAdditionalProperties: false,
		DoNotReference:            true,
	}

	t := reflect.TypeOf(value)
	if t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	return reflector.Reflect(reflect.New(t).Interface())
}

// UnmarshalFlexible parses model output into out, tolerating the
// failure modes structured extraction produces in practice: output
// double-encoded as a JSON string, and near-JSON (unquoted keys,
// trailing commas, truncated closers) that jsonrepair can fix.
func UnmarshalFlexible(input string, out any) error {
	input = strings.TrimSpace(input)

	if err := json.Unmarshal([]byte(input), out); err == nil {
		return nil
	}

	// Some models stringify the whole object. Unwrap once and retry.
	var unwrapped string
	if err := json.Unmarshal([]byte(input), &unwrapped); err == nil {
		unwrapped = strings.TrimSpace(unwrapped)
		if err := json.Unmarshal([]byte(unwrapped), out); err == nil {
			return nil
		}
		input = unwrapped
	}

	repaired, err := jsonrepair.JSONRepair(dropDoubledOpeningBrace(input))
	if err != nil {
		return fmt.Errorf("json repair failed: %w (input: %s)", err, input)
	}
	if err := json.Unmarshal([]byte(repaired), out); err != nil {
		return fmt.Errorf("unmarshal failed after repair: input=%s repaired=%s", input, repaired)
	}
	return nil
}

// dropDoubledOpeningBrace strips the stutter "{ {" some models emit at
// the start of an object, which jsonrepair turns into a nested object
// instead of removing.
func dropDoubledOpeningBrace(s string) string {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "{") {
		rest := strings.TrimSpace(s[1:])
		if strings.HasPrefix(rest, "{") {
			return rest
		}
	}
	return s
}
