package cairn

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// MustCompileSchema compiles a JSON Schema string at package init time.
// Tools declare their parameter schemas as raw strings and compile them
// once; a malformed schema is a programming error.
func MustCompileSchema(raw string) *jsonschema.Schema {
	s, err := jsonschema.CompileString("schema.json", raw)
	if err != nil {
		panic(fmt.Sprintf("compile schema: %v", err))
	}
	return s
}

// ValidateArgs validates raw JSON arguments against a compiled schema and
// returns a flat message suitable for an in-band tool error.
func ValidateArgs(s *jsonschema.Schema, args json.RawMessage) error {
	var v any
	if err := json.Unmarshal(args, &v); err != nil {
		return fmt.Errorf("arguments are not valid JSON: %w", err)
	}
	if err := s.Validate(v); err != nil {
		return fmt.Errorf("invalid arguments: %s", flattenValidation(err))
	}
	return nil
}

func flattenValidation(err error) string {
	ve, ok := err.(*jsonschema.ValidationError)
	if !ok {
		return err.Error()
	}
	var msgs []string
	collectLeaves(ve, &msgs)
	return strings.Join(msgs, "; ")
}

func collectLeaves(ve *jsonschema.ValidationError, out *[]string) {
	if len(ve.Causes) == 0 {
		loc := strings.TrimPrefix(ve.InstanceLocation, "/")
		if loc == "" {
			*out = append(*out, ve.Message)
		} else {
			*out = append(*out, fmt.Sprintf("%s: %s", loc, ve.Message))
		}
		return
	}
	for _, c := range ve.Causes {
		collectLeaves(c, out)
	}
}
