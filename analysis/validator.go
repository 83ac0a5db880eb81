package analysis

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"regexp"

	"github.com/santhosh-tekuri/jsonschema/v6"

	"github.com/c360studio/coach/llm"
	"github.com/c360studio/coach/rubric"
)

//go:embed result_schema.json
var resultSchemaJSON string

// resultSchema is the compiled structural schema for dimension results.
var resultSchema = mustCompileSchema(resultSchemaJSON, "result_schema.json")

func mustCompileSchema(raw string, name string) *jsonschema.Schema {
	var schemaDoc any
	if err := json.Unmarshal([]byte(raw), &schemaDoc); err != nil {
		panic(fmt.Sprintf("failed to parse embedded %s: %v", name, err))
	}

	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource(name, schemaDoc); err != nil {
		panic(fmt.Sprintf("failed to add %s resource: %v", name, err))
	}

	sch, err := compiler.Compile(name)
	if err != nil {
		panic(fmt.Sprintf("failed to compile %s: %v", name, err))
	}
	return sch
}

// timestampRe accepts MM:SS and HH:MM:SS transcript offsets.
var timestampRe = regexp.MustCompile(`^\d{1,2}:\d{2}(:\d{2})?$`)

// ParseResult extracts a DimensionResult from raw LLM output and validates
// it against the rubric. Extraction tries a direct JSON decode first, then
// fenced-code-block extraction. Structural validation runs against the
// embedded schema, then semantic checks. Any failure yields a
// malformed-response error; nothing from a rejected response is cached.
func ParseResult(raw string, rub *rubric.Version) (*DimensionResult, error) {
	if raw == "" {
		return nil, NewError(KindMalformedResponse, dimOf(rub), fmt.Errorf("empty response"))
	}

	jsonText := raw
	var value any
	if err := json.Unmarshal([]byte(raw), &value); err != nil {
		jsonText = llm.ExtractJSON(raw)
		if jsonText == "" {
			return nil, NewError(KindMalformedResponse, dimOf(rub), fmt.Errorf("no JSON object in response"))
		}
		if err := json.Unmarshal([]byte(jsonText), &value); err != nil {
			return nil, NewError(KindMalformedResponse, dimOf(rub), fmt.Errorf("decode extracted JSON: %w", err))
		}
	}

	if err := resultSchema.Validate(value); err != nil {
		return nil, NewError(KindMalformedResponse, dimOf(rub), fmt.Errorf("schema validation: %w", err))
	}

	var result DimensionResult
	if err := json.Unmarshal([]byte(jsonText), &result); err != nil {
		return nil, NewError(KindMalformedResponse, dimOf(rub), fmt.Errorf("decode result: %w", err))
	}

	if err := checkSemantics(&result, rub); err != nil {
		return nil, NewError(KindMalformedResponse, dimOf(rub), err)
	}

	return &result, nil
}

// checkSemantics enforces constraints the structural schema cannot express.
func checkSemantics(result *DimensionResult, rub *rubric.Version) error {
	if !result.Status.IsValid() {
		return fmt.Errorf("unknown status %q", result.Status)
	}

	if result.Score < 0 || result.Score > result.MaxScore {
		return fmt.Errorf("score %.1f outside [0, %.1f]", result.Score, result.MaxScore)
	}

	if rub != nil {
		if want := float64(rub.MaxScore()); result.MaxScore != want {
			return fmt.Errorf("maxScore %.1f does not match rubric max %.1f", result.MaxScore, want)
		}
	}

	for i, ev := range result.Evidence {
		if !timestampRe.MatchString(ev.TimestampStart) {
			return fmt.Errorf("evidence[%d]: malformed timestampStart %q", i, ev.TimestampStart)
		}
		if !timestampRe.MatchString(ev.TimestampEnd) {
			return fmt.Errorf("evidence[%d]: malformed timestampEnd %q", i, ev.TimestampEnd)
		}
	}

	return nil
}

func dimOf(rub *rubric.Version) rubric.Dimension {
	if rub == nil {
		return ""
	}
	return rub.Dimension
}
