package extractor

import (
	"encoding/json"
	"fmt"
	"strings"

	contractx "github.com/tanpawarit/library-mail-agent/agent/contract"
	"github.com/xeipuuv/gojsonschema"
)

type intentAnswer struct {
	Kind       string             `json:"kind"`
	Slots      map[string]*string `json:"slots"`
	Confidence float64            `json:"confidence"`
}

func intentSchema() (*gojsonschema.Schema, error) {
	kinds := make([]any, 0, len(contractx.IntentKinds))
	for _, k := range contractx.IntentKinds {
		kinds = append(kinds, string(k))
	}

	doc := map[string]any{
		"type":     "object",
		"required": []any{"kind", "confidence"},
		"properties": map[string]any{
			"kind": map[string]any{
				"type": "string",
				"enum": kinds,
			},
			"slots": map[string]any{
				"type": "object",
				"additionalProperties": map[string]any{
					"type": []any{"string", "null"},
				},
			},
			"confidence": map[string]any{
				"type":    "number",
				"minimum": 0,
				"maximum": 1,
			},
		},
	}
	return gojsonschema.NewSchema(gojsonschema.NewGoLoader(doc))
}

// parseAnswer pulls the JSON object out of the model reply, validates it and
// decodes it. Code fences and chatter around the object are tolerated.
func parseAnswer(sch *gojsonschema.Schema, content string) (intentAnswer, error) {
	raw, err := jsonObject(content)
	if err != nil {
		return intentAnswer{}, err
	}

	result, err := sch.Validate(gojsonschema.NewStringLoader(raw))
	if err != nil {
		return intentAnswer{}, fmt.Errorf("%w: decode answer: %v", contractx.ErrSchemaViolation, err)
	}
	if !result.Valid() {
		problems := make([]string, 0, len(result.Errors()))
		for _, e := range result.Errors() {
			problems = append(problems, e.String())
		}
		return intentAnswer{}, fmt.Errorf("%w: %s", contractx.ErrSchemaViolation, strings.Join(problems, "; "))
	}

	var out intentAnswer
	if err := json.Unmarshal([]byte(raw), &out); err != nil {
		return intentAnswer{}, fmt.Errorf("%w: unmarshal answer: %v", contractx.ErrSchemaViolation, err)
	}
	return out, nil
}

func jsonObject(content string) (string, error) {
	start := strings.Index(content, "{")
	end := strings.LastIndex(content, "}")
	if start < 0 || end <= start {
		return "", fmt.Errorf("%w: no json object in answer", contractx.ErrSchemaViolation)
	}
	return content[start : end+1], nil
}
