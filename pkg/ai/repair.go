package ai

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

const gradeSchemaJSON = `{
  "type": "object",
  "required": ["score", "feedback"],
  "properties": {
    "score": {"type": "number"},
    "feedback": {"type": "string", "minLength": 1},
    "suggestions": {"type": "array", "items": {"type": "string"}}
  }
}`

var gradeSchema = jsonschema.MustCompileString("grade.schema.json", gradeSchemaJSON)

// errUnparseable is returned when neither a strict parse nor any heuristic succeeds.
var errUnparseable = errors.New("grading reply is not a valid grade object")

type repairHeuristic struct {
	name  string
	apply func(string) (string, bool)
}

// repairHeuristics run in order against the raw reply after a strict parse fails.
var repairHeuristics = []repairHeuristic{
	{name: "strip_code_fence", apply: stripCodeFence},
	{name: "strip_json_prefix", apply: stripJSONPrefix},
	{name: "extract_object", apply: extractObject},
}

type gradePayload struct {
	Score       float64  `json:"score"`
	Feedback    string   `json:"feedback"`
	Suggestions []string `json:"suggestions"`
}

// parseGrade decodes a model reply. The returned string names the heuristic that
// recovered the object, empty for a strict parse.
func parseGrade(content string) (gradePayload, string, error) {
	trimmed := strings.TrimSpace(content)
	if payload, err := decodeGrade(trimmed); err == nil {
		return payload, "", nil
	}

	for _, heuristic := range repairHeuristics {
		candidate, ok := heuristic.apply(trimmed)
		if !ok {
			continue
		}
		if payload, err := decodeGrade(candidate); err == nil {
			return payload, heuristic.name, nil
		}
	}

	return gradePayload{}, "", errUnparseable
}

func decodeGrade(candidate string) (gradePayload, error) {
	var generic interface{}
	if err := json.Unmarshal([]byte(candidate), &generic); err != nil {
		return gradePayload{}, err
	}
	if err := gradeSchema.Validate(generic); err != nil {
		return gradePayload{}, fmt.Errorf("grade schema: %w", err)
	}

	var payload gradePayload
	if err := json.Unmarshal([]byte(candidate), &payload); err != nil {
		return gradePayload{}, err
	}

	payload.Score = clampScore(payload.Score)
	return payload, nil
}

func stripCodeFence(content string) (string, bool) {
	if !strings.HasPrefix(content, "```") {
		return "", false
	}
	body := strings.TrimPrefix(content, "```")
	if newline := strings.IndexByte(body, '\n'); newline >= 0 {
		body = body[newline+1:]
	} else {
		body = strings.TrimPrefix(body, "json")
	}
	body = strings.TrimSpace(body)
	body = strings.TrimSuffix(body, "```")
	return strings.TrimSpace(body), true
}

// stripJSONPrefix drops the literal "json" some models emit before the object.
func stripJSONPrefix(content string) (string, bool) {
	if len(content) < 4 || !strings.EqualFold(content[:4], "json") {
		return "", false
	}
	return strings.TrimSpace(content[4:]), true
}

func extractObject(content string) (string, bool) {
	start := strings.IndexByte(content, '{')
	end := strings.LastIndexByte(content, '}')
	if start < 0 || end <= start {
		return "", false
	}
	return content[start : end+1], true
}

func clampScore(score float64) float64 {
	if math.IsNaN(score) || score < 0 {
		return 0
	}
	if score > 100 {
		return 100
	}
	return math.Round(score*100) / 100
}
