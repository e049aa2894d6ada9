package judgment

import (
	"fmt"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// contractSchema is the structural gate for raw judgments. It is deliberately
// permissive about optional fields — field-level repair happens in the
// validator — but strict about shapes: a judgment must be an object, phase
// blocks must be objects, score and risk entries must be objects with the
// right primitive types.
const contractSchema = `{
  "$schema": "https://json-schema.org/draft/2020-12/schema",
  "type": "object",
  "properties": {
    "phase1": {
      "type": "object",
      "properties": {
        "hard_stops": {"type": "array", "items": {"type": "string"}},
        "manipulation_indicators": {"type": "array", "items": {"type": "string"}},
        "missing_critical_info": {"type": "boolean"},
        "verdict": {"type": "string"},
        "rationale": {"type": "string"}
      }
    },
    "phase2": {
      "type": "object",
      "properties": {
        "scores": {
          "type": "array",
          "items": {
            "type": "object",
            "required": ["subcriterion_id", "score"],
            "properties": {
              "subcriterion_id": {"type": "string"},
              "score": {"type": "number"},
              "rationale": {"type": "string"},
              "evidence": {"type": "string"}
            }
          }
        },
        "base_score": {"type": "number"},
        "confidence": {"type": "number"}
      }
    },
    "phase3": {
      "type": "object",
      "properties": {
        "risks": {
          "type": "array",
          "items": {
            "type": "object",
            "required": ["dimension", "severity"],
            "properties": {
              "dimension": {"type": "string"},
              "severity": {"type": "number"},
              "factors": {"type": "array", "items": {"type": "string"}}
            }
          }
        },
        "harm_gates": {"type": "array", "items": {"type": "string"}},
        "execution_multiplier": {"type": "number"},
        "risk_grade": {"type": "string"},
        "derisking_plan": {"type": "array", "items": {"type": "string"}}
      }
    },
    "phase4": {
      "type": "object",
      "properties": {
        "tier_recommendation": {"type": "string"},
        "conditions": {"type": "array", "items": {"type": "string"}},
        "next_best_action": {"type": "string"}
      }
    },
    "derived_tags": {"type": "array", "items": {"type": "string"}},
    "anti_gaming_flags": {"type": "array", "items": {"type": "string"}},
    "lane_detected": {"type": "string"},
    "stage_detected": {"type": "string"}
  }
}`

const contractSchemaURL = "https://verdant.schemas.local/judgment.schema.json"

func compileContractSchema() (*jsonschema.Schema, error) {
	c := jsonschema.NewCompiler()
	c.Draft = jsonschema.Draft2020
	if err := c.AddResource(contractSchemaURL, strings.NewReader(contractSchema)); err != nil {
		return nil, fmt.Errorf("judgment schema load failed: %w", err)
	}
	compiled, err := c.Compile(contractSchemaURL)
	if err != nil {
		return nil, fmt.Errorf("judgment schema compile failed: %w", err)
	}
	return compiled, nil
}
