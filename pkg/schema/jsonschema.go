package schema

import "encoding/json"

// Names used for the structured-output constraint sent to the model.
const (
	AnalysisSchemaName = "MemePlan"
	CaptionsSchemaName = "MemeCaptions"
)

const captionItem = `{
  "type": "object",
  "additionalProperties": false,
  "required": ["text", "tone", "safety_notes"],
  "properties": {
    "text": {"type": "string", "minLength": 1, "maxLength": 60},
    "tone": {"type": "string", "enum": ["gentle", "funny", "meme", "neutral"]},
    "safety_notes": {"type": "string"}
  }
}`

const safetyObject = `{
  "type": "object",
  "additionalProperties": false,
  "required": ["allowed", "risk", "reasons", "red_flags"],
  "properties": {
    "allowed": {"type": "boolean"},
    "risk": {"type": "string", "enum": ["low", "medium", "high"]},
    "reasons": {"type": "array", "items": {"type": "string"}},
    "red_flags": {"type": "array", "items": {"type": "string"}}
  }
}`

const fallbackObject = `{
  "type": "object",
  "additionalProperties": false,
  "required": ["use_fallback", "reason", "suggestions"],
  "properties": {
    "use_fallback": {"type": "boolean"},
    "reason": {"type": "string"},
    "suggestions": {"type": "array", "items": {"type": "string"}}
  }
}`

// AnalysisJSONSchema describes the per-image analysis response.
var AnalysisJSONSchema = json.RawMessage(`{
  "type": "object",
  "additionalProperties": false,
  "required": ["image_quality", "expression_analysis", "crop_plan", "captions", "safety", "fallback"],
  "properties": {
    "image_quality": {
      "type": "object",
      "additionalProperties": false,
      "required": ["score", "issues", "usable"],
      "properties": {
        "score": {"type": "number", "minimum": 0, "maximum": 1},
        "issues": {"type": "array", "items": {"type": "string"}},
        "usable": {"type": "boolean"}
      }
    },
    "expression_analysis": {
      "type": "object",
      "additionalProperties": false,
      "required": ["primary_label", "confidence", "notes"],
      "properties": {
        "primary_label": {"type": "string", "enum": ["happy", "wronged", "angry", "shocked", "sleepy", "uncertain"]},
        "confidence": {"type": "number", "minimum": 0, "maximum": 1},
        "notes": {"type": "string"}
      }
    },
    "crop_plan": {
      "type": "object",
      "additionalProperties": false,
      "required": ["strategy", "boxes", "assumptions"],
      "properties": {
        "strategy": {"type": "string", "enum": ["face_focus", "upper_face", "mouth_focus", "center_square", "unknown"]},
        "boxes": {
          "type": "array",
          "maxItems": 5,
          "items": {
            "type": "object",
            "additionalProperties": false,
            "required": ["x", "y", "w", "h", "reason"],
            "properties": {
              "x": {"type": "number"},
              "y": {"type": "number"},
              "w": {"type": "number"},
              "h": {"type": "number"},
              "reason": {"type": "string"}
            }
          }
        },
        "assumptions": {"type": "string"}
      }
    },
    "captions": {"type": "array", "maxItems": 5, "items": ` + captionItem + `},
    "safety": ` + safetyObject + `,
    "fallback": ` + fallbackObject + `
  }
}`)

// CaptionsJSONSchema describes the montage captions response.
var CaptionsJSONSchema = json.RawMessage(`{
  "type": "object",
  "additionalProperties": false,
  "required": ["captions", "safety", "fallback"],
  "properties": {
    "captions": {"type": "array", "minItems": 5, "maxItems": 5, "items": ` + captionItem + `},
    "safety": ` + safetyObject + `,
    "fallback": ` + fallbackObject + `
  }
}`)
