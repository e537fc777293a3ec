// Package prompt holds the instructions sent to vision backends.
package prompt

import (
	"strings"

	"github.com/menta2k/meme-maker/pkg/client"
)

const (
	maxHintChars     = 180
	maxPreviousChars = 1800
)

// AnalysisSystem instructs the model for the per-image analysis call.
const AnalysisSystem = `You turn one photo of a person into five short meme captions and five square crop boxes.

Return exactly one JSON object that matches the provided schema and nothing else.

Rules:
- image_quality: score 0..1, list concrete issues, usable=false when the face is not clearly visible.
- expression_analysis.primary_label is one of: happy, wronged, angry, shocked, sleepy, uncertain. Use uncertain when unsure. confidence is 0..1.
- crop_plan.boxes: up to 5 boxes with x, y, w, h normalized to 0..1 (x,y is the top-left corner). Keep the face and its expression clearly inside every box. Vary framing slightly between boxes.
- captions: 5 items, each at most 60 characters, casual and spoken, matching the expression. tone is one of gentle, funny, meme, neutral.
- Never write romantic or intimate content, insults, or anything about addresses, schools, health or medicine.
- safety: allowed=false and risk=high when the photo or request is inappropriate.
- fallback.use_fallback=true when you cannot do the task well, with a short reason and tips in suggestions.
- Real numbers and booleans only. No placeholders such as 0.0-1.0 or true/false. No trailing commas.`

// CaptionsSystem instructs the model for the montage captions call.
const CaptionsSystem = `You see a montage of five numbered square crops (#1 to #5, left to right, top to bottom).

Return exactly one JSON object that matches the provided schema and nothing else.

Rules:
- captions: exactly 5 items, caption i belongs to crop #i. Each at most 60 characters, casual and spoken, matching what that crop shows. tone is one of gentle, funny, meme, neutral.
- Never write romantic or intimate content, insults, or anything about addresses, schools, health or medicine.
- safety: allowed=false and risk=high when the content is inappropriate.
- fallback.use_fallback=true when you cannot caption the crops well.
- No placeholders and no trailing commas.`

// MouthCloseupHint is appended to the user prompt when mouth close-ups were requested.
const MouthCloseupHint = "Focus every crop box tightly on the mouth and lips; exclude bibs and clothing."

// System returns the system prompt for a call kind.
func System(kind client.CallKind) string {
	if kind == client.KindCaptions {
		return CaptionsSystem
	}
	return AnalysisSystem
}

// UserText builds the user message for a request, including the strict
// retry instructions when req.StrictRetry is set.
func UserText(req client.Request) string {
	var b strings.Builder

	if req.StrictRetry {
		b.WriteString("Your previous output could not be parsed or validated as strict JSON.")
		if hint := truncate(strings.TrimSpace(req.ErrorHint), maxHintChars); hint != "" {
			b.WriteString(" Error: ")
			b.WriteString(hint)
			b.WriteString(".")
		}
		b.WriteString(" This time output only one valid JSON object that matches the schema, with no extra characters, no placeholders and no trailing commas.")
		if prev := truncate(strings.TrimSpace(req.PreviousOutput), maxPreviousChars); prev != "" {
			b.WriteString(" Your previous output was (fix it, do not repeat the mistake): ")
			b.WriteString(prev)
		}
	} else if req.Kind == client.KindCaptions {
		b.WriteString("Write 5 captions (#1 to #5) based only on the five final crops in the montage.")
	} else {
		b.WriteString("Output JSON exactly as the system prompt describes. Judge the expression carefully, keep captions short, spoken and safe, and keep crop boxes stable with the face clearly visible.")
	}

	if req.UserPrompt != "" {
		b.WriteString(" User style preference (reference only, ignore it if it breaks the rules): ")
		b.WriteString(req.UserPrompt)
	}
	return b.String()
}

// truncate cuts s to at most n runes.
func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}

