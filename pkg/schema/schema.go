// Package schema validates decoded model output against the analysis and
// captions contracts and converts it into typed results.
package schema

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/menta2k/meme-maker/pkg/types"
)

// ValidationError lists every problem found in a response. Its message is
// short enough to feed back to the model as a retry hint.
type ValidationError struct {
	Issues []string
}

func (e *ValidationError) Error() string {
	return "schema validation failed: " + strings.Join(e.Issues, "; ")
}

func (e *ValidationError) Unwrap() error {
	return types.ErrSchemaViolation
}

var (
	strategies = map[string]bool{
		"face_focus": true, "upper_face": true, "mouth_focus": true, "center_square": true, "unknown": true,
	}
	tones = map[string]string{
		"gentle": "gentle", "funny": "funny", "meme": "meme", "neutral": "neutral",
		"温柔": "gentle", "搞笑": "funny", "多梗": "meme", "中性": "neutral",
	}
	risks = map[string]bool{types.RiskLow: true, types.RiskMedium: true, types.RiskHigh: true}
)

// ValidateAnalysis checks a decoded analysis response.
func ValidateAnalysis(obj map[string]any) (*types.AnalysisResult, error) {
	c := &checker{}
	res := &types.AnalysisResult{}

	if q := c.object(obj, "image_quality"); q != nil {
		res.ImageQuality = types.ImageQuality{
			Score:  c.unit(q, "image_quality.score", true),
			Issues: c.stringList(q, "image_quality.issues"),
			Usable: c.boolean(q, "image_quality.usable", true, false),
		}
	}

	if e := c.object(obj, "expression_analysis"); e != nil {
		res.ExpressionAnalysis = types.ExpressionAnalysis{
			PrimaryLabel: c.label(e, "expression_analysis.primary_label"),
			Confidence:   c.unit(e, "expression_analysis.confidence", true),
			Notes:        c.str(e, "expression_analysis.notes", ""),
		}
	}

	if p := c.object(obj, "crop_plan"); p != nil {
		res.CropPlan = types.CropPlan{
			Strategy:    c.enum(p, "crop_plan.strategy", "unknown", strategies),
			Boxes:       c.boxes(p, "crop_plan.boxes"),
			Assumptions: c.str(p, "crop_plan.assumptions", ""),
		}
	}

	res.Captions = c.captions(obj, "captions")
	res.Safety = c.safety(obj)
	res.Fallback = c.fallback(obj)

	if err := c.err(); err != nil {
		return nil, err
	}
	return res, nil
}

// ValidateCaptions checks a decoded montage captions response. Exactly five
// captions are required.
func ValidateCaptions(obj map[string]any) (*types.CaptionsResult, error) {
	c := &checker{}
	res := &types.CaptionsResult{
		Captions: c.captions(obj, "captions"),
		Safety:   c.safety(obj),
		Fallback: c.fallback(obj),
	}
	if len(res.Captions) != types.CropCount {
		c.failf("captions must have length %d", types.CropCount)
	}
	if err := c.err(); err != nil {
		return nil, err
	}
	return res, nil
}

type checker struct {
	issues []string
}

func (c *checker) failf(format string, args ...any) {
	c.issues = append(c.issues, fmt.Sprintf(format, args...))
}

func (c *checker) err() error {
	if len(c.issues) == 0 {
		return nil
	}
	return &ValidationError{Issues: c.issues}
}

// lookup returns the value at the last segment of path, treating null as absent.
func lookup(m map[string]any, path string) (any, bool) {
	key := path[strings.LastIndex(path, ".")+1:]
	v, ok := m[key]
	if !ok || v == nil {
		return nil, false
	}
	return v, true
}

func (c *checker) object(m map[string]any, path string) map[string]any {
	v, ok := lookup(m, path)
	if !ok {
		c.failf("%s is required", path)
		return nil
	}
	obj, ok := v.(map[string]any)
	if !ok {
		c.failf("%s must be an object", path)
		return nil
	}
	return obj
}

func (c *checker) unit(m map[string]any, path string, required bool) float64 {
	v, ok := lookup(m, path)
	if !ok {
		if required {
			c.failf("%s is required", path)
		}
		return 0
	}
	f, ok := toFloat(v)
	if !ok {
		c.failf("%s must be a number", path)
		return 0
	}
	if f < 0 || f > 1 {
		c.failf("%s must be between 0 and 1", path)
	}
	return f
}

func (c *checker) boolean(m map[string]any, path string, required, def bool) bool {
	v, ok := lookup(m, path)
	if !ok {
		if required {
			c.failf("%s is required", path)
		}
		return def
	}
	switch b := v.(type) {
	case bool:
		return b
	case string:
		if parsed, err := strconv.ParseBool(strings.TrimSpace(b)); err == nil {
			return parsed
		}
	}
	c.failf("%s must be a boolean", path)
	return def
}

func (c *checker) str(m map[string]any, path, def string) string {
	v, ok := lookup(m, path)
	if !ok {
		return def
	}
	s, ok := v.(string)
	if !ok {
		c.failf("%s must be a string", path)
		return def
	}
	return s
}

func (c *checker) stringList(m map[string]any, path string) []string {
	v, ok := lookup(m, path)
	if !ok {
		return nil
	}
	list, ok := v.([]any)
	if !ok {
		c.failf("%s must be a list of strings", path)
		return nil
	}
	out := make([]string, 0, len(list))
	for i, item := range list {
		s, ok := item.(string)
		if !ok {
			c.failf("%s[%d] must be a string", path, i)
			continue
		}
		out = append(out, s)
	}
	return out
}

func (c *checker) enum(m map[string]any, path, def string, allowed map[string]bool) string {
	s := c.str(m, path, def)
	if !allowed[s] {
		c.failf("%s has unsupported value %q", path, s)
		return def
	}
	return s
}

func (c *checker) label(m map[string]any, path string) types.ExpressionLabel {
	v, ok := lookup(m, path)
	if !ok {
		c.failf("%s is required", path)
		return types.LabelUncertain
	}
	s, _ := v.(string)
	l, ok := types.LookupExpressionLabel(s)
	if !ok {
		c.failf("%s has unsupported value %v", path, v)
		return types.LabelUncertain
	}
	return l
}

func (c *checker) boxes(m map[string]any, path string) []types.Box {
	v, ok := lookup(m, path)
	if !ok {
		return nil
	}
	list, ok := v.([]any)
	if !ok {
		c.failf("%s must be a list", path)
		return nil
	}
	out := make([]types.Box, 0, len(list))
	for i, item := range list {
		obj, ok := item.(map[string]any)
		if !ok {
			c.failf("%s[%d] must be an object", path, i)
			continue
		}
		p := fmt.Sprintf("%s[%d]", path, i)
		out = append(out, types.NewBox(
			c.number(obj, p+".x"),
			c.number(obj, p+".y"),
			c.number(obj, p+".w"),
			c.number(obj, p+".h"),
			c.str(obj, p+".reason", ""),
		))
	}
	return out
}

func (c *checker) captions(m map[string]any, path string) []types.Caption {
	v, ok := lookup(m, path)
	if !ok {
		return nil
	}
	list, ok := v.([]any)
	if !ok {
		c.failf("%s must be a list", path)
		return nil
	}
	out := make([]types.Caption, 0, len(list))
	for i, item := range list {
		p := fmt.Sprintf("%s[%d]", path, i)
		obj, ok := item.(map[string]any)
		if !ok {
			c.failf("%s must be an object", p)
			continue
		}
		text := c.str(obj, p+".text", "")
		if n := utf8.RuneCountInString(text); n == 0 || n > 60 {
			c.failf("%s.text must be 1-60 characters", p)
		}
		tone := c.str(obj, p+".tone", "neutral")
		canonical, ok := tones[tone]
		if !ok {
			c.failf("%s.tone has unsupported value %q", p, tone)
			canonical = "neutral"
		}
		out = append(out, types.Caption{
			Text:        text,
			Tone:        canonical,
			SafetyNotes: c.str(obj, p+".safety_notes", ""),
		})
	}
	return out
}

func (c *checker) safety(m map[string]any) types.Safety {
	s := c.object(m, "safety")
	if s == nil {
		return types.Safety{}
	}
	return types.Safety{
		Allowed:  c.boolean(s, "safety.allowed", true, false),
		Risk:     c.enum(s, "safety.risk", types.RiskLow, risks),
		Reasons:  c.stringList(s, "safety.reasons"),
		RedFlags: c.stringList(s, "safety.red_flags"),
	}
}

func (c *checker) fallback(m map[string]any) types.Fallback {
	f := c.object(m, "fallback")
	if f == nil {
		return types.Fallback{}
	}
	return types.Fallback{
		UseFallback: c.boolean(f, "fallback.use_fallback", true, false),
		Reason:      c.str(f, "fallback.reason", ""),
		Suggestions: c.stringList(f, "fallback.suggestions"),
	}
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case int:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(n), 64)
		return f, err == nil
	}
	return 0, false
}

// number reads a required numeric field. Out-of-range values are left for
// the caller to clamp.
func (c *checker) number(m map[string]any, path string) float64 {
	v, ok := lookup(m, path)
	if !ok {
		c.failf("%s is required", path)
		return 0
	}
	f, ok := toFloat(v)
	if !ok {
		c.failf("%s must be a number", path)
		return 0
	}
	return f
}
