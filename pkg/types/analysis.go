package types

// Risk levels reported by the safety section of a model response.
const (
	RiskLow    = "low"
	RiskMedium = "medium"
	RiskHigh   = "high"
)

// ImageQuality is the model's view of how usable the photo is.
type ImageQuality struct {
	Score  float64  `json:"score"`
	Issues []string `json:"issues"`
	Usable bool     `json:"usable"`
}

// ExpressionAnalysis carries the detected expression.
type ExpressionAnalysis struct {
	PrimaryLabel ExpressionLabel `json:"primary_label"`
	Confidence   float64         `json:"confidence"`
	Notes        string          `json:"notes"`
}

// CropPlan is the model's proposal of up to five crop boxes.
type CropPlan struct {
	Strategy    string `json:"strategy"`
	Boxes       []Box  `json:"boxes"`
	Assumptions string `json:"assumptions"`
}

// Caption is a single proposed caption.
type Caption struct {
	Text        string `json:"text"`
	Tone        string `json:"tone"`
	SafetyNotes string `json:"safety_notes"`
}

// Safety is the model's self-assessment of the content.
type Safety struct {
	Allowed  bool     `json:"allowed"`
	Risk     string   `json:"risk"`
	Reasons  []string `json:"reasons"`
	RedFlags []string `json:"red_flags"`
}

// Fallback lets the model ask for local fallback content.
type Fallback struct {
	UseFallback bool     `json:"use_fallback"`
	Reason      string   `json:"reason"`
	Suggestions []string `json:"suggestions"`
}

// AnalysisResult is the validated per-image analysis response.
type AnalysisResult struct {
	ImageQuality       ImageQuality       `json:"image_quality"`
	ExpressionAnalysis ExpressionAnalysis `json:"expression_analysis"`
	CropPlan           CropPlan           `json:"crop_plan"`
	Captions           []Caption          `json:"captions"`
	Safety             Safety             `json:"safety"`
	Fallback           Fallback           `json:"fallback"`
}

// CaptionTexts returns the caption strings in order.
func (r *AnalysisResult) CaptionTexts() []string {
	return captionTexts(r.Captions)
}

// CaptionsResult is the validated per-montage captions response.
type CaptionsResult struct {
	Captions []Caption `json:"captions"`
	Safety   Safety    `json:"safety"`
	Fallback Fallback  `json:"fallback"`
}

// CaptionTexts returns the caption strings in order.
func (r *CaptionsResult) CaptionTexts() []string {
	return captionTexts(r.Captions)
}

func captionTexts(captions []Caption) []string {
	out := make([]string, 0, len(captions))
	for _, c := range captions {
		out = append(out, c.Text)
	}
	return out
}
