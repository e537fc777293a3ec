package types

// OutputSize is the side length of every generated square.
const OutputSize = 512

// CropCount is the number of crops and captions produced per request.
const CropCount = 5

// Box represents a normalized bounding box with coordinates in [0,1] range
type Box struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	W      float64 `json:"w"`
	H      float64 `json:"h"`
	Reason string  `json:"reason,omitempty"`
}

// NewBox builds a clamped box: position in [0,1], size in [0.05,1].
func NewBox(x, y, w, h float64, reason string) Box {
	return Box{
		X:      Clamp(x, 0, 1),
		Y:      Clamp(y, 0, 1),
		W:      Clamp(w, 0.05, 1),
		H:      Clamp(h, 0.05, 1),
		Reason: reason,
	}
}

// Clamped returns the box with the NewBox clamps applied.
func (b Box) Clamped() Box {
	return NewBox(b.X, b.Y, b.W, b.H, b.Reason)
}

// NormalizeBoxes pads or truncates boxes to exactly CropCount entries.
// Missing entries repeat the last box. An empty input stays empty.
func NormalizeBoxes(boxes []Box) []Box {
	if len(boxes) == 0 {
		return nil
	}
	out := make([]Box, 0, CropCount)
	for i := 0; i < CropCount; i++ {
		if i < len(boxes) {
			out = append(out, boxes[i].Clamped())
		} else {
			out = append(out, out[len(out)-1])
		}
	}
	return out
}

// CropHint is either a box proposed for a crop slot or no hint at all.
type CropHint struct {
	box Box
	ok  bool
}

// HintBox wraps a box as a crop hint.
func HintBox(b Box) CropHint {
	return CropHint{box: b.Clamped(), ok: true}
}

// NoHint is the empty crop hint.
func NoHint() CropHint {
	return CropHint{}
}

// Box returns the hinted box and whether one is present.
func (h CropHint) Box() (Box, bool) {
	return h.box, h.ok
}

// HintsFromBoxes returns CropCount hints. Without boxes every slot is NoHint.
func HintsFromBoxes(boxes []Box) []CropHint {
	hints := make([]CropHint, CropCount)
	normalized := NormalizeBoxes(boxes)
	for i := range hints {
		if len(normalized) == 0 {
			hints[i] = NoHint()
			continue
		}
		hints[i] = HintBox(normalized[i])
	}
	return hints
}

// CropPreference selects the crop strategy requested by the user.
type CropPreference string

const (
	PreferDefault      CropPreference = ""
	PreferMouthCloseup CropPreference = "mouth_closeup"
)

// CropType distinguishes candidate crops.
type CropType string

const (
	CropFace  CropType = "face"
	CropMouth CropType = "mouth"
)

// CropCandidate is a scored crop option produced from one source image.
type CropCandidate struct {
	SourceIndex int      `json:"source_index"`
	SourceName  string   `json:"source_name"`
	Type        CropType `json:"crop_type"`
	Score       float64  `json:"score"`
}

// Clamp bounds v to [lo, hi].
func Clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
