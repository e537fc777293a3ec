// Package pipeline turns one photo (or a small batch) into five captioned
// square memes. Every failure along the way is absorbed into a complete
// result built from local fallback content.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"image"
	"io"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"github.com/menta2k/meme-maker/pkg/client"
	"github.com/menta2k/meme-maker/pkg/cropper"
	"github.com/menta2k/meme-maker/pkg/processing"
	"github.com/menta2k/meme-maker/pkg/prompt"
	"github.com/menta2k/meme-maker/pkg/render"
	"github.com/menta2k/meme-maker/pkg/resilience"
	"github.com/menta2k/meme-maker/pkg/safety"
	"github.com/menta2k/meme-maker/pkg/schema"
	"github.com/menta2k/meme-maker/pkg/selection"
	"github.com/menta2k/meme-maker/pkg/types"
)

// CaptionsSource records where the final captions came from.
type CaptionsSource string

const (
	SourceFallback      CaptionsSource = "fallback"
	SourceAIOriginal    CaptionsSource = "ai_original"
	SourceMouthFallback CaptionsSource = "mouth_fallback"
	SourceAICrops       CaptionsSource = "ai_crops"
)

// Input is a single-photo request.
type Input struct {
	Image []byte
	// MimeType is the upload's content type. Empty means sniff it from Image.
	MimeType   string
	UserPrompt string
	// CropPreference overrides the preference detected from UserPrompt.
	CropPreference types.CropPreference
}

// Upload is one file of a batch request.
type Upload struct {
	Name     string
	Data     []byte
	MimeType string
}

// Result is the complete outcome of a request.
type Result struct {
	RequestID string      `json:"request_id"`
	Captions  []string    `json:"captions"`
	CropBoxes []types.Box `json:"crop_boxes"`

	FallbackUsed    bool                  `json:"fallback_used"`
	FallbackReason  string                `json:"fallback_reason"`
	ExpressionLabel types.ExpressionLabel `json:"expression_label"`
	ExpressionNotes string                `json:"expression_notes"`
	Suggestions     []string              `json:"suggestions"`

	UsedAI       bool   `json:"used_ai"`
	AIAttempted  bool   `json:"ai_attempted"`
	AICallsMade  int    `json:"ai_calls"`
	AIErrorStage string `json:"ai_error_stage"`
	AIError      string `json:"ai_error"`

	CaptionsSource   CaptionsSource `json:"captions_source"`
	CaptionsAIUsed   bool           `json:"captions_ai_used"`
	CaptionCallsMade int            `json:"caption_calls"`
	CaptionsAIError  string         `json:"captions_ai_error"`

	UserPrompt       string               `json:"user_prompt"`
	UserPromptStatus safety.PromptStatus  `json:"user_prompt_status"`
	CropPreference   types.CropPreference `json:"crop_preference"`

	// Candidates are the ranked crops chosen for a batch request.
	Candidates []types.CropCandidate `json:"candidates,omitempty"`
	Memes      []render.Meme         `json:"results,omitempty"`

	CropRects []image.Rectangle `json:"-"`
	Crops     []image.Image     `json:"-"`
	// Debug and CaptionsDebug hold raw model outputs of failed calls.
	Debug         []string `json:"-"`
	CaptionsDebug []string `json:"-"`
}

// Options configures a Pipeline.
type Options struct {
	// Generator is the vision backend. Nil means no backend is configured.
	Generator client.Generator
	// Store persists rendered memes. Nil skips persistence.
	Store render.Store

	Processor *processing.Processor
	Cropper   *cropper.SmartCropper
	Limits    processing.Limits

	// AlignCaptionsToCrops enables the second captions call on a montage of the final crops.
	AlignCaptionsToCrops bool

	Logger *slog.Logger
	// NewID generates request ids. Defaults to random UUIDs.
	NewID func() string
}

// Pipeline runs meme generation requests. It holds no per-request state and
// is safe for concurrent use.
type Pipeline struct {
	gen       client.Generator
	store     render.Store
	processor *processing.Processor
	cropper   *cropper.SmartCropper
	limits    processing.Limits
	align     bool
	logger    *slog.Logger
	newID     func() string
}

// New creates a Pipeline.
func New(opts Options) *Pipeline {
	p := &Pipeline{
		gen:       opts.Generator,
		store:     opts.Store,
		processor: opts.Processor,
		cropper:   opts.Cropper,
		limits:    opts.Limits,
		align:     opts.AlignCaptionsToCrops,
		logger:    opts.Logger,
		newID:     opts.NewID,
	}
	if p.processor == nil {
		p.processor = processing.NewProcessor()
	}
	if p.cropper == nil {
		p.cropper = cropper.New()
	}
	if p.logger == nil {
		p.logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if p.newID == nil {
		p.newID = uuid.NewString
	}
	return p
}

// Generate produces five captions and crops for one photo. An upload over
// the limits is rejected with ErrUploadTooLarge and no result. Otherwise the
// result is always complete and the error only reports a persistence failure.
func (p *Pipeline) Generate(ctx context.Context, in Input) (*Result, error) {
	if err := p.limits.Check([][]byte{in.Image}); err != nil {
		return nil, err
	}

	res, aiPrompt := p.begin(in.UserPrompt, in.CropPreference)
	log := p.logger.With("request_id", res.RequestID)

	img, err := p.processor.DecodeImage(in.Image)
	if err != nil {
		log.Warn("image unreadable, using text-only fallback", "error", err)
		unreadable(res, err)
		return res, p.persist(res)
	}

	p.analyze(ctx, log, res, img, sourceMime(in.MimeType, in.Image), aiPrompt)
	applyMouthBaseline(res)
	res.CropRects, res.Crops = p.cropper.MakeCrops(img, types.HintsFromBoxes(res.CropBoxes), res.CropPreference)
	p.alignCaptions(ctx, log, res)

	p.logResult(log, res)
	return res, p.persist(res)
}

// GenerateBatch ranks crops across several photos and captions the best five.
// Unreadable uploads are skipped. The analysis call sees the photo of the
// top-ranked crop. Upload limits are enforced before any work is done. If
// candidate scoring is interrupted the fallback result comes back with the error.
func (p *Pipeline) GenerateBatch(ctx context.Context, uploads []Upload, userPrompt string, pref types.CropPreference) (*Result, error) {
	data := make([][]byte, len(uploads))
	for i, u := range uploads {
		data[i] = u.Data
	}
	if err := p.limits.Check(data); err != nil {
		return nil, err
	}

	res, aiPrompt := p.begin(userPrompt, pref)
	log := p.logger.With("request_id", res.RequestID, "uploads", len(uploads))

	var (
		images []image.Image
		names  []string
		mimes  []string
		errs   []error
	)
	for i, u := range uploads {
		img, err := p.processor.DecodeImage(u.Data)
		if err != nil {
			log.Warn("skipping unreadable upload", "index", i, "name", u.Name, "error", err)
			errs = append(errs, fmt.Errorf("%s: %w", u.Name, err))
			continue
		}
		images = append(images, img)
		names = append(names, u.Name)
		mimes = append(mimes, sourceMime(u.MimeType, u.Data))
	}
	if len(images) == 0 {
		unreadable(res, errors.Join(errs...))
		return res, p.persist(res)
	}

	mouth := res.CropPreference == types.PreferMouthCloseup
	maxMouth := 0
	if mouth {
		maxMouth = types.CropCount
	}
	candidates, err := selection.BuildCandidates(ctx, images, names, mouth)
	if err != nil {
		log.Warn("candidate scoring failed, using local fallback", "error", err)
		res.FallbackUsed = true
		res.FallbackReason = fmt.Sprintf("candidate scoring failed: %v", err)
		res.Suggestions = safety.DefaultSuggestions
		res.Captions, _ = safety.EnsureFiveSafeCaptions(nil, types.LabelUncertain)
		applyMouthBaseline(res)
		res.CropRects, res.Crops = p.cropper.MakeCrops(images[0], types.HintsFromBoxes(nil), res.CropPreference)
		return res, errors.Join(err, p.persist(res))
	}
	res.Candidates = selection.PickTop(candidates, maxMouth, types.CropCount)

	top := res.Candidates[0].SourceIndex
	p.analyze(ctx, log, res, images[top], mimes[top], aiPrompt)
	applyMouthBaseline(res)
	// Boxes describe a single photo; batch crops come from the ranked candidates.
	res.CropBoxes = nil
	res.CropRects, res.Crops = p.candidateCrops(images, res.Candidates)
	p.alignCaptions(ctx, log, res)

	p.logResult(log, res)
	return res, p.persist(res)
}

// begin sanitises the user prompt and resolves the crop preference.
func (p *Pipeline) begin(userPrompt string, pref types.CropPreference) (*Result, string) {
	clean, status := safety.SanitizeUserPrompt(userPrompt)
	if pref == types.PreferDefault {
		pref = safety.DetectCropPreference(clean)
	}

	aiPrompt := clean
	if pref == types.PreferMouthCloseup {
		aiPrompt = strings.TrimSpace(clean + " " + prompt.MouthCloseupHint)
	}

	return &Result{
		RequestID:        p.newID(),
		ExpressionLabel:  types.LabelUncertain,
		CaptionsSource:   SourceFallback,
		UserPrompt:       clean,
		UserPromptStatus: status,
		CropPreference:   pref,
	}, aiPrompt
}

func sourceMime(declared string, data []byte) string {
	if declared != "" {
		return declared
	}
	return processing.GuessMime("", data)
}

func unreadable(res *Result, err error) {
	res.FallbackUsed = true
	res.FallbackReason = fmt.Sprintf("image decode failed: %v", err)
	res.Suggestions = safety.DefaultSuggestions
	res.Captions, _ = safety.EnsureFiveSafeCaptions(nil, types.LabelUncertain)
}

// analyze runs the analysis call and applies the policy rules to its result.
func (p *Pipeline) analyze(ctx context.Context, log *slog.Logger, res *Result, img image.Image, mime, aiPrompt string) {
	analysis, err := p.requestAnalysis(ctx, res, img, mime, aiPrompt)
	if err != nil {
		log.Warn("analysis failed, using local fallback", "stage", res.AIErrorStage, "calls", res.AICallsMade, "error", err)
		res.FallbackUsed = true
		res.FallbackReason = err.Error()
		res.Suggestions = safety.DefaultSuggestions
		res.ExpressionLabel = types.LabelUncertain
		res.Captions, _ = safety.EnsureFiveSafeCaptions(nil, types.LabelUncertain)
		res.CropBoxes = nil
		return
	}

	res.UsedAI = true
	res.ExpressionLabel = analysis.ExpressionAnalysis.PrimaryLabel
	res.ExpressionNotes = strings.TrimSpace(analysis.ExpressionAnalysis.Notes)

	if reasons := policyReasons(analysis.Safety, analysis.Fallback); len(reasons) > 0 {
		res.FallbackUsed = true
		res.FallbackReason = strings.Join(reasons, "; ")
		res.Suggestions = analysis.Fallback.Suggestions
		if len(res.Suggestions) == 0 {
			res.Suggestions = safety.DefaultSuggestions
		}
		log.Info("analysis accepted but routed to fallback", "reason", res.FallbackReason)
	}

	captions, padded := safety.EnsureFiveSafeCaptions(analysis.CaptionTexts(), res.ExpressionLabel)
	if padded {
		res.FallbackUsed = true
		if res.FallbackReason == "" {
			res.FallbackReason = "caption filter triggered fallback"
		}
		if len(res.Suggestions) == 0 {
			res.Suggestions = safety.DefaultSuggestions
		}
	}

	if res.FallbackUsed {
		res.Captions = safety.FallbackCaptions(res.ExpressionLabel, types.CropCount)
		return
	}
	res.Captions = captions
	res.CaptionsSource = SourceAIOriginal
	res.CropBoxes = types.NormalizeBoxes(analysis.CropPlan.Boxes)
}

func (p *Pipeline) requestAnalysis(ctx context.Context, res *Result, img image.Image, sourceMime, aiPrompt string) (*types.AnalysisResult, error) {
	if p.gen == nil {
		return nil, types.ErrServiceUnavailable
	}

	data, mime, err := p.processor.EncodeForModel(img, sourceMime)
	if err != nil {
		return nil, err
	}

	req := client.Request{
		Kind:       client.KindAnalysis,
		Image:      data,
		MimeType:   mime,
		UserPrompt: aiPrompt,
	}
	analysis, state, err := resilience.Run(ctx, p.gen, req, schema.ValidateAnalysis)
	res.AICallsMade = state.Attempts
	res.AIAttempted = state.Attempts > 0
	if err != nil {
		if res.AIAttempted {
			res.AIErrorStage = state.ErrorStage()
			res.AIError = err.Error()
		}
		res.Debug = state.Raw
		return nil, err
	}
	return analysis, nil
}

func policyReasons(s types.Safety, f types.Fallback) []string {
	var reasons []string
	if !s.Allowed {
		reasons = append(reasons, "safety check did not pass")
	}
	if s.Risk == types.RiskHigh {
		reasons = append(reasons, "risk=high")
	}
	if f.UseFallback {
		reasons = append(reasons, strings.TrimSpace("model requested fallback: "+f.Reason))
	}
	return reasons
}

// applyMouthBaseline switches to mouth-themed captions when close-ups were requested.
func applyMouthBaseline(res *Result) {
	if res.CropPreference != types.PreferMouthCloseup {
		return
	}
	res.Captions, _ = safety.EnsureFiveSafeCaptions(safety.MouthCloseupCaptions(types.CropCount), types.LabelUncertain)
	res.CaptionsSource = SourceMouthFallback
}

// alignCaptions asks for captions that describe the final crops. Failures
// are recorded and leave the current captions in place.
func (p *Pipeline) alignCaptions(ctx context.Context, log *slog.Logger, res *Result) {
	if p.gen == nil || !p.align || res.FallbackUsed || len(res.Crops) == 0 {
		return
	}

	captions, err := p.requestCaptions(ctx, res)
	if err != nil {
		log.Warn("montage captions rejected, keeping current captions", "calls", res.CaptionCallsMade, "error", err)
		res.CaptionsAIError = err.Error()
		return
	}
	res.Captions = captions
	res.CaptionsAIUsed = true
	res.CaptionsSource = SourceAICrops
}

func (p *Pipeline) requestCaptions(ctx context.Context, res *Result) ([]string, error) {
	data, mime, err := p.processor.EncodeMontage(res.Crops)
	if err != nil {
		return nil, err
	}

	req := client.Request{
		Kind:       client.KindCaptions,
		Image:      data,
		MimeType:   mime,
		UserPrompt: res.UserPrompt,
	}
	result, state, err := resilience.Run(ctx, p.gen, req, schema.ValidateCaptions)
	res.CaptionCallsMade = state.Attempts
	if err != nil {
		res.CaptionsDebug = state.Raw
		return nil, err
	}

	if reasons := policyReasons(result.Safety, result.Fallback); len(reasons) > 0 {
		return nil, fmt.Errorf("montage captions routed to fallback: %s", strings.Join(reasons, "; "))
	}
	captions, padded := safety.EnsureFiveSafeCaptions(result.CaptionTexts(), res.ExpressionLabel)
	if padded {
		return nil, errors.New("montage captions failed the caption filter")
	}
	return captions, nil
}

// candidateCrops renders the tiles of ranked candidates. Repeated mouth
// candidates from the same photo use successive close-up variants.
func (p *Pipeline) candidateCrops(images []image.Image, candidates []types.CropCandidate) ([]image.Rectangle, []image.Image) {
	rects := make([]image.Rectangle, 0, len(candidates))
	variants := map[int]int{}
	for _, cand := range candidates {
		img := images[cand.SourceIndex]
		var r image.Rectangle
		if cand.Type == types.CropMouth {
			r = cropper.MouthCloseupGlobal(img, variants[cand.SourceIndex])
			variants[cand.SourceIndex]++
		} else {
			r = cropper.AutoFocus(img)
		}
		rects = append(rects, r)
	}

	crops := make([]image.Image, len(candidates))
	for i, cand := range candidates {
		crops[i] = p.cropper.Tile(images[cand.SourceIndex], rects[i])
	}
	return rects, crops
}

func (p *Pipeline) persist(res *Result) error {
	if p.store == nil {
		return nil
	}
	memes, err := p.store.SaveMemes(res.RequestID, res.Crops, res.Captions)
	res.Memes = memes
	if err != nil {
		return fmt.Errorf("failed to persist memes: %w", err)
	}
	return nil
}

func (p *Pipeline) logResult(log *slog.Logger, res *Result) {
	log.Info("meme request finished",
		"fallback", res.FallbackUsed,
		"label", res.ExpressionLabel,
		"ai_calls", res.AICallsMade,
		"caption_calls", res.CaptionCallsMade,
		"captions_source", res.CaptionsSource,
		"crop_preference", res.CropPreference,
	)
}
