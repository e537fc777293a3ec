// Package safety filters captions and user prompts and supplies the static
// fallback content used when AI output cannot be trusted.
package safety

import (
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/menta2k/meme-maker/pkg/types"
)

const (
	// MaxCaptionRunes is the longest caption accepted.
	MaxCaptionRunes = 60
	// MaxPromptRunes is where user prompts are truncated.
	MaxPromptRunes = 240

	// DefaultCaption replaces captions that sanitise to nothing.
	DefaultCaption      = "Got it"
	trailingPunctuation = "，,。.!！?？…"
)

// PromptStatus reports what happened to a user prompt.
type PromptStatus string

const (
	PromptOK     PromptStatus = "ok"
	PromptEmpty  PromptStatus = "empty"
	PromptUnsafe PromptStatus = "unsafe"
)

// bannedPatterns cover romance and intimacy, insults, and personal or
// medical details.
var bannedPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)\b(wife|husband|girlfriend|boyfriend|dating|crush|flirt\w*|in love|marry me)\b`),
	regexp.MustCompile(`(?i)\b(kiss\w*|smooch|tongue|sexy|lingerie|underwear|naked|nude|undress\w*|boobs?|chest)\b`),
	regexp.MustCompile(`(?i)\b(stupid|idiot|dumb|loser|ugly|gross|disgusting|shut up|get lost|die|hate you)\b`),
	regexp.MustCompile(`(?i)\b(address|street|apartment|school|class(room)?|hospital|sick|illness|fever|allerg\w*|medicine|medication|injection|vaccine)\b`),
	regexp.MustCompile(`(老婆|老公|对象|谈恋爱|恋爱|心动|撩|撩人|在一起)`),
	regexp.MustCompile(`(亲亲|亲一口|亲一下|亲个|么么|接吻|舌|湿身|性感|内衣|私密|胸|脱)`),
	regexp.MustCompile(`(傻|蠢|废物|滚|恶心|丑|死|讨厌你)`),
	regexp.MustCompile(`(地址|小区|门牌|学校|班级|医院|上火|病|生病|发烧|过敏|用药|打针)`),
}

var (
	whitespace = regexp.MustCompile(`\s+`)
	zeroWidth  = strings.NewReplacer("\u200b", "", "\u200c", "", "\u200d", "", "\ufeff", "")
)

// DefaultSuggestions are shown when the photo was unusable and the model gave no tips.
var DefaultSuggestions = []string{
	"Make sure the face is sharp and well lit, avoid backlight",
	"Keep a single person in frame, face filling at least a third of it",
	"Avoid heavy occlusion such as masks or hat brims over the eyes",
	"Face the camera or turn slightly, with eyes and mouth clearly visible",
}

func containsBanned(s string) bool {
	for _, pat := range bannedPatterns {
		if pat.MatchString(s) {
			return true
		}
	}
	return false
}

// IsCaptionSafe rejects empty or overlong captions and banned topics.
func IsCaptionSafe(text string) bool {
	s := strings.TrimSpace(text)
	if s == "" || utf8.RuneCountInString(s) > MaxCaptionRunes {
		return false
	}
	return !containsBanned(s)
}

func collapse(text string) string {
	s := zeroWidth.Replace(text)
	return strings.TrimSpace(whitespace.ReplaceAllString(s, " "))
}

// SanitizeCaption normalises whitespace, drops zero-width characters and
// trailing punctuation. An empty result becomes "Got it".
func SanitizeCaption(text string) string {
	s := strings.TrimRight(collapse(text), trailingPunctuation)
	s = strings.TrimSpace(s)
	if s == "" {
		return DefaultCaption
	}
	return s
}

// EnsureFiveSafeCaptions keeps the first five candidates that survive
// sanitising and the safety check, padding from the label's fallback pool.
// The boolean reports whether padding was needed.
func EnsureFiveSafeCaptions(candidates []string, label types.ExpressionLabel) ([]string, bool) {
	safe := make([]string, 0, types.CropCount)
	for _, c := range candidates {
		if s := SanitizeCaption(c); IsCaptionSafe(s) {
			safe = append(safe, s)
		}
		if len(safe) == types.CropCount {
			return safe, false
		}
	}

	pool := FallbackCaptions(label, types.CropCount)
	for len(safe) < types.CropCount {
		safe = append(safe, pool[len(safe)])
	}
	return safe, true
}

// SanitizeUserPrompt cleans a user's free-text request. Prompts touching
// banned topics are dropped entirely.
func SanitizeUserPrompt(text string) (string, PromptStatus) {
	s := collapse(text)
	if s == "" {
		return "", PromptEmpty
	}
	if utf8.RuneCountInString(s) > MaxPromptRunes {
		s = strings.TrimSpace(string([]rune(s)[:MaxPromptRunes]))
	}
	if containsBanned(s) {
		return "", PromptUnsafe
	}
	return s, PromptOK
}

var (
	mouthWords   = []string{"mouth", "lips", "drool", "嘴", "嘴巴", "嘴唇", "口水"}
	closeupWords = []string{"close-up", "closeup", "close up", "zoom", "only", "just the", "特写", "近景", "只要", "只留", "只保留", "只看"}
	excludeWords = []string{"no bib", "without bib", "without the bib", "no clothes", "without clothes", "not the clothes",
		"不要口水巾", "别拍口水巾", "不含口水巾", "不要围兜", "别拍围兜", "不要衣服", "别拍衣服"}
)

func containsAny(s string, words []string) bool {
	for _, w := range words {
		if strings.Contains(s, w) {
			return true
		}
	}
	return false
}

// DetectCropPreference reads a mouth close-up request out of the user prompt.
func DetectCropPreference(prompt string) types.CropPreference {
	s := strings.ToLower(strings.TrimSpace(prompt))
	if s == "" || !containsAny(s, mouthWords) {
		return types.PreferDefault
	}
	if containsAny(s, closeupWords) || containsAny(s, excludeWords) {
		return types.PreferMouthCloseup
	}
	return types.PreferDefault
}
