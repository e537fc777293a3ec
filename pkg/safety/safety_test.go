package safety

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/menta2k/meme-maker/pkg/types"
)

func TestIsCaptionSafe(t *testing.T) {
	tests := []struct {
		in   string
		want bool
	}{
		{"Wait, what?", true},
		{"", false},
		{"   ", false},
		{strings.Repeat("a", 60), true},
		{strings.Repeat("a", 61), false},
		{strings.Repeat("好", 60), true},
		{"my girlfriend says hi", false},
		{"Kissing time", false},
		{"you are so stupid", false},
		{"going to the hospital", false},
		{"我好喜欢我老婆", false},
		{"classic move", true},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, IsCaptionSafe(tt.in), "caption %q", tt.in)
	}
}

func TestSanitizeCaption(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"  hello \n\t world  ", "hello world"},
		{"wow!!!", "wow"},
		{"好耶！", "好耶"},
		{"so\u200b sleepy…", "so sleepy"},
		{"...", "Got it"},
		{"", "Got it"},
		{"?keep leading", "?keep leading"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, SanitizeCaption(tt.in), "caption %q", tt.in)
	}
}

func TestEnsureFiveSafeCaptionsAlwaysFive(t *testing.T) {
	inputs := [][]string{
		nil,
		{"one"},
		{"one", "two", "three", "four", "five", "six"},
		{"kiss me", strings.Repeat("x", 80), "", "fine"},
	}
	for _, in := range inputs {
		for _, label := range types.Labels {
			got, _ := EnsureFiveSafeCaptions(in, label)
			require.Len(t, got, types.CropCount)
			for _, c := range got {
				assert.True(t, IsCaptionSafe(c), "caption %q", c)
			}
		}
	}
}

func TestEnsureFiveSafeCaptionsPadding(t *testing.T) {
	got, padded := EnsureFiveSafeCaptions([]string{"a!", "b", "c", "d", "e", "f"}, types.LabelHappy)
	assert.False(t, padded)
	assert.Equal(t, []string{"a", "b", "c", "d", "e"}, got)

	got, padded = EnsureFiveSafeCaptions([]string{"first", "you idiot", "second"}, types.LabelSleepy)
	assert.True(t, padded)
	pool := FallbackCaptions(types.LabelSleepy, 5)
	assert.Equal(t, []string{"first", "second", pool[2], pool[3], pool[4]}, got)
}

func TestFallbackPoolsAreSafe(t *testing.T) {
	for label, pool := range fallbackCaptions {
		assert.Len(t, pool, 12, "label %s", label)
		for _, c := range pool {
			assert.True(t, IsCaptionSafe(c), "label %s caption %q", label, c)
		}
	}
	for _, c := range mouthCloseupCaptions {
		assert.True(t, IsCaptionSafe(c), "caption %q", c)
	}
}

func TestFallbackCaptionsCycles(t *testing.T) {
	got := FallbackCaptions(types.LabelAngry, 14)
	require.Len(t, got, 14)
	assert.Equal(t, got[0], got[12])
	assert.Equal(t, FallbackCaptions(types.LabelUncertain, 3), FallbackCaptions("nonsense", 3))
	assert.Nil(t, FallbackCaptions(types.LabelHappy, 0))
	assert.Len(t, MouthCloseupCaptions(5), 5)
}

func TestSanitizeUserPrompt(t *testing.T) {
	s, status := SanitizeUserPrompt("  make it   funny ")
	assert.Equal(t, PromptOK, status)
	assert.Equal(t, "make it funny", s)

	_, status = SanitizeUserPrompt(" \u200b ")
	assert.Equal(t, PromptEmpty, status)

	_, status = SanitizeUserPrompt("write something about my boyfriend")
	assert.Equal(t, PromptUnsafe, status)

	s, status = SanitizeUserPrompt(strings.Repeat("ab ", 200))
	assert.Equal(t, PromptOK, status)
	assert.LessOrEqual(t, len([]rune(s)), MaxPromptRunes)
	assert.False(t, strings.HasSuffix(s, " "))
}

func TestDetectCropPreference(t *testing.T) {
	tests := []struct {
		in   string
		want types.CropPreference
	}{
		{"", types.PreferDefault},
		{"make it funny", types.PreferDefault},
		{"Close-up of the mouth please", types.PreferMouthCloseup},
		{"only the lips", types.PreferMouthCloseup},
		{"mouth shots, no bib", types.PreferMouthCloseup},
		{"the mouth looks cute", types.PreferDefault},
		{"只要嘴巴特写", types.PreferMouthCloseup},
		{"不要围兜，拍嘴", types.PreferMouthCloseup},
		{"zoom in", types.PreferDefault},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, DetectCropPreference(tt.in), "prompt %q", tt.in)
	}
}
