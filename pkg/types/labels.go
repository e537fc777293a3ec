package types

import "strings"

// ExpressionLabel is the coarse facial expression that drives caption pools.
type ExpressionLabel string

const (
	LabelHappy     ExpressionLabel = "happy"
	LabelWronged   ExpressionLabel = "wronged"
	LabelAngry     ExpressionLabel = "angry"
	LabelShocked   ExpressionLabel = "shocked"
	LabelSleepy    ExpressionLabel = "sleepy"
	LabelUncertain ExpressionLabel = "uncertain"
)

// Labels lists every expression label in a stable order.
var Labels = []ExpressionLabel{LabelHappy, LabelWronged, LabelAngry, LabelShocked, LabelSleepy, LabelUncertain}

var labelAliases = map[string]ExpressionLabel{
	"happy":     LabelHappy,
	"wronged":   LabelWronged,
	"angry":     LabelAngry,
	"shocked":   LabelShocked,
	"sleepy":    LabelSleepy,
	"uncertain": LabelUncertain,
	"开心":        LabelHappy,
	"委屈":        LabelWronged,
	"生气":        LabelAngry,
	"震惊":        LabelShocked,
	"困":         LabelSleepy,
	"不确定":       LabelUncertain,
}

// LookupExpressionLabel resolves a label or one of its aliases.
func LookupExpressionLabel(s string) (ExpressionLabel, bool) {
	l, ok := labelAliases[strings.ToLower(strings.TrimSpace(s))]
	return l, ok
}

// ParseExpressionLabel always returns a known label; anything unrecognised is uncertain.
func ParseExpressionLabel(s string) ExpressionLabel {
	if l, ok := LookupExpressionLabel(s); ok {
		return l
	}
	return LabelUncertain
}
