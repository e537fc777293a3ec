package safety

import "github.com/menta2k/meme-maker/pkg/types"

// fallbackCaptions are the static caption pools used whenever AI captions are
// missing, unsafe or rejected by policy.
var fallbackCaptions = map[types.ExpressionLabel][]string{
	types.LabelHappy: {
		"Hehe, so happy!",
		"Best day ever",
		"Yay!",
		"Totally satisfied",
		"Joy loading...",
		"Can't stop smiling",
		"Let's go!",
		"This is too fun",
		"I got this!",
		"Mood: sunny",
		"Happy spin time",
		"Nailed it",
	},
	types.LabelWronged: {
		"It wasn't me",
		"Just a tiny bit sad",
		"Don't be mad at me",
		"Lips pressed, waiting",
		"I really didn't",
		"Only a little hurt",
		"Hiding for a bit",
		"I need a hug",
		"Not fair, but fine",
		"So misunderstood",
		"Tears on standby",
		"What do you think?",
	},
	types.LabelAngry: {
		"I'm mad now!",
		"Hmph!",
		"Don't push me",
		"Very serious face",
		"Not allowed",
		"Puffed up",
		"Not talking to you",
		"Noted. Remembered.",
		"I refuse",
		"Explain yourself",
		"On the edge",
		"Grumble grumble",
	},
	types.LabelShocked: {
		"Wait, what?",
		"Did I hear that right",
		"Hold on a second",
		"Is that even real?",
		"Speechless",
		"Brain buffering",
		"I'm stunned",
		"Let me process this",
		"Say that again?",
		"Did not see that coming",
		"Eyes wide open",
		"No way!",
	},
	types.LabelSleepy: {
		"So sleepy",
		"Quick nap first",
		"Battery low",
		"Need my bedtime",
		"Yawn mode on",
		"Eyelids losing the fight",
		"Let me sleep a bit",
		"Really going to sleep",
		"Too tired to think",
		"Today's plan: sleep",
		"Good night mode",
		"Shh, resting",
	},
	types.LabelUncertain: {
		"Got it",
		"Mm-hm",
		"Okay then",
		"Sure",
		"Let's see",
		"Looking into it",
		"Wait for me",
		"Let me think",
		"No comment",
		"Staying quiet",
		"Fine for now",
		"I'm here",
	},
}

var mouthCloseupCaptions = []string{
	"Drool incoming",
	"Just a little taste",
	"So hungry right now",
	"Mmm, smells good",
	"Stop filming me",
	"Seriously tasting",
	"One bite please",
	"This bite matters",
	"Don't rush me",
	"Holding it in my mouth",
	"Leave me some dignity",
	"Just looking, no talking",
}

// FallbackCaptions returns n captions for label, cycling through its pool.
// Unknown labels use the uncertain pool.
func FallbackCaptions(label types.ExpressionLabel, n int) []string {
	pool, ok := fallbackCaptions[label]
	if !ok {
		pool = fallbackCaptions[types.LabelUncertain]
	}
	return cycle(pool, n)
}

// MouthCloseupCaptions returns n captions suited to mouth close-ups.
func MouthCloseupCaptions(n int) []string {
	return cycle(mouthCloseupCaptions, n)
}

func cycle(pool []string, n int) []string {
	if n <= 0 {
		return nil
	}
	out := make([]string, n)
	for i := range out {
		out[i] = pool[i%len(pool)]
	}
	return out
}
