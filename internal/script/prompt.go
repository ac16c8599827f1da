package script

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/apresai/panelcast/internal/brief"
)

const (
	wordsPerMinute = 150
	temperature    = 0.7
)

const systemPrompt = `You are a professional podcast writer. You write natural, lively multi-speaker conversations.

OUTPUT FORMAT:
Write the script as plain text, one line of dialogue per line, in the form
Name: what they say
Use each speaker's first name exactly as given. Do not add a title, headings, markdown, or narration.
NO stage directions or annotations - dialogue only. Avoid bracketed cues like (laughs) or [music].`

func buildUserPrompt(b *brief.Brief, background string) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Create a %d-minute podcast script about %s (about %d words in total).\n",
		b.Duration, b.Topic, b.Duration*wordsPerMinute)
	if b.Setting != "" {
		fmt.Fprintf(&sb, "Setting: %s\n", b.Setting)
	}
	sb.WriteString("Participants:\n")
	for _, sp := range b.Speakers {
		fmt.Fprintf(&sb, "- %s\n", sp.Describe())
	}
	sb.WriteString("Include natural conversation flow with interruptions and humor.\n")
	sb.WriteString("Add a rapid-fire round in the last third.\n")
	if background != "" {
		fmt.Fprintf(&sb, "\nBase the facts in the conversation on this background material:\n%s\n", background)
	}
	return sb.String()
}

// maxTokensForDuration budgets 2 tokens per target word plus 1024 of slack,
// clamped to 4096..32768.
func maxTokensForDuration(minutes int) int64 {
	n := int64(minutes*wordsPerMinute*2) + 1024
	if n < 4096 {
		return 4096
	}
	if n > 32768 {
		return 32768
	}
	return n
}

var (
	scratchpadRe = regexp.MustCompile(`(?s)<scratchpad>.*?</scratchpad>`)
	fenceRe      = regexp.MustCompile("(?s)```(?:text|markdown)?\\s*\n?(.*?)\n?```")
)

// cleanResponse strips wrappers models sometimes add around the dialogue.
func cleanResponse(text string) string {
	text = scratchpadRe.ReplaceAllString(text, "")
	if m := fenceRe.FindStringSubmatch(text); len(m) > 1 {
		text = m[1]
	}
	return strings.TrimSpace(text)
}
