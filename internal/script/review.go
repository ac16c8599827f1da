package script

import (
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/apresai/panelcast/internal/brief"
)

// Issue describes a quality problem found in an extracted script.
type Issue struct {
	Category string // "unknown_speaker", "silent_speaker", "balance", "stage_direction", "filler"
	Message  string
}

func (i Issue) String() string {
	return fmt.Sprintf("%s: %s", i.Category, i.Message)
}

// Review runs fast heuristic checks over extracted lines. Issues are
// advisory: lines from unknown speakers are skipped at synthesis time.
func Review(lines []Line, cast []brief.Speaker) []Issue {
	var issues []Issue
	issues = append(issues, checkSpeakers(lines, cast)...)
	issues = append(issues, checkStageDirections(lines)...)
	issues = append(issues, checkFillerPhrases(lines)...)
	return issues
}

func checkSpeakers(lines []Line, cast []brief.Speaker) []Issue {
	known := map[string]string{}
	for _, sp := range cast {
		known[sp.FirstNameKey()] = sp.Name
	}

	counts := map[string]int{}
	unknown := map[string]int{}
	for _, l := range lines {
		key := brief.FirstNameKey(l.Speaker)
		if _, ok := known[key]; ok {
			counts[key]++
		} else {
			unknown[l.Speaker]++
		}
	}

	var issues []Issue
	labels := make([]string, 0, len(unknown))
	for label := range unknown {
		labels = append(labels, label)
	}
	sort.Strings(labels)
	for _, label := range labels {
		issues = append(issues, Issue{
			Category: "unknown_speaker",
			Message:  fmt.Sprintf("%q is not in the cast; its %d line(s) will be skipped", label, unknown[label]),
		})
	}

	total := len(lines)
	if total == 0 || len(known) == 0 {
		return issues
	}
	// Half an even share is the floor before a speaker counts as sidelined.
	minPct := 0.5 / float64(len(known))
	for _, sp := range cast {
		key := sp.FirstNameKey()
		n := counts[key]
		if n == 0 {
			issues = append(issues, Issue{
				Category: "silent_speaker",
				Message:  fmt.Sprintf("%s has no lines", sp.Name),
			})
			continue
		}
		if pct := float64(n) / float64(total); pct < minPct {
			issues = append(issues, Issue{
				Category: "balance",
				Message:  fmt.Sprintf("%s has only %.0f%% of lines (%d/%d), minimum is %.0f%%", sp.Name, pct*100, n, total, minPct*100),
			})
		}
	}
	return issues
}

var stageDirectionRe = regexp.MustCompile(`[\(\[][^\)\]]{1,40}[\)\]]`)

func checkStageDirections(lines []Line) []Issue {
	n := 0
	for _, l := range lines {
		if stageDirectionRe.MatchString(l.Text) {
			n++
		}
	}
	if n == 0 {
		return nil
	}
	return []Issue{{
		Category: "stage_direction",
		Message:  fmt.Sprintf("%d line(s) contain bracketed cues that will be read aloud", n),
	}}
}

var bannedPhrases = []string{
	"that's a great point",
	"that's fascinating",
	"i love that",
	"you nailed it",
	"great question",
	"i couldn't agree more",
	"you hit the nail on the head",
	"that's exactly right",
}

func checkFillerPhrases(lines []Line) []Issue {
	n := 0
	for _, l := range lines {
		lower := strings.ToLower(l.Text)
		for _, phrase := range bannedPhrases {
			if strings.Contains(lower, phrase) {
				n++
				break
			}
		}
	}
	if n <= 2 {
		return nil
	}
	return []Issue{{
		Category: "filler",
		Message:  fmt.Sprintf("%d lines use stock filler reactions", n),
	}}
}
