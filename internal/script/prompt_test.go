package script

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/apresai/panelcast/internal/brief"
)

func TestBuildUserPrompt(t *testing.T) {
	b := &brief.Brief{
		Topic:    "Future of AI",
		Duration: 10,
		Setting:  "Casual coffee shop",
		Speakers: []brief.Speaker{
			{Name: "Alex Chen", Gender: brief.Male, Profession: "Host"},
			{Name: "Jamie Lee", Gender: brief.Female},
		},
	}
	p := buildUserPrompt(b, "")
	assert.Contains(t, p, "10-minute podcast script about Future of AI")
	assert.Contains(t, p, "Setting: Casual coffee shop")
	assert.Contains(t, p, "- Alex Chen (male), Host")
	assert.Contains(t, p, "- Jamie Lee (female)")
	assert.NotContains(t, p, "background material")

	p = buildUserPrompt(b, "Some article text")
	assert.Contains(t, p, "background material:\nSome article text")
}

func TestMaxTokensForDuration(t *testing.T) {
	for _, tc := range []struct {
		minutes int
		want    int64
	}{
		{1, 4096},
		{10, 4096}, // 4024 is below the floor
		{30, 30*150*2 + 1024},
		{60, 60*150*2 + 1024},
		{120, 32768},
	} {
		assert.Equal(t, tc.want, maxTokensForDuration(tc.minutes), "%d minutes", tc.minutes)
	}
}
