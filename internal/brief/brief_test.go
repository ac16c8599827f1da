package brief

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFirstNameKey(t *testing.T) {
	tests := []struct {
		name string
		want string
	}{
		{"Alex Chen", "alex"},
		{"  Jamie   Lee ", "jamie"},
		{"DR Smith", "dr"},
		{"", ""},
		{"   ", ""},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, FirstNameKey(tt.name), "name=%q", tt.name)
	}
}

func TestParseSpeakerFlag(t *testing.T) {
	sp, err := ParseSpeakerFlag("Alex Chen:M:Host:Austin:curious, dry humor")
	require.NoError(t, err)
	assert.Equal(t, "Alex Chen", sp.Name)
	assert.Equal(t, Male, sp.Gender)
	assert.Equal(t, "Host", sp.Profession)
	assert.Equal(t, "Austin", sp.Background)
	assert.Equal(t, "curious, dry humor", sp.Personality)

	sp, err = ParseSpeakerFlag("Jamie:female")
	require.NoError(t, err)
	assert.Equal(t, Female, sp.Gender)
	assert.Empty(t, sp.Profession)

	_, err = ParseSpeakerFlag("Jamie")
	assert.Error(t, err)
	_, err = ParseSpeakerFlag("Jamie:robot")
	assert.Error(t, err)
	_, err = ParseSpeakerFlag(":male")
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	valid := func() Brief {
		return Brief{
			Topic:    "Future of AI",
			Duration: 10,
			Speakers: []Speaker{{Name: " Alex ", Gender: "MALE"}},
		}
	}

	b := valid()
	require.NoError(t, b.Validate())
	assert.Equal(t, "Alex", b.Speakers[0].Name)
	assert.Equal(t, Male, b.Speakers[0].Gender)

	b = valid()
	b.Topic = ""
	assert.ErrorIs(t, b.Validate(), ErrNoTopic)

	b = valid()
	b.Duration = 0
	assert.Error(t, b.Validate())

	b = valid()
	b.Speakers = nil
	assert.ErrorIs(t, b.Validate(), ErrSpeakerCount)

	b = valid()
	for i := 0; i < 6; i++ {
		b.Speakers = append(b.Speakers, Speaker{Name: "X", Gender: Female})
	}
	assert.ErrorIs(t, b.Validate(), ErrSpeakerCount)
}

func TestLoadAndSave(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "brief.yaml")
	yamlDoc := `topic: Remote work
duration: 5
setting: Casual coffee shop
speakers:
  - name: Alex Chen
    gender: male
    profession: Host
  - name: Jamie Lee
    gender: female
`
	require.NoError(t, os.WriteFile(path, []byte(yamlDoc), 0644))

	b, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "Remote work", b.Topic)
	assert.Len(t, b.Speakers, 2)
	assert.Equal(t, "jamie", b.Speakers[1].FirstNameKey())

	out := filepath.Join(dir, "copy.yaml")
	require.NoError(t, Save(b, out))
	again, err := Load(out)
	require.NoError(t, err)
	assert.Equal(t, b, again)
}

func TestDescribe(t *testing.T) {
	sp := Speaker{Name: "Alex", Gender: Male, Profession: "Host", Background: "Austin", Personality: "curious"}
	assert.Equal(t, "Alex (male), Host from Austin, curious", sp.Describe())
	assert.Equal(t, "Jamie (female)", Speaker{Name: "Jamie", Gender: Female}.Describe())
}
