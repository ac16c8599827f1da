// Package brief describes the input to a podcast run: what the episode is
// about, how long it should be, and who is speaking.
package brief

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Gender selects the voice pool a speaker draws from.
type Gender string

const (
	Male   Gender = "male"
	Female Gender = "female"
)

const (
	MinSpeakers = 1
	MaxSpeakers = 5

	MinDuration = 1
	MaxDuration = 60
)

var (
	ErrNoTopic      = errors.New("topic is required")
	ErrSpeakerCount = fmt.Errorf("between %d and %d speakers are required", MinSpeakers, MaxSpeakers)
)

// ParseGender accepts "male"/"female" in any case, plus the single-letter
// shorthands.
func ParseGender(s string) (Gender, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "male", "m":
		return Male, nil
	case "female", "f":
		return Female, nil
	default:
		return "", fmt.Errorf("invalid gender %q: must be male or female", s)
	}
}

// Speaker is one member of the cast. Profession, Background and Personality
// are free text used only when writing the script.
type Speaker struct {
	Name        string `yaml:"name" json:"name"`
	Gender      Gender `yaml:"gender" json:"gender"`
	Profession  string `yaml:"profession,omitempty" json:"profession,omitempty"`
	Background  string `yaml:"background,omitempty" json:"background,omitempty"`
	Personality string `yaml:"personality,omitempty" json:"personality,omitempty"`
}

// FirstNameKey returns the lower-cased first whitespace-separated token of
// the name. Speakers sharing a first name share a key.
func (s Speaker) FirstNameKey() string {
	return FirstNameKey(s.Name)
}

// FirstNameKey derives the lookup key for a name or script label.
func FirstNameKey(name string) string {
	fields := strings.Fields(name)
	if len(fields) == 0 {
		return ""
	}
	return strings.ToLower(fields[0])
}

// Describe formats the speaker for the script prompt.
func (s Speaker) Describe() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s (%s)", s.Name, s.Gender)
	if s.Profession != "" {
		fmt.Fprintf(&b, ", %s", s.Profession)
	}
	if s.Background != "" {
		fmt.Fprintf(&b, " from %s", s.Background)
	}
	if s.Personality != "" {
		fmt.Fprintf(&b, ", %s", s.Personality)
	}
	return b.String()
}

// Brief is everything the pipeline needs to write and voice an episode.
type Brief struct {
	Topic    string    `yaml:"topic" json:"topic"`
	Duration int       `yaml:"duration" json:"duration"` // minutes
	Setting  string    `yaml:"setting,omitempty" json:"setting,omitempty"`
	Speakers []Speaker `yaml:"speakers" json:"speakers"`
	// Source is an optional URL, PDF or text file used as background material.
	Source string `yaml:"source,omitempty" json:"source,omitempty"`
}

// Validate normalizes genders and checks the brief can drive a run.
func (b *Brief) Validate() error {
	if strings.TrimSpace(b.Topic) == "" {
		return ErrNoTopic
	}
	if b.Duration < MinDuration || b.Duration > MaxDuration {
		return fmt.Errorf("duration %d out of range: must be %d-%d minutes", b.Duration, MinDuration, MaxDuration)
	}
	if len(b.Speakers) < MinSpeakers || len(b.Speakers) > MaxSpeakers {
		return fmt.Errorf("%w (got %d)", ErrSpeakerCount, len(b.Speakers))
	}
	for i := range b.Speakers {
		sp := &b.Speakers[i]
		sp.Name = strings.TrimSpace(sp.Name)
		if sp.Name == "" {
			return fmt.Errorf("speaker %d: name is required", i+1)
		}
		g, err := ParseGender(string(sp.Gender))
		if err != nil {
			return fmt.Errorf("speaker %d (%s): %w", i+1, sp.Name, err)
		}
		sp.Gender = g
	}
	return nil
}

// Load reads a YAML brief from path and validates it.
func Load(path string) (*Brief, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read brief: %w", err)
	}
	var b Brief
	if err := yaml.Unmarshal(data, &b); err != nil {
		return nil, fmt.Errorf("parse brief %s: %w", path, err)
	}
	if err := b.Validate(); err != nil {
		return nil, fmt.Errorf("invalid brief %s: %w", path, err)
	}
	return &b, nil
}

// Save writes the brief as YAML so a wizard session can be replayed with --brief.
func Save(b *Brief, path string) error {
	data, err := yaml.Marshal(b)
	if err != nil {
		return fmt.Errorf("marshal brief: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("write brief: %w", err)
	}
	return nil
}

// ParseSpeakerFlag parses the compact CLI form
// "Name:gender[:profession[:background[:personality]]]".
func ParseSpeakerFlag(s string) (Speaker, error) {
	parts := strings.SplitN(s, ":", 5)
	if len(parts) < 2 {
		return Speaker{}, fmt.Errorf("invalid speaker %q: expected Name:gender[:profession[:background[:personality]]]", s)
	}
	g, err := ParseGender(parts[1])
	if err != nil {
		return Speaker{}, err
	}
	sp := Speaker{Name: strings.TrimSpace(parts[0]), Gender: g}
	if sp.Name == "" {
		return Speaker{}, fmt.Errorf("invalid speaker %q: name is required", s)
	}
	if len(parts) > 2 {
		sp.Profession = strings.TrimSpace(parts[2])
	}
	if len(parts) > 3 {
		sp.Background = strings.TrimSpace(parts[3])
	}
	if len(parts) > 4 {
		sp.Personality = strings.TrimSpace(parts[4])
	}
	return sp, nil
}
