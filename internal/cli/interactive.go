package cli

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/apresai/panelcast/internal/brief"
	"github.com/apresai/panelcast/internal/script"
	"github.com/apresai/panelcast/internal/tts"
)

// menuItem is one editable field of the wizard.
type menuItem struct {
	key      string
	label    string
	value    string
	options  []menuOption
	text     bool
	required bool
	editing  bool
	cursor   int // cursor within options when editing
}

type menuOption struct {
	label string
	value string
}

type menuState int

const (
	stateMenu menuState = iota
	stateEditing
)

const generateKey = "generate"

// tuiModel is the Bubble Tea model for the brief wizard.
type tuiModel struct {
	items        []menuItem
	cursor       int
	state        menuState
	width        int
	err          error
	confirmed    bool
	cancelled    bool
	speakerCount int
}

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#7D56F4")).
			MarginBottom(1)

	menuLabelStyle = lipgloss.NewStyle().
			Width(22).
			Align(lipgloss.Right).
			MarginRight(2)

	menuValueStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#04B575"))

	menuValueDimStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("#555555")).
				Italic(true)

	cursorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#7D56F4")).
			Bold(true)

	requiredStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FF5555")).
			Bold(true)

	sectionStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#7D56F4")).
			PaddingLeft(2)

	optionStyle = lipgloss.NewStyle().
			PaddingLeft(4)

	selectedOptionStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("#04B575")).
				Bold(true).
				PaddingLeft(2)

	buttonStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FAFAFA")).
			Background(lipgloss.Color("#7D56F4")).
			Padding(0, 3)

	buttonDimStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#555555")).
			Padding(0, 3)

	helpStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#626262")).
			MarginTop(1)

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FF5555")).
			Bold(true)

	headerBorder = lipgloss.NewStyle().
			BorderStyle(lipgloss.NormalBorder()).
			BorderBottom(true).
			BorderForeground(lipgloss.Color("#7D56F4")).
			MarginBottom(1).
			PaddingBottom(0)
)

var durationOptions = []menuOption{
	{label: "5 minutes", value: "5"},
	{label: "10 minutes", value: "10"},
	{label: "15 minutes", value: "15"},
	{label: "20 minutes", value: "20"},
	{label: "30 minutes", value: "30"},
}

var genderOptions = []menuOption{
	{label: "Male", value: string(brief.Male)},
	{label: "Female", value: string(brief.Female)},
}

func namedOptions(names []string) []menuOption {
	opts := make([]menuOption, len(names))
	for i, n := range names {
		opts[i] = menuOption{label: n, value: n}
	}
	return opts
}

func countOptions() []menuOption {
	var opts []menuOption
	for n := brief.MinSpeakers; n <= brief.MaxSpeakers; n++ {
		opts = append(opts, menuOption{label: strconv.Itoa(n), value: strconv.Itoa(n)})
	}
	return opts
}

func speakerKey(i int, field string) string {
	return fmt.Sprintf("speaker.%d.%s", i, field)
}

// buildMenuItems lays out the wizard. values carries entries typed so far
// so that changing the speaker count keeps them.
func buildMenuItems(count int, values map[string]string) []menuItem {
	items := []menuItem{
		{key: "topic", label: "Topic", text: true, required: true},
		{key: "duration", label: "Duration", options: durationOptions},
		{key: "setting", label: "Setting", text: true},
		{key: "source", label: "Background source", text: true},
		{key: "model", label: "Script model", options: namedOptions(script.ModelNames())},
		{key: "tts", label: "Voice provider", options: namedOptions(tts.ProviderNames())},
		{key: "speakers", label: "Speakers", options: countOptions()},
	}
	for i := 0; i < count; i++ {
		items = append(items,
			menuItem{key: speakerKey(i, "name"), label: fmt.Sprintf("Speaker %d name", i+1), text: true, required: true},
			menuItem{key: speakerKey(i, "gender"), label: "Gender", options: genderOptions},
			menuItem{key: speakerKey(i, "profession"), label: "Profession", text: true},
			menuItem{key: speakerKey(i, "background"), label: "Background", text: true},
			menuItem{key: speakerKey(i, "personality"), label: "Personality", text: true},
		)
	}
	items = append(items, menuItem{key: generateKey, label: "Generate"})

	for i := range items {
		if val, ok := values[items[i].key]; ok {
			items[i].value = val
		}
		for j, opt := range items[i].options {
			if opt.value == items[i].value {
				items[i].cursor = j
			}
		}
	}
	return items
}

// newTUIModel seeds the wizard from a partial brief and the configured
// model and provider.
func newTUIModel(seed *brief.Brief, model, provider string) tuiModel {
	count := len(seed.Speakers)
	if count < 2 {
		count = 2
	}
	if count > brief.MaxSpeakers {
		count = brief.MaxSpeakers
	}
	duration := seed.Duration
	if duration == 0 {
		duration = 10
	}
	values := map[string]string{
		"topic":    seed.Topic,
		"duration": strconv.Itoa(duration),
		"setting":  seed.Setting,
		"source":   seed.Source,
		"model":    model,
		"tts":      provider,
		"speakers": strconv.Itoa(count),
	}
	for i := 0; i < count; i++ {
		gender := brief.Male
		if i%2 == 1 {
			gender = brief.Female
		}
		if i < len(seed.Speakers) {
			sp := seed.Speakers[i]
			values[speakerKey(i, "name")] = sp.Name
			values[speakerKey(i, "profession")] = sp.Profession
			values[speakerKey(i, "background")] = sp.Background
			values[speakerKey(i, "personality")] = sp.Personality
			if sp.Gender != "" {
				gender = sp.Gender
			}
		}
		values[speakerKey(i, "gender")] = string(gender)
	}
	return tuiModel{
		items:        buildMenuItems(count, values),
		state:        stateMenu,
		speakerCount: count,
	}
}

func (m tuiModel) Init() tea.Cmd {
	return nil
}

func (m tuiModel) indexOf(key string) int {
	for i, it := range m.items {
		if it.key == key {
			return i
		}
	}
	return -1
}

func (m tuiModel) value(key string) string {
	if i := m.indexOf(key); i >= 0 {
		return m.items[i].value
	}
	return ""
}

func (m tuiModel) values() map[string]string {
	out := make(map[string]string, len(m.items))
	for _, it := range m.items {
		out[it.key] = it.value
	}
	return out
}

// brief assembles the current field values into a Brief.
func (m tuiModel) brief() *brief.Brief {
	duration, _ := strconv.Atoi(m.value("duration"))
	b := &brief.Brief{
		Topic:    strings.TrimSpace(m.value("topic")),
		Duration: duration,
		Setting:  strings.TrimSpace(m.value("setting")),
		Source:   strings.TrimSpace(m.value("source")),
	}
	for i := 0; i < m.speakerCount; i++ {
		b.Speakers = append(b.Speakers, brief.Speaker{
			Name:        strings.TrimSpace(m.value(speakerKey(i, "name"))),
			Gender:      brief.Gender(m.value(speakerKey(i, "gender"))),
			Profession:  strings.TrimSpace(m.value(speakerKey(i, "profession"))),
			Background:  strings.TrimSpace(m.value(speakerKey(i, "background"))),
			Personality: strings.TrimSpace(m.value(speakerKey(i, "personality"))),
		})
	}
	return b
}

func (m tuiModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		return m, nil

	case tea.KeyMsg:
		switch m.state {
		case stateMenu:
			return m.updateMenu(msg)
		case stateEditing:
			return m.updateEditing(msg)
		}
	}
	return m, nil
}

func (m tuiModel) updateMenu(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "ctrl+c", "q":
		m.cancelled = true
		return m, tea.Quit

	case "up", "k":
		if m.cursor > 0 {
			m.cursor--
		}

	case "down", "j":
		if m.cursor < len(m.items)-1 {
			m.cursor++
		}

	case "enter", " ":
		item := &m.items[m.cursor]
		if item.key == generateKey {
			if err := m.brief().Validate(); err != nil {
				m.err = err
				return m, nil
			}
			m.confirmed = true
			return m, tea.Quit
		}
		if item.text || len(item.options) > 0 {
			m.state = stateEditing
			item.editing = true
			m.err = nil
		}
	}
	return m, nil
}

func (m tuiModel) updateEditing(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	item := &m.items[m.cursor]

	if item.text {
		switch msg.String() {
		case "enter":
			item.editing = false
			m.state = stateMenu
			m.advance()
		case "esc":
			item.editing = false
			m.state = stateMenu
		case "backspace":
			if r := []rune(item.value); len(r) > 0 {
				item.value = string(r[:len(r)-1])
			}
		case "ctrl+u":
			item.value = ""
		default:
			if msg.Type == tea.KeyRunes || msg.Type == tea.KeySpace {
				item.value += string(msg.Runes)
			}
		}
		return m, nil
	}

	switch msg.String() {
	case "enter", " ":
		if item.cursor >= 0 && item.cursor < len(item.options) {
			item.value = item.options[item.cursor].value
		}
		item.editing = false
		m.state = stateMenu

		if item.key == "speakers" {
			if n, err := strconv.Atoi(item.value); err == nil && n != m.speakerCount {
				m.rebuildForSpeakerCount(n)
			}
		}
		m.advance()

	case "esc":
		item.editing = false
		m.state = stateMenu

	case "up", "k":
		if item.cursor > 0 {
			item.cursor--
		}

	case "down", "j":
		if item.cursor < len(item.options)-1 {
			item.cursor++
		}
	}
	return m, nil
}

func (m *tuiModel) advance() {
	if m.cursor < len(m.items)-1 {
		m.cursor++
	}
}

// rebuildForSpeakerCount adds or drops speaker sections, keeping what was
// already entered.
func (m *tuiModel) rebuildForSpeakerCount(n int) {
	values := m.values()
	for i := m.speakerCount; i < n; i++ {
		if values[speakerKey(i, "gender")] == "" {
			g := brief.Male
			if i%2 == 1 {
				g = brief.Female
			}
			values[speakerKey(i, "gender")] = string(g)
		}
	}
	key := m.items[m.cursor].key
	m.speakerCount = n
	m.items = buildMenuItems(n, values)
	if i := m.indexOf(key); i >= 0 {
		m.cursor = i
	}
}

func (m tuiModel) View() string {
	var b strings.Builder

	b.WriteString(headerBorder.Render(titleStyle.Render("Panelcast")))
	b.WriteString("\n")

	for i, item := range m.items {
		isActive := m.cursor == i

		if item.key == generateKey {
			b.WriteString("\n")
			if isActive {
				b.WriteString("  " + buttonStyle.Render(" Generate "))
			} else {
				b.WriteString("  " + buttonDimStyle.Render(" Generate "))
			}
			b.WriteString("\n")
			continue
		}
		if strings.HasSuffix(item.key, ".name") {
			b.WriteString("\n" + sectionStyle.Render(strings.TrimSuffix(item.label, " name")) + "\n")
		}

		cursor := "  "
		if isActive {
			cursor = cursorStyle.Render("> ")
		}

		label := item.label
		if item.required {
			label += requiredStyle.Render("*")
		}

		var rendered string
		switch {
		case item.editing && item.text:
			rendered = menuValueStyle.Render(item.value + "_")
		case item.value == "":
			placeholder := "(not set)"
			if item.key == "source" {
				placeholder = "(optional: URL, PDF or text file)"
			}
			rendered = menuValueDimStyle.Render(placeholder)
		default:
			display := item.value
			for _, opt := range item.options {
				if opt.value == item.value {
					display = opt.label
					break
				}
			}
			rendered = menuValueStyle.Render(display)
		}

		b.WriteString(cursor + menuLabelStyle.Render(label) + " " + rendered + "\n")

		if item.editing && !item.text {
			for j, opt := range item.options {
				if j == item.cursor {
					b.WriteString(selectedOptionStyle.Render("> "+opt.label) + "\n")
				} else {
					b.WriteString(optionStyle.Render("  "+opt.label) + "\n")
				}
			}
		}
	}

	if m.err != nil {
		b.WriteString("\n" + errorStyle.Render("  Error: "+m.err.Error()) + "\n")
	}

	switch m.state {
	case stateMenu:
		b.WriteString(helpStyle.Render("  j/k or arrows to navigate | enter to edit | q to quit"))
	case stateEditing:
		if m.items[m.cursor].text {
			b.WriteString(helpStyle.Render("  type value | enter to confirm | esc to cancel | ctrl+u to clear"))
		} else {
			b.WriteString(helpStyle.Render("  j/k or arrows to pick | enter to select | esc to cancel"))
		}
	}
	b.WriteString("\n")
	return b.String()
}

type wizardResult struct {
	brief    *brief.Brief
	model    string
	provider string
}

func runInteractiveSetup(seed *brief.Brief) (wizardResult, error) {
	m := newTUIModel(seed, cfg.Script.Model, cfg.TTS.Provider)

	result, err := tea.NewProgram(m, tea.WithAltScreen()).Run()
	if err != nil {
		return wizardResult{}, fmt.Errorf("TUI error: %w", err)
	}

	final := result.(tuiModel)
	if final.cancelled || !final.confirmed {
		return wizardResult{}, errors.New("cancelled")
	}
	return wizardResult{
		brief:    final.brief(),
		model:    final.value("model"),
		provider: final.value("tts"),
	}, nil
}
