// Package tui provides a terminal user interface for melodygen
package tui

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/charmbracelet/bubbles/filepicker"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/james-see/melodygen/pkg/composer"
	"github.com/james-see/melodygen/pkg/export"
	"github.com/james-see/melodygen/pkg/harmony"
	"github.com/james-see/melodygen/pkg/melody"
	"github.com/james-see/melodygen/pkg/theory"
)

// Manuscript color scheme
var (
	inkBlue   = lipgloss.Color("#5FAFFF")
	brass     = lipgloss.Color("#E5C07B")
	paper     = lipgloss.Color("#D7D7D7")
	staffGray = lipgloss.Color("#303030")

	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(inkBlue).
			Background(staffGray).
			Padding(0, 2).
			MarginBottom(1)

	menuStyle = lipgloss.NewStyle().
			Foreground(paper).
			PaddingLeft(2)

	selectedStyle = lipgloss.NewStyle().
			Foreground(inkBlue).
			Bold(true).
			PaddingLeft(2)

	valueStyle = lipgloss.NewStyle().
			Foreground(brass)

	statusStyle = lipgloss.NewStyle().
			Foreground(brass).
			PaddingTop(1)

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FF5F5F")).
			Bold(true)

	successStyle = lipgloss.NewStyle().
			Foreground(inkBlue).
			Bold(true)

	helpStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#666666")).
			MarginTop(1)

	boxStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(inkBlue).
			Padding(1, 2)
)

// State represents the current TUI state
type State int

const (
	StateMenu State = iota
	StateGenerating
	StateResult
	StateFilePicker
	StateSummary
)

// field is one editable generation parameter. Left and right cycle through
// its values.
type field struct {
	title  string
	values []string
	get    func(composer.Params) string
	set    func(*composer.Params, string)
}

// Menu actions below the parameter fields.
const (
	actionGenerate = "Generate"
	actionInspect  = "Inspect MIDI file"
	actionExit     = "Exit"
)

var actions = []string{actionGenerate, actionInspect, actionExit}

func itoa(v int) string { return strconv.Itoa(v) }

func atoi(s string) int {
	v, _ := strconv.Atoi(s)
	return v
}

func numbers(vs ...int) []string {
	out := make([]string, len(vs))
	for i, v := range vs {
		out[i] = itoa(v)
	}
	return out
}

func stringsOf[T ~string](vs []T) []string {
	out := make([]string, len(vs))
	for i, v := range vs {
		out[i] = string(v)
	}
	return out
}

func buildFields(presets *harmony.Registry) []field {
	strategies := make([]string, 0, len(harmony.Strategies()))
	for _, s := range harmony.Strategies() {
		strategies = append(strategies, s.Name)
	}

	return []field{
		{
			title:  "Root",
			values: theory.Roots(),
			get:    func(p composer.Params) string { return p.Root },
			set: func(p *composer.Params, v string) {
				p.Root = v
				p.RegisterLow, p.RegisterHigh = -1, -1
			},
		},
		{
			title:  "Mode",
			values: theory.Modes(),
			get:    func(p composer.Params) string { return p.Mode },
			set: func(p *composer.Params, v string) {
				p.Mode = v
				p.RegisterLow, p.RegisterHigh = -1, -1
			},
		},
		{
			title:  "Bars",
			values: numbers(1, 2, 4, 8, 12, 16, 24, 32),
			get:    func(p composer.Params) string { return itoa(p.Bars) },
			set:    func(p *composer.Params, v string) { p.Bars = atoi(v) },
		},
		{
			title:  "Beats per bar",
			values: numbers(2, 3, 4, 5, 6, 7),
			get:    func(p composer.Params) string { return itoa(p.BeatsPerBar) },
			set:    func(p *composer.Params, v string) { p.BeatsPerBar = atoi(v) },
		},
		{
			title:  "BPM",
			values: numbers(60, 72, 80, 90, 100, 110, 120, 132, 140, 160, 180),
			get:    func(p composer.Params) string { return strconv.FormatFloat(p.BPM, 'f', -1, 64) },
			set:    func(p *composer.Params, v string) { p.BPM = float64(atoi(v)) },
		},
		{
			title:  "Harmonic rhythm",
			values: presets.Names(),
			get:    func(p composer.Params) string { return p.HarmonicRhythm },
			set:    func(p *composer.Params, v string) { p.HarmonicRhythm = v },
		},
		{
			title:  "Chord strategy",
			values: strategies,
			get:    func(p composer.Params) string { return p.ChordStrategy },
			set:    func(p *composer.Params, v string) { p.ChordStrategy = v },
		},
		{
			title:  "Contour",
			values: stringsOf(melody.Contours()),
			get:    func(p composer.Params) string { return p.Contour },
			set:    func(p *composer.Params, v string) { p.Contour = v },
		},
		{
			title:  "Intervals",
			values: stringsOf(melody.IntervalStyles()),
			get:    func(p composer.Params) string { return p.IntervalStyle },
			set:    func(p *composer.Params, v string) { p.IntervalStyle = v },
		},
		{
			title:  "Chord volume",
			values: numbers(0, 20, 40, 60, 80, 100),
			get:    func(p composer.Params) string { return itoa(p.ChordVolume) },
			set:    func(p *composer.Params, v string) { p.ChordVolume = atoi(v) },
		},
	}
}

// cycle moves f to the next (step 1) or previous (step -1) value. A current
// value not in the list starts from the first entry.
func (f field) cycle(p *composer.Params, step int) {
	if len(f.values) == 0 {
		return
	}
	idx := -1
	current := f.get(*p)
	for i, v := range f.values {
		if v == current {
			idx = i
			break
		}
	}
	if idx < 0 {
		f.set(p, f.values[0])
		return
	}
	idx = (idx + step + len(f.values)) % len(f.values)
	f.set(p, f.values[idx])
}

// Model represents the TUI model
type Model struct {
	state        State
	menuIndex    int
	params       composer.Params
	fields       []field
	studio       *composer.Studio
	outputDir    string
	filePicker   filepicker.Model
	spinner      spinner.Model
	comp         *composer.Composition
	summary      *export.Summary
	selectedFile string
	status       string
	err          error
	width        int
	height       int
}

// generatedMsg signals generation completion
type generatedMsg struct {
	comp *composer.Composition
	err  error
}

// savedMsg signals that a MIDI file was written
type savedMsg struct {
	path string
	err  error
}

// inspectedMsg carries the summary of a picked MIDI file
type inspectedMsg struct {
	summary *export.Summary
	err     error
}

// Init initializes the TUI model
func (m Model) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick)
}

// New creates a new TUI model generating through studio from defaults.
// Saved files go to outputDir.
func New(studio *composer.Studio, defaults composer.Params, outputDir string) Model {
	if studio == nil {
		studio = composer.NewStudio(nil)
	}
	if outputDir == "" {
		outputDir = "."
	}

	fp := filepicker.New()
	fp.AllowedTypes = []string{".mid", ".midi"}
	fp.CurrentDirectory, _ = os.Getwd()

	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = lipgloss.NewStyle().Foreground(inkBlue)

	return Model{
		state:      StateMenu,
		params:     defaults,
		fields:     buildFields(studio.Composer().Presets()),
		studio:     studio,
		outputDir:  outputDir,
		filePicker: fp,
		spinner:    s,
	}
}

// Params returns the parameters the next generation will use.
func (m Model) Params() composer.Params {
	return m.params
}

// Composition returns the composition on display, if any.
func (m Model) Composition() *composer.Composition {
	return m.comp
}

func (m Model) menuLen() int {
	return len(m.fields) + len(actions)
}

// action returns the action under the cursor, or "" on a parameter field.
func (m Model) action() string {
	if m.menuIndex < len(m.fields) {
		return ""
	}
	return actions[m.menuIndex-len(m.fields)]
}

// Update handles TUI updates
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	// The file picker needs to receive all messages
	if m.state == StateFilePicker {
		if keyMsg, ok := msg.(tea.KeyMsg); ok {
			switch keyMsg.String() {
			case "esc":
				m.state = StateMenu
				return m, nil
			case "q", "ctrl+c":
				return m, tea.Quit
			}
		}

		var cmd tea.Cmd
		m.filePicker, cmd = m.filePicker.Update(msg)

		if didSelect, path := m.filePicker.DidSelectFile(msg); didSelect {
			m.selectedFile = path
			return m, inspect(path)
		}
		if _, ok := msg.(inspectedMsg); !ok {
			return m, cmd
		}
	}

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.filePicker.SetHeight(msg.Height - 10)
		return m, nil

	case tea.KeyMsg:
		switch m.state {
		case StateMenu:
			return m.updateMenu(msg)
		case StateResult:
			return m.updateResult(msg)
		case StateSummary:
			return m.updateSummary(msg)
		}

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case generatedMsg:
		m.err = msg.err
		m.status = ""
		if msg.err == nil {
			m.comp = msg.comp
			m.state = StateResult
		} else {
			m.state = StateMenu
		}
		return m, nil

	case savedMsg:
		if msg.err != nil {
			m.err = msg.err
		} else {
			m.status = fmt.Sprintf("Saved %s", msg.path)
		}
		return m, nil

	case inspectedMsg:
		m.state = StateSummary
		m.summary = msg.summary
		m.err = msg.err
		return m, nil
	}

	return m, nil
}

func (m Model) updateMenu(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "up", "k":
		if m.menuIndex > 0 {
			m.menuIndex--
		}
	case "down", "j":
		if m.menuIndex < m.menuLen()-1 {
			m.menuIndex++
		}
	case "left", "h":
		if m.menuIndex < len(m.fields) {
			m.fields[m.menuIndex].cycle(&m.params, -1)
		}
	case "right", "l":
		if m.menuIndex < len(m.fields) {
			m.fields[m.menuIndex].cycle(&m.params, 1)
		}
	case "g":
		return m.startGenerate()
	case "enter":
		switch m.action() {
		case "":
			m.fields[m.menuIndex].cycle(&m.params, 1)
		case actionGenerate:
			return m.startGenerate()
		case actionInspect:
			m.state = StateFilePicker
			m.err = nil
			return m, m.filePicker.Init()
		case actionExit:
			return m, tea.Quit
		}
	case "q", "ctrl+c":
		return m, tea.Quit
	}
	return m, nil
}

func (m Model) startGenerate() (tea.Model, tea.Cmd) {
	m.state = StateGenerating
	m.err = nil
	m.status = ""
	return m, tea.Batch(m.spinner.Tick, m.generate())
}

func (m Model) updateResult(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "s":
		return m, m.save()
	case "r":
		return m.startGenerate()
	case "enter", "esc":
		m.state = StateMenu
		m.err = nil
		m.status = ""
		return m, nil
	case "q", "ctrl+c":
		return m, tea.Quit
	}
	return m, nil
}

func (m Model) updateSummary(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "enter", "esc":
		m.state = StateMenu
		m.err = nil
		m.summary = nil
		m.selectedFile = ""
		return m, nil
	case "q", "ctrl+c":
		return m, tea.Quit
	}
	return m, nil
}

func (m Model) generate() tea.Cmd {
	studio, params := m.studio, m.params
	return func() tea.Msg {
		comp, err := studio.Regenerate(params)
		return generatedMsg{comp: comp, err: err}
	}
}

func (m Model) save() tea.Cmd {
	comp, dir := m.comp, m.outputDir
	return func() tea.Msg {
		if comp == nil {
			return savedMsg{err: fmt.Errorf("nothing to save")}
		}
		id := comp.ID
		if len(id) > 8 {
			id = id[:8]
		}
		path := filepath.Join(dir, "melodygen-"+id+".mid")
		if err := export.WriteFile(comp, path); err != nil {
			return savedMsg{err: err}
		}
		return savedMsg{path: path}
	}
}

func inspect(path string) tea.Cmd {
	return func() tea.Msg {
		summary, err := export.InspectFile(path)
		return inspectedMsg{summary: summary, err: err}
	}
}

// View renders the TUI
func (m Model) View() string {
	var s strings.Builder

	s.WriteString(asciiLogo())
	s.WriteString("\n")

	switch m.state {
	case StateMenu:
		s.WriteString(m.viewMenu())
		s.WriteString("\n")
		s.WriteString(helpStyle.Render("↑/↓: navigate • ←/→: change • enter: select • g: generate • q: quit"))
	case StateFilePicker:
		s.WriteString(m.viewFilePicker())
	case StateGenerating:
		s.WriteString(m.viewGenerating())
	case StateResult:
		s.WriteString(m.viewResult())
		s.WriteString("\n")
		s.WriteString(helpStyle.Render("s: save .mid • r: regenerate • enter: back • q: quit"))
	case StateSummary:
		s.WriteString(m.viewSummary())
	}

	return s.String()
}

func (m Model) viewMenu() string {
	var s strings.Builder

	s.WriteString(titleStyle.Render(" COMPOSE "))
	s.WriteString("\n\n")

	for i, f := range m.fields {
		line := fmt.Sprintf("%-16s %s", f.title, valueStyle.Render(f.get(m.params)))
		if i == m.menuIndex {
			s.WriteString(selectedStyle.Render("▸ " + line))
		} else {
			s.WriteString(menuStyle.Render("  " + line))
		}
		s.WriteString("\n")
	}
	s.WriteString("\n")
	for i, a := range actions {
		if len(m.fields)+i == m.menuIndex {
			s.WriteString(selectedStyle.Render("▸ " + a))
		} else {
			s.WriteString(menuStyle.Render("  " + a))
		}
		s.WriteString("\n")
	}

	if m.err != nil {
		s.WriteString("\n")
		s.WriteString(errorStyle.Render(fmt.Sprintf("✗ %s", m.err.Error())))
	}

	return boxStyle.Render(s.String())
}

func (m Model) viewFilePicker() string {
	var s strings.Builder

	s.WriteString(titleStyle.Render(" SELECT MIDI FILE "))
	s.WriteString("\n\n")
	s.WriteString(m.filePicker.View())
	s.WriteString("\n")
	s.WriteString(helpStyle.Render("esc: back to menu"))

	return s.String()
}

func (m Model) viewGenerating() string {
	var s strings.Builder

	s.WriteString(titleStyle.Render(" GENERATING "))
	s.WriteString("\n\n")
	s.WriteString(fmt.Sprintf("%s Composing %d bars in %s %s...\n", m.spinner.View(), m.params.Bars, m.params.Root, m.params.Mode))
	s.WriteString(statusStyle.Render(fmt.Sprintf("  %s • %s", m.params.HarmonicRhythm, m.params.Contour)))

	return boxStyle.Render(s.String())
}

func (m Model) viewResult() string {
	var s strings.Builder

	s.WriteString(titleStyle.Render(" COMPOSITION "))
	s.WriteString("\n\n")
	if m.comp != nil {
		s.WriteString(m.comp.Transcript())
		for _, w := range m.comp.Warnings {
			s.WriteString(statusStyle.Render("! " + w))
			s.WriteString("\n")
		}
	}

	if m.err != nil {
		s.WriteString("\n")
		s.WriteString(errorStyle.Render(fmt.Sprintf("✗ Save failed: %s", m.err.Error())))
	} else if m.status != "" {
		s.WriteString("\n")
		s.WriteString(successStyle.Render("✓ " + m.status))
	}

	return boxStyle.Render(s.String())
}

func (m Model) viewSummary() string {
	var s strings.Builder

	if m.err != nil {
		s.WriteString(titleStyle.Render(" ERROR "))
		s.WriteString("\n\n")
		s.WriteString(errorStyle.Render(fmt.Sprintf("✗ Inspect failed: %s", m.err.Error())))
	} else if m.summary != nil {
		s.WriteString(titleStyle.Render(" MIDI FILE "))
		s.WriteString("\n\n")
		s.WriteString(fmt.Sprintf("File:   %s\n", filepath.Base(m.selectedFile)))
		s.WriteString(fmt.Sprintf("Tempo:  %.1f BPM, %d beats per bar\n", m.summary.Tempo, m.summary.BeatsPerBar))
		s.WriteString(fmt.Sprintf("Length: %.2f bars (%.1fs)\n", m.summary.Bars(), m.summary.DurationSec()))
		for _, t := range m.summary.Tracks {
			s.WriteString(fmt.Sprintf("Track %-8s %d notes\n", t.Name, t.Notes))
		}
	}

	s.WriteString("\n")
	s.WriteString(helpStyle.Render("Press enter to continue"))

	return boxStyle.Render(s.String())
}

func asciiLogo() string {
	logo := `
  __  __ ___ _    ___  _____   __  ___ ___ _  _
 |  \/  | __| |  / _ \|   \ \ / / / __| __| \| |
 | |\/| | _|| |_| (_) | |) \ V / | (_ | _|| .  |
 |_|  |_|___|____\___/|___/ |_|   \___|___|_|\_|
`
	return lipgloss.NewStyle().Foreground(inkBlue).Render(logo)
}

// Run starts the TUI application
func Run(studio *composer.Studio, defaults composer.Params, outputDir string) error {
	p := tea.NewProgram(New(studio, defaults, outputDir), tea.WithAltScreen())
	_, err := p.Run()
	return err
}
