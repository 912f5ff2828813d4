// Package ui implements the interactive play mode: edit bindings, watch
// the render and the patch it produces.
package ui

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/livefir/livemarkup"
	"github.com/livefir/livemarkup/cmd/lmt/internal/manifest"
)

var (
	titleStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12"))
	panelStyle  = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
	patchStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	errStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
	helpStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	promptStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("13"))
)

// Play starts the interactive explorer for one template. Bindings are set
// with "key=value" lines; each change re-renders and shows the patch that
// would go over the wire.
func Play(args []string) error {
	if len(args) < 1 {
		return fmt.Errorf("play requires a template path")
	}
	templatePath := args[0]
	source, err := os.ReadFile(templatePath)
	if err != nil {
		return err
	}

	var compileOpts []livemarkup.Option
	for i := 1; i < len(args)-1; i++ {
		if args[i] == "-m" {
			m, err := manifest.Load(args[i+1])
			if err != nil {
				return err
			}
			reg, _, err := manifest.BuildRegistry(args[i+1], m)
			if err != nil {
				return err
			}
			compileOpts = append(compileOpts, livemarkup.WithComponents(reg))
		}
	}

	tmpl, err := livemarkup.Compile(templatePath, string(source), compileOpts...)
	if err != nil {
		return err
	}

	input := textinput.New()
	input.Placeholder = "key=value"
	input.PromptStyle = promptStyle
	input.Focus()

	m := playModel{
		tmpl:     tmpl,
		view:     tmpl.NewView(),
		bindings: livemarkup.Bindings{},
		input:    input,
	}
	if err := m.render(nil); err != nil {
		return err
	}

	_, err = tea.NewProgram(&m, tea.WithAltScreen()).Run()
	return err
}

type playModel struct {
	tmpl     *livemarkup.Template
	view     *livemarkup.View
	bindings livemarkup.Bindings
	input    textinput.Model

	html      string
	lastPatch string
	lastErr   string
	width     int
}

func (m *playModel) Init() tea.Cmd {
	return textinput.Blink
}

func (m *playModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		return m, nil
	case tea.KeyMsg:
		switch msg.Type {
		case tea.KeyCtrlC, tea.KeyEsc:
			return m, tea.Quit
		case tea.KeyEnter:
			m.apply(m.input.Value())
			m.input.SetValue("")
			return m, nil
		}
	}
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

// apply parses one "key=value" assignment, updates the bindings, and
// re-renders with that single key marked changed.
func (m *playModel) apply(line string) {
	m.lastErr = ""
	key, raw, ok := strings.Cut(strings.TrimSpace(line), "=")
	if !ok || key == "" {
		m.lastErr = "expected key=value"
		return
	}
	key = strings.TrimSpace(key)
	m.bindings[key] = parseValue(strings.TrimSpace(raw))
	if err := m.render(livemarkup.Changed(key)); err != nil {
		m.lastErr = err.Error()
	}
}

func (m *playModel) render(changed livemarkup.ChangedSet) error {
	patch, err := m.view.Update(m.bindings, changed)
	if err != nil {
		return err
	}
	m.html = m.view.HTML()
	if patch.Empty() {
		m.lastPatch = "(empty patch, nothing sent)"
		return nil
	}
	out, err := json.MarshalIndent(patch, "", "  ")
	if err != nil {
		return err
	}
	m.lastPatch = string(out)
	return nil
}

// parseValue interprets a literal the way JSON would, falling back to a
// plain string.
func parseValue(raw string) any {
	switch raw {
	case "true":
		return true
	case "false":
		return false
	case "null", "nil":
		return nil
	}
	if n, err := strconv.ParseInt(raw, 10, 64); err == nil {
		return n
	}
	if f, err := strconv.ParseFloat(raw, 64); err == nil {
		return f
	}
	if strings.HasPrefix(raw, "[") || strings.HasPrefix(raw, "{") {
		var v any
		if err := json.Unmarshal([]byte(raw), &v); err == nil {
			return v
		}
	}
	return raw
}

func (m *playModel) View() string {
	var b strings.Builder
	b.WriteString(titleStyle.Render("livemarkup play: "+m.tmpl.Name()) + "\n\n")

	b.WriteString(titleStyle.Render("render") + "\n")
	b.WriteString(panelStyle.Render(m.html) + "\n\n")

	b.WriteString(titleStyle.Render("patch") + "\n")
	b.WriteString(patchStyle.Render(m.lastPatch) + "\n\n")

	if m.lastErr != "" {
		b.WriteString(errStyle.Render("error: "+m.lastErr) + "\n\n")
	}

	b.WriteString(m.input.View() + "\n")
	b.WriteString(helpStyle.Render("enter to apply key=value, esc to quit"))
	return b.String()
}
