// Package tui provides interactive terminal UI components using BubbleTea.
package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/table"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/sergi/go-diff/diffmatchpatch"

	"github.com/locforge/locforge/internal/sync"
)

// ConflictAction represents the outcome of the conflict resolution UI.
type ConflictAction int

const (
	// ConflictActionNone means no action was taken (user quit).
	ConflictActionNone ConflictAction = iota
	// ConflictActionApply means the user chose resolutions to apply.
	ConflictActionApply
	// ConflictActionCancel means the user cancelled.
	ConflictActionCancel
)

// ConflictItem is one unresolved divergence shown in the resolver.
// Nil values mean that side deleted the entry.
type ConflictItem struct {
	Ref         sync.EntryRef
	Kind        string
	LocalValue  *string
	RemoteValue *string
}

// ConflictResolution pairs a tuple with the user's choice.
type ConflictResolution struct {
	Ref    sync.EntryRef
	Choice sync.ResolutionChoice
}

// ConflictListResult is the final state of the interaction.
type ConflictListResult struct {
	Action      ConflictAction
	Resolutions []ConflictResolution
}

type conflictPhase int

const (
	phaseList conflictPhase = iota
	phaseDetail
)

type conflictKeyMap struct {
	Up      key.Binding
	Down    key.Binding
	Select  key.Binding
	Local   key.Binding
	Remote  key.Binding
	Skip    key.Binding
	Confirm key.Binding
	Back    key.Binding
	Help    key.Binding
	Quit    key.Binding
}

func defaultConflictKeyMap() conflictKeyMap {
	return conflictKeyMap{
		Up: key.NewBinding(
			key.WithKeys("up", "k"),
			key.WithHelp("↑/k", "up"),
		),
		Down: key.NewBinding(
			key.WithKeys("down", "j"),
			key.WithHelp("↓/j", "down"),
		),
		Select: key.NewBinding(
			key.WithKeys("enter"),
			key.WithHelp("enter", "view diff"),
		),
		Local: key.NewBinding(
			key.WithKeys("l", "1"),
			key.WithHelp("l/1", "keep local"),
		),
		Remote: key.NewBinding(
			key.WithKeys("r", "2"),
			key.WithHelp("r/2", "keep remote"),
		),
		Skip: key.NewBinding(
			key.WithKeys("x"),
			key.WithHelp("x", "skip"),
		),
		Confirm: key.NewBinding(
			key.WithKeys("y"),
			key.WithHelp("y", "apply resolutions"),
		),
		Back: key.NewBinding(
			key.WithKeys("b", "esc"),
			key.WithHelp("b/esc", "back"),
		),
		Help: key.NewBinding(
			key.WithKeys("?"),
			key.WithHelp("?", "help"),
		),
		Quit: key.NewBinding(
			key.WithKeys("q", "ctrl+c"),
			key.WithHelp("q", "quit"),
		),
	}
}

var conflictStyles = struct {
	Title        lipgloss.Style
	Help         lipgloss.Style
	Status       lipgloss.Style
	Added        lipgloss.Style
	Removed      lipgloss.Style
	Context      lipgloss.Style
	Info         lipgloss.Style
	Resolved     lipgloss.Style
	Confirm      lipgloss.Style
	SectionTitle lipgloss.Style
}{
	Title:        lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("6")).Padding(0, 1),
	Help:         lipgloss.NewStyle().Foreground(lipgloss.Color("241")),
	Status:       lipgloss.NewStyle().Foreground(lipgloss.Color("241")).Padding(0, 1),
	Added:        lipgloss.NewStyle().Foreground(lipgloss.Color("2")),
	Removed:      lipgloss.NewStyle().Foreground(lipgloss.Color("1")),
	Context:      lipgloss.NewStyle().Foreground(lipgloss.Color("7")),
	Info:         lipgloss.NewStyle().Foreground(lipgloss.Color("3")).Italic(true),
	Resolved:     lipgloss.NewStyle().Foreground(lipgloss.Color("2")),
	Confirm:      lipgloss.NewStyle().Foreground(lipgloss.Color("3")).Bold(true).Padding(0, 1),
	SectionTitle: lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("6")).Padding(1, 0),
}

// ConflictListModel is the BubbleTea model for conflict resolution.
type ConflictListModel struct {
	conflicts   []ConflictItem
	resolutions map[sync.EntryRef]sync.ResolutionChoice
	table       table.Model
	viewport    viewport.Model
	keys        conflictKeyMap
	result      ConflictListResult
	phase       conflictPhase
	cursor      int
	showHelp    bool
	confirmMode bool
	width       int
	height      int
	quitting    bool
	ready       bool
}

// NewConflictListModel creates a conflict resolution model.
func NewConflictListModel(conflicts []ConflictItem) ConflictListModel {
	columns := []table.Column{
		{Title: "Status", Width: 6},
		{Title: "Key", Width: 28},
		{Title: "Language", Width: 10},
		{Title: "Kind", Width: 28},
		{Title: "Resolution", Width: 12},
	}

	rows := make([]table.Row, len(conflicts))
	for i, c := range conflicts {
		rows[i] = buildConflictRow(c, "")
	}

	t := table.New(
		table.WithColumns(columns),
		table.WithRows(rows),
		table.WithFocused(true),
		table.WithHeight(15),
	)

	s := table.DefaultStyles()
	s.Header = s.Header.
		BorderStyle(lipgloss.NormalBorder()).
		BorderForeground(lipgloss.Color("240")).
		BorderBottom(true).
		Bold(true)
	s.Selected = s.Selected.
		Foreground(lipgloss.Color("229")).
		Background(lipgloss.Color("57")).
		Bold(false)
	t.SetStyles(s)

	return ConflictListModel{
		conflicts:   conflicts,
		resolutions: make(map[sync.EntryRef]sync.ResolutionChoice),
		table:       t,
		keys:        defaultConflictKeyMap(),
		phase:       phaseList,
	}
}

func buildConflictRow(c ConflictItem, resolution string) table.Row {
	status := "○"
	resStr := "-"
	if resolution != "" {
		status = "✓"
		resStr = resolution
	}

	lang := c.Ref.Language
	if c.Ref.PluralForm != "" {
		lang += "/" + string(c.Ref.PluralForm)
	}

	return table.Row{status, c.Ref.Key, lang, c.Kind, resStr}
}

// Init implements tea.Model.
func (m ConflictListModel) Init() tea.Cmd {
	return nil
}

// Update implements tea.Model.
func (m ConflictListModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch m.phase {
	case phaseList:
		return m.updateList(msg)
	case phaseDetail:
		return m.updateDetail(msg)
	}
	return m, nil
}

func (m ConflictListModel) updateList(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.table.SetHeight(max(msg.Height-10, 5))

	case tea.KeyMsg:
		if m.confirmMode {
			switch msg.String() {
			case "y", "Y":
				m.result = ConflictListResult{
					Action:      ConflictActionApply,
					Resolutions: m.buildResolutions(),
				}
				m.quitting = true
				return m, tea.Quit
			case "n", "N", "esc":
				m.confirmMode = false
			}
			return m, nil
		}

		switch {
		case key.Matches(msg, m.keys.Quit):
			m.quitting = true
			return m, tea.Quit

		case key.Matches(msg, m.keys.Help):
			m.showHelp = !m.showHelp
			return m, nil

		case key.Matches(msg, m.keys.Select):
			if len(m.conflicts) > 0 {
				m.cursor = m.table.Cursor()
				m.phase = phaseDetail
				m.ready = false
				return m, func() tea.Msg {
					return tea.WindowSizeMsg{Width: m.width, Height: m.height}
				}
			}

		case key.Matches(msg, m.keys.Local):
			m.resolveConflictAt(m.table.Cursor(), sync.ResolutionKeepLocal)
			return m, nil

		case key.Matches(msg, m.keys.Remote):
			m.resolveConflictAt(m.table.Cursor(), sync.ResolutionKeepRemote)
			return m, nil

		case key.Matches(msg, m.keys.Skip):
			m.unresolveConflictAt(m.table.Cursor())
			return m, nil

		case key.Matches(msg, m.keys.Confirm):
			if len(m.resolutions) > 0 {
				m.confirmMode = true
				return m, nil
			}

		case key.Matches(msg, m.keys.Back):
			m.result = ConflictListResult{Action: ConflictActionCancel}
			m.quitting = true
			return m, tea.Quit
		}
	}

	m.table, cmd = m.table.Update(msg)
	return m, cmd
}

func (m ConflictListModel) updateDetail(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		viewportHeight := max(msg.Height-10, 5)
		if !m.ready {
			m.viewport = viewport.New(max(msg.Width-2, 20), viewportHeight)
			m.viewport.SetContent(m.buildDetailContent())
			m.ready = true
		} else {
			m.viewport.Width = max(msg.Width-2, 20)
			m.viewport.Height = viewportHeight
		}

	case tea.KeyMsg:
		switch {
		case key.Matches(msg, m.keys.Quit):
			m.quitting = true
			return m, tea.Quit

		case key.Matches(msg, m.keys.Back):
			m.phase = phaseList
			return m, nil

		case key.Matches(msg, m.keys.Local):
			m.resolveConflictAt(m.cursor, sync.ResolutionKeepLocal)
			m.viewport.SetContent(m.buildDetailContent())
			return m, nil

		case key.Matches(msg, m.keys.Remote):
			m.resolveConflictAt(m.cursor, sync.ResolutionKeepRemote)
			m.viewport.SetContent(m.buildDetailContent())
			return m, nil

		case key.Matches(msg, m.keys.Skip):
			m.unresolveConflictAt(m.cursor)
			m.viewport.SetContent(m.buildDetailContent())
			return m, nil
		}
	}

	m.viewport, cmd = m.viewport.Update(msg)
	return m, cmd
}

func (m *ConflictListModel) resolveConflictAt(idx int, choice sync.ResolutionChoice) {
	if idx < 0 || idx >= len(m.conflicts) {
		return
	}
	m.resolutions[m.conflicts[idx].Ref] = choice
	m.updateTableRow(idx)
}

func (m *ConflictListModel) unresolveConflictAt(idx int) {
	if idx < 0 || idx >= len(m.conflicts) {
		return
	}
	delete(m.resolutions, m.conflicts[idx].Ref)
	m.updateTableRow(idx)
}

func (m *ConflictListModel) updateTableRow(idx int) {
	c := m.conflicts[idx]
	resolution := ""
	if res, ok := m.resolutions[c.Ref]; ok {
		resolution = string(res)
	}
	rows := m.table.Rows()
	if idx < len(rows) {
		rows[idx] = buildConflictRow(c, resolution)
		m.table.SetRows(rows)
	}
}

func (m ConflictListModel) buildResolutions() []ConflictResolution {
	var out []ConflictResolution
	for _, c := range m.conflicts {
		if res, ok := m.resolutions[c.Ref]; ok {
			out = append(out, ConflictResolution{Ref: c.Ref, Choice: res})
		}
	}
	return out
}

func (m ConflictListModel) buildDetailContent() string {
	if m.cursor < 0 || m.cursor >= len(m.conflicts) {
		return "No conflict selected"
	}

	c := m.conflicts[m.cursor]
	var b strings.Builder

	b.WriteString(conflictStyles.SectionTitle.Render("Conflict Details"))
	b.WriteString("\n")
	b.WriteString(fmt.Sprintf("  Entry: %s\n", c.Ref))
	b.WriteString(fmt.Sprintf("  Kind:  %s\n", c.Kind))

	if res, ok := m.resolutions[c.Ref]; ok {
		b.WriteString("\n")
		b.WriteString(conflictStyles.Resolved.Render(fmt.Sprintf("  Resolution: %s", res)))
		b.WriteString("\n")
	}

	b.WriteString("\n")
	b.WriteString(conflictStyles.SectionTitle.Render("Local"))
	b.WriteString("\n")
	b.WriteString(renderSide(c.LocalValue, conflictStyles.Removed))
	b.WriteString("\n\n")

	b.WriteString(conflictStyles.SectionTitle.Render("Remote"))
	b.WriteString("\n")
	b.WriteString(renderSide(c.RemoteValue, conflictStyles.Added))

	if c.LocalValue != nil && c.RemoteValue != nil {
		b.WriteString("\n\n")
		b.WriteString(conflictStyles.SectionTitle.Render("Diff (local → remote)"))
		b.WriteString("\n")
		b.WriteString(RenderValueDiff(*c.LocalValue, *c.RemoteValue))
	}

	b.WriteString("\n\n")
	b.WriteString(conflictStyles.Info.Render("Press: l=keep local, r=keep remote, x=skip"))

	return b.String()
}

func renderSide(value *string, style lipgloss.Style) string {
	if value == nil {
		return conflictStyles.Info.Render("  (deleted)")
	}
	return "  " + style.Render(*value)
}

// RenderValueDiff renders a styled character diff between two values.
func RenderValueDiff(local, remote string) string {
	dmp := diffmatchpatch.New()
	diffs := dmp.DiffCleanupSemantic(dmp.DiffMain(local, remote, false))

	var b strings.Builder
	b.WriteString("  ")
	for _, d := range diffs {
		switch d.Type {
		case diffmatchpatch.DiffInsert:
			b.WriteString(conflictStyles.Added.Render(d.Text))
		case diffmatchpatch.DiffDelete:
			b.WriteString(conflictStyles.Removed.Render(d.Text))
		default:
			b.WriteString(conflictStyles.Context.Render(d.Text))
		}
	}
	return b.String()
}

// View implements tea.Model.
func (m ConflictListModel) View() string {
	if m.quitting {
		return ""
	}
	switch m.phase {
	case phaseDetail:
		return m.viewDetail()
	default:
		return m.viewList()
	}
}

func (m ConflictListModel) viewList() string {
	var b strings.Builder

	b.WriteString(conflictStyles.Title.Render("Resolve Conflicts"))
	b.WriteString("\n\n")
	b.WriteString(conflictStyles.Info.Render("Choose a resolution for each conflict, then apply"))
	b.WriteString("\n\n")

	b.WriteString(m.table.View())
	b.WriteString("\n")

	if m.confirmMode {
		confirmMsg := fmt.Sprintf("Apply %d resolution(s)? (y/n)", len(m.resolutions))
		b.WriteString("\n")
		b.WriteString(conflictStyles.Confirm.Render(confirmMsg))
		return b.String()
	}

	status := fmt.Sprintf("%d/%d resolved", len(m.resolutions), len(m.conflicts))
	if len(m.resolutions) > 0 {
		status += " • press y to apply"
	}
	b.WriteString(conflictStyles.Status.Render(status))
	b.WriteString("\n")

	if m.showHelp {
		b.WriteString("\n")
		b.WriteString(m.renderFullHelp())
	} else {
		b.WriteString(m.renderShortHelp())
	}
	return b.String()
}

func (m ConflictListModel) viewDetail() string {
	if !m.ready {
		return "Loading..."
	}

	var b strings.Builder
	ref := ""
	if m.cursor >= 0 && m.cursor < len(m.conflicts) {
		ref = m.conflicts[m.cursor].Ref.String()
	}
	b.WriteString(conflictStyles.Title.Render("Conflict: " + ref))
	b.WriteString("\n\n")
	b.WriteString(m.viewport.View())
	b.WriteString("\n")

	scrollPercent := int(m.viewport.ScrollPercent() * 100)
	b.WriteString(conflictStyles.Status.Render(fmt.Sprintf("Scroll: %d%%", scrollPercent)))
	b.WriteString("\n")
	b.WriteString(conflictStyles.Help.Render("↑/↓ scroll • l local • r remote • x skip • b back • q quit"))
	return b.String()
}

func (m ConflictListModel) renderShortHelp() string {
	keys := []string{
		"↑/↓ navigate",
		"enter diff",
		"l local",
		"r remote",
		"x skip",
		"y apply",
		"? help",
		"q quit",
	}
	return conflictStyles.Help.Render(strings.Join(keys, " • "))
}

func (m ConflictListModel) renderFullHelp() string {
	help := `Navigation:
  ↑/k      Move up
  ↓/j      Move down
  Enter    View value diff

Resolution:
  l/1      Keep the local value
  r/2      Take the remote value
  x        Clear the choice (skip)

Actions:
  y        Apply chosen resolutions
  b/Esc    Cancel

General:
  ?        Toggle full help
  q        Quit`
	return conflictStyles.Help.Render(help)
}

// Result returns the outcome of the user interaction.
func (m ConflictListModel) Result() ConflictListResult {
	return m.result
}

// RunConflictList runs the interactive resolver and returns the result.
func RunConflictList(conflicts []ConflictItem) (ConflictListResult, error) {
	if len(conflicts) == 0 {
		return ConflictListResult{}, nil
	}

	mdl := NewConflictListModel(conflicts)
	finalModel, err := tea.NewProgram(mdl, tea.WithAltScreen()).Run()
	if err != nil {
		return ConflictListResult{}, err
	}
	if m, ok := finalModel.(ConflictListModel); ok {
		return m.Result(), nil
	}
	return ConflictListResult{}, nil
}
