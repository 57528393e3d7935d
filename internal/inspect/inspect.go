// Package inspect provides an interactive terminal browser over the scan
// database: every tracked posting, its content versions, and its alert
// history. It is read-only and safe to run next to a live scanner.
package inspect

import (
	"context"
	"fmt"
	"os/exec"
	"runtime"
	"strings"

	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/avasilyev/jobscout/internal/model"
)

// StoreReader is the read-only slice of the store the browser needs.
type StoreReader interface {
	ListPostings(ctx context.Context) ([]model.Posting, error)
	AlertsForPosting(ctx context.Context, jobKey string) ([]model.AlertRecord, error)
	ListSources(ctx context.Context) ([]model.SourceStatus, error)
}

// Lines per posting item in the list view (title + subtitle + blank separator).
const itemHeight = 3

type viewState int

const (
	viewList viewState = iota
	viewDetail
	viewSources
)

var (
	activeBorderStyle = lipgloss.NewStyle().
				Border(lipgloss.RoundedBorder()).
				BorderForeground(lipgloss.Color("39"))

	headerStyle = lipgloss.NewStyle().
			Bold(true).
			Padding(0, 1).
			Foreground(lipgloss.Color("39"))

	statusBarStyle = lipgloss.NewStyle().
			Padding(0, 1).
			Foreground(lipgloss.Color("252")).
			Background(lipgloss.Color("236"))

	titleStyle = lipgloss.NewStyle().
			Bold(true)

	subtitleStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("245"))

	selectedTitleStyle = lipgloss.NewStyle().
				Bold(true).
				Foreground(lipgloss.Color("15")).
				Background(lipgloss.Color("24"))

	selectedSubtitleStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("252")).
				Background(lipgloss.Color("24"))

	labelStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("39")).
			Width(14)

	dividerStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("240"))

	hintStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("245")).
			Italic(true)

	bodyStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("252"))

	errStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("196"))
)

// alertsLoadedMsg is sent when the async alert-history load completes.
type alertsLoadedMsg struct {
	jobKey string
	alerts []model.AlertRecord
	err    error
}

// sourcesLoadedMsg is sent when the async source-health load completes.
type sourcesLoadedMsg struct {
	sources []model.SourceStatus
	err     error
}

type browserModel struct {
	reader   StoreReader
	postings []model.Posting

	listViewport   viewport.Model
	detailViewport viewport.Model
	cursor         int
	width          int
	height         int
	ready          bool

	view            viewState
	detail          model.Posting
	detailAlerts    []model.AlertRecord
	alertsLoading   bool
	alertsError     string
	showDescription bool

	sources        []model.SourceStatus
	sourcesLoading bool
	sourcesError   string
}

func (m browserModel) Init() tea.Cmd {
	return nil
}

func (m browserModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.recalcLayout()
		if m.view == viewDetail {
			m.detailViewport.Width = m.width - 4
			m.detailViewport.Height = m.height - 4
			m.detailViewport.SetContent(m.renderDetail())
		}
		return m, nil

	case alertsLoadedMsg:
		if msg.jobKey != m.detail.JobKey {
			return m, nil
		}
		m.alertsLoading = false
		if msg.err != nil {
			m.alertsError = fmt.Sprintf("failed to load alert history: %v", msg.err)
		} else {
			m.alertsError = ""
			m.detailAlerts = msg.alerts
		}
		m.detailViewport.SetContent(m.renderDetail())
		return m, nil

	case sourcesLoadedMsg:
		m.sourcesLoading = false
		if msg.err != nil {
			m.sourcesError = fmt.Sprintf("failed to load sources: %v", msg.err)
		} else {
			m.sourcesError = ""
			m.sources = msg.sources
		}
		if m.view == viewSources {
			m.detailViewport.SetContent(m.renderSources())
		}
		return m, nil

	case tea.KeyMsg:
		switch m.view {
		case viewDetail:
			return m.updateDetailView(msg)
		case viewSources:
			return m.updateSourcesView(msg)
		}
		return m.updateListView(msg)
	}

	return m, nil
}

func (m browserModel) updateListView(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q", "ctrl+c", "esc":
		return m, tea.Quit
	case "up", "k":
		m.moveCursor(-1)
		return m, nil
	case "down", "j":
		m.moveCursor(1)
		return m, nil
	case "enter":
		return m.openDetailView()
	case "s":
		return m.openSourcesView()
	}

	var cmd tea.Cmd
	m.listViewport, cmd = m.listViewport.Update(msg)
	return m, cmd
}

func (m browserModel) updateSourcesView(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q", "ctrl+c":
		return m, tea.Quit
	case "esc", "backspace", "s":
		m.view = viewList
		return m, nil
	}

	var cmd tea.Cmd
	m.detailViewport, cmd = m.detailViewport.Update(msg)
	return m, cmd
}

func (m browserModel) openSourcesView() (tea.Model, tea.Cmd) {
	m.view = viewSources
	m.sourcesLoading = true
	m.sourcesError = ""
	m.detailViewport = viewport.New(m.width-4, m.height-4)
	m.detailViewport.SetContent(m.renderSources())

	reader := m.reader
	return m, func() tea.Msg {
		sources, err := reader.ListSources(context.Background())
		return sourcesLoadedMsg{sources: sources, err: err}
	}
}

func (m browserModel) updateDetailView(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q", "ctrl+c":
		return m, tea.Quit
	case "esc", "backspace":
		m.view = viewList
		return m, nil
	case "o":
		if m.detail.URL != "" {
			openURL(m.detail.URL)
		}
		return m, nil
	case "r":
		if m.detail.Description != "" {
			m.showDescription = !m.showDescription
			m.detailViewport.SetContent(m.renderDetail())
			m.detailViewport.SetYOffset(0)
		}
		return m, nil
	}

	var cmd tea.Cmd
	m.detailViewport, cmd = m.detailViewport.Update(msg)
	return m, cmd
}

func (m *browserModel) moveCursor(delta int) {
	m.cursor = clamp(m.cursor+delta, 0, max(len(m.postings)-1, 0))
	m.listViewport.SetContent(renderPostings(m.postings, m.cursor))
	m.ensureCursorVisible()
}

func (m *browserModel) ensureCursorVisible() {
	top := m.cursor * itemHeight
	bottom := top + itemHeight - 1
	if top < m.listViewport.YOffset {
		m.listViewport.SetYOffset(top)
	} else if bottom >= m.listViewport.YOffset+m.listViewport.Height {
		m.listViewport.SetYOffset(bottom - m.listViewport.Height + 1)
	}
}

func (m browserModel) openDetailView() (tea.Model, tea.Cmd) {
	if len(m.postings) == 0 {
		return m, nil
	}

	m.view = viewDetail
	m.detail = m.postings[m.cursor]
	m.detailAlerts = nil
	m.alertsError = ""
	m.alertsLoading = true
	m.showDescription = false
	m.detailViewport = viewport.New(m.width-4, m.height-4)
	m.detailViewport.SetContent(m.renderDetail())

	return m, m.loadAlertsCmd(m.detail.JobKey)
}

func (m browserModel) loadAlertsCmd(jobKey string) tea.Cmd {
	reader := m.reader
	return func() tea.Msg {
		alerts, err := reader.AlertsForPosting(context.Background(), jobKey)
		return alertsLoadedMsg{jobKey: jobKey, alerts: alerts, err: err}
	}
}

func (m *browserModel) recalcLayout() {
	width := max(m.width-2, 20)
	// Header (1) + border (2) + status bar (1).
	height := max(m.height-4, 5)

	if !m.ready {
		m.listViewport = viewport.New(width, height)
		m.ready = true
	} else {
		m.listViewport.Width = width
		m.listViewport.Height = height
	}
	m.listViewport.SetContent(renderPostings(m.postings, m.cursor))
}

func (m browserModel) View() string {
	if !m.ready {
		return "Initializing..."
	}
	switch m.view {
	case viewDetail:
		return m.viewDetail()
	case viewSources:
		return m.viewSources()
	}
	return m.viewList()
}

func (m browserModel) viewSources() string {
	header := headerStyle.Render(" Source Health")
	pane := activeBorderStyle.Width(m.width - 2).Render(m.detailViewport.View())
	status := statusBarStyle.Width(m.width).Render(" esc back  ↑/↓ scroll  q quit")
	return header + "\n" + pane + "\n" + status
}

func (m browserModel) renderSources() string {
	var b strings.Builder
	switch {
	case m.sourcesError != "":
		b.WriteString(errStyle.Render("⚠ " + m.sourcesError))
	case m.sourcesLoading:
		b.WriteString(hintStyle.Render("  loading..."))
	case len(m.sources) == 0:
		b.WriteString(hintStyle.Render("  no sources scanned yet"))
	default:
		for _, s := range m.sources {
			b.WriteString(titleStyle.Render(fmt.Sprintf("  %s/%s", s.Kind, s.Account)))
			if s.Name != "" {
				b.WriteString(subtitleStyle.Render("  (" + s.Name + ")"))
			}
			b.WriteByte('\n')
			if s.LastSuccessAt != nil {
				b.WriteString(bodyStyle.Render("    last success: "+s.LastSuccessAt.Format("2006-01-02 15:04 MST")) + "\n")
			}
			if s.LastErrorAt != nil {
				b.WriteString(errStyle.Render("    last error:   "+s.LastErrorAt.Format("2006-01-02 15:04 MST")) + "\n")
				if s.ErrorMessage != "" {
					b.WriteString(errStyle.Render("    "+s.ErrorMessage) + "\n")
				}
			}
			b.WriteByte('\n')
		}
	}
	return b.String()
}

func (m browserModel) viewList() string {
	header := headerStyle.Render(fmt.Sprintf(" Tracked Postings (%d)", len(m.postings)))
	pane := activeBorderStyle.Width(m.listViewport.Width).Render(m.listViewport.View())
	status := statusBarStyle.Width(m.width).Render(" ↑/↓ cursor  Enter detail  s sources  q quit")
	return header + "\n" + pane + "\n" + status
}

func (m browserModel) viewDetail() string {
	header := headerStyle.Render(" Posting Detail")
	if m.alertsLoading {
		header += hintStyle.Render("  (loading alert history...)")
	}
	pane := activeBorderStyle.Width(m.width - 2).Render(m.detailViewport.View())

	statusText := " o open URL  esc back  ↑/↓ scroll  q quit"
	if m.detail.Description != "" {
		statusText = " o open URL  r description  esc back  ↑/↓ scroll  q quit"
	}
	status := statusBarStyle.Width(m.width).Render(statusText)
	return header + "\n" + pane + "\n" + status
}

func (m browserModel) renderDetail() string {
	p := m.detail
	var b strings.Builder

	addField := func(label, value string) {
		if value == "" {
			return
		}
		b.WriteString(labelStyle.Render(label))
		b.WriteString(value)
		b.WriteByte('\n')
	}

	addField("Title", p.Title)
	addField("Company", p.Company)
	addField("Location", p.Location)
	addField("Source", p.SourceKind+"/"+p.SourceAccount)
	addField("External ID", p.ExternalID)

	b.WriteByte('\n')
	if p.PostedAt != nil {
		addField("Posted", p.PostedAt.Format("2006-01-02 15:04 MST"))
	}
	addField("First Seen", p.FirstSeenAt.Format("2006-01-02 15:04 MST"))
	addField("Last Seen", p.LastSeenAt.Format("2006-01-02 15:04 MST"))
	addField("Version", shortFingerprint(p.Fingerprint))

	b.WriteByte('\n')
	addField("URL", p.URL)

	wrapWidth := max(m.width-8, 20)
	divider := func(label string) string {
		fill := strings.Repeat("─", max(wrapWidth-len(label), 3))
		return dividerStyle.Render(label + fill)
	}

	b.WriteByte('\n')
	b.WriteString(divider("── Alert History ") + "\n\n")
	switch {
	case m.alertsError != "":
		b.WriteString(errStyle.Render("⚠ "+m.alertsError) + "\n")
	case m.alertsLoading:
		b.WriteString(hintStyle.Render("  loading...") + "\n")
	case len(m.detailAlerts) == 0:
		b.WriteString(hintStyle.Render("  never alerted") + "\n")
	default:
		for _, a := range m.detailAlerts {
			line := fmt.Sprintf("  %s  version %s",
				a.SentAt.Format("2006-01-02 15:04 MST"), shortFingerprint(a.Fingerprint))
			if a.Fingerprint == p.Fingerprint {
				line += "  (current)"
			}
			b.WriteString(bodyStyle.Render(line) + "\n")
		}
	}

	if p.Description != "" {
		b.WriteByte('\n')
		if m.showDescription {
			b.WriteString(divider("── Description ") + "\n\n")
			b.WriteString(bodyStyle.Render(wordWrap(p.Description, wrapWidth)) + "\n")
		} else {
			b.WriteString(hintStyle.Render("  press r to read the description") + "\n")
		}
	}

	return b.String()
}

func renderPostings(postings []model.Posting, cursor int) string {
	if len(postings) == 0 {
		return "  (no postings tracked yet — run a scan first)"
	}

	var b strings.Builder
	for i, p := range postings {
		titleSt := titleStyle
		subtitleSt := subtitleStyle
		prefix := "  "
		if i == cursor {
			titleSt = selectedTitleStyle
			subtitleSt = selectedSubtitleStyle
			prefix = "> "
		}

		title := p.Title
		if p.Company != "" {
			title += " · " + p.Company
		}
		b.WriteString(prefix)
		b.WriteString(titleSt.Render(title))
		b.WriteByte('\n')

		b.WriteString(prefix)
		b.WriteString(subtitleSt.Render(fmt.Sprintf("%s/%s · last seen %s",
			p.SourceKind, p.SourceAccount, p.LastSeenAt.Format("2006-01-02"))))
		b.WriteByte('\n')

		if i < len(postings)-1 {
			b.WriteByte('\n')
		}
	}
	return b.String()
}

func shortFingerprint(fp string) string {
	if len(fp) > 12 {
		return fp[:12]
	}
	return fp
}

func wordWrap(text string, width int) string {
	words := strings.Fields(text)
	if len(words) == 0 {
		return ""
	}
	var lines []string
	line := words[0]
	for _, w := range words[1:] {
		if len(line)+1+len(w) <= width {
			line += " " + w
		} else {
			lines = append(lines, line)
			line = w
		}
	}
	lines = append(lines, line)
	return strings.Join(lines, "\n")
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// openURL opens url in the default system browser, fire-and-forget.
func openURL(url string) {
	var cmd *exec.Cmd
	switch runtime.GOOS {
	case "darwin":
		cmd = exec.Command("open", url)
	case "linux":
		cmd = exec.Command("xdg-open", url)
	case "windows":
		cmd = exec.Command("cmd", "/c", "start", url)
	default:
		return
	}
	_ = cmd.Start()
}

// Run loads postings from the store and launches the browser TUI.
func Run(ctx context.Context, reader StoreReader) error {
	postings, err := reader.ListPostings(ctx)
	if err != nil {
		return fmt.Errorf("loading postings: %w", err)
	}

	m := browserModel{
		reader:   reader,
		postings: postings,
	}

	p := tea.NewProgram(m, tea.WithAltScreen())
	if _, err := p.Run(); err != nil {
		return fmt.Errorf("running inspect browser: %w", err)
	}
	return nil
}
