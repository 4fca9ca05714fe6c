package review

import (
	"context"
	"fmt"
	"os/exec"
	"runtime"
	"strings"

	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/jobtailor/jobtailor/internal/model"
)

// Lines per record item in the list view (title + subtitle + blank separator).
const recordItemHeight = 3

type viewState int

const (
	viewList viewState = iota
	viewDetail
)

var (
	activeBorderStyle = lipgloss.NewStyle().
				Border(lipgloss.RoundedBorder()).
				BorderForeground(lipgloss.Color("39")) // bright blue

	inactiveBorderStyle = lipgloss.NewStyle().
				Border(lipgloss.RoundedBorder()).
				BorderForeground(lipgloss.Color("240")) // dim gray

	headerStyle = lipgloss.NewStyle().
			Bold(true).
			Padding(0, 1)

	activeHeaderStyle = headerStyle.
				Foreground(lipgloss.Color("39"))

	inactiveHeaderStyle = headerStyle.
				Foreground(lipgloss.Color("240"))

	statusBarStyle = lipgloss.NewStyle().
			Padding(0, 1).
			Foreground(lipgloss.Color("252")).
			Background(lipgloss.Color("236"))

	recordTitleStyle = lipgloss.NewStyle().
				Bold(true)

	recordSubtitleStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("245"))

	selectedTitleStyle = lipgloss.NewStyle().
				Bold(true).
				Foreground(lipgloss.Color("15")). // bright white
				Background(lipgloss.Color("24"))  // dark blue bg

	selectedSubtitleStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("252")).
				Background(lipgloss.Color("24"))

	detailLabelStyle = lipgloss.NewStyle().
				Bold(true).
				Foreground(lipgloss.Color("39")).
				Width(16)

	detailValueStyle = lipgloss.NewStyle()

	detailTitleStyle = lipgloss.NewStyle().
				Bold(true).
				Foreground(lipgloss.Color("15")).
				MarginBottom(1)

	dividerStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("240"))

	hintStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("245")).
			Italic(true)

	bodyStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("252"))

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("196"))
)

// flagToggledMsg is sent when an async store write completes.
type flagToggledMsg struct {
	key    model.RecordKey
	fields model.Fields
	err    error
}

type reviewModel struct {
	store model.RecordStore

	allRecords          []model.JobRecord
	shortlist           []model.JobRecord
	checkSustainability bool

	leftViewport  viewport.Model
	rightViewport viewport.Model
	activePane    int // 0=left, 1=right
	leftCursor    int
	rightCursor   int
	width         int
	height        int
	ready         bool

	view           viewState
	detailRecord   model.JobRecord
	detailViewport viewport.Model
	showAnalysis   bool
	writeError     string
}

func (m reviewModel) Init() tea.Cmd {
	return nil
}

func (m reviewModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
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

	case flagToggledMsg:
		if msg.err != nil {
			m.writeError = fmt.Sprintf("saving flag failed: %v", msg.err)
		} else {
			m.writeError = ""
			m.applyFlagLocally(msg.key, msg.fields)
		}
		if m.view == viewDetail {
			m.detailViewport.SetContent(m.renderDetail())
		}
		m.recalcContent()
		return m, nil

	case tea.KeyMsg:
		if m.view == viewDetail {
			return m.updateDetailView(msg)
		}
		return m.updateListView(msg)
	}

	return m, nil
}

func (m reviewModel) updateListView(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q", "ctrl+c", "esc":
		return m, tea.Quit
	case "tab", "left", "right":
		m.activePane = 1 - m.activePane
		m.recalcContent()
		return m, nil
	case "up", "k":
		m.moveCursor(-1)
		m.recalcContent()
		m.ensureCursorVisible()
		return m, nil
	case "down", "j":
		m.moveCursor(1)
		m.recalcContent()
		m.ensureCursorVisible()
		return m, nil
	case "enter":
		return m.openDetailView()
	}

	// Forward other keys (pgup/pgdn/home/end) to the active viewport.
	var cmd tea.Cmd
	if m.activePane == 0 {
		m.leftViewport, cmd = m.leftViewport.Update(msg)
	} else {
		m.rightViewport, cmd = m.rightViewport.Update(msg)
	}
	return m, cmd
}

func (m reviewModel) updateDetailView(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q", "ctrl+c":
		return m, tea.Quit
	case "esc", "backspace":
		m.view = viewList
		m.recalcContent()
		return m, nil
	case "o":
		openURL(m.detailRecord.JobURL)
		return m, nil
	case "r":
		if m.detailRecord.JobAnalysis != "" {
			m.showAnalysis = !m.showAnalysis
			m.detailViewport.SetContent(m.renderDetail())
			m.detailViewport.SetYOffset(0)
		}
		return m, nil
	case "a":
		return m, m.toggleFlagCmd(model.FieldApplied, !m.detailRecord.Applied)
	case "x":
		return m, m.toggleFlagCmd(model.FieldBadAnalysis, !m.detailRecord.BadAnalysis)
	}

	var cmd tea.Cmd
	m.detailViewport, cmd = m.detailViewport.Update(msg)
	return m, cmd
}

func (m reviewModel) toggleFlagCmd(field string, value bool) tea.Cmd {
	store := m.store
	key := m.detailRecord.Key()
	fields := model.Fields{field: value}
	return func() tea.Msg {
		_, err := store.UpdateByKey(context.Background(), key, fields)
		return flagToggledMsg{key: key, fields: fields, err: err}
	}
}

// applyFlagLocally mirrors a confirmed store write into the in-memory lists
// so the UI never shows state the database does not have.
func (m *reviewModel) applyFlagLocally(key model.RecordKey, fields model.Fields) {
	apply := func(r *model.JobRecord) {
		for name, value := range fields {
			switch name {
			case model.FieldApplied:
				r.Applied = value.(bool)
			case model.FieldBadAnalysis:
				r.BadAnalysis = value.(bool)
			}
		}
	}
	if m.detailRecord.Key() == key {
		apply(&m.detailRecord)
	}
	for i := range m.allRecords {
		if m.allRecords[i].Key() == key {
			apply(&m.allRecords[i])
		}
	}
	for i := range m.shortlist {
		if m.shortlist[i].Key() == key {
			apply(&m.shortlist[i])
		}
	}
}

func (m *reviewModel) moveCursor(delta int) {
	if m.activePane == 0 {
		m.leftCursor = clamp(m.leftCursor+delta, 0, max(len(m.allRecords)-1, 0))
	} else {
		m.rightCursor = clamp(m.rightCursor+delta, 0, max(len(m.shortlist)-1, 0))
	}
}

func (m *reviewModel) ensureCursorVisible() {
	var vp *viewport.Model
	var cursor int
	if m.activePane == 0 {
		vp = &m.leftViewport
		cursor = m.leftCursor
	} else {
		vp = &m.rightViewport
		cursor = m.rightCursor
	}

	cursorTop := cursor * recordItemHeight
	cursorBottom := cursorTop + recordItemHeight - 1

	if cursorTop < vp.YOffset {
		vp.SetYOffset(cursorTop)
	} else if cursorBottom >= vp.YOffset+vp.Height {
		vp.SetYOffset(cursorBottom - vp.Height + 1)
	}
}

func (m reviewModel) openDetailView() (tea.Model, tea.Cmd) {
	records := m.activeRecords()
	cursor := m.activeCursor()
	if len(records) == 0 {
		return m, nil
	}

	m.view = viewDetail
	m.detailRecord = records[cursor]
	m.showAnalysis = false
	m.writeError = ""
	m.detailViewport = viewport.New(m.width-4, m.height-4)
	m.detailViewport.SetContent(m.renderDetail())
	return m, nil
}

func (m *reviewModel) recalcLayout() {
	// 2 border chars per pane + 1 gap between panes.
	paneWidth := max((m.width-5)/2, 20)

	// Header (1 line) + border top/bottom (2) + status bar (1) = 4 lines overhead.
	paneHeight := max(m.height-4, 5)

	if !m.ready {
		m.leftViewport = viewport.New(paneWidth, paneHeight)
		m.rightViewport = viewport.New(paneWidth, paneHeight)
		m.ready = true
	} else {
		m.leftViewport.Width = paneWidth
		m.leftViewport.Height = paneHeight
		m.rightViewport.Width = paneWidth
		m.rightViewport.Height = paneHeight
	}

	m.recalcContent()
}

func (m *reviewModel) recalcContent() {
	m.leftViewport.SetContent(renderRecords(m.allRecords, m.leftCursor, m.activePane == 0))
	m.rightViewport.SetContent(renderRecords(m.shortlist, m.rightCursor, m.activePane == 1))
}

func (m reviewModel) activeRecords() []model.JobRecord {
	if m.activePane == 0 {
		return m.allRecords
	}
	return m.shortlist
}

func (m reviewModel) activeCursor() int {
	if m.activePane == 0 {
		return m.leftCursor
	}
	return m.rightCursor
}

func (m reviewModel) View() string {
	if !m.ready {
		return "Initializing..."
	}

	if m.view == viewDetail {
		return m.viewDetail()
	}

	return m.viewList()
}

func (m reviewModel) viewList() string {
	paneWidth := m.leftViewport.Width

	leftHeader := fmt.Sprintf(" Jobs (%d)", len(m.allRecords))
	rightHeader := fmt.Sprintf(" Shortlist (%d)", len(m.shortlist))

	var leftHeaderRendered, rightHeaderRendered string
	var leftBorder, rightBorder lipgloss.Style

	if m.activePane == 0 {
		leftHeaderRendered = activeHeaderStyle.Render(leftHeader)
		rightHeaderRendered = inactiveHeaderStyle.Render(rightHeader)
		leftBorder = activeBorderStyle.Width(paneWidth)
		rightBorder = inactiveBorderStyle.Width(paneWidth)
	} else {
		leftHeaderRendered = inactiveHeaderStyle.Render(leftHeader)
		rightHeaderRendered = activeHeaderStyle.Render(rightHeader)
		leftBorder = inactiveBorderStyle.Width(paneWidth)
		rightBorder = activeBorderStyle.Width(paneWidth)
	}

	leftPane := leftBorder.Render(m.leftViewport.View())
	rightPane := rightBorder.Render(m.rightViewport.View())

	headerRow := lipgloss.JoinHorizontal(lipgloss.Top,
		lipgloss.NewStyle().Width(paneWidth+2).Render(leftHeaderRendered),
		" ",
		lipgloss.NewStyle().Width(paneWidth+2).Render(rightHeaderRendered),
	)

	panes := lipgloss.JoinHorizontal(lipgloss.Top, leftPane, " ", rightPane)

	statusText := fmt.Sprintf(" %d visible | %d shortlisted    ←/→/Tab switch  ↑/↓ cursor  Enter detail  q quit",
		len(m.allRecords), len(m.shortlist))
	statusBar := statusBarStyle.Width(m.width).Render(statusText)

	return headerRow + "\n" + panes + "\n" + statusBar
}

func (m reviewModel) viewDetail() string {
	title := detailTitleStyle.Render("Job Record")

	border := activeBorderStyle.Width(m.width - 2)
	content := border.Render(m.detailViewport.View())

	statusText := " o open URL  a applied  x bad analysis  esc back  ↑/↓ scroll  q quit"
	if m.detailRecord.JobAnalysis != "" {
		statusText = " o open URL  r analysis  a applied  x bad analysis  esc back  ↑/↓ scroll  q quit"
	}
	statusBar := statusBarStyle.Width(m.width).Render(statusText)

	return title + "\n" + content + "\n" + statusBar
}

func (m reviewModel) renderDetail() string {
	r := m.detailRecord
	var b strings.Builder

	addField := func(label, value string) {
		if value == "" {
			return
		}
		b.WriteString(detailLabelStyle.Render(label))
		b.WriteString(detailValueStyle.Render(value))
		b.WriteByte('\n')
	}

	addField("Title", r.JobTitle)
	addField("Company", r.Company)
	addField("Location", r.Location)
	addField("Fit Score", r.FitScore.String())
	if m.checkSustainability {
		addField("Sustainable", r.Sustainable.String())
	}
	if r.SustainabilityKeywordMatches != "" {
		addField("Keyword Hits", r.SustainabilityKeywordMatches)
	}

	b.WriteByte('\n')
	addField("Job URL", r.JobURL)
	if r.TailoredResumeRef != "" {
		addField("Resume", r.TailoredResumeRef)
	}

	var flags []string
	if r.Applied {
		flags = append(flags, "applied")
	}
	if r.BadAnalysis {
		flags = append(flags, "bad analysis")
	}
	if r.Expired {
		flags = append(flags, "expired")
	}
	if len(flags) > 0 {
		addField("Flags", strings.Join(flags, ", "))
	}

	if m.writeError != "" {
		b.WriteByte('\n')
		b.WriteString(errorStyle.Render("⚠ "+m.writeError) + "\n")
	}

	wrapWidth := max(m.width-8, 20)
	divider := func(label string) string {
		fill := strings.Repeat("─", max(wrapWidth-len(label), 3))
		return dividerStyle.Render(label + fill)
	}

	if r.JobAnalysis != "" {
		b.WriteByte('\n')
		if m.showAnalysis {
			b.WriteString(divider("── Fit Analysis ") + "\n\n")
			b.WriteString(bodyStyle.Render(wordWrap(r.JobAnalysis, wrapWidth)) + "\n")
		} else {
			b.WriteString(hintStyle.Render("  press r to read the fit analysis") + "\n")
		}
	}

	if r.TailoredCoverLetter != "" {
		b.WriteByte('\n')
		b.WriteString(divider("── Cover Letter ") + "\n\n")
		b.WriteString(bodyStyle.Render(wordWrap(r.TailoredCoverLetter, wrapWidth)) + "\n")
	}

	return b.String()
}

func renderRecords(records []model.JobRecord, cursor int, isActive bool) string {
	if len(records) == 0 {
		return "  (no records)"
	}

	var b strings.Builder
	for i := range records {
		r := &records[i]
		isSelected := isActive && i == cursor

		titleSt := recordTitleStyle
		subtitleSt := recordSubtitleStyle
		prefix := "  "
		if isSelected {
			titleSt = selectedTitleStyle
			subtitleSt = selectedSubtitleStyle
			prefix = "> "
		}

		b.WriteString(prefix)
		b.WriteString(titleSt.Render(r.JobTitle))
		b.WriteByte('\n')

		score := r.FitScore.String()
		if score == "" {
			score = "unscored"
		}
		b.WriteString(prefix)
		b.WriteString(subtitleSt.Render(fmt.Sprintf("%s · %s · %s", r.Company, r.Location, score)))
		b.WriteByte('\n')

		if i < len(records)-1 {
			b.WriteByte('\n')
		}
	}
	return b.String()
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

// Run loads all records and launches the interactive review TUI. Records
// arrive pre-sorted best-first; the shortlist pane shows the ones with a
// qualifying score.
func Run(ctx context.Context, store model.RecordStore, checkSustainability bool) error {
	records, err := store.GetAll(ctx)
	if err != nil {
		return err
	}

	m := reviewModel{
		store:               store,
		checkSustainability: checkSustainability,
	}
	for _, r := range records {
		if visible(&r, checkSustainability) {
			m.allRecords = append(m.allRecords, r)
		}
		if r.HasQualifyingScore() && !r.Excluded() {
			m.shortlist = append(m.shortlist, r)
		}
	}

	p := tea.NewProgram(m, tea.WithAltScreen())
	_, err = p.Run()
	return err
}

// visible mirrors the pipeline's default review filter.
func visible(r *model.JobRecord, checkSustainability bool) bool {
	if r.Excluded() {
		return false
	}
	switch r.FitScore {
	case model.VeryPoorFit, model.PoorFit, model.QuestionableFit, model.ModerateFit:
		return false
	}
	if checkSustainability && r.Sustainable == model.Unsustainable {
		return false
	}
	return true
}
