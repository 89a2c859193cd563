package cli

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/apresai/voicestudio/internal/audio"
	"github.com/apresai/voicestudio/internal/history"
	"github.com/apresai/voicestudio/internal/ingest"
	"github.com/apresai/voicestudio/internal/llm"
	"github.com/apresai/voicestudio/internal/studio"
	"github.com/apresai/voicestudio/internal/voice"
)

// menuItem represents a single configurable option in the TUI.
type menuItem struct {
	label   string
	value   string
	options []menuOption
	editing bool
	cursor  int // cursor within options when editing
}

type menuOption struct {
	label string
	value string
}

// menuState tracks which phase the TUI is in.
type menuState int

const (
	stateMenu menuState = iota
	stateEditing
)

// style constants
var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#7D56F4")).
			MarginBottom(1)

	menuLabelStyle = lipgloss.NewStyle().
			Width(14).
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

	statusStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#04B575"))

	headerBorder = lipgloss.NewStyle().
			BorderStyle(lipgloss.NormalBorder()).
			BorderBottom(true).
			BorderForeground(lipgloss.Color("#7D56F4")).
			MarginBottom(1).
			PaddingBottom(0)

	historyBox = lipgloss.NewStyle().
			BorderStyle(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("#555555")).
			Padding(0, 1).
			MarginTop(1)
)

const (
	idxScript = iota
	idxMode
	idxVoice
	idxTranslate
	idxFormat
	idxGenerate
	idxReport
	idxBrief
)

// historyRows is how many clips the history pane shows.
const historyRows = 8

const noTranslation = ""

func buildSessionItems() []menuItem {
	cat := voice.Default()
	voiceOpts := make([]menuOption, 0, len(cat.Infos()))
	for _, info := range cat.Infos() {
		voiceOpts = append(voiceOpts, menuOption{label: fmt.Sprintf("%s - %s", info.ID, info.Description), value: string(info.ID)})
	}

	langOpts := []menuOption{{label: "번역 안 함", value: noTranslation}}
	for _, l := range llm.Languages() {
		langOpts = append(langOpts, menuOption{label: fmt.Sprintf("%s (%s)", l.Label, l.Name), value: l.Name})
	}

	formatOpts := make([]menuOption, 0, len(audio.FormatNames()))
	for _, f := range audio.FormatNames() {
		formatOpts = append(formatOpts, menuOption{label: f, value: f})
	}

	items := []menuItem{
		{label: "Script"},
		{
			label: "Voice mode",
			value: "rule",
			options: []menuOption{
				{label: "Rule-based recommendation (default)", value: "rule"},
				{label: "Manual", value: "manual"},
				{label: "LLM recommendation", value: "llm"},
			},
		},
		{label: "Voice", value: string(cat.Default()), options: voiceOpts},
		{label: "Translate", value: noTranslation, options: langOpts},
		{label: "Format", value: string(audio.FormatMP3), options: formatOpts},
		{label: ">>> Generate <<<"},
		{label: "Report"},
		{label: ">>> Brief <<<"},
	}
	for i := range items {
		selectCurrent(&items[i])
	}
	return items
}

func selectCurrent(item *menuItem) {
	for j, opt := range item.options {
		if opt.value == item.value {
			item.cursor = j
			return
		}
	}
}

type clipDoneMsg struct {
	rec history.ClipRecord
	err error
}

type briefDoneMsg struct {
	res studio.BriefResult
	err error
}

// sessionModel is one interactive session. It owns the session's history;
// nothing else appends to it.
type sessionModel struct {
	ctx     context.Context
	gen     func(context.Context, studio.Request) (history.ClipRecord, error)
	brief   func(context.Context, studio.BriefRequest) (studio.BriefResult, error)
	history *history.History

	items   []menuItem
	cursor  int
	state   menuState
	width   int
	busy    bool
	status  string
	summary string
	err     error
}

func newSessionModel(ctx context.Context, a *app) sessionModel {
	return sessionModel{
		ctx:     ctx,
		gen:     a.orch.Generate,
		brief:   a.briefer.Brief,
		history: history.New(),
		items:   buildSessionItems(),
	}
}

func (m sessionModel) Init() tea.Cmd {
	return nil
}

func (m sessionModel) isTextInput(idx int) bool {
	return idx == idxScript || idx == idxReport
}

func (m sessionModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		return m, nil

	case clipDoneMsg:
		m.busy = false
		if msg.err != nil {
			m.err = msg.err
			return m, nil
		}
		m.history.Append(msg.rec)
		m.status = fmt.Sprintf("Saved %s (voice=%s)", msg.rec.Path, msg.rec.Voice)
		return m, nil

	case briefDoneMsg:
		m.busy = false
		if msg.err != nil {
			m.err = msg.err
			return m, nil
		}
		if msg.res.Warning != nil {
			m.err = msg.res.Warning
			return m, nil
		}
		m.summary = msg.res.Summary
		if msg.res.Record != nil {
			m.history.Append(*msg.res.Record)
			m.status = fmt.Sprintf("Briefing saved %s (%d characters read)", msg.res.Record.Path, msg.res.CharCount)
		}
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

func (m sessionModel) updateMenu(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "ctrl+c", "q":
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
		if m.busy {
			return m, nil
		}
		switch m.cursor {
		case idxGenerate:
			req, err := m.request()
			if err != nil {
				m.err = err
				return m, nil
			}
			m.start("Generating...")
			return m, m.generateCmd(req)
		case idxBrief:
			req, err := m.briefRequest()
			if err != nil {
				m.err = err
				return m, nil
			}
			m.start("Summarizing report...")
			return m, m.briefCmd(req)
		}

		if m.isTextInput(m.cursor) || len(m.items[m.cursor].options) > 0 {
			m.state = stateEditing
			m.items[m.cursor].editing = true
			m.err = nil
		}
	}
	return m, nil
}

func (m *sessionModel) start(status string) {
	m.busy = true
	m.err = nil
	m.status = status
}

func (m sessionModel) updateEditing(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	idx := m.cursor
	item := &m.items[idx]

	if m.isTextInput(idx) {
		switch msg.String() {
		case "enter", "esc":
			item.editing = false
			m.state = stateMenu
			return m, nil
		case "ctrl+j":
			item.value += "\n"
			return m, nil
		case "backspace":
			if r := []rune(item.value); len(r) > 0 {
				item.value = string(r[:len(r)-1])
			}
			return m, nil
		case "ctrl+u":
			item.value = ""
			return m, nil
		default:
			// Accept typed characters and pasted text
			if msg.Type == tea.KeyRunes || msg.Type == tea.KeySpace {
				item.value += string(msg.Runes)
			}
			return m, nil
		}
	}

	switch msg.String() {
	case "enter", " ":
		if item.cursor >= 0 && item.cursor < len(item.options) {
			item.value = item.options[item.cursor].value
		}
		item.editing = false
		m.state = stateMenu
		if m.cursor < len(m.items)-1 {
			m.cursor++
		}
		return m, nil

	case "esc":
		item.editing = false
		selectCurrent(item)
		m.state = stateMenu
		return m, nil

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

// request builds a generation request from the menu. Voice and format are
// validated by Generate.
func (m sessionModel) request() (studio.Request, error) {
	mode, err := studio.ParseMode(m.items[idxMode].value, m.items[idxVoice].value)
	if err != nil {
		return studio.Request{}, err
	}
	return studio.Request{
		Text:        m.items[idxScript].value,
		Mode:        mode,
		TranslateTo: m.items[idxTranslate].value,
		Format:      audio.Format(m.items[idxFormat].value),
		Source:      history.SourceText,
	}, nil
}

func (m sessionModel) briefRequest() (studio.BriefRequest, error) {
	source := strings.TrimSpace(m.items[idxReport].value)
	if source == "" {
		return studio.BriefRequest{}, fmt.Errorf("%w: no report given", ingest.ErrExtractionFailed)
	}
	kind, err := ingest.DetectSource(source)
	if err != nil {
		return studio.BriefRequest{}, err
	}
	req := studio.BriefRequest{
		FileName: filepath.Base(source),
		Kind:     kind,
		Format:   audio.Format(m.items[idxFormat].value),
	}
	if kind == ingest.KindURL {
		// Fetched in briefCmd off the UI goroutine.
		req.FileName = source
		return req, nil
	}
	data, err := os.ReadFile(source)
	if err != nil {
		return studio.BriefRequest{}, fmt.Errorf("%w: %w", ingest.ErrExtractionFailed, err)
	}
	req.Data = data
	return req, nil
}

func (m sessionModel) generateCmd(req studio.Request) tea.Cmd {
	ctx, gen := m.ctx, m.gen
	return func() tea.Msg {
		rec, err := gen(ctx, req)
		return clipDoneMsg{rec: rec, err: err}
	}
}

func (m sessionModel) briefCmd(req studio.BriefRequest) tea.Cmd {
	ctx, brief := m.ctx, m.brief
	return func() tea.Msg {
		if req.Kind == ingest.KindURL && req.Content == nil {
			content, err := ingest.NewExtractor(nil).Ingest(ctx, req.FileName)
			if err != nil {
				return briefDoneMsg{err: err}
			}
			req.Content = content
		}
		res, err := brief(ctx, req)
		return briefDoneMsg{res: res, err: err}
	}
}

func (m sessionModel) View() string {
	var b strings.Builder

	b.WriteString(headerBorder.Render(titleStyle.Render("Voice Studio")))
	b.WriteString("\n")

	for i, item := range m.items {
		isActive := m.cursor == i

		if i == idxGenerate || i == idxBrief {
			label := " Generate "
			if i == idxBrief {
				label = " Summarize & read "
			}
			b.WriteString("\n")
			if isActive {
				b.WriteString("  " + buttonStyle.Render(label))
			} else {
				b.WriteString("  " + buttonDimStyle.Render(label))
			}
			b.WriteString("\n\n")
			continue
		}

		cursor := "  "
		if isActive {
			cursor = cursorStyle.Render("> ")
		}
		renderedLabel := menuLabelStyle.Render(item.label)

		var renderedValue string
		switch {
		case item.editing && m.isTextInput(i):
			renderedValue = menuValueStyle.Render(item.value + "_")
		case item.value == "" && len(item.options) > 0:
			renderedValue = menuValueDimStyle.Render(item.options[0].label)
		case item.value == "":
			placeholder := "(type a script)"
			if i == idxReport {
				placeholder = "(pdf, docx or txt path, or a URL)"
			}
			renderedValue = menuValueDimStyle.Render(placeholder)
		default:
			displayVal := item.value
			for _, opt := range item.options {
				if opt.value == item.value {
					displayVal = opt.label
					break
				}
			}
			if i == idxVoice && m.items[idxMode].value != "manual" {
				displayVal += menuValueDimStyle.Render("  (manual mode only)")
			}
			renderedValue = menuValueStyle.Render(displayVal)
		}

		b.WriteString(cursor + renderedLabel + " " + renderedValue + "\n")

		if item.editing && len(item.options) > 0 {
			for j, opt := range item.options {
				if j == item.cursor {
					b.WriteString(selectedOptionStyle.Render("> "+opt.label) + "\n")
				} else {
					b.WriteString(optionStyle.Render("  "+opt.label) + "\n")
				}
			}
		}
	}

	if m.status != "" {
		b.WriteString("\n" + statusStyle.Render("  "+m.status) + "\n")
	}
	if m.err != nil {
		b.WriteString("\n" + errorStyle.Render("  "+studio.Describe(m.err)) + "\n")
	}
	if m.summary != "" {
		b.WriteString("\n  핵심 요약\n")
		for _, line := range strings.Split(m.summary, "\n") {
			b.WriteString("  " + line + "\n")
		}
	}

	b.WriteString(historyBox.Render(renderHistory(m.history, historyRows)))
	b.WriteString("\n")

	switch m.state {
	case stateMenu:
		b.WriteString(helpStyle.Render("  j/k or arrows to navigate | enter to edit | q to quit"))
	case stateEditing:
		if m.isTextInput(m.cursor) {
			b.WriteString(helpStyle.Render("  type value | ctrl+j new line | enter to confirm | ctrl+u to clear"))
		} else {
			b.WriteString(helpStyle.Render("  j/k or arrows to pick | enter to select | esc to cancel"))
		}
	}
	b.WriteString("\n")

	return b.String()
}

// renderHistory lists up to limit clips, newest first.
func renderHistory(h *history.History, limit int) string {
	if h.IsEmpty() {
		return "아직 생성된 오디오가 없습니다."
	}
	var b strings.Builder
	fmt.Fprintf(&b, "Clips (%d, newest first)\n", h.Len())
	n := 0
	for rec := range h.Recent() {
		if n == limit {
			fmt.Fprintf(&b, "  ... %d more\n", h.Len()-limit)
			break
		}
		fmt.Fprintf(&b, "  %s  %-7s %-4s %s [%s]\n", rec.Timestamp.Format("15:04:05"), rec.Voice, rec.Format, rec.Path, rec.Source.Label())
		fmt.Fprintf(&b, "     %s\n", strings.ReplaceAll(rec.TextPreview, "\n", " "))
		n++
	}
	return strings.TrimRight(b.String(), "\n")
}

func runSession(cmd *cobra.Command, args []string) error {
	probe, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	// Chat features light up only when their key is present; selecting them
	// without one surfaces a described error in the session.
	a, err := newApp(cmd.Context(), cmd, appOptions{needLLM: probe.LLMReady()})
	if err != nil {
		return err
	}
	defer a.close()

	p := tea.NewProgram(newSessionModel(cmd.Context(), a), tea.WithAltScreen(), tea.WithContext(cmd.Context()))
	if _, err := p.Run(); err != nil {
		return fmt.Errorf("TUI error: %w", err)
	}
	return nil
}
