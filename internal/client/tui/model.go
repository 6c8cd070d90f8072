// Package tui is the terminal front end for a repair session.
package tui

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rotisserie/eris"

	"github.com/bryanwahyu/resolve-ai/internal/client/session"
	"github.com/bryanwahyu/resolve-ai/internal/client/tracker"
	"github.com/bryanwahyu/resolve-ai/internal/domain/repair"
	"github.com/bryanwahyu/resolve-ai/internal/domain/scans"

	tea "github.com/charmbracelet/bubbletea"
)

// MediaEncoder turns file paths into media items.
type MediaEncoder interface {
	EncodeFiles(ctx context.Context, paths []string) ([]repair.MediaItem, []error)
}

// Options wires the model to the rest of the client.
type Options struct {
	Encoder MediaEncoder
	// OnAPIKey stores a pasted model key and switches analysis to it.
	OnAPIKey func(ctx context.Context, key string) error
}

type inputMode int

const (
	inputNone inputMode = iota
	inputMedia
	inputQuery
	inputAPIKey
)

// Model is the root bubbletea model. Session state lives in the machine;
// the model keeps only cursor and input state.
type Model struct {
	ctx     context.Context
	session *session.Machine
	opts    Options

	width  int
	height int
	cursor int

	input  inputMode
	buffer string

	notice      string
	noticeError bool
}

func New(ctx context.Context, s *session.Machine, opts Options) Model {
	return Model{ctx: ctx, session: s, opts: opts}
}

// Run starts the program and blocks until the user quits.
func Run(ctx context.Context, s *session.Machine, opts Options) error {
	p := tea.NewProgram(New(ctx, s, opts), tea.WithAltScreen(), tea.WithContext(ctx))
	// Send blocks on the event loop, so never call it from inside Update.
	s.OnChange = func() { go p.Send(ChangedMsg{}) }
	_, err := p.Run()
	s.Close()
	if err != nil && !errors.Is(err, tea.ErrProgramKilled) {
		return eris.Wrap(err, "tui")
	}
	return nil
}

func (m Model) Init() tea.Cmd { return nil }

func encodeCmd(ctx context.Context, enc MediaEncoder, paths []string) tea.Cmd {
	return func() tea.Msg {
		items, errs := enc.EncodeFiles(ctx, paths)
		return MediaEncodedMsg{Items: items, Errors: errs}
	}
}

func historyCmd(ctx context.Context, s *session.Machine) tea.Cmd {
	return func() tea.Msg {
		if err := s.OpenHistory(ctx); err != nil {
			return ActionErrorMsg{Err: err}
		}
		return ChangedMsg{}
	}
}

func deleteHistoryCmd(ctx context.Context, s *session.Machine, id scans.ScanID) tea.Cmd {
	return func() tea.Msg {
		if err := s.DeleteHistory(ctx, id); err != nil {
			return ActionErrorMsg{Err: err}
		}
		return NoticeMsg{Text: "Scan deleted"}
	}
}

func apiKeyCmd(ctx context.Context, save func(context.Context, string) error, key string) tea.Cmd {
	return func() tea.Msg {
		if err := save(ctx, key); err != nil {
			return ActionErrorMsg{Err: err}
		}
		return NoticeMsg{Text: "API key saved on this device"}
	}
}

func clearNoticeCmd() tea.Cmd {
	return tea.Tick(4*time.Second, func(time.Time) tea.Msg { return ClearNoticeMsg{} })
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKey(msg)

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil

	case ChangedMsg:
		m.clampCursor()
		return m, nil

	case MediaEncodedMsg:
		if len(msg.Items) > 0 {
			if err := m.session.AddMedia(msg.Items...); err != nil {
				return m.fail(err)
			}
		}
		if len(msg.Errors) > 0 {
			m.notice = fmt.Sprintf("%d file(s) skipped: %s", len(msg.Errors), msg.Errors[0])
			m.noticeError = true
			return m, clearNoticeCmd()
		}
		return m, nil

	case ActionErrorMsg:
		return m.fail(msg.Err)

	case NoticeMsg:
		m.notice = msg.Text
		m.noticeError = false
		m.clampCursor()
		return m, clearNoticeCmd()

	case ClearNoticeMsg:
		m.notice = ""
		m.noticeError = false
		return m, nil
	}
	return m, nil
}

func (m Model) fail(err error) (tea.Model, tea.Cmd) {
	m.notice = userMessage(err)
	m.noticeError = true
	return m, clearNoticeCmd()
}

func userMessage(err error) string {
	switch {
	case errors.Is(err, tracker.ErrUnavailable):
		return "Voice is not available on this device"
	case errors.Is(err, session.ErrBusy):
		return "Please wait for the analysis to finish"
	}
	return err.Error()
}

func (m *Model) clampCursor() {
	n := m.listLen(m.session.Snapshot())
	if m.cursor >= n {
		m.cursor = max(0, n-1)
	}
}

func (m Model) listLen(s session.Snapshot) int {
	switch s.State {
	case session.Results:
		if s.Tracker != nil {
			return s.Tracker.Total()
		}
	case session.History:
		return len(s.History)
	case session.Collecting:
		return len(s.Media)
	}
	return 0
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if msg.String() == KeyCtrlC {
		return m, tea.Quit
	}
	if m.input != inputNone {
		return m.handleInput(msg)
	}

	snap := m.session.Snapshot()
	switch msg.String() {
	case KeyQuit:
		return m, tea.Quit
	case KeyUp, KeyK:
		if m.cursor > 0 {
			m.cursor--
		}
		return m, nil
	case KeyDown, KeyJ:
		if m.cursor < m.listLen(snap)-1 {
			m.cursor++
		}
		return m, nil
	}

	switch snap.State {
	case session.Idle, session.Collecting:
		return m.handleCollectingKey(msg, snap)
	case session.Analyzing:
		if msg.String() == KeyCancel || msg.String() == KeyEsc {
			if err := m.session.Cancel(); err != nil {
				return m.fail(err)
			}
		}
	case session.Results:
		return m.handleResultsKey(msg, snap)
	case session.Error:
		if msg.String() == KeyReset || msg.String() == KeyEnter {
			return m.reset()
		}
	case session.History:
		return m.handleHistoryKey(msg, snap)
	}
	return m, nil
}

func (m Model) handleCollectingKey(msg tea.KeyMsg, snap session.Snapshot) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case KeyAdd:
		if m.opts.Encoder == nil {
			return m, nil
		}
		m.input, m.buffer = inputMedia, ""
	case KeyRemove:
		if m.cursor < len(snap.Media) {
			if err := m.session.RemoveMedia(snap.Media[m.cursor].ID); err != nil {
				return m.fail(err)
			}
			m.clampCursor()
		}
	case KeyQuery:
		m.input, m.buffer = inputQuery, snap.Query
	case KeySkill:
		if err := m.session.SetSkill(m.ctx, nextSkill(snap.Skill)); err != nil {
			return m.fail(err)
		}
	case KeyAPIKey:
		if m.opts.OnAPIKey != nil {
			m.input, m.buffer = inputAPIKey, ""
		}
	case KeyHistory:
		if snap.State == session.Idle {
			m.cursor = 0
			return m, historyCmd(m.ctx, m.session)
		}
	case KeyEnter:
		if err := m.session.Analyze(m.ctx); err != nil {
			return m.fail(err)
		}
	case KeyReset:
		return m.reset()
	}
	return m, nil
}

func (m Model) handleResultsKey(msg tea.KeyMsg, snap session.Snapshot) (tea.Model, tea.Cmd) {
	t := snap.Tracker
	if t == nil {
		if msg.String() == KeyReset {
			return m.reset()
		}
		return m, nil
	}
	var err error
	switch msg.String() {
	case KeySpace, KeyEnter:
		if t.Total() > 0 {
			err = t.Toggle(m.cursor)
		}
	case KeyNext:
		t.Advance()
	case KeyBack:
		t.Retreat()
	case KeyNarrate:
		err = t.ToggleNarration()
	case KeyListen:
		if t.Listening() {
			t.StopListening()
		} else {
			err = t.StartListening()
		}
	case KeyReset, KeyEsc:
		return m.reset()
	}
	if err != nil {
		return m.fail(err)
	}
	return m, nil
}

func (m Model) handleHistoryKey(msg tea.KeyMsg, snap session.Snapshot) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case KeyEsc, KeyHistory:
		if err := m.session.CloseHistory(); err != nil {
			return m.fail(err)
		}
		m.cursor = 0
	case KeyEnter:
		if m.cursor < len(snap.History) {
			if err := m.session.SelectHistory(snap.History[m.cursor].ID); err != nil {
				return m.fail(err)
			}
			m.cursor = 0
		}
	case KeyDelete:
		if m.cursor < len(snap.History) {
			return m, deleteHistoryCmd(m.ctx, m.session, snap.History[m.cursor].ID)
		}
	}
	return m, nil
}

func (m Model) handleInput(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.Type {
	case tea.KeyEsc:
		m.input, m.buffer = inputNone, ""
		return m, nil
	case tea.KeyBackspace:
		if r := []rune(m.buffer); len(r) > 0 {
			m.buffer = string(r[:len(r)-1])
		}
		return m, nil
	case tea.KeySpace:
		m.buffer += " "
		return m, nil
	case tea.KeyRunes:
		m.buffer += string(msg.Runes)
		return m, nil
	case tea.KeyEnter:
	default:
		return m, nil
	}

	mode, text := m.input, m.buffer
	m.input, m.buffer = inputNone, ""
	switch mode {
	case inputMedia:
		paths := strings.Fields(text)
		if len(paths) == 0 {
			return m, nil
		}
		return m, encodeCmd(m.ctx, m.opts.Encoder, paths)
	case inputQuery:
		if err := m.session.SetQuery(text); err != nil {
			return m.fail(err)
		}
	case inputAPIKey:
		if strings.TrimSpace(text) == "" {
			return m, nil
		}
		return m, apiKeyCmd(m.ctx, m.opts.OnAPIKey, text)
	}
	return m, nil
}

func (m Model) reset() (tea.Model, tea.Cmd) {
	if err := m.session.Reset(); err != nil {
		return m.fail(err)
	}
	m.cursor = 0
	return m, nil
}

func nextSkill(cur repair.SkillLevel) repair.SkillLevel {
	levels := repair.SkillLevels()
	for i, l := range levels {
		if l == cur {
			return levels[(i+1)%len(levels)]
		}
	}
	return repair.DefaultSkillLevel
}

// View renders the screen for the current session state.
func (m Model) View() string {
	snap := m.session.Snapshot()
	var b strings.Builder

	b.WriteString(titleStyle.Render("Resolve AI"))
	b.WriteString(dimStyle.Render("  skill: " + string(snap.Skill)))
	b.WriteString("\n\n")

	switch snap.State {
	case session.Idle:
		b.WriteString(headerStyle.Render("Add photos or a video of the broken item."))
		b.WriteString("\n")
	case session.Collecting:
		b.WriteString(m.viewCollecting(snap))
	case session.Analyzing:
		b.WriteString(warnStyle.Render(fmt.Sprintf("Analyzing %d item(s)...", len(snap.Media))))
		b.WriteString("\n")
	case session.Results:
		b.WriteString(m.viewResults(snap))
	case session.Error:
		b.WriteString(errorStyle.Render("Analysis failed"))
		b.WriteString("\n")
		b.WriteString(snap.ErrorMessage)
		b.WriteString("\n")
	case session.History:
		b.WriteString(m.viewHistory(snap))
	}

	b.WriteString("\n")
	if m.input != inputNone {
		b.WriteString(m.viewInput())
		b.WriteString("\n")
	}
	if m.notice != "" {
		style := dimStyle
		if m.noticeError {
			style = errorStyle
		}
		b.WriteString(style.Render(m.notice))
		b.WriteString("\n")
	}
	b.WriteString(m.viewFooter(snap.State))
	return b.String()
}

func (m Model) viewCollecting(snap session.Snapshot) string {
	var b strings.Builder
	b.WriteString(headerStyle.Render("Media"))
	b.WriteString("\n")
	for i, it := range snap.Media {
		line := fmt.Sprintf("%s  %s (%s)", it.ID, it.Kind, it.MIMEType)
		if i == m.cursor {
			line = selectedStyle.Render("> " + line)
		} else {
			line = "  " + line
		}
		b.WriteString(line + "\n")
	}
	b.WriteString("\n")
	b.WriteString(dimStyle.Render("Question: "))
	b.WriteString(snap.Query)
	b.WriteString("\n")
	return b.String()
}

func (m Model) viewResults(snap session.Snapshot) string {
	a := snap.Result
	if a == nil {
		return ""
	}
	var b strings.Builder
	b.WriteString(headerStyle.Render(a.ObjectName))
	b.WriteString(dimStyle.Render(fmt.Sprintf("  confidence %d%%", a.ConfidenceScore)))
	if a.EstimatedTime != "" {
		b.WriteString(dimStyle.Render("  ~" + a.EstimatedTime))
	}
	b.WriteString("\n")
	if snap.LowConfidence && !a.IsHighDanger() {
		b.WriteString(warnStyle.Render("Low confidence: consider adding clearer photos."))
		b.WriteString("\n")
	}

	if a.IsHighDanger() {
		b.WriteString("\n")
		b.WriteString(dangerStyle.Render("STOP: DO NOT ATTEMPT"))
		b.WriteString("\n")
		b.WriteString(errorStyle.Render(a.SafetyWarning))
		b.WriteString("\n")
		referral := a.ProfessionalReferral
		if referral == "" {
			referral = "a professional"
		}
		b.WriteString("Contact: " + referral + "\n")
	} else if a.SafetyWarning != "" {
		b.WriteString(warnStyle.Render("Safety: " + a.SafetyWarning))
		b.WriteString("\n")
	}
	b.WriteString("\n" + dimStyle.Render(a.Reasoning) + "\n")

	if len(a.ToolsRequired) > 0 {
		b.WriteString("\n" + headerStyle.Render("Tools") + "\n")
		for _, tool := range a.ToolsRequired {
			b.WriteString("  - " + tool + "\n")
		}
		for _, sub := range a.ToolSubstitutions {
			b.WriteString(dimStyle.Render("    "+sub.String()) + "\n")
		}
	}

	t := snap.Tracker
	if t == nil || t.Total() == 0 {
		return b.String()
	}
	steps := t.Steps()
	next, hasNext := t.NextStep()
	var list strings.Builder
	for i, step := range steps {
		box := "[ ]"
		text := fmt.Sprintf("%d. %s", i+1, step)
		switch {
		case t.IsDone(i):
			box = "[x]"
			text = doneStyle.Render(text)
		case hasNext && i == next:
			text = nextStyle.Render(text)
		}
		cursor := "  "
		if i == m.cursor {
			cursor = selectedStyle.Render("> ")
		}
		list.WriteString(cursor + box + " " + text + "\n")
	}
	b.WriteString("\n" + headerStyle.Render("Steps") + "  " + progressBar(t.Progress(), 20) + "\n")
	b.WriteString(panelStyle.Render(strings.TrimRight(list.String(), "\n")))
	b.WriteString("\n")

	var status []string
	if t.Speaking() {
		status = append(status, "speaking")
	}
	if t.Listening() {
		status = append(status, "listening for next / back / stop")
	}
	if len(status) > 0 {
		b.WriteString(warnStyle.Render(strings.Join(status, " | ")) + "\n")
	}
	return b.String()
}

func progressBar(pct, width int) string {
	filled := pct * width / 100
	return progressFullStyle.Render(strings.Repeat("█", filled)) +
		progressEmptyStyle.Render(strings.Repeat("░", width-filled)) +
		fmt.Sprintf(" %d%%", pct)
}

func (m Model) viewHistory(snap session.Snapshot) string {
	var b strings.Builder
	b.WriteString(headerStyle.Render("History"))
	b.WriteString("\n")
	if len(snap.History) == 0 {
		b.WriteString(dimStyle.Render("No saved scans yet."))
		b.WriteString("\n")
		return b.String()
	}
	for i, s := range snap.History {
		line := fmt.Sprintf("%s  %s  %s", s.CreatedAt.Local().Format("2006-01-02 15:04"), s.Analysis.ObjectName, s.Analysis.DangerLevel)
		if i == m.cursor {
			line = selectedStyle.Render("> " + line)
		} else {
			line = "  " + line
		}
		b.WriteString(line + "\n")
	}
	return b.String()
}

func (m Model) viewInput() string {
	label := map[inputMode]string{
		inputMedia:  "Files (space separated): ",
		inputQuery:  "Question: ",
		inputAPIKey: "API key: ",
	}[m.input]
	value := m.buffer
	if m.input == inputAPIKey {
		value = strings.Repeat("*", len([]rune(value)))
	}
	return selectedStyle.Render(label) + value + "█"
}

func (m Model) viewFooter(state session.State) string {
	type binding struct{ key, desc string }
	var keys []binding
	switch state {
	case session.Idle:
		keys = []binding{{KeyAdd, "add media"}, {KeyHistory, "history"}, {KeySkill, "skill"}, {KeyAPIKey, "api key"}}
	case session.Collecting:
		keys = []binding{{KeyEnter, "analyze"}, {KeyAdd, "add"}, {KeyRemove, "remove"}, {KeyQuery, "question"}, {KeySkill, "skill"}, {KeyReset, "reset"}}
	case session.Analyzing:
		keys = []binding{{KeyCancel, "cancel"}}
	case session.Results:
		keys = []binding{{"space", "toggle"}, {KeyNext, "next"}, {KeyBack, "back"}, {KeyNarrate, "read aloud"}, {KeyListen, "listen"}, {KeyReset, "new scan"}}
	case session.Error:
		keys = []binding{{KeyReset, "start over"}}
	case session.History:
		keys = []binding{{KeyEnter, "open"}, {KeyDelete, "delete"}, {KeyEsc, "back"}}
	}
	keys = append(keys, binding{KeyQuit, "quit"})
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, footerKeyStyle.Render(k.key)+" "+footerDescStyle.Render(k.desc))
	}
	return strings.Join(parts, "  ")
}
