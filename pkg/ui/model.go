package ui

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/atotto/clipboard"
	"github.com/charmbracelet/bubbles/progress"
	bspinner "github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/go-go-golems/datalens/pkg/conversation"
	"github.com/go-go-golems/datalens/pkg/gallery"
	"github.com/go-go-golems/datalens/pkg/session"
	"github.com/go-go-golems/datalens/pkg/typing"
	"github.com/go-go-golems/datalens/pkg/watch"
	"github.com/rs/zerolog/log"
)

type revealTickMsg struct {
	ts time.Time
}

type progressTickMsg struct{}

type progressClearMsg struct{}

type noticeClearMsg struct {
	seq int
}

type exportFinishedMsg struct {
	dir     string
	results []gallery.Exported
	err     error
}

type watchEventMsg struct {
	event watch.Event
}

type initialUploadMsg struct {
	path string
}

type Options struct {
	Session *session.Session
	Backend *Backend

	// InitialFile is uploaded as soon as the program starts.
	InitialFile string
	// Watch delivers files to upload as they appear in a drop folder.
	Watch <-chan watch.Event

	ChartsDir        string
	NoticeDuration   time.Duration
	ProgressInterval time.Duration
	ClearDelay       time.Duration

	// Clipboard defaults to the system clipboard.
	Clipboard func(string) error
}

// Model is the chat screen. All session state changes happen in Update; the
// network calls run as tea.Cmds and come back as messages.
type Model struct {
	session *session.Session
	backend *Backend
	opts    Options

	viewport   viewport.Model
	input      textinput.Model
	spinner    bspinner.Model
	progress   progress.Model
	transcript *transcript

	showSidebar bool
	sidebar     SidebarModel
	galleryVer  uint64

	notice    session.Notice
	noticeSeq int
	exporting bool
	quitting  bool

	totalWidth  int
	totalHeight int
	leftWidth   int
	rightWidth  int
}

// NewModel builds the chat screen around opts.Session.
func NewModel(opts Options) Model {
	if opts.NoticeDuration <= 0 {
		opts.NoticeDuration = 4 * time.Second
	}
	if opts.ProgressInterval <= 0 {
		opts.ProgressInterval = 200 * time.Millisecond
	}
	if opts.ClearDelay <= 0 {
		opts.ClearDelay = time.Second
	}
	if opts.ChartsDir == "" {
		opts.ChartsDir = "charts"
	}
	if opts.Clipboard == nil {
		opts.Clipboard = clipboard.WriteAll
	}

	sp := bspinner.New()
	sp.Spinner = bspinner.Line
	sp.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("63")).Bold(true)

	ti := textinput.New()
	ti.Placeholder = "Ask about your data, or /help"
	ti.Prompt = "> "
	ti.CharLimit = 4000
	ti.Focus()

	vp := viewport.New(80, 20)
	tr := newTranscript()
	tr.setWidth(80)

	m := Model{
		session:    opts.Session,
		backend:    opts.Backend,
		opts:       opts,
		viewport:   vp,
		input:      ti,
		spinner:    sp,
		progress:   progress.New(progress.WithDefaultGradient(), progress.WithWidth(40)),
		transcript: tr,
		sidebar:    NewSidebarModel(),
		totalWidth: 80,
		leftWidth:  80,
	}
	m.refresh(false)
	return m
}

func waitForWatchEvent(ch <-chan watch.Event) tea.Cmd {
	if ch == nil {
		return nil
	}
	return func() tea.Msg {
		e, ok := <-ch
		if !ok {
			return nil
		}
		return watchEventMsg{event: e}
	}
}

func (m Model) Init() tea.Cmd {
	cmds := []tea.Cmd{textinput.Blink, m.spinner.Tick, waitForWatchEvent(m.opts.Watch)}
	if m.opts.InitialFile != "" {
		path := m.opts.InitialFile
		cmds = append(cmds, func() tea.Msg { return initialUploadMsg{path: path} })
	}
	return tea.Batch(cmds...)
}

func (m Model) busy() bool {
	return m.session.Uploading() || m.session.Sending()
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch ev := msg.(type) {
	case tea.WindowSizeMsg:
		m.totalWidth = ev.Width
		m.totalHeight = ev.Height
		m.layout()
		return m, nil

	case tea.KeyMsg:
		switch ev.String() {
		case "ctrl+c":
			return m.quit()
		case "ctrl+g":
			m.showSidebar = !m.showSidebar
			m.layout()
			return m, nil
		case "ctrl+n", "ctrl+p":
			m.sidebar, _ = m.sidebar.Update(ev)
			return m, nil
		case "esc":
			// finish the current reveal at once
			if _, ok := m.session.Renderer().Active(); ok {
				st := m.session.Renderer().Cancel()
				m.refresh(st.Scroll)
			}
			return m, nil
		case "enter":
			line := m.input.Value()
			m.input.SetValue("")
			return m.submit(line)
		case "pgup", "pgdown", "up", "down", "home", "end":
			var cmd tea.Cmd
			m.viewport, cmd = m.viewport.Update(ev)
			return m, cmd
		}
		var cmd tea.Cmd
		m.input, cmd = m.input.Update(ev)
		return m, cmd

	case tea.MouseMsg:
		var cmd tea.Cmd
		m.viewport, cmd = m.viewport.Update(ev)
		return m, cmd

	case initialUploadMsg:
		return m.startUpload(ev.path)

	case watchEventMsg:
		log.Info().Str("path", ev.event.Path).Msg("ui: uploading file from watch folder")
		next, cmd := m.startUpload(ev.event.Path)
		return next, tea.Batch(cmd, waitForWatchEvent(m.opts.Watch))

	case uploadFinishedMsg:
		n := m.session.FinishUpload(ev.dataset, ev.err)
		m.refresh(false)
		cmd := tea.Batch(m.setNotice(n), tea.Tick(m.opts.ClearDelay, func(time.Time) tea.Msg { return progressClearMsg{} }))
		return m, cmd

	case progressTickMsg:
		if m.session.Progress().Tick() {
			return m, m.progressTick()
		}
		return m, nil

	case progressClearMsg:
		m.session.Progress().Clear()
		return m, nil

	case chatFinishedMsg:
		out := m.session.FinishSend(ev.fileID, ev.reply, ev.err)
		if !out.Applied {
			return m, nil
		}
		m.refresh(out.Step.Scroll)
		cmd := tea.Batch(m.setNotice(out.Notice), scheduleReveal(out.Step))
		return m, cmd

	case revealTickMsg:
		ts, ok := m.session.Renderer().Active()
		if !ok || !ts.Equal(ev.ts) {
			return m, nil
		}
		step := m.session.Renderer().Tick()
		m.refresh(step.Scroll)
		return m, scheduleReveal(step)

	case historyLoadedMsg:
		n := m.session.RestoreHistory(ev.fileID, ev.history, ev.err)
		m.viewport.GotoBottom()
		m.refresh(false)
		cmd := m.setNotice(n)
		return m, cmd

	case exportFinishedMsg:
		m.exporting = false
		cmd := m.setNotice(exportNotice(ev))
		return m, cmd

	case noticeClearMsg:
		if ev.seq == m.noticeSeq {
			m.notice = session.Notice{}
		}
		return m, nil

	case bspinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(ev)
		return m, cmd
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m Model) quit() (tea.Model, tea.Cmd) {
	m.quitting = true
	m.session.Close()
	if m.backend != nil {
		m.backend.Interrupt()
	}
	return m, tea.Quit
}

func (m Model) submit(line string) (tea.Model, tea.Cmd) {
	c := parseCommand(line)
	switch c.kind {
	case cmdSend:
		fileID, err := m.session.BeginSend(c.arg)
		if err != nil {
			cmd := m.setNotice(errNotice(err))
			return m, cmd
		}
		// a new question always brings the conversation into view
		m.viewport.GotoBottom()
		m.refresh(false)
		return m, tea.Batch(m.backend.Chat(fileID, c.arg), m.spinner.Tick)

	case cmdUpload:
		return m.startUpload(c.arg)

	case cmdHistory:
		ds := m.session.Dataset()
		if ds == nil {
			cmd := m.setNotice(session.Notice{Level: session.NoticeError, Text: "Upload a dataset first"})
			return m, cmd
		}
		return m, m.backend.History(ds.ID)

	case cmdExport:
		cs := m.session.Store().Visualization()
		if len(cs) == 0 {
			cmd := m.setNotice(session.Notice{Level: session.NoticeError, Text: "No charts to export"})
			return m, cmd
		}
		if m.exporting {
			return m, nil
		}
		dir := c.arg
		if dir == "" {
			dir = m.opts.ChartsDir
		}
		m.exporting = true
		return m, func() tea.Msg {
			res, err := gallery.Export(context.Background(), dir, cs, gallery.ExportOptions{})
			return exportFinishedMsg{dir: dir, results: res, err: err}
		}

	case cmdCopy:
		last, ok := m.session.Store().Last(conversation.RoleAssistant)
		if !ok {
			cmd := m.setNotice(session.Notice{Level: session.NoticeError, Text: "Nothing to copy yet"})
			return m, cmd
		}
		if err := m.opts.Clipboard(last.Text()); err != nil {
			cmd := m.setNotice(errNotice(err))
			return m, cmd
		}
		cmd := m.setNotice(session.Notice{Text: "Copied the last reply"})
		return m, cmd

	case cmdHelp:
		cmd := m.setNotice(session.Notice{Text: helpText})
		return m, cmd

	case cmdQuit:
		return m.quit()
	}
	cmd := m.setNotice(session.Notice{Level: session.NoticeError, Text: fmt.Sprintf("Unknown command /%s, try /help", c.name)})
	return m, cmd
}

func (m Model) startUpload(path string) (Model, tea.Cmd) {
	if err := m.session.BeginUpload(path); err != nil {
		cmd := m.setNotice(errNotice(err))
		return m, cmd
	}
	return m, tea.Batch(m.backend.Upload(path), m.progressTick(), m.spinner.Tick)
}

func (m Model) progressTick() tea.Cmd {
	return tea.Tick(m.opts.ProgressInterval, func(time.Time) tea.Msg { return progressTickMsg{} })
}

func scheduleReveal(step typing.Step) tea.Cmd {
	if step.State != typing.StateRevealing {
		return nil
	}
	ts := step.Timestamp
	return tea.Tick(step.Delay, func(time.Time) tea.Msg { return revealTickMsg{ts: ts} })
}

func errNotice(err error) session.Notice {
	return session.Notice{Level: session.NoticeError, Text: session.Describe(err)}
}

func exportNotice(ev exportFinishedMsg) session.Notice {
	if ev.err != nil {
		return errNotice(ev.err)
	}
	written := gallery.Written(ev.results)
	failed := len(ev.results) - len(written)
	if failed > 0 {
		return session.Notice{
			Level: session.NoticeError,
			Text:  fmt.Sprintf("Exported %d chart(s) to %s, %d failed", len(written), ev.dir, failed),
		}
	}
	return session.Notice{Text: fmt.Sprintf("Exported %d chart(s) to %s", len(written), ev.dir)}
}

// setNotice shows n on the status line and schedules its removal. A later
// notice supersedes the pending clear.
func (m *Model) setNotice(n session.Notice) tea.Cmd {
	if n.IsZero() {
		return nil
	}
	m.noticeSeq++
	m.notice = n
	seq := m.noticeSeq
	return tea.Tick(m.opts.NoticeDuration, func(time.Time) tea.Msg { return noticeClearMsg{seq: seq} })
}

// followSlack is how many lines above the bottom edge still count as being
// at the bottom.
const followSlack = 2

func (m Model) nearBottom() bool {
	vp := m.viewport
	return vp.AtBottom() || vp.YOffset+vp.Height >= vp.TotalLineCount()-followSlack
}

// refresh re-renders the transcript. The view follows the bottom when it was
// near it already or scroll asks for it, as a reveal step does.
func (m *Model) refresh(scroll bool) {
	follow := scroll || m.nearBottom()
	m.viewport.SetContent(m.transcript.Render(m.session.Store().Messages()))
	if follow {
		m.viewport.GotoBottom()
	}

	if v := m.session.Store().VisualizationVersion(); v != m.galleryVer {
		m.galleryVer = v
		m.sidebar, _ = m.sidebar.Update(SetChartsMsg{Charts: m.session.Store().Visualization()})
	}
}

func (m *Model) layout() {
	if m.showSidebar {
		desiredRightTotal := int(float64(m.totalWidth) * 0.3)
		if desiredRightTotal < 28 {
			desiredRightTotal = 28
		}
		if desiredRightTotal > m.totalWidth/2 {
			desiredRightTotal = m.totalWidth / 2
		}
		m.rightWidth = max(0, desiredRightTotal-4)
	} else {
		m.rightWidth = 0
	}
	m.leftWidth = max(0, m.totalWidth-(m.rightWidth+4))
	if m.rightWidth > 0 {
		m.sidebar, _ = m.sidebar.Update(SetSidebarSizeMsg{Width: m.rightWidth})
	}

	// header, status line, input and progress bar
	m.viewport.Width = m.leftWidth
	m.viewport.Height = max(3, m.totalHeight-5)
	m.input.Width = max(10, m.leftWidth-4)
	m.progress.Width = max(10, min(60, m.leftWidth-10))
	m.transcript.setWidth(m.leftWidth)
	m.refresh(false)
}

func (m Model) statusLine() string {
	var parts []string
	if m.busy() {
		what := "Thinking"
		if m.session.Uploading() {
			what = "Uploading"
		}
		parts = append(parts, m.spinner.View()+" "+what+"…")
	}
	if m.exporting {
		parts = append(parts, "Exporting charts…")
	}
	if !m.notice.IsZero() {
		style := infoStyle
		if m.notice.Level == session.NoticeError {
			style = errorStyle
		}
		parts = append(parts, style.Render(m.notice.Text))
	}
	if len(parts) == 0 {
		return helpStyle.Render("enter: send  ctrl+g: charts  esc: skip typing  ctrl+c: quit")
	}
	return strings.Join(parts, "  ")
}

func (m Model) View() string {
	if m.quitting {
		return ""
	}
	title := "datalens"
	if ds := m.session.Dataset(); ds != nil {
		title += "  " + ds.Filename + fmt.Sprintf("  (%d rows, %d columns)", ds.RowCount, len(ds.Columns))
	}

	var b strings.Builder
	b.WriteString(headerStyle.Render(title))
	b.WriteString("\n")
	b.WriteString(m.viewport.View())
	b.WriteString("\n")
	if p := m.session.Progress(); p.Visible() {
		b.WriteString(m.progress.ViewAs(p.Fraction()))
		b.WriteString("\n")
	}
	b.WriteString(m.statusLine())
	b.WriteString("\n")
	b.WriteString(m.input.View())

	left := lipgloss.NewStyle().Width(m.leftWidth).Render(b.String())
	if !m.showSidebar || m.rightWidth <= 0 {
		return left
	}
	return lipgloss.JoinHorizontal(lipgloss.Top, left, "  ", m.sidebar.View())
}
