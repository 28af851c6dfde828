// Package tui is the terminal chat client: a conversation list with an unread badge and
// one open thread, both kept fresh by pollers.
package tui

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"libraryconnect.chat/internal/client"
	"libraryconnect.chat/internal/model"
	"libraryconnect.chat/internal/push"
)

// API is the subset of client.Client the UI drives.
type API interface {
	client.ThreadAPI
	client.UnreadAPI
	Conversations(ctx context.Context) ([]model.Conversation, error)
	Subscribe(ctx context.Context) (<-chan push.Event, error)
}

// Options tunes polling and push.
type Options struct {
	// Push subscribes to the websocket stream and polls as soon as an event arrives.
	Push           bool
	ThreadInterval time.Duration
	BadgeInterval  time.Duration
}

type mode int

const (
	modeList mode = iota
	modeThread
)

// --- Messages ---

type feedMsg struct{ msg tea.Msg }

type conversationsMsg struct {
	convs  []model.Conversation
	unread int64
}

type threadMsg struct {
	thread *client.Thread
	err    error
}

type errMsg struct{ err error }

const statusExpired = "session expired"

var errSessionExpired = errors.New("session expired: restart the client to sign in again")

type pushReadyMsg struct{ events <-chan push.Event }

type pushMsg struct {
	event  push.Event
	events <-chan push.Event
}

type pushClosedMsg struct{}

// feed carries results from background pollers into the program.
type feed struct {
	ctx context.Context
	ch  chan tea.Msg
}

func (f feed) send(msg tea.Msg) {
	select {
	case f.ch <- msg:
	case <-f.ctx.Done():
	}
}

func (f feed) wait() tea.Cmd {
	return func() tea.Msg {
		select {
		case msg := <-f.ch:
			return feedMsg{msg}
		case <-f.ctx.Done():
			return nil
		}
	}
}

// --- Model ---

// Model is the bubbletea model for the chat client.
type Model struct {
	ctx  context.Context
	api  API
	me   model.UserSummary
	opts Options
	feed feed

	badge      *client.Badge
	listPoller *client.Poller

	convs    []model.Conversation
	selected int

	mode         mode
	thread       *client.Thread
	threadPoller *client.Poller
	stopThread   context.CancelFunc

	viewport viewport.Model
	input    textinput.Model
	width    int
	height   int
	status   string
	err      error
}

// New returns the model. ctx bounds every poller it starts.
func New(ctx context.Context, api API, me model.UserSummary, opts Options) Model {
	if opts.ThreadInterval <= 0 {
		opts.ThreadInterval = client.DefaultThreadInterval
	}
	if opts.BadgeInterval <= 0 {
		opts.BadgeInterval = client.DefaultBadgeInterval
	}

	input := textinput.New()
	input.Placeholder = "Type a message..."
	input.CharLimit = 2000
	input.Width = 50

	m := Model{
		ctx:      ctx,
		api:      api,
		me:       me,
		opts:     opts,
		feed:     feed{ctx: ctx, ch: make(chan tea.Msg, 8)},
		badge:    client.NewBadge(api),
		viewport: viewport.New(80, 20),
		input:    input,
	}
	m.listPoller = client.NewPoller(opts.BadgeInterval, m.pollList, m.reportError)
	return m
}

func (m Model) pollList(ctx context.Context) error {
	convs, err := m.api.Conversations(ctx)
	if err != nil {
		return err
	}
	if _, err := m.badge.Poll(ctx); err != nil {
		return err
	}
	m.feed.send(conversationsMsg{convs: convs, unread: m.badge.Count()})
	return nil
}

func (m Model) reportError(err error) {
	m.feed.send(errMsg{err})
}

func runPoller(ctx context.Context, p *client.Poller) tea.Cmd {
	return func() tea.Msg {
		p.Run(ctx)
		return nil
	}
}

func (m Model) refreshList() tea.Cmd {
	return func() tea.Msg {
		if err := m.pollList(m.ctx); err != nil {
			return errMsg{err}
		}
		return nil
	}
}

func (m Model) subscribe() tea.Cmd {
	return func() tea.Msg {
		events, err := m.api.Subscribe(m.ctx)
		if err != nil {
			return errMsg{fmt.Errorf("push unavailable, polling only: %w", err)}
		}
		return pushReadyMsg{events}
	}
}

func listenPush(events <-chan push.Event) tea.Cmd {
	return func() tea.Msg {
		e, ok := <-events
		if !ok {
			return pushClosedMsg{}
		}
		return pushMsg{event: e, events: events}
	}
}

func loadThread(ctx context.Context, th *client.Thread) tea.Cmd {
	return func() tea.Msg {
		return threadMsg{thread: th, err: th.Load(ctx)}
	}
}

func deliver(ctx context.Context, th *client.Thread, tempID string) tea.Cmd {
	return func() tea.Msg {
		return threadMsg{thread: th, err: th.Deliver(ctx, tempID)}
	}
}

func retry(ctx context.Context, th *client.Thread, tempID string) tea.Cmd {
	return func() tea.Msg {
		return threadMsg{thread: th, err: th.Retry(ctx, tempID)}
	}
}

// --- Init ---

func (m Model) Init() tea.Cmd {
	cmds := []tea.Cmd{
		textinput.Blink,
		m.refreshList(),
		m.feed.wait(),
		runPoller(m.ctx, m.listPoller),
	}
	if m.opts.Push {
		cmds = append(cmds, m.subscribe())
	}
	return tea.Batch(cmds...)
}

// --- Update ---

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case feedMsg:
		next, cmd := m.Update(msg.msg)
		return next, tea.Batch(cmd, m.feed.wait())

	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		m.viewport.Width = msg.Width
		m.viewport.Height = max(msg.Height-7, 3)
		m.input.Width = max(msg.Width-6, 10)
		m.refreshViewport()
		return m, nil

	case conversationsMsg:
		m.convs = msg.convs
		if m.selected >= len(m.convs) {
			m.selected = max(len(m.convs)-1, 0)
		}
		m.err = nil
		return m, nil

	case threadMsg:
		if msg.thread != m.thread {
			return m, nil
		}
		if msg.err != nil {
			m.setErr(msg.err)
		}
		m.refreshViewport()
		return m, nil

	case errMsg:
		m.setErr(msg.err)
		return m, nil

	case pushReadyMsg:
		m.status = "live"
		return m, listenPush(msg.events)

	case pushMsg:
		m.listPoller.Nudge()
		if m.threadPoller != nil {
			m.threadPoller.Nudge()
		}
		return m, listenPush(msg.events)

	case pushClosedMsg:
		if m.status != statusExpired {
			m.status = "polling"
		}
		return m, nil

	case tea.KeyMsg:
		return m.handleKey(msg)
	}
	return m, nil
}

// setErr records err for the footer. A 401 here means the client could not renew
// the session, so polling stops being useful until the user signs in again.
func (m *Model) setErr(err error) {
	if client.IsStatus(err, http.StatusUnauthorized) {
		m.status = statusExpired
		m.err = errSessionExpired
		return
	}
	m.err = err
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if msg.String() == "ctrl+c" {
		m.closeThread()
		return m, tea.Quit
	}

	if m.mode == modeList {
		switch msg.String() {
		case "q":
			return m, tea.Quit
		case "up", "k":
			if m.selected > 0 {
				m.selected--
			}
		case "down", "j":
			if m.selected < len(m.convs)-1 {
				m.selected++
			}
		case "r":
			return m, m.refreshList()
		case "enter", "l", "right":
			if len(m.convs) > 0 {
				return m, m.openThread(m.convs[m.selected].User.ID)
			}
		}
		return m, nil
	}

	switch msg.String() {
	case "esc":
		m.closeThread()
		return m, m.refreshList()
	case "enter":
		entry, err := m.thread.Stage(m.input.Value())
		if err != nil {
			return m, nil
		}
		m.input.Reset()
		m.refreshViewport()
		return m, deliver(m.ctx, m.thread, entry.TempID)
	case "ctrl+r":
		if e, ok := m.thread.LastFailed(); ok {
			m.err = nil
			return m, retry(m.ctx, m.thread, e.TempID)
		}
		return m, nil
	case "ctrl+x":
		if e, ok := m.thread.LastFailed(); ok {
			m.thread.Discard(e.TempID)
			m.refreshViewport()
		}
		return m, nil
	case "pgup", "pgdown":
		var cmd tea.Cmd
		m.viewport, cmd = m.viewport.Update(msg)
		return m, cmd
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m *Model) openThread(partnerID int64) tea.Cmd {
	m.closeThread()

	ctx, cancel := context.WithCancel(m.ctx)
	th := client.NewThread(m.api, m.me, partnerID)
	f := m.feed
	poller := client.NewPoller(m.opts.ThreadInterval, func(ctx context.Context) error {
		changed, err := th.Poll(ctx)
		if err != nil {
			return err
		}
		if changed {
			f.send(threadMsg{thread: th})
		}
		return nil
	}, m.reportError)

	m.thread, m.threadPoller, m.stopThread = th, poller, cancel
	m.mode = modeThread
	m.err = nil
	m.refreshViewport()
	m.input.Focus()
	return tea.Batch(loadThread(ctx, th), runPoller(ctx, poller))
}

// closeThread stops the thread poller; the next cycle is never scheduled.
func (m *Model) closeThread() {
	if m.stopThread != nil {
		m.stopThread()
	}
	m.thread, m.threadPoller, m.stopThread = nil, nil, nil
	m.mode = modeList
	m.input.Blur()
}

func (m *Model) refreshViewport() {
	if m.thread == nil {
		m.viewport.SetContent("")
		return
	}
	m.viewport.SetContent(renderEntries(m.thread.Entries(), m.me.ID, m.thread.Partner().Name))
	m.viewport.GotoBottom()
}

// --- View ---

func (m Model) View() string {
	var b strings.Builder

	header := titleStyle.Render("LibraryConnect")
	if n := m.badge.Count(); n > 0 {
		header = lipgloss.JoinHorizontal(lipgloss.Center, header, badgeStyle.Render(fmt.Sprintf("%d unread", n)))
	}
	if m.status != "" {
		header = lipgloss.JoinHorizontal(lipgloss.Center, header, mutedStyle.Render(" "+m.status))
	}
	b.WriteString(header + "\n")

	if m.mode == modeThread && m.thread != nil {
		name := m.thread.Partner().Name
		if name == "" {
			name = "…"
		}
		b.WriteString(headerStyle.Render(name) + "\n")
		b.WriteString(m.viewport.View() + "\n")
		b.WriteString(footerStyle.Render(m.input.View()) + "\n")
		b.WriteString(mutedStyle.Render("enter send · ctrl+r retry · ctrl+x discard · esc back"))
	} else {
		b.WriteString(renderConversations(m.convs, m.selected, m.me.ID))
		b.WriteString("\n" + mutedStyle.Render("↑/↓ select · enter open · r refresh · q quit"))
	}

	if m.err != nil {
		b.WriteString("\n" + errorStyle.Render(m.err.Error()))
	}
	return b.String()
}

func renderConversations(convs []model.Conversation, selected int, selfID int64) string {
	if len(convs) == 0 {
		return mutedStyle.Render("  No conversations yet.") + "\n"
	}
	var b strings.Builder
	for i, c := range convs {
		preview := c.LastMessage
		if c.LastSender == selfID {
			preview = "you: " + preview
		}
		line := fmt.Sprintf("%-16s %s", truncate(c.User.Name, 16), mutedStyle.Render(truncate(preview, 40)))
		if c.UnreadCount > 0 {
			line += " " + badgeStyle.Render(fmt.Sprintf("%d", c.UnreadCount))
		}
		if i == selected {
			b.WriteString(selectedItemStyle.Render(line))
		} else {
			b.WriteString(itemStyle.Render(line))
		}
		b.WriteString("\n")
	}
	return b.String()
}

func renderEntries(entries []client.Entry, selfID int64, partnerName string) string {
	if len(entries) == 0 {
		return mutedStyle.Render("No messages yet. Say hello!")
	}
	var b strings.Builder
	for _, e := range entries {
		ts := e.CreatedAt.Local().Format("15:04")
		var line string
		if e.SenderID == selfID {
			line = ownMessageStyle.Render(fmt.Sprintf("[%s] you: %s", ts, e.Content))
		} else {
			line = otherMessageStyle.Render(fmt.Sprintf("[%s] %s: %s", ts, partnerName, e.Content))
		}
		switch {
		case e.Failed:
			line += " " + errorStyle.Render("✗ not sent")
		case e.Pending:
			line += " " + mutedStyle.Render("sending…")
		}
		b.WriteString(line + "\n")
	}
	return b.String()
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}
