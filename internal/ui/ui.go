package ui

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/list"
	"github.com/charmbracelet/bubbles/progress"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/desertthunder/threadx/internal/counter"
	"github.com/desertthunder/threadx/internal/models"
	"github.com/desertthunder/threadx/internal/tasks"
)

// ViewState represents the current view in the TUI.
type ViewState int

const (
	DraftListView ViewState = iota
	PreviewView
	ConfirmView
	PostingView
	ResultView
)

// ThreadLister loads drafts for the list view.
type ThreadLister interface {
	List(criteria map[string]any) ([]*models.Thread, error)
}

// Model represents the TUI application state.
type Model struct {
	ctx          context.Context
	view         ViewState
	threads      ThreadLister
	engine       tasks.PostEngine
	limit        int
	width        int
	height       int
	draftList    list.Model
	itemList     list.Model
	selected     *models.Thread
	progressChan chan tasks.ProgressUpdate
	done         chan error
	progress     tasks.ProgressUpdate
	bar          progress.Model
	published    []*models.PublishedPost
	err          error
	help         help.Model
	keys         keyMap
}

// NewModel creates a new TUI model with the provided dependencies.
// limit is the weighted character limit shown next to each item.
func NewModel(ctx context.Context, threads ThreadLister, engine tasks.PostEngine, limit int) *Model {
	if limit <= 0 {
		limit = counter.DefaultLimit
	}
	return &Model{
		ctx:       ctx,
		view:      DraftListView,
		threads:   threads,
		engine:    engine,
		limit:     limit,
		bar:       progress.New(progress.WithDefaultGradient()),
		draftList: list.New(nil, list.NewDefaultDelegate(), 0, 0),
		itemList:  list.New(nil, list.NewDefaultDelegate(), 0, 0),
		help:      help.New(),
		keys:      newKeyMap(),
	}
}

// Init initializes the TUI by loading drafts.
func (m *Model) Init() tea.Cmd {
	return m.loadThreads()
}

// State returns the current view.
func (m *Model) State() ViewState { return m.view }

// Update handles incoming messages and updates the model state.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.draftList.SetSize(msg.Width-4, msg.Height-8)
		m.itemList.SetSize(msg.Width-4, msg.Height-8)
		m.bar.Width = max(10, min(msg.Width-8, 72))
		return m, nil

	case tea.KeyMsg:
		switch m.view {
		case DraftListView:
			return m.handleDraftListKeys(msg)
		case PreviewView:
			return m.handlePreviewKeys(msg)
		case ConfirmView:
			return m.handleConfirmKeys(msg)
		case ResultView:
			return m.handleResultKeys(msg)
		case PostingView:
			// posting runs to completion
			return m, nil
		}

	case Msg:
		return m.handleMsg(msg)
	}

	return m.updateLists(msg)
}

func (m *Model) handleMsg(msg Msg) (tea.Model, tea.Cmd) {
	switch msg.kind {
	case MsgThreadsLoaded:
		data := msg.data.(threadsLoaded)
		if data.err != nil {
			m.err = data.err
			return m, tea.Quit
		}
		items := make([]list.Item, len(data.threads))
		for i, th := range data.threads {
			items[i] = threadItem{thread: th}
		}
		m.draftList.Title = "Drafts"
		cmd := m.draftList.SetItems(items)
		return m, cmd

	case MsgProgressUpdate:
		m.progress = msg.data.(tasks.ProgressUpdate)
		if post, ok := m.progress.Data.(*models.PublishedPost); ok {
			m.published = append(m.published, post)
		}
		return m, m.waitForProgress()

	case MsgPostComplete:
		data := msg.data.(postComplete)
		m.err = data.err
		m.view = ResultView
		m.progressChan = nil
		m.done = nil
		return m, m.loadThreads()
	}
	return m, nil
}

// View renders the UI based on the current view state.
func (m *Model) View() string {
	if m.err != nil && m.view == DraftListView {
		return styles.err.Render(fmt.Sprintf("Error: %v\n\nPress q to quit", m.err))
	}

	switch m.view {
	case DraftListView:
		return m.renderDraftList()
	case PreviewView:
		return m.renderPreview()
	case ConfirmView:
		return m.renderConfirm()
	case PostingView:
		return m.renderPosting()
	case ResultView:
		return m.renderResult()
	default:
		return ""
	}
}

func (m *Model) handleDraftListKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if m.draftList.FilterState() == list.Filtering {
		var cmd tea.Cmd
		m.draftList, cmd = m.draftList.Update(msg)
		return m, cmd
	}

	switch {
	case key.Matches(msg, m.keys.quit):
		return m, tea.Quit
	case key.Matches(msg, m.keys.open):
		if selected, ok := m.draftList.SelectedItem().(threadItem); ok {
			m.selectThread(selected.thread)
			m.view = PreviewView
			return m, nil
		}
	}

	var cmd tea.Cmd
	m.draftList, cmd = m.draftList.Update(msg)
	return m, cmd
}

func (m *Model) selectThread(th *models.Thread) {
	m.selected = th
	items := make([]list.Item, 0, len(th.Items()))
	for _, item := range th.Items() {
		items = append(items, postItem{item: item, limit: m.limit})
	}
	m.itemList.SetItems(items)
	m.itemList.Title = fmt.Sprintf("Thread #%d", th.Sequence())
}

func (m *Model) handlePreviewKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.quit):
		return m, tea.Quit
	case key.Matches(msg, m.keys.back):
		m.view = DraftListView
		return m, nil
	case key.Matches(msg, m.keys.publish):
		if m.selected.CanPost() || m.selected.Status() == models.StatusPosting {
			m.view = ConfirmView
		}
		return m, nil
	}

	var cmd tea.Cmd
	m.itemList, cmd = m.itemList.Update(msg)
	return m, cmd
}

func (m *Model) handleConfirmKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.cancel), key.Matches(msg, m.keys.back), key.Matches(msg, m.keys.quit):
		m.view = PreviewView
		return m, nil
	case key.Matches(msg, m.keys.confirm):
		m.view = PostingView
		return m, m.startPost()
	}
	return m, nil
}

func (m *Model) handleResultKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.quit):
		return m, tea.Quit
	case key.Matches(msg, m.keys.drafts):
		m.view = DraftListView
		m.selected = nil
		m.published = nil
		m.err = nil
		m.progress = tasks.ProgressUpdate{}
		return m, nil
	}
	return m, nil
}

func (m *Model) updateLists(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd
	switch m.view {
	case DraftListView:
		m.draftList, cmd = m.draftList.Update(msg)
	case PreviewView:
		m.itemList, cmd = m.itemList.Update(msg)
	}
	return m, cmd
}

func (m *Model) loadThreads() tea.Cmd {
	return func() tea.Msg {
		threads, err := m.threads.List(nil)
		return threadsLoadedMsg(threads, err)
	}
}

func (m *Model) startPost() tea.Cmd {
	m.progressChan = make(chan tasks.ProgressUpdate, 50)
	m.done = make(chan error, 1)
	m.published = nil

	thread, progressChan, done := m.selected, m.progressChan, m.done
	go func() {
		var err error
		if resumes(thread) {
			err = m.engine.Retry(m.ctx, thread, progressChan)
		} else {
			err = m.engine.Post(m.ctx, thread, progressChan)
		}
		close(progressChan)
		done <- err
	}()

	return m.waitForProgress()
}

// resumes reports whether publishing th continues an earlier run.
// A thread saved as posting was interrupted mid-run.
func resumes(th *models.Thread) bool {
	return th.Status() == models.StatusFailed || th.Status() == models.StatusPosting
}

func (m *Model) waitForProgress() tea.Cmd {
	progressChan, done, thread := m.progressChan, m.done, m.selected
	return func() tea.Msg {
		if progressChan == nil {
			return postCompleteMsg(thread, nil)
		}

		update, ok := <-progressChan
		if !ok {
			return postCompleteMsg(thread, <-done)
		}
		return progressUpdateMsg(update)
	}
}

func (m *Model) renderDraftList() string {
	helpView := m.help.ShortHelpView(m.keys.forView(DraftListView))
	return fmt.Sprintf("%s\n\n%s", m.draftList.View(), helpView)
}

func (m *Model) renderPreview() string {
	helpView := m.help.ShortHelpView(m.keys.forView(PreviewView))

	status := ""
	if msg := m.selected.FailureMessage(); msg != "" {
		status = styles.warn.Render("Last attempt failed: "+msg) + "\n"
	} else if m.selected.Status() == models.StatusPosting {
		status = styles.warn.Render("A previous run was interrupted") + "\n"
	} else if !m.selected.CanPost() {
		status = styles.warn.Render("Nothing to post") + "\n"
	}
	return fmt.Sprintf("%s\n%s\n%s", m.itemList.View(), status, helpView)
}

func (m *Model) renderConfirm() string {
	verb := "Post"
	if resumes(m.selected) {
		verb = "Retry"
	}
	title := styles.title.Render(fmt.Sprintf("%s thread #%d?", verb, m.selected.Sequence()))
	info := fmt.Sprintf("\nItems: %d\nImages: %d\n", len(m.selected.ContentItems()), m.selected.AttachmentCount())

	var over []string
	for _, item := range m.selected.ContentItems() {
		s := counter.Summarize(item.Text(), m.limit)
		info += styles.usage(s).Render(fmt.Sprintf("  %d. %d/%d", item.SortOrder()+1, s.Count, s.Limit)) + "\n"
		if !s.IsWithinLimit() {
			over = append(over, fmt.Sprintf("item %d", item.SortOrder()+1))
		}
	}
	if len(over) > 0 {
		info += styles.warn.Render(fmt.Sprintf("Over %d characters: %s", m.limit, strings.Join(over, ", "))) + "\n"
	}

	helpView := m.help.ShortHelpView(m.keys.forView(ConfirmView))

	return fmt.Sprintf("%s\n%s\n%s", title, info, helpView)
}

func (m *Model) renderPosting() string {
	title := styles.title.Render(fmt.Sprintf("Posting thread #%d", m.selected.Sequence()))

	var phase string
	switch m.progress.Phase {
	case tasks.UploadMedia:
		phase = fmt.Sprintf("Uploading images (%d/%d)", m.progress.Step, m.progress.Total)
	case tasks.PublishItem:
		phase = fmt.Sprintf("Publishing (%d/%d)", m.progress.Step, m.progress.Total)
	default:
		phase = "Preparing..."
	}

	return fmt.Sprintf("%s\n\n%s\n\n%s\n%s", title, m.bar.ViewAs(m.progress.Fraction), phase, m.progress.Message)
}

func (m *Model) renderResult() string {
	helpView := m.help.ShortHelpView(m.keys.forView(ResultView))

	if m.err != nil {
		body := styles.err.Render(fmt.Sprintf("Posting failed: %v", m.err))
		if len(m.published) > 0 {
			body += fmt.Sprintf("\n\n%d item(s) were published and will be skipped on retry.", len(m.published))
		}
		return fmt.Sprintf("%s\n\n%s", body, helpView)
	}

	title := styles.ok.Render("✓ Thread posted!")
	var links strings.Builder
	for _, p := range m.published {
		links.WriteString(fmt.Sprintf("\n  %d. %s", p.Position()+1, p.ViewURL()))
	}

	return fmt.Sprintf("%s\n%s\n\n%s", title, links.String(), helpView)
}
