package ui

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/list"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/desertthunder/bookx/internal/models"
	"github.com/desertthunder/bookx/internal/shared"
	"github.com/desertthunder/bookx/internal/tasks"
)

// ViewState represents the current view in the TUI.
type ViewState int

const (
	ListPickerView ViewState = iota
	BookListView
	DetailView
	SyncView
)

// BookCache is the cached list snapshot. Implemented by repositories.BookRepository.
type BookCache interface {
	List(listType models.ListType) ([]models.Book, error)
	Count(listType models.ListType) (int, error)
	SyncedAt(listType models.ListType) (time.Time, error)
}

// Syncer pulls a list from Calil into the cache. Implemented by [tasks.BookEngine].
type Syncer interface {
	Sync(ctx context.Context, progress chan<- tasks.ProgressUpdate, listType models.ListType) (*tasks.SyncResult, error)
}

// Model represents the TUI application state.
type Model struct {
	ctx      context.Context
	view     ViewState
	cache    BookCache
	bibs     models.Repository[models.Bibliography]
	syncer   Syncer
	width    int
	height   int
	picker   list.Model
	books    list.Model
	listType models.ListType
	detail   *detailLoaded
	progress tasks.ProgressUpdate
	updates  chan tasks.ProgressUpdate
	done     chan Msg
	status   string
	err      error
	help     help.Model
	keys     keyMap
}

// NewModel creates a new TUI model. bibs and syncer may be nil.
func NewModel(ctx context.Context, cache BookCache, bibs models.Repository[models.Bibliography], syncer Syncer) *Model {
	m := &Model{
		ctx:    ctx,
		view:   ListPickerView,
		cache:  cache,
		bibs:   bibs,
		syncer: syncer,
		help:   help.New(),
		keys:   newKeyMap(),
	}
	m.picker = list.New(nil, list.NewDefaultDelegate(), 0, 0)
	m.picker.Title = "Calil lists"
	m.books = list.New(nil, list.NewDefaultDelegate(), 0, 0)
	return m
}

// Init loads the cached count of each list.
func (m *Model) Init() tea.Cmd {
	return m.loadCounts()
}

// Update handles incoming messages and updates the model state.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.picker.SetSize(msg.Width-4, msg.Height-6)
		m.books.SetSize(msg.Width-4, msg.Height-6)
		return m, nil

	case tea.KeyMsg:
		switch m.view {
		case ListPickerView:
			return m.handlePickerKeys(msg)
		case BookListView:
			return m.handleBookKeys(msg)
		case DetailView:
			return m.handleDetailKeys(msg)
		case SyncView:
			if msg.String() == "ctrl+c" {
				return m, tea.Quit
			}
			return m, nil
		}

	case Msg:
		return m.handleMsg(msg)
	}

	return m.updateLists(msg)
}

func (m *Model) handleMsg(msg Msg) (tea.Model, tea.Cmd) {
	switch msg.kind {
	case MsgCountsLoaded:
		data := msg.data.(countsLoaded)
		if data.err != nil {
			m.err = data.err
			return m, nil
		}
		items := make([]list.Item, 0, len(data.counts))
		for _, lt := range models.ListTypes() {
			items = append(items, listTypeItem{listType: lt, count: data.counts[lt]})
		}
		return m, m.picker.SetItems(items)

	case MsgBooksLoaded:
		data := msg.data.(booksLoaded)
		if data.err != nil {
			m.err = data.err
			return m, nil
		}
		m.listType = data.listType
		items := make([]list.Item, len(data.books))
		for i, b := range data.books {
			items[i] = bookItem{book: b}
		}
		m.books.Title = fmt.Sprintf("%s (%d)", data.listType.Label(), len(data.books))
		m.view = BookListView
		return m, m.books.SetItems(items)

	case MsgDetailLoaded:
		data := msg.data.(detailLoaded)
		m.detail = &data
		m.view = DetailView
		return m, nil

	case MsgProgressUpdate:
		m.progress = msg.data.(tasks.ProgressUpdate)
		return m, m.waitForProgress()

	case MsgSyncComplete:
		data := msg.data.(syncComplete)
		m.updates, m.done = nil, nil
		if data.err != nil {
			m.status = styles.err.Render(fmt.Sprintf("Sync failed: %v", data.err))
		} else {
			m.status = styles.ok.Render(fmt.Sprintf("✓ Synced %d books, %d new records", len(data.result.Books), data.result.Enriched))
		}
		return m, tea.Batch(m.loadBooks(m.listType), m.loadCounts())
	}
	return m, nil
}

// View renders the UI based on the current view state.
func (m *Model) View() string {
	if m.err != nil {
		return styles.err.Render(fmt.Sprintf("Error: %v\n\nPress q to quit", m.err))
	}

	switch m.view {
	case ListPickerView:
		return m.renderPicker()
	case BookListView:
		return m.renderBooks()
	case DetailView:
		return m.renderDetail()
	case SyncView:
		return m.renderSync()
	default:
		return ""
	}
}

func (m *Model) handlePickerKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if m.picker.FilterState() == list.Filtering {
		return m.updateLists(msg)
	}

	switch {
	case key.Matches(msg, m.keys.quit):
		return m, tea.Quit
	case key.Matches(msg, m.keys.enter):
		if item, ok := m.picker.SelectedItem().(listTypeItem); ok {
			m.status = ""
			return m, m.loadBooks(item.listType)
		}
	case key.Matches(msg, m.keys.sync):
		if item, ok := m.picker.SelectedItem().(listTypeItem); ok {
			m.listType = item.listType
			return m, m.startSync()
		}
	}
	return m.updateLists(msg)
}

func (m *Model) handleBookKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if m.books.FilterState() == list.Filtering {
		return m.updateLists(msg)
	}

	switch {
	case key.Matches(msg, m.keys.quit):
		return m, tea.Quit
	case key.Matches(msg, m.keys.back):
		if m.books.FilterState() == list.FilterApplied {
			m.books.ResetFilter()
			return m, nil
		}
		m.view = ListPickerView
		return m, nil
	case key.Matches(msg, m.keys.sync):
		return m, m.startSync()
	case key.Matches(msg, m.keys.enter):
		if item, ok := m.books.SelectedItem().(bookItem); ok {
			return m, m.loadDetail(item.book)
		}
	}
	return m.updateLists(msg)
}

func (m *Model) handleDetailKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.quit):
		return m, tea.Quit
	case key.Matches(msg, m.keys.back), key.Matches(msg, m.keys.enter):
		m.view = BookListView
		m.detail = nil
	}
	return m, nil
}

func (m *Model) updateLists(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd
	switch m.view {
	case ListPickerView:
		m.picker, cmd = m.picker.Update(msg)
	case BookListView:
		m.books, cmd = m.books.Update(msg)
	}
	return m, cmd
}

func (m *Model) loadCounts() tea.Cmd {
	cache := m.cache
	return func() tea.Msg {
		counts := make(map[models.ListType]int)
		for _, lt := range models.ListTypes() {
			synced, err := cache.SyncedAt(lt)
			if err != nil {
				return countsLoadedMsg(nil, err)
			}
			if synced.IsZero() {
				counts[lt] = -1
				continue
			}
			n, err := cache.Count(lt)
			if err != nil {
				return countsLoadedMsg(nil, err)
			}
			counts[lt] = n
		}
		return countsLoadedMsg(counts, nil)
	}
}

func (m *Model) loadBooks(lt models.ListType) tea.Cmd {
	cache := m.cache
	return func() tea.Msg {
		books, err := cache.List(lt)
		return booksLoadedMsg(lt, books, err)
	}
}

func (m *Model) loadDetail(book models.Book) tea.Cmd {
	bibs := m.bibs
	return func() tea.Msg {
		if bibs == nil || book.ISBN == "" {
			return detailLoadedMsg(book, nil, nil)
		}
		bib, err := bibs.Get(book.ISBN)
		if errors.Is(err, shared.ErrBookNotFound) {
			return detailLoadedMsg(book, nil, nil)
		}
		if err != nil {
			return detailLoadedMsg(book, nil, err)
		}
		return detailLoadedMsg(book, &bib, nil)
	}
}

func (m *Model) startSync() tea.Cmd {
	if m.syncer == nil {
		m.status = styles.warn.Render("Sync is not available")
		return nil
	}

	m.view = SyncView
	m.progress = tasks.ProgressUpdate{Message: "Starting..."}
	m.updates = make(chan tasks.ProgressUpdate, 50)
	m.done = make(chan Msg, 1)

	ctx, syncer, lt, updates, done := m.ctx, m.syncer, m.listType, m.updates, m.done
	go func() {
		result, err := syncer.Sync(ctx, updates, lt)
		done <- syncCompleteMsg(result, err)
	}()

	return m.waitForProgress()
}

func (m *Model) waitForProgress() tea.Cmd {
	updates, done := m.updates, m.done
	if done == nil {
		return nil
	}
	return func() tea.Msg {
		select {
		case u := <-updates:
			return progressUpdateMsg(u)
		case msg := <-done:
			return msg
		}
	}
}

func (m *Model) renderPicker() string {
	helpView := m.help.ShortHelpView([]key.Binding{m.keys.enter, m.keys.sync, m.keys.quit})
	return fmt.Sprintf("%s\n%s\n%s", m.picker.View(), m.status, helpView)
}

func (m *Model) renderBooks() string {
	detailKey := key.NewBinding(key.WithKeys("enter"), key.WithHelp("enter", "details"))
	helpView := m.help.ShortHelpView([]key.Binding{detailKey, m.keys.sync, m.keys.back, m.keys.quit})
	return fmt.Sprintf("%s\n%s\n%s", m.books.View(), m.status, helpView)
}

func (m *Model) renderDetail() string {
	if m.detail == nil {
		return ""
	}
	b := m.detail.book

	var sb strings.Builder
	sb.WriteString(styles.title.Render(b.Title))
	sb.WriteString("\n")

	row := func(label, value string) {
		if value != "" {
			fmt.Fprintf(&sb, "%s %s\n", styles.label.Render(label), value)
		}
	}
	row("Author", b.Author)
	row("Publisher", b.Publisher)
	row("ISBN", b.ISBN)
	if !b.AddedAt.IsZero() {
		row("Added", b.AddedAt.Format("2006-01-02"))
	}

	switch {
	case m.detail.err != nil:
		sb.WriteString("\n" + styles.err.Render(fmt.Sprintf("Lookup failed: %v", m.detail.err)) + "\n")
	case m.detail.bib == nil:
		sb.WriteString("\n" + styles.help.Render("No NDL record cached. Run a sync to fetch one.") + "\n")
	default:
		bib := m.detail.bib
		sb.WriteString("\n")
		row("Creator", bib.Creator)
		row("Issued", bib.Issued)
		row("Subjects", strings.Join(bib.Subjects, ", "))
		row("NDL", bib.Link)
	}

	sb.WriteString("\n" + m.help.ShortHelpView([]key.Binding{m.keys.back, m.keys.quit}))
	return sb.String()
}

func (m *Model) renderSync() string {
	title := styles.title.Render(fmt.Sprintf("Syncing %s", m.listType.Label()))

	var phase string
	switch m.progress.Phase {
	case tasks.FetchList:
		if m.progress.Total > 0 {
			phase = fmt.Sprintf("Fetching pages (%d/%d books)", m.progress.Step, m.progress.Total)
		} else {
			phase = "Fetching list..."
		}
	case tasks.StoreList:
		phase = "Saving to cache..."
	case tasks.EnrichBooks:
		phase = fmt.Sprintf("Looking up NDL records (%d/%d)", m.progress.Step, m.progress.Total)
	default:
		phase = "Processing..."
	}

	return fmt.Sprintf("%s\n\n%s\n%s", title, phase, styles.help.Render(m.progress.Message))
}
