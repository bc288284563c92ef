package cli

import (
	"cmp"
	"context"
	"fmt"
	"slices"
	"strings"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/log"
	"github.com/mattn/go-runewidth"

	"github.com/matzehuels/masonry/pkg/config"
	"github.com/matzehuels/masonry/pkg/core/masonry"
	"github.com/matzehuels/masonry/pkg/source"
	"github.com/matzehuels/masonry/pkg/viewport"
)

// Terminal cells are mapped to layout pixels at a fixed scale, roughly
// matching the 1:2 aspect of a monospace cell.
const (
	cellWidth  = 8.0
	cellHeight = 16.0

	// chromeRows is the number of rows taken by the header and footer.
	chromeRows = 3
)

var (
	cardStyle         = lipgloss.NewStyle().Foreground(colorGray)
	cardSelectedStyle = lipgloss.NewStyle().Bold(true).Foreground(colorCyan)
	headerStyle       = lipgloss.NewStyle().Foreground(colorDim)
)

// =============================================================================
// Key Bindings
// =============================================================================

type browseKeys struct {
	Up       key.Binding
	Down     key.Binding
	PageUp   key.Binding
	PageDown key.Binding
	Top      key.Binding
	Bottom   key.Binding
	Next     key.Binding
	Prev     key.Binding
	Activate key.Binding
	Filter   key.Binding
	Clear    key.Binding
	Quit     key.Binding
}

func defaultBrowseKeys() browseKeys {
	return browseKeys{
		Up:       key.NewBinding(key.WithKeys("up", "k"), key.WithHelp("↑/k", "scroll up")),
		Down:     key.NewBinding(key.WithKeys("down", "j"), key.WithHelp("↓/j", "scroll down")),
		PageUp:   key.NewBinding(key.WithKeys("pgup", "b"), key.WithHelp("pgup", "page up")),
		PageDown: key.NewBinding(key.WithKeys("pgdown", " ", "f"), key.WithHelp("pgdn", "page down")),
		Top:      key.NewBinding(key.WithKeys("home", "g"), key.WithHelp("g", "top")),
		Bottom:   key.NewBinding(key.WithKeys("end", "G"), key.WithHelp("G", "bottom")),
		Next:     key.NewBinding(key.WithKeys("tab"), key.WithHelp("tab", "select")),
		Prev:     key.NewBinding(key.WithKeys("shift+tab")),
		Activate: key.NewBinding(key.WithKeys("enter"), key.WithHelp("⏎", "open")),
		Filter:   key.NewBinding(key.WithKeys("/"), key.WithHelp("/", "filter")),
		Clear:    key.NewBinding(key.WithKeys("esc"), key.WithHelp("esc", "clear")),
		Quit:     key.NewBinding(key.WithKeys("q", "ctrl+c"), key.WithHelp("q", "quit")),
	}
}

func (k browseKeys) ShortHelp() []key.Binding {
	return []key.Binding{k.Down, k.PageDown, k.Next, k.Activate, k.Filter, k.Quit}
}

// =============================================================================
// Messages
// =============================================================================

// pageMsg reports the result of fetching pages. After a reload it carries
// the reopened source and its pager, which replace the current ones.
type pageMsg struct {
	src   source.Source
	pager *source.Pager
	added int
	err   error
}

// changedMsg signals that the watched source changed on disk.
type changedMsg struct{}

// watchErrMsg carries a watcher failure.
type watchErrMsg struct{ err error }

// =============================================================================
// browseModel
// =============================================================================

// browseOptions configures a browse session.
type browseOptions struct {
	Layout    config.LayoutConfig
	PageSize  int
	Filter    string
	Fetcher   func(src source.Source) source.FetchFunc
	Reopen    func(ctx context.Context) (source.Source, error)
	Changes   <-chan struct{}
	WatchErrs <-chan error
	Logger    *log.Logger
}

// browseModel is the bubbletea model for the interactive browser. Terminal
// events are translated into coordinator handlers; the coordinator decides
// what is drawn and when more photos are needed.
type browseModel struct {
	ctx    context.Context
	opts   browseOptions
	keys   browseKeys
	help   help.Model
	filter textinput.Model

	src     source.Source
	pager   *source.Pager
	coord   *viewport.Coordinator
	trigger *viewport.ScrollTrigger

	width, rows int
	scroll      float64
	selected    string
	activated   []masonry.Photo
	status      string

	filtering bool
	loading   bool
	wantMore  bool
	err       error
}

// newBrowseModel creates a browser over src. The first page is requested by
// Init.
func newBrowseModel(ctx context.Context, src source.Source, opts browseOptions) (*browseModel, error) {
	if opts.PageSize < 1 {
		opts.PageSize = source.DefaultPageSize
	}
	if opts.Logger == nil {
		opts.Logger = log.Default()
	}
	if opts.Fetcher == nil {
		opts.Fetcher = func(s source.Source) source.FetchFunc { return s.Fetch }
	}

	m := &browseModel{
		ctx:     ctx,
		opts:    opts,
		keys:    defaultBrowseKeys(),
		help:    help.New(),
		src:     src,
		trigger: viewport.NewScrollTrigger(),
	}
	m.pager = source.NewPagerFunc(opts.Fetcher(src), opts.PageSize)

	m.filter = textinput.New()
	m.filter.Prompt = "/"
	m.filter.Placeholder = "alt, photographer or id"
	m.filter.SetValue(opts.Filter)

	coord, err := viewport.New(nil,
		viewport.WithConfig(opts.Layout.Masonry()),
		viewport.WithBuffer(opts.Layout.Buffer),
		viewport.WithThreshold(opts.Layout.BoundaryThreshold),
		viewport.WithBoundaryTrigger(m.trigger),
		viewport.WithLogger(opts.Logger),
		viewport.WithContext(ctx),
		viewport.WithRenderer(m.rendered),
		viewport.WithOnBoundary(func() { m.wantMore = true }),
		viewport.WithOnActivate(m.onActivate),
	)
	if err != nil {
		return nil, err
	}
	m.coord = coord
	return m, nil
}

func (m *browseModel) Init() tea.Cmd {
	return tea.Batch(m.fetch(), m.watch())
}

func (m *browseModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.rows = max(msg.Height-chromeRows, 0)
		m.help.Width = msg.Width
		m.coord.OnContainerWidthChanged(float64(m.width) * cellWidth)
		m.coord.OnViewportSizeChanged(m.viewportHeight())
		m.setScroll(m.scroll)

	case tea.KeyMsg:
		if m.filtering {
			cmds = append(cmds, m.updateFilter(msg))
			break
		}
		if cmd := m.handleKey(msg); cmd != nil {
			cmds = append(cmds, cmd)
		}

	case pageMsg:
		m.loading = false
		if msg.err != nil {
			m.err = msg.err
			m.opts.Logger.Error("fetch page", "error", msg.err)
			break
		}
		if msg.pager != nil {
			m.src.Close()
			m.src, m.pager = msg.src, msg.pager
			m.status = "reloaded"
		}
		m.applyCollection()
		m.setScroll(m.scroll)
		// The trigger only fires on entering the zone. A page too short to
		// push the sentinel out keeps it there, so ask again.
		if msg.added > 0 && m.nearBottom() {
			m.wantMore = true
		}

	case changedMsg:
		cmds = append(cmds, m.reload(), m.watch())

	case watchErrMsg:
		m.opts.Logger.Warn("watch", "error", msg.err)
		cmds = append(cmds, m.watch())
	}

	if cmd := m.maybeFetch(); cmd != nil {
		cmds = append(cmds, cmd)
	}
	return m, tea.Batch(cmds...)
}

func (m *browseModel) handleKey(msg tea.KeyMsg) tea.Cmd {
	step := cellHeight
	page := max(m.viewportHeight()-cellHeight, cellHeight)

	switch {
	case key.Matches(msg, m.keys.Quit):
		return tea.Quit
	case key.Matches(msg, m.keys.Up):
		m.setScroll(m.scroll - step)
	case key.Matches(msg, m.keys.Down):
		m.setScroll(m.scroll + step)
	case key.Matches(msg, m.keys.PageUp):
		m.setScroll(m.scroll - page)
	case key.Matches(msg, m.keys.PageDown):
		m.setScroll(m.scroll + page)
	case key.Matches(msg, m.keys.Top):
		m.setScroll(0)
	case key.Matches(msg, m.keys.Bottom):
		m.setScroll(m.maxScroll())
	case key.Matches(msg, m.keys.Next):
		m.cycle(1)
	case key.Matches(msg, m.keys.Prev):
		m.cycle(-1)
	case key.Matches(msg, m.keys.Activate):
		if m.selected != "" && !m.coord.Activate(m.selected) {
			m.selected = ""
		}
	case key.Matches(msg, m.keys.Filter):
		m.filtering = true
		return m.filter.Focus()
	case key.Matches(msg, m.keys.Clear):
		if m.filter.Value() != "" {
			m.filter.SetValue("")
			m.applyCollection()
		}
	}
	return nil
}

// updateFilter feeds keys to the filter input and re-filters on every edit.
func (m *browseModel) updateFilter(msg tea.KeyMsg) tea.Cmd {
	switch msg.Type {
	case tea.KeyEnter:
		m.filtering = false
		m.filter.Blur()
		return nil
	case tea.KeyEsc:
		m.filtering = false
		m.filter.Blur()
		m.filter.SetValue("")
		m.applyCollection()
		return nil
	}

	before := m.filter.Value()
	var cmd tea.Cmd
	m.filter, cmd = m.filter.Update(msg)
	if m.filter.Value() != before {
		m.setScroll(0)
		m.applyCollection()
	}
	return cmd
}

// applyCollection hands the loaded (and filtered) photos to the coordinator.
func (m *browseModel) applyCollection() {
	m.coord.OnCollectionChanged(source.Filter(m.pager.Photos(), m.filter.Value()))
}

// setScroll clamps offset to the content and forwards it.
func (m *browseModel) setScroll(offset float64) {
	m.scroll = min(max(offset, 0), m.maxScroll())
	m.coord.OnScrollChanged(m.scroll)
}

func (m *browseModel) maxScroll() float64 {
	return max(m.coord.Snapshot().ContentHeight-m.viewportHeight(), 0)
}

func (m *browseModel) viewportHeight() float64 {
	return float64(m.rows) * cellHeight
}

func (m *browseModel) nearBottom() bool {
	s := m.coord.Snapshot()
	vh := m.viewportHeight()
	return vh > 0 && s.Sentinel <= m.scroll+vh*(1+m.opts.Layout.BoundaryThreshold)
}

// cycle moves the selection through the materialized items in reading order.
func (m *browseModel) cycle(dir int) {
	items := readingOrder(m.coord.Snapshot())
	if len(items) == 0 {
		m.selected = ""
		return
	}
	i := -1
	for j, it := range items {
		if it.Item.ID == m.selected {
			i = j
			break
		}
	}
	i = (i + dir + len(items)) % len(items)
	m.selected = items[i].Item.ID
}

// rendered is the coordinator's renderer. It drops a selection that fell
// out of the materialized set.
func (m *browseModel) rendered(s viewport.Snapshot) {
	if m.selected == "" {
		return
	}
	if _, ok := s.Find(m.selected); !ok {
		m.selected = ""
	}
}

func (m *browseModel) onActivate(p masonry.Photo) {
	m.activated = append(m.activated, p)
	target := p.URL
	if target == "" {
		target = p.Src.Original
	}
	m.status = fmt.Sprintf("opened %s %s", p.ID, target)
}

// =============================================================================
// Commands
// =============================================================================

// maybeFetch starts a page fetch when the boundary asked for one.
func (m *browseModel) maybeFetch() tea.Cmd {
	if !m.wantMore || m.loading || m.pager.Exhausted() {
		return nil
	}
	m.wantMore = false
	return m.fetch()
}

func (m *browseModel) fetch() tea.Cmd {
	if m.loading || m.pager.Exhausted() {
		return nil
	}
	m.loading = true
	ctx, pager := m.ctx, m.pager
	return func() tea.Msg {
		n, err := pager.Next(ctx)
		return pageMsg{added: n, err: err}
	}
}

// reload reopens the source and refetches as many photos as were loaded.
func (m *browseModel) reload() tea.Cmd {
	if m.opts.Reopen == nil {
		return nil
	}
	m.loading = true
	ctx, want, opts := m.ctx, max(len(m.pager.Photos()), 1), m.opts
	return func() tea.Msg {
		src, err := opts.Reopen(ctx)
		if err != nil {
			return pageMsg{err: err}
		}
		pager := source.NewPagerFunc(opts.Fetcher(src), opts.PageSize)
		for !pager.Exhausted() && len(pager.Photos()) < want {
			if _, err := pager.Next(ctx); err != nil {
				src.Close()
				return pageMsg{err: err}
			}
		}
		return pageMsg{src: src, pager: pager, added: len(pager.Photos())}
	}
}

func (m *browseModel) watch() tea.Cmd {
	if m.opts.Changes == nil {
		return nil
	}
	ctx, changes, errs := m.ctx, m.opts.Changes, m.opts.WatchErrs
	return func() tea.Msg {
		select {
		case <-changes:
			return changedMsg{}
		case err := <-errs:
			return watchErrMsg{err}
		case <-ctx.Done():
			return nil
		}
	}
}

// =============================================================================
// View
// =============================================================================

func (m *browseModel) View() string {
	var b strings.Builder

	b.WriteString(m.header())
	b.WriteString("\n")

	snap := m.coord.Snapshot()
	colCells := 0
	if snap.NumColumns > 0 {
		colCells = max(m.width/snap.NumColumns, 1)
	}
	for r := 0; r < m.rows; r++ {
		y := m.scroll + float64(r)*cellHeight
		for _, col := range snap.Columns {
			b.WriteString(m.cell(col, y, colCells))
		}
		b.WriteString("\n")
	}

	if m.filtering || m.filter.Value() != "" {
		b.WriteString(m.filter.View())
	} else {
		b.WriteString(m.help.ShortHelpView(m.keys.ShortHelp()))
	}
	return b.String()
}

func (m *browseModel) header() string {
	snap := m.coord.Snapshot()
	parts := []string{
		fmt.Sprintf("%d photos", snap.Total),
		fmt.Sprintf("%d columns", snap.NumColumns),
		fmt.Sprintf("%d visible", snap.Visible()),
	}
	switch {
	case m.err != nil:
		parts = append(parts, StyleWarning.Render(m.err.Error()))
	case m.loading:
		parts = append(parts, "loading…")
	case m.pager.Exhausted():
		parts = append(parts, "end")
	}
	if m.status != "" {
		parts = append(parts, m.status)
	}
	line := strings.Join(parts, " · ")
	if m.width > 0 {
		line = runewidth.Truncate(line, m.width, "…")
	}
	return headerStyle.Render(line)
}

// cell draws one row of one column at layout offset y.
func (m *browseModel) cell(col viewport.ColumnView, y float64, width int) string {
	blank := strings.Repeat(" ", width)
	it, ok := itemAt(col.Items, y)
	if !ok || width < 3 {
		return blank
	}

	inner := width - 3 // borders plus a gutter
	var line string
	switch {
	case y-it.Top < cellHeight:
		line = "╭" + runewidth.FillRight(runewidth.Truncate(cardTitle(it.Item), inner, "…"), inner) + "╮"
	case it.Bottom()-y <= cellHeight:
		line = "╰" + strings.Repeat("─", inner) + "╯"
	case y-it.Top < 2*cellHeight && it.Item.Photographer != "":
		line = "│" + runewidth.FillRight(runewidth.Truncate(it.Item.Photographer, inner, "…"), inner) + "│"
	default:
		line = "│" + strings.Repeat(" ", inner) + "│"
	}

	style := cardStyle
	if it.Item.AvgColor != "" {
		style = style.Foreground(lipgloss.Color(it.Item.AvgColor))
	}
	if it.Item.ID == m.selected {
		style = cardSelectedStyle
	}
	return style.Render(line) + " "
}

func cardTitle(p masonry.Photo) string {
	if p.Alt != "" {
		return p.Alt
	}
	return p.ID
}

// itemAt returns the item covering offset y. Items are sorted by Top.
func itemAt(items []masonry.VisibleItem, y float64) (masonry.VisibleItem, bool) {
	for _, it := range items {
		if it.Top > y {
			break
		}
		if y < it.Bottom() {
			return it, true
		}
	}
	return masonry.VisibleItem{}, false
}

// readingOrder lists materialized items top to bottom, left to right.
func readingOrder(s viewport.Snapshot) []masonry.VisibleItem {
	var items []masonry.VisibleItem
	for _, c := range s.Columns {
		items = append(items, c.Items...)
	}
	slices.SortStableFunc(items, func(a, b masonry.VisibleItem) int {
		return cmp.Compare(a.Top, b.Top)
	})
	return items
}

// close releases the coordinator and the current source.
func (m *browseModel) close() error {
	m.coord.Close()
	return m.src.Close()
}
