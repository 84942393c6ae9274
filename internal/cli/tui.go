package cli

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	gerrors "github.com/matzehuels/graphlens/pkg/errors"
	"github.com/matzehuels/graphlens/pkg/explore"
	"github.com/matzehuels/graphlens/pkg/filter"
	"github.com/matzehuels/graphlens/pkg/graph"
	"github.com/matzehuels/graphlens/pkg/render"
	"github.com/matzehuels/graphlens/pkg/visibility"
)

// List styles
var (
	listSelectedStyle = lipgloss.NewStyle().Bold(true).Foreground(colorCyan)
	listDimStyle      = lipgloss.NewStyle().Foreground(colorDim)
	panelStyle        = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(colorDim).Padding(0, 1)
)

// tickInterval paces the layout while the TUI runs.
const tickInterval = 100 * time.Millisecond

// filterName names the sequence typed at the filter prompt.
const filterName = "prompt"

type tuiMode int

const (
	modeList tuiMode = iota
	modeLabels
	modeFilter
	modeConfirm
	modeHelp
)

// panelFeatures are the UI switches that have no explorer counterpart.
type panelFeatures struct {
	ControlPanel bool
	InfoPanel    bool
	Help         bool
	OpenNewTab   bool
}

// =============================================================================
// Messages
// =============================================================================

type tickMsg time.Time

// opMsg reports a finished explorer operation.
type opMsg struct {
	verb   string
	target graph.ID
	counts graph.Counts
	err    error
}

type filterMsg struct {
	result filter.Result
	err    error
}

type snapshotMsg struct {
	path string
	err  error
}

// =============================================================================
// exploreModel - Interactive explorer
// =============================================================================

type row struct {
	ID     graph.ID
	Name   string
	Label  string
	Degree int
	Fixed  bool
	Root   bool
}

// exploreModel lists the shown vertices and drives the explorer from the
// keyboard. It is used through a pointer so explorer observers called
// from Update can record into it.
type exploreModel struct {
	ctx      context.Context
	ex       *explore.Explorer
	matcher  filter.Matcher
	panels   panelFeatures
	newTab   func(id graph.ID) string
	filters  *filter.Set
	snapshot string

	mode   tuiMode
	rows   []row
	cursor int
	offset int
	height int

	labels      []visibility.State
	labelCursor int
	input       string

	edgeFrom  graph.ID
	pending   *[2]graph.ID
	selection *explore.Selection
	highlight map[graph.EntityRef]string

	status    string
	statusErr bool
	busy      int
}

func newExploreModel(ctx context.Context, ex *explore.Explorer, m filter.Matcher, panels panelFeatures) *exploreModel {
	model := &exploreModel{
		ctx:      ctx,
		ex:       ex,
		matcher:  m,
		panels:   panels,
		filters:  filter.NewSet(),
		snapshot: "graphlens.svg",
		height:   15,
	}
	ex.ObserveEdgeRequests(explore.EdgeRequestFunc(func(from, to *graph.Vertex) {
		model.pending = &[2]graph.ID{from.ID, to.ID}
		model.mode = modeConfirm
	}))
	ex.ObserveSelection(explore.SelectionFunc(func(sel explore.Selection) {
		model.selection = &sel
	}))
	model.refresh()
	return model
}

func (m *exploreModel) Init() tea.Cmd {
	return tickCmd()
}

func tickCmd() tea.Cmd {
	return tea.Tick(tickInterval, func(t time.Time) tea.Msg { return tickMsg(t) })
}

// refresh rebuilds the rows from the shown vertices and reselects the
// vertex under the cursor.
func (m *exploreModel) refresh() {
	m.rows = m.rows[:0]
	m.ex.View(func(s *graph.Store, sc *explore.Scene) {
		for _, v := range sc.Vertices() {
			if !v.Shown {
				continue
			}
			m.rows = append(m.rows, row{
				ID: v.ID, Name: v.Name, Label: v.Label,
				Degree: v.Degree(), Fixed: v.Fixed, Root: s.IsRoot(v.ID),
			})
		}
	})
	m.cursor = min(m.cursor, max(len(m.rows)-1, 0))
	m.offset = min(m.offset, m.cursor)
	m.selection = nil
	if id, ok := m.current(); ok && m.panels.InfoPanel {
		m.ex.Select(graph.EntityRef{Type: graph.VertexType, ID: id})
	}
}

func (m *exploreModel) current() (graph.ID, bool) {
	if len(m.rows) == 0 {
		return graph.None, false
	}
	return m.rows[m.cursor].ID, true
}

func (m *exploreModel) setStatus(err error, format string, args ...any) {
	m.statusErr = err != nil
	if err != nil {
		m.status = gerrors.UserMessage(err)
		return
	}
	m.status = fmt.Sprintf(format, args...)
}

// op runs fn off the event loop and reports through an opMsg.
func (m *exploreModel) op(verb string, id graph.ID, fn func(context.Context) (graph.Counts, error)) tea.Cmd {
	m.busy++
	ctx := m.ctx
	return func() tea.Msg {
		c, err := fn(ctx)
		return opMsg{verb: verb, target: id, counts: c, err: err}
	}
}

func (m *exploreModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tickMsg:
		m.ex.Tick()
		return m, tickCmd()

	case tea.WindowSizeMsg:
		m.height = max(msg.Height-12, 5)
		return m, nil

	case opMsg:
		m.busy--
		m.handleOp(msg)
		m.refresh()
		return m, nil

	case filterMsg:
		m.busy--
		switch {
		case msg.err != nil:
			m.setStatus(msg.err, "")
		case !msg.result.Valid():
			m.setStatus(msg.result.Err, "")
		default:
			seq, _ := m.filters.Get(filterName)
			m.highlight = highlightMap(m.ex, m.filters, seq)
			m.setStatus(nil, "filter matched %d vertices and %d edges, %d shown here",
				len(msg.result.Matches.Vertices), len(msg.result.Matches.Edges), len(m.highlight))
		}
		return m, nil

	case snapshotMsg:
		m.busy--
		m.setStatus(msg.err, "snapshot written to %s", msg.path)
		return m, nil

	case tea.KeyMsg:
		switch m.mode {
		case modeLabels:
			return m, m.updateLabels(msg)
		case modeFilter:
			return m, m.updateFilter(msg)
		case modeConfirm:
			return m, m.updateConfirm(msg)
		case modeHelp:
			m.mode = modeList
			return m, nil
		}
		return m, m.updateList(msg)
	}
	return m, nil
}

func (m *exploreModel) handleOp(msg opMsg) {
	switch {
	case gerrors.Is(msg.err, gerrors.ErrCodeStaleResponse):
		m.setStatus(nil, "%s of %s dropped: vertex changed while loading", msg.verb, msg.target)
	case msg.err != nil:
		m.setStatus(msg.err, "")
	case msg.verb == "expand":
		m.setStatus(nil, "expanded %s: %d vertices added, %d edges added", msg.target, msg.counts.Vertices, msg.counts.Edges)
	case msg.verb == "create edge":
		m.setStatus(nil, "edge created from %s", msg.target)
	case msg.verb == "recenter":
		m.cursor, m.offset = 0, 0
		m.highlight = nil
		m.setStatus(nil, "centred on %s", msg.target)
	default:
		m.setStatus(nil, "%s %s: %d vertices deleted, %d edges deleted", msg.verb, msg.target, msg.counts.Vertices, msg.counts.Edges)
	}
}

func (m *exploreModel) updateList(msg tea.KeyMsg) tea.Cmd {
	id, ok := m.current()
	switch msg.String() {
	case "q", "ctrl+c", "esc":
		return tea.Quit
	case "up", "k":
		m.move(-1)
	case "down", "j":
		m.move(1)
	case "pgup":
		m.move(-m.height)
	case "pgdown":
		m.move(m.height)
	case "?":
		if m.panels.Help {
			m.mode = modeHelp
		}
	case "l":
		if m.panels.ControlPanel {
			m.labels = m.ex.Toggles().Snapshot()
			m.labelCursor = 0
			m.mode = modeLabels
		}
	case "/":
		m.input = ""
		m.mode = modeFilter
	case "F":
		m.highlight = nil
		m.filters.Delete(filterName)
		m.setStatus(nil, "filter cleared")
	case "s":
		m.busy++
		ctx, ex, path := m.ctx, m.ex, m.snapshot
		opts := render.Options{Positions: true, Highlight: m.highlightCopy()}
		return func() tea.Msg {
			return snapshotMsg{path: path, err: writeSnapshot(ctx, ex, path, render.FormatSVG, opts)}
		}
	case "P":
		if err := m.ex.PinAll(); err != nil {
			m.setStatus(err, "")
		} else {
			m.setStatus(nil, "pinned %d vertices", len(m.rows))
			m.refresh()
		}
	}
	if !ok {
		return nil
	}

	switch msg.String() {
	case "enter", "e":
		return m.op("expand", id, func(ctx context.Context) (graph.Counts, error) { return m.ex.Expand(ctx, id) })
	case "c":
		return m.op("collapse", id, func(ctx context.Context) (graph.Counts, error) { return m.ex.Collapse(ctx, id) })
	case "x":
		c, err := m.ex.RemoveVertex(m.ctx, id)
		m.handleOp(opMsg{verb: "remove", target: id, counts: c, err: err})
		m.refresh()
	case "d":
		return m.op("delete", id, func(ctx context.Context) (graph.Counts, error) {
			return m.ex.Delete(ctx, graph.VertexType, id)
		})
	case "r":
		return m.op("recenter", id, func(ctx context.Context) (graph.Counts, error) {
			return graph.Counts{}, m.ex.Recenter(ctx, id)
		})
	case "o":
		if m.panels.OpenNewTab && m.newTab != nil {
			m.setStatus(nil, "open in a new session: %s", m.newTab(id))
		}
	case "p":
		var err error
		if m.rows[m.cursor].Fixed {
			err = m.ex.Unpin(id)
		} else {
			err = m.ex.Pin(id)
		}
		m.setStatus(err, "toggled pin on %s", id)
		m.refresh()
	case "a":
		if m.edgeFrom == graph.None {
			m.edgeFrom = id
			m.setStatus(nil, "new edge from %s: move to the target and press a", id)
			return nil
		}
		from := m.edgeFrom
		m.edgeFrom = graph.None
		if err := m.ex.RequestEdge(from, id); err != nil {
			m.setStatus(err, "")
		}
	}
	return nil
}

func (m *exploreModel) highlightCopy() map[graph.EntityRef]string {
	out := make(map[graph.EntityRef]string, len(m.highlight))
	for k, v := range m.highlight {
		out[k] = v
	}
	return out
}

func (m *exploreModel) move(delta int) {
	if len(m.rows) == 0 {
		return
	}
	m.cursor = min(max(m.cursor+delta, 0), len(m.rows)-1)
	if m.cursor < m.offset {
		m.offset = m.cursor
	}
	if m.cursor >= m.offset+m.height {
		m.offset = m.cursor - m.height + 1
	}
	m.selection = nil
	if m.panels.InfoPanel {
		m.ex.Select(graph.EntityRef{Type: graph.VertexType, ID: m.rows[m.cursor].ID})
	}
}

func (m *exploreModel) updateLabels(msg tea.KeyMsg) tea.Cmd {
	switch msg.String() {
	case "q", "esc", "l":
		m.mode = modeList
	case "up", "k":
		m.labelCursor = max(m.labelCursor-1, 0)
	case "down", "j":
		m.labelCursor = min(m.labelCursor+1, max(len(m.labels)-1, 0))
	case " ", "enter":
		if len(m.labels) == 0 {
			return nil
		}
		st := m.labels[m.labelCursor]
		on := m.ex.Toggle(st.Type, st.Label)
		m.labels = m.ex.Toggles().Snapshot()
		m.refresh()
		m.setStatus(nil, "%s %s %s", st.Type, st.Label, onOff(on))
	}
	return nil
}

func (m *exploreModel) updateFilter(msg tea.KeyMsg) tea.Cmd {
	switch msg.Type {
	case tea.KeyEsc, tea.KeyCtrlC:
		m.mode = modeList
	case tea.KeyBackspace:
		if r := []rune(m.input); len(r) > 0 {
			m.input = string(r[:len(r)-1])
		}
	case tea.KeyEnter:
		m.mode = modeList
		seq, err := parseFilterChain(filterName, m.input)
		if err == nil {
			err = m.filters.Put(seq)
		}
		if err != nil {
			m.setStatus(err, "")
			return nil
		}
		m.busy++
		ctx, matcher, set := m.ctx, m.matcher, m.filters
		return func() tea.Msg {
			results, err := set.Evaluate(ctx, matcher)
			for _, r := range results {
				if r.Name == filterName {
					return filterMsg{result: r, err: err}
				}
			}
			return filterMsg{err: err}
		}
	case tea.KeySpace:
		m.input += " "
	case tea.KeyRunes:
		m.input += string(msg.Runes)
	}
	return nil
}

func (m *exploreModel) updateConfirm(msg tea.KeyMsg) tea.Cmd {
	pending := m.pending
	m.pending = nil
	m.mode = modeList
	if pending == nil || msg.String() != "y" {
		m.setStatus(nil, "edge creation cancelled")
		return nil
	}
	from, to := pending[0], pending[1]
	return m.op("create edge", from, func(ctx context.Context) (graph.Counts, error) {
		if _, err := m.ex.CreateEdge(ctx, from, to); err != nil {
			return graph.Counts{}, err
		}
		return graph.Counts{Edges: 1}, nil
	})
}

var linkRe = regexp.MustCompile(`\s+(?i:(AND|OR))\s+`)

// parseFilterChain splits "a AND b OR c" into a filter sequence.
func parseFilterChain(name, input string) (*filter.Sequence, error) {
	seq := filter.NewSequence(name, "yellow")
	input = strings.TrimSpace(input)
	if input == "" {
		return nil, gerrors.New(gerrors.ErrCodeInvalidFilter, "empty filter")
	}
	link := filter.And
	rest := input
	for {
		loc := linkRe.FindStringSubmatchIndex(rest)
		if loc == nil {
			return seq, seq.Add(rest, link)
		}
		if err := seq.Add(rest[:loc[0]], link); err != nil {
			return nil, err
		}
		link = strings.ToUpper(rest[loc[2]:loc[3]])
		rest = rest[loc[1]:]
	}
}

// =============================================================================
// View
// =============================================================================

func (m *exploreModel) View() string {
	var b strings.Builder

	b.WriteString(StyleTitle.Render(appName))
	b.WriteString(StyleDim.Render("  " + m.ex.Summary()))
	if m.busy > 0 {
		b.WriteString(StyleDim.Render("  loading..."))
	}
	b.WriteString("\n\n")

	switch m.mode {
	case modeHelp:
		b.WriteString(m.helpView())
		return b.String()
	case modeLabels:
		b.WriteString(m.labelsView())
	default:
		b.WriteString(m.listView())
		if m.panels.InfoPanel && m.selection != nil && m.selection.Vertex != nil {
			b.WriteString("\n")
			b.WriteString(m.infoView())
		}
	}

	b.WriteString("\n")
	switch m.mode {
	case modeFilter:
		b.WriteString(StyleHighlight.Render("filter> ") + m.input + "█")
	case modeConfirm:
		if m.pending != nil {
			b.WriteString(StyleWarning.Render(fmt.Sprintf("create edge %s %s %s? [y/N]", m.pending[0], iconArrow, m.pending[1])))
		}
	default:
		if m.status != "" {
			if m.statusErr {
				b.WriteString(styleIconError.Render(iconError) + " " + m.status)
			} else {
				b.WriteString(styleIconInfo.Render(iconInfo) + " " + m.status)
			}
		}
	}
	b.WriteString("\n")
	hint := "↑/↓ navigate  ⏎ expand  c collapse  / filter  q quit"
	if m.panels.Help {
		hint += "  ? help"
	}
	b.WriteString(listDimStyle.Render(hint))
	return b.String()
}

func (m *exploreModel) listView() string {
	end := min(m.offset+m.height, len(m.rows))
	rows := make([][]string, 0, end-m.offset)
	for i := m.offset; i < end; i++ {
		r := m.rows[i]
		cursor := "  "
		if i == m.cursor {
			cursor = "▸ "
		}
		var flags []string
		if r.Root {
			flags = append(flags, "centre")
		}
		if r.Fixed {
			flags = append(flags, "pinned")
		}
		rows = append(rows, []string{cursor, r.ID.String(), r.Name, r.Label, fmt.Sprint(r.Degree), strings.Join(flags, " ")})
	}

	headerStyle := lipgloss.NewStyle().Foreground(colorGray).Bold(true)
	t := table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(colorDim)).
		Headers("", "ID", "Name", "Label", "Degree", "").
		Rows(rows...).
		StyleFunc(func(r, col int) lipgloss.Style {
			if r == -1 {
				return headerStyle
			}
			idx := m.offset + r
			if idx >= len(m.rows) {
				return lipgloss.NewStyle()
			}
			base := lipgloss.NewStyle()
			if c, ok := m.highlight[graph.EntityRef{Type: graph.VertexType, ID: m.rows[idx].ID}]; ok {
				base = base.Foreground(lipgloss.Color(termColor(c)))
			}
			if idx == m.cursor {
				return base.Inherit(listSelectedStyle)
			}
			return base
		})

	return t.Render() + "\n" + listDimStyle.Render(fmt.Sprintf("  [%d/%d]", min(m.cursor+1, len(m.rows)), len(m.rows)))
}

func (m *exploreModel) infoView() string {
	sel := m.selection
	var b strings.Builder
	b.WriteString(StyleHighlight.Render(sel.Vertex.Name))
	b.WriteString("\n")
	b.WriteString(sel.Vertex.Info)
	b.WriteString("\n")
	names := make([]string, 0, len(sel.Vertices))
	for _, v := range sel.Vertices {
		names = append(names, v.Name)
	}
	b.WriteString(StyleDim.Render(fmt.Sprintf("%d edges to %s", len(sel.Edges), strings.Join(names, ", "))))
	return panelStyle.Render(b.String())
}

func (m *exploreModel) labelsView() string {
	rows := make([][]string, 0, len(m.labels))
	for i, st := range m.labels {
		cursor := "  "
		if i == m.labelCursor {
			cursor = "▸ "
		}
		rows = append(rows, []string{cursor, string(st.Type), st.Label, onOff(st.On)})
	}
	t := table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(colorDim)).
		Headers("", "Type", "Label", "Shown").
		Rows(rows...).
		StyleFunc(func(r, col int) lipgloss.Style {
			switch {
			case r == -1:
				return lipgloss.NewStyle().Foreground(colorGray).Bold(true)
			case r == m.labelCursor:
				return listSelectedStyle
			case r < len(m.labels) && !m.labels[r].On:
				return listDimStyle
			}
			return lipgloss.NewStyle()
		})
	return StyleTitle.Render("Labels") + listDimStyle.Render("  space toggle  esc back") + "\n" + t.Render()
}

func (m *exploreModel) helpView() string {
	f := m.ex.Features()
	keys := [][2]string{
		{"↑/↓ j/k", "move"},
		{"/", "filter, e.g. label = host AND name ~ '^web'"},
		{"F", "clear the filter highlight"},
		{"s", "write an SVG snapshot to " + m.snapshot},
	}
	if f.Expand {
		keys = append(keys, [2]string{"⏎ e", "expand"}, [2]string{"c", "collapse"})
	}
	keys = append(keys, [2]string{"x", "remove from view"})
	if f.DeleteSelection {
		keys = append(keys, [2]string{"d", "delete on the backend"})
	}
	if f.ReCenter {
		keys = append(keys, [2]string{"r", "recentre"})
	}
	if m.panels.OpenNewTab {
		keys = append(keys, [2]string{"o", "open in a new session"})
	}
	if f.Pin {
		keys = append(keys, [2]string{"p", "pin / unpin"}, [2]string{"P", "pin all"})
	}
	if f.DragNew {
		keys = append(keys, [2]string{"a", "new edge: press on source, then target"})
	}
	if m.panels.ControlPanel {
		keys = append(keys, [2]string{"l", "label visibility"})
	}
	keys = append(keys, [2]string{"q", "quit"})

	keyStyle := lipgloss.NewStyle().Foreground(colorCyan).Width(10)
	var b strings.Builder
	b.WriteString(StyleTitle.Render("Keys"))
	b.WriteString("\n\n")
	for _, k := range keys {
		b.WriteString(keyStyle.Render(k[0]) + " " + k[1] + "\n")
	}
	b.WriteString("\n" + listDimStyle.Render("any key to return"))
	return b.String()
}

func onOff(on bool) string {
	if on {
		return "on"
	}
	return "off"
}

// termColor maps the colour names filters use onto terminal colours.
// Hex colours pass through.
func termColor(c string) string {
	switch c {
	case "red":
		return "167"
	case "yellow":
		return "220"
	case "blue":
		return "75"
	case "green":
		return "35"
	}
	return c
}
