// Package tui is the interactive todo list. Every change is submitted as a
// signed instruction and the list is reloaded from the ledger afterwards.
package tui

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/list"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/idilsaglam/todochain/internal/program"
	"github.com/idilsaglam/todochain/internal/runtime"
	"github.com/idilsaglam/todochain/internal/ui"
)

// Service is what the list needs from a client.
type Service interface {
	Todos(ctx context.Context) ([]program.TodoItem, error)
	AddTodo(ctx context.Context, content string) (*runtime.Receipt, uint8, error)
	MarkTodo(ctx context.Context, index uint8) (*runtime.Receipt, error)
	RemoveTodo(ctx context.Context, index uint8) (*runtime.Receipt, error)
}

// listItem adapts a TodoItem to bubbles/list.Item
type listItem struct {
	program.TodoItem
}

func (i listItem) Title() string       { return i.Content }
func (i listItem) Description() string { return "" }
func (i listItem) FilterValue() string { return i.Content }

type itemsMsg struct {
	items []program.TodoItem
	err   error
}

type opDoneMsg struct {
	status string
	err    error
}

var (
	markBind    = key.NewBinding(key.WithKeys(" "), key.WithHelp("space", "mark done"))
	removeBind  = key.NewBinding(key.WithKeys("d"), key.WithHelp("d", "remove"))
	addBind     = key.NewBinding(key.WithKeys("a"), key.WithHelp("a", "add"))
	refreshBind = key.NewBinding(key.WithKeys("r"), key.WithHelp("r", "refresh"))
)

// Custom delegate to control how items render (single line)
type itemDelegate struct{}

func (d itemDelegate) Height() int                               { return 1 }
func (d itemDelegate) Spacing() int                              { return 0 }
func (d itemDelegate) Update(msg tea.Msg, m *list.Model) tea.Cmd { return nil }
func (d itemDelegate) Render(w io.Writer, m list.Model, index int, item list.Item) {
	it, ok := item.(listItem)
	if !ok {
		return
	}
	t := ui.Current()

	idx := t.Muted.Render(fmt.Sprintf("%3d.", it.Index))
	box := t.Muted.Render(t.BoxUnchecked)
	text := it.Content
	if it.Completed {
		box = t.Success.Render(t.BoxChecked)
		text = t.Done.Render(text)
	}

	prefix := "  "
	if index == m.Index() {
		prefix = t.Selected.Render("> ")
	}
	fmt.Fprintln(w, prefix+idx+" "+box+" "+text)
}

type Model struct {
	ctx  context.Context
	svc  Service
	list list.Model

	width, height int

	adding bool
	ti     textinput.Model
	addErr string

	busy bool
	err  error
}

func New(ctx context.Context, svc Service) Model {
	t := ui.Current()

	l := list.New(nil, itemDelegate{}, 0, 0)
	l.Title = header(nil)
	l.SetShowHelp(true)
	l.SetShowPagination(true)
	l.SetShowStatusBar(true)
	l.SetFilteringEnabled(true)
	l.Styles.Title = t.Title
	l.Styles.HelpStyle = t.Help
	l.Styles.PaginationStyle = t.Help
	l.FilterInput.Prompt = "/ "
	l.SetStatusBarItemName("todo", "todos")
	extra := func() []key.Binding { return []key.Binding{markBind, removeBind, addBind, refreshBind} }
	l.AdditionalShortHelpKeys = extra
	l.AdditionalFullHelpKeys = extra

	ti := textinput.New()
	ti.Prompt = "> "
	ti.Placeholder = "New todo..."
	ti.CharLimit = program.MaxContentLen

	m := Model{ctx: ctx, svc: svc, list: l, ti: ti, width: 80, height: 24}
	m.resize()
	return m
}

// Run starts the program on the terminal's alternate screen.
func Run(ctx context.Context, svc Service) error {
	_, err := tea.NewProgram(New(ctx, svc), tea.WithAltScreen(), tea.WithContext(ctx)).Run()
	return err
}

func header(items []program.TodoItem) string {
	t := ui.Current()
	done := 0
	for _, it := range items {
		if it.Completed {
			done++
		}
	}
	return fmt.Sprintf("%s   %s %d  %s %d  %s %d",
		t.Title.Render("Todos"),
		t.Success.Render(t.SymDone), done,
		t.Pending.Render(t.SymPending), len(items)-done,
		t.Accent.Render("Total"), len(items),
	)
}

func (m Model) load() tea.Cmd {
	return func() tea.Msg {
		items, err := m.svc.Todos(m.ctx)
		return itemsMsg{items: items, err: err}
	}
}

func (m Model) run(status string, op func() error) tea.Cmd {
	return func() tea.Msg {
		return opDoneMsg{status: status, err: op()}
	}
}

func (m Model) Init() tea.Cmd { return m.load() }

func (m Model) selected() (program.TodoItem, bool) {
	it, ok := m.list.SelectedItem().(listItem)
	return it.TodoItem, ok
}

func (m *Model) resize() {
	h := m.height - 4
	if m.adding {
		h -= 2
	}
	if h < 1 {
		h = 1
	}
	m.list.SetSize(m.width-4, h)
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		m.resize()
		return m, nil

	case itemsMsg:
		m.busy = false
		if msg.err != nil {
			m.err = msg.err
			return m, nil
		}
		m.err = nil
		li := make([]list.Item, 0, len(msg.items))
		for _, it := range msg.items {
			li = append(li, listItem{it})
		}
		m.list.Title = header(msg.items)
		return m, m.list.SetItems(li)

	case opDoneMsg:
		if msg.err != nil {
			m.busy = false
			m.err = msg.err
			return m, nil
		}
		m.err = nil
		return m, tea.Batch(m.list.NewStatusMessage(msg.status), m.load())
	}

	if m.adding {
		return m.updateAdding(msg)
	}

	if k, ok := msg.(tea.KeyMsg); ok && m.list.FilterState() != list.Filtering {
		switch k.String() {
		case "q", "esc", "ctrl+c":
			return m, tea.Quit
		case "r":
			m.busy = true
			return m, m.load()
		case "a":
			m.adding = true
			m.addErr = ""
			m.ti.SetValue("")
			m.ti.Focus()
			m.resize()
			return m, textinput.Blink
		case " ":
			it, ok := m.selected()
			if !ok || m.busy {
				return m, nil
			}
			m.busy = true
			return m, m.run(fmt.Sprintf("marked #%d", it.Index), func() error {
				_, err := m.svc.MarkTodo(m.ctx, it.Index)
				return err
			})
		case "d":
			it, ok := m.selected()
			if !ok || m.busy {
				return m, nil
			}
			m.busy = true
			return m, m.run(fmt.Sprintf("removed #%d", it.Index), func() error {
				_, err := m.svc.RemoveTodo(m.ctx, it.Index)
				return err
			})
		}
	}

	var cmd tea.Cmd
	m.list, cmd = m.list.Update(msg)
	return m, cmd
}

func (m Model) updateAdding(msg tea.Msg) (tea.Model, tea.Cmd) {
	if k, ok := msg.(tea.KeyMsg); ok {
		switch k.String() {
		case "enter":
			content := strings.TrimSpace(m.ti.Value())
			if content == "" {
				m.addErr = "Todo cannot be empty"
				return m, nil
			}
			// CharLimit counts runes; the record limit is bytes.
			if len(content) > program.MaxContentLen {
				m.addErr = fmt.Sprintf("Todo is %d bytes, limit %d", len(content), program.MaxContentLen)
				return m, nil
			}
			m.adding = false
			m.busy = true
			m.ti.Blur()
			m.resize()
			return m, m.run("added", func() error {
				_, _, err := m.svc.AddTodo(m.ctx, content)
				return err
			})
		case "esc":
			m.adding = false
			m.ti.SetValue("")
			m.ti.Blur()
			m.resize()
			return m, nil
		}
	}
	var cmd tea.Cmd
	m.ti, cmd = m.ti.Update(msg)
	return m, cmd
}

func (m Model) View() string {
	t := ui.Current()
	content := m.list.View()
	if m.adding {
		title := "Add todo"
		if m.addErr != "" {
			title += ": " + t.Error.Render(m.addErr)
		}
		content += "\n" + title + "\n" + m.ti.View()
	}
	if m.err != nil {
		content += "\n" + t.Error.Render(t.SymFail+" "+m.err.Error())
	}
	return ui.RenderPanel([]string{content})
}
