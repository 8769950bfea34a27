package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/google/uuid"

	"github.com/veldt-engine/asset-runtime/asset"
	"github.com/veldt-engine/asset-runtime/watcher"
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FAFAFA")).
			Background(lipgloss.Color("#7D56F4")).
			Padding(0, 1)

	typeStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#87CEEB"))

	selectedStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FAFAFA")).
			Background(lipgloss.Color("#7D56F4"))

	statusStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#90EE90"))

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FF6B6B"))

	helpStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#666666"))
)

type interactiveModel struct {
	err      error
	mgr      *asset.Manager
	watch    *watcher.Watcher
	dir      string
	status   string
	input    textinput.Model
	held     map[uuid.UUID][]asset.Ref[asset.Resource]
	selected int
	state    modelState
}

type modelState int

const (
	stateBrowse modelState = iota
	stateInputPath
)

// tickMsg drives the frame loop: pending hot reloads and the deferred
// disposal queue are both applied on ticks, never mid-update.
type tickMsg struct{}

func newInteractiveModel(dir string, mgr *asset.Manager, watch *watcher.Watcher) *interactiveModel {
	ti := textinput.New()
	ti.Placeholder = "textures/stone.png"
	ti.Prompt = "path: "
	ti.Width = 40
	return &interactiveModel{
		mgr:   mgr,
		watch: watch,
		dir:   dir,
		input: ti,
		held:  make(map[uuid.UUID][]asset.Ref[asset.Resource]),
	}
}

func tick() tea.Cmd {
	return tea.Tick(250*time.Millisecond, func(time.Time) tea.Msg { return tickMsg{} })
}

func (m *interactiveModel) Init() tea.Cmd {
	return tick()
}

func (m *interactiveModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tickMsg:
		if m.watch != nil && m.watch.Pending() > 0 {
			n := m.watch.Pending()
			m.watch.ApplyPending()
			m.status = fmt.Sprintf("reloaded %d change(s)", n)
		}
		m.mgr.ProcessDeferredDisposals()
		return m, tick()

	case tea.KeyMsg:
		if m.state == stateInputPath {
			return m.updateInput(msg)
		}
		return m.updateBrowse(msg)
	}
	return m, nil
}

func (m *interactiveModel) updateBrowse(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	records := m.mgr.Records()

	switch msg.String() {
	case "ctrl+c", "q":
		m.releaseAll()
		if m.watch != nil {
			m.watch.Close()
		}
		m.mgr.Close()
		return m, tea.Quit

	case "up", "k":
		if m.selected > 0 {
			m.selected--
		}

	case "down", "j":
		if m.selected < len(records)-1 {
			m.selected++
		}

	case "l":
		m.input.SetValue("")
		m.input.Focus()
		m.state = stateInputPath
		m.err = nil

	case "a":
		if rec := m.current(records); rec != nil {
			ref := asset.RefByID[asset.Resource](m.mgr, rec.ExternalID, 0)
			m.held[rec.ExternalID] = append(m.held[rec.ExternalID], ref)
			m.status = fmt.Sprintf("acquired %s", rec.SourcePath)
		}

	case "r":
		if rec := m.current(records); rec != nil {
			refs := m.held[rec.ExternalID]
			if len(refs) == 0 {
				m.status = "no held reference to release"
				break
			}
			last := refs[len(refs)-1]
			last.Release()
			m.held[rec.ExternalID] = refs[:len(refs)-1]
			m.status = fmt.Sprintf("released %s", rec.SourcePath)
			if m.selected >= len(m.mgr.Records()) && m.selected > 0 {
				m.selected--
			}
		}

	case "R":
		if rec := m.current(records); rec != nil {
			if _, err := m.mgr.Reimport(rec.SourcePath); err != nil {
				m.err = err
			} else {
				m.status = fmt.Sprintf("reimported %s", rec.SourcePath)
			}
		}

	case "d":
		n := m.mgr.PendingDisposals()
		m.mgr.ProcessDeferredDisposals()
		m.status = fmt.Sprintf("drained %d disposal(s)", n)
	}

	return m, nil
}

func (m *interactiveModel) updateInput(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "ctrl+c":
		return m, tea.Quit

	case "esc":
		m.state = stateBrowse
		m.input.Blur()
		return m, nil

	case "enter":
		p := strings.TrimSpace(m.input.Value())
		m.state = stateBrowse
		m.input.Blur()
		if p == "" {
			return m, nil
		}
		rec, err := m.mgr.Import(p)
		if err != nil {
			m.err = err
			return m, nil
		}
		ref := asset.RefByID[asset.Resource](m.mgr, rec.ExternalID, 0)
		m.held[rec.ExternalID] = append(m.held[rec.ExternalID], ref)
		m.err = nil
		m.status = fmt.Sprintf("loaded %s", p)
		return m, nil
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m *interactiveModel) current(records []*asset.Record) *asset.Record {
	if m.selected < 0 || m.selected >= len(records) {
		return nil
	}
	return records[m.selected]
}

func (m *interactiveModel) releaseAll() {
	for id, refs := range m.held {
		for i := range refs {
			refs[i].Release()
		}
		delete(m.held, id)
	}
	m.mgr.ProcessDeferredDisposals()
}

func (m *interactiveModel) View() string {
	var b strings.Builder

	b.WriteString(titleStyle.Render("Asset Viewer"))
	b.WriteString(" ")
	b.WriteString(m.dir)
	b.WriteString("\n\n")

	records := m.mgr.Records()
	if len(records) == 0 {
		b.WriteString("No assets loaded. Press l to load one.\n")
	} else {
		for i, rec := range records {
			line := fmt.Sprintf("%-30s refs=%-3d subs=%-2d %s",
				rec.SourcePath, rec.RefCount(), len(rec.Subs()),
				typeStyle.Render(fmt.Sprintf("%T", rec.Main())))
			cursor := "  "
			if i == m.selected && m.state == stateBrowse {
				b.WriteString(selectedStyle.Render("> " + line))
			} else {
				b.WriteString(cursor + line)
			}
			b.WriteString("\n")
		}
	}
	b.WriteString("\n")
	b.WriteString(fmt.Sprintf("live: %d  pending disposals: %d  held refs: %d\n",
		m.mgr.LiveResources(), m.mgr.PendingDisposals(), m.heldCount()))

	if m.state == stateInputPath {
		b.WriteString("\n")
		b.WriteString(m.input.View())
		b.WriteString("\n")
		b.WriteString(helpStyle.Render("enter load • esc back"))
		return b.String()
	}

	if m.err != nil {
		b.WriteString("\n")
		b.WriteString(errorStyle.Render(fmt.Sprintf("Error: %v", m.err)))
	} else if m.status != "" {
		b.WriteString("\n")
		b.WriteString(statusStyle.Render(m.status))
	}

	b.WriteString("\n\n")
	b.WriteString(helpStyle.Render("↑/↓ select • l load • a acquire • r release • R reimport • d drain • q quit"))
	return b.String()
}

func (m *interactiveModel) heldCount() int {
	n := 0
	for _, refs := range m.held {
		n += len(refs)
	}
	return n
}

func runInteractive(dir string, paths []string, verbose bool) error {
	mgr, err := newManager(dir, verbose)
	if err != nil {
		return err
	}

	w, err := watcher.New(dir, watcher.Reimport(mgr), watcher.WithFrameHook(mgr))
	if err != nil {
		mgr.Close()
		return fmt.Errorf("watch %s: %w", dir, err)
	}

	model := newInteractiveModel(dir, mgr, w)
	for _, p := range paths {
		rec, err := mgr.Import(p)
		if err != nil {
			w.Close()
			mgr.Close()
			return fmt.Errorf("import %s: %w", p, err)
		}
		ref := asset.RefByID[asset.Resource](mgr, rec.ExternalID, 0)
		model.held[rec.ExternalID] = append(model.held[rec.ExternalID], ref)
	}

	p := tea.NewProgram(model, tea.WithAltScreen())
	_, err = p.Run()
	return err
}
