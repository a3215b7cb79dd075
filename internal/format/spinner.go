package format

import (
	"context"
	"fmt"
	"os"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// Spinner shows run progress on stderr while a flow executes.
type Spinner struct {
	prog   *tea.Program
	done   chan struct{}
	ctx    context.Context
	cancel context.CancelFunc
}

type spinnerModel struct {
	spinner  spinner.Model
	message  string
	quitting bool
}

type messageMsg string

type quitMsg struct{}

var messageStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))

func (m spinnerModel) Init() tea.Cmd {
	return m.spinner.Tick
}

func (m spinnerModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		m.quitting = true
		return m, tea.Quit
	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	case messageMsg:
		m.message = string(msg)
		return m, nil
	case quitMsg:
		m.quitting = true
		return m, tea.Quit
	}
	return m, nil
}

func (m spinnerModel) View() string {
	if m.quitting {
		return ""
	}
	return fmt.Sprintf("%s %s", m.spinner.View(), messageStyle.Render(m.message))
}

// NewSpinner creates a new spinner with the given message
func NewSpinner(message string) *Spinner {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("205"))

	ctx, cancel := context.WithCancel(context.Background())
	prog := tea.NewProgram(spinnerModel{spinner: s, message: message},
		tea.WithOutput(os.Stderr),
		tea.WithInput(nil),
		tea.WithContext(ctx),
	)
	return &Spinner{
		prog:   prog,
		done:   make(chan struct{}),
		ctx:    ctx,
		cancel: cancel,
	}
}

// Start begins the spinner animation
func (s *Spinner) Start() {
	go func() {
		defer close(s.done)
		go func() {
			<-s.ctx.Done()
			s.prog.Send(quitMsg{})
		}()
		_, _ = s.prog.Run()
	}()
}

// SetMessage replaces the text shown next to the spinner.
func (s *Spinner) SetMessage(message string) {
	s.prog.Send(messageMsg(message))
}

// Stop ends the spinner animation
func (s *Spinner) Stop() {
	s.cancel()
	<-s.done
}
