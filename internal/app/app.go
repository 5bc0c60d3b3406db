package app

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/brensch/flatpack/internal/orchestrator"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss" // For styling
)

// --- Styles ---
var (
	titleStyle              = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("62"))
	errorStyle              = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
	infoStyle               = lipgloss.NewStyle().Foreground(lipgloss.Color("244"))
	progressBarStyle        = lipgloss.NewStyle().Padding(0, 1)
	fileProgressHeaderStyle = lipgloss.NewStyle().Bold(true).MarginBottom(1)
	fileStatusStyle         = map[string]lipgloss.Style{
		"Extracting": lipgloss.NewStyle().Foreground(lipgloss.Color("45")),
		"Complete":   lipgloss.NewStyle().Foreground(lipgloss.Color("46")),
		"Partial":    lipgloss.NewStyle().Foreground(lipgloss.Color("214")),
		"Empty":      lipgloss.NewStyle().Foreground(lipgloss.Color("240")),
		"Skipped":    lipgloss.NewStyle().Foreground(lipgloss.Color("240")),
		"Error":      lipgloss.NewStyle().Foreground(lipgloss.Color("196")),
	}
)

// Task is the background work the view tracks. It must return once ctx is
// cancelled and must not close progress.
type Task func(ctx context.Context, progress chan<- orchestrator.Progress) error

type FileProgress struct {
	FileName string
	Status   string
	Nested   int
	Produced int
	ErrMsg   string
	Start    time.Time
	Elapsed  time.Duration
}

type AppModel struct {
	Title            string
	State            AppState
	spinner          spinner.Model
	overallProgress  progress.Model
	progressBarWidth int
	logger           *slog.Logger

	mu             sync.RWMutex
	fileProgress   map[string]*FileProgress
	fileOrder      []string
	overallTotal   int64
	overallCurrent int64
	currentTaskTag string
	lastActivity   string
	taskStartTime  time.Time
	summary        string

	task    Task
	ctx     context.Context
	cancel  context.CancelFunc
	done    chan struct{}
	started bool

	FatalErr error
	Quitting bool

	termWidth  int
	termHeight int

	uiMsgChan chan tea.Msg
}

// NewAppModel builds a view that runs task as soon as the program starts.
func NewAppModel(ctx context.Context, title, tag string, task Task, logger *slog.Logger) *AppModel {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("205"))
	prog := progress.New(progress.WithDefaultGradient())
	if logger == nil {
		logger = slog.Default()
	}
	taskCtx, cancel := context.WithCancel(ctx)

	return &AppModel{
		Title:           title,
		State:           Running,
		spinner:         s,
		overallProgress: prog,
		logger:          logger,
		fileProgress:    make(map[string]*FileProgress),
		fileOrder:       make([]string, 0),
		currentTaskTag:  tag,
		task:            task,
		ctx:             taskCtx,
		cancel:          cancel,
		done:            make(chan struct{}),
		termWidth:       80,
		termHeight:      24,
	}
}

// --- Bubbletea Interface ---

func (m *AppModel) Init() tea.Cmd {
	m.taskStartTime = time.Now()
	m.uiMsgChan = make(chan tea.Msg)
	return tea.Batch(m.spinner.Tick, m.startTask(m.uiMsgChan), m.waitForActivityCmd(m.uiMsgChan))
}

func (m *AppModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd
	var cmd tea.Cmd

	switch msg := msg.(type) {
	case tea.KeyMsg:
		if msg.String() == "ctrl+c" || msg.String() == "q" {
			m.logger.Info("Quit requested, cancelling task.")
			m.Quitting = true
			m.State = Exiting
			m.cancel()
			return m, tea.Quit
		}
		if m.State == Finished || m.State == ShowError {
			return m, tea.Quit
		}
	case tea.WindowSizeMsg:
		m.termWidth = msg.Width
		m.termHeight = msg.Height
		m.progressBarWidth = max(0, m.termWidth-4)
		m.overallProgress.Width = m.progressBarWidth
	case ProgressMsg:
		m.mu.Lock()
		m.overallTotal = msg.Total
		if msg.Current > m.overallCurrent {
			m.overallCurrent = msg.Current
		}
		m.lastActivity = msg.Activity
		current, total := m.overallCurrent, m.overallTotal
		m.mu.Unlock()
		var percent float64
		if total > 0 {
			percent = float64(current) / float64(total)
		}
		cmd = m.overallProgress.SetPercent(percent)
		cmds = append(cmds, cmd)
	case FileProgressMsg:
		m.mu.Lock()
		if _, exists := m.fileProgress[msg.FileID]; !exists {
			m.fileProgress[msg.FileID] = &FileProgress{
				FileName: msg.FileName,
				Start:    time.Now(),
			}
			m.fileOrder = append(m.fileOrder, msg.FileID)
		}
		fp := m.fileProgress[msg.FileID]
		fp.Status = msg.Status
		fp.ErrMsg = msg.ErrMsg
		fp.Nested = msg.Nested
		fp.Produced = msg.Produced
		if msg.ElapsedTime > 0 {
			fp.Elapsed = msg.ElapsedTime
		}
		m.mu.Unlock()
	case TaskFinishedMsg:
		m.uiMsgChan = nil
		m.logger.Info("Task finished.", slog.String("task", msg.Tag), slog.Duration("duration", msg.EndTime.Sub(msg.StartTime).Round(time.Millisecond)))
		m.summary = msg.Message
		if msg.Err != nil {
			m.FatalErr = msg.Err
			m.State = ShowError
		} else {
			m.State = Finished
		}
		return m, tea.Quit
	case GeneralErrorMsg:
		m.logger.Error("Task error.", slog.Any("error", msg.Err))
		m.FatalErr = msg.Err
		m.State = ShowError
		m.uiMsgChan = nil
	case spinner.TickMsg:
		if m.State == Running {
			m.spinner, cmd = m.spinner.Update(msg)
			cmds = append(cmds, cmd)
		}
	case progress.FrameMsg:
		if m.State == Running {
			progModel, frameCmd := m.overallProgress.Update(msg)
			if newModel, ok := progModel.(progress.Model); ok {
				m.overallProgress = newModel
				cmds = append(cmds, frameCmd)
			}
		}
	}

	if m.uiMsgChan != nil {
		if _, ok := msg.(ProgressMsg); ok {
			cmds = append(cmds, m.waitForActivityCmd(m.uiMsgChan))
		}
		if _, ok := msg.(FileProgressMsg); ok {
			cmds = append(cmds, m.waitForActivityCmd(m.uiMsgChan))
		}
	}

	return m, tea.Batch(cmds...)
}

func (m *AppModel) View() string {
	var b strings.Builder

	b.WriteString(titleStyle.Render(fmt.Sprintf("--- %s ---", m.Title)))
	b.WriteString("\n\n")

	switch m.State {
	case Running, Finished:
		b.WriteString(m.viewProgress())
	case ShowError:
		b.WriteString(m.viewProgress())
		b.WriteString(m.viewError())
	case Exiting:
		b.WriteString(infoStyle.Render("Exiting..."))
	}

	b.WriteString("\n\n")
	switch m.State {
	case Running:
		b.WriteString(infoStyle.Render("Extracting... 'q' or Ctrl+C to cancel."))
	case Finished:
		b.WriteString(infoStyle.Render(m.summary))
	}
	return b.String()
}

// --- View Helpers ---

func (m *AppModel) viewProgress() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var b strings.Builder
	b.WriteString(fmt.Sprintf("%s %s: %s\n", m.spinner.View(), m.currentTaskTag, m.lastActivity))
	b.WriteString(progressBarStyle.Render(m.overallProgress.View()))
	b.WriteString(fmt.Sprintf(" (%d/%d)\n\n", m.overallCurrent, m.overallTotal))

	maxLines := max(m.termHeight-10, 1)
	startIdx := 0
	if len(m.fileOrder) > maxLines {
		startIdx = len(m.fileOrder) - maxLines
	}

	if len(m.fileOrder) > 0 {
		b.WriteString(fileProgressHeaderStyle.Render(fmt.Sprintf("%-40s | %-10s | %-6s | %-6s | %s", "File", "Status", "Nested", "Files", "Elapsed")))
		b.WriteString("\n")
		b.WriteString(strings.Repeat("-", m.termWidth))
		b.WriteString("\n")
		for i := startIdx; i < len(m.fileOrder); i++ {
			fp := m.fileProgress[m.fileOrder[i]]
			if fp == nil {
				continue
			}
			statusStyled, ok := fileStatusStyle[fp.Status]
			if !ok {
				statusStyled = infoStyle
			}
			elapsedStr := ""
			if fp.Elapsed > 0 {
				elapsedStr = fp.Elapsed.Round(time.Millisecond).String()
			} else if fp.Status == "Extracting" {
				elapsedStr = time.Since(fp.Start).Round(time.Second).String() + "..."
			}
			fileName := fp.FileName
			if len(fileName) > 40 {
				fileName = fileName[:37] + "..."
			}
			b.WriteString(fmt.Sprintf("%-40s | %-10s | %-6d | %-6d | %s", fileName, statusStyled.Render(fp.Status), fp.Nested, fp.Produced, elapsedStr))
			if fp.Status == "Error" && fp.ErrMsg != "" {
				b.WriteString("\n")
				b.WriteString(errorStyle.Render(truncate("  -> Error: "+fp.ErrMsg, m.termWidth-1)))
			}
			b.WriteString("\n")
		}
	}
	return b.String()
}

func (m *AppModel) viewError() string {
	var b strings.Builder
	b.WriteString(errorStyle.Render("An error occurred:"))
	b.WriteString("\n\n")
	if m.FatalErr != nil {
		b.WriteString(wrapText(m.FatalErr.Error(), m.termWidth-4))
	} else {
		b.WriteString("Unknown error.")
	}
	b.WriteString("\n")
	return b.String()
}

// --- Update Helpers ---

func (m *AppModel) waitForActivityCmd(uiMsgChan chan tea.Msg) tea.Cmd {
	if uiMsgChan == nil {
		return nil
	}
	return func() tea.Msg {
		msg, ok := <-uiMsgChan
		if !ok {
			return nil
		}
		return msg
	}
}

// startTask runs the task and a translator goroutine that turns coordinator
// progress into UI messages. The task's result arrives last. Once the view
// is cancelled, undelivered messages are dropped.
func (m *AppModel) startTask(uiMsgChan chan tea.Msg) tea.Cmd {
	tag := m.currentTaskTag
	start := m.taskStartTime
	deliver := func(msg tea.Msg) {
		select {
		case uiMsgChan <- msg:
		case <-m.ctx.Done():
		}
	}
	m.started = true
	return func() tea.Msg {
		workerProgressChan := make(chan orchestrator.Progress)
		translated := make(chan struct{})
		go func() {
			defer close(translated)
			for p := range workerProgressChan {
				overall, file := FromProgress(tag, p)
				deliver(overall)
				deliver(file)
			}
		}()
		go func() {
			defer close(m.done)
			err := m.task(m.ctx, workerProgressChan)
			close(workerProgressChan)
			<-translated
			msg := "Finished."
			m.mu.RLock()
			if m.overallTotal > 0 {
				msg = fmt.Sprintf("Finished %d/%d inputs in %s.", m.overallCurrent, m.overallTotal, time.Since(start).Round(time.Millisecond))
			}
			m.mu.RUnlock()
			deliver(NewTaskFinished(tag, start, err, msg))
			close(uiMsgChan)
		}()
		return nil
	}
}

// Wait blocks until the task has returned. It returns at once if the task
// was never started.
func (m *AppModel) Wait() {
	if !m.started {
		return
	}
	<-m.done
}

// --- Helpers ---

func truncate(s string, n int) string {
	if n <= 0 || len(s) <= n {
		return s
	}
	return s[:n]
}

func wrapText(text string, maxWidth int) string {
	if maxWidth <= 0 {
		return text
	}
	var result strings.Builder
	var currentLine strings.Builder
	words := strings.Fields(text)
	for _, word := range words {
		if currentLine.Len() > 0 && currentLine.Len()+len(word)+1 > maxWidth {
			result.WriteString(currentLine.String())
			result.WriteString("\n")
			currentLine.Reset()
		}
		if currentLine.Len() > 0 {
			currentLine.WriteString(" ")
		}
		currentLine.WriteString(word)
	}
	result.WriteString(currentLine.String())
	return result.String()
}
