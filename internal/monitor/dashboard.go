// Package monitor renders a terminal ops dashboard for a running ragd
// instance. It polls the daemon's status endpoint and shows corpus size,
// answer throughput, retrieval confidence, and dependency health.
package monitor

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/NimbleMarkets/ntcharts/sparkline"
	"github.com/charmbracelet/bubbles/progress"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	v1 "github.com/fyrsmithlabs/ragd/pkg/api/v1"
)

const (
	sparklineWidth  = 30
	sparklineHeight = 3
	historySize     = 30
)

// Model is the BubbleTea dashboard model.
type Model struct {
	baseURL    string
	interval   time.Duration
	lastUpdate time.Time
	status     v1.StatusResponse
	err        error
	quitting   bool

	// Derived series, updated per poll.
	answerRate   float64
	ratePeak     float64
	prevAnswered int64
	prevPoll     time.Time
	rateHistory  []float64
	rsqHistory   []float64

	rateProgress progress.Model
	ragProgress  progress.Model
}

// Lipgloss styles (k9s-inspired color scheme)
var (
	headerStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("0")).
			Background(lipgloss.Color("51")).
			Bold(true).
			Padding(0, 1)

	sectionStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("51")).
			Bold(true).
			MarginTop(1)

	labelStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("45"))

	valueStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("231")).
			Bold(true)

	dimStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("245"))

	healthyStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("46")).
			Bold(true)

	warningStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("226")).
			Bold(true)

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("196")).
			Bold(true)

	containerStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("238")).
			Padding(1, 2)

	footerStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("245")).
			MarginTop(1)

	footerKeyStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("51")).
			Bold(true)

	sparklineStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("51"))
)

// NewModel creates a dashboard model polling a ragd base URL.
func NewModel(baseURL string, interval time.Duration) Model {
	rateProg := progress.New(
		progress.WithGradient("#00ffff", "#ff00ff"),
		progress.WithWidth(40),
	)
	ragProg := progress.New(
		progress.WithGradient("#00ff00", "#ffff00"),
		progress.WithWidth(40),
	)

	return Model{
		baseURL:      baseURL,
		interval:     interval,
		ratePeak:     1.0, // Minimum peak to avoid division by zero
		rateHistory:  make([]float64, 0, historySize),
		rsqHistory:   make([]float64, 0, historySize),
		rateProgress: rateProg,
		ragProgress:  ragProg,
	}
}

// rsqBadge colors the average retrieval confidence against the default
// fallback threshold.
func rsqBadge(rsq float64) string {
	if rsq >= 0.5 {
		return healthyStyle.Render("[✓]")
	} else if rsq >= 0.35 {
		return warningStyle.Render("[⚠]")
	}
	return errorStyle.Render("[✗]")
}

func statusBadge(status string) string {
	switch status {
	case "ok":
		return healthyStyle.Render("✓ HEALTHY")
	case "degraded":
		return errorStyle.Render("✗ DEGRADED")
	default:
		return warningStyle.Render("⚠ " + status)
	}
}

// appendToHistory appends a value to history, maintaining max size
func appendToHistory(history []float64, value float64) []float64 {
	history = append(history, value)
	if len(history) > historySize {
		history = history[1:]
	}
	return history
}

// createSparkline creates a sparkline chart from historical data
func createSparkline(data []float64) string {
	if len(data) == 0 {
		return dimStyle.Render(fmt.Sprintf("%*s", sparklineWidth, "no data"))
	}

	spark := sparkline.New(sparklineWidth, sparklineHeight)
	for _, v := range data {
		spark.Push(v)
	}

	return sparklineStyle.Render(spark.View())
}

// Message types
type tickMsg time.Time
type statusMsg v1.StatusResponse
type errMsg error

// Init initializes the model
func (m Model) Init() tea.Cmd {
	return tea.Batch(
		tick(m.interval),
		fetchStatus(m.baseURL),
	)
}

// tick creates a tick command for auto-refresh
func tick(interval time.Duration) tea.Cmd {
	return tea.Tick(interval, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

// fetchStatus fetches one status snapshot from the daemon.
func fetchStatus(baseURL string) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		status, err := NewStatusClient(baseURL).Status(ctx)
		if err != nil {
			return errMsg(err)
		}
		return statusMsg(status)
	}
}

// Update handles messages
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			m.quitting = true
			return m, tea.Quit
		case "r":
			return m, fetchStatus(m.baseURL)
		}

	case tickMsg:
		return m, tea.Batch(
			tick(m.interval),
			fetchStatus(m.baseURL),
		)

	case statusMsg:
		m = m.applyStatus(v1.StatusResponse(msg))
		return m, nil

	case errMsg:
		m.err = error(msg)
		return m, nil
	}

	return m, nil
}

// applyStatus folds a fresh snapshot into the model and derives the
// answer rate from the counter delta since the previous poll.
func (m Model) applyStatus(status v1.StatusResponse) Model {
	now := time.Now()

	if !m.prevPoll.IsZero() && status.Chat.Answered >= m.prevAnswered {
		elapsed := now.Sub(m.prevPoll).Minutes()
		if elapsed > 0 {
			m.answerRate = float64(status.Chat.Answered-m.prevAnswered) / elapsed
		}
	}
	if m.answerRate > m.ratePeak {
		m.ratePeak = m.answerRate
	}

	m.rateHistory = appendToHistory(m.rateHistory, m.answerRate)
	m.rsqHistory = appendToHistory(m.rsqHistory, status.Chat.AvgRSQ)

	m.prevAnswered = status.Chat.Answered
	m.prevPoll = now
	m.status = status
	m.lastUpdate = now
	m.err = nil
	return m
}

// View renders the dashboard
func (m Model) View() string {
	if m.quitting {
		return ""
	}

	if m.err != nil {
		return m.renderError()
	}

	return m.renderDashboard()
}

// renderError renders the error view
func (m Model) renderError() string {
	header := headerStyle.Render("ragd Monitor")

	var content string
	content += "\n"
	content += errorStyle.Render("⚠ Cannot reach ragd") + "\n"
	content += "\n"
	content += dimStyle.Render("URL: ") + valueStyle.Render(m.baseURL) + "\n"
	content += dimStyle.Render("Error: ") + errorStyle.Render(m.err.Error()) + "\n"
	content += "\n"
	content += dimStyle.Render("Please ensure the daemon is running and reachable.") + "\n"
	content += "\n"
	content += footerStyle.Render("[q] quit  [r] retry") + "\n"

	return containerStyle.Render(header + "\n" + content)
}

// renderDashboard renders the main dashboard view.
func (m Model) renderDashboard() string {
	var content string

	lastUpdateStr := "Never"
	if !m.lastUpdate.IsZero() {
		lastUpdateStr = m.lastUpdate.Format("3:04:05 PM")
	}

	header := headerStyle.Render(" ragd Monitor ")
	headerLine := fmt.Sprintf("%s   %s   %s   %s",
		statusBadge(m.status.Status),
		dimStyle.Render("Uptime:"),
		valueStyle.Render(FormatUptime(m.status.UptimeS)),
		dimStyle.Render(lastUpdateStr))

	content += header + "\n"
	content += headerLine + "\n"

	// Corpus section
	content += "\n" + sectionStyle.Render("┃ Corpus") + "\n"
	content += labelStyle.Render("  Tenants: ") +
		valueStyle.Render(fmt.Sprintf("%d", m.status.Counts.Tenants)) +
		"  " + labelStyle.Render("Documents: ") +
		valueStyle.Render(fmt.Sprintf("%d", m.status.Counts.Documents)) +
		"  " + labelStyle.Render("Chunks: ") +
		valueStyle.Render(FormatCount(int64(m.status.Counts.Chunks))) + "\n"

	// Answers section
	content += "\n" + sectionStyle.Render("┃ Answers") + "\n"

	rateSparkline := createSparkline(m.rateHistory)
	content += labelStyle.Render("  Rate: ") +
		valueStyle.Render(FormatRate(m.answerRate)) +
		"       " + rateSparkline + "\n"

	ratePercent := 0.0
	if m.ratePeak > 0 {
		ratePercent = m.answerRate / m.ratePeak
		if ratePercent > 1.0 {
			ratePercent = 1.0
		}
	}
	content += labelStyle.Render("  Load: ") +
		m.rateProgress.ViewAs(ratePercent) +
		" " + dimStyle.Render(fmt.Sprintf("%.0f%%", ratePercent*100)) + "\n"

	chat := m.status.Chat
	content += labelStyle.Render("  Modes: ") +
		dimStyle.Render("greeting=") + valueStyle.Render(FormatCount(chat.Greetings)) +
		dimStyle.Render("  rag=") + valueStyle.Render(FormatCount(chat.RAG)) +
		dimStyle.Render("  fallback=") + valueStyle.Render(FormatCount(chat.Fallbacks)) + "\n"

	// Grounded share: how many answers came from retrieval instead of
	// the fallback text.
	nonGreeting := chat.RAG + chat.Fallbacks
	ragShare := 0.0
	if nonGreeting > 0 {
		ragShare = float64(chat.RAG) / float64(nonGreeting)
	}
	content += labelStyle.Render("  Grounded: ") +
		m.ragProgress.ViewAs(ragShare) +
		" " + dimStyle.Render(FormatPercentage(ragShare)) + "\n"

	// Retrieval confidence section
	content += "\n" + sectionStyle.Render("┃ Retrieval Confidence") + "\n"

	rsqSparkline := createSparkline(m.rsqHistory)
	content += labelStyle.Render("  Avg RSQ: ") +
		valueStyle.Render(FormatRSQ(chat.AvgRSQ)) +
		" " + rsqBadge(chat.AvgRSQ) +
		"   " + rsqSparkline + "\n"
	content += labelStyle.Render("  Last RSQ: ") +
		valueStyle.Render(FormatRSQ(chat.LastRSQ)) + "\n"

	// Services section
	content += "\n" + sectionStyle.Render("┃ Services") + "\n"
	names := make([]string, 0, len(m.status.Services))
	for name := range m.status.Services {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		state := m.status.Services[name]
		badge := healthyStyle.Render("[✓]")
		if state != "ok" {
			badge = errorStyle.Render("[✗]")
		}
		content += labelStyle.Render("  "+name+": ") + badge + " " + dimStyle.Render(state) + "\n"
	}
	if len(names) == 0 {
		content += dimStyle.Render("  no probes configured") + "\n"
	}

	footer := footerKeyStyle.Render("[q]") + footerStyle.Render(" quit  ") +
		footerKeyStyle.Render("[r]") + footerStyle.Render(" refresh  ") +
		footerStyle.Render(fmt.Sprintf("Auto: %v", m.interval))

	content += "\n" + footer

	return containerStyle.Render(content)
}
